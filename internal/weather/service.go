package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Themes accepted by SetPreferences.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// ServiceConfig carries the optional collaborators of a Service.
type ServiceConfig struct {
	// Window is the default size of the next-hours window.
	Window int
	// Viewer is the zone used to decide which samples belong to "today".
	Viewer *time.Location
	Clock  clockwork.Clock
	Logger *slog.Logger
	// Metrics may be nil.
	Metrics Metrics
}

// Service orchestrates the provider, the session and the preference store.
type Service struct {
	provider Provider
	prefs    PreferenceStore
	session  *Session

	window  int
	viewer  *time.Location
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics Metrics

	// started numbers refreshes as they begin. mu guards published and the
	// merge, publish and save-city step of a refresh.
	started   atomic.Uint64
	mu        sync.Mutex
	published uint64
}

// NewService creates a new Service.
func NewService(provider Provider, prefs PreferenceStore, session *Session, cfg ServiceConfig) *Service {
	if session == nil {
		session = NewSession()
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Viewer == nil {
		cfg.Viewer = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		provider: provider,
		prefs:    prefs,
		session:  session,
		window:   cfg.Window,
		viewer:   cfg.Viewer,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

// Session exposes the state container so callers can subscribe to updates.
func (s *Service) Session() *Session {
	return s.session
}

// RefreshResult joins the outcomes of the two independent fetches.
type RefreshResult struct {
	SnapshotID  uuid.UUID
	Location    Location
	Current     *CurrentConditions
	CurrentErr  error
	Envelope    *Envelope
	ForecastErr error
	// Superseded is set when a refresh started later was already published;
	// this result then changed neither the session nor the saved city.
	Superseded bool
}

// Failed reports whether neither fetch succeeded.
func (r RefreshResult) Failed() bool {
	return r.CurrentErr != nil && r.ForecastErr != nil
}

// Refresh fetches current conditions and forecast for loc concurrently and
// publishes a new snapshot. Provider errors are returned inside the result
// unchanged; the returned error is only set for invalid input.
func (s *Service) Refresh(ctx context.Context, loc Location) (RefreshResult, error) {
	loc.City = strings.TrimSpace(loc.City)
	loc.Country = strings.TrimSpace(loc.Country)
	if loc.City == "" {
		return RefreshResult{}, ErrEmptyCity
	}

	seq := s.started.Add(1)
	s.logger.Debug("refreshing weather", "location", loc.Key(), "provider", s.provider.Name(), "seq", seq)

	res := RefreshResult{Location: loc}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		start := s.clock.Now()
		cur, err := s.provider.FetchCurrent(ctx, loc)
		s.observeFetch("current", err, s.clock.Since(start))
		if err != nil {
			res.CurrentErr = err
			return
		}
		res.Current = &cur
	}()
	go func() {
		defer wg.Done()
		start := s.clock.Now()
		env, err := s.provider.FetchForecast(ctx, loc)
		s.observeFetch("forecast", err, s.clock.Since(start))
		if err != nil {
			res.ForecastErr = err
			return
		}
		res.Envelope = &env
	}()
	wg.Wait()

	if res.CurrentErr != nil {
		s.logger.Warn("current conditions fetch failed", "location", loc.Key(), "error", res.CurrentErr)
	}
	if res.ForecastErr != nil {
		s.logger.Warn("forecast fetch failed", "location", loc.Key(), "error", res.ForecastErr)
	}

	s.commit(seq, &res)

	switch {
	case res.Failed():
		s.observeRefresh("failed")
	case res.CurrentErr != nil || res.ForecastErr != nil:
		s.observeRefresh("partial")
	default:
		s.observeRefresh("ok")
	}

	return res, nil
}

// commit publishes res unless a refresh that started after it has already
// been published. It also saves the city when at least one part succeeded.
func (s *Service) commit(seq uint64, res *RefreshResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq < s.published {
		res.Superseded = true
		s.logger.Info("dropping superseded refresh", "location", res.Location.Key(), "seq", seq, "published", s.published)
		return
	}
	s.published = seq

	snap := s.nextSnapshot(*res)
	res.SnapshotID = snap.ID
	s.session.Publish(snap)

	if !res.Failed() && s.prefs != nil {
		if err := s.prefs.Set(PrefCity, res.Location.Query()); err != nil {
			s.logger.Error("failed to save last city", "city", res.Location.Query(), "error", err)
		}
	}
}

// nextSnapshot merges a refresh result into the previous snapshot. Values
// from the previous snapshot survive a failed part only when the location
// did not change.
func (s *Service) nextSnapshot(res RefreshResult) Snapshot {
	snap := Snapshot{
		ID:          uuid.New(),
		Location:    res.Location,
		FetchedAt:   s.clock.Now().UTC(),
		Current:     res.Current,
		CurrentErr:  res.CurrentErr,
		Envelope:    res.Envelope,
		ForecastErr: res.ForecastErr,
	}

	prev, ok := s.session.Latest()
	if !ok || prev.Location.Key() != res.Location.Key() {
		return snap
	}
	if snap.Current == nil {
		snap.Current = prev.Current
	}
	if snap.Envelope == nil {
		snap.Envelope = prev.Envelope
	}
	return snap
}

// Tracked returns the location of the latest snapshot.
func (s *Service) Tracked() (Location, bool) {
	snap, ok := s.session.Latest()
	if !ok {
		return Location{}, false
	}
	return snap.Location, true
}

// Current returns the latest current conditions.
func (s *Service) Current() (CurrentConditions, error) {
	snap, ok := s.session.Latest()
	if !ok || snap.Current == nil {
		if ok && snap.CurrentErr != nil {
			return CurrentConditions{}, snap.CurrentErr
		}
		return CurrentConditions{}, ErrNoData
	}
	return *snap.Current, nil
}

// Forecast returns the latest envelope.
func (s *Service) Forecast() (Envelope, error) {
	snap, ok := s.session.Latest()
	if !ok || snap.Envelope == nil {
		if ok && snap.ForecastErr != nil {
			return Envelope{}, snap.ForecastErr
		}
		return Envelope{}, ErrNoData
	}
	return *snap.Envelope, nil
}

// Daily computes the daily summaries of the latest envelope.
func (s *Service) Daily() ([]DailySummary, error) {
	env, err := s.Forecast()
	if err != nil {
		return nil, err
	}
	return DailySummaries(env), nil
}

// Hourly computes the next-hours window; n <= 0 uses the configured window.
func (s *Service) Hourly(n int) ([]Sample, error) {
	_, samples, err := s.HourlyForecast(n)
	return samples, err
}

// HourlyForecast returns the envelope together with its next-hours window,
// both taken from the same snapshot. n <= 0 uses the configured window.
func (s *Service) HourlyForecast(n int) (Envelope, []Sample, error) {
	env, err := s.Forecast()
	if err != nil {
		return Envelope{}, nil, err
	}
	if n <= 0 {
		n = s.window
	}
	return env, NextHours(env, s.clock.Now(), n), nil
}

// Today returns the samples of the viewer's current day.
func (s *Service) Today() ([]Sample, error) {
	env, err := s.Forecast()
	if err != nil {
		return nil, err
	}
	return TodaysSamples(env, s.clock.Now(), s.viewer), nil
}

// Preferences is the persisted user state.
type Preferences struct {
	City  string `json:"city"`
	Theme string `json:"theme"`
}

// Preferences reads the stored preferences, filling defaults for missing keys.
func (s *Service) Preferences() (Preferences, error) {
	p := Preferences{Theme: ThemeLight}
	if s.prefs == nil {
		return p, nil
	}

	city, err := s.prefs.Get(PrefCity)
	if err != nil && !isNotFound(err) {
		return p, fmt.Errorf("read city preference: %w", err)
	}
	p.City = city

	theme, err := s.prefs.Get(PrefTheme)
	if err != nil && !isNotFound(err) {
		return p, fmt.Errorf("read theme preference: %w", err)
	}
	if theme != "" {
		p.Theme = theme
	}
	return p, nil
}

// SetPreferences stores non-empty fields of p.
func (s *Service) SetPreferences(p Preferences) error {
	if s.prefs == nil {
		return errors.New("no preference store configured")
	}
	if p.City != "" {
		if err := s.prefs.Set(PrefCity, strings.TrimSpace(p.City)); err != nil {
			return fmt.Errorf("save city preference: %w", err)
		}
	}
	if p.Theme != "" {
		if p.Theme != ThemeLight && p.Theme != ThemeDark {
			return fmt.Errorf("unknown theme %q", p.Theme)
		}
		if err := s.prefs.Set(PrefTheme, p.Theme); err != nil {
			return fmt.Errorf("save theme preference: %w", err)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrPreferenceNotFound)
}

func (s *Service) observeFetch(op string, err error, d time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveFetch(s.provider.Name(), op, err, d.Seconds())
}

func (s *Service) observeRefresh(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveRefresh(outcome)
}
