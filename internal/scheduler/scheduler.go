package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/appweather/internal/weather"
)

// Refresher is the part of weather.Service the scheduler drives.
type Refresher interface {
	Tracked() (weather.Location, bool)
	Refresh(ctx context.Context, loc weather.Location) (weather.RefreshResult, error)
}

// Scheduler periodically refetches the city the session is tracking.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Refresher
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler. timeout bounds each refresh.
func New(service Refresher, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// A non-positive interval disables periodic refreshes.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("scheduler: periodic refresh disabled")
		return nil
	}

	// The first run happens one interval from now; startup refreshes explicitly.
	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce refreshes the tracked city, if any.
func (s *Scheduler) RunOnce() {
	loc, ok := s.service.Tracked()
	if !ok {
		s.logger.Debug("scheduler: no city tracked yet; skipping")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := s.service.Refresh(ctx, loc)
	if err != nil {
		s.logger.Error("scheduler: refresh rejected", "location", loc.Key(), "error", err)
		return
	}
	if res.Failed() {
		s.logger.Warn("scheduler: refresh failed", "location", loc.Key())
		return
	}
	if res.Superseded {
		s.logger.Debug("scheduler: refresh superseded by a newer one", "location", loc.Key())
		return
	}
	s.logger.Info("scheduler: refreshed", "location", loc.Key(), "snapshot", res.SnapshotID)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
