package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/appweather/internal/weather"
)

type fakeRefresher struct {
	mu      sync.Mutex
	tracked *weather.Location
	calls   []weather.Location
}

func (f *fakeRefresher) Tracked() (weather.Location, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tracked == nil {
		return weather.Location{}, false
	}
	return *f.tracked, true
}

func (f *fakeRefresher) Refresh(ctx context.Context, loc weather.Location) (weather.RefreshResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		panic("refresh without deadline")
	}
	f.calls = append(f.calls, loc)
	return weather.RefreshResult{Location: loc}, nil
}

func (f *fakeRefresher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce(t *testing.T) {
	f := &fakeRefresher{}
	s := New(f, time.Minute, time.Second, discardLogger())

	s.RunOnce()
	assert.Equal(t, 0, f.callCount(), "nothing tracked yet")

	f.tracked = &weather.Location{City: "Gdansk"}
	s.RunOnce()
	require.Equal(t, 1, f.callCount())
	assert.Equal(t, "Gdansk", f.calls[0].City)
}

func TestStart_Periodic(t *testing.T) {
	f := &fakeRefresher{tracked: &weather.Location{City: "Gdansk"}}
	s := New(f, 100*time.Millisecond, time.Second, discardLogger())

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return f.callCount() >= 2 }, 3*time.Second, 20*time.Millisecond)
}

func TestStart_Disabled(t *testing.T) {
	f := &fakeRefresher{tracked: &weather.Location{City: "Gdansk"}}
	s := New(f, 0, time.Second, discardLogger())

	require.NoError(t, s.Start())
	s.Stop()
	assert.Equal(t, 0, f.callCount())
}
