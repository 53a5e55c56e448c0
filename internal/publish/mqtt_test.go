package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/appweather/internal/weather"
)

type recordingSink struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error
}

func (s *recordingSink) Publish(topic string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.topics = append(s.topics, topic)
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func testPublisher(sink Sink, counter prometheus.Counter) *Publisher {
	return NewPublisher(sink, "appweather/forecast", 2, clockwork.NewFakeClockAt(now), slog.New(slog.NewTextHandler(io.Discard, nil)), counter)
}

func testSnapshot() weather.Snapshot {
	env := weather.Envelope{Samples: []weather.Sample{
		{Timestamp: now.Add(-3 * time.Hour).Unix(), Temperature: 10, Icon: "01d"},
		{Timestamp: now.Add(3 * time.Hour).Unix(), Temperature: 14, Icon: "02d"},
		{Timestamp: now.Add(6 * time.Hour).Unix(), Temperature: 12, Icon: "02d"},
		{Timestamp: now.Add(9 * time.Hour).Unix(), Temperature: 9, Icon: "02n"},
	}}
	return weather.Snapshot{
		ID:        uuid.New(),
		Location:  weather.Location{City: "Gdansk"},
		FetchedAt: now,
		Current:   &weather.CurrentConditions{Sample: weather.Sample{Timestamp: now.Unix(), Temperature: 11, Icon: "01d"}},
		Envelope:  &env,
	}
}

func TestPublishSnapshot(t *testing.T) {
	sink := &recordingSink{}
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "published"})
	p := testPublisher(sink, counter)

	snap := testSnapshot()
	require.NoError(t, p.PublishSnapshot(snap))

	require.Equal(t, 1, sink.count())
	assert.Equal(t, "appweather/forecast", sink.topics[0])

	var msg Message
	require.NoError(t, json.Unmarshal(sink.payloads[0], &msg))
	assert.Equal(t, snap.ID.String(), msg.SnapshotID)
	assert.Equal(t, "Gdansk", msg.City)
	require.Len(t, msg.Daily, 1)
	assert.Equal(t, "02d", msg.Daily[0].Icon)
	require.Len(t, msg.Hourly, 2)
	assert.Equal(t, 14.0, msg.Hourly[0].Temperature)
	require.NotNil(t, msg.Current)
	assert.Equal(t, 11.0, msg.Current.Temperature)

	assert.Equal(t, 1.0, testutil.ToFloat64(counter))
}

func TestPublishSnapshot_NoForecast(t *testing.T) {
	sink := &recordingSink{}
	p := testPublisher(sink, nil)

	require.NoError(t, p.PublishSnapshot(weather.Snapshot{ID: uuid.New()}))
	assert.Equal(t, 0, sink.count())
}

func TestPublishSnapshot_SinkError(t *testing.T) {
	sink := &recordingSink{err: errors.New("not connected")}
	p := testPublisher(sink, nil)

	assert.Error(t, p.PublishSnapshot(testSnapshot()))
}

func TestRun_FollowsSession(t *testing.T) {
	sink := &recordingSink{}
	p := testPublisher(sink, nil)

	session := weather.NewSession()
	updates, cancel := session.Subscribe()

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, updates)
		close(done)
	}()

	session.Publish(testSnapshot())
	assert.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 10*time.Millisecond)

	stop()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestPublishSnapshot_WindowFollowsClock(t *testing.T) {
	sink := &recordingSink{}
	clock := clockwork.NewFakeClockAt(now)
	p := NewPublisher(sink, "appweather/forecast", 2, clock, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	clock.Advance(4 * time.Hour)
	require.NoError(t, p.PublishSnapshot(testSnapshot()))

	var msg Message
	require.NoError(t, json.Unmarshal(sink.payloads[0], &msg))
	require.Len(t, msg.Hourly, 2)
	assert.Equal(t, 12.0, msg.Hourly[0].Temperature)
}
