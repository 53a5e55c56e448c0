package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/appweather/internal/weather"
)

// Message is the retained payload describing the latest forecast.
type Message struct {
	SnapshotID string                 `json:"snapshot_id"`
	City       string                 `json:"city"`
	FetchedAt  time.Time              `json:"fetched_at"`
	Current    *weather.Sample        `json:"current,omitempty"`
	Daily      []weather.DailySummary `json:"daily"`
	Hourly     []weather.Sample       `json:"hourly"`
}

// Sink delivers a payload to a topic.
type Sink interface {
	Publish(topic string, payload []byte) error
}

// Publisher turns session snapshots into retained MQTT messages.
type Publisher struct {
	sink      Sink
	topic     string
	window    int
	clock     clockwork.Clock
	logger    *slog.Logger
	published prometheus.Counter
}

// NewPublisher creates a Publisher. clock picks the start of the hourly
// window; published may be nil.
func NewPublisher(sink Sink, topic string, window int, clock clockwork.Clock, logger *slog.Logger, published prometheus.Counter) *Publisher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Publisher{
		sink:      sink,
		topic:     topic,
		window:    window,
		clock:     clock,
		logger:    logger,
		published: published,
	}
}

// Run publishes every snapshot received from updates until ctx is done or
// the channel closes.
func (p *Publisher) Run(ctx context.Context, updates <-chan weather.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := p.PublishSnapshot(snap); err != nil {
				p.logger.Error("failed to publish forecast", "topic", p.topic, "error", err)
			}
		}
	}
}

// PublishSnapshot publishes snap. Snapshots without a forecast are skipped.
func (p *Publisher) PublishSnapshot(snap weather.Snapshot) error {
	if snap.Envelope == nil {
		p.logger.Debug("snapshot has no forecast; not publishing", "snapshot", snap.ID)
		return nil
	}

	msg := Message{
		SnapshotID: snap.ID.String(),
		City:       snap.Location.City,
		FetchedAt:  snap.FetchedAt,
		Daily:      weather.DailySummaries(*snap.Envelope),
		Hourly:     weather.NextHours(*snap.Envelope, p.clock.Now(), p.window),
	}
	if snap.Current != nil {
		cur := snap.Current.Sample
		msg.Current = &cur
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal forecast: %w", err)
	}
	if err := p.sink.Publish(p.topic, data); err != nil {
		return err
	}
	if p.published != nil {
		p.published.Inc()
	}
	p.logger.Debug("published forecast", "topic", p.topic, "snapshot", snap.ID)
	return nil
}

// Client is a paho-backed Sink.
type Client struct {
	client mqtt.Client
	logger *slog.Logger
}

// NewClient configures a broker connection; call Connect before publishing.
func NewClient(broker, clientID string, logger *slog.Logger) *Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	return &Client{client: mqtt.NewClient(opts), logger: logger}
}

// Connect waits for the first connection or ctx cancellation.
func (c *Client) Connect(ctx context.Context) error {
	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Publish sends a retained QoS 1 message.
func (c *Client) Publish(topic string, payload []byte) error {
	if !c.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	token := c.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Disconnect closes the broker connection.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
	c.logger.Info("mqtt disconnected")
}
