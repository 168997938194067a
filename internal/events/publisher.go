// Package events broadcasts scored segments and alerts to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/sulisumenpeter/shield-voice-aware/internal/logging"
	"github.com/sulisumenpeter/shield-voice-aware/internal/metrics"
	"github.com/sulisumenpeter/shield-voice-aware/internal/models"
)

const (
	TypeSegment = "transcript.segment"
	TypeAlert   = "call.alert"
)

// Config holds Kafka publisher configuration.
type Config struct {
	Enabled       bool
	Brokers       []string
	TopicSegments string
	TopicAlerts   string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope wraps every published record.
type Envelope struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	CallID     string `json:"call_id"`
	OccurredAt int64  `json:"occurred_at"`
	Data       any    `json:"data"`
}

// Publisher writes segment events and alerts to separate topics. It
// satisfies the session Recorder surface; call upserts are not broadcast.
type Publisher struct {
	segments      messageWriter
	alerts        messageWriter
	topicSegments string
	topicAlerts   string
	enabled       bool
	metrics       *metrics.Metrics
	log           zerolog.Logger
	now           func() time.Time
}

// New returns a publisher. Disabled or broker-less configs log only.
func New(cfg Config, m *metrics.Metrics) *Publisher {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	p := &Publisher{
		topicSegments: cfg.TopicSegments,
		topicAlerts:   cfg.TopicAlerts,
		metrics:       m,
		log:           logging.WithComponent("events"),
		now:           time.Now,
	}
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		p.log.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{Dial: dialer.DialFunc}

	p.segments = newWriter(cfg.Brokers, cfg.TopicSegments, transport)
	p.alerts = newWriter(cfg.Brokers, cfg.TopicAlerts, transport)
	p.enabled = true

	p.log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicSegments", cfg.TopicSegments).
		Str("topicAlerts", cfg.TopicAlerts).
		Msg("Kafka publisher initialized")
	return p
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

func (p *Publisher) RecordSegment(ctx context.Context, seg models.Segment) error {
	return p.publish(ctx, p.segments, p.topicSegments, TypeSegment, seg.CallID, seg)
}

func (p *Publisher) RecordAlert(ctx context.Context, alert models.Alert) error {
	return p.publish(ctx, p.alerts, p.topicAlerts, TypeAlert, alert.CallID, alert)
}

// UpsertCall is a no-op; the running risk travels on every segment event.
func (p *Publisher) UpsertCall(ctx context.Context, call models.Call) error { return nil }

func (p *Publisher) publish(ctx context.Context, w messageWriter, topic, eventType, callID string, data any) error {
	start := time.Now()
	payload, err := json.Marshal(Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		CallID:     callID,
		OccurredAt: p.now().UnixMilli(),
		Data:       data,
	})
	if err != nil {
		p.log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	p.log.Debug().
		Str("topic", topic).
		Str("key", callID).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || w == nil {
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(callID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
		},
	}
	err = w.WriteMessages(ctx, msg)
	p.metrics.RecordKafkaPublish(topic, err, time.Since(start).Seconds())
	if err != nil {
		p.log.Error().Err(err).Str("topic", topic).Str("key", callID).Msg("Failed to write to Kafka")
		return err
	}
	return nil
}

// Close closes both writers.
func (p *Publisher) Close() error {
	var err error
	for _, w := range []messageWriter{p.segments, p.alerts} {
		if w == nil {
			continue
		}
		if e := w.Close(); e != nil {
			p.log.Error().Err(e).Msg("Error closing Kafka writer")
			err = e
		}
	}
	return err
}
