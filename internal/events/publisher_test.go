package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"

	"github.com/sulisumenpeter/shield-voice-aware/internal/metrics"
	"github.com/sulisumenpeter/shield-voice-aware/internal/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { f.closed = true; return nil }

func newTestPublisher(seg, alert *fakeWriter) (*Publisher, *metrics.Metrics) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	p := New(Config{TopicSegments: "call.segments", TopicAlerts: "call.alerts"}, m)
	p.segments, p.alerts, p.enabled = seg, alert, true
	p.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return p, m
}

func TestNew_Disabled(t *testing.T) {
	p := New(Config{Enabled: true}, metrics.NewMetrics(prometheus.NewRegistry()))
	if p.enabled {
		t.Fatalf("publisher without brokers must be disabled")
	}
	if err := p.RecordSegment(context.Background(), models.Segment{CallID: "CA1"}); err != nil {
		t.Fatalf("log-only publish failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPublisher_SegmentKeyedByCall(t *testing.T) {
	seg, alert := &fakeWriter{}, &fakeWriter{}
	p, m := newTestPublisher(seg, alert)

	err := p.RecordSegment(context.Background(), models.Segment{CallID: "CA1", Label: "Scam", Risk: 59})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(seg.msgs) != 1 || len(alert.msgs) != 0 {
		t.Fatalf("expected one segment message, got %d/%d", len(seg.msgs), len(alert.msgs))
	}
	msg := seg.msgs[0]
	if string(msg.Key) != "CA1" {
		t.Fatalf("unexpected key %q", msg.Key)
	}
	var env struct {
		ID         string         `json:"id"`
		Type       string         `json:"type"`
		CallID     string         `json:"call_id"`
		OccurredAt int64          `json:"occurred_at"`
		Data       models.Segment `json:"data"`
	}
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.ID == "" || env.Type != TypeSegment || env.OccurredAt != 1700000000000 || env.Data.Risk != 59 {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if got := testutil.ToFloat64(m.KafkaPublishTotal.WithLabelValues("call.segments")); got != 1 {
		t.Fatalf("expected publish counter 1, got %v", got)
	}
}

func TestPublisher_AlertTopicAndErrors(t *testing.T) {
	seg, alert := &fakeWriter{}, &fakeWriter{err: errors.New("broker down")}
	p, m := newTestPublisher(seg, alert)

	if err := p.RecordAlert(context.Background(), models.Alert{CallID: "CA1", Level: "scam"}); err == nil {
		t.Fatalf("expected write error")
	}
	if got := testutil.ToFloat64(m.KafkaPublishErrors.WithLabelValues("call.alerts")); got != 1 {
		t.Fatalf("expected error counter 1, got %v", got)
	}
	if err := p.UpsertCall(context.Background(), models.Call{ID: "CA1"}); err != nil {
		t.Fatalf("upsert should be a no-op: %v", err)
	}
	if len(seg.msgs) != 0 {
		t.Fatalf("call upserts are not broadcast")
	}
	if err := p.Close(); err != nil || !seg.closed || !alert.closed {
		t.Fatalf("close should close both writers")
	}
}
