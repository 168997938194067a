package store

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/sulisumenpeter/shield-voice-aware/internal/logging"
	"github.com/sulisumenpeter/shield-voice-aware/internal/metrics"
	"github.com/sulisumenpeter/shield-voice-aware/internal/models"
)

// Recorder is the narrow persistence surface used by call sessions.
type Recorder interface {
	RecordSegment(ctx context.Context, seg models.Segment) error
	UpsertCall(ctx context.Context, call models.Call) error
	RecordAlert(ctx context.Context, alert models.Alert) error
}

// Multi writes to every recorder and joins their errors.
type Multi []Recorder

func (m Multi) RecordSegment(ctx context.Context, seg models.Segment) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordSegment(ctx, seg))
	}
	return errors.Join(errs...)
}

func (m Multi) UpsertCall(ctx context.Context, call models.Call) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.UpsertCall(ctx, call))
	}
	return errors.Join(errs...)
}

func (m Multi) RecordAlert(ctx context.Context, alert models.Alert) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordAlert(ctx, alert))
	}
	return errors.Join(errs...)
}

// BestEffort logs and counts failures of the wrapped recorder and never
// returns an error.
type BestEffort struct {
	next    Recorder
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewBestEffort(next Recorder, m *metrics.Metrics) *BestEffort {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &BestEffort{next: next, metrics: m, log: logging.WithComponent("store")}
}

func (b *BestEffort) RecordSegment(ctx context.Context, seg models.Segment) error {
	b.check("transcript", seg.CallID, b.next.RecordSegment(ctx, seg))
	return nil
}

func (b *BestEffort) UpsertCall(ctx context.Context, call models.Call) error {
	b.check("call", call.ID, b.next.UpsertCall(ctx, call))
	return nil
}

func (b *BestEffort) RecordAlert(ctx context.Context, alert models.Alert) error {
	b.check("alert", alert.CallID, b.next.RecordAlert(ctx, alert))
	return nil
}

func (b *BestEffort) check(record, callID string, err error) {
	if err == nil {
		return
	}
	b.metrics.RecordPersistError(record)
	b.log.Warn().Err(err).Str("record", record).Str("callId", callID).Msg("persist failed")
}

// LogOnly stands in when no database is configured.
type LogOnly struct {
	log zerolog.Logger
}

func NewLogOnly() *LogOnly {
	return &LogOnly{log: logging.WithComponent("store")}
}

func (l *LogOnly) RecordSegment(ctx context.Context, seg models.Segment) error {
	l.log.Debug().Str("callId", seg.CallID).Str("label", seg.Label).Msg("transcript (not persisted)")
	return nil
}

func (l *LogOnly) UpsertCall(ctx context.Context, call models.Call) error {
	l.log.Debug().Str("callId", call.ID).Int("riskScore", call.RiskScore).Msg("call (not persisted)")
	return nil
}

func (l *LogOnly) RecordAlert(ctx context.Context, alert models.Alert) error {
	l.log.Debug().Str("callId", alert.CallID).Str("level", alert.Level).Msg("alert (not persisted)")
	return nil
}
