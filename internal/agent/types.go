package agent

import (
	"context"

	"github.com/sulisumenpeter/shield-voice-aware/internal/models"
)

// Transcriber turns one WAV chunk into text. An empty string means silence.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Classifier labels an utterance as Safe, Suspicious or Scam.
type Classifier interface {
	Classify(ctx context.Context, text string) (label, rationale string, err error)
}

// SpoofDetector returns the probability in [0,1] that a chunk is synthetic
// speech. Implementations bound their own latency; any error is treated as
// "no result for this chunk".
type SpoofDetector interface {
	Detect(ctx context.Context, wav []byte) (float64, error)
}

// Recorder persists the durable side of a scored segment.
type Recorder interface {
	RecordSegment(ctx context.Context, seg models.Segment) error
	UpsertCall(ctx context.Context, call models.Call) error
	RecordAlert(ctx context.Context, alert models.Alert) error
}

// Archiver stores the raw WAV of a flushed chunk. chunk is the flush
// number within the call.
type Archiver interface {
	Archive(ctx context.Context, callID string, chunk int, wav []byte) error
}

// EmitFunc delivers a segment to the live client.
type EmitFunc func(seg models.Segment) error
