package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sulisumenpeter/shield-voice-aware/internal/audio"
	"github.com/sulisumenpeter/shield-voice-aware/internal/logging"
	"github.com/sulisumenpeter/shield-voice-aware/internal/metrics"
	"github.com/sulisumenpeter/shield-voice-aware/internal/models"
	"github.com/sulisumenpeter/shield-voice-aware/internal/risk"
	"github.com/sulisumenpeter/shield-voice-aware/internal/stream"
)

// ErrClassification aborts a single flush. The session stays usable.
var ErrClassification = errors.New("classification failed")

// DefaultArchiveTimeout bounds one background chunk upload.
const DefaultArchiveTimeout = 10 * time.Second

// Options tune fusion and chunking for every session of a pipeline.
type Options struct {
	SpoofWeight    float64
	SpoofThreshold float64
	ChunkTarget    time.Duration
	ArchiveTimeout time.Duration
}

// DefaultOptions returns weight 0.35, threshold 0.5 and 1500 ms chunks.
func DefaultOptions() Options {
	return Options{
		SpoofWeight:    risk.DefaultSpoofWeight,
		SpoofThreshold: risk.DefaultSpoofThreshold,
		ChunkTarget:    stream.DefaultChunkTarget,
		ArchiveTimeout: DefaultArchiveTimeout,
	}
}

// Deps are the external collaborators of a pipeline. Spoof, Recorder and
// Archiver may be nil.
type Deps struct {
	Transcriber Transcriber
	Classifier  Classifier
	Spoof       SpoofDetector
	Recorder    Recorder
	Archiver    Archiver
	Metrics     *metrics.Metrics
}

// Pipeline holds what sessions share. It carries no per-call state.
type Pipeline struct {
	deps Deps
	opts Options
	now  func() time.Time
}

func NewPipeline(deps Deps, opts Options) *Pipeline {
	if deps.Metrics == nil {
		deps.Metrics = metrics.DefaultMetrics
	}
	if opts.ArchiveTimeout <= 0 {
		opts.ArchiveTimeout = DefaultArchiveTimeout
	}
	return &Pipeline{deps: deps, opts: opts, now: time.Now}
}

// CallSession owns the buffer, spoof state and running risk of one call.
// Its methods must be called from a single goroutine; flush work runs inline
// so segment N is fully emitted before chunk N+1 is processed.
type CallSession struct {
	p        *Pipeline
	callID   string
	userID   string
	language string
	emit     EmitFunc
	log      zerolog.Logger

	chunker  *stream.Chunker
	agg      risk.Aggregator
	flushes  int
	archives sync.WaitGroup

	spoofScore *float64
	spoofLabel string
}

// NewSession starts a session. language defaults to "en".
func (p *Pipeline) NewSession(callID, userID, language string, emit EmitFunc) *CallSession {
	if language == "" {
		language = "en"
	}
	return &CallSession{
		p:          p,
		callID:     callID,
		userID:     userID,
		language:   language,
		emit:       emit,
		log:        logging.WithCall("agent", callID, userID),
		chunker:    stream.NewChunker(p.opts.ChunkTarget),
		spoofLabel: risk.SpoofUnknown,
	}
}

func (s *CallSession) CallID() string   { return s.callID }
func (s *CallSession) Language() string { return s.language }

// CumulativeRisk is the rounded mean of every fused risk so far.
func (s *CallSession) CumulativeRisk() int { return s.agg.Cumulative() }

// Segments is the number of segments emitted.
func (s *CallSession) Segments() int { return s.agg.Count() }

// Spoof returns the latest spoof observation, nil if none has arrived yet.
func (s *CallSession) Spoof() *models.SpoofInfo {
	if s.spoofScore == nil {
		return nil
	}
	return &models.SpoofInfo{
		Score:     *s.spoofScore,
		Label:     s.spoofLabel,
		Threshold: s.p.opts.SpoofThreshold,
	}
}

// HandleMedia buffers decoded 8 kHz samples and flushes once the chunk
// target is reached.
func (s *CallSession) HandleMedia(ctx context.Context, samples []int16) error {
	chunk, ready := s.chunker.Append(samples)
	if !ready {
		return nil
	}
	s.p.deps.Metrics.RecordFlush("target")
	return s.flush(ctx, chunk)
}

// Finish flushes the trailing partial chunk. Nothing happens when the
// buffer is empty.
func (s *CallSession) Finish(ctx context.Context) error {
	chunk := s.chunker.Flush()
	if len(chunk) == 0 {
		return nil
	}
	s.p.deps.Metrics.RecordFlush("final")
	return s.flush(ctx, chunk)
}

// Wait blocks until background chunk uploads have finished.
func (s *CallSession) Wait() { s.archives.Wait() }

// Discard drops buffered audio without scoring it.
func (s *CallSession) Discard() {
	if n := s.chunker.Pending(); n > 0 {
		s.log.Debug().Int("samples", n).Msg("discarding partial chunk")
	}
	s.chunker.Discard()
}

func (s *CallSession) flush(ctx context.Context, chunk []int16) error {
	m := s.p.deps.Metrics
	index := s.flushes
	s.flushes++

	wav, err := audio.ChunkWAV(chunk)
	if err != nil {
		m.RecordChunkDropped("encode")
		return fmt.Errorf("encode chunk: %w", err)
	}

	s.archive(ctx, index, wav)

	var (
		g        errgroup.Group
		spoofP   float64
		spoofErr = errSpoofDisabled
	)
	if s.p.deps.Spoof != nil {
		g.Go(func() error {
			start := time.Now()
			spoofP, spoofErr = s.p.deps.Spoof.Detect(ctx, wav)
			m.RecordExternalCall("antispoof", spoofErr, time.Since(start).Seconds())
			return nil
		})
	}
	join := func() {
		_ = g.Wait()
		s.updateSpoof(spoofP, spoofErr)
	}

	text := s.transcribe(ctx, wav)
	if text == "" {
		join()
		m.RecordChunkDropped("empty_text")
		s.log.Debug().Int("chunk", index).Msg("no speech in chunk")
		return nil
	}

	start := time.Now()
	label, rationale, err := s.p.deps.Classifier.Classify(ctx, text)
	m.RecordExternalCall("classifier", err, time.Since(start).Seconds())
	if err != nil {
		join()
		m.RecordChunkDropped("classification")
		return fmt.Errorf("%w: %v", ErrClassification, err)
	}

	join()

	prob := risk.DefaultSpoofProbability
	if s.spoofScore != nil {
		prob = *s.spoofScore
	}
	fused := risk.Fuse(risk.LabelRisk(label), prob, s.p.opts.SpoofWeight)
	cumulative := s.agg.Add(fused)

	seg := models.Segment{
		Index:          s.agg.Count() - 1,
		Chunk:          index,
		CallID:         s.callID,
		UserID:         s.userID,
		Language:       s.language,
		Speaker:        models.SpeakerCaller,
		Text:           text,
		Label:          label,
		Rationale:      rationale,
		Risk:           fused,
		CumulativeRisk: cumulative,
		Spoof:          s.Spoof(),
		Timestamp:      s.p.now(),
	}

	s.persist(ctx, seg)

	m.RecordSegment(label)
	s.log.Info().
		Int("segment", seg.Index).
		Str("label", label).
		Int("risk", fused).
		Int("cumulativeRisk", cumulative).
		Msg("segment scored")

	if s.emit == nil {
		return nil
	}
	if err := s.emit(seg); err != nil {
		return fmt.Errorf("emit segment: %w", err)
	}
	return nil
}

var errSpoofDisabled = errors.New("anti-spoof disabled")

// archive uploads the chunk in the background under its own timeout so a
// slow store never holds up scoring or the live event. chunk counts every
// flush, including those that produce no segment.
func (s *CallSession) archive(ctx context.Context, chunk int, wav []byte) {
	a := s.p.deps.Archiver
	if a == nil {
		return
	}
	s.archives.Add(1)
	go func() {
		defer s.archives.Done()
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.p.opts.ArchiveTimeout)
		defer cancel()
		if err := a.Archive(actx, s.callID, chunk, wav); err != nil {
			s.p.deps.Metrics.RecordPersistError("audio")
			s.log.Warn().Err(err).Int("chunk", chunk).Msg("chunk archive failed")
		}
	}()
}

func (s *CallSession) transcribe(ctx context.Context, wav []byte) string {
	start := time.Now()
	text, err := s.p.deps.Transcriber.Transcribe(ctx, wav)
	s.p.deps.Metrics.RecordExternalCall("transcription", err, time.Since(start).Seconds())
	if err != nil {
		s.log.Warn().Err(err).Msg("transcription failed")
		return ""
	}
	return strings.TrimSpace(text)
}

// updateSpoof keeps the previous observation when the detector had nothing.
func (s *CallSession) updateSpoof(p float64, err error) {
	if err != nil {
		if !errors.Is(err, errSpoofDisabled) {
			s.p.deps.Metrics.RecordSpoofUnavailable()
			s.log.Debug().Err(err).Msg("anti-spoof unavailable")
		}
		return
	}
	score := p
	s.spoofScore = &score
	s.spoofLabel = risk.SpoofLabel(p, s.p.opts.SpoofThreshold)
}

func (s *CallSession) persist(ctx context.Context, seg models.Segment) {
	rec := s.p.deps.Recorder
	if rec == nil || s.userID == "" {
		return
	}
	if err := rec.RecordSegment(ctx, seg); err != nil {
		s.log.Warn().Err(err).Msg("record segment failed")
	}
	if err := rec.UpsertCall(ctx, models.Call{
		ID:        s.callID,
		UserID:    s.userID,
		RiskScore: seg.CumulativeRisk,
		Direction: models.DirectionInbound,
		Channel:   models.ChannelTwilio,
	}); err != nil {
		s.log.Warn().Err(err).Msg("upsert call failed")
	}
	if risk.IsSafe(seg.Label) {
		return
	}
	if err := rec.RecordAlert(ctx, models.Alert{
		UserID:  s.userID,
		CallID:  s.callID,
		Level:   strings.ToLower(seg.Label),
		Message: fmt.Sprintf("Detected %s: %s", seg.Label, seg.Rationale),
	}); err != nil {
		s.log.Warn().Err(err).Msg("record alert failed")
	}
}
