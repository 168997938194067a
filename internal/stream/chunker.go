// Package stream accumulates decoded telephony samples into fixed-duration
// chunks for the scoring pipeline.
package stream

import (
	"time"

	"github.com/sulisumenpeter/shield-voice-aware/internal/audio"
)

// DefaultChunkTarget is the chunk duration used when none is configured.
const DefaultChunkTarget = 1500 * time.Millisecond

// Chunker buffers 8 kHz samples for one call. It is not safe for concurrent
// use; each session owns its own Chunker.
type Chunker struct {
	target int
	buf    []int16
}

// NewChunker returns a Chunker that becomes ready after target worth of audio.
func NewChunker(target time.Duration) *Chunker {
	if target <= 0 {
		target = DefaultChunkTarget
	}
	samples := int(target.Milliseconds()) * audio.SampleRate8k / 1000
	if samples < 1 {
		samples = 1
	}
	return &Chunker{target: samples, buf: make([]int16, 0, samples)}
}

// Target returns the flush threshold in samples.
func (c *Chunker) Target() int { return c.target }

// Pending returns the number of buffered samples.
func (c *Chunker) Pending() int { return len(c.buf) }

// Append adds samples and, once the target is reached, returns the whole
// buffered chunk with ok set. The buffer is reset before returning so the
// next frames start a new chunk.
func (c *Chunker) Append(samples []int16) (chunk []int16, ok bool) {
	c.buf = append(c.buf, samples...)
	if len(c.buf) < c.target {
		return nil, false
	}
	return c.take(), true
}

// Flush returns whatever is buffered, possibly below target, and resets.
// It returns nil when nothing is buffered.
func (c *Chunker) Flush() []int16 {
	if len(c.buf) == 0 {
		return nil
	}
	return c.take()
}

// Discard drops any buffered samples.
func (c *Chunker) Discard() {
	c.buf = c.buf[:0]
}

func (c *Chunker) take() []int16 {
	chunk := c.buf
	c.buf = make([]int16, 0, c.target)
	return chunk
}
