// Package mediastream speaks the Twilio Media Streams protocol on one side
// and the live scoring event protocol on the other.
package mediastream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sulisumenpeter/shield-voice-aware/internal/models"
)

// ErrUnknownEvent marks inbound frames whose event tag is not handled.
var ErrUnknownEvent = errors.New("mediastream: unknown event")

// InboundEvent is one of StartEvent, MediaEvent or StopEvent.
type InboundEvent interface {
	inbound()
}

type StartEvent struct {
	StreamSID string
	CallSID   string
}

type MediaEvent struct {
	Payload string
}

type StopEvent struct{}

func (StartEvent) inbound() {}
func (MediaEvent) inbound() {}
func (StopEvent) inbound()  {}

type rawInbound struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Start     *struct {
		StreamSID string `json:"streamSid"`
		CallSID   string `json:"callSid"`
	} `json:"start"`
	Media *struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

// ParseInbound decodes one frame. Unknown tags return ErrUnknownEvent.
func ParseInbound(data []byte) (InboundEvent, error) {
	var raw rawInbound
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	switch raw.Event {
	case "start":
		ev := StartEvent{StreamSID: raw.StreamSID}
		if raw.Start != nil {
			if ev.StreamSID == "" {
				ev.StreamSID = raw.Start.StreamSID
			}
			ev.CallSID = raw.Start.CallSID
		}
		return ev, nil
	case "media":
		ev := MediaEvent{}
		if raw.Media != nil {
			ev.Payload = raw.Media.Payload
		}
		return ev, nil
	case "stop":
		return StopEvent{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, raw.Event)
	}
}

const (
	TypeConnected = "connected"
	TypeSegment   = "transcript.segment"
	TypeCallEnded = "call.ended"
)

type ConnectedEvent struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
}

type SegmentEvent struct {
	Type           string            `json:"type"`
	CallID         string            `json:"call_id"`
	Language       string            `json:"language"`
	Speaker        string            `json:"speaker"`
	Text           string            `json:"text"`
	Label          string            `json:"label"`
	Rationale      string            `json:"rationale"`
	Risk           int               `json:"risk"`
	CumulativeRisk int               `json:"cumulative_risk"`
	Spoof          *models.SpoofInfo `json:"spoof"`
	TS             int64             `json:"ts"`
}

type CallEndedEvent struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
}

// NewSegmentEvent renders a segment for the wire. ts is Unix milliseconds.
func NewSegmentEvent(seg models.Segment) SegmentEvent {
	return SegmentEvent{
		Type:           TypeSegment,
		CallID:         seg.CallID,
		Language:       seg.Language,
		Speaker:        seg.Speaker,
		Text:           seg.Text,
		Label:          seg.Label,
		Rationale:      seg.Rationale,
		Risk:           seg.Risk,
		CumulativeRisk: seg.CumulativeRisk,
		Spoof:          seg.Spoof,
		TS:             seg.Timestamp.UnixMilli(),
	}
}
