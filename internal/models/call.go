// Package models defines the records produced by a scored call.
package models

import "time"

const (
	SpeakerCaller    = "caller"
	DirectionInbound = "inbound"
	ChannelTwilio    = "twilio"
)

// SpoofInfo is the latest anti-spoof observation attached to a segment.
type SpoofInfo struct {
	Score     float64 `json:"score"`
	Label     string  `json:"label"`
	Threshold float64 `json:"threshold"`
}

// Segment is one scored chunk of caller speech. It is never mutated after
// creation. Index counts segments; Chunk counts flushes and matches the
// archived audio object of the chunk.
type Segment struct {
	Index          int        `json:"index"`
	Chunk          int        `json:"chunk"`
	CallID         string     `json:"call_id"`
	UserID         string     `json:"user_id"`
	Language       string     `json:"language"`
	Speaker        string     `json:"speaker"`
	Text           string     `json:"text"`
	Label          string     `json:"label"`
	Rationale      string     `json:"rationale"`
	Risk           int        `json:"risk"`
	CumulativeRisk int        `json:"cumulative_risk"`
	Spoof          *SpoofInfo `json:"spoof"`
	Timestamp      time.Time  `json:"ts"`
}

// Call is the upserted per-call summary.
type Call struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	RiskScore int    `json:"risk_score"`
	Direction string `json:"direction"`
	Channel   string `json:"channel"`
}

// Alert is written for every segment that is not labelled Safe.
type Alert struct {
	UserID  string `json:"user_id"`
	CallID  string `json:"call_id"`
	Level   string `json:"level"`
	Message string `json:"message"`
}
