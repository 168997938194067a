// Package risk turns classifier labels and anti-spoof probabilities into
// per-segment and per-call risk scores on a 0..100 scale.
package risk

import (
	"math"
	"strings"
)

const (
	DefaultSpoofWeight    = 0.35
	DefaultSpoofThreshold = 0.5

	// DefaultSpoofProbability stands in for the spoof term until a session has
	// received its first detector result. Zero pulls the fused score toward
	// the classifier baseline.
	DefaultSpoofProbability = 0.0
)

const (
	LabelSafe       = "Safe"
	LabelSuspicious = "Suspicious"
	LabelScam       = "Scam"

	SpoofSynthetic = "synthetic"
	SpoofGenuine   = "genuine"
	SpoofUnknown   = "unknown"
)

// LabelRisk maps a classifier label to its baseline risk. Unknown labels score 30.
func LabelRisk(label string) int {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "scam":
		return 90
	case "suspicious":
		return 55
	case "safe":
		return 10
	default:
		return 30
	}
}

// IsSafe reports whether label is the Safe label, ignoring case.
func IsSafe(label string) bool {
	return strings.EqualFold(strings.TrimSpace(label), LabelSafe)
}

// Fuse blends the baseline with the spoof probability using weight w in [0,1].
func Fuse(baseline int, spoofProbability, w float64) int {
	w = clamp(w, 0, 1)
	p := clamp(spoofProbability, 0, 1)
	return clampRisk(roundHalfUp(float64(baseline)*(1-w) + p*100*w))
}

// SpoofLabel labels a probability against threshold.
func SpoofLabel(p, threshold float64) string {
	if p >= threshold {
		return SpoofSynthetic
	}
	return SpoofGenuine
}

func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func clampRisk(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
