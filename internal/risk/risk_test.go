package risk

import (
	"math"
	"math/rand"
	"testing"
)

func TestLabelRisk(t *testing.T) {
	tests := []struct {
		label string
		want  int
	}{
		{"Scam", 90},
		{"scam", 90},
		{"Suspicious", 55},
		{"SUSPICIOUS", 55},
		{"Safe", 10},
		{" safe ", 10},
		{"Unclear", 30},
		{"", 30},
	}
	for _, tt := range tests {
		if got := LabelRisk(tt.label); got != tt.want {
			t.Errorf("LabelRisk(%q) = %d, want %d", tt.label, got, tt.want)
		}
	}
}

func TestFuse_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		baseline int
		p        float64
		w        float64
		want     int
	}{
		{"scam without any spoof signal uses default probability", 90, DefaultSpoofProbability, 0.35, 59},
		{"safe with strong spoof", 10, 0.8, 0.35, 35},
		{"weight zero ignores spoof", 55, 1, 0, 55},
		{"weight one is spoof only", 10, 0.42, 1, 42},
		{"weight clamped above one", 10, 0.42, 3, 42},
		{"probability clamped", 90, 2, 0.5, 95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fuse(tt.baseline, tt.p, tt.w); got != tt.want {
				t.Fatalf("Fuse(%d, %v, %v) = %d, want %d", tt.baseline, tt.p, tt.w, got, tt.want)
			}
		})
	}
}

func TestDefaultSpoofProbabilityIsZero(t *testing.T) {
	// Sessions without a detector result fuse as if the voice were genuine.
	if DefaultSpoofProbability != 0 {
		t.Fatalf("default spoof probability changed to %v", DefaultSpoofProbability)
	}
}

func TestSpoofLabel(t *testing.T) {
	if SpoofLabel(0.5, 0.5) != SpoofSynthetic {
		t.Fatalf("threshold is inclusive")
	}
	if SpoofLabel(0.49, 0.5) != SpoofGenuine {
		t.Fatalf("below threshold should be genuine")
	}
	if SpoofLabel(0.7, 0.8) != SpoofGenuine {
		t.Fatalf("configured threshold should be honoured")
	}
}

func TestAggregator_TwoSegments(t *testing.T) {
	var a Aggregator
	if a.Cumulative() != 0 || a.Count() != 0 {
		t.Fatalf("expected zero state")
	}
	if got := a.Add(59); got != 59 {
		t.Fatalf("after first segment got %d", got)
	}
	if got := a.Add(35); got != 47 {
		t.Fatalf("after second segment got %d, want 47", got)
	}
	if a.Count() != 2 {
		t.Fatalf("expected count 2, got %d", a.Count())
	}
}

func TestAggregator_CarriesRoundedValue(t *testing.T) {
	tests := []struct {
		name  string
		risks []int
		want  []int
	}{
		{"rounding carried forward", []int{0, 1, 0}, []int{0, 1, 1}},
		{"half rounds up", []int{10, 11}, []int{10, 11}},
		{"scam then safe", []int{59, 35, 10}, []int{59, 47, 35}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var a Aggregator
			for i, r := range tc.risks {
				if got := a.Add(r); got != tc.want[i] {
					t.Fatalf("segment %d: got %d, want %d", i+1, got, tc.want[i])
				}
			}
		})
	}
}

func TestAggregator_RecurrenceAndMeanBound(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(50)
		var a Aggregator
		prev, sum := 0, 0
		for i := 0; i < n; i++ {
			r := rng.Intn(101)
			sum += r
			want := int(math.Floor(float64(prev*i+r)/float64(i+1) + 0.5))
			got := a.Add(r)
			if got != want {
				t.Fatalf("n=%d segment %d: got %d, want %d", n, i+1, got, want)
			}
			if got < 0 || got > 100 {
				t.Fatalf("cumulative out of range: %d", got)
			}
			prev = got
		}
		mean := float64(sum) / float64(n)
		if math.Abs(a.Mean()-mean) > 1e-9 {
			t.Fatalf("n=%d: mean %v, want %v", n, a.Mean(), mean)
		}
		// Each step adds at most half a point of rounding, diluted by the count.
		if d := math.Abs(float64(a.Cumulative()) - mean); d > float64(n+1)/4 {
			t.Fatalf("n=%d: cumulative %d drifted %v from mean %v", n, a.Cumulative(), d, mean)
		}
	}
}

func TestAggregator_IntegralMeansAreExact(t *testing.T) {
	risks := []int{59, 35, 47, 47, 12, 82}
	var a Aggregator
	sum := 0
	for i, r := range risks {
		sum += r
		if got, want := a.Add(r), sum/(i+1); got != want {
			t.Fatalf("segment %d: got %d, want mean %d", i+1, got, want)
		}
	}
}

func TestAggregator_ClampsInput(t *testing.T) {
	var a Aggregator
	a.Add(150)
	a.Add(-20)
	if got := a.Cumulative(); got != 50 {
		t.Fatalf("expected clamped mean 50, got %d", got)
	}
}

func TestIsSafe(t *testing.T) {
	if !IsSafe("safe") || !IsSafe("Safe") || IsSafe("Suspicious") {
		t.Fatalf("IsSafe mismatch")
	}
}
