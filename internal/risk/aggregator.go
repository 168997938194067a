package risk

// Aggregator keeps the running risk of one call.
//
// Each segment updates the previous rounded value:
// cumulative = round((cumulative*count + fused) / (count+1)).
// Rounding is carried forward, so the result can sit a little away from the
// exact mean of every fused risk; Mean reports that exact value.
type Aggregator struct {
	cumulative int
	count      int
	sum        int
}

// Add folds one fused risk in and returns the new cumulative risk.
func (a *Aggregator) Add(fused int) int {
	fused = clampRisk(fused)
	next := float64(a.cumulative*a.count+fused) / float64(a.count+1)
	a.cumulative = clampRisk(roundHalfUp(next))
	a.count++
	a.sum += fused
	return a.cumulative
}

// Cumulative returns the running risk, 0 before any segment.
func (a *Aggregator) Cumulative() int { return a.cumulative }

// Mean returns the exact mean of every fused risk added.
func (a *Aggregator) Mean() float64 {
	if a.count == 0 {
		return 0
	}
	return float64(a.sum) / float64(a.count)
}

// Count returns the number of segments aggregated.
func (a *Aggregator) Count() int { return a.count }
