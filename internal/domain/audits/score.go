package audits

// Weights in percent of the composite. They sum to 100.
const (
	WeightTechnical   = 25
	WeightOnPage      = 25
	WeightPerformance = 25
	WeightMobile      = 15
	WeightSecurity    = 10
)

// SubScores holds the five category sub-scores. Nil means the category is missing.
type SubScores struct {
	Technical   *int
	OnPage      *int
	Performance *int
	Mobile      *int
	Security    *int
}

// CompositeScore maps category sub-scores to one score in [0,100].
//
// A missing category contributes 0; the remaining weights are not rescaled.
// Rounding is half to even on the exact weighted sum, so 76.5 becomes 76
// and 77.5 becomes 78.
func CompositeScore(s SubScores) int {
	sum := weighted(s.Technical, WeightTechnical) +
		weighted(s.OnPage, WeightOnPage) +
		weighted(s.Performance, WeightPerformance) +
		weighted(s.Mobile, WeightMobile) +
		weighted(s.Security, WeightSecurity)

	// sum is the score scaled by 100
	q, r := sum/100, sum%100
	if r > 50 || (r == 50 && q%2 == 1) {
		q++
	}
	return clamp(q, 0, 100)
}

func weighted(v *int, w int) int {
	if v == nil {
		return 0
	}
	return clamp(*v, 0, 100) * w
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
