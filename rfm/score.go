package rfm

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Score assigns R, F and M quintile scores (1-5) to every customer, sums them
// and sets the segment. A customer's score is the empirical CDF of its value
// within the population, scaled to five buckets, so equal values always
// share a score. Lower recency is better; higher frequency and monetary are.
func Score(customers []Customer) {
	if len(customers) == 0 {
		return
	}

	recency := make([]float64, len(customers))
	frequency := make([]float64, len(customers))
	monetary := make([]float64, len(customers))
	for i, c := range customers {
		recency[i] = -float64(c.Recency)
		frequency[i] = float64(c.Frequency)
		monetary[i] = c.Monetary.InexactFloat64()
	}

	rs := quintiles(recency)
	fs := quintiles(frequency)
	ms := quintiles(monetary)

	for i := range customers {
		c := &customers[i]
		c.RScore, c.FScore, c.MScore = rs[i], fs[i], ms[i]
		c.Score = c.RScore + c.FScore + c.MScore
		c.Segment = SegmentFor(c.Score)
	}
}

// SegmentFor maps a total score (3-15) to a segment name.
func SegmentFor(score int) string {
	switch {
	case score >= 12:
		return SegmentChampions
	case score >= 9:
		return SegmentLoyal
	case score >= 6:
		return SegmentAtRisk
	default:
		return SegmentLost
	}
}

func quintiles(values []float64) []int {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	out := make([]int, len(values))
	for i, v := range values {
		p := stat.CDF(v, stat.Empirical, sorted, nil)
		s := int(math.Ceil(5*p - 1e-9))
		if s < 1 {
			s = 1
		}
		if s > 5 {
			s = 5
		}
		out[i] = s
	}
	return out
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
