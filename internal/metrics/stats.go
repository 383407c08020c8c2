package metrics

import "slices"

// Aggregation holds summary statistics of one series
type Aggregation struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// summarize sorts values in place
func summarize(values []float64) *Aggregation {
	if len(values) == 0 {
		return nil
	}
	slices.Sort(values)

	var sum float64
	for _, v := range values {
		sum += v
	}
	return &Aggregation{
		Count: int64(len(values)),
		Sum:   sum,
		Min:   values[0],
		Max:   values[len(values)-1],
		Mean:  sum / float64(len(values)),
		P50:   percentile(values, 0.50),
		P95:   percentile(values, 0.95),
		P99:   percentile(values, 0.99),
	}
}

// percentile linearly interpolates between closest ranks of sorted
func percentile(sorted []float64, p float64) float64 {
	switch n := len(sorted); {
	case n == 0:
		return 0
	case n == 1 || p <= 0:
		return sorted[0]
	case p >= 1:
		return sorted[n-1]
	}
	rank := p * float64(len(sorted)-1)
	i := int(rank)
	frac := rank - float64(i)
	return sorted[i] + (sorted[i+1]-sorted[i])*frac
}
