package model

// LatencySummary summarizes a series of RTT samples. All values are in
// milliseconds, except Count.
type LatencySummary struct {
	// Count is the number of successful samples summarized.
	Count int `json:"count"`

	// Min is the smallest observed RTT.
	Min float64 `json:"min"`

	// P25 is the 25th percentile.
	P25 float64 `json:"p25"`

	// Median is the 50th percentile.
	Median float64 `json:"median"`

	// Mean is the arithmetic mean.
	Mean float64 `json:"mean"`

	// P75 is the 75th percentile.
	P75 float64 `json:"p75"`

	// P95 is the 95th percentile.
	P95 float64 `json:"p95"`

	// Max is the largest observed RTT.
	Max float64 `json:"max"`

	// StdDev is the sample standard deviation.
	StdDev float64 `json:"std_dev"`

	// Jitter is the mean absolute difference between consecutive RTTs.
	Jitter float64 `json:"jitter"`
}
