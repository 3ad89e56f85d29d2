// Package summary computes latency statistics over a series of RTT
// samples expressed in milliseconds.
package summary

import (
	"errors"

	"github.com/montanaflynn/stats"

	"github.com/m-lab/bloatprobe/model"
)

// ErrNoSamples is returned when a measurement phase produced no
// successful latency samples, e.g. because no target was reachable.
var ErrNoSamples = errors.New("no successful latency samples: could not reach any host")

// ErrTooFewSamples is returned when there are not enough samples to
// compute a sample standard deviation and jitter.
var ErrTooFewSamples = errors.New("too few latency samples")

// Compute summarizes |rtts|, a series of RTTs in milliseconds, in
// sampling order. At least two samples are required.
func Compute(rtts []float64) (model.LatencySummary, error) {
	if len(rtts) == 0 {
		return model.LatencySummary{}, ErrNoSamples
	}
	if len(rtts) < 2 {
		return model.LatencySummary{}, ErrTooFewSamples
	}
	// Min, Median, Mean, Max and the sample standard deviation are
	// defined for every series of two or more samples and only error on
	// empty input, which is excluded above.
	min, _ := stats.Min(rtts)
	median, _ := stats.Median(rtts)
	mean, _ := stats.Mean(rtts)
	max, _ := stats.Max(rtts)
	stddev, _ := stats.StandardDeviationSample(rtts)
	return model.LatencySummary{
		Count:  len(rtts),
		Min:    min,
		P25:    percentile(rtts, 25),
		Median: median,
		Mean:   mean,
		P75:    percentile(rtts, 75),
		P95:    percentile(rtts, 95),
		Max:    max,
		StdDev: stddev,
		Jitter: jitter(rtts),
	}, nil
}

// percentile interpolates the pct-th percentile of a non-empty series.
// stats.Percentile errors when the requested rank falls before the
// first sample, which happens for low percentiles of short series
// (e.g. the 25th of two or three samples); nearest-rank is defined for
// every non-empty series, so fall back to it rather than report NaN.
func percentile(rtts []float64, pct float64) float64 {
	p, err := stats.Percentile(rtts, pct)
	if err != nil {
		p, _ = stats.PercentileNearestRank(rtts, pct)
	}
	return p
}

// jitter computes the mean absolute difference between consecutive
// RTTs. Unlike the other statistics it depends on sample order, which
// is why it is not delegated to the stats package.
func jitter(rtts []float64) float64 {
	sum := 0.0
	for i := 0; i < len(rtts)-1; i++ {
		d := rtts[i+1] - rtts[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum / float64(len(rtts)-1)
}

// Delta returns |loaded| minus |unloaded|, field by field. On a
// bloated link every field of the result is expected to be positive.
func Delta(unloaded, loaded model.LatencySummary) model.LatencySummary {
	return model.LatencySummary{
		Count:  loaded.Count - unloaded.Count,
		Min:    loaded.Min - unloaded.Min,
		P25:    loaded.P25 - unloaded.P25,
		Median: loaded.Median - unloaded.Median,
		Mean:   loaded.Mean - unloaded.Mean,
		P75:    loaded.P75 - unloaded.P75,
		P95:    loaded.P95 - unloaded.P95,
		Max:    loaded.Max - unloaded.Max,
		StdDev: loaded.StdDev - unloaded.StdDev,
		Jitter: loaded.Jitter - unloaded.Jitter,
	}
}
