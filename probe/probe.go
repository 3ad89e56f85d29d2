// Package probe runs the bufferbloat measurement: an unloaded latency
// sampling phase, then a loaded phase during which parallel downloads
// saturate the link while the sampling continues. Comparing the two
// latency distributions estimates how much queueing delay the link's
// buffers add under load.
package probe

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/m-lab/go/memoryless"

	"github.com/m-lab/bloatprobe/download"
	"github.com/m-lab/bloatprobe/logging"
	"github.com/m-lab/bloatprobe/metadata"
	"github.com/m-lab/bloatprobe/metrics"
	"github.com/m-lab/bloatprobe/model"
	"github.com/m-lab/bloatprobe/summary"
	"github.com/m-lab/bloatprobe/tcpping"
	"github.com/m-lab/bloatprobe/version"
)

// Config holds the parameters of one bufferbloat test.
type Config struct {
	// Targets are the anycast hosts used for latency sampling.
	Targets []string

	// Port is the TCP port dialed on every target.
	Port int

	// URLs are the large files downloaded to load the link.
	URLs []string

	// Parallel is the number of concurrent download workers.
	Parallel int

	// Duration is the length of each of the two phases.
	Duration time.Duration

	// PingInterval, when its Expected field is nonzero, overrides the
	// default sampling interval of the pinger.
	PingInterval memoryless.Config
}

// Runner runs bufferbloat tests.
type Runner struct {
	Config Config

	// Metadata is attached verbatim to every Result.
	Metadata []metadata.NameValue

	// OnMeasurement, when non-nil, receives every loaded-phase
	// measurement as it happens. Used to feed the live stream.
	OnMeasurement func(model.Measurement)
}

// Run performs a complete test and returns its Result. A Result is
// only returned when both phases produced usable latency statistics.
func (r *Runner) Run(ctx context.Context) (*model.Result, error) {
	metrics.ActiveTests.Inc()
	defer metrics.ActiveTests.Dec()
	result := &model.Result{
		Version:       version.Version,
		SchemaVersion: model.CurrentSchemaVersion,
		UUID:          uuid.NewString(),
		StartTime:     time.Now().UTC(),
		Metadata:      r.Metadata,
	}
	unloaded, _, err := r.phase(ctx, "unloaded", nil)
	if err != nil {
		metrics.TestCount.WithLabelValues("error").Inc()
		return nil, err
	}
	loaded, workers, err := r.phase(ctx, "loaded", download.New(r.Config.URLs, r.Config.Parallel))
	if err != nil {
		metrics.TestCount.WithLabelValues("error").Inc()
		return nil, err
	}
	result.EndTime = time.Now().UTC()
	result.Unloaded = unloaded
	result.Loaded = loaded
	result.Delta = summary.Delta(unloaded, loaded)
	result.Downloads = workers
	result.DownloadMbps = downloadMbps(workers)
	result.Grade = Grade(result.Delta.Median)
	metrics.DownloadRate.Observe(result.DownloadMbps)
	metrics.AddedMedianLatency.Set(result.Delta.Median)
	metrics.TestCount.WithLabelValues("okay").Inc()
	return result, nil
}

// phase runs one sampling phase of Config.Duration. When |loader| is
// non-nil the phase also runs the download workers for its duration.
func (r *Runner) phase(ctx context.Context, name string, loader *download.Loader) (model.LatencySummary, []model.WorkerResult, error) {
	logging.Logger.WithField("phase", name).Info("probe: phase start")
	defer logging.Logger.WithField("phase", name).Info("probe: phase end")
	phasectx, cancel := context.WithTimeout(ctx, r.Config.Duration)
	defer cancel()

	pinger := tcpping.New(r.Config.Targets, r.Config.Port)
	if r.Config.PingInterval.Expected > 0 {
		pinger.Interval = r.Config.PingInterval
	}
	samples := pinger.Start(phasectx)
	defer pinger.Stop(samples)

	// The measurement channel must be drained even when nobody asked
	// for live measurements, or the loader's measurement loop stalls.
	drained := make(chan struct{})
	if loader != nil {
		measurements := loader.Start(phasectx)
		go func() {
			defer close(drained)
			for m := range measurements {
				if r.OnMeasurement != nil {
					r.OnMeasurement(m)
				}
			}
		}()
	} else {
		close(drained)
	}

	var rtts []float64
	for s := range samples {
		if s.Failed() {
			metrics.ProbeCount.WithLabelValues(name, "error").Inc()
			continue
		}
		metrics.ProbeCount.WithLabelValues(name, "okay").Inc()
		rtts = append(rtts, s.Millis())
	}

	var workers []model.WorkerResult
	if loader != nil {
		workers = loader.Wait()
	}
	<-drained

	sum, err := summary.Compute(rtts)
	if err != nil {
		return model.LatencySummary{}, workers, err
	}
	exportLatency(name, sum)
	return sum, workers, nil
}

func exportLatency(phase string, s model.LatencySummary) {
	metrics.Latency.WithLabelValues(phase, "median").Set(s.Median)
	metrics.Latency.WithLabelValues(phase, "p95").Set(s.P95)
	metrics.Latency.WithLabelValues(phase, "mean").Set(s.Mean)
	metrics.Latency.WithLabelValues(phase, "jitter").Set(s.Jitter)
}

// downloadMbps converts the per-worker outcomes into the aggregate
// download rate in Mbit/s: total bytes over the elapsed time of the
// longest-running worker.
func downloadMbps(workers []model.WorkerResult) float64 {
	var bytes int64
	elapsed := time.Duration(0)
	for _, w := range workers {
		bytes += w.BytesRead
		if w.Elapsed > elapsed {
			elapsed = w.Elapsed
		}
	}
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes) * 8 / elapsed.Seconds() / 1e6
}

// Grade classifies the added median latency the way consumer
// bufferbloat testers grade their results.
func Grade(addedMedianMs float64) string {
	switch {
	case addedMedianMs < 30:
		return "A"
	case addedMedianMs < 60:
		return "B"
	case addedMedianMs < 200:
		return "C"
	case addedMedianMs < 400:
		return "D"
	default:
		return "F"
	}
}
