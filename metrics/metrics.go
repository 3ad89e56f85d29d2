package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics shared by the one-shot and daemon modes.
var (
	ActiveTests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bloatprobe_active_tests",
			Help: "A gauge of bufferbloat tests currently running.",
		})
	TestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloatprobe_tests_total",
			Help: "Number of bufferbloat tests run by this process.",
		},
		[]string{"result"})
	ProbeCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloatprobe_probes_total",
			Help: "Number of TCP connect probes, by phase and result.",
		},
		[]string{"phase", "result"})
	DownloadRate = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "bloatprobe_download_rate_mbps",
			Help: "A histogram of aggregate download rates.",
			Buckets: []float64{
				.1, .15, .25, .4, .6,
				1, 1.5, 2.5, 4, 6,
				10, 15, 25, 40, 60,
				100, 150, 250, 400, 600,
				1000},
		})
	Latency = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bloatprobe_latency_ms",
			Help: "Connect latency statistics of the most recent test, by phase.",
		},
		[]string{"phase", "stat"})
	AddedMedianLatency = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bloatprobe_added_median_latency_ms",
			Help: "Median connect latency added under load in the most recent test.",
		})
)
