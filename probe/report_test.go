package probe

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/m-lab/bloatprobe/model"
	"github.com/m-lab/bloatprobe/summary"
)

func TestReport(t *testing.T) {
	color.NoColor = true
	unloaded := model.LatencySummary{
		Count: 100, Min: 10, P25: 12, Median: 15, Mean: 16,
		P75: 18, P95: 25, Max: 30, StdDev: 5, Jitter: 3,
	}
	loaded := model.LatencySummary{
		Count: 90, Min: 40, P25: 52, Median: 95, Mean: 96,
		P75: 118, P95: 225, Max: 330, StdDev: 55, Jitter: 43,
	}
	result := &model.Result{
		Unloaded:     unloaded,
		Loaded:       loaded,
		Delta:        summary.Delta(unloaded, loaded),
		DownloadMbps: 123.45,
		Grade:        Grade(80),
	}

	buf := &bytes.Buffer{}
	Report(buf, result)
	out := buf.String()
	for _, want := range []string{
		"min", "median", "jit",
		"Unloaded latency in ms:",
		"Loaded latency in ms:",
		"Difference in ms:",
		"+80", // median column of the difference row
		"Average download speed: 123.5 Mbps",
		"Bufferbloat grade: C (added median latency 80 ms)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report does not contain %q:\n%s", want, out)
		}
	}
	if lines := strings.Count(out, "\n"); lines != 6 {
		t.Error("expected six report lines, got", lines)
	}
}
