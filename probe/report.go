package probe

import (
	"fmt"
	"io"
	"math"

	"github.com/fatih/color"

	"github.com/m-lab/bloatprobe/model"
)

var columns = []string{"min", "25%", "median", "mean", "75%", "95%", "max", "std", "jit"}

func statRow(s model.LatencySummary) []float64 {
	return []float64{s.Min, s.P25, s.Median, s.Mean, s.P75, s.P95, s.Max, s.StdDev, s.Jitter}
}

// Report writes the human-readable summary of |result| to |w|: the
// latency table for both phases with the per-column difference, the
// achieved download speed, and the bufferbloat grade.
func Report(w io.Writer, result *model.Result) {
	fmt.Fprintf(w, "%-23s", "")
	for _, c := range columns {
		fmt.Fprintf(w, " %6s", c)
	}
	fmt.Fprintln(w)
	writeRow(w, "Unloaded latency in ms:", statRow(result.Unloaded))
	writeRow(w, "Loaded latency in ms:", statRow(result.Loaded))
	// The difference row subtracts the rounded values, so that the
	// three printed rows stay arithmetically consistent.
	unloadedRow, loadedRow := statRow(result.Unloaded), statRow(result.Loaded)
	fmt.Fprintf(w, "%-23s", "Difference in ms:")
	for i := range loadedRow {
		fmt.Fprintf(w, " %+6.0f", math.Round(loadedRow[i])-math.Round(unloadedRow[i]))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Average download speed: %.1f Mbps\n", result.DownloadMbps)
	fmt.Fprintf(w, "Bufferbloat grade: %s (added median latency %.0f ms)\n",
		colorGrade(result.Grade), result.Delta.Median)
}

func writeRow(w io.Writer, label string, values []float64) {
	fmt.Fprintf(w, "%-23s", label)
	for _, v := range values {
		fmt.Fprintf(w, " %6.0f", v)
	}
	fmt.Fprintln(w)
}

// colorGrade returns the grade wrapped in an ANSI color when stdout is
// a terminal: green for A/B, yellow for C, red for D/F.
func colorGrade(grade string) string {
	switch grade {
	case "A", "B":
		return color.GreenString(grade)
	case "C":
		return color.YellowString(grade)
	default:
		return color.RedString(grade)
	}
}
