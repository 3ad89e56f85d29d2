package model

import (
	"time"

	"github.com/m-lab/bloatprobe/metadata"
)

// CurrentSchemaVersion is the current version of the Result struct
// below. It should be incremented for every structure change so that
// consumers of the /result endpoint can keep historical data parsable.
const CurrentSchemaVersion = 1

// WorkerResult records the outcome of a single download worker.
type WorkerResult struct {
	// URL is the URL this worker was streaming.
	URL string

	// BytesRead is the number of body bytes the worker received.
	BytesRead int64

	// Elapsed is how long the worker ran.
	Elapsed time.Duration

	// Error describes why the worker stopped early, if it did.
	Error string `json:",omitempty"`
}

// Result is the complete record of one bufferbloat test. It is the
// structure serialized as JSON on the /result endpoint.
//
// All data members should be self-describing. In the event of
// confusion, rename them to add clarity rather than adding a comment.
type Result struct {
	// Version is the symbolic version (if any) of the running code.
	Version string

	// SchemaVersion represents the version of the Result structure.
	SchemaVersion int

	// UUID is a unique identifier for this test run.
	UUID string

	StartTime time.Time
	EndTime   time.Time

	// Metadata holds the name/value pairs passed on the command line,
	// so that results from different vantage points stay tellable
	// apart.
	Metadata []metadata.NameValue `json:",omitempty"`

	// Unloaded summarizes connect latency while the link was idle.
	Unloaded LatencySummary

	// Loaded summarizes connect latency while the downloads ran.
	Loaded LatencySummary

	// Delta is Loaded minus Unloaded, field by field.
	Delta LatencySummary

	// DownloadMbps is the aggregate download rate sustained during the
	// loaded phase, in Mbit/s.
	DownloadMbps float64

	// Downloads holds the per-worker download outcomes.
	Downloads []WorkerResult

	// Grade classifies the added median latency: "A" (< 30ms) through
	// "F" (>= 400ms).
	Grade string
}
