// Package logging contains the logger shared by all bloatprobe
// components. Diagnostic logs go to the standard error in a structured
// JSON format so that the measurement report, which goes to the standard
// output, stays machine-separable from everything else.
package logging

import (
	golog "log"
	"net/http"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/gorilla/handlers"
)

// Logger is the process-wide structured logger. Emitting logs on the
// standard error keeps them out of the report printed on stdout and is
// consistent with standard practice when dockerising a service.
var Logger = log.Logger{
	Handler: json.New(os.Stderr),
	Level:   log.DebugLevel,
}

// MakeAccessLogHandler wraps |handler| with another handler that logs
// access to each resource of the daemon-mode HTTP server on the standard
// output. We do not emit JSON access logs, because access logs are a
// fairly standard format that has been around for a long time now, so
// better to follow such standard.
func MakeAccessLogHandler(handler http.Handler) http.Handler {
	return handlers.LoggingHandler(golog.Writer(), handler)
}
