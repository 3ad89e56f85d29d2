// bloatprobe estimates bufferbloat, the added latency under load
// caused by oversized network buffers. It compares TCP connect latency
// to anycast endpoints while the network is idle against the same
// latency while parallel bulk downloads saturate the link, and reports
// the difference.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/httpx"
	"github.com/m-lab/go/memoryless"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"

	"github.com/m-lab/bloatprobe/handler"
	"github.com/m-lab/bloatprobe/logging"
	"github.com/m-lab/bloatprobe/metadata"
	"github.com/m-lab/bloatprobe/platformx"
	"github.com/m-lab/bloatprobe/probe"
)

// Default measurement endpoints: anycast resolver fleets for the
// latency probes and large public files for the load. All of them are
// flag-overridable.
var (
	defaultPingHosts = []string{
		"1.1.1.1", "1.0.0.1",
		"8.8.8.8", "8.8.4.4",
		"9.9.9.9", "149.112.112.112",
	}
	defaultDownloadURLs = []string{
		"https://nbg1-speed.hetzner.com/10GB.bin",
		"https://github.com/szalony9szymek/large/releases/download/free/large",
		"https://download.thinkbroadband.com/5GB.zip",
	}
)

var (
	// Flags that can be passed in on the command line.
	pingHosts    = flagx.StringArray{}
	downloadURLs = flagx.StringArray{}
	resultLabels = flagx.KeyValue{}
	pingPort     = flag.Int("ping.port", 443, "The TCP port to dial when sampling latency")
	pingInterval = flag.Duration("ping.interval", 100*time.Millisecond, "Mean interval between two latency probes")
	parallel     = flag.Int("download.parallel", 6, "Number of parallel download connections")
	duration     = flag.Duration("duration", 60*time.Second, "Duration of each measurement phase")
	interval     = flag.Duration("interval", 0, "When nonzero, rerun the test on average every interval and serve the results over HTTP instead of exiting")
	listenAddr   = flag.String("listen", ":8077", "The address of the daemon-mode HTTP server")

	// Context for the whole program.
	ctx, cancel = context.WithCancel(context.Background())
)

func init() {
	flag.Var(&pingHosts, "ping.host",
		"Anycast host to sample connect latency against (repeatable; default "+strings.Join(defaultPingHosts, " ")+")")
	flag.Var(&downloadURLs, "download.url",
		"Large file to stream while loading the link (repeatable; default Hetzner/github/thinkbroadband test files)")
	flag.Var(&resultLabels, "metadata",
		"Name=value pair attached to every result (repeatable)")
}

// resultMetadata converts the -metadata flags into the stable-order
// form stored on results.
func resultMetadata() []metadata.NameValue {
	kv := resultLabels.Get()
	names := make([]string, 0, len(kv))
	for name := range kv {
		names = append(names, name)
	}
	sort.Strings(names)
	nvs := make([]metadata.NameValue, 0, len(names))
	for _, name := range names {
		nvs = append(nvs, metadata.NameValue{Name: name, Value: kv[name]})
	}
	return nvs
}

func catchSigterm() {
	// Register channel to receive SIGTERM events.
	c := make(chan os.Signal, 1)
	defer close(c)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	// Wait until we receive a signal or the context is canceled.
	select {
	case <-c:
		logging.Logger.Info("received signal, shutting down")
		cancel()
	case <-ctx.Done():
	}
}

// httpServer creates a new *http.Server with explicit Read and Write timeouts.
func httpServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: handler,
		// NOTE: set absolute read and write timeouts for server
		// connections so that nobody can hold a plain HTTP connection
		// open indefinitely. /live connections are not affected: the
		// websocket upgrade hijacks the connection and manages its own
		// deadlines.
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from env")
	platformx.WarnIfNotFullySupported()
	if len(pingHosts) == 0 {
		pingHosts = defaultPingHosts
	}
	if len(downloadURLs) == 0 {
		downloadURLs = defaultDownloadURLs
	}
	runner := &probe.Runner{
		Config: probe.Config{
			Targets:  pingHosts,
			Port:     *pingPort,
			URLs:     downloadURLs,
			Parallel: *parallel,
			Duration: *duration,
			PingInterval: memoryless.Config{
				Min:      *pingInterval / 2,
				Expected: *pingInterval,
				Max:      *pingInterval * 5 / 2,
			},
		},
		Metadata: resultMetadata(),
	}
	go catchSigterm()
	defer cancel()

	if *interval == 0 {
		// One-shot mode: run a single test and print the report.
		result, err := runner.Run(ctx)
		if err != nil {
			logging.Logger.WithError(err).Error("measurement failed")
			os.Exit(1)
		}
		probe.Report(os.Stdout, result)
		return
	}

	// Daemon mode: repeat the test forever on a memoryless schedule and
	// export the latest result over HTTP and prometheus.
	promSrv := prometheusx.MustServeMetrics()
	defer promSrv.Close()
	h := handler.New()
	runner.OnMeasurement = h.Publish
	mux := http.NewServeMux()
	mux.HandleFunc("/result", h.Result)
	mux.HandleFunc("/live", h.Live)
	srv := httpServer(*listenAddr, logging.MakeAccessLogHandler(mux))
	rtx.Must(httpx.ListenAndServeAsync(srv), "Could not start the status server")
	defer srv.Close()

	rtx.Must(memoryless.Run(ctx, func() {
		result, err := runner.Run(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logging.Logger.WithError(err).Error("measurement failed")
			}
			return
		}
		h.SetResult(result)
		probe.Report(os.Stdout, result)
	}, memoryless.Config{
		Min:      *interval / 2,
		Expected: *interval,
		Max:      2 * *interval,
	}), "Could not run the measurement loop")
}
