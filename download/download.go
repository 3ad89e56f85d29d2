// Package download loads the link by streaming large files over
// parallel HTTP connections. While the workers stream, a measurement
// loop periodically emits progress counters and, on Linux, TCP_INFO
// statistics read from one of the download sockets.
package download

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m-lab/go/warnonerror"

	"github.com/m-lab/bloatprobe/logging"
	"github.com/m-lab/bloatprobe/model"
	"github.com/m-lab/bloatprobe/netx"
)

// ChunkSize is the size of each body read performed by a worker.
const ChunkSize = 64 << 10

// MeasureInterval is the interval between two progress measurements.
const MeasureInterval = 250 * time.Millisecond

// DefaultHeaderTimeout bounds how long a worker waits for response
// headers. The body transfer itself is only bounded by the context.
const DefaultHeaderTimeout = 10 * time.Second

// Loader streams URLs until its context expires.
type Loader struct {
	// URLs are the files to stream. Worker i streams URLs[i%len(URLs)].
	URLs []string

	// Parallel is the number of concurrent workers.
	Parallel int

	// HeaderTimeout bounds the wait for response headers.
	HeaderTimeout time.Duration

	dialer    *netx.Dialer
	transport *http.Transport
	client    *http.Client
	wg        sync.WaitGroup
	numBytes  int64 // atomic

	mu      sync.Mutex
	results []model.WorkerResult
}

// New creates a Loader that streams |urls| over |parallel| connections.
// Each connection is dialed through a netx.Dialer so that its kernel
// TCP state stays readable during the transfer.
func New(urls []string, parallel int) *Loader {
	dialer := &netx.Dialer{}
	transport := &http.Transport{
		DialContext: dialer.DialContext,
		// One socket per worker: an idle pooled connection would not
		// contribute load but would still show up in Conns.
		DisableKeepAlives: true,
	}
	return &Loader{
		URLs:          urls,
		Parallel:      parallel,
		HeaderTimeout: DefaultHeaderTimeout,
		dialer:        dialer,
		transport:     transport,
		client:        &http.Client{Transport: transport},
	}
}

// Start starts Parallel download workers plus a measurement loop, and
// emits a Measurement on the returned channel every MeasureInterval.
//
// Liveness guarantee: the loader will always terminate after ctx is
// done, provided that the consumer continues reading from the returned
// channel until it is closed.
func (l *Loader) Start(ctx context.Context) <-chan model.Measurement {
	// The header timeout only applies until the response arrives; the
	// body transfer itself is bounded by ctx alone.
	l.transport.ResponseHeaderTimeout = l.HeaderTimeout
	for i := 0; i < l.Parallel; i++ {
		l.wg.Add(1)
		go l.worker(ctx, l.URLs[i%len(l.URLs)])
	}
	dst := make(chan model.Measurement)
	go l.measure(ctx, dst)
	return dst
}

// Wait blocks until every worker has finished and returns the
// per-worker outcomes. Callers must cancel the context passed to Start
// (or let it expire) for Wait to return.
func (l *Loader) Wait() []model.WorkerResult {
	l.wg.Wait()
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.WorkerResult{}, l.results...)
}

func (l *Loader) worker(ctx context.Context, url string) {
	defer l.wg.Done()
	start := time.Now()
	bytesRead, err := l.stream(ctx, url)
	result := model.WorkerResult{
		URL:       url,
		BytesRead: bytesRead,
		Elapsed:   time.Since(start),
	}
	// The context expiring is how every transfer is meant to end, so it
	// is not a worker error.
	if err != nil && ctx.Err() == nil {
		logging.Logger.WithError(err).WithField("url", url).Warn("download: worker failed")
		result.Error = err.Error()
	}
	l.mu.Lock()
	l.results = append(l.results, result)
	l.mu.Unlock()
}

func (l *Loader) stream(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer warnonerror.Close(resp.Body, "download: ignoring body.Close result")
	if resp.StatusCode >= 400 {
		return 0, &httpError{status: resp.Status}
	}
	var total int64
	buf := make([]byte, ChunkSize)
	for {
		n, err := resp.Body.Read(buf)
		total += int64(n)
		atomic.AddInt64(&l.numBytes, int64(n))
		if err == io.EOF {
			// The file ran out before the phase did.
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

type httpError struct {
	status string
}

func (e *httpError) Error() string {
	return "unexpected response status: " + e.status
}

// measure periodically emits progress measurements on dst until ctx is
// done, then closes dst.
func (l *Loader) measure(ctx context.Context, dst chan<- model.Measurement) {
	logging.Logger.Debug("download: measurer start")
	defer logging.Logger.Debug("download: measurer stop")
	defer close(dst)
	ticker := time.NewTicker(MeasureInterval)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m := model.Measurement{
				Elapsed: now.Sub(start).Seconds(),
				AppInfo: &model.AppInfo{
					NumBytes: atomic.LoadInt64(&l.numBytes),
				},
			}
			if conns := l.dialer.Conns(); len(conns) > 0 {
				if info, err := conns[0].Info(); err == nil {
					m.TCPInfo = &model.TCPInfo{
						SmoothedRTT: float64(info.RTT) / 1000, // microseconds to ms
						RTTVar:      float64(info.RTTVar) / 1000,
					}
				}
			}
			select {
			case dst <- m:
			case <-ctx.Done():
				return
			}
		}
	}
}
