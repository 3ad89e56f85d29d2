// Package tcpping measures round-trip latency by timing the TCP
// three-way handshake against a rotating set of anycast targets. A
// connect to port 443 is answered by the topologically nearest server
// announcing the address, so the handshake time is a good proxy for the
// path RTT and requires no elevated privileges, unlike ICMP echo.
package tcpping

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/m-lab/go/memoryless"

	"github.com/m-lab/bloatprobe/logging"
	"github.com/m-lab/bloatprobe/model"
)

// DefaultConnectTimeout bounds each connect attempt. Connects that take
// longer count as failures, not as very large RTTs.
const DefaultConnectTimeout = 500 * time.Millisecond

// DefaultInterval spaces the connect probes with a memoryless (Poisson)
// interval averaging 100ms. Poisson sampling avoids phase-locking with
// periodic cross traffic, so the samples remain statistically
// representative of the link state.
var DefaultInterval = memoryless.Config{
	Min:      50 * time.Millisecond,
	Expected: 100 * time.Millisecond,
	Max:      250 * time.Millisecond,
}

// Pinger emits one latency sample per tick, rotating through Targets.
type Pinger struct {
	// Targets are the hosts to dial, without port.
	Targets []string

	// Port is the TCP port to dial on every target.
	Port int

	// ConnectTimeout bounds each individual connect attempt.
	ConnectTimeout time.Duration

	// Interval configures the sampling ticker.
	Interval memoryless.Config

	ticker *memoryless.Ticker
}

// New creates a Pinger for the given targets with default timeout and
// sampling interval.
func New(targets []string, port int) *Pinger {
	return &Pinger{
		Targets:        targets,
		Port:           port,
		ConnectTimeout: DefaultConnectTimeout,
		Interval:       DefaultInterval,
	}
}

// ping dials one target and converts the outcome into a Sample.
func (p *Pinger) ping(ctx context.Context, target string) model.Sample {
	dialer := net.Dialer{Timeout: p.ConnectTimeout}
	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", target)
	rtt := time.Since(start)
	if err != nil {
		return model.Sample{Target: target, Error: err.Error()}
	}
	conn.Close()
	return model.Sample{Target: target, RTT: rtt}
}

func (p *Pinger) loop(ctx context.Context, dst chan<- model.Sample) {
	logging.Logger.Debug("tcpping: start")
	defer logging.Logger.Debug("tcpping: stop")
	defer close(dst)
	// Implementation note: the ticker will close its output channel
	// after the controlling context is expired.
	ticker, err := memoryless.NewTicker(ctx, p.Interval)
	if err != nil {
		logging.Logger.WithError(err).Warn("memoryless.NewTicker failed")
		return
	}
	p.ticker = ticker
	i := 0
	for range ticker.C {
		target := net.JoinHostPort(p.Targets[i%len(p.Targets)], strconv.Itoa(p.Port))
		i++
		dst <- p.ping(ctx, target) // Liveness: this is blocking
	}
}

// Start runs the sampling loop in a background goroutine and emits the
// samples on the returned channel.
//
// Liveness guarantee: the pinger will always terminate after ctx is
// done, provided that the consumer continues reading from the returned
// channel. The pinger may be stopped early by calling Stop.
func (p *Pinger) Start(ctx context.Context) <-chan model.Sample {
	dst := make(chan model.Sample)
	go p.loop(ctx, dst)
	return dst
}

// Stop ends the sampling and drains the sample channel. Stop guarantees
// that the sampling goroutine completes. Users that call Start should
// also call Stop.
func (p *Pinger) Stop(src <-chan model.Sample) {
	if p.ticker != nil {
		p.ticker.Stop()
	}
	for range src {
		// make sure we drain the channel, so the sampling loop can exit.
	}
}
