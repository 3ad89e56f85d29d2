// Package netx extends the functionality of the net package for dialed
// connections. The Dialer defined here returns Conns that mediate
// access to the underlying socket file descriptor, so that callers can
// read TCP_INFO statistics from a download connection while it is
// transferring.
package netx

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"

	"github.com/m-lab/tcp-info/tcp"
)

// ErrNoSupport is returned on systems that do not support TCP_INFO.
var ErrNoSupport = errors.New("TCP_INFO not supported")

// Dialer is a net.Dialer that keeps track of the TCP connections it
// created, so that kernel statistics can later be read from them.
type Dialer struct {
	// Dialer is the underlying net.Dialer.
	Dialer net.Dialer

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// Conn wraps a dialed TCP connection together with a dup'd *os.File
// bound to the same underlying socket. The file must be kept open for
// as long as we want to read TCP_INFO from the connection, because the
// descriptor owned by the net.TCPConn is not directly accessible.
// Since Go 1.11 the dup does not switch the connection itself to
// blocking I/O.
type Conn struct {
	net.Conn
	fp     *os.File
	dialer *Dialer
}

// DialContext dials like net.Dialer.DialContext. When the resulting
// connection is a TCP connection, the returned net.Conn is a *Conn
// that the Dialer remembers until the connection is closed.
func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := d.Dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return conn, nil
	}
	fp, err := tc.File()
	if err != nil {
		// Better an uninstrumented connection than a failed dial.
		return conn, nil
	}
	c := &Conn{Conn: tc, fp: fp, dialer: d}
	d.remember(c)
	return c, nil
}

// Conns returns a snapshot of the still-open connections created by
// this Dialer.
func (d *Dialer) Conns() []*Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	conns := make([]*Conn, 0, len(d.conns))
	for c := range d.conns {
		conns = append(conns, c)
	}
	return conns
}

func (d *Dialer) remember(c *Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conns == nil {
		d.conns = make(map[*Conn]struct{})
	}
	d.conns[c] = struct{}{}
}

func (d *Dialer) forget(c *Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.conns, c)
}

// Info reads TCP_INFO statistics from the underlying socket. On
// systems without TCP_INFO it returns ErrNoSupport.
func (c *Conn) Info() (*tcp.LinuxTCPInfo, error) {
	return getTCPInfo(c.fp)
}

// Close closes the underlying net.Conn and the dup'd file descriptor,
// and makes the Dialer forget this connection.
func (c *Conn) Close() error {
	c.dialer.forget(c)
	c.fp.Close()
	return c.Conn.Close()
}
