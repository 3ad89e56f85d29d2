package netx

import (
	"context"
	"net"
	"runtime"
	"testing"

	"github.com/m-lab/go/rtx"
)

func TestDialerCapturesTCPConns(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	rtx.Must(err, "Could not listen")
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	d := &Dialer{}
	conn, err := d.DialContext(context.Background(), "tcp", ln.Addr().String())
	rtx.Must(err, "Could not dial")
	defer (<-accepted).Close()

	c, ok := conn.(*Conn)
	if !ok {
		t.Fatalf("expected a *netx.Conn, got %T", conn)
	}
	if len(d.Conns()) != 1 {
		t.Error("expected one remembered conn, got", len(d.Conns()))
	}

	info, err := c.Info()
	if runtime.GOOS == "linux" {
		if err != nil {
			t.Error("Info failed on Linux:", err)
		}
		if info == nil {
			t.Error("expected TCP_INFO data on Linux")
		}
	} else {
		if err != ErrNoSupport {
			t.Error("expected ErrNoSupport, got:", err)
		}
	}

	rtx.Must(conn.Close(), "Could not close")
	if len(d.Conns()) != 0 {
		t.Error("expected no remembered conns after Close, got", len(d.Conns()))
	}
}

func TestDialerFailuresAreNotRemembered(t *testing.T) {
	// Grab a port and close it again, so that nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	rtx.Must(err, "Could not listen")
	addr := ln.Addr().String()
	ln.Close()

	d := &Dialer{}
	if _, err := d.DialContext(context.Background(), "tcp", addr); err == nil {
		t.Fatal("expected the dial to fail")
	}
	if len(d.Conns()) != 0 {
		t.Error("failed dial was remembered")
	}
}
