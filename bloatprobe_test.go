package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/m-lab/go/osx"
	"github.com/m-lab/go/prometheusx/promtest"
	"github.com/m-lab/go/rtx"
)

// Get a bunch of open ports, and then close them. Hopefully the ports
// will remain open for the next few microseconds so that we can use
// them in unit tests.
func getOpenPorts(n int) []string {
	ports := []string{}
	for i := 0; i < n; i++ {
		ts := httptest.NewServer(http.NewServeMux())
		defer ts.Close()
		u, err := url.Parse(ts.URL)
		rtx.Must(err, "Could not parse url to local server:", ts.URL)
		ports = append(ports, ":"+u.Port())
	}
	return ports
}

func pingListener(t *testing.T) (int, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	rtx.Must(err, "Could not listen")
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port, func() { ln.Close() }
}

func downloadServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 8192)
		for {
			if _, err := w.Write(buf); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}))
}

func TestMainOneShot(t *testing.T) {
	port, cleanup := pingListener(t)
	defer cleanup()
	srv := downloadServer()
	defer srv.Close()

	// Set up the command-line args via environment variables:
	for _, ev := range []struct{ key, value string }{
		{"PING_HOST", "127.0.0.1"},
		{"PING_PORT", strconv.Itoa(port)},
		{"PING_INTERVAL", "5ms"},
		{"DOWNLOAD_URL", srv.URL},
		{"DOWNLOAD_PARALLEL", "1"},
		{"DURATION", "250ms"},
	} {
		revert := osx.MustSetenv(ev.key, ev.value)
		defer revert()
	}

	// Give the program a fresh context; another test may have canceled
	// the shared one already.
	ctx, cancel = context.WithCancel(context.Background())
	main()
	promtest.LintMetrics(t)
}

func TestMainDaemon(t *testing.T) {
	port, cleanup := pingListener(t)
	defer cleanup()
	srv := downloadServer()
	defer srv.Close()
	listen := getOpenPorts(1)[0]

	for _, ev := range []struct{ key, value string }{
		{"PING_HOST", "127.0.0.1"},
		{"PING_PORT", strconv.Itoa(port)},
		{"PING_INTERVAL", "5ms"},
		{"DOWNLOAD_URL", srv.URL},
		{"DOWNLOAD_PARALLEL", "1"},
		{"DURATION", "150ms"},
		{"INTERVAL", "100ms"},
		{"LISTEN", listen},
		{"PROMETHEUSX_LISTEN_ADDRESS", ":0"},
	} {
		revert := osx.MustSetenv(ev.key, ev.value)
		defer revert()
	}

	ctx, cancel = context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	// Wait for the first test to complete and show up on /result.
	resultURL := "http://127.0.0.1" + listen + "/result"
	deadline := time.Now().Add(15 * time.Second)
	seen := false
	for time.Now().Before(deadline) {
		resp, err := http.Get(resultURL)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				seen = true
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !seen {
		t.Error("no result was ever served on", resultURL)
	}
	cancel()
	<-done
}
