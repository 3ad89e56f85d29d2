package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/m-lab/bloatprobe/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// streamHandler streams zeros until the client goes away.
func streamHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 8192)
		for {
			if _, err := w.Write(buf); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	})
}

func TestLoaderStreamsAndMeasures(t *testing.T) {
	srv := httptest.NewServer(streamHandler())
	defer srv.Close()

	l := New([]string{srv.URL}, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()
	var measurements []model.Measurement
	for m := range l.Start(ctx) {
		measurements = append(measurements, m)
	}
	results := l.Wait()

	if len(measurements) == 0 {
		t.Fatal("expected at least one measurement")
	}
	last := measurements[len(measurements)-1]
	if last.AppInfo == nil || last.AppInfo.NumBytes == 0 {
		t.Error("expected nonzero progress:", last.AppInfo)
	}
	if last.Elapsed <= 0 {
		t.Error("non-positive elapsed:", last.Elapsed)
	}
	if runtime.GOOS == "linux" {
		found := false
		for _, m := range measurements {
			if m.TCPInfo != nil {
				found = true
			}
		}
		if !found {
			t.Error("expected at least one TCP_INFO measurement on Linux")
		}
	}
	if len(results) != 2 {
		t.Fatal("expected two worker results, got", len(results))
	}
	for _, r := range results {
		if r.URL != srv.URL {
			t.Error("bad worker URL:", r.URL)
		}
		if r.BytesRead == 0 {
			t.Error("worker read no bytes")
		}
		if r.Elapsed <= 0 {
			t.Error("non-positive worker elapsed:", r.Elapsed)
		}
		if r.Error != "" {
			t.Error("unexpected worker error:", r.Error)
		}
	}
}

func TestLoaderRecordsWorkerErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	l := New([]string{srv.URL}, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	for range l.Start(ctx) {
		// drain
	}
	results := l.Wait()
	if len(results) != 1 {
		t.Fatal("expected one worker result, got", len(results))
	}
	if !strings.Contains(results[0].Error, "404") {
		t.Error("expected a 404 worker error, got:", results[0].Error)
	}
}

func TestLoaderRoundRobinsURLs(t *testing.T) {
	first := httptest.NewServer(streamHandler())
	defer first.Close()
	second := httptest.NewServer(streamHandler())
	defer second.Close()

	l := New([]string{first.URL, second.URL}, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	for range l.Start(ctx) {
		// drain
	}
	results := l.Wait()
	counts := map[string]int{}
	for _, r := range results {
		counts[r.URL]++
	}
	if counts[first.URL] != 2 || counts[second.URL] != 1 {
		t.Error("bad worker distribution:", counts)
	}
}
