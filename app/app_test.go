package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/searchktools/fast-host/config"
	"github.com/searchktools/fast-host/core/http"
	"github.com/searchktools/fast-host/core/ratelimit"
	"github.com/searchktools/fast-host/core/router"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testModules() []*router.Module {
	return []*router.Module{
		router.NewModule("Greeting", "/greet").
			Get("/{name}", func(_ context.Context, c *http.Context) (any, error) {
				return "hello " + c.Params["name"], nil
			}),
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Host.Prefixes = []string{"http://127.0.0.1:0/app/"}
	cfg.Host.Concurrency = 2
	cfg.Host.ShutdownTimeout = time.Second
	cfg.Metrics.Enabled = true
	cfg.RequestID = true
	return cfg
}

func TestAppServesOverTheNetwork(t *testing.T) {
	a, err := New(testConfig(), testModules(), WithLogger(quiet()))
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer a.Shutdown(context.Background())

	addrs := a.Host().Addrs()
	if len(addrs) != 1 {
		t.Fatalf("addrs = %v", addrs)
	}
	resp, err := stdhttp.Get("http://" + addrs[0].String() + "/app/greet/ada")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != 200 || string(data) != "hello ada" {
		t.Errorf("got %d %q", resp.StatusCode, data)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("request id hook not installed")
	}
	if a.Host().Limiter().Capacity() != 2 {
		t.Errorf("capacity = %d, want 2", a.Host().Limiter().Capacity())
	}
}

func TestAppHandlerSharesEngine(t *testing.T) {
	a, err := New(testConfig(), testModules(), WithLogger(quiet()))
	if err != nil {
		t.Fatal(err)
	}
	h := a.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/greet/bob", nil))
	if rec.Code != 200 || rec.Body.String() != "hello bob" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `fasthost_http_requests_total{method="GET",route="/greet/{name}",status="200"} 1`) {
		t.Errorf("metrics did not record the request:\n%s", rec.Body.String())
	}
}

func TestAppRunStopsOnCancel(t *testing.T) {
	a, err := New(testConfig(), testModules(), WithLogger(quiet()))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !a.Host().IsListening() {
		if time.Now().After(deadline) {
			t.Fatal("host never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if a.Host().IsListening() {
		t.Error("host still listening")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Log.Level = "loud"
	if _, err := New(cfg, nil, WithLogger(quiet())); err == nil {
		t.Error("expected validation error")
	}

	cfg = testConfig()
	cfg.Host.Prefixes = []string{"https://localhost/"}
	if _, err := New(cfg, nil, WithLogger(quiet())); err == nil {
		t.Error("expected error for an https prefix")
	}
}

func TestNewLimiter(t *testing.T) {
	tests := []struct {
		concurrency  int
		wantCapacity int
	}{
		{-1, 0},
		{0, ratelimit.DefaultCapacity()},
		{5, 5},
	}
	for _, tt := range tests {
		l, err := newLimiter(tt.concurrency)
		if err != nil {
			t.Fatalf("newLimiter(%d): %v", tt.concurrency, err)
		}
		if l.Capacity() != tt.wantCapacity {
			t.Errorf("newLimiter(%d).Capacity() = %d, want %d", tt.concurrency, l.Capacity(), tt.wantCapacity)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line logged at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("unexpected output %q", out)
	}
}

func TestApplyRuntimeKeepsDefaultsForZeroValues(t *testing.T) {
	ApplyRuntime(config.RuntimeConfig{})
	stats := ReadRuntimeStats()
	if stats.NumGoroutine == 0 {
		t.Error("goroutine count not read")
	}
}
