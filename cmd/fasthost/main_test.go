package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/searchktools/fast-host/core"
	"github.com/searchktools/fast-host/core/http"
	"github.com/searchktools/fast-host/core/router"
)

func TestVersionShort(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--short"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != version {
		t.Errorf("version = %q, want %q", got, version)
	}
}

func TestRoutesCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"routes"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if !strings.HasPrefix(lines[0], "METHOD") {
		t.Fatalf("missing header: %q", lines[0])
	}
	for _, want := range []string{"/api/users/{id:int}", "/api/echo/{path*}", "status", "Api"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("routes output missing %q", want)
		}
	}
	if len(lines) != 1+10 {
		t.Errorf("got %d routes, want 10", len(lines)-1)
	}
}

func TestServeRejectsBadFlags(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"serve", "--log-level=loud"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "log.level") {
		t.Errorf("err = %v, want log.level validation error", err)
	}
}

func TestDemoModules(t *testing.T) {
	e := core.NewEngine(
		router.NewResolver(router.NewCatalog(demoModules()...)),
		core.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	tests := []struct {
		method     string
		target     string
		wantStatus int
		wantBody   string
	}{
		{"GET", "/", 200, "Welcome to fasthost"},
		{"GET", "/api/users/42", 200, `{"id":42,"name":"user 42"}`},
		{"GET", "/api/users/me", 200, `{"id":0,"name":"me"}`},
		{"GET", "/api/users/abc", 404, "Not Found"},
		{"GET", "/api/echo/a/b/c", 200, "a/b/c"},
		{"GET", "/api/search?q=go&page=2", 200, `{"page":"2","query":"go"}`},
		{"DELETE", "/api/status", 405, ""},
		{"GET", "/docs", 307, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			c, err := e.HandleRequest(context.Background(), http.NewRequest(tt.method, tt.target))
			if err != nil {
				t.Fatal(err)
			}
			defer c.Close()
			if c.Response.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", c.Response.StatusCode, tt.wantStatus)
			}
			data, err := c.Response.Body()
			if err != nil {
				t.Fatal(err)
			}
			if got := strings.TrimSpace(string(data)); tt.wantBody != "" && got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}
