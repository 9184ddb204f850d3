package http

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

type closeTracker struct {
	closed int
	err    error
}

func (c *closeTracker) Close() error {
	c.closed++
	return c.err
}

func TestNewRequestSplitsQuery(t *testing.T) {
	req := NewRequest("GET", "/search?q=go&page=2")

	if req.Path() != "/search" {
		t.Errorf("Path = %q, want /search", req.Path())
	}
	if req.Query("q") != "go" || req.Query("page") != "2" {
		t.Errorf("unexpected query values q=%q page=%q", req.Query("q"), req.Query("page"))
	}
	if got := req.URL.String(); got != "http://localhost/search?q=go&page=2" {
		t.Errorf("URL = %q", got)
	}
}

func TestHeaderCanonicalKeys(t *testing.T) {
	h := Header{}
	h.Add("content-type", "text/plain")
	h.Add("X-Trace", "a")
	h.Add("x-trace", "b")

	if h.Get("Content-Type") != "text/plain" {
		t.Errorf("Get(Content-Type) = %q", h.Get("Content-Type"))
	}
	if got := h.Values("X-TRACE"); len(got) != 2 {
		t.Errorf("expected 2 trace values, got %v", got)
	}
	h.Del("x-trace")
	if h.Has("X-Trace") {
		t.Error("expected X-Trace to be removed")
	}
}

func TestAcceptsEncoding(t *testing.T) {
	tests := []struct {
		header string
		coding string
		want   bool
	}{
		{"gzip", "gzip", true},
		{"deflate, gzip;q=0.8", "gzip", true},
		{"gzip;q=1.0", "gzip", true},
		{"GZIP ; q=0.5", "gzip", true},
		{"gzip;q=0", "gzip", false},
		{"gzip; q=0.000, deflate", "gzip", false},
		{"*", "gzip", true},
		{"*;q=0", "gzip", false},
		{"gzip;q=0, *", "gzip", false},
		{"br, *;q=0.1", "gzip", true},
		{"deflate, gzip;q=0.8", "br", false},
		{"", "gzip", false},
	}
	for _, tt := range tests {
		req := NewRequest("GET", "/")
		if tt.header != "" {
			req.Header.Set("Accept-Encoding", tt.header)
		}
		if got := req.AcceptsEncoding(tt.coding); got != tt.want {
			t.Errorf("AcceptsEncoding(%q) with %q = %v, want %v", tt.coding, tt.header, got, tt.want)
		}
	}
}

func TestParams(t *testing.T) {
	p := Params{"id": "42", "flag": "true", "ratio": "0.5", "name": "bob"}

	if v, err := p.Int("id"); err != nil || v != 42 {
		t.Errorf("Int(id) = %d, %v", v, err)
	}
	if v, err := p.Bool("flag"); err != nil || !v {
		t.Errorf("Bool(flag) = %v, %v", v, err)
	}
	if v, err := p.Float("ratio"); err != nil || v != 0.5 {
		t.Errorf("Float(ratio) = %v, %v", v, err)
	}
	if _, err := p.Int("name"); err == nil {
		t.Error("expected conversion error for name")
	}
	if _, err := p.String("missing"); !errors.Is(err, ErrParamNotFound) {
		t.Errorf("expected ErrParamNotFound, got %v", err)
	}
}

func TestContextToFullPath(t *testing.T) {
	tests := []struct {
		basePath string
		path     string
		want     string
	}{
		{"", "~/login", "/login"},
		{"/app", "~/login", "/app/login"},
		{"/app", "/absolute", "/absolute"},
		{"/app", "", ""},
	}

	for _, tt := range tests {
		req := NewRequest("GET", "/")
		req.URL.BasePath = tt.basePath
		c := NewContext(req)
		if got := c.ToFullPath(tt.path); got != tt.want {
			t.Errorf("ToFullPath(%q) with base %q = %q, want %q", tt.path, tt.basePath, got, tt.want)
		}
	}
}

func TestContextCloseReleasesItems(t *testing.T) {
	c := NewContext(NewRequest("GET", "/"))
	ok := &closeTracker{}
	failing := &closeTracker{err: errors.New("boom")}
	c.Set("ok", ok)
	c.Set("failing", failing)
	c.Set("plain", 7)

	err := c.Close()
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected joined close error, got %v", err)
	}
	if ok.closed != 1 || failing.closed != 1 {
		t.Errorf("expected each closer to run once, got %d and %d", ok.closed, failing.closed)
	}
	if _, found := c.Get("plain"); found {
		t.Error("expected item store to be emptied")
	}

	// second close is a no-op for items
	_ = c.Close()
	if ok.closed != 1 {
		t.Errorf("closer ran again: %d", ok.closed)
	}
}

func TestNegotiate(t *testing.T) {
	c := NewContext(NewRequest("GET", "/"))
	c.Formatter = NewFormatter(c, nil, nil)

	tests := []struct {
		name        string
		result      any
		wantStatus  int
		contentType string
		body        string
	}{
		{"string", "hello", 200, "text/plain; charset=utf-8", "hello"},
		{"bytes", []byte{1, 2}, 200, "application/octet-stream", "\x01\x02"},
		{"status", Status(204), 204, "", ""},
		{"response", NewText(201, "made"), 201, "text/plain; charset=utf-8", "made"},
		{"json", JSON{Model: map[string]int{"a": 1}}, 200, "application/json; charset=utf-8", `{"a":1}`},
		{"text", Text{Status: 418, Body: "teapot"}, 418, "text/plain; charset=utf-8", "teapot"},
		{"redirect", Redirect{Location: "/next", Kind: RedirectPermanent}, 301, "text/html; charset=utf-8", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Negotiate(tt.result, c)
			if err != nil {
				t.Fatalf("Negotiate error: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if resp.ContentType != tt.contentType {
				t.Errorf("content type = %q, want %q", resp.ContentType, tt.contentType)
			}
			body, err := resp.Body()
			if err != nil {
				t.Fatalf("Body error: %v", err)
			}
			if string(body) != tt.body {
				t.Errorf("body = %q, want %q", body, tt.body)
			}
		})
	}
}

func TestNegotiateRejectsUnknownTypes(t *testing.T) {
	c := NewContext(NewRequest("GET", "/"))

	for _, result := range []any{nil, 42, struct{}{}, (*Response)(nil)} {
		if _, err := Negotiate(result, c); !errors.Is(err, ErrNotNegotiable) {
			t.Errorf("Negotiate(%T): expected ErrNotNegotiable, got %v", result, err)
		}
	}
}

func TestFormatterProtobuf(t *testing.T) {
	c := NewContext(NewRequest("GET", "/"))
	f := NewFormatter(c, nil, nil)

	resp, err := f.AsProtobuf(200, wrapperspb.String("hi"))
	if err != nil {
		t.Fatalf("AsProtobuf error: %v", err)
	}
	if resp.ContentType != "application/x-protobuf" {
		t.Errorf("content type = %q", resp.ContentType)
	}
	if _, err := f.AsProtobuf(200, "not a message"); err == nil {
		t.Error("expected error for non-proto model")
	}
}

func TestFormatterRedirectUsesBasePath(t *testing.T) {
	req := NewRequest("GET", "/")
	req.URL.BasePath = "/app"
	c := NewContext(req)
	f := NewFormatter(c, nil, nil)

	resp := f.AsRedirect("~/home", RedirectSeeOther)
	if resp.StatusCode != 303 {
		t.Errorf("status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/app/home" {
		t.Errorf("Location = %q, want /app/home", loc)
	}
}

func TestFormatterAsFileSafeRoots(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "page.html")
	if err := os.WriteFile(file, []byte("<p>hi</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	outside := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewFormatter(NewContext(NewRequest("GET", "/")), nil, []string{root})

	resp, err := f.AsFile(file, "")
	if err != nil {
		t.Fatalf("AsFile error: %v", err)
	}
	if !strings.HasPrefix(resp.ContentType, "text/html") {
		t.Errorf("content type = %q", resp.ContentType)
	}
	body, _ := resp.Body()
	if string(body) != "<p>hi</p>" {
		t.Errorf("body = %q", body)
	}

	if _, err := f.AsFile(outside, ""); !errors.Is(err, ErrUnsafePath) {
		t.Errorf("expected ErrUnsafePath, got %v", err)
	}
	if _, err := f.AsFile(filepath.Join(root, "..", filepath.Base(filepath.Dir(outside))), ""); err == nil {
		t.Error("expected traversal outside root to fail")
	}
}

func TestFormatterAsFileFollowsSymlinks(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "real.txt"), []byte("inside"), 0o644); err != nil {
		t.Fatal(err)
	}
	outside := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "escape.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "alias.txt")); err != nil {
		t.Fatal(err)
	}

	f := NewFormatter(NewContext(NewRequest("GET", "/")), nil, []string{root})

	if _, err := f.AsFile(filepath.Join(root, "escape.txt"), ""); !errors.Is(err, ErrUnsafePath) {
		t.Errorf("link leaving the root: expected ErrUnsafePath, got %v", err)
	}
	resp, err := f.AsFile(filepath.Join(root, "alias.txt"), "")
	if err != nil {
		t.Fatalf("link inside the root: %v", err)
	}
	if body, _ := resp.Body(); string(body) != "inside" {
		t.Errorf("body = %q", body)
	}
	if _, err := f.AsFile(filepath.Join(root, "missing.txt"), ""); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file: expected fs.ErrNotExist, got %v", err)
	}
}

func TestNewTextCharset(t *testing.T) {
	resp, err := NewTextCharset(200, "café", "iso-8859-1")
	if err != nil {
		t.Fatalf("NewTextCharset error: %v", err)
	}
	body, _ := resp.Body()
	if len(body) != 4 || body[3] != 0xe9 {
		t.Errorf("expected latin-1 encoding, got % x", body)
	}
	if !strings.Contains(resp.ContentType, "charset=windows-1252") {
		t.Errorf("content type = %q", resp.ContentType)
	}

	if _, err := NewTextCharset(200, "x", "no-such-charset"); !errors.Is(err, ErrUnknownCharset) {
		t.Errorf("expected ErrUnknownCharset, got %v", err)
	}
}

func TestStreamResponseOpensLazily(t *testing.T) {
	opened := 0
	resp := NewStream(func() (io.ReadCloser, error) {
		opened++
		return io.NopCloser(strings.NewReader("streamed")), nil
	}, "text/plain")

	if opened != 0 {
		t.Fatal("stream opened before write")
	}
	body, err := resp.Body()
	if err != nil || string(body) != "streamed" || opened != 1 {
		t.Errorf("body = %q, err = %v, opened = %d", body, err, opened)
	}
}
