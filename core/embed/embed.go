// Package embed exposes the engine as a net/http Handler so it can be mounted
// inside an existing server or router.
package embed

import (
	"context"
	"log/slog"
	"net"
	stdhttp "net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/searchktools/fast-host/core/http"
	"github.com/searchktools/fast-host/core/pools"
)

// Dispatcher runs a request through the engine
type Dispatcher interface {
	HandleRequest(ctx context.Context, req *http.Request) (*http.Context, error)
}

// Handler adapts a Dispatcher to net/http
type Handler struct {
	engine   Dispatcher
	basePath string
	buffers  *pools.BufferPool
	logger   *slog.Logger
}

// Option configures a Handler
type Option func(*Handler)

// WithBasePath strips a fixed base path from every request
func WithBasePath(base string) Option {
	return func(h *Handler) { h.basePath = strings.TrimRight(base, "/") }
}

// WithLogger sets the handler logger
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithBufferPool sets the pool used to buffer response bodies
func WithBufferPool(p *pools.BufferPool) Option {
	return func(h *Handler) { h.buffers = p }
}

// New creates a handler. Without WithBasePath the base is taken from the chi
// mount point when there is one.
func New(engine Dispatcher, opts ...Option) *Handler {
	h := &Handler{engine: engine}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default().With("component", "embed")
	}
	if h.buffers == nil {
		h.buffers = pools.NewBufferPool()
	}
	return h
}

func (h *Handler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	req := h.convert(r)

	c, err := h.engine.HandleRequest(r.Context(), req)
	if c != nil {
		defer func() {
			if cerr := c.Close(); cerr != nil {
				h.logger.Warn("closing request context", "error", cerr)
			}
		}()
	}
	if err != nil || c == nil || c.Response == nil {
		// canceled; abort the connection without a response
		panic(stdhttp.ErrAbortHandler)
	}

	h.write(w, c.Response)
}

func (h *Handler) convert(r *stdhttp.Request) *http.Request {
	host, port := r.Host, 0
	if hn, p, err := net.SplitHostPort(r.Host); err == nil {
		host = hn
		port, _ = strconv.Atoi(p)
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	base := h.basePath
	if base == "" {
		base = mountBase(r)
	}
	if base != "" && hasBase(path, base) {
		base = path[:len(base)]
		path = path[len(base):]
		if path == "" {
			path = "/"
		}
	} else {
		base = ""
	}

	return &http.Request{
		Method: r.Method,
		URL: http.URL{
			Scheme:   scheme,
			HostName: host,
			Port:     port,
			BasePath: base,
			Path:     path,
			Query:    r.URL.RawQuery,
		},
		Header:     http.Header(r.Header),
		Body:       r.Body,
		RemoteAddr: r.RemoteAddr,
		Proto:      r.Proto,
	}
}

func hasBase(path, base string) bool {
	if len(path) < len(base) || !strings.EqualFold(path[:len(base)], base) {
		return false
	}
	return len(path) == len(base) || path[len(base)] == '/'
}

// mountBase derives the base path from the chi route context, if any
func mountBase(r *stdhttp.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.RoutePath == "" {
		return ""
	}
	return strings.TrimRight(strings.TrimSuffix(r.URL.Path, rctx.RoutePath), "/")
}

func (h *Handler) write(w stdhttp.ResponseWriter, resp *http.Response) {
	body := h.buffers.Get(0)
	defer h.buffers.Put(body)

	if _, err := resp.WriteTo(body); err != nil {
		h.logger.Error("response contents failed", "error", err)
		body.Reset()
		resp = http.InternalServerError()
	}

	header := w.Header()
	for k, values := range resp.Header {
		switch strings.ToLower(k) {
		case "content-length", "content-type", "transfer-encoding", "connection":
			continue
		}
		for _, v := range values {
			header.Add(k, v)
		}
	}
	if resp.ContentType != "" {
		header.Set("Content-Type", resp.ContentType)
	}
	for _, cookie := range resp.Cookies {
		stdhttp.SetCookie(w, cookie)
	}
	allowed := bodyAllowed(resp.StatusCode)
	if allowed {
		header.Set("Content-Length", strconv.Itoa(body.Len()))
	}

	w.WriteHeader(resp.StatusCode)
	if !allowed || body.Len() == 0 {
		return
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		h.logger.Debug("write failed", "error", err)
	}
}

func bodyAllowed(code int) bool {
	return code >= 200 && code != stdhttp.StatusNoContent && code != stdhttp.StatusNotModified
}
