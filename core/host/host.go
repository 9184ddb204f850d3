package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/searchktools/fast-host/core/http"
	"github.com/searchktools/fast-host/core/pools"
	"github.com/searchktools/fast-host/core/ratelimit"
)

var (
	ErrNoPrefixes     = errors.New("at least one URI prefix is required")
	ErrAlreadyStarted = errors.New("host already started")
	ErrNotStarted     = errors.New("host not started")
)

// Handler dispatches a parsed request. The engine implements it.
type Handler interface {
	HandleRequest(ctx context.Context, req *http.Request) (*http.Context, error)
}

// ShutdownPolicy decides what happens to in-flight requests on Stop
type ShutdownPolicy int

const (
	// ShutdownDrain lets in-flight requests finish until the stop context ends
	ShutdownDrain ShutdownPolicy = iota
	// ShutdownAbandon cancels in-flight requests and closes their connections
	ShutdownAbandon
)

// ParseShutdownPolicy parses "drain" or "abandon"
func ParseShutdownPolicy(s string) (ShutdownPolicy, error) {
	switch strings.ToLower(s) {
	case "", "drain":
		return ShutdownDrain, nil
	case "abandon":
		return ShutdownAbandon, nil
	}
	return ShutdownDrain, fmt.Errorf("unknown shutdown policy %q", s)
}

// prefix is one URI prefix the host answers for
type prefix struct {
	scheme   string
	host     string
	port     int
	basePath string // no trailing slash; empty for the root
}

// endpoint groups the prefixes sharing one listening address
type endpoint struct {
	address  string
	prefixes []prefix
	listener net.Listener
}

// SelfHost owns the listening sockets and keeps N accepts outstanding per listener,
// where N is the limiter capacity.
type SelfHost struct {
	handler   Handler
	endpoints []*endpoint
	limiter   ratelimit.Limiter
	logger    *slog.Logger
	buffers   *pools.BufferPool

	readTimeout  time.Duration
	writeTimeout time.Duration
	policy       ShutdownPolicy
	reusePort    bool

	mu       sync.Mutex
	started  bool
	baseCtx  context.Context
	cancel   context.CancelFunc
	conns    map[net.Conn]struct{}
	stopping atomic.Bool
	accepts  sync.WaitGroup
	inflight sync.WaitGroup
}

// Option configures a SelfHost
type Option func(*SelfHost)

// WithLimiter sets the concurrency limiter
func WithLimiter(l ratelimit.Limiter) Option {
	return func(h *SelfHost) { h.limiter = l }
}

// WithLogger sets the host logger
func WithLogger(l *slog.Logger) Option {
	return func(h *SelfHost) { h.logger = l }
}

// WithTimeouts sets the per-connection read and write deadlines
func WithTimeouts(read, write time.Duration) Option {
	return func(h *SelfHost) {
		h.readTimeout = read
		h.writeTimeout = write
	}
}

// WithShutdownPolicy sets what Stop does with in-flight requests
func WithShutdownPolicy(p ShutdownPolicy) Option {
	return func(h *SelfHost) { h.policy = p }
}

// WithReusePort sets SO_REUSEPORT on the listening sockets where supported
func WithReusePort(enabled bool) Option {
	return func(h *SelfHost) { h.reusePort = enabled }
}

// WithBufferPool sets the pool used to buffer response bodies
func WithBufferPool(p *pools.BufferPool) Option {
	return func(h *SelfHost) { h.buffers = p }
}

// New creates a host for the given URI prefixes, e.g. "http://localhost:8080/app/"
func New(handler Handler, prefixes []string, opts ...Option) (*SelfHost, error) {
	if len(prefixes) == 0 {
		return nil, ErrNoPrefixes
	}

	h := &SelfHost{
		handler:      handler,
		readTimeout:  30 * time.Second,
		writeTimeout: 30 * time.Second,
		conns:        make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default().With("component", "host")
	}
	if h.buffers == nil {
		h.buffers = pools.NewBufferPool()
	}
	if h.limiter == nil {
		l, err := ratelimit.NewCountable(ratelimit.DefaultCapacity())
		if err != nil {
			return nil, err
		}
		h.limiter = l
	}

	byAddress := make(map[string]*endpoint)
	for _, raw := range prefixes {
		p, err := parsePrefix(raw)
		if err != nil {
			return nil, err
		}
		addr := net.JoinHostPort(bindHost(p.host), strconv.Itoa(p.port))
		ep, ok := byAddress[addr]
		if !ok {
			ep = &endpoint{address: addr}
			byAddress[addr] = ep
			h.endpoints = append(h.endpoints, ep)
		}
		ep.prefixes = append(ep.prefixes, p)
	}
	for _, ep := range h.endpoints {
		// Longest base path first so nested prefixes win
		sort.SliceStable(ep.prefixes, func(i, j int) bool {
			return len(ep.prefixes[i].basePath) > len(ep.prefixes[j].basePath)
		})
	}
	return h, nil
}

func parsePrefix(raw string) (prefix, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return prefix{}, fmt.Errorf("invalid prefix %q: %w", raw, err)
	}
	if u.Scheme != "http" {
		return prefix{}, fmt.Errorf("invalid prefix %q: only http is supported", raw)
	}
	if u.Hostname() == "" {
		return prefix{}, fmt.Errorf("invalid prefix %q: missing host", raw)
	}
	port := 80
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 0 || port > 65535 {
			return prefix{}, fmt.Errorf("invalid prefix %q: bad port", raw)
		}
	}
	return prefix{
		scheme:   u.Scheme,
		host:     u.Hostname(),
		port:     port,
		basePath: strings.TrimRight(u.Path, "/"),
	}, nil
}

// bindHost maps wildcard prefix hosts onto all interfaces
func bindHost(host string) string {
	switch host {
	case "+", "*", "0.0.0.0":
		return ""
	}
	return host
}

// Start binds every listener and arms the accept loops
func (h *SelfHost) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return ErrAlreadyStarted
	}

	lc := listenConfig(h.reusePort)
	for i, ep := range h.endpoints {
		ln, err := lc.Listen(ctx, "tcp", ep.address)
		if err != nil {
			for _, prev := range h.endpoints[:i] {
				prev.listener.Close()
				prev.listener = nil
			}
			return fmt.Errorf("listen %s: %w", ep.address, err)
		}
		ep.listener = ln
	}

	h.baseCtx, h.cancel = context.WithCancel(context.WithoutCancel(ctx))
	h.started = true
	h.stopping.Store(false)

	n := h.limiter.Capacity()
	if n <= 0 {
		n = ratelimit.DefaultCapacity()
	}
	for _, ep := range h.endpoints {
		h.logger.Info("listening", "address", ep.listener.Addr().String(), "accepts", n)
		for i := 0; i < n; i++ {
			h.accepts.Add(1)
			go h.acceptLoop(ep)
		}
	}
	return nil
}

// acceptLoop is one outstanding accept: accept, acquire a permit, process,
// release, then accept again.
func (h *SelfHost) acceptLoop(ep *endpoint) {
	defer h.accepts.Done()

	for {
		conn, err := ep.listener.Accept()
		if err != nil {
			if h.stopping.Load() {
				return
			}
			if errors.Is(err, net.ErrClosed) {
				h.logger.Error("listener closed unexpectedly", "address", ep.address, "error", err)
				return
			}
			h.logger.Error("accept failed", "address", ep.address, "error", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if !h.admit() {
			conn.Close()
			return
		}
		if err := h.limiter.Wait(h.baseCtx); err != nil {
			conn.Close()
			h.inflight.Done()
			return
		}
		h.serve(conn, ep)
		h.limiter.Release()
		h.inflight.Done()
	}
}

// admit counts an accepted connection as in flight, so a drain also waits for
// connections still queued on the limiter. It refuses once Stop has begun.
func (h *SelfHost) admit() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopping.Load() {
		return false
	}
	h.inflight.Add(1)
	return true
}

// Stop ends accepting, applies the shutdown policy and closes the listeners.
// With ShutdownDrain it waits for in-flight requests until ctx is done and
// then abandons what is left.
func (h *SelfHost) Stop(ctx context.Context) error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return ErrNotStarted
	}
	h.started = false
	h.stopping.Store(true)

	var errs []error
	for _, ep := range h.endpoints {
		if err := ep.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	h.mu.Unlock()

	if h.policy == ShutdownAbandon {
		h.abandon()
	} else {
		drained := make(chan struct{})
		go func() {
			h.inflight.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			h.logger.Warn("shutdown deadline reached, abandoning in-flight requests")
			h.abandon()
			errs = append(errs, ctx.Err())
		}
	}

	h.cancel()
	h.accepts.Wait()
	h.logger.Info("stopped")
	return errors.Join(errs...)
}

// abandon cancels request contexts and closes open connections
func (h *SelfHost) abandon() {
	h.cancel()
	h.mu.Lock()
	for conn := range h.conns {
		conn.Close()
	}
	h.mu.Unlock()
}

// IsListening reports whether the host is accepting connections
func (h *SelfHost) IsListening() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

// Addrs returns the bound listener addresses
func (h *SelfHost) Addrs() []net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []net.Addr
	for _, ep := range h.endpoints {
		if ep.listener != nil {
			out = append(out, ep.listener.Addr())
		}
	}
	return out
}

// Limiter returns the concurrency limiter
func (h *SelfHost) Limiter() ratelimit.Limiter {
	return h.limiter
}

func (h *SelfHost) track(conn net.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *SelfHost) untrack(conn net.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}
