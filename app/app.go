package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/searchktools/fast-host/config"
	"github.com/searchktools/fast-host/core"
	"github.com/searchktools/fast-host/core/embed"
	"github.com/searchktools/fast-host/core/host"
	"github.com/searchktools/fast-host/core/middleware"
	"github.com/searchktools/fast-host/core/pipeline"
	"github.com/searchktools/fast-host/core/pools"
	"github.com/searchktools/fast-host/core/ratelimit"
	"github.com/searchktools/fast-host/core/router"
)

// App wires configuration, routes, hooks, the engine and the self-host together
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	catalog *router.Catalog
	engine  *core.Engine
	host    *host.SelfHost
	buffers *pools.BufferPool
	metrics *middleware.Metrics
}

// Option configures an App
type Option func(*options)

type options struct {
	logger    *slog.Logger
	objects   middleware.ObjectGetter
	pipelines *pipeline.Set
}

// WithLogger replaces the logger built from the log configuration
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObjectGetter replaces the S3 client built from the s3 configuration
func WithObjectGetter(g middleware.ObjectGetter) Option {
	return func(o *options) { o.objects = g }
}

// WithPipelines starts from caller-provided hooks; configured middleware is added to them
func WithPipelines(p *pipeline.Set) Option {
	return func(o *options) { o.pipelines = p }
}

// New creates an application serving modules
func New(cfg *config.Config, modules []*router.Module, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = NewLogger(cfg.Log, os.Stderr)
	}
	if o.pipelines == nil {
		o.pipelines = pipeline.NewSet()
	}

	a := &App{
		cfg:     cfg,
		logger:  o.logger,
		buffers: pools.NewBufferPool(),
	}

	modules = append([]*router.Module(nil), modules...)
	if cfg.Metrics.Enabled {
		a.metrics = middleware.NewMetrics(middleware.WithNamespace(cfg.Metrics.Namespace))
		modules = append(modules, a.metrics.Module(cfg.Metrics.Path))
	}
	a.install(o.pipelines, o.objects)

	a.catalog = router.NewCatalog(modules...)
	a.engine = core.NewEngine(
		router.NewResolver(a.catalog, router.WithSafeRoots(cfg.Host.SafeRoots...)),
		core.WithPipelines(o.pipelines),
		core.WithLogger(a.logger.With("component", "engine")),
	)

	limiter, err := newLimiter(cfg.Host.Concurrency)
	if err != nil {
		return nil, err
	}
	policy, err := host.ParseShutdownPolicy(cfg.Host.ShutdownPolicy)
	if err != nil {
		return nil, err
	}
	a.host, err = host.New(a.engine, cfg.Host.Prefixes,
		host.WithLimiter(limiter),
		host.WithLogger(a.logger.With("component", "host")),
		host.WithTimeouts(cfg.Host.ReadTimeout, cfg.Host.WriteTimeout),
		host.WithShutdownPolicy(policy),
		host.WithReusePort(cfg.Host.ReusePort),
		host.WithBufferPool(a.buffers),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// install registers the configured middleware. Hooks installed at the start
// of a pipeline end up in reverse order of installation.
func (a *App) install(set *pipeline.Set, objects middleware.ObjectGetter) {
	cfg := a.cfg

	if cfg.Throttle.RequestsPerSecond > 0 {
		middleware.InstallThrottle(set, cfg.Throttle.RequestsPerSecond)
	}
	if cfg.CORS.Enabled {
		middleware.InstallCORS(set, middleware.CORSConfig{
			AllowOrigin:  cfg.CORS.AllowOrigin,
			AllowMethods: cfg.CORS.AllowMethods,
			AllowHeaders: cfg.CORS.AllowHeaders,
			MaxAge:       cfg.CORS.MaxAge,
		})
	}
	if cfg.Static.Enabled {
		middleware.InstallStatic(set, cfg.Static.Prefix, cfg.Static.Dir)
	}
	if cfg.S3.Enabled {
		if objects == nil {
			objects = middleware.NewS3Client(cfg.S3.Region, cfg.S3.Endpoint)
		}
		middleware.InstallS3Content(set, objects, cfg.S3.Bucket, cfg.S3.KeyPrefix, cfg.S3.Prefix)
	}
	if cfg.Compression.Enabled {
		middleware.InstallCompression(set, cfg.Compression.Level)
	}
	if cfg.RequestID {
		middleware.InstallRequestID(set)
	}
	if cfg.Tracing.Enabled {
		middleware.NewTracing(middleware.WithTracerName(cfg.Tracing.TracerName)).Install(set)
	}
	if a.metrics != nil {
		a.metrics.Install(set)
	}
	middleware.InstallRequestLog(set, a.logger.With("component", "http"))
}

func newLimiter(concurrency int) (ratelimit.Limiter, error) {
	switch {
	case concurrency < 0:
		return ratelimit.None{}, nil
	case concurrency == 0:
		return ratelimit.NewCountable(ratelimit.DefaultCapacity())
	}
	return ratelimit.NewCountable(concurrency)
}

// NewLogger builds the logger described by cfg
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// Engine returns the request engine
func (a *App) Engine() *core.Engine {
	return a.engine
}

// Catalog returns the registered modules
func (a *App) Catalog() *router.Catalog {
	return a.catalog
}

// Host returns the self-host
func (a *App) Host() *host.SelfHost {
	return a.host
}

// Metrics returns the metrics hooks, or nil when metrics are disabled
func (a *App) Metrics() *middleware.Metrics {
	return a.metrics
}

// Handler returns a net/http adapter over the same engine, for embedding
func (a *App) Handler(opts ...embed.Option) *embed.Handler {
	opts = append([]embed.Option{
		embed.WithLogger(a.logger.With("component", "embed")),
		embed.WithBufferPool(a.buffers),
	}, opts...)
	return embed.New(a.engine, opts...)
}

// Start applies runtime tuning and starts listening
func (a *App) Start(ctx context.Context) error {
	ApplyRuntime(a.cfg.Runtime)
	return a.host.Start(ctx)
}

// Shutdown stops the host, giving in-flight requests the configured timeout
func (a *App) Shutdown(ctx context.Context) error {
	if a.cfg.Host.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Host.ShutdownTimeout)
		defer cancel()
	}
	return a.host.Stop(ctx)
}

// Run starts the application and blocks until ctx ends or SIGINT/SIGTERM
// arrives, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	for _, addr := range a.host.Addrs() {
		a.logger.Info("serving", "address", addr.String(), "modules", len(a.catalog.Modules()))
	}

	<-ctx.Done()
	a.logger.Info("shutting down", "reason", context.Cause(ctx))

	err := a.Shutdown(context.WithoutCancel(ctx))
	if errors.Is(err, context.DeadlineExceeded) {
		a.logger.Warn("in-flight requests abandoned at shutdown deadline")
	}
	stats := ReadRuntimeStats()
	buffers := a.buffers.Stats()
	a.logger.Debug("runtime",
		"gc_cycles", stats.NumGC,
		"gc_pause_total", stats.PauseTotal,
		"heap_alloc", stats.AllocBytes,
		"goroutines", stats.NumGoroutine,
		"buffer_gets", buffers.Gets,
		"buffers_discarded", buffers.Discarded)
	return err
}
