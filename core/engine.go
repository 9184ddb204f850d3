package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/searchktools/fast-host/core/http"
	"github.com/searchktools/fast-host/core/pipeline"
	"github.com/searchktools/fast-host/core/router"
)

// Engine runs requests through route resolution and the hook pipelines.
// It is transport independent; hosts hand it parsed requests.
type Engine struct {
	resolver  *router.Resolver
	pipelines *pipeline.Set
	negotiate http.Negotiator
	logger    *slog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithPipelines sets the hook pipelines
func WithPipelines(p *pipeline.Set) Option {
	return func(e *Engine) {
		e.pipelines = p
	}
}

// WithNegotiator replaces the default result negotiation
func WithNegotiator(n http.Negotiator) Option {
	return func(e *Engine) {
		e.negotiate = n
	}
}

// WithLogger sets the engine logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine serving the resolver's routes
func NewEngine(resolver *router.Resolver, opts ...Option) *Engine {
	e := &Engine{
		resolver:  resolver,
		pipelines: pipeline.NewSet(),
		negotiate: http.Negotiate,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default().With("component", "engine")
	}
	return e
}

// Pipelines returns the hook pipelines; mutate them only before serving
func (e *Engine) Pipelines() *pipeline.Set {
	return e.pipelines
}

// Resolver returns the route resolver
func (e *Engine) Resolver() *router.Resolver {
	return e.resolver
}

// HandleRequest dispatches req and returns its context holding the response.
// The caller writes the response and then closes the context.
// A canceled request returns ErrRequestCanceled and no response.
func (e *Engine) HandleRequest(ctx context.Context, req *http.Request) (*http.Context, error) {
	c := http.NewContext(req)

	state, err := e.dispatch(ctx, c)
	if err == nil {
		return c, nil
	}

	fault := &FaultError{State: state, Err: err}
	e.observe(c, fault)

	if isCanceled(ctx, err) {
		c.Response = nil
		e.logger.Debug("request canceled",
			"method", req.Method,
			"path", req.Path(),
			"state", state.String())
		return c, fmt.Errorf("%w: %w", ErrRequestCanceled, err)
	}

	e.logger.Error("request faulted",
		"method", req.Method,
		"path", req.Path(),
		"state", state.String(),
		"error", err)
	c.Response = http.InternalServerError()
	return c, nil
}

// dispatch walks the request through the state machine and returns the
// state reached when it stopped.
func (e *Engine) dispatch(ctx context.Context, c *http.Context) (State, error) {
	state := StateResolving
	var res router.ResolveResult
	if err := guard(func() error {
		res = e.resolver.Resolve(c)
		return nil
	}); err != nil {
		return state, err
	}
	c.Route = res.Route
	c.Params = res.Params

	if err := ctx.Err(); err != nil {
		return state, err
	}

	state = StateBeforeHooks
	var resp *http.Response
	if err := guard(func() error {
		var err error
		resp, err = e.pipelines.Before.Invoke(ctx, c)
		return err
	}); err != nil {
		return state, err
	}

	if resp == nil {
		state = StateInvoking
		if err := guard(func() error {
			result, err := res.Route.Invoke(ctx, c)
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			resp, err = e.negotiate(result, c)
			return err
		}); err != nil {
			return state, err
		}
		if resp == nil {
			return state, ErrNoResponse
		}
	}
	c.Response = resp

	if err := ctx.Err(); err != nil {
		return state, err
	}

	state = StateAfterHooks
	if err := guard(func() error {
		return e.pipelines.After.Invoke(ctx, c)
	}); err != nil {
		return state, err
	}

	return StateDone, nil
}

// observe runs the error pipeline. A fault inside it only gets logged.
func (e *Engine) observe(c *http.Context, fault *FaultError) {
	err := guard(func() error {
		if result := e.pipelines.OnError.Invoke(c, fault); result != nil {
			e.logger.Debug("error pipeline handled fault", "state", fault.State.String())
		}
		return nil
	})
	if err != nil {
		e.logger.Error("error pipeline faulted", "error", err)
	}
}

// guard converts a panic in fn into a PanicError
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
