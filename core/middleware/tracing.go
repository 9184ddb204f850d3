package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/searchktools/fast-host/core/http"
	"github.com/searchktools/fast-host/core/pipeline"
)

const (
	defaultTracerName = "fasthost"
	spanKey           = "middleware.span"
	traceContextKey   = "middleware.trace-context"
)

// TracingConfig configures the OpenTelemetry hooks.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "fasthost").
	TracerName string

	// Provider supplies the tracer. Default: the global provider.
	Provider trace.TracerProvider

	// Filter decides which requests are traced. If nil, all are.
	Filter func(c *http.Context) bool

	// AttributeExtractor adds custom attributes to each span.
	AttributeExtractor func(c *http.Context) []attribute.KeyValue
}

// TracingOption configures the OpenTelemetry hooks.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(provider trace.TracerProvider) TracingOption {
	return func(c *TracingConfig) {
		c.Provider = provider
	}
}

// WithSpanFilter sets a filter function for requests.
func WithSpanFilter(filter func(c *http.Context) bool) TracingOption {
	return func(c *TracingConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(c *http.Context) []attribute.KeyValue) TracingOption {
	return func(c *TracingConfig) {
		c.AttributeExtractor = extractor
	}
}

// Tracing opens one server span per request and ends it in the After or
// Error pipeline, whichever runs last.
type Tracing struct {
	config TracingConfig
	tracer trace.Tracer
}

// NewTracing creates the tracing hooks
func NewTracing(opts ...TracingOption) *Tracing {
	config := TracingConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}

	var tracer trace.Tracer
	if config.Provider != nil {
		tracer = config.Provider.Tracer(config.TracerName)
	} else {
		tracer = otel.Tracer(config.TracerName)
	}
	return &Tracing{config: config, tracer: tracer}
}

// Before starts the request span
func (t *Tracing) Before(ctx context.Context, c *http.Context) (*http.Response, error) {
	if t.config.Filter != nil && !t.config.Filter(c) {
		return nil, nil
	}

	name := fmt.Sprintf("%s %s", c.Method(), c.Path())
	attrs := []attribute.KeyValue{
		attribute.String("http.method", c.Method()),
		attribute.String("http.target", c.Path()),
		attribute.String("http.scheme", c.Request.URL.Scheme),
		attribute.String("net.peer.addr", c.Request.RemoteAddr),
	}
	if c.Route != nil {
		name = fmt.Sprintf("%s %s", c.Route.Method(), c.Route.Path())
		attrs = append(attrs,
			attribute.String("http.route", c.Route.Path()),
			attribute.String("fasthost.route.name", c.Route.Name()))
	}
	if t.config.AttributeExtractor != nil {
		attrs = append(attrs, t.config.AttributeExtractor(c)...)
	}

	spanCtx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
	c.Set(spanKey, span)
	c.Set(traceContextKey, spanCtx)
	return nil, nil
}

// After records the response status and ends the span
func (t *Tracing) After(_ context.Context, c *http.Context) error {
	span := t.take(c)
	if span == nil {
		return nil
	}
	if c.Response != nil {
		status := c.Response.StatusCode
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
	span.End()
	return nil
}

// OnError records the fault on the span and ends it
func (t *Tracing) OnError(c *http.Context, err error) any {
	span := t.take(c)
	if span == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
	return nil
}

// take removes the span from the context so it is ended once
func (t *Tracing) take(c *http.Context) trace.Span {
	v, ok := c.Get(spanKey)
	if !ok {
		return nil
	}
	c.Delete(spanKey)
	span, _ := v.(trace.Span)
	return span
}

// Install registers the tracing hooks in all three pipelines
func (t *Tracing) Install(set *pipeline.Set) {
	set.Before.AddToStart(pipeline.Item[pipeline.BeforeFunc]{Name: NameTracing, Delegate: t.Before}, true)
	set.After.AddToEnd(pipeline.Item[pipeline.AfterFunc]{Name: NameTracing, Delegate: t.After}, true)
	set.OnError.AddToStart(pipeline.Item[pipeline.ErrorFunc]{Name: NameTracing, Delegate: t.OnError}, true)
}

// SpanFromContext returns the active request span.
// Returns a non-recording span if tracing is not enabled.
func SpanFromContext(c *http.Context) trace.Span {
	if v, ok := c.Get(spanKey); ok {
		if span, ok := v.(trace.Span); ok {
			return span
		}
	}
	return trace.SpanFromContext(context.Background())
}

// TraceContext returns a context carrying the request span, for outbound calls.
// Returns ctx unchanged if tracing is not enabled.
func TraceContext(ctx context.Context, c *http.Context) context.Context {
	if v, ok := c.Get(traceContextKey); ok {
		if spanCtx, ok := v.(context.Context); ok {
			return trace.ContextWithSpan(ctx, trace.SpanFromContext(spanCtx))
		}
	}
	return ctx
}
