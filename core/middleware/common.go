package middleware

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/searchktools/fast-host/core/http"
	"github.com/searchktools/fast-host/core/pipeline"
)

// CORSConfig lists the headers added to cross-origin responses
type CORSConfig struct {
	AllowOrigin  string
	AllowMethods []string
	AllowHeaders []string
	MaxAge       time.Duration
}

// DefaultCORSConfig allows any origin for the common methods
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigin:  "*",
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}
}

func (cfg CORSConfig) apply(resp *http.Response) {
	resp.WithHeader("Access-Control-Allow-Origin", cfg.AllowOrigin)
	resp.WithHeader("Access-Control-Allow-Methods", strings.Join(cfg.AllowMethods, ", "))
	resp.WithHeader("Access-Control-Allow-Headers", strings.Join(cfg.AllowHeaders, ", "))
	if cfg.MaxAge > 0 {
		resp.WithHeader("Access-Control-Max-Age", strconv.Itoa(int(cfg.MaxAge.Seconds())))
	}
}

// CORSPreflight answers OPTIONS requests carrying an Origin with 204
func CORSPreflight(cfg CORSConfig) pipeline.BeforeFunc {
	return func(_ context.Context, c *http.Context) (*http.Response, error) {
		if c.Method() != "OPTIONS" || c.Request.Header.Get("Origin") == "" {
			return nil, nil
		}
		return http.NewStatus(204), nil
	}
}

// CORSHeaders adds the CORS headers to every response
func CORSHeaders(cfg CORSConfig) pipeline.AfterFunc {
	return func(_ context.Context, c *http.Context) error {
		if c.Response != nil {
			cfg.apply(c.Response)
		}
		return nil
	}
}

// InstallCORS registers the CORS hooks
func InstallCORS(set *pipeline.Set, cfg CORSConfig) {
	set.Before.AddToEnd(pipeline.Item[pipeline.BeforeFunc]{Name: NameCORS, Delegate: CORSPreflight(cfg)}, true)
	set.After.AddToStart(pipeline.Item[pipeline.AfterFunc]{Name: NameCORS, Delegate: CORSHeaders(cfg)}, true)
}

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "middleware.request-id"
)

// RequestID reuses an incoming X-Request-ID or assigns a new UUID
func RequestID() pipeline.BeforeFunc {
	return func(_ context.Context, c *http.Context) (*http.Response, error) {
		id := c.Request.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		return nil, nil
	}
}

// EchoRequestID copies the request id onto the response
func EchoRequestID() pipeline.AfterFunc {
	return func(_ context.Context, c *http.Context) error {
		if c.Response == nil {
			return nil
		}
		if id := RequestIDFrom(c); id != "" {
			c.Response.WithHeader(requestIDHeader, id)
		}
		return nil
	}
}

// RequestIDFrom returns the id assigned to the request, or ""
func RequestIDFrom(c *http.Context) string {
	v, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}

// InstallRequestID registers the request id hooks
func InstallRequestID(set *pipeline.Set) {
	set.Before.AddToStart(pipeline.Item[pipeline.BeforeFunc]{Name: NameRequestID, Delegate: RequestID()}, true)
	set.After.AddToStart(pipeline.Item[pipeline.AfterFunc]{Name: NameRequestID, Delegate: EchoRequestID()}, true)
}

// Throttle rejects requests above requestsPerSecond with 429
func Throttle(requestsPerSecond int) pipeline.BeforeFunc {
	var (
		tokens     = requestsPerSecond
		lastRefill = time.Now()
		mu         sync.Mutex
	)

	return func(_ context.Context, c *http.Context) (*http.Response, error) {
		mu.Lock()

		now := time.Now()
		elapsed := now.Sub(lastRefill)
		if elapsed > time.Second {
			tokens = requestsPerSecond
			lastRefill = now
			elapsed = 0
		}

		if tokens > 0 {
			tokens--
			mu.Unlock()
			return nil, nil
		}
		retry := time.Second - elapsed
		mu.Unlock()

		resp, err := tooManyRequests(c)
		if err != nil {
			return nil, err
		}
		seconds := int(retry.Round(time.Second).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		return resp.WithHeader("Retry-After", strconv.Itoa(seconds)), nil
	}
}

func tooManyRequests(c *http.Context) (*http.Response, error) {
	if c.Formatter == nil {
		return http.NewText(429, "Too Many Requests"), nil
	}
	return c.Formatter.AsJSON(429, map[string]any{
		"error": "Too Many Requests",
	})
}

// InstallThrottle registers the throttle ahead of the route action
func InstallThrottle(set *pipeline.Set, requestsPerSecond int) {
	set.Before.AddToEnd(pipeline.Item[pipeline.BeforeFunc]{Name: NameThrottle, Delegate: Throttle(requestsPerSecond)}, true)
}
