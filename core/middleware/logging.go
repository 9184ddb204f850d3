package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/searchktools/fast-host/core/http"
	"github.com/searchktools/fast-host/core/pipeline"
)

const startTimeKey = "middleware.start"

// Timing stashes the request start time for later hooks
func Timing() pipeline.BeforeFunc {
	return func(_ context.Context, c *http.Context) (*http.Response, error) {
		if _, ok := c.Get(startTimeKey); !ok {
			c.Set(startTimeKey, time.Now())
		}
		return nil, nil
	}
}

// Elapsed returns the time since Timing ran, or zero
func Elapsed(c *http.Context) time.Duration {
	v, ok := c.Get(startTimeKey)
	if !ok {
		return 0
	}
	start, ok := v.(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start)
}

// RequestLog logs one line per completed request
func RequestLog(logger *slog.Logger) pipeline.AfterFunc {
	if logger == nil {
		logger = slog.Default().With("component", "http")
	}
	return func(ctx context.Context, c *http.Context) error {
		status := 0
		if c.Response != nil {
			status = c.Response.StatusCode
		}
		route := ""
		if c.Route != nil {
			route = c.Route.Name()
		}

		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"route", route,
			"duration", Elapsed(c))
		return nil
	}
}

// InstallRequestLog registers the timing and request log hooks
func InstallRequestLog(set *pipeline.Set, logger *slog.Logger) {
	set.Before.AddToStart(pipeline.Item[pipeline.BeforeFunc]{Name: NameTiming, Delegate: Timing()}, true)
	set.After.AddToEnd(pipeline.Item[pipeline.AfterFunc]{Name: NameRequestLog, Delegate: RequestLog(logger)}, true)
}
