// Package middleware provides hooks for the Before, After and Error pipelines:
// request logging, metrics, tracing, CORS, request IDs, throttling, static
// content from disk or S3, and response compression.
//
// Each hook is a plain pipeline delegate; components that need more than one
// delegate expose an Install method that registers them under a fixed name.
package middleware

// Pipeline item names
const (
	NameTiming      = "timing"
	NameRequestLog  = "request-log"
	NameMetrics     = "metrics"
	NameTracing     = "tracing"
	NameCORS        = "cors"
	NameRequestID   = "request-id"
	NameThrottle    = "throttle"
	NameStatic      = "static"
	NameS3Content   = "s3-content"
	NameCompression = "compression"
)
