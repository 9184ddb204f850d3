package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables read by Load
const EnvPrefix = "FASTHOST"

// Config holds all application configuration.
type Config struct {
	Host        HostConfig        `config:"host"`
	Log         LogConfig         `config:"log"`
	Static      StaticConfig      `config:"static"`
	S3          S3Config          `config:"s3"`
	Metrics     MetricsConfig     `config:"metrics"`
	Tracing     TracingConfig     `config:"tracing"`
	Compression CompressionConfig `config:"compression"`
	CORS        CORSConfig        `config:"cors"`
	Throttle    ThrottleConfig    `config:"throttle"`
	RequestID   bool              `config:"request_id"`
	Runtime     RuntimeConfig     `config:"runtime"`
}

// HostConfig configures the self-host listener.
// Concurrency is the number of requests served at once: 0 picks a default
// from the CPU count, a negative value disables the limit.
type HostConfig struct {
	Prefixes        []string      `config:"prefixes"`
	Concurrency     int           `config:"concurrency"`
	ReadTimeout     time.Duration `config:"read_timeout"`
	WriteTimeout    time.Duration `config:"write_timeout"`
	ShutdownTimeout time.Duration `config:"shutdown_timeout"`
	ShutdownPolicy  string        `config:"shutdown_policy"`
	ReusePort       bool          `config:"reuse_port"`
	SafeRoots       []string      `config:"safe_roots"`
}

type LogConfig struct {
	Level  string `config:"level"`
	Format string `config:"format"`
}

type StaticConfig struct {
	Enabled bool   `config:"enabled"`
	Prefix  string `config:"prefix"`
	Dir     string `config:"dir"`
}

type S3Config struct {
	Enabled   bool   `config:"enabled"`
	Region    string `config:"region"`
	Endpoint  string `config:"endpoint"`
	Bucket    string `config:"bucket"`
	KeyPrefix string `config:"key_prefix"`
	Prefix    string `config:"prefix"`
}

type MetricsConfig struct {
	Enabled   bool   `config:"enabled"`
	Path      string `config:"path"`
	Namespace string `config:"namespace"`
}

type TracingConfig struct {
	Enabled    bool   `config:"enabled"`
	TracerName string `config:"tracer_name"`
}

type CompressionConfig struct {
	Enabled bool `config:"enabled"`
	Level   int  `config:"level"`
}

type CORSConfig struct {
	Enabled      bool          `config:"enabled"`
	AllowOrigin  string        `config:"allow_origin"`
	AllowMethods []string      `config:"allow_methods"`
	AllowHeaders []string      `config:"allow_headers"`
	MaxAge       time.Duration `config:"max_age"`
}

// RuntimeConfig tunes the Go garbage collector; zero values leave it alone
type RuntimeConfig struct {
	GCPercent   int   `config:"gc_percent"`
	MemoryLimit int64 `config:"memory_limit"`
}

type ThrottleConfig struct {
	RequestsPerSecond int `config:"rps"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host: HostConfig{
			Prefixes:        []string{"http://localhost:8080/"},
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			ShutdownPolicy:  "drain",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Static: StaticConfig{
			Prefix: "/static",
			Dir:    "./public",
		},
		S3: S3Config{
			Region: "us-east-1",
			Prefix: "/content",
		},
		Metrics: MetricsConfig{
			Path:      "/metrics",
			Namespace: "fasthost",
		},
		Tracing: TracingConfig{
			TracerName: "fasthost",
		},
		Compression: CompressionConfig{
			Level: -1,
		},
		CORS: CORSConfig{
			AllowOrigin:  "*",
			AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Content-Type", "Authorization"},
		},
	}
}

// flagKeys maps command-line flag names to configuration keys
var flagKeys = map[string]string{
	"prefix":           "host.prefixes",
	"concurrency":      "host.concurrency",
	"read-timeout":     "host.read_timeout",
	"write-timeout":    "host.write_timeout",
	"shutdown-timeout": "host.shutdown_timeout",
	"shutdown-policy":  "host.shutdown_policy",
	"reuse-port":       "host.reuse_port",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"static-dir":       "static.dir",
	"metrics":          "metrics.enabled",
	"tracing":          "tracing.enabled",
	"gzip":             "compression.enabled",
	"request-id":       "request_id",
	"throttle":         "throttle.rps",
}

// BindFlags registers the command-line overrides on fs.
// Only flags that are set take part in Load.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.StringSlice("prefix", d.Host.Prefixes, "URI prefixes to listen on")
	fs.Int("concurrency", d.Host.Concurrency, "max concurrent requests (0 = 2x CPUs, <0 = unlimited)")
	fs.Duration("read-timeout", d.Host.ReadTimeout, "connection read timeout")
	fs.Duration("write-timeout", d.Host.WriteTimeout, "connection write timeout")
	fs.Duration("shutdown-timeout", d.Host.ShutdownTimeout, "time allowed for in-flight requests on shutdown")
	fs.String("shutdown-policy", d.Host.ShutdownPolicy, "drain or abandon in-flight requests on shutdown")
	fs.Bool("reuse-port", d.Host.ReusePort, "set SO_REUSEPORT on listeners")
	fs.String("log-level", d.Log.Level, "debug, info, warn or error")
	fs.String("log-format", d.Log.Format, "text or json")
	fs.String("static-dir", d.Static.Dir, "directory served under the static prefix")
	fs.Bool("metrics", d.Metrics.Enabled, "expose Prometheus metrics")
	fs.Bool("tracing", d.Tracing.Enabled, "record OpenTelemetry spans")
	fs.Bool("gzip", d.Compression.Enabled, "gzip compressible responses")
	fs.Bool("request-id", d.RequestID, "assign X-Request-ID to every response")
	fs.Int("throttle", d.Throttle.RequestsPerSecond, "requests per second before 429 (0 = off)")
}

// Load builds the configuration. Precedence, lowest first: defaults, the JSON
// file at path, FASTHOST_ environment variables, then flags set on fs.
// Setting static-dir on the command line enables static content.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	m := NewManager()
	if path != "" {
		if err := m.LoadFromJSON(path); err != nil {
			return nil, err
		}
	}
	m.LoadFromEnv(EnvPrefix)
	if fs != nil {
		m.LoadFromFlags(fs, flagKeys)
		if f := fs.Lookup("static-dir"); f != nil && f.Changed {
			m.Set("static.enabled", true)
		}
	}

	cfg := Default()
	if err := m.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting
func (c *Config) Validate() error {
	var errs []error
	if len(c.Host.Prefixes) == 0 {
		errs = append(errs, errors.New("host.prefixes: at least one prefix is required"))
	}
	switch strings.ToLower(c.Host.ShutdownPolicy) {
	case "", "drain", "abandon":
	default:
		errs = append(errs, fmt.Errorf("host.shutdown_policy: unknown policy %q", c.Host.ShutdownPolicy))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if c.Static.Enabled && c.Static.Dir == "" {
		errs = append(errs, errors.New("static.dir: required when static content is enabled"))
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, errors.New("s3.bucket: required when S3 content is enabled"))
	}
	if c.Compression.Level < -2 || c.Compression.Level > 9 {
		errs = append(errs, fmt.Errorf("compression.level: %d is outside -2..9", c.Compression.Level))
	}
	if c.Runtime.MemoryLimit < 0 {
		errs = append(errs, errors.New("runtime.memory_limit: must not be negative"))
	}
	if c.Throttle.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("throttle.rps: must not be negative"))
	}
	return errors.Join(errs...)
}
