package httpvalidator

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/erraggy/oasguard/formstream"
	"github.com/erraggy/oasguard/internal/options"
	"github.com/erraggy/oasguard/internal/telemetry"
	"github.com/erraggy/oasguard/logging"
	"github.com/erraggy/oasguard/schema"
)

// MultipartLimits bounds one multipart body. Zero means unlimited.
type MultipartLimits = formstream.Limits

// Option is a functional option for configuring a Middleware.
type Option func(*config) error

// Settings is the serializable part of the configuration. It is resolved once per
// operation and can be loaded from a config file with mapstructure.
type Settings struct {
	// DiscardUnknownBodies drains request bodies sent to operations that declare none.
	DiscardUnknownBodies bool `mapstructure:"discard_unknown_bodies"`
	// DiscardUnknownQueryParameters strips undeclared parameters from the request URL.
	DiscardUnknownQueryParameters bool `mapstructure:"discard_unknown_query_parameters"`
	// DiscardUnknownHeaders strips undeclared, non-standard request headers.
	DiscardUnknownHeaders bool `mapstructure:"discard_unknown_headers"`
	// ParseBodiesOnWildcard parses a body whose type matches several declarations,
	// using the most specific one. When false such bodies are passed through.
	ParseBodiesOnWildcard bool `mapstructure:"parse_bodies_on_wildcard"`
	// MaxBodySize caps JSON, XML and url-encoded bodies in bytes. Zero means unlimited.
	MaxBodySize int64 `mapstructure:"max_body_size" validate:"gte=0"`
	// ParameterLimit caps the number of url-encoded body parameters. Zero means unlimited.
	ParameterLimit int `mapstructure:"parameter_limit" validate:"gte=0"`
	// Multipart bounds multipart/form-data bodies.
	Multipart MultipartLimits `mapstructure:"multipart"`
}

// DefaultSettings returns the settings used when no option overrides them.
func DefaultSettings() Settings {
	return Settings{
		DiscardUnknownBodies:          true,
		DiscardUnknownQueryParameters: true,
		MaxBodySize:                   1 << 20,
		ParameterLimit:                1000,
		Multipart:                     formstream.DefaultLimits(),
	}
}

// config holds the resolved configuration of a Middleware.
type config struct {
	Settings

	registry     *schema.Registry
	logger       logging.Logger
	errorHandler ErrorHandler

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// defaultConfig returns the default configuration.
func defaultConfig() *config {
	return &config{
		Settings:     DefaultSettings(),
		logger:       logging.NopLogger{},
		errorHandler: DefaultErrorHandler,
	}
}

// newConfig applies opts over the defaults and validates the result.
func newConfig(opts []Option) (*config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := options.Validate(cfg.Settings); err != nil {
		return nil, err
	}
	if cfg.registry == nil {
		cfg.registry = schema.Default()
	}
	return cfg, nil
}

func (c *config) telemetry() (*telemetry.Telemetry, error) {
	return telemetry.New(c.tracerProvider, c.meterProvider)
}

// WithSettings replaces every serializable setting at once.
func WithSettings(s Settings) Option {
	return func(c *config) error {
		c.Settings = s
		return nil
	}
}

// WithDiscardUnknownBodies sets whether bodies sent to an operation that declares
// none are drained. Default is true.
func WithDiscardUnknownBodies(discard bool) Option {
	return func(c *config) error {
		c.DiscardUnknownBodies = discard
		return nil
	}
}

// WithDiscardUnknownQueryParameters sets whether undeclared query parameters are
// removed from the URL seen by the handler. Default is true.
func WithDiscardUnknownQueryParameters(discard bool) Option {
	return func(c *config) error {
		c.DiscardUnknownQueryParameters = discard
		return nil
	}
}

// WithDiscardUnknownHeaders sets whether undeclared headers are removed from the
// request seen by the handler. Standard HTTP headers are always kept.
// Default is false.
func WithDiscardUnknownHeaders(discard bool) Option {
	return func(c *config) error {
		c.DiscardUnknownHeaders = discard
		return nil
	}
}

// WithParseBodiesOnWildcard sets whether a body matching several declared media
// types is parsed with the most specific one. Default is false.
func WithParseBodiesOnWildcard(parse bool) Option {
	return func(c *config) error {
		c.ParseBodiesOnWildcard = parse
		return nil
	}
}

// WithMaxBodySize sets the maximum JSON, XML or url-encoded body size in bytes.
// Default: 1 MiB.
func WithMaxBodySize(n int64) Option {
	return func(c *config) error {
		c.MaxBodySize = n
		return nil
	}
}

// WithParameterLimit sets the maximum number of url-encoded body parameters.
// Default: 1000.
func WithParameterLimit(n int) Option {
	return func(c *config) error {
		c.ParameterLimit = n
		return nil
	}
}

// WithMultipartLimits sets the multipart part, count and size limits.
func WithMultipartLimits(limits MultipartLimits) Option {
	return func(c *config) error {
		c.Multipart = limits
		return nil
	}
}

// WithRegistry compiles against registry instead of the process-wide one.
func WithRegistry(registry *schema.Registry) Option {
	return func(c *config) error {
		if registry == nil {
			return fmt.Errorf("httpvalidator: registry cannot be nil")
		}
		c.registry = registry
		return nil
	}
}

// WithLogger sets the logger. Default discards everything.
func WithLogger(l logging.Logger) Option {
	return func(c *config) error {
		c.logger = logging.OrNop(l)
		return nil
	}
}

// WithErrorHandler replaces the handler that renders rejected requests.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *config) error {
		if h == nil {
			return fmt.Errorf("httpvalidator: error handler cannot be nil")
		}
		c.errorHandler = h
		return nil
	}
}

// WithTelemetry records spans and failure counts with the given providers. Nil
// providers use the otel globals, which is also the default.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(c *config) error {
		c.tracerProvider = tp
		c.meterProvider = mp
		return nil
	}
}
