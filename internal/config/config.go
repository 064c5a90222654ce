package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/reactivator/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "reactivator.yaml"

	// DefaultPort is the default HTTP server port.
	DefaultPort = 8080

	// DefaultHost is the default HTTP server host.
	DefaultHost = "localhost"

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultQueueSize is the default event loop queue size.
	DefaultQueueSize = 256

	// DefaultMetricsPath is where Prometheus metrics are served.
	DefaultMetricsPath = "/metrics"

	// DefaultNamespace is the Prometheus metric namespace.
	DefaultNamespace = "reactivator"

	// DefaultTracerName is the OpenTelemetry tracer name.
	DefaultTracerName = "reactivator"
)

// Source types accepted in bindings.
const (
	SourceClock     = "clock"
	SourceNetStatus = "netstatus"
	SourceS3Object  = "s3object"
)

// Config represents the complete reactivator.yaml configuration.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `yaml:"server"`

	// Loop contains event loop settings.
	Loop LoopConfig `yaml:"loop"`

	// Log contains logging settings.
	Log LogConfig `yaml:"log"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry settings.
	Tracing TracingConfig `yaml:"tracing"`

	// Bindings maps component fields to shared sources.
	Bindings []BindingConfig `yaml:"bindings"`

	// path stores the file the config was loaded from.
	path string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// LoopConfig contains event loop settings.
type LoopConfig struct {
	// QueueSize is the number of pending callbacks before Dispatch drops.
	QueueSize int `yaml:"queue_size"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	TracerName string `yaml:"tracer_name"`
}

// BindingConfig binds one component field to a source.
type BindingConfig struct {
	// Field is the component field name fed by the source.
	Field string `yaml:"field"`

	// Source is the source type: clock, netstatus or s3object.
	Source string `yaml:"source"`

	// Interval is the poll or tick interval. Zero uses the source default.
	Interval Duration `yaml:"interval"`

	// Timeout bounds each probe or request (netstatus, s3object).
	Timeout Duration `yaml:"timeout"`

	// URL is the probe target (netstatus).
	URL string `yaml:"url"`

	// Bucket, Key, Region and Endpoint locate the object (s3object).
	Bucket   string `yaml:"bucket"`
	Key      string `yaml:"key"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ShutdownTimeout: Duration(DefaultShutdownTimeout),
		},
		Loop: LoopConfig{
			QueueSize: DefaultQueueSize,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Path:      DefaultMetricsPath,
			Namespace: DefaultNamespace,
		},
		Tracing: TracingConfig{
			TracerName: DefaultTracerName,
		},
	}
}

// Load reads configuration from the specified file path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeConfigRead).
			WithField(path).
			Wrap(err)
	}

	cfg, err := Parse(data)
	if err != nil {
		var e *errors.Error
		if stderrors.As(err, &e) && e.Field == "" {
			e.WithField(path)
		}
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}

// LoadOrDefault loads path if it exists, or returns the defaults when it
// does not.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return Load(path)
}

// Parse parses YAML configuration data on top of the defaults.
// Unknown keys are rejected. Environment variables are expanded in binding
// string values.
func Parse(data []byte) (*Config, error) {
	cfg := New()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.New(errors.CodeConfigParse).
			WithDetail(err.Error())
	}

	cfg.applyDefaults()
	if err := cfg.expandEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// applyDefaults fills in default values for fields an explicit YAML value
// left empty.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if c.Loop.QueueSize == 0 {
		c.Loop.QueueSize = DefaultQueueSize
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultTracerName
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		sub := envVarPattern.FindStringSubmatch(match)
		name := sub[1]
		hasDefault := sub[2] != ""

		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		if hasDefault {
			return sub[3]
		}
		firstErr = fmt.Errorf("environment variable %q is not set", name)
		return match
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

func (c *Config) expandEnv() error {
	for i := range c.Bindings {
		b := &c.Bindings[i]
		for name, p := range map[string]*string{
			"url":      &b.URL,
			"bucket":   &b.Bucket,
			"key":      &b.Key,
			"region":   &b.Region,
			"endpoint": &b.Endpoint,
		} {
			expanded, err := expandEnvVars(*p)
			if err != nil {
				return errors.New(errors.CodeConfigInvalid).
					WithField(fmt.Sprintf("bindings[%d].%s", i, name)).
					WithDetail(err.Error())
			}
			*p = expanded
		}
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port", "port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() < 0 {
		return invalid("server.shutdown_timeout", "shutdown timeout cannot be negative")
	}
	if c.Loop.QueueSize < 1 {
		return invalid("loop.queue_size", "queue size must be positive, got %d", c.Loop.QueueSize)
	}
	if _, err := c.SlogLevel(); err != nil {
		return invalid("log.level", "%v", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format", "format must be text or json, got %q", c.Log.Format)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalid("metrics.path", "path must start with /, got %q", c.Metrics.Path)
	}

	seen := make(map[string]int, len(c.Bindings))
	for i, b := range c.Bindings {
		field := fmt.Sprintf("bindings[%d]", i)

		if b.Field == "" {
			return invalid(field+".field", "field is required")
		}
		if first, dup := seen[b.Field]; dup {
			return errors.New(errors.CodeDuplicateField).
				WithField(field + ".field").
				WithDetail(fmt.Sprintf("%q is already bound by bindings[%d]", b.Field, first))
		}
		seen[b.Field] = i

		if b.Interval.Duration() < 0 {
			return invalid(field+".interval", "interval cannot be negative")
		}
		if b.Timeout.Duration() < 0 {
			return invalid(field+".timeout", "timeout cannot be negative")
		}

		switch b.Source {
		case SourceClock:
		case SourceNetStatus:
			if err := validateURL(b.URL); err != nil {
				return invalid(field+".url", "%v", err)
			}
		case SourceS3Object:
			if b.Bucket == "" {
				return invalid(field+".bucket", "bucket is required for s3object")
			}
			if b.Key == "" {
				return invalid(field+".key", "key is required for s3object")
			}
			if b.Endpoint != "" {
				if err := validateURL(b.Endpoint); err != nil {
					return invalid(field+".endpoint", "%v", err)
				}
			}
		default:
			return errors.New(errors.CodeUnknownSource).
				WithField(field + ".source").
				WithDetail(fmt.Sprintf("%q is not a known source", b.Source))
		}
	}
	return nil
}

func invalid(field, format string, args ...any) *errors.Error {
	return errors.New(errors.CodeConfigInvalid).
		WithField(field).
		WithDetail(fmt.Sprintf(format, args...))
}

func validateURL(raw string) error {
	if raw == "" {
		return stderrors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return level, nil
}

// NewLogger builds a slog.Logger writing to w with the configured level and
// format.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := c.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
