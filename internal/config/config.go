// Package config loads the service configuration from defaults, an optional
// config file, an optional .env file and ECOSENSOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/ecosensor/ecosensor/internal/geo"
)

// EnvPrefix prefixes every environment variable: ECOSENSOR_FEED_BASE_URL → feed.base_url.
const EnvPrefix = "ECOSENSOR"

// Config holds all application configuration.
type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Feed        FeedConfig       `mapstructure:"feed"`
	Geocoder    GeocoderConfig   `mapstructure:"geocoder"`
	Layers      LayersConfig     `mapstructure:"layers"`
	Projection  ProjectionConfig `mapstructure:"projection"`
	Query       QueryConfig      `mapstructure:"query"`
	Telemetry   TelemetryConfig  `mapstructure:"telemetry"`
	Log         LogConfig        `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequireTLS      bool          `mapstructure:"require_tls"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// FeedConfig points at the monitoring feed.
type FeedConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries uint64        `mapstructure:"max_retries"`
}

// GeocoderConfig configures the Nominatim client.
type GeocoderConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Language   string        `mapstructure:"language"`
	UserAgent  string        `mapstructure:"user_agent"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries uint64        `mapstructure:"max_retries"`
}

// LayersConfig selects catalog layers; an empty filter field disables filtering.
type LayersConfig struct {
	FilterField string `mapstructure:"filter_field"`
	FilterValue string `mapstructure:"filter_value"`
}

// ProjectionConfig names the CRS of feature geometries and record coordinates.
type ProjectionConfig struct {
	FeatureCRS string `mapstructure:"feature_crs"`
	RecordCRS  string `mapstructure:"record_crs"`
}

// QueryConfig tunes query execution.
type QueryConfig struct {
	Concurrency  int  `mapstructure:"concurrency"`
	WithLocation bool `mapstructure:"with_location"`
}

// TelemetryConfig controls OTLP export.
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// LogConfig sets the zerolog level.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Option customizes Load.
type Option func(*loader)

type loader struct {
	envFiles    []string
	configPaths []string
}

// WithEnvFiles sets the .env files to read (default: ".env"). Missing files are ignored.
func WithEnvFiles(files ...string) Option {
	return func(l *loader) { l.envFiles = files }
}

// WithConfigPaths sets the directories searched for config.yaml.
func WithConfigPaths(paths ...string) Option {
	return func(l *loader) { l.configPaths = paths }
}

// Load reads configuration. Variables already in the environment win over .env files.
func Load(opts ...Option) (*Config, error) {
	l := &loader{
		envFiles:    []string{".env"},
		configPaths: []string{".", "./configs"},
	}
	for _, opt := range opts {
		opt(l)
	}

	for _, file := range l.envFiles {
		// godotenv.Load never overrides variables that are already set.
		_ = godotenv.Load(file) //nolint:errcheck // the file is optional
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range l.configPaths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.require_tls", false)

	v.SetDefault("feed.base_url", "https://d17kn6fj50jzfv.cloudfront.net/air_quality")
	v.SetDefault("feed.timeout", 10*time.Second)
	v.SetDefault("feed.max_retries", 2)

	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.language", "it")
	v.SetDefault("geocoder.user_agent", "ecosensor/1.0")
	v.SetDefault("geocoder.timeout", 10*time.Second)
	v.SetDefault("geocoder.max_retries", 2)

	v.SetDefault("layers.filter_field", "typeMonitoringData")
	v.SetDefault("layers.filter_value", "0")

	v.SetDefault("projection.feature_crs", string(geo.WebMercator))
	v.SetDefault("projection.record_crs", string(geo.WebMercator))

	v.SetDefault("query.concurrency", 4)
	v.SetDefault("query.with_location", true)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "ecosensor-api")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")

	v.SetDefault("log.level", "info")
}

// Validate checks that configuration values are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	for name, d := range map[string]time.Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"feed.timeout":            c.Feed.Timeout,
		"geocoder.timeout":        c.Geocoder.Timeout,
	} {
		if d <= 0 {
			errs = append(errs, name+" must be positive")
		}
	}
	if err := validateURL(c.Feed.BaseURL); err != nil {
		errs = append(errs, "feed.base_url "+err.Error())
	}
	if err := validateURL(c.Geocoder.BaseURL); err != nil {
		errs = append(errs, "geocoder.base_url "+err.Error())
	}
	if _, err := geo.ParseCRS(c.Projection.FeatureCRS); err != nil {
		errs = append(errs, "projection.feature_crs: "+err.Error())
	}
	if _, err := geo.ParseCRS(c.Projection.RecordCRS); err != nil {
		errs = append(errs, "projection.record_crs: "+err.Error())
	}
	if c.Query.Concurrency <= 0 {
		errs = append(errs, fmt.Sprintf("query.concurrency must be positive, got %d", c.Query.Concurrency))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level %q is not a valid level", c.Log.Level))
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		errs = append(errs, "telemetry.otlp_endpoint is required when telemetry is enabled")
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http(s) URL, got %q", raw)
	}
	return nil
}
