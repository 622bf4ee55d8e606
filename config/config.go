package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jonwraymond/locator/observe"
	"github.com/jonwraymond/locator/resilience"
	"github.com/jonwraymond/locator/store"
)

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("config validation failed")

// Store kinds.
const (
	StoreMemory   = "memory"
	StoreValkey   = "valkey"
	StorePostgres = "postgres"
	StoreTiered   = "tiered"
)

// Backend names understood by provider.NewDefaultRegistry.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// Config holds all locatord configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Store     StoreConfig     `mapstructure:"store"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Chain     ChainConfig     `mapstructure:"chain"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// BackendConfig selects the platform location service.
type BackendConfig struct {
	Name string `mapstructure:"name"`
	// Enabled lists providers that start switched on.
	Enabled []string `mapstructure:"enabled"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Prefix        string        `mapstructure:"prefix"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// StoreConfig selects where last-known fixes are kept.
type StoreConfig struct {
	Kind        string        `mapstructure:"kind"`
	TTL         time.Duration `mapstructure:"ttl"`
	ValkeyAddr  string        `mapstructure:"valkey_addr"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
	Migrate     bool          `mapstructure:"migrate"`
	Breaker     BreakerConfig `mapstructure:"breaker"`
}

// Policy returns the store retention policy.
func (s StoreConfig) Policy() store.Policy {
	return store.Policy{TTL: s.TTL}
}

type BreakerConfig struct {
	MaxFailures  int           `mapstructure:"max_failures"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

// New returns a circuit breaker named name with these settings.
func (b BreakerConfig) New(name string, onChange func(name string, from, to resilience.State)) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:          name,
		MaxFailures:   b.MaxFailures,
		ResetTimeout:  b.ResetTimeout,
		OnStateChange: onChange,
	})
}

// AuthConfig enables JWT checks on location reads when Secret is set.
type AuthConfig struct {
	Secret   string `mapstructure:"secret"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
}

// Enabled reports whether requests must carry a token.
func (a AuthConfig) Enabled() bool { return a.Secret != "" }

type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	Version     string  `mapstructure:"version"`
	Tracing     string  `mapstructure:"tracing"`
	Metrics     string  `mapstructure:"metrics"`
	SamplePct   float64 `mapstructure:"sample_pct"`
	LogLevel    string  `mapstructure:"log_level"`

	// SampleAlways lists span name prefixes traced regardless of SamplePct.
	SampleAlways []string `mapstructure:"sample_always"`
}

// Observe converts t to an observe.Config. An exporter of "none" disables
// the signal.
func (t TelemetryConfig) Observe() observe.Config {
	return observe.Config{
		ServiceName: t.ServiceName,
		Version:     t.Version,
		Tracing: observe.TracingConfig{
			Enabled:      t.Tracing != "none",
			Exporter:     t.Tracing,
			SamplePct:    t.SamplePct,
			AlwaysSample: t.SampleAlways,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  t.Metrics != "none",
			Exporter: t.Metrics,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   t.LogLevel,
		},
	}
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "60s")

	v.SetDefault("backend.name", BackendMemory)
	v.SetDefault("backend.enabled", []string{"gps", "network", "passive"})

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.prefix", "location")
	v.SetDefault("nats.reconnect_wait", "2s")

	v.SetDefault("store.kind", StoreMemory)
	v.SetDefault("store.ttl", "24h")
	v.SetDefault("store.valkey_addr", "localhost:6379")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.migrate", true)
	v.SetDefault("store.breaker.max_failures", 5)
	v.SetDefault("store.breaker.reset_timeout", "30s")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")

	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.version", "dev")
	v.SetDefault("telemetry.tracing", "none")
	v.SetDefault("telemetry.metrics", "prometheus")
	v.SetDefault("telemetry.sample_pct", 1.0)
	v.SetDefault("telemetry.sample_always", []string{"location.step.live."})
	v.SetDefault("telemetry.log_level", "info")

	v.SetDefault("chain.steps", []map[string]any{
		{"kind": "last_known", "provider": "gps", "max_age": "5m"},
		{"kind": "last_known", "provider": "network", "max_age": "1h"},
		{"kind": "live", "provider": "gps", "timeout": "30s"},
		{"kind": "live", "provider": "network", "timeout": "30s"},
	})
	v.SetDefault("chain.return_default_on_error", false)
}

// Load reads configuration from defaults, file, .env and environment.
func Load(service string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, service)

	if path := os.Getenv("LOCATOR_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(service)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// LOCATOR_STORE_KIND → store.kind
	v.SetEnvPrefix("LOCATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := expandAll(map[string]*string{
		"auth.secret":        &cfg.Auth.Secret,
		"nats.url":           &cfg.NATS.URL,
		"store.postgres_dsn": &cfg.Store.PostgresDSN,
		"store.valkey_addr":  &cfg.Store.ValkeyAddr,
	}); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	switch c.Backend.Name {
	case BackendMemory:
	case BackendNATS:
		if c.NATS.URL == "" {
			errs = append(errs, "nats.url is required for the nats backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("backend.name must be memory or nats, got %q", c.Backend.Name))
	}

	for _, p := range c.Backend.Enabled {
		if err := store.ValidateProvider(p); err != nil {
			errs = append(errs, fmt.Sprintf("backend.enabled: %v", err))
		}
	}

	kinds := []string{StoreMemory, StoreValkey, StorePostgres, StoreTiered}
	if !slices.Contains(kinds, c.Store.Kind) {
		errs = append(errs, fmt.Sprintf("store.kind must be one of %s, got %q", strings.Join(kinds, ", "), c.Store.Kind))
	}
	if c.Store.TTL <= 0 {
		errs = append(errs, "store.ttl must be positive")
	}
	if (c.Store.Kind == StoreValkey || c.Store.Kind == StoreTiered) && c.Store.ValkeyAddr == "" {
		errs = append(errs, "store.valkey_addr is required for store.kind "+c.Store.Kind)
	}
	if (c.Store.Kind == StorePostgres || c.Store.Kind == StoreTiered) && c.Store.PostgresDSN == "" {
		errs = append(errs, "store.postgres_dsn is required for store.kind "+c.Store.Kind)
	}

	obs := c.Telemetry.Observe()
	if err := obs.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("telemetry: %v", err))
	}

	errs = append(errs, c.Chain.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalid, strings.Join(errs, "\n  - "))
	}
	return nil
}
