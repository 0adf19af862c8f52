package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	YouTube   YouTubeConfig   `yaml:"youtube" mapstructure:"youtube"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Quota     QuotaConfig     `yaml:"quota" mapstructure:"quota"`
	Breaker   BreakerConfig   `yaml:"breaker" mapstructure:"breaker"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the cache/quota backing store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Database    string `yaml:"database" mapstructure:"database"` // mongo only
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds completion-service settings. An empty Key disables
// the AI fallback and transcript tiers.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Enabled reports whether a completion-service credential is configured.
func (a AnthropicConfig) Enabled() bool { return a.Key != "" }

// Timeout returns the per-call completion timeout.
func (a AnthropicConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// YouTubeConfig holds video-platform metadata service settings.
type YouTubeConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	WatchURL    string `yaml:"watch_url" mapstructure:"watch_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the per-call video service timeout.
func (y YouTubeConfig) Timeout() time.Duration {
	return time.Duration(y.TimeoutSecs) * time.Second
}

// FetchConfig configures outbound page fetches.
type FetchConfig struct {
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyBytes int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HostRate     float64 `yaml:"host_rate" mapstructure:"host_rate"`
	HostBurst    int     `yaml:"host_burst" mapstructure:"host_burst"`
}

// Timeout returns the per-page fetch timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// CacheConfig configures the extraction cache.
type CacheConfig struct {
	TTLHours          int `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	PruneIntervalMins int `yaml:"prune_interval_mins" mapstructure:"prune_interval_mins"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// QuotaConfig holds the monthly extraction ceilings.
type QuotaConfig struct {
	AnonymousLimit     int `yaml:"anonymous_limit" mapstructure:"anonymous_limit"`
	AuthenticatedLimit int `yaml:"authenticated_limit" mapstructure:"authenticated_limit"`
}

// BreakerConfig configures the upstream circuit breakers.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	CookieSecure   bool     `yaml:"cookie_secure" mapstructure:"cookie_secure"`
}

// AuthConfig configures how authenticated identities are recognised. The
// server trusts UserHeader only when it is set by an upstream auth proxy.
type AuthConfig struct {
	UserHeader string `yaml:"user_header" mapstructure:"user_header"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RECIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "recipes.db")
	v.SetDefault("store.database", "recipes")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2000)
	v.SetDefault("anthropic.timeout_secs", 60)
	v.SetDefault("youtube.key", "")
	v.SetDefault("youtube.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("youtube.watch_url", "https://www.youtube.com/watch")
	v.SetDefault("youtube.timeout_secs", 15)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; SimplerRecipes/1.0)")
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.max_body_bytes", 5*1024*1024)
	v.SetDefault("fetch.host_rate", 2.0)
	v.SetDefault("fetch.host_burst", 4)
	v.SetDefault("cache.ttl_hours", 365*24)
	v.SetDefault("cache.prune_interval_mins", 60)
	v.SetDefault("quota.anonymous_limit", 3)
	v.SetDefault("quota.authenticated_limit", 30)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"chrome-extension://*", "https://*"})
	v.SetDefault("server.cookie_secure", true)
	v.SetDefault("auth.user_header", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "recipe")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given mode ("serve" or "extract").
// All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "extract":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres", "mongo", "memory":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of sqlite, postgres, mongo, memory", c.Store.Driver))
	}
	if c.Store.Driver != "memory" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Quota.AnonymousLimit < 0 {
		errs = append(errs, "quota.anonymous_limit must be >= 0")
	}
	if c.Quota.AuthenticatedLimit <= c.Quota.AnonymousLimit {
		errs = append(errs, "quota.authenticated_limit must be greater than quota.anonymous_limit")
	}
	if c.Fetch.TimeoutSecs <= 0 || c.YouTube.TimeoutSecs <= 0 || c.Anthropic.TimeoutSecs <= 0 {
		errs = append(errs, "fetch, youtube and anthropic timeout_secs must be > 0")
	}
	if c.Cache.TTLHours <= 0 {
		errs = append(errs, "cache.ttl_hours must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
