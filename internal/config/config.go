package config

import (
	"net"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrProxyConfig is returned when a proxied transport is requested but the
// proxy environment is incomplete.
var ErrProxyConfig = eris.New("config: proxy is not configured")

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Proxy     ProxyConfig     `yaml:"proxy" mapstructure:"proxy"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Tagging   TaggingConfig   `yaml:"tagging" mapstructure:"tagging"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ProxyConfig holds the credentialed upstream proxy used by site adapters.
// Values come from PROXY_HOST, PROXY_PORT, PROXY_USERNAME and PROXY_PASSWORD.
type ProxyConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     string `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// ScrapeConfig configures site scraping.
type ScrapeConfig struct {
	TimeoutSecs             int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UseProxy                bool   `yaml:"use_proxy" mapstructure:"use_proxy"`
	UserAgent               string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxConcurrentCharacters int    `yaml:"max_concurrent_characters" mapstructure:"max_concurrent_characters"`
	MaxConcurrentSites      int    `yaml:"max_concurrent_sites" mapstructure:"max_concurrent_sites"`
}

// AnthropicConfig holds Anthropic API settings used for tagging.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// TaggingConfig configures the tagging batch job.
type TaggingConfig struct {
	BatchSize     int `yaml:"batch_size" mapstructure:"batch_size"`
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// URL builds the proxy URL. Host and port are checked before credentials so
// the error names the first missing group.
func (p ProxyConfig) URL() (*url.URL, error) {
	if p.Host == "" || p.Port == "" {
		return nil, eris.Wrapf(ErrProxyConfig, "proxy variables are not set: PROXY_HOST=%q PROXY_PORT=%q", p.Host, p.Port)
	}
	if p.Username == "" || p.Password == "" {
		return nil, eris.Wrapf(ErrProxyConfig, "proxy credentials are not set: PROXY_USERNAME set=%t PROXY_PASSWORD set=%t",
			p.Username != "", p.Password != "")
	}
	return &url.URL{
		Scheme: "http",
		User:   url.UserPassword(p.Username, p.Password),
		Host:   net.JoinHostPort(p.Host, p.Port),
	}, nil
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHARSCRAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Proxy settings keep their conventional un-prefixed names.
	for key, env := range map[string]string{
		"proxy.host":     "PROXY_HOST",
		"proxy.port":     "PROXY_PORT",
		"proxy.username": "PROXY_USERNAME",
		"proxy.password": "PROXY_PASSWORD",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", env)
		}
	}

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("scrape.timeout_secs", 10)
	v.SetDefault("scrape.use_proxy", true)
	v.SetDefault("scrape.max_concurrent_characters", 10)
	v.SetDefault("scrape.max_concurrent_sites", 5)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("tagging.batch_size", 500)
	v.SetDefault("tagging.max_concurrent", 10)

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

// Validate checks that the settings required by a command are present.
// Supported modes: "store", "tagging", "proxy".
func (c *Config) Validate(mode string) error {
	var problems []string

	needStore := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		case "sqlite":
		default:
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
	}

	switch mode {
	case "store":
		needStore()
	case "tagging":
		needStore()
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Tagging.BatchSize <= 0 {
			problems = append(problems, "tagging.batch_size must be positive")
		}
	case "proxy":
		if _, err := c.Proxy.URL(); err != nil {
			problems = append(problems, err.Error())
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
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
