package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	DataGov   DataGovConfig   `yaml:"datagov" mapstructure:"datagov"`
	Tools     ToolsConfig     `yaml:"tools" mapstructure:"tools"`
	Marathon  MarathonConfig  `yaml:"marathon" mapstructure:"marathon"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the knowledge base backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // memory, sqlite, postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	// CacheTTL controls prompt caching of stage system prompts; empty
	// disables caching.
	CacheTTL string `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// DataGovConfig holds the data.gov.sg API key. Without a key the government
// endpoints allow roughly 4 requests per 10s, so the fetcher uses a lower
// request rate for those hosts.
type DataGovConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// ToolsConfig configures the research tool clients.
type ToolsConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// MarathonConfig configures pipeline behavior.
type MarathonConfig struct {
	// NarrativeBudget caps the characters of each agent narrative fed to the
	// integrator prompt.
	NarrativeBudget int `yaml:"narrative_budget" mapstructure:"narrative_budget"`
	// PreviewBudget caps the characters of each tool data preview fed to the
	// scout agent prompts.
	PreviewBudget int `yaml:"preview_budget" mapstructure:"preview_budget"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "scout.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.temperature", 0.2)
	v.SetDefault("anthropic.cache_ttl", "5m")
	v.SetDefault("tools.timeout_secs", 15)
	v.SetDefault("tools.max_retries", 4)
	v.SetDefault("tools.user_agent", "Mozilla/5.0 (compatible; HeartlandScout/1.0)")
	v.SetDefault("marathon.narrative_budget", 3000)
	v.SetDefault("marathon.preview_budget", 2000)

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
