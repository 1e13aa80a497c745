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
	Serp      SerpConfig      `yaml:"serp" mapstructure:"serp"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Pool      PoolConfig      `yaml:"pool" mapstructure:"pool"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// SerpConfig holds search-engine result page fetch settings.
type SerpConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	SearchesPerSec float64 `yaml:"searches_per_sec" mapstructure:"searches_per_sec"`
}

// ScrapeConfig configures page fetching and text cleaning.
type ScrapeConfig struct {
	TimeoutSecs  int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxTextChars int `yaml:"max_text_chars" mapstructure:"max_text_chars"`
}

// PoolConfig bounds concurrent search/fetch activity.
type PoolConfig struct {
	Size int64 `yaml:"size" mapstructure:"size"`
}

// PipelineConfig configures the per-record resolution pipeline.
type PipelineConfig struct {
	ConfidenceThreshold int `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	MaxResults          int `yaml:"max_results" mapstructure:"max_results"`
	MaxRetries          int `yaml:"max_retries" mapstructure:"max_retries"`
	MaxScrapePages      int `yaml:"max_scrape_pages" mapstructure:"max_scrape_pages"`

	// Randomized pacing delays, in seconds. Set min/max to 0 in tests.
	TierDelayMinSecs   float64 `yaml:"tier_delay_min_secs" mapstructure:"tier_delay_min_secs"`
	TierDelayMaxSecs   float64 `yaml:"tier_delay_max_secs" mapstructure:"tier_delay_max_secs"`
	RecordDelayMinSecs float64 `yaml:"record_delay_min_secs" mapstructure:"record_delay_min_secs"`
	RecordDelayMaxSecs float64 `yaml:"record_delay_max_secs" mapstructure:"record_delay_max_secs"`
}

// MetricsConfig holds the inputs for impact metrics in the stats report.
type MetricsConfig struct {
	ManualMinutesPerRecord int `yaml:"manual_minutes_per_record" mapstructure:"manual_minutes_per_record"`
	HourlyRateUSD          int `yaml:"hourly_rate_usd" mapstructure:"hourly_rate_usd"`
}

// ServerConfig configures the REST API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
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
	v.SetEnvPrefix("CONTACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "contact_cli.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:8501"})
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("serp.base_url", "https://www.google.com")
	v.SetDefault("serp.timeout_secs", 30)
	v.SetDefault("serp.searches_per_sec", 0.5)
	v.SetDefault("scrape.timeout_secs", 15)
	v.SetDefault("scrape.max_text_chars", 8000)
	v.SetDefault("pool.size", 3)
	v.SetDefault("pipeline.confidence_threshold", 70)
	v.SetDefault("pipeline.max_results", 5)
	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.max_scrape_pages", 5)
	v.SetDefault("pipeline.tier_delay_min_secs", 3)
	v.SetDefault("pipeline.tier_delay_max_secs", 8)
	v.SetDefault("pipeline.record_delay_min_secs", 5)
	v.SetDefault("pipeline.record_delay_max_secs", 12)
	v.SetDefault("metrics.manual_minutes_per_record", 15)
	v.SetDefault("metrics.hourly_rate_usd", 50)

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
