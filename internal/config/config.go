package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dpoulos/hellas-grid-monitor/internal/logger"
)

type AppConfig struct {
	// ENTSO-E transparency platform. An empty token leaves grid sections unavailable.
	ENTSOEToken     string  `mapstructure:"entsoe_token"`
	ENTSOEBaseURL   string  `mapstructure:"entsoe_base_url" validate:"required,url"`
	ENTSOEArea      string  `mapstructure:"entsoe_area" validate:"required"`
	ENTSOERateLimit float64 `mapstructure:"entsoe_rate_limit" validate:"gte=0"`

	// OpenWeatherMap. An empty token degrades plant weather to unknown.
	OWMToken   string `mapstructure:"owm_token"`
	OWMBaseURL string `mapstructure:"owm_base_url" validate:"required,url"`

	Timezone    string        `mapstructure:"timezone" validate:"required,timezone"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout" validate:"gt=0"`

	// Response cache.
	CacheTTL        time.Duration `mapstructure:"cache_ttl" validate:"gt=0"`
	CacheFailureTTL time.Duration `mapstructure:"cache_failure_ttl" validate:"gt=0"`
	CacheMaxEntries int           `mapstructure:"cache_max_entries" validate:"gt=0"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval" validate:"gt=0"`

	WeatherConcurrency int    `mapstructure:"weather_concurrency" validate:"gt=0"`
	SnapshotPolicy     string `mapstructure:"snapshot_policy" validate:"oneof=latest-complete latest-zero-filled"`
	PlantsFile         string `mapstructure:"plants_file"`

	Port     string `mapstructure:"port" validate:"required,numeric"`
	LogLevel string `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("entsoe_token", "")
	v.SetDefault("entsoe_base_url", "https://web-api.tp.entsoe.eu/api")
	v.SetDefault("entsoe_area", "10YGR-HTSO-----Y")
	v.SetDefault("entsoe_rate_limit", 6)

	v.SetDefault("owm_token", "")
	v.SetDefault("owm_base_url", "https://api.openweathermap.org/data/2.5/weather")

	v.SetDefault("timezone", "Europe/Athens")
	v.SetDefault("http_timeout", "10s")

	v.SetDefault("cache_ttl", "900s")
	v.SetDefault("cache_failure_ttl", "60s")
	v.SetDefault("cache_max_entries", 1024)
	v.SetDefault("janitor_interval", "5m")

	v.SetDefault("weather_concurrency", 8)
	v.SetDefault("snapshot_policy", "latest-complete")
	v.SetDefault("plants_file", "")

	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
}

// Load reads configuration from a .env file, an optional CONFIG_FILE and the environment,
// in increasing order of precedence, and validates it.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Err(err).Msg("no .env file loaded")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.ENTSOEToken == "" {
		logger.Warn().Msg("ENTSOE_TOKEN is not set; grid data will be unavailable")
	}
	if cfg.OWMToken == "" {
		logger.Warn().Msg("OWM_TOKEN is not set; plant weather will be unknown")
	}
	return cfg, nil
}
