// Package config loads the hotel bot configuration: the shared core sections
// plus the hotels API, history, database, redis and metrics settings.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/hotelbot/core/config"
	coredatabase "github.com/m3rciful/hotelbot/core/database"
)

// History backends.
const (
	HistoryFile     = "file"
	HistoryPostgres = "postgres"
)

const (
	defaultBaseURL     = "https://hotels4.p.rapidapi.com"
	defaultAPIHost     = "hotels4.p.rapidapi.com"
	defaultPageSize    = 25
	defaultPhotoSize   = "y"
	defaultAPITimeout  = 30 * time.Second
	defaultHistoryPath = "data/search_requests.json"
	defaultCacheTTL    = 24 * time.Hour
)

// HotelsAPIConfig configures the RapidAPI hotels4 client.
type HotelsAPIConfig struct {
	BaseURL  string `yaml:"base_url" envconfig:"HOTELS_API_BASE_URL"`
	Key      string `yaml:"key" envconfig:"RAPID_API_KEY"`
	Host     string `yaml:"host" envconfig:"RAPID_API_HOST"`
	Locale   string `yaml:"locale" envconfig:"HOTELS_API_LOCALE"`
	Currency string `yaml:"currency" envconfig:"HOTELS_API_CURRENCY"`
	PageSize int    `yaml:"page_size" envconfig:"HOTELS_API_PAGE_SIZE"`
	// PhotoSize replaces the {size} placeholder of photo URLs.
	PhotoSize string        `yaml:"photo_size" envconfig:"HOTELS_API_PHOTO_SIZE"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"HOTELS_API_TIMEOUT"`
	Retries   int           `yaml:"retries" envconfig:"HOTELS_API_RETRIES"`
}

// HistoryConfig selects where search history is kept.
type HistoryConfig struct {
	Backend  string `yaml:"backend" envconfig:"HISTORY_BACKEND"`
	FilePath string `yaml:"file_path" envconfig:"HISTORY_FILE_PATH"`
}

// RedisConfig enables the location cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string        `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" envconfig:"REDIS_DB"`
	Prefix   string        `yaml:"prefix" envconfig:"REDIS_PREFIX"`
	TTL      time.Duration `yaml:"ttl" envconfig:"REDIS_TTL"`
}

// MetricsConfig enables the /metrics listener when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	HotelsAPI HotelsAPIConfig     `yaml:"hotels_api"`
	History   HistoryConfig       `yaml:"history"`
	Database  coredatabase.Config `yaml:"database"`
	Redis     RedisConfig         `yaml:"redis"`
	Metrics   MetricsConfig       `yaml:"metrics"`
}

// CoreConfig exposes the shared core section.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	api := &cfg.HotelsAPI
	if strings.TrimSpace(api.Key) == "" {
		return fmt.Errorf("hotels_api.key is required")
	}
	if api.BaseURL == "" {
		api.BaseURL = defaultBaseURL
	}
	api.BaseURL = strings.TrimRight(api.BaseURL, "/")
	if api.Host == "" {
		api.Host = defaultAPIHost
	}
	if api.PageSize <= 0 {
		api.PageSize = defaultPageSize
	}
	if api.PhotoSize == "" {
		api.PhotoSize = defaultPhotoSize
	}
	if api.Timeout <= 0 {
		api.Timeout = defaultAPITimeout
	}
	if api.Retries < 0 {
		return fmt.Errorf("hotels_api.retries must be >= 0")
	}

	h := &cfg.History
	h.Backend = strings.ToLower(strings.TrimSpace(h.Backend))
	switch h.Backend {
	case "":
		h.Backend = HistoryFile
		fallthrough
	case HistoryFile:
		if h.FilePath == "" {
			h.FilePath = defaultHistoryPath
		}
	case HistoryPostgres:
		if cfg.Database.Host == "" || cfg.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required when history.backend is 'postgres'")
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		if cfg.Database.MaxConnections <= 0 {
			cfg.Database.MaxConnections = 5
		}
	default:
		return fmt.Errorf("invalid history.backend %q; allowed: file, postgres", cfg.History.Backend)
	}

	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = defaultCacheTTL
	}
	return nil
}

// UsesPostgres reports whether the history lives in Postgres.
func (c *Config) UsesPostgres() bool {
	return c.History.Backend == HistoryPostgres
}
