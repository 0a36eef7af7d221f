package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the harvester configuration, populated from the environment.
type Config struct {
	// BaseURL is the root of the paginated source site.
	BaseURL string `env:"HARVESTER_BASE_URL" envDefault:"https://www.pulsemcp.com"`

	// DataDir is where per-record JSON files are written.
	DataDir string `env:"HARVESTER_DATA_DIR" envDefault:"data"`
	// IndexDir is where generated index documents are published.
	IndexDir string `env:"HARVESTER_INDEX_DIR" envDefault:"indexes"`
	// CheckpointDir holds the per-category checkpoint and run-lock files.
	CheckpointDir string `env:"HARVESTER_CHECKPOINT_DIR" envDefault:".checkpoints"`

	// RequestDelay is the enforced minimum delay between consecutive fetches.
	RequestDelay time.Duration `env:"HARVESTER_REQUEST_DELAY" envDefault:"1500ms"`
	// FetchTimeout bounds a single fetch attempt.
	FetchTimeout time.Duration `env:"HARVESTER_FETCH_TIMEOUT" envDefault:"30s"`
	// MaxRetries is the retry ceiling for transient fetch failures.
	MaxRetries     int           `env:"HARVESTER_MAX_RETRIES" envDefault:"4"`
	InitialBackoff time.Duration `env:"HARVESTER_INITIAL_BACKOFF" envDefault:"2s"`
	MaxBackoff     time.Duration `env:"HARVESTER_MAX_BACKOFF" envDefault:"60s"`

	// UserAgent is sent on every request to the source site.
	UserAgent string `env:"HARVESTER_USER_AGENT" envDefault:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`

	// TestPages is the page prefix harvested in test mode.
	TestPages int `env:"HARVESTER_TEST_PAGES" envDefault:"2"`

	// SelectorConfig optionally points at a YAML file overriding the source
	// site's extraction selectors.
	SelectorConfig string `env:"HARVESTER_SELECTOR_CONFIG"`

	// DatabaseURL, when set, switches record storage from the filesystem to
	// Postgres.
	DatabaseURL string `env:"HARVESTER_DATABASE_URL"`

	// ServerAddress is the listen address of the serve command.
	ServerAddress string `env:"HARVESTER_SERVER_ADDRESS" envDefault:":8000"`
}

// NewConfig loads configuration from environment variables.
func NewConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
