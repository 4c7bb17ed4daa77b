package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Round       RoundConfig       `toml:"round"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials used by the client-credentials token provider.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TokenURL     string `toml:"token_url"`
	APIBaseURL   string `toml:"api_base_url"`
}

// Configured reports whether real client credentials were provided.
func (c SpotifyConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" &&
		c.ClientID != "your_spotify_client_id" && c.ClientSecret != "your_spotify_client_secret"
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	ReadTimeoutMS  int    `toml:"read_timeout_ms"`
	WriteTimeoutMS int    `toml:"write_timeout_ms"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RoundConfig tunes the candidate pipeline.
type RoundConfig struct {
	MinCandidateArtists int     `toml:"min_candidate_artists"`
	MinCandidatePool    int     `toml:"min_candidate_pool"`
	TopTrackPool        int     `toml:"top_track_pool"`
	FetchConcurrency    int     `toml:"fetch_concurrency"`
	CatalogRateLimit    float64 `toml:"catalog_rate_limit"`
}

// MaintenanceConfig sets the budgets of one maintenance tick.
type MaintenanceConfig struct {
	DeadlineMS             int  `toml:"deadline_ms"`
	BatchLimit             int  `toml:"batch_limit"`
	BackfillMinRemainingMS int  `toml:"backfill_min_remaining_ms"`
	BackfillBatch          int  `toml:"backfill_batch"`
	HealingMinRemainingMS  int  `toml:"healing_min_remaining_ms"`
	HealingLimit           int  `toml:"healing_limit"`
	MaxAttempts            int  `toml:"max_attempts"`
	AwaitHealing           bool `toml:"await_healing"`
}

// Deadline returns the wall-clock budget of a tick.
func (c MaintenanceConfig) Deadline() time.Duration {
	return time.Duration(c.DeadlineMS) * time.Millisecond
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects budgets that would make the pipeline or the scheduler inert.
func (c *Config) Validate() error {
	switch {
	case c.Maintenance.DeadlineMS <= 0:
		return fmt.Errorf("%w: maintenance.deadline_ms must be positive", ErrInvalidConfig)
	case c.Maintenance.BatchLimit <= 0:
		return fmt.Errorf("%w: maintenance.batch_limit must be positive", ErrInvalidConfig)
	case c.Maintenance.HealingMinRemainingMS > c.Maintenance.DeadlineMS:
		return fmt.Errorf("%w: maintenance.healing_min_remaining_ms exceeds deadline", ErrInvalidConfig)
	case c.Round.MinCandidatePool < 0 || c.Round.MinCandidateArtists < 0:
		return fmt.Errorf("%w: round minimums cannot be negative", ErrInvalidConfig)
	case c.Round.TopTrackPool <= 0:
		return fmt.Errorf("%w: round.top_track_pool must be positive", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
