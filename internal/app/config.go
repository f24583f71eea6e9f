package app

import (
	"errors"
	"time"

	coreconfig "github.com/m3rciful/sitebot/core/config"
	coredatabase "github.com/m3rciful/sitebot/core/database"
)

// SupportConfig lists the appeal themes offered to users.
type SupportConfig struct {
	Themes []string `yaml:"themes" envconfig:"SUPPORT_THEMES" validate:"min=1"`
}

// APIConfig points at the website backend issuing access links.
type APIConfig struct {
	URL            string `yaml:"url" envconfig:"API_URL" validate:"required,url"`
	GuestLinkURL   string `yaml:"guest_link_url" envconfig:"API_GUEST_LINK_URL" validate:"required,url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"API_TIMEOUT_SECONDS" validate:"gte=0"`
}

// Timeout returns the request timeout; 0 lets the client pick its default.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SessionConfig controls in-memory conversation sessions.
type SessionConfig struct {
	IdleTTLMinutes int `yaml:"idle_ttl_minutes" envconfig:"SESSION_IDLE_TTL_MINUTES" validate:"gte=0"`
}

// IdleTTL returns how long an untouched session survives; 0 means forever.
func (c SessionConfig) IdleTTL() time.Duration {
	return time.Duration(c.IdleTTLMinutes) * time.Minute
}

// Config is the full sitebot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Support  SupportConfig       `yaml:"support"`
	API      APIConfig           `yaml:"api"`
	Session  SessionConfig       `yaml:"session"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// LoadConfig reads path, overlays the environment and applies defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return nil, err
	}
	if cfg.Telegram.AdminID == 0 {
		return nil, errors.New("telegram.admin_id is required")
	}
	return &cfg, nil
}
