package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/drp-sh/drpsync/internal/utils"
	json "github.com/goccy/go-json"
)

var (
	home, _ = os.UserHomeDir()

	DefaultDataDir    = filepath.Join(home, ".drpsync")
	DefaultConfigPath = filepath.Join(DefaultDataDir, "config.json")
	DefaultServerURL  = "https://drp.sh"
	DefaultFolder     = filepath.Join(home, "drpsync")
)

const (
	DefaultDebounceMs    = 500
	DefaultSweepInterval = 300 // seconds
	DefaultConcurrency   = 4
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the persisted host/account/session configuration. The sync state
// snapshot lives in a separate file next to it.
type Config struct {
	Path string `json:"-"`

	ServerURL    string   `json:"server_url"`
	Email        string   `json:"email,omitempty"`
	Folder       string   `json:"folder"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	Excludes     []string `json:"excludes,omitempty"`

	DebounceMs     int `json:"debounce_ms,omitempty"`
	SweepIntervalS int `json:"sweep_interval_s,omitempty"`
	Concurrency    int `json:"concurrency,omitempty"`
}

// Load reads a config file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config '%s': %w", path, err)
	}

	cfg.Path = path
	return &cfg, nil
}

// Save writes the config atomically. Mode 0600: it holds the refresh token.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(path, data, 0o600); err != nil {
		return err
	}
	c.Path = path
	return nil
}

// Validate checks the config and resolves the watched folder, creating it if
// missing. Failures here are fatal to the process.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("%w: server url is required, run 'drpsync setup'", ErrInvalidConfig)
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: bad server url '%s'", ErrInvalidConfig, c.ServerURL)
	}

	if c.Folder == "" {
		return fmt.Errorf("%w: folder is required, run 'drpsync setup'", ErrInvalidConfig)
	}
	folder, err := utils.ResolvePath(c.Folder)
	if err != nil {
		return fmt.Errorf("%w: bad folder '%s': %v", ErrInvalidConfig, c.Folder, err)
	}
	if err := utils.EnsureDir(folder); err != nil {
		return fmt.Errorf("%w: cannot create folder '%s': %v", ErrInvalidConfig, folder, err)
	}
	c.Folder = folder

	return nil
}

// DataDir is the directory holding config, state and lock files.
func (c *Config) DataDir() string {
	if c.Path == "" {
		return DefaultDataDir
	}
	return filepath.Dir(c.Path)
}

func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir(), "state.json")
}

func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir(), "drpsync.lock")
}

func (c *Config) Debounce() time.Duration {
	if c.DebounceMs <= 0 {
		return DefaultDebounceMs * time.Millisecond
	}
	return time.Duration(c.DebounceMs) * time.Millisecond
}

func (c *Config) SweepInterval() time.Duration {
	if c.SweepIntervalS <= 0 {
		return DefaultSweepInterval * time.Second
	}
	return time.Duration(c.SweepIntervalS) * time.Second
}

func (c *Config) Workers() int {
	if c.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return c.Concurrency
}
