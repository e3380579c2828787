package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// ClientIDEnv overrides [SpotifyConfig.ClientID] when set.
const ClientIDEnv = "SPLITIFY_CLIENT_ID"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Store   StoreConfig   `toml:"store"`
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
}

// SpotifyConfig contains the public client registration and endpoints.
//
// There is no client secret. The authorization code is bound to the PKCE verifier instead.
type SpotifyConfig struct {
	ClientID          string   `toml:"client_id"`
	RedirectURI       string   `toml:"redirect_uri"`
	AuthURL           string   `toml:"auth_url"`
	TokenURL          string   `toml:"token_url"`
	APIURL            string   `toml:"api_url"`
	Scopes            []string `toml:"scopes"`
	VerifierLength    int      `toml:"verifier_length"`
	ExchangeTimeout   Duration `toml:"exchange_timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// StoreConfig selects the credential store backend.
type StoreConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// ServerConfig contains the local callback listener settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a [time.Duration] that reads and writes as a string such as "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Store backends understood by [StoreConfig.Backend].
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.ApplyEnv()
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ApplyEnv overlays environment overrides onto the config.
func (c *Config) ApplyEnv() {
	if id := os.Getenv(ClientIDEnv); id != "" {
		c.Spotify.ClientID = id
	}
}

// Validate reports configuration errors that must stop the program before any flow starts.
func (c *Config) Validate() error {
	if c.Spotify.ClientID == "" {
		return fmt.Errorf("%w: spotify.client_id is required", ErrInvalidConfig)
	}

	for name, raw := range map[string]string{
		"spotify.redirect_uri": c.Spotify.RedirectURI,
		"spotify.auth_url":     c.Spotify.AuthURL,
		"spotify.token_url":    c.Spotify.TokenURL,
		"spotify.api_url":      c.Spotify.APIURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%w: %s must be an absolute URL, got %q", ErrInvalidConfig, name, raw)
		}
	}

	if c.Spotify.ExchangeTimeout.Duration <= 0 {
		return fmt.Errorf("%w: spotify.exchange_timeout must be positive", ErrInvalidConfig)
	}

	switch c.Store.Backend {
	case BackendSQLite, BackendFile:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for the %s backend", ErrInvalidConfig, c.Store.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: unknown store.backend %q", ErrInvalidConfig, c.Store.Backend)
	}

	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
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

// SaveConfig writes the config back to path as TOML.
func SaveConfig(path string, config *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
