package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Store.Path != "./splitify.db" {
			t.Errorf("expected store path ./splitify.db, got %s", config.Store.Path)
		}

		if config.Store.Backend != BackendSQLite {
			t.Errorf("expected sqlite backend, got %s", config.Store.Backend)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Spotify.VerifierLength != 128 {
			t.Errorf("expected verifier length 128, got %d", config.Spotify.VerifierLength)
		}

		if config.Spotify.ExchangeTimeout.Duration != 15*time.Second {
			t.Errorf("expected exchange timeout 15s, got %v", config.Spotify.ExchangeTimeout)
		}

		if len(config.Spotify.Scopes) != 6 {
			t.Errorf("expected 6 default scopes, got %d", len(config.Spotify.Scopes))
		}

		if config.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Spotify.ClientID)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Store.Path != DefaultConfig().Store.Path {
			t.Errorf("created config store path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[spotify]
client_id = "test_client_id"
redirect_uri = "http://127.0.0.1:8888/callback"
exchange_timeout = "30s"

[store]
backend = "file"
path = "/custom/credentials.toml"

[server]
host = "0.0.0.0"
port = 8888
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Store.Path != "/custom/credentials.toml" {
			t.Errorf("expected store path /custom/credentials.toml, got %s", config.Store.Path)
		}

		if config.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Spotify.ClientID)
		}

		if config.Spotify.ExchangeTimeout.Duration != 30*time.Second {
			t.Errorf("expected exchange timeout 30s, got %v", config.Spotify.ExchangeTimeout)
		}

		if config.Spotify.TokenURL != "https://accounts.spotify.com/api/token" {
			t.Errorf("expected default token url to survive partial config, got %s", config.Spotify.TokenURL)
		}
	})

	t.Run("LoadConfig Env Override", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}
		t.Setenv(ClientIDEnv, "from_env")

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}
		if config.Spotify.ClientID != "from_env" {
			t.Errorf("expected client id from environment, got %s", config.Spotify.ClientID)
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Spotify.ClientID = "saved_id"
		config.Spotify.ExchangeTimeout = Duration{20 * time.Second}

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if loaded.Spotify.ClientID != "saved_id" {
			t.Errorf("expected saved_id, got %s", loaded.Spotify.ClientID)
		}
		if loaded.Spotify.ExchangeTimeout.Duration != 20*time.Second {
			t.Errorf("expected 20s, got %v", loaded.Spotify.ExchangeTimeout)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.Spotify.ClientID = "abc"
		return c
	}

	tt := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default with client id", mutate: func(c *Config) {}},
		{name: "missing client id", mutate: func(c *Config) { c.Spotify.ClientID = "" }, wantErr: true},
		{name: "relative redirect uri", mutate: func(c *Config) { c.Spotify.RedirectURI = "/callback" }, wantErr: true},
		{name: "empty token url", mutate: func(c *Config) { c.Spotify.TokenURL = "" }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Spotify.ExchangeTimeout = Duration{} }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.Store.Backend = "etcd" }, wantErr: true},
		{name: "sqlite without path", mutate: func(c *Config) { c.Store.Path = "" }, wantErr: true},
		{name: "memory without path", mutate: func(c *Config) { c.Store.Backend = BackendMemory; c.Store.Path = "" }},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := c.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
