package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/splitify/internal/shared"
	"github.com/desertthunder/splitify/internal/store"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the embedded template when missing and initializes the credential store.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = cmd.String("config")
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}

	if id := cmd.String("client-id"); id != "" && id != config.Spotify.ClientID {
		config.Spotify.ClientID = id
		if err := shared.SaveConfig(configPath, config); err != nil {
			return err
		}
		r.logger.Info("client id saved", "path", configPath)
	}

	if err := config.Validate(); err != nil {
		return err
	}

	r.logger.Info("initializing credential store", "backend", config.Store.Backend, "path", config.Store.Path)

	s, err := store.Open(config.Store)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	if err := s.Close(); err != nil {
		return err
	}

	r.logger.Infof("setup complete for %v store: %v", config.Store.Backend, config.Store.Path)

	r.writePlain("✓ Configuration ready at %s\n", configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Register %s as a redirect URI of your Spotify app\n", config.Spotify.RedirectURI)
	r.writePlain("2. Run 'splitify auth login' to sign in\n")
	return nil
}
