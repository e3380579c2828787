package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/splitify/internal/auth"
	"github.com/desertthunder/splitify/internal/shared"
	"github.com/desertthunder/splitify/internal/spotify"
	"github.com/desertthunder/splitify/internal/store"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies not supplied through [RunnerOpts] are built on first use from the --config file.
type Runner struct {
	config      *shared.Config
	configPath  string
	store       store.Store
	ownsStore   bool
	auth        *auth.Authenticator
	spotify     *spotify.Client
	httpClient  *http.Client
	clock       auth.Clock
	logger      *log.Logger
	output      io.Writer
	openBrowser func(string) error
	onState     func(auth.State)
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Store       store.Store
	HTTPClient  *http.Client
	Clock       auth.Clock
	Logger      *log.Logger
	Output      io.Writer
	OpenBrowser func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Clock == nil {
		opts.Clock = auth.SystemClock
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		store:       opts.Store,
		httpClient:  opts.HTTPClient,
		clock:       opts.Clock,
		logger:      opts.Logger,
		output:      opts.Output,
		openBrowser: opts.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reads the --config file, falling back to defaults (plus environment overrides) when it does not exist.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	path := r.configPath
	if path == "" {
		path = cmd.String("config")
	}

	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", path)
		config := shared.DefaultConfig()
		config.ApplyEnv()
		r.config = config
		return config, nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	r.config = config
	return config, nil
}

// load builds the store, authenticator and API client. Configuration errors stop here, before any flow starts.
func (r *Runner) load(cmd *cli.Command) error {
	if r.auth != nil {
		return nil
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	level, _ := shared.ParseLogLevel(config.Log.Level)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	if r.store == nil {
		cfg := config.Store
		if cmd.Bool("ephemeral") {
			cfg.Backend = shared.BackendMemory
		}
		if r.store, err = store.Open(cfg); err != nil {
			return err
		}
		r.ownsStore = true
		r.logger.Debug("credential store opened", "backend", cfg.Backend, "path", cfg.Path)
	}

	r.auth, err = auth.New(auth.ConfigFromShared(config.Spotify), r.store,
		auth.WithHTTPClient(r.httpClient),
		auth.WithClock(r.clock),
		auth.WithLogger(r.logger),
		auth.WithObserver(r.observe),
	)
	if err != nil {
		return err
	}

	r.spotify = spotify.NewClient(
		r.auth.Session().Client(r.httpClient.Transport),
		spotify.WithBaseURL(config.Spotify.APIURL),
		spotify.WithRateLimit(config.Spotify.RequestsPerSecond),
		spotify.WithLogger(r.logger),
	)
	return nil
}

func (r *Runner) observe(s auth.State) {
	if r.onState != nil {
		r.onState(s)
	}
}

// Close releases a credential store opened by [Runner.load]. Registered as the root command's After hook.
func (r *Runner) Close(ctx context.Context, cmd *cli.Command) error {
	if r.store == nil || !r.ownsStore {
		return nil
	}
	return r.store.Close()
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

func formatExpiry(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
