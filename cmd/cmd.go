// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/desertthunder/splitify/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultLoginTimeout = 2 * time.Minute

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
			Sources: cli.EnvVars("SPLITIFY_CONFIG"),
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
		&cli.BoolFlag{
			Name:  "ephemeral",
			Usage: "Keep credentials in memory only for this run",
		},
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml and initialize the credential store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "client-id",
				Usage:   "Spotify application client ID to write into the config",
				Sources: cli.EnvVars(shared.ClientIDEnv),
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles the login lifecycle
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Sign in to Spotify and manage stored credentials",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with the authorization code flow (PKCE)",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
					&cli.BoolFlag{
						Name:  "plain",
						Usage: "Plain text progress instead of the interactive view",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser redirect",
						Value: defaultLoginTimeout,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "callback",
				Usage: "Complete a login from the redirect URL pasted from the browser",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "url",
					},
				},
				Action: r.AuthCallback,
			},
			{
				Name:  "status",
				Usage: "Show whether a valid session exists",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "refresh",
				Usage:  "Exchange the refresh token for a new access token",
				Action: r.AuthRefresh,
			},
			{
				Name:   "logout",
				Usage:  "Remove all stored credentials",
				Action: r.AuthLogout,
			},
		},
	}
}

// playlistsCommand handles Spotify playlist reads
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Spotify playlist operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the user's playlists",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.PlaylistsList,
			},
			{
				Name:  "tracks",
				Usage: "List the playable tracks of a playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "features",
						Usage: "Include audio features for each track",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.PlaylistsTracks,
			},
			{
				Name:  "export",
				Usage: "Export a playlist as CSV, Markdown or plain text",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: csv, md or txt",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (\"-\" for stdout, default {id}_tracks.{format})",
					},
				},
				Action: r.PlaylistsExport,
			},
			{
				Name:   "browse",
				Usage:  "Browse playlists interactively",
				Action: r.PlaylistsBrowse,
			},
		},
	}
}
