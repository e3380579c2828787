package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/splitify/internal/formatter"
	"github.com/desertthunder/splitify/internal/shared"
	"github.com/desertthunder/splitify/internal/spotify"
	"github.com/desertthunder/splitify/internal/ui"
	"github.com/urfave/cli/v3"
)

// sessionHint points the user at login when the API call failed for lack of a valid session.
func sessionHint(err error) error {
	if errors.Is(err, shared.ErrNotAuthenticated) || errors.Is(err, shared.ErrTokenExpired) {
		return fmt.Errorf("%w (run 'splitify auth login')", err)
	}
	return err
}

// PlaylistsList prints the user's playlists.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.load(cmd); err != nil {
		return err
	}

	playlists, err := r.spotify.Playlists(ctx)
	if err != nil {
		return sessionHint(err)
	}

	r.logger.Infof("fetched %v playlists", len(playlists))

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for _, p := range playlists {
		r.writePlain("%-24s %5d tracks  %s\n", p.ID, p.Tracks.Total, p.Name)
	}
	return nil
}

type trackRow struct {
	spotify.Track
	Features *spotify.AudioFeatures `json:"audio_features,omitempty"`
}

// PlaylistsTracks prints the playable tracks of a playlist, optionally joined with their audio features.
func (r *Runner) PlaylistsTracks(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	if strings.TrimSpace(playlistID) == "" {
		return fmt.Errorf("%w: --id", shared.ErrMissingArgument)
	}

	if err := r.load(cmd); err != nil {
		return err
	}

	tracks, err := r.spotify.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return sessionHint(err)
	}

	rows := make([]trackRow, len(tracks))
	for i, t := range tracks {
		rows[i] = trackRow{Track: t}
	}

	if cmd.Bool("features") {
		features, err := r.spotify.AudioFeatures(ctx, spotify.TrackIDs(tracks))
		if err != nil {
			return sessionHint(err)
		}

		byID := make(map[string]*spotify.AudioFeatures, len(features))
		for i := range features {
			byID[features[i].ID] = &features[i]
		}
		for i := range rows {
			rows[i].Features = byID[rows[i].ID]
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(rows, cmd.Bool("pretty"))
	}

	r.writePlain("Tracks: %d\n\n", len(rows))
	for i, row := range rows {
		r.writePlain("%d. %s - %s\n", i+1, strings.Join(row.ArtistNames(), ", "), row.Name)
		if row.Album.Name != "" {
			r.writePlain("   Album: %s\n", row.Album.Name)
		}
		if f := row.Features; f != nil {
			r.writePlain("   Tempo: %.0f BPM  Energy: %.2f  Danceability: %.2f  Valence: %.2f\n",
				f.Tempo, f.Energy, f.Danceability, f.Valence)
		}
	}
	return nil
}

// PlaylistsExport writes a playlist and its playable tracks to a file, or stdout with --output -.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	if strings.TrimSpace(playlistID) == "" {
		return fmt.Errorf("%w: --id", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if err := r.load(cmd); err != nil {
		return err
	}

	playlist, err := r.spotify.Playlist(ctx, playlistID)
	if err != nil {
		return sessionHint(err)
	}
	tracks, err := r.spotify.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return sessionHint(err)
	}

	export := &formatter.Export{Playlist: *playlist, Tracks: tracks}
	output := cmd.String("output")
	if output == "-" {
		return formatter.Write(r.output, export, format)
	}

	path, err := formatter.WriteFile(export, format, output)
	if err != nil {
		return err
	}
	r.logger.Info("playlist exported", "playlist", playlist.Name, "tracks", len(tracks), "path", path)
	return r.writePlain("✓ Exported %d tracks to %s\n", len(tracks), path)
}

// PlaylistsBrowse launches the interactive playlist browser.
func (r *Runner) PlaylistsBrowse(ctx context.Context, cmd *cli.Command) error {
	if err := r.load(cmd); err != nil {
		return err
	}
	if !r.auth.Session().IsValid() {
		return sessionHint(shared.ErrNotAuthenticated)
	}

	restore, err := shared.RedirectToFile(r.logger, tuiLogPath)
	if err != nil {
		return err
	}
	defer restore()

	p := tea.NewProgram(ui.NewBrowserModel(ctx, r.spotify), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running browser: %w", err)
	}
	return nil
}
