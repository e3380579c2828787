package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/splitify/internal/spotify"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = trackItem{}
)

// playlistItem wraps [spotify.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist spotify.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", i.playlist.Tracks.Total)
	if i.playlist.Owner.DisplayName != "" {
		desc = fmt.Sprintf("%s • by %s", desc, i.playlist.Owner.DisplayName)
	}
	return desc
}

// trackItem wraps [spotify.Track] to implement [list.Item].
type trackItem struct {
	track spotify.Track
}

func (i trackItem) FilterValue() string { return i.track.Name }
func (i trackItem) Title() string       { return i.track.Name }
func (i trackItem) Description() string {
	desc := strings.Join(i.track.ArtistNames(), ", ")
	if i.track.Album.Name != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album.Name)
	}
	d := time.Duration(i.track.DurationMS) * time.Millisecond
	return fmt.Sprintf("%s • %d:%02d", desc, int(d.Minutes()), int(d.Seconds())%60)
}

func playlistItems(playlists []spotify.Playlist) []list.Item {
	items := make([]list.Item, len(playlists))
	for i, p := range playlists {
		items[i] = playlistItem{p}
	}
	return items
}

func trackItems(tracks []spotify.Track) []list.Item {
	items := make([]list.Item, len(tracks))
	for i, t := range tracks {
		items[i] = trackItem{t}
	}
	return items
}
