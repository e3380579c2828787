package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/splitify/internal/auth"
	"github.com/desertthunder/splitify/internal/spotify"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg is the message union delivered to the models.
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgState MsgKind = iota
	MsgResult
	MsgPlaylistsFetched
	MsgTracksFetched
)

// StateMsg reports a callback state transition, typically from [auth.WithObserver].
func StateMsg(s auth.State) Msg {
	return Msg{kind: MsgState, data: s}
}

// ResultMsg delivers the terminal callback result and ends the login view.
func ResultMsg(r auth.Result) Msg {
	return Msg{kind: MsgResult, data: r}
}

type playlistsFetched struct {
	playlists []spotify.Playlist
	err       error
}

type tracksFetched struct {
	playlist spotify.Playlist
	tracks   []spotify.Track
	err      error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []spotify.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsFetched{playlists, err}}
}

// tracksFetchedMsg is the constructor for [MsgTracksFetched]
func tracksFetchedMsg(playlist spotify.Playlist, tracks []spotify.Track, err error) Msg {
	return Msg{kind: MsgTracksFetched, data: tracksFetched{playlist, tracks, err}}
}
