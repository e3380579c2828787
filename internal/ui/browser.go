package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/splitify/internal/spotify"
)

// ViewState represents the current view of the browser.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
)

// Library is the read side of the Spotify client used by the browser.
type Library interface {
	Playlists(ctx context.Context) ([]spotify.Playlist, error)
	PlaylistTracks(ctx context.Context, playlistID string) ([]spotify.Track, error)
}

// BrowserModel lists the user's playlists and the tracks of the selected one.
type BrowserModel struct {
	ctx          context.Context
	view         ViewState
	library      Library
	playlistList list.Model
	trackList    list.Model
	selected     spotify.Playlist
	loading      bool
	err          error
	help         help.Model
	keys         keyMap
}

func NewBrowserModel(ctx context.Context, library Library) *BrowserModel {
	playlists := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	playlists.Title = "Playlists"
	tracks := list.New(nil, list.NewDefaultDelegate(), 0, 0)

	return &BrowserModel{
		ctx:          ctx,
		view:         PlaylistListView,
		library:      library,
		playlistList: playlists,
		trackList:    tracks,
		loading:      true,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

func (m *BrowserModel) Init() tea.Cmd {
	return m.fetchPlaylists()
}

func (m *BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h := msg.Height - 2
		m.playlistList.SetSize(msg.Width, h)
		m.trackList.SetSize(msg.Width, h)
		return m, nil
	case Msg:
		return m.handleMsg(msg)
	case tea.KeyMsg:
		if m.filtering() {
			return m.updateLists(msg)
		}
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		}
	}
	return m.updateLists(msg)
}

func (m *BrowserModel) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	m.loading = false
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		return m, m.playlistList.SetItems(playlistItems(data.playlists))
	case MsgTracksFetched:
		data := msg.data.(tracksFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.selected = data.playlist
		m.trackList.Title = data.playlist.Name
		m.view = TrackListView
		return m, m.trackList.SetItems(trackItems(data.tracks))
	}
	return m, nil
}

func (m *BrowserModel) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.enter) {
		if item, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			m.loading = true
			m.err = nil
			return m, m.fetchTracks(item.playlist)
		}
		return m, nil
	}
	return m.updateLists(msg)
}

func (m *BrowserModel) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.back) {
		m.view = PlaylistListView
		m.err = nil
		return m, nil
	}
	return m.updateLists(msg)
}

func (m *BrowserModel) filtering() bool {
	if m.view == TrackListView {
		return m.trackList.FilterState() == list.Filtering
	}
	return m.playlistList.FilterState() == list.Filtering
}

func (m *BrowserModel) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.view == TrackListView {
		m.trackList, cmd = m.trackList.Update(msg)
	} else {
		m.playlistList, cmd = m.playlistList.Update(msg)
	}
	return m, cmd
}

func (m *BrowserModel) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.library.Playlists(m.ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *BrowserModel) fetchTracks(p spotify.Playlist) tea.Cmd {
	return func() tea.Msg {
		tracks, err := m.library.PlaylistTracks(m.ctx, p.ID)
		return tracksFetchedMsg(p, tracks, err)
	}
}

func (m *BrowserModel) View() string {
	helpView := styles.Help(m.help.View(m.keys))

	if m.err != nil {
		return fmt.Sprintf("%s\n\n%s", styles.Err("Error: "+m.err.Error()), helpView)
	}
	if m.loading {
		return "Loading...\n"
	}
	if m.view == TrackListView {
		return fmt.Sprintf("%s\n\n%s", m.trackList.View(), helpView)
	}
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), helpView)
}

// CurrentView reports which list is shown.
func (m *BrowserModel) CurrentView() ViewState {
	return m.view
}
