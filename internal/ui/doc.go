// Package ui implements the terminal views using bubbletea's Elm architecture.
//
// [LoginModel] renders the callback state machine while a login is in flight: a spinner with
// "Waiting for authorization..." or "Exchanging token...", then the final status line. It is fed
// [StateMsg] from the authenticator's observer and a single [ResultMsg] from the callback server.
//
// [BrowserModel] is a two-view browser:
//  1. [PlaylistListView] : the user's playlists
//  2. [TrackListView] : playable tracks of the selected playlist
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
