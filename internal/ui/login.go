package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/splitify/internal/auth"
)

// LoginModel shows the progress of a login while the callback is awaited.
type LoginModel struct {
	spinner   spinner.Model
	state     auth.State
	result    *auth.Result
	authURL   string
	cancelled bool
	keys      keyMap
}

// NewLoginModel renders authURL as a fallback for when the browser could not be opened.
func NewLoginModel(authURL string) *LoginModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = NewStyle("#1DB954")

	return &LoginModel{
		spinner: s,
		state:   auth.StateIdle,
		authURL: authURL,
		keys:    newKeyMap(),
	}
}

func (m *LoginModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *LoginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case Msg:
		switch msg.kind {
		case MsgState:
			m.state = msg.data.(auth.State)
		case MsgResult:
			r := msg.data.(auth.Result)
			m.result = &r
			m.state = r.State
			return m, tea.Quit
		}
		return m, nil
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			m.cancelled = true
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *LoginModel) View() string {
	var b strings.Builder
	b.WriteString(styles.Title("Spotify login"))
	b.WriteString("\n")

	if m.result != nil {
		if m.result.State == auth.StateFailed {
			b.WriteString(styles.Err(m.result.Status()))
		} else {
			b.WriteString(styles.OK(m.result.Status()))
		}
		b.WriteString("\n")
		return b.String()
	}

	if m.authURL != "" && m.state < auth.StateExchangingToken {
		b.WriteString("If your browser did not open, visit:\n")
		b.WriteString(m.authURL)
		b.WriteString("\n\n")
	}

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(auth.Result{State: m.state}.Status())
	b.WriteString("\n\n")
	b.WriteString(styles.Help("q to cancel"))
	b.WriteString("\n")
	return b.String()
}

// Result returns the terminal result once one has been received.
func (m *LoginModel) Result() (auth.Result, bool) {
	if m.result == nil {
		return auth.Result{}, false
	}
	return *m.result, true
}

// Cancelled reports whether the user quit before a result arrived.
func (m *LoginModel) Cancelled() bool {
	return m.cancelled
}
