package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/splitify/internal/auth"
	"github.com/desertthunder/splitify/internal/server"
	"github.com/desertthunder/splitify/internal/shared"
	"github.com/desertthunder/splitify/internal/store"
	"github.com/desertthunder/splitify/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/splitify-tui.log"

// AuthLogin runs the full login: authorization URL, local callback server, and token exchange.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.load(cmd); err != nil {
		return err
	}

	path, err := server.CallbackPath(r.config.Spotify.RedirectURI)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	if want, err := server.ListenAddr(r.config.Spotify.RedirectURI); err == nil && want != addr {
		r.logger.Warn("callback server address differs from redirect uri", "listen", addr, "redirect", want)
	}

	state := shared.GenerateID()
	authURL, err := r.auth.BeginLogin(ctx, state)
	if err != nil {
		return err
	}

	handler := server.NewCallbackHandler(r.auth, path, state, r.logger)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(shared.WithLogger(r.logger, "component", "callback")))
	router.Handler(handler)

	srv, err := server.Listen(addr, router, r.logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	browserOpened := false
	if !cmd.Bool("no-browser") {
		if err := r.openBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
		} else {
			browserOpened = true
		}
	}

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = defaultLoginTimeout
	}

	var result auth.Result
	if cmd.Bool("plain") {
		if !browserOpened {
			r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
		}
		r.writePlain("→ Waiting for authorization (%v timeout)...\n", timeout)
		result = r.awaitCallback(ctx, handler, srv, timeout)
		r.writePlain("%s\n", result.Status())
	} else {
		if result, err = r.runLoginView(ctx, handler, srv, authURL, timeout); err != nil {
			return err
		}
	}

	if result.State != auth.StateSuccess {
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, result.Err)
	}

	r.greet(ctx)
	return nil
}

// awaitCallback blocks until the callback server publishes a result or the wait is abandoned.
func (r *Runner) awaitCallback(ctx context.Context, h *server.CallbackHandler, srv *server.Server, timeout time.Duration) auth.Result {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-h.Result():
		return result
	case err := <-srv.Errors():
		return auth.Result{State: auth.StateFailed, Err: fmt.Errorf("%w: callback server: %v", shared.ErrServiceUnavailable, err)}
	case <-timer.C:
		return auth.Result{State: auth.StateFailed, Err: fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, timeout)}
	case <-ctx.Done():
		return auth.Result{State: auth.StateFailed, Err: ctx.Err()}
	}
}

// runLoginView shows the spinner view while waiting. Logs go to a file so they do not tear the view.
func (r *Runner) runLoginView(ctx context.Context, h *server.CallbackHandler, srv *server.Server, authURL string, timeout time.Duration) (auth.Result, error) {
	restore, err := shared.RedirectToFile(r.logger, tuiLogPath)
	if err != nil {
		return auth.Result{}, err
	}
	defer restore()

	model := ui.NewLoginModel(authURL)
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(r.output))

	r.onState = func(s auth.State) { p.Send(ui.StateMsg(s)) }
	defer func() { r.onState = nil }()

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		p.Send(ui.ResultMsg(r.awaitCallback(waitCtx, h, srv, timeout)))
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return auth.Result{}, fmt.Errorf("error running login view: %w", err)
	}

	if model.Cancelled() {
		return auth.Result{State: auth.StateFailed, Err: context.Canceled}, nil
	}
	result, ok := model.Result()
	if !ok {
		return auth.Result{State: auth.StateFailed, Err: ctx.Err()}, nil
	}
	return result, nil
}

// greet confirms the session works by fetching the profile. Failure here does not undo the login.
func (r *Runner) greet(ctx context.Context) {
	user, err := r.spotify.CurrentUser(ctx)
	if err != nil {
		r.logger.Warn("unable to fetch profile", "error", err)
		return
	}
	name := user.DisplayName
	if name == "" {
		name = user.ID
	}
	r.writePlain("✓ Logged in as %s\n", name)
}

// AuthCallback completes a login from a redirect URL pasted by the user, e.g. when the browser runs on another machine.
func (r *Runner) AuthCallback(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.StringArg("url")
	if raw == "" {
		return fmt.Errorf("%w: callback url", shared.ErrMissingArgument)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	if err := r.load(cmd); err != nil {
		return err
	}

	result := r.auth.HandleCallback(ctx, u)
	r.writePlain("%s\n", result.Status())
	if result.State != auth.StateSuccess {
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, result.Err)
	}
	return nil
}

type sessionStatus struct {
	Authenticated   bool       `json:"authenticated"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	ExpiresIn       string     `json:"expires_in,omitempty"`
	HasRefreshToken bool       `json:"has_refresh_token"`
	PendingLogin    bool       `json:"pending_login"`
}

// AuthStatus reports whether a valid session exists.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.load(cmd); err != nil {
		return err
	}

	session := r.auth.Session()
	rec, ok, err := session.Tokens()
	if err != nil {
		return err
	}

	status := sessionStatus{
		Authenticated:   session.IsValid(),
		HasRefreshToken: ok && rec.RefreshToken != "",
	}
	if ok && !rec.ExpiresAt.IsZero() {
		status.ExpiresAt = &rec.ExpiresAt
	}
	if status.Authenticated {
		status.ExpiresIn = session.ExpiresIn().Round(time.Second).String()
	}
	if _, pending, err := r.store.Get(store.KeyCodeVerifier); err == nil {
		status.PendingLogin = pending
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	r.writePlainHeader("Spotify session")
	switch {
	case status.Authenticated:
		r.writePlain("Status: ✓ Authenticated\n")
		r.writePlain("Expires: %s (in %s)\n", formatExpiry(rec.ExpiresAt), status.ExpiresIn)
	case ok:
		r.writePlain("Status: ✗ Expired at %s\n", formatExpiry(rec.ExpiresAt))
	default:
		r.writePlain("Status: ✗ Not authenticated\n")
	}
	if status.HasRefreshToken {
		r.writePlain("Refresh token: available\n")
	}
	if status.PendingLogin {
		r.writePlain("A login is in progress\n")
	}
	return nil
}

// AuthRefresh trades the stored refresh token for a new access token.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	if err := r.load(cmd); err != nil {
		return err
	}

	rec, err := r.auth.Session().Refresh(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrNoRefreshToken) {
			return fmt.Errorf("%w (run 'splitify auth login')", err)
		}
		return err
	}

	return r.writePlain("✓ Access token refreshed, expires %s\n", formatExpiry(rec.ExpiresAt))
}

// AuthLogout removes every stored credential.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.load(cmd); err != nil {
		return err
	}
	if err := r.auth.Session().Logout(); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out\n")
}
