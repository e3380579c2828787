package server

import (
	"context"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/splitify/internal/auth"
	"github.com/desertthunder/splitify/internal/shared"
)

var ErrStateMismatch = fmt.Errorf("state parameter mismatch")

// Callbacker completes a login from a redirect URL. Satisfied by [auth.Authenticator].
type Callbacker interface {
	HandleCallback(ctx context.Context, callbackURL *url.URL) auth.Result
}

// CallbackHandler serves the redirect path. Only the first request is processed; its [auth.Result]
// is published exactly once on [CallbackHandler.Result].
type CallbackHandler struct {
	auth   Callbacker
	path   string
	state  string
	logger *log.Logger

	results chan auth.Result
	once    sync.Once
	mu      sync.Mutex
	hit     bool
}

// NewCallbackHandler serves path. A non-empty state must be echoed back by the authorization server.
func NewCallbackHandler(a Callbacker, path, state string, logger *log.Logger) *CallbackHandler {
	if path == "" {
		path = "/callback"
	}
	return &CallbackHandler{
		auth:    a,
		path:    path,
		state:   state,
		logger:  logger,
		results: make(chan auth.Result, 1),
	}
}

func (h *CallbackHandler) Routes() []string {
	return []string{h.path}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusConflict)
		return
	}
	h.hit = true
	h.mu.Unlock()

	if h.state != "" && r.URL.Query().Get("state") != h.state {
		h.logger.Warn("callback state did not match")
		result := auth.Result{State: auth.StateFailed, Err: ErrStateMismatch}
		h.Send(result)
		h.render(w, http.StatusBadRequest, result)
		return
	}

	result := h.auth.HandleCallback(r.Context(), r.URL)
	h.Send(result)

	status := http.StatusOK
	if result.State == auth.StateFailed {
		status = http.StatusBadRequest
	}
	h.render(w, status, result)
}

// Send publishes the result. Calls after the first are ignored.
func (h *CallbackHandler) Send(result auth.Result) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result receives exactly one result and is then closed.
func (h *CallbackHandler) Result() <-chan auth.Result {
	return h.results
}

var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: {{.Color}}; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Status}}</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`))

func (h *CallbackHandler) render(w http.ResponseWriter, code int, result auth.Result) {
	page := struct {
		Title  string
		Status string
		Color  template.CSS
	}{Title: "Authorization Successful", Status: result.Status(), Color: "#1DB954"}

	if result.State == auth.StateFailed {
		page.Title = "Authorization Failed"
		page.Color = "#E22134"
		if result.Err == ErrStateMismatch {
			page.Status = "Error: Invalid state parameter"
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := statusPage.Execute(w, page); err != nil {
		h.logger.Error("failed to render status page", "error", err)
	}
}

// CallbackPath returns the path component of a redirect URI, which the handler must serve.
func CallbackPath(redirectURI string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil || !u.IsAbs() {
		return "", fmt.Errorf("%w: redirect uri %q", shared.ErrInvalidConfig, redirectURI)
	}
	if u.Path == "" {
		return "/", nil
	}
	return u.Path, nil
}

// ListenAddr returns the host:port a redirect URI points at, defaulting the port from the scheme.
func ListenAddr(redirectURI string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("%w: redirect uri %q", shared.ErrInvalidConfig, redirectURI)
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
