package auth

import (
	"context"
	"errors"
	"net/url"

	"github.com/desertthunder/splitify/internal/store"
)

// State is a step of the callback state machine. StateSuccess and StateFailed are terminal.
type State int

const (
	StateIdle State = iota
	StateParsingCode
	StateExchangingToken
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateParsingCode:
		return "parsing_code"
	case StateExchangingToken:
		return "exchanging_token"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// Result is the outcome of one callback invocation.
type Result struct {
	State State
	Err   error
	// AlreadyHandled is set when the callback found no verifier but a valid session,
	// i.e. a repeated invocation after a completed login.
	AlreadyHandled bool
	Tokens         store.TokenRecord
}

// Status is the single user-visible line describing the result.
func (r Result) Status() string {
	switch r.State {
	case StateSuccess:
		if r.AlreadyHandled {
			return "Already logged in."
		}
		return "Login successful!"
	case StateFailed:
		return "Error: " + Reason(r.Err)
	case StateExchangingToken:
		return "Exchanging token..."
	default:
		return "Waiting for authorization..."
	}
}

// Reason renders err for display.
func Reason(err error) string {
	var se *ServerError
	switch {
	case err == nil:
		return "unknown error"
	case errors.As(err, &se):
		return se.Message()
	case errors.Is(err, ErrMissingAuthorizationCode):
		return "No authorization code received"
	case errors.Is(err, ErrMissingVerifier):
		return "No code verifier found, start the login again"
	case errors.Is(err, ErrTokenExchangeTimeout):
		return "Token exchange timed out"
	case errors.Is(err, store.ErrStorageUnavailable):
		return "Credential storage is unavailable"
	default:
		return err.Error()
	}
}

// HandleCallback completes a login from the redirect URL the authorization server sent the browser to.
//
// The stored verifier is consumed before the exchange, so a repeated invocation never reaches the token
// endpoint twice. On any exchange failure the token keys are cleared, leaving no partial credentials.
func (a *Authenticator) HandleCallback(ctx context.Context, callbackURL *url.URL) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.notify(StateParsingCode)

	var query url.Values
	if callbackURL != nil {
		query = callbackURL.Query()
	}

	code := query.Get("code")
	if code == "" {
		if reported := query.Get("error"); reported != "" {
			return a.fail(&ServerError{
				Kind:        ErrMissingAuthorizationCode,
				Code:        reported,
				Description: query.Get("error_description"),
			})
		}
		return a.fail(ErrMissingAuthorizationCode)
	}

	verifier, ok, err := a.store.Get(store.KeyCodeVerifier)
	if err != nil {
		return a.fail(err)
	}
	if !ok || verifier == "" {
		if a.session.IsValid() {
			a.logger.Info("callback already handled, session is valid")
			return a.finish(Result{State: StateSuccess, AlreadyHandled: true})
		}
		return a.fail(ErrMissingVerifier)
	}

	if err := a.store.Remove(store.KeyCodeVerifier); err != nil {
		return a.fail(err)
	}

	a.notify(StateExchangingToken)

	rec, err := a.exchange(ctx, code, verifier)
	if err != nil {
		if cerr := a.store.RemoveMany(store.TokenKeys()...); cerr != nil {
			a.logger.Error("failed to clear credentials after exchange failure", "error", cerr)
			err = errors.Join(err, cerr)
		}
		return a.fail(err)
	}

	if err := store.SaveTokens(a.store, rec); err != nil {
		return a.fail(err)
	}

	a.logger.Info("login complete", "expires_at", rec.ExpiresAt.Format("2006-01-02 15:04:05"))
	return a.finish(Result{State: StateSuccess, Tokens: rec})
}

func (a *Authenticator) fail(err error) Result {
	a.logger.Warn("callback failed", "error", err)
	return a.finish(Result{State: StateFailed, Err: err})
}

func (a *Authenticator) finish(r Result) Result {
	a.notify(r.State)
	return r
}
