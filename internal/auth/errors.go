package auth

import (
	"fmt"

	"github.com/desertthunder/splitify/internal/shared"
)

var (
	// Configuration errors
	ErrInvalidConfig = shared.ErrInvalidConfig

	// Protocol errors, recoverable only by starting a new login
	ErrMissingAuthorizationCode = fmt.Errorf("missing authorization code")
	ErrMissingVerifier          = fmt.Errorf("missing code verifier")
	ErrTokenExchangeFailed      = fmt.Errorf("token exchange failed")
	ErrTokenExchangeTimeout     = fmt.Errorf("token exchange timed out")

	// Session errors
	ErrNotAuthenticated = shared.ErrNotAuthenticated
	ErrTokenExpired     = shared.ErrTokenExpired
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
)

// ServerError carries an error reported by the authorization server, either on the redirect
// (e.g. access_denied) or in a token endpoint response. Kind is the sentinel it unwraps to.
type ServerError struct {
	Kind        error
	Code        string
	Description string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Message())
}

func (e *ServerError) Unwrap() error {
	return e.Kind
}

// Message is the server's own wording, preferring the description over the bare code.
func (e *ServerError) Message() string {
	switch {
	case e.Description != "" && e.Code != "":
		return e.Code + ": " + e.Description
	case e.Description != "":
		return e.Description
	default:
		return e.Code
	}
}
