package auth

import (
	"fmt"
	"strings"

	"github.com/desertthunder/splitify/internal/pkce"
	"golang.org/x/oauth2"
)

// WithState adds an opaque state value to the authorization URL.
func WithState(state string) oauth2.AuthCodeOption {
	return oauth2.SetAuthURLParam("state", state)
}

// BuildAuthorizationURL returns the authorize endpoint URL the user's browser is sent to.
//
// The query carries response_type=code, client_id, scope, redirect_uri, code_challenge_method=S256 and the
// challenge. Parameter values are percent-encoded.
func BuildAuthorizationURL(cfg Config, challenge string, opts ...oauth2.AuthCodeOption) (string, error) {
	if strings.TrimSpace(challenge) == "" {
		return "", fmt.Errorf("%w: code challenge is empty", ErrInvalidConfig)
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	params := append([]oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge_method", pkce.MethodS256),
		oauth2.SetAuthURLParam("code_challenge", challenge),
	}, opts...)

	// An empty state argument is omitted from the query by AuthCodeURL.
	return cfg.OAuth2Config().AuthCodeURL("", params...), nil
}
