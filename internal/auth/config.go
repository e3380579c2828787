package auth

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/splitify/internal/pkce"
	"github.com/desertthunder/splitify/internal/shared"
	"github.com/samber/lo"
	"golang.org/x/oauth2"
)

const (
	SpotifyAuthURL  = "https://accounts.spotify.com/authorize"
	SpotifyTokenURL = "https://accounts.spotify.com/api/token"

	DefaultExchangeTimeout = 15 * time.Second
)

// DefaultScopes are the permissions requested on login.
var DefaultScopes = []string{
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-public",
	"playlist-modify-private",
	"user-read-private",
	"user-read-email",
}

// Config describes a public OAuth client. It has no secret field: proof of possession comes from the PKCE verifier.
type Config struct {
	ClientID        string
	RedirectURI     string
	Scopes          []string
	AuthURL         string
	TokenURL        string
	VerifierLength  int
	ExchangeTimeout time.Duration
}

// ConfigFromShared maps the [shared.SpotifyConfig] section onto a Config, filling defaults for unset fields.
func ConfigFromShared(sc shared.SpotifyConfig) Config {
	return Config{
		ClientID:        sc.ClientID,
		RedirectURI:     sc.RedirectURI,
		Scopes:          sc.Scopes,
		AuthURL:         sc.AuthURL,
		TokenURL:        sc.TokenURL,
		VerifierLength:  sc.VerifierLength,
		ExchangeTimeout: sc.ExchangeTimeout.Duration,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.AuthURL == "" {
		c.AuthURL = SpotifyAuthURL
	}
	if c.TokenURL == "" {
		c.TokenURL = SpotifyTokenURL
	}
	if len(c.Scopes) == 0 {
		c.Scopes = DefaultScopes
	}
	if c.VerifierLength == 0 {
		c.VerifierLength = pkce.DefaultVerifierLength
	}
	if c.ExchangeTimeout <= 0 {
		c.ExchangeTimeout = DefaultExchangeTimeout
	}
	return c
}

// Validate fails fast on developer-facing configuration mistakes.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("%w: client id is empty", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.RedirectURI) == "" {
		return fmt.Errorf("%w: redirect uri is empty", ErrInvalidConfig)
	}
	for name, raw := range map[string]string{"redirect uri": c.RedirectURI, "authorize endpoint": c.AuthURL, "token endpoint": c.TokenURL} {
		if u, err := url.Parse(raw); err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%w: %s %q is not an absolute URL", ErrInvalidConfig, name, raw)
		}
	}
	if c.VerifierLength < pkce.MinVerifierLength || c.VerifierLength > pkce.MaxVerifierLength {
		return fmt.Errorf("%w: %d", pkce.ErrInvalidVerifierLength, c.VerifierLength)
	}
	return nil
}

// JoinScopes drops blanks and duplicates (first occurrence wins) and joins with a single space.
func JoinScopes(scopes []string) string {
	return strings.Join(normalizeScopes(scopes), " ")
}

func normalizeScopes(scopes []string) []string {
	trimmed := lo.Map(scopes, func(s string, _ int) string { return strings.TrimSpace(s) })
	return lo.Uniq(lo.Compact(trimmed))
}

// OAuth2Config renders the [oauth2.Config] used for the authorize URL, exchange, and refresh.
//
// Client credentials go in the form body as client_id only; no Basic authorization header is sent.
func (c Config) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    c.ClientID,
		RedirectURL: c.RedirectURI,
		Scopes:      normalizeScopes(c.Scopes),
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}
