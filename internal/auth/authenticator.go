package auth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/splitify/internal/pkce"
	"github.com/desertthunder/splitify/internal/store"
	"golang.org/x/oauth2"
)

// Authenticator drives a single login: it issues the authorization URL and completes the
// callback by exchanging the code for tokens.
type Authenticator struct {
	cfg        Config
	oauth      *oauth2.Config
	store      store.Store
	generator  pkce.Generator
	clock      Clock
	httpClient *http.Client
	logger     *log.Logger
	observer   func(State)
	session    *Session

	mu sync.Mutex
}

type Option func(*Authenticator)

func WithClock(c Clock) Option {
	return func(a *Authenticator) { a.clock = c }
}

// WithHTTPClient sets the client used to talk to the token endpoint.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Authenticator) { a.httpClient = c }
}

func WithLogger(l *log.Logger) Option {
	return func(a *Authenticator) { a.logger = l }
}

// WithGenerator replaces the PKCE generator, e.g. to supply a failing random source.
func WithGenerator(g pkce.Generator) Option {
	return func(a *Authenticator) { a.generator = g }
}

// WithObserver registers a callback notified on every callback state transition.
func WithObserver(fn func(State)) Option {
	return func(a *Authenticator) { a.observer = fn }
}

// New validates cfg and returns an Authenticator persisting to s.
func New(cfg Config, s store.Store, opts ...Option) (*Authenticator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: credential store is nil", ErrInvalidConfig)
	}

	a := &Authenticator{
		cfg:        cfg,
		oauth:      cfg.OAuth2Config(),
		store:      s,
		clock:      SystemClock,
		httpClient: http.DefaultClient,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.session = &Session{
		store:      s,
		oauth:      a.oauth,
		clock:      a.clock,
		httpClient: a.httpClient,
		timeout:    cfg.ExchangeTimeout,
		logger:     a.logger,
	}
	return a, nil
}

func (a *Authenticator) Config() Config { return a.cfg }

// Session returns the session view over the same store and clock.
func (a *Authenticator) Session() *Session { return a.session }

// BeginLogin generates a fresh verifier/challenge pair, persists the verifier, and returns the
// authorization URL. Any verifier left over from an abandoned attempt is overwritten.
func (a *Authenticator) BeginLogin(ctx context.Context, state string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pair, err := a.generator.NewPair(a.cfg.VerifierLength)
	if err != nil {
		return "", err
	}

	if err := a.store.Set(store.KeyCodeVerifier, pair.Verifier); err != nil {
		return "", err
	}

	var opts []oauth2.AuthCodeOption
	if state != "" {
		opts = append(opts, WithState(state))
	}

	authURL, err := BuildAuthorizationURL(a.cfg, pair.Challenge, opts...)
	if err != nil {
		return "", err
	}

	a.logger.Debug("login started", "verifier_length", len(pair.Verifier), "state", state != "")
	return authURL, nil
}

func (a *Authenticator) notify(s State) {
	a.logger.Debugf("callback state: %s", s)
	if a.observer != nil {
		a.observer(s)
	}
}

// exchange trades the code for tokens. The token endpoint is called exactly once.
func (a *Authenticator) exchange(ctx context.Context, code, verifier string) (store.TokenRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.ExchangeTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)

	tok, err := a.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	receivedAt := a.clock.Now()
	if err != nil {
		return store.TokenRecord{}, classify(ctx, err, ErrTokenExchangeFailed, ErrTokenExchangeTimeout)
	}
	return tokenRecord(tok, receivedAt, "")
}

// classify maps a token endpoint failure onto the package's errors, keeping the server's own wording.
func classify(ctx context.Context, err error, failed, timeout error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		se := &ServerError{Kind: failed, Code: re.ErrorCode, Description: re.ErrorDescription}
		if se.Code == "" && se.Description == "" && re.Response != nil {
			se.Code = re.Response.Status
		}
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", timeout, err)
	}
	return fmt.Errorf("%w: %v", failed, err)
}

// tokenRecord converts a token response, computing the absolute expiry from receipt time.
// prevRefresh is kept when the response does not carry a new refresh token.
func tokenRecord(tok *oauth2.Token, receivedAt time.Time, prevRefresh string) (store.TokenRecord, error) {
	if tok == nil || tok.AccessToken == "" {
		return store.TokenRecord{}, fmt.Errorf("%w: response has no access_token", ErrTokenExchangeFailed)
	}

	rec := store.TokenRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if rec.RefreshToken == "" {
		rec.RefreshToken = prevRefresh
	}

	if secs, ok := expiresIn(tok); ok {
		rec.ExpiresAt = receivedAt.Add(time.Duration(secs * float64(time.Second)))
	} else if !tok.Expiry.IsZero() {
		rec.ExpiresAt = tok.Expiry
	} else {
		rec.ExpiresAt = receivedAt
	}
	return rec, nil
}

func expiresIn(tok *oauth2.Token) (float64, bool) {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return v, !math.IsNaN(v)
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
