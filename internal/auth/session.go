package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/splitify/internal/store"
	"golang.org/x/oauth2"
)

// Session answers whether usable credentials exist. Every query reads the store and the clock afresh.
type Session struct {
	store      store.Store
	oauth      *oauth2.Config
	clock      Clock
	httpClient *http.Client
	timeout    time.Duration
	logger     *log.Logger
}

// Tokens returns the stored credential triple.
func (s *Session) Tokens() (store.TokenRecord, bool, error) {
	return store.LoadTokens(s.store)
}

// IsValid is true when an access token is stored and the current time is before its expiry.
// A storage failure is logged and treated as not authenticated.
func (s *Session) IsValid() bool {
	rec, ok, err := s.Tokens()
	if err != nil {
		s.logger.Warn("unable to read credentials", "error", err)
		return false
	}
	return ok && s.valid(rec)
}

func (s *Session) valid(rec store.TokenRecord) bool {
	if rec.AccessToken == "" || rec.ExpiresAt.IsZero() {
		return false
	}
	return s.clock.Now().Before(rec.ExpiresAt)
}

// ExpiresIn returns the time left on the access token, zero if not authenticated.
func (s *Session) ExpiresIn() time.Duration {
	rec, ok, err := s.Tokens()
	if err != nil || !ok || !s.valid(rec) {
		return 0
	}
	return rec.ExpiresAt.Sub(s.clock.Now())
}

// AccessToken returns the bearer token, or ErrNotAuthenticated when the session is not valid.
func (s *Session) AccessToken() (string, error) {
	rec, ok, err := s.Tokens()
	if err != nil {
		return "", err
	}
	if !ok || !s.valid(rec) {
		return "", ErrNotAuthenticated
	}
	return rec.AccessToken, nil
}

// Logout removes every stored credential, including a pending verifier.
func (s *Session) Logout() error {
	if err := store.Clear(s.store); err != nil {
		return err
	}
	s.logger.Info("logged out")
	return nil
}

// Refresh trades the stored refresh token for a new access token and persists the new triple.
// A server that does not rotate the refresh token leaves the previous one in place.
func (s *Session) Refresh(ctx context.Context) (store.TokenRecord, error) {
	rec, ok, err := s.Tokens()
	if err != nil {
		return store.TokenRecord{}, err
	}
	if !ok || rec.RefreshToken == "" {
		return store.TokenRecord{}, ErrNoRefreshToken
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)

	// No access token on the seed forces the source to hit the token endpoint.
	tok, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: rec.RefreshToken}).Token()
	receivedAt := s.clock.Now()
	if err != nil {
		err = classify(ctx, err, ErrRefreshFailed, ErrTokenExchangeTimeout)

		var se *ServerError
		if errors.As(err, &se) && se.Code == "invalid_grant" {
			s.logger.Warn("refresh token rejected, clearing session")
			if lerr := s.Logout(); lerr != nil {
				err = errors.Join(err, lerr)
			}
		}
		return store.TokenRecord{}, err
	}

	next, err := tokenRecord(tok, receivedAt, rec.RefreshToken)
	if err != nil {
		return store.TokenRecord{}, errors.Join(ErrRefreshFailed, err)
	}
	if err := store.SaveTokens(s.store, next); err != nil {
		return store.TokenRecord{}, err
	}

	s.logger.Info("access token refreshed", "expires_at", next.ExpiresAt.Format("2006-01-02 15:04:05"))
	return next, nil
}
