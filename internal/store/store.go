// Package store persists the PKCE verifier and OAuth tokens across the browser round-trip and process restarts.
//
// A [Store] is a small key/value collaborator over a fixed key set. Batch writes and removals are atomic so a
// token triple is never left half-written. Backends:
//   - [SQLiteStore] : durable, the default
//   - [FileStore] : durable, a single TOML file
//   - [MemoryStore] : process-local, for tests and ephemeral sessions
package store

import (
	"fmt"
	"slices"
	"strconv"
	"time"
)

// Key names a persisted credential.
type Key string

const (
	KeyCodeVerifier   Key = "code_verifier"
	KeyAccessToken    Key = "access_token"
	KeyRefreshToken   Key = "refresh_token"
	KeyTokenExpiresAt Key = "token_expires_at"
)

var (
	ErrStorageUnavailable = fmt.Errorf("credential storage unavailable")
	ErrUnknownKey         = fmt.Errorf("unknown credential key")
	ErrMalformedValue     = fmt.Errorf("malformed credential value")
)

// Keys returns every key the store accepts.
func Keys() []Key {
	return []Key{KeyCodeVerifier, KeyAccessToken, KeyRefreshToken, KeyTokenExpiresAt}
}

// TokenKeys returns the keys written together on a successful token exchange.
func TokenKeys() []Key {
	return []Key{KeyAccessToken, KeyRefreshToken, KeyTokenExpiresAt}
}

// Valid reports whether k is one of [Keys].
func (k Key) Valid() bool {
	return slices.Contains(Keys(), k)
}

// Store is a synchronous key/value store for credentials.
//
// Implementations wrap backend failures in [ErrStorageUnavailable]. SetMany and RemoveMany apply all changes or none.
type Store interface {
	Get(key Key) (string, bool, error)
	Set(key Key, value string) error
	Remove(key Key) error
	SetMany(values map[Key]string) error
	RemoveMany(keys ...Key) error
	Close() error
}

func checkKeys(keys ...Key) error {
	for _, k := range keys {
		if !k.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownKey, string(k))
		}
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}

// TokenRecord is the credential triple produced by a token exchange or refresh.
type TokenRecord struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// SaveTokens writes the triple atomically. ExpiresAt is stored as epoch milliseconds.
func SaveTokens(s Store, rec TokenRecord) error {
	return s.SetMany(map[Key]string{
		KeyAccessToken:    rec.AccessToken,
		KeyRefreshToken:   rec.RefreshToken,
		KeyTokenExpiresAt: strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10),
	})
}

// LoadTokens reads the triple. ok is false when no access token is stored.
func LoadTokens(s Store) (rec TokenRecord, ok bool, err error) {
	access, ok, err := s.Get(KeyAccessToken)
	if err != nil || !ok {
		return TokenRecord{}, false, err
	}
	rec.AccessToken = access

	if rec.RefreshToken, _, err = s.Get(KeyRefreshToken); err != nil {
		return TokenRecord{}, false, err
	}

	raw, found, err := s.Get(KeyTokenExpiresAt)
	if err != nil {
		return TokenRecord{}, false, err
	}
	if found {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return TokenRecord{}, false, fmt.Errorf("%w: %s=%q", ErrMalformedValue, KeyTokenExpiresAt, raw)
		}
		rec.ExpiresAt = time.UnixMilli(ms)
	}

	return rec, true, nil
}

// Clear removes every credential, used on logout.
func Clear(s Store) error {
	return s.RemoveMany(Keys()...)
}
