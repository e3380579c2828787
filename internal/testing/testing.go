// package testing contains shared testing utilities
package testing

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/splitify/internal/store"
)

// FailingStore is a [store.Store] whose every operation fails with [store.ErrStorageUnavailable].
type FailingStore struct{}

var _ store.Store = FailingStore{}

var errBackend = errors.New("backend offline")

func (FailingStore) Get(store.Key) (string, bool, error) {
	return "", false, errors.Join(store.ErrStorageUnavailable, errBackend)
}
func (FailingStore) Set(store.Key, string) error {
	return errors.Join(store.ErrStorageUnavailable, errBackend)
}
func (FailingStore) Remove(store.Key) error {
	return errors.Join(store.ErrStorageUnavailable, errBackend)
}
func (FailingStore) SetMany(map[store.Key]string) error {
	return errors.Join(store.ErrStorageUnavailable, errBackend)
}
func (FailingStore) RemoveMany(...store.Key) error {
	return errors.Join(store.ErrStorageUnavailable, errBackend)
}
func (FailingStore) Close() error { return nil }

// TokenEndpoint is an httptest server standing in for the OAuth token endpoint.
type TokenEndpoint struct {
	*httptest.Server
	Calls atomic.Int32
}

// NewTokenEndpoint answers every request with status and body encoded as JSON.
func NewTokenEndpoint(t *testing.T, status int, body map[string]any) *TokenEndpoint {
	t.Helper()
	te := &TokenEndpoint{}
	te.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		te.Calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(te.Close)
	return te
}

// GrantBody is a successful token response.
func GrantBody(access, refresh string, expiresIn int) map[string]any {
	return map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "Bearer",
		"expires_in":    expiresIn,
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
