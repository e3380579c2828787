package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/splitify/internal/pkce"
	"github.com/desertthunder/splitify/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// tokenServer records every form posted to it and answers with respond.
type tokenServer struct {
	*httptest.Server
	calls   atomic.Int32
	mu      sync.Mutex
	forms   []url.Values
	headers []http.Header
}

func newTokenServer(t *testing.T, respond func(w http.ResponseWriter, r *http.Request, form url.Values)) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		_ = r.ParseForm()
		ts.mu.Lock()
		ts.forms = append(ts.forms, r.PostForm)
		ts.headers = append(ts.headers, r.Header.Clone())
		ts.mu.Unlock()
		respond(w, r, r.PostForm)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) lastForm() url.Values {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.forms[len(ts.forms)-1]
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func grantTokens(access, refresh string, expiresIn int) func(http.ResponseWriter, *http.Request, url.Values) {
	return func(w http.ResponseWriter, _ *http.Request, _ url.Values) {
		body := map[string]any{"access_token": access, "token_type": "Bearer", "expires_in": expiresIn}
		if refresh != "" {
			body["refresh_token"] = refresh
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func testConfig(tokenURL string) Config {
	return Config{
		ClientID:        "client-123",
		RedirectURI:     "http://127.0.0.1:3000/callback",
		Scopes:          DefaultScopes,
		AuthURL:         "https://accounts.example.com/authorize",
		TokenURL:        tokenURL,
		ExchangeTimeout: 2 * time.Second,
	}
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestAuthenticator(t *testing.T, tokenURL string, opts ...Option) (*Authenticator, *store.MemoryStore, *testClock) {
	t.Helper()
	s := store.NewMemoryStore()
	clock := &testClock{now: epoch}
	base := []Option{WithClock(clock), WithLogger(log.New(io.Discard))}
	a, err := New(testConfig(tokenURL), s, append(base, opts...)...)
	require.NoError(t, err)
	return a, s, clock
}

func callback(t *testing.T, query string) *url.URL {
	t.Helper()
	u, err := url.Parse("http://127.0.0.1:3000/callback?" + query)
	require.NoError(t, err)
	return u
}

func TestConfig(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name   string
			modify func(*Config)
			want   error
		}{
			{"valid", func(*Config) {}, nil},
			{"empty client id", func(c *Config) { c.ClientID = " " }, ErrInvalidConfig},
			{"empty redirect uri", func(c *Config) { c.RedirectURI = "" }, ErrInvalidConfig},
			{"relative redirect uri", func(c *Config) { c.RedirectURI = "/callback" }, ErrInvalidConfig},
			{"relative token url", func(c *Config) { c.TokenURL = "api/token" }, ErrInvalidConfig},
			{"short verifier", func(c *Config) { c.VerifierLength = 42 }, pkce.ErrInvalidVerifierLength},
			{"long verifier", func(c *Config) { c.VerifierLength = 129 }, pkce.ErrInvalidVerifierLength},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cfg := testConfig("https://accounts.example.com/api/token").withDefaults()
				tt.modify(&cfg)
				err := cfg.Validate()
				if tt.want == nil {
					assert.NoError(t, err)
				} else {
					assert.ErrorIs(t, err, tt.want)
				}
			})
		}
	})

	t.Run("defaults fill unset fields", func(t *testing.T) {
		cfg := Config{ClientID: "id", RedirectURI: "http://localhost/cb"}.withDefaults()
		assert.Equal(t, SpotifyAuthURL, cfg.AuthURL)
		assert.Equal(t, SpotifyTokenURL, cfg.TokenURL)
		assert.Equal(t, pkce.DefaultVerifierLength, cfg.VerifierLength)
		assert.Equal(t, DefaultExchangeTimeout, cfg.ExchangeTimeout)
		assert.Equal(t, DefaultScopes, cfg.Scopes)
	})

	t.Run("JoinScopes drops blanks and duplicates", func(t *testing.T) {
		got := JoinScopes([]string{"user-read-email", "", "playlist-read-private", "user-read-email", " "})
		assert.Equal(t, "user-read-email playlist-read-private", got)
	})

	t.Run("New rejects invalid config", func(t *testing.T) {
		_, err := New(Config{}, store.NewMemoryStore())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("New rejects nil store", func(t *testing.T) {
		_, err := New(testConfig("https://accounts.example.com/api/token"), nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestBuildAuthorizationURL(t *testing.T) {
	cfg := testConfig("https://accounts.example.com/api/token")
	challenge, err := pkce.DeriveChallenge("dBjftJeZ4CVP-mJ92IgqLVr5XaYm6h1Ps5OZEDJpgJU")
	require.NoError(t, err)

	t.Run("carries every required parameter", func(t *testing.T) {
		raw, err := BuildAuthorizationURL(cfg, challenge)
		require.NoError(t, err)

		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "accounts.example.com", u.Host)
		assert.Equal(t, "/authorize", u.Path)

		q := u.Query()
		assert.Equal(t, "code", q.Get("response_type"))
		assert.Equal(t, "client-123", q.Get("client_id"))
		assert.Equal(t, "http://127.0.0.1:3000/callback", q.Get("redirect_uri"))
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", q.Get("code_challenge"))
		assert.Equal(t, strings.Join(DefaultScopes, " "), q.Get("scope"))
		assert.False(t, q.Has("state"))
	})

	t.Run("scope contains each required scope once", func(t *testing.T) {
		dup := cfg
		dup.Scopes = append(append([]string{}, DefaultScopes...), DefaultScopes[0])
		raw, err := BuildAuthorizationURL(dup, challenge)
		require.NoError(t, err)

		u, _ := url.Parse(raw)
		scopes := strings.Split(u.Query().Get("scope"), " ")
		assert.ElementsMatch(t, DefaultScopes, scopes)
	})

	t.Run("values are percent-encoded", func(t *testing.T) {
		raw, err := BuildAuthorizationURL(cfg, challenge)
		require.NoError(t, err)
		assert.Contains(t, raw, "redirect_uri=http%3A%2F%2F127.0.0.1%3A3000%2Fcallback")
	})

	t.Run("state", func(t *testing.T) {
		raw, err := BuildAuthorizationURL(cfg, challenge, WithState("xyz"))
		require.NoError(t, err)
		u, _ := url.Parse(raw)
		assert.Equal(t, "xyz", u.Query().Get("state"))
	})

	t.Run("empty challenge", func(t *testing.T) {
		_, err := BuildAuthorizationURL(cfg, "")
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("invalid config", func(t *testing.T) {
		bad := cfg
		bad.ClientID = ""
		_, err := BuildAuthorizationURL(bad, challenge)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestBeginLogin(t *testing.T) {
	t.Run("stores verifier matching the challenge", func(t *testing.T) {
		a, s, _ := newTestAuthenticator(t, "https://accounts.example.com/api/token")

		raw, err := a.BeginLogin(context.Background(), "")
		require.NoError(t, err)

		verifier, ok, err := s.Get(store.KeyCodeVerifier)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Len(t, verifier, pkce.DefaultVerifierLength)

		want, err := pkce.DeriveChallenge(verifier)
		require.NoError(t, err)
		u, _ := url.Parse(raw)
		assert.Equal(t, want, u.Query().Get("code_challenge"))
	})

	t.Run("overwrites a stale verifier", func(t *testing.T) {
		a, s, _ := newTestAuthenticator(t, "https://accounts.example.com/api/token")
		require.NoError(t, s.Set(store.KeyCodeVerifier, "stale"))

		_, err := a.BeginLogin(context.Background(), "state-1")
		require.NoError(t, err)

		verifier, _, _ := s.Get(store.KeyCodeVerifier)
		assert.NotEqual(t, "stale", verifier)
	})

	t.Run("random source failure stores nothing", func(t *testing.T) {
		gen := pkce.Generator{Random: iotest.ErrReader(errors.New("entropy exhausted"))}
		a, s, _ := newTestAuthenticator(t, "https://accounts.example.com/api/token", WithGenerator(gen))

		_, err := a.BeginLogin(context.Background(), "")
		assert.ErrorIs(t, err, pkce.ErrCryptoUnavailable)

		_, ok, _ := s.Get(store.KeyCodeVerifier)
		assert.False(t, ok)
	})
}

func TestHandleCallback(t *testing.T) {
	t.Run("end to end login", func(t *testing.T) {
		ts := newTokenServer(t, grantTokens("AT1", "RT1", 3600))
		a, s, clock := newTestAuthenticator(t, ts.URL+"/api/token", WithHTTPClient(ts.Client()))

		_, err := a.BeginLogin(context.Background(), "")
		require.NoError(t, err)
		verifier, _, _ := s.Get(store.KeyCodeVerifier)

		result := a.HandleCallback(context.Background(), callback(t, "code=abc"))
		require.NoError(t, result.Err)
		assert.Equal(t, StateSuccess, result.State)
		assert.False(t, result.AlreadyHandled)
		assert.Equal(t, "Login successful!", result.Status())

		form := ts.lastForm()
		assert.Equal(t, "authorization_code", form.Get("grant_type"))
		assert.Equal(t, "abc", form.Get("code"))
		assert.Equal(t, "http://127.0.0.1:3000/callback", form.Get("redirect_uri"))
		assert.Equal(t, verifier, form.Get("code_verifier"))
		assert.Equal(t, "client-123", form.Get("client_id"))
		assert.Empty(t, form.Get("client_secret"))
		assert.Empty(t, ts.headers[0].Get("Authorization"))

		rec, ok, err := store.LoadTokens(s)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "AT1", rec.AccessToken)
		assert.Equal(t, "RT1", rec.RefreshToken)
		assert.Equal(t, epoch.UnixMilli()+3_600_000, rec.ExpiresAt.UnixMilli())

		_, ok, _ = s.Get(store.KeyCodeVerifier)
		assert.False(t, ok, "verifier must be removed after the exchange")

		session := a.Session()
		assert.True(t, session.IsValid())
		clock.Set(epoch.Add(3_600_000*time.Millisecond + time.Millisecond))
		assert.False(t, session.IsValid())
	})

	t.Run("missing code makes no network call", func(t *testing.T) {
		ts := newTokenServer(t, grantTokens("AT", "RT", 3600))
		a, s, _ := newTestAuthenticator(t, ts.URL, WithHTTPClient(ts.Client()))
		require.NoError(t, s.Set(store.KeyCodeVerifier, strings.Repeat("v", 64)))

		result := a.HandleCallback(context.Background(), callback(t, "state=xyz"))
		assert.Equal(t, StateFailed, result.State)
		assert.ErrorIs(t, result.Err, ErrMissingAuthorizationCode)
		assert.Equal(t, "Error: No authorization code received", result.Status())
		assert.Zero(t, ts.calls.Load())
	})

	t.Run("denied consent carries the server error", func(t *testing.T) {
		a, _, _ := newTestAuthenticator(t, "https://accounts.example.com/api/token")

		result := a.HandleCallback(context.Background(), callback(t, "error=access_denied"))
		assert.Equal(t, StateFailed, result.State)
		assert.ErrorIs(t, result.Err, ErrMissingAuthorizationCode)

		var se *ServerError
		require.ErrorAs(t, result.Err, &se)
		assert.Equal(t, "access_denied", se.Code)
		assert.Equal(t, "Error: access_denied", result.Status())
	})

	t.Run("nil url", func(t *testing.T) {
		a, _, _ := newTestAuthenticator(t, "https://accounts.example.com/api/token")
		result := a.HandleCallback(context.Background(), nil)
		assert.ErrorIs(t, result.Err, ErrMissingAuthorizationCode)
	})

	t.Run("missing verifier makes no network call", func(t *testing.T) {
		ts := newTokenServer(t, grantTokens("AT", "RT", 3600))
		a, _, _ := newTestAuthenticator(t, ts.URL, WithHTTPClient(ts.Client()))

		result := a.HandleCallback(context.Background(), callback(t, "code=abc"))
		assert.Equal(t, StateFailed, result.State)
		assert.ErrorIs(t, result.Err, ErrMissingVerifier)
		assert.Zero(t, ts.calls.Load())
	})

	t.Run("duplicate invocation exchanges once", func(t *testing.T) {
		ts := newTokenServer(t, grantTokens("AT", "RT", 3600))
		a, s, _ := newTestAuthenticator(t, ts.URL, WithHTTPClient(ts.Client()))
		require.NoError(t, s.Set(store.KeyCodeVerifier, strings.Repeat("v", 64)))

		first := a.HandleCallback(context.Background(), callback(t, "code=abc"))
		require.Equal(t, StateSuccess, first.State)

		second := a.HandleCallback(context.Background(), callback(t, "code=abc"))
		assert.Equal(t, StateSuccess, second.State)
		assert.True(t, second.AlreadyHandled)
		assert.Equal(t, "Already logged in.", second.Status())
		assert.EqualValues(t, 1, ts.calls.Load())
	})

	t.Run("concurrent invocations exchange once", func(t *testing.T) {
		ts := newTokenServer(t, grantTokens("AT", "RT", 3600))
		a, s, _ := newTestAuthenticator(t, ts.URL, WithHTTPClient(ts.Client()))
		require.NoError(t, s.Set(store.KeyCodeVerifier, strings.Repeat("v", 64)))

		u := callback(t, "code=abc")
		var wg sync.WaitGroup
		results := make([]Result, 4)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = a.HandleCallback(context.Background(), u)
			}(i)
		}
		wg.Wait()

		assert.EqualValues(t, 1, ts.calls.Load())
		for _, r := range results {
			assert.Equal(t, StateSuccess, r.State)
		}
	})

	t.Run("rejected code leaves no credentials", func(t *testing.T) {
		ts := newTokenServer(t, func(w http.ResponseWriter, _ *http.Request, _ url.Values) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":             "invalid_grant",
				"error_description": "Invalid authorization code",
			})
		})
		a, s, _ := newTestAuthenticator(t, ts.URL, WithHTTPClient(ts.Client()))
		require.NoError(t, s.Set(store.KeyCodeVerifier, strings.Repeat("v", 64)))
		require.NoError(t, store.SaveTokens(s, store.TokenRecord{AccessToken: "old", RefreshToken: "old", ExpiresAt: epoch.Add(time.Hour)}))

		result := a.HandleCallback(context.Background(), callback(t, "code=bad"))
		assert.Equal(t, StateFailed, result.State)
		assert.ErrorIs(t, result.Err, ErrTokenExchangeFailed)

		var se *ServerError
		require.ErrorAs(t, result.Err, &se)
		assert.Equal(t, "invalid_grant", se.Code)
		assert.Equal(t, "Invalid authorization code", se.Description)
		assert.Contains(t, result.Status(), "Invalid authorization code")

		for _, key := range store.Keys() {
			_, ok, err := s.Get(key)
			require.NoError(t, err)
			assert.False(t, ok, "%s should be absent", key)
		}
		assert.False(t, a.Session().IsValid())
	})

	t.Run("server error without body", func(t *testing.T) {
		ts := newTokenServer(t, func(w http.ResponseWriter, _ *http.Request, _ url.Values) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		a, s, _ := newTestAuthenticator(t, ts.URL, WithHTTPClient(ts.Client()))
		require.NoError(t, s.Set(store.KeyCodeVerifier, strings.Repeat("v", 64)))

		result := a.HandleCallback(context.Background(), callback(t, "code=abc"))
		assert.ErrorIs(t, result.Err, ErrTokenExchangeFailed)
		assert.Contains(t, result.Status(), "500")
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		ts := newTokenServer(t, func(w http.ResponseWriter, r *http.Request, _ url.Values) {
			select {
			case <-r.Context().Done():
			case <-release:
			}
		})
		defer close(release)

		s := store.NewMemoryStore()
		cfg := testConfig(ts.URL)
		cfg.ExchangeTimeout = 50 * time.Millisecond
		a, err := New(cfg, s, WithHTTPClient(ts.Client()), WithLogger(log.New(io.Discard)))
		require.NoError(t, err)
		require.NoError(t, s.Set(store.KeyCodeVerifier, strings.Repeat("v", 64)))

		result := a.HandleCallback(context.Background(), callback(t, "code=abc"))
		assert.Equal(t, StateFailed, result.State)
		assert.ErrorIs(t, result.Err, ErrTokenExchangeTimeout)
		assert.Equal(t, "Error: Token exchange timed out", result.Status())

		_, ok, _ := s.Get(store.KeyCodeVerifier)
		assert.False(t, ok)
	})

	t.Run("response without access token", func(t *testing.T) {
		ts := newTokenServer(t, func(w http.ResponseWriter, _ *http.Request, _ url.Values) {
			writeJSON(w, http.StatusOK, map[string]any{"token_type": "Bearer"})
		})
		a, s, _ := newTestAuthenticator(t, ts.URL, WithHTTPClient(ts.Client()))
		require.NoError(t, s.Set(store.KeyCodeVerifier, strings.Repeat("v", 64)))

		result := a.HandleCallback(context.Background(), callback(t, "code=abc"))
		assert.ErrorIs(t, result.Err, ErrTokenExchangeFailed)
		_, ok, _ := s.Get(store.KeyAccessToken)
		assert.False(t, ok)
	})

	t.Run("observer sees each transition", func(t *testing.T) {
		ts := newTokenServer(t, grantTokens("AT", "RT", 3600))
		var seen []State
		a, s, _ := newTestAuthenticator(t, ts.URL, WithHTTPClient(ts.Client()), WithObserver(func(st State) {
			seen = append(seen, st)
		}))
		require.NoError(t, s.Set(store.KeyCodeVerifier, strings.Repeat("v", 64)))

		a.HandleCallback(context.Background(), callback(t, "code=abc"))
		assert.Equal(t, []State{StateParsingCode, StateExchangingToken, StateSuccess}, seen)
	})

	t.Run("storage failure is surfaced", func(t *testing.T) {
		path := t.TempDir() + "/credentials.db"
		s, err := store.OpenSQLiteStore(path)
		require.NoError(t, err)
		a, err := New(testConfig("https://accounts.example.com/api/token"), s, WithLogger(log.New(io.Discard)))
		require.NoError(t, err)
		require.NoError(t, s.Close())

		result := a.HandleCallback(context.Background(), callback(t, "code=abc"))
		assert.Equal(t, StateFailed, result.State)
		assert.ErrorIs(t, result.Err, store.ErrStorageUnavailable)
	})
}

func TestSession(t *testing.T) {
	t.Run("validity follows the clock", func(t *testing.T) {
		a, s, clock := newTestAuthenticator(t, "https://accounts.example.com/api/token")
		session := a.Session()
		expires := epoch.Add(time.Hour)
		require.NoError(t, store.SaveTokens(s, store.TokenRecord{AccessToken: "AT", RefreshToken: "RT", ExpiresAt: expires}))

		tests := []struct {
			name string
			now  time.Time
			want bool
		}{
			{"well before", epoch, true},
			{"one ms before", expires.Add(-time.Millisecond), true},
			{"at expiry", expires, false},
			{"after expiry", expires.Add(time.Millisecond), false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				clock.Set(tt.now)
				assert.Equal(t, tt.want, session.IsValid())
			})
		}
	})

	t.Run("missing expiry is invalid", func(t *testing.T) {
		a, s, _ := newTestAuthenticator(t, "https://accounts.example.com/api/token")
		require.NoError(t, s.Set(store.KeyAccessToken, "AT"))
		assert.False(t, a.Session().IsValid())
	})

	t.Run("no credentials", func(t *testing.T) {
		a, _, _ := newTestAuthenticator(t, "https://accounts.example.com/api/token")
		assert.False(t, a.Session().IsValid())
		_, err := a.Session().AccessToken()
		assert.ErrorIs(t, err, ErrNotAuthenticated)
		assert.Zero(t, a.Session().ExpiresIn())
	})

	t.Run("AccessToken and ExpiresIn", func(t *testing.T) {
		a, s, _ := newTestAuthenticator(t, "https://accounts.example.com/api/token")
		require.NoError(t, store.SaveTokens(s, store.TokenRecord{AccessToken: "AT", ExpiresAt: epoch.Add(time.Minute)}))

		token, err := a.Session().AccessToken()
		require.NoError(t, err)
		assert.Equal(t, "AT", token)
		assert.Equal(t, time.Minute, a.Session().ExpiresIn())
	})

	t.Run("Logout clears everything", func(t *testing.T) {
		a, s, _ := newTestAuthenticator(t, "https://accounts.example.com/api/token")
		require.NoError(t, s.Set(store.KeyCodeVerifier, "v"))
		require.NoError(t, store.SaveTokens(s, store.TokenRecord{AccessToken: "AT", RefreshToken: "RT", ExpiresAt: epoch.Add(time.Hour)}))

		require.NoError(t, a.Session().Logout())
		for _, key := range store.Keys() {
			_, ok, _ := s.Get(key)
			assert.False(t, ok)
		}
		assert.False(t, a.Session().IsValid())
	})
}

func TestRefresh(t *testing.T) {
	seed := store.TokenRecord{AccessToken: "AT1", RefreshToken: "RT1", ExpiresAt: epoch.Add(-time.Minute)}

	t.Run("rotated refresh token", func(t *testing.T) {
		ts := newTokenServer(t, grantTokens("AT2", "RT2", 1800))
		a, s, _ := newTestAuthenticator(t, ts.URL, WithHTTPClient(ts.Client()))
		require.NoError(t, store.SaveTokens(s, seed))

		rec, err := a.Session().Refresh(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "AT2", rec.AccessToken)
		assert.Equal(t, "RT2", rec.RefreshToken)
		assert.Equal(t, epoch.Add(30*time.Minute).UnixMilli(), rec.ExpiresAt.UnixMilli())

		form := ts.lastForm()
		assert.Equal(t, "refresh_token", form.Get("grant_type"))
		assert.Equal(t, "RT1", form.Get("refresh_token"))
		assert.Equal(t, "client-123", form.Get("client_id"))
		assert.True(t, a.Session().IsValid())
	})

	t.Run("keeps refresh token when not rotated", func(t *testing.T) {
		ts := newTokenServer(t, grantTokens("AT2", "", 3600))
		a, s, _ := newTestAuthenticator(t, ts.URL, WithHTTPClient(ts.Client()))
		require.NoError(t, store.SaveTokens(s, seed))

		_, err := a.Session().Refresh(context.Background())
		require.NoError(t, err)

		stored, _, _ := store.LoadTokens(s)
		assert.Equal(t, "RT1", stored.RefreshToken)
		assert.Equal(t, "AT2", stored.AccessToken)
	})

	t.Run("no refresh token", func(t *testing.T) {
		a, _, _ := newTestAuthenticator(t, "https://accounts.example.com/api/token")
		_, err := a.Session().Refresh(context.Background())
		assert.ErrorIs(t, err, ErrNoRefreshToken)
	})

	t.Run("revoked refresh token clears the session", func(t *testing.T) {
		ts := newTokenServer(t, func(w http.ResponseWriter, _ *http.Request, _ url.Values) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "Refresh token revoked"})
		})
		a, s, _ := newTestAuthenticator(t, ts.URL, WithHTTPClient(ts.Client()))
		require.NoError(t, store.SaveTokens(s, seed))

		_, err := a.Session().Refresh(context.Background())
		assert.ErrorIs(t, err, ErrRefreshFailed)
		assert.Contains(t, err.Error(), "Refresh token revoked")

		_, ok, _ := s.Get(store.KeyRefreshToken)
		assert.False(t, ok)
	})
}

func TestTransport(t *testing.T) {
	t.Run("attaches bearer token", func(t *testing.T) {
		var got string
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
		}))
		defer api.Close()

		a, s, _ := newTestAuthenticator(t, "https://accounts.example.com/api/token")
		require.NoError(t, store.SaveTokens(s, store.TokenRecord{AccessToken: "AT1", ExpiresAt: epoch.Add(time.Hour)}))

		resp, err := a.Session().Client(api.Client().Transport).Get(api.URL + "/me")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, "Bearer AT1", got)
	})

	t.Run("refuses to send without a valid session", func(t *testing.T) {
		var calls atomic.Int32
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
		}))
		defer api.Close()

		a, s, _ := newTestAuthenticator(t, "https://accounts.example.com/api/token")
		require.NoError(t, store.SaveTokens(s, store.TokenRecord{AccessToken: "AT1", ExpiresAt: epoch}))

		_, err := a.Session().Client(api.Client().Transport).Get(api.URL + "/me")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
		assert.Zero(t, calls.Load())
	})

	t.Run("401 logs out", func(t *testing.T) {
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer api.Close()

		a, s, _ := newTestAuthenticator(t, "https://accounts.example.com/api/token")
		require.NoError(t, store.SaveTokens(s, store.TokenRecord{AccessToken: "AT1", RefreshToken: "RT1", ExpiresAt: epoch.Add(time.Hour)}))

		_, err := a.Session().Client(api.Client().Transport).Get(api.URL + "/me")
		assert.ErrorIs(t, err, ErrTokenExpired)
		assert.False(t, a.Session().IsValid())
		_, ok, _ := s.Get(store.KeyRefreshToken)
		assert.False(t, ok)
	})
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "unknown error"},
		{ErrMissingVerifier, "No code verifier found, start the login again"},
		{&ServerError{Kind: ErrTokenExchangeFailed, Description: "Invalid client"}, "Invalid client"},
		{&ServerError{Kind: ErrTokenExchangeFailed, Code: "invalid_client"}, "invalid_client"},
		{errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Reason(tt.err))
	}
}
