package auth

import (
	"fmt"
	"net/http"
)

// Transport attaches the session's bearer token to outgoing requests.
//
// Requests are refused while the session is not valid. A 401 response clears the session and
// surfaces ErrTokenExpired; the request is not retried.
type Transport struct {
	Session *Session
	Base    http.RoundTripper
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.Session.AccessToken()
	if err != nil {
		return nil, err
	}

	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.base().RoundTrip(authed)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if lerr := t.Session.Logout(); lerr != nil {
			t.Session.logger.Error("failed to clear session after 401", "error", lerr)
		}
		return nil, fmt.Errorf("%w: %s %s", ErrTokenExpired, req.Method, req.URL.Path)
	}
	return resp, nil
}

// Client returns an [http.Client] that authenticates through the session.
func (s *Session) Client(base http.RoundTripper) *http.Client {
	return &http.Client{Transport: &Transport{Session: s, Base: base}}
}
