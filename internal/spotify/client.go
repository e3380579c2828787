package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/splitify/internal/shared"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.spotify.com/v1"

	playlistPageSize  = 50
	trackPageSize     = 100
	audioFeaturesSize = 100
)

// APIError is a non-2xx response from the Web API, carrying its error.message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("spotify API error: status %d", e.Status)
	}
	return fmt.Sprintf("spotify API error: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusServiceUnavailable || e.Status == http.StatusTooManyRequests {
		return shared.ErrServiceUnavailable
	}
	return shared.ErrAPIRequest
}

// Client reads playlists, tracks and audio features for the signed-in user.
//
// The supplied [http.Client] is expected to authenticate requests, e.g. via [auth.Session.Client].
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *log.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithRateLimit caps outgoing requests per second. Zero or less disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(httpClient *http.Client, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		baseURL:    DefaultBaseURL,
		limiter:    rate.NewLimiter(rate.Inf, 0),
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	return c
}

// doRequest performs a GET against endpoint, which is either a path under the base URL or an
// absolute URL taken from a paging object's next field.
func (c *Client) doRequest(ctx context.Context, endpoint string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = c.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("spotify request", "url", apiURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, shared.ErrTokenExpired) || errors.Is(err, shared.ErrNotAuthenticated) {
			return err
		}
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: status %d", shared.ErrTokenExpired, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var parsed apiErrorBody
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		apiErr.Message = parsed.Error.Message
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// CurrentUser retrieves the signed-in user's profile.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.doRequest(ctx, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Playlists retrieves every playlist owned or followed by the user, following pagination.
func (c *Client) Playlists(ctx context.Context) ([]Playlist, error) {
	var all []Playlist
	next := fmt.Sprintf("/me/playlists?limit=%d", playlistPageSize)

	for next != "" {
		var resp page[Playlist]
		if err := c.doRequest(ctx, next, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Items...)
		next = lo.FromPtr(resp.Next)
	}

	c.logger.Debugf("fetched %d playlists", len(all))
	return all, nil
}

// Playlist retrieves a single playlist's metadata.
func (c *Client) Playlist(ctx context.Context, playlistID string) (*Playlist, error) {
	if strings.TrimSpace(playlistID) == "" {
		return nil, fmt.Errorf("%w: playlist id is empty", shared.ErrInvalidInput)
	}

	var playlist Playlist
	if err := c.doRequest(ctx, "/playlists/"+url.PathEscape(playlistID), &playlist); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
		}
		return nil, err
	}
	return &playlist, nil
}

// PlaylistTracks retrieves every playable track of a playlist. Unavailable items, local files and
// tracks without an ID are skipped.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string) ([]Track, error) {
	if strings.TrimSpace(playlistID) == "" {
		return nil, fmt.Errorf("%w: playlist id is empty", shared.ErrInvalidInput)
	}

	var tracks []Track
	next := fmt.Sprintf("/playlists/%s/tracks?limit=%d", url.PathEscape(playlistID), trackPageSize)

	for next != "" {
		var resp page[playlistItem]
		if err := c.doRequest(ctx, next, &resp); err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
				return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
			}
			return nil, err
		}

		for _, item := range resp.Items {
			if item.Track == nil || item.Track.IsLocal || item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, *item.Track)
		}
		next = lo.FromPtr(resp.Next)
	}

	c.logger.Debugf("fetched %d tracks for playlist %s", len(tracks), playlistID)
	return tracks, nil
}

// AudioFeatures retrieves audio features for the given track IDs in batches of 100. Tracks without
// features are omitted from the result.
func (c *Client) AudioFeatures(ctx context.Context, ids []string) ([]AudioFeatures, error) {
	ids = lo.Compact(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	var features []AudioFeatures
	for _, batch := range lo.Chunk(ids, audioFeaturesSize) {
		var resp struct {
			AudioFeatures []*AudioFeatures `json:"audio_features"`
		}

		endpoint := "/audio-features?ids=" + url.QueryEscape(strings.Join(batch, ","))
		if err := c.doRequest(ctx, endpoint, &resp); err != nil {
			return nil, err
		}

		for _, f := range lo.Compact(resp.AudioFeatures) {
			features = append(features, *f)
		}
	}
	return features, nil
}

// TrackIDs collects the IDs of tracks, suitable for [Client.AudioFeatures].
func TrackIDs(tracks []Track) []string {
	return lo.Map(tracks, func(t Track, _ int) string { return t.ID })
}
