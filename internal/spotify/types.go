// Spotify Web API response types based on https://developer.spotify.com/documentation/web-api/reference/
package spotify

type followers struct {
	Total int `json:"total"`
}

// User is the current user's profile.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Country     string    `json:"country"`
	Product     string    `json:"product"` // premium, free, etc.
	Followers   followers `json:"followers"`
	Images      []Image   `json:"images"`
}

type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

type Track struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Artists     []Artist    `json:"artists"`
	Album       Album       `json:"album"`
	DurationMS  int         `json:"duration_ms"`
	Explicit    bool        `json:"explicit"`
	IsLocal     bool        `json:"is_local"`
	ExternalIDs externalIDs `json:"external_ids"`
	Popularity  int         `json:"popularity"`
	URI         string      `json:"uri"`
}

// ArtistNames returns the credited artists in order.
func (t Track) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}

type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type Album struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ReleaseDate string  `json:"release_date"`
	TotalTracks int     `json:"total_tracks"`
	Images      []Image `json:"images"`
	URI         string  `json:"uri"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type trackCount struct {
	Total int `json:"total"`
}

// Playlist is the simplified playlist object returned in listings.
type Playlist struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Owner         Owner      `json:"owner"`
	Public        bool       `json:"public"`
	Collaborative bool       `json:"collaborative"`
	Tracks        trackCount `json:"tracks"`
	Images        []Image    `json:"images"`
	URI           string     `json:"uri"`
}

// playlistItem wraps a track within a playlist. Track is null for unavailable items.
type playlistItem struct {
	AddedAt string `json:"added_at"`
	Track   *Track `json:"track"`
}

// page is Spotify's paging object. Next is null on the last page.
type page[T any] struct {
	Items    []T     `json:"items"`
	Total    int     `json:"total"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// AudioFeatures holds the audio analysis summary of a track.
type AudioFeatures struct {
	ID               string  `json:"id"`
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Instrumentalness float64 `json:"instrumentalness"`
	Key              int     `json:"key"`
	Liveness         float64 `json:"liveness"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Tempo            float64 `json:"tempo"`
	TimeSignature    int     `json:"time_signature"`
	Valence          float64 `json:"valence"`
	DurationMS       int     `json:"duration_ms"`
}

type apiErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}
