package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cleanlists/api/internal/config"
)

// SpotifyClient implements Catalog and TokenRefresher against the Spotify
// Web API. Tokens are passed per call, never stored on the client.
type SpotifyClient struct {
	clientID     string
	clientSecret string
	tokenURL     string
	baseURL      string
	httpClient   *http.Client
}

func NewSpotifyClient(cfg config.ProviderConfig) *SpotifyClient {
	return &SpotifyClient{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		tokenURL:     cfg.TokenURL,
		baseURL:      cfg.APIBaseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

type spotifyArtist struct {
	Name string `json:"name"`
}

type spotifyTrack struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Explicit bool            `json:"explicit"`
	Artists  []spotifyArtist `json:"artists"`
}

type spotifyPlaylist struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Owner struct {
		ID string `json:"id"`
	} `json:"owner"`
	Tracks struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

type spotifyPlaylistPage struct {
	Items []spotifyPlaylist `json:"items"`
	Next  string            `json:"next"`
}

type spotifyTrackPage struct {
	Items []struct {
		Track spotifyTrack `json:"track"`
	} `json:"items"`
	Next string `json:"next"`
}

func toTrack(t spotifyTrack) Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return Track{ID: t.ID, Name: t.Name, Artists: artists, Explicit: t.Explicit}
}

// doRequest performs an authenticated JSON request against the Web API.
func (s *SpotifyClient) doRequest(ctx context.Context, accessToken, method, endpoint string, body, result interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &TransientError{Err: fmt.Errorf("spotify request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &TransientError{Err: fmt.Errorf("spotify API error: status %d", resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("spotify API error: status %d", resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (s *SpotifyClient) ListPlaylists(ctx context.Context, accessToken string) ([]Playlist, error) {
	var playlists []Playlist
	endpoint := "/me/playlists?limit=50"

	for endpoint != "" {
		var page spotifyPlaylistPage
		if err := s.doRequest(ctx, accessToken, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}
		for _, p := range page.Items {
			playlists = append(playlists, Playlist{
				ID:         p.ID,
				Name:       p.Name,
				OwnerID:    p.Owner.ID,
				TrackCount: p.Tracks.Total,
			})
		}
		endpoint = strings.TrimPrefix(page.Next, s.baseURL)
		if page.Next == "" {
			endpoint = ""
		}
	}

	return playlists, nil
}

func (s *SpotifyClient) GetPlaylist(ctx context.Context, accessToken, playlistID string) (*Playlist, error) {
	var p spotifyPlaylist
	endpoint := fmt.Sprintf("/playlists/%s?fields=id,name,owner(id),tracks(total)", playlistID)
	if err := s.doRequest(ctx, accessToken, http.MethodGet, endpoint, nil, &p); err != nil {
		return nil, err
	}
	return &Playlist{ID: p.ID, Name: p.Name, OwnerID: p.Owner.ID, TrackCount: p.Tracks.Total}, nil
}

func (s *SpotifyClient) ListTracks(ctx context.Context, accessToken, playlistID string) ([]Track, error) {
	var tracks []Track
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=100", playlistID)

	for endpoint != "" {
		var page spotifyTrackPage
		if err := s.doRequest(ctx, accessToken, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if item.Track.ID == "" {
				continue // local or removed tracks have no catalog id
			}
			tracks = append(tracks, toTrack(item.Track))
		}
		endpoint = strings.TrimPrefix(page.Next, s.baseURL)
		if page.Next == "" {
			endpoint = ""
		}
	}

	return tracks, nil
}

func (s *SpotifyClient) SearchTracks(ctx context.Context, accessToken, query string, limit int) ([]Track, error) {
	var response struct {
		Tracks struct {
			Items []spotifyTrack `json:"items"`
		} `json:"tracks"`
	}

	endpoint := fmt.Sprintf("/search?type=track&limit=%d&q=%s", limit, url.QueryEscape(query))
	if err := s.doRequest(ctx, accessToken, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(response.Tracks.Items))
	for _, t := range response.Tracks.Items {
		tracks = append(tracks, toTrack(t))
	}
	return tracks, nil
}

func (s *SpotifyClient) CreatePlaylist(ctx context.Context, accessToken, name, description string) (string, error) {
	var me struct {
		ID string `json:"id"`
	}
	if err := s.doRequest(ctx, accessToken, http.MethodGet, "/me", nil, &me); err != nil {
		return "", err
	}

	body := map[string]interface{}{
		"name":        name,
		"description": description,
		"public":      false,
	}

	var created struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("/users/%s/playlists", me.ID)
	if err := s.doRequest(ctx, accessToken, http.MethodPost, endpoint, body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (s *SpotifyClient) AddTracks(ctx context.Context, accessToken, playlistID string, trackIDs []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)

	for _, chunk := range chunkIDs(trackIDs, 100) {
		body := map[string]interface{}{"uris": toURIs(chunk)}
		if err := s.doRequest(ctx, accessToken, http.MethodPost, endpoint, body, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *SpotifyClient) RemoveTracks(ctx context.Context, accessToken, playlistID string, trackIDs []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)

	for _, chunk := range chunkIDs(trackIDs, 100) {
		tracks := make([]map[string]string, 0, len(chunk))
		for _, uri := range toURIs(chunk) {
			tracks = append(tracks, map[string]string{"uri": uri})
		}
		body := map[string]interface{}{"tracks": tracks}
		if err := s.doRequest(ctx, accessToken, http.MethodDelete, endpoint, body, nil); err != nil {
			return err
		}
	}
	return nil
}

// RefreshToken exchanges a refresh token at the accounts endpoint.
func (s *SpotifyClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.clientID, s.clientSecret)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("token refresh request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token refresh error: status %d", resp.StatusCode)
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	return &token, nil
}

func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

func toURIs(ids []string) []string {
	uris := make([]string, 0, len(ids))
	for _, id := range ids {
		uris = append(uris, "spotify:track:"+id)
	}
	return uris
}
