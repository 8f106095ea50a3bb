package client

import (
	"context"
	"errors"
)

// Track is a catalog track as the engine sees it.
type Track struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Artists  []string `json:"artists"`
	Explicit bool     `json:"explicit"`
}

// Artist returns the primary artist name, or "" when unknown.
func (t Track) Artist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// Playlist is a catalog playlist summary.
type Playlist struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OwnerID    string `json:"ownerId"`
	TrackCount int    `json:"trackCount"`
}

// Catalog is the external music provider port. Implementations receive a
// plaintext access token per call; they never hold credentials.
type Catalog interface {
	ListPlaylists(ctx context.Context, accessToken string) ([]Playlist, error)
	GetPlaylist(ctx context.Context, accessToken, playlistID string) (*Playlist, error)
	ListTracks(ctx context.Context, accessToken, playlistID string) ([]Track, error)
	SearchTracks(ctx context.Context, accessToken, query string, limit int) ([]Track, error)
	CreatePlaylist(ctx context.Context, accessToken, name, description string) (string, error)
	AddTracks(ctx context.Context, accessToken, playlistID string, trackIDs []string) error
	RemoveTracks(ctx context.Context, accessToken, playlistID string, trackIDs []string) error
}

// Matcher is the track-matching port: zero or one clean candidate per
// explicit source track. A nil result with nil error means no match.
type Matcher interface {
	FindCleanAlternative(ctx context.Context, accessToken string, track Track) (*Track, error)
}

// TokenRefresher exchanges a refresh token at the provider's token endpoint.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// TokenResponse is the provider token endpoint's reply. RefreshToken may be
// empty when the provider does not rotate it.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// TransientError marks provider failures that are worth retrying
// (rate limits, timeouts, 5xx).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
