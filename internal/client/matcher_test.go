package client

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type searchStub struct {
	results  []Track
	err      error
	gotQuery string
}

func (s *searchStub) ListPlaylists(ctx context.Context, accessToken string) ([]Playlist, error) {
	return nil, nil
}

func (s *searchStub) GetPlaylist(ctx context.Context, accessToken, playlistID string) (*Playlist, error) {
	return nil, nil
}

func (s *searchStub) ListTracks(ctx context.Context, accessToken, playlistID string) ([]Track, error) {
	return nil, nil
}

func (s *searchStub) SearchTracks(ctx context.Context, accessToken, query string, limit int) ([]Track, error) {
	s.gotQuery = query
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *searchStub) CreatePlaylist(ctx context.Context, accessToken, name, description string) (string, error) {
	return "", nil
}

func (s *searchStub) AddTracks(ctx context.Context, accessToken, playlistID string, trackIDs []string) error {
	return nil
}

func (s *searchStub) RemoveTracks(ctx context.Context, accessToken, playlistID string, trackIDs []string) error {
	return nil
}

func TestSearchMatcher_PicksFirstCleanCandidate(t *testing.T) {
	source := Track{ID: "t1", Name: "Loud Song", Artists: []string{"The Band"}, Explicit: true}
	// Candidates in search order: explicit, the source track itself, a
	// different title, then the first acceptable match (title compared
	// case-insensitively).
	stub := &searchStub{results: []Track{
		{ID: "x1", Name: "Loud Song", Explicit: true},
		{ID: "t1", Name: "Loud Song"},
		{ID: "x2", Name: "Loud Song (Live Bootleg Mix)"},
		{ID: "c1", Name: "LOUD SONG"},
		{ID: "c2", Name: "Loud Song"},
	}}

	match, err := NewSearchMatcher(stub).FindCleanAlternative(context.Background(), "token", source)
	if err != nil {
		t.Fatalf("FindCleanAlternative() error = %v", err)
	}
	if match == nil || match.ID != "c1" {
		t.Errorf("match = %+v, want c1", match)
	}

	if !strings.Contains(stub.gotQuery, `"Loud Song"`) || !strings.Contains(stub.gotQuery, `"The Band"`) {
		t.Errorf("search query = %q, want quoted title and artist", stub.gotQuery)
	}
}

func TestSearchMatcher_NoCandidate(t *testing.T) {
	source := Track{ID: "t1", Name: "Loud Song", Explicit: true}
	stub := &searchStub{results: []Track{
		{ID: "x1", Name: "Loud Song", Explicit: true},
		{ID: "x2", Name: "Different Song"},
	}}

	match, err := NewSearchMatcher(stub).FindCleanAlternative(context.Background(), "token", source)
	if err != nil {
		t.Fatalf("FindCleanAlternative() error = %v", err)
	}
	if match != nil {
		t.Errorf("match = %+v, want nil", match)
	}
}

func TestSearchMatcher_PropagatesSearchError(t *testing.T) {
	stub := &searchStub{err: &TransientError{Err: errors.New("429")}}

	_, err := NewSearchMatcher(stub).FindCleanAlternative(context.Background(), "token", Track{ID: "t1", Name: "Song"})
	if !IsTransient(err) {
		t.Errorf("error = %v, want transient search failure passed through", err)
	}
}

func TestTrack_Artist(t *testing.T) {
	if got := (Track{Artists: []string{"First", "Second"}}).Artist(); got != "First" {
		t.Errorf("Artist() = %q, want First", got)
	}
	if got := (Track{}).Artist(); got != "" {
		t.Errorf("Artist() = %q, want empty", got)
	}
}
