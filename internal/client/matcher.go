package client

import (
	"context"
	"fmt"
	"strings"
)

// SearchMatcher finds clean alternatives through the catalog's search
// endpoint: same title and artist, not flagged explicit, different track.
type SearchMatcher struct {
	catalog Catalog
	limit   int
}

func NewSearchMatcher(catalog Catalog) *SearchMatcher {
	return &SearchMatcher{catalog: catalog, limit: 10}
}

func (m *SearchMatcher) FindCleanAlternative(ctx context.Context, accessToken string, track Track) (*Track, error) {
	query := fmt.Sprintf("track:%q artist:%q", track.Name, track.Artist())

	candidates, err := m.catalog.SearchTracks(ctx, accessToken, query, m.limit)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		if candidate.Explicit || candidate.ID == track.ID {
			continue
		}
		if !strings.EqualFold(candidate.Name, track.Name) {
			continue
		}
		c := candidate
		return &c, nil
	}

	return nil, nil
}
