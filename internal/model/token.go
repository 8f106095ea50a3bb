package model

import (
	"strings"
	"time"
)

// Expiry buffer and refresh-failure threshold for provider tokens.
const (
	TokenExpiryBuffer  = 5 * time.Minute
	MaxRefreshFailures = 5
)

// MusicToken holds a user's credentials for one music provider.
// AccessToken and RefreshToken are ciphertext; only the credential vault
// decrypts them, and only at the moment of an external call. Unique per
// (user, provider). Revocation is logical so the row stays auditable.
type MusicToken struct {
	ID                  string     `json:"id" gorm:"primaryKey"`
	UserID              string     `json:"userId" gorm:"not null;uniqueIndex:ux_music_tokens_user_provider,priority:1"`
	Provider            string     `json:"provider" gorm:"not null;uniqueIndex:ux_music_tokens_user_provider,priority:2"`
	AccessToken         string     `json:"-" gorm:"not null"`
	RefreshToken        *string    `json:"-"`
	ExpiresAt           time.Time  `json:"expiresAt"`
	Scopes              string     `json:"scopes"`
	ProviderMetadata    string     `json:"providerMetadata,omitempty"`
	IsRevoked           bool       `json:"isRevoked" gorm:"default:false"`
	RefreshFailureCount int        `json:"refreshFailureCount" gorm:"default:0"`
	LastRefreshAt       *time.Time `json:"lastRefreshAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// IsExpired applies the safety buffer so dependent calls never race an
// imminent expiry.
func (t *MusicToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt.Add(-TokenExpiryBuffer))
}

// CanRefresh reports whether a refresh attempt is allowed. A whitespace-only
// refresh token counts as absent.
func (t *MusicToken) CanRefresh() bool {
	if t.IsRevoked || t.RefreshFailureCount >= MaxRefreshFailures {
		return false
	}
	return t.RefreshToken != nil && strings.TrimSpace(*t.RefreshToken) != ""
}
