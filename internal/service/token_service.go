package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cleanlists/api/internal/client"
	"github.com/cleanlists/api/internal/crypto"
	"github.com/cleanlists/api/internal/model"
	"github.com/cleanlists/api/internal/repository"
)

var (
	ErrTokenNotFound = errors.New("token not found")
	// ErrCredential means the stored credentials cannot produce a usable
	// access token; the user has to reconnect the provider.
	ErrCredential = errors.New("credential error: provider reconnection required")
)

// TokenService is the credential vault. Tokens are encrypted before they
// reach the repository and decrypted only at the moment of external use.
type TokenService struct {
	repo      *repository.TokenRepository
	cipher    *crypto.Cipher
	refresher client.TokenRefresher
}

func NewTokenService(repo *repository.TokenRepository, cipher *crypto.Cipher, refresher client.TokenRefresher) *TokenService {
	return &TokenService{repo: repo, cipher: cipher, refresher: refresher}
}

// Store encrypts and persists a fresh token pair, replacing any previous
// connection for (user, provider). A full store resets the refresh-failure
// counter and revocation flag.
func (s *TokenService) Store(ctx context.Context, userID, provider, accessToken, refreshToken string, ttlSeconds int, scopes, metadata string) (*model.MusicToken, error) {
	encryptedAccess, err := s.cipher.Encrypt(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	var encryptedRefresh *string
	if refreshToken != "" {
		enc, err := s.cipher.Encrypt(refreshToken)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		encryptedRefresh = &enc
	}

	expiresAt := time.Now().Add(time.Duration(ttlSeconds) * time.Second)

	token, err := s.repo.FindByUserAndProvider(userID, provider)
	if err != nil {
		return nil, err
	}

	if token == nil {
		token = &model.MusicToken{
			UserID:           userID,
			Provider:         provider,
			AccessToken:      encryptedAccess,
			RefreshToken:     encryptedRefresh,
			ExpiresAt:        expiresAt,
			Scopes:           scopes,
			ProviderMetadata: metadata,
		}
		if err := s.repo.Create(token); err != nil {
			return nil, err
		}
		return token, nil
	}

	token.AccessToken = encryptedAccess
	token.RefreshToken = encryptedRefresh
	token.ExpiresAt = expiresAt
	token.Scopes = scopes
	token.ProviderMetadata = metadata
	token.IsRevoked = false
	token.RefreshFailureCount = 0
	if err := s.repo.Save(token); err != nil {
		return nil, err
	}
	return token, nil
}

// Get returns the stored token row (ciphertext fields included as-is).
func (s *TokenService) Get(ctx context.Context, userID, provider string) (*model.MusicToken, error) {
	token, err := s.repo.FindByUserAndProvider(userID, provider)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, ErrTokenNotFound
	}
	return token, nil
}

// IsValid reports whether a usable access token exists right now, without
// attempting a refresh.
func (s *TokenService) IsValid(ctx context.Context, userID, provider string) bool {
	token, err := s.repo.FindByUserAndProvider(userID, provider)
	if err != nil || token == nil {
		return false
	}
	return !token.IsRevoked && !token.IsExpired(time.Now())
}

// AccessToken returns a decrypted access token ready for an external call,
// refreshing first when the stored one is expired. A failed refresh is
// fatal only when no unexpired access token remains.
func (s *TokenService) AccessToken(ctx context.Context, userID, provider string) (string, error) {
	token, err := s.repo.FindByUserAndProvider(userID, provider)
	if err != nil {
		return "", err
	}
	if token == nil {
		return "", ErrTokenNotFound
	}
	if token.IsRevoked {
		return "", ErrCredential
	}

	if token.IsExpired(time.Now()) {
		if !token.CanRefresh() {
			return "", ErrCredential
		}
		if err := s.doRefresh(ctx, token); err != nil {
			return "", ErrCredential
		}
	}

	return s.cipher.Decrypt(token.AccessToken)
}

// Refresh exchanges the refresh token for new credentials. Success resets
// the failure counter; failure increments it and leaves the token alone.
func (s *TokenService) Refresh(ctx context.Context, userID, provider string) (bool, error) {
	token, err := s.repo.FindByUserAndProvider(userID, provider)
	if err != nil {
		return false, err
	}
	if token == nil {
		return false, ErrTokenNotFound
	}
	if !token.CanRefresh() {
		return false, nil
	}

	if err := s.doRefresh(ctx, token); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *TokenService) doRefresh(ctx context.Context, token *model.MusicToken) error {
	refreshPlain, err := s.cipher.Decrypt(*token.RefreshToken)
	if err != nil {
		return err
	}

	resp, err := s.refresher.RefreshToken(ctx, refreshPlain)
	if err != nil {
		token.RefreshFailureCount++
		if saveErr := s.repo.Save(token); saveErr != nil {
			log.Printf("[TokenService] failed to record refresh failure for user %s: %v", token.UserID, saveErr)
		}
		return err
	}

	encryptedAccess, err := s.cipher.Encrypt(resp.AccessToken)
	if err != nil {
		return err
	}
	token.AccessToken = encryptedAccess

	// Providers may rotate the refresh token; keep the old one otherwise.
	if resp.RefreshToken != "" {
		encryptedRefresh, err := s.cipher.Encrypt(resp.RefreshToken)
		if err != nil {
			return err
		}
		token.RefreshToken = &encryptedRefresh
	}

	now := time.Now()
	token.ExpiresAt = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	token.RefreshFailureCount = 0
	token.LastRefreshAt = &now
	if resp.Scope != "" {
		token.Scopes = resp.Scope
	}

	return s.repo.Save(token)
}

// Revoke logically deletes the connection; the row stays for auditability.
func (s *TokenService) Revoke(ctx context.Context, userID, provider string) error {
	token, err := s.repo.FindByUserAndProvider(userID, provider)
	if err != nil {
		return err
	}
	if token == nil {
		return ErrTokenNotFound
	}

	token.IsRevoked = true
	return s.repo.Save(token)
}
