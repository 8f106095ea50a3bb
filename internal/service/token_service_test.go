package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cleanlists/api/internal/client"
	"github.com/cleanlists/api/internal/crypto"
	"github.com/cleanlists/api/internal/database"
	"github.com/cleanlists/api/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newTestCipher(t *testing.T) *crypto.Cipher {
	t.Helper()
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x42}, 32))
	cipher, err := crypto.NewCipher(key)
	if err != nil {
		t.Fatalf("failed to build test cipher: %v", err)
	}
	return cipher
}

type fakeRefresher struct {
	resp       *client.TokenResponse
	err        error
	calls      int
	gotRefresh string
}

func (f *fakeRefresher) RefreshToken(ctx context.Context, refreshToken string) (*client.TokenResponse, error) {
	f.calls++
	f.gotRefresh = refreshToken
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func newTokenFixture(t *testing.T) (*TokenService, *repository.TokenRepository, *crypto.Cipher, *fakeRefresher) {
	t.Helper()
	db := newTestDB(t)
	repo := repository.NewTokenRepository(db)
	cipher := newTestCipher(t)
	refresher := &fakeRefresher{}
	return NewTokenService(repo, cipher, refresher), repo, cipher, refresher
}

func TestTokenService_StoreEncryptsAtRest(t *testing.T) {
	svc, repo, cipher, _ := newTokenFixture(t)
	ctx := context.Background()

	_, err := svc.Store(ctx, "u1", "spotify", "plain-access", "plain-refresh", 3600, "playlist-modify", "")
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	row, err := repo.FindByUserAndProvider("u1", "spotify")
	if err != nil || row == nil {
		t.Fatalf("stored token not found: %v", err)
	}
	if row.AccessToken == "plain-access" {
		t.Error("access token stored as plaintext")
	}
	if row.RefreshToken == nil || *row.RefreshToken == "plain-refresh" {
		t.Error("refresh token stored as plaintext")
	}

	access, err := cipher.Decrypt(row.AccessToken)
	if err != nil || access != "plain-access" {
		t.Errorf("decrypted access token = %q, %v", access, err)
	}

	got, err := svc.AccessToken(ctx, "u1", "spotify")
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if got != "plain-access" {
		t.Errorf("AccessToken() = %q, want plain-access", got)
	}
}

func TestTokenService_AccessTokenRefreshesExpired(t *testing.T) {
	svc, repo, cipher, refresher := newTokenFixture(t)
	ctx := context.Background()

	// 60s ttl is inside the expiry buffer, so the token counts as expired.
	if _, err := svc.Store(ctx, "u1", "spotify", "old-access", "refresh-1", 60, "", ""); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	refresher.resp = &client.TokenResponse{AccessToken: "new-access", ExpiresIn: 3600}

	got, err := svc.AccessToken(ctx, "u1", "spotify")
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if got != "new-access" {
		t.Errorf("AccessToken() = %q, want new-access", got)
	}
	if refresher.calls != 1 {
		t.Errorf("refresher calls = %d, want 1", refresher.calls)
	}
	if refresher.gotRefresh != "refresh-1" {
		t.Errorf("refresher received %q, want refresh-1", refresher.gotRefresh)
	}

	row, _ := repo.FindByUserAndProvider("u1", "spotify")
	if row.RefreshFailureCount != 0 {
		t.Errorf("failure count = %d after successful refresh", row.RefreshFailureCount)
	}
	if row.LastRefreshAt == nil {
		t.Error("LastRefreshAt not recorded")
	}
	// Provider did not rotate the refresh token; the old one must survive.
	refresh, err := cipher.Decrypt(*row.RefreshToken)
	if err != nil || refresh != "refresh-1" {
		t.Errorf("stored refresh token = %q, %v, want refresh-1", refresh, err)
	}
}

func TestTokenService_AccessTokenSkipsRefreshWhenValid(t *testing.T) {
	svc, _, _, refresher := newTokenFixture(t)
	ctx := context.Background()

	if _, err := svc.Store(ctx, "u1", "spotify", "fresh-access", "refresh-1", 3600, "", ""); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	refresher.err = errors.New("token endpoint down")

	got, err := svc.AccessToken(ctx, "u1", "spotify")
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if got != "fresh-access" {
		t.Errorf("AccessToken() = %q, want fresh-access", got)
	}
	if refresher.calls != 0 {
		t.Errorf("refresher calls = %d, want 0", refresher.calls)
	}
}

func TestTokenService_RefreshRotation(t *testing.T) {
	svc, repo, cipher, refresher := newTokenFixture(t)
	ctx := context.Background()

	if _, err := svc.Store(ctx, "u1", "spotify", "old-access", "refresh-1", 60, "", ""); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	refresher.resp = &client.TokenResponse{AccessToken: "new-access", RefreshToken: "refresh-2", ExpiresIn: 3600}

	ok, err := svc.Refresh(ctx, "u1", "spotify")
	if err != nil || !ok {
		t.Fatalf("Refresh() = %v, %v, want true, nil", ok, err)
	}

	row, _ := repo.FindByUserAndProvider("u1", "spotify")
	refresh, err := cipher.Decrypt(*row.RefreshToken)
	if err != nil || refresh != "refresh-2" {
		t.Errorf("stored refresh token = %q, %v, want refresh-2", refresh, err)
	}
}

func TestTokenService_RefreshFailureIncrementsCount(t *testing.T) {
	svc, repo, _, refresher := newTokenFixture(t)
	ctx := context.Background()

	if _, err := svc.Store(ctx, "u1", "spotify", "old-access", "refresh-1", 60, "", ""); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	refresher.err = errors.New("invalid_grant")

	ok, err := svc.Refresh(ctx, "u1", "spotify")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if ok {
		t.Error("Refresh() = true on provider failure")
	}

	row, _ := repo.FindByUserAndProvider("u1", "spotify")
	if row.RefreshFailureCount != 1 {
		t.Errorf("failure count = %d, want 1", row.RefreshFailureCount)
	}
}

func TestTokenService_FailureThresholdBlocksRefresh(t *testing.T) {
	svc, repo, _, refresher := newTokenFixture(t)
	ctx := context.Background()

	if _, err := svc.Store(ctx, "u1", "spotify", "old-access", "refresh-1", 60, "", ""); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	row, _ := repo.FindByUserAndProvider("u1", "spotify")
	row.RefreshFailureCount = 5
	if err := repo.Save(row); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := svc.AccessToken(ctx, "u1", "spotify"); !errors.Is(err, ErrCredential) {
		t.Errorf("AccessToken() error = %v, want ErrCredential", err)
	}
	if refresher.calls != 0 {
		t.Errorf("refresher calls = %d, want 0 past the failure threshold", refresher.calls)
	}

	// A fresh Store must clear the failure state.
	if _, err := svc.Store(ctx, "u1", "spotify", "new-access", "refresh-2", 3600, "", ""); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	row, _ = repo.FindByUserAndProvider("u1", "spotify")
	if row.RefreshFailureCount != 0 || row.IsRevoked {
		t.Errorf("Store() did not reset failure state: count=%d revoked=%v", row.RefreshFailureCount, row.IsRevoked)
	}
}

func TestTokenService_ExpiredWithoutRefreshToken(t *testing.T) {
	svc, _, _, _ := newTokenFixture(t)
	ctx := context.Background()

	if _, err := svc.Store(ctx, "u1", "spotify", "old-access", "", 60, "", ""); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if _, err := svc.AccessToken(ctx, "u1", "spotify"); !errors.Is(err, ErrCredential) {
		t.Errorf("AccessToken() error = %v, want ErrCredential", err)
	}
}

func TestTokenService_Revoke(t *testing.T) {
	svc, _, _, _ := newTokenFixture(t)
	ctx := context.Background()

	if _, err := svc.Store(ctx, "u1", "spotify", "access", "refresh-1", 3600, "", ""); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := svc.Revoke(ctx, "u1", "spotify"); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	if svc.IsValid(ctx, "u1", "spotify") {
		t.Error("IsValid() = true after revoke")
	}
	if _, err := svc.AccessToken(ctx, "u1", "spotify"); !errors.Is(err, ErrCredential) {
		t.Errorf("AccessToken() error = %v, want ErrCredential", err)
	}

	// The row stays for auditability.
	row, err := svc.Get(ctx, "u1", "spotify")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !row.IsRevoked {
		t.Error("revoked token row not flagged")
	}
}

func TestTokenService_NotFound(t *testing.T) {
	svc, _, _, _ := newTokenFixture(t)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "ghost", "spotify"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Get() error = %v, want ErrTokenNotFound", err)
	}
	if err := svc.Revoke(ctx, "ghost", "spotify"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Revoke() error = %v, want ErrTokenNotFound", err)
	}
	if svc.IsValid(ctx, "ghost", "spotify") {
		t.Error("IsValid() = true for missing token")
	}
}

func TestTokenService_ExpiryBuffer(t *testing.T) {
	svc, _, _, _ := newTokenFixture(t)
	ctx := context.Background()

	// Three minutes out: already expired thanks to the five-minute buffer.
	if _, err := svc.Store(ctx, "u1", "spotify", "access", "", 180, "", ""); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if svc.IsValid(ctx, "u1", "spotify") {
		t.Error("IsValid() = true for token expiring within the buffer")
	}

	// Ten minutes out: still valid.
	if _, err := svc.Store(ctx, "u2", "spotify", "access", "", 600, "", ""); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if !svc.IsValid(ctx, "u2", "spotify") {
		t.Error("IsValid() = false for token expiring beyond the buffer")
	}
}
