package auth

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/justestif/go-spotify-stats-tracker/internal/stats"
)

func TestTokenCache_SaveAndLoad(t *testing.T) {
	tests := []struct {
		name  string
		token *oauth2.Token
	}{
		{
			name: "basic token",
			token: &oauth2.Token{
				AccessToken:  "test-access-token",
				TokenType:    "Bearer",
				RefreshToken: "test-refresh-token",
				Expiry:       time.Now().Add(time.Hour),
			},
		},
		{
			name: "token without refresh",
			token: &oauth2.Token{
				AccessToken: "access-only",
				TokenType:   "Bearer",
				Expiry:      time.Now().Add(30 * time.Minute),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewTokenCache(t.TempDir(), "alice")

			if err := cache.Save(tt.token); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			loaded, err := cache.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if loaded == nil {
				t.Fatal("Load() returned nil token")
			}

			if loaded.AccessToken != tt.token.AccessToken {
				t.Errorf("AccessToken = %q, want %q", loaded.AccessToken, tt.token.AccessToken)
			}
			if loaded.RefreshToken != tt.token.RefreshToken {
				t.Errorf("RefreshToken = %q, want %q", loaded.RefreshToken, tt.token.RefreshToken)
			}
			if loaded.TokenType != tt.token.TokenType {
				t.Errorf("TokenType = %q, want %q", loaded.TokenType, tt.token.TokenType)
			}
		})
	}
}

func TestTokenCache_PathPerUsername(t *testing.T) {
	dir := t.TempDir()
	cache := NewTokenCache(dir, "alice_smith")

	want := filepath.Join(dir, "alice_smith.json")
	if cache.Path() != want {
		t.Errorf("Path() = %q, want %q", cache.Path(), want)
	}
}

func TestTokenCache_LoadNonExistent(t *testing.T) {
	cache := NewTokenCache(filepath.Join(t.TempDir(), "nonexistent"), "alice")

	token, err := cache.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if token != nil {
		t.Errorf("Load() = %v, want nil for non-existent file", token)
	}
}

func TestTokenCache_SaveCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deeply")
	cache := NewTokenCache(dir, "alice")

	token := &oauth2.Token{AccessToken: "test-token", TokenType: "Bearer"}
	if err := cache.Save(token); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(cache.Path()); err != nil {
		t.Errorf("expected token file at %s: %v", cache.Path(), err)
	}
}

func TestTokenCache_Delete(t *testing.T) {
	cache := NewTokenCache(t.TempDir(), "alice")
	if err := cache.Save(&oauth2.Token{AccessToken: "x", TokenType: "Bearer"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := cache.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := cache.Delete(); err != nil {
		t.Errorf("Delete() on missing file error = %v, want nil", err)
	}
}

func TestSessionToken_MissingCacheIsAuthRequired(t *testing.T) {
	provider, err := NewProvider("id", "secret", t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	_, err = provider.Session("alice").Token(context.Background())
	if !errors.Is(err, stats.ErrAuthRequired) {
		t.Errorf("Token() error = %v, want ErrAuthRequired", err)
	}
}

func TestNewProvider_MissingCredentials(t *testing.T) {
	if _, err := NewProvider("", "secret", t.TempDir(), zerolog.Nop()); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("error = %v, want ErrMissingCredentials", err)
	}
	if _, err := NewProvider("id", "", t.TempDir(), zerolog.Nop()); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("error = %v, want ErrMissingCredentials", err)
	}
}

func TestClassifyTokenError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		authRequired bool
	}{
		{
			name: "invalid grant",
			err: &oauth2.RetrieveError{
				ErrorCode: "invalid_grant",
			},
			authRequired: true,
		},
		{
			name: "client error status",
			err: &oauth2.RetrieveError{
				Response: &http.Response{StatusCode: http.StatusForbidden},
			},
			authRequired: true,
		},
		{
			name: "server error status",
			err: &oauth2.RetrieveError{
				Response: &http.Response{StatusCode: http.StatusBadGateway},
			},
			authRequired: false,
		},
		{
			name:         "transport failure",
			err:          errors.New("connection refused"),
			authRequired: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyTokenError(tt.err)
			if errors.Is(got, stats.ErrAuthRequired) != tt.authRequired {
				t.Errorf("classifyTokenError(%v) = %v, authRequired want %v", tt.err, got, tt.authRequired)
			}
		})
	}
}
