package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/justestif/go-spotify-stats-tracker/internal/stats"
)

// redirectURI uses explicit IPv4 loopback as required by Spotify for local
// development.
const redirectURI = "http://127.0.0.1:8080/callback"

// ErrMissingCredentials is returned when SPOTIFY_ID or SPOTIFY_SECRET is not
// set.
var ErrMissingCredentials = errors.New("missing SPOTIFY_ID or SPOTIFY_SECRET environment variable")

// scopes covers every bucket fetch plus playback state.
var scopes = []string{
	spotifyauth.ScopeUserReadCurrentlyPlaying,
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserReadRecentlyPlayed,
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopeUserFollowRead,
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
}

// Provider builds per-account sessions from one Spotify application's
// credentials.
type Provider struct {
	conf     *oauth2.Config
	tokenDir string
	log      zerolog.Logger
}

// NewProvider assembles the OAuth config against Spotify's endpoints.
// Returns ErrMissingCredentials when either credential is empty.
func NewProvider(clientID, clientSecret, tokenDir string, logger zerolog.Logger) (*Provider, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrMissingCredentials
	}
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}
	return &Provider{conf: conf, tokenDir: tokenDir, log: logger}, nil
}

// Session returns the token session for one account. The username is
// expected to be sanitized already.
func (p *Provider) Session(username string) *Session {
	return &Session{
		conf:  p.conf,
		cache: NewTokenCache(p.tokenDir, username),
		log:   p.log.With().Str("username", username).Logger(),
	}
}

// Session yields valid bearer tokens for one account, refreshing and
// persisting the cached token as it rotates.
type Session struct {
	conf  *oauth2.Config
	cache *TokenCache
	log   zerolog.Logger

	mu sync.Mutex
}

var _ stats.TokenSource = (*Session)(nil)

// Token returns a currently valid access token. A missing cache file or a
// rejected refresh token maps to stats.ErrAuthRequired; transport failures
// against the token endpoint are returned as-is and treated as transient by
// the caller.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, err := s.cache.Load()
	if err != nil {
		return "", err
	}
	if cached == nil {
		return "", fmt.Errorf("%w: no cached token at %s (run login first)", stats.ErrAuthRequired, s.cache.Path())
	}

	fresh, err := s.conf.TokenSource(ctx, cached).Token()
	if err != nil {
		return "", classifyTokenError(err)
	}

	if fresh.AccessToken != cached.AccessToken {
		if err := s.cache.Save(fresh); err != nil {
			s.log.Warn().Err(err).Msg("failed to persist rotated token")
		}
	}
	return fresh.AccessToken, nil
}

// classifyTokenError maps token-endpoint rejections (revoked consent,
// rotated credentials) to stats.ErrAuthRequired. Anything else stays
// transient.
func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" ||
			(retrieveErr.Response != nil &&
				retrieveErr.Response.StatusCode >= http.StatusBadRequest &&
				retrieveErr.Response.StatusCode < http.StatusInternalServerError) {
			return fmt.Errorf("%w: %w", stats.ErrAuthRequired, err)
		}
	}
	return fmt.Errorf("refreshing token: %w", err)
}
