package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TokenSource supplies a valid bearer token for one account. Implementations
// must wrap credential-revocation failures with ErrAuthRequired so the
// coordinator can distinguish them from transient outages.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// API is the surface of the remote client one refresh cycle needs. One pure
// fetcher per bucket; fetchers share no state.
type API interface {
	NowPlaying(ctx context.Context) (*NowPlayingRecord, error)
	RecentlyPlayed(ctx context.Context) (*RecentlyPlayedRecord, error)
	FollowedArtists(ctx context.Context) (*FollowedArtistsRecord, error)
	TopArtists(ctx context.Context, window TimeWindow) (*TopArtistsRecord, error)
	TopTracks(ctx context.Context, window TimeWindow) (*TopTracksRecord, error)
	Playlists(ctx context.Context) (*PlaylistsRecord, error)
	SavedTracks(ctx context.Context) (*SavedTracksRecord, error)
	SavedAlbums(ctx context.Context) (*SavedAlbumsRecord, error)
}

// ClientFactory builds a remote client from a bearer token. The coordinator
// rebuilds the client at the start of every cycle because tokens expire
// independently of the polling cadence.
type ClientFactory func(accessToken string) API

// Coordinator owns one account's fetch cadence, cached snapshot, and failure
// classification. All buckets are fetched sequentially within a cycle; the
// merged snapshot is swapped in atomically so readers never observe a
// partially updated set.
type Coordinator struct {
	username  string
	tokens    TokenSource
	newClient ClientFactory
	now       func() time.Time
	log       zerolog.Logger

	mu           sync.RWMutex
	policy       RefreshPolicy
	snap         *Snapshot
	lastFollowed time.Time
	lastTopStats time.Time
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithClock overrides the wall-clock source. Used by tests to drive the
// staleness gates deterministically.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator creates a coordinator for one account.
func NewCoordinator(username string, tokens TokenSource, newClient ClientFactory, policy RefreshPolicy, logger zerolog.Logger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		username:  username,
		tokens:    tokens,
		newClient: newClient,
		now:       time.Now,
		policy:    policy,
		log:       logger.With().Str("username", username).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Username returns the account this coordinator polls for.
func (c *Coordinator) Username() string {
	return c.username
}

// TokenSource exposes the account's session provider so exports can open
// their own remote client without going through the refresh cycle.
func (c *Coordinator) TokenSource() TokenSource {
	return c.tokens
}

// Policy returns the current refresh policy.
func (c *Coordinator) Policy() RefreshPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.policy
}

// Snapshot returns the last committed snapshot, or nil before the first
// successful cycle. The returned snapshot is immutable.
func (c *Coordinator) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// SetUpdateInterval stores new polling intervals (zero leaves a value
// unchanged; bounds are the caller's responsibility) and returns the
// resulting scheduling tick period.
func (c *Coordinator) SetUpdateInterval(nowPlaying, recentlyPlayed time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if nowPlaying > 0 {
		c.policy.NowPlaying = nowPlaying
		c.log.Debug().Dur("interval", nowPlaying).Msg("updated now-playing interval")
	}
	if recentlyPlayed > 0 {
		c.policy.RecentlyPlayed = recentlyPlayed
		c.log.Debug().Dur("interval", recentlyPlayed).Msg("updated recently-played interval")
	}
	return c.policy.TickPeriod()
}

// Refresh runs one full cycle: re-derive the bearer token, rebuild the
// client, fetch every bucket that is due, merge with carried-forward values,
// and commit the new snapshot. On any failure the cycle is void: nothing is
// committed, the gate clocks do not advance, and the error is classified as
// ErrAuthRequired or ErrUpdateFailed.
func (c *Coordinator) Refresh(ctx context.Context) (*Snapshot, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("obtaining access token: %w", err))
	}
	api := c.newClient(token)

	c.mu.RLock()
	prev := c.snap
	lastFollowed := c.lastFollowed
	lastTopStats := c.lastTopStats
	c.mu.RUnlock()

	now := c.now()
	next := &Snapshot{FetchedAt: now}

	// Ungated buckets: always due.
	if next.NowPlaying, err = api.NowPlaying(ctx); err != nil {
		return nil, classify(fmt.Errorf("fetching now playing: %w", err))
	}
	if next.RecentlyPlayed, err = api.RecentlyPlayed(ctx); err != nil {
		return nil, classify(fmt.Errorf("fetching recently played: %w", err))
	}

	if c.followedDue(now, lastFollowed) {
		if next.FollowedArtists, err = api.FollowedArtists(ctx); err != nil {
			return nil, classify(fmt.Errorf("fetching followed artists: %w", err))
		}
		lastFollowed = now
	} else if prev != nil {
		next.FollowedArtists = prev.FollowedArtists
	}

	// The six top-stats records share one staleness clock: all or none.
	if c.topStatsDue(now, lastTopStats) {
		next.TopArtists = make(map[TimeWindow]*TopArtistsRecord, len(Windows))
		next.TopTracks = make(map[TimeWindow]*TopTracksRecord, len(Windows))
		for _, w := range Windows {
			if next.TopArtists[w], err = api.TopArtists(ctx, w); err != nil {
				return nil, classify(fmt.Errorf("fetching top artists (%s): %w", w, err))
			}
		}
		for _, w := range Windows {
			if next.TopTracks[w], err = api.TopTracks(ctx, w); err != nil {
				return nil, classify(fmt.Errorf("fetching top tracks (%s): %w", w, err))
			}
		}
		lastTopStats = now
	} else if prev != nil {
		next.TopArtists = prev.TopArtists
		next.TopTracks = prev.TopTracks
	}

	if next.Playlists, err = api.Playlists(ctx); err != nil {
		return nil, classify(fmt.Errorf("fetching playlists: %w", err))
	}
	if next.SavedTracks, err = api.SavedTracks(ctx); err != nil {
		return nil, classify(fmt.Errorf("fetching saved tracks: %w", err))
	}
	if next.SavedAlbums, err = api.SavedAlbums(ctx); err != nil {
		return nil, classify(fmt.Errorf("fetching saved albums: %w", err))
	}

	c.mu.Lock()
	c.snap = next
	c.lastFollowed = lastFollowed
	c.lastTopStats = lastTopStats
	c.mu.Unlock()

	c.log.Debug().
		Time("fetched_at", now).
		Bool("followed_refreshed", lastFollowed.Equal(now)).
		Bool("top_stats_refreshed", lastTopStats.Equal(now)).
		Msg("refresh cycle committed")
	return next, nil
}

func (c *Coordinator) followedDue(now, last time.Time) bool {
	return last.IsZero() || now.Sub(last) >= FollowedArtistsMaxAge
}

func (c *Coordinator) topStatsDue(now, last time.Time) bool {
	return last.IsZero() || now.Sub(last) >= TopStatsMaxAge
}
