package stats

import "time"

// Interval bounds and defaults for the reconfigurable buckets. The config
// layer and the host API enforce these; the coordinator trusts its callers.
const (
	DefaultNowPlayingInterval     = 30 * time.Second
	DefaultRecentlyPlayedInterval = 300 * time.Second

	MinNowPlayingInterval     = 30 * time.Second
	MaxNowPlayingInterval     = 300 * time.Second
	MinRecentlyPlayedInterval = 300 * time.Second
	MaxRecentlyPlayedInterval = 3600 * time.Second
)

// Fixed staleness gates. Not user-configurable.
const (
	FollowedArtistsMaxAge = time.Hour
	TopStatsMaxAge        = 24 * time.Hour
)

// RefreshPolicy holds one account's polling cadence. The now-playing and
// recently-played intervals are reconfigurable at runtime; the staleness
// gates for followed artists and top stats are fixed.
type RefreshPolicy struct {
	NowPlaying     time.Duration
	RecentlyPlayed time.Duration
}

// DefaultPolicy returns the default cadence.
func DefaultPolicy() RefreshPolicy {
	return RefreshPolicy{
		NowPlaying:     DefaultNowPlayingInterval,
		RecentlyPlayed: DefaultRecentlyPlayedInterval,
	}
}

// TickPeriod is the scheduling tick: the fastest-needed bucket drives how
// often the coordinator checks what is due.
func (p RefreshPolicy) TickPeriod() time.Duration {
	return min(p.NowPlaying, p.RecentlyPlayed)
}
