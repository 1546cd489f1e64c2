// Package stats holds the normalized Spotify data buckets and the per-account
// refresh coordinator that keeps them current.
package stats

import "time"

// DisplayLimit is the maximum number of items a bucket exposes to the
// presentation layer. Full lists are retained separately for exports.
const DisplayLimit = 20

// BucketName identifies one category of fetched data.
type BucketName string

// Bucket names, matching the sensor keys the host publishes.
const (
	BucketNowPlaying      BucketName = "now_playing"
	BucketRecentlyPlayed  BucketName = "recently_played"
	BucketFollowedArtists BucketName = "followed_artists"
	BucketUserPlaylists   BucketName = "user_playlists"
	BucketSavedTracks     BucketName = "saved_tracks"
	BucketSavedAlbums     BucketName = "saved_albums"
)

// TopBucketName returns the bucket name for one (entity kind, window) pair,
// e.g. "top_artists_4weeks".
func TopBucketName(kind EntityKind, window TimeWindow) BucketName {
	return BucketName("top_" + string(kind) + "_" + string(window))
}

// EntityKind distinguishes top-stats entity kinds.
type EntityKind string

// Top-stats entity kinds.
const (
	KindArtists EntityKind = "artists"
	KindTracks  EntityKind = "tracks"
)

// TimeWindow is one of Spotify's three top-stats time ranges.
type TimeWindow string

// Top-stats time windows.
const (
	WindowFourWeeks TimeWindow = "4weeks"
	WindowSixMonths TimeWindow = "6months"
	WindowAllTime   TimeWindow = "alltime"
)

// Windows lists all time windows in fetch order.
var Windows = []TimeWindow{WindowFourWeeks, WindowSixMonths, WindowAllTime}

// PlaybackState describes the player state in the now-playing bucket.
type PlaybackState string

// Playback states.
const (
	StateIdle    PlaybackState = "idle"
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
)

// NowPlayingRecord is the current playback state. Recomputed every cycle.
type NowPlayingRecord struct {
	State      PlaybackState `json:"state"`
	TrackID    string        `json:"track_id,omitempty"`
	TrackName  string        `json:"track_name,omitempty"`
	ArtistID   string        `json:"artist_id,omitempty"`
	ArtistName string        `json:"artist_name,omitempty"`
	AlbumID    string        `json:"album_id,omitempty"`
	AlbumName  string        `json:"album_name,omitempty"`
	ImageURL   string        `json:"image_url,omitempty"`
	TrackURL   string        `json:"track_url,omitempty"`
	DurationMS int           `json:"duration_ms,omitempty"`
	ProgressMS int           `json:"progress_ms,omitempty"`
	Popularity int           `json:"popularity,omitempty"`
	Shuffle    bool          `json:"shuffle_state,omitempty"`
	Repeat     string        `json:"repeat_state,omitempty"`
}

// PlayEvent is one entry in the recently-played history.
type PlayEvent struct {
	PlayedAt   time.Time `json:"played_at"`
	TrackID    string    `json:"track_id"`
	TrackName  string    `json:"track_name"`
	ArtistID   string    `json:"artist_id"`
	ArtistName string    `json:"artist_name"`
	AlbumID    string    `json:"album_id"`
	AlbumName  string    `json:"album_name"`
	TrackURL   string    `json:"track_url"`
	DurationMS int       `json:"duration_ms"`
	Popularity int       `json:"popularity"`
	Explicit   bool      `json:"explicit"`
}

// RecentlyPlayedRecord holds the last play events, most recent first.
type RecentlyPlayedRecord struct {
	Count      int         `json:"count"`
	Tracks     []PlayEvent `json:"tracks"`
	LastPlayed time.Time   `json:"last_played"`
}

// NewRecentlyPlayedRecord builds the record from normalized events
// (already ordered most recent first).
func NewRecentlyPlayedRecord(events []PlayEvent) *RecentlyPlayedRecord {
	rec := &RecentlyPlayedRecord{Count: len(events), Tracks: events}
	if len(events) > 0 {
		rec.LastPlayed = events[0].PlayedAt
	}
	return rec
}

// Artist is a normalized followed artist.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	ImageURL   string   `json:"image,omitempty"`
	Genres     []string `json:"genres,omitempty"`
	Popularity int      `json:"popularity"`
}

// FollowedArtistsRecord holds the complete followed-artist list. The Display
// slice is a prefix of All; Count always reflects the full list.
type FollowedArtistsRecord struct {
	Count   int      `json:"count"`
	Display []Artist `json:"artists"`
	All     []Artist `json:"-"`
}

// NewFollowedArtistsRecord builds the record from the full fetched list.
func NewFollowedArtistsRecord(all []Artist) *FollowedArtistsRecord {
	return &FollowedArtistsRecord{
		Count:   len(all),
		Display: all[:min(DisplayLimit, len(all))],
		All:     all,
	}
}

// TopArtist is one ranked entry in a top-artists window.
type TopArtist struct {
	Rank       int      `json:"rank"`
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Genres     []string `json:"genres,omitempty"`
	Popularity int      `json:"popularity"`
}

// TopArtistsRecord is the ranked top-artists list for one time window.
type TopArtistsRecord struct {
	Window  TimeWindow  `json:"period"`
	Count   int         `json:"count"`
	Artists []TopArtist `json:"artists"`
}

// NewTopArtistsRecord assigns 1-based ranks following the fetched order.
func NewTopArtistsRecord(window TimeWindow, artists []TopArtist) *TopArtistsRecord {
	for i := range artists {
		artists[i].Rank = i + 1
	}
	return &TopArtistsRecord{Window: window, Count: len(artists), Artists: artists}
}

// TopTrack is one ranked entry in a top-tracks window.
type TopTrack struct {
	Rank       int    `json:"rank"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	ArtistID   string `json:"artist_id"`
	ArtistName string `json:"artist_name"`
	AlbumName  string `json:"album_name"`
	URL        string `json:"url"`
	Popularity int    `json:"popularity"`
}

// TopTracksRecord is the ranked top-tracks list for one time window.
type TopTracksRecord struct {
	Window TimeWindow `json:"period"`
	Count  int        `json:"count"`
	Tracks []TopTrack `json:"tracks"`
}

// NewTopTracksRecord assigns 1-based ranks following the fetched order.
func NewTopTracksRecord(window TimeWindow, tracks []TopTrack) *TopTracksRecord {
	for i := range tracks {
		tracks[i].Rank = i + 1
	}
	return &TopTracksRecord{Window: window, Count: len(tracks), Tracks: tracks}
}

// Playlist is a normalized playlist summary.
type Playlist struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	URL           string `json:"url"`
	URI           string `json:"uri"`
	Owner         string `json:"owner"`
	OwnerID       string `json:"owner_id"`
	TracksTotal   int    `json:"tracks_total"`
	Public        bool   `json:"public"`
	Collaborative bool   `json:"collaborative"`
}

// PlaylistsRecord holds the user's playlists. Display is a prefix of All.
type PlaylistsRecord struct {
	Count   int        `json:"count"`
	Display []Playlist `json:"playlists"`
	All     []Playlist `json:"-"`
}

// NewPlaylistsRecord builds the record from the full fetched list.
func NewPlaylistsRecord(all []Playlist) *PlaylistsRecord {
	return &PlaylistsRecord{
		Count:   len(all),
		Display: all[:min(DisplayLimit, len(all))],
		All:     all,
	}
}

// SavedTrack is one entry in the saved-tracks library.
type SavedTrack struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ArtistID   string    `json:"artist_id"`
	ArtistName string    `json:"artist_name"`
	AlbumID    string    `json:"album_id"`
	AlbumName  string    `json:"album_name"`
	URL        string    `json:"url"`
	URI        string    `json:"uri"`
	DurationMS int       `json:"duration_ms"`
	Popularity int       `json:"popularity"`
	AddedAt    time.Time `json:"added_at"`
}

// SavedTracksRecord holds the head of the saved-tracks library. Count comes
// from the remote pagination total, not from len(Display).
type SavedTracksRecord struct {
	Count   int          `json:"count"`
	Display []SavedTrack `json:"tracks"`
}

// NewSavedTracksRecord truncates the fetched head for display while keeping
// the remote total.
func NewSavedTracksRecord(total int, fetched []SavedTrack) *SavedTracksRecord {
	return &SavedTracksRecord{Count: total, Display: fetched[:min(DisplayLimit, len(fetched))]}
}

// SavedAlbum is one entry in the saved-albums library.
type SavedAlbum struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ArtistID    string    `json:"artist_id"`
	ArtistName  string    `json:"artist_name"`
	URL         string    `json:"url"`
	URI         string    `json:"uri"`
	TotalTracks int       `json:"total_tracks"`
	ReleaseDate string    `json:"release_date,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}

// SavedAlbumsRecord holds the head of the saved-albums library. Count comes
// from the remote pagination total.
type SavedAlbumsRecord struct {
	Count   int          `json:"count"`
	Display []SavedAlbum `json:"albums"`
}

// NewSavedAlbumsRecord truncates the fetched head for display while keeping
// the remote total.
func NewSavedAlbumsRecord(total int, fetched []SavedAlbum) *SavedAlbumsRecord {
	return &SavedAlbumsRecord{Count: total, Display: fetched[:min(DisplayLimit, len(fetched))]}
}
