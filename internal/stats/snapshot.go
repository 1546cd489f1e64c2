package stats

import "time"

// Snapshot is the complete set of current bucket values for one account.
// It is built once per refresh cycle and replaced wholesale; buckets not due
// for refresh carry the previous cycle's value. Snapshots are never mutated
// after being committed, so readers may hold one without locking.
type Snapshot struct {
	FetchedAt time.Time `json:"fetched_at"`

	NowPlaying      *NowPlayingRecord      `json:"now_playing"`
	RecentlyPlayed  *RecentlyPlayedRecord  `json:"recently_played"`
	FollowedArtists *FollowedArtistsRecord `json:"followed_artists"`

	TopArtists map[TimeWindow]*TopArtistsRecord `json:"top_artists"`
	TopTracks  map[TimeWindow]*TopTracksRecord  `json:"top_tracks"`

	Playlists   *PlaylistsRecord   `json:"user_playlists"`
	SavedTracks *SavedTracksRecord `json:"saved_tracks"`
	SavedAlbums *SavedAlbumsRecord `json:"saved_albums"`
}

// Bucket returns one bucket by its published name. The second return is
// false for unknown names or buckets that have not been fetched yet.
func (s *Snapshot) Bucket(name BucketName) (any, bool) {
	if s == nil {
		return nil, false
	}
	switch name {
	case BucketNowPlaying:
		return s.NowPlaying, s.NowPlaying != nil
	case BucketRecentlyPlayed:
		return s.RecentlyPlayed, s.RecentlyPlayed != nil
	case BucketFollowedArtists:
		return s.FollowedArtists, s.FollowedArtists != nil
	case BucketUserPlaylists:
		return s.Playlists, s.Playlists != nil
	case BucketSavedTracks:
		return s.SavedTracks, s.SavedTracks != nil
	case BucketSavedAlbums:
		return s.SavedAlbums, s.SavedAlbums != nil
	}
	for _, w := range Windows {
		if name == TopBucketName(KindArtists, w) {
			rec := s.TopArtists[w]
			return rec, rec != nil
		}
		if name == TopBucketName(KindTracks, w) {
			rec := s.TopTracks[w]
			return rec, rec != nil
		}
	}
	return nil, false
}

// BucketNames lists every bucket name a snapshot can carry.
func BucketNames() []BucketName {
	names := []BucketName{
		BucketNowPlaying,
		BucketRecentlyPlayed,
		BucketFollowedArtists,
	}
	for _, w := range Windows {
		names = append(names, TopBucketName(KindArtists, w))
	}
	for _, w := range Windows {
		names = append(names, TopBucketName(KindTracks, w))
	}
	return append(names,
		BucketUserPlaylists,
		BucketSavedTracks,
		BucketSavedAlbums,
	)
}
