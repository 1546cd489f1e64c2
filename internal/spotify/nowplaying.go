package spotify

import (
	"context"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-spotify-stats-tracker/internal/stats"
)

// NowPlaying fetches the current playback state. When nothing is playing
// (or the player has no active item) it returns an idle record rather than
// an error.
func (c *Client) NowPlaying(ctx context.Context) (*stats.NowPlayingRecord, error) {
	state, err := c.api.PlayerState(ctx)
	if err != nil {
		return nil, wrap("fetching player state", err)
	}
	if state == nil || state.Item == nil {
		return &stats.NowPlayingRecord{State: stats.StateIdle}, nil
	}
	return normalizeNowPlaying(state), nil
}

func normalizeNowPlaying(state *spotify.PlayerState) *stats.NowPlayingRecord {
	track := state.Item

	rec := &stats.NowPlayingRecord{
		State:      stats.StatePaused,
		TrackID:    string(track.ID),
		TrackName:  track.Name,
		AlbumID:    string(track.Album.ID),
		AlbumName:  track.Album.Name,
		TrackURL:   track.ExternalURLs["spotify"],
		DurationMS: int(track.Duration),
		ProgressMS: int(state.Progress),
		Popularity: int(track.Popularity),
		Shuffle:    state.ShuffleState,
		Repeat:     state.RepeatState,
	}
	if state.Playing {
		rec.State = stats.StatePlaying
	}
	if len(track.Artists) > 0 {
		rec.ArtistID = string(track.Artists[0].ID)
		rec.ArtistName = track.Artists[0].Name
	}
	if len(track.Album.Images) > 0 {
		rec.ImageURL = track.Album.Images[0].URL
	}
	return rec
}
