package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-spotify-stats-tracker/internal/stats"
)

// windowRanges maps the published window labels onto Spotify's time ranges.
var windowRanges = map[stats.TimeWindow]spotify.Range{
	stats.WindowFourWeeks: spotify.ShortTermRange,
	stats.WindowSixMonths: spotify.MediumTermRange,
	stats.WindowAllTime:   spotify.LongTermRange,
}

// TopArtists fetches the ranked top artists for one time window.
func (c *Client) TopArtists(ctx context.Context, window stats.TimeWindow) (*stats.TopArtistsRecord, error) {
	page, err := c.api.CurrentUsersTopArtists(ctx, spotify.Limit(pageLimit), spotify.Timerange(windowRanges[window]))
	if err != nil {
		return nil, wrap(fmt.Sprintf("fetching top artists (%s)", window), err)
	}

	artists := make([]stats.TopArtist, 0, len(page.Artists))
	for _, artist := range page.Artists {
		artists = append(artists, stats.TopArtist{
			ID:         string(artist.ID),
			Name:       artist.Name,
			URL:        artist.ExternalURLs["spotify"],
			Genres:     artist.Genres,
			Popularity: int(artist.Popularity),
		})
	}
	return stats.NewTopArtistsRecord(window, artists), nil
}

// TopTracks fetches the ranked top tracks for one time window.
func (c *Client) TopTracks(ctx context.Context, window stats.TimeWindow) (*stats.TopTracksRecord, error) {
	page, err := c.api.CurrentUsersTopTracks(ctx, spotify.Limit(pageLimit), spotify.Timerange(windowRanges[window]))
	if err != nil {
		return nil, wrap(fmt.Sprintf("fetching top tracks (%s)", window), err)
	}

	tracks := make([]stats.TopTrack, 0, len(page.Tracks))
	for _, track := range page.Tracks {
		normalized := stats.TopTrack{
			ID:         string(track.ID),
			Name:       track.Name,
			AlbumName:  track.Album.Name,
			URL:        track.ExternalURLs["spotify"],
			Popularity: int(track.Popularity),
		}
		if len(track.Artists) > 0 {
			normalized.ArtistID = string(track.Artists[0].ID)
			normalized.ArtistName = track.Artists[0].Name
		}
		tracks = append(tracks, normalized)
	}
	return stats.NewTopTracksRecord(window, tracks), nil
}
