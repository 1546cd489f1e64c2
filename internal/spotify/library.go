package spotify

import (
	"context"
	"time"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-spotify-stats-tracker/internal/stats"
)

// SavedTracks fetches the head of the saved-tracks library. The record's
// count reflects the library total reported by the service, not the page
// size.
func (c *Client) SavedTracks(ctx context.Context) (*stats.SavedTracksRecord, error) {
	page, err := c.api.CurrentUsersTracks(ctx, spotify.Limit(pageLimit))
	if err != nil {
		return nil, wrap("fetching saved tracks", err)
	}

	tracks := make([]stats.SavedTrack, 0, len(page.Tracks))
	for _, saved := range page.Tracks {
		track, ok := normalizeSavedTrack(saved)
		if !ok {
			c.log.Warn().
				Str("added_at", saved.AddedAt).
				Msg("skipping saved track with missing identity")
			continue
		}
		tracks = append(tracks, track)
	}
	return stats.NewSavedTracksRecord(int(page.Total), tracks), nil
}

// SavedAlbums fetches the head of the saved-albums library.
func (c *Client) SavedAlbums(ctx context.Context) (*stats.SavedAlbumsRecord, error) {
	page, err := c.api.CurrentUsersAlbums(ctx, spotify.Limit(pageLimit))
	if err != nil {
		return nil, wrap("fetching saved albums", err)
	}

	albums := make([]stats.SavedAlbum, 0, len(page.Albums))
	for _, saved := range page.Albums {
		album, ok := normalizeSavedAlbum(saved)
		if !ok {
			c.log.Warn().
				Str("added_at", saved.AddedAt).
				Msg("skipping saved album with missing identity")
			continue
		}
		albums = append(albums, album)
	}
	return stats.NewSavedAlbumsRecord(int(page.Total), albums), nil
}

func normalizeSavedTrack(saved spotify.SavedTrack) (stats.SavedTrack, bool) {
	if saved.ID == "" || len(saved.Artists) == 0 {
		return stats.SavedTrack{}, false
	}
	track := stats.SavedTrack{
		ID:         string(saved.ID),
		Name:       saved.Name,
		ArtistID:   string(saved.Artists[0].ID),
		ArtistName: saved.Artists[0].Name,
		AlbumID:    string(saved.Album.ID),
		AlbumName:  saved.Album.Name,
		URL:        saved.ExternalURLs["spotify"],
		URI:        string(saved.URI),
		DurationMS: int(saved.Duration),
		Popularity: int(saved.Popularity),
	}
	track.AddedAt = parseAddedAt(saved.AddedAt)
	return track, true
}

func normalizeSavedAlbum(saved spotify.SavedAlbum) (stats.SavedAlbum, bool) {
	if saved.ID == "" {
		return stats.SavedAlbum{}, false
	}
	album := stats.SavedAlbum{
		ID:          string(saved.ID),
		Name:        saved.Name,
		URL:         saved.ExternalURLs["spotify"],
		URI:         string(saved.URI),
		TotalTracks: int(saved.Tracks.Total),
		ReleaseDate: saved.ReleaseDate,
	}
	if len(saved.Artists) > 0 {
		album.ArtistID = string(saved.Artists[0].ID)
		album.ArtistName = saved.Artists[0].Name
	}
	album.AddedAt = parseAddedAt(saved.AddedAt)
	return album, true
}

// parseAddedAt converts the service's saved-at timestamp. A malformed value
// leaves the zero time rather than failing the whole page.
func parseAddedAt(value string) time.Time {
	parsed, err := time.Parse(spotify.TimestampLayout, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
