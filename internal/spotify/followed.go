package spotify

import (
	"context"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-spotify-stats-tracker/internal/stats"
)

// FollowedArtists fetches the complete followed-artist list, paginating the
// cursor until the service reports no further page.
func (c *Client) FollowedArtists(ctx context.Context) (*stats.FollowedArtistsRecord, error) {
	var all []stats.Artist
	after := ""

	for {
		opts := []spotify.RequestOption{spotify.Limit(pageLimit)}
		if after != "" {
			opts = append(opts, spotify.After(after))
		}

		page, err := c.api.CurrentUsersFollowedArtists(ctx, opts...)
		if err != nil {
			return nil, wrap("fetching followed artists", err)
		}

		for _, artist := range page.Artists {
			all = append(all, normalizeArtist(artist))
		}

		if page.Next == "" || len(page.Artists) == 0 {
			break
		}
		after = page.Cursor.After
	}

	return stats.NewFollowedArtistsRecord(all), nil
}

func normalizeArtist(artist spotify.FullArtist) stats.Artist {
	normalized := stats.Artist{
		ID:         string(artist.ID),
		Name:       artist.Name,
		URL:        artist.ExternalURLs["spotify"],
		Genres:     artist.Genres,
		Popularity: int(artist.Popularity),
	}
	if len(artist.Images) > 0 {
		normalized.ImageURL = artist.Images[0].URL
	}
	return normalized
}
