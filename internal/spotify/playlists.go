package spotify

import (
	"context"
	"errors"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-spotify-stats-tracker/internal/stats"
)

// Playlists fetches every playlist on the account, following pagination to
// the end.
func (c *Client) Playlists(ctx context.Context) (*stats.PlaylistsRecord, error) {
	page, err := c.api.CurrentUsersPlaylists(ctx, spotify.Limit(pageLimit))
	if err != nil {
		return nil, wrap("fetching playlists", err)
	}

	var all []stats.Playlist
	for {
		for _, playlist := range page.Playlists {
			all = append(all, normalizePlaylist(playlist))
		}
		err = c.api.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, wrap("fetching playlists page", err)
		}
	}

	return stats.NewPlaylistsRecord(all), nil
}

func normalizePlaylist(playlist spotify.SimplePlaylist) stats.Playlist {
	return stats.Playlist{
		ID:            string(playlist.ID),
		Name:          playlist.Name,
		URL:           playlist.ExternalURLs["spotify"],
		URI:           string(playlist.URI),
		Owner:         playlist.Owner.DisplayName,
		OwnerID:       playlist.Owner.ID,
		TracksTotal:   int(playlist.Tracks.Total),
		Public:        playlist.IsPublic,
		Collaborative: playlist.Collaborative,
	}
}
