package spotify

import (
	"context"
	"errors"
	"net/http"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-spotify-stats-tracker/internal/stats"
)

// Bulk fetchers used by exports. These bypass the coordinator's staleness
// gates and always hit the API directly.

// ArtistDetails fetches full metadata for each followed artist. A per-artist
// failure degrades to the basic record already in the snapshot rather than
// failing the export.
func (c *Client) ArtistDetails(ctx context.Context, artists []stats.Artist) ([]ArtistDetail, error) {
	details := make([]ArtistDetail, 0, len(artists))
	for _, artist := range artists {
		full, err := c.api.GetArtist(ctx, spotify.ID(artist.ID))
		if err != nil {
			if ctx.Err() != nil {
				return nil, wrap("fetching artist details", err)
			}
			c.log.Warn().
				Str("artist_id", artist.ID).
				Err(err).
				Msg("falling back to basic artist record")
			details = append(details, ArtistDetail{
				ID:         artist.ID,
				Name:       artist.Name,
				URL:        artist.URL,
				Genres:     artist.Genres,
				Popularity: artist.Popularity,
			})
			continue
		}
		details = append(details, normalizeArtistDetail(full))
	}
	return details, nil
}

// FullLibrary fetches every saved album and track, all pages.
func (c *Client) FullLibrary(ctx context.Context) (*Library, error) {
	albumPage, err := c.api.CurrentUsersAlbums(ctx, spotify.Limit(pageLimit))
	if err != nil {
		return nil, wrap("fetching saved albums", err)
	}
	var albums []SavedAlbumDetail
	for {
		for _, saved := range albumPage.Albums {
			albums = append(albums, normalizeSavedAlbumDetail(saved))
		}
		err = c.api.NextPage(ctx, albumPage)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, wrap("fetching saved albums page", err)
		}
	}

	trackPage, err := c.api.CurrentUsersTracks(ctx, spotify.Limit(pageLimit))
	if err != nil {
		return nil, wrap("fetching saved tracks", err)
	}
	var tracks []SavedTrackDetail
	for {
		for _, saved := range trackPage.Tracks {
			tracks = append(tracks, normalizeSavedTrackDetail(saved))
		}
		err = c.api.NextPage(ctx, trackPage)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, wrap("fetching saved tracks page", err)
		}
	}

	return &Library{
		Albums: LibraryAlbums{TotalCount: len(albums), Items: albums},
		Tracks: LibraryTracks{TotalCount: len(tracks), Items: tracks},
	}, nil
}

// PlaylistsWithTracks fetches every playlist with its full track listing.
// A playlist the service no longer serves (deleted or gone private) is kept
// as a summary-only record with a note.
func (c *Client) PlaylistsWithTracks(ctx context.Context) ([]PlaylistExport, error) {
	page, err := c.api.CurrentUsersPlaylists(ctx, spotify.Limit(pageLimit))
	if err != nil {
		return nil, wrap("fetching playlists", err)
	}

	var exports []PlaylistExport
	for {
		for _, summary := range page.Playlists {
			export, err := c.playlistWithTracks(ctx, summary)
			if err != nil {
				return nil, err
			}
			exports = append(exports, export)
		}
		err = c.api.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, wrap("fetching playlists page", err)
		}
	}
	return exports, nil
}

func (c *Client) playlistWithTracks(ctx context.Context, summary spotify.SimplePlaylist) (PlaylistExport, error) {
	base := normalizePlaylist(summary)
	export := PlaylistExport{
		ID:            base.ID,
		Name:          base.Name,
		URL:           base.URL,
		URI:           base.URI,
		Owner:         base.Owner,
		OwnerID:       base.OwnerID,
		TracksTotal:   base.TracksTotal,
		Public:        base.Public,
		Collaborative: base.Collaborative,
	}

	full, err := c.api.GetPlaylist(ctx, summary.ID)
	if err != nil {
		var spErr spotify.Error
		if errors.As(err, &spErr) && spErr.Status == http.StatusNotFound {
			c.log.Warn().
				Str("playlist_id", base.ID).
				Str("playlist_name", base.Name).
				Msg("playlist not found, exporting summary only")
			export.Note = "Unable to fetch full details (404 error)"
			return export, nil
		}
		return PlaylistExport{}, wrap("fetching playlist "+base.ID, err)
	}
	export.Description = full.Description

	for {
		for _, item := range full.Tracks.Tracks {
			track, ok := normalizePlaylistTrack(item)
			if !ok {
				continue
			}
			export.Tracks = append(export.Tracks, track)
		}
		err = c.api.NextPage(ctx, &full.Tracks)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return PlaylistExport{}, wrap("fetching playlist tracks "+base.ID, err)
		}
	}
	return export, nil
}

// TrackAudioFeatures fetches audio features for the given track ids, batched
// at the service's request cap. The result preserves input order; tracks
// without features are absent from the returned map.
func (c *Client) TrackAudioFeatures(ctx context.Context, trackIDs []string) (map[string]AudioFeatures, error) {
	features := make(map[string]AudioFeatures, len(trackIDs))
	for start := 0; start < len(trackIDs); start += maxFeaturesPerRequest {
		end := min(start+maxFeaturesPerRequest, len(trackIDs))
		ids := make([]spotify.ID, 0, end-start)
		for _, id := range trackIDs[start:end] {
			ids = append(ids, spotify.ID(id))
		}

		batch, err := c.api.GetAudioFeatures(ctx, ids...)
		if err != nil {
			return nil, wrap("fetching audio features", err)
		}
		for _, af := range batch {
			if af == nil {
				continue
			}
			features[string(af.ID)] = AudioFeatures{
				TrackID:          string(af.ID),
				Danceability:     float64(af.Danceability),
				Energy:           float64(af.Energy),
				Key:              int(af.Key),
				Loudness:         float64(af.Loudness),
				Mode:             int(af.Mode),
				Speechiness:      float64(af.Speechiness),
				Acousticness:     float64(af.Acousticness),
				Instrumentalness: float64(af.Instrumentalness),
				Liveness:         float64(af.Liveness),
				Valence:          float64(af.Valence),
				Tempo:            float64(af.Tempo),
			}
		}
	}
	return features, nil
}

func normalizeArtistDetail(artist *spotify.FullArtist) ArtistDetail {
	detail := ArtistDetail{
		ID:         string(artist.ID),
		Name:       artist.Name,
		URL:        artist.ExternalURLs["spotify"],
		URI:        string(artist.URI),
		Followers:  int(artist.Followers.Count),
		Genres:     artist.Genres,
		Popularity: int(artist.Popularity),
	}
	for _, img := range artist.Images {
		detail.Images = append(detail.Images, Image{
			URL:    img.URL,
			Width:  int(img.Width),
			Height: int(img.Height),
		})
	}
	return detail
}

func normalizeSavedTrackDetail(saved spotify.SavedTrack) SavedTrackDetail {
	detail := SavedTrackDetail{
		ID:         string(saved.ID),
		Name:       saved.Name,
		AlbumID:    string(saved.Album.ID),
		AlbumName:  saved.Album.Name,
		URL:        saved.ExternalURLs["spotify"],
		URI:        string(saved.URI),
		DurationMS: int(saved.Duration),
		Popularity: int(saved.Popularity),
		AddedAt:    parseAddedAt(saved.AddedAt),
	}
	if len(saved.Artists) > 0 {
		detail.ArtistID = string(saved.Artists[0].ID)
		detail.ArtistName = saved.Artists[0].Name
	}
	return detail
}

func normalizeSavedAlbumDetail(saved spotify.SavedAlbum) SavedAlbumDetail {
	detail := SavedAlbumDetail{
		ID:          string(saved.ID),
		Name:        saved.Name,
		URL:         saved.ExternalURLs["spotify"],
		URI:         string(saved.URI),
		TotalTracks: int(saved.Tracks.Total),
		ReleaseDate: saved.ReleaseDate,
		AddedAt:     parseAddedAt(saved.AddedAt),
	}
	if len(saved.Artists) > 0 {
		detail.ArtistID = string(saved.Artists[0].ID)
		detail.ArtistName = saved.Artists[0].Name
	}
	return detail
}

func normalizePlaylistTrack(item spotify.PlaylistTrack) (PlaylistTrack, bool) {
	track := item.Track
	if track.ID == "" {
		return PlaylistTrack{}, false
	}
	normalized := PlaylistTrack{
		ID:         string(track.ID),
		Name:       track.Name,
		AlbumName:  track.Album.Name,
		DurationMS: int(track.Duration),
	}
	if len(track.Artists) > 0 {
		normalized.ArtistID = string(track.Artists[0].ID)
		normalized.ArtistName = track.Artists[0].Name
	}
	if addedAt := parseAddedAt(item.AddedAt); !addedAt.IsZero() {
		normalized.AddedAt = addedAt
	}
	return normalized, true
}
