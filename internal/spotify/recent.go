package spotify

import (
	"context"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-spotify-stats-tracker/internal/stats"
)

// RecentlyPlayed fetches the latest play events, most recent first. The
// history endpoint returns simplified tracks without popularity, so the
// events are enriched with one batched track lookup afterwards.
func (c *Client) RecentlyPlayed(ctx context.Context) (*stats.RecentlyPlayedRecord, error) {
	items, err := c.api.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{Limit: recentLimit})
	if err != nil {
		return nil, wrap("fetching recently played", err)
	}

	events := make([]stats.PlayEvent, 0, len(items))
	for _, item := range items {
		event, ok := normalizePlayEvent(item)
		if !ok {
			c.log.Warn().
				Time("played_at", item.PlayedAt).
				Msg("skipping play event with missing track data")
			continue
		}
		events = append(events, event)
	}

	if err := c.enrichPopularity(ctx, events); err != nil {
		return nil, err
	}
	return stats.NewRecentlyPlayedRecord(events), nil
}

// enrichPopularity fills each event's popularity from a batched full-track
// fetch, deduplicating repeated plays of the same track.
func (c *Client) enrichPopularity(ctx context.Context, events []stats.PlayEvent) error {
	if len(events) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(events))
	ids := make([]spotify.ID, 0, len(events))
	for _, event := range events {
		if _, ok := seen[event.TrackID]; ok {
			continue
		}
		seen[event.TrackID] = struct{}{}
		ids = append(ids, spotify.ID(event.TrackID))
	}

	tracks, err := c.api.GetTracks(ctx, ids)
	if err != nil {
		return wrap("fetching track popularity", err)
	}
	applyPopularity(events, tracks)
	return nil
}

// applyPopularity copies popularity onto the events by track id. Tracks the
// service did not return stay at zero.
func applyPopularity(events []stats.PlayEvent, tracks []*spotify.FullTrack) {
	popularity := make(map[string]int, len(tracks))
	for _, track := range tracks {
		if track == nil {
			continue
		}
		popularity[string(track.ID)] = int(track.Popularity)
	}
	for i := range events {
		events[i].Popularity = popularity[events[i].TrackID]
	}
}

// normalizePlayEvent converts one history item. It reports false when the
// track lacks the identity fields required downstream (deleted tracks come
// back hollow).
func normalizePlayEvent(item spotify.RecentlyPlayedItem) (stats.PlayEvent, bool) {
	track := item.Track
	if track.ID == "" || len(track.Artists) == 0 {
		return stats.PlayEvent{}, false
	}
	return stats.PlayEvent{
		PlayedAt:   item.PlayedAt,
		TrackID:    string(track.ID),
		TrackName:  track.Name,
		ArtistID:   string(track.Artists[0].ID),
		ArtistName: track.Artists[0].Name,
		AlbumID:    string(track.Album.ID),
		AlbumName:  track.Album.Name,
		TrackURL:   track.ExternalURLs["spotify"],
		DurationMS: int(track.Duration),
		Explicit:   track.Explicit,
	}, true
}
