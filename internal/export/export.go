// Package export writes on-demand JSON and CSV exports of an account's
// Spotify data. Exports fetch through their own bulk queries and never touch
// coordinator state.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/justestif/go-spotify-stats-tracker/internal/spotify"
	"github.com/justestif/go-spotify-stats-tracker/internal/stats"
)

// ArtistFetcher provides full artist metadata for the followed-artists
// export.
type ArtistFetcher interface {
	ArtistDetails(ctx context.Context, artists []stats.Artist) ([]spotify.ArtistDetail, error)
}

// LibraryFetcher provides the complete saved library.
type LibraryFetcher interface {
	FullLibrary(ctx context.Context) (*spotify.Library, error)
}

// PlaylistFetcher provides every playlist with its full track listing.
type PlaylistFetcher interface {
	PlaylistsWithTracks(ctx context.Context) ([]spotify.PlaylistExport, error)
}

// AudioFeaturesFetcher provides per-track audio features, keyed by track id.
type AudioFeaturesFetcher interface {
	TrackAudioFeatures(ctx context.Context, trackIDs []string) (map[string]spotify.AudioFeatures, error)
}

// Exporter writes export files. It is safe for concurrent use; each call is
// independent.
type Exporter struct {
	log zerolog.Logger
	now func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithClock overrides the wall-clock source used for export timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		e.now = now
	}
}

// New creates an Exporter.
func New(logger zerolog.Logger, opts ...Option) *Exporter {
	e := &Exporter{log: logger, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithJob returns a copy whose log lines are tagged with the given job id.
func (e *Exporter) WithJob(jobID string) *Exporter {
	return &Exporter{
		log: e.log.With().Str("job_id", jobID).Logger(),
		now: e.now,
	}
}

type followedArtistsDocument struct {
	ExportedAt time.Time              `json:"exported_at"`
	Username   string                 `json:"username"`
	TotalCount int                    `json:"total_count"`
	Artists    []spotify.ArtistDetail `json:"artists"`
}

// FollowedArtists writes the followed-artists JSON export: full per-artist
// metadata fetched fresh, with the snapshot's basic records as the input
// list.
func (e *Exporter) FollowedArtists(ctx context.Context, fetcher ArtistFetcher, username string, artists []stats.Artist, path string) error {
	if len(artists) == 0 {
		return fmt.Errorf("no followed artists data available for %s", username)
	}

	details, err := fetcher.ArtistDetails(ctx, artists)
	if err != nil {
		return fmt.Errorf("fetching artist details: %w", err)
	}

	doc := followedArtistsDocument{
		ExportedAt: e.now().UTC(),
		Username:   username,
		TotalCount: len(details),
		Artists:    details,
	}
	if err := writeJSON(path, doc); err != nil {
		return err
	}

	e.log.Info().
		Str("username", username).
		Int("count", len(details)).
		Str("path", path).
		Msg("exported followed artists")
	return nil
}

type savedLibraryDocument struct {
	ExportedAt time.Time             `json:"exported_at"`
	Username   string                `json:"username"`
	Albums     spotify.LibraryAlbums `json:"albums"`
	Tracks     spotify.LibraryTracks `json:"tracks"`
}

// SavedLibrary writes the saved-library JSON export: every saved album and
// track, all pages.
func (e *Exporter) SavedLibrary(ctx context.Context, fetcher LibraryFetcher, username, path string) error {
	library, err := fetcher.FullLibrary(ctx)
	if err != nil {
		return fmt.Errorf("fetching saved library: %w", err)
	}

	doc := savedLibraryDocument{
		ExportedAt: e.now().UTC(),
		Username:   username,
		Albums:     library.Albums,
		Tracks:     library.Tracks,
	}
	if err := writeJSON(path, doc); err != nil {
		return err
	}

	e.log.Info().
		Str("username", username).
		Int("albums", library.Albums.TotalCount).
		Int("tracks", library.Tracks.TotalCount).
		Str("path", path).
		Msg("exported saved library")
	return nil
}

type playlistsDocument struct {
	ExportedAt time.Time                `json:"exported_at"`
	Username   string                   `json:"username"`
	TotalCount int                      `json:"total_count"`
	Playlists  []spotify.PlaylistExport `json:"playlists"`
}

// Playlists writes the playlists JSON export: every playlist with its full
// track listing.
func (e *Exporter) Playlists(ctx context.Context, fetcher PlaylistFetcher, username, path string) error {
	playlists, err := fetcher.PlaylistsWithTracks(ctx)
	if err != nil {
		return fmt.Errorf("fetching playlists: %w", err)
	}

	doc := playlistsDocument{
		ExportedAt: e.now().UTC(),
		Username:   username,
		TotalCount: len(playlists),
		Playlists:  playlists,
	}
	if err := writeJSON(path, doc); err != nil {
		return err
	}

	e.log.Info().
		Str("username", username).
		Int("count", len(playlists)).
		Str("path", path).
		Msg("exported playlists")
	return nil
}

// writeJSON marshals the document with two-space indentation and writes it,
// creating parent directories as needed.
func writeJSON(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating export directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing export file: %w", err)
	}
	return nil
}
