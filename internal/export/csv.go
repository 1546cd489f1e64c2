package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/justestif/go-spotify-stats-tracker/internal/spotify"
	"github.com/justestif/go-spotify-stats-tracker/internal/stats"
)

// playedAtLayout is the timestamp format written to the played_at column.
// Dedup on append compares these strings exactly.
const playedAtLayout = time.RFC3339Nano

var recentlyPlayedColumns = []string{
	"username",
	"played_at",
	"track_id",
	"track_name",
	"artist_id",
	"artist_name",
	"album_name",
	"album_id",
	"duration_ms",
	"popularity",
	"explicit",
	"track_url",
}

var audioFeatureColumns = []string{
	"danceability",
	"energy",
	"key",
	"loudness",
	"mode",
	"speechiness",
	"acousticness",
	"instrumentalness",
	"liveness",
	"valence",
	"tempo",
}

// CSVOptions controls the recently-played CSV export.
type CSVOptions struct {
	// Append adds only rows whose played_at is not already in the file.
	// False overwrites the file.
	Append bool

	// IncludeAudioFeatures adds the per-track analysis columns.
	IncludeAudioFeatures bool
}

// RecentlyPlayed writes the snapshot's play events to CSV. In append mode
// existing played_at values are read first and already-exported events are
// skipped, so repeated exports accumulate a dedup'd history. Returns the
// number of rows written.
func (e *Exporter) RecentlyPlayed(ctx context.Context, fetcher AudioFeaturesFetcher, username string, events []stats.PlayEvent, path string, opts CSVOptions) (int, error) {
	if len(events) == 0 {
		return 0, fmt.Errorf("no recently played tracks to export for %s", username)
	}

	existing, err := readPlayedAtSet(path, opts.Append)
	if err != nil {
		return 0, err
	}

	newEvents := lo.Filter(events, func(event stats.PlayEvent, _ int) bool {
		_, seen := existing[event.PlayedAt.Format(playedAtLayout)]
		return !seen
	})
	if len(newEvents) == 0 {
		e.log.Info().Str("username", username).Str("path", path).Msg("no new tracks to export")
		return 0, nil
	}

	var features map[string]spotify.AudioFeatures
	if opts.IncludeAudioFeatures {
		trackIDs := lo.Uniq(lo.Map(newEvents, func(event stats.PlayEvent, _ int) string {
			return event.TrackID
		}))
		if features, err = fetcher.TrackAudioFeatures(ctx, trackIDs); err != nil {
			return 0, fmt.Errorf("fetching audio features: %w", err)
		}
	}

	columns := recentlyPlayedColumns
	if opts.IncludeAudioFeatures {
		columns = append(append([]string{}, recentlyPlayedColumns...), audioFeatureColumns...)
	}

	// A target with no dedupable rows (header-only, or a foreign CSV without
	// a played_at column) is rewritten wholesale so the header always matches
	// the rows being written.
	appendToExisting := opts.Append && len(existing) > 0
	file, err := openCSV(path, appendToExisting)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if !appendToExisting {
		if err := writer.Write(columns); err != nil {
			return 0, fmt.Errorf("writing header: %w", err)
		}
	}

	for _, event := range newEvents {
		row := []string{
			username,
			event.PlayedAt.Format(playedAtLayout),
			event.TrackID,
			event.TrackName,
			event.ArtistID,
			event.ArtistName,
			event.AlbumName,
			event.AlbumID,
			strconv.Itoa(event.DurationMS),
			strconv.Itoa(event.Popularity),
			strconv.FormatBool(event.Explicit),
			event.TrackURL,
		}
		if opts.IncludeAudioFeatures {
			row = append(row, featureColumns(features, event.TrackID)...)
		}
		if err := writer.Write(row); err != nil {
			return 0, fmt.Errorf("writing row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, fmt.Errorf("flushing csv: %w", err)
	}

	e.log.Info().
		Str("username", username).
		Int("rows", len(newEvents)).
		Str("path", path).
		Msg("exported recently played")
	return len(newEvents), nil
}

// TopArtists writes one window's ranked artists to CSV, overwriting the
// file. Genres are semicolon-joined into a single column.
func (e *Exporter) TopArtists(username string, record *stats.TopArtistsRecord, path string) error {
	if record == nil || len(record.Artists) == 0 {
		return fmt.Errorf("no top artists data to export for %s", username)
	}

	file, err := openCSV(path, false)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"username", "export_date", "rank", "id", "name", "url", "genres", "popularity"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	exportDate := e.now().UTC().Format(time.DateOnly)
	for _, artist := range record.Artists {
		row := []string{
			username,
			exportDate,
			strconv.Itoa(artist.Rank),
			artist.ID,
			artist.Name,
			artist.URL,
			strings.Join(artist.Genres, ";"),
			strconv.Itoa(artist.Popularity),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}

	e.log.Info().
		Str("username", username).
		Str("window", string(record.Window)).
		Int("rows", len(record.Artists)).
		Str("path", path).
		Msg("exported top artists")
	return nil
}

// TopTracks writes one window's ranked tracks to CSV, overwriting the file.
func (e *Exporter) TopTracks(username string, record *stats.TopTracksRecord, path string) error {
	if record == nil || len(record.Tracks) == 0 {
		return fmt.Errorf("no top tracks data to export for %s", username)
	}

	file, err := openCSV(path, false)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"username", "export_date", "rank", "id", "name", "artist_name", "artist_id", "album_name", "url", "popularity"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	exportDate := e.now().UTC().Format(time.DateOnly)
	for _, track := range record.Tracks {
		row := []string{
			username,
			exportDate,
			strconv.Itoa(track.Rank),
			track.ID,
			track.Name,
			track.ArtistName,
			track.ArtistID,
			track.AlbumName,
			track.URL,
			strconv.Itoa(track.Popularity),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}

	e.log.Info().
		Str("username", username).
		Str("window", string(record.Window)).
		Int("rows", len(record.Tracks)).
		Str("path", path).
		Msg("exported top tracks")
	return nil
}

// readPlayedAtSet collects the played_at values already in the file. Only
// consulted in append mode; a missing file yields an empty set.
func readPlayedAtSet(path string, appendMode bool) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	if !appendMode {
		return set, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return set, nil
		}
		return nil, fmt.Errorf("opening existing export: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Rows written with and without audio-feature columns coexist in one
	// file, so per-row field counts must not be enforced.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return set, nil
		}
		return nil, fmt.Errorf("reading existing export header: %w", err)
	}

	playedAtIdx := -1
	for i, col := range header {
		if col == "played_at" {
			playedAtIdx = i
			break
		}
	}
	if playedAtIdx < 0 {
		return set, nil
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading existing export: %w", err)
		}
		if playedAtIdx < len(row) {
			set[row[playedAtIdx]] = struct{}{}
		}
	}
	return set, nil
}

// openCSV opens the export file, creating parent directories as needed.
func openCSV(path string, appendToExisting bool) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating export directory: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendToExisting {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening export file: %w", err)
	}
	return file, nil
}

func featureColumns(features map[string]spotify.AudioFeatures, trackID string) []string {
	af, ok := features[trackID]
	if !ok {
		return make([]string, len(audioFeatureColumns))
	}
	return []string{
		formatFloat(af.Danceability),
		formatFloat(af.Energy),
		strconv.Itoa(af.Key),
		formatFloat(af.Loudness),
		strconv.Itoa(af.Mode),
		formatFloat(af.Speechiness),
		formatFloat(af.Acousticness),
		formatFloat(af.Instrumentalness),
		formatFloat(af.Liveness),
		formatFloat(af.Valence),
		formatFloat(af.Tempo),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
