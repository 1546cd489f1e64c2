package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/justestif/go-spotify-stats-tracker/internal/spotify"
	"github.com/justestif/go-spotify-stats-tracker/internal/stats"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestExporter() *Exporter {
	return New(zerolog.Nop(), WithClock(func() time.Time { return fixedNow }))
}

type fakeArtistFetcher struct {
	details []spotify.ArtistDetail
}

func (f *fakeArtistFetcher) ArtistDetails(_ context.Context, _ []stats.Artist) ([]spotify.ArtistDetail, error) {
	return f.details, nil
}

type fakeFeaturesFetcher struct {
	features map[string]spotify.AudioFeatures
	calls    int
}

func (f *fakeFeaturesFetcher) TrackAudioFeatures(_ context.Context, _ []string) (map[string]spotify.AudioFeatures, error) {
	f.calls++
	return f.features, nil
}

func playEvents(times ...time.Time) []stats.PlayEvent {
	events := make([]stats.PlayEvent, 0, len(times))
	for i, at := range times {
		events = append(events, stats.PlayEvent{
			PlayedAt:   at,
			TrackID:    "track" + string(rune('a'+i)),
			TrackName:  "Track " + string(rune('A'+i)),
			ArtistID:   "artist1",
			ArtistName: "Artist One",
			AlbumID:    "album1",
			AlbumName:  "Album One",
			TrackURL:   "https://open.spotify.com/track/x",
			DurationMS: 180000,
		})
	}
	return events
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return rows
}

func TestFollowedArtistsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "artists.json")
	fetcher := &fakeArtistFetcher{details: []spotify.ArtistDetail{
		{ID: "artist1", Name: "Artist One", Followers: 1234, Genres: []string{"indie"}},
		{ID: "artist2", Name: "Artist Two"},
	}}
	basics := []stats.Artist{{ID: "artist1"}, {ID: "artist2"}}

	err := newTestExporter().FollowedArtists(context.Background(), fetcher, "alice", basics, path)
	if err != nil {
		t.Fatalf("FollowedArtists() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}

	var doc struct {
		ExportedAt time.Time              `json:"exported_at"`
		Username   string                 `json:"username"`
		TotalCount int                    `json:"total_count"`
		Artists    []spotify.ArtistDetail `json:"artists"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parsing export: %v", err)
	}

	if doc.Username != "alice" {
		t.Errorf("username = %q, want %q", doc.Username, "alice")
	}
	if doc.TotalCount != 2 || len(doc.Artists) != 2 {
		t.Errorf("total_count = %d, artists = %d, want 2/2", doc.TotalCount, len(doc.Artists))
	}
	if !doc.ExportedAt.Equal(fixedNow) {
		t.Errorf("exported_at = %v, want %v", doc.ExportedAt, fixedNow)
	}
}

func TestFollowedArtistsEmptySnapshot(t *testing.T) {
	err := newTestExporter().FollowedArtists(context.Background(), &fakeArtistFetcher{}, "alice", nil, filepath.Join(t.TempDir(), "artists.json"))
	if err == nil {
		t.Fatal("expected error for empty artist list")
	}
}

func TestRecentlyPlayedAppendDedup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recent.csv")
	exporter := newTestExporter()
	opts := CSVOptions{Append: true}

	first := playEvents(
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC),
	)
	n, err := exporter.RecentlyPlayed(context.Background(), nil, "alice", first, path, opts)
	if err != nil {
		t.Fatalf("first export error = %v", err)
	}
	if n != 2 {
		t.Fatalf("first export rows = %d, want 2", n)
	}

	// Second export overlaps: one old event, one new.
	second := playEvents(
		time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 10, 0, 0, time.UTC),
	)
	n, err = exporter.RecentlyPlayed(context.Background(), nil, "alice", second, path, opts)
	if err != nil {
		t.Fatalf("second export error = %v", err)
	}
	if n != 1 {
		t.Errorf("second export rows = %d, want 1", n)
	}

	rows := readCSV(t, path)
	if len(rows) != 4 { // header + 3 unique events
		t.Fatalf("file has %d rows, want 4", len(rows))
	}

	seen := make(map[string]struct{})
	for _, row := range rows[1:] {
		if _, dup := seen[row[1]]; dup {
			t.Errorf("duplicate played_at %q", row[1])
		}
		seen[row[1]] = struct{}{}
	}

	// Fully duplicate export writes nothing.
	n, err = exporter.RecentlyPlayed(context.Background(), nil, "alice", second, path, opts)
	if err != nil {
		t.Fatalf("third export error = %v", err)
	}
	if n != 0 {
		t.Errorf("third export rows = %d, want 0", n)
	}
}

func TestRecentlyPlayedAppendMixedColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recent.csv")
	exporter := newTestExporter()
	fetcher := &fakeFeaturesFetcher{features: map[string]spotify.AudioFeatures{}}

	first := playEvents(
		time.Date(2026, 8, 20, 11, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 20, 11, 5, 0, 0, time.UTC),
	)
	if _, err := exporter.RecentlyPlayed(context.Background(), nil, "alice", first, path, CSVOptions{Append: true}); err != nil {
		t.Fatalf("first export error = %v", err)
	}

	// Second export appends wider rows with the audio-feature columns.
	second := playEvents(
		time.Date(2026, 8, 20, 11, 5, 0, 0, time.UTC),
		time.Date(2026, 8, 20, 11, 10, 0, 0, time.UTC),
	)
	n, err := exporter.RecentlyPlayed(context.Background(), fetcher, "alice", second, path, CSVOptions{Append: true, IncludeAudioFeatures: true})
	if err != nil {
		t.Fatalf("second export error = %v", err)
	}
	if n != 1 {
		t.Errorf("second export rows = %d, want 1", n)
	}

	// Third export repeats the first events; the dedup set must still read
	// past the wider rows.
	n, err = exporter.RecentlyPlayed(context.Background(), nil, "alice", first, path, CSVOptions{Append: true})
	if err != nil {
		t.Fatalf("third export error = %v", err)
	}
	if n != 0 {
		t.Errorf("third export rows = %d, want 0", n)
	}

	rows := readCSV(t, path)
	if len(rows) != 4 { // header + 3 unique events
		t.Fatalf("file has %d rows, want 4", len(rows))
	}
	seen := make(map[string]int)
	for _, row := range rows[1:] {
		seen[row[1]]++
	}
	for playedAt, count := range seen {
		if count != 1 {
			t.Errorf("played_at %s written %d times", playedAt, count)
		}
	}
}

func TestRecentlyPlayedAppendRewritesHeaderOnlyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recent.csv")
	header := "username,played_at,track_id,track_name,artist_id,artist_name,album_name,album_id,duration_ms,popularity,explicit,track_url\n"
	if err := os.WriteFile(path, []byte(header), 0644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	events := playEvents(time.Date(2026, 8, 20, 11, 0, 0, 0, time.UTC))
	n, err := newTestExporter().RecentlyPlayed(context.Background(), nil, "alice", events, path, CSVOptions{Append: true})
	if err != nil {
		t.Fatalf("RecentlyPlayed() error = %v", err)
	}
	if n != 1 {
		t.Errorf("rows written = %d, want 1", n)
	}

	rows := readCSV(t, path)
	if len(rows) != 2 { // a single header plus the event row
		t.Fatalf("file has %d rows, want 2", len(rows))
	}
	if rows[0][0] != "username" || rows[1][0] != "alice" {
		t.Errorf("rows = %v", rows)
	}
}

func TestRecentlyPlayedColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recent.csv")
	events := playEvents(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	_, err := newTestExporter().RecentlyPlayed(context.Background(), nil, "alice", events, path, CSVOptions{})
	if err != nil {
		t.Fatalf("RecentlyPlayed() error = %v", err)
	}

	rows := readCSV(t, path)
	if !reflect.DeepEqual(rows[0], recentlyPlayedColumns) {
		t.Errorf("header = %v, want %v", rows[0], recentlyPlayedColumns)
	}
	if rows[1][0] != "alice" {
		t.Errorf("username column = %q, want %q", rows[1][0], "alice")
	}
}

func TestRecentlyPlayedAudioFeatureColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recent.csv")
	events := playEvents(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	fetcher := &fakeFeaturesFetcher{features: map[string]spotify.AudioFeatures{
		"tracka": {TrackID: "tracka", Danceability: 0.5, Tempo: 120},
	}}

	_, err := newTestExporter().RecentlyPlayed(context.Background(), fetcher, "alice", events, path, CSVOptions{IncludeAudioFeatures: true})
	if err != nil {
		t.Fatalf("RecentlyPlayed() error = %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("feature fetches = %d, want 1", fetcher.calls)
	}

	rows := readCSV(t, path)
	wantCols := len(recentlyPlayedColumns) + len(audioFeatureColumns)
	if len(rows[0]) != wantCols {
		t.Fatalf("header has %d columns, want %d", len(rows[0]), wantCols)
	}
	if rows[0][len(recentlyPlayedColumns)] != "danceability" {
		t.Errorf("first feature column = %q, want %q", rows[0][len(recentlyPlayedColumns)], "danceability")
	}
	if rows[1][len(recentlyPlayedColumns)] != "0.5" {
		t.Errorf("danceability = %q, want %q", rows[1][len(recentlyPlayedColumns)], "0.5")
	}
}

func TestTopArtistsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "top.csv")
	record := stats.NewTopArtistsRecord(stats.WindowFourWeeks, []stats.TopArtist{
		{ID: "artist1", Name: "Artist One", URL: "u1", Genres: []string{"indie", "rock"}, Popularity: 80},
		{ID: "artist2", Name: "Artist Two", URL: "u2", Popularity: 60},
	})

	if err := newTestExporter().TopArtists("alice", record, path); err != nil {
		t.Fatalf("TopArtists() error = %v", err)
	}

	rows := readCSV(t, path)
	wantHeader := []string{"username", "export_date", "rank", "id", "name", "url", "genres", "popularity"}
	if !reflect.DeepEqual(rows[0], wantHeader) {
		t.Errorf("header = %v, want %v", rows[0], wantHeader)
	}

	want := []string{"alice", "2026-03-01", "1", "artist1", "Artist One", "u1", "indie;rock", "80"}
	if !reflect.DeepEqual(rows[1], want) {
		t.Errorf("row = %v, want %v", rows[1], want)
	}
	if rows[2][2] != "2" {
		t.Errorf("second rank = %q, want %q", rows[2][2], "2")
	}
}

func TestTopTracksCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "top.csv")
	record := stats.NewTopTracksRecord(stats.WindowAllTime, []stats.TopTrack{
		{ID: "track1", Name: "Track One", ArtistID: "artist1", ArtistName: "Artist One", AlbumName: "Album", URL: "u1", Popularity: 90},
	})

	if err := newTestExporter().TopTracks("alice", record, path); err != nil {
		t.Fatalf("TopTracks() error = %v", err)
	}

	rows := readCSV(t, path)
	wantHeader := []string{"username", "export_date", "rank", "id", "name", "artist_name", "artist_id", "album_name", "url", "popularity"}
	if !reflect.DeepEqual(rows[0], wantHeader) {
		t.Errorf("header = %v, want %v", rows[0], wantHeader)
	}
	if rows[1][5] != "Artist One" || rows[1][6] != "artist1" {
		t.Errorf("artist columns = (%q, %q)", rows[1][5], rows[1][6])
	}
}

func TestTopArtistsEmptyRecord(t *testing.T) {
	exporter := newTestExporter()
	if err := exporter.TopArtists("alice", nil, filepath.Join(t.TempDir(), "top.csv")); err == nil {
		t.Error("expected error for nil record")
	}
	empty := &stats.TopArtistsRecord{Window: stats.WindowFourWeeks}
	if err := exporter.TopArtists("alice", empty, filepath.Join(t.TempDir(), "top.csv")); err == nil {
		t.Error("expected error for empty record")
	}
}
