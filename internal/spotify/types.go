package spotify

import "time"

// ArtistDetail is the full artist metadata used by the followed-artists
// export. Richer than stats.Artist: includes follower count and image set.
type ArtistDetail struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	URI        string   `json:"uri"`
	Followers  int      `json:"followers"`
	Genres     []string `json:"genres"`
	Images     []Image  `json:"images"`
	Popularity int      `json:"popularity"`
}

// Image is one artwork rendition.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Library is the full saved library, all pages.
type Library struct {
	Albums LibraryAlbums `json:"albums"`
	Tracks LibraryTracks `json:"tracks"`
}

// LibraryAlbums is the album side of the saved-library export.
type LibraryAlbums struct {
	TotalCount int                `json:"total_count"`
	Items      []SavedAlbumDetail `json:"items"`
}

// LibraryTracks is the track side of the saved-library export.
type LibraryTracks struct {
	TotalCount int                `json:"total_count"`
	Items      []SavedTrackDetail `json:"items"`
}

// SavedTrackDetail is one saved track in the library export.
type SavedTrackDetail struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ArtistID   string    `json:"artist_id"`
	ArtistName string    `json:"artist_name"`
	AlbumID    string    `json:"album_id"`
	AlbumName  string    `json:"album_name"`
	URL        string    `json:"url"`
	URI        string    `json:"uri"`
	DurationMS int       `json:"duration_ms"`
	Popularity int       `json:"popularity"`
	AddedAt    time.Time `json:"added_at"`
}

// SavedAlbumDetail is one saved album in the library export.
type SavedAlbumDetail struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ArtistID    string    `json:"artist_id"`
	ArtistName  string    `json:"artist_name"`
	URL         string    `json:"url"`
	URI         string    `json:"uri"`
	TotalTracks int       `json:"total_tracks"`
	ReleaseDate string    `json:"release_date,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}

// PlaylistExport is one playlist with its full track listing. A playlist the
// service refused to serve (deleted, gone private) keeps its summary fields
// and carries a Note instead of tracks.
type PlaylistExport struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	URL           string          `json:"url"`
	URI           string          `json:"uri,omitempty"`
	Description   string          `json:"description,omitempty"`
	Owner         string          `json:"owner"`
	OwnerID       string          `json:"owner_id"`
	TracksTotal   int             `json:"tracks_total"`
	Public        bool            `json:"public"`
	Collaborative bool            `json:"collaborative"`
	Tracks        []PlaylistTrack `json:"tracks,omitempty"`
	Note          string          `json:"note,omitempty"`
}

// PlaylistTrack is one entry in an exported playlist.
type PlaylistTrack struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ArtistID   string    `json:"artist_id"`
	ArtistName string    `json:"artist_name"`
	AlbumName  string    `json:"album_name"`
	DurationMS int       `json:"duration_ms"`
	AddedAt    time.Time `json:"added_at"`
}

// AudioFeatures is the per-track analysis block used by the recently-played
// CSV export.
type AudioFeatures struct {
	TrackID          string
	Danceability     float64
	Energy           float64
	Key              int
	Loudness         float64
	Mode             int
	Speechiness      float64
	Acousticness     float64
	Instrumentalness float64
	Liveness         float64
	Valence          float64
	Tempo            float64
}
