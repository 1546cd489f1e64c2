package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/justestif/go-spotify-stats-tracker/internal/config"
	"github.com/justestif/go-spotify-stats-tracker/internal/export"
	"github.com/justestif/go-spotify-stats-tracker/internal/stats"
)

// exportTimeout bounds one background export job, bulk fetches included.
const exportTimeout = 10 * time.Minute

// Handlers implements the host API endpoints.
type Handlers struct {
	registry      *stats.Registry
	exporter      *export.Exporter
	newBulkClient BulkClientFactory
	log           zerolog.Logger
}

// NewHandlers creates the endpoint handlers.
func NewHandlers(registry *stats.Registry, exporter *export.Exporter, newBulkClient BulkClientFactory, logger zerolog.Logger) *Handlers {
	return &Handlers{
		registry:      registry,
		exporter:      exporter,
		newBulkClient: newBulkClient,
		log:           logger,
	}
}

// runner resolves the account runner from the URL, writing a 404 when the
// username is unknown.
func (h *Handlers) runner(w http.ResponseWriter, r *http.Request) (*stats.Runner, bool) {
	username := chi.URLParam(r, "username")
	runner, ok := h.registry.Lookup(username)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown username")
		return nil, false
	}
	return runner, true
}

// Users lists the registered account usernames.
func (h *Handlers) Users(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"usernames": h.registry.Usernames()})
}

// Snapshot serves the full last-committed snapshot.
func (h *Handlers) Snapshot(w http.ResponseWriter, r *http.Request) {
	runner, ok := h.runner(w, r)
	if !ok {
		return
	}

	snap := runner.Coordinator().Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot available yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Status serves the account's polling health.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	runner, ok := h.runner(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, runner.Status())
}

// Bucket serves one bucket of the last snapshot by name.
func (h *Handlers) Bucket(w http.ResponseWriter, r *http.Request) {
	runner, ok := h.runner(w, r)
	if !ok {
		return
	}

	snap := runner.Coordinator().Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot available yet")
		return
	}

	bucket, ok := snap.Bucket(stats.BucketName(chi.URLParam(r, "bucket")))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown bucket")
		return
	}
	writeJSON(w, http.StatusOK, bucket)
}

type intervalsRequest struct {
	NowPlayingInterval     int `json:"now_playing_interval"`
	RecentlyPlayedInterval int `json:"recently_played_interval"`
}

type intervalsResponse struct {
	TickPeriodSeconds int `json:"tick_period_seconds"`
}

// SetIntervals reconfigures the account's polling intervals. Bounds are
// enforced here; the coordinator trusts its callers.
func (h *Handlers) SetIntervals(w http.ResponseWriter, r *http.Request) {
	runner, ok := h.runner(w, r)
	if !ok {
		return
	}

	var req intervalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := config.ValidateIntervals(req.NowPlayingInterval, req.RecentlyPlayedInterval); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	period := runner.SetUpdateInterval(
		time.Duration(req.NowPlayingInterval)*time.Second,
		time.Duration(req.RecentlyPlayedInterval)*time.Second,
	)
	writeJSON(w, http.StatusOK, intervalsResponse{TickPeriodSeconds: int(period / time.Second)})
}

// Refresh queues one immediate refresh cycle.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	runner, ok := h.runner(w, r)
	if !ok {
		return
	}
	runner.RequestRefresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

type exportRequest struct {
	Path                 string `json:"path"`
	Append               *bool  `json:"append"`
	IncludeAudioFeatures bool   `json:"include_audio_features"`
	EntityType           string `json:"entity_type"`
	TimeRange            string `json:"time_range"`
}

type exportResponse struct {
	JobID string `json:"job_id"`
}

// Export starts one background export job and answers 202 with its id.
// Snapshot-derived inputs are captured before the job starts so it operates
// on a consistent view.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	runner, ok := h.runner(w, r)
	if !ok {
		return
	}

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	coord := runner.Coordinator()
	username := coord.Username()
	snap := coord.Snapshot()

	kind := chi.URLParam(r, "kind")
	var job func(ctx context.Context, exp *export.Exporter, client BulkClient) error

	switch kind {
	case "followed-artists":
		if snap == nil || snap.FollowedArtists == nil || len(snap.FollowedArtists.All) == 0 {
			writeError(w, http.StatusConflict, "no followed artists data available yet")
			return
		}
		artists := snap.FollowedArtists.All
		job = func(ctx context.Context, exp *export.Exporter, client BulkClient) error {
			return exp.FollowedArtists(ctx, client, username, artists, req.Path)
		}

	case "saved-library":
		job = func(ctx context.Context, exp *export.Exporter, client BulkClient) error {
			return exp.SavedLibrary(ctx, client, username, req.Path)
		}

	case "playlists":
		job = func(ctx context.Context, exp *export.Exporter, client BulkClient) error {
			return exp.Playlists(ctx, client, username, req.Path)
		}

	case "recently-played":
		if snap == nil || snap.RecentlyPlayed == nil || len(snap.RecentlyPlayed.Tracks) == 0 {
			writeError(w, http.StatusConflict, "no recently played data available yet")
			return
		}
		events := snap.RecentlyPlayed.Tracks
		opts := export.CSVOptions{
			Append:               req.Append == nil || *req.Append,
			IncludeAudioFeatures: req.IncludeAudioFeatures,
		}
		job = func(ctx context.Context, exp *export.Exporter, client BulkClient) error {
			_, err := exp.RecentlyPlayed(ctx, client, username, events, req.Path, opts)
			return err
		}

	case "top-stats":
		job, ok = h.topStatsJob(w, req, username, snap)
		if !ok {
			return
		}

	default:
		writeError(w, http.StatusNotFound, "unknown export kind")
		return
	}

	jobID := uuid.NewString()
	go h.runExport(jobID, kind, coord.TokenSource(), job)

	writeJSON(w, http.StatusAccepted, exportResponse{JobID: jobID})
}

// topStatsJob validates the top-stats export request against the snapshot
// and builds its job. Writes the error response itself when invalid.
func (h *Handlers) topStatsJob(w http.ResponseWriter, req exportRequest, username string, snap *stats.Snapshot) (func(context.Context, *export.Exporter, BulkClient) error, bool) {
	window := stats.TimeWindow(req.TimeRange)
	validWindow := false
	for _, candidate := range stats.Windows {
		if candidate == window {
			validWindow = true
			break
		}
	}
	if !validWindow {
		writeError(w, http.StatusBadRequest, "time_range must be one of 4weeks, 6months, alltime")
		return nil, false
	}

	switch stats.EntityKind(req.EntityType) {
	case stats.KindArtists:
		if snap == nil || snap.TopArtists[window] == nil {
			writeError(w, http.StatusConflict, "no top artists data available yet")
			return nil, false
		}
		record := snap.TopArtists[window]
		return func(_ context.Context, exp *export.Exporter, _ BulkClient) error {
			return exp.TopArtists(username, record, req.Path)
		}, true

	case stats.KindTracks:
		if snap == nil || snap.TopTracks[window] == nil {
			writeError(w, http.StatusConflict, "no top tracks data available yet")
			return nil, false
		}
		record := snap.TopTracks[window]
		return func(_ context.Context, exp *export.Exporter, _ BulkClient) error {
			return exp.TopTracks(username, record, req.Path)
		}, true

	default:
		writeError(w, http.StatusBadRequest, "entity_type must be artists or tracks")
		return nil, false
	}
}

// runExport executes one export job in the background. Failures are logged
// under the job id; coordinator state is never touched.
func (h *Handlers) runExport(jobID, kind string, tokens stats.TokenSource, job func(context.Context, *export.Exporter, BulkClient) error) {
	ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
	defer cancel()

	log := h.log.With().Str("job_id", jobID).Str("kind", kind).Logger()

	token, err := tokens.Token(ctx)
	if err != nil {
		log.Error().Err(err).Msg("export aborted: obtaining access token")
		return
	}

	exp := h.exporter.WithJob(jobID)
	if err := job(ctx, exp, h.newBulkClient(token)); err != nil {
		log.Error().Err(err).Msg("export failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
