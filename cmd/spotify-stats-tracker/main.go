// Command spotify-stats-tracker polls the Spotify Web API for registered
// accounts, serves per-account snapshots over an HTTP host API, and performs
// on-demand JSON/CSV exports.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/justestif/go-spotify-stats-tracker/internal/auth"
	"github.com/justestif/go-spotify-stats-tracker/internal/config"
	"github.com/justestif/go-spotify-stats-tracker/internal/export"
	"github.com/justestif/go-spotify-stats-tracker/internal/spotify"
	"github.com/justestif/go-spotify-stats-tracker/internal/stats"
	"github.com/justestif/go-spotify-stats-tracker/internal/web"
)

const (
	flagConfig   = "config"
	flagUsername = "username"
	flagOutput   = "output"
	flagAppend   = "append"
	flagFeatures = "audio-features"
	flagEntity   = "entity-type"
	flagRange    = "time-range"
)

func main() {
	app := &cli.App{
		Name:    "spotify-stats-tracker",
		Usage:   "Poll Spotify listening stats and export them",
		Suggest: true,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the pollers and the host API",
				Action: serve,
				Flags:  []cli.Flag{configFlag()},
			},
			{
				Name:   "login",
				Usage:  "Authorize one account and seed its token cache",
				Action: login,
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     flagUsername,
						Aliases:  []string{"u"},
						Usage:    "Account username from the config file",
						Required: true,
					},
				},
			},
			exportCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    flagConfig,
		Aliases: []string{"c"},
		Usage:   "Config file path",
		Value:   "config.yaml",
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(cfg.Level()).
		With().
		Timestamp().
		Logger()
}

func loadConfig(cliCtx *cli.Context) (*config.Config, error) {
	return config.FromFile(cliCtx.String(flagConfig))
}

// serve runs one poller per configured account plus the host API, until an
// interrupt arrives.
func serve(cliCtx *cli.Context) error {
	cfg, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	provider, err := auth.NewProvider(cfg.SpotifyID, cfg.SpotifySecret, cfg.TokenDir, logger)
	if err != nil {
		return err
	}

	newClient := func(token string) stats.API {
		return spotify.NewClient(token, logger)
	}

	registry := stats.NewRegistry()
	runners := make([]*stats.Runner, 0, len(cfg.Accounts))
	for _, account := range cfg.Accounts {
		username := stats.SanitizeUsername(account.Username)
		coord := stats.NewCoordinator(
			username,
			provider.Session(username),
			newClient,
			account.Policy(),
			logger,
		)
		runner := stats.NewRunner(coord, logger)
		registry.Add(runner)
		runners = append(runners, runner)
	}

	ctx, cancel := signal.NotifyContext(cliCtx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup
	for _, runner := range runners {
		wg.Add(1)
		go func(r *stats.Runner) {
			defer wg.Done()
			r.Run(ctx)
		}(runner)
	}

	exporter := export.New(logger)
	newBulk := func(token string) web.BulkClient {
		return spotify.NewClient(token, logger)
	}
	server := web.NewServer(cfg.ListenAddr, registry, exporter, newBulk, logger)

	err = server.Run(ctx)
	cancel()
	wg.Wait()
	return err
}

// login runs the interactive OAuth flow for one configured account.
func login(cliCtx *cli.Context) error {
	cfg, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	username := stats.SanitizeUsername(cliCtx.String(flagUsername))
	found := false
	for _, account := range cfg.Accounts {
		if stats.SanitizeUsername(account.Username) == username {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("username %q is not in the config file", cliCtx.String(flagUsername))
	}

	provider, err := auth.NewProvider(cfg.SpotifyID, cfg.SpotifySecret, cfg.TokenDir, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cliCtx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return provider.Login(ctx, username)
}

func exportCommand() *cli.Command {
	usernameFlag := &cli.StringFlag{
		Name:     flagUsername,
		Aliases:  []string{"u"},
		Usage:    "Account username from the config file",
		Required: true,
	}
	outputFlag := &cli.StringFlag{
		Name:     flagOutput,
		Aliases:  []string{"o"},
		Usage:    "Output file path",
		Required: true,
	}

	return &cli.Command{
		Name:  "export",
		Usage: "One-shot exports without the daemon",
		Subcommands: []*cli.Command{
			{
				Name:   "followed-artists",
				Usage:  "Export followed artists with full metadata to JSON",
				Action: exportFollowedArtists,
				Flags:  []cli.Flag{configFlag(), usernameFlag, outputFlag},
			},
			{
				Name:   "saved-library",
				Usage:  "Export the complete saved library to JSON",
				Action: exportSavedLibrary,
				Flags:  []cli.Flag{configFlag(), usernameFlag, outputFlag},
			},
			{
				Name:   "playlists",
				Usage:  "Export playlists with full track listings to JSON",
				Action: exportPlaylists,
				Flags:  []cli.Flag{configFlag(), usernameFlag, outputFlag},
			},
			{
				Name:   "recently-played",
				Usage:  "Export recently played tracks to CSV",
				Action: exportRecentlyPlayed,
				Flags: []cli.Flag{
					configFlag(), usernameFlag, outputFlag,
					&cli.BoolFlag{
						Name:  flagAppend,
						Usage: "Append to an existing file, skipping already-exported plays",
						Value: true,
					},
					&cli.BoolFlag{
						Name:  flagFeatures,
						Usage: "Include per-track audio feature columns",
					},
				},
			},
			{
				Name:   "top-stats",
				Usage:  "Export one top-stats window to CSV",
				Action: exportTopStats,
				Flags: []cli.Flag{
					configFlag(), usernameFlag, outputFlag,
					&cli.StringFlag{
						Name:     flagEntity,
						Usage:    "artists or tracks",
						Required: true,
					},
					&cli.StringFlag{
						Name:  flagRange,
						Usage: "4weeks, 6months, or alltime",
						Value: string(stats.WindowFourWeeks),
					},
				},
			},
		},
	}
}

// exportSetup builds the shared pieces a one-shot export needs: a client
// authenticated for the requested account and an exporter.
func exportSetup(cliCtx *cli.Context) (*spotify.Client, *export.Exporter, string, error) {
	cfg, err := loadConfig(cliCtx)
	if err != nil {
		return nil, nil, "", err
	}
	logger := newLogger(cfg)

	provider, err := auth.NewProvider(cfg.SpotifyID, cfg.SpotifySecret, cfg.TokenDir, logger)
	if err != nil {
		return nil, nil, "", err
	}

	username := stats.SanitizeUsername(cliCtx.String(flagUsername))
	token, err := provider.Session(username).Token(cliCtx.Context)
	if err != nil {
		return nil, nil, "", err
	}

	return spotify.NewClient(token, logger), export.New(logger), username, nil
}

func exportFollowedArtists(cliCtx *cli.Context) error {
	client, exporter, username, err := exportSetup(cliCtx)
	if err != nil {
		return err
	}

	// One-shot runs have no snapshot; fetch the basic list first.
	record, err := client.FollowedArtists(cliCtx.Context)
	if err != nil {
		return err
	}
	return exporter.FollowedArtists(cliCtx.Context, client, username, record.All, cliCtx.String(flagOutput))
}

func exportSavedLibrary(cliCtx *cli.Context) error {
	client, exporter, username, err := exportSetup(cliCtx)
	if err != nil {
		return err
	}
	return exporter.SavedLibrary(cliCtx.Context, client, username, cliCtx.String(flagOutput))
}

func exportPlaylists(cliCtx *cli.Context) error {
	client, exporter, username, err := exportSetup(cliCtx)
	if err != nil {
		return err
	}
	return exporter.Playlists(cliCtx.Context, client, username, cliCtx.String(flagOutput))
}

func exportRecentlyPlayed(cliCtx *cli.Context) error {
	client, exporter, username, err := exportSetup(cliCtx)
	if err != nil {
		return err
	}

	record, err := client.RecentlyPlayed(cliCtx.Context)
	if err != nil {
		return err
	}

	opts := export.CSVOptions{
		Append:               cliCtx.Bool(flagAppend),
		IncludeAudioFeatures: cliCtx.Bool(flagFeatures),
	}
	_, err = exporter.RecentlyPlayed(cliCtx.Context, client, username, record.Tracks, cliCtx.String(flagOutput), opts)
	return err
}

func exportTopStats(cliCtx *cli.Context) error {
	client, exporter, username, err := exportSetup(cliCtx)
	if err != nil {
		return err
	}

	window := stats.TimeWindow(cliCtx.String(flagRange))
	valid := false
	for _, candidate := range stats.Windows {
		if candidate == window {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid time range %q", cliCtx.String(flagRange))
	}

	switch stats.EntityKind(cliCtx.String(flagEntity)) {
	case stats.KindArtists:
		record, err := client.TopArtists(cliCtx.Context, window)
		if err != nil {
			return err
		}
		return exporter.TopArtists(username, record, cliCtx.String(flagOutput))
	case stats.KindTracks:
		record, err := client.TopTracks(cliCtx.Context, window)
		if err != nil {
			return err
		}
		return exporter.TopTracks(username, record, cliCtx.String(flagOutput))
	default:
		return fmt.Errorf("invalid entity type %q", cliCtx.String(flagEntity))
	}
}
