// Package spotify wraps the Spotify Web API client with one fetcher per
// data bucket, normalizing responses into stats records.
package spotify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/justestif/go-spotify-stats-tracker/internal/stats"
)

const (
	// pageLimit is Spotify's maximum page size for library endpoints.
	pageLimit = 50

	// recentLimit is how many play events the recently-played bucket keeps.
	recentLimit = 20

	// maxFeaturesPerRequest is Spotify's batch cap for audio features.
	maxFeaturesPerRequest = 100
)

// Client wraps the Spotify API client with bucket fetchers and bulk export
// queries. A fresh one is built per refresh cycle from the current bearer
// token, so a token never outlives the cycle that derived it.
type Client struct {
	api *spotify.Client
	log zerolog.Logger
}

var _ stats.API = (*Client)(nil)

// NewClient creates a client that authenticates every request with the
// given bearer token.
func NewClient(accessToken string, logger zerolog.Logger) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(context.Background(), src)
	return &Client{
		api: spotify.New(httpClient),
		log: logger,
	}
}

// New wraps an already authenticated API client.
func New(api *spotify.Client, logger zerolog.Logger) *Client {
	return &Client{api: api, log: logger}
}

// wrap maps the library's error type onto stats.APIError so the coordinator
// can classify auth failures, and annotates the failing operation.
func wrap(op string, err error) error {
	var spErr spotify.Error
	if errors.As(err, &spErr) {
		return fmt.Errorf("%s: %w", op, &stats.APIError{Status: spErr.Status, Message: spErr.Message})
	}
	return fmt.Errorf("%s: %w", op, err)
}
