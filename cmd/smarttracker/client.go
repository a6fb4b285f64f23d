package main

import (
	"context"
	"fmt"
	"time"

	"smarttracker/internal/api"
	"smarttracker/internal/config"
)

const pingTimeout = 2 * time.Second

// withClient runs fn against the configured server after a health check.
// The store lives in the server process, so a missing server is an error
// rather than something to spawn on demand.
func withClient(ctx context.Context, cfg *config.Config, fn func(*api.Client) error) error {
	client := api.NewClient(cfg.APIURL)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		return fmt.Errorf("smarttracker server at %s is not reachable: %w", cfg.APIURL, err)
	}

	return fn(client)
}
