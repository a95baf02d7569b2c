// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/agora-forum/agora/cmd/agora/cli"
	"github.com/agora-forum/agora/lib/cache"
)

func cacheCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:    "cache",
		Summary: "Inspect and clean the local response cache",
		Subcommands: []*cli.Command{
			cacheStatsCommand(app),
			cacheClearCommand(app),
			cachePruneCommand(app),
		},
	}
}

type cacheStatsParams struct {
	cli.JSONOutput
}

type cacheStatsResult struct {
	Path        string    `json:"path"`
	Enabled     bool      `json:"enabled"`
	Compression string    `json:"compression"`
	TTL         string    `json:"ttl"`
	Responses   int       `json:"responses"`
	BodyBytes   int64     `json:"body_bytes"`
	StoredBytes int64     `json:"stored_bytes"`
	Drafts      int       `json:"drafts"`
	Oldest      time.Time `json:"oldest,omitzero"`
	Newest      time.Time `json:"newest,omitzero"`
}

func cacheStatsCommand(app *App) *cli.Command {
	var params cacheStatsParams
	return &cli.Command{
		Name:    "stats",
		Summary: "Show what the cache holds",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			cfg, err := app.config()
			if err != nil {
				return err
			}
			return app.withDrafts(logger, func(store *cache.Cache) error {
				stats, err := store.Stats(ctx)
				if err != nil {
					return cli.Internal("%w", err)
				}
				result := cacheStatsResult{
					Path:        stats.Path,
					Enabled:     cfg.Cache.Enabled,
					Compression: cfg.Cache.Compression,
					TTL:         cfg.Cache.TTL.String(),
					Responses:   stats.Responses,
					BodyBytes:   stats.BodyBytes,
					StoredBytes: stats.StoredBytes,
					Drafts:      stats.Drafts,
					Oldest:      stats.Oldest,
					Newest:      stats.Newest,
				}
				if done, err := params.EmitJSON(app.Stdout, result); done {
					return err
				}

				state := "enabled"
				if !result.Enabled {
					state = "disabled"
				}
				fmt.Fprintf(app.Stdout, "path:        %s (%s)\n", result.Path, state)
				fmt.Fprintf(app.Stdout, "compression: %s, ttl %s\n", result.Compression, result.TTL)
				fmt.Fprintf(app.Stdout, "responses:   %s\n", humanize.Comma(int64(result.Responses)))
				fmt.Fprintf(app.Stdout, "size:        %s stored, %s uncompressed\n",
					humanize.Bytes(uint64(result.StoredBytes)), humanize.Bytes(uint64(result.BodyBytes)))
				if result.Responses > 0 {
					fmt.Fprintf(app.Stdout, "fetched:     %s to %s\n",
						humanize.Time(result.Oldest), humanize.Time(result.Newest))
				}
				fmt.Fprintf(app.Stdout, "drafts:      %d\n", result.Drafts)
				return nil
			})
		},
	}
}

func cacheClearCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:        "clear",
		Summary:     "Remove every stored response",
		Description: "Remove all cached responses. Drafts are kept.",
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			return app.withDrafts(logger, func(store *cache.Cache) error {
				removed, err := store.Clear(ctx)
				if err != nil {
					return cli.Internal("%w", err)
				}
				fmt.Fprintf(app.Stdout, "Removed %s\n", plural(removed, "response"))
				return nil
			})
		},
	}
}

func cachePruneCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:    "prune",
		Summary: "Remove responses older than cache.ttl",
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			return app.withDrafts(logger, func(store *cache.Cache) error {
				removed, err := store.Prune(ctx)
				if err != nil {
					return cli.Internal("%w", err)
				}
				fmt.Fprintf(app.Stdout, "Removed %s\n", plural(removed, "expired response"))
				return nil
			})
		},
	}
}
