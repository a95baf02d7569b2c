// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agora-forum/agora/cmd/agora/cli"
	"github.com/agora-forum/agora/lib/cache"
	"github.com/agora-forum/agora/lib/config"
	"github.com/agora-forum/agora/lib/timeago"
)

// openDrafts opens the cache database for drafts. Unlike openCache it
// ignores cache.enabled: drafts are kept even when responses are not.
func (a *App) openDrafts(cfg *config.Config, logger *slog.Logger) (*cache.Cache, error) {
	compression, err := cache.ParseCompression(cfg.Cache.Compression)
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	store, err := cache.Open(cache.Config{
		Path:        cfg.Cache.Path,
		Compression: compression,
		TTL:         cfg.Cache.TTL.Std(),
		PoolSize:    1,
		Clock:       a.now(),
		Logger:      logger,
	})
	if err != nil {
		return nil, cli.Internal("%w", err)
	}
	return store, nil
}

// draftError maps a missing draft to not_found.
func draftError(err error) error {
	if errors.Is(err, cache.ErrDraftNotFound) {
		return cli.NotFound("%w", err).WithHint("Run 'agora drafts list' to see saved drafts.")
	}
	return cli.Internal("%w", err)
}

func draftsCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:    "drafts",
		Summary: "Posts saved locally and not yet published",
		Description: `Drafts live in the local cache database. Save one with
'agora posts create --save-draft <name>' and publish it with
'agora posts create --from-draft <name>'.`,
		Subcommands: []*cli.Command{
			draftsListCommand(app),
			draftsShowCommand(app),
			draftsDeleteCommand(app),
		},
	}
}

// withDrafts runs fn with the drafts store open.
func (a *App) withDrafts(logger *slog.Logger, fn func(*cache.Cache) error) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	store, err := a.openDrafts(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

type draftsListParams struct {
	cli.JSONOutput
}

func draftsListCommand(app *App) *cli.Command {
	var params draftsListParams
	return &cli.Command{
		Name:    "list",
		Summary: "List drafts, most recent first",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			return app.withDrafts(logger, func(store *cache.Cache) error {
				drafts, err := store.Drafts(ctx)
				if err != nil {
					return draftError(err)
				}
				if done, err := params.EmitJSON(app.Stdout, drafts); done {
					return err
				}
				if len(drafts) == 0 {
					fmt.Fprintln(app.Stdout, "No drafts")
					return nil
				}
				now := app.now().Now()
				table := newTable(app.Stdout)
				fmt.Fprintln(table, "NAME\tTOPIC\tTAGS\tIMAGES\tUPDATED")
				for _, draft := range drafts {
					fmt.Fprintf(table, "%s\t%s\t%s\t%d\t%s\n", draft.Name, oneLine(draft.Topic, 40),
						strings.Join(draft.Tags, ","), len(draft.Images), timeago.Format(now, draft.UpdatedAt))
				}
				return table.Flush()
			})
		},
	}
}

type draftsShowParams struct {
	cli.JSONOutput
}

func draftsShowCommand(app *App) *cli.Command {
	var params draftsShowParams
	return &cli.Command{
		Name:    "show",
		Summary: "Print a draft",
		Usage:   "agora drafts show <name>",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 1, "agora drafts show <name>"); err != nil {
				return err
			}
			return app.withDrafts(logger, func(store *cache.Cache) error {
				draft, err := store.Draft(ctx, args[0])
				if err != nil {
					return draftError(err)
				}
				if done, err := params.EmitJSON(app.Stdout, draft); done {
					return err
				}
				fmt.Fprintf(app.Stdout, "%s (saved %s)\n", draft.Name, timeago.Format(app.now().Now(), draft.UpdatedAt))
				fmt.Fprintf(app.Stdout, "topic:   %s\n", draft.Topic)
				if len(draft.Tags) > 0 {
					fmt.Fprintf(app.Stdout, "tags:    %s\n", strings.Join(draft.Tags, ", "))
				}
				for _, image := range draft.Images {
					fmt.Fprintf(app.Stdout, "image:   %s\n", image)
				}
				if draft.Content != "" {
					fmt.Fprintf(app.Stdout, "\n%s\n", draft.Content)
				}
				return nil
			})
		},
	}
}

func draftsDeleteCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:    "delete",
		Summary: "Delete drafts",
		Usage:   "agora drafts delete <name>...",
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) == 0 {
				return requireArgs(args, 1, "agora drafts delete <name>...")
			}
			return app.withDrafts(logger, func(store *cache.Cache) error {
				for _, name := range args {
					if err := store.DeleteDraft(ctx, name); err != nil {
						return draftError(err)
					}
					fmt.Fprintf(app.Stdout, "Deleted draft %q\n", name)
				}
				return nil
			})
		},
	}
}
