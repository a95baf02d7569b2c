// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/agora-forum/agora/cmd/agora/cli"
	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/cache"
	"github.com/agora-forum/agora/lib/forumui"
	"github.com/agora-forum/agora/lib/tui"
)

func tuiCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Summary: "Open the full-screen forum browser",
		Description: `Browse the feed, read and comment on posts, search, chat and
manage your profile in a full-screen terminal UI. Without a saved
session the UI starts anonymously; log in from inside with L.

Log records are shown in the status bar instead of stderr while the
UI is open.`,
		Usage: "agora tui",
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) != 0 {
				return requireArgs(args, 0, "agora tui")
			}
			if file, ok := app.Stdout.(*os.File); !ok || !term.IsTerminal(int(file.Fd())) {
				return cli.Validation("agora tui needs a terminal")
			}
			cfg, err := app.config()
			if err != nil {
				return err
			}
			level, _ := cfg.LogLevel()
			handler := forumui.NewLogHandler(level)
			logger := slog.New(handler).With("command", "tui")
			return app.runUI(ctx, logger, handler)
		},
	}
}

// runUI opens the environment with the UI's logger and runs the
// program until the user quits or ctx is cancelled.
func (a *App) runUI(ctx context.Context, logger *slog.Logger, handler *forumui.LogHandler) error {
	env, err := a.browse(logger)
	if err != nil {
		return err
	}
	defer env.Close()

	config := a.uiConfig(ctx, env, logger)
	if drafts, ok := config.Drafts.(*cache.Cache); ok && drafts != env.cache {
		defer drafts.Close()
	}
	model, err := forumui.NewModel(config)
	if err != nil {
		return cli.Internal("%w", err)
	}

	program := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(a.Stdin),
		tea.WithOutput(a.Stdout),
	)
	handler.SetProgram(program)
	defer handler.SetProgram(nil)

	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return cli.Internal("terminal UI: %w", err)
	}
	return nil
}

// uiConfig builds the model configuration from the environment. A
// saved session that the server no longer accepts starts the UI
// anonymously.
func (a *App) uiConfig(ctx context.Context, env *environment, logger *slog.Logger) forumui.Config {
	cfg := env.config
	config := forumui.Config{
		Client:          env.client,
		Theme:           tui.ThemeByName(cfg.UI.Theme),
		PostPageSize:    cfg.UI.PostPageSize,
		CommentPageSize: cfg.UI.CommentPageSize,
		MessagePageSize: cfg.UI.MessagePageSize,
		ScrollCooldown:  cfg.UI.ScrollCooldown.Std(),
		SearchDebounce:  cfg.UI.SearchDebounce.Std(),
		Clock:           a.now(),
		Logger:          logger,
		Context:         ctx,
	}

	if env.session != nil {
		me, err := env.session.Me(ctx)
		switch {
		case err == nil:
			config.Session, config.User = env.session, me
		case forum.IsUnauthorized(err):
			logger.Warn("saved session rejected, browsing anonymously", "error", err)
		default:
			logger.Warn("profile not loaded, browsing anonymously", "error", err)
		}
	}

	if env.cache != nil {
		config.Drafts = env.cache
	} else if drafts, err := a.openDrafts(cfg, logger); err == nil {
		config.Drafts = drafts
	} else {
		logger.Warn("drafts unavailable", "error", err)
	}

	store := a.sessionStore(cfg)
	config.OnLogin = func(session *forum.Session, user *forum.User) error {
		return a.saveSession(env, session, user, logger)
	}
	config.OnLogout = store.Remove
	return config
}
