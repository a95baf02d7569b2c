// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/agora-forum/agora/cmd/agora/cli"
	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/cache"
	"github.com/agora-forum/agora/lib/clock"
	"github.com/agora-forum/agora/lib/config"
)

// App is the environment commands run in: where they read and write,
// the configuration, and the clock. main fills it from the process;
// tests point it at buffers and a fake server.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Config, when non-nil, is used as is. Otherwise it is loaded on
	// first use from ConfigPath and the environment.
	Config     *config.Config
	ConfigPath string

	// APIURL, when set, replaces the configured api.url (the --api-url
	// flag). Verbose forces debug logging.
	APIURL  string
	Verbose bool

	// HTTPClient overrides the forum client's HTTP client.
	HTTPClient *http.Client

	Clock clock.Clock

	// LogLevel is the command logger's level, raised or lowered once
	// the configuration is known.
	LogLevel *slog.LevelVar

	prompter *cli.Prompter
}

// NewApp returns an App bound to the process streams.
func NewApp() *App {
	return &App{
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Clock:    clock.Real(),
		LogLevel: new(slog.LevelVar),
	}
}

func (a *App) config() (*config.Config, error) {
	if a.Config != nil {
		return a.Config, nil
	}
	cfg, err := config.Load(config.Options{Path: a.ConfigPath})
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	if a.APIURL != "" {
		cfg.API.URL = a.APIURL
	}
	if a.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Validation("%w", err)
	}
	if a.LogLevel != nil {
		level, _ := cfg.LogLevel()
		a.LogLevel.Set(level)
	}
	a.Config = cfg
	return cfg, nil
}

func (a *App) now() clock.Clock {
	if a.Clock == nil {
		a.Clock = clock.Real()
	}
	return a.Clock
}

func (a *App) prompt() *cli.Prompter {
	if a.prompter == nil {
		a.prompter = &cli.Prompter{In: a.Stdin, Out: a.Stderr}
	}
	return a.prompter
}

func (a *App) sessionStore(cfg *config.Config) *cli.SessionStore {
	return &cli.SessionStore{
		Path:         cfg.Session.Path,
		Recipient:    cfg.Session.AgeRecipient,
		IdentityPath: cfg.Session.AgeIdentity,
	}
}

// openCache opens the response cache when it is enabled. A cache that
// fails to open is logged and skipped; the CLI works without it.
func (a *App) openCache(cfg *config.Config, logger *slog.Logger) *cache.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}
	compression, err := cache.ParseCompression(cfg.Cache.Compression)
	if err != nil {
		logger.Warn("cache disabled", "error", err)
		return nil
	}
	store, err := cache.Open(cache.Config{
		Path:        cfg.Cache.Path,
		Compression: compression,
		TTL:         cfg.Cache.TTL.Std(),
		Clock:       a.now(),
		Logger:      logger,
	})
	if err != nil {
		logger.Warn("cache disabled", "error", err)
		return nil
	}
	return store
}

// environment is what a command gets from App: a client, optionally a
// session, and a close function releasing the cache.
type environment struct {
	app     *App
	config  *config.Config
	client  *forum.Client
	cache   *cache.Cache
	logger  *slog.Logger
	saved   *cli.SavedSession
	session *forum.Session
}

func (e *environment) Close() {
	if e.client != nil {
		e.client.CloseIdleConnections()
	}
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			e.logger.Warn("closing cache", "error", err)
		}
	}
}

// connect builds an unauthenticated client.
func (a *App) connect(logger *slog.Logger) (*environment, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	env := &environment{app: a, config: cfg, logger: logger}
	env.cache = a.openCache(cfg, logger)

	clientConfig := forum.ClientConfig{
		BaseURL:      cfg.API.URL,
		WebSocketURL: cfg.API.WebSocketURL,
		HTTPClient:   a.HTTPClient,
		Logger:       logger,
	}
	if clientConfig.HTTPClient == nil && cfg.API.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.API.Timeout.Std()}
	}
	if env.cache != nil {
		clientConfig.Cache = env.cache
	}
	client, err := forum.NewClient(clientConfig)
	if err != nil {
		env.Close()
		return nil, cli.Validation("%w", err)
	}
	env.client = client
	return env, nil
}

// authenticate builds a client and restores the saved session. Cookies
// the server rotates during the command are written back to disk.
func (a *App) authenticate(logger *slog.Logger) (*environment, error) {
	env, err := a.connect(logger)
	if err != nil {
		return nil, err
	}
	store := a.sessionStore(env.config)
	saved, err := store.Load()
	if err != nil {
		env.Close()
		return nil, err
	}
	if !sameOrigin(saved.APIURL, env.config.API.URL) {
		env.Close()
		return nil, cli.Unauthenticated("the saved session is for %s, not %s", saved.APIURL, env.config.API.URL).
			WithHint("Run 'agora login' to sign in to this server.")
	}
	credentials, err := store.Credentials(saved)
	if err != nil {
		env.Close()
		return nil, cli.FromAPIError(err)
	}
	session, err := env.client.SessionFromCookies(credentials)
	if err != nil {
		env.Close()
		return nil, cli.FromAPIError(err)
	}
	session.OnCredentialChange(func(updated forum.Credentials) {
		if err := store.Save(saved, updated, a.now().Now()); err != nil {
			logger.Warn("saving refreshed session", "error", err)
			return
		}
		logger.Debug("session refreshed", "path", store.Path)
	})
	env.saved, env.session = saved, session
	return env, nil
}

func sameOrigin(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}

// requireArgs checks the positional argument count.
func requireArgs(args []string, want int, usage string) error {
	if len(args) != want {
		return cli.Validation("expected %d argument(s), got %d", want, len(args)).
			WithHint(fmt.Sprintf("Usage: %s", usage))
	}
	return nil
}

// browse returns a session when one is saved and a plain client
// otherwise, for commands that work either way (a session adds the
// per-user fields such as liked state).
func (a *App) browse(logger *slog.Logger) (*environment, error) {
	env, err := a.authenticate(logger)
	if err == nil {
		return env, nil
	}
	var toolErr *cli.ToolError
	if errors.As(err, &toolErr) && toolErr.Category == cli.CategoryUnauthenticated {
		logger.Debug("browsing anonymously", "reason", toolErr.Err)
		return a.connect(logger)
	}
	return nil, err
}

// reader is the client used for reads: the session's when signed in.
func (e *environment) reader() *forum.Client {
	if e.session != nil {
		return e.session.Client
	}
	return e.client
}

// collectPages fetches page 1, then every remaining page in parallel,
// and returns all items in order.
func collectPages[T any](ctx context.Context, size int, fetch forum.FetchFunc[T]) ([]T, int, error) {
	first, err := fetch(ctx, 1, size)
	if err != nil {
		return nil, 0, err
	}
	pages := make([][]T, max(first.Pages, 1))
	pages[0] = first.Items

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallelPages)
	for page := 2; page <= first.Pages; page++ {
		group.Go(func() error {
			result, err := fetch(groupCtx, page, size)
			if err != nil {
				return err
			}
			pages[page-1] = result.Items
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, 0, err
	}
	return slices.Concat(pages...), first.Total, nil
}

const maxParallelPages = 4
