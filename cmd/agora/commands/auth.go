// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/agora-forum/agora/cmd/agora/cli"
	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/config"
	"github.com/agora-forum/agora/lib/secret"
	"github.com/agora-forum/agora/lib/validate"
)

type loginParams struct {
	PasswordFile string `flag:"password-file" desc:"read the password from this file (- for stdin) instead of prompting"`
}

func loginCommand(app *App) *cli.Command {
	var params loginParams
	return &cli.Command{
		Name:    "login",
		Summary: "Sign in and save the session",
		Description: `Sign in with email and password. The password is read from the
terminal without echo, or from --password-file. The session cookies
are saved to the session file (sealed with age when
session.age_recipient is configured), so later commands run without
asking again.`,
		Usage:  "agora login [email] [--password-file path]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{Description: "Sign in", Command: "agora login alice@example.com"},
			{Description: "Sign in from a script", Command: "agora login alice@example.com --password-file ~/.agora-password"},
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 1 {
				return requireArgs(args, 1, "agora login [email]")
			}
			prompter := app.prompt()
			email := ""
			if len(args) == 1 {
				email = args[0]
			} else {
				line, err := prompter.Line("Email")
				if err != nil {
					return err
				}
				email = strings.TrimSpace(line)
			}
			var password *secret.Buffer
			var err error
			if params.PasswordFile != "" {
				password, err = secret.ReadFromPath(params.PasswordFile)
				if err != nil {
					return cli.Validation("reading password: %w", err)
				}
			} else if password, err = prompter.Password("Password"); err != nil {
				return err
			}
			defer password.Close()
			if err := validationError(validate.Login(email, password.String())); err != nil {
				return err
			}
			return app.signIn(ctx, logger, email, password.String())
		},
	}
}

// signIn logs in, saves the session and reports who is signed in.
func (a *App) signIn(ctx context.Context, logger *slog.Logger, email, password string) error {
	env, err := a.connect(logger)
	if err != nil {
		return err
	}
	defer env.Close()

	session, err := env.client.Login(ctx, email, password)
	if err != nil {
		if forum.IsStatus(err, http.StatusBadRequest) || forum.IsUnauthorized(err) {
			return cli.Unauthenticated("Wrong email or password")
		}
		return cli.FromAPIError(err)
	}
	me, err := session.Me(ctx)
	if err != nil {
		return cli.FromAPIError(err)
	}
	if err := a.saveSession(env, session, me, logger); err != nil {
		return err
	}
	fmt.Fprintf(a.Stdout, "Logged in as %s (%s)\n", me.Username, me.Email)
	return nil
}

// saveSession writes session to the session file and keeps the file
// current when the server rotates the cookies.
func (a *App) saveSession(env *environment, session *forum.Session, me *forum.User, logger *slog.Logger) error {
	saved := &cli.SavedSession{
		APIURL:       env.client.BaseURL(),
		WebSocketURL: env.client.WebSocketURL(),
		UserID:       me.ID,
		Username:     me.Username,
		Email:        me.Email,
	}
	store := a.sessionStore(env.config)
	if err := store.Save(saved, session.Credentials(), a.now().Now()); err != nil {
		return err
	}
	session.OnCredentialChange(func(updated forum.Credentials) {
		if err := store.Save(saved, updated, a.now().Now()); err != nil {
			logger.Warn("saving refreshed session", "error", err)
		}
	})
	logger.Info("session saved", "path", store.Path, "user_id", me.ID)
	return nil
}

func registerCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:    "register",
		Summary: "Create an account and sign in",
		Description: `Create an account. The password is asked twice. Usernames are 3 to
20 characters; passwords are 8 to 20 characters with at least one
digit, one uppercase and one lowercase letter.`,
		Usage: "agora register <username> <email>",
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 2, "agora register <username> <email>"); err != nil {
				return err
			}
			username, email := args[0], args[1]
			prompter := app.prompt()
			password, err := prompter.Password("Password")
			if err != nil {
				return err
			}
			defer password.Close()
			confirmation, err := prompter.Password("Repeat password")
			if err != nil {
				return err
			}
			defer confirmation.Close()

			form := validate.RegisterForm{
				Username:     username,
				Email:        email,
				Password:     password.String(),
				Confirmation: confirmation.String(),
			}
			if err := validationError(validate.Register(form)); err != nil {
				return err
			}

			env, err := app.connect(logger)
			if err != nil {
				return err
			}
			message, err := env.client.Register(ctx, username, email, password.String())
			env.Close()
			if err != nil {
				return cli.FromAPIError(err)
			}
			if message != "" {
				fmt.Fprintln(app.Stdout, message)
			}
			return app.signIn(ctx, logger, email, password.String())
		},
	}
}

func logoutCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:    "logout",
		Summary: "Sign out and forget the saved session",
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			cfg, err := app.config()
			if err != nil {
				return err
			}
			store := app.sessionStore(cfg)
			if env, err := app.authenticate(logger); err == nil {
				if err := env.session.Logout(ctx); err != nil {
					logger.Warn("server logout failed", "error", err)
				}
				env.Close()
			}
			if err := store.Remove(); err != nil {
				return err
			}
			app.clearResponses(ctx, cfg, logger)
			fmt.Fprintln(app.Stdout, "Logged out")
			return nil
		},
	}
}

// clearResponses drops every cached response so the next account on
// this machine never reads the previous one's data offline. Drafts are
// kept.
func (a *App) clearResponses(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	if _, err := os.Stat(cfg.Cache.Path); err != nil {
		return
	}
	store, err := a.openDrafts(cfg, logger)
	if err != nil {
		logger.Warn("response cache not cleared", "error", err)
		return
	}
	defer store.Close()
	if _, err := store.Clear(ctx); err != nil {
		logger.Warn("response cache not cleared", "error", err)
	}
}

type whoamiParams struct {
	cli.JSONOutput
}

type whoamiResult struct {
	forum.User
	APIURL         string    `json:"api_url"`
	TokenExpiresAt time.Time `json:"token_expires_at,omitzero"`
	Session        string    `json:"session_file"`
}

func whoamiCommand(app *App) *cli.Command {
	var params whoamiParams
	return &cli.Command{
		Name:    "whoami",
		Summary: "Show the signed-in user",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			env, err := app.authenticate(logger)
			if err != nil {
				return err
			}
			defer env.Close()

			me, err := env.session.Me(ctx)
			if err != nil {
				return cli.FromAPIError(err)
			}
			result := whoamiResult{User: *me, APIURL: env.saved.APIURL, Session: app.sessionStore(env.config).String()}
			if token, err := forum.ParseToken(env.session.Credentials().AccessToken); err == nil {
				result.TokenExpiresAt = token.ExpiresAt
			} else {
				logger.Debug("access token not inspectable", "error", err)
			}

			if done, err := params.EmitJSON(app.Stdout, result); done {
				return err
			}
			fmt.Fprintf(app.Stdout, "%s (%s), user %d\n", me.Username, me.Email, me.ID)
			fmt.Fprintf(app.Stdout, "server:  %s\n", result.APIURL)
			if !result.TokenExpiresAt.IsZero() {
				now := app.now().Now()
				state := "expires"
				if !result.TokenExpiresAt.After(now) {
					state = "expired"
				}
				fmt.Fprintf(app.Stdout, "token:   %s %s\n", state, result.TokenExpiresAt.Local().Format(time.DateTime))
			}
			fmt.Fprintf(app.Stdout, "session: %s\n", result.Session)
			return nil
		},
	}
}
