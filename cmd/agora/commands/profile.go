// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/agora-forum/agora/cmd/agora/cli"
	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/validate"
)

func profileCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:    "profile",
		Summary: "Your profile and account",
		Subcommands: []*cli.Command{
			profileShowCommand(app),
			profileEditCommand(app),
			profilePasswordCommand(app),
			profileDeleteCommand(app),
		},
	}
}

type profileShowParams struct {
	cli.JSONOutput
}

type profileView struct {
	User  *forum.User       `json:"user"`
	Posts *forum.Page[forum.Post] `json:"posts"`
}

func profileShowCommand(app *App) *cli.Command {
	var params profileShowParams
	return &cli.Command{
		Name:        "show",
		Summary:     "Show your profile and newest posts",
		Description: "Show your own profile, or another user's when an id or username is given.",
		Usage:       "agora profile show [id|username]",
		Params:      func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 1 {
				return requireArgs(args, 1, "agora profile show [id|username]")
			}
			var env *environment
			var err error
			if len(args) == 0 {
				env, err = app.authenticate(logger)
			} else {
				env, err = app.browse(logger)
			}
			if err != nil {
				return err
			}
			defer env.Close()

			var view profileView
			if len(args) == 0 {
				view.User, err = env.session.Me(ctx)
			} else {
				view.User, err = env.reader().GetUser(ctx, args[0])
			}
			if err != nil {
				return cli.FromAPIError(err)
			}
			view.Posts, err = env.reader().ListUserPosts(ctx, view.User.ID, 1, forum.PostPageSize)
			if err != nil {
				return cli.FromAPIError(err)
			}

			if done, err := params.EmitJSON(app.Stdout, view); done {
				return err
			}
			writeUser(app, view.User)
			fmt.Fprintf(app.Stdout, "posts:   %d\n", view.Posts.Total)
			if len(view.Posts.Items) > 0 {
				fmt.Fprintln(app.Stdout)
				return writePostTable(app.Stdout, view.Posts.Items, app.now().Now())
			}
			return nil
		},
	}
}

type profileEditParams struct {
	Username string `flag:"username" desc:"new username"`
	Bio      string `flag:"bio" desc:"new bio (up to 200 characters)"`
	ClearBio bool   `flag:"clear-bio" desc:"remove the bio"`
	Picture  string `flag:"picture" desc:"PNG or JPEG file to use as profile picture"`
}

func profileEditCommand(app *App) *cli.Command {
	var params profileEditParams
	return &cli.Command{
		Name:    "edit",
		Summary: "Change your username, bio or picture",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}
			env, err := app.authenticate(logger)
			if err != nil {
				return err
			}
			defer env.Close()

			// The current profile and the picture file are independent;
			// read both before validating.
			var me *forum.User
			var picture *forum.Upload
			group, groupCtx := errgroup.WithContext(ctx)
			group.Go(func() error {
				var err error
				me, err = env.session.Me(groupCtx)
				return cli.FromAPIError(err)
			})
			if params.Picture != "" {
				group.Go(func() error {
					uploads, err := readUploads([]string{params.Picture})
					if err != nil {
						return err
					}
					picture = &uploads[0]
					return nil
				})
			}
			if err := group.Wait(); err != nil {
				return err
			}

			edit := forum.ProfileEdit{Username: me.Username, Bio: me.Bio, Picture: picture}
			if params.Username != "" {
				edit.Username = strings.TrimSpace(params.Username)
			}
			switch {
			case params.ClearBio:
				edit.Bio = ""
			case params.Bio != "":
				edit.Bio = strings.TrimSpace(params.Bio)
			}
			form := validate.ProfileForm{Username: edit.Username, Bio: edit.Bio, Picture: params.Picture}
			if err := validationError(validate.Profile(form)); err != nil {
				return err
			}

			updated, err := env.session.EditProfile(ctx, me, edit)
			if err != nil {
				return cli.FromAPIError(err)
			}
			if updated.Username != env.saved.Username {
				saved := *env.saved
				saved.Username = updated.Username
				store := app.sessionStore(env.config)
				if err := store.Save(&saved, env.session.Credentials(), app.now().Now()); err != nil {
					logger.Warn("session file not updated", "error", err)
				}
			}
			fmt.Fprintln(app.Stdout, "Profile updated")
			writeUser(app, updated)
			return nil
		},
	}
}

func profilePasswordCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:        "password",
		Summary:     "Change your password",
		Description: "Asks for the current password and the new one twice.",
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			prompter := app.prompt()
			current, err := prompter.Password("Current password")
			if err != nil {
				return err
			}
			defer current.Close()
			replacement, err := prompter.Password("New password")
			if err != nil {
				return err
			}
			defer replacement.Close()
			confirmation, err := prompter.Password("Repeat new password")
			if err != nil {
				return err
			}
			defer confirmation.Close()

			errs := validate.ChangePassword(current.String(), replacement.String(), confirmation.String())
			if err := validationError(errs); err != nil {
				return err
			}
			env, err := app.authenticate(logger)
			if err != nil {
				return err
			}
			defer env.Close()
			if err := env.session.ChangePassword(ctx, current.String(), replacement.String()); err != nil {
				return cli.FromAPIError(err)
			}
			fmt.Fprintln(app.Stdout, "Password changed")
			return nil
		},
	}
}

type deleteAccountParams struct {
	Yes bool `flag:"yes,y" desc:"do not ask for confirmation"`
}

func profileDeleteCommand(app *App) *cli.Command {
	var params deleteAccountParams
	return &cli.Command{
		Name:        "delete",
		Summary:     "Delete your account",
		Description: "Permanently delete the account after confirming the password. The saved session is removed.",
		Params:      func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			env, err := app.authenticate(logger)
			if err != nil {
				return err
			}
			defer env.Close()

			prompter := app.prompt()
			if !params.Yes {
				confirmed, err := prompter.Confirm(fmt.Sprintf("Delete the account %s for good?", env.saved.Username))
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(app.Stdout, "Cancelled")
					return &cli.ExitError{Code: 1}
				}
			}
			password, err := prompter.Password("Password")
			if err != nil {
				return err
			}
			defer password.Close()
			if err := validationError(validate.DeleteAccount(password.String())); err != nil {
				return err
			}
			if err := env.session.DeleteAccount(ctx, password.String()); err != nil {
				return cli.FromAPIError(err)
			}
			if err := app.sessionStore(env.config).Remove(); err != nil {
				return err
			}
			fmt.Fprintln(app.Stdout, "Account deleted")
			return nil
		},
	}
}
