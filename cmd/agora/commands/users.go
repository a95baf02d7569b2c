// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/agora-forum/agora/cmd/agora/cli"
	"github.com/agora-forum/agora/forum"
)

func usersCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:    "users",
		Summary: "Find users and read their posts",
		Subcommands: []*cli.Command{
			usersListCommand(app),
			usersShowCommand(app),
			usersPostsCommand(app),
		},
	}
}

type usersListParams struct {
	PageFlags
	Filter string `json:"filter" flag:"filter,f" desc:"only users whose name matches"`
}

func usersListCommand(app *App) *cli.Command {
	var params usersListParams
	return &cli.Command{
		Name:    "list",
		Summary: "List users",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := params.check(); err != nil {
				return err
			}
			env, err := app.browse(logger)
			if err != nil {
				return err
			}
			defer env.Close()
			reader := env.reader()
			return app.listUsers(ctx, &params.PageFlags, func(ctx context.Context, page, size int) (*forum.Page[forum.User], error) {
				return reader.SearchUsers(ctx, params.Filter, page, size)
			})
		},
	}
}

func (a *App) listUsers(ctx context.Context, params *PageFlags, fetch forum.FetchFunc[forum.User]) error {
	size := forum.UserPageSize
	if params.Size > 0 {
		size = params.Size
	}
	var users []forum.User
	var page, pages, total int
	if params.All {
		items, count, err := collectPages(ctx, size, fetch)
		if err != nil {
			return cli.FromAPIError(err)
		}
		users, total, page, pages = items, count, 1, 1
	} else {
		result, err := fetch(ctx, params.Page, size)
		if err != nil {
			return cli.FromAPIError(err)
		}
		users, total, page, pages = result.Items, result.Total, result.Page, result.Pages
	}

	if done, err := params.EmitJSON(a.Stdout, users); done {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(a.Stdout, "No users")
		return nil
	}
	if err := writeUserTable(a.Stdout, users); err != nil {
		return err
	}
	if pages > 1 {
		fmt.Fprintf(a.Stdout, "\npage %d of %d (%s)\n", page, pages, plural(total, "user"))
	}
	return nil
}

type userShowParams struct {
	cli.JSONOutput
}

func usersShowCommand(app *App) *cli.Command {
	var params userShowParams
	return &cli.Command{
		Name:    "show",
		Summary: "Show a user by id or username",
		Usage:   "agora users show <id|username>",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 1, "agora users show <id|username>"); err != nil {
				return err
			}
			env, err := app.browse(logger)
			if err != nil {
				return err
			}
			defer env.Close()
			user, err := env.reader().GetUser(ctx, args[0])
			if err != nil {
				return cli.FromAPIError(err)
			}
			if done, err := params.EmitJSON(app.Stdout, user); done {
				return err
			}
			writeUser(app, user)
			return nil
		},
	}
}

func writeUser(app *App, user *forum.User) {
	fmt.Fprintf(app.Stdout, "%s (user %d)\n", user.Username, user.ID)
	if user.Email != "" {
		fmt.Fprintf(app.Stdout, "email:   %s\n", user.Email)
	}
	if user.Bio != "" {
		fmt.Fprintf(app.Stdout, "bio:     %s\n", user.Bio)
	}
	if user.ProfilePicture != "" {
		fmt.Fprintf(app.Stdout, "picture: %s\n", user.ProfilePicture)
	}
}

func usersPostsCommand(app *App) *cli.Command {
	var params PageFlags
	return &cli.Command{
		Name:    "posts",
		Summary: "List a user's posts",
		Usage:   "agora users posts <id|username>",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 1, "agora users posts <id|username>"); err != nil {
				return err
			}
			if err := params.check(); err != nil {
				return err
			}
			env, err := app.browse(logger)
			if err != nil {
				return err
			}
			defer env.Close()
			reader := env.reader()

			userID, err := strconv.Atoi(args[0])
			if err != nil {
				user, err := reader.GetUser(ctx, args[0])
				if err != nil {
					return cli.FromAPIError(err)
				}
				userID = user.ID
			}
			return app.listPosts(ctx, &params, forum.PostPageSize, func(ctx context.Context, page, size int) (*forum.Page[forum.Post], error) {
				return reader.ListUserPosts(ctx, userID, page, size)
			})
		},
	}
}
