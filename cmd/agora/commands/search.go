// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"
	"strings"

	"github.com/agora-forum/agora/cmd/agora/cli"
	"github.com/agora-forum/agora/forum"
)

func searchCommand(app *App) *cli.Command {
	var params PageFlags
	return &cli.Command{
		Name:    "search",
		Summary: "Search posts, or users with a leading @",
		Description: `Search posts by topic, content and tags. A query starting with "@"
searches usernames instead. Browsing a tag is a search for the tag.`,
		Usage:  "agora search <query>...",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{Description: "Posts about gardening", Command: "agora search gardening"},
			{Description: "Users named like ali", Command: "agora search @ali"},
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) == 0 {
				return cli.Validation("a search query is required")
			}
			if err := params.check(); err != nil {
				return err
			}
			query := strings.TrimSpace(strings.Join(args, " "))
			env, err := app.browse(logger)
			if err != nil {
				return err
			}
			defer env.Close()
			reader := env.reader()

			if strings.HasPrefix(query, "@") {
				return app.listUsers(ctx, &params, func(ctx context.Context, page, size int) (*forum.Page[forum.User], error) {
					return reader.SearchUsers(ctx, query, page, size)
				})
			}
			return app.listPosts(ctx, &params, forum.PostPageSize, func(ctx context.Context, page, size int) (*forum.Page[forum.Post], error) {
				return reader.SearchPosts(ctx, query, page, size)
			})
		},
	}
}
