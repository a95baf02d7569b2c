// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agora-forum/agora/cmd/agora/cli"
	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/cache"
	"github.com/agora-forum/agora/lib/validate"
)

// commentEchoTimeout bounds how long "posts comment" waits for the
// server to broadcast the new comment back.
const commentEchoTimeout = 10 * time.Second

func postsCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:    "posts",
		Summary: "Browse, write and discuss posts",
		Subcommands: []*cli.Command{
			postsListCommand(app),
			postsShowCommand(app),
			postsCreateCommand(app),
			postsEditCommand(app),
			postsDeleteCommand(app),
			postsLikeCommand(app, true),
			postsLikeCommand(app, false),
			postsCommentCommand(app),
			postsWatchCommand(app),
		},
	}
}

// PageFlags are the paging flags shared by list commands. Flag binding
// can only reach through exported embedded structs.
type PageFlags struct {
	cli.JSONOutput
	Page int  `json:"page" flag:"page" desc:"page number" default:"1"`
	Size int  `json:"size" flag:"size" desc:"items per page (0 for the server default)"`
	All  bool `json:"all" flag:"all" desc:"fetch every page"`
}

func (p *PageFlags) check() error {
	if p.Page < 1 {
		return cli.Validation("--page must be at least 1")
	}
	if p.Size < 0 {
		return cli.Validation("--size must not be negative")
	}
	return nil
}

// listPosts runs a paged post query and prints it.
func (a *App) listPosts(ctx context.Context, params *PageFlags, size int, fetch forum.FetchFunc[forum.Post]) error {
	if params.Size > 0 {
		size = params.Size
	}
	var posts []forum.Post
	var total, page, pages int
	if params.All {
		items, count, err := collectPages(ctx, size, fetch)
		if err != nil {
			return cli.FromAPIError(err)
		}
		posts, total, page, pages = items, count, 1, 1
	} else {
		result, err := fetch(ctx, params.Page, size)
		if err != nil {
			return cli.FromAPIError(err)
		}
		posts, total, page, pages = result.Items, result.Total, result.Page, result.Pages
	}

	if done, err := params.EmitJSON(a.Stdout, posts); done {
		return err
	}
	if len(posts) == 0 {
		fmt.Fprintln(a.Stdout, "No posts")
		return nil
	}
	if err := writePostTable(a.Stdout, posts, a.now().Now()); err != nil {
		return err
	}
	if !params.All && pages > 1 {
		fmt.Fprintf(a.Stdout, "\npage %d of %d (%s)\n", page, pages, plural(total, "post"))
	}
	return nil
}

func postsListCommand(app *App) *cli.Command {
	var params PageFlags
	return &cli.Command{
		Name:    "list",
		Summary: "List the newest posts",
		Params:  func() any { return &params },
		Examples: []cli.Example{
			{Description: "Second page of the feed", Command: "agora posts list --page 2"},
			{Description: "Everything, as JSON", Command: "agora posts list --all --json"},
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := params.check(); err != nil {
				return err
			}
			env, err := app.browse(logger)
			if err != nil {
				return err
			}
			defer env.Close()
			return app.listPosts(ctx, &params, forum.PostPageSize, env.reader().ListPosts)
		},
	}
}

type showParams struct {
	cli.JSONOutput
	Comments    bool `json:"comments" flag:"comments,c" desc:"include comments"`
	CommentPage int  `json:"comment_page" flag:"comment-page" desc:"comment page (default: the last)"`
}

type postWithComments struct {
	Post     *forum.Post                `json:"post"`
	Comments *forum.Page[forum.Comment] `json:"comments,omitempty"`
}

func postsShowCommand(app *App) *cli.Command {
	var params showParams
	return &cli.Command{
		Name:    "show",
		Summary: "Show a post and its comments",
		Usage:   "agora posts show <post-id> [--comments]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 1, "agora posts show <post-id>"); err != nil {
				return err
			}
			postID, err := parseID(args[0], "post")
			if err != nil {
				return err
			}
			env, err := app.browse(logger)
			if err != nil {
				return err
			}
			defer env.Close()
			reader := env.reader()

			var result postWithComments
			group, groupCtx := errgroup.WithContext(ctx)
			group.Go(func() error {
				post, err := reader.GetPost(groupCtx, postID)
				result.Post = post
				return err
			})
			if params.Comments {
				group.Go(func() error {
					page, err := lastCommentPage(groupCtx, reader, postID, params.CommentPage)
					result.Comments = page
					return err
				})
			}
			if err := group.Wait(); err != nil {
				return cli.FromAPIError(err)
			}

			if done, err := params.EmitJSON(app.Stdout, result); done {
				return err
			}
			now := app.now().Now()
			writePost(app.Stdout, result.Post, now)
			if result.Comments != nil {
				fmt.Fprintf(app.Stdout, "\nComments (page %d of %d):\n", result.Comments.Page, max(result.Comments.Pages, 1))
				for _, comment := range result.Comments.Items {
					writeComment(app.Stdout, comment, now)
				}
			}
			return nil
		},
	}
}

// lastCommentPage returns the requested comment page, or the newest
// one when page is 0.
func lastCommentPage(ctx context.Context, reader *forum.Client, postID, page int) (*forum.Page[forum.Comment], error) {
	if page > 0 {
		return reader.ListComments(ctx, postID, page, forum.CommentPageSize)
	}
	first, err := reader.ListComments(ctx, postID, 1, forum.CommentPageSize)
	if err != nil || first.Pages <= 1 {
		return first, err
	}
	return reader.ListComments(ctx, postID, first.Pages, forum.CommentPageSize)
}

type createParams struct {
	cli.JSONOutput
	Topic     string   `json:"topic" flag:"topic,t" desc:"post topic (3-200 characters)"`
	Content   string   `json:"content" flag:"content,m" desc:"post content (10-800 characters)"`
	Tags      []string `json:"tags" flag:"tag" desc:"tag; repeat or separate with spaces"`
	Images    []string `json:"images" flag:"image" desc:"PNG or JPEG file to attach; repeatable"`
	FromDraft string   `json:"from_draft" flag:"from-draft" desc:"publish the named draft (flags override its fields)"`
	SaveDraft string   `json:"save_draft" flag:"save-draft" desc:"save as the named draft instead of publishing"`
}

func (p *createParams) tags() []string {
	return forum.SplitTags(strings.Join(p.Tags, " "))
}

func postsCreateCommand(app *App) *cli.Command {
	var params createParams
	return &cli.Command{
		Name:    "create",
		Summary: "Publish a new post",
		Usage:   "agora posts create --topic <topic> --content <text> [--tag t]... [--image file]...",
		Params:  func() any { return &params },
		Examples: []cli.Example{
			{
				Description: "Post with tags and a picture",
				Command:     "agora posts create -t 'Weekend trip' -m 'Photos from the hills' --tag travel --image hill.jpg",
			},
			{
				Description: "Keep it as a draft for later",
				Command:     "agora posts create -t 'Half done' -m 'to be continued...' --save-draft trip",
			},
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}
			cfg, err := app.config()
			if err != nil {
				return err
			}

			draft := cache.Draft{Topic: params.Topic, Content: params.Content, Tags: params.tags(), Images: params.Images}
			var drafts *cache.Cache
			if params.FromDraft != "" || params.SaveDraft != "" {
				if drafts, err = app.openDrafts(cfg, logger); err != nil {
					return err
				}
				defer drafts.Close()
			}
			if params.FromDraft != "" {
				stored, err := drafts.Draft(ctx, params.FromDraft)
				if errors.Is(err, cache.ErrDraftNotFound) {
					return cli.NotFound("no draft named %q", params.FromDraft)
				} else if err != nil {
					return cli.Internal("%w", err)
				}
				draft = mergeDraft(stored, draft)
			}

			if params.SaveDraft != "" {
				draft.Name = params.SaveDraft
				if draft.Empty() {
					return cli.Validation("nothing to save")
				}
				saved, err := drafts.SaveDraft(ctx, draft)
				if err != nil {
					return cli.Internal("%w", err)
				}
				fmt.Fprintf(app.Stdout, "Saved draft %q\n", saved.Name)
				return nil
			}

			form := validate.PostForm{
				Topic:   strings.TrimSpace(draft.Topic),
				Content: strings.TrimSpace(draft.Content),
				Tags:    strings.Join(draft.Tags, " "),
				Images:  draft.Images,
			}
			if err := validationError(validate.Post(form)); err != nil {
				return err
			}
			uploads, err := readUploads(draft.Images)
			if err != nil {
				return err
			}

			env, err := app.authenticate(logger)
			if err != nil {
				return err
			}
			defer env.Close()
			post, err := env.session.CreatePost(ctx, forum.NewPost{
				Topic:   draft.Topic,
				Content: draft.Content,
				Tags:    draft.Tags,
				Files:   uploads,
			})
			if err != nil {
				return cli.FromAPIError(err)
			}

			if params.FromDraft != "" {
				if err := drafts.DeleteDraft(ctx, params.FromDraft); err != nil {
					logger.Warn("published draft not removed", "draft", params.FromDraft, "error", err)
				}
			}
			if done, err := params.EmitJSON(app.Stdout, post); done {
				return err
			}
			fmt.Fprintf(app.Stdout, "Created post %d\n", post.ID)
			return nil
		},
	}
}

// mergeDraft overlays the non-empty fields of flags onto stored.
func mergeDraft(stored, flags cache.Draft) cache.Draft {
	if flags.Topic != "" {
		stored.Topic = flags.Topic
	}
	if flags.Content != "" {
		stored.Content = flags.Content
	}
	if len(flags.Tags) > 0 {
		stored.Tags = flags.Tags
	}
	if len(flags.Images) > 0 {
		stored.Images = flags.Images
	}
	return stored
}

type editParams struct {
	Topic     string   `flag:"topic,t" desc:"new topic"`
	Content   string   `flag:"content,m" desc:"new content"`
	Tags      []string `flag:"tag" desc:"replacement tags; repeat or separate with spaces"`
	ClearTags bool     `flag:"clear-tags" desc:"remove every tag"`
}

func postsEditCommand(app *App) *cli.Command {
	var params editParams
	return &cli.Command{
		Name:        "edit",
		Summary:     "Edit one of your posts",
		Description: "Change the topic, content or tags of a post you wrote. Only the fields that differ are sent.",
		Usage:       "agora posts edit <post-id> [--topic t] [--content text] [--tag t]... [--clear-tags]",
		Params:      func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 1, "agora posts edit <post-id>"); err != nil {
				return err
			}
			postID, err := parseID(args[0], "post")
			if err != nil {
				return err
			}
			env, err := app.authenticate(logger)
			if err != nil {
				return err
			}
			defer env.Close()

			post, err := env.session.GetPost(ctx, postID)
			if err != nil {
				return cli.FromAPIError(err)
			}
			if post.User.ID != env.saved.UserID {
				return cli.Forbidden("post %d belongs to %s", post.ID, post.User.Username)
			}

			edit := forum.PostEdit{Topic: post.Topic, Content: post.Content, Tags: post.Tags}
			if params.Topic != "" {
				edit.Topic = strings.TrimSpace(params.Topic)
			}
			if params.Content != "" {
				edit.Content = strings.TrimSpace(params.Content)
			}
			switch {
			case params.ClearTags:
				edit.Tags = nil
			case len(params.Tags) > 0:
				edit.Tags = forum.SplitTags(strings.Join(params.Tags, " "))
			}
			form := validate.PostForm{Topic: edit.Topic, Content: edit.Content, Tags: forum.JoinTags(edit.Tags)}
			if err := validationError(validate.Post(form)); err != nil {
				return err
			}

			if err := env.session.EditPost(ctx, post, edit); err != nil {
				return cli.FromAPIError(err)
			}
			fmt.Fprintf(app.Stdout, "Updated post %d\n", post.ID)
			return nil
		},
	}
}

func postsDeleteCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:    "delete",
		Summary: "Delete one of your posts",
		Usage:   "agora posts delete <post-id>",
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 1, "agora posts delete <post-id>"); err != nil {
				return err
			}
			postID, err := parseID(args[0], "post")
			if err != nil {
				return err
			}
			env, err := app.authenticate(logger)
			if err != nil {
				return err
			}
			defer env.Close()
			if err := env.session.DeletePost(ctx, postID); err != nil {
				return cli.FromAPIError(err)
			}
			fmt.Fprintf(app.Stdout, "Deleted post %d\n", postID)
			return nil
		},
	}
}

func postsLikeCommand(app *App, like bool) *cli.Command {
	name, summary, done := "like", "Like a post", "Liked"
	if !like {
		name, summary, done = "unlike", "Remove your like from a post", "Unliked"
	}
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   fmt.Sprintf("agora posts %s <post-id>", name),
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 1, fmt.Sprintf("agora posts %s <post-id>", name)); err != nil {
				return err
			}
			postID, err := parseID(args[0], "post")
			if err != nil {
				return err
			}
			env, err := app.authenticate(logger)
			if err != nil {
				return err
			}
			defer env.Close()

			if like {
				err = env.session.LikePost(ctx, postID)
			} else {
				err = env.session.UnlikePost(ctx, postID)
			}
			if err != nil {
				return cli.FromAPIError(err)
			}
			fmt.Fprintf(app.Stdout, "%s post %d\n", done, postID)
			return nil
		},
	}
}

func postsCommentCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:        "comment",
		Summary:     "Comment on a post",
		Description: "Send a comment over the post's live channel. Quote the text or pass it as several words.",
		Usage:       "agora posts comment <post-id> <text>...",
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) < 2 {
				return requireArgs(args, 2, "agora posts comment <post-id> <text>...")
			}
			postID, err := parseID(args[0], "post")
			if err != nil {
				return err
			}
			text := strings.TrimSpace(strings.Join(args[1:], " "))
			if err := validationError(validate.Comment(text)); err != nil {
				return err
			}

			env, err := app.authenticate(logger)
			if err != nil {
				return err
			}
			defer env.Close()

			streamCtx, cancel := context.WithTimeout(ctx, commentEchoTimeout)
			defer cancel()
			stream, err := env.session.OpenComments(streamCtx, postID)
			if err != nil {
				return cli.FromAPIError(err)
			}
			defer stream.Close()
			if err := stream.Send(text); err != nil {
				return cli.Transient("sending comment: %w", err)
			}

			for {
				select {
				case comment, ok := <-stream.Comments():
					if !ok {
						return cli.Transient("comment channel closed before the comment was confirmed")
					}
					if comment.UserID != env.saved.UserID || comment.Content != text {
						continue
					}
					fmt.Fprintf(app.Stdout, "Commented on post %d (comment %d)\n", postID, comment.ID)
					return nil
				case <-streamCtx.Done():
					return cli.Transient("no confirmation from the server within %s", commentEchoTimeout)
				}
			}
		},
	}
}

func postsWatchCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:        "watch",
		Summary:     "Print new comments on a post as they arrive",
		Description: "Stay connected to the post's live channel and print each new comment until interrupted.",
		Usage:       "agora posts watch <post-id>",
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 1, "agora posts watch <post-id>"); err != nil {
				return err
			}
			postID, err := parseID(args[0], "post")
			if err != nil {
				return err
			}
			env, err := app.authenticate(logger)
			if err != nil {
				return err
			}
			defer env.Close()

			stream, err := env.session.OpenComments(ctx, postID)
			if err != nil {
				return cli.FromAPIError(err)
			}
			defer stream.Close()
			logger.Info("watching comments", "post_id", postID)

			for comment := range stream.Comments() {
				writeComment(app.Stdout, comment, app.now().Now())
			}
			if err := stream.Err(); err != nil {
				return cli.Transient("comment stream: %w", err)
			}
			return nil
		},
	}
}
