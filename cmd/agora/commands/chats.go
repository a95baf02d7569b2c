// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/agora-forum/agora/cmd/agora/cli"
	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/timeago"
	"github.com/agora-forum/agora/lib/tui"
	"github.com/agora-forum/agora/lib/validate"
)

func chatsCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:    "chats",
		Summary: "Direct messages",
		Subcommands: []*cli.Command{
			chatsListCommand(app),
			chatsHistoryCommand(app),
			chatsSendCommand(app),
			chatsDeleteCommand(app),
			chatsWatchCommand(app),
		},
	}
}

type chatsListParams struct {
	cli.JSONOutput
	Filter string `json:"filter" flag:"filter,f" desc:"fuzzy filter on the companion's name"`
}

func chatsListCommand(app *App) *cli.Command {
	var params chatsListParams
	return &cli.Command{
		Name:    "list",
		Summary: "List your conversations",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			env, err := app.authenticate(logger)
			if err != nil {
				return err
			}
			defer env.Close()

			chats, _, err := collectPages(ctx, forum.ChatPageSize, env.session.ListChats)
			if err != nil {
				return cli.FromAPIError(err)
			}
			ranked := tui.FuzzyFilter(chats, params.Filter, func(chat forum.Chat) string {
				return chat.Username + " " + chat.Name
			})
			filtered := make([]forum.Chat, len(ranked))
			for i, entry := range ranked {
				filtered[i] = entry.Item
			}

			if done, err := params.EmitJSON(app.Stdout, filtered); done {
				return err
			}
			if len(filtered) == 0 {
				fmt.Fprintln(app.Stdout, "No conversations")
				return nil
			}
			now := app.now().Now()
			table := newTable(app.Stdout)
			fmt.Fprintln(table, "USER\tNAME\tCONVERSATION\tLAST MESSAGE\tWHEN")
			for _, chat := range filtered {
				fmt.Fprintf(table, "%d\t%s\t%d\t%s\t%s\n", chat.UserID, chat.Username, chat.ID,
					oneLine(chat.LastMessage, 40), timeago.Format(now, chat.CreatedAt.Time))
			}
			return table.Flush()
		},
	}
}

type historyParams struct {
	cli.JSONOutput
	All bool `json:"all" flag:"all" desc:"load the whole conversation"`
}

func chatsHistoryCommand(app *App) *cli.Command {
	var params historyParams
	return &cli.Command{
		Name:        "history",
		Summary:     "Show the conversation with a user",
		Description: "Print the newest messages with a user, oldest first. --all loads the entire conversation.",
		Usage:       "agora chats history <user-id> [--all]",
		Params:      func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 1, "agora chats history <user-id>"); err != nil {
				return err
			}
			companionID, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			env, err := app.authenticate(logger)
			if err != nil {
				return err
			}
			defer env.Close()

			history := forum.NewHistory(func(ctx context.Context, page, size int) (*forum.Page[forum.Message], error) {
				return env.session.ChatHistory(ctx, companionID, page, size)
			}, forum.MessagePageSize, func(message forum.Message) int { return message.ID })

			err = history.Load(ctx)
			if errors.Is(err, forum.ErrNoConversation) {
				if done, err := params.EmitJSON(app.Stdout, []forum.Message(nil)); done {
					return err
				}
				fmt.Fprintln(app.Stdout, "No messages yet")
				return nil
			}
			if err != nil {
				return cli.FromAPIError(err)
			}
			for params.All && history.HasOlder() {
				if _, err := history.LoadOlder(ctx); err != nil {
					return cli.FromAPIError(err)
				}
			}

			messages := history.Items()
			if done, err := params.EmitJSON(app.Stdout, messages); done {
				return err
			}
			now := app.now().Now()
			for _, message := range messages {
				writeMessage(app.Stdout, message, now)
			}
			if history.HasOlder() {
				fmt.Fprintln(app.Stdout, "(older messages not shown; use --all)")
			}
			return nil
		},
	}
}

func chatsSendCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:        "send",
		Summary:     "Send a direct message",
		Description: "Send a message to a user. The first message starts the conversation.",
		Usage:       "agora chats send <user-id> <text>...",
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) < 2 {
				return requireArgs(args, 2, "agora chats send <user-id> <text>...")
			}
			companionID, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			text := strings.TrimSpace(strings.Join(args[1:], " "))
			if err := validationError(validate.Message(text, 0)); err != nil {
				return err
			}
			env, err := app.authenticate(logger)
			if err != nil {
				return err
			}
			defer env.Close()
			if companionID == env.saved.UserID {
				return cli.Validation("you cannot message yourself")
			}

			message, err := env.session.SendMessage(ctx, companionID, text)
			if err != nil {
				return cli.FromAPIError(err)
			}
			fmt.Fprintf(app.Stdout, "Sent message %d (conversation %d)\n", message.ID, message.ConversationID)
			return nil
		},
	}
}

func chatsDeleteCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:    "delete",
		Summary: "Delete one of your messages",
		Usage:   "agora chats delete <message-id>",
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 1, "agora chats delete <message-id>"); err != nil {
				return err
			}
			messageID, err := parseID(args[0], "message")
			if err != nil {
				return err
			}
			env, err := app.authenticate(logger)
			if err != nil {
				return err
			}
			defer env.Close()
			if err := env.session.DeleteMessage(ctx, messageID); err != nil {
				return cli.FromAPIError(err)
			}
			fmt.Fprintf(app.Stdout, "Deleted message %d\n", messageID)
			return nil
		},
	}
}

type watchParams struct {
	User int `flag:"user,u" desc:"find the conversation with this user instead of passing its id"`
}

func chatsWatchCommand(app *App) *cli.Command {
	var params watchParams
	return &cli.Command{
		Name:    "watch",
		Summary: "Follow a conversation live and reply from stdin",
		Description: `Connect to a conversation's live channel. Incoming messages are
printed as they arrive and every line typed on stdin is sent. The
command runs until interrupted or until the server closes the channel.`,
		Usage:  "agora chats watch <conversation-id> | --user <user-id>",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			env, err := app.authenticate(logger)
			if err != nil {
				return err
			}
			defer env.Close()

			conversationID, err := resolveConversation(ctx, env.session, args, params.User)
			if err != nil {
				return err
			}
			watchCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			stream, err := env.session.OpenChat(watchCtx, conversationID)
			if err != nil {
				return cli.FromAPIError(err)
			}
			defer stream.Close()
			logger.Info("watching conversation", "conversation_id", conversationID)

			group := new(errgroup.Group)
			group.Go(func() error {
				for message := range stream.Messages() {
					writeMessage(app.Stdout, message, app.now().Now())
				}
				cancel()
				return stream.Err()
			})
			group.Go(func() error {
				lines := readLines(watchCtx, app.Stdin)
				for {
					select {
					case line, ok := <-lines:
						if !ok {
							// Input ended; keep printing until interrupted.
							lines = nil
							continue
						}
						if err := stream.Send(line, nil); err != nil {
							return err
						}
					case <-watchCtx.Done():
						return nil
					}
				}
			})
			if err := group.Wait(); err != nil && !errors.Is(err, forum.ErrStreamClosed) {
				return cli.Transient("chat stream: %w", err)
			}
			return nil
		},
	}
}

// resolveConversation returns the conversation id from args, or looks
// it up from the first page of history with userID.
func resolveConversation(ctx context.Context, session *forum.Session, args []string, userID int) (int, error) {
	switch {
	case len(args) == 1 && userID == 0:
		return parseID(args[0], "conversation")
	case len(args) == 0 && userID > 0:
		page, err := session.ChatHistory(ctx, userID, 1, 1)
		if errors.Is(err, forum.ErrNoConversation) {
			return 0, cli.NotFound("no conversation with user %d yet", userID).
				WithHint(fmt.Sprintf("Start one with 'agora chats send %d <text>'.", userID))
		}
		if err != nil {
			return 0, cli.FromAPIError(err)
		}
		if len(page.Items) == 0 {
			return 0, cli.NotFound("no conversation with user %d yet", userID)
		}
		return page.Items[0].ConversationID, nil
	}
	return 0, cli.Validation("pass either a conversation id or --user")
}

// readLines delivers trimmed non-empty lines of input until EOF or ctx
// ends. The reader goroutine may outlive ctx while blocked on input.
func readLines(ctx context.Context, input io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		if input == nil {
			return
		}
		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
