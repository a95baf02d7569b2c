// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/agora-forum/agora/cmd/agora/cli"
	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/timeago"
	"github.com/agora-forum/agora/lib/validate"
)

// parseID parses a positive numeric id argument.
func parseID(arg, what string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, cli.Validation("invalid %s id %q", what, arg)
	}
	return id, nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
}

// oneLine collapses whitespace and cuts s to width runes.
func oneLine(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

func writePostTable(w io.Writer, posts []forum.Post, now time.Time) error {
	table := newTable(w)
	fmt.Fprintln(table, "ID\tTOPIC\tAUTHOR\tLIKES\tCOMMENTS\tTAGS\tCREATED")
	for _, post := range posts {
		liked := ""
		if post.IsLiked {
			liked = " ♥"
		}
		fmt.Fprintf(table, "%d\t%s\t%s\t%s%s\t%s\t%s\t%s\n",
			post.ID, oneLine(post.Topic, 48), post.User.Username,
			humanize.Comma(int64(post.LikesCount)), liked,
			humanize.Comma(int64(post.CommentsCount)),
			strings.Join(post.Tags, " "), timeago.Format(now, post.CreatedAt.Time))
	}
	return table.Flush()
}

func writeUserTable(w io.Writer, users []forum.User) error {
	table := newTable(w)
	fmt.Fprintln(table, "ID\tUSERNAME\tEMAIL\tBIO")
	for _, user := range users {
		fmt.Fprintf(table, "%d\t%s\t%s\t%s\n", user.ID, user.Username, user.Email, oneLine(user.Bio, 40))
	}
	return table.Flush()
}

func writePost(w io.Writer, post *forum.Post, now time.Time) {
	fmt.Fprintf(w, "#%d %s\n", post.ID, post.Topic)
	fmt.Fprintf(w, "by %s, %s", post.User.Username, timeago.Format(now, post.CreatedAt.Time))
	if len(post.Tags) > 0 {
		fmt.Fprintf(w, " [%s]", strings.Join(post.Tags, " "))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "\n%s\n\n", post.Content)
	for _, file := range post.Files {
		fmt.Fprintf(w, "image: %s\n", file.Link)
	}
	liked := ""
	if post.IsLiked {
		liked = " (liked)"
	}
	fmt.Fprintf(w, "%s%s, %s\n",
		plural(post.LikesCount, "like"), liked, plural(post.CommentsCount, "comment"))
}

func writeComment(w io.Writer, comment forum.Comment, now time.Time) {
	fmt.Fprintf(w, "[%d] %s, %s\n    %s\n", comment.ID, comment.Username,
		timeago.Format(now, comment.CreatedAt.Time), strings.ReplaceAll(comment.Content, "\n", "\n    "))
}

func writeMessage(w io.Writer, message forum.Message, now time.Time) {
	fmt.Fprintf(w, "[%d] %s (%s): %s\n", message.ID, message.Username,
		timeago.Format(now, message.CreatedAt.Time), message.Content)
	for _, file := range message.Files {
		fmt.Fprintf(w, "      image: %s\n", file.Link)
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}

// readUploads loads image files, rejecting anything but png/jpg/jpeg.
func readUploads(paths []string) ([]forum.Upload, error) {
	uploads := make([]forum.Upload, 0, len(paths))
	for _, path := range paths {
		if !validate.IsImageName(path) {
			return nil, cli.Validation("%s: only PNG, JPG, and JPEG formats are allowed", path)
		}
		upload, err := forum.UploadFromFile(path)
		if err != nil {
			return nil, cli.Validation("%w", err)
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

// validationError converts form problems into a validation error, or
// nil when the form is fine.
func validationError(errs validate.Errors) error {
	if err := errs.Err(); err != nil {
		return cli.Validation("%w", err)
	}
	return nil
}
