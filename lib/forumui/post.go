// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forumui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/timeago"
	"github.com/agora-forum/agora/lib/tui"
	"github.com/agora-forum/agora/lib/validate"
)

// composerHeight is the number of rows of the comment and message
// input, border included.
const composerHeight = 5

type postFetchedMsg struct {
	envelope
	post *forum.Post
	err  error
}

type commentsLoadedMsg struct {
	envelope
	added int
	older bool
	err   error
}

type commentStreamMsg struct {
	envelope
	stream *forum.CommentStream
	err    error
}

// commentMsg carries one live comment. ok is false once the stream
// has ended.
type commentMsg struct {
	envelope
	comment forum.Comment
	ok      bool
}

type commentSentMsg struct {
	envelope
	err error
}

// postScreen shows one post with its comments. Older comments load on
// demand; new ones arrive over the post's comment stream while the
// screen is open.
type postScreen struct {
	post     forum.Post
	fetched  bool
	comments *forum.History[forum.Comment]
	err      error

	ctx    context.Context
	cancel context.CancelFunc
	stream *forum.CommentStream

	viewport  viewport.Model
	// follow keeps the view on the newest comment.
	follow    bool
	editor    tui.Editor
	composing bool
	sending   bool

	// rendered caches markdown by comment id at renderedWidth.
	rendered      map[int]string
	renderedWidth int
}

func newPostScreen(model *Model, post forum.Post) *postScreen {
	postID := post.ID
	fetch := func(ctx context.Context, page, size int) (*forum.Page[forum.Comment], error) {
		return model.reader().ListComments(ctx, postID, page, size)
	}
	return &postScreen{
		post:     post,
		comments: forum.NewHistory(fetch, model.config.CommentPageSize, func(comment forum.Comment) int { return comment.ID }),
		editor:   tui.NewEditor(validate.ContentMax),
		rendered: make(map[int]string),
	}
}

func (s *postScreen) title() string { return trimTo(s.post.Topic, 40) }

func (s *postScreen) help() string {
	if s.composing {
		return "Enter send  Esc close"
	}
	return "↑↓ scroll  i comment  o older  l like  a author  e/d edit/delete  Esc back"
}

func (s *postScreen) typing() bool { return s.composing }

func (s *postScreen) close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.stream != nil {
		_ = s.stream.Close()
	}
}

func (s *postScreen) init(model *Model) tea.Cmd {
	s.ctx, s.cancel = context.WithCancel(model.ctx)
	s.resize(model)

	client, ctx, postID := model.reader(), s.ctx, s.post.ID
	cmds := []tea.Cmd{
		func() tea.Msg {
			post, err := client.GetPost(ctx, postID)
			return postFetchedMsg{envelope: envelope{s}, post: post, err: err}
		},
		s.loadComments(false),
	}
	if session := model.session; session != nil {
		cmds = append(cmds, func() tea.Msg {
			stream, err := session.OpenComments(ctx, postID)
			return commentStreamMsg{envelope: envelope{s}, stream: stream, err: err}
		})
	}
	return tea.Batch(cmds...)
}

func (s *postScreen) loadComments(older bool) tea.Cmd {
	comments, ctx := s.comments, s.ctx
	return func() tea.Msg {
		var added int
		var err error
		if older {
			added, err = comments.LoadOlder(ctx)
		} else {
			err = comments.Load(ctx)
		}
		return commentsLoadedMsg{envelope: envelope{s}, added: added, older: older, err: err}
	}
}

// waitComment reads the next frame of the comment stream.
func (s *postScreen) waitComment(stream *forum.CommentStream) tea.Cmd {
	return func() tea.Msg {
		comment, ok := <-stream.Comments()
		return commentMsg{envelope: envelope{s}, comment: comment, ok: ok}
	}
}

func (s *postScreen) resize(model *Model) {
	width, height := model.contentSize()
	s.viewport.Width = max(width-2, 10)
	s.viewport.Height = height
	if s.composing {
		s.viewport.Height = max(height-composerHeight, 1)
	}
}

func (s *postScreen) update(model *Model, message tea.Msg) tea.Cmd {
	if cmd, ok := model.handlePostResult(message); ok {
		return cmd
	}
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		s.resize(model)

	case postFetchedMsg:
		if message.err != nil {
			s.err = message.err
			return model.fail(message.err)
		}
		s.post = *message.post
		s.fetched = true

	case commentsLoadedMsg:
		if message.err != nil {
			s.err = message.err
			return model.fail(message.err)
		}
		if message.older {
			if message.added == 0 {
				return model.notify("No older comments")
			}
			s.follow = false
			s.viewport.GotoTop()
		}

	case commentStreamMsg:
		if message.err != nil {
			model.logger.Warn("comment stream unavailable", "post", s.post.ID, "error", message.err)
			return nil
		}
		s.stream = message.stream
		return s.waitComment(message.stream)

	case commentMsg:
		if !message.ok {
			if err := s.stream.Err(); err != nil {
				model.logger.Warn("comment stream ended", "post", s.post.ID, "error", err)
			}
			s.stream = nil
			return nil
		}
		cmds := []tea.Cmd{s.waitComment(s.stream)}
		if s.comments.Append(message.comment) {
			s.post.CommentsCount++
			model.postChanged(s.post)
			cmds = append(cmds, model.ignite(message.comment.ID))
		}
		return tea.Batch(cmds...)

	case commentSentMsg:
		s.sending = false
		if message.err != nil {
			return model.fail(message.err)
		}
		s.editor.Reset()
		s.follow = true

	case tea.KeyMsg:
		if s.composing {
			return s.updateComposer(model, message)
		}
		return s.updateKeys(model, message)
	}
	return nil
}

func (s *postScreen) updateKeys(model *Model, message tea.KeyMsg) tea.Cmd {
	keys := model.keys
	switch {
	case key.Matches(message, keys.Up):
		s.viewport.LineUp(1)
		s.follow = false
	case key.Matches(message, keys.Down):
		s.viewport.LineDown(1)
		s.follow = s.viewport.AtBottom()
	case key.Matches(message, keys.PageUp):
		s.viewport.HalfViewUp()
		s.follow = false
	case key.Matches(message, keys.PageDown):
		s.viewport.HalfViewDown()
		s.follow = s.viewport.AtBottom()
	case key.Matches(message, keys.Home):
		s.viewport.GotoTop()
		s.follow = false
	case key.Matches(message, keys.End):
		s.viewport.GotoBottom()
		s.follow = true
	case key.Matches(message, keys.Older):
		if !s.comments.HasOlder() {
			return model.notify("No older comments")
		}
		return s.loadComments(true)
	case key.Matches(message, keys.Reply):
		if cmd, ok := model.needSession("comment"); !ok {
			return cmd
		}
		if s.stream == nil {
			return model.notify("Comments are read-only right now")
		}
		s.composing = true
		s.resize(model)
		s.follow = true
	case key.Matches(message, keys.Like):
		return model.toggleLike(s, s.post)
	case key.Matches(message, keys.Edit):
		return model.editPost(s.post)
	case key.Matches(message, keys.Delete):
		return model.deletePost(s, s.post)
	case key.Matches(message, keys.Author):
		return model.push(newProfileScreen(model, s.post.User.ID))
	case key.Matches(message, keys.Refresh):
		s.close()
		s.stream = nil
		s.rendered = make(map[int]string)
		return s.init(model)
	}
	return nil
}

func (s *postScreen) updateComposer(model *Model, message tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(message, model.keys.Cancel):
		s.composing = false
		s.resize(model)
		return nil
	case message.Type == tea.KeyEnter && !message.Alt:
		if s.sending {
			return nil
		}
		text := strings.TrimSpace(s.editor.Value())
		if errs := validate.Comment(text); len(errs) > 0 {
			return model.warn(errs.First())
		}
		stream := s.stream
		if stream == nil {
			return model.notify("Comments are read-only right now")
		}
		s.sending = true
		return func() tea.Msg {
			return commentSentMsg{envelope: envelope{s}, err: stream.Send(text)}
		}
	}
	s.editor.Update(message)
	return nil
}

func (s *postScreen) postChanged(post forum.Post) {
	if post.ID != s.post.ID {
		return
	}
	s.post.IsLiked, s.post.LikesCount = post.IsLiked, post.LikesCount
	if post.Topic != "" {
		s.post.Topic, s.post.Content, s.post.Tags = post.Topic, post.Content, post.Tags
	}
}

// showing reports whether the screen displays postID.
func (s *postScreen) showing(postID int) bool { return s.post.ID == postID }

func (s *postScreen) render(model *Model, width, height int) string {
	if s.err != nil && !s.fetched && s.post.Topic == "" {
		return lipgloss.NewStyle().Foreground(model.theme.ErrorText).Render(describeError(s.err))
	}

	offset := s.viewport.YOffset
	s.viewport.SetContent(s.content(model, s.viewport.Width))
	if s.follow {
		s.viewport.GotoBottom()
	} else {
		s.viewport.SetYOffset(offset)
	}

	bar := tui.Scrollbar{
		Height:  s.viewport.Height,
		Total:   s.viewport.TotalLineCount(),
		Visible: s.viewport.Height,
		Offset:  s.viewport.YOffset,
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		padBlock(s.viewport.View(), s.viewport.Width, s.viewport.Height),
		" ",
		bar.Render(model.theme, !s.composing))
	if !s.composing {
		return body
	}
	return body + "\n" + renderComposer(model, s.editor, "Comment", width)
}

// content builds the scrollable text: the post, then its comments
// oldest first.
func (s *postScreen) content(model *Model, width int) string {
	theme := model.theme
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)
	var out strings.Builder

	out.WriteString(lipgloss.NewStyle().Bold(true).Foreground(theme.HeaderForeground).Render(s.post.Topic))
	out.WriteString("\n")
	out.WriteString(byline(model, s.post))
	out.WriteString("\n\n")
	if s.err != nil && s.post.Content == "" {
		out.WriteString(faint.Render(describeError(s.err)))
	} else {
		out.WriteString(tui.RenderMarkdown(s.post.Content, theme, width))
	}
	out.WriteString("\n")
	for _, file := range s.post.Files {
		out.WriteString(lipgloss.NewStyle().Foreground(theme.LinkForeground).Render("🖼 " + file.Link))
		out.WriteString("\n")
	}

	comments := s.comments.Items()
	heading := fmt.Sprintf("── %s ", pluralize(max(s.post.CommentsCount, len(comments)), "comment"))
	out.WriteString("\n")
	out.WriteString(faint.Render(heading + strings.Repeat("─", max(width-len([]rune(heading)), 0))))
	out.WriteString("\n")
	switch {
	case !s.comments.Loaded():
		out.WriteString(faint.Render("Loading comments…"))
		return out.String()
	case len(comments) == 0:
		out.WriteString(faint.Render("No comments yet."))
		return out.String()
	case s.comments.HasOlder():
		out.WriteString(faint.Render("o: load older comments"))
		out.WriteString("\n")
	}

	if width != s.renderedWidth {
		s.rendered = make(map[int]string)
		s.renderedWidth = width
	}
	now := model.clock.Now()
	for _, comment := range comments {
		out.WriteString("\n")
		marker := "  "
		if heat := model.heat.Heat(comment.ID, now); heat > 0 {
			marker = lipgloss.NewStyle().Foreground(theme.HotAccent).Render(heatMarker(heat) + " ")
		}
		author := lipgloss.NewStyle().Foreground(theme.AuthorColor).Render("@" + comment.Username)
		out.WriteString(marker + author + faint.Render(" · "+timeago.Format(now, comment.CreatedAt.Time)))
		out.WriteString("\n")
		rendered, ok := s.rendered[comment.ID]
		if !ok {
			rendered = tui.RenderMarkdown(comment.Content, theme, max(width-2, 10))
			s.rendered[comment.ID] = rendered
		}
		for line := range strings.SplitSeq(rendered, "\n") {
			out.WriteString("  " + line + "\n")
		}
	}
	return strings.TrimRight(out.String(), "\n")
}

// heatMarker fades from a full dot to a small one as heat decays.
func heatMarker(heat float64) string {
	switch {
	case heat > 0.66:
		return "●"
	case heat > 0.33:
		return "•"
	default:
		return "·"
	}
}

// renderComposer draws a bordered editor with a character counter.
func renderComposer(model *Model, editor tui.Editor, label string, width int) string {
	theme := model.theme
	inner := max(width-2, 10)
	lines := editor.Render(theme, inner, composerHeight-2, true)
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.FocusAccent).
		Width(inner)
	counter := lipgloss.NewStyle().Foreground(theme.FaintText).
		Render(fmt.Sprintf(" %s · %d · Enter send · Esc close", label, editor.Len()))
	box := border.Render(strings.Join(lines, "\n"))
	boxLines := strings.Split(box, "\n")
	if len(boxLines) > 0 {
		boxLines[0] = tui.SpliceOverlay(boxLines[0], []string{counter}, 2, 0)
	}
	return strings.Join(boxLines, "\n")
}
