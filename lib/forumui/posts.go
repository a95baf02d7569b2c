// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forumui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/timeago"
	"github.com/agora-forum/agora/lib/tui"
)

// postRowHeight is the number of lines one post takes in a list:
// topic, byline, excerpt and a blank separator.
const postRowHeight = 4

// postObserver is implemented by screens showing posts, so a like or
// delete made anywhere updates every open copy.
type postObserver interface {
	postChanged(post forum.Post)
	postRemoved(postID int)
}

// postChanged tells every open screen about a post's new like state.
func (model *Model) postChanged(post forum.Post) {
	for _, entry := range model.stack {
		if observer, ok := entry.(postObserver); ok {
			observer.postChanged(post)
		}
	}
}

// postRemoved tells every open screen that a post was deleted and
// closes the screens showing it.
func (model *Model) postRemoved(postID int) {
	kept := model.stack[:1]
	for index, entry := range model.stack {
		if observer, ok := entry.(postObserver); ok {
			observer.postRemoved(postID)
		}
		if viewer, ok := entry.(interface{ showing(int) bool }); ok && index > 0 && viewer.showing(postID) {
			entry.close()
			continue
		}
		if index > 0 {
			kept = append(kept, entry)
		}
	}
	model.stack = kept
}

type postsLoadedMsg struct {
	envelope
	list  *postList
	added int
	err   error
}

type likeResultMsg struct {
	envelope
	post forum.Post
	err  error
}

type postDeletedMsg struct {
	envelope
	postID int
	err    error
}

// toggleLike likes or unlikes post for owner. The local copies change
// once the server accepts.
func (model *Model) toggleLike(owner screen, post forum.Post) tea.Cmd {
	if cmd, ok := model.needSession("like posts"); !ok {
		return cmd
	}
	session, ctx := model.session, model.ctx
	return func() tea.Msg {
		err := session.ToggleLike(ctx, &post)
		return likeResultMsg{envelope: envelope{owner}, post: post, err: err}
	}
}

// deletePost asks for confirmation, then deletes post for owner.
func (model *Model) deletePost(owner screen, post forum.Post) tea.Cmd {
	if !model.isMe(post.User.ID) {
		return model.notify("Only the author can delete this post")
	}
	model.confirm(fmt.Sprintf("Delete %q?", trimTo(post.Topic, 30)), func(model *Model) tea.Cmd {
		session, ctx := model.session, model.ctx
		return func() tea.Msg {
			err := session.DeletePost(ctx, post.ID)
			return postDeletedMsg{envelope: envelope{owner}, postID: post.ID, err: err}
		}
	})
	return nil
}

// editPost opens the composer on post when the user wrote it.
func (model *Model) editPost(post forum.Post) tea.Cmd {
	if !model.isMe(post.User.ID) {
		return model.notify("Only the author can edit this post")
	}
	return model.push(newComposeScreen(model, &post))
}

// handlePostResult applies like and delete results shared by every
// screen listing posts. It reports whether message was one of them.
func (model *Model) handlePostResult(message tea.Msg) (tea.Cmd, bool) {
	switch message := message.(type) {
	case likeResultMsg:
		if message.err != nil {
			return model.fail(message.err), true
		}
		model.postChanged(message.post)
		return nil, true
	case postDeletedMsg:
		if message.err != nil {
			return model.fail(message.err), true
		}
		model.postRemoved(message.postID)
		return model.notify("Post deleted"), true
	}
	return nil, false
}

// postList is an infinite-scroll list of posts, used by the feed,
// search results and profiles.
type postList struct {
	owner  screen
	feed   *forum.Feed[forum.Post]
	items  []forum.Post
	err    error
	empty  string
	cursor int
	offset int
	rows   int
}

func newPostList(model *Model, owner screen, fetch forum.FetchFunc[forum.Post], empty string) *postList {
	return &postList{
		owner: owner,
		feed: forum.NewFeed(fetch, model.config.PostPageSize, forum.FeedOptions{
			Cooldown: model.config.ScrollCooldown,
			Clock:    model.clock,
		}),
		empty: empty,
		rows:  1,
	}
}

// next requests the following page unless one is in flight or all
// posts are loaded.
func (list *postList) next(model *Model) tea.Cmd {
	if !list.feed.HasMore() || list.feed.Fetching() {
		return nil
	}
	feed, ctx := list.feed, model.ctx
	return func() tea.Msg {
		added, err := feed.Next(ctx)
		return postsLoadedMsg{envelope: envelope{list.owner}, list: list, added: added, err: err}
	}
}

// reset forgets every post and loads the first page again.
func (list *postList) reset(model *Model) tea.Cmd {
	list.feed.Reset()
	list.items = nil
	list.err = nil
	list.cursor, list.offset = 0, 0
	return list.next(model)
}

func (list *postList) loaded(model *Model, message postsLoadedMsg) tea.Cmd {
	list.items = list.feed.Items()
	list.err = message.err
	list.clamp()
	if message.err != nil {
		return model.fail(message.err)
	}
	if message.added > 0 && list.nearEnd() {
		return list.next(model)
	}
	return nil
}

// resize sets the height available to the list.
func (list *postList) resize(height int) {
	list.rows = max((height-1)/postRowHeight, 1)
	list.clamp()
}

func (list *postList) nearEnd() bool {
	return list.cursor >= len(list.items)-2
}

func (list *postList) clamp() {
	list.cursor = max(min(list.cursor, len(list.items)-1), 0)
	if list.cursor < list.offset {
		list.offset = list.cursor
	}
	if list.cursor >= list.offset+list.rows {
		list.offset = list.cursor - list.rows + 1
	}
	list.offset = max(min(list.offset, len(list.items)-list.rows), 0)
}

func (list *postList) selected() (forum.Post, bool) {
	if list.cursor < 0 || list.cursor >= len(list.items) {
		return forum.Post{}, false
	}
	return list.items[list.cursor], true
}

func (list *postList) postChanged(post forum.Post) {
	list.feed.Update(func(candidate forum.Post) bool { return candidate.ID == post.ID }, func(stored *forum.Post) {
		stored.IsLiked = post.IsLiked
		stored.LikesCount = post.LikesCount
		stored.CommentsCount = max(stored.CommentsCount, post.CommentsCount)
		if post.Topic != "" {
			stored.Topic, stored.Content, stored.Tags = post.Topic, post.Content, post.Tags
		}
	})
	list.items = list.feed.Items()
}

func (list *postList) postRemoved(postID int) {
	list.feed.Remove(func(candidate forum.Post) bool { return candidate.ID == postID })
	list.items = list.feed.Items()
	list.clamp()
}

// update handles list navigation and the per-post actions.
func (list *postList) update(model *Model, message tea.KeyMsg) tea.Cmd {
	keys := model.keys
	switch {
	case key.Matches(message, keys.Up):
		list.cursor--
	case key.Matches(message, keys.Down):
		list.cursor++
	case key.Matches(message, keys.PageUp):
		list.cursor -= list.rows
	case key.Matches(message, keys.PageDown):
		list.cursor += list.rows
	case key.Matches(message, keys.Home):
		list.cursor = 0
	case key.Matches(message, keys.End):
		list.cursor = len(list.items) - 1
	case key.Matches(message, keys.Refresh):
		return list.reset(model)
	default:
		post, ok := list.selected()
		if !ok {
			return nil
		}
		switch {
		case key.Matches(message, keys.Open):
			return model.push(newPostScreen(model, post))
		case key.Matches(message, keys.Like):
			return model.toggleLike(list.owner, post)
		case key.Matches(message, keys.Edit):
			return model.editPost(post)
		case key.Matches(message, keys.Delete):
			return model.deletePost(list.owner, post)
		case key.Matches(message, keys.Author):
			return model.push(newProfileScreen(model, post.User.ID))
		}
		return nil
	}
	list.clamp()
	if list.nearEnd() {
		return list.next(model)
	}
	return nil
}

func (list *postList) render(model *Model, width, height int) string {
	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	if !list.feed.Loaded() {
		if list.err != nil {
			return faint.Render("Could not load posts: " + describeError(list.err) + " (R to retry)")
		}
		return faint.Render("Loading posts…")
	}
	if len(list.items) == 0 {
		return faint.Render(list.empty)
	}

	bodyWidth := max(width-2, 10)
	var lines []string
	for index := list.offset; index < len(list.items) && index < list.offset+list.rows; index++ {
		lines = append(lines, renderPostRow(model, list.items[index], index == list.cursor, bodyWidth)...)
	}
	bodyHeight := max(height-1, 1)
	body := padBlock(strings.Join(lines, "\n"), bodyWidth, bodyHeight)
	bar := tui.Scrollbar{
		Height:  bodyHeight,
		Total:   len(list.items),
		Visible: list.rows,
		Offset:  list.offset,
	}
	content := lipgloss.JoinHorizontal(lipgloss.Top, body, " ", bar.Render(model.theme, true))

	footer := fmt.Sprintf("%d of %s posts", len(list.items), humanize.Comma(int64(list.feed.Total())))
	switch {
	case list.feed.Fetching():
		footer += " · loading…"
	case !list.feed.HasMore():
		footer += " · end"
	}
	return content + "\n" + faint.Render(footer)
}

// renderPostRow draws one post as postRowHeight lines.
func renderPostRow(model *Model, post forum.Post, selected bool, width int) []string {
	theme := model.theme
	marker := "  "
	topicStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.NormalText)
	if selected {
		marker = lipgloss.NewStyle().Foreground(theme.FocusAccent).Render("▌ ")
		topicStyle = topicStyle.Foreground(theme.SelectedForeground).Background(theme.SelectedBackground)
	}
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)

	topic := marker + topicStyle.Render(trimTo(post.Topic, width-2))
	byline := "  " + byline(model, post)
	excerpt := ""
	if lines := tui.Excerpt(post.Content, width-2, 1); len(lines) > 0 {
		excerpt = "  " + faint.Render(lines[0])
	}
	return []string{tui.FitWidth(topic, width), tui.FitWidth(byline, width), tui.FitWidth(excerpt, width), ""}
}

// byline renders "@author · 3 hours ago · ♥ 4 · 2 comments · #tag".
func byline(model *Model, post forum.Post) string {
	theme := model.theme
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)
	author := lipgloss.NewStyle().Foreground(theme.AuthorColor).Render("@" + post.User.Username)

	heart := faint.Render("♡ " + humanize.Comma(int64(post.LikesCount)))
	if post.IsLiked {
		heart = lipgloss.NewStyle().Foreground(theme.LikeColor).Render("♥ " + humanize.Comma(int64(post.LikesCount)))
	}
	parts := []string{
		author,
		faint.Render(timeago.Format(model.clock.Now(), post.CreatedAt.Time)),
		heart,
		faint.Render(pluralize(post.CommentsCount, "comment")),
	}
	if len(post.Tags) > 0 {
		tags := make([]string, len(post.Tags))
		for index, tag := range post.Tags {
			tags[index] = "#" + tag
		}
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.TagForeground).Render(strings.Join(tags, " ")))
	}
	return strings.Join(parts, faint.Render(" · "))
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}

// trimTo cuts text to at most width runes, ending in an ellipsis.
func trimTo(text string, width int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if width < 1 || len(runes) <= width {
		return text
	}
	return string(runes[:width-1]) + "…"
}

// feedScreen is the main post feed, newest first.
type feedScreen struct {
	posts *postList
}

func newFeedScreen(model *Model) *feedScreen {
	screen := &feedScreen{}
	screen.posts = newPostList(model, screen, model.reader().ListPosts, "No posts yet. Press n to write the first one.")
	return screen
}

func (s *feedScreen) title() string { return "Feed" }

func (s *feedScreen) help() string {
	return "↑↓ move  Enter open  l like  a author  n new post  e/d edit/delete  R reload"
}

func (s *feedScreen) typing() bool { return false }
func (s *feedScreen) close()       {}

func (s *feedScreen) init(model *Model) tea.Cmd {
	_, height := model.contentSize()
	s.posts.resize(height)
	return s.posts.next(model)
}

func (s *feedScreen) update(model *Model, message tea.Msg) tea.Cmd {
	if cmd, ok := model.handlePostResult(message); ok {
		return cmd
	}
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		_, height := model.contentSize()
		s.posts.resize(height)
	case postsLoadedMsg:
		return s.posts.loaded(model, message)
	case tea.KeyMsg:
		return s.posts.update(model, message)
	}
	return nil
}

func (s *feedScreen) render(model *Model, width, height int) string {
	return s.posts.render(model, width, height)
}

func (s *feedScreen) postChanged(post forum.Post) { s.posts.postChanged(post) }
func (s *feedScreen) postRemoved(postID int)      { s.posts.postRemoved(postID) }
