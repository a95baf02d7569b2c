// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forumui

import (
	"context"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/tui"
)

// profileHeaderHeight is the rows above the post list.
const profileHeaderHeight = 5

type userFetchedMsg struct {
	envelope
	user *forum.User
	err  error
}

// profileScreen shows an account and the posts it wrote. On the
// signed-in user's own profile it also offers logging out.
type profileScreen struct {
	userID int
	user   *forum.User
	err    error
	posts  *postList
}

func newProfileScreen(model *Model, userID int) *profileScreen {
	screen := &profileScreen{userID: userID}
	client := model.reader()
	screen.posts = newPostList(model, screen, func(ctx context.Context, page, size int) (*forum.Page[forum.Post], error) {
		return client.ListUserPosts(ctx, userID, page, size)
	}, "No posts yet.")
	return screen
}

func (s *profileScreen) title() string {
	if s.user != nil {
		return "@" + s.user.Username
	}
	return "Profile"
}

func (s *profileScreen) help() string {
	return "↑↓ move  Enter open  l like  m message  O log out  R reload"
}

func (s *profileScreen) typing() bool { return false }
func (s *profileScreen) close()       {}

func (s *profileScreen) init(model *Model) tea.Cmd {
	_, height := model.contentSize()
	s.posts.resize(height - profileHeaderHeight)

	ctx, userID := model.ctx, s.userID
	var fetch tea.Cmd
	if session := model.session; session != nil && model.isMe(userID) {
		fetch = func() tea.Msg {
			user, err := session.Me(ctx)
			return userFetchedMsg{envelope: envelope{s}, user: user, err: err}
		}
	} else {
		client := model.reader()
		fetch = func() tea.Msg {
			user, err := client.GetUser(ctx, strconv.Itoa(userID))
			return userFetchedMsg{envelope: envelope{s}, user: user, err: err}
		}
	}
	return tea.Batch(fetch, s.posts.next(model))
}

func (s *profileScreen) update(model *Model, message tea.Msg) tea.Cmd {
	if cmd, ok := model.handlePostResult(message); ok {
		return cmd
	}
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		_, height := model.contentSize()
		s.posts.resize(height - profileHeaderHeight)

	case userFetchedMsg:
		if message.err != nil {
			s.err = message.err
			return model.fail(message.err)
		}
		s.user = message.user
		if model.isMe(s.user.ID) {
			model.me = s.user
		}

	case postsLoadedMsg:
		return s.posts.loaded(model, message)

	case tea.KeyMsg:
		switch {
		case key.Matches(message, model.keys.Message):
			if s.user == nil {
				return nil
			}
			if model.isMe(s.userID) {
				return model.notify("That's you")
			}
			return model.openChatWith(*s.user)
		case key.Matches(message, model.keys.Logout):
			if !model.isMe(s.userID) {
				return nil
			}
			model.confirm("Log out?", func(model *Model) tea.Cmd { return model.logout() })
			return nil
		case key.Matches(message, model.keys.Refresh):
			s.user, s.err = nil, nil
			s.posts.feed.Reset()
			s.posts.items = nil
			s.posts.cursor, s.posts.offset = 0, 0
			return s.init(model)
		}
		return s.posts.update(model, message)
	}
	return nil
}

func (s *profileScreen) render(model *Model, width, height int) string {
	theme := model.theme
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)

	var header []string
	switch {
	case s.user != nil:
		name := lipgloss.NewStyle().Bold(true).Foreground(theme.AuthorColor).Render("@" + s.user.Username)
		if model.isMe(s.user.ID) {
			name += faint.Render("  (you)")
		}
		header = append(header, name, faint.Render(s.user.Email))
		bio := tui.Excerpt(s.user.Bio, width, 2)
		if len(bio) == 0 {
			bio = []string{"No bio."}
		}
		for _, line := range bio {
			header = append(header, lipgloss.NewStyle().Foreground(theme.NormalText).Render(line))
		}
	case s.err != nil:
		header = append(header, lipgloss.NewStyle().Foreground(theme.ErrorText).Render(describeError(s.err)))
	default:
		header = append(header, faint.Render("Loading profile…"))
	}
	for len(header) < profileHeaderHeight-1 {
		header = append(header, "")
	}
	header = append(header, lipgloss.NewStyle().Foreground(theme.BorderColor).Render(strings.Repeat("─", width)))
	return strings.Join(header, "\n") + "\n" + s.posts.render(model, width, height-profileHeaderHeight)
}

func (s *profileScreen) postChanged(post forum.Post) { s.posts.postChanged(post) }
func (s *profileScreen) postRemoved(postID int)      { s.posts.postRemoved(postID) }
