// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forumui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agora-forum/agora/forum"
)

// searchDebounceMsg fires after a pause in typing. Only the one
// matching the latest keystroke runs a search.
type searchDebounceMsg struct {
	envelope
	sequence int
}

// searchScreen searches posts by topic and tag, or users when the
// query starts with "@". Every change of the query starts over from
// the first page.
type searchScreen struct {
	input    textinput.Model
	sequence int
	query    string
	posts    *postList
	users    *userList
}

func newSearchScreen(model *Model) *searchScreen {
	input := textinput.New()
	input.Placeholder = "Search posts, or @name for users"
	input.Prompt = "/ "
	input.CharLimit = 100
	input.Focus()
	return &searchScreen{input: input}
}

func (s *searchScreen) title() string { return "Search" }

func (s *searchScreen) help() string {
	if s.input.Focused() {
		return "type to search  ↓/Tab results  Esc leave input"
	}
	return "↑↓ move  Enter open  l like  m message  Tab edit query"
}

func (s *searchScreen) typing() bool { return s.input.Focused() }
func (s *searchScreen) close()       {}

func (s *searchScreen) init(model *Model) tea.Cmd { return nil }

// search starts over for the current input.
func (s *searchScreen) search(model *Model) tea.Cmd {
	query := strings.TrimSpace(s.input.Value())
	if query == s.query {
		return nil
	}
	s.query = query
	s.posts, s.users = nil, nil
	if query == "" {
		return nil
	}
	_, height := model.contentSize()
	if name, ok := strings.CutPrefix(query, "@"); ok {
		if name == "" {
			return nil
		}
		client := model.reader()
		s.users = newUserList(model, s, func(ctx context.Context, page, size int) (*forum.Page[forum.User], error) {
			return client.SearchUsers(ctx, name, page, size)
		}, "No users match "+query)
		s.users.resize(height - 2)
		return s.users.next(model)
	}
	client := model.reader()
	s.posts = newPostList(model, s, func(ctx context.Context, page, size int) (*forum.Page[forum.Post], error) {
		return client.SearchPosts(ctx, query, page, size)
	}, "No posts match "+query)
	s.posts.resize(height - 2)
	return s.posts.next(model)
}

func (s *searchScreen) update(model *Model, message tea.Msg) tea.Cmd {
	if cmd, ok := model.handlePostResult(message); ok {
		return cmd
	}
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		_, height := model.contentSize()
		if s.posts != nil {
			s.posts.resize(height - 2)
		}
		if s.users != nil {
			s.users.resize(height - 2)
		}

	case searchDebounceMsg:
		if message.sequence == s.sequence {
			return s.search(model)
		}

	case postsLoadedMsg:
		if message.list == s.posts {
			return s.posts.loaded(model, message)
		}

	case usersLoadedMsg:
		if message.list == s.users {
			return s.users.loaded(model, message)
		}

	case tea.KeyMsg:
		if s.input.Focused() {
			return s.updateInput(model, message)
		}
		if key.Matches(message, model.keys.NextField) {
			return s.input.Focus()
		}
		switch {
		case s.posts != nil:
			return s.posts.update(model, message)
		case s.users != nil:
			return s.users.update(model, message)
		}
	}
	return nil
}

func (s *searchScreen) updateInput(model *Model, message tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(message, model.keys.Cancel):
		s.input.Blur()
		return nil
	case key.Matches(message, model.keys.NextField), message.Type == tea.KeyDown:
		s.input.Blur()
		return nil
	case message.Type == tea.KeyEnter:
		s.sequence++
		cmd := s.search(model)
		if s.posts != nil || s.users != nil {
			s.input.Blur()
		}
		return cmd
	}
	before := s.input.Value()
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(message)
	if s.input.Value() == before {
		return cmd
	}
	s.sequence++
	return tea.Batch(cmd, model.after(model.config.SearchDebounce, searchDebounceMsg{envelope: envelope{s}, sequence: s.sequence}))
}

func (s *searchScreen) render(model *Model, width, height int) string {
	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	header := s.input.View()
	var body string
	switch {
	case s.posts != nil:
		body = s.posts.render(model, width, height-2)
	case s.users != nil:
		body = s.users.render(model, width, height-2)
	case s.query == "":
		body = faint.Render("Search topics and tags. Start with @ to find people.")
	default:
		body = faint.Render("Type a name after @")
	}
	return header + "\n\n" + body
}

func (s *searchScreen) postChanged(post forum.Post) {
	if s.posts != nil {
		s.posts.postChanged(post)
	}
}

func (s *searchScreen) postRemoved(postID int) {
	if s.posts != nil {
		s.posts.postRemoved(postID)
	}
}
