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
	"github.com/agora-forum/agora/lib/tui"
)

const userRowHeight = 3

type usersLoadedMsg struct {
	envelope
	list  *userList
	added int
	err   error
}

// userList is an infinite-scroll list of accounts, used by the users
// screen and by "@" searches.
type userList struct {
	owner  screen
	feed   *forum.Feed[forum.User]
	items  []forum.User
	err    error
	empty  string
	cursor int
	offset int
	rows   int
}

func newUserList(model *Model, owner screen, fetch forum.FetchFunc[forum.User], empty string) *userList {
	return &userList{
		owner: owner,
		feed: forum.NewFeed(fetch, forum.UserPageSize, forum.FeedOptions{
			Cooldown: model.config.ScrollCooldown,
			Clock:    model.clock,
		}),
		empty: empty,
		rows:  1,
	}
}

func (list *userList) next(model *Model) tea.Cmd {
	if !list.feed.HasMore() || list.feed.Fetching() {
		return nil
	}
	feed, ctx := list.feed, model.ctx
	return func() tea.Msg {
		added, err := feed.Next(ctx)
		return usersLoadedMsg{envelope: envelope{list.owner}, list: list, added: added, err: err}
	}
}

func (list *userList) loaded(model *Model, message usersLoadedMsg) tea.Cmd {
	list.items = list.feed.Items()
	list.err = message.err
	list.clamp()
	if message.err != nil {
		return model.fail(message.err)
	}
	if message.added > 0 && list.cursor >= len(list.items)-2 {
		return list.next(model)
	}
	return nil
}

func (list *userList) resize(height int) {
	list.rows = max((height-1)/userRowHeight, 1)
	list.clamp()
}

func (list *userList) clamp() {
	list.cursor = max(min(list.cursor, len(list.items)-1), 0)
	if list.cursor < list.offset {
		list.offset = list.cursor
	}
	if list.cursor >= list.offset+list.rows {
		list.offset = list.cursor - list.rows + 1
	}
	list.offset = max(min(list.offset, len(list.items)-list.rows), 0)
}

func (list *userList) update(model *Model, message tea.KeyMsg) tea.Cmd {
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
		list.feed.Reset()
		list.items, list.err = nil, nil
		list.cursor, list.offset = 0, 0
		return list.next(model)
	default:
		if list.cursor >= len(list.items) {
			return nil
		}
		user := list.items[list.cursor]
		switch {
		case key.Matches(message, keys.Open):
			return model.push(newProfileScreen(model, user.ID))
		case key.Matches(message, keys.Message):
			return model.openChatWith(user)
		}
		return nil
	}
	list.clamp()
	if list.cursor >= len(list.items)-2 {
		return list.next(model)
	}
	return nil
}

func (list *userList) render(model *Model, width, height int) string {
	theme := model.theme
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)
	if !list.feed.Loaded() {
		if list.err != nil {
			return faint.Render("Could not load users: " + describeError(list.err) + " (R to retry)")
		}
		return faint.Render("Loading users…")
	}
	if len(list.items) == 0 {
		return faint.Render(list.empty)
	}

	bodyWidth := max(width-2, 10)
	var lines []string
	for index := list.offset; index < len(list.items) && index < list.offset+list.rows; index++ {
		user := list.items[index]
		marker := "  "
		name := lipgloss.NewStyle().Bold(true).Foreground(theme.AuthorColor)
		if index == list.cursor {
			marker = lipgloss.NewStyle().Foreground(theme.FocusAccent).Render("▌ ")
			name = name.Foreground(theme.SelectedForeground).Background(theme.SelectedBackground)
		}
		heading := marker + name.Render("@"+user.Username) + faint.Render("  "+user.Email)
		if model.isMe(user.ID) {
			heading += faint.Render("  (you)")
		}
		about := ""
		if bio := tui.Excerpt(user.Bio, bodyWidth-2, 1); len(bio) > 0 {
			about = "  " + faint.Render(bio[0])
		}
		lines = append(lines, tui.FitWidth(heading, bodyWidth), tui.FitWidth(about, bodyWidth), "")
	}
	bodyHeight := max(height-1, 1)
	bar := tui.Scrollbar{Height: bodyHeight, Total: len(list.items), Visible: list.rows, Offset: list.offset}
	content := lipgloss.JoinHorizontal(lipgloss.Top,
		padBlock(strings.Join(lines, "\n"), bodyWidth, bodyHeight), " ", bar.Render(theme, true))

	footer := fmt.Sprintf("%d of %s users", len(list.items), humanize.Comma(int64(list.feed.Total())))
	if list.feed.Fetching() {
		footer += " · loading…"
	}
	return content + "\n" + faint.Render(footer)
}

// usersScreen lists every account.
type usersScreen struct {
	users *userList
}

func newUsersScreen(model *Model) *usersScreen {
	screen := &usersScreen{}
	screen.users = newUserList(model, screen, model.reader().ListUsers, "No users yet.")
	return screen
}

func (s *usersScreen) title() string { return "Users" }

func (s *usersScreen) help() string {
	return "↑↓ move  Enter profile  m message  R reload"
}

func (s *usersScreen) typing() bool { return false }
func (s *usersScreen) close()       {}

func (s *usersScreen) init(model *Model) tea.Cmd {
	_, height := model.contentSize()
	s.users.resize(height)
	return s.users.next(model)
}

func (s *usersScreen) update(model *Model, message tea.Msg) tea.Cmd {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		_, height := model.contentSize()
		s.users.resize(height)
	case usersLoadedMsg:
		return s.users.loaded(model, message)
	case tea.KeyMsg:
		return s.users.update(model, message)
	}
	return nil
}

func (s *usersScreen) render(model *Model, width, height int) string {
	return s.users.render(model, width, height)
}
