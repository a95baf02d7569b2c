// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forumui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/timeago"
	"github.com/agora-forum/agora/lib/tui"
	"github.com/agora-forum/agora/lib/validate"
)

const chatRowHeight = 3

type chatsLoadedMsg struct {
	envelope
	added int
	err   error
}

// chatsScreen lists the signed-in user's conversations. Every page is
// loaded so the filter sees all of them.
type chatsScreen struct {
	feed   *forum.Feed[forum.Chat]
	err    error
	filter textinput.Model
	shown  []tui.Ranked[forum.Chat]
	cursor int
	offset int
}

func newChatsScreen(model *Model) *chatsScreen {
	filter := textinput.New()
	filter.Prompt = "filter: "
	filter.Placeholder = "name or message"
	filter.CharLimit = 50
	return &chatsScreen{
		feed:   forum.NewFeed(model.session.ListChats, forum.ChatPageSize, forum.FeedOptions{Clock: model.clock}),
		filter: filter,
	}
}

func (s *chatsScreen) title() string { return "Chats" }

func (s *chatsScreen) help() string {
	if s.filter.Focused() {
		return "type to filter  Enter/↓ results  Esc clear"
	}
	return "↑↓ move  Enter open  f filter  a profile  R reload"
}

func (s *chatsScreen) typing() bool { return s.filter.Focused() }
func (s *chatsScreen) close()       {}

func (s *chatsScreen) init(model *Model) tea.Cmd { return s.next(model) }

func (s *chatsScreen) next(model *Model) tea.Cmd {
	if !s.feed.HasMore() || s.feed.Fetching() {
		return nil
	}
	feed, ctx := s.feed, model.ctx
	return func() tea.Msg {
		added, err := feed.Next(ctx)
		return chatsLoadedMsg{envelope: envelope{s}, added: added, err: err}
	}
}

// chatFilterText is what the filter matches: the username, then the
// last message.
func chatFilterText(chat forum.Chat) string {
	return chat.Username + " " + chat.LastMessage
}

func (s *chatsScreen) refilter() {
	s.shown = tui.FuzzyFilter(s.feed.Items(), s.filter.Value(), chatFilterText)
	s.cursor = max(min(s.cursor, len(s.shown)-1), 0)
}

func (s *chatsScreen) update(model *Model, message tea.Msg) tea.Cmd {
	switch message := message.(type) {
	case chatsLoadedMsg:
		s.err = message.err
		if message.err != nil {
			return model.fail(message.err)
		}
		s.refilter()
		if message.added > 0 {
			return s.next(model)
		}

	case tea.KeyMsg:
		if s.filter.Focused() {
			switch {
			case key.Matches(message, model.keys.Cancel):
				s.filter.Reset()
				s.filter.Blur()
				s.refilter()
				return nil
			case message.Type == tea.KeyEnter, message.Type == tea.KeyDown:
				s.filter.Blur()
				return nil
			}
			var cmd tea.Cmd
			s.filter, cmd = s.filter.Update(message)
			s.cursor, s.offset = 0, 0
			s.refilter()
			return cmd
		}
		return s.updateKeys(model, message)
	}
	return nil
}

func (s *chatsScreen) updateKeys(model *Model, message tea.KeyMsg) tea.Cmd {
	keys := model.keys
	switch {
	case key.Matches(message, keys.Up):
		s.cursor = max(s.cursor-1, 0)
	case key.Matches(message, keys.Down):
		s.cursor = min(s.cursor+1, max(len(s.shown)-1, 0))
	case key.Matches(message, keys.Home):
		s.cursor = 0
	case key.Matches(message, keys.End):
		s.cursor = max(len(s.shown)-1, 0)
	case key.Matches(message, keys.Filter):
		return s.filter.Focus()
	case key.Matches(message, keys.Refresh):
		s.feed.Reset()
		s.shown = nil
		s.cursor, s.offset = 0, 0
		return s.next(model)
	case key.Matches(message, keys.Open):
		if s.cursor < len(s.shown) {
			chat := s.shown[s.cursor].Item
			return model.push(newChatScreen(model, chatCompanion(chat), chat.ID))
		}
	case key.Matches(message, keys.Author):
		if s.cursor < len(s.shown) {
			return model.push(newProfileScreen(model, s.shown[s.cursor].Item.UserID))
		}
	}
	return nil
}

func chatCompanion(chat forum.Chat) forum.User {
	return forum.User{ID: chat.UserID, Username: chat.Username, ProfilePicture: chat.ProfilePicture}
}

func (s *chatsScreen) render(model *Model, width, height int) string {
	theme := model.theme
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)
	header := faint.Render("f to filter")
	if s.filter.Focused() || s.filter.Value() != "" {
		header = s.filter.View()
	}

	var body string
	switch {
	case !s.feed.Loaded() && s.err != nil:
		body = faint.Render("Could not load chats: " + describeError(s.err) + " (R to retry)")
	case !s.feed.Loaded():
		body = faint.Render("Loading chats…")
	case s.feed.Total() == 0:
		body = faint.Render("No conversations yet. Press m on a user to start one.")
	case len(s.shown) == 0:
		body = faint.Render("No chats match " + s.filter.Value())
	default:
		body = s.renderRows(model, width, height-2)
	}
	return header + "\n\n" + body
}

func (s *chatsScreen) renderRows(model *Model, width, height int) string {
	theme := model.theme
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)
	rows := max(height/chatRowHeight, 1)
	if s.cursor < s.offset {
		s.offset = s.cursor
	}
	if s.cursor >= s.offset+rows {
		s.offset = s.cursor - rows + 1
	}

	bodyWidth := max(width-2, 10)
	now := model.clock.Now()
	var lines []string
	for index := s.offset; index < len(s.shown) && index < s.offset+rows; index++ {
		ranked := s.shown[index]
		chat := ranked.Item
		nameRunes := len([]rune(chat.Username))
		var namePositions, messagePositions []int
		for _, position := range ranked.Match.Positions {
			if position < nameRunes {
				namePositions = append(namePositions, position)
			} else if position > nameRunes {
				messagePositions = append(messagePositions, position-nameRunes-1)
			}
		}

		marker := "  "
		nameStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.AuthorColor)
		if index == s.cursor {
			marker = lipgloss.NewStyle().Foreground(theme.FocusAccent).Render("▌ ")
			nameStyle = nameStyle.Foreground(theme.SelectedForeground).Background(theme.SelectedBackground)
		}
		match := lipgloss.NewStyle().Bold(true).Foreground(theme.MatchForeground)
		heading := marker + nameStyle.Render("@") + highlight(chat.Username, namePositions, nameStyle, match) +
			faint.Render("  "+timeago.Format(now, chat.CreatedAt.Time))
		last := trimTo(chat.LastMessage, bodyWidth-2)
		preview := "  " + highlight(last, messagePositions, faint, match)
		lines = append(lines, tui.FitWidth(heading, bodyWidth), tui.FitWidth(preview, bodyWidth), "")
	}
	bar := tui.Scrollbar{Height: height, Total: len(s.shown), Visible: rows, Offset: s.offset}
	return lipgloss.JoinHorizontal(lipgloss.Top, padBlock(strings.Join(lines, "\n"), bodyWidth, height), " ", bar.Render(theme, true))
}

// highlight renders text with the runes at positions in the match
// style and the rest in base.
func highlight(text string, positions []int, base, match lipgloss.Style) string {
	if len(positions) == 0 {
		return base.Render(text)
	}
	var out strings.Builder
	for index, r := range []rune(text) {
		if slices.Contains(positions, index) {
			out.WriteString(match.Render(string(r)))
		} else {
			out.WriteString(base.Render(string(r)))
		}
	}
	return out.String()
}

// openChatWith opens the conversation with user, starting one if they
// never talked.
func (model *Model) openChatWith(user forum.User) tea.Cmd {
	if cmd, ok := model.needSession("send messages"); !ok {
		return cmd
	}
	if model.isMe(user.ID) {
		return model.notify("That's you")
	}
	return model.push(newChatScreen(model, user, 0))
}

type messagesLoadedMsg struct {
	envelope
	added int
	older bool
	err   error
}

type chatStreamMsg struct {
	envelope
	stream *forum.ChatStream
	err    error
}

// chatMessageMsg carries one live message. ok is false once the
// stream has ended.
type chatMessageMsg struct {
	envelope
	message forum.Message
	ok      bool
}

type messageSentMsg struct {
	envelope
	// message is set when it went over HTTP, which happens for the
	// first message of a conversation.
	message *forum.Message
	err     error
}

type messageDeletedMsg struct {
	envelope
	messageID int
	err       error
}

// chatScreen is one conversation. The history loads newest first;
// once the conversation exists, new messages arrive over its stream.
// The first message of a new conversation goes over HTTP, since the
// stream needs the conversation id.
type chatScreen struct {
	companion      forum.User
	conversationID int
	history        *forum.History[forum.Message]
	empty          bool
	err            error

	ctx    context.Context
	cancel context.CancelFunc
	stream *forum.ChatStream

	// cursor selects a message, counted from the newest.
	cursor    int
	editor    tui.Editor
	composing bool
	sending   bool
}

func newChatScreen(model *Model, companion forum.User, conversationID int) *chatScreen {
	session, companionID := model.session, companion.ID
	fetch := func(ctx context.Context, page, size int) (*forum.Page[forum.Message], error) {
		return session.ChatHistory(ctx, companionID, page, size)
	}
	return &chatScreen{
		companion:      companion,
		conversationID: conversationID,
		history:        forum.NewHistory(fetch, model.config.MessagePageSize, func(message forum.Message) int { return message.ID }),
		editor:         tui.NewEditor(validate.ContentMax),
	}
}

func (s *chatScreen) title() string { return "@" + s.companion.Username }

func (s *chatScreen) help() string {
	if s.composing {
		return "Enter send  Esc close"
	}
	return "↑↓ select  i write  o older  d delete  a profile  Esc back"
}

func (s *chatScreen) typing() bool { return s.composing }

func (s *chatScreen) close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.stream != nil {
		_ = s.stream.Close()
	}
}

func (s *chatScreen) init(model *Model) tea.Cmd {
	s.ctx, s.cancel = context.WithCancel(model.ctx)
	cmds := []tea.Cmd{s.load(false)}
	if s.conversationID > 0 {
		cmds = append(cmds, s.openStream(model))
	}
	return tea.Batch(cmds...)
}

func (s *chatScreen) load(older bool) tea.Cmd {
	history, ctx := s.history, s.ctx
	return func() tea.Msg {
		var added int
		var err error
		if older {
			added, err = history.LoadOlder(ctx)
		} else {
			err = history.Load(ctx)
		}
		return messagesLoadedMsg{envelope: envelope{s}, added: added, older: older, err: err}
	}
}

func (s *chatScreen) openStream(model *Model) tea.Cmd {
	session, ctx, conversationID := model.session, s.ctx, s.conversationID
	return func() tea.Msg {
		stream, err := session.OpenChat(ctx, conversationID)
		return chatStreamMsg{envelope: envelope{s}, stream: stream, err: err}
	}
}

func (s *chatScreen) waitMessage(stream *forum.ChatStream) tea.Cmd {
	return func() tea.Msg {
		message, ok := <-stream.Messages()
		return chatMessageMsg{envelope: envelope{s}, message: message, ok: ok}
	}
}

func (s *chatScreen) update(model *Model, message tea.Msg) tea.Cmd {
	switch message := message.(type) {
	case messagesLoadedMsg:
		if errors.Is(message.err, forum.ErrNoConversation) {
			s.empty = true
			return nil
		}
		if message.err != nil {
			s.err = message.err
			return model.fail(message.err)
		}
		if message.older && message.added == 0 {
			return model.notify("No older messages")
		}
		if message.older {
			s.cursor = min(s.cursor+message.added, len(s.history.Items())-1)
		}
		items := s.history.Items()
		if s.conversationID == 0 && len(items) > 0 {
			s.conversationID = items[0].ConversationID
			return s.openStream(model)
		}

	case chatStreamMsg:
		if message.err != nil {
			model.logger.Warn("chat stream unavailable", "conversation", s.conversationID, "error", message.err)
			return nil
		}
		s.stream = message.stream
		return s.waitMessage(message.stream)

	case chatMessageMsg:
		if !message.ok {
			if err := s.stream.Err(); err != nil {
				model.logger.Warn("chat stream ended", "conversation", s.conversationID, "error", err)
			}
			s.stream = nil
			return nil
		}
		cmds := []tea.Cmd{s.waitMessage(s.stream)}
		if s.history.Append(message.message) {
			if s.cursor > 0 {
				s.cursor++
			}
			cmds = append(cmds, model.ignite(-message.message.ID))
		}
		return tea.Batch(cmds...)

	case messageSentMsg:
		s.sending = false
		if message.err != nil {
			return model.fail(message.err)
		}
		s.editor.Reset()
		s.cursor = 0
		if sent := message.message; sent != nil {
			s.empty = false
			s.history.Append(*sent)
			if s.conversationID == 0 {
				s.conversationID = sent.ConversationID
				return s.openStream(model)
			}
		}

	case messageDeletedMsg:
		if message.err != nil {
			return model.fail(message.err)
		}
		s.history.Remove(message.messageID)
		s.cursor = max(min(s.cursor, len(s.history.Items())-1), 0)
		return model.notify("Message deleted")

	case tea.KeyMsg:
		if s.composing {
			return s.updateComposer(model, message)
		}
		return s.updateKeys(model, message)
	}
	return nil
}

func (s *chatScreen) updateKeys(model *Model, message tea.KeyMsg) tea.Cmd {
	keys := model.keys
	count := len(s.history.Items())
	switch {
	case key.Matches(message, keys.Up):
		s.cursor = min(s.cursor+1, max(count-1, 0))
	case key.Matches(message, keys.Down):
		s.cursor = max(s.cursor-1, 0)
	case key.Matches(message, keys.Home):
		s.cursor = max(count-1, 0)
	case key.Matches(message, keys.End):
		s.cursor = 0
	case key.Matches(message, keys.Older):
		if !s.history.HasOlder() {
			return model.notify("No older messages")
		}
		return s.load(true)
	case key.Matches(message, keys.Reply):
		s.composing = true
	case key.Matches(message, keys.Author):
		return model.push(newProfileScreen(model, s.companion.ID))
	case key.Matches(message, keys.Delete):
		selected, ok := s.selected()
		if !ok {
			return nil
		}
		if !model.isMe(selected.UserID) {
			return model.notify("Only your own messages can be deleted")
		}
		model.confirm("Delete this message?", func(model *Model) tea.Cmd {
			session, ctx := model.session, s.ctx
			return func() tea.Msg {
				err := session.DeleteMessage(ctx, selected.ID)
				return messageDeletedMsg{envelope: envelope{s}, messageID: selected.ID, err: err}
			}
		})
	}
	return nil
}

func (s *chatScreen) selected() (forum.Message, bool) {
	items := s.history.Items()
	index := len(items) - 1 - s.cursor
	if index < 0 || index >= len(items) {
		return forum.Message{}, false
	}
	return items[index], true
}

func (s *chatScreen) updateComposer(model *Model, message tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(message, model.keys.Cancel):
		s.composing = false
		return nil
	case message.Type == tea.KeyEnter && !message.Alt:
		if s.sending {
			return nil
		}
		text := strings.TrimSpace(s.editor.Value())
		if errs := validate.Message(text, 0); len(errs) > 0 {
			return model.warn(errs.First())
		}
		s.sending = true
		if stream := s.stream; stream != nil {
			return func() tea.Msg {
				return messageSentMsg{envelope: envelope{s}, err: stream.Send(text, nil)}
			}
		}
		if s.conversationID > 0 {
			s.sending = false
			return model.warn("Not connected to the chat yet")
		}
		session, ctx, companionID := model.session, s.ctx, s.companion.ID
		return func() tea.Msg {
			sent, err := session.SendMessage(ctx, companionID, text)
			return messageSentMsg{envelope: envelope{s}, message: sent, err: err}
		}
	}
	s.editor.Update(message)
	return nil
}

func (s *chatScreen) render(model *Model, width, height int) string {
	theme := model.theme
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)
	bodyHeight := height
	if s.composing {
		bodyHeight = max(height-composerHeight, 1)
	}

	var body string
	items := s.history.Items()
	switch {
	case s.err != nil && len(items) == 0:
		body = lipgloss.NewStyle().Foreground(theme.ErrorText).Render(describeError(s.err))
	case s.empty && len(items) == 0:
		body = faint.Render(fmt.Sprintf("No messages with @%s yet. Press i to say hello.", s.companion.Username))
	case !s.history.Loaded() && len(items) == 0:
		body = faint.Render("Loading messages…")
	default:
		body = s.renderMessages(model, items, width, bodyHeight)
	}
	body = padBlock(body, width, bodyHeight)
	if !s.composing {
		return body
	}
	return body + "\n" + renderComposer(model, s.editor, "Message", width)
}

// renderMessages draws the conversation bottom-up so the selected
// message is visible, newest at the bottom.
func (s *chatScreen) renderMessages(model *Model, items []forum.Message, width, height int) string {
	theme := model.theme
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)
	now := model.clock.Now()
	bubbleWidth := max(width*2/3, 20)

	blocks := make([][]string, len(items))
	for index, message := range items {
		own := model.isMe(message.UserID)
		selected := len(items)-1-index == s.cursor

		name := "@" + message.Username
		if message.Username == "" && !own {
			name = "@" + s.companion.Username
		}
		headStyle := lipgloss.NewStyle().Foreground(theme.AuthorColor)
		if selected {
			headStyle = headStyle.Bold(true).Foreground(theme.FocusAccent)
		}
		head := headStyle.Render(name) + faint.Render(" · "+timeago.Format(now, message.CreatedAt.Time))
		if heat := model.heat.Heat(-message.ID, now); heat > 0 {
			head = lipgloss.NewStyle().Foreground(theme.HotAccent).Render(heatMarker(heat)+" ") + head
		}

		text := lipgloss.NewStyle().Width(bubbleWidth).Foreground(theme.NormalText)
		if own {
			text = text.Background(theme.OwnMessageBackground)
		}
		lines := []string{head}
		lines = append(lines, strings.Split(text.Render(message.Content), "\n")...)
		for _, file := range message.Files {
			lines = append(lines, lipgloss.NewStyle().Foreground(theme.LinkForeground).Render("🖼 "+file.Link))
		}
		if selected {
			bar := lipgloss.NewStyle().Foreground(theme.FocusAccent).Render("▌")
			for line := range lines {
				lines[line] = bar + lines[line]
			}
		}
		if own {
			for line := range lines {
				lines[line] = lipgloss.PlaceHorizontal(width, lipgloss.Right, lines[line])
			}
		}
		blocks[index] = append(lines, "")
	}

	// Walk back from the newest block, keeping the selected one in view.
	selectedIndex := len(items) - 1 - s.cursor
	var lines []string
	for index := len(blocks) - 1; index >= 0; index-- {
		candidate := slices.Concat(blocks[index], lines)
		if len(candidate) > height && index < selectedIndex {
			break
		}
		lines = candidate
	}
	if s.history.HasOlder() && len(lines) < height {
		lines = append([]string{faint.Render("o: load older messages")}, lines...)
	}
	if len(lines) > height {
		// The selected block is first; show it from its top.
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}
