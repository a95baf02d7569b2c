// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forumui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/cache"
	"github.com/agora-forum/agora/lib/clock"
	"github.com/agora-forum/agora/lib/timeago"
	"github.com/agora-forum/agora/lib/tui"
)

// DraftStore keeps unsent posts. *cache.Cache satisfies it.
type DraftStore interface {
	SaveDraft(ctx context.Context, draft cache.Draft) (cache.Draft, error)
	Draft(ctx context.Context, name string) (cache.Draft, error)
	DeleteDraft(ctx context.Context, name string) error
}

// Config holds the parameters for NewModel. Client is required.
type Config struct {
	Client *forum.Client

	// Session and User describe the signed-in account. Both nil
	// starts the UI anonymously; posts can be read but not liked.
	Session *forum.Session
	User    *forum.User

	// Drafts, when set, keeps the composer's text across exits.
	Drafts DraftStore

	Theme tui.Theme

	// Page sizes default to the forum's own.
	PostPageSize    int
	CommentPageSize int
	MessagePageSize int

	// ScrollCooldown spaces out infinite-scroll fetches.
	ScrollCooldown time.Duration

	// SearchDebounce is the pause after the last keystroke before a
	// search is sent. Defaults to 300ms.
	SearchDebounce time.Duration

	Clock  clock.Clock
	Logger *slog.Logger

	// Context bounds every API call and stream. Defaults to
	// context.Background().
	Context context.Context

	// OnLogin persists a session created from the login screen.
	// OnLogout forgets it.
	OnLogin  func(session *forum.Session, user *forum.User) error
	OnLogout func() error
}

// tabID identifies a top-level screen.
type tabID int

const (
	tabFeed tabID = iota
	tabSearch
	tabUsers
	tabChats
	tabProfile
)

var tabNames = []string{"Feed", "Search", "Users", "Chats", "Profile"}

// screen is one page of the UI. The model keeps a stack of them; the
// top one receives keys and is drawn.
type screen interface {
	title() string
	help() string
	init(model *Model) tea.Cmd
	update(model *Model, message tea.Msg) tea.Cmd
	render(model *Model, width, height int) string
	// typing reports whether keys go to a text input, which disables
	// the single-letter global bindings.
	typing() bool
	close()
}

// addressed is implemented by the results of asynchronous work. They
// are delivered only to the screen that started the work, and dropped
// when that screen has been closed meanwhile.
type addressed interface {
	recipient() screen
}

// envelope is embedded in messages to make them addressed.
type envelope struct{ to screen }

func (e envelope) recipient() screen { return e.to }

// statusFadeMsg clears the status line unless a newer notice replaced
// it.
type statusFadeMsg struct{ sequence int }

// heatTickMsg drives the fade of freshly arrived comments and messages.
type heatTickMsg struct{}

// clockTickMsg redraws relative times.
type clockTickMsg struct{}

// statusFadeDelay is how long notices and errors stay visible.
const statusFadeDelay = 4 * time.Second

const defaultSearchDebounce = 300 * time.Millisecond

type status struct {
	text     string
	level    slog.Level
	sequence int
}

type menuState struct {
	menu     tui.Menu
	onSelect func(model *Model, value string) tea.Cmd
}

// Model is the top-level bubbletea model of the forum TUI.
type Model struct {
	config  Config
	ctx     context.Context
	client  *forum.Client
	session *forum.Session
	me      *forum.User
	theme   tui.Theme
	keys    KeyMap
	clock   clock.Clock
	logger  *slog.Logger

	// Terminal dimensions (set by WindowSizeMsg).
	width  int
	height int
	ready  bool

	activeTab tabID
	stack     []screen

	// menu is the confirmation or action menu drawn over the screen.
	menu *menuState

	status      status
	heat        *tui.HeatTracker
	tickRunning bool
}

// NewModel creates a Model showing the post feed.
func NewModel(config Config) (Model, error) {
	if config.Client == nil {
		return Model{}, fmt.Errorf("forumui: Client is required")
	}
	if (config.Session == nil) != (config.User == nil) {
		return Model{}, fmt.Errorf("forumui: Session and User must be set together")
	}
	if config.PostPageSize <= 0 {
		config.PostPageSize = forum.PostPageSize
	}
	if config.CommentPageSize <= 0 {
		config.CommentPageSize = forum.CommentPageSize
	}
	if config.MessagePageSize <= 0 {
		config.MessagePageSize = forum.MessagePageSize
	}
	if config.SearchDebounce <= 0 {
		config.SearchDebounce = defaultSearchDebounce
	}
	if config.Theme.NormalText == "" {
		config.Theme = tui.DefaultTheme
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.Context == nil {
		config.Context = context.Background()
	}

	model := Model{
		config:  config,
		ctx:     config.Context,
		client:  config.Client,
		session: config.Session,
		me:      config.User,
		theme:   config.Theme,
		keys:    DefaultKeyMap,
		clock:   config.Clock,
		logger:  config.Logger,
		heat:    tui.NewHeatTracker(),
	}
	model.stack = []screen{newFeedScreen(&model)}
	return model, nil
}

// Init implements tea.Model. Loads the first page of the feed.
func (model Model) Init() tea.Cmd {
	return tea.Batch(model.stack[0].init(&model), model.clockTick())
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch message := message.(type) {
	case tea.KeyMsg:
		cmd = model.handleKey(message)

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		var cmds []tea.Cmd
		for _, entry := range model.stack {
			cmds = append(cmds, entry.update(&model, message))
		}
		cmd = tea.Batch(cmds...)

	case addressed:
		target := message.recipient()
		for _, entry := range model.stack {
			if entry == target {
				cmd = entry.update(&model, message)
				break
			}
		}

	case logRecordMsg:
		cmd = model.setStatus(message.Level, message.Summary)

	case statusFadeMsg:
		if message.sequence == model.status.sequence {
			model.status.text = ""
		}

	case heatTickMsg:
		if model.heat.HasHot(model.clock.Now()) {
			cmd = model.after(tui.HeatTickInterval, heatTickMsg{})
		} else {
			model.tickRunning = false
		}

	case clockTickMsg:
		cmd = model.clockTick()

	case sessionEndedMsg:
		cmd = model.finishLogout(message.err)
	}
	return model, cmd
}

func (model *Model) handleKey(message tea.KeyMsg) tea.Cmd {
	if message.Type == tea.KeyCtrlC {
		return tea.Quit
	}
	if model.menu != nil {
		return model.handleMenuKey(message)
	}
	top := model.top()
	if !top.typing() {
		switch {
		case key.Matches(message, model.keys.Quit):
			return tea.Quit
		case key.Matches(message, model.keys.TabFeed):
			return model.switchTab(tabFeed)
		case key.Matches(message, model.keys.TabSearch):
			return model.switchTab(tabSearch)
		case key.Matches(message, model.keys.TabUsers):
			return model.switchTab(tabUsers)
		case key.Matches(message, model.keys.TabChats):
			return model.switchTab(tabChats)
		case key.Matches(message, model.keys.TabProfile):
			return model.switchTab(tabProfile)
		case key.Matches(message, model.keys.Login) && model.session == nil:
			return model.push(newLoginScreen(model))
		case key.Matches(message, model.keys.Compose):
			if cmd, ok := model.needSession("write a post"); !ok {
				return cmd
			}
			return model.push(newComposeScreen(model, nil))
		case key.Matches(message, model.keys.Back):
			model.pop()
			return nil
		}
	}
	return top.update(model, message)
}

func (model *Model) handleMenuKey(message tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(message, model.keys.Up):
		model.menu.menu.MoveUp()
	case key.Matches(message, model.keys.Down):
		model.menu.menu.MoveDown()
	case key.Matches(message, model.keys.Open):
		state := model.menu
		model.menu = nil
		return state.onSelect(model, state.menu.Selected().Value)
	case key.Matches(message, model.keys.Cancel), key.Matches(message, model.keys.Quit):
		model.menu = nil
	}
	return nil
}

// top returns the screen receiving input.
func (model *Model) top() screen {
	return model.stack[len(model.stack)-1]
}

// push opens a screen on top of the current one.
func (model *Model) push(next screen) tea.Cmd {
	model.stack = append(model.stack, next)
	return next.init(model)
}

// pop closes the current screen. The root screen stays.
func (model *Model) pop() {
	if len(model.stack) == 1 {
		return
	}
	model.top().close()
	model.stack = model.stack[:len(model.stack)-1]
}

// switchTab closes every screen and opens a top-level one.
func (model *Model) switchTab(tab tabID) tea.Cmd {
	var root screen
	switch tab {
	case tabFeed:
		root = newFeedScreen(model)
	case tabSearch:
		root = newSearchScreen(model)
	case tabUsers:
		root = newUsersScreen(model)
	case tabChats:
		if cmd, ok := model.needSession("see your chats"); !ok {
			return cmd
		}
		root = newChatsScreen(model)
	case tabProfile:
		if cmd, ok := model.needSession("see your profile"); !ok {
			return cmd
		}
		root = newProfileScreen(model, model.me.ID)
	}
	for index := len(model.stack) - 1; index >= 0; index-- {
		model.stack[index].close()
	}
	model.activeTab = tab
	model.stack = []screen{root}
	return root.init(model)
}

// contentSize is the area left for the current screen between the
// header and the status bar.
func (model *Model) contentSize() (int, int) {
	return model.width, max(model.height-4, 1)
}

// reader is the client used for reads, the session's when signed in
// so per-user fields are filled.
func (model *Model) reader() *forum.Client {
	if model.session != nil {
		return model.session.Client
	}
	return model.client
}

// needSession reports whether someone is signed in, and otherwise
// returns a notice asking to log in before doing what.
func (model *Model) needSession(what string) (tea.Cmd, bool) {
	if model.session != nil {
		return nil, true
	}
	return model.setStatus(slog.LevelWarn, "Log in (L) to "+what), false
}

// isMe reports whether userID is the signed-in user.
func (model *Model) isMe(userID int) bool {
	return model.me != nil && model.me.ID == userID
}

// notify shows an informational notice.
func (model *Model) notify(format string, args ...any) tea.Cmd {
	return model.setStatus(slog.LevelInfo, fmt.Sprintf(format, args...))
}

// warn shows a notice about something the user has to fix.
func (model *Model) warn(text string) tea.Cmd {
	return model.setStatus(slog.LevelWarn, text)
}

// fail shows an error in the status bar.
func (model *Model) fail(err error) tea.Cmd {
	model.logger.Debug("request failed", "error", err)
	return model.setStatus(slog.LevelError, describeError(err))
}

func (model *Model) setStatus(level slog.Level, text string) tea.Cmd {
	model.status.sequence++
	model.status.text = text
	model.status.level = level
	return model.after(statusFadeDelay, statusFadeMsg{sequence: model.status.sequence})
}

// describeError turns an API error into a short status line.
func describeError(err error) string {
	var apiErr *forum.APIError
	switch {
	case errors.Is(err, forum.ErrNotAuthenticated), forum.IsUnauthorized(err):
		return "Your session has expired. Log in again (L)."
	case errors.As(err, &apiErr) && apiErr.Detail != "":
		return apiErr.Detail
	case errors.As(err, &apiErr):
		return fmt.Sprintf("Request failed: %d %s", apiErr.StatusCode, strings.ToLower(http.StatusText(apiErr.StatusCode)))
	}
	return strings.TrimPrefix(err.Error(), "forum: ")
}

// after delivers message once d has passed on the model's clock.
func (model *Model) after(d time.Duration, message tea.Msg) tea.Cmd {
	timer := model.clock
	return func() tea.Msg {
		<-timer.After(d)
		return message
	}
}

func (model *Model) clockTick() tea.Cmd {
	return model.after(timeago.RefreshInterval, clockTickMsg{})
}

// ignite marks a live item as new and starts the fade animation.
func (model *Model) ignite(id int) tea.Cmd {
	model.heat.Ignite(id, model.clock.Now())
	if model.tickRunning {
		return nil
	}
	model.tickRunning = true
	return model.after(tui.HeatTickInterval, heatTickMsg{})
}

// confirm opens a yes/no menu and runs onYes when confirmed.
func (model *Model) confirm(question string, onYes func(model *Model) tea.Cmd) {
	model.menu = &menuState{
		menu: tui.Menu{
			Title: question,
			Options: []tui.MenuOption{
				{Label: "No", Value: "no"},
				{Label: "Yes", Value: "yes"},
			},
		},
		onSelect: func(model *Model, value string) tea.Cmd {
			if value != "yes" {
				return nil
			}
			return onYes(model)
		},
	}
}

// signIn switches the UI to session. Called by the login screen.
func (model *Model) signIn(session *forum.Session, user *forum.User) tea.Cmd {
	model.session = session
	model.me = user
	var cmds []tea.Cmd
	if model.config.OnLogin != nil {
		if err := model.config.OnLogin(session, user); err != nil {
			model.logger.Warn("session not saved", "error", err)
			cmds = append(cmds, model.fail(err))
		}
	}
	cmds = append(cmds, model.switchTab(tabFeed), model.notify("Logged in as %s", user.Username))
	return tea.Batch(cmds...)
}

// sessionEndedMsg reports the result of logging out.
type sessionEndedMsg struct{ err error }

// logout ends the session on the server, then locally.
func (model *Model) logout() tea.Cmd {
	session := model.session
	if session == nil {
		return nil
	}
	ctx := model.ctx
	return func() tea.Msg {
		return sessionEndedMsg{err: session.Logout(ctx)}
	}
}

func (model *Model) finishLogout(err error) tea.Cmd {
	if err != nil {
		// The cookies are dropped either way; the server session just
		// expires on its own.
		model.logger.Warn("logout request failed", "error", err)
	}
	if model.config.OnLogout != nil {
		if err := model.config.OnLogout(); err != nil {
			model.logger.Warn("session not removed", "error", err)
		}
	}
	model.session = nil
	model.me = nil
	return tea.Batch(model.switchTab(tabFeed), model.notify("Logged out"))
}

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "Loading..."
	}
	separator := lipgloss.NewStyle().
		Foreground(model.theme.BorderColor).
		Render(strings.Repeat("─", model.width))

	width, height := model.contentSize()
	content := padBlock(model.top().render(&model, width, height), width, height)

	output := strings.Join([]string{
		model.renderHeader(),
		separator,
		content,
		separator,
		model.renderStatus(),
	}, "\n")

	if model.menu != nil {
		output = tui.CenterOverlay(output, model.menu.menu.Render(model.theme), model.width, model.height)
	}
	return output
}

func (model Model) renderHeader() string {
	brand := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground).Render(" Agora ")
	active := lipgloss.NewStyle().Bold(true).
		Foreground(model.theme.SelectedForeground).
		Background(model.theme.SelectedBackground)
	inactive := lipgloss.NewStyle().Foreground(model.theme.FaintText)

	var tabs []string
	for index, name := range tabNames {
		label := fmt.Sprintf(" %d %s ", index+1, name)
		if tabID(index) == model.activeTab {
			tabs = append(tabs, active.Render(label))
		} else {
			tabs = append(tabs, inactive.Render(label))
		}
	}
	left := brand + strings.Join(tabs, "")
	if len(model.stack) > 1 {
		left += inactive.Render("  › " + model.top().title())
	}

	account := "not logged in (L)"
	if model.me != nil {
		account = "@" + model.me.Username
	}
	right := lipgloss.NewStyle().Foreground(model.theme.AuthorColor).Render(account + " ")

	gap := model.width - ansi.StringWidth(left) - ansi.StringWidth(right)
	if gap < 1 {
		return tui.FitWidth(left, model.width)
	}
	return left + strings.Repeat(" ", gap) + right
}

func (model Model) renderStatus() string {
	if model.status.text != "" {
		color := model.theme.SuccessText
		if model.status.level >= slog.LevelWarn {
			color = model.theme.ErrorText
		}
		return tui.FitWidth(lipgloss.NewStyle().Foreground(color).Bold(true).Render(" "+model.status.text), model.width)
	}
	help := " " + model.top().help()
	if !model.top().typing() {
		help += "  1-5 tabs  q quit"
	}
	return tui.FitWidth(lipgloss.NewStyle().Foreground(model.theme.HelpText).Render(help), model.width)
}

// padBlock cuts or pads a rendered block to exactly width x height.
func padBlock(block string, width, height int) string {
	lines := strings.Split(block, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for index, line := range lines {
		lines[index] = tui.FitWidth(line, width)
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}
