// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forumui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/cache"
	"github.com/agora-forum/agora/lib/clock"
	"github.com/agora-forum/agora/lib/forumtest"
)

const testPassword = "Password123"

// harness drives a Model the way a bubbletea program would: commands
// run in goroutines and their messages are fed back into Update, one
// at a time, on the test goroutine.
type harness struct {
	t       *testing.T
	server  *forumtest.Server
	clock   *clock.FakeClock
	model   Model
	pending chan tea.Msg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newHarness starts a model against server, signed in as email unless
// it is empty.
func newHarness(t *testing.T, server *forumtest.Server, email string, configure ...func(*Config)) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	client, err := forum.NewClient(forum.ClientConfig{
		BaseURL:      server.URL,
		WebSocketURL: server.WebSocketURL(),
		Logger:       discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	config := Config{
		Client:  client,
		Clock:   fakeClock,
		Context: ctx,
		Logger:  discardLogger(),
	}
	if email != "" {
		session, err := client.Login(ctx, email, testPassword)
		if err != nil {
			t.Fatalf("Login(%s): %v", email, err)
		}
		user, err := session.Me(ctx)
		if err != nil {
			t.Fatalf("Me: %v", err)
		}
		config.Session, config.User = session, user
	}
	for _, apply := range configure {
		apply(&config)
	}

	model, err := NewModel(config)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	h := &harness{
		t:       t,
		server:  server,
		clock:   fakeClock,
		model:   model,
		pending: make(chan tea.Msg, 1024),
	}
	h.update(tea.WindowSizeMsg{Width: 100, Height: 40})
	h.run(h.model.Init())
	return h
}

// run executes cmd in its own goroutine. A batch is expanded there so
// that timers armed by its commands register without waiting for the
// test to drain the queue.
func (h *harness) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() {
		message := cmd()
		if batch, ok := message.(tea.BatchMsg); ok {
			for _, cmd := range batch {
				h.run(cmd)
			}
			return
		}
		h.pending <- message
	}()
}

func (h *harness) update(message tea.Msg) {
	next, cmd := h.model.Update(message)
	h.model = next.(Model)
	h.run(cmd)
}

// waitFor delivers pending messages until condition holds. The
// condition is also polled, for state changed by other goroutines.
func (h *harness) waitFor(what string, condition func() bool) {
	h.t.Helper()
	deadline := time.After(5 * time.Second)
	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()
	for !condition() {
		select {
		case <-poll.C:
		case message := <-h.pending:
			switch message := message.(type) {
			case nil:
			case tea.BatchMsg:
				for _, cmd := range message {
					h.run(cmd)
				}
			default:
				h.update(message)
			}
		case <-deadline:
			h.t.Fatalf("timed out waiting for %s (status %q)", what, h.model.status.text)
		}
	}
}

// waitForTimers delivers pending messages until at least n alarms are
// armed on the fake clock.
func (h *harness) waitForTimers(n int) {
	h.t.Helper()
	h.waitFor(fmt.Sprintf("%d pending timers", n), func() bool { return h.clock.PendingCount() >= n })
}

// press sends key presses by name.
func (h *harness) press(names ...string) {
	for _, name := range names {
		h.update(keyPress(name))
	}
}

// typeText sends text as one burst of runes, as a paste would.
func (h *harness) typeText(text string) {
	h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func keyPress(name string) tea.KeyMsg {
	switch name {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+t":
		return tea.KeyMsg{Type: tea.KeyCtrlT}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(name)}
}

func (h *harness) top() screen { return h.model.top() }

func (h *harness) feed() *feedScreen {
	h.t.Helper()
	feed, ok := h.model.stack[0].(*feedScreen)
	if !ok {
		h.t.Fatalf("root screen is %T, want *feedScreen", h.model.stack[0])
	}
	return feed
}

// memoryDrafts is an in-memory DraftStore.
type memoryDrafts struct {
	mutex  sync.Mutex
	drafts map[string]cache.Draft
}

func newMemoryDrafts() *memoryDrafts {
	return &memoryDrafts{drafts: make(map[string]cache.Draft)}
}

func (m *memoryDrafts) SaveDraft(_ context.Context, draft cache.Draft) (cache.Draft, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	draft.UpdatedAt = time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)
	m.drafts[draft.Name] = draft
	return draft, nil
}

func (m *memoryDrafts) Draft(_ context.Context, name string) (cache.Draft, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	draft, ok := m.drafts[name]
	if !ok {
		return cache.Draft{}, fmt.Errorf("%w: %q", cache.ErrDraftNotFound, name)
	}
	return draft, nil
}

func (m *memoryDrafts) DeleteDraft(_ context.Context, name string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.drafts[name]; !ok {
		return fmt.Errorf("%w: %q", cache.ErrDraftNotFound, name)
	}
	delete(m.drafts, name)
	return nil
}

func (m *memoryDrafts) get(name string) (cache.Draft, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	draft, ok := m.drafts[name]
	return draft, ok
}
