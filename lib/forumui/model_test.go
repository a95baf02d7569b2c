// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forumui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/forumtest"
)

func TestNewModelValidation(t *testing.T) {
	if _, err := NewModel(Config{}); err == nil {
		t.Error("NewModel without Client succeeded")
	}

	server := forumtest.New(t, forumtest.Options{})
	client, err := forum.NewClient(forum.ClientConfig{BaseURL: server.URL, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := NewModel(Config{Client: client, User: &forum.User{ID: 1}}); err == nil {
		t.Error("NewModel with User but no Session succeeded")
	}
	model, err := NewModel(Config{Client: client})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	if model.config.PostPageSize != forum.PostPageSize || model.config.SearchDebounce != 300*time.Millisecond {
		t.Errorf("defaults = %+v", model.config)
	}
}

func TestFeedInfiniteScroll(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	alice := server.SeedUser("alice", "alice@example.com", testPassword)
	for i := 1; i <= 7; i++ {
		server.SeedPost(alice.ID, fmt.Sprintf("Topic %d", i), "content long enough")
	}
	h := newHarness(t, server, "")
	feed := h.feed()

	h.waitFor("first page", func() bool { return len(feed.posts.items) == 5 })
	if feed.posts.items[0].Topic != "Topic 7" {
		t.Errorf("first post = %q, want newest first", feed.posts.items[0].Topic)
	}
	if view := h.model.View(); !strings.Contains(view, "Topic 7") || !strings.Contains(view, "Agora") {
		t.Errorf("view does not show the feed:\n%s", view)
	}

	h.press("G")
	h.waitFor("second page", func() bool { return len(feed.posts.items) == 7 })
	if feed.posts.feed.HasMore() {
		t.Error("HasMore after loading every post")
	}
	if got := server.CountRequests("GET /api/posts"); got != 2 {
		t.Errorf("GET /api/posts count = %d, want 2", got)
	}
}

func TestLikeNeedsSession(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	alice := server.SeedUser("alice", "alice@example.com", testPassword)
	server.SeedPost(alice.ID, "Hello", "first post on the forum")
	h := newHarness(t, server, "")
	feed := h.feed()
	h.waitFor("feed", func() bool { return len(feed.posts.items) == 1 })

	h.press("l")
	if !strings.Contains(h.model.status.text, "Log in (L) to like posts") {
		t.Errorf("status = %q", h.model.status.text)
	}
	for _, request := range server.Requests() {
		if strings.Contains(request, "/like") {
			t.Errorf("unexpected request %s", request)
		}
	}
}

func TestLikeToggle(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	alice := server.SeedUser("alice", "alice@example.com", testPassword)
	server.SeedUser("bob", "bob@example.com", testPassword)
	post := server.SeedPost(alice.ID, "Hello", "first post on the forum")
	h := newHarness(t, server, "bob@example.com")
	feed := h.feed()
	h.waitFor("feed", func() bool { return len(feed.posts.items) == 1 })

	h.press("l")
	h.waitFor("like", func() bool { return feed.posts.items[0].IsLiked })
	if feed.posts.items[0].LikesCount != 1 {
		t.Errorf("LikesCount = %d, want 1", feed.posts.items[0].LikesCount)
	}
	if stored, _ := server.Post(post.ID); stored.LikesCount != 1 {
		t.Errorf("server LikesCount = %d, want 1", stored.LikesCount)
	}

	h.press("l")
	h.waitFor("unlike", func() bool { return !feed.posts.items[0].IsLiked })
	if feed.posts.items[0].LikesCount != 0 {
		t.Errorf("LikesCount after unlike = %d", feed.posts.items[0].LikesCount)
	}
}

func TestLikeKeptWhenServerRefuses(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	alice := server.SeedUser("alice", "alice@example.com", testPassword)
	server.SeedUser("bob", "bob@example.com", testPassword)
	server.SeedPost(alice.ID, "Hello", "first post on the forum")
	h := newHarness(t, server, "bob@example.com")
	feed := h.feed()
	h.waitFor("feed", func() bool { return len(feed.posts.items) == 1 })

	server.FailNext(500, "database unavailable")
	h.press("l")
	h.waitFor("error", func() bool { return h.model.status.level == slog.LevelError })
	if h.model.status.text != "database unavailable" {
		t.Errorf("status = %q", h.model.status.text)
	}
	if feed.posts.items[0].IsLiked || feed.posts.items[0].LikesCount != 0 {
		t.Errorf("post changed after a refused like: %+v", feed.posts.items[0])
	}
}

func TestOnlyAuthorEditsAndDeletes(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	alice := server.SeedUser("alice", "alice@example.com", testPassword)
	bob := server.SeedUser("bob", "bob@example.com", testPassword)
	mine := server.SeedPost(bob.ID, "Mine", "written by bob himself")
	server.SeedPost(alice.ID, "Theirs", "written by alice herself")
	h := newHarness(t, server, "bob@example.com")
	feed := h.feed()
	h.waitFor("feed", func() bool { return len(feed.posts.items) == 2 })

	// Newest first: alice's post is selected.
	h.press("d")
	if h.model.menu != nil || !strings.Contains(h.model.status.text, "Only the author") {
		t.Fatalf("delete of another's post: menu %v, status %q", h.model.menu != nil, h.model.status.text)
	}
	h.press("e")
	if _, ok := h.top().(*composeScreen); ok {
		t.Fatal("editor opened for another user's post")
	}

	h.press("j", "d")
	if h.model.menu == nil {
		t.Fatal("no confirmation for deleting own post")
	}
	h.press("j", "enter")
	h.waitFor("post removed", func() bool { return len(feed.posts.items) == 1 })
	if feed.posts.items[0].Topic != "Theirs" {
		t.Errorf("remaining post = %q", feed.posts.items[0].Topic)
	}
	if _, ok := server.Post(mine.ID); ok {
		t.Error("post still on the server")
	}
}

func TestDeleteCancelled(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	bob := server.SeedUser("bob", "bob@example.com", testPassword)
	server.SeedPost(bob.ID, "Mine", "written by bob himself")
	h := newHarness(t, server, "bob@example.com")
	feed := h.feed()
	h.waitFor("feed", func() bool { return len(feed.posts.items) == 1 })

	h.press("d", "enter")
	if h.model.menu != nil {
		t.Fatal("menu still open")
	}
	if got := server.CountRequests(fmt.Sprintf("DELETE /api/posts/%d", feed.posts.items[0].ID)); got != 0 {
		t.Errorf("DELETE sent %d times after choosing No", got)
	}
}

func TestSearchDebounce(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	alice := server.SeedUser("alice", "alice@example.com", testPassword)
	server.SeedPost(alice.ID, "Go generics", "type parameters explained", "go")
	server.SeedPost(alice.ID, "Gardening", "tomatoes in containers", "garden")
	h := newHarness(t, server, "")
	feed := h.feed()
	h.waitFor("feed", func() bool { return len(feed.posts.items) == 2 })
	h.waitForTimers(1)

	h.press("2")
	search, ok := h.top().(*searchScreen)
	if !ok {
		t.Fatalf("top screen = %T, want *searchScreen", h.top())
	}
	h.typeText("generics")
	h.waitForTimers(2)
	if got := server.CountRequests("GET /api/posts/generics"); got != 0 {
		t.Fatalf("search sent before the pause: %d requests", got)
	}

	h.clock.Advance(300 * time.Millisecond)
	h.waitFor("search results", func() bool { return search.posts != nil && search.posts.feed.Loaded() })
	if len(search.posts.items) != 1 || search.posts.items[0].Topic != "Go generics" {
		t.Errorf("results = %+v", search.posts.items)
	}

	// A new query starts over, here with users.
	for range len("generics") {
		h.press("backspace")
	}
	h.typeText("@ali")
	h.waitForTimers(1 + len("generics") + 1)
	h.clock.Advance(300 * time.Millisecond)
	h.waitFor("user results", func() bool { return search.users != nil && search.users.feed.Loaded() })
	if search.posts != nil {
		t.Error("post results kept after the query changed")
	}
	if len(search.users.items) != 1 || search.users.items[0].Username != "alice" {
		t.Errorf("user results = %+v", search.users.items)
	}
	if got := server.CountRequests("GET /api/users/ali"); got != 1 {
		t.Errorf("user search sent %d times, want 1", got)
	}
}

func TestPostCommentsLive(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	alice := server.SeedUser("alice", "alice@example.com", testPassword)
	bob := server.SeedUser("bob", "bob@example.com", testPassword)
	post := server.SeedPost(alice.ID, "Hello", "first post on the forum")
	for i := 1; i <= 25; i++ {
		server.SeedComment(post.ID, bob.ID, fmt.Sprintf("comment %d", i))
	}
	h := newHarness(t, server, "bob@example.com")
	feed := h.feed()
	h.waitFor("feed", func() bool { return len(feed.posts.items) == 1 })

	h.press("enter")
	detail, ok := h.top().(*postScreen)
	if !ok {
		t.Fatalf("top screen = %T, want *postScreen", h.top())
	}
	h.waitFor("comments and stream", func() bool {
		return detail.comments.Loaded() && detail.stream != nil
	})
	items := detail.comments.Items()
	if len(items) != 15 || items[len(items)-1].Content != "comment 25" {
		t.Errorf("newest comment = %q", items[len(items)-1].Content)
	}
	if !detail.comments.HasOlder() {
		t.Fatal("no older comments to load")
	}
	h.press("o")
	h.waitFor("older comments", func() bool { return len(detail.comments.Items()) == 25 })

	h.press("i")
	h.typeText("Nice post")
	h.press("enter")
	h.waitFor("live comment", func() bool {
		items := detail.comments.Items()
		return items[len(items)-1].Content == "Nice post"
	})
	if detail.editor.Value() != "" {
		t.Errorf("composer not cleared: %q", detail.editor.Value())
	}
	if feed.posts.items[0].CommentsCount != 26 {
		t.Errorf("feed CommentsCount = %d, want 26", feed.posts.items[0].CommentsCount)
	}
	items = detail.comments.Items()
	if h.model.heat.Heat(items[len(items)-1].ID, h.clock.Now()) == 0 {
		t.Error("live comment does not glow")
	}
	if h.model.heat.Heat(items[0].ID, h.clock.Now()) != 0 {
		t.Error("loaded comment glows")
	}

	h.press("esc", "esc")
	if _, ok := h.top().(*feedScreen); !ok {
		t.Fatalf("top screen after Esc = %T", h.top())
	}
	h.waitFor("stream closed", func() bool { return server.Subscribers("post", post.ID) == 0 })
}

func TestCommentNeedsSession(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	alice := server.SeedUser("alice", "alice@example.com", testPassword)
	server.SeedPost(alice.ID, "Hello", "first post on the forum")
	h := newHarness(t, server, "")
	feed := h.feed()
	h.waitFor("feed", func() bool { return len(feed.posts.items) == 1 })

	h.press("enter")
	detail := h.top().(*postScreen)
	h.waitFor("comments", func() bool { return detail.comments.Loaded() && detail.fetched })
	h.press("i")
	if detail.composing {
		t.Error("composer opened without a session")
	}
	if !strings.Contains(h.model.status.text, "Log in") {
		t.Errorf("status = %q", h.model.status.text)
	}
}

func TestChatFirstMessageThenStream(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	server.SeedUser("alice", "alice@example.com", testPassword)
	bob := server.SeedUser("bob", "bob@example.com", testPassword)
	h := newHarness(t, server, "alice@example.com")

	h.run(h.model.openChatWith(bob))
	chat, ok := h.top().(*chatScreen)
	if !ok {
		t.Fatalf("top screen = %T, want *chatScreen", h.top())
	}
	h.waitFor("empty conversation", func() bool { return chat.empty })

	h.press("i")
	h.typeText("hello bob")
	h.press("enter")
	h.waitFor("conversation stream", func() bool { return chat.stream != nil })
	if chat.conversationID == 0 {
		t.Fatal("conversation id not learned from the first message")
	}

	h.typeText("second")
	h.press("enter")
	h.waitFor("streamed message", func() bool { return len(chat.history.Items()) == 2 })
	alice := *h.model.me
	if got := len(server.Messages(alice.ID, bob.ID)); got != 2 {
		t.Fatalf("server has %d messages, want 2", got)
	}

	h.press("esc", "d")
	if h.model.menu == nil {
		t.Fatal("no confirmation for deleting a message")
	}
	h.press("j", "enter")
	h.waitFor("message deleted", func() bool { return len(chat.history.Items()) == 1 })
	if got := server.Messages(alice.ID, bob.ID); len(got) != 1 || got[0].Content != "hello bob" {
		t.Errorf("server messages = %+v", got)
	}
}

func TestChatsFilter(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	alice := server.SeedUser("alice", "alice@example.com", testPassword)
	bob := server.SeedUser("bob", "bob@example.com", testPassword)
	carol := server.SeedUser("carol", "carol@example.com", testPassword)
	server.SeedMessage(bob.ID, alice.ID, "lunch tomorrow?")
	server.SeedMessage(carol.ID, alice.ID, "see you at the meetup")
	h := newHarness(t, server, "alice@example.com")

	h.press("4")
	chats, ok := h.top().(*chatsScreen)
	if !ok {
		t.Fatalf("top screen = %T, want *chatsScreen", h.top())
	}
	h.waitFor("chats", func() bool { return len(chats.shown) == 2 })

	h.press("f")
	h.typeText("crl")
	if len(chats.shown) != 1 || chats.shown[0].Item.Username != "carol" {
		t.Fatalf("filtered = %+v", chats.shown)
	}
	h.press("enter", "enter")
	chat, ok := h.top().(*chatScreen)
	if !ok {
		t.Fatalf("top screen = %T, want *chatScreen", h.top())
	}
	if chat.companion.ID != carol.ID {
		t.Errorf("opened chat with %d, want %d", chat.companion.ID, carol.ID)
	}
	h.waitFor("history and stream", func() bool { return chat.history.Loaded() && chat.stream != nil })
}

func TestTabsNeedSession(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	h := newHarness(t, server, "")

	for _, tab := range []string{"4", "5"} {
		h.press(tab)
		if _, ok := h.top().(*feedScreen); !ok {
			t.Errorf("tab %s opened %T without a session", tab, h.top())
		}
	}
	h.press("3")
	if _, ok := h.top().(*usersScreen); !ok {
		t.Errorf("tab 3 opened %T", h.top())
	}
}

func TestLogin(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	server.SeedUser("alice", "alice@example.com", testPassword)
	var saved *forum.User
	h := newHarness(t, server, "", func(config *Config) {
		config.OnLogin = func(session *forum.Session, user *forum.User) error {
			saved = user
			return nil
		}
	})

	h.press("L")
	if _, ok := h.top().(*loginScreen); !ok {
		t.Fatalf("top screen = %T, want *loginScreen", h.top())
	}
	h.typeText("alice@example.com")
	h.press("tab")
	h.typeText("WrongPass1")
	h.press("enter")
	h.waitFor("rejection", func() bool { return h.model.status.text == "Wrong email or password" })

	for range len("WrongPass1") {
		h.press("backspace")
	}
	h.typeText(testPassword)
	h.press("enter")
	h.waitFor("session", func() bool { return h.model.me != nil })
	if h.model.me.Username != "alice" || saved == nil || saved.Username != "alice" {
		t.Errorf("me = %+v, saved = %+v", h.model.me, saved)
	}
	if _, ok := h.top().(*feedScreen); !ok {
		t.Errorf("top screen after login = %T", h.top())
	}
}

func TestRegister(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	h := newHarness(t, server, "")

	h.press("L", "ctrl+t")
	login := h.top().(*loginScreen)
	if !login.register {
		t.Fatal("ctrl+t did not switch to registration")
	}
	h.typeText("carol")
	h.press("tab")
	h.typeText("carol@example.com")
	h.press("tab")
	h.typeText("short")
	h.press("tab")
	h.typeText("short")
	h.press("enter")
	if login.errs.Field("password") == "" {
		t.Fatalf("weak password accepted, errors %v", login.errs)
	}
	if got := server.CountRequests("POST /api/register"); got != 0 {
		t.Fatalf("register sent with an invalid form")
	}

	for _, field := range []int{2, 3} {
		login.setFocus(field)
		for range len("short") {
			h.press("backspace")
		}
		h.typeText(testPassword)
	}
	h.press("enter")
	h.waitFor("session", func() bool { return h.model.me != nil })
	if h.model.me.Username != "carol" {
		t.Errorf("me = %+v", h.model.me)
	}
}

func TestComposePublishes(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	server.SeedUser("bob", "bob@example.com", testPassword)
	drafts := newMemoryDrafts()
	h := newHarness(t, server, "bob@example.com", func(config *Config) { config.Drafts = drafts })
	feed := h.feed()
	h.waitFor("empty feed", func() bool { return feed.posts.feed.Loaded() })

	h.press("n")
	compose, ok := h.top().(*composeScreen)
	if !ok {
		t.Fatalf("top screen = %T, want *composeScreen", h.top())
	}
	h.typeText("ab")
	h.press("ctrl+s")
	if !strings.Contains(h.model.status.text, "Topic must be between") {
		t.Errorf("status = %q", h.model.status.text)
	}

	h.typeText("out terminals")
	h.press("tab")
	h.typeText("Terminal apps in Go are fun to write.")
	h.press("tab")
	h.typeText("go tui")
	h.press("ctrl+s")
	h.waitFor("published", func() bool { return len(feed.posts.items) == 1 })
	if h.top() != feed {
		t.Errorf("top screen = %T, want the feed", h.top())
	}
	post := feed.posts.items[0]
	if post.Topic != "about terminals" || strings.Join(post.Tags, ",") != "go,tui" {
		t.Errorf("published %+v", post)
	}
	if compose.saving {
		t.Error("composer still saving")
	}
	if got := server.CountRequests("POST /api/posts"); got != 1 {
		t.Errorf("POST /api/posts count = %d", got)
	}
}

func TestComposeKeepsDraft(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	server.SeedUser("bob", "bob@example.com", testPassword)
	drafts := newMemoryDrafts()
	h := newHarness(t, server, "bob@example.com", func(config *Config) { config.Drafts = drafts })

	h.press("n")
	h.typeText("Half done")
	h.press("esc")
	h.waitFor("draft saved", func() bool { return h.model.status.text == "Draft saved" })
	draft, ok := drafts.get("tui-new-post")
	if !ok || draft.Topic != "Half done" {
		t.Fatalf("draft = %+v, %v", draft, ok)
	}

	h.press("n")
	compose := h.top().(*composeScreen)
	h.waitFor("draft restored", func() bool { return compose.topic.Value() == "Half done" })
}

func TestEditPost(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	bob := server.SeedUser("bob", "bob@example.com", testPassword)
	post := server.SeedPost(bob.ID, "Old topic", "content long enough", "go")
	h := newHarness(t, server, "bob@example.com")
	feed := h.feed()
	h.waitFor("feed", func() bool { return len(feed.posts.items) == 1 })

	h.press("e")
	compose, ok := h.top().(*composeScreen)
	if !ok {
		t.Fatalf("top screen = %T, want *composeScreen", h.top())
	}
	if compose.topic.Value() != "Old topic" || compose.tags.Value() != "go" {
		t.Fatalf("form = %q %q", compose.topic.Value(), compose.tags.Value())
	}

	h.press("ctrl+s")
	h.waitFor("nothing changed", func() bool { return h.model.status.text == "Nothing changed" })

	h.typeText(" renamed")
	h.press("ctrl+s")
	h.waitFor("edit applied", func() bool { return feed.posts.items[0].Topic == "Old topic renamed" })
	if stored, _ := server.Post(post.ID); stored.Topic != "Old topic renamed" {
		t.Errorf("server topic = %q", stored.Topic)
	}
}

func TestProfileLogout(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	bob := server.SeedUser("bob", "bob@example.com", testPassword)
	server.SeedPost(bob.ID, "By bob", "content long enough")
	loggedOut := false
	h := newHarness(t, server, "bob@example.com", func(config *Config) {
		config.OnLogout = func() error {
			loggedOut = true
			return nil
		}
	})

	h.press("5")
	profile, ok := h.top().(*profileScreen)
	if !ok {
		t.Fatalf("top screen = %T, want *profileScreen", h.top())
	}
	h.waitFor("profile", func() bool { return profile.user != nil && len(profile.posts.items) == 1 })

	h.press("O", "j", "enter")
	h.waitFor("logout", func() bool { return h.model.session == nil })
	if !loggedOut || h.model.me != nil {
		t.Errorf("loggedOut = %v, me = %+v", loggedOut, h.model.me)
	}
	if _, ok := h.top().(*feedScreen); !ok {
		t.Errorf("top screen after logout = %T", h.top())
	}
}

func TestAddressedMessageDroppedAfterClose(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	h := newHarness(t, server, "")
	closed := newUsersScreen(&h.model)

	h.update(usersLoadedMsg{envelope: envelope{closed}, list: closed.users, err: context.Canceled})
	if h.model.status.text != "" {
		t.Errorf("message to a closed screen changed the status to %q", h.model.status.text)
	}
}

func TestLogHandlerSummary(t *testing.T) {
	handler := NewLogHandler(slog.LevelInfo)
	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug enabled at info level")
	}
	if err := handler.Handle(context.Background(), slog.NewRecord(time.Time{}, slog.LevelInfo, "dropped", 0)); err != nil {
		t.Errorf("Handle without program: %v", err)
	}

	derived := handler.WithAttrs([]slog.Attr{slog.Int("post", 4)}).WithGroup("stream").(*LogHandler)
	record := slog.NewRecord(time.Time{}, slog.LevelWarn, "stream ended", 0)
	record.AddAttrs(slog.String("error", "EOF"))
	if got, want := derived.summarize(record), "stream ended (post=4, stream.error=EOF)"; got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}
}
