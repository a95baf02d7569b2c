// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forum_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"testing"

	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/forumtest"
)

func TestListPostsPagination(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	author := server.SeedUser("alice", "alice@example.com", testPassword)
	for i := 1; i <= 7; i++ {
		server.SeedPost(author.ID, fmt.Sprintf("Topic %d", i), "long enough content")
	}
	client := newClient(t, server)
	ctx := context.Background()

	first, err := client.ListPosts(ctx, 1, forum.PostPageSize)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(first.Items) != 5 || first.Total != 7 || first.Pages != 2 {
		t.Fatalf("page 1: %d items, total %d, pages %d", len(first.Items), first.Total, first.Pages)
	}
	if first.Items[0].Topic != "Topic 7" {
		t.Errorf("first item = %q, want newest first", first.Items[0].Topic)
	}

	second, err := client.ListPosts(ctx, 2, forum.PostPageSize)
	if err != nil {
		t.Fatalf("ListPosts page 2: %v", err)
	}
	if len(second.Items) != 2 || second.Items[1].Topic != "Topic 1" {
		t.Errorf("page 2 = %+v", second.Items)
	}
}

func TestGetPost(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	author := server.SeedUser("alice", "alice@example.com", testPassword)
	seeded := server.SeedPost(author.ID, "Hello", "first post on the forum", "intro")
	client := newClient(t, server)
	ctx := context.Background()

	post, err := client.GetPost(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if post.Topic != "Hello" || post.User.Username != "alice" || !slices.Equal(post.Tags, []string{"intro"}) {
		t.Errorf("GetPost = %+v", post)
	}
	if post.CreatedAt.IsZero() {
		t.Error("CreatedAt not decoded")
	}

	if _, err := client.GetPost(ctx, 9999); !forum.IsNotFound(err) {
		t.Errorf("GetPost(missing) error = %v, want 404", err)
	}
}

func TestSearchPosts(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	author := server.SeedUser("alice", "alice@example.com", testPassword)
	server.SeedPost(author.ID, "Go generics", "type parameters explained", "go")
	server.SeedPost(author.ID, "Gardening", "tomatoes in containers", "garden")
	client := newClient(t, server)

	page, err := client.SearchPosts(context.Background(), "garden", 1, forum.PostPageSize)
	if err != nil {
		t.Fatalf("SearchPosts: %v", err)
	}
	if page.Total != 1 || page.Items[0].Topic != "Gardening" {
		t.Errorf("SearchPosts = %+v", page)
	}

	all, err := client.SearchPosts(context.Background(), "  ", 1, forum.PostPageSize)
	if err != nil {
		t.Fatalf("SearchPosts(blank): %v", err)
	}
	if all.Total != 2 {
		t.Errorf("blank search total = %d, want every post", all.Total)
	}
}

func TestCreatePost(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	server.SeedUser("alice", "alice@example.com", testPassword)
	session := login(t, newClient(t, server), "alice@example.com")

	created, err := session.CreatePost(context.Background(), forum.NewPost{
		Topic:   "  Photo dump  ",
		Content: "pictures from the weekend trip",
		Tags:    []string{"travel", "photos"},
		Files: []forum.Upload{
			{Name: "beach.png", Data: []byte("\x89PNG\r\n\x1a\n")},
			{Name: "hill.jpg", Data: []byte{0xff, 0xd8, 0xff}},
		},
	})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if created.Topic != "Photo dump" {
		t.Errorf("topic = %q, want trimmed", created.Topic)
	}
	if !slices.Equal(created.Tags, []string{"travel", "photos"}) {
		t.Errorf("tags = %v", created.Tags)
	}
	if len(created.Files) != 2 || !strings.HasSuffix(created.Files[0].Link, "beach.png") {
		t.Errorf("files = %+v", created.Files)
	}
}

func TestCreatePostRequiresLogin(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	server.SeedUser("alice", "alice@example.com", testPassword)
	session := login(t, newClient(t, server), "alice@example.com")
	if err := session.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	_, err := session.CreatePost(context.Background(), forum.NewPost{Topic: "Topic", Content: "content long enough"})
	if !forum.IsUnauthorized(err) {
		t.Fatalf("CreatePost error = %v, want 401", err)
	}
}

func TestEditPost(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	author := server.SeedUser("alice", "alice@example.com", testPassword)
	seeded := server.SeedPost(author.ID, "Original", "original content here", "a", "b")
	session := login(t, newClient(t, server), "alice@example.com")
	ctx := context.Background()

	unchanged := forum.PostEdit{Topic: seeded.Topic, Content: seeded.Content, Tags: []string{"a", "b"}}
	if err := session.EditPost(ctx, &seeded, unchanged); !errors.Is(err, forum.ErrNothingChanged) {
		t.Fatalf("EditPost(unchanged) error = %v, want ErrNothingChanged", err)
	}
	path := fmt.Sprintf("PATCH /api/posts/%d", seeded.ID)
	if got := server.CountRequests(path); got != 0 {
		t.Fatalf("unchanged edit sent %d requests", got)
	}

	edit := forum.PostEdit{Topic: seeded.Topic, Content: seeded.Content, Tags: []string{"a", "c"}}
	if err := session.EditPost(ctx, &seeded, edit); err != nil {
		t.Fatalf("EditPost: %v", err)
	}
	stored, _ := server.Post(seeded.ID)
	if stored.Topic != "Original" || !slices.Equal(stored.Tags, []string{"a", "c"}) {
		t.Errorf("stored post = %+v", stored)
	}
}

func TestEditPostForbiddenForOthers(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	author := server.SeedUser("alice", "alice@example.com", testPassword)
	server.SeedUser("bob", "bob@example.com", testPassword)
	seeded := server.SeedPost(author.ID, "Alice's", "alice wrote this one", "x")
	bob := login(t, newClient(t, server), "bob@example.com")
	ctx := context.Background()

	err := bob.EditPost(ctx, &seeded, forum.PostEdit{Topic: "Hijacked", Content: seeded.Content, Tags: seeded.Tags})
	if !forum.IsStatus(err, http.StatusForbidden) {
		t.Errorf("EditPost error = %v, want 403", err)
	}
	if err := bob.DeletePost(ctx, seeded.ID); !forum.IsStatus(err, http.StatusForbidden) {
		t.Errorf("DeletePost error = %v, want 403", err)
	}
}

func TestDeletePost(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	author := server.SeedUser("alice", "alice@example.com", testPassword)
	seeded := server.SeedPost(author.ID, "Temporary", "this post will be removed")
	session := login(t, newClient(t, server), "alice@example.com")

	if err := session.DeletePost(context.Background(), seeded.ID); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	if _, ok := server.Post(seeded.ID); ok {
		t.Error("post still stored after delete")
	}
}

func TestToggleLike(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	author := server.SeedUser("alice", "alice@example.com", testPassword)
	server.SeedUser("bob", "bob@example.com", testPassword)
	seeded := server.SeedPost(author.ID, "Likeable", "a post worth liking")
	bob := login(t, newClient(t, server), "bob@example.com")
	ctx := context.Background()

	post, err := bob.GetPost(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if err := bob.ToggleLike(ctx, post); err != nil {
		t.Fatalf("ToggleLike (like): %v", err)
	}
	if !post.IsLiked || post.LikesCount != 1 {
		t.Errorf("after like: liked=%v count=%d", post.IsLiked, post.LikesCount)
	}

	fresh, err := bob.GetPost(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if !fresh.IsLiked || fresh.LikesCount != 1 {
		t.Errorf("server view: liked=%v count=%d", fresh.IsLiked, fresh.LikesCount)
	}

	if err := bob.ToggleLike(ctx, post); err != nil {
		t.Fatalf("ToggleLike (unlike): %v", err)
	}
	if post.IsLiked || post.LikesCount != 0 {
		t.Errorf("after unlike: liked=%v count=%d", post.IsLiked, post.LikesCount)
	}
}

func TestToggleLikeKeepsStateOnFailure(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	author := server.SeedUser("alice", "alice@example.com", testPassword)
	seeded := server.SeedPost(author.ID, "Likeable", "a post worth liking")
	session := login(t, newClient(t, server), "alice@example.com")

	post := seeded
	server.FailNext(http.StatusInternalServerError, "database down")
	if err := session.ToggleLike(context.Background(), &post); err == nil {
		t.Fatal("ToggleLike succeeded despite server failure")
	}
	if post.IsLiked || post.LikesCount != 0 {
		t.Errorf("local post changed on failure: liked=%v count=%d", post.IsLiked, post.LikesCount)
	}
}

func TestListComments(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	author := server.SeedUser("alice", "alice@example.com", testPassword)
	seeded := server.SeedPost(author.ID, "Discuss", "talk about anything")
	for i := 1; i <= 12; i++ {
		server.SeedComment(seeded.ID, author.ID, fmt.Sprintf("comment %d", i))
	}
	client := newClient(t, server)

	page, err := client.ListComments(context.Background(), seeded.ID, 2, forum.CommentPageSize)
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if page.Total != 12 || page.Pages != 2 || len(page.Items) != 2 {
		t.Fatalf("page = total %d pages %d items %d", page.Total, page.Pages, len(page.Items))
	}
	if page.Items[1].Content != "comment 12" || page.Items[1].Username != "alice" {
		t.Errorf("last comment = %+v", page.Items[1])
	}

	post, err := client.GetPost(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if post.CommentsCount != 12 {
		t.Errorf("CommentsCount = %d, want 12", post.CommentsCount)
	}
}

func TestSplitAndJoinTags(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"go", []string{"go"}},
		{"  go   rust go  ", []string{"go", "rust"}},
		{"a b c b a", []string{"a", "b", "c"}},
		{"a, b", []string{"a", "b"}},
		{",go,,rust ,", []string{"go", "rust"}},
	}
	for _, test := range tests {
		if got := forum.SplitTags(test.input); !slices.Equal(got, test.want) {
			t.Errorf("SplitTags(%q) = %v, want %v", test.input, got, test.want)
		}
	}
	if got := forum.JoinTags([]string{"go", "rust"}); got != "go, rust" {
		t.Errorf("JoinTags = %q", got)
	}
	if got := forum.SplitTags(forum.JoinTags([]string{"go", "rust"})); !slices.Equal(got, []string{"go", "rust"}) {
		t.Errorf("SplitTags(JoinTags) = %v", got)
	}
}
