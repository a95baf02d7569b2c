// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forum_test

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/forumtest"
)

func TestUsers(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	alice := server.SeedUser("alice", "alice@example.com", testPassword)
	server.SeedUser("alicia", "alicia@example.com", testPassword)
	server.SeedUser("bob", "bob@example.com", testPassword)
	server.SeedPost(alice.ID, "By alice", "written by alice herself")
	client := newClient(t, server)
	ctx := context.Background()

	all, err := client.ListUsers(ctx, 1, forum.UserPageSize)
	if err != nil || all.Total != 3 {
		t.Fatalf("ListUsers = %+v, %v", all, err)
	}

	byID, err := client.GetUser(ctx, strconv.Itoa(alice.ID))
	if err != nil || byID.Username != "alice" {
		t.Fatalf("GetUser(id) = %+v, %v", byID, err)
	}
	byName, err := client.GetUser(ctx, "alice")
	if err != nil || byName.ID != alice.ID {
		t.Fatalf("GetUser(name) = %+v, %v", byName, err)
	}
	if _, err := client.GetUser(ctx, "nobody"); !forum.IsNotFound(err) {
		t.Errorf("GetUser(missing) error = %v, want 404", err)
	}

	found, err := client.SearchUsers(ctx, "@ali", 1, forum.UserPageSize)
	if err != nil || found.Total != 2 {
		t.Fatalf("SearchUsers(@ali) = %+v, %v", found, err)
	}

	posts, err := client.ListUserPosts(ctx, alice.ID, 1, forum.PostPageSize)
	if err != nil || posts.Total != 1 || posts.Items[0].Topic != "By alice" {
		t.Fatalf("ListUserPosts = %+v, %v", posts, err)
	}
}

func TestEditProfile(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	server.SeedUser("alice", "alice@example.com", testPassword)
	session := login(t, newClient(t, server), "alice@example.com")
	ctx := context.Background()

	me, err := session.Me(ctx)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if _, err := session.EditProfile(ctx, me, forum.ProfileEdit{Username: me.Username, Bio: me.Bio}); !errors.Is(err, forum.ErrNothingChanged) {
		t.Fatalf("EditProfile(unchanged) error = %v, want ErrNothingChanged", err)
	}

	updated, err := session.EditProfile(ctx, me, forum.ProfileEdit{
		Username: "alice2",
		Bio:      "hello there",
		Picture:  &forum.Upload{Name: "me.png", Data: []byte("\x89PNG\r\n\x1a\n")},
	})
	if err != nil {
		t.Fatalf("EditProfile: %v", err)
	}
	if updated.Username != "alice2" || updated.Bio != "hello there" {
		t.Errorf("updated = %+v", updated)
	}
	if !strings.HasSuffix(updated.ProfilePicture, "me.png") {
		t.Errorf("profile picture = %q", updated.ProfilePicture)
	}

	pictureOnly, err := session.EditProfile(ctx, updated, forum.ProfileEdit{Username: updated.Username, Bio: updated.Bio})
	if !errors.Is(err, forum.ErrNothingChanged) {
		t.Fatalf("EditProfile(same) = %+v, %v", pictureOnly, err)
	}
}

func TestChangePassword(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	server.SeedUser("alice", "alice@example.com", testPassword)
	client := newClient(t, server)
	session := login(t, client, "alice@example.com")
	ctx := context.Background()

	if err := session.ChangePassword(ctx, "NotMine123", "Newpass123"); !errors.Is(err, forum.ErrWrongPassword) {
		t.Fatalf("ChangePassword(wrong old) error = %v, want ErrWrongPassword", err)
	}
	if err := session.ChangePassword(ctx, testPassword, "Newpass123"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := client.Login(ctx, "alice@example.com", "Newpass123"); err != nil {
		t.Fatalf("Login with new password: %v", err)
	}
}

func TestWrongPasswordNotRetried(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{RefreshEndpoint: true})
	server.SeedUser("alice", "alice@example.com", testPassword)
	session := login(t, newClient(t, server), "alice@example.com")
	before := session.Credentials()
	ctx := context.Background()

	server.FailNext(http.StatusUnauthorized, "Incorrect password")
	if err := session.ChangePassword(ctx, "NotMine123", "Newpass123"); !errors.Is(err, forum.ErrWrongPassword) {
		t.Fatalf("ChangePassword error = %v, want ErrWrongPassword", err)
	}
	server.FailNext(http.StatusUnauthorized, "Incorrect password")
	if err := session.DeleteAccount(ctx, "NotMine123"); !errors.Is(err, forum.ErrWrongPassword) {
		t.Fatalf("DeleteAccount error = %v, want ErrWrongPassword", err)
	}

	if got := server.CountRequests("POST /api/refresh-token"); got != 0 {
		t.Errorf("refreshed %d times after a wrong password", got)
	}
	if got := server.CountRequests("PATCH /api/my-profile/change-password"); got != 1 {
		t.Errorf("password change sent %d times, want 1", got)
	}
	if got := server.CountRequests("DELETE /api/my-profile"); got != 1 {
		t.Errorf("account deletion sent %d times, want 1", got)
	}
	if session.Credentials() != before {
		t.Error("credentials changed after a wrong password")
	}
}

func TestDeleteAccount(t *testing.T) {
	server := forumtest.New(t, forumtest.Options{})
	alice := server.SeedUser("alice", "alice@example.com", testPassword)
	session := login(t, newClient(t, server), "alice@example.com")
	ctx := context.Background()

	if err := session.DeleteAccount(ctx, "Wrong12345"); !errors.Is(err, forum.ErrWrongPassword) {
		t.Fatalf("DeleteAccount(wrong) error = %v, want ErrWrongPassword", err)
	}
	if _, ok := server.User(alice.ID); !ok {
		t.Fatal("account removed despite wrong password")
	}

	if err := session.DeleteAccount(ctx, testPassword); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, ok := server.User(alice.ID); ok {
		t.Error("account still stored")
	}
	if !session.Credentials().Empty() {
		t.Error("credentials kept after account deletion")
	}
}
