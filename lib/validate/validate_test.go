// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestRegister(t *testing.T) {
	valid := RegisterForm{Username: "alice", Email: "alice@example.com", Password: "Password123", Confirmation: "Password123"}
	tests := []struct {
		name  string
		edit  func(*RegisterForm)
		field string
		want  string
	}{
		{"valid", func(*RegisterForm) {}, "", ""},
		{"missing field", func(f *RegisterForm) { f.Email = "" }, FieldForm, "Please fill all fields"},
		{"short username", func(f *RegisterForm) { f.Username = "al" }, FieldUsername, "Username must be between 3 and 20 characters"},
		{"long username", func(f *RegisterForm) { f.Username = strings.Repeat("a", 21) }, FieldUsername, "Username must be between 3 and 20 characters"},
		{"bad email", func(f *RegisterForm) { f.Email = "alice" }, FieldEmail, "Please enter a valid email"},
		{"short password", func(f *RegisterForm) { f.Password, f.Confirmation = "Pa1", "Pa1" }, FieldPassword, "Password must be between 8 and 20 characters"},
		{"no digit", func(f *RegisterForm) { f.Password, f.Confirmation = "Passwordxx", "Passwordxx" }, FieldPassword, "Password must contain a number"},
		{"no uppercase", func(f *RegisterForm) { f.Password, f.Confirmation = "password123", "password123" }, FieldPassword, "Password must contain an uppercase letter"},
		{"no lowercase", func(f *RegisterForm) { f.Password, f.Confirmation = "PASSWORD123", "PASSWORD123" }, FieldPassword, "Password must contain a lowercase letter"},
		{"mismatch", func(f *RegisterForm) { f.Confirmation = "Password124" }, FieldConfirmation, "Passwords must be the same"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			form := valid
			test.edit(&form)
			errs := Register(form)
			if test.want == "" {
				if len(errs) != 0 {
					t.Fatalf("Register = %v, want valid", errs)
				}
				return
			}
			if got := errs.Field(test.field); got != test.want {
				t.Errorf("Field(%q) = %q, want %q (all: %v)", test.field, got, test.want, errs)
			}
		})
	}
}

func TestRegisterMissingFieldStopsEarly(t *testing.T) {
	errs := Register(RegisterForm{Username: "x"})
	if len(errs) != 1 || errs.First() != "Please fill all fields" {
		t.Errorf("Register = %v", errs)
	}
}

func TestLogin(t *testing.T) {
	if errs := Login("alice@example.com", "pw"); len(errs) != 0 {
		t.Errorf("Login(valid) = %v", errs)
	}
	if errs := Login("  ", "pw"); errs.First() != "Wrong email or password" {
		t.Errorf("Login(blank email) = %v", errs)
	}
}

func TestPost(t *testing.T) {
	tests := []struct {
		name  string
		form  PostForm
		field string
	}{
		{"valid", PostForm{Topic: "Hi!", Content: "0123456789", Images: []string{"a.PNG", "b.jpeg"}}, ""},
		{"short topic after trim", PostForm{Topic: "  ab  ", Content: "0123456789"}, FieldTopic},
		{"long topic", PostForm{Topic: strings.Repeat("t", 201), Content: "0123456789"}, FieldTopic},
		{"short content", PostForm{Topic: "Topic", Content: "too short"}, FieldContent},
		{"long content", PostForm{Topic: "Topic", Content: strings.Repeat("c", 801)}, FieldContent},
		{"gif", PostForm{Topic: "Topic", Content: "0123456789", Images: []string{"a.png", "b.gif"}}, FieldImages},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			errs := Post(test.form)
			if test.field == "" {
				if len(errs) != 0 {
					t.Fatalf("Post = %v, want valid", errs)
				}
				return
			}
			if len(errs) != 1 || errs[0].Field != test.field {
				t.Errorf("Post = %v, want one %s error", errs, test.field)
			}
		})
	}
}

func TestProfile(t *testing.T) {
	if errs := Profile(ProfileForm{Username: "alice", Bio: strings.Repeat("b", 200), Picture: "me.jpg"}); len(errs) != 0 {
		t.Errorf("Profile(valid) = %v", errs)
	}
	errs := Profile(ProfileForm{Username: "al", Bio: strings.Repeat("b", 201), Picture: "me.bmp"})
	for _, field := range []string{FieldUsername, FieldBio, FieldPicture} {
		if errs.Field(field) == "" {
			t.Errorf("no %s error in %v", field, errs)
		}
	}
}

func TestChangePassword(t *testing.T) {
	if errs := ChangePassword("Password123", "Newpass123", "Newpass123"); len(errs) != 0 {
		t.Errorf("ChangePassword(valid) = %v", errs)
	}
	if errs := ChangePassword("", "Newpass123", "Newpass123"); errs.First() != "Please fill all fields" {
		t.Errorf("ChangePassword(missing old) = %v", errs)
	}
	if errs := ChangePassword("Password123", "Password123", "Password123"); errs.Field(FieldPassword) == "" {
		t.Errorf("reusing the old password accepted: %v", errs)
	}
	if errs := ChangePassword("Password123", "Newpass123", "Newpass124"); errs.Field(FieldConfirmation) == "" {
		t.Errorf("mismatch accepted: %v", errs)
	}
}

func TestMessageCommentAndDelete(t *testing.T) {
	if len(Message("  ", 0)) == 0 {
		t.Error("blank message accepted")
	}
	if len(Message("", 1)) != 0 {
		t.Error("attachment-only message rejected")
	}
	if len(Comment("\n")) == 0 {
		t.Error("blank comment accepted")
	}
	if len(DeleteAccount("")) == 0 {
		t.Error("empty delete password accepted")
	}
}

func TestErr(t *testing.T) {
	var none Errors
	if none.Err() != nil || none.First() != "" {
		t.Error("empty Errors reported a failure")
	}

	errs := Post(PostForm{})
	err := errs.Err()
	if err == nil {
		t.Fatal("Err() = nil for invalid post")
	}
	var fieldErr *FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != FieldTopic {
		t.Errorf("errors.As = %+v", fieldErr)
	}
	if !strings.Contains(err.Error(), "Content must be") {
		t.Errorf("joined error %q misses content failure", err)
	}
}
