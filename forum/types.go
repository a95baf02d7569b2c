// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// User is a forum account as returned by the users and profile
// endpoints.
type User struct {
	ID             int    `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	Bio            string `json:"bio"`
	ProfilePicture string `json:"profile_picture"`
}

// Author is the user summary embedded in a post.
type Author struct {
	ID             int    `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profile_picture"`
}

// File is an uploaded image attached to a post or message.
type File struct {
	ID   int    `json:"id"`
	Link string `json:"link"`
}

// Post is a forum topic.
type Post struct {
	ID            int       `json:"id"`
	Topic         string    `json:"topic"`
	Content       string    `json:"content"`
	CreatedAt     Timestamp `json:"created_at"`
	Files         []File    `json:"files"`
	Tags          []string  `json:"tags"`
	LikesCount    int       `json:"likes_count"`
	CommentsCount int       `json:"comments_count"`
	IsLiked       bool      `json:"is_liked"`
	User          Author    `json:"user"`
}

// AuthoredBy reports whether user wrote the post. Only the author may
// edit or delete it.
func (p *Post) AuthoredBy(user *User) bool {
	return user != nil && p.User.ID == user.ID
}

// ApplyLike records an accepted like or unlike on the local copy.
func (p *Post) ApplyLike(liked bool) {
	if p.IsLiked == liked {
		return
	}
	p.IsLiked = liked
	if liked {
		p.LikesCount++
	} else if p.LikesCount > 0 {
		p.LikesCount--
	}
}

// Comment is a reply on a post.
type Comment struct {
	ID             int       `json:"id"`
	UserID         int       `json:"user_id"`
	UserEmail      string    `json:"user_email"`
	Username       string    `json:"username"`
	ProfilePicture string    `json:"profile_picture"`
	Content        string    `json:"content"`
	CreatedAt      Timestamp `json:"created_at"`
}

// Message is one direct message in a conversation.
type Message struct {
	ID             int         `json:"id"`
	ConversationID int         `json:"conversation_id"`
	CreatedAt      Timestamp   `json:"created_at"`
	UserID         int         `json:"user_id"`
	Content        string      `json:"content"`
	Username       string      `json:"username"`
	ProfilePicture string      `json:"profile_picture"`
	Files          Attachments `json:"files"`
}

// Chat summarizes one conversation from the signed-in user's side.
// ID is the conversation id; UserID is the companion.
type Chat struct {
	ID             int       `json:"id"`
	UserID         int       `json:"user_id"`
	Name           string    `json:"name"`
	Username       string    `json:"username"`
	ProfilePicture string    `json:"profile_picture"`
	LastMessage    string    `json:"last_message"`
	CreatedAt      Timestamp `json:"created_at"`
}

// Page is the pagination envelope every list endpoint returns.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Pages int `json:"pages"`
}

// StatusMessage is the {"message": ...} body of action endpoints.
type StatusMessage struct {
	Message string `json:"message"`
}

// Attachments decodes message files from either shape the server
// uses: objects ({"id", "link"}) from the REST history, or bare link
// strings from the chat socket, which get their index as id.
type Attachments []File

func (a *Attachments) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = nil
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("forum: decoding attachments: %w", err)
	}

	files := make([]File, 0, len(raw))
	for index, element := range raw {
		var link string
		if err := json.Unmarshal(element, &link); err == nil {
			files = append(files, File{ID: index, Link: link})
			continue
		}
		var file File
		if err := json.Unmarshal(element, &file); err != nil {
			return fmt.Errorf("forum: decoding attachment %d: %w", index, err)
		}
		files = append(files, file)
	}
	*a = files
	return nil
}

// Timestamp is a server time. The API emits ISO 8601 both with and
// without a zone offset; offset-less values are local time, the way a
// browser reads them.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07:00",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("forum: timestamp must be a string: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(text)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// ParseTimestamp parses a server time string.
func ParseTimestamp(text string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, text, time.Local); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("forum: unrecognized timestamp %q", text)
}
