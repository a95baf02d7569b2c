// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forum

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ListChats returns the signed-in user's conversations.
func (s *Session) ListChats(ctx context.Context, page, size int) (*Page[Chat], error) {
	if size <= 0 {
		size = ChatPageSize
	}
	var result Page[Chat]
	if err := s.get(ctx, "/api/chats", pageQuery(page, size), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ChatHistory returns one page of the conversation with companionID,
// oldest message first within the page. It returns ErrNoConversation
// when the two users have never exchanged a message.
func (s *Session) ChatHistory(ctx context.Context, companionID, page, size int) (*Page[Message], error) {
	var result Page[Message]
	err := s.get(ctx, fmt.Sprintf("/api/chats/%d", companionID), pageQuery(page, size), &result)
	if IsStatus(err, http.StatusBadRequest) {
		return nil, ErrNoConversation
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SendMessage posts a text message over HTTP. This is how the first
// message of a new conversation is sent; the returned message carries
// the conversation id needed to open a ChatStream.
func (s *Session) SendMessage(ctx context.Context, companionID int, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("forum: message is empty")
	}
	request := map[string]string{"content": content}
	var message Message
	path := fmt.Sprintf("/api/chats/%d/send-message", companionID)
	if err := s.send(ctx, http.MethodPost, path, nil, jsonBody{request}, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// DeleteMessage removes one of the signed-in user's messages.
func (s *Session) DeleteMessage(ctx context.Context, messageID int) error {
	path := fmt.Sprintf("/api/chats/%d/delete-message", messageID)
	return s.send(ctx, http.MethodDelete, path, nil, nil, nil)
}
