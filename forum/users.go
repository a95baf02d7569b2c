// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forum

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ListUsers returns one page of all users.
func (c *Client) ListUsers(ctx context.Context, page, size int) (*Page[User], error) {
	var result Page[User]
	if err := c.get(ctx, "/api/users", pageQuery(page, size), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchUsers returns users whose name matches query. A leading "@"
// is stripped, so the raw search box text can be passed through.
func (c *Client) SearchUsers(ctx context.Context, query string, page, size int) (*Page[User], error) {
	query = strings.TrimPrefix(strings.TrimSpace(query), "@")
	if query == "" {
		return c.ListUsers(ctx, page, size)
	}
	var result Page[User]
	if err := c.get(ctx, "/api/users/"+pathSegment(query), pageQuery(page, size), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetUser fetches a user by numeric id or exact username. The endpoint
// answers with a page; its first item is the user.
func (c *Client) GetUser(ctx context.Context, idOrName string) (*User, error) {
	path := "/api/users/" + pathSegment(idOrName)
	var result Page[User]
	if err := c.get(ctx, path, nil, &result); err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, &APIError{StatusCode: http.StatusNotFound, Detail: "user not found", Method: http.MethodGet, Path: path}
	}
	user := result.Items[0]
	return &user, nil
}

// ListUserPosts returns one page of a user's posts, newest first.
func (c *Client) ListUserPosts(ctx context.Context, userID, page, size int) (*Page[Post], error) {
	var result Page[Post]
	path := fmt.Sprintf("/api/users/%d/posts/", userID)
	if err := c.get(ctx, path, pageQuery(page, size), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
