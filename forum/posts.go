// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forum

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// Default page sizes used by the browsing views.
const (
	PostPageSize    = 5
	CommentPageSize = 10
	UserPageSize    = 10
	MessagePageSize = 20
	ChatPageSize    = 50
)

// ListPosts returns one page of the newest posts.
func (c *Client) ListPosts(ctx context.Context, page, size int) (*Page[Post], error) {
	var result Page[Post]
	if err := c.get(ctx, "/api/posts", pageQuery(page, size), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchPosts returns posts matching query in topic, content or tags.
func (c *Client) SearchPosts(ctx context.Context, query string, page, size int) (*Page[Post], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.ListPosts(ctx, page, size)
	}
	var result Page[Post]
	if err := c.get(ctx, "/api/posts/"+pathSegment(query), pageQuery(page, size), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPost fetches a single post. The endpoint answers with a page whose
// first item is the post; an empty page is reported as a 404.
func (c *Client) GetPost(ctx context.Context, postID int) (*Post, error) {
	path := "/api/posts/" + strconv.Itoa(postID)
	var result Page[Post]
	if err := c.get(ctx, path, nil, &result); err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, &APIError{StatusCode: http.StatusNotFound, Detail: "post not found", Method: http.MethodGet, Path: path}
	}
	post := result.Items[0]
	return &post, nil
}

// ListComments returns one page of a post's comments, oldest first.
func (c *Client) ListComments(ctx context.Context, postID, page, size int) (*Page[Comment], error) {
	var result Page[Comment]
	path := fmt.Sprintf("/api/posts/%d/all-comments", postID)
	if err := c.get(ctx, path, pageQuery(page, size), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// NewPost is the input of CreatePost.
type NewPost struct {
	Topic   string
	Content string
	Tags    []string
	Files   []Upload
}

// CreatePost publishes a post and returns it as stored by the server.
func (s *Session) CreatePost(ctx context.Context, post NewPost) (*Post, error) {
	query := url.Values{}
	query.Set("topic", strings.TrimSpace(post.Topic))
	query.Set("content", strings.TrimSpace(post.Content))
	if len(post.Tags) > 0 {
		query.Set("tags", JoinTags(post.Tags))
	}

	var created Post
	body := multipartBody{field: "files", files: post.Files, sendEmpty: true}
	if err := s.send(ctx, http.MethodPost, "/api/posts", query, body, &created); err != nil {
		return nil, err
	}
	s.logger.Info("post created", "post_id", created.ID, "files", len(post.Files))
	return &created, nil
}

// PostEdit holds the desired values of an edited post.
type PostEdit struct {
	Topic   string
	Content string
	Tags    []string
}

// EditPost sends only the fields that differ from current. It returns
// ErrNothingChanged without a request when nothing differs.
func (s *Session) EditPost(ctx context.Context, current *Post, edit PostEdit) error {
	query := url.Values{}
	if edit.Topic != current.Topic {
		query.Set("topic", edit.Topic)
	}
	if edit.Content != current.Content {
		query.Set("content", edit.Content)
	}
	if !slices.Equal(edit.Tags, current.Tags) {
		query.Set("tags", JoinTags(edit.Tags))
	}
	if len(query) == 0 {
		return ErrNothingChanged
	}
	path := "/api/posts/" + strconv.Itoa(current.ID)
	return s.send(ctx, http.MethodPatch, path, query, jsonBody{struct{}{}}, nil)
}

// DeletePost removes a post the session user authored.
func (s *Session) DeletePost(ctx context.Context, postID int) error {
	return s.send(ctx, http.MethodDelete, "/api/posts/"+strconv.Itoa(postID), nil, nil, nil)
}

// LikePost likes a post.
func (s *Session) LikePost(ctx context.Context, postID int) error {
	return s.send(ctx, http.MethodPost, fmt.Sprintf("/api/posts/%d/like/", postID), nil, jsonBody{struct{}{}}, nil)
}

// UnlikePost withdraws a like.
func (s *Session) UnlikePost(ctx context.Context, postID int) error {
	return s.send(ctx, http.MethodDelete, fmt.Sprintf("/api/posts/%d/like/", postID), nil, nil, nil)
}

// ToggleLike likes or unlikes post depending on its current state and
// updates the local copy only once the server has accepted the change.
func (s *Session) ToggleLike(ctx context.Context, post *Post) error {
	var err error
	if post.IsLiked {
		err = s.UnlikePost(ctx, post.ID)
	} else {
		err = s.LikePost(ctx, post.ID)
	}
	if err != nil {
		return err
	}
	post.ApplyLike(!post.IsLiked)
	return nil
}

// SplitTags parses the tag input of the post forms, separated by
// whitespace or commas, so JoinTags output splits back to the same
// tags. Empty entries are dropped and duplicates keep their first
// position.
func SplitTags(input string) []string {
	var tags []string
	separator := func(r rune) bool { return r == ',' || unicode.IsSpace(r) }
	for _, field := range strings.FieldsFunc(input, separator) {
		if !slices.Contains(tags, field) {
			tags = append(tags, field)
		}
	}
	return tags
}

// JoinTags renders tags the way the API expects them in the tags
// query parameter.
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}
