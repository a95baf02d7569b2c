// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forum

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// Me returns the signed-in user's profile.
func (s *Session) Me(ctx context.Context) (*User, error) {
	var user User
	if err := s.get(ctx, "/api/my-profile", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ProfileEdit holds the desired profile values. A nil Picture keeps
// the current picture.
type ProfileEdit struct {
	Username string
	Bio      string
	Picture  *Upload
}

// EditProfile sends the changed fields of the profile and returns the
// updated user. It returns ErrNothingChanged without a request when no
// field differs from current and no picture is given.
func (s *Session) EditProfile(ctx context.Context, current *User, edit ProfileEdit) (*User, error) {
	query := url.Values{}
	if edit.Username != current.Username {
		query.Set("username", edit.Username)
	}
	if edit.Bio != current.Bio {
		query.Set("bio", edit.Bio)
	}
	if len(query) == 0 && edit.Picture == nil {
		return nil, ErrNothingChanged
	}

	body := multipartBody{field: "profile_picture", sendEmpty: true}
	if edit.Picture != nil {
		body.files = []Upload{*edit.Picture}
	}
	var updated User
	if err := s.send(ctx, http.MethodPatch, "/api/my-profile", query, body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// ChangePassword replaces the account password. A rejected old
// password is reported as ErrWrongPassword, whether the server says so
// with a false body or a 401. A 401 does not refresh the session, so a
// wrong password is submitted once.
func (s *Session) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	request := map[string]string{"old_password": oldPassword, "new_password": newPassword}
	var changed bool
	err := s.withoutRefresh().send(ctx, http.MethodPatch, "/api/my-profile/change-password", nil, jsonBody{request}, &changed)
	if IsUnauthorized(err) {
		return ErrWrongPassword
	}
	if err != nil {
		return err
	}
	if !changed {
		return ErrWrongPassword
	}
	return nil
}

// DeleteAccount permanently removes the account after confirming the
// password. The session's cookies are dropped on success. As with
// ChangePassword, a 401 is final.
func (s *Session) DeleteAccount(ctx context.Context, password string) error {
	request := map[string]string{"password": password}
	err := s.withoutRefresh().send(ctx, http.MethodDelete, "/api/my-profile", nil, jsonBody{request}, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return ErrWrongPassword
		}
	}
	if err != nil {
		return err
	}
	s.dropCredentials()
	return nil
}
