// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forum

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Cookie names set by the login endpoint.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// Credentials are the auth cookie values of a session. They are what
// gets persisted between CLI invocations.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Empty reports whether no access token is held.
func (c Credentials) Empty() bool {
	return c.AccessToken == ""
}

// Session is an authenticated client. It embeds a Client whose HTTP
// requests carry the auth cookies, so every read operation of Client
// is also available (with per-user fields such as Post.IsLiked
// populated). Safe for concurrent use.
type Session struct {
	*Client

	jar    http.CookieJar
	apiURL *url.URL

	refreshMutex sync.Mutex

	hookMutex          sync.Mutex
	onCredentialChange func(Credentials)
}

// Register creates a new account. The server replies with a
// confirmation message; the user must still log in.
func (c *Client) Register(ctx context.Context, username, email, password string) (string, error) {
	request := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}
	var response StatusMessage
	if err := c.send(ctx, http.MethodPost, "/api/register", nil, jsonBody{request}, &response); err != nil {
		return "", err
	}
	return response.Message, nil
}

// Login authenticates with email and password and returns a Session
// holding the cookies the server set.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	session, err := c.newSession()
	if err != nil {
		return nil, err
	}
	request := map[string]string{"email": email, "password": password}
	if err := session.Client.send(ctx, http.MethodPost, "/api/login", nil, jsonBody{request}, nil); err != nil {
		return nil, err
	}
	if session.Credentials().Empty() {
		return nil, fmt.Errorf("forum: login succeeded but the server set no %s cookie", AccessTokenCookie)
	}
	c.logger.Info("logged in", "email", email)
	return session, nil
}

// SessionFromCookies rebuilds a Session from stored credentials
// without contacting the server. Use IsAuthenticated to check whether
// they are still accepted.
func (c *Client) SessionFromCookies(credentials Credentials) (*Session, error) {
	if credentials.Empty() {
		return nil, ErrNotAuthenticated
	}
	session, err := c.newSession()
	if err != nil {
		return nil, err
	}
	session.setCredentials(credentials)
	return session, nil
}

func (c *Client) newSession() (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("forum: creating cookie jar: %w", err)
	}
	apiURL, err := url.Parse(c.baseURL + "/api/")
	if err != nil {
		return nil, fmt.Errorf("forum: parsing API URL: %w", err)
	}

	httpClient := *c.httpClient
	httpClient.Jar = jar

	bound := *c
	bound.httpClient = &httpClient
	session := &Session{Client: &bound, jar: jar, apiURL: apiURL}
	bound.refresh = session.refreshCredentials
	bound.account = session.account
	return session, nil
}

// Credentials returns the current auth cookie values.
func (s *Session) Credentials() Credentials {
	var credentials Credentials
	for _, cookie := range s.jar.Cookies(s.apiURL) {
		switch cookie.Name {
		case AccessTokenCookie:
			credentials.AccessToken = cookie.Value
		case RefreshTokenCookie:
			credentials.RefreshToken = cookie.Value
		}
	}
	return credentials
}

// account returns the subject of the current access token, or "" when
// the token is missing or unreadable.
func (s *Session) account() string {
	token, err := ParseToken(s.Credentials().AccessToken)
	if err != nil {
		return ""
	}
	return token.Subject
}

// OnCredentialChange registers a callback run after the session
// refreshes its cookies, so the caller can persist the new values.
func (s *Session) OnCredentialChange(callback func(Credentials)) {
	s.hookMutex.Lock()
	defer s.hookMutex.Unlock()
	s.onCredentialChange = callback
}

func (s *Session) setCredentials(credentials Credentials) {
	cookies := []*http.Cookie{{Name: AccessTokenCookie, Value: credentials.AccessToken, Path: "/"}}
	if credentials.RefreshToken != "" {
		cookies = append(cookies, &http.Cookie{Name: RefreshTokenCookie, Value: credentials.RefreshToken, Path: "/"})
	}
	s.jar.SetCookies(s.apiURL, cookies)
}

// cookieHeader renders the auth cookies for a websocket handshake,
// whose host may differ from the API host the jar is keyed on.
func (s *Session) cookieHeader() string {
	var parts []string
	for _, cookie := range s.jar.Cookies(s.apiURL) {
		parts = append(parts, cookie.Name+"="+cookie.Value)
	}
	return strings.Join(parts, "; ")
}

// refreshCredentials exchanges the refresh token for new cookies.
// Concurrent 401s are serialized; a caller that waited behind a
// successful refresh retries with the new cookies without refreshing
// again.
func (s *Session) refreshCredentials(ctx context.Context) error {
	before := s.Credentials()

	s.refreshMutex.Lock()
	defer s.refreshMutex.Unlock()

	current := s.Credentials()
	if current.AccessToken != before.AccessToken {
		return nil
	}
	if current.RefreshToken == "" {
		return ErrNotAuthenticated
	}

	request := map[string]string{"refresh_token": current.RefreshToken}
	requestURL := s.baseURL + "/api/refresh-token"
	if _, err := s.roundTrip(ctx, http.MethodPost, "/api/refresh-token", requestURL, jsonBody{request}); err != nil {
		if IsNotFound(err) {
			// Servers without the refresh route: the session has expired.
			return ErrNotAuthenticated
		}
		return fmt.Errorf("forum: refreshing session: %w", err)
	}

	updated := s.Credentials()
	s.logger.Debug("session refreshed")

	s.hookMutex.Lock()
	callback := s.onCredentialChange
	s.hookMutex.Unlock()
	if callback != nil {
		callback(updated)
	}
	return nil
}

// IsAuthenticated asks the server whether the session cookies are
// accepted. A 401 or 403 is reported as false rather than an error.
func (s *Session) IsAuthenticated(ctx context.Context) (bool, error) {
	var authenticated bool
	err := s.get(ctx, "/api/is-authenticated", nil, &authenticated)
	if IsUnauthorized(err) || IsStatus(err, http.StatusForbidden) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return authenticated, nil
}

// Logout clears the session on the server and drops the local
// cookies. The local cookies are dropped even when the request fails.
func (s *Session) Logout(ctx context.Context) error {
	err := s.send(ctx, http.MethodPost, "/api/logout", nil, nil, nil)
	s.dropCredentials()
	return err
}

func (s *Session) dropCredentials() {
	s.jar.SetCookies(s.apiURL, []*http.Cookie{
		{Name: AccessTokenCookie, Path: "/", MaxAge: -1},
		{Name: RefreshTokenCookie, Path: "/", MaxAge: -1},
	})
}
