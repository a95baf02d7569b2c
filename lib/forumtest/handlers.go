// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forumtest

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/agora-forum/agora/forum"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
)

// issueToken signs an HS256 token for email.
func (s *Server) issueToken(email string, ttl time.Duration) string {
	now := s.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   email,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic("forumtest: signing token: " + err.Error())
	}
	return signed
}

// IssueAccessToken returns a valid access token for email, for tests
// that build credentials without logging in.
func (s *Server) IssueAccessToken(email string) string {
	return s.issueToken(email, s.options.AccessTokenTTL)
}

// subjectOf verifies token and returns its subject.
func (s *Server) subjectOf(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// authenticate resolves the access token cookie, writing the error
// response itself when the request is not authenticated.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) *account {
	cookie, err := r.Cookie(accessCookie)
	if err != nil || cookie.Value == "" {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return nil
	}
	email, err := s.subjectOf(cookie.Value)
	if errors.Is(err, jwt.ErrTokenExpired) {
		writeDetail(w, http.StatusUnauthorized, "Token has expired")
		return nil
	}
	if err != nil {
		writeDetail(w, http.StatusForbidden, "Could not validate credentials")
		return nil
	}

	s.mutex.Lock()
	found := s.accountByEmailLocked(email)
	s.mutex.Unlock()
	if found == nil {
		writeDetail(w, http.StatusNotFound, "User not found")
		return nil
	}
	return found
}

// viewer returns the authenticated account or nil, without writing a
// response. Read endpoints use it to fill per-user fields.
func (s *Server) viewer(r *http.Request) *account {
	cookie, err := r.Cookie(accessCookie)
	if err != nil {
		return nil
	}
	email, err := s.subjectOf(cookie.Value)
	if err != nil {
		return nil
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.accountByEmailLocked(email)
}

func (s *Server) setSessionCookies(w http.ResponseWriter, email string) {
	http.SetCookie(w, &http.Cookie{Name: accessCookie, Value: s.issueToken(email, s.options.AccessTokenTTL), Path: "/", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: s.issueToken(email, 30*24*time.Hour), Path: "/", HttpOnly: true})
}

func clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: accessCookie, Path: "/", MaxAge: -1})
	http.SetCookie(w, &http.Cookie{Name: refreshCookie, Path: "/", MaxAge: -1})
}

func decodeBody(r *http.Request, into any) bool {
	return json.NewDecoder(r.Body).Decode(into) == nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(r, &request) || request.Username == "" || request.Email == "" || request.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "username, email and password are required")
		return
	}

	s.mutex.Lock()
	taken := s.accountByEmailLocked(request.Email) != nil ||
		slices.ContainsFunc(s.accounts, func(a *account) bool { return a.user.Username == request.Username })
	s.mutex.Unlock()
	if taken {
		writeDetail(w, http.StatusBadRequest, "User with this email or username already exists")
		return
	}

	user := s.SeedUser(request.Username, request.Email, request.Password)
	writeJSON(w, http.StatusOK, forum.StatusMessage{Message: user.Username + " has been registered."})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(r, &request) {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	s.mutex.Lock()
	found := s.accountByEmailLocked(request.Email)
	s.mutex.Unlock()
	if found == nil || bcrypt.CompareHashAndPassword(found.passwordHash, []byte(request.Password)) != nil {
		writeDetail(w, http.StatusBadRequest, "Incorrect email or password")
		return
	}
	s.setSessionCookies(w, found.user.Email)
	writeJSON(w, http.StatusOK, forum.StatusMessage{Message: "Login successful."})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	_, accessErr := r.Cookie(accessCookie)
	_, refreshErr := r.Cookie(refreshCookie)
	if accessErr != nil && refreshErr != nil {
		writeDetail(w, http.StatusBadRequest, "You are not authorized")
		return
	}
	clearSessionCookies(w)
	writeJSON(w, http.StatusOK, forum.StatusMessage{Message: "Logout successful"})
}

func (s *Server) handleIsAuthenticated(w http.ResponseWriter, r *http.Request) {
	if s.authenticate(w, r) == nil {
		return
	}
	writeJSON(w, http.StatusOK, true)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var request struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeBody(r, &request) {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	email, err := s.subjectOf(request.RefreshToken)
	if err != nil || email == "" {
		writeDetail(w, http.StatusForbidden, "Invalid refresh token")
		return
	}
	s.setSessionCookies(w, email)
	writeJSON(w, http.StatusOK, forum.StatusMessage{Message: "Token updated."})
}

func (s *Server) handleMyProfile(w http.ResponseWriter, r *http.Request) {
	current := s.authenticate(w, r)
	if current == nil {
		return
	}
	s.mutex.Lock()
	user := current.user
	s.mutex.Unlock()
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleEditProfile(w http.ResponseWriter, r *http.Request) {
	current := s.authenticate(w, r)
	if current == nil {
		return
	}
	links, err := s.uploadedLinks(r, "profile_picture")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	query := r.URL.Query()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if query.Has("username") {
		username := query.Get("username")
		if len(username) < 3 || len(username) > 20 {
			writeDetail(w, http.StatusUnprocessableEntity, "Username must be between 3 and 20 characters")
			return
		}
		current.user.Username = username
	}
	if query.Has("bio") {
		current.user.Bio = query.Get("bio")
	}
	if len(links) > 0 {
		current.user.ProfilePicture = links[0]
	}
	writeJSON(w, http.StatusOK, current.user)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	current := s.authenticate(w, r)
	if current == nil {
		return
	}
	var request struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if !decodeBody(r, &request) {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if bcrypt.CompareHashAndPassword(current.passwordHash, []byte(request.OldPassword)) != nil {
		writeJSON(w, http.StatusOK, false)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(request.NewPassword), bcrypt.MinCost)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.mutex.Lock()
	current.passwordHash = hash
	s.mutex.Unlock()
	writeJSON(w, http.StatusOK, true)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	current := s.authenticate(w, r)
	if current == nil {
		return
	}
	var request struct {
		Password string `json:"password"`
	}
	if !decodeBody(r, &request) || bcrypt.CompareHashAndPassword(current.passwordHash, []byte(request.Password)) != nil {
		writeDetail(w, http.StatusBadRequest, "Wrong password")
		return
	}
	s.mutex.Lock()
	s.accounts = slices.DeleteFunc(s.accounts, func(a *account) bool { return a == current })
	s.posts = slices.DeleteFunc(s.posts, func(p *storedPost) bool { return p.post.User.ID == current.user.ID })
	s.mutex.Unlock()
	clearSessionCookies(w)
	writeJSON(w, http.StatusOK, forum.StatusMessage{Message: "Your account has been deleted."})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	users := make([]forum.User, 0, len(s.accounts))
	for _, candidate := range s.accounts {
		users = append(users, candidate.user)
	}
	s.mutex.Unlock()
	writeJSON(w, http.StatusOK, paginate(r, users))
}

// handleGetUsers answers both lookups by id and username searches:
// a numeric segment selects that user, anything else matches
// usernames containing it, exact matches first.
func (s *Server) handleGetUsers(w http.ResponseWriter, r *http.Request) {
	segment := chi.URLParam(r, "user")
	s.mutex.Lock()
	var matches []forum.User
	if id, err := strconv.Atoi(segment); err == nil {
		if found := s.accountByIDLocked(id); found != nil {
			matches = append(matches, found.user)
		}
	} else {
		needle := strings.ToLower(segment)
		for _, candidate := range s.accounts {
			name := strings.ToLower(candidate.user.Username)
			if name == needle {
				matches = slices.Insert(matches, 0, candidate.user)
			} else if strings.Contains(name, needle) {
				matches = append(matches, candidate.user)
			}
		}
	}
	s.mutex.Unlock()
	if matches == nil {
		matches = []forum.User{}
	}
	writeJSON(w, http.StatusOK, paginate(r, matches))
}

func (s *Server) handleUserPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathInt(r, "userID")
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "user id must be an integer")
		return
	}
	viewer := s.viewer(r)
	s.mutex.Lock()
	posts := s.postsLocked(viewer, func(p *storedPost) bool { return p.post.User.ID == userID })
	s.mutex.Unlock()
	writeJSON(w, http.StatusOK, paginate(r, posts))
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	viewer := s.viewer(r)
	s.mutex.Lock()
	posts := s.postsLocked(viewer, func(*storedPost) bool { return true })
	s.mutex.Unlock()
	writeJSON(w, http.StatusOK, paginate(r, posts))
}

// handleGetPosts returns one post for a numeric segment and search
// results otherwise. Search matches topic, content and tags.
func (s *Server) handleGetPosts(w http.ResponseWriter, r *http.Request) {
	segment := chi.URLParam(r, "post")
	viewer := s.viewer(r)
	s.mutex.Lock()
	var posts []forum.Post
	if id, err := strconv.Atoi(segment); err == nil {
		posts = s.postsLocked(viewer, func(p *storedPost) bool { return p.post.ID == id })
	} else {
		needle := strings.ToLower(segment)
		posts = s.postsLocked(viewer, func(p *storedPost) bool {
			return strings.Contains(strings.ToLower(p.post.Topic), needle) ||
				strings.Contains(strings.ToLower(p.post.Content), needle) ||
				slices.ContainsFunc(p.post.Tags, func(tag string) bool { return strings.EqualFold(tag, needle) })
		})
	}
	s.mutex.Unlock()
	writeJSON(w, http.StatusOK, paginate(r, posts))
}

func (s *Server) postsLocked(viewer *account, keep func(*storedPost) bool) []forum.Post {
	sorted := slices.Clone(s.posts)
	slices.SortFunc(sorted, newestFirst)
	posts := []forum.Post{}
	for _, stored := range sorted {
		if keep(stored) {
			posts = append(posts, s.viewPostLocked(stored, viewer))
		}
	}
	return posts
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	current := s.authenticate(w, r)
	if current == nil {
		return
	}
	query := r.URL.Query()
	topic := strings.TrimSpace(query.Get("topic"))
	content := strings.TrimSpace(query.Get("content"))
	if len(topic) < 3 || len(content) < 10 {
		writeDetail(w, http.StatusUnprocessableEntity, "topic or content too short")
		return
	}
	links, err := s.uploadedLinks(r, "files")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var tags []string
	if raw := query.Get("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}
	post := s.SeedPost(current.user.ID, topic, content, tags...)

	s.mutex.Lock()
	stored := s.postByIDLocked(post.ID)
	for index, link := range links {
		stored.post.Files = append(stored.post.Files, forum.File{ID: index + 1, Link: link})
	}
	view := s.viewPostLocked(stored, current)
	s.mutex.Unlock()
	writeJSON(w, http.StatusOK, view)
}

// ownedPost finds postID and checks current wrote it, writing the
// error response otherwise. The caller must hold the mutex.
func (s *Server) ownedPostLocked(w http.ResponseWriter, r *http.Request, current *account) *storedPost {
	postID, ok := pathInt(r, "postID")
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "post id must be an integer")
		return nil
	}
	stored := s.postByIDLocked(postID)
	if stored == nil {
		writeDetail(w, http.StatusNotFound, "Post not found")
		return nil
	}
	if stored.post.User.ID != current.user.ID {
		writeDetail(w, http.StatusForbidden, "You are not the author of this post")
		return nil
	}
	return stored
}

func (s *Server) handleEditPost(w http.ResponseWriter, r *http.Request) {
	current := s.authenticate(w, r)
	if current == nil {
		return
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	stored := s.ownedPostLocked(w, r, current)
	if stored == nil {
		return
	}
	query := r.URL.Query()
	if query.Has("topic") {
		stored.post.Topic = query.Get("topic")
	}
	if query.Has("content") {
		stored.post.Content = query.Get("content")
	}
	if query.Has("tags") {
		stored.post.Tags = normalizeTags(strings.Split(query.Get("tags"), ","))
	}
	writeJSON(w, http.StatusOK, s.viewPostLocked(stored, current))
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	current := s.authenticate(w, r)
	if current == nil {
		return
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	stored := s.ownedPostLocked(w, r, current)
	if stored == nil {
		return
	}
	s.posts = slices.DeleteFunc(s.posts, func(p *storedPost) bool { return p == stored })
	delete(s.comments, stored.post.ID)
	writeJSON(w, http.StatusOK, forum.StatusMessage{Message: "Post deleted."})
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	s.setLike(w, r, true)
}

func (s *Server) handleUnlike(w http.ResponseWriter, r *http.Request) {
	s.setLike(w, r, false)
}

func (s *Server) setLike(w http.ResponseWriter, r *http.Request, liked bool) {
	current := s.authenticate(w, r)
	if current == nil {
		return
	}
	postID, ok := pathInt(r, "postID")
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "post id must be an integer")
		return
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	stored := s.postByIDLocked(postID)
	if stored == nil {
		writeDetail(w, http.StatusNotFound, "Post not found")
		return
	}
	if stored.likedBy[current.user.ID] == liked {
		if liked {
			writeDetail(w, http.StatusBadRequest, "You already liked this post")
		} else {
			writeDetail(w, http.StatusBadRequest, "You have not liked this post")
		}
		return
	}
	if liked {
		stored.likedBy[current.user.ID] = true
	} else {
		delete(stored.likedBy, current.user.ID)
	}
	writeJSON(w, http.StatusOK, forum.StatusMessage{Message: "ok"})
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathInt(r, "postID")
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "post id must be an integer")
		return
	}
	s.mutex.Lock()
	comments := slices.Clone(s.comments[postID])
	s.mutex.Unlock()
	writeJSON(w, http.StatusOK, paginate(r, comments))
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	current := s.authenticate(w, r)
	if current == nil {
		return
	}
	s.mutex.Lock()
	chats := []forum.Chat{}
	for _, candidate := range s.conversations {
		if candidate.members[0] != current.user.ID && candidate.members[1] != current.user.ID {
			continue
		}
		companionID := candidate.members[0]
		if companionID == current.user.ID {
			companionID = candidate.members[1]
		}
		chat := forum.Chat{ID: candidate.id, UserID: companionID}
		if companion := s.accountByIDLocked(companionID); companion != nil {
			chat.Name = companion.user.Username
			chat.Username = companion.user.Username
			chat.ProfilePicture = companion.user.ProfilePicture
		}
		if count := len(candidate.messages); count > 0 {
			last := candidate.messages[count-1]
			chat.LastMessage = last.Content
			chat.CreatedAt = last.CreatedAt
		}
		chats = append(chats, chat)
	}
	s.mutex.Unlock()
	slices.SortStableFunc(chats, func(a, b forum.Chat) int { return b.CreatedAt.Compare(a.CreatedAt.Time) })
	writeJSON(w, http.StatusOK, paginate(r, chats))
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	current := s.authenticate(w, r)
	if current == nil {
		return
	}
	companionID, ok := pathInt(r, "userID")
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "user id must be an integer")
		return
	}
	s.mutex.Lock()
	found := s.conversationBetweenLocked(current.user.ID, companionID)
	var messages []forum.Message
	if found != nil {
		messages = slices.Clone(found.messages)
	}
	s.mutex.Unlock()
	if found == nil {
		writeDetail(w, http.StatusBadRequest, "Conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, paginate(r, messages))
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	current := s.authenticate(w, r)
	if current == nil {
		return
	}
	companionID, ok := pathInt(r, "userID")
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "user id must be an integer")
		return
	}
	var request struct {
		Content string `json:"content"`
	}
	if !decodeBody(r, &request) || strings.TrimSpace(request.Content) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "content is required")
		return
	}
	s.mutex.Lock()
	if s.accountByIDLocked(companionID) == nil {
		s.mutex.Unlock()
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	message := s.addMessageLocked(current.user.ID, companionID, strings.TrimSpace(request.Content), nil)
	s.mutex.Unlock()

	s.rooms.broadcast(chatRoom(message.ConversationID), socketMessage(message))
	writeJSON(w, http.StatusOK, message)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	current := s.authenticate(w, r)
	if current == nil {
		return
	}
	messageID, ok := pathInt(r, "messageID")
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "message id must be an integer")
		return
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, candidate := range s.conversations {
		for index, message := range candidate.messages {
			if message.ID != messageID {
				continue
			}
			if message.UserID != current.user.ID {
				writeDetail(w, http.StatusForbidden, "You can only delete your own messages")
				return
			}
			candidate.messages = slices.Delete(candidate.messages, index, index+1)
			writeJSON(w, http.StatusOK, forum.StatusMessage{Message: "Message deleted."})
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Message not found")
}

// uploadedLinks reads the multipart files under field and returns the
// media links they are stored at. An empty string value means none.
func (s *Server) uploadedLinks(r *http.Request, field string) ([]string, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return nil, nil
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, err
	}
	var links []string
	for _, header := range r.MultipartForm.File[field] {
		if header.Filename == "" {
			continue
		}
		links = append(links, s.URL+"/media/"+uuid.NewString()+"-"+header.Filename)
	}
	return links, nil
}
