// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forumtest

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/clock"
)

// Options configures a Server.
type Options struct {
	// AccessTokenTTL is the lifetime of issued access tokens.
	// Defaults to 30 minutes.
	AccessTokenTTL time.Duration

	// RefreshEndpoint registers POST /api/refresh-token. Without it
	// the route answers 404, like a server that never exposed it.
	RefreshEndpoint bool

	// Clock drives token expiry and timestamps. Defaults to a fake
	// clock at 2026-01-01 UTC so output is deterministic.
	Clock clock.Clock

	// Logger receives request logs. Defaults to a discarding logger.
	Logger *slog.Logger
}

// Server is an in-memory forum backend speaking the same HTTP and
// websocket protocol as the real API. Tests drive the client against
// it and inspect or seed its state directly.
type Server struct {
	*httptest.Server

	options Options
	clock   clock.Clock
	secret  []byte
	logger  *slog.Logger
	rooms   *rooms

	mutex         sync.Mutex
	nextID        int
	accounts      []*account
	posts         []*storedPost
	comments      map[int][]forum.Comment
	conversations []*conversation
	requests      []string
	failures      []failure
}

type account struct {
	user         forum.User
	passwordHash []byte
}

type storedPost struct {
	post    forum.Post
	likedBy map[int]bool
}

type conversation struct {
	id       int
	members  [2]int
	messages []forum.Message
}

type failure struct {
	status int
	detail string
}

// New starts a server and registers its shutdown with t.Cleanup.
func New(t interface {
	Helper()
	Cleanup(func())
}, options Options) *Server {
	t.Helper()
	server := NewServer(options)
	t.Cleanup(server.Close)
	return server
}

// NewServer starts a server. The caller must Close it.
func NewServer(options Options) *Server {
	if options.AccessTokenTTL <= 0 {
		options.AccessTokenTTL = 30 * time.Minute
	}
	serverClock := options.Clock
	if serverClock == nil {
		serverClock = clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	server := &Server{
		options:  options,
		clock:    serverClock,
		secret:   []byte("forumtest-signing-key"),
		logger:   logger,
		rooms:    newRooms(),
		nextID:   1,
		comments: make(map[int][]forum.Comment),
	}
	server.Server = httptest.NewServer(server.routes())
	return server
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(s.recordRequests)
	router.Use(s.injectFailures)

	router.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Get("/is-authenticated", s.handleIsAuthenticated)
		if s.options.RefreshEndpoint {
			r.Post("/refresh-token", s.handleRefresh)
		}

		r.Get("/my-profile", s.handleMyProfile)
		r.Patch("/my-profile", s.handleEditProfile)
		r.Delete("/my-profile", s.handleDeleteAccount)
		r.Patch("/my-profile/change-password", s.handleChangePassword)

		r.Get("/users", s.handleListUsers)
		r.Get("/users/{user}", s.handleGetUsers)
		r.Get("/users/{userID}/posts/", s.handleUserPosts)

		r.Get("/posts", s.handleListPosts)
		r.Post("/posts", s.handleCreatePost)
		r.Get("/posts/{post}", s.handleGetPosts)
		r.Patch("/posts/{postID}", s.handleEditPost)
		r.Delete("/posts/{postID}", s.handleDeletePost)
		r.Post("/posts/{postID}/like/", s.handleLike)
		r.Delete("/posts/{postID}/like/", s.handleUnlike)
		r.Get("/posts/{postID}/all-comments", s.handleListComments)

		r.Get("/chats", s.handleListChats)
		r.Get("/chats/{userID}", s.handleChatHistory)
		r.Post("/chats/{userID}/send-message", s.handleSendMessage)
		r.Delete("/chats/{messageID}/delete-message", s.handleDeleteMessage)
	})

	router.Get("/ws/chats/{conversationID}", s.handleChatSocket)
	router.Get("/ws/posts/{postID}", s.handleCommentSocket)
	router.Get("/media/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return router
}

// WebSocketURL returns the ws:// origin of the server.
func (s *Server) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// Requests returns "METHOD /path" for every request served so far.
func (s *Server) Requests() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return slices.Clone(s.requests)
}

// CountRequests returns how many served requests equal "METHOD /path".
func (s *Server) CountRequests(methodAndPath string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	count := 0
	for _, request := range s.requests {
		if request == methodAndPath {
			count++
		}
	}
	return count
}

// FailNext makes the next API request answer with status and detail.
// Calls queue up.
func (s *Server) FailNext(status int, detail string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.failures = append(s.failures, failure{status: status, detail: detail})
}

func (s *Server) recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mutex.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mutex.Unlock()
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mutex.Lock()
		var injected *failure
		if len(s.failures) > 0 && strings.HasPrefix(r.URL.Path, "/api/") {
			injected = &s.failures[0]
			s.failures = s.failures[1:]
		}
		s.mutex.Unlock()
		if injected != nil {
			writeDetail(w, injected.status, injected.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SeedUser creates an account directly and returns it.
func (s *Server) SeedUser(username, email, password string) forum.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("forumtest: hashing password: %v", err))
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	user := forum.User{ID: s.allocateIDLocked(), Username: username, Email: email}
	s.accounts = append(s.accounts, &account{user: user, passwordHash: hash})
	return user
}

// SeedPost creates a post authored by userID and returns it.
func (s *Server) SeedPost(userID int, topic, content string, tags ...string) forum.Post {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	author := s.accountByIDLocked(userID)
	if author == nil {
		panic(fmt.Sprintf("forumtest: no user %d", userID))
	}
	stored := &storedPost{
		post: forum.Post{
			ID:        s.allocateIDLocked(),
			Topic:     topic,
			Content:   content,
			CreatedAt: forum.Timestamp{Time: s.clock.Now()},
			Files:     []forum.File{},
			Tags:      normalizeTags(tags),
			User:      authorOf(author.user),
		},
		likedBy: make(map[int]bool),
	}
	s.posts = append(s.posts, stored)
	return stored.post
}

// SeedComment adds a comment by userID to postID and returns it.
func (s *Server) SeedComment(postID, userID int, content string) forum.Comment {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	comment, err := s.addCommentLocked(postID, userID, content)
	if err != nil {
		panic(err.Error())
	}
	return comment
}

// SeedMessage sends a message from one user to another, creating the
// conversation when needed.
func (s *Server) SeedMessage(fromID, toID int, content string) forum.Message {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.addMessageLocked(fromID, toID, content, nil)
}

// Post returns the stored post as an anonymous reader sees it.
func (s *Server) Post(postID int) (forum.Post, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	stored := s.postByIDLocked(postID)
	if stored == nil {
		return forum.Post{}, false
	}
	return s.viewPostLocked(stored, nil), true
}

// User returns the stored account.
func (s *Server) User(userID int) (forum.User, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	found := s.accountByIDLocked(userID)
	if found == nil {
		return forum.User{}, false
	}
	return found.user, true
}

// Messages returns the messages between two users, oldest first.
func (s *Server) Messages(userA, userB int) []forum.Message {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	found := s.conversationBetweenLocked(userA, userB)
	if found == nil {
		return nil
	}
	return slices.Clone(found.messages)
}

// Comments returns a post's comments, oldest first.
func (s *Server) Comments(postID int) []forum.Comment {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return slices.Clone(s.comments[postID])
}

func (s *Server) allocateIDLocked() int {
	id := s.nextID
	s.nextID++
	return id
}

func (s *Server) accountByIDLocked(id int) *account {
	for _, candidate := range s.accounts {
		if candidate.user.ID == id {
			return candidate
		}
	}
	return nil
}

func (s *Server) accountByEmailLocked(email string) *account {
	for _, candidate := range s.accounts {
		if strings.EqualFold(candidate.user.Email, email) {
			return candidate
		}
	}
	return nil
}

func (s *Server) postByIDLocked(id int) *storedPost {
	for _, candidate := range s.posts {
		if candidate.post.ID == id {
			return candidate
		}
	}
	return nil
}

func (s *Server) conversationBetweenLocked(userA, userB int) *conversation {
	for _, candidate := range s.conversations {
		if (candidate.members[0] == userA && candidate.members[1] == userB) ||
			(candidate.members[0] == userB && candidate.members[1] == userA) {
			return candidate
		}
	}
	return nil
}

func (s *Server) conversationByIDLocked(id int) *conversation {
	for _, candidate := range s.conversations {
		if candidate.id == id {
			return candidate
		}
	}
	return nil
}

// viewPostLocked renders a post for viewer, who may be nil.
func (s *Server) viewPostLocked(stored *storedPost, viewer *account) forum.Post {
	post := stored.post
	post.Files = slices.Clone(post.Files)
	post.Tags = slices.Clone(post.Tags)
	post.LikesCount = len(stored.likedBy)
	post.CommentsCount = len(s.comments[post.ID])
	if viewer != nil {
		post.IsLiked = stored.likedBy[viewer.user.ID]
	}
	if author := s.accountByIDLocked(post.User.ID); author != nil {
		post.User = authorOf(author.user)
	}
	return post
}

func (s *Server) addCommentLocked(postID, userID int, content string) (forum.Comment, error) {
	if s.postByIDLocked(postID) == nil {
		return forum.Comment{}, fmt.Errorf("forumtest: no post %d", postID)
	}
	author := s.accountByIDLocked(userID)
	if author == nil {
		return forum.Comment{}, fmt.Errorf("forumtest: no user %d", userID)
	}
	comment := forum.Comment{
		ID:             s.allocateIDLocked(),
		UserID:         author.user.ID,
		UserEmail:      author.user.Email,
		Username:       author.user.Username,
		ProfilePicture: author.user.ProfilePicture,
		Content:        content,
		CreatedAt:      forum.Timestamp{Time: s.clock.Now()},
	}
	s.comments[postID] = append(s.comments[postID], comment)
	return comment, nil
}

func (s *Server) addMessageLocked(fromID, toID int, content string, files []forum.File) forum.Message {
	found := s.conversationBetweenLocked(fromID, toID)
	if found == nil {
		found = &conversation{id: s.allocateIDLocked(), members: [2]int{fromID, toID}}
		s.conversations = append(s.conversations, found)
	}
	sender := s.accountByIDLocked(fromID)
	message := forum.Message{
		ID:             s.allocateIDLocked(),
		ConversationID: found.id,
		CreatedAt:      forum.Timestamp{Time: s.clock.Now()},
		UserID:         fromID,
		Content:        content,
		Files:          forum.Attachments(files),
	}
	if message.Files == nil {
		message.Files = forum.Attachments{}
	}
	if sender != nil {
		message.Username = sender.user.Username
		message.ProfilePicture = sender.user.ProfilePicture
	}
	found.messages = append(found.messages, message)
	return message
}

func authorOf(user forum.User) forum.Author {
	return forum.Author{
		ID:             user.ID,
		Username:       user.Username,
		Email:          user.Email,
		ProfilePicture: user.ProfilePicture,
	}
}

func normalizeTags(tags []string) []string {
	normalized := []string{}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" && !slices.Contains(normalized, tag) {
			normalized = append(normalized, tag)
		}
	}
	return normalized
}

// paginate slices items the way fastapi-pagination does: size and page
// query parameters, defaults 50 and 1, pages rounded up.
func paginate[T any](r *http.Request, items []T) forum.Page[T] {
	size := queryInt(r, "size", 50)
	page := queryInt(r, "page", 1)
	size = max(size, 1)
	page = max(page, 1)

	total := len(items)
	start := min((page-1)*size, total)
	end := min(start+size, total)
	window := slices.Clone(items[start:end])
	if window == nil {
		window = []T{}
	}
	return forum.Page[T]{
		Items: window,
		Total: total,
		Page:  page,
		Size:  size,
		Pages: int(math.Ceil(float64(total) / float64(size))),
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return value
}

func pathInt(r *http.Request, name string) (int, bool) {
	value, err := strconv.Atoi(chi.URLParam(r, name))
	return value, err == nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(value)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func newestFirst(a, b *storedPost) int {
	return cmp.Compare(b.post.ID, a.post.ID)
}
