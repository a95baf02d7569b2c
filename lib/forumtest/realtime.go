// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forumtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agora-forum/agora/forum"
)

const (
	peerWriteWait = 5 * time.Second
	peerBuffer    = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// peer is one connected socket. Only its write pump writes to conn.
type peer struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (p *peer) close() {
	p.once.Do(func() { close(p.send) })
}

func (p *peer) writePump() {
	defer p.conn.Close()
	for frame := range p.send {
		p.conn.SetWriteDeadline(time.Now().Add(peerWriteWait))
		if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
	p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(peerWriteWait))
}

// rooms fans frames out to every peer subscribed to a room key.
type rooms struct {
	mutex   sync.Mutex
	members map[string]map[*peer]struct{}
}

func newRooms() *rooms {
	return &rooms{members: make(map[string]map[*peer]struct{})}
}

func (r *rooms) join(room string, member *peer) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.members[room] == nil {
		r.members[room] = make(map[*peer]struct{})
	}
	r.members[room][member] = struct{}{}
}

func (r *rooms) leave(room string, member *peer) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.members[room], member)
	if len(r.members[room]) == 0 {
		delete(r.members, room)
	}
}

// count returns the number of peers in room.
func (r *rooms) count(room string) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.members[room])
}

func (r *rooms) broadcast(room string, value any) {
	frame, err := json.Marshal(value)
	if err != nil {
		return
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for member := range r.members[room] {
		select {
		case member.send <- frame:
		default:
			// Slow reader; drop it like a server under load would.
			delete(r.members[room], member)
			member.close()
		}
	}
}

func chatRoom(conversationID int) string { return fmt.Sprintf("chat:%d", conversationID) }
func postRoom(postID int) string         { return fmt.Sprintf("post:%d", postID) }

// Subscribers reports how many sockets are open on a conversation
// ("chat") or post ("post") room.
func (s *Server) Subscribers(kind string, id int) int {
	if kind == "chat" {
		return s.rooms.count(chatRoom(id))
	}
	return s.rooms.count(postRoom(id))
}

// chatFrame is a message as the chat socket sends it: files are bare
// link strings.
type chatFrame struct {
	forum.Message
	Files []string `json:"files"`
}

func socketMessage(message forum.Message) chatFrame {
	links := make([]string, 0, len(message.Files))
	for _, file := range message.Files {
		links = append(links, file.Link)
	}
	return chatFrame{Message: message, Files: links}
}

func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathInt(r, "conversationID")
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "conversation id must be an integer")
		return
	}
	current := s.authenticate(w, r)
	if current == nil {
		return
	}
	s.mutex.Lock()
	found := s.conversationByIDLocked(conversationID)
	member := found != nil && (found.members[0] == current.user.ID || found.members[1] == current.user.ID)
	var companionID int
	if member {
		companionID = found.members[0]
		if companionID == current.user.ID {
			companionID = found.members[1]
		}
	}
	s.mutex.Unlock()
	if !member {
		writeDetail(w, http.StatusForbidden, "You are not a member of this conversation")
		return
	}

	s.serveSocket(w, r, chatRoom(conversationID), func(frame []byte) {
		var incoming forum.OutgoingMessage
		if err := json.Unmarshal(frame, &incoming); err != nil {
			return
		}
		content := strings.TrimSpace(incoming.Content)
		if content == "" && len(incoming.Files) == 0 {
			return
		}
		var files []forum.File
		for index, file := range incoming.Files {
			files = append(files, forum.File{ID: index, Link: s.URL + "/media/" + file.Name})
		}
		s.mutex.Lock()
		message := s.addMessageLocked(current.user.ID, companionID, content, files)
		s.mutex.Unlock()
		s.rooms.broadcast(chatRoom(conversationID), socketMessage(message))
	})
}

func (s *Server) handleCommentSocket(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathInt(r, "postID")
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "post id must be an integer")
		return
	}
	s.mutex.Lock()
	exists := s.postByIDLocked(postID) != nil
	s.mutex.Unlock()
	if !exists {
		writeDetail(w, http.StatusNotFound, "Post not found")
		return
	}
	commenter := s.viewer(r)

	s.serveSocket(w, r, postRoom(postID), func(frame []byte) {
		if commenter == nil {
			return
		}
		var text string
		if err := json.Unmarshal(frame, &text); err != nil || strings.TrimSpace(text) == "" {
			return
		}
		s.mutex.Lock()
		comment, err := s.addCommentLocked(postID, commenter.user.ID, strings.TrimSpace(text))
		s.mutex.Unlock()
		if err != nil {
			return
		}
		s.rooms.broadcast(postRoom(postID), comment)
	})
}

// serveSocket upgrades the request, joins room, and feeds every text
// frame to handle until the client disconnects.
// The peer joins before the handshake completes, so a client whose
// dial has returned is already subscribed.
func (s *Server) serveSocket(w http.ResponseWriter, r *http.Request, room string, handle func([]byte)) {
	member := &peer{send: make(chan []byte, peerBuffer)}
	s.rooms.join(room, member)
	defer func() {
		s.rooms.leave(room, member)
		member.close()
	}()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "error", err)
		return
	}
	member.conn = conn
	go member.writePump()

	for {
		messageType, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType == websocket.TextMessage {
			handle(frame)
		}
	}
}
