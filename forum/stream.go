// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agora-forum/agora/lib/netutil"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// pongWait is how long the connection may stay silent, pongs
	// included, before it is considered dead.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxFrameSize bounds one incoming frame. Chat frames carry file
	// links, not file bytes, so this is generous.
	maxFrameSize = 1 << 20
	// incomingBuffer is how many decoded frames may wait for a slow
	// consumer before the read pump blocks.
	incomingBuffer = 64
)

// ErrStreamClosed is returned by Send after the stream has closed.
var ErrStreamClosed = errors.New("forum: stream closed")

// stream is one websocket subscription. A read pump decodes incoming
// frames into T and delivers them in receipt order; a write pump owns
// all writes, including keepalive pings.
type stream[T any] struct {
	conn   *websocket.Conn
	logger *slog.Logger

	incoming chan T
	outgoing chan []byte
	done     chan struct{}

	closeOnce sync.Once

	errMutex sync.Mutex
	err      error
}

func (s *Session) dialStream(ctx context.Context, path string) (*websocket.Conn, *slog.Logger, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Proxy:            http.ProxyFromEnvironment,
	}
	header := http.Header{}
	if cookies := s.cookieHeader(); cookies != "" {
		header.Set("Cookie", cookies)
	}
	header.Set("Origin", s.baseURL)

	streamURL := s.webSocketURL + path
	conn, response, err := dialer.DialContext(ctx, streamURL, header)
	if err != nil {
		if response != nil {
			defer response.Body.Close()
			body, _ := netutil.ReadResponse(response.Body)
			return nil, nil, parseAPIError(http.MethodGet, path, response.StatusCode, body)
		}
		return nil, nil, fmt.Errorf("forum: connecting to %s: %w", path, err)
	}

	logger := s.logger.With("stream", path, "stream_id", uuid.NewString())
	logger.Debug("stream connected")
	return conn, logger, nil
}

func newStream[T any](ctx context.Context, conn *websocket.Conn, logger *slog.Logger) *stream[T] {
	st := &stream[T]{
		conn:     conn,
		logger:   logger,
		incoming: make(chan T, incomingBuffer),
		outgoing: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
	go st.readPump()
	go st.writePump()
	go func() {
		select {
		case <-ctx.Done():
			st.close()
		case <-st.done:
		}
	}()
	return st
}

func (st *stream[T]) readPump() {
	defer func() {
		close(st.incoming)
		st.close()
	}()

	st.conn.SetReadLimit(maxFrameSize)
	st.conn.SetReadDeadline(time.Now().Add(pongWait))
	st.conn.SetPongHandler(func(string) error {
		return st.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := st.conn.ReadMessage()
		if err != nil {
			if !netutil.IsExpectedCloseError(err) && !st.closed() {
				st.setErr(fmt.Errorf("forum: reading stream: %w", err))
			}
			return
		}
		// Any frame proves the peer is alive.
		st.conn.SetReadDeadline(time.Now().Add(pongWait))

		var value T
		if err := json.Unmarshal(frame, &value); err != nil {
			st.logger.Warn("dropping undecodable frame", "error", err, "bytes", len(frame))
			continue
		}
		select {
		case st.incoming <- value:
		case <-st.done:
			return
		}
	}
}

// writePump owns the connection's lifetime: whichever way it exits,
// the socket is closed, which also unblocks the read pump.
func (st *stream[T]) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer st.conn.Close()

	for {
		select {
		case frame := <-st.outgoing:
			st.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := st.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				st.setErr(fmt.Errorf("forum: writing stream: %w", err))
				st.close()
				return
			}
		case <-ticker.C:
			st.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := st.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !netutil.IsExpectedCloseError(err) {
					st.setErr(fmt.Errorf("forum: pinging stream: %w", err))
				}
				st.close()
				return
			}
		case <-st.done:
			message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			st.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
			return
		}
	}
}

func (st *stream[T]) send(value any) error {
	frame, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("forum: encoding frame: %w", err)
	}
	select {
	case <-st.done:
		return ErrStreamClosed
	default:
	}
	select {
	case st.outgoing <- frame:
		return nil
	case <-st.done:
		return ErrStreamClosed
	}
}

func (st *stream[T]) close() {
	st.closeOnce.Do(func() {
		close(st.done)
		st.logger.Debug("stream closed")
	})
}

func (st *stream[T]) closed() bool {
	select {
	case <-st.done:
		return true
	default:
		return false
	}
}

func (st *stream[T]) setErr(err error) {
	st.errMutex.Lock()
	defer st.errMutex.Unlock()
	if st.err == nil {
		st.err = err
	}
}

func (st *stream[T]) getErr() error {
	st.errMutex.Lock()
	defer st.errMutex.Unlock()
	return st.err
}

// OutgoingFile is an attachment as the chat socket expects it: the
// file bytes as a JSON array of numbers.
type OutgoingFile struct {
	Name string `json:"name"`
	Data []int  `json:"data"`
}

// OutgoingMessage is the frame sent on a chat stream.
type OutgoingMessage struct {
	Content string         `json:"content"`
	Files   []OutgoingFile `json:"files"`
}

// ChatStream is a live subscription to one conversation.
type ChatStream struct {
	ConversationID int
	stream         *stream[Message]
}

// OpenChat subscribes to a conversation. The stream closes when ctx is
// cancelled, Close is called, or the server hangs up.
func (s *Session) OpenChat(ctx context.Context, conversationID int) (*ChatStream, error) {
	if conversationID <= 0 {
		return nil, fmt.Errorf("forum: invalid conversation id %d", conversationID)
	}
	conn, logger, err := s.dialStream(ctx, fmt.Sprintf("/ws/chats/%d", conversationID))
	if err != nil {
		return nil, err
	}
	return &ChatStream{
		ConversationID: conversationID,
		stream:         newStream[Message](ctx, conn, logger),
	}, nil
}

// Send publishes a message. The text is trimmed; a message needs text
// or at least one file.
func (c *ChatStream) Send(content string, files []Upload) error {
	content = strings.TrimSpace(content)
	if content == "" && len(files) == 0 {
		return fmt.Errorf("forum: message is empty")
	}
	outgoing := OutgoingMessage{Content: content, Files: make([]OutgoingFile, 0, len(files))}
	for _, file := range files {
		outgoing.Files = append(outgoing.Files, OutgoingFile{Name: file.Name, Data: byteInts(file.Data)})
	}
	return c.stream.send(outgoing)
}

// Messages delivers incoming messages in receipt order. The channel is
// closed when the stream ends; check Err afterwards.
func (c *ChatStream) Messages() <-chan Message { return c.stream.incoming }

// Err returns the error that ended the stream, or nil after a clean
// close.
func (c *ChatStream) Err() error { return c.stream.getErr() }

// Close ends the subscription. It is safe to call more than once.
func (c *ChatStream) Close() error {
	c.stream.close()
	return nil
}

// CommentStream is a live subscription to a post's comments.
type CommentStream struct {
	PostID int
	stream *stream[Comment]
}

// OpenComments subscribes to new comments on a post.
func (s *Session) OpenComments(ctx context.Context, postID int) (*CommentStream, error) {
	conn, logger, err := s.dialStream(ctx, fmt.Sprintf("/ws/posts/%d", postID))
	if err != nil {
		return nil, err
	}
	return &CommentStream{PostID: postID, stream: newStream[Comment](ctx, conn, logger)}, nil
}

// Send posts a comment. The frame is the JSON-encoded text.
func (c *CommentStream) Send(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("forum: comment is empty")
	}
	return c.stream.send(text)
}

// Comments delivers new comments in receipt order.
func (c *CommentStream) Comments() <-chan Comment { return c.stream.incoming }

// Err returns the error that ended the stream, or nil after a clean
// close.
func (c *CommentStream) Err() error { return c.stream.getErr() }

// Close ends the subscription. It is safe to call more than once.
func (c *CommentStream) Close() error {
	c.stream.close()
	return nil
}
