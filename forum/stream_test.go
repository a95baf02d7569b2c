// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forum

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestStreamClosesAfterWriteFailure(t *testing.T) {
	release := make(chan struct{})
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Hold the connection open without reading or writing.
		<-release
	}))
	defer server.Close()
	defer close(release)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := newStream[Message](context.Background(), conn, logger)

	tcp, ok := conn.UnderlyingConn().(*net.TCPConn)
	if !ok {
		t.Fatalf("underlying connection is %T", conn.UnderlyingConn())
	}
	if err := tcp.CloseWrite(); err != nil {
		t.Fatalf("CloseWrite: %v", err)
	}
	if err := st.send(map[string]string{"content": "hello"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case _, open := <-st.incoming:
		if open {
			t.Fatal("unexpected frame")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream still open after its write failed")
	}
	if st.getErr() == nil {
		t.Error("write failure not recorded")
	}
}
