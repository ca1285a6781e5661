// Package testutil provides shared test helpers for websocket providers and
// the transport server.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// WSMessage is one frame received by a WSServer.
type WSMessage struct {
	Type int
	Data []byte
}

// WSServer is an httptest server that upgrades every request and hands the
// connection to a handler. It records the request headers and query of the
// last upgrade.
type WSServer struct {
	*httptest.Server

	mu      sync.Mutex
	header  http.Header
	rawURL  string
	upgrade websocket.Upgrader
}

// NewWSServer starts a websocket test server. The handler runs in the
// server's goroutine and the connection is closed when it returns.
func NewWSServer(t *testing.T, handler func(conn *websocket.Conn)) *WSServer {
	t.Helper()
	s := &WSServer{
		upgrade: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.header = r.Header.Clone()
		s.rawURL = r.URL.String()
		s.mu.Unlock()

		conn, err := s.upgrade.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(s.Close)
	return s
}

// URL returns the ws:// URL of the server with path appended.
func (s *WSServer) URL(path string) string {
	return WSURL(s.Server.URL) + path
}

// Header returns the headers of the most recent upgrade request.
func (s *WSServer) Header() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header
}

// RequestURI returns the path and query of the most recent upgrade request.
func (s *WSServer) RequestURI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rawURL
}

// WSURL converts an http:// or https:// URL to ws:// or wss://.
func WSURL(httpURL string) string {
	if strings.HasPrefix(httpURL, "https") {
		return "wss" + strings.TrimPrefix(httpURL, "https")
	}
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

// ReadAll reads frames from conn until it errors (usually on close) and
// returns them.
func ReadAll(conn *websocket.Conn) []WSMessage {
	var msgs []WSMessage
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return msgs
		}
		msgs = append(msgs, WSMessage{Type: typ, Data: data})
	}
}
