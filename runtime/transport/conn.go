package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parvbhullar/media-gateway/runtime/session"
)

// wsTransport serializes writes to one websocket connection. It implements
// session.Transport.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func newWSTransport(conn *websocket.Conn, writeTimeout time.Duration) *wsTransport {
	return &wsTransport{conn: conn, writeTimeout: writeTimeout}
}

func (t *wsTransport) SendAudio(pcm []byte) error {
	return t.write(websocket.BinaryMessage, pcm)
}

func (t *wsTransport) SendText(data []byte) error {
	return t.write(websocket.TextMessage, data)
}

func (t *wsTransport) write(messageType int, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return session.ErrTransportClosed
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	if err := t.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("%w: %w", session.ErrTransportClosed, err)
	}
	return nil
}

func (t *wsTransport) ping() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return session.ErrTransportClosed
	}
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeTimeout))
}

// pingLoop pings the peer every interval until done is closed or a ping
// fails.
func (t *wsTransport) pingLoop(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := t.ping(); err != nil {
				return
			}
		}
	}
}

// Close sends a close frame with code and reason, then closes the socket.
// Only the first call has any effect.
func (t *wsTransport) Close(code int, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	msg := websocket.FormatCloseMessage(code, reason)
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.writeTimeout))
	_ = t.conn.Close()
}
