package session

import (
	"encoding/json"
	"sync/atomic"
)

// Transport is the telephony side of a call. Implementations must be safe
// for concurrent use: the session loop and the response goroutine both send.
type Transport interface {
	// SendAudio writes one binary PCM frame.
	SendAudio(pcm []byte) error

	// SendText writes one text frame.
	SendText(data []byte) error
}

// guardedTransport refuses every send once the session is closed.
type guardedTransport struct {
	tx     Transport
	closed *atomic.Bool
}

func (g guardedTransport) SendAudio(pcm []byte) error {
	if g.closed.Load() {
		return ErrSessionClosed
	}
	return g.tx.SendAudio(pcm)
}

func (g guardedTransport) SendText(data []byte) error {
	if g.closed.Load() {
		return ErrSessionClosed
	}
	return g.tx.SendText(data)
}

// sendEvent encodes v and sends it as text. Failures are ignored: control
// events are informational.
func (g guardedTransport) sendEvent(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = g.SendText(data)
}
