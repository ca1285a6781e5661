package session

import (
	"encoding/json"
	"time"
)

// Outbound event types.
const (
	EventConnected     = "connected"
	EventPong          = "pong"
	EventTranscription = "transcription"
	EventLLMResponse   = "llm_response"
	EventTTSStarted    = "tts_started"
	EventTTSCompleted  = "tts_completed"
	EventError         = "error"
)

// Inbound control message types.
const (
	ControlPing      = "ping"
	ControlConfigure = "configure"
)

// ServerName identifies the gateway in the connected event.
const ServerName = "media-gateway"

// ConnectedEvent is sent once when the session starts.
type ConnectedEvent struct {
	Type      string `json:"type"`
	Server    string `json:"server"`
	Version   string `json:"version"`
	SessionID string `json:"session_id"`
	Timestamp int64  `json:"timestamp"`
}

// PongEvent answers a ping control message.
type PongEvent struct {
	Type      string `json:"type"`
	Timestamp any    `json:"timestamp"`
}

// TranscriptionEvent mirrors an STT transcript.
type TranscriptionEvent struct {
	Type      string `json:"type"`
	IsFinal   bool   `json:"is_final"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// LLMResponseEvent carries the generated reply text.
type LLMResponseEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TTSEvent marks the start or end of reply playback.
type TTSEvent struct {
	Type   string `json:"type"`
	Frames int    `json:"frames,omitempty"`
}

// ErrorEvent reports a non-fatal pipeline failure to the client.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ControlMessage is an inbound JSON text frame.
type ControlMessage struct {
	Type         string `json:"type"`
	Timestamp    any    `json:"timestamp,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// ParseControl decodes an inbound text frame.
func ParseControl(data []byte) (ControlMessage, error) {
	var msg ControlMessage
	err := json.Unmarshal(data, &msg)
	return msg, err
}

func unixMillis(t time.Time) int64 {
	return t.UnixMilli()
}
