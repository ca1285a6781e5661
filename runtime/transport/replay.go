package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/parvbhullar/media-gateway/runtime/audio"
	"github.com/parvbhullar/media-gateway/runtime/logger"
)

// Replay defaults.
const (
	DefaultReplayChunk  = 20 * time.Millisecond
	DefaultReplayLinger = 3 * time.Second
)

// Replayer streams a recording to a running gateway at real-time pace.
type Replayer struct {
	// URL is the gateway websocket URL.
	URL string

	// Chunk is the duration of audio sent per frame.
	Chunk time.Duration

	// TrailingSilence is appended after the recording so the gateway's
	// silence timer fires.
	TrailingSilence time.Duration

	// Linger is how long to keep reading replies after the last frame.
	Linger time.Duration

	// Output, when set, receives every binary frame the gateway sends.
	Output io.Writer

	// Dialer overrides websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// ReplayResult summarizes one replay.
type ReplayResult struct {
	ChunksSent     int
	FramesReceived int
	BytesReceived  int
	Events         []string
}

// Chunks normalizes pcm from format into the pipeline format and splits it
// into chunk-sized frames, followed by silence frames covering trailing.
func Chunks(pcm []byte, format audio.Format, chunk, trailing time.Duration) ([][]byte, error) {
	if chunk <= 0 {
		chunk = DefaultReplayChunk
	}
	target := audio.PipelineFormat()
	frame, err := audio.NewNormalizer(target).Normalize(pcm, format)
	if err != nil {
		return nil, err
	}
	data := frame.PCM()

	size := int(int64(target.BytesPerSecond()) * int64(chunk) / int64(time.Second))
	size -= size % 2
	if size == 0 {
		return nil, fmt.Errorf("replay chunk %s is too short", chunk)
	}

	var chunks [][]byte
	for start := 0; start < len(data); start += size {
		end := min(start+size, len(data))
		chunks = append(chunks, data[start:end])
	}
	for elapsed := time.Duration(0); elapsed < trailing; elapsed += chunk {
		chunks = append(chunks, make([]byte, size))
	}
	return chunks, nil
}

// Replay sends pcm, recorded in format, to the gateway and collects what it
// sends back until Linger has passed after the last frame.
func (r *Replayer) Replay(ctx context.Context, pcm []byte, format audio.Format) (ReplayResult, error) {
	var result ReplayResult

	chunk := r.Chunk
	if chunk <= 0 {
		chunk = DefaultReplayChunk
	}
	linger := r.Linger
	if linger <= 0 {
		linger = DefaultReplayLinger
	}
	chunks, err := Chunks(pcm, format, chunk, r.TrailingSilence)
	if err != nil {
		return result, err
	}

	dialer := r.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, r.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return result, fmt.Errorf("dial %s: %w", r.URL, err)
	}
	defer conn.Close()

	var mu sync.Mutex
	readDone := make(chan error, 1)
	go func() {
		readDone <- r.readReplies(conn, &mu, &result)
	}()

	limiter := rate.NewLimiter(rate.Every(chunk), 1)
	for _, c := range chunks {
		if err := limiter.Wait(ctx); err != nil {
			return r.snapshot(&mu, &result), err
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, c); err != nil {
			return r.snapshot(&mu, &result), fmt.Errorf("send audio: %w", err)
		}
		mu.Lock()
		result.ChunksSent++
		mu.Unlock()
	}
	logger.Info("replay sent", "chunks", len(chunks), "chunk", chunk)

	select {
	case <-time.After(linger):
	case <-ctx.Done():
	case err := <-readDone:
		return r.snapshot(&mu, &result), err
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	select {
	case <-readDone:
	case <-time.After(time.Second):
	}
	return r.snapshot(&mu, &result), nil
}

func (r *Replayer) readReplies(conn *websocket.Conn, mu *sync.Mutex, result *ReplayResult) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseNormalClosure {
				return fmt.Errorf("gateway closed the connection: %d %s", closeErr.Code, closeErr.Text)
			}
			return nil
		}

		switch messageType {
		case websocket.BinaryMessage:
			if r.Output != nil {
				if _, err := r.Output.Write(data); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
			}
			mu.Lock()
			result.FramesReceived++
			result.BytesReceived += len(data)
			mu.Unlock()
		case websocket.TextMessage:
			logger.Info("gateway event", "event", string(data))
			mu.Lock()
			result.Events = append(result.Events, string(data))
			mu.Unlock()
		}
	}
}

func (r *Replayer) snapshot(mu *sync.Mutex, result *ReplayResult) ReplayResult {
	mu.Lock()
	defer mu.Unlock()
	out := *result
	out.Events = append([]string(nil), result.Events...)
	return out
}
