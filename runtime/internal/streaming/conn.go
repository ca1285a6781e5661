// Package streaming provides the websocket client connection shared by the
// gateway's streaming providers.
//
// Conn owns transport concerns only: dialing with retry, serialized writes of
// JSON, text and binary frames, a read loop, periodic keepalives and a
// graceful close. Provider packages layer their wire protocol on top.
package streaming

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Default connection constants.
const (
	DefaultDialTimeout      = 10 * time.Second
	DefaultWriteWait        = 10 * time.Second
	DefaultMaxMessageSize   = 4 * 1024 * 1024 // 4MB
	DefaultMaxRetries       = 3
	DefaultRetryBackoffBase = 500 * time.Millisecond
	DefaultRetryBackoffMax  = 5 * time.Second
	DefaultCloseGracePeriod = 2 * time.Second
)

// jitterFactor is the +-25% jitter applied to backoff delays.
const jitterFactor = 0.25

// jitterPrecision is the granularity for crypto/rand jitter generation.
const jitterPrecision = 1000

// ErrNotConnected is returned by writes on a connection that is not open.
var ErrNotConnected = errors.New("websocket is not connected")

// ConnConfig configures the websocket connection behavior.
type ConnConfig struct {
	// URL is the websocket endpoint URL.
	URL string

	// Headers are sent during the handshake.
	Headers http.Header

	// DialTimeout is the handshake timeout. Defaults to DefaultDialTimeout.
	DialTimeout time.Duration

	// WriteWait is the write deadline for each frame. Defaults to DefaultWriteWait.
	WriteWait time.Duration

	// MaxMessageSize is the read limit. Defaults to DefaultMaxMessageSize.
	MaxMessageSize int64

	// MaxRetries is the number of attempts made by ConnectWithRetry.
	MaxRetries int

	// RetryBackoffBase is the initial backoff delay.
	RetryBackoffBase time.Duration

	// RetryBackoffMax caps the backoff delay.
	RetryBackoffMax time.Duration

	// CloseGracePeriod is the deadline for writing the close frame.
	CloseGracePeriod time.Duration

	// Logger receives connection lifecycle messages. Optional; a
	// *slog.Logger satisfies it.
	Logger Logger
}

// Logger is the subset of *slog.Logger used by Conn.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

func (c *ConnConfig) defaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteWait == 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBackoffBase == 0 {
		c.RetryBackoffBase = DefaultRetryBackoffBase
	}
	if c.RetryBackoffMax == 0 {
		c.RetryBackoffMax = DefaultRetryBackoffMax
	}
	if c.CloseGracePeriod == 0 {
		c.CloseGracePeriod = DefaultCloseGracePeriod
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
}

// Message is one data frame read from the connection.
type Message struct {
	Binary bool
	Data   []byte
}

// Conn is a client websocket connection. Writes are safe for concurrent
// use; ReadLoop must have a single caller.
type Conn struct {
	cfg ConnConfig

	mu      sync.Mutex
	writeMu sync.Mutex // gorilla/websocket allows one concurrent writer
	conn    *websocket.Conn
	closed  bool
	closeCh chan struct{}
}

// NewConn creates a Conn. Call Connect or ConnectWithRetry before use.
func NewConn(cfg ConnConfig) *Conn {
	cfg.defaults()
	return &Conn{
		cfg:     cfg,
		closeCh: make(chan struct{}),
	}
}

// Connect dials the endpoint once.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("connection is closed")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.DialTimeout,
		TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
	}

	c.cfg.Logger.Debug("dialing websocket", "url", c.cfg.URL)

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, c.cfg.Headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return &DialError{StatusCode: resp.StatusCode, Err: err}
		}
		return fmt.Errorf("failed to connect: %w", err)
	}

	conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn = conn
	c.cfg.Logger.Debug("websocket connected", "url", c.cfg.URL)
	return nil
}

// DialError is returned when the handshake reached the server but was rejected.
type DialError struct {
	StatusCode int
	Err        error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("websocket handshake failed with status %d: %v", e.StatusCode, e.Err)
}

func (e *DialError) Unwrap() error {
	return e.Err
}

// ConnectWithRetry dials with exponential backoff and jitter. Handshakes
// rejected with a 4xx status other than 429 are not retried.
func (c *Conn) ConnectWithRetry(ctx context.Context) error {
	var lastErr error
	backoff := c.cfg.RetryBackoffBase

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.Connect(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var dialErr *DialError
		if errors.As(err, &dialErr) && dialErr.StatusCode >= 400 && dialErr.StatusCode < 500 &&
			dialErr.StatusCode != http.StatusTooManyRequests {
			return err
		}

		c.cfg.Logger.Warn("websocket connect attempt failed",
			"attempt", attempt, "max_attempts", c.cfg.MaxRetries, "error", err)

		if attempt < c.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(calculateBackoff(backoff, c.cfg.RetryBackoffMax)):
			}
			backoff = min(backoff*2, c.cfg.RetryBackoffMax)
		}
	}

	return fmt.Errorf("failed to connect after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

// SendJSON encodes v as JSON and writes it as a text frame.
func (c *Conn) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return c.write(websocket.TextMessage, data)
}

// SendText writes a pre-encoded text frame.
func (c *Conn) SendText(data []byte) error {
	return c.write(websocket.TextMessage, data)
}

// SendBinary writes a binary frame.
func (c *Conn) SendBinary(data []byte) error {
	return c.write(websocket.BinaryMessage, data)
}

func (c *Conn) write(msgType int, data []byte) error {
	c.mu.Lock()
	if c.closed || c.conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := conn.WriteMessage(msgType, data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// ReadLoop reads frames and delivers them to out until the peer closes the
// connection, Close is called, or ctx is cancelled. A normal close returns nil.
// ReadLoop does not close out.
func (c *Conn) ReadLoop(ctx context.Context, out chan<- Message) error {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	closeCh := c.closeCh
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-closeCh:
				return ctx.Err()
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		select {
		case out <- Message{Binary: msgType == websocket.BinaryMessage, Data: data}:
		case <-closeCh:
			return ctx.Err()
		}
	}
}

// StartKeepAlive calls send every interval until ctx is done, the
// connection is closed, or send fails.
func (c *Conn) StartKeepAlive(ctx context.Context, interval time.Duration, send func() error) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closeCh:
				return
			case <-ticker.C:
				if err := send(); err != nil {
					c.cfg.Logger.Warn("keepalive failed", "error", err)
					return
				}
			}
		}
	}()
}

// Ping writes a websocket ping control frame.
func (c *Conn) Ping() error {
	return c.write(websocket.PingMessage, nil)
}

// Close sends a normal close frame and closes the socket. It is idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeCh)

	if c.conn == nil {
		return nil
	}

	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.CloseGracePeriod))
	_ = c.conn.WriteMessage(websocket.CloseMessage, msg)
	c.writeMu.Unlock()

	return c.conn.Close()
}

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Done is closed when Close is called.
func (c *Conn) Done() <-chan struct{} {
	return c.closeCh
}

// calculateBackoff computes a backoff duration with +-25% jitter, capped at maxDelay.
func calculateBackoff(base, maxDelay time.Duration) time.Duration {
	delay := float64(min(base, maxDelay))
	n, _ := rand.Int(rand.Reader, big.NewInt(jitterPrecision))
	jitter := delay * jitterFactor * (float64(n.Int64())/(jitterPrecision/2) - 1)
	result := math.Min(delay+jitter, float64(maxDelay))
	return time.Duration(math.Max(result, 0))
}
