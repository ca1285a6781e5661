package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	pkgerrors "github.com/parvbhullar/media-gateway/pkg/errors"
	"github.com/parvbhullar/media-gateway/runtime/logger"
	"github.com/parvbhullar/media-gateway/runtime/session"
	"github.com/parvbhullar/media-gateway/runtime/telemetry"
	"github.com/parvbhullar/media-gateway/runtime/version"
)

// Server defaults.
const (
	DefaultPath            = "/ws/rustpbx"
	DefaultPingInterval    = 30 * time.Second
	DefaultPongWait        = DefaultPingInterval + 10*time.Second
	DefaultWriteTimeout    = 5 * time.Second
	DefaultReadBufferSize  = 4096
	DefaultWriteBufferSize = 4096

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Close reasons sent to rejected or finished connections.
const (
	reasonUnknownPath  = "Unknown path"
	reasonTryLater     = "Try again later"
	reasonSessionEnded = "session closed"
)

// Registry is the part of session.Registry the server needs.
type Registry interface {
	Accept(tx session.Transport) (*session.CallSession, error)
	Run(ctx context.Context, s *session.CallSession) error
	Active() int
	Max() int
	CloseAll()
}

// Config configures a Server.
type Config struct {
	// Addr is the listen address, host:port.
	Addr string

	// Path is the websocket endpoint path.
	Path string

	ReadBufferSize  int
	WriteBufferSize int

	// PingInterval is how often the server pings each connection.
	PingInterval time.Duration

	// PongWait is the read deadline, extended by every pong.
	PongWait time.Duration

	// WriteTimeout bounds each outbound frame.
	WriteTimeout time.Duration

	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
}

func (c *Config) setDefaults() {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = DefaultWriteBufferSize
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PongWait <= 0 {
		c.PongWait = c.PingInterval + 10*time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}

// Server accepts telephony websocket connections.
type Server struct {
	cfg      Config
	registry Registry
	upgrader websocket.Upgrader
	handler  http.Handler
}

// NewServer creates a server that admits calls through registry.
func NewServer(cfg Config, registry Registry) *Server {
	cfg.setDefaults()
	s := &Server{
		cfg:      cfg,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
	mux.HandleFunc("/", s.handleRoot)
	s.handler = otelhttp.NewHandler(mux, "media-gateway",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	)
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe listens on the configured address and serves until ctx is
// done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return pkgerrors.New(pkgerrors.ComponentTransport, "listen", err).
			WithDetails(map[string]any{"addr": s.cfg.Addr})
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then closes live sessions and shuts
// down gracefully. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	logger.Info("gateway listening", "addr", ln.Addr().String(), "path", s.cfg.Path)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.registry.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type healthResponse struct {
	Status         string `json:"status"`
	Timestamp      int64  `json:"timestamp"`
	Version        string `json:"version"`
	ActiveSessions int    `json:"active_sessions"`
	MaxSessions    int    `json:"max_sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:         "ok",
		Timestamp:      time.Now().UnixMilli(),
		Version:        version.GetVersion(),
		ActiveSessions: s.registry.Active(),
		MaxSessions:    s.registry.Max(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.NotFound(w, r)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr,
			"error", pkgerrors.New(pkgerrors.ComponentTransport, "upgrade", err))
		return
	}
	tx := newWSTransport(conn, s.cfg.WriteTimeout)

	if r.URL.Path != s.cfg.Path {
		logger.Warn("rejecting connection on unknown path", "remote", r.RemoteAddr, "path", r.URL.Path)
		tx.Close(websocket.ClosePolicyViolation, reasonUnknownPath)
		return
	}

	sess, err := s.registry.Accept(tx)
	if err != nil {
		rejected := pkgerrors.New(pkgerrors.ComponentTransport, "accept", err).
			WithStatusCode(websocket.CloseTryAgainLater)
		logger.Warn("rejecting connection", "remote", r.RemoteAddr, "error", rejected,
			"active", s.registry.Active(), "max", s.registry.Max())
		tx.Close(websocket.CloseTryAgainLater, reasonTryLater)
		return
	}

	ctx := telemetry.ExtractRemote(r.Context(), r.Header)
	ctx = logger.WithRemoteAddr(ctx, r.RemoteAddr)
	s.serveSession(ctx, conn, tx, sess)
}

// serveSession runs one call until either side ends it.
func (s *Server) serveSession(ctx context.Context, conn *websocket.Conn, tx *wsTransport, sess *session.CallSession) {
	runErr := make(chan error, 1)
	go func() { runErr <- s.registry.Run(ctx, sess) }()

	go func() {
		<-sess.Done()
		tx.Close(websocket.CloseNormalClosure, reasonSessionEnded)
	}()
	go tx.pingLoop(s.cfg.PingInterval, sess.Done())

	s.readLoop(logger.WithSessionID(ctx, sess.ID()), conn, sess)
	sess.Close()

	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		logger.InfoContext(logger.WithSessionID(ctx, sess.ID()), "session ended", "reason", err)
	}
}

// readLoop routes inbound frames to the session until the connection fails
// or is closed.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, sess *session.CallSession) {
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WarnContext(ctx, "websocket read failed", "error", err)
			} else {
				logger.DebugContext(ctx, "websocket closed", "error", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			sess.HandleAudio(data)
		case websocket.TextMessage:
			sess.HandleText(data)
		}
	}
}
