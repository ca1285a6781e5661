package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/parvbhullar/media-gateway/pkg/errors"
	"github.com/parvbhullar/media-gateway/pkg/testutil"
	"github.com/parvbhullar/media-gateway/runtime/audio"
	"github.com/parvbhullar/media-gateway/runtime/session"
	"github.com/parvbhullar/media-gateway/runtime/stt"
)

// idleSTT opens streams that never produce transcripts.
type idleSTT struct{}

func (idleSTT) Name() string { return "idle" }

func (idleSTT) OpenStream(_ context.Context, _ stt.StreamConfig) (stt.Stream, error) {
	return &idleStream{events: make(chan stt.Event)}, nil
}

type idleStream struct {
	once   sync.Once
	events chan stt.Event
}

func (s *idleStream) Push([]byte) error        { return nil }
func (s *idleStream) EndInput() error          { return nil }
func (s *idleStream) Events() <-chan stt.Event { return s.events }

func (s *idleStream) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

type testGateway struct {
	registry *session.Registry
	server   *httptest.Server
}

func newTestGateway(t *testing.T, maxSessions int, cfg Config) *testGateway {
	t.Helper()
	pipeline := session.Pipeline{
		Normalizer:  audio.NewNormalizer(audio.PipelineFormat()),
		Transcriber: session.NewTranscriptStreamAdapter(idleSTT{}, stt.DefaultStreamConfig(), nil),
	}
	reg := session.NewRegistry(pipeline, session.DefaultConfig(), maxSessions)
	ts := httptest.NewServer(NewServer(cfg, reg).Handler())
	t.Cleanup(func() {
		reg.CloseAll()
		ts.Close()
	})
	return &testGateway{registry: reg, server: ts}
}

func (g *testGateway) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(testutil.WSURL(g.server.URL)+path, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		messageType, data, err := conn.ReadMessage()
		require.NoError(t, err)
		if messageType != websocket.TextMessage {
			continue
		}
		var ev map[string]any
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	}
}

func readClose(t *testing.T, conn *websocket.Conn) *websocket.CloseError {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.ErrorAs(t, err, &closeErr)
		return closeErr
	}
}

func TestServer_ConnectedAndPing(t *testing.T) {
	gw := newTestGateway(t, 2, Config{})
	conn := gw.dial(t, DefaultPath)

	ev := readEvent(t, conn)
	assert.Equal(t, "connected", ev["type"])
	assert.Equal(t, session.ServerName, ev["server"])
	id, _ := ev["session_id"].(string)
	require.NotEmpty(t, id)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","timestamp":7}`)))
	ev = readEvent(t, conn)
	assert.Equal(t, "pong", ev["type"])
	assert.EqualValues(t, 7, ev["timestamp"])

	sess, ok := gw.registry.Get(id)
	require.True(t, ok)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, make([]byte, 640)))
	require.Eventually(t, func() bool {
		return sess.Stats().FramesReceived == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_UnknownPath(t *testing.T) {
	gw := newTestGateway(t, 2, Config{})
	conn := gw.dial(t, "/ws/other")

	closeErr := readClose(t, conn)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, "Unknown path", closeErr.Text)
	assert.Zero(t, gw.registry.Active())
}

func TestServer_SessionLimit(t *testing.T) {
	gw := newTestGateway(t, 1, Config{})
	first := gw.dial(t, DefaultPath)
	readEvent(t, first)

	second := gw.dial(t, DefaultPath)
	closeErr := readClose(t, second)
	assert.Equal(t, websocket.CloseTryAgainLater, closeErr.Code)
	assert.Equal(t, "Try again later", closeErr.Text)
	assert.Equal(t, 1, gw.registry.Active())
}

func TestServer_ClientDisconnectEndsSession(t *testing.T) {
	gw := newTestGateway(t, 1, Config{})
	conn := gw.dial(t, DefaultPath)
	readEvent(t, conn)
	require.Equal(t, 1, gw.registry.Active())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return gw.registry.Active() == 0 }, 2*time.Second, 10*time.Millisecond)

	// The slot is free again.
	again := gw.dial(t, DefaultPath)
	assert.Equal(t, "connected", readEvent(t, again)["type"])
}

func TestServer_CloseAllClosesConnections(t *testing.T) {
	gw := newTestGateway(t, 1, Config{})
	conn := gw.dial(t, DefaultPath)
	readEvent(t, conn)

	gw.registry.CloseAll()
	closeErr := readClose(t, conn)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
}

func TestServer_Health(t *testing.T) {
	gw := newTestGateway(t, 3, Config{})
	conn := gw.dial(t, DefaultPath)
	readEvent(t, conn)

	resp, err := http.Get(gw.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.ActiveSessions)
	assert.Equal(t, 3, health.MaxSessions)
	assert.NotEmpty(t, health.Version)
}

func TestServer_MetricsMount(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "mediagateway_sessions_active 0\n")
	})

	gw := newTestGateway(t, 1, Config{Metrics: metrics})
	resp, err := http.Get(gw.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "sessions_active")

	bare := newTestGateway(t, 1, Config{})
	resp2, err := http.Get(bare.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestServer_PlainRequestNotFound(t *testing.T) {
	gw := newTestGateway(t, 1, Config{})
	resp, err := http.Get(gw.server.URL + DefaultPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ListenError(t *testing.T) {
	gw := newTestGateway(t, 1, Config{})
	srv := NewServer(Config{Addr: "256.0.0.1:bad"}, gw.registry)

	err := srv.ListenAndServe(context.Background())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.ComponentTransport, pkgerrors.ComponentOf(err))
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.setDefaults()
	assert.Equal(t, DefaultPath, cfg.Path)
	assert.Equal(t, DefaultPingInterval, cfg.PingInterval)
	assert.Equal(t, DefaultPongWait, cfg.PongWait)
	assert.Equal(t, DefaultWriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, DefaultReadBufferSize, cfg.ReadBufferSize)
}
