package prometheus

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSessionStartEnd(t *testing.T) {
	sessionsActive.Set(0)
	sessionsTotal.Reset()

	RecordSessionStart()
	RecordSessionStart()
	assert.Equal(t, 2.0, testutil.ToFloat64(sessionsActive))

	RecordSessionEnd("closed", 12)
	RecordSessionEnd("timeout", 300)
	assert.Equal(t, 0.0, testutil.ToFloat64(sessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(sessionsTotal.WithLabelValues("closed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sessionsTotal.WithLabelValues("timeout")))

	RecordSessionRejected()
	assert.Equal(t, 1.0, testutil.ToFloat64(sessionsTotal.WithLabelValues("rejected")))
}

func TestRecordFrames(t *testing.T) {
	framesDroppedTotal.Reset()
	before := testutil.ToFloat64(framesReceivedTotal)

	RecordFrameReceived()
	RecordFrameReceived()
	RecordFrameDropped(DropNoStream)
	RecordFrameDropped(DropNoStream)
	RecordFrameDropped(DropUnsupportedFormat)

	assert.Equal(t, before+2, testutil.ToFloat64(framesReceivedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(framesDroppedTotal.WithLabelValues(DropNoStream)))
	assert.Equal(t, 1.0, testutil.ToFloat64(framesDroppedTotal.WithLabelValues(DropUnsupportedFormat)))
}

func TestRecordPipelineCounters(t *testing.T) {
	transcriptsTotal.Reset()
	responsesTotal.Reset()
	boundaries := testutil.ToFloat64(utteranceBoundariesTotal)
	sent := testutil.ToFloat64(ttsFramesSentTotal)

	RecordUtteranceBoundary()
	RecordTranscript("interim")
	RecordTranscript("final")
	RecordTranscript("final")
	RecordResponse("success")
	RecordTTSFrameSent()

	assert.Equal(t, boundaries+1, testutil.ToFloat64(utteranceBoundariesTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(transcriptsTotal.WithLabelValues("final")))
	assert.Equal(t, 1.0, testutil.ToFloat64(responsesTotal.WithLabelValues("success")))
	assert.Equal(t, sent+1, testutil.ToFloat64(ttsFramesSentTotal))
}

func TestRecordProviderCall(t *testing.T) {
	providerDuration.Reset()
	providerErrorsTotal.Reset()

	RecordProviderCall("llm", "openai", 0.4, nil)
	RecordProviderCall("llm", "openai", 1.2, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(providerErrorsTotal.WithLabelValues("llm", "openai")))

	metric := &dto.Metric{}
	obs, err := providerDuration.GetMetricWithLabelValues("llm", "openai")
	require.NoError(t, err)
	require.NoError(t, obs.(prometheus.Metric).Write(metric))
	assert.Equal(t, uint64(2), metric.GetHistogram().GetSampleCount())
	assert.InDelta(t, 1.6, metric.GetHistogram().GetSampleSum(), 1e-9)
}

func TestExporterHandler(t *testing.T) {
	RecordSessionStart()
	defer sessionsActive.Set(0)

	e := NewExporter(":0")
	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "mediagateway_sessions_active")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestExporterWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := NewExporterWithRegistry(":9999", reg)
	assert.Same(t, reg, e.Registry())
	assert.Equal(t, ":9999", e.Addr())

	custom := prometheus.NewCounter(prometheus.CounterOpts{Name: "custom_total", Help: "custom"})
	e.MustRegister(custom)
	count, err := testutil.GatherAndCount(reg, "custom_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestExporterServeShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	e := NewExporter(ln.Addr().String())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && strings.Contains(string(body), "mediagateway_")
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("exporter did not shut down")
	}
}
