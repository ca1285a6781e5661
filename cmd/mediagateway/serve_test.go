package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/parvbhullar/media-gateway/pkg/config"
	"github.com/parvbhullar/media-gateway/runtime/audio"
)

func TestBuildPipeline(t *testing.T) {
	cfg := config.Default()
	cfg.Spec.Audio.SampleRate = 8000
	cfg.Spec.Audio.VADThreshold = 800
	cfg.Spec.LLM.SystemPrompt = "Be terse."
	cfg.Spec.Server.CallTimeout = time.Minute

	pipeline, sessCfg := buildPipeline(cfg, noop.NewTracerProvider().Tracer("test"))

	require.NotNil(t, pipeline.Normalizer)
	assert.Equal(t, audio.PipelineFormat(), pipeline.Normalizer.Target())
	assert.Equal(t, config.ProviderDeepgram, pipeline.Transcriber.Provider())
	assert.Equal(t, config.ProviderOpenAI, pipeline.Generator.Provider())
	assert.Equal(t, config.ProviderDeepgram, pipeline.Synthesizer.Provider())

	assert.Equal(t, "Be terse.", sessCfg.SystemPrompt)
	assert.Equal(t, audio.Format{SampleRate: 8000, Channels: 1, BitDepth: 16}, sessCfg.InputFormat)
	assert.Equal(t, 800, sessCfg.VAD.Threshold)
	assert.Equal(t, 1200*time.Millisecond, sessCfg.VAD.SilenceTimeout)
	assert.Equal(t, time.Minute, sessCfg.CallTimeout)
}

func TestSameListener(t *testing.T) {
	server := config.ServerSpec{Host: "0.0.0.0", Port: 8765}

	tests := []struct {
		addr string
		want bool
	}{
		{":8765", true},
		{"0.0.0.0:8765", true},
		{":9090", false},
		{"127.0.0.1:8765", false},
		{"not-an-address", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, sameListener(tt.addr, server))
		})
	}
}

func TestSetupTracing_Disabled(t *testing.T) {
	tracer, shutdown, err := setupTracing(context.Background(), config.TracingSpec{})
	require.NoError(t, err)
	assert.NotNil(t, tracer)
	shutdown()
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Spec.Server.Host = "127.0.0.1"
	cfg.Spec.Server.Port = 0
	cfg.Spec.Metrics.Address = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, cfg, noop.NewTracerProvider().Tracer("test"))
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}
