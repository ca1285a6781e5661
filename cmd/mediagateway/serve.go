package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/parvbhullar/media-gateway/pkg/config"
	"github.com/parvbhullar/media-gateway/runtime/audio"
	"github.com/parvbhullar/media-gateway/runtime/logger"
	metrics "github.com/parvbhullar/media-gateway/runtime/metrics/prometheus"
	"github.com/parvbhullar/media-gateway/runtime/providers"
	"github.com/parvbhullar/media-gateway/runtime/providers/openai"
	"github.com/parvbhullar/media-gateway/runtime/session"
	"github.com/parvbhullar/media-gateway/runtime/stt"
	"github.com/parvbhullar/media-gateway/runtime/telemetry"
	"github.com/parvbhullar/media-gateway/runtime/transport"
	"github.com/parvbhullar/media-gateway/runtime/tts"
	"github.com/parvbhullar/media-gateway/runtime/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the voice bridge server",
	Long: `Starts the websocket server that accepts telephony calls.

Configuration is resolved from built-in defaults, the --config manifest,
the environment (DEEPGRAM_API_KEY, OPENAI_API_KEY, PIPECAT_SERVER_PORT, ...)
and finally command line flags.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Listen host")
	serveCmd.Flags().Int("port", 0, "Listen port")
	serveCmd.Flags().Int("max-calls", 0, "Maximum concurrent calls")
	serveCmd.Flags().Duration("call-timeout", 0, "Maximum call duration")
	serveCmd.Flags().String("metrics-addr", "", "Prometheus exporter address")
	serveCmd.Flags().Bool("no-metrics", false, "Disable the Prometheus exporter")

	_ = viper.BindPFlag(keyHost, serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag(keyPort, serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag(keyMaxCalls, serveCmd.Flags().Lookup("max-calls"))
	_ = viper.BindPFlag(keyCallTimeout, serveCmd.Flags().Lookup("call-timeout"))
	_ = viper.BindPFlag(keyMetricsAddr, serveCmd.Flags().Lookup("metrics-addr"))
	_ = viper.BindPFlag(keyNoMetrics, serveCmd.Flags().Lookup("no-metrics"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}
	if err := logger.Configure(cfg.LoggerOptions()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, shutdownTracing, err := setupTracing(ctx, cfg.Spec.Tracing)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	return serve(ctx, cfg, tracer)
}

// serve runs the gateway and, when enabled, the metrics exporter until ctx
// is done or either fails.
func serve(ctx context.Context, cfg *config.BridgeConfig, tracer trace.Tracer) error {
	pipeline, sessCfg := buildPipeline(cfg, tracer)
	registry := session.NewRegistry(pipeline, sessCfg, cfg.Spec.Server.MaxConcurrentCalls)

	srvCfg := transport.Config{
		Addr:            cfg.Spec.Server.Addr(),
		Path:            cfg.Spec.Server.Path,
		ReadBufferSize:  cfg.Spec.Server.ReadBufferSize,
		WriteBufferSize: cfg.Spec.Server.WriteBufferSize,
		PingInterval:    cfg.Spec.Server.PingInterval,
	}

	var exporter *metrics.Exporter
	if cfg.Spec.Metrics.Enabled {
		exporter = metrics.NewExporter(cfg.Spec.Metrics.Address)
		if sameListener(cfg.Spec.Metrics.Address, cfg.Spec.Server) {
			srvCfg.Metrics = exporter.Handler()
			exporter = nil
		}
	}
	server := transport.NewServer(srvCfg, registry)

	logger.Info("starting media gateway",
		append(version.GetBuildInfo(),
			"addr", srvCfg.Addr,
			"path", cfg.Spec.Server.Path,
			"max_calls", registry.Max(),
			"stt", pipeline.Transcriber.Provider(),
			"llm", pipeline.Generator.Provider(),
			"tts", pipeline.Synthesizer.Provider(),
		)...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})
	if exporter != nil {
		g.Go(func() error {
			logger.Info("metrics exporter listening", "addr", exporter.Addr())
			return exporter.Serve(gctx)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("media gateway stopped")
	return nil
}

// buildPipeline constructs the providers and the per-session settings from
// cfg.
func buildPipeline(cfg *config.BridgeConfig, tracer trace.Tracer) (session.Pipeline, session.Config) {
	spec := cfg.Spec
	target := audio.PipelineFormat()

	sttOpts := []stt.DeepgramOption{
		stt.WithDeepgramModel(spec.STT.Model),
		stt.WithDeepgramKeepAlive(spec.STT.KeepAlive),
	}
	if spec.STT.BaseURL != "" {
		sttOpts = append(sttOpts, stt.WithDeepgramBaseURL(spec.STT.BaseURL))
	}
	transcriber := session.NewTranscriptStreamAdapter(
		stt.NewDeepgram(spec.STT.APIKey, sttOpts...),
		stt.StreamConfig{
			SampleRate:     target.SampleRate,
			Channels:       target.Channels,
			Language:       spec.STT.Language,
			Model:          spec.STT.Model,
			Endpointing:    spec.STT.Endpointing,
			InterimResults: spec.STT.InterimResults,
		},
		tracer,
	)

	llm := openai.NewProvider(config.ProviderOpenAI, spec.LLM.Model, spec.LLM.BaseURL, spec.LLM.APIKey,
		providers.ProviderDefaults{
			Temperature: spec.LLM.Temperature,
			MaxTokens:   spec.LLM.MaxTokens,
		})

	ttsOpts := []tts.DeepgramOption{tts.WithDeepgramModel(spec.TTS.Model)}
	if spec.TTS.BaseURL != "" {
		ttsOpts = append(ttsOpts, tts.WithDeepgramBaseURL(spec.TTS.BaseURL))
	}
	synthesizer := session.NewSpeechSynthesizer(
		tts.NewDeepgram(spec.TTS.APIKey, ttsOpts...),
		tts.StreamConfig{
			SampleRate: target.SampleRate,
			Model:      spec.TTS.Model,
			ChunkSize:  spec.TTS.ChunkSize,
		},
		tracer,
	)

	pipeline := session.Pipeline{
		Normalizer:  audio.NewNormalizer(target),
		Transcriber: transcriber,
		Generator:   session.NewResponseGenerator(llm, tracer),
		Synthesizer: synthesizer,
	}
	sessCfg := session.Config{
		SystemPrompt: spec.LLM.SystemPrompt,
		InputFormat: audio.Format{
			SampleRate: spec.Audio.SampleRate,
			Channels:   spec.Audio.Channels,
			BitDepth:   spec.Audio.BitDepth,
		},
		VAD: audio.VADParams{
			Threshold:      spec.Audio.VADThreshold,
			SilenceTimeout: spec.Audio.SilenceTimeout,
		},
		CallTimeout: spec.Server.CallTimeout,
	}
	return pipeline, sessCfg
}

// setupTracing installs an OTLP tracer provider when tracing is enabled.
// The returned shutdown flushes pending spans.
func setupTracing(ctx context.Context, spec config.TracingSpec) (trace.Tracer, func(), error) {
	if !spec.Enabled {
		telemetry.SetupPropagation()
		return telemetry.Tracer(nil), func() {}, nil
	}

	tracer, shutdown, err := telemetry.Install(ctx, telemetry.Config{
		Endpoint:       spec.Endpoint,
		ServiceName:    spec.ServiceName,
		ServiceVersion: version.GetVersion(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	logger.Info("tracing enabled", "endpoint", spec.Endpoint)
	return tracer, func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("tracer provider shutdown failed", "error", err)
		}
	}, nil
}

// sameListener reports whether the metrics address names the gateway's own
// listener, in which case /metrics is mounted on the gateway mux.
func sameListener(metricsAddr string, server config.ServerSpec) bool {
	host, port, err := net.SplitHostPort(metricsAddr)
	if err != nil || port != strconv.Itoa(server.Port) {
		return false
	}
	return host == "" || host == server.Host
}
