package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/parvbhullar/media-gateway/pkg/config"
	"github.com/parvbhullar/media-gateway/runtime/audio"
	"github.com/parvbhullar/media-gateway/runtime/transport"
)

var replayCmd = &cobra.Command{
	Use:   "replay <file.wav|file.pcm>",
	Short: "Stream a recording to a running gateway",
	Long: `Streams a recording to a running gateway at real-time pace, as a
telephony client would, and reports what the gateway sends back.

WAV files carry their own format. Raw PCM is read in the format given by
--sample-rate, --channels and --bit-depth.

Examples:
  mediagateway replay hello.wav
  mediagateway replay call.pcm --sample-rate 8000 --output reply.pcm`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var (
	replayURL             string
	replayOutput          string
	replayChunk           time.Duration
	replayTrailingSilence time.Duration
	replayLinger          time.Duration
	replaySampleRate      int
	replayChannels        int
	replayBitDepth        int
)

func init() {
	rootCmd.AddCommand(replayCmd)

	defaults := config.Default().Spec
	defaultURL := fmt.Sprintf("ws://localhost:%d%s", defaults.Server.Port, defaults.Server.Path)

	replayCmd.Flags().StringVar(&replayURL, "url", defaultURL, "Gateway websocket URL")
	replayCmd.Flags().StringVarP(&replayOutput, "output", "o", "", "Write received audio to this file")
	replayCmd.Flags().DurationVar(&replayChunk, "chunk", defaults.Audio.ReplayChunk, "Audio duration per frame")
	replayCmd.Flags().DurationVar(&replayTrailingSilence, "trailing-silence", 2*time.Second, "Silence appended after the recording")
	replayCmd.Flags().DurationVar(&replayLinger, "linger", transport.DefaultReplayLinger, "How long to wait for replies after the last frame")
	replayCmd.Flags().IntVar(&replaySampleRate, "sample-rate", audio.DefaultSampleRate, "Sample rate of raw PCM input")
	replayCmd.Flags().IntVar(&replayChannels, "channels", audio.DefaultChannels, "Channel count of raw PCM input")
	replayCmd.Flags().IntVar(&replayBitDepth, "bit-depth", audio.DefaultBitDepth, "Bit depth of raw PCM input")
}

func runReplay(cmd *cobra.Command, args []string) error {
	pcm, format, err := readRecording(args[0])
	if err != nil {
		return err
	}

	replayer := &transport.Replayer{
		URL:             replayURL,
		Chunk:           replayChunk,
		TrailingSilence: replayTrailingSilence,
		Linger:          replayLinger,
	}
	if replayOutput != "" {
		f, err := os.Create(replayOutput) //nolint:gosec // path comes from the operator
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w := bufio.NewWriter(f)
		defer w.Flush()
		replayer.Output = w
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Replaying %s (%s) to %s\n", filepath.Base(args[0]), format, replayURL)
	result, err := replayer.Replay(ctx, pcm, format)
	printReplayResult(cmd.OutOrStdout(), result)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// readRecording loads a WAV file, or a raw PCM file in the flag format.
func readRecording(path string) ([]byte, audio.Format, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return audio.ReadWAV(bufio.NewReader(f))
	}

	format := audio.Format{
		SampleRate: replaySampleRate,
		Channels:   replayChannels,
		BitDepth:   replayBitDepth,
	}
	if err := format.Validate(); err != nil {
		return nil, audio.Format{}, err
	}
	pcm, err := io.ReadAll(f)
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("failed to read recording: %w", err)
	}
	return pcm, format, nil
}

func printReplayResult(w io.Writer, result transport.ReplayResult) {
	fmt.Fprintf(w, "\nChunks sent:     %d\n", result.ChunksSent)
	fmt.Fprintf(w, "Frames received: %d (%d bytes)\n", result.FramesReceived, result.BytesReceived)
	fmt.Fprintf(w, "Events:          %d\n", len(result.Events))
	for _, ev := range result.Events {
		fmt.Fprintf(w, "  %s\n", ev)
	}
}
