package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Pipeline defaults.
const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	DefaultBitDepth   = 16

	// bytesPerSample16 is the width of one 16-bit PCM sample.
	bytesPerSample16 = 2
)

// ErrUnsupportedFormat is returned for bit depths other than 8 or 16 and
// channel counts other than 1 or 2. It is never fatal to a session.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Format describes a raw PCM byte stream.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// PipelineFormat returns the canonical format frames are normalized to.
func PipelineFormat() Format {
	return Format{
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		BitDepth:   DefaultBitDepth,
	}
}

// Validate reports ErrUnsupportedFormat when the format cannot be normalized.
func (f Format) Validate() error {
	if f.BitDepth != 8 && f.BitDepth != 16 {
		return fmt.Errorf("%w: bit depth %d", ErrUnsupportedFormat, f.BitDepth)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, f.Channels)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, f.SampleRate)
	}
	return nil
}

// BytesPerSecond is the byte rate of a stream in this format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitDepth / 8
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitDepth)
}

// Frame is a block of signed 16-bit samples. Frames that leave a Normalizer
// are always mono.
type Frame struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// SampleCount returns the number of samples in the frame.
func (f Frame) SampleCount() int {
	return len(f.Samples)
}

// DurationMillis returns the playback length of the frame in milliseconds.
func (f Frame) DurationMillis() int {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	return len(f.Samples) * 1000 / (f.SampleRate * f.Channels)
}

// PCM encodes the frame as little-endian 16-bit PCM.
func (f Frame) PCM() []byte {
	out := make([]byte, len(f.Samples)*bytesPerSample16)
	for i, s := range f.Samples {
		binary.LittleEndian.PutUint16(out[i*bytesPerSample16:], uint16(s)) //nolint:gosec // PCM16 encoding
	}
	return out
}

// DecodePCM16 interprets little-endian bytes as signed 16-bit samples.
// A trailing odd byte is dropped.
func DecodePCM16(data []byte) []int16 {
	n := len(data) / bytesPerSample16
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*bytesPerSample16:])) //nolint:gosec // PCM16 decoding
	}
	return samples
}
