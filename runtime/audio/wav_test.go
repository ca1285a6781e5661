package audio

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAV_RoundTrip(t *testing.T) {
	pcm := pcm16(1, -2, 3, -4)
	f := Format{SampleRate: 8000, Channels: 2, BitDepth: 16}

	data, got, err := ReadWAV(bytes.NewReader(WrapPCMAsWAV(pcm, f)))
	require.NoError(t, err)
	assert.Equal(t, f, got)
	assert.Equal(t, pcm, data)
}

func TestWAV_SkipsUnknownChunks(t *testing.T) {
	pcm := pcm16(9, 9)
	wav := WrapPCMAsWAV(pcm, PipelineFormat())

	// Splice a LIST chunk with an odd size between fmt and data.
	list := []byte{'L', 'I', 'S', 'T', 3, 0, 0, 0, 'a', 'b', 'c', 0}
	spliced := append(append(append([]byte{}, wav[:36]...), list...), wav[36:]...)

	data, got, err := ReadWAV(bytes.NewReader(spliced))
	require.NoError(t, err)
	assert.Equal(t, PipelineFormat(), got)
	assert.Equal(t, pcm, data)
}

func TestWAV_NotRIFF(t *testing.T) {
	_, _, err := ReadWAV(bytes.NewReader([]byte("not a wav file at all")))
	assert.True(t, errors.Is(err, ErrNotWAV))
}

func TestWAV_Truncated(t *testing.T) {
	_, _, err := ReadWAV(bytes.NewReader([]byte("RIF")))
	assert.Error(t, err)
}
