package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	wavHeaderSize = 44
	wavFormatPCM  = 1
)

// ErrNotWAV is returned when a stream does not start with a RIFF/WAVE header.
var ErrNotWAV = errors.New("not a RIFF/WAVE stream")

// ReadWAV reads a PCM WAV stream and returns its sample data and format.
// Chunks other than "fmt " and "data" are skipped.
func ReadWAV(r io.Reader) ([]byte, Format, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, Format{}, fmt.Errorf("read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, Format{}, ErrNotWAV
	}

	var format Format
	haveFormat := false
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, Format{}, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, Format{}, fmt.Errorf("read fmt chunk: %w", err)
			}
			if len(body) < 16 {
				return nil, Format{}, fmt.Errorf("fmt chunk too short: %d bytes", len(body))
			}
			if code := binary.LittleEndian.Uint16(body[0:2]); code != wavFormatPCM {
				return nil, Format{}, fmt.Errorf("%w: wav encoding %d", ErrUnsupportedFormat, code)
			}
			format = Format{
				Channels:   int(binary.LittleEndian.Uint16(body[2:4])),
				SampleRate: int(binary.LittleEndian.Uint32(body[4:8])),
				BitDepth:   int(binary.LittleEndian.Uint16(body[14:16])),
			}
			haveFormat = true
		case "data":
			if !haveFormat {
				return nil, Format{}, errors.New("data chunk before fmt chunk")
			}
			data, err := io.ReadAll(io.LimitReader(r, size))
			if err != nil {
				return nil, Format{}, fmt.Errorf("read data chunk: %w", err)
			}
			return data, format, nil
		default:
			if _, err := io.CopyN(io.Discard, r, size+size%2); err != nil {
				return nil, Format{}, fmt.Errorf("skip %q chunk: %w", id, err)
			}
			continue
		}
		if size%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return nil, Format{}, err
			}
		}
	}
}

// WrapPCMAsWAV prepends a 44-byte PCM WAV header to raw sample data.
func WrapPCMAsWAV(pcm []byte, f Format) []byte {
	dataSize := len(pcm)
	blockAlign := f.Channels * f.BitDepth / 8

	wav := make([]byte, wavHeaderSize+dataSize)
	copy(wav[0:4], "RIFF")
	binary.LittleEndian.PutUint32(wav[4:8], uint32(36+dataSize))
	copy(wav[8:12], "WAVE")

	copy(wav[12:16], "fmt ")
	binary.LittleEndian.PutUint32(wav[16:20], 16)
	binary.LittleEndian.PutUint16(wav[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(wav[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(wav[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(wav[28:32], uint32(f.BytesPerSecond()))
	binary.LittleEndian.PutUint16(wav[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(wav[34:36], uint16(f.BitDepth))

	copy(wav[36:40], "data")
	binary.LittleEndian.PutUint32(wav[40:44], uint32(dataSize))
	copy(wav[44:], pcm)

	return wav
}
