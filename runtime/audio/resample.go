package audio

// Standard audio sample rates for common use cases.
const (
	SampleRate8kHz  = 8000  // Narrowband telephony
	SampleRate16kHz = 16000 // Common STT/ASR input rate
	SampleRate24kHz = 24000 // Common TTS output rate
	SampleRate48kHz = 48000 // WebRTC / wideband
)

// Resample converts samples from one rate to another by nearest-lower-index
// selection. The output holds floor(len / (fromRate/toRate)) samples; output
// sample i copies input sample floor(i*fromRate/toRate), or zero when that
// index is out of range. Equal rates return the input unchanged.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 {
		return samples
	}

	outLen := len(samples) * toRate / fromRate
	out := make([]int16, outLen)
	for i := range out {
		idx := i * fromRate / toRate
		if idx < len(samples) {
			out[i] = samples[idx]
		}
	}
	return out
}

// ResamplePCM16 resamples little-endian 16-bit PCM bytes with Resample.
func ResamplePCM16(input []byte, fromRate, toRate int) []byte {
	if fromRate == toRate {
		return input
	}
	frame := Frame{Samples: Resample(DecodePCM16(input), fromRate, toRate)}
	return frame.PCM()
}
