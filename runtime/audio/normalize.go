package audio

// Normalizer converts raw transport buffers into mono frames at the target
// sample rate. It holds no per-call state and is safe for concurrent use.
type Normalizer struct {
	target Format
}

// NewNormalizer creates a Normalizer producing frames in the target format.
// Only the target sample rate is used; output is always 16-bit mono.
func NewNormalizer(target Format) *Normalizer {
	if target.SampleRate <= 0 {
		target.SampleRate = DefaultSampleRate
	}
	return &Normalizer{target: Format{SampleRate: target.SampleRate, Channels: 1, BitDepth: 16}}
}

// Target returns the output format.
func (n *Normalizer) Target() Format {
	return n.target
}

// Normalize converts raw bytes in the source format into a pipeline frame.
//
// 8-bit input is unsigned and becomes (b-128)*256. 16-bit input is read as
// little-endian signed samples with a trailing odd byte dropped. Stereo is
// averaged into mono, then the result is resampled to the target rate.
func (n *Normalizer) Normalize(raw []byte, src Format) (Frame, error) {
	if err := src.Validate(); err != nil {
		return Frame{}, err
	}

	var samples []int16
	if src.BitDepth == 8 {
		samples = upconvert8(raw)
	} else {
		samples = DecodePCM16(raw)
	}

	if src.Channels == 2 {
		samples = downmix(samples)
	}

	samples = Resample(samples, src.SampleRate, n.target.SampleRate)

	return Frame{
		Samples:    samples,
		SampleRate: n.target.SampleRate,
		Channels:   1,
	}, nil
}

func upconvert8(raw []byte) []int16 {
	samples := make([]int16, len(raw))
	for i, b := range raw {
		samples[i] = int16((int(b) - 128) * 256) //nolint:gosec // range is [-32768, 32512]
	}
	return samples
}

// downmix averages interleaved stereo pairs. Division truncates toward zero;
// an unpaired trailing sample is dropped.
func downmix(interleaved []int16) []int16 {
	mono := make([]int16, len(interleaved)/2)
	for i := range mono {
		l := int32(interleaved[2*i])
		r := int32(interleaved[2*i+1])
		mono[i] = int16((l + r) / 2) //nolint:gosec // average of two int16 fits
	}
	return mono
}
