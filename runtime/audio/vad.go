package audio

import "time"

// Default VAD parameter values.
const (
	DefaultVADThreshold   = 500
	DefaultSilenceTimeout = 1200 * time.Millisecond
)

// VADParams configures speech classification and utterance segmentation.
type VADParams struct {
	// Threshold is the mean absolute amplitude (16-bit scale) at or above
	// which a frame counts as speech. It is fixed, not adaptive.
	Threshold int

	// SilenceTimeout is how long silence must persist after speech before
	// the utterance boundary fires.
	SilenceTimeout time.Duration
}

// DefaultVADParams returns the pipeline defaults.
func DefaultVADParams() VADParams {
	return VADParams{
		Threshold:      DefaultVADThreshold,
		SilenceTimeout: DefaultSilenceTimeout,
	}
}

// Validate checks that VAD parameters are within acceptable ranges.
func (p VADParams) Validate() error {
	if p.Threshold < 0 || p.Threshold > 32768 {
		return &ValidationError{Field: "Threshold", Message: "must be between 0 and 32768"}
	}
	if p.SilenceTimeout <= 0 {
		return &ValidationError{Field: "SilenceTimeout", Message: "must be positive"}
	}
	return nil
}

// ValidationError represents a parameter validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Message
}

// MeanAbsAmplitude returns the mean absolute sample value of a frame.
// An empty frame has amplitude 0.
func MeanAbsAmplitude(f Frame) float64 {
	if len(f.Samples) == 0 {
		return 0
	}
	var sum int64
	for _, s := range f.Samples {
		v := int64(s)
		if v < 0 {
			v = -v
		}
		sum += v
	}
	return float64(sum) / float64(len(f.Samples))
}

// IsSpeech reports whether a frame's mean absolute amplitude reaches threshold.
func IsSpeech(f Frame, threshold int) bool {
	return MeanAbsAmplitude(f) >= float64(threshold)
}
