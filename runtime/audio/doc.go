// Package audio turns raw telephony audio into the canonical PCM frames the
// voice pipeline works on and decides where one utterance ends.
//
// # Normalization
//
// A Normalizer converts inbound byte buffers of any supported Format (8 or
// 16-bit, mono or stereo, any sample rate) into a mono Frame at the pipeline
// sample rate:
//
//	n := audio.NewNormalizer(audio.PipelineFormat())
//	frame, err := n.Normalize(raw, audio.Format{SampleRate: 8000, Channels: 2, BitDepth: 8})
//	if errors.Is(err, audio.ErrUnsupportedFormat) {
//	    // drop the frame and keep going
//	}
//
// # Segmentation
//
// A Segmenter classifies frames as speech or silence by mean absolute
// amplitude and arms a silence timer once speech has been heard. When the
// timer expires the owner is told through the timeout callback and confirms
// the boundary with Expire:
//
//	seg := audio.NewSegmenter(audio.DefaultVADParams(), audio.RealClock(), func(token uint64) {
//	    events <- boundary{token}
//	})
//	...
//	case b := <-events:
//	    if seg.Expire(b.token) {
//	        // utterance finished
//	    }
//
// Timers are driven by a Clock so tests can use a ManualClock.
package audio
