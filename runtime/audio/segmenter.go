package audio

import "time"

// Segmenter is the per-session utterance boundary state machine.
//
// A speech frame cancels any pending silence timer and records the time of
// speech. A silence frame arms the timer, but only once speech has been heard
// and only if no timer is pending. When the timer fires the timeout callback
// receives the timer's token; the owner passes it back to Expire, which
// raises the boundary only if that timer is still the pending one. A speech
// frame that races the callback therefore always wins.
//
// Segmenter is not safe for concurrent use. It is owned by a single session
// goroutine; only the timeout callback runs elsewhere.
type Segmenter struct {
	params    VADParams
	clock     Clock
	onTimeout func(token uint64)

	lastSpeech  time.Time
	heardSpeech bool

	timer    Timer
	pending  uint64
	sequence uint64
}

// NewSegmenter creates a Segmenter. onTimeout is called from the clock's
// goroutine when a silence timer fires.
func NewSegmenter(params VADParams, clock Clock, onTimeout func(token uint64)) *Segmenter {
	if params.Threshold == 0 && params.SilenceTimeout == 0 {
		params = DefaultVADParams()
	}
	if clock == nil {
		clock = RealClock()
	}
	return &Segmenter{
		params:    params,
		clock:     clock,
		onTimeout: onTimeout,
	}
}

// Params returns the segmenter's VAD parameters.
func (s *Segmenter) Params() VADParams {
	return s.params
}

// Classify reports whether the frame is speech.
func (s *Segmenter) Classify(f Frame) bool {
	return IsSpeech(f, s.params.Threshold)
}

// OnFrame advances the state machine with one frame observed at now and
// reports whether it was speech.
func (s *Segmenter) OnFrame(f Frame, now time.Time) bool {
	speech := s.Classify(f)
	if speech {
		s.cancel()
		s.lastSpeech = now
		s.heardSpeech = true
		return true
	}

	if s.pending == 0 && s.heardSpeech {
		s.arm()
	}
	return false
}

// Expire confirms a fired timer. It returns true, clearing the last speech
// time and the timer, when token names the currently pending timer.
func (s *Segmenter) Expire(token uint64) bool {
	if token == 0 || token != s.pending {
		return false
	}
	s.pending = 0
	s.timer = nil
	s.heardSpeech = false
	s.lastSpeech = time.Time{}
	return true
}

// Pending reports whether a silence timer is armed.
func (s *Segmenter) Pending() bool {
	return s.pending != 0
}

// LastSpeech returns the time of the most recent speech frame since the last
// boundary.
func (s *Segmenter) LastSpeech() (time.Time, bool) {
	return s.lastSpeech, s.heardSpeech
}

// Stop cancels any pending timer and forgets recorded speech.
func (s *Segmenter) Stop() {
	s.cancel()
	s.heardSpeech = false
	s.lastSpeech = time.Time{}
}

func (s *Segmenter) arm() {
	s.sequence++
	token := s.sequence
	s.pending = token
	s.timer = s.clock.AfterFunc(s.params.SilenceTimeout, func() {
		if s.onTimeout != nil {
			s.onTimeout(token)
		}
	})
}

func (s *Segmenter) cancel() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = 0
}
