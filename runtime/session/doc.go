// Package session implements the per-call voice pipeline.
//
// A CallSession owns one telephony connection. Inbound PCM is normalized,
// gated by the utterance segmenter and pushed into the current STT stream.
// A final transcript appends a user message and starts one response cycle:
// the ResponseGenerator turns the history into reply text and the
// SpeechSynthesizer streams the reply audio back to the transport frame by
// frame. A new STT stream is opened when the cycle completes.
//
// All session state is mutated by a single loop goroutine. Provider streams
// and response work run in helper goroutines that report back to the loop
// as events, so no session-local state needs locking. The current STT
// stream lives in a generation-numbered slot: retiring a stream bumps the
// generation, and frames that arrive before the replacement is installed
// are dropped.
//
// The Registry creates sessions, enforces the concurrent call limit and
// tracks live sessions for the health endpoint.
package session
