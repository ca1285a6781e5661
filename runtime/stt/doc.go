// Package stt provides streaming speech-to-text for the voice pipeline.
//
// A StreamingService opens one Stream per utterance. The caller pushes
// normalized 16-bit mono PCM into the stream, signals EndInput when the
// utterance is over, and consumes transcript Events (interim and final) in the
// order the provider emits them. The Events channel is closed when the
// provider finishes or the stream is closed.
//
// Pushing into a stream whose input has already ended is a no-op, so late
// frames that race an utterance boundary are dropped rather than failing.
//
//	svc := stt.NewDeepgram(os.Getenv("DEEPGRAM_API_KEY"))
//	stream, err := svc.OpenStream(ctx, stt.DefaultStreamConfig())
//	...
//	_ = stream.Push(frame.PCM())
//	for ev := range stream.Events() {
//	    if ev.Kind == stt.EventFinal {
//	        fmt.Println("user said:", ev.Text)
//	    }
//	}
package stt
