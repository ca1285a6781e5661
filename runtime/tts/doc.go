// Package tts provides streaming text-to-speech for the voice pipeline.
//
// A StreamingService opens one Stream per reply. The caller pushes the reply
// text, ends input, and then consumes audio Events until one arrives with
// Final set. Audio is raw little-endian 16-bit mono PCM at the configured
// sample rate, so frames can be forwarded to the telephony transport without
// transcoding. Every audio event holds whole samples.
//
//	svc := tts.NewDeepgram(os.Getenv("DEEPGRAM_API_KEY"))
//	stream, err := svc.OpenStream(ctx, tts.DefaultStreamConfig())
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	_ = stream.PushText("Hello there")
//	_ = stream.EndInput()
//	for ev := range stream.Events() {
//	    if ev.Err != nil {
//	        return ev.Err
//	    }
//	    if ev.Final {
//	        break
//	    }
//	    transport.Send(ev.Audio)
//	}
package tts
