// Package stt provides streaming speech-to-text providers.
package stt

import "context"

// StreamOptions configures a streaming recognition session.
type StreamOptions struct {
	Model      string
	Language   string
	Encoding   string // e.g. "pcm_s16le"
	SampleRate int
}

// Word is a word-level timing reported by the recognizer. Consumers may
// ignore it; the session pipeline currently does.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TranscriptDelta is one incremental recognition result.
type TranscriptDelta struct {
	Text    string
	IsFinal bool
	Words   []Word
}

// Stream is a live recognition session. SendAudio may be called from any
// goroutine; Transcripts is closed when the stream ends. Finalize signals
// end of audio: the service flushes any buffered transcript to Transcripts
// and then ends the stream.
type Stream interface {
	SendAudio(data []byte) error
	Finalize() error
	Transcripts() <-chan TranscriptDelta
	Close() error
}

// Provider opens streaming recognition sessions.
type Provider interface {
	Name() string
	NewStream(ctx context.Context, opts StreamOptions) (Stream, error)
}
