// Package tts provides one-shot text-to-speech providers.
package tts

import "context"

// SynthesizeOptions configures a synthesis call.
type SynthesizeOptions struct {
	Voice      string
	Language   string
	Format     string // "wav", "mp3", or "pcm"
	SampleRate int
}

// Provider converts an utterance to an encoded audio buffer.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) ([]byte, error)
}
