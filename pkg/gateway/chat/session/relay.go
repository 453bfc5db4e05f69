package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/voicebridge-ai/voicebridge/pkg/core"
	"github.com/voicebridge-ai/voicebridge/pkg/core/voice/stt"
)

// TranscriptionRelay bridges the blocking streaming recognition connection
// into the session's event loop. The stream's reader runs on its own
// goroutine; finalized transcripts cross back through the Results channel
// and nothing else. Stream errors end that stream without reconnecting;
// the client re-toggles to start a new one.
type TranscriptionRelay struct {
	provider stt.Provider
	opts     stt.StreamOptions
	logger   *slog.Logger

	stream      stt.Stream
	forwardDone chan struct{}
	results     chan string
}

// stopDrainTimeout bounds how long Stop waits for the flushed tail of a
// finalized stream before tearing the connection down anyway.
const stopDrainTimeout = 2 * time.Second

// NewTranscriptionRelay creates an idle relay.
func NewTranscriptionRelay(provider stt.Provider, opts stt.StreamOptions, logger *slog.Logger) *TranscriptionRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscriptionRelay{
		provider: provider,
		opts:     opts,
		logger:   logger,
		results:  make(chan string, 16),
	}
}

// Results delivers finalized transcripts. The channel stays open for the
// life of the relay so the session can keep selecting on it across stream
// restarts.
func (r *TranscriptionRelay) Results() <-chan string { return r.results }

// Streaming reports whether a recognition stream is currently open.
func (r *TranscriptionRelay) Streaming() bool { return r.stream != nil }

// Start opens the recognition stream if none is open.
func (r *TranscriptionRelay) Start(ctx context.Context) error {
	if r.stream != nil {
		return nil
	}
	stream, err := r.provider.NewStream(ctx, r.opts)
	if err != nil {
		return core.NewSpeechError("recognition_start", err)
	}
	r.stream = stream
	done := make(chan struct{})
	r.forwardDone = done
	go func() {
		defer close(done)
		r.forward(stream)
	}()
	return nil
}

// SendAudio hands one audio chunk to the stream, opening it first if the
// relay is idle.
func (r *TranscriptionRelay) SendAudio(ctx context.Context, chunk []byte) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	if err := r.stream.SendAudio(chunk); err != nil {
		r.dropStream()
		return core.NewSpeechError("recognition_send", err)
	}
	return nil
}

// Stop signals end-of-stream, drains the flushed tail into Results, and
// releases the connection. A no-op when already idle.
func (r *TranscriptionRelay) Stop() {
	if r.stream == nil {
		return
	}
	if err := r.stream.Finalize(); err != nil {
		r.logger.Warn("recognition finalize failed", "error", err)
	} else {
		select {
		case <-r.forwardDone:
		case <-time.After(stopDrainTimeout):
			r.logger.Warn("recognition stream slow to flush on stop")
		}
	}
	r.dropStream()
}

func (r *TranscriptionRelay) dropStream() {
	if r.stream == nil {
		return
	}
	if err := r.stream.Close(); err != nil {
		r.logger.Warn("recognition stream close failed", "error", err)
	}
	r.stream = nil
}

// forward runs on its own goroutine until the stream's transcript channel
// closes. Only finalized, non-empty transcripts are handed across.
func (r *TranscriptionRelay) forward(stream stt.Stream) {
	for delta := range stream.Transcripts() {
		if !delta.IsFinal {
			continue
		}
		text := strings.TrimSpace(delta.Text)
		if text == "" {
			continue
		}
		select {
		case r.results <- text:
		default:
			r.logger.Warn("transcript dropped, session backlogged")
		}
	}
}
