package session

import "github.com/voicebridge-ai/voicebridge/pkg/core/types"

// bytesPerSample is 16-bit mono PCM.
const bytesPerSample = 2

// windowAccumulator collects raw PCM until a fixed duration's worth of
// audio has arrived, then hands the whole window off and starts empty.
type windowAccumulator struct {
	seconds    int
	sampleRate int
	pcm        []byte
}

func newWindowAccumulator(seconds, sampleRate int) *windowAccumulator {
	return &windowAccumulator{seconds: seconds, sampleRate: sampleRate}
}

// threshold is the byte count representing the window duration at the
// current sample rate.
func (a *windowAccumulator) threshold() int {
	return a.seconds * a.sampleRate * bytesPerSample
}

// Append adds one chunk. When the accumulated bytes first reach the
// threshold the full window is returned and the accumulator is cleared,
// otherwise Append returns nil. A chunk with its own sample rate rebinds
// the accumulator before appending.
func (a *windowAccumulator) Append(chunk []byte, sampleRate int) *types.AudioWindow {
	if sampleRate > 0 && sampleRate != a.sampleRate {
		a.sampleRate = sampleRate
	}
	a.pcm = append(a.pcm, chunk...)
	if len(a.pcm) < a.threshold() {
		return nil
	}
	w := &types.AudioWindow{PCM: a.pcm, SampleRate: a.sampleRate}
	a.pcm = nil
	return w
}

// Len reports the currently accumulated byte count.
func (a *windowAccumulator) Len() int { return len(a.pcm) }

// Reset drops any partial window.
func (a *windowAccumulator) Reset() { a.pcm = nil }
