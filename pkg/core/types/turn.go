// Package types holds the small value types shared by the session pipeline,
// the analysis collaborators, and the persistence layer.
package types

import "time"

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable utterance in a conversation.
type Turn struct {
	Role Role
	Text string
	At   time.Time
}

// BiomarkerScore is a single behavioral signal produced by an analysis
// collaborator. Value is a rendered score; its shape depends on Kind
// (a label, a number, or a small JSON document).
type BiomarkerScore struct {
	Kind  string    `json:"kind"`
	Value string    `json:"value"`
	At    time.Time `json:"at"`
}

// AudioWindow is a fixed-duration accumulation of raw PCM used as the unit
// of acoustic analysis.
type AudioWindow struct {
	PCM        []byte
	SampleRate int
}

// Duration returns the audio length represented by the window, assuming
// 16-bit mono samples.
func (w AudioWindow) Duration() time.Duration {
	if w.SampleRate <= 0 || len(w.PCM) == 0 {
		return 0
	}
	samples := len(w.PCM) / 2
	return time.Duration(samples) * time.Second / time.Duration(w.SampleRate)
}
