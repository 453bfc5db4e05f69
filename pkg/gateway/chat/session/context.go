package session

import "github.com/voicebridge-ai/voicebridge/pkg/core/types"

// ContextBuffer is the bounded recent-turn history that conditions the next
// generated reply. Only the session's event loop mutates it; background
// tasks work from Snapshot copies.
type ContextBuffer struct {
	capacity int
	turns    []types.Turn
}

// NewContextBuffer creates a buffer holding at most capacity turns.
func NewContextBuffer(capacity int) *ContextBuffer {
	if capacity <= 0 {
		capacity = 10
	}
	return &ContextBuffer{capacity: capacity}
}

// Append pushes a turn to the tail, evicting from the head once the buffer
// exceeds capacity.
func (b *ContextBuffer) Append(turn types.Turn) {
	b.turns = append(b.turns, turn)
	if n := len(b.turns) - b.capacity; n > 0 {
		b.turns = append(b.turns[:0], b.turns[n:]...)
	}
}

// Snapshot returns a copy safe to hand to a concurrently running task.
func (b *ContextBuffer) Snapshot() []types.Turn {
	out := make([]types.Turn, len(b.turns))
	copy(out, b.turns)
	return out
}

// Len reports the number of buffered turns.
func (b *ContextBuffer) Len() int { return len(b.turns) }

// Reset drops all buffered turns.
func (b *ContextBuffer) Reset() { b.turns = nil }
