// Package store persists chat sessions, messages, and biomarker scores.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/voicebridge-ai/voicebridge/pkg/core/types"
)

// Session is one persisted conversation for a user. A user has at most one
// active session at a time; reconnects resume it.
type Session struct {
	ID        uuid.UUID
	UserID    string
	Source    string
	StartedAt time.Time
	EndedAt   *time.Time
}

// Active reports whether the session has not been closed yet.
func (s Session) Active() bool { return s.EndedAt == nil }

// Store is the persistence surface the gateway depends on. Implementations
// must make CloseSession idempotent: closing an already-closed session is a
// no-op, not an error.
type Store interface {
	// GetOrCreateActiveSession returns the user's open session, creating
	// one tagged with the source channel if none exists.
	GetOrCreateActiveSession(ctx context.Context, userID, source string) (Session, error)

	// CloseSession stamps the session's end time. Safe to call twice.
	CloseSession(ctx context.Context, id uuid.UUID) error

	// AddMessage appends one turn to the session transcript.
	AddMessage(ctx context.Context, sessionID uuid.UUID, turn types.Turn) error

	// AddBiomarkersBulk inserts a batch of scores in one round trip.
	AddBiomarkersBulk(ctx context.Context, sessionID uuid.UUID, scores []types.BiomarkerScore) error

	// RecentMessages returns up to limit of the session's newest turns in
	// chronological order.
	RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]types.Turn, error)

	// Close releases the underlying connections.
	Close()
}
