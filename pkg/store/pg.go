package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/voicebridge-ai/voicebridge/pkg/core"
	"github.com/voicebridge-ai/voicebridge/pkg/core/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PG is the Postgres-backed Store.
type PG struct {
	pool *pgxpool.Pool
}

var _ Store = (*PG)(nil)

// OpenPG connects to databaseURL, runs pending migrations, and returns the
// store.
func OpenPG(ctx context.Context, databaseURL string) (*PG, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if err := migrate(pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PG{pool: pool}, nil
}

func migrate(pool *pgxpool.Pool) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("store: set dialect: %w", err)
	}
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (p *PG) Close() { p.pool.Close() }

func (p *PG) GetOrCreateActiveSession(ctx context.Context, userID, source string) (Session, error) {
	var s Session
	err := p.pool.QueryRow(ctx,
		`SELECT id, user_id, source, started_at, ended_at
		   FROM chat_sessions
		  WHERE user_id = $1 AND ended_at IS NULL
		  ORDER BY started_at DESC
		  LIMIT 1`, userID).
		Scan(&s.ID, &s.UserID, &s.Source, &s.StartedAt, &s.EndedAt)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Session{}, core.NewPersistenceError("get session", err)
	}

	s = Session{ID: uuid.New(), UserID: userID, Source: source, StartedAt: time.Now().UTC()}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO chat_sessions (id, user_id, source, started_at) VALUES ($1, $2, $3, $4)`,
		s.ID, s.UserID, s.Source, s.StartedAt)
	if err != nil {
		return Session{}, core.NewPersistenceError("create session", err)
	}
	return s, nil
}

func (p *PG) CloseSession(ctx context.Context, id uuid.UUID) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE chat_sessions SET ended_at = now() WHERE id = $1 AND ended_at IS NULL`, id)
	if err != nil {
		return core.NewPersistenceError("close session", err)
	}
	return nil
}

func (p *PG) AddMessage(ctx context.Context, sessionID uuid.UUID, turn types.Turn) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO chat_messages (session_id, role, content, created_at) VALUES ($1, $2, $3, $4)`,
		sessionID, string(turn.Role), turn.Text, turn.At.UTC())
	if err != nil {
		return core.NewPersistenceError("add message", err)
	}
	return nil
}

func (p *PG) AddBiomarkersBulk(ctx context.Context, sessionID uuid.UUID, scores []types.BiomarkerScore) error {
	if len(scores) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, s := range scores {
		batch.Queue(
			`INSERT INTO biomarker_scores (session_id, kind, value, created_at) VALUES ($1, $2, $3, $4)`,
			sessionID, s.Kind, s.Value, s.At.UTC())
	}
	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range scores {
		if _, err := results.Exec(); err != nil {
			return core.NewPersistenceError("add biomarkers", err)
		}
	}
	return nil
}

func (p *PG) RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]types.Turn, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT role, content, created_at
		   FROM chat_messages
		  WHERE session_id = $1
		  ORDER BY created_at DESC, id DESC
		  LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, core.NewPersistenceError("recent messages", err)
	}
	defer rows.Close()

	var turns []types.Turn
	for rows.Next() {
		var t types.Turn
		var role string
		if err := rows.Scan(&role, &t.Text, &t.At); err != nil {
			return nil, core.NewPersistenceError("scan message", err)
		}
		t.Role = types.Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewPersistenceError("recent messages", err)
	}
	reverseTurns(turns)
	return turns, nil
}

// reverseTurns flips newest-first query order into chronological order.
func reverseTurns(turns []types.Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}
