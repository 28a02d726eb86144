package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists sessions in a single jsonb-backed table so that a
// restart does not drop in-flight conversations. The schema is created by
// the db package migrations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Get(ctx context.Context, senderID string) (Session, error) {
	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT data FROM intake_sessions WHERE sender_id = $1`, senderID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

func (p *PostgresStore) Put(ctx context.Context, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO intake_sessions (sender_id, data, last_activity_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (sender_id)
		 DO UPDATE SET data = EXCLUDED.data, last_activity_at = EXCLUDED.last_activity_at`,
		s.SenderID, data, s.LastActivityAt,
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, senderID string) error {
	if _, err := p.pool.Exec(ctx,
		`DELETE FROM intake_sessions WHERE sender_id = $1`, senderID,
	); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context) ([]Session, error) {
	rows, err := p.pool.Query(ctx, `SELECT data FROM intake_sessions`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		var s Session
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
