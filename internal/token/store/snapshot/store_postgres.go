package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"ftledger/internal/token/state"
	"ftledger/pkg/platform/sentinel"
	txcontext "ftledger/pkg/platform/tx"
)

const defaultRetain = 10

// Schema creates the snapshot table. Applied by EnsureSchema at boot.
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_snapshots (
	version   BIGINT PRIMARY KEY,
	taken_at  TIMESTAMPTZ NOT NULL,
	admins    TEXT[] NOT NULL,
	document  JSONB NOT NULL
)`

// PostgresStore appends one row per saved version and keeps the newest
// few, so an operator can inspect recent history.
type PostgresStore struct {
	db     *sql.DB
	retain int
}

type PostgresOption func(*PostgresStore)

// WithRetain sets how many versions are kept. Values below 1 are ignored.
func WithRetain(n int) PostgresOption {
	return func(s *PostgresStore) {
		if n > 0 {
			s.retain = n
		}
	}
}

func NewPostgresStore(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, retain: defaultRetain}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// EnsureSchema creates the snapshot table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create ledger_snapshots: %w", err)
	}
	return nil
}

// Save inserts the snapshot and prunes versions beyond the retention window
// in one transaction.
func (s *PostgresStore) Save(ctx context.Context, snap state.Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	admins := make([]string, len(snap.Admins))
	for i, a := range snap.Admins {
		admins[i] = a.String()
	}

	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		exec := txcontext.Execer(ctx, s.db)
		_, err := exec.ExecContext(ctx, `
			INSERT INTO ledger_snapshots (version, taken_at, admins, document)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (version) DO UPDATE SET
				taken_at = EXCLUDED.taken_at,
				admins = EXCLUDED.admins,
				document = EXCLUDED.document
		`, int64(snap.Version), snap.TakenAt, pq.Array(admins), doc)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		_, err = exec.ExecContext(ctx, `
			DELETE FROM ledger_snapshots
			WHERE version NOT IN (
				SELECT version FROM ledger_snapshots ORDER BY version DESC LIMIT $1
			)
		`, s.retain)
		if err != nil {
			return fmt.Errorf("prune snapshots: %w", err)
		}
		return nil
	})
}

// Load returns the newest stored snapshot.
func (s *PostgresStore) Load(ctx context.Context) (state.Snapshot, error) {
	var doc []byte
	err := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT document FROM ledger_snapshots ORDER BY version DESC LIMIT 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return state.Snapshot{}, fmt.Errorf("load snapshot: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return state.Snapshot{}, fmt.Errorf("load snapshot from postgres: %w", err)
	}
	var snap state.Snapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		return state.Snapshot{}, fmt.Errorf("decode snapshot: %w: %w", sentinel.ErrInvalidState, err)
	}
	return snap, nil
}

// Versions lists stored versions, newest first.
func (s *PostgresStore) Versions(ctx context.Context) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM ledger_snapshots ORDER BY version DESC`)
	if err != nil {
		return nil, fmt.Errorf("list snapshot versions: %w", err)
	}
	defer rows.Close()

	var out []uint64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan snapshot version: %w", err)
		}
		out = append(out, uint64(v))
	}
	return out, rows.Err()
}
