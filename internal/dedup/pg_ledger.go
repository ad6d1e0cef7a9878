package dedup

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// pgLedger is the optional Postgres-backed authoritative set, for
// deployments that want the dedup ledger to survive independently of the
// vector index's own data directory and to be shared across processes
// without a shared filesystem (§4.3 "persistent storage").
type pgLedger struct {
	pool *pgxpool.Pool
}

// NewPGLedger wraps an existing pool. The caller is responsible for
// running the content_hashes migration first.
func NewPGLedger(pool *pgxpool.Pool) Ledger {
	return &pgLedger{pool: pool}
}

func (l *pgLedger) Contains(ctx context.Context, hash [32]byte) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM content_hashes WHERE hash = $1)`, hash[:],
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dedup.pgLedger.Contains: %w", err)
	}
	return exists, nil
}

func (l *pgLedger) Add(ctx context.Context, hash [32]byte) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO content_hashes (hash) VALUES ($1) ON CONFLICT DO NOTHING`, hash[:],
	)
	if err != nil {
		return fmt.Errorf("dedup.pgLedger.Add: %w", err)
	}
	return nil
}

func (l *pgLedger) All(ctx context.Context) ([][32]byte, error) {
	rows, err := l.pool.Query(ctx, `SELECT hash FROM content_hashes`)
	if err != nil {
		return nil, fmt.Errorf("dedup.pgLedger.All: query: %w", err)
	}
	defer rows.Close()

	var out [][32]byte
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("dedup.pgLedger.All: scan: %w", err)
		}
		if len(raw) != 32 {
			continue
		}
		var h [32]byte
		copy(h[:], raw)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dedup.pgLedger.All: rows: %w", err)
	}
	return out, nil
}

func (l *pgLedger) Close() error {
	l.pool.Close()
	return nil
}
