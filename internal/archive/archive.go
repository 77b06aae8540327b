// internal/archive/archive.go
package archive

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pool is the shared connection pool. It stays nil when DATABASE_URL is unset,
// which disables the archive entirely: matches simply aren't recorded.
var pool *pgxpool.Pool

// Connect opens the pool from DATABASE_URL. An unset variable is not an error.
func Connect(ctx context.Context) error {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil
	}
	p, err := pgxpool.New(ctx, url)
	if err != nil {
		return fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return fmt.Errorf("unable to reach database: %w", err)
	}
	pool = p
	return nil
}

// Enabled reports whether match recording is active.
func Enabled() bool {
	return pool != nil
}

// Close releases the pool.
func Close() {
	if pool != nil {
		pool.Close()
		pool = nil
	}
}

// RecordMatch persists the final outcome of a finished game: one match row
// plus a result row per player. Failures are the caller's to log; they never
// affect the in-memory game.
func RecordMatch(ctx context.Context, matchID uuid.UUID, roomCode string, scores map[uuid.UUID]int, winners []uuid.UUID) error {
	if pool == nil {
		return nil
	}
	won := make(map[uuid.UUID]bool, len(winners))
	for _, w := range winners {
		won[w] = true
	}

	err := pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertMatch := `
			INSERT INTO matches (id, room_code, status)
			VALUES ($1, $2, 'completed')
			ON CONFLICT (id) DO UPDATE SET status = 'completed'
		`
		if _, e := tx.Exec(ctx, upsertMatch, matchID, roomCode); e != nil {
			return e
		}
		q := `
			INSERT INTO match_results (match_id, player_id, score, did_win)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (match_id, player_id)
			DO UPDATE SET score=$3, did_win=$4
		`
		for playerID, score := range scores {
			if _, e := tx.Exec(ctx, q, matchID, playerID, score, won[playerID]); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert match or results: %w", err)
	}
	return nil
}
