package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fununcle/perfectcircle/pkg/metrics"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteStore keeps best scores in a SQLite file so they survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and runs migrations.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
	}
	if count, err := s.Count(ctx); err == nil {
		metrics.UpdateStoreRecords(count)
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS high_scores (
			player_id TEXT PRIMARY KEY,
			score REAL NOT NULL,
			attempt_id TEXT NOT NULL DEFAULT '',
			samples INTEGER NOT NULL DEFAULT 0,
			recorded_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_high_scores_rank ON high_scores(score DESC, player_id ASC);`,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// UpdateBest upserts rec when it beats the stored score.
func (s *SQLiteStore) UpdateBest(ctx context.Context, rec Record) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency("update", float64(time.Since(start).Microseconds())/1000)
	}()

	if err := validate(rec); err != nil {
		return false, err
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO high_scores (player_id, score, attempt_id, samples, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(player_id) DO UPDATE SET
			score = excluded.score,
			attempt_id = excluded.attempt_id,
			samples = excluded.samples,
			recorded_at = excluded.recorded_at
		WHERE excluded.score > high_scores.score`,
		rec.PlayerID, rec.Score, rec.AttemptID, rec.Samples, rec.RecordedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("upsert best for %s: %w", rec.PlayerID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if count, err := s.Count(ctx); err == nil {
		metrics.UpdateStoreRecords(count)
	}
	return true, nil
}

// Rank returns a player's best and its competition rank.
func (s *SQLiteStore) Rank(ctx context.Context, playerID string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency("rank", float64(time.Since(start).Microseconds())/1000)
	}()

	e := Entry{PlayerID: playerID}
	err := s.db.QueryRowContext(ctx,
		`SELECT score, attempt_id, samples, recorded_at FROM high_scores WHERE player_id = ?`, playerID).
		Scan(&e.Score, &e.AttemptID, &e.Samples, &e.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("load best for %s: %w", playerID, err)
	}

	var above int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM high_scores WHERE score > ?`, e.Score).Scan(&above); err != nil {
		return Entry{}, fmt.Errorf("rank %s: %w", playerID, err)
	}
	e.Rank = above + 1
	return e, nil
}

// TopN returns the n best players.
func (s *SQLiteStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency("top", float64(time.Since(start).Microseconds())/1000)
	}()

	if n < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT player_id, score, attempt_id, samples, recorded_at
		FROM high_scores
		ORDER BY score DESC, player_id ASC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query top %d: %w", n, err)
	}
	defer rows.Close()

	out := make([]Entry, 0, n)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.PlayerID, &e.Score, &e.AttemptID, &e.Samples, &e.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	assignRanks(out, 1)
	return out, nil
}

// Count returns the number of players with a stored best.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM high_scores`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count high scores: %w", err)
	}
	return n, nil
}
