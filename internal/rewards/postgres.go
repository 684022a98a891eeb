package rewards

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/park285/cheese-puzzle/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS puzzle_profiles (
    player_id      TEXT PRIMARY KEY,
    streak         INTEGER NOT NULL DEFAULT 0,
    best_streak    INTEGER NOT NULL DEFAULT 0,
    tokens         INTEGER NOT NULL DEFAULT 0,
    solved         INTEGER NOT NULL DEFAULT 0,
    solved_today   INTEGER NOT NULL DEFAULT 0,
    last_solved_on DATE,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS puzzle_results (
    id          BIGSERIAL PRIMARY KEY,
    session_id  TEXT NOT NULL UNIQUE,
    player_id   TEXT NOT NULL,
    puzzle_id   TEXT NOT NULL,
    rating      INTEGER NOT NULL,
    hints       INTEGER NOT NULL,
    moves_uci   JSONB NOT NULL,
    tokens      INTEGER NOT NULL,
    started_at  TIMESTAMPTZ,
    solved_at   TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS puzzle_results_player_idx ON puzzle_results (player_id, solved_at DESC);
`

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// PostgresLedger stores rewards in Postgres through lib/pq.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(databaseURL string) (*PostgresLedger, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresLedger{db: db}, nil
}

// Migrate creates the ledger tables when missing.
func (l *PostgresLedger) Migrate(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate rewards schema: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *PostgresLedger) Profile(ctx context.Context, playerID string) (*domain.PuzzleProfile, error) {
	q := `SELECT player_id, streak, best_streak, tokens, solved, solved_today,
        last_solved_on, created_at, updated_at
      FROM puzzle_profiles WHERE player_id = $1`
	var p domain.PuzzleProfile
	var last pq.NullTime
	err := l.db.QueryRowContext(ctx, q, playerID).Scan(
		&p.PlayerID, &p.Streak, &p.BestStreak, &p.Tokens, &p.Solved, &p.SolvedToday,
		&last, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if last.Valid {
		p.LastSolvedOn = Day(last.Time)
	}
	return &p, nil
}

func (l *PostgresLedger) Record(ctx context.Context, result *domain.PuzzleResult, profile *domain.PuzzleProfile) error {
	if result == nil || profile == nil {
		return nil
	}
	moves, err := json.Marshal(result.MovesUCI)
	if err != nil {
		return err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var started any
	if !result.StartedAt.IsZero() {
		started = result.StartedAt
	}
	err = tx.QueryRowContext(ctx, `INSERT INTO puzzle_results (
        session_id, player_id, puzzle_id, rating, hints, moves_uci, tokens,
        started_at, solved_at, duration_ms
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		result.SessionID, result.PlayerID, result.PuzzleID, result.Rating, result.Hints,
		moves, result.Tokens, started, result.SolvedAt, result.Duration.Milliseconds(),
	).Scan(&result.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicateResult
		}
		return err
	}

	var last any
	if !profile.LastSolvedOn.IsZero() {
		last = profile.LastSolvedOn
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO puzzle_profiles (
        player_id, streak, best_streak, tokens, solved, solved_today, last_solved_on, updated_at
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
      ON CONFLICT (player_id) DO UPDATE SET
        streak=EXCLUDED.streak,
        best_streak=EXCLUDED.best_streak,
        tokens=EXCLUDED.tokens,
        solved=EXCLUDED.solved,
        solved_today=EXCLUDED.solved_today,
        last_solved_on=EXCLUDED.last_solved_on,
        updated_at=EXCLUDED.updated_at`,
		profile.PlayerID, profile.Streak, profile.BestStreak, profile.Tokens, profile.Solved,
		profile.SolvedToday, last, profile.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (l *PostgresLedger) Recent(ctx context.Context, playerID string, limit int) ([]*domain.PuzzleResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `SELECT id, session_id, player_id, puzzle_id, rating, hints,
        moves_uci, tokens, started_at, solved_at, duration_ms
      FROM puzzle_results WHERE player_id = $1
      ORDER BY solved_at DESC, id DESC LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.PuzzleResult, 0, limit)
	for rows.Next() {
		var r domain.PuzzleResult
		var moves []byte
		var started pq.NullTime
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.SessionID, &r.PlayerID, &r.PuzzleID, &r.Rating, &r.Hints,
			&moves, &r.Tokens, &started, &r.SolvedAt, &durationMS); err != nil {
			return nil, err
		}
		if len(moves) > 0 {
			if err := json.Unmarshal(moves, &r.MovesUCI); err != nil {
				return nil, fmt.Errorf("decode moves for %s: %w", r.SessionID, err)
			}
		}
		if started.Valid {
			r.StartedAt = started.Time
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, &r)
	}
	return out, rows.Err()
}

var _ Ledger = (*PostgresLedger)(nil)
