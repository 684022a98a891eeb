package domain

import "time"

// PuzzleResult is one solved puzzle as stored in the rewards ledger.
type PuzzleResult struct {
	ID        int64
	SessionID string
	PlayerID  string
	PuzzleID  string
	Rating    int
	Hints     int
	MovesUCI  []string
	Tokens    int
	StartedAt time.Time
	SolvedAt  time.Time
	Duration  time.Duration
}

// PuzzleProfile accumulates a player's streak and token balance.
type PuzzleProfile struct {
	PlayerID     string
	Streak       int
	BestStreak   int
	Tokens       int
	Solved       int
	SolvedToday  int
	LastSolvedOn time.Time // UTC midnight of the last solve day
	UpdatedAt    time.Time
	CreatedAt    time.Time
}
