package puzzledto

import "time"

type ResultSummary struct {
	PuzzleID   string    `json:"puzzle_id"`
	Rating     int       `json:"rating"`
	Hints      int       `json:"hints"`
	Tokens     int       `json:"tokens"`
	SolvedAt   time.Time `json:"solved_at"`
	DurationMS int64     `json:"duration_ms"`
}

type Profile struct {
	PlayerID     string          `json:"player_id"`
	Streak       int             `json:"streak"`
	BestStreak   int             `json:"best_streak"`
	Tokens       int             `json:"tokens"`
	Solved       int             `json:"solved"`
	SolvedToday  int             `json:"solved_today"`
	LastSolvedOn string          `json:"last_solved_on,omitempty"`
	Recent       []ResultSummary `json:"recent"`
}
