// Package puzzledto holds the JSON shapes served by the puzzle HTTP API.
package puzzledto

import "time"

type HintState struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SessionState struct {
	SessionID      string     `json:"session_id"`
	PuzzleID       string     `json:"puzzle_id"`
	Player         string     `json:"player,omitempty"`
	FEN            string     `json:"fen"`
	SideToMove     string     `json:"side_to_move"`
	State          string     `json:"state"`
	Step           int        `json:"step"`
	SolutionLength int        `json:"solution_length"`
	Hints          int        `json:"hints"`
	HintsLeft      int        `json:"hints_left"`
	Moves          []string   `json:"moves"`
	LastMove       string     `json:"last_move,omitempty"`
	Rating         int        `json:"rating,omitempty"`
	Themes         []string   `json:"themes,omitempty"`
	Opening        string     `json:"opening,omitempty"`
	GameURL        string     `json:"game_url,omitempty"`
	Source         string     `json:"source"`
	Hint           *HintState `json:"hint,omitempty"`
	Message        string     `json:"message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type LegalMoves struct {
	From    string   `json:"from"`
	Targets []string `json:"targets"`
}
