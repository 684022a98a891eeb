package puzzledto

import "time"

// Reward summarises what a solve earned.
type Reward struct {
	Tokens       int    `json:"tokens"`
	Streak       int    `json:"streak"`
	SolvedToday  int    `json:"solved_today"`
	QuotaReached bool   `json:"quota_reached"`
	Milestone    string `json:"milestone,omitempty"`
}

// MoveResult is the answer to a submitted move.
type MoveResult struct {
	Outcome string        `json:"outcome"`
	Move    string        `json:"move"`
	Reply   string        `json:"reply,omitempty"`
	ReplyAt *time.Time    `json:"reply_at,omitempty"`
	Message string        `json:"message,omitempty"`
	Reward  *Reward       `json:"reward,omitempty"`
	State   *SessionState `json:"state"`
}
