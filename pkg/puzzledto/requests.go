package puzzledto

// StartRequest opens a session. An empty PuzzleID picks the daily puzzle.
type StartRequest struct {
	PuzzleID string `json:"puzzle_id,omitempty"`
	Player   string `json:"player,omitempty"`
	Source   string `json:"source,omitempty"`
}

type MoveRequest struct {
	Move string `json:"move"`
}
