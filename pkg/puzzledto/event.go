package puzzledto

import "time"

// Event is pushed to websocket subscribers of a session.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Move      string    `json:"move,omitempty"`
	Step      int       `json:"step"`
	State     string    `json:"state"`
	FEN       string    `json:"fen"`
	At        time.Time `json:"at"`
}
