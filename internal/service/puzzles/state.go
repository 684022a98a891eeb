package puzzles

import (
	"github.com/park285/cheese-puzzle/internal/board"
	"github.com/park285/cheese-puzzle/internal/puzzle"
	"github.com/park285/cheese-puzzle/pkg/puzzledto"
)

func (s *Service) stateOf(id string, ls *liveSession) *puzzledto.SessionState {
	sess := ls.sess
	def := sess.Definition()
	log := sess.Log()
	moves := make([]string, len(log))
	for i, m := range log {
		moves[i] = m.String()
	}
	st := &puzzledto.SessionState{
		SessionID:      id,
		PuzzleID:       def.ID,
		Player:         ls.player,
		FEN:            sess.FEN(),
		SideToMove:     sideName(sess.SideToMove()),
		State:          sess.State().String(),
		Step:           sess.Step(),
		SolutionLength: len(def.Solution),
		Hints:          sess.Hints(),
		HintsLeft:      sess.HintsLeft(),
		Moves:          moves,
		Rating:         def.Rating,
		Themes:         append([]string(nil), def.Themes...),
		Opening:        def.Opening,
		GameURL:        def.GameURL,
		Source:         def.Source,
		CreatedAt:      ls.createdAt,
	}
	if len(log) > 0 {
		st.LastMove = log[len(log)-1].String()
	}
	if h, ok := sess.ActiveHint(); ok {
		st.Hint = hintState(h)
	}
	return st
}

func hintState(h puzzle.Hint) *puzzledto.HintState {
	return &puzzledto.HintState{From: h.From.String(), To: h.To.String(), ExpiresAt: h.ExpiresAt}
}

func sideName(c board.Color) string {
	if c == board.Black {
		return "black"
	}
	return "white"
}
