// Package crosscheck replays puzzles through a full-rules engine. It labels
// openings and validates scripted solutions that the lightweight board
// package accepts without checking king safety.
package crosscheck

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	chesslib "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"

	"github.com/park285/cheese-puzzle/internal/board"
)

var ErrIllegalSolution = errors.New("solution move illegal under full rules")

// Opening is an ECO classification.
type Opening struct {
	Code  string
	Title string
}

func (o Opening) String() string {
	if o.Code == "" {
		return o.Title
	}
	return o.Code + " " + o.Title
}

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

func eco() *opening.BookECO {
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	return ecoBook
}

// replay plays up to plies SAN tokens of transcript. It stops at the first
// token the engine refuses and reports how many plies were played.
func replay(transcript string, plies int) (*chesslib.Game, int) {
	game := chesslib.NewGame()
	played := 0
	for _, tok := range board.Tokens(transcript) {
		if played >= plies {
			break
		}
		if err := game.PushNotationMove(strings.ReplaceAll(tok, "0", "O"), chesslib.AlgebraicNotation{}, nil); err != nil {
			break
		}
		played++
	}
	return game, played
}

// ClassifyOpening names the opening reached after plies of transcript.
func ClassifyOpening(transcript string, plies int) (Opening, bool) {
	if plies <= 0 {
		return Opening{}, false
	}
	game, played := replay(transcript, plies)
	if played == 0 {
		return Opening{}, false
	}
	o := eco().Find(game.Moves())
	if o == nil {
		return Opening{}, false
	}
	return Opening{Code: o.Code(), Title: o.Title()}, true
}

// Placement returns the piece placement the engine reaches after plies of
// transcript, and how many plies it could play.
func Placement(transcript string, plies int) (string, int) {
	game, played := replay(transcript, plies)
	fen := game.FEN()
	if i := strings.IndexByte(fen, ' '); i >= 0 {
		fen = fen[:i]
	}
	return fen, played
}

// VerifySolution plays the UCI solution from fen and fails on the first move
// the engine rejects.
func VerifySolution(fen string, solution []string) error {
	opt, err := chesslib.FEN(fen)
	if err != nil {
		return fmt.Errorf("crosscheck fen: %w", err)
	}
	game := chesslib.NewGame(opt)
	for i, mv := range solution {
		if err := game.PushNotationMove(strings.ToLower(mv), chesslib.UCINotation{}, nil); err != nil {
			return fmt.Errorf("%w: step %d %s: %v", ErrIllegalSolution, i, mv, err)
		}
	}
	return nil
}

// ReplayMismatch compares the lightweight replay against the engine. It
// returns "" when both agree on placement and ply count.
func ReplayMismatch(transcript string, plies int) string {
	ours := board.Reconstruct(transcript, plies)
	theirs, played := Placement(transcript, plies)
	if ours.Applied != played {
		return fmt.Sprintf("applied %d plies, engine %d", ours.Applied, played)
	}
	if got := board.Placement(ours.Board); got != theirs {
		return fmt.Sprintf("placement %s, engine %s", got, theirs)
	}
	return ""
}
