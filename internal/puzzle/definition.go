package puzzle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-puzzle/internal/board"
)

// DefaultFEN is the position served when no puzzle can be loaded.
const DefaultFEN = "q3k1nr/1pp1nQpp/3p4/1P2p3/4P3/B1PP1b2/B5PP/5K2 b k - 0 17"

// Sources recorded on a Definition.
const (
	SourceFeed     = "feed"
	SourceBuiltin  = "builtin"
	SourceFallback = "fallback"
)

var ErrInvalidPuzzle = errors.New("invalid puzzle")

// Definition is a loaded puzzle. It is read-only once built; sessions copy
// the board out of it.
type Definition struct {
	ID         string
	Board      board.Board
	SideToMove board.Color
	Solution   []board.Move
	Rating     int
	Plays      int
	Themes     []string
	Opening    string
	GameURL    string
	Source     string

	// Transcript and InitialPly are kept for feed puzzles so the opening can
	// be classified later.
	Transcript string
	InitialPly int
}

// FEN encodes the starting position.
func (d Definition) FEN() string { return board.EncodeFEN(d.Board, d.SideToMove) }

// FreePlay reports whether the puzzle has no scripted solution.
func (d Definition) FreePlay() bool { return len(d.Solution) == 0 }

// SolutionStrings renders the solution in UCI form.
func (d Definition) SolutionStrings() []string {
	out := make([]string, len(d.Solution))
	for i, m := range d.Solution {
		out[i] = m.String()
	}
	return out
}

// Raw is the puzzle as the feed delivers it: a game transcript, the ply the
// puzzle starts at and the scripted continuation.
type Raw struct {
	GameID     string
	PGN        string
	PuzzleID   string
	InitialPly int
	Solution   []string
	Rating     int
	Plays      int
	Themes     []string
}

// Record is the flat form of a Definition used by the built-in pack and by
// session storage.
type Record struct {
	ID      string   `json:"id" yaml:"id"`
	FEN     string   `json:"fen" yaml:"fen"`
	Moves   []string `json:"moves" yaml:"moves"`
	Rating  int      `json:"rating,omitempty" yaml:"rating"`
	Plays   int      `json:"plays,omitempty" yaml:"plays"`
	Themes  []string `json:"themes,omitempty" yaml:"themes"`
	Opening string   `json:"opening,omitempty" yaml:"opening"`
	GameURL string   `json:"game_url,omitempty" yaml:"game_url"`
	Source  string   `json:"source,omitempty" yaml:"-"`

	Transcript string `json:"transcript,omitempty" yaml:"-"`
	InitialPly int    `json:"initial_ply,omitempty" yaml:"-"`
}

// Record flattens d.
func (d Definition) Record() Record {
	return Record{
		ID:         d.ID,
		FEN:        d.FEN(),
		Moves:      d.SolutionStrings(),
		Rating:     d.Rating,
		Plays:      d.Plays,
		Themes:     append([]string(nil), d.Themes...),
		Opening:    d.Opening,
		GameURL:    d.GameURL,
		Source:     d.Source,
		Transcript: d.Transcript,
		InitialPly: d.InitialPly,
	}
}

// FromRecord rebuilds a Definition from its flat form.
func FromRecord(r Record) (Definition, error) {
	b, side, err := board.DecodeFEN(r.FEN)
	if err != nil {
		return Definition{}, fmt.Errorf("puzzle %s: %w", r.ID, err)
	}
	sol, err := parseSolution(r.Moves)
	if err != nil {
		return Definition{}, fmt.Errorf("puzzle %s: %w", r.ID, err)
	}
	return Definition{
		ID:         strings.TrimSpace(r.ID),
		Board:      b,
		SideToMove: side,
		Solution:   sol,
		Rating:     r.Rating,
		Plays:      r.Plays,
		Themes:     append([]string(nil), r.Themes...),
		Opening:    r.Opening,
		GameURL:    r.GameURL,
		Source:     r.Source,
		Transcript: r.Transcript,
		InitialPly: r.InitialPly,
	}, nil
}

// FromRaw reconstructs the starting position by replaying InitialPly plies of
// the transcript. A replay that stops early keeps the partial board; the side
// to move is always taken from InitialPly.
func FromRaw(raw Raw) (Definition, error) {
	def, _, err := fromRaw(raw)
	return def, err
}

func fromRaw(raw Raw) (Definition, board.Position, error) {
	if strings.TrimSpace(raw.PuzzleID) == "" {
		return Definition{}, board.Position{}, fmt.Errorf("%w: missing id", ErrInvalidPuzzle)
	}
	if len(board.Tokens(raw.PGN)) == 0 {
		return Definition{}, board.Position{}, fmt.Errorf("%w: %s has no moves", ErrInvalidPuzzle, raw.PuzzleID)
	}
	if raw.InitialPly < 0 {
		return Definition{}, board.Position{}, fmt.Errorf("%w: %s initial ply %d", ErrInvalidPuzzle, raw.PuzzleID, raw.InitialPly)
	}
	sol, err := parseSolution(raw.Solution)
	if err != nil {
		return Definition{}, board.Position{}, fmt.Errorf("puzzle %s: %w", raw.PuzzleID, err)
	}

	pos := board.Reconstruct(raw.PGN, raw.InitialPly)
	// The puzzle side follows initialPly even when the replay stopped short.
	side := board.White
	if raw.InitialPly%2 == 1 {
		side = board.Black
	}
	def := Definition{
		ID:         strings.TrimSpace(raw.PuzzleID),
		Board:      pos.Board,
		SideToMove: side,
		Solution:   sol,
		Rating:     raw.Rating,
		Plays:      raw.Plays,
		Themes:     append([]string(nil), raw.Themes...),
		Source:     SourceFeed,
		Transcript: raw.PGN,
		InitialPly: raw.InitialPly,
	}
	if raw.GameID != "" {
		def.GameURL = "https://lichess.org/" + raw.GameID
	}
	return def, pos, nil
}

func parseSolution(moves []string) ([]board.Move, error) {
	out := make([]board.Move, 0, len(moves))
	for _, s := range moves {
		m, err := board.ParseUCI(s)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Default returns the fallback puzzle: a fixed position with no solution,
// which sessions treat as free play.
func Default() Definition {
	b, side, err := board.DecodeFEN(DefaultFEN)
	if err != nil {
		panic("puzzle: default fen: " + err.Error())
	}
	return Definition{ID: "default", Board: b, SideToMove: side, Source: SourceFallback}
}

// Source fetches a raw puzzle. An empty id asks for the daily puzzle.
type Source interface {
	Fetch(ctx context.Context, id string) (Raw, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, id string) (Raw, error)

func (f SourceFunc) Fetch(ctx context.Context, id string) (Raw, error) { return f(ctx, id) }

// Load fetches and builds a puzzle. Any feed or format failure is logged and
// replaced with Default; Load never fails.
func Load(ctx context.Context, src Source, id string, logger *zap.Logger) Definition {
	if logger == nil {
		logger = zap.NewNop()
	}
	if src == nil {
		logger.Warn("puzzle_load_fallback", zap.String("reason", "no source"))
		return Default()
	}
	raw, err := src.Fetch(ctx, id)
	if err != nil {
		logger.Warn("puzzle_load_fallback", zap.String("puzzle_id", id), zap.Error(err))
		return Default()
	}
	def, pos, err := fromRaw(raw)
	if err != nil {
		logger.Warn("puzzle_load_fallback", zap.String("puzzle_id", raw.PuzzleID), zap.Error(err))
		return Default()
	}
	if pos.Halted {
		logger.Warn("puzzle_replay_halted",
			zap.String("puzzle_id", def.ID),
			zap.Int("applied", pos.Applied),
			zap.Int("initial_ply", raw.InitialPly),
			zap.String("token", pos.HaltToken),
		)
	}
	logger.Info("puzzle_loaded",
		zap.String("puzzle_id", def.ID),
		zap.Int("rating", def.Rating),
		zap.Int("solution_len", len(def.Solution)),
		zap.String("fen", def.FEN()),
	)
	return def
}
