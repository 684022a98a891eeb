package puzzle

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/park285/cheese-puzzle/internal/board"
)

func TestFromRaw(t *testing.T) {
	def, err := FromRaw(Raw{
		GameID:     "abcd1234",
		PGN:        "1. e4 e5 2. Nf3 Nc6",
		PuzzleID:   "p1",
		InitialPly: 3,
		Solution:   []string{"b8c6", "f1b5"},
		Rating:     1500,
		Themes:     []string{"opening"},
	})
	if err != nil {
		t.Fatalf("FromRaw: %v", err)
	}
	want := "rnbqkbnr/pppp1ppp/8/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R b - - 0 1"
	if got := def.FEN(); got != want {
		t.Fatalf("FEN = %q, want %q", got, want)
	}
	if def.Source != SourceFeed || def.GameURL != "https://lichess.org/abcd1234" {
		t.Fatalf("unexpected metadata %+v", def)
	}
	if !reflect.DeepEqual(def.SolutionStrings(), []string{"b8c6", "f1b5"}) {
		t.Fatalf("solution = %v", def.SolutionStrings())
	}
}

func TestFromRawErrors(t *testing.T) {
	cases := []Raw{
		{PuzzleID: "", PGN: "1. e4", Solution: []string{"e7e5"}},
		{PuzzleID: "p", PGN: "  ", Solution: []string{"e7e5"}},
		{PuzzleID: "p", PGN: "1. e4", InitialPly: -1},
		{PuzzleID: "p", PGN: "1. e4", InitialPly: 1, Solution: []string{"e7"}},
	}
	for i, raw := range cases {
		if _, err := FromRaw(raw); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestLoadFallsBack(t *testing.T) {
	failing := SourceFunc(func(context.Context, string) (Raw, error) {
		return Raw{}, errors.New("feed down")
	})
	if def := Load(context.Background(), failing, "", nil); def.Source != SourceFallback || !def.FreePlay() {
		t.Fatalf("feed failure should yield the default puzzle, got %+v", def)
	}

	malformed := SourceFunc(func(context.Context, string) (Raw, error) {
		return Raw{PuzzleID: "x", PGN: "1. e4", Solution: []string{"zz"}}, nil
	})
	if def := Load(context.Background(), malformed, "x", nil); def.ID != "default" {
		t.Fatalf("malformed puzzle should yield the default, got %q", def.ID)
	}

	if def := Load(context.Background(), nil, "", nil); def.FEN() != Default().FEN() {
		t.Fatalf("nil source should yield the default")
	}
}

func TestLoadKeepsPartialReplay(t *testing.T) {
	src := SourceFunc(func(_ context.Context, id string) (Raw, error) {
		return Raw{PuzzleID: id, PGN: "1. e4 e5 2. Qxe5 Nc6", InitialPly: 4, Solution: []string{"d1h5"}}, nil
	})
	def := Load(context.Background(), src, "halt", nil)
	if def.ID != "halt" {
		t.Fatalf("a halted replay should still load, got %q", def.ID)
	}
	if def.SideToMove != board.White {
		t.Fatalf("side = %v, want white for an even initial ply", def.SideToMove)
	}
}

func TestFromRawSideFollowsInitialPly(t *testing.T) {
	def, err := FromRaw(Raw{PuzzleID: "short", PGN: "1. e4 e5 2. Qh9 Nc6 3. Bc4", InitialPly: 5, Solution: []string{"b8c6"}})
	if err != nil {
		t.Fatalf("FromRaw: %v", err)
	}
	if def.SideToMove != board.Black {
		t.Fatalf("side = %v, want black for initial ply 5", def.SideToMove)
	}
	if got := def.FEN(); got != "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR b - - 0 1" {
		t.Fatalf("partial board FEN = %q", got)
	}

	s := NewSession(def, WithScheduler(&fakeScheduler{}))
	t.Cleanup(s.Close)
	if res, err := s.Submit(def.Solution[0]); err != nil || res.Outcome != OutcomeSolved {
		t.Fatalf("first solution move = %+v, %v, want solved", res, err)
	}
}

func TestDefault(t *testing.T) {
	d := Default()
	if got := d.FEN(); got != "q3k1nr/1pp1nQpp/3p4/1P2p3/4P3/B1PP1b2/B5PP/5K2 b - - 0 1" {
		t.Fatalf("default FEN = %q", got)
	}
	if !d.FreePlay() {
		t.Fatalf("default puzzle should have no solution")
	}
}

func TestBuiltin(t *testing.T) {
	defs, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("builtin pack has %d puzzles, want 2", len(defs))
	}
	d := defs[1]
	if d.ID != "00sJ9" || d.Rating != 2671 || len(d.Solution) != 8 || d.SideToMove != board.White {
		t.Fatalf("unexpected builtin %+v", d)
	}
	if d.Source != SourceBuiltin {
		t.Fatalf("source = %q", d.Source)
	}

	src := BuiltinSource{Day: func() int { return 3 }}
	daily, err := src.Definition("")
	if err != nil || daily.ID != "00sJ9" {
		t.Fatalf("daily pick = %q, %v", daily.ID, err)
	}
	if _, err := src.Definition("nope"); !errors.Is(err, ErrInvalidPuzzle) {
		t.Fatalf("unknown id err = %v", err)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	d := mustBuiltin(t, "00sHx")
	back, err := FromRecord(d.Record())
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	if back.Board != d.Board || back.SideToMove != d.SideToMove {
		t.Fatalf("position changed across Record")
	}
	if !reflect.DeepEqual(back.SolutionStrings(), d.SolutionStrings()) || back.Opening != d.Opening {
		t.Fatalf("metadata changed across Record: %+v", back)
	}
}
