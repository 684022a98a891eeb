package board

import (
	"reflect"
	"testing"
)

func TestTokens(t *testing.T) {
	got := Tokens("1.e4 e5 2.Nf3 Nc6!? 3.Bb5 $1 a6 1-0")
	want := []string{"e4", "e5", "Nf3", "Nc6", "Bb5", "a6"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokens = %v, want %v", got, want)
	}
}

func TestTokensSkipsCommentsAndVariations(t *testing.T) {
	transcript := "[Event \"Casual\"]\n[Site \"?\"]\n" +
		"1. e4 {best by test} e5 (1... c5 2. Nf3 (2. c3 d5)) 2. Nf3 ; knight out\n" +
		"2... Nc6 *"
	got := Tokens(transcript)
	want := []string{"e4", "e5", "Nf3", "Nc6"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokens = %v, want %v", got, want)
	}
}

func TestReconstruct(t *testing.T) {
	pos := Reconstruct("1. e4 e5 2. Nf3 Nc6 3. Bb5", 3)
	if pos.Halted || pos.Applied != 3 {
		t.Fatalf("unexpected replay state %+v", pos)
	}
	want := "rnbqkbnr/pppp1ppp/8/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R b - - 0 1"
	if got := pos.FEN(); got != want {
		t.Fatalf("FEN = %q, want %q", got, want)
	}
}

func TestReconstructZeroPlies(t *testing.T) {
	pos := Reconstruct("1. e4 e5", 0)
	if pos.Board != Standard() || pos.SideToMove != White || pos.Applied != 0 {
		t.Fatalf("zero plies should yield the start position, got %+v", pos)
	}
}

func TestReconstructCastling(t *testing.T) {
	pos := Reconstruct("1. e4 e5 2. Nf3 Nc6 3. Bc4 Bc5 4. O-O Nf6", 7)
	want := "r1bqk1nr/pppp1ppp/2n5/2b1p3/2B1P3/5N2/PPPP1PPP/RNBQ1RK1 b - - 0 1"
	if got := pos.FEN(); got != want {
		t.Fatalf("FEN = %q, want %q", got, want)
	}
}

func TestReconstructHaltsOnBadToken(t *testing.T) {
	pos := Reconstruct("1. e4 e5 2. Qxe5 Nc6", 4)
	if !pos.Halted || pos.HaltToken != "Qxe5" {
		t.Fatalf("expected halt at Qxe5, got %+v", pos)
	}
	if pos.Applied != 2 || pos.SideToMove != White {
		t.Fatalf("halted replay should keep 2 plies with white to move, got %+v", pos)
	}
	want := Standard().Play(Move{From: MustSquare("e2"), To: MustSquare("e4")}).
		Play(Move{From: MustSquare("e7"), To: MustSquare("e5")})
	if pos.Board != want {
		t.Fatalf("board after halt:\n%v", pos.Board)
	}
}

func TestReconstructShortTranscript(t *testing.T) {
	pos := Reconstruct("1. e4", 10)
	if pos.Halted || pos.Applied != 1 || pos.SideToMove != Black {
		t.Fatalf("unexpected replay state %+v", pos)
	}
}
