package board

import "testing"

func mustFEN(t *testing.T, fen string) Board {
	t.Helper()
	b, _, err := DecodeFEN(fen)
	if err != nil {
		t.Fatalf("DecodeFEN(%q): %v", fen, err)
	}
	return b
}

func TestApplyMovePawnPush(t *testing.T) {
	start := Standard()
	next, ok := ApplyMove(start, ParseSAN("e4"), White)
	if !ok {
		t.Fatalf("e4 should apply on the initial board")
	}
	if !next.At(MustSquare("e2")).IsEmpty() {
		t.Fatalf("e2 should be empty after e4")
	}
	if got := next.At(MustSquare("e4")); got != NewPiece(Pawn, White) {
		t.Fatalf("e4 holds %v, want white pawn", got)
	}
	if start.At(MustSquare("e2")) != NewPiece(Pawn, White) {
		t.Fatalf("input board was mutated")
	}
	if next.Count() != 32 {
		t.Fatalf("piece count = %d, want 32", next.Count())
	}
}

func TestApplyMoveKnight(t *testing.T) {
	next, ok := ApplyMove(Standard(), ParseSAN("Nf3"), White)
	if !ok {
		t.Fatalf("Nf3 should apply")
	}
	if next.At(MustSquare("f3")) != NewPiece(Knight, White) || !next.At(MustSquare("g1")).IsEmpty() {
		t.Fatalf("knight did not move g1->f3:\n%s", next)
	}
}

func TestApplyMoveFirstCandidateWins(t *testing.T) {
	b := mustFEN(t, "4k3/8/8/8/8/8/8/R3K2R w - - 0 1")
	// The king on e1 blocks the h1 rook.
	next, ok := ApplyMove(b, ParseSAN("Rd1"), White)
	if !ok || !next.At(MustSquare("a1")).IsEmpty() {
		t.Fatalf("expected a1 rook to move")
	}

	b = mustFEN(t, "4k3/8/8/8/8/8/8/R6R w - - 0 1")
	next, ok = ApplyMove(b, ParseSAN("Rd1"), White)
	if !ok {
		t.Fatalf("Rd1 should apply")
	}
	if !next.At(MustSquare("a1")).IsEmpty() || next.At(MustSquare("h1")) != NewPiece(Rook, White) {
		t.Fatalf("scan order should pick a1 first:\n%s", next)
	}

	next, ok = ApplyMove(b, ParseSAN("Rhd1"), White)
	if !ok || !next.At(MustSquare("h1")).IsEmpty() || next.At(MustSquare("a1")) != NewPiece(Rook, White) {
		t.Fatalf("file disambiguation should move the h1 rook:\n%s", next)
	}
}

func TestApplyMoveRankDisambiguation(t *testing.T) {
	b := mustFEN(t, "4k3/8/8/N7/8/8/8/N3K3 w - - 0 1")
	next, ok := ApplyMove(b, ParseSAN("N1b3"), White)
	if !ok {
		t.Fatalf("N1b3 should apply")
	}
	if !next.At(MustSquare("a1")).IsEmpty() || next.At(MustSquare("a5")) != NewPiece(Knight, White) {
		t.Fatalf("rank disambiguation picked the wrong knight:\n%s", next)
	}
}

func TestApplyMoveCaptureFlagMustMatchOccupancy(t *testing.T) {
	start := Standard()
	if next, ok := ApplyMove(start, ParseSAN("Nxf3"), White); ok || next != start {
		t.Fatalf("capture onto an empty square must fail")
	}
	b := mustFEN(t, "4k3/8/8/3p4/4P3/8/8/4K3 w - - 0 1")
	if _, ok := ApplyMove(b, ParseSAN("d5"), White); ok {
		t.Fatalf("non-capture onto an occupied square must fail")
	}
	next, ok := ApplyMove(b, ParseSAN("exd5"), White)
	if !ok || next.At(MustSquare("d5")) != NewPiece(Pawn, White) || !next.At(MustSquare("e4")).IsEmpty() {
		t.Fatalf("exd5 should capture:\n%s", next)
	}
}

func TestApplyMoveBlockedPaths(t *testing.T) {
	start := Standard()
	if next, ok := ApplyMove(start, ParseSAN("Qh5"), White); ok || next != start {
		t.Fatalf("queen is blocked by e2 pawn; expected failure with unchanged board")
	}
	b := mustFEN(t, "4k3/8/8/8/8/4n3/4P3/4K3 w - - 0 1")
	if _, ok := ApplyMove(b, ParseSAN("e4"), White); ok {
		t.Fatalf("double step through an occupied square must fail")
	}
}

func TestApplyMoveCastling(t *testing.T) {
	b := mustFEN(t, "r3k2r/8/8/8/8/8/8/R3K2R w - - 0 1")
	next, ok := ApplyMove(b, ParseSAN("O-O"), White)
	if !ok {
		t.Fatalf("white O-O should apply")
	}
	if next.At(MustSquare("g1")) != NewPiece(King, White) || next.At(MustSquare("f1")) != NewPiece(Rook, White) {
		t.Fatalf("white O-O placed pieces wrong:\n%s", next)
	}
	if !next.At(MustSquare("e1")).IsEmpty() || !next.At(MustSquare("h1")).IsEmpty() {
		t.Fatalf("home squares should be empty after castling")
	}

	next, ok = ApplyMove(b, ParseSAN("O-O-O"), Black)
	if !ok || next.At(MustSquare("c8")) != NewPiece(King, Black) || next.At(MustSquare("d8")) != NewPiece(Rook, Black) {
		t.Fatalf("black O-O-O placed pieces wrong:\n%s", next)
	}

	noRook := mustFEN(t, "4k3/8/8/8/8/8/8/4K3 w - - 0 1")
	if got, ok := ApplyMove(noRook, ParseSAN("O-O"), White); ok || got != noRook {
		t.Fatalf("castling without a rook must fail and leave the board unchanged")
	}
}

func TestApplyMovePromotion(t *testing.T) {
	b := mustFEN(t, "8/4P3/8/8/8/8/3p4/K6k w - - 0 1")
	next, ok := ApplyMove(b, ParseSAN("e8=Q"), White)
	if !ok || next.At(MustSquare("e8")) != NewPiece(Queen, White) {
		t.Fatalf("white promotion failed:\n%s", next)
	}
	next, ok = ApplyMove(b, ParseSAN("d1=N"), Black)
	if !ok || next.At(MustSquare("d1")) != NewPiece(Knight, Black) {
		t.Fatalf("black promotion failed:\n%s", next)
	}
}

func TestApplyMoveInvalidDescriptor(t *testing.T) {
	start := Standard()
	if got, ok := ApplyMove(start, ParseSAN("garbage"), White); ok || got != start {
		t.Fatalf("invalid descriptor must fail without touching the board")
	}
}

func TestApplyMoveWrongSide(t *testing.T) {
	if _, ok := ApplyMove(Standard(), ParseSAN("e5"), White); ok {
		t.Fatalf("white has no pawn that reaches e5")
	}
	if _, ok := ApplyMove(Standard(), ParseSAN("e5"), Black); !ok {
		t.Fatalf("black e5 should apply")
	}
}
