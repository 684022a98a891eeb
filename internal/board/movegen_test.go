package board

import (
	"reflect"
	"testing"
)

func squares(names ...string) SquareSet {
	var ss SquareSet
	for _, n := range names {
		ss = ss.Add(MustSquare(n))
	}
	return ss
}

func TestLegalDestinationsEmptySquare(t *testing.T) {
	if got := LegalDestinations(Standard(), MustSquare("e4")); !got.Empty() {
		t.Fatalf("empty square produced %v", got)
	}
	if got := LegalDestinations(Standard(), NoSquare); !got.Empty() {
		t.Fatalf("invalid square produced %v", got)
	}
}

func TestLegalDestinationsKnightColorSymmetry(t *testing.T) {
	var white, black Board
	d4 := MustSquare("d4")
	white.Set(d4, NewPiece(Knight, White))
	black.Set(d4, NewPiece(Knight, Black))

	w := LegalDestinations(white, d4)
	b := LegalDestinations(black, d4)
	if w != b {
		t.Fatalf("knight sets differ: white %v black %v", w, b)
	}
	want := squares("c6", "e6", "b5", "f5", "b3", "f3", "c2", "e2")
	if w != want {
		t.Fatalf("knight on d4 = %v, want %v", w, want)
	}
}

func TestLegalDestinationsInitialPosition(t *testing.T) {
	b := Standard()
	cases := map[string]SquareSet{
		"e2": squares("e3", "e4"),
		"g1": squares("f3", "h3"),
		"b8": squares("a6", "c6"),
		"e7": squares("e6", "e5"),
		"a1": 0,
		"d1": 0,
		"e1": 0,
		"c1": 0,
	}
	for from, want := range cases {
		if got := LegalDestinations(b, MustSquare(from)); got != want {
			t.Fatalf("%s: got %v, want %v", from, got, want)
		}
	}
}

func TestLegalDestinationsCorner(t *testing.T) {
	var b Board
	b.Set(MustSquare("a1"), NewPiece(Knight, White))
	if got := LegalDestinations(b, MustSquare("a1")); got != squares("b3", "c2") {
		t.Fatalf("knight on a1 = %v", got)
	}
	b.Set(MustSquare("h8"), NewPiece(King, Black))
	if got := LegalDestinations(b, MustSquare("h8")); got != squares("g8", "g7", "h7") {
		t.Fatalf("king on h8 = %v", got)
	}
}

func TestLegalDestinationsRayStops(t *testing.T) {
	b := mustFEN(t, "4k3/8/3p4/8/3R4/8/3P4/4K3 w - - 0 1")
	got := LegalDestinations(b, MustSquare("d4"))
	want := squares("d5", "d6", "d3", "a4", "b4", "c4", "e4", "f4", "g4", "h4")
	if got != want {
		t.Fatalf("rook on d4 = %v, want %v", got, want)
	}
	if got.Has(MustSquare("d2")) || got.Has(MustSquare("d7")) {
		t.Fatalf("ray passed through a blocker: %v", got)
	}
}

func TestLegalDestinationsQueenAndBishop(t *testing.T) {
	b := mustFEN(t, "4k3/8/8/8/8/2p5/1B6/4K3 w - - 0 1")
	got := LegalDestinations(b, MustSquare("b2"))
	want := squares("a1", "c1", "a3", "c3")
	if got != want {
		t.Fatalf("bishop on b2 = %v, want %v", got, want)
	}

	var q Board
	q.Set(MustSquare("a1"), NewPiece(Queen, White))
	if n := LegalDestinations(q, MustSquare("a1")).Len(); n != 21 {
		t.Fatalf("queen on empty a1 reaches %d squares, want 21", n)
	}
}

func TestLegalDestinationsPawn(t *testing.T) {
	b := mustFEN(t, "4k3/8/8/3p1P2/4P3/8/8/4K3 w - - 0 1")
	if got := LegalDestinations(b, MustSquare("e4")); got != squares("e5", "d5") {
		t.Fatalf("pawn on e4 = %v", got)
	}

	blocked := mustFEN(t, "4k3/8/8/8/8/4n3/4P3/4K3 w - - 0 1")
	if got := LegalDestinations(blocked, MustSquare("e2")); !got.Empty() {
		t.Fatalf("blocked pawn should have no moves, got %v", got)
	}

	black := mustFEN(t, "4k3/3p4/4P3/8/8/8/8/4K3 b - - 0 1")
	if got := LegalDestinations(black, MustSquare("d7")); got != squares("d6", "d5", "e6") {
		t.Fatalf("black pawn on d7 = %v", got)
	}
}

func TestIsLegal(t *testing.T) {
	b := Standard()
	if !IsLegal(b, MustSquare("e2"), MustSquare("e4")) {
		t.Fatalf("e2e4 should be legal")
	}
	if IsLegal(b, MustSquare("d1"), MustSquare("d2")) {
		t.Fatalf("landing on own piece must be rejected")
	}
	if IsLegal(b, MustSquare("e4"), MustSquare("e5")) {
		t.Fatalf("moving from an empty square must be rejected")
	}
	if IsLegal(b, MustSquare("e2"), NoSquare) {
		t.Fatalf("invalid destination must be rejected")
	}
}

func TestSquareSetOrder(t *testing.T) {
	ss := squares("h1", "a8", "e4")
	got := ss.Strings()
	want := []string{"a8", "e4", "h1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Strings() = %v, want %v", got, want)
	}
}
