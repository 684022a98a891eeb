package board

import (
	"errors"
	"testing"
)

func TestParseUCI(t *testing.T) {
	m, err := ParseUCI("e2e4")
	if err != nil {
		t.Fatalf("ParseUCI: %v", err)
	}
	if m.From != MustSquare("e2") || m.To != MustSquare("e4") || m.Promotion != NoKind {
		t.Fatalf("unexpected move %+v", m)
	}

	m, err = ParseUCI(" A7A8N ")
	if err != nil {
		t.Fatalf("ParseUCI: %v", err)
	}
	if m.Promotion != Knight || m.String() != "a7a8n" {
		t.Fatalf("unexpected promotion move %+v (%s)", m, m)
	}
}

func TestParseUCIErrors(t *testing.T) {
	for _, s := range []string{"", "e2", "e2e9", "i2e4", "e7e8k", "e7e8p", "e2e4qq"} {
		if _, err := ParseUCI(s); !errors.Is(err, ErrInvalidMove) {
			t.Fatalf("ParseUCI(%q) err = %v, want ErrInvalidMove", s, err)
		}
	}
}

func TestMoveNormalize(t *testing.T) {
	b := mustFEN(t, "4k3/P7/8/8/8/8/p7/4K3 w - - 0 1")

	white := Move{From: MustSquare("a7"), To: MustSquare("a8")}.Normalize(b)
	if white.Promotion != Queen {
		t.Fatalf("white pawn should default to queen, got %v", white.Promotion)
	}
	black := Move{From: MustSquare("a2"), To: MustSquare("a1")}.Normalize(b)
	if black.Promotion != Queen {
		t.Fatalf("black pawn should default to queen, got %v", black.Promotion)
	}
	rook := Move{From: MustSquare("a7"), To: MustSquare("a8"), Promotion: Rook}.Normalize(b)
	if rook.Promotion != Rook {
		t.Fatalf("explicit promotion must be kept, got %v", rook.Promotion)
	}
	king := Move{From: MustSquare("e1"), To: MustSquare("e2")}.Normalize(b)
	if king.Promotion != NoKind {
		t.Fatalf("non-pawn move should not promote")
	}
}

func TestMovePromotionFits(t *testing.T) {
	b := mustFEN(t, "4k3/P7/1p6/8/8/8/p7/4KR2 w - - 0 1")
	cases := []struct {
		move string
		want bool
	}{
		{"a7a8q", true},
		{"a7a8n", true},
		{"a2a1r", true},
		{"a7a8", false},
		{"b6b5q", false},
		{"f1f8n", false},
		{"e1d1q", false},
		{"f1f5", true},
	}
	for _, tc := range cases {
		m, err := ParseUCI(tc.move)
		if err != nil {
			t.Fatalf("ParseUCI(%q): %v", tc.move, err)
		}
		if got := m.PromotionFits(b); got != tc.want {
			t.Fatalf("%s PromotionFits = %v, want %v", tc.move, got, tc.want)
		}
	}
}
