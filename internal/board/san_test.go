package board

import "testing"

func TestParseSAN(t *testing.T) {
	cases := []struct {
		token string
		want  MoveDescriptor
	}{
		{"e4", MoveDescriptor{Kind: Pawn, Dest: MustSquare("e4")}},
		{"Nf3", MoveDescriptor{Kind: Knight, Dest: MustSquare("f3")}},
		{"exd5", MoveDescriptor{Kind: Pawn, Disambiguation: "e", Capture: true, Dest: MustSquare("d5")}},
		{"Nbd2", MoveDescriptor{Kind: Knight, Disambiguation: "b", Dest: MustSquare("d2")}},
		{"R1e2", MoveDescriptor{Kind: Rook, Disambiguation: "1", Dest: MustSquare("e2")}},
		{"Qh4xe1", MoveDescriptor{Kind: Queen, Disambiguation: "h4", Capture: true, Dest: MustSquare("e1")}},
		{"e8=Q+", MoveDescriptor{Kind: Pawn, Dest: MustSquare("e8"), Promotion: Queen}},
		{"bxa1=N", MoveDescriptor{Kind: Pawn, Disambiguation: "b", Capture: true, Dest: MustSquare("a1"), Promotion: Knight}},
		{"Bxf7#", MoveDescriptor{Kind: Bishop, Capture: true, Dest: MustSquare("f7")}},
		{"O-O", MoveDescriptor{Kind: King, Dest: NoSquare, Castle: CastleKingSide}},
		{"0-0-0", MoveDescriptor{Kind: King, Dest: NoSquare, Castle: CastleQueenSide}},
	}
	for _, tc := range cases {
		got := ParseSAN(tc.token)
		if got != tc.want {
			t.Fatalf("ParseSAN(%q) = %+v, want %+v", tc.token, got, tc.want)
		}
		if !got.Valid() {
			t.Fatalf("ParseSAN(%q) reported invalid", tc.token)
		}
	}
}

func TestParseSANInvalid(t *testing.T) {
	for _, tok := range []string{"", "Zf3", "e9", "e4!", "O-O-O-O", "Nf", "i5"} {
		d := ParseSAN(tok)
		if d.Valid() {
			t.Fatalf("ParseSAN(%q) should be invalid, got %+v", tok, d)
		}
		if d.Kind != Pawn || d.Dest != NoSquare {
			t.Fatalf("invalid descriptor shape for %q: %+v", tok, d)
		}
	}
}

func TestMoveDescriptorString(t *testing.T) {
	for _, tok := range []string{"e4", "Nbd2", "exd5", "e8=Q", "O-O", "Qh4xe1"} {
		if got := ParseSAN(tok).String(); got != tok {
			t.Fatalf("String() = %q, want %q", got, tok)
		}
	}
}
