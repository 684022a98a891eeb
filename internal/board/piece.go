package board

// Color identifies the side owning a piece.
type Color uint8

const (
	White Color = iota
	Black
)

// Other returns the opposing side.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// String renders the FEN side-to-move letter.
func (c Color) String() string {
	if c == Black {
		return "b"
	}
	return "w"
}

// ParseColor accepts "w"/"b" as well as "white"/"black".
func ParseColor(s string) (Color, bool) {
	switch s {
	case "w", "white", "W":
		return White, true
	case "b", "black", "B":
		return Black, true
	default:
		return White, false
	}
}

// Kind is the piece type without color.
type Kind uint8

const (
	NoKind Kind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

const kindLetters = " PNBRQK"

// Letter returns the uppercase SAN letter for k. Pawns return 'P'.
func (k Kind) Letter() byte {
	if k == NoKind || int(k) >= len(kindLetters) {
		return 0
	}
	return kindLetters[k]
}

func (k Kind) String() string {
	switch k {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return "none"
	}
}

// KindFromLetter maps an uppercase or lowercase piece letter to its kind.
func KindFromLetter(c byte) (Kind, bool) {
	switch c {
	case 'P', 'p':
		return Pawn, true
	case 'N', 'n':
		return Knight, true
	case 'B', 'b':
		return Bishop, true
	case 'R', 'r':
		return Rook, true
	case 'Q', 'q':
		return Queen, true
	case 'K', 'k':
		return King, true
	default:
		return NoKind, false
	}
}

// Piece is a colored piece. The zero value is an empty square.
type Piece struct {
	Kind  Kind
	Color Color
}

// NoPiece marks an empty square.
var NoPiece = Piece{}

func NewPiece(k Kind, c Color) Piece { return Piece{Kind: k, Color: c} }

func (p Piece) IsEmpty() bool { return p.Kind == NoKind }

// Char returns the FEN letter, uppercase for white. Empty squares return 0.
func (p Piece) Char() byte {
	l := p.Kind.Letter()
	if l == 0 {
		return 0
	}
	if p.Color == Black {
		return l + ('a' - 'A')
	}
	return l
}

func (p Piece) String() string {
	if c := p.Char(); c != 0 {
		return string(c)
	}
	return "."
}

// PieceFromChar parses a FEN piece letter; case selects the color.
func PieceFromChar(c byte) (Piece, bool) {
	k, ok := KindFromLetter(c)
	if !ok {
		return NoPiece, false
	}
	if c >= 'a' && c <= 'z' {
		return Piece{Kind: k, Color: Black}, true
	}
	return Piece{Kind: k, Color: White}, true
}

// Opposes reports whether p and q are both pieces of different colors.
func (p Piece) Opposes(q Piece) bool {
	return !p.IsEmpty() && !q.IsEmpty() && p.Color != q.Color
}
