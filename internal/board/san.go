package board

import (
	"regexp"
	"strings"
)

// Castle names a castling move.
type Castle uint8

const (
	NoCastle Castle = iota
	CastleKingSide
	CastleQueenSide
)

func (c Castle) String() string {
	switch c {
	case CastleKingSide:
		return "O-O"
	case CastleQueenSide:
		return "O-O-O"
	default:
		return ""
	}
}

// MoveDescriptor is a parsed SAN token. Disambiguation holds the origin file
// and/or rank exactly as written ("", "b", "1", "b1").
type MoveDescriptor struct {
	Kind           Kind
	Disambiguation string
	Capture        bool
	Dest           Square
	Promotion      Kind
	Castle         Castle
}

// Valid reports whether the token parsed. An invalid descriptor is a pawn
// move with no destination and must be treated as a hard parse failure.
func (d MoveDescriptor) Valid() bool {
	return d.Castle != NoCastle || d.Dest.Valid()
}

// String re-renders the descriptor in SAN without check markers.
func (d MoveDescriptor) String() string {
	if d.Castle != NoCastle {
		return d.Castle.String()
	}
	if !d.Dest.Valid() {
		return ""
	}
	var sb strings.Builder
	if d.Kind != Pawn {
		sb.WriteByte(d.Kind.Letter())
	}
	sb.WriteString(d.Disambiguation)
	if d.Capture {
		sb.WriteByte('x')
	}
	sb.WriteString(d.Dest.String())
	if d.Promotion != NoKind {
		sb.WriteByte('=')
		sb.WriteByte(d.Promotion.Letter())
	}
	return sb.String()
}

var sanPattern = regexp.MustCompile(`^([KQRBN])?([a-h])?([1-8])?(x)?([a-h][1-8])(=([QRBN]))?[+#]?$`)

var invalidDescriptor = MoveDescriptor{Kind: Pawn, Dest: NoSquare}

// ParseSAN parses one SAN token. Zeros are read as the letter O so "0-0"
// castles. Tokens that do not match yield an invalid descriptor.
func ParseSAN(token string) MoveDescriptor {
	mv := strings.ReplaceAll(token, "0", "O")
	switch mv {
	case "O-O":
		return MoveDescriptor{Kind: King, Dest: NoSquare, Castle: CastleKingSide}
	case "O-O-O":
		return MoveDescriptor{Kind: King, Dest: NoSquare, Castle: CastleQueenSide}
	}

	m := sanPattern.FindStringSubmatch(mv)
	if m == nil {
		return invalidDescriptor
	}
	d := MoveDescriptor{Kind: Pawn, Disambiguation: m[2] + m[3], Capture: m[4] != ""}
	if m[1] != "" {
		d.Kind, _ = KindFromLetter(m[1][0])
	}
	d.Dest, _ = ParseSquare(m[5])
	if m[7] != "" {
		d.Promotion, _ = KindFromLetter(m[7][0])
	}
	return d
}
