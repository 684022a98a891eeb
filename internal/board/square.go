package board

import (
	"math/bits"
	"strings"
)

// Square indexes the board rank-major: row 0 is rank 8, col 0 is file a.
type Square int8

// NoSquare is the invalid square.
const NoSquare Square = -1

// NewSquare builds a square from matrix coordinates. Out of range yields NoSquare.
func NewSquare(row, col int) Square {
	if row < 0 || row > 7 || col < 0 || col > 7 {
		return NoSquare
	}
	return Square(row*8 + col)
}

// ParseSquare parses algebraic coordinates such as "e4".
func ParseSquare(s string) (Square, bool) {
	if len(s) != 2 {
		return NoSquare, false
	}
	f, r := s[0], s[1]
	if f < 'a' || f > 'h' || r < '1' || r > '8' {
		return NoSquare, false
	}
	return NewSquare(8-int(r-'0'), int(f-'a')), true
}

// MustSquare is ParseSquare for literals; it panics on bad input.
func MustSquare(s string) Square {
	sq, ok := ParseSquare(s)
	if !ok {
		panic("board: invalid square " + s)
	}
	return sq
}

func (s Square) Valid() bool { return s >= 0 && s < 64 }

func (s Square) Row() int { return int(s) / 8 }
func (s Square) Col() int { return int(s) % 8 }

// File returns the file letter.
func (s Square) File() byte { return byte('a' + s.Col()) }

// Rank returns the rank number 1..8.
func (s Square) Rank() int { return 8 - s.Row() }

func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return string([]byte{s.File(), byte('0' + s.Rank())})
}

// SquareSet is a set of squares keyed by index.
type SquareSet uint64

func (ss SquareSet) Add(s Square) SquareSet {
	if !s.Valid() {
		return ss
	}
	return ss | 1<<uint(s)
}

func (ss SquareSet) Has(s Square) bool {
	return s.Valid() && ss&(1<<uint(s)) != 0
}

func (ss SquareSet) Len() int { return bits.OnesCount64(uint64(ss)) }

func (ss SquareSet) Empty() bool { return ss == 0 }

// Squares lists members in board scan order (a8 .. h1).
func (ss SquareSet) Squares() []Square {
	out := make([]Square, 0, ss.Len())
	for v := uint64(ss); v != 0; v &= v - 1 {
		out = append(out, Square(bits.TrailingZeros64(v)))
	}
	return out
}

// Strings lists members as algebraic coordinates.
func (ss SquareSet) Strings() []string {
	sqs := ss.Squares()
	out := make([]string, len(sqs))
	for i, s := range sqs {
		out[i] = s.String()
	}
	return out
}

func (ss SquareSet) String() string {
	return "{" + strings.Join(ss.Strings(), " ") + "}"
}
