package board

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMove is wrapped by ParseUCI failures.
var ErrInvalidMove = errors.New("invalid move")

// Move is an origin/destination pair with an optional promotion.
type Move struct {
	From      Square
	To        Square
	Promotion Kind
}

// ParseUCI parses "e2e4" or "e7e8q". Case is ignored.
func ParseUCI(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, s)
	}
	from, ok1 := ParseSquare(s[0:2])
	to, ok2 := ParseSquare(s[2:4])
	if !ok1 || !ok2 {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, s)
	}
	m := Move{From: from, To: to}
	if len(s) == 5 {
		k, ok := KindFromLetter(s[4])
		if !ok || k == Pawn || k == King {
			return Move{}, fmt.Errorf("%w: promotion %q", ErrInvalidMove, s[4])
		}
		m.Promotion = k
	}
	return m, nil
}

// String renders origin+destination, plus a lowercase promotion letter.
func (m Move) String() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != NoKind {
		s += string(m.Promotion.Letter() + ('a' - 'A'))
	}
	return s
}

// Normalize fills in a queen promotion for a pawn reaching the last rank
// on b when none was given.
func (m Move) Normalize(b Board) Move {
	if m.Promotion != NoKind {
		return m
	}
	p := b.At(m.From)
	if p.Kind != Pawn || !m.To.Valid() {
		return m
	}
	if (p.Color == White && m.To.Row() == 0) || (p.Color == Black && m.To.Row() == 7) {
		m.Promotion = Queen
	}
	return m
}

// PromotionFits reports whether m's promotion agrees with the board: set
// exactly when a pawn reaches its last rank.
func (m Move) PromotionFits(b Board) bool {
	p := b.At(m.From)
	lastRank := m.To.Valid() && p.Kind == Pawn &&
		((p.Color == White && m.To.Row() == 0) || (p.Color == Black && m.To.Row() == 7))
	return lastRank == (m.Promotion != NoKind)
}
