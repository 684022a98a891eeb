package board

import "strings"

// Board is an 8x8 grid of pieces, row 0 nearest black's back rank.
// It is a value type: assignment copies every square.
type Board [8][8]Piece

// Standard returns the initial chess position.
func Standard() Board {
	var b Board
	back := [8]Kind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}
	for col, k := range back {
		b[0][col] = Piece{Kind: k, Color: Black}
		b[1][col] = Piece{Kind: Pawn, Color: Black}
		b[6][col] = Piece{Kind: Pawn, Color: White}
		b[7][col] = Piece{Kind: k, Color: White}
	}
	return b
}

// At returns the piece on s, or NoPiece for an invalid square.
func (b Board) At(s Square) Piece {
	if !s.Valid() {
		return NoPiece
	}
	return b[s.Row()][s.Col()]
}

// Set places p on s. Invalid squares are ignored.
func (b *Board) Set(s Square, p Piece) {
	if !s.Valid() {
		return
	}
	b[s.Row()][s.Col()] = p
}

// Play returns a copy of b with the piece on m.From moved to m.To, replacing
// whatever stood there. A promotion kind, if set, replaces the moved piece's
// kind. No legality is checked.
func (b Board) Play(m Move) Board {
	p := b.At(m.From)
	if p.IsEmpty() || !m.To.Valid() {
		return b
	}
	if m.Promotion != NoKind {
		p.Kind = m.Promotion
	}
	b.Set(m.To, p)
	b.Set(m.From, NoPiece)
	return b
}

// Count returns the number of occupied squares.
func (b Board) Count() int {
	n := 0
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			if !b[r][c].IsEmpty() {
				n++
			}
		}
	}
	return n
}

// String draws the board with rank 8 on top, '.' for empty squares.
func (b Board) String() string {
	var sb strings.Builder
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			if c > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(b[r][c].String())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
