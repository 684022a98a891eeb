package board

var (
	knightOffsets = [8][2]int{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
	kingOffsets   = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	bishopRays    = [][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	rookRays      = [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	queenRays     = [][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}, {-1, 0}, {1, 0}, {0, -1}, {0, 1}}
)

// LegalDestinations lists the squares the piece on from can move to under
// basic movement rules. Moves that leave the mover's king attacked are still
// reported; there is no castling and no en passant.
func LegalDestinations(b Board, from Square) SquareSet {
	piece := b.At(from)
	if piece.IsEmpty() {
		return 0
	}
	row, col := from.Row(), from.Col()

	var out SquareSet
	switch piece.Kind {
	case Pawn:
		fwd := pawnForward(piece.Color)
		one := NewSquare(row+fwd, col)
		if one.Valid() && b.At(one).IsEmpty() {
			out = out.Add(one)
			if row == pawnStartRow(piece.Color) {
				two := NewSquare(row+2*fwd, col)
				if b.At(two).IsEmpty() {
					out = out.Add(two)
				}
			}
		}
		for _, dc := range [2]int{-1, 1} {
			diag := NewSquare(row+fwd, col+dc)
			if diag.Valid() && piece.Opposes(b.At(diag)) {
				out = out.Add(diag)
			}
		}
	case Knight:
		out = steps(b, piece, row, col, knightOffsets)
	case King:
		out = steps(b, piece, row, col, kingOffsets)
	case Bishop:
		out = rays(b, piece, row, col, bishopRays)
	case Rook:
		out = rays(b, piece, row, col, rookRays)
	case Queen:
		out = rays(b, piece, row, col, queenRays)
	}
	return out
}

// IsLegal reports whether moving from→to is a reachable destination that does
// not land on a piece of the mover's color.
func IsLegal(b Board, from, to Square) bool {
	mover := b.At(from)
	if mover.IsEmpty() || !to.Valid() {
		return false
	}
	if target := b.At(to); !target.IsEmpty() && target.Color == mover.Color {
		return false
	}
	return LegalDestinations(b, from).Has(to)
}

func steps(b Board, piece Piece, row, col int, offsets [8][2]int) SquareSet {
	var out SquareSet
	for _, o := range offsets {
		sq := NewSquare(row+o[0], col+o[1])
		if !sq.Valid() {
			continue
		}
		if t := b.At(sq); t.IsEmpty() || t.Color != piece.Color {
			out = out.Add(sq)
		}
	}
	return out
}

func rays(b Board, piece Piece, row, col int, dirs [][2]int) SquareSet {
	var out SquareSet
	for _, d := range dirs {
		for r, c := row+d[0], col+d[1]; ; r, c = r+d[0], c+d[1] {
			sq := NewSquare(r, c)
			if !sq.Valid() {
				break
			}
			t := b.At(sq)
			if t.IsEmpty() {
				out = out.Add(sq)
				continue
			}
			if t.Color != piece.Color {
				out = out.Add(sq)
			}
			break
		}
	}
	return out
}
