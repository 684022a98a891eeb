package board

// ApplyMove executes a parsed SAN move for side and returns the new board.
// On failure the input board is returned unchanged with ok=false.
//
// When several pieces could make the move and the token carries no
// disambiguation, the first one in scan order (a8, b8, ... h1) is moved.
// Real SAN never produces that case; replays of sloppy transcripts may.
func ApplyMove(b Board, d MoveDescriptor, side Color) (Board, bool) {
	if d.Castle != NoCastle {
		return castle(b, d.Castle, side)
	}
	if !d.Dest.Valid() {
		return b, false
	}

	from := NoSquare
	for r := 0; r < 8 && from == NoSquare; r++ {
		for c := 0; c < 8; c++ {
			p := b[r][c]
			if p.IsEmpty() || p.Color != side || p.Kind != d.Kind {
				continue
			}
			if !matchesDisambiguation(d.Disambiguation, r, c) {
				continue
			}
			if canReach(b, NewSquare(r, c), d.Dest, d.Capture) {
				from = NewSquare(r, c)
				break
			}
		}
	}
	if from == NoSquare {
		return b, false
	}

	next := b
	mover := next.At(from)
	if d.Promotion != NoKind {
		mover.Kind = d.Promotion
	}
	next.Set(d.Dest, mover)
	next.Set(from, NoPiece)
	return next, true
}

type castleSquares struct {
	king, rook     Square
	kingTo, rookTo Square
}

func castleLayout(kind Castle, side Color) castleSquares {
	row := 7
	if side == Black {
		row = 0
	}
	if kind == CastleKingSide {
		return castleSquares{
			king: NewSquare(row, 4), rook: NewSquare(row, 7),
			kingTo: NewSquare(row, 6), rookTo: NewSquare(row, 5),
		}
	}
	return castleSquares{
		king: NewSquare(row, 4), rook: NewSquare(row, 0),
		kingTo: NewSquare(row, 2), rookTo: NewSquare(row, 3),
	}
}

// castle only checks that king and rook stand on their home squares.
func castle(b Board, kind Castle, side Color) (Board, bool) {
	l := castleLayout(kind, side)
	if b.At(l.king) != NewPiece(King, side) || b.At(l.rook) != NewPiece(Rook, side) {
		return b, false
	}
	next := b
	next.Set(l.king, NoPiece)
	next.Set(l.rook, NoPiece)
	next.Set(l.kingTo, NewPiece(King, side))
	next.Set(l.rookTo, NewPiece(Rook, side))
	return next, true
}

func matchesDisambiguation(dis string, row, col int) bool {
	for i := 0; i < len(dis); i++ {
		ch := dis[i]
		switch {
		case ch >= 'a' && ch <= 'h':
			if int(ch-'a') != col {
				return false
			}
		case ch >= '1' && ch <= '8':
			if 8-int(ch-'0') != row {
				return false
			}
		}
	}
	return true
}

// canReach tests the movement rule for the piece on from. The target's
// occupancy must agree with the capture flag before geometry is considered.
func canReach(b Board, from, to Square, capture bool) bool {
	piece := b.At(from)
	if piece.IsEmpty() || from == to {
		return false
	}
	target := b.At(to)
	if capture {
		if !piece.Opposes(target) {
			return false
		}
	} else if !target.IsEmpty() {
		return false
	}

	dr := to.Row() - from.Row()
	df := to.Col() - from.Col()
	adr, adf := abs(dr), abs(df)

	switch piece.Kind {
	case Pawn:
		fwd := pawnForward(piece.Color)
		if capture {
			return dr == fwd && adf == 1
		}
		if df != 0 {
			return false
		}
		if dr == fwd {
			return true
		}
		if dr == 2*fwd && from.Row() == pawnStartRow(piece.Color) {
			return b.At(NewSquare(from.Row()+fwd, from.Col())).IsEmpty()
		}
		return false
	case Knight:
		return (adr == 2 && adf == 1) || (adr == 1 && adf == 2)
	case Bishop:
		return adr == adf && rayClear(b, from, to)
	case Rook:
		return (dr == 0 || df == 0) && rayClear(b, from, to)
	case Queen:
		return (adr == adf || dr == 0 || df == 0) && rayClear(b, from, to)
	case King:
		return adr <= 1 && adf <= 1
	}
	return false
}

// rayClear reports whether every square strictly between from and to is
// empty. from and to must share a rank, file or diagonal.
func rayClear(b Board, from, to Square) bool {
	sr, sf := sign(to.Row()-from.Row()), sign(to.Col()-from.Col())
	r, f := from.Row()+sr, from.Col()+sf
	for r != to.Row() || f != to.Col() {
		if !b[r][f].IsEmpty() {
			return false
		}
		r += sr
		f += sf
	}
	return true
}

func pawnForward(c Color) int {
	if c == White {
		return -1
	}
	return 1
}

func pawnStartRow(c Color) int {
	if c == White {
		return 6
	}
	return 1
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
