package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidFEN is wrapped by every DecodeFEN failure.
var ErrInvalidFEN = errors.New("invalid fen")

// fenTail stands in for castling rights, en passant and the move counters,
// none of which are tracked.
const fenTail = "- - 0 1"

// EncodeFEN renders placement and side to move. The remaining fields are
// fixed placeholders.
func EncodeFEN(b Board, side Color) string {
	return Placement(b) + " " + side.String() + " " + fenTail
}

// Placement renders only the piece placement field.
func Placement(b Board) string {
	var sb strings.Builder
	for r := 0; r < 8; r++ {
		if r > 0 {
			sb.WriteByte('/')
		}
		empty := 0
		for c := 0; c < 8; c++ {
			p := b[r][c]
			if p.IsEmpty() {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteByte(p.Char())
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
	}
	return sb.String()
}

// DecodeFEN parses the placement and side-to-move fields. A missing side
// defaults to white; later fields are ignored.
func DecodeFEN(fen string) (Board, Color, error) {
	var b Board
	fields := strings.Fields(fen)
	if len(fields) == 0 {
		return b, White, fmt.Errorf("%w: empty", ErrInvalidFEN)
	}

	rows := strings.Split(fields[0], "/")
	if len(rows) != 8 {
		return b, White, fmt.Errorf("%w: want 8 ranks, got %d", ErrInvalidFEN, len(rows))
	}
	for r, row := range rows {
		col := 0
		for i := 0; i < len(row); i++ {
			ch := row[i]
			if ch >= '1' && ch <= '8' {
				col += int(ch - '0')
				if col > 8 {
					return b, White, fmt.Errorf("%w: rank %d overflows", ErrInvalidFEN, 8-r)
				}
				continue
			}
			p, ok := PieceFromChar(ch)
			if !ok {
				return b, White, fmt.Errorf("%w: unexpected %q in rank %d", ErrInvalidFEN, ch, 8-r)
			}
			if col >= 8 {
				return b, White, fmt.Errorf("%w: rank %d overflows", ErrInvalidFEN, 8-r)
			}
			b[r][col] = p
			col++
		}
		if col != 8 {
			return b, White, fmt.Errorf("%w: rank %d has %d files", ErrInvalidFEN, 8-r, col)
		}
	}

	side := White
	if len(fields) > 1 {
		c, ok := ParseColor(fields[1])
		if !ok {
			return b, White, fmt.Errorf("%w: side %q", ErrInvalidFEN, fields[1])
		}
		side = c
	}
	return b, side, nil
}
