package board

import (
	"regexp"
	"strings"
)

// Position is a reconstructed board plus how far the replay got.
type Position struct {
	Board      Board
	SideToMove Color
	// Applied counts the plies actually played.
	Applied int
	// Halted is set when a token failed to parse or apply before the
	// requested ply. HaltToken holds that token.
	Halted    bool
	HaltToken string
}

// FEN encodes the position with placeholder auxiliary fields.
func (p Position) FEN() string { return EncodeFEN(p.Board, p.SideToMove) }

var (
	moveNumberPattern = regexp.MustCompile(`^\d+\.*$`)
	moveNumberPrefix  = regexp.MustCompile(`^\d+\.+`)
)

func isResult(tok string) bool {
	switch tok {
	case "1-0", "0-1", "1/2-1/2", "*":
		return true
	}
	return false
}

// Tokens extracts the SAN move tokens of a movetext transcript. Tag pairs,
// comments, variations, move numbers, NAGs, results and annotation glyphs
// are dropped.
func Tokens(transcript string) []string {
	cleaned := stripNonMoves(transcript)
	var out []string
	for _, tok := range strings.Fields(cleaned) {
		if moveNumberPattern.MatchString(tok) || isResult(tok) {
			continue
		}
		tok = moveNumberPrefix.ReplaceAllString(tok, "")
		if tok == "" || strings.HasPrefix(tok, "$") {
			continue
		}
		tok = strings.TrimRight(tok, "!?")
		if tok == "" || isResult(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// stripNonMoves removes [tag] lines, {comments}, ;line comments and
// (variations), honouring nesting of variations.
func stripNonMoves(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	depth := 0
	inBrace := false
	inLine := false
	atLineStart := true
	inTag := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case inLine:
			if ch == '\n' {
				inLine = false
				sb.WriteByte(' ')
			}
		case inBrace:
			if ch == '}' {
				inBrace = false
				sb.WriteByte(' ')
			}
		case inTag:
			if ch == ']' {
				inTag = false
				sb.WriteByte(' ')
			}
		case ch == '{':
			inBrace = true
		case ch == ';':
			inLine = true
		case ch == '[' && atLineStart && depth == 0:
			inTag = true
		case ch == '(':
			depth++
		case ch == ')':
			if depth > 0 {
				depth--
			}
			if depth == 0 {
				sb.WriteByte(' ')
			}
		case depth > 0:
		default:
			sb.WriteByte(ch)
		}
		if ch == '\n' {
			atLineStart = true
		} else if ch != ' ' && ch != '\t' && ch != '\r' {
			atLineStart = false
		}
	}
	return sb.String()
}

// Reconstruct replays up to plies half-moves of transcript from the standard
// start, white first. Replay stops quietly at the first token that fails to
// parse or apply; the board reached so far is returned.
func Reconstruct(transcript string, plies int) Position {
	pos := Position{Board: Standard(), SideToMove: White}
	if plies <= 0 {
		return pos
	}
	for _, tok := range Tokens(transcript) {
		if pos.Applied >= plies {
			break
		}
		d := ParseSAN(tok)
		if !d.Valid() {
			pos.Halted, pos.HaltToken = true, tok
			break
		}
		next, ok := ApplyMove(pos.Board, d, pos.SideToMove)
		if !ok {
			pos.Halted, pos.HaltToken = true, tok
			break
		}
		pos.Board = next
		pos.Applied++
		pos.SideToMove = pos.SideToMove.Other()
	}
	return pos
}
