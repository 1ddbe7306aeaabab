package replay

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/livechess/internal/notation"
)

type Color int

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

func (c Color) Opponent() Color {
	if c == Black {
		return White
	}
	return Black
}

// Index is 0 for white and 1 for black, for [2]T per-side arrays.
func (c Color) Index() int {
	if c == Black {
		return 1
	}
	return 0
}

func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	default:
		return White, false
	}
}

func colorOf(c nchess.Color) Color {
	if c == nchess.Black {
		return Black
	}
	return White
}

var ErrBadSquare = errors.New("invalid square")

// Position is the read-only result of a replay.
type Position struct {
	game   *nchess.Game
	tokens []string
	san    []string
}

func (p *Position) FEN() string { return p.game.FEN() }

// Len is the number of moves replayed.
func (p *Position) Len() int { return len(p.tokens) }

func (p *Position) SideToMove() Color { return colorOf(p.game.Position().Turn()) }

// InCheck reports whether the side to move is in check, read from the board itself so
// a starting position already in check is reported too.
func (p *Position) InCheck() bool {
	pos := p.game.Position()
	b := pos.Board()
	f, r, ok := kingOf(b, pos.Turn())
	if !ok {
		return false
	}
	return attacked(b, f, r, pos.Turn().Other())
}

// LegalDestinations maps each origin square to its sorted legal destinations for the side to move.
func (p *Position) LegalDestinations() map[string][]string {
	out := make(map[string][]string)
	seen := make(map[string]struct{})
	for _, mv := range p.game.Position().ValidMoves() {
		from, to := mv.S1().String(), mv.S2().String()
		key := from + to
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out[from] = append(out[from], to)
	}
	for k := range out {
		sort.Strings(out[k])
	}
	return out
}

// IsLegal reports whether token is a legal move in this position.
func (p *Position) IsLegal(token string) bool {
	t, ok := notation.ParseToken(token)
	if !ok {
		return false
	}
	want := promoType(t.Promotion)
	for _, mv := range p.game.Position().ValidMoves() {
		if mv.S1().String() == t.From && mv.S2().String() == t.To && mv.Promo() == want {
			return true
		}
	}
	return false
}

// NormalizeMove builds a wire token from a user gesture, auto-promoting to a queen when a
// pawn reaches the last rank without an explicit choice.
func (p *Position) NormalizeMove(from, to, promo string) (string, error) {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	fromSq, ok := notation.Square(from)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrBadSquare, from)
	}
	if !notation.ValidSquare(to) {
		return "", fmt.Errorf("%w: %q", ErrBadSquare, to)
	}
	if strings.TrimSpace(promo) == "" {
		piece := p.game.Position().Board().Piece(fromSq)
		if piece.Type() == nchess.Pawn && (to[1] == '8' && piece.Color() == nchess.White || to[1] == '1' && piece.Color() == nchess.Black) {
			promo = "q"
		}
	}
	tok, ok := notation.FormatToken(from, to, promo)
	if !ok {
		return "", fmt.Errorf("%w: %s%s%s", ErrBadSquare, from, to, promo)
	}
	return tok, nil
}

// LastMove returns the origin and destination of the newest move.
func (p *Position) LastMove() (from, to string, ok bool) {
	if len(p.tokens) == 0 {
		return "", "", false
	}
	last := p.tokens[len(p.tokens)-1]
	return last[0:2], last[2:4], true
}

// LastToken is the newest move as it appeared on the wire (lower-cased).
func (p *Position) LastToken() string {
	if len(p.tokens) == 0 {
		return ""
	}
	return p.tokens[len(p.tokens)-1]
}

// MoverOfLast is the side that played the newest move.
func (p *Position) MoverOfLast() (Color, bool) {
	if len(p.tokens) == 0 {
		return White, false
	}
	return p.SideToMove().Opponent(), true
}

func (p *Position) SANHistory() []string {
	return append([]string(nil), p.san...)
}

// Outcome is the PGN result token ("*", "1-0", "0-1", "1/2-1/2") as judged by the rules alone.
func (p *Position) Outcome() string { return string(p.game.Outcome()) }

func (p *Position) Method() string {
	if p.game.Outcome() == nchess.NoOutcome {
		return ""
	}
	return fmt.Sprint(p.game.Method())
}

// Board exposes the current board for renderers. Callers must not mutate it.
func (p *Position) Board() *nchess.Board { return p.game.Position().Board() }

func promoType(b byte) nchess.PieceType {
	switch b {
	case 'q':
		return nchess.Queen
	case 'r':
		return nchess.Rook
	case 'b':
		return nchess.Bishop
	case 'n':
		return nchess.Knight
	default:
		return nchess.NoPieceType
	}
}
