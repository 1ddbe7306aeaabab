// Package notation converts between compact coordinate move tokens ("e2e4", "e7e8q")
// and the forms shown to players.
package notation

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Token is a parsed coordinate move.
type Token struct {
	From      string
	To        string
	Promotion byte // 0, 'q', 'r', 'b' or 'n'
}

// DisplayForm restates a coordinate token for display and speech.
// "e2e4" becomes "e2-e4", "e7e8q" becomes "e7-e8=Q". Malformed input yields "".
func DisplayForm(token string) string {
	t, ok := ParseToken(token)
	if !ok {
		return ""
	}
	s := t.From + "-" + t.To
	if t.Promotion != 0 {
		s += "=" + strings.ToUpper(string(t.Promotion))
	}
	return s
}

// ParseToken parses a 4 or 5 character coordinate token. Surrounding whitespace is ignored
// and the promotion letter is case-insensitive.
func ParseToken(token string) (Token, bool) {
	s := strings.TrimSpace(token)
	if len(s) != 4 && len(s) != 5 {
		return Token{}, false
	}
	from, to := strings.ToLower(s[0:2]), strings.ToLower(s[2:4])
	if !ValidSquare(from) || !ValidSquare(to) || from == to {
		return Token{}, false
	}
	t := Token{From: from, To: to}
	if len(s) == 5 {
		p, ok := promotionLetter(s[4])
		if !ok {
			return Token{}, false
		}
		t.Promotion = p
	}
	return t, true
}

// String renders the token back to wire form.
func (t Token) String() string {
	if t.Promotion == 0 {
		return t.From + t.To
	}
	return t.From + t.To + string(t.Promotion)
}

// FormatToken builds a wire token from its parts. promo may be empty, a letter, or a piece
// name such as "queen".
func FormatToken(from, to, promo string) (string, bool) {
	raw := strings.TrimSpace(from) + strings.TrimSpace(to)
	if p := strings.ToLower(strings.TrimSpace(promo)); p != "" {
		switch p {
		case "queen":
			p = "q"
		case "rook":
			p = "r"
		case "bishop":
			p = "b"
		case "knight":
			p = "n"
		}
		if len(p) != 1 {
			return "", false
		}
		raw += p
	}
	t, ok := ParseToken(raw)
	if !ok {
		return "", false
	}
	return t.String(), true
}

// ValidSquare reports whether s names a board square like "e4".
func ValidSquare(s string) bool {
	if len(s) != 2 {
		return false
	}
	f, r := s[0]|0x20, s[1]
	return f >= 'a' && f <= 'h' && r >= '1' && r <= '8'
}

// Square converts "e4" into the rules library's square. ok is false for malformed input.
func Square(s string) (nchess.Square, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !ValidSquare(s) {
		return nchess.NoSquare, false
	}
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1')), true
}

func promotionLetter(b byte) (byte, bool) {
	switch b | 0x20 {
	case 'q', 'r', 'b', 'n':
		return b | 0x20, true
	default:
		return 0, false
	}
}

// SAN encodes a library move in standard algebraic notation for the position it was played in.
func SAN(pos *nchess.Position, mv *nchess.Move) string {
	if pos == nil || mv == nil {
		return ""
	}
	return nchess.AlgebraicNotation{}.Encode(pos, mv)
}
