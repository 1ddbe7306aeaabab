package notation

import (
	"testing"

	nchess "github.com/corentings/chess/v2"
)

func TestDisplayForm(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"e2e4", "e2-e4"},
		{"e7e8q", "e7-e8=Q"},
		{"a2a1N", "a2-a1=N"},
		{" g1f3 ", "g1-f3"},
		{"E2E4", "e2-e4"},
		{"", ""},
		{"e2", ""},
		{"e2e4e5", ""},
		{"i2e4", ""},
		{"e9e4", ""},
		{"e7e8k", ""},
		{"e7e8x", ""},
		{"e2e2", ""},
	}
	for _, c := range cases {
		if got := DisplayForm(c.in); got != c.want {
			t.Fatalf("DisplayForm(%q)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestFormatToken(t *testing.T) {
	if got, ok := FormatToken("e7", "e8", "queen"); !ok || got != "e7e8q" {
		t.Fatalf("queen promo: %q %v", got, ok)
	}
	if got, ok := FormatToken("g1", "f3", ""); !ok || got != "g1f3" {
		t.Fatalf("plain: %q %v", got, ok)
	}
	if got, ok := FormatToken("b7", "b8", "N"); !ok || got != "b7b8n" {
		t.Fatalf("letter promo: %q %v", got, ok)
	}
	if _, ok := FormatToken("z1", "e2", ""); ok {
		t.Fatalf("bad square accepted")
	}
	if _, ok := FormatToken("e7", "e8", "king"); ok {
		t.Fatalf("bad promo accepted")
	}
}

func TestSquare(t *testing.T) {
	sq, ok := Square("e4")
	if !ok || sq != nchess.NewSquare(nchess.FileE, nchess.Rank4) {
		t.Fatalf("Square(e4)=%v %v", sq, ok)
	}
	if sq.String() != "e4" {
		t.Fatalf("round trip: %s", sq.String())
	}
	if _, ok := Square("h9"); ok {
		t.Fatalf("h9 accepted")
	}
}

func TestSAN(t *testing.T) {
	g := nchess.NewGame()
	pos := g.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, "g1f3")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := SAN(pos, mv); got != "Nf3" {
		t.Fatalf("SAN=%q", got)
	}
	if SAN(nil, mv) != "" {
		t.Fatalf("nil position should give empty SAN")
	}
}
