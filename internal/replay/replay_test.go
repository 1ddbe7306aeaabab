package replay

import (
	"errors"
	"reflect"
	"testing"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestReconstructStartPosition(t *testing.T) {
	for _, initial := range []string{"", "startpos", "STARTPOS"} {
		p, err := Reconstruct(initial, nil)
		if err != nil {
			t.Fatalf("Reconstruct(%q): %v", initial, err)
		}
		if p.FEN() != startFEN {
			t.Fatalf("FEN=%q", p.FEN())
		}
		if p.SideToMove() != White || p.InCheck() || p.Len() != 0 {
			t.Fatalf("unexpected start state")
		}
		if _, _, ok := p.LastMove(); ok {
			t.Fatalf("no last move expected")
		}
	}
}

func TestReconstructAppliesMoves(t *testing.T) {
	p, err := Reconstruct(StartPos, SplitMoves("e2e4 e7e5 g1f3"))
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if p.SideToMove() != Black {
		t.Fatalf("side to move=%v", p.SideToMove())
	}
	from, to, ok := p.LastMove()
	if !ok || from != "g1" || to != "f3" {
		t.Fatalf("last move=%s%s %v", from, to, ok)
	}
	if mover, ok := p.MoverOfLast(); !ok || mover != White {
		t.Fatalf("mover=%v", mover)
	}
	if got := p.SANHistory(); !reflect.DeepEqual(got, []string{"e4", "e5", "Nf3"}) {
		t.Fatalf("SAN=%v", got)
	}
}

func TestReconstructIsDeterministic(t *testing.T) {
	moves := SplitMoves("d2d4 d7d5 c2c4 e7e6 b1c3 g8f6")
	a, err := Reconstruct(StartPos, moves)
	if err != nil {
		t.Fatalf("a: %v", err)
	}
	b, err := Reconstruct(StartPos, moves)
	if err != nil {
		t.Fatalf("b: %v", err)
	}
	if a.FEN() != b.FEN() || !reflect.DeepEqual(a.LegalDestinations(), b.LegalDestinations()) {
		t.Fatalf("replay not deterministic")
	}
}

func TestReconstructRejectsIllegalMove(t *testing.T) {
	_, err := Reconstruct(StartPos, SplitMoves("e2e4 e7e5 g1g3"))
	var ime *IllegalMoveError
	if !errors.As(err, &ime) {
		t.Fatalf("expected IllegalMoveError, got %v", err)
	}
	if ime.Index != 2 || ime.Token != "g1g3" {
		t.Fatalf("unexpected error fields: %+v", ime)
	}
}

func TestReconstructRejectsGarbageToken(t *testing.T) {
	_, err := Reconstruct(StartPos, []string{"e2e4", "hello"})
	var ime *IllegalMoveError
	if !errors.As(err, &ime) || ime.Index != 1 {
		t.Fatalf("expected IllegalMoveError at 1, got %v", err)
	}
}

func TestReconstructInvalidFEN(t *testing.T) {
	if _, err := Reconstruct("not a fen", nil); !errors.Is(err, ErrInvalidInitialPosition) {
		t.Fatalf("expected ErrInvalidInitialPosition, got %v", err)
	}
}

func TestReconstructFromFEN(t *testing.T) {
	// white to move, pawn on e7 ready to promote
	fen := "8/4P3/8/8/8/8/k7/4K3 w - - 0 1"
	p, err := Reconstruct(fen, []string{"e7e8q"})
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if p.SideToMove() != Black {
		t.Fatalf("expected black to move")
	}
	if got := p.SANHistory()[0]; got != "e8=Q" {
		t.Fatalf("SAN=%q", got)
	}
}

func TestInCheck(t *testing.T) {
	p, err := Reconstruct(StartPos, SplitMoves("e2e4 f7f6 d1h5"))
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if !p.InCheck() {
		t.Fatalf("expected check after Qh5+")
	}

	cases := []struct {
		fen   string
		check bool
	}{
		{"4k3/8/8/8/8/8/8/4RK2 b - - 0 1", true},
		{"4k3/8/8/8/4p3/8/8/4RK2 b - - 0 1", false},
		{"4k3/3P4/8/8/8/8/8/5K2 b - - 0 1", true},
		{"4k3/8/8/8/8/8/3n4/5K2 w - - 0 1", true},
		{"4k3/8/8/8/8/8/8/B4K2 b - - 0 1", false},
		{"7k/8/8/8/8/8/8/B4K2 b - - 0 1", true},
	}
	for _, tc := range cases {
		p, err := Reconstruct(tc.fen, nil)
		if err != nil {
			t.Fatalf("Reconstruct(%s): %v", tc.fen, err)
		}
		if got := p.InCheck(); got != tc.check {
			t.Fatalf("%s: check=%v, want %v", tc.fen, got, tc.check)
		}
	}
}

func TestCheckmateOutcome(t *testing.T) {
	p, err := Reconstruct(StartPos, SplitMoves("f2f3 e7e5 g2g4 d8h4"))
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if !p.InCheck() || p.Outcome() != "0-1" {
		t.Fatalf("check=%v outcome=%s", p.InCheck(), p.Outcome())
	}
	if len(p.LegalDestinations()) != 0 {
		t.Fatalf("mated side should have no moves")
	}
}

func TestLegalDestinations(t *testing.T) {
	p, err := Reconstruct(StartPos, nil)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	dests := p.LegalDestinations()
	if !reflect.DeepEqual(dests["g1"], []string{"f3", "h3"}) {
		t.Fatalf("g1 dests=%v", dests["g1"])
	}
	if !reflect.DeepEqual(dests["e2"], []string{"e3", "e4"}) {
		t.Fatalf("e2 dests=%v", dests["e2"])
	}
	if len(dests) != 10 {
		t.Fatalf("expected 10 movable pieces, got %d", len(dests))
	}
}

func TestIsLegal(t *testing.T) {
	p, _ := Reconstruct(StartPos, nil)
	if !p.IsLegal("e2e4") || p.IsLegal("e2e5") || p.IsLegal("junk") {
		t.Fatalf("IsLegal misjudged")
	}
}

func TestNormalizeMoveAutoQueen(t *testing.T) {
	p, err := Reconstruct("8/4P3/8/8/8/8/k7/4K3 w - - 0 1", nil)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	tok, err := p.NormalizeMove("e7", "e8", "")
	if err != nil || tok != "e7e8q" {
		t.Fatalf("tok=%q err=%v", tok, err)
	}
	tok, err = p.NormalizeMove("e7", "e8", "n")
	if err != nil || tok != "e7e8n" {
		t.Fatalf("explicit promo: tok=%q err=%v", tok, err)
	}
	tok, err = p.NormalizeMove("e1", "d1", "")
	if err != nil || tok != "e1d1" {
		t.Fatalf("king move: tok=%q err=%v", tok, err)
	}
	if _, err := p.NormalizeMove("e0", "e8", ""); !errors.Is(err, ErrBadSquare) {
		t.Fatalf("expected ErrBadSquare, got %v", err)
	}
}

func TestColor(t *testing.T) {
	if White.Opponent() != Black || Black.Index() != 1 || Black.String() != "black" {
		t.Fatalf("color helpers broken")
	}
	if c, ok := ParseColor("Black"); !ok || c != Black {
		t.Fatalf("ParseColor")
	}
}
