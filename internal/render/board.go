// Package render draws snapshots: a plain-text board for terminals and a PNG image.
// Both are pull-based; callers render whatever Snapshot they currently hold.
package render

import (
	nchess "github.com/corentings/chess/v2"

	"github.com/park285/livechess/internal/livegame"
	"github.com/park285/livechess/internal/notation"
	"github.com/park285/livechess/internal/overlay"
	"github.com/park285/livechess/internal/replay"
)

var (
	ranksWhite = []nchess.Rank{nchess.Rank8, nchess.Rank7, nchess.Rank6, nchess.Rank5, nchess.Rank4, nchess.Rank3, nchess.Rank2, nchess.Rank1}
	filesWhite = []nchess.File{nchess.FileA, nchess.FileB, nchess.FileC, nchess.FileD, nchess.FileE, nchess.FileF, nchess.FileG, nchess.FileH}
	ranksBlack = []nchess.Rank{nchess.Rank1, nchess.Rank2, nchess.Rank3, nchess.Rank4, nchess.Rank5, nchess.Rank6, nchess.Rank7, nchess.Rank8}
	filesBlack = []nchess.File{nchess.FileH, nchess.FileG, nchess.FileF, nchess.FileE, nchess.FileD, nchess.FileC, nchess.FileB, nchess.FileA}
)

// layout returns ranks top to bottom and files left to right as seen from pov.
func layout(pov livegame.Color) ([]nchess.Rank, []nchess.File) {
	if pov == livegame.Black {
		return ranksBlack, filesBlack
	}
	return ranksWhite, filesWhite
}

// cell returns the on-screen row and column of sq.
func cell(sq nchess.Square, pov livegame.Color) (row, col int) {
	row, col = 7-int(sq.Rank()), int(sq.File())
	if pov == livegame.Black {
		row, col = 7-row, 7-col
	}
	return row, col
}

func pieceLetter(p nchess.Piece) byte {
	var b byte
	switch p.Type() {
	case nchess.King:
		b = 'k'
	case nchess.Queen:
		b = 'q'
	case nchess.Rook:
		b = 'r'
	case nchess.Bishop:
		b = 'b'
	case nchess.Knight:
		b = 'n'
	case nchess.Pawn:
		b = 'p'
	default:
		return 0
	}
	if p.Color() == nchess.White {
		b -= 'a' - 'A'
	}
	return b
}

func boardOf(snap livegame.Snapshot) (*nchess.Board, error) {
	pos, err := replay.ParseFEN(snap.FEN)
	if err != nil {
		return nil, err
	}
	return pos.Board(), nil
}

// highlighted prefers the overlay's highlight and falls back to the snapshot's last move.
func highlighted(snap livegame.Snapshot, ov overlay.State) map[nchess.Square]bool {
	lm := snap.LastMove
	if ov.Highlight != nil {
		lm = ov.Highlight
	}
	out := map[nchess.Square]bool{}
	if lm == nil {
		return out
	}
	for _, s := range []string{lm.From, lm.To} {
		if sq, ok := notation.Square(s); ok {
			out[sq] = true
		}
	}
	return out
}

// checkedKing is the square of the side-to-move king when it is in check.
func checkedKing(snap livegame.Snapshot, b *nchess.Board) (nchess.Square, bool) {
	if !snap.Check {
		return nchess.NoSquare, false
	}
	want := nchess.White
	if snap.SideToMove == livegame.Black {
		want = nchess.Black
	}
	for _, r := range ranksWhite {
		for _, f := range filesWhite {
			sq := nchess.NewSquare(f, r)
			p := b.Piece(sq)
			if p.Type() == nchess.King && p.Color() == want {
				return sq, true
			}
		}
	}
	return nchess.NoSquare, false
}
