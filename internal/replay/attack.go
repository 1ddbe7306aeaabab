package replay

import nchess "github.com/corentings/chess/v2"

var (
	knightSteps = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingSteps   = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	straight    = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	diagonal    = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

func pieceAt(b *nchess.Board, f, r int) (nchess.Piece, bool) {
	if f < 0 || f > 7 || r < 0 || r > 7 {
		return nchess.NoPiece, false
	}
	return b.Piece(nchess.NewSquare(nchess.File(f), nchess.Rank(r))), true
}

func kingOf(b *nchess.Board, c nchess.Color) (f, r int, ok bool) {
	for sq, p := range b.SquareMap() {
		if p.Type() == nchess.King && p.Color() == c {
			return int(sq.File()), int(sq.Rank()), true
		}
	}
	return 0, 0, false
}

// attacked reports whether any piece of colour by attacks the square at file f, rank r.
func attacked(b *nchess.Board, f, r int, by nchess.Color) bool {
	is := func(p nchess.Piece, types ...nchess.PieceType) bool {
		if p == nchess.NoPiece || p.Color() != by {
			return false
		}
		for _, t := range types {
			if p.Type() == t {
				return true
			}
		}
		return false
	}
	for _, s := range knightSteps {
		if p, ok := pieceAt(b, f+s[0], r+s[1]); ok && is(p, nchess.Knight) {
			return true
		}
	}
	for _, s := range kingSteps {
		if p, ok := pieceAt(b, f+s[0], r+s[1]); ok && is(p, nchess.King) {
			return true
		}
	}
	// a white pawn attacks upward, so it sits one rank below the target
	dr := -1
	if by == nchess.Black {
		dr = 1
	}
	for _, df := range [2]int{-1, 1} {
		if p, ok := pieceAt(b, f+df, r+dr); ok && is(p, nchess.Pawn) {
			return true
		}
	}
	slide := func(dirs [4][2]int, types ...nchess.PieceType) bool {
		for _, d := range dirs {
			for i := 1; ; i++ {
				p, ok := pieceAt(b, f+d[0]*i, r+d[1]*i)
				if !ok {
					break
				}
				if p == nchess.NoPiece {
					continue
				}
				if is(p, types...) {
					return true
				}
				break
			}
		}
		return false
	}
	return slide(straight, nchess.Rook, nchess.Queen) || slide(diagonal, nchess.Bishop, nchess.Queen)
}
