// Package replay rebuilds a rules-validated position from an initial position and a move list.
package replay

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/livechess/internal/notation"
)

// StartPos is the sentinel for the standard initial position.
const StartPos = "startpos"

var ErrInvalidInitialPosition = errors.New("invalid initial position")

// IllegalMoveError reports the first token that could not be parsed or was not legal
// in the position reached so far.
type IllegalMoveError struct {
	Index int
	Token string
	Err   error
}

func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("illegal move #%d %q: %v", e.Index+1, e.Token, e.Err)
}

func (e *IllegalMoveError) Unwrap() error { return e.Err }

// Reconstruct replays moves from initial ("startpos", "" or a FEN). The result is a fresh
// Position; nothing is shared between calls.
func Reconstruct(initial string, moves []string) (*Position, error) {
	opts, err := initialOptions(initial)
	if err != nil {
		return nil, err
	}
	game := nchess.NewGame(opts...)
	p := &Position{
		game:   game,
		tokens: make([]string, 0, len(moves)),
		san:    make([]string, 0, len(moves)),
	}
	uci := nchess.UCINotation{}
	for i, raw := range moves {
		tok := strings.ToLower(strings.TrimSpace(raw))
		if _, ok := notation.ParseToken(tok); !ok {
			return nil, &IllegalMoveError{Index: i, Token: raw, Err: errors.New("malformed token")}
		}
		pos := game.Position()
		mv, err := uci.Decode(pos, tok)
		if err != nil {
			return nil, &IllegalMoveError{Index: i, Token: raw, Err: err}
		}
		san := notation.SAN(pos, mv)
		if err := game.Move(mv, nil); err != nil {
			return nil, &IllegalMoveError{Index: i, Token: raw, Err: err}
		}
		p.tokens = append(p.tokens, tok)
		p.san = append(p.san, san)
	}
	return p, nil
}

// SplitMoves splits the space separated move list used on the wire.
func SplitMoves(s string) []string {
	return strings.Fields(s)
}

// ParseFEN returns the position described by fen, or the standard start for the sentinel.
func ParseFEN(fen string) (*nchess.Position, error) {
	opts, err := initialOptions(fen)
	if err != nil {
		return nil, err
	}
	return nchess.NewGame(opts...).Position(), nil
}

func initialOptions(initial string) ([]func(*nchess.Game), error) {
	s := strings.TrimSpace(initial)
	if s == "" || strings.EqualFold(s, StartPos) {
		return nil, nil
	}
	opt, err := nchess.FEN(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInitialPosition, err)
	}
	return []func(*nchess.Game){opt}, nil
}
