package livegame

import "errors"

// Protocol errors: the stream broke its contract. The last good state stays in place.
var (
	ErrMovesRegressed   = errors.New("move list shorter than previous update")
	ErrHistoryRewritten = errors.New("move list does not extend previous history")
	ErrGameMismatch     = errors.New("full state for a different game")
)

// Intent errors.
var (
	ErrClosed           = errors.New("game closed")
	ErrNoCommander      = errors.New("no command endpoint configured")
	ErrSpectator        = errors.New("viewer is not a player in this game")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrAwaitingOpponent = errors.New("move already submitted")
	ErrGameOver         = errors.New("game is over")
	ErrInvalidSquare    = errors.New("invalid square")
)

// IsProtocolError reports whether err came from a contract violation in the stream.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrMovesRegressed) || errors.Is(err, ErrHistoryRewritten) || errors.Is(err, ErrGameMismatch)
}
