package livegame

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/park285/livechess/internal/replay"
)

// SubmitMove sends a move for the local player. The position is left alone: only the
// cosmetic awaiting-opponent flag flips until the move comes back on the stream.
func (e *Engine) SubmitMove(from, to, promo string) error {
	e.mu.Lock()
	if err := e.intentAllowedLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.awaiting {
		e.mu.Unlock()
		return ErrAwaitingOpponent
	}
	if e.pos.SideToMove() != e.game.PointOfView {
		e.mu.Unlock()
		return ErrNotYourTurn
	}
	tok, err := e.pos.NormalizeMove(from, to, promo)
	if err != nil {
		e.mu.Unlock()
		return squareErr(err)
	}
	e.awaiting = true
	gameID := e.game.ID
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.hub.publishRedraw()
	e.hub.publishState(snap)
	e.sendMove(gameID, tok)
	return nil
}

// SetPremove queues a move to be sent the moment it becomes the viewer's turn. It
// replaces any earlier premove. On the viewer's own turn it is a plain SubmitMove.
func (e *Engine) SetPremove(from, to, promo string) error {
	e.mu.Lock()
	if err := e.intentAllowedLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.pos.SideToMove() == e.game.PointOfView && !e.awaiting {
		e.mu.Unlock()
		return e.SubmitMove(from, to, promo)
	}
	if _, err := e.pos.NormalizeMove(from, to, promo); err != nil {
		e.mu.Unlock()
		return squareErr(err)
	}
	e.premove = &MoveIntent{From: from, To: to, Promotion: promo}
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.opts.logger.Debug("live_premove_set", zap.String("from", from), zap.String("to", to))
	e.hub.publishRedraw()
	e.hub.publishState(snap)
	return nil
}

// CancelPremove drops a queued premove. It reports whether one was queued.
func (e *Engine) CancelPremove() bool {
	e.mu.Lock()
	if e.premove == nil || e.closed {
		e.mu.Unlock()
		return false
	}
	e.premove = nil
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.hub.publishRedraw()
	e.hub.publishState(snap)
	return true
}

func (e *Engine) Premove() (MoveIntent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.premove == nil {
		return MoveIntent{}, false
	}
	return *e.premove, true
}

// Resign sends exactly one resignation command. Nothing local changes; the final status
// arrives through the stream.
func (e *Engine) Resign() error {
	e.mu.Lock()
	if err := e.intentAllowedLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	gameID := e.game.ID
	e.mu.Unlock()

	cmd := e.opts.commander
	e.dispatch("resign", "", func(ctx context.Context) error {
		return cmd.Resign(ctx, gameID)
	})
	return nil
}

func (e *Engine) intentAllowedLocked() error {
	switch {
	case e.closed:
		return ErrClosed
	case e.opts.commander == nil:
		return ErrNoCommander
	case e.game.Spectator:
		return ErrSpectator
	case e.game.State.Status.Ended():
		return ErrGameOver
	}
	return nil
}

func (e *Engine) sendMove(gameID, tok string) {
	cmd := e.opts.commander
	if cmd == nil {
		return
	}
	e.dispatch("move", tok, func(ctx context.Context) error {
		return cmd.SubmitMove(ctx, gameID, tok)
	})
}

// dispatch runs a command off the caller's goroutine. Results that arrive after Close
// are discarded.
func (e *Engine) dispatch(kind, tok string, call func(ctx context.Context) error) {
	timeout := e.opts.commandTimeout
	logger := e.opts.logger.With(zap.String("command", kind), zap.String("move", tok))
	e.opts.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		start := time.Now()
		err := call(ctx)

		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			logger.Debug("live_command_result_discarded", zap.Error(err))
			return
		}
		if err == nil || kind != "move" || !e.awaiting {
			e.mu.Unlock()
			if err != nil {
				logger.Warn("live_command_failed", zap.Error(err))
				return
			}
			logger.Debug("live_command_sent", zap.Duration("took", time.Since(start)))
			return
		}
		// the move never reached the server; put the turn indicator back
		e.awaiting = false
		snap := e.snapshotLocked()
		e.mu.Unlock()

		logger.Warn("live_command_failed", zap.Error(err))
		e.hub.publishRedraw()
		e.hub.publishState(snap)
	})
}

func squareErr(err error) error {
	if errors.Is(err, replay.ErrBadSquare) {
		return fmt.Errorf("%w: %v", ErrInvalidSquare, err)
	}
	return err
}
