package command

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/park285/livechess/internal/livegame"
)

// FrameWriter writes one JSON frame on an open websocket.
type FrameWriter interface {
	WriteJSON(ctx context.Context, v any) error
}

// Frame is the websocket form of a command.
type Frame struct {
	Type   string `json:"type"`
	GameID string `json:"gameId"`
	Move   string `json:"move,omitempty"`
}

type mode string

const (
	modeHTTP mode = "http"
	modeWS   mode = "ws"
	modeAuto mode = "auto"
)

// NewCommander picks the command path. In auto mode the websocket is tried first and
// HTTP is used once if the write fails. With dryrun nothing leaves the process.
func NewCommander(m string, dryrun bool, c *Client, ws FrameWriter, logger *zap.Logger) livegame.Commander {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dryrun {
		return &dryRunCommander{logger: logger}
	}
	switch mode(m) {
	case modeWS:
		return &wsCommander{ws: ws}
	case modeAuto:
		return &autoCommander{ws: &wsCommander{ws: ws}, http: &httpCommander{c: c}, logger: logger}
	default:
		return &httpCommander{c: c}
	}
}

type httpCommander struct{ c *Client }

func (h *httpCommander) SubmitMove(ctx context.Context, gameID, uci string) error {
	if h == nil || h.c == nil {
		return errors.New("http commander not available")
	}
	return h.c.SubmitMove(ctx, gameID, uci)
}

func (h *httpCommander) Resign(ctx context.Context, gameID string) error {
	if h == nil || h.c == nil {
		return errors.New("http commander not available")
	}
	return h.c.Resign(ctx, gameID)
}

type wsCommander struct{ ws FrameWriter }

func (w *wsCommander) SubmitMove(ctx context.Context, gameID, uci string) error {
	if w == nil || w.ws == nil {
		return errors.New("ws commander not available")
	}
	return w.ws.WriteJSON(ctx, &Frame{Type: "move", GameID: gameID, Move: uci})
}

func (w *wsCommander) Resign(ctx context.Context, gameID string) error {
	if w == nil || w.ws == nil {
		return errors.New("ws commander not available")
	}
	return w.ws.WriteJSON(ctx, &Frame{Type: "resign", GameID: gameID})
}

type autoCommander struct {
	ws     *wsCommander
	http   *httpCommander
	logger *zap.Logger
}

func (a *autoCommander) SubmitMove(ctx context.Context, gameID, uci string) error {
	if a.ws != nil && a.ws.ws != nil {
		err := a.ws.SubmitMove(ctx, gameID, uci)
		if err == nil {
			return nil
		}
		a.logger.Warn("command_fallback", zap.String("type", "move"), zap.String("game_id", gameID), zap.Error(err))
	}
	return a.http.SubmitMove(ctx, gameID, uci)
}

func (a *autoCommander) Resign(ctx context.Context, gameID string) error {
	if a.ws != nil && a.ws.ws != nil {
		err := a.ws.Resign(ctx, gameID)
		if err == nil {
			return nil
		}
		a.logger.Warn("command_fallback", zap.String("type", "resign"), zap.String("game_id", gameID), zap.Error(err))
	}
	return a.http.Resign(ctx, gameID)
}

type dryRunCommander struct{ logger *zap.Logger }

func (d *dryRunCommander) SubmitMove(_ context.Context, gameID, uci string) error {
	d.logger.Info("command_dryrun", zap.String("type", "move"), zap.String("game_id", gameID), zap.String("move", uci))
	return nil
}

func (d *dryRunCommander) Resign(_ context.Context, gameID string) error {
	d.logger.Info("command_dryrun", zap.String("type", "resign"), zap.String("game_id", gameID))
	return nil
}
