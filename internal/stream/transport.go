// Package stream opens a game's message stream and feeds it to a livegame.Engine.
package stream

import (
	"context"

	"github.com/park285/livechess/internal/livegame"
)

type MessageCallback func(msg livegame.Message)

type StateCallback func(state ConnState)

// Transport delivers decoded messages for one game, one at a time, in arrival order.
type Transport interface {
	Connect(ctx context.Context, gameID string) error
	OnMessage(cb MessageCallback) int
	RemoveMessageCallback(id int)
	Close(ctx context.Context) error
}

// Finisher is implemented by transports whose stream can end on its own (files, HTTP bodies).
type Finisher interface {
	Done() <-chan struct{}
}

// HeaderProvider injects per-connection headers such as Authorization.
type HeaderProvider func() map[string]string

type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	StateFailed       ConnState = "failed"
	StateFinished     ConnState = "finished"
)
