package livegame

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/livechess/internal/replay"
)

// Message is one frame of the game stream. The set of kinds is closed: every
// implementation lives in this file and every kind has a MessageVisitor method.
type Message interface {
	Accept(v MessageVisitor) error
	Kind() string
	sealed()
}

// MessageVisitor handles each message kind. Adding a kind adds a method here, so every
// visitor stops compiling until it handles the new kind.
type MessageVisitor interface {
	VisitGameFull(m *GameFull) error
	VisitStateUpdate(m *StateUpdate) error
	VisitUnknown(m *Unknown) error
}

// GameFull carries the whole game record. The stream always starts with one.
type GameFull struct {
	ID              string
	InitialPosition string
	White           Player
	Black           Player
	State           GameState
}

// StateUpdate carries only the mutable state slice.
type StateUpdate struct {
	State GameState
}

// Unknown is any frame whose type this client does not understand.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (m *GameFull) Accept(v MessageVisitor) error    { return v.VisitGameFull(m) }
func (m *StateUpdate) Accept(v MessageVisitor) error { return v.VisitStateUpdate(m) }
func (m *Unknown) Accept(v MessageVisitor) error     { return v.VisitUnknown(m) }

func (*GameFull) Kind() string    { return "gameFull" }
func (*StateUpdate) Kind() string { return "gameState" }
func (m *Unknown) Kind() string   { return m.Type }

func (*GameFull) sealed()    {}
func (*StateUpdate) sealed() {}
func (*Unknown) sealed()     {}

var ErrEmptyFrame = errors.New("empty frame")

type wirePlayer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Title   string `json:"title"`
	Rating  int    `json:"rating"`
	AILevel int    `json:"aiLevel"`
}

type wireState struct {
	Type   string `json:"type"`
	Moves  string `json:"moves"`
	WTime  int64  `json:"wtime"`
	BTime  int64  `json:"btime"`
	WInc   int64  `json:"winc"`
	BInc   int64  `json:"binc"`
	Status string `json:"status"`
	Winner string `json:"winner"`
}

type wireFull struct {
	Type       string     `json:"type"`
	ID         string     `json:"id"`
	InitialFen string     `json:"initialFen"`
	White      wirePlayer `json:"white"`
	Black      wirePlayer `json:"black"`
	State      wireState  `json:"state"`
}

// DecodeMessage parses one JSON frame. Frames of an unrecognised type decode to *Unknown.
func DecodeMessage(raw []byte) (Message, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, ErrEmptyFrame
	}
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	switch env.Type {
	case "gameFull":
		var w wireFull
		if err := json.Unmarshal([]byte(trimmed), &w); err != nil {
			return nil, fmt.Errorf("decode gameFull: %w", err)
		}
		return w.toMessage(), nil
	case "gameState":
		var w wireState
		if err := json.Unmarshal([]byte(trimmed), &w); err != nil {
			return nil, fmt.Errorf("decode gameState: %w", err)
		}
		return &StateUpdate{State: w.toState()}, nil
	default:
		return &Unknown{Type: env.Type, Raw: json.RawMessage(trimmed)}, nil
	}
}

func (w wireFull) toMessage() *GameFull {
	initial := strings.TrimSpace(w.InitialFen)
	if initial == "" {
		initial = replay.StartPos
	}
	return &GameFull{
		ID:              w.ID,
		InitialPosition: initial,
		White:           w.White.toPlayer(),
		Black:           w.Black.toPlayer(),
		State:           w.State.toState(),
	}
}

func (w wirePlayer) toPlayer() Player {
	return Player{ID: w.ID, Name: w.Name, Title: w.Title, Rating: w.Rating, AILevel: w.AILevel}
}

func (w wireState) toState() GameState {
	return GameState{
		Moves:     replay.SplitMoves(w.Moves),
		Status:    ParseStatus(w.Status),
		Winner:    strings.ToLower(strings.TrimSpace(w.Winner)),
		Remaining: [2]time.Duration{time.Duration(w.WTime) * time.Millisecond, time.Duration(w.BTime) * time.Millisecond},
		Increment: [2]time.Duration{time.Duration(w.WInc) * time.Millisecond, time.Duration(w.BInc) * time.Millisecond},
	}
}
