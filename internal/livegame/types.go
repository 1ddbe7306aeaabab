package livegame

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/park285/livechess/internal/replay"
)

type Color = replay.Color

const (
	White = replay.White
	Black = replay.Black
)

type Status int

const (
	StatusNotStarted Status = iota
	StatusStarted
	StatusCheckmate
	StatusResignation
	StatusDraw
	StatusTimeout
	StatusAborted
	StatusOther
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "created"
	case StatusStarted:
		return "started"
	case StatusCheckmate:
		return "mate"
	case StatusResignation:
		return "resign"
	case StatusDraw:
		return "draw"
	case StatusTimeout:
		return "outoftime"
	case StatusAborted:
		return "aborted"
	default:
		return "other"
	}
}

// Ended reports whether the game is over for any reason.
func (s Status) Ended() bool { return s >= StatusCheckmate }

// ParseStatus maps the server's status vocabulary onto Status.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "created":
		return StatusNotStarted
	case "started":
		return StatusStarted
	case "mate":
		return StatusCheckmate
	case "resign":
		return StatusResignation
	case "draw", "stalemate":
		return StatusDraw
	case "outoftime", "timeout":
		return StatusTimeout
	case "aborted", "nostart":
		return StatusAborted
	default:
		return StatusOther
	}
}

type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Rating  int    `json:"rating,omitempty"`
	AILevel int    `json:"aiLevel,omitempty"`
}

// Label is the name shown on boards and in logs.
func (p Player) Label() string {
	switch {
	case p.AILevel > 0:
		return "Stockfish level " + strconv.Itoa(p.AILevel)
	case p.Name == "" && p.ID == "":
		return "Anonymous"
	case p.Name == "":
		return p.ID
	case p.Title != "":
		return p.Title + " " + p.Name
	default:
		return p.Name
	}
}

// GameState is the server-authoritative slice that every update replaces.
type GameState struct {
	Moves     []string
	Status    Status
	Winner    string
	Remaining [2]time.Duration
	Increment [2]time.Duration
	UpdatedAt time.Time
}

func (s GameState) clone() GameState {
	s.Moves = append([]string(nil), s.Moves...)
	return s
}

type Game struct {
	ID              string
	InitialPosition string
	Players         [2]Player
	State           GameState
	PointOfView     Color
	Spectator       bool
}

// MoveIntent is a move the local viewer wants to play.
type MoveIntent struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// NotableMove is published once per genuinely new move.
type NotableMove struct {
	GameID  string
	Token   string
	Display string
	Side    Color
	Ply     int
	Check   bool
}

type LastMove struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Snapshot is a read-only copy of everything a renderer needs.
type Snapshot struct {
	GameID           string              `json:"gameId"`
	FEN              string              `json:"fen"`
	LastMove         *LastMove           `json:"lastMove,omitempty"`
	Turn             Color               `json:"-"`
	TurnColor        string              `json:"turnColor"`
	SideToMove       Color               `json:"-"`
	Check            bool                `json:"check"`
	LegalDests       map[string][]string `json:"dests"`
	PointOfView      Color               `json:"-"`
	Orientation      string              `json:"orientation"`
	Spectator        bool                `json:"spectator"`
	Status           Status              `json:"-"`
	StatusName       string              `json:"status"`
	Winner           string              `json:"winner,omitempty"`
	Players          [2]Player           `json:"players"`
	Moves            []string            `json:"moves"`
	SAN              []string            `json:"san"`
	MoveCount        int                 `json:"moveCount"`
	Clocks           [2]time.Duration    `json:"-"`
	ClockMillis      [2]int64            `json:"clocks"`
	Premove          *MoveIntent         `json:"premove,omitempty"`
	AwaitingOpponent bool                `json:"awaitingOpponent"`
}

// DecodeSnapshot reads the JSON form of a Snapshot and rebuilds the typed fields that
// are not serialized.
func DecodeSnapshot(b []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return Snapshot{}, err
	}
	s.Turn, _ = replay.ParseColor(s.TurnColor)
	s.PointOfView, _ = replay.ParseColor(s.Orientation)
	s.SideToMove = s.Turn
	if s.AwaitingOpponent {
		s.SideToMove = s.PointOfView
	}
	s.Status = ParseStatus(s.StatusName)
	for i, ms := range s.ClockMillis {
		s.Clocks[i] = time.Duration(ms) * time.Millisecond
	}
	return s, nil
}
