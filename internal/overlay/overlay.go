// Package overlay is the viewer-side presentation state: display mode, the last-move
// highlight and a running move counter. It is owned by whoever constructs it and
// observed through deregisterable subscriptions.
package overlay

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/livechess/internal/livegame"
	"github.com/park285/livechess/internal/notation"
	"github.com/park285/livechess/internal/obslog"
)

type Mode int

const (
	ModeNormal Mode = iota
	ModeBlindfold
	ModeCoordinates
)

func (m Mode) String() string {
	switch m {
	case ModeBlindfold:
		return "blindfold"
	case ModeCoordinates:
		return "coordinates"
	default:
		return "normal"
	}
}

func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return ModeNormal, true
	case "blindfold":
		return ModeBlindfold, true
	case "coordinates", "coords":
		return ModeCoordinates, true
	default:
		return ModeNormal, false
	}
}

// State is a copy; mutating it does not affect the overlay.
type State struct {
	Mode      Mode
	Highlight *livegame.LastMove
	Moves     int
}

type subscriber struct {
	id int
	fn func(State)
}

type Overlay struct {
	mu     sync.Mutex
	state  State
	subs   []subscriber
	nextID int
	logger *zap.Logger
}

func New(mode Mode) *Overlay {
	return &Overlay{state: State{Mode: mode}, logger: obslog.L()}
}

func (o *Overlay) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.copyLocked()
}

func (o *Overlay) copyLocked() State {
	s := o.state
	if s.Highlight != nil {
		h := *s.Highlight
		s.Highlight = &h
	}
	return s
}

// Subscribe registers fn for every change and returns its handle.
func (o *Overlay) Subscribe(fn func(State)) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	o.subs = append(o.subs, subscriber{id: o.nextID, fn: fn})
	return o.nextID
}

func (o *Overlay) Unsubscribe(id int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, s := range o.subs {
		if s.id == id {
			o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
			return
		}
	}
}

func (o *Overlay) SetMode(m Mode) {
	o.update(func(s *State) bool {
		if s.Mode == m {
			return false
		}
		s.Mode = m
		return true
	})
}

// Record moves the highlight to a new move and bumps the counter.
func (o *Overlay) Record(mv livegame.NotableMove) {
	t, ok := notation.ParseToken(mv.Token)
	o.update(func(s *State) bool {
		s.Moves = mv.Ply
		if ok {
			s.Highlight = &livegame.LastMove{From: t.From, To: t.To}
		}
		return true
	})
}

// Reset clears the highlight and counter, keeping the mode.
func (o *Overlay) Reset() {
	o.update(func(s *State) bool {
		if s.Highlight == nil && s.Moves == 0 {
			return false
		}
		s.Highlight, s.Moves = nil, 0
		return true
	})
}

func (o *Overlay) update(fn func(*State) bool) {
	o.mu.Lock()
	if !fn(&o.state) {
		o.mu.Unlock()
		return
	}
	snap := o.copyLocked()
	subs := append([]subscriber(nil), o.subs...)
	o.mu.Unlock()

	for _, s := range subs {
		o.notify(s, snap)
	}
}

func (o *Overlay) notify(s subscriber, st State) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("overlay_subscriber_panic", zap.Int("subscriber", s.id), zap.Any("panic", r))
		}
	}()
	s.fn(st)
}

// Attach follows e's notable moves. The returned func detaches.
func (o *Overlay) Attach(e *livegame.Engine) func() {
	id := e.Events().OnNotableMove(o.Record)
	return func() { e.Events().RemoveNotableMove(id) }
}
