package livegame

import (
	"sync"

	"go.uber.org/zap"
)

type entry[T any] struct {
	id int
	fn T
}

// Hub fans engine events out to subscribers. Every On* call returns a handle for the
// matching Remove* call. Subscribers run on the publishing goroutine after the engine
// lock is released; a panicking subscriber is logged and skipped.
type Hub struct {
	mu     sync.RWMutex
	nextID int

	redraw  []entry[func()]
	state   []entry[func(Snapshot)]
	notable []entry[func(NotableMove)]
	errs    []entry[func(error)]

	logger *zap.Logger
}

func newHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger}
}

func (h *Hub) id() int {
	h.nextID++
	return h.nextID
}

// OnRedraw registers a bare "something changed" signal.
func (h *Hub) OnRedraw(cb func()) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.id()
	h.redraw = append(h.redraw, entry[func()]{id: id, fn: cb})
	return id
}

func (h *Hub) RemoveRedraw(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.redraw = without(h.redraw, id)
}

// OnStateChange receives a snapshot after every accepted transition or local intent.
func (h *Hub) OnStateChange(cb func(Snapshot)) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.id()
	h.state = append(h.state, entry[func(Snapshot)]{id: id, fn: cb})
	return id
}

func (h *Hub) RemoveStateChange(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = without(h.state, id)
}

func (h *Hub) OnNotableMove(cb func(NotableMove)) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.id()
	h.notable = append(h.notable, entry[func(NotableMove)]{id: id, fn: cb})
	return id
}

func (h *Hub) RemoveNotableMove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notable = without(h.notable, id)
}

// OnError receives protocol and reconstruction errors.
func (h *Hub) OnError(cb func(error)) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.id()
	h.errs = append(h.errs, entry[func(error)]{id: id, fn: cb})
	return id
}

func (h *Hub) RemoveError(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = without(h.errs, id)
}

// Len is the total number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.redraw) + len(h.state) + len(h.notable) + len(h.errs)
}

func (h *Hub) reset() {
	h.mu.Lock()
	h.redraw, h.state, h.notable, h.errs = nil, nil, nil, nil
	h.mu.Unlock()
}

func (h *Hub) publishRedraw() {
	h.mu.RLock()
	subs := append([]entry[func()](nil), h.redraw...)
	h.mu.RUnlock()
	for _, s := range subs {
		h.safely("redraw", func() { s.fn() })
	}
}

func (h *Hub) publishState(snap Snapshot) {
	h.mu.RLock()
	subs := append([]entry[func(Snapshot)](nil), h.state...)
	h.mu.RUnlock()
	for _, s := range subs {
		h.safely("state", func() { s.fn(snap) })
	}
}

func (h *Hub) publishNotable(m NotableMove) {
	h.mu.RLock()
	subs := append([]entry[func(NotableMove)](nil), h.notable...)
	h.mu.RUnlock()
	for _, s := range subs {
		h.safely("notable_move", func() { s.fn(m) })
	}
}

func (h *Hub) publishError(err error) {
	h.mu.RLock()
	subs := append([]entry[func(error)](nil), h.errs...)
	h.mu.RUnlock()
	for _, s := range subs {
		h.safely("error", func() { s.fn(err) })
	}
}

func (h *Hub) safely(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("live_subscriber_panic", zap.String("event", event), zap.Any("panic", r))
		}
	}()
	fn()
}

func without[T any](list []entry[T], id int) []entry[T] {
	for i, e := range list {
		if e.id == id {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
