package stream

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/livechess/internal/livegame"
)

type callbackEntry struct {
	id       int
	callback MessageCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

// callbacks is the registry shared by every transport.
type callbacks struct {
	mu     sync.RWMutex
	nextID int
	msgs   []callbackEntry
	states []stateCallbackEntry
}

func (c *callbacks) OnMessage(cb MessageCallback) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.msgs = append(c.msgs, callbackEntry{id: c.nextID, callback: cb})
	return c.nextID
}

func (c *callbacks) RemoveMessageCallback(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cb := range c.msgs {
		if cb.id == id {
			c.msgs = append(c.msgs[:i:i], c.msgs[i+1:]...)
			return
		}
	}
}

func (c *callbacks) OnStateChange(cb StateCallback) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.states = append(c.states, stateCallbackEntry{id: c.nextID, callback: cb})
	return c.nextID
}

func (c *callbacks) RemoveStateCallback(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cb := range c.states {
		if cb.id == id {
			c.states = append(c.states[:i:i], c.states[i+1:]...)
			return
		}
	}
}

func (c *callbacks) emit(msg livegame.Message) {
	c.mu.RLock()
	list := make([]callbackEntry, len(c.msgs))
	copy(list, c.msgs)
	c.mu.RUnlock()
	for _, entry := range list {
		if entry.callback != nil {
			entry.callback(msg)
		}
	}
}

func (c *callbacks) emitState(state ConnState) {
	c.mu.RLock()
	list := make([]stateCallbackEntry, len(c.states))
	copy(list, c.states)
	c.mu.RUnlock()
	for _, entry := range list {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

// deliver decodes one raw frame and emits it. Keep-alive blank lines and undecodable
// frames are skipped.
func (c *callbacks) deliver(raw []byte, logger *zap.Logger) {
	msg, err := livegame.DecodeMessage(raw)
	if err != nil {
		if !errors.Is(err, livegame.ErrEmptyFrame) {
			logger.Warn("stream_frame_invalid", zap.Error(err), zap.Int("bytes", len(raw)))
		}
		return
	}
	c.emit(msg)
}
