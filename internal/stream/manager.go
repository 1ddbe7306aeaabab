package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/park285/livechess/internal/livegame"
	"github.com/park285/livechess/internal/obslog"
)

// TransportFactory returns a fresh transport for one game.
type TransportFactory func(gameID string) Transport

// Manager opens games. It holds no per-game state; each Open returns its own Handle.
type Manager struct {
	newTransport TransportFactory
	engineOpts   []livegame.Option
	setup        []func(*livegame.Engine)
	redrawEvery  time.Duration
	logger       *zap.Logger
}

type ManagerOption func(*Manager)

// WithEngineOptions are passed to livegame.New for every game.
func WithEngineOptions(opts ...livegame.Option) ManagerOption {
	return func(m *Manager) { m.engineOpts = append(m.engineOpts, opts...) }
}

// WithSetup runs fn on the new engine before any later message is routed to it, so
// subscribers registered there miss nothing.
func WithSetup(fn func(*livegame.Engine)) ManagerOption {
	return func(m *Manager) { m.setup = append(m.setup, fn) }
}

// WithRedrawInterval sets the clock redraw period. Zero disables the ticker.
func WithRedrawInterval(d time.Duration) ManagerOption {
	return func(m *Manager) { m.redrawEvery = d }
}

func WithManagerLogger(l *zap.Logger) ManagerOption { return func(m *Manager) { m.logger = l } }

func NewManager(factory TransportFactory, opts ...ManagerOption) *Manager {
	m := &Manager{
		newTransport: factory,
		redrawEvery:  250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = obslog.L()
	}
	return m
}

// Handle is an open game. Close releases the transport and the redraw ticker.
type Handle struct {
	gameID string
	tr     Transport
	cbID   int
	mgr    *Manager
	logger *zap.Logger

	engine atomic.Pointer[livegame.Engine]
	initMu sync.Mutex

	ready     chan struct{}
	readyOnce sync.Once
	openErr   error

	stopCh   chan struct{}
	stopOnce sync.Once
	closeErr error
	wg       sync.WaitGroup
}

// Open connects the stream for gameID and returns once the first full-state message has
// built the engine. Messages that arrive before it are dropped.
func (m *Manager) Open(ctx context.Context, gameID string) (*Handle, error) {
	if m.newTransport == nil {
		return nil, errors.New("stream: no transport factory")
	}
	h := &Handle{
		gameID: gameID,
		tr:     m.newTransport(gameID),
		mgr:    m,
		logger: m.logger.With(zap.String("game_id", gameID)),
		ready:  make(chan struct{}),
		stopCh: make(chan struct{}),
	}
	h.cbID = h.tr.OnMessage(h.route)

	if err := h.tr.Connect(ctx, gameID); err != nil {
		_ = h.Close(context.Background())
		return nil, err
	}

	var done <-chan struct{}
	if f, ok := h.tr.(Finisher); ok {
		done = f.Done()
	}
	select {
	case <-h.ready:
	case <-ctx.Done():
		_ = h.Close(context.Background())
		return nil, ctx.Err()
	case <-done:
		// the stream may have delivered the full state just before ending
		select {
		case <-h.ready:
		default:
			_ = h.Close(context.Background())
			return nil, errors.New("stream ended before the first full state")
		}
	}
	if h.openErr != nil {
		_ = h.Close(context.Background())
		return nil, h.openErr
	}

	e := h.engine.Load()
	if m.redrawEvery > 0 {
		h.wg.Add(1)
		go h.tick(e, m.redrawEvery)
	}
	e.RequestRedraw()
	return h, nil
}

func (h *Handle) route(msg livegame.Message) {
	if e := h.engine.Load(); e != nil {
		_ = e.Handle(msg)
		return
	}
	h.initMu.Lock()
	defer h.initMu.Unlock()
	if e := h.engine.Load(); e != nil {
		_ = e.Handle(msg)
		return
	}
	select {
	case <-h.ready:
		// open already failed
		return
	default:
	}
	full, ok := msg.(*livegame.GameFull)
	if !ok {
		h.logger.Debug("stream_message_before_full_dropped", zap.String("kind", msg.Kind()))
		return
	}
	e, err := livegame.New(full, h.mgr.engineOpts...)
	if err != nil {
		h.logger.Error("stream_open_failed", zap.Error(err))
		h.openErr = err
		h.readyOnce.Do(func() { close(h.ready) })
		return
	}
	for _, fn := range h.mgr.setup {
		fn(e)
	}
	h.engine.Store(e)
	h.readyOnce.Do(func() { close(h.ready) })
}

func (h *Handle) tick(e *livegame.Engine, every time.Duration) {
	defer h.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-t.C:
			e.RequestRedraw()
		}
	}
}

func (h *Handle) GameID() string { return h.gameID }

// Engine is nil until the first full state has arrived.
func (h *Handle) Engine() *livegame.Engine { return h.engine.Load() }

// Done closes when a finite transport has delivered everything. It is nil for live
// transports, which never finish on their own.
func (h *Handle) Done() <-chan struct{} {
	if f, ok := h.tr.(Finisher); ok {
		return f.Done()
	}
	return nil
}

// Close is idempotent and safe on a handle that never received a message.
func (h *Handle) Close(ctx context.Context) error {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		h.tr.RemoveMessageCallback(h.cbID)
		h.closeErr = h.tr.Close(ctx)
		h.wg.Wait()
		if e := h.engine.Load(); e != nil {
			e.Close()
		}
		h.logger.Debug("stream_closed")
	})
	return h.closeErr
}
