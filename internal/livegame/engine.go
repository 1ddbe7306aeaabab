// Package livegame keeps a rules-validated copy of one live game in step with the
// server's stream and forwards the local player's intents.
package livegame

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/livechess/internal/notation"
	"github.com/park285/livechess/internal/obslog"
	"github.com/park285/livechess/internal/replay"
)

// Commander sends intents to the remote command endpoint.
type Commander interface {
	SubmitMove(ctx context.Context, gameID, uci string) error
	Resign(ctx context.Context, gameID string) error
}

// Dispatcher runs an outbound command. The default starts a goroutine.
type Dispatcher func(task func())

// ResyncPolicy decides what a repeated full-state message may change.
type ResyncPolicy struct {
	RecomputePointOfView bool
	ReseedWatermark      bool
}

func DefaultResyncPolicy() ResyncPolicy {
	return ResyncPolicy{RecomputePointOfView: false, ReseedWatermark: true}
}

type options struct {
	sessionUser    string
	commander      Commander
	dispatch       Dispatcher
	now            func() time.Time
	resync         ResyncPolicy
	commandTimeout time.Duration
	logger         *zap.Logger
}

type Option func(*options)

// WithSessionUser sets the local account id used to pick the point of view.
func WithSessionUser(id string) Option { return func(o *options) { o.sessionUser = id } }

func WithCommander(c Commander) Option { return func(o *options) { o.commander = c } }

func WithDispatcher(d Dispatcher) Option { return func(o *options) { o.dispatch = d } }

func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

func WithResyncPolicy(p ResyncPolicy) Option { return func(o *options) { o.resync = p } }

func WithCommandTimeout(d time.Duration) Option {
	return func(o *options) { o.commandTimeout = d }
}

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// Engine owns the canonical game record and its derived position.
type Engine struct {
	mu   sync.Mutex
	opts options
	hub  *Hub

	game      Game
	pos       *replay.Position
	watermark int
	premove   *MoveIntent
	awaiting  bool
	closed    bool
}

// New builds an engine from the first full-state message of a stream. The watermark is
// seeded to the current move count so history already played is never announced.
func New(full *GameFull, opts ...Option) (*Engine, error) {
	if full == nil {
		return nil, fmt.Errorf("new engine: nil full state")
	}
	o := options{
		dispatch:       func(task func()) { go task() },
		now:            time.Now,
		resync:         DefaultResyncPolicy(),
		commandTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = obslog.L()
	}
	o.logger = o.logger.With(zap.String("game_id", full.ID))

	pos, err := replay.Reconstruct(full.InitialPosition, full.State.Moves)
	if err != nil {
		return nil, err
	}
	state := full.State.clone()
	state.UpdatedAt = o.now()
	pov, spectator := pointOfView(full, o.sessionUser)

	e := &Engine{
		opts: o,
		hub:  newHub(o.logger),
		game: Game{
			ID:              full.ID,
			InitialPosition: full.InitialPosition,
			Players:         [2]Player{full.White, full.Black},
			State:           state,
			PointOfView:     pov,
			Spectator:       spectator,
		},
		pos:       pos,
		watermark: len(state.Moves),
	}
	o.logger.Info("live_game_open",
		zap.Int("moves", len(state.Moves)),
		zap.String("status", state.Status.String()),
		zap.String("pov", pov.String()),
		zap.Bool("spectator", spectator),
	)
	return e, nil
}

func pointOfView(full *GameFull, user string) (Color, bool) {
	switch {
	case user != "" && full.White.ID == user:
		return White, false
	case user != "" && full.Black.ID == user:
		return Black, false
	default:
		return White, true
	}
}

// Events exposes the subscription hub.
func (e *Engine) Events() *Hub { return e.hub }

func (e *Engine) ID() string { return e.game.ID }

// Handle applies one stream message. It runs to completion before returning; on error the
// previous state is kept and the error is also published to OnError subscribers.
func (e *Engine) Handle(msg Message) error {
	if msg == nil {
		return nil
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	t := &transition{e: e}
	err := msg.Accept(t)
	if err == nil && t.changed {
		t.settle()
	}
	var snap Snapshot
	if err == nil && t.changed {
		snap = e.snapshotLocked()
	}
	e.mu.Unlock()

	if err != nil {
		e.opts.logger.Warn("live_state_rejected", zap.String("kind", msg.Kind()), zap.Error(err))
		e.hub.publishError(err)
		return err
	}
	if !t.changed {
		return nil
	}
	if t.notable != nil {
		e.hub.publishNotable(*t.notable)
	}
	e.hub.publishRedraw()
	e.hub.publishState(snap)
	if t.flush != "" {
		e.sendMove(t.gameID, t.flush)
	}
	return nil
}

// transition is the engine's message visitor. It runs with e.mu held.
type transition struct {
	e       *Engine
	changed bool
	notable *NotableMove
	flush   string
	gameID  string
}

var _ MessageVisitor = (*transition)(nil)

func (t *transition) VisitGameFull(m *GameFull) error {
	e := t.e
	if m.ID != "" && m.ID != e.game.ID {
		return fmt.Errorf("%w: have %s, got %s", ErrGameMismatch, e.game.ID, m.ID)
	}
	if err := extends(e.game.State.Moves, m.State.Moves); err != nil {
		return err
	}
	pos, err := replay.Reconstruct(m.InitialPosition, m.State.Moves)
	if err != nil {
		return err
	}
	state := m.State.clone()
	state.UpdatedAt = e.opts.now()

	e.game.InitialPosition = m.InitialPosition
	e.game.Players = [2]Player{m.White, m.Black}
	e.game.State = state
	if e.opts.resync.RecomputePointOfView {
		e.game.PointOfView, e.game.Spectator = pointOfView(m, e.opts.sessionUser)
	}
	e.pos = pos
	e.awaiting = false

	count := len(state.Moves)
	switch {
	case e.opts.resync.ReseedWatermark:
		if count > e.watermark {
			e.watermark = count
		}
	case count > e.watermark:
		t.notify()
	}
	e.opts.logger.Info("live_game_resync", zap.Int("moves", count), zap.Int("watermark", e.watermark))
	t.changed = true
	return nil
}

func (t *transition) VisitStateUpdate(m *StateUpdate) error {
	e := t.e
	prev := e.game.State.Moves
	next := m.State.Moves
	if err := extends(prev, next); err != nil {
		return err
	}

	state := m.State.clone()
	state.UpdatedAt = e.opts.now()
	if len(next) == len(prev) {
		// status, clocks and timestamp only; the position cannot have changed
		e.game.State = state
		if state.Status.Ended() {
			e.awaiting = false
		}
		t.changed = true
		return nil
	}

	pos, err := replay.Reconstruct(e.game.InitialPosition, next)
	if err != nil {
		return err
	}
	e.game.State = state
	e.pos = pos
	e.awaiting = false
	if len(next) > e.watermark {
		t.notify()
	}
	t.changed = true
	return nil
}

// extends checks that next keeps every move of prev, in order.
func extends(prev, next []string) error {
	if len(next) < len(prev) {
		return fmt.Errorf("%w: had %d, got %d", ErrMovesRegressed, len(prev), len(next))
	}
	for i := range prev {
		if prev[i] != next[i] {
			return fmt.Errorf("%w: ply %d was %s, now %s", ErrHistoryRewritten, i+1, prev[i], next[i])
		}
	}
	return nil
}

func (t *transition) VisitUnknown(m *Unknown) error {
	t.e.opts.logger.Debug("live_message_ignored", zap.String("type", m.Type))
	return nil
}

// notify records the newest move as notable and advances the watermark.
func (t *transition) notify() {
	e := t.e
	side, _ := e.pos.MoverOfLast()
	tok := e.pos.LastToken()
	t.notable = &NotableMove{
		GameID:  e.game.ID,
		Token:   tok,
		Display: notation.DisplayForm(tok),
		Side:    side,
		Ply:     e.pos.Len(),
		Check:   e.pos.InCheck(),
	}
	e.watermark = e.pos.Len()
}

// settle runs after every accepted transition: flush or drop a queued premove once it
// is the viewer's turn.
func (t *transition) settle() {
	e := t.e
	t.gameID = e.game.ID
	if e.premove == nil {
		return
	}
	if e.game.State.Status.Ended() {
		e.opts.logger.Debug("live_premove_dropped", zap.String("reason", "game_over"))
		e.premove = nil
		return
	}
	if e.game.Spectator || e.pos.SideToMove() != e.game.PointOfView {
		return
	}
	pm := *e.premove
	e.premove = nil
	tok, err := e.pos.NormalizeMove(pm.From, pm.To, pm.Promotion)
	if err != nil || !e.pos.IsLegal(tok) {
		e.opts.logger.Info("live_premove_dropped", zap.String("from", pm.From), zap.String("to", pm.To), zap.String("reason", "illegal"))
		return
	}
	if e.opts.commander == nil {
		return
	}
	e.awaiting = true
	t.flush = tok
}

// RequestRedraw publishes a bare redraw signal. Used by the clock ticker; it never
// touches game state.
func (e *Engine) RequestRedraw() {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if !closed {
		e.hub.publishRedraw()
	}
}

// Close marks the engine dead and drops all subscriptions. Commands still in flight
// complete but their results are ignored.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.premove = nil
	e.mu.Unlock()
	e.hub.reset()
	e.opts.logger.Info("live_game_closed")
}

func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Game returns a copy of the canonical record.
func (e *Engine) Game() Game {
	e.mu.Lock()
	defer e.mu.Unlock()
	g := e.game
	g.State = g.State.clone()
	return g
}

// Watermark is the number of moves already announced.
func (e *Engine) Watermark() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.watermark
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	g := e.game
	side := e.pos.SideToMove()
	turn := side
	if e.awaiting {
		turn = g.PointOfView.Opponent()
	}
	s := Snapshot{
		GameID:           g.ID,
		FEN:              e.pos.FEN(),
		Turn:             turn,
		TurnColor:        turn.String(),
		SideToMove:       side,
		Check:            e.pos.InCheck(),
		LegalDests:       map[string][]string{},
		PointOfView:      g.PointOfView,
		Orientation:      g.PointOfView.String(),
		Spectator:        g.Spectator,
		Status:           g.State.Status,
		StatusName:       g.State.Status.String(),
		Winner:           g.State.Winner,
		Players:          g.Players,
		Moves:            append([]string(nil), g.State.Moves...),
		SAN:              e.pos.SANHistory(),
		MoveCount:        e.pos.Len(),
		AwaitingOpponent: e.awaiting,
	}
	if from, to, ok := e.pos.LastMove(); ok {
		s.LastMove = &LastMove{From: from, To: to}
	}
	if e.canMoveLocked() {
		s.LegalDests = e.pos.LegalDestinations()
	}
	if e.premove != nil {
		pm := *e.premove
		s.Premove = &pm
	}
	s.Clocks = e.clockLocked(e.opts.now())
	s.ClockMillis = [2]int64{s.Clocks[0].Milliseconds(), s.Clocks[1].Milliseconds()}
	return s
}

func (e *Engine) canMoveLocked() bool {
	return !e.closed &&
		!e.game.Spectator &&
		!e.awaiting &&
		!e.game.State.Status.Ended() &&
		e.pos.SideToMove() == e.game.PointOfView
}
