// Package mirror copies live game state into Redis so other processes can read the
// latest snapshot and follow moves over pub/sub.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/livechess/internal/livegame"
	"github.com/park285/livechess/internal/obslog"
)

const defaultTTL = 6 * time.Hour

type Mirror struct {
	rdb     *redis.Client
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

// New wraps an existing client. ttl <= 0 uses six hours.
func New(rdb *redis.Client, ttl time.Duration) *Mirror {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Mirror{rdb: rdb, ttl: ttl, timeout: 2 * time.Second, logger: obslog.L()}
}

// Open connects to url (redis://host:port/db) and pings it.
func Open(ctx context.Context, url string, ttl time.Duration) (*Mirror, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, ttl), nil
}

func (m *Mirror) Close() error { return m.rdb.Close() }

func keySnapshot(gameID string) string { return "live:game:" + strings.TrimSpace(gameID) }
func keyMoves(gameID string) string    { return keySnapshot(gameID) + ":moves" }
func channelMoves(gameID string) string {
	return "live:moves:" + strings.TrimSpace(gameID)
}

func (m *Mirror) SaveSnapshot(ctx context.Context, snap livegame.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return m.rdb.Set(ctx, keySnapshot(snap.GameID), raw, m.ttl).Err()
}

// LoadSnapshot returns nil without error when nothing is stored for gameID.
func (m *Mirror) LoadSnapshot(ctx context.Context, gameID string) (*livegame.Snapshot, error) {
	raw, err := m.rdb.Get(ctx, keySnapshot(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap, err := livegame.DecodeSnapshot(raw)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", gameID, err)
	}
	return &snap, nil
}

// MoveEvent is the pub/sub payload for one notable move.
type MoveEvent struct {
	GameID  string `json:"gameId"`
	Move    string `json:"move"`
	Display string `json:"display"`
	Side    string `json:"side"`
	Ply     int    `json:"ply"`
	Check   bool   `json:"check,omitempty"`
}

// PublishMove appends the move to the game's move list and publishes it.
func (m *Mirror) PublishMove(ctx context.Context, mv livegame.NotableMove) error {
	ev := MoveEvent{
		GameID:  mv.GameID,
		Move:    mv.Token,
		Display: mv.Display,
		Side:    mv.Side.String(),
		Ply:     mv.Ply,
		Check:   mv.Check,
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pipe := m.rdb.TxPipeline()
	pipe.RPush(ctx, keyMoves(mv.GameID), mv.Token)
	pipe.Expire(ctx, keyMoves(mv.GameID), m.ttl)
	pipe.Publish(ctx, channelMoves(mv.GameID), raw)
	_, err = pipe.Exec(ctx)
	return err
}

// Moves lists the tokens published so far for gameID.
func (m *Mirror) Moves(ctx context.Context, gameID string) ([]string, error) {
	return m.rdb.LRange(ctx, keyMoves(gameID), 0, -1).Result()
}

// Subscribe follows gameID's moves until ctx ends. Malformed payloads are skipped.
func (m *Mirror) Subscribe(ctx context.Context, gameID string) (<-chan MoveEvent, error) {
	sub := m.rdb.Subscribe(ctx, channelMoves(gameID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	out := make(chan MoveEvent)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev MoveEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					m.logger.Warn("mirror_bad_payload", zap.String("game_id", gameID), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Attach mirrors every state change and notable move of e. Writes run on a worker
// goroutine: only the latest pending snapshot is kept, moves queue in order. Redis
// failures are logged and never reach the engine. The returned func detaches and waits
// for queued writes to finish.
func (m *Mirror) Attach(e *livegame.Engine) func() {
	w := &writer{
		m:     m,
		log:   m.logger.With(zap.String("game_id", e.ID())),
		snaps: make(chan livegame.Snapshot, 1),
		moves: make(chan livegame.NotableMove, moveQueue),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go w.run()

	hub := e.Events()
	sid := hub.OnStateChange(w.offerSnapshot)
	nid := hub.OnNotableMove(w.offerMove)
	var once sync.Once
	return func() {
		once.Do(func() {
			hub.RemoveStateChange(sid)
			hub.RemoveNotableMove(nid)
			close(w.stop)
			<-w.done
		})
	}
}

const moveQueue = 64

type writer struct {
	m     *Mirror
	log   *zap.Logger
	snaps chan livegame.Snapshot
	moves chan livegame.NotableMove
	stop  chan struct{}
	done  chan struct{}
}

// offerSnapshot replaces any snapshot still waiting to be written.
func (w *writer) offerSnapshot(s livegame.Snapshot) {
	for {
		select {
		case w.snaps <- s:
			return
		default:
		}
		select {
		case <-w.snaps:
		default:
		}
	}
}

func (w *writer) offerMove(mv livegame.NotableMove) {
	select {
	case w.moves <- mv:
	default:
		w.log.Warn("mirror_move_dropped", zap.Int("ply", mv.Ply))
	}
}

func (w *writer) run() {
	defer close(w.done)
	for {
		select {
		case mv := <-w.moves:
			w.publish(mv)
		case s := <-w.snaps:
			w.save(s)
		case <-w.stop:
			w.drain()
			return
		}
	}
}

func (w *writer) drain() {
	for {
		select {
		case mv := <-w.moves:
			w.publish(mv)
		case s := <-w.snaps:
			w.save(s)
		default:
			return
		}
	}
}

func (w *writer) save(s livegame.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), w.m.timeout)
	defer cancel()
	if err := w.m.SaveSnapshot(ctx, s); err != nil {
		w.log.Warn("mirror_snapshot_failed", zap.Error(err))
	}
}

func (w *writer) publish(mv livegame.NotableMove) {
	ctx, cancel := context.WithTimeout(context.Background(), w.m.timeout)
	defer cancel()
	if err := w.m.PublishMove(ctx, mv); err != nil {
		w.log.Warn("mirror_publish_failed", zap.Int("ply", mv.Ply), zap.Error(err))
	}
}
