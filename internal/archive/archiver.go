package archive

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/livechess/internal/livegame"
	"github.com/park285/livechess/internal/obslog"
	"github.com/park285/livechess/internal/replay"
)

// Archiver saves a game once, the first time its status turns final.
type Archiver struct {
	store   Store
	now     func() time.Time
	timeout time.Duration
	logger  *zap.Logger
}

func NewArchiver(store Store) *Archiver {
	return &Archiver{store: store, now: time.Now, timeout: 10 * time.Second, logger: obslog.L()}
}

// Attach watches e's state changes. If the game is already over when attached it is
// saved right away. The save runs on its own goroutine; the returned func detaches and
// waits for it.
func (a *Archiver) Attach(e *livegame.Engine) func() {
	var (
		once    sync.Once
		wg      sync.WaitGroup
		started = a.now()
	)
	save := func(s livegame.Snapshot) {
		if !s.Status.Ended() {
			return
		}
		once.Do(func() {
			g := e.Game()
			wg.Add(1)
			go func() {
				defer wg.Done()
				a.save(g, s, started)
			}()
		})
	}
	id := e.Events().OnStateChange(save)
	save(e.Snapshot())
	return func() {
		e.Events().RemoveStateChange(id)
		wg.Wait()
	}
}

func (a *Archiver) save(g livegame.Game, s livegame.Snapshot, started time.Time) {
	rec := RecordOf(g, s)
	rec.StartedAt = started
	rec.EndedAt = a.now()
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	log := a.logger.With(zap.String("game_id", rec.GameID))
	if err := a.store.SaveResult(ctx, rec); err != nil {
		log.Error("archive_save_failed", zap.Error(err))
		return
	}
	log.Info("archive_saved", zap.String("result", rec.Result), zap.String("method", rec.Method), zap.Int("moves", len(rec.MovesUCI)))
}

// RecordOf builds the archive record for a finished game.
func RecordOf(g livegame.Game, s livegame.Snapshot) *Record {
	rec := &Record{
		GameID:    g.ID,
		WhiteID:   g.Players[livegame.White.Index()].ID,
		WhiteName: g.Players[livegame.White.Index()].Label(),
		BlackID:   g.Players[livegame.Black.Index()].ID,
		BlackName: g.Players[livegame.Black.Index()].Label(),
		Result:    resultOf(s),
		Method:    s.StatusName,
		MovesUCI:  append([]string(nil), s.Moves...),
		MovesSAN:  append([]string(nil), s.SAN...),
	}
	if !strings.EqualFold(strings.TrimSpace(g.InitialPosition), replay.StartPos) {
		rec.InitialFEN = strings.TrimSpace(g.InitialPosition)
	}
	return rec
}

func resultOf(s livegame.Snapshot) string {
	if c, ok := replay.ParseColor(s.Winner); ok {
		return c.String()
	}
	switch s.Status {
	case livegame.StatusDraw:
		return "draw"
	case livegame.StatusCheckmate:
		// the side to move is the side that got mated
		return s.SideToMove.Opponent().String()
	default:
		return ""
	}
}
