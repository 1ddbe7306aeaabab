package httpview

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/park285/livechess/internal/livegame"
	"github.com/park285/livechess/internal/replay"
)

type fakeCommander struct {
	mu    sync.Mutex
	moves []string
}

func (f *fakeCommander) SubmitMove(_ context.Context, _, uci string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, uci)
	return nil
}

func (f *fakeCommander) Resign(context.Context, string) error { return nil }

var epoch = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

func openEngine(t *testing.T, user string) (*livegame.Engine, *fakeCommander) {
	t.Helper()
	cmd := &fakeCommander{}
	e, err := livegame.New(&livegame.GameFull{
		ID:              "g1",
		InitialPosition: replay.StartPos,
		White:           livegame.Player{ID: "alice"},
		Black:           livegame.Player{ID: "bob"},
		State: livegame.GameState{
			Status:    livegame.StatusStarted,
			Remaining: [2]time.Duration{5 * time.Minute, 5 * time.Minute},
		},
	},
		livegame.WithSessionUser(user),
		livegame.WithCommander(cmd),
		livegame.WithDispatcher(func(task func()) { task() }),
		livegame.WithClock(func() time.Time { return epoch }),
	)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, cmd
}

func do(t *testing.T, s *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestNoEngineYet(t *testing.T) {
	s := New(func() *livegame.Engine { return nil })
	code, body := do(t, s, http.MethodGet, "/snapshot", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "game not open yet", body["error"])
}

func TestSnapshotAndClock(t *testing.T) {
	e, _ := openEngine(t, "alice")
	s := New(func() *livegame.Engine { return e }, WithClock(func() time.Time { return epoch.Add(1500 * time.Millisecond) }))

	code, snap := do(t, s, http.MethodGet, "/snapshot", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "g1", snap["gameId"])
	assert.Equal(t, "white", snap["orientation"])
	assert.Equal(t, "started", snap["status"])

	code, clock := do(t, s, http.MethodGet, "/clock", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 298500, clock["white"])
	assert.EqualValues(t, 300000, clock["black"])
	assert.Equal(t, "4:58", clock["whiteText"])
}

func TestMoveFlow(t *testing.T) {
	e, cmd := openEngine(t, "alice")
	s := New(func() *livegame.Engine { return e })

	code, _ := do(t, s, http.MethodPost, "/move", `{"from":"e2","to":"e4"}`)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, []string{"e2e4"}, cmd.moves)
	assert.True(t, e.Snapshot().AwaitingOpponent)

	code, body := do(t, s, http.MethodPost, "/move", `{"from":"d2","to":"d4"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, livegame.ErrAwaitingOpponent.Error(), body["error"])

	code, _ = do(t, s, http.MethodPost, "/move", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestInvalidSquare(t *testing.T) {
	e, _ := openEngine(t, "alice")
	code, _ := do(t, New(func() *livegame.Engine { return e }), http.MethodPost, "/move", `{"from":"z9","to":"e4"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSpectatorForbidden(t *testing.T) {
	e, _ := openEngine(t, "carol")
	code, _ := do(t, New(func() *livegame.Engine { return e }), http.MethodPost, "/resign", "")
	assert.Equal(t, http.StatusForbidden, code)
}

func TestPremoveLifecycle(t *testing.T) {
	e, _ := openEngine(t, "bob")
	s := New(func() *livegame.Engine { return e })

	code, _ := do(t, s, http.MethodPost, "/premove", `{"from":"e7","to":"e5"}`)
	require.Equal(t, http.StatusAccepted, code)
	pm, ok := e.Premove()
	require.True(t, ok)
	assert.Equal(t, "e7", pm.From)

	code, body := do(t, s, http.MethodDelete, "/premove", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["cancelled"])

	_, body = do(t, s, http.MethodDelete, "/premove", "")
	assert.Equal(t, false, body["cancelled"])
}

func TestClosedEngineIsGone(t *testing.T) {
	e, _ := openEngine(t, "alice")
	e.Close()
	code, _ := do(t, New(func() *livegame.Engine { return e }), http.MethodPost, "/move", `{"from":"e2","to":"e4"}`)
	assert.Equal(t, http.StatusGone, code)
}

func TestWebSocketFeed(t *testing.T) {
	e, _ := openEngine(t, "alice")
	s := New(func() *livegame.Engine { return e })
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.App().Listener(ln) }()
	t.Cleanup(func() { _ = s.Shutdown() })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws://"+ln.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() livegame.Snapshot {
		_, raw, err := conn.Read(ctx)
		require.NoError(t, err)
		snap, err := livegame.DecodeSnapshot(raw)
		require.NoError(t, err)
		return snap
	}
	assert.Equal(t, 0, read().MoveCount)

	require.NoError(t, e.Handle(&livegame.StateUpdate{State: livegame.GameState{Moves: []string{"e2e4"}, Status: livegame.StatusStarted}}))
	assert.Equal(t, 1, read().MoveCount)
}
