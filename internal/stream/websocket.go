package stream

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// WebSocket streams a game over a websocket, one JSON message per frame. After a dropped
// connection it redials with backoff; the server starts each connection with a full state.
type WebSocket struct {
	callbacks

	urlFor func(gameID string) string
	gameID string

	conn  *websocket.Conn
	connM sync.Mutex
	state ConnState
	stM   sync.RWMutex

	maxReconnectAttempts int
	pingInterval         time.Duration
	readLimit            int64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc

	headerProvider HeaderProvider
	logger         *zap.Logger
}

type WSOption func(*WebSocket)

func WithHeaderProvider(h HeaderProvider) WSOption { return func(ws *WebSocket) { ws.headerProvider = h } }

func WithPingInterval(d time.Duration) WSOption { return func(ws *WebSocket) { ws.pingInterval = d } }

func WithReconnectAttempts(n int) WSOption {
	return func(ws *WebSocket) { ws.maxReconnectAttempts = n }
}

func WithWSLogger(l *zap.Logger) WSOption { return func(ws *WebSocket) { ws.logger = l } }

func NewWebSocket(urlFor func(gameID string) string, opts ...WSOption) *WebSocket {
	ws := &WebSocket{
		urlFor:               urlFor,
		state:                StateDisconnected,
		maxReconnectAttempts: 5,
		pingInterval:         30 * time.Second,
		readLimit:            1 << 20,
		stopCh:               make(chan struct{}),
		logger:               zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ws)
	}
	return ws
}

func (ws *WebSocket) Connect(ctx context.Context, gameID string) error {
	ws.stM.Lock()
	if ws.state == StateConnected || ws.state == StateConnecting {
		ws.stM.Unlock()
		return nil
	}
	ws.stM.Unlock()

	ws.gameID = gameID
	ws.rootCtx, ws.rootCancel = context.WithCancel(context.Background())
	ws.setState(StateConnecting)

	conn, err := ws.dial(ctx)
	if err != nil {
		ws.setState(StateFailed)
		return err
	}
	ws.attach(conn)
	return nil
}

func (ws *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, ws.urlFor(ws.gameID), &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      ws.buildHeaders(),
	})
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(ws.readLimit)
	return conn, nil
}

func (ws *WebSocket) attach(conn *websocket.Conn) {
	ws.connM.Lock()
	ws.conn = conn
	ws.connM.Unlock()
	ws.setState(StateConnected)
	ws.logger.Info("stream_ws_connected", zap.String("game_id", ws.gameID))

	ws.wg.Add(2)
	go ws.listen(conn)
	go ws.pingLoop(conn)
}

func (ws *WebSocket) listen(conn *websocket.Conn) {
	defer ws.wg.Done()
	for {
		_, data, err := conn.Read(ws.rootCtx)
		if err != nil {
			if ws.isStopping() {
				return
			}
			ws.logger.Warn("stream_ws_read_failed", zap.Error(err))
			ws.drop(conn, "reconnect")
			ws.scheduleReconnect()
			return
		}
		ws.deliver(data, ws.logger)
	}
}

func (ws *WebSocket) pingLoop(conn *websocket.Conn) {
	defer ws.wg.Done()
	t := time.NewTicker(ws.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ws.stopCh:
			return
		case <-t.C:
			if ws.current() != conn {
				return
			}
			ctx, cancel := context.WithTimeout(ws.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				// closing the conn makes listen fail and reconnect
				ws.logger.Warn("stream_ws_ping_failed", zap.Error(err))
				_ = conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (ws *WebSocket) scheduleReconnect() {
	if ws.maxReconnectAttempts <= 0 {
		ws.setState(StateFailed)
		return
	}
	ws.setState(StateReconnecting)

	ws.wg.Add(1)
	go func() {
		defer ws.wg.Done()
		for attempt := 1; attempt <= ws.maxReconnectAttempts; attempt++ {
			select {
			case <-ws.stopCh:
				return
			case <-time.After(backoffDuration(attempt)):
			}
			conn, err := ws.dial(ws.rootCtx)
			if err != nil {
				ws.logger.Debug("stream_ws_redial_failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			if ws.isStopping() {
				_ = conn.Close(websocket.StatusNormalClosure, "close")
				return
			}
			ws.attach(conn)
			return
		}
		ws.setState(StateFailed)
	}()
}

func (ws *WebSocket) setState(state ConnState) {
	ws.stM.Lock()
	ws.state = state
	ws.stM.Unlock()
	ws.emitState(state)
}

func (ws *WebSocket) State() ConnState {
	ws.stM.RLock()
	defer ws.stM.RUnlock()
	return ws.state
}

// WriteJSON sends one JSON frame on the live connection.
func (ws *WebSocket) WriteJSON(ctx context.Context, v any) error {
	conn := ws.current()
	if conn == nil || ws.State() != StateConnected {
		return errors.New("ws not connected")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	return wsjson.Write(ctx, conn, v)
}

func (ws *WebSocket) Close(ctx context.Context) error {
	ws.stopOnce.Do(func() { close(ws.stopCh) })
	if conn := ws.current(); conn != nil {
		ws.drop(conn, "close")
	}
	if ws.rootCancel != nil {
		ws.rootCancel()
	}

	done := make(chan struct{})
	go func() {
		ws.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		ws.setState(StateDisconnected)
		return nil
	}
}

func (ws *WebSocket) current() *websocket.Conn {
	ws.connM.Lock()
	defer ws.connM.Unlock()
	return ws.conn
}

func (ws *WebSocket) drop(conn *websocket.Conn, reason string) {
	ws.connM.Lock()
	if ws.conn == conn {
		ws.conn = nil
	}
	ws.connM.Unlock()
	code := websocket.StatusGoingAway
	if reason == "close" {
		code = websocket.StatusNormalClosure
	}
	_ = conn.Close(code, reason)
}

func (ws *WebSocket) isStopping() bool {
	select {
	case <-ws.stopCh:
		return true
	default:
		return false
	}
}

func (ws *WebSocket) buildHeaders() http.Header {
	hdr := http.Header{}
	if ws.headerProvider == nil {
		return hdr
	}
	for k, v := range ws.headerProvider() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}
