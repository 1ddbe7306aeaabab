package command

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type seenRequest struct {
	method, path, auth, requestID string
	bodyLen                       int
}

type boardServer struct {
	mu       sync.Mutex
	seen     []seenRequest
	failures int // 503 answers before succeeding
}

func (b *boardServer) handle(ctx *fasthttp.RequestCtx) {
	b.mu.Lock()
	b.seen = append(b.seen, seenRequest{
		method:    string(ctx.Method()),
		path:      string(ctx.Path()),
		auth:      string(ctx.Request.Header.Peek("Authorization")),
		requestID: string(ctx.Request.Header.Peek("X-Request-Id")),
		bodyLen:   len(ctx.Request.Body()),
	})
	fail := b.failures > 0
	if fail {
		b.failures--
	}
	b.mu.Unlock()

	if fail {
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		return
	}
	ctx.SetContentType("application/json")
	switch string(ctx.Path()) {
	case "/api/account":
		ctx.SetBodyString(`{"id":"alice","username":"Alice"}`)
	case "/api/board/game/abc123/move/e7e8x":
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		ctx.SetBodyString(`{"error":"Not your turn, or game already over"}`)
	default:
		ctx.SetBodyString(`{"ok":true}`)
	}
}

func (b *boardServer) requests() []seenRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]seenRequest(nil), b.seen...)
}

func newTestClient(t *testing.T, b *boardServer) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: b.handle}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })
	return NewClient("http://board.test/",
		WithDial(func(string) (net.Conn, error) { return ln.Dial() }),
		WithHeaderProvider(func() map[string]string { return map[string]string{"Authorization": "Bearer tok"} }),
		WithTimeout(2*time.Second),
	)
}

func TestSubmitMovePostsCoordinateMove(t *testing.T) {
	b := &boardServer{}
	c := newTestClient(t, b)
	if err := c.SubmitMove(context.Background(), "abc123", "e2e4"); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	reqs := b.requests()
	if len(reqs) != 1 {
		t.Fatalf("requests=%d", len(reqs))
	}
	r := reqs[0]
	if r.method != "POST" || r.path != "/api/board/game/abc123/move/e2e4" {
		t.Fatalf("unexpected request %s %s", r.method, r.path)
	}
	if r.auth != "Bearer tok" {
		t.Fatalf("auth=%q", r.auth)
	}
	if len(r.requestID) != 36 {
		t.Fatalf("request id=%q", r.requestID)
	}
	if r.bodyLen != 0 {
		t.Fatalf("move carried a %d byte body", r.bodyLen)
	}
}

func TestSubmitMoveRejectedIsAPIError(t *testing.T) {
	c := newTestClient(t, &boardServer{})
	err := c.SubmitMove(context.Background(), "abc123", "e7e8x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != fasthttp.StatusBadRequest {
		t.Fatalf("expected 400 APIError, got %v", err)
	}
}

func TestMovesAreNotRetried(t *testing.T) {
	b := &boardServer{failures: 1}
	c := newTestClient(t, b)
	if err := c.SubmitMove(context.Background(), "abc123", "e2e4"); err == nil {
		t.Fatalf("expected failure")
	}
	if n := len(b.requests()); n != 1 {
		t.Fatalf("move sent %d times", n)
	}
}

func TestAccountRetriesUnavailable(t *testing.T) {
	b := &boardServer{failures: 2}
	c := newTestClient(t, b)
	acc, err := c.Account(context.Background())
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if acc.ID != "alice" {
		t.Fatalf("id=%q", acc.ID)
	}
	if n := len(b.requests()); n != 3 {
		t.Fatalf("attempts=%d", n)
	}
}

func TestResignPath(t *testing.T) {
	b := &boardServer{}
	c := newTestClient(t, b)
	if err := c.Resign(context.Background(), "abc123"); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if got := b.requests()[0].path; got != "/api/board/game/abc123/resign" {
		t.Fatalf("path=%q", got)
	}
}

func TestBackoffDuration(t *testing.T) {
	if backoffDuration(1) != 100*time.Millisecond || backoffDuration(3) != 400*time.Millisecond {
		t.Fatalf("unexpected backoff")
	}
	if backoffDuration(10) != backoffDuration(6) {
		t.Fatalf("backoff not capped")
	}
}
