package command

import (
	"context"
	"errors"
	"testing"
)

type frameRecorder struct {
	frames []*Frame
	err    error
}

func (f *frameRecorder) WriteJSON(_ context.Context, v any) error {
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, v.(*Frame))
	return nil
}

func TestWSCommanderWritesFrames(t *testing.T) {
	ws := &frameRecorder{}
	cmd := NewCommander("ws", false, nil, ws, nil)
	if err := cmd.SubmitMove(context.Background(), "abc123", "e2e4"); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	if err := cmd.Resign(context.Background(), "abc123"); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if len(ws.frames) != 2 {
		t.Fatalf("frames=%d", len(ws.frames))
	}
	if f := ws.frames[0]; f.Type != "move" || f.GameID != "abc123" || f.Move != "e2e4" {
		t.Fatalf("bad move frame %+v", f)
	}
	if f := ws.frames[1]; f.Type != "resign" || f.Move != "" {
		t.Fatalf("bad resign frame %+v", f)
	}
}

func TestAutoCommanderFallsBackToHTTP(t *testing.T) {
	b := &boardServer{}
	c := newTestClient(t, b)
	cmd := NewCommander("auto", false, c, &frameRecorder{err: errors.New("not connected")}, nil)
	if err := cmd.SubmitMove(context.Background(), "abc123", "g1f3"); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	reqs := b.requests()
	if len(reqs) != 1 || reqs[0].path != "/api/board/game/abc123/move/g1f3" {
		t.Fatalf("fallback request missing: %+v", reqs)
	}
}

func TestAutoCommanderPrefersWebSocket(t *testing.T) {
	b := &boardServer{}
	ws := &frameRecorder{}
	cmd := NewCommander("auto", false, newTestClient(t, b), ws, nil)
	if err := cmd.Resign(context.Background(), "abc123"); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if len(ws.frames) != 1 || len(b.requests()) != 0 {
		t.Fatalf("expected websocket only, frames=%d http=%d", len(ws.frames), len(b.requests()))
	}
}

func TestDryRunSendsNothing(t *testing.T) {
	b := &boardServer{}
	ws := &frameRecorder{}
	cmd := NewCommander("auto", true, newTestClient(t, b), ws, nil)
	if err := cmd.SubmitMove(context.Background(), "abc123", "e2e4"); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	if len(ws.frames) != 0 || len(b.requests()) != 0 {
		t.Fatalf("dry run leaked a command")
	}
}

func TestHTTPCommanderWithoutClient(t *testing.T) {
	if err := NewCommander("http", false, nil, nil, nil).SubmitMove(context.Background(), "x", "e2e4"); err == nil {
		t.Fatalf("expected error without client")
	}
}
