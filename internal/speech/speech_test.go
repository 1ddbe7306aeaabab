package speech

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/park285/livechess/internal/livegame"
	"github.com/park285/livechess/internal/msgcat"
	"github.com/park285/livechess/internal/replay"
)

type failingSpeaker struct{ calls int }

func (f *failingSpeaker) Say(string) error { f.calls++; return errors.New("tts offline") }

func TestPhrase(t *testing.T) {
	a := NewAnnouncer(msgcat.Default(), &failingSpeaker{})
	got := a.Phrase(livegame.NotableMove{Token: "e2e4", Display: "e2-e4", Side: livegame.White, Ply: 1})
	if got != "White e2-e4" {
		t.Fatalf("got %q", got)
	}
	got = a.Phrase(livegame.NotableMove{Token: "d8h4", Display: "d8-h4", Side: livegame.Black, Ply: 4, Check: true})
	if got != "Black d8-h4, check" {
		t.Fatalf("got %q", got)
	}
}

func TestAttachSpeaksOnlyNewMoves(t *testing.T) {
	e, err := livegame.New(&livegame.GameFull{
		ID:              "g1",
		InitialPosition: replay.StartPos,
		State: livegame.GameState{
			Moves:     []string{"e2e4"},
			Status:    livegame.StatusStarted,
			Remaining: [2]time.Duration{time.Minute, time.Minute},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	var buf bytes.Buffer
	detach := NewAnnouncer(msgcat.Default(), NewWriterSpeaker(&buf)).Attach(e)
	defer detach()

	_ = e.Handle(&livegame.StateUpdate{State: livegame.GameState{Moves: []string{"e2e4", "e7e5"}, Status: livegame.StatusStarted}})
	if got := buf.String(); got != "Black e7-e5\n" {
		t.Fatalf("spoken %q", got)
	}
}

func TestSpeakerFailureIsSwallowed(t *testing.T) {
	sp := &failingSpeaker{}
	NewAnnouncer(msgcat.Default(), sp).Announce(livegame.NotableMove{Token: "e2e4", Display: "e2-e4"})
	if sp.calls != 1 {
		t.Fatalf("calls=%d", sp.calls)
	}
}
