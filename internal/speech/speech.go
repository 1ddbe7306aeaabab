// Package speech turns notable moves into spoken phrases.
package speech

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/park285/livechess/internal/livegame"
	"github.com/park285/livechess/internal/msgcat"
	"github.com/park285/livechess/internal/obslog"
)

// Speaker says one phrase. Implementations may block.
type Speaker interface {
	Say(phrase string) error
}

// WriterSpeaker writes each phrase as a line, e.g. to a TTS pipe or the terminal.
type WriterSpeaker struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSpeaker(w io.Writer) *WriterSpeaker { return &WriterSpeaker{w: w} }

func (s *WriterSpeaker) Say(phrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, phrase)
	return err
}

type Announcer struct {
	cat     *msgcat.Catalog
	speaker Speaker
	logger  *zap.Logger
}

func NewAnnouncer(cat *msgcat.Catalog, speaker Speaker) *Announcer {
	return &Announcer{cat: cat, speaker: speaker, logger: obslog.L()}
}

// Phrase renders mv. The plain display form is the fallback when the catalog
// has no usable phrase.
func (a *Announcer) Phrase(mv livegame.NotableMove) string {
	key := "speech.move"
	if mv.Check {
		key = "speech.check"
	}
	data := map[string]any{
		"Side":    sideName(mv.Side),
		"Display": mv.Display,
		"Token":   mv.Token,
		"Ply":     mv.Ply,
	}
	return a.cat.RenderOr(key, data, mv.Display)
}

// Announce speaks mv. Speaker failures are logged, never returned to the engine.
func (a *Announcer) Announce(mv livegame.NotableMove) {
	phrase := a.Phrase(mv)
	if phrase == "" {
		return
	}
	if err := a.speaker.Say(phrase); err != nil {
		a.logger.Warn("speech_failed", zap.String("game_id", mv.GameID), zap.Int("ply", mv.Ply), zap.Error(err))
	}
}

// Attach announces every notable move of e until the returned func is called.
func (a *Announcer) Attach(e *livegame.Engine) func() {
	id := e.Events().OnNotableMove(a.Announce)
	return func() { e.Events().RemoveNotableMove(id) }
}

func sideName(c livegame.Color) string {
	return cases.Title(language.English).String(c.String())
}
