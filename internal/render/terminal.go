package render

import (
	"fmt"
	"io"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/park285/livechess/internal/livegame"
	"github.com/park285/livechess/internal/msgcat"
	"github.com/park285/livechess/internal/notation"
	"github.com/park285/livechess/internal/overlay"
)

// Terminal renders a text board. Highlighted squares carry a '*' marker and a king in
// check a '!' marker. Rank and file labels appear in coordinates mode only.
type Terminal struct {
	cat *msgcat.Catalog
}

func NewTerminal(cat *msgcat.Catalog) *Terminal {
	if cat == nil {
		cat = msgcat.Default()
	}
	return &Terminal{cat: cat}
}

func (t *Terminal) Render(w io.Writer, snap livegame.Snapshot, ov overlay.State) error {
	board, err := boardOf(snap)
	if err != nil {
		return err
	}
	pov := snap.PointOfView
	labels := ov.Mode == overlay.ModeCoordinates
	marks := highlighted(snap, ov)
	king, inCheck := checkedKing(snap, board)

	var b strings.Builder
	b.WriteString(t.playerLine(snap, pov.Opponent()))
	b.WriteString("  +" + strings.Repeat("-", 17) + "+\n")
	ranks, files := layout(pov)
	for _, r := range ranks {
		if labels {
			b.WriteString(r.String())
		} else {
			b.WriteByte(' ')
		}
		b.WriteString(" |")
		for _, f := range files {
			sq := nchess.NewSquare(f, r)
			marker := byte(' ')
			switch {
			case inCheck && sq == king:
				marker = '!'
			case marks[sq]:
				marker = '*'
			}
			letter := byte('.')
			if ov.Mode != overlay.ModeBlindfold {
				if l := pieceLetter(board.Piece(sq)); l != 0 {
					letter = l
				}
			}
			b.WriteByte(marker)
			b.WriteByte(letter)
		}
		b.WriteString(" |\n")
	}
	b.WriteString("  +" + strings.Repeat("-", 17) + "+\n")
	if labels {
		b.WriteString("   ")
		for _, f := range files {
			b.WriteString(" " + f.String())
		}
		b.WriteByte('\n')
	}
	b.WriteString(t.playerLine(snap, pov))
	b.WriteString(t.statusLine(snap, ov))

	_, err = io.WriteString(w, b.String())
	return err
}

func (t *Terminal) playerLine(snap livegame.Snapshot, side livegame.Color) string {
	p := snap.Players[side.Index()]
	label := p.Label()
	if p.Rating > 0 {
		label = fmt.Sprintf("%s (%d)", label, p.Rating)
	}
	return fmt.Sprintf("%-24s %8s\n", label, livegame.FormatClock(snap.Clocks[side.Index()]))
}

func (t *Terminal) statusLine(snap livegame.Snapshot, ov overlay.State) string {
	data := map[string]any{
		"Turn":   capitalize(snap.TurnColor),
		"Winner": capitalize(snap.Winner),
	}
	parts := []string{t.cat.RenderOr("status."+snap.StatusName, data, snap.StatusName)}
	if snap.Check && !snap.Status.Ended() {
		parts = append(parts, "check")
	}
	if snap.Spectator {
		parts = append(parts, t.cat.RenderOr("board.spectating", nil, "spectating"))
	}
	if snap.AwaitingOpponent {
		parts = append(parts, t.cat.RenderOr("board.awaiting", nil, "waiting for opponent"))
	}
	if pm := snap.Premove; pm != nil {
		tok, _ := notation.FormatToken(pm.From, pm.To, pm.Promotion)
		parts = append(parts, t.cat.RenderOr("board.premove", map[string]any{"Display": notation.DisplayForm(tok)}, "premove"))
	}
	if ov.Mode == overlay.ModeBlindfold {
		parts = append(parts, t.cat.RenderOr("board.blindfold", nil, "(blindfold)"))
	}
	return strings.Join(parts, " | ") + "\n"
}

func capitalize(s string) string {
	return cases.Title(language.English).String(s)
}
