package livegame

import (
	"fmt"
	"time"
)

// ClockView returns the remaining time for white and black as of now. While the game is
// running the side to move has the time elapsed since the last server update deducted,
// clamped at zero. The result is display-only and never stored.
func (e *Engine) ClockView(now time.Time) [2]time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clockLocked(now)
}

func (e *Engine) clockLocked(now time.Time) [2]time.Duration {
	st := e.game.State
	out := st.Remaining
	if st.Status != StatusStarted || st.UpdatedAt.IsZero() {
		return out
	}
	idx := e.pos.SideToMove().Index()
	if elapsed := now.Sub(st.UpdatedAt); elapsed > 0 {
		out[idx] -= elapsed
	}
	if out[idx] < 0 {
		out[idx] = 0
	}
	return out
}

// FormatClock renders a duration as m:ss, or h:mm:ss past an hour. Under ten seconds a
// tenth digit is added.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	case d < 10*time.Second:
		return fmt.Sprintf("%d:%02d.%d", m, s, int(d%time.Second/(100*time.Millisecond)))
	default:
		return fmt.Sprintf("%d:%02d", m, s)
	}
}
