package httpview

import (
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/park285/livechess/internal/livegame"
)

// feed sends the current snapshot, then one per state change until the client leaves.
// A slow client only ever gets the newest pending snapshot.
func (s *Server) feed(c *websocket.Conn) {
	e, _ := c.Locals(engineKey).(*livegame.Engine)
	if e == nil {
		return
	}
	updates := make(chan livegame.Snapshot, 1)
	id := e.Events().OnStateChange(func(snap livegame.Snapshot) {
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- snap:
		default:
		}
	})
	defer e.Events().RemoveStateChange(id)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := c.WriteJSON(e.Snapshot()); err != nil {
		return
	}
	for {
		select {
		case <-gone:
			return
		case snap := <-updates:
			if err := c.WriteJSON(snap); err != nil {
				s.logger.Debug("httpview_feed_closed", zap.Error(err))
				return
			}
		}
	}
}
