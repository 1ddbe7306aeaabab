// Package httpview serves the current game over local HTTP: snapshots, clocks, move
// intents and a websocket feed of state changes.
package httpview

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/park285/livechess/internal/livegame"
	"github.com/park285/livechess/internal/obslog"
)

// EngineSource returns the engine of the open game, or nil before it exists.
type EngineSource func() *livegame.Engine

type Server struct {
	app    *fiber.App
	engine EngineSource
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Server)

func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.logger = l } }

func New(src EngineSource, opts ...Option) *Server {
	s := &Server{engine: src, now: time.Now, logger: obslog.L()}
	for _, opt := range opts {
		opt(s)
	}
	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(s.requireEngine)
	s.app.Get("/snapshot", s.getSnapshot)
	s.app.Get("/clock", s.getClock)
	s.app.Post("/move", s.postMove)
	s.app.Post("/premove", s.postPremove)
	s.app.Delete("/premove", s.deletePremove)
	s.app.Post("/resign", s.postResign)
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(s.feed))
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.logger.Info("httpview_listen", zap.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error { return s.app.Shutdown() }

const engineKey = "engine"

func (s *Server) requireEngine(c *fiber.Ctx) error {
	e := s.engine()
	if e == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "game not open yet")
	}
	c.Locals(engineKey, e)
	return c.Next()
}

func engineOf(c *fiber.Ctx) *livegame.Engine {
	return c.Locals(engineKey).(*livegame.Engine)
}

func (s *Server) getSnapshot(c *fiber.Ctx) error {
	return c.JSON(engineOf(c).Snapshot())
}

type clockView struct {
	White     int64  `json:"white"`
	Black     int64  `json:"black"`
	WhiteText string `json:"whiteText"`
	BlackText string `json:"blackText"`
}

func (s *Server) getClock(c *fiber.Ctx) error {
	cl := engineOf(c).ClockView(s.now())
	return c.JSON(clockView{
		White:     cl[livegame.White.Index()].Milliseconds(),
		Black:     cl[livegame.Black.Index()].Milliseconds(),
		WhiteText: livegame.FormatClock(cl[livegame.White.Index()]),
		BlackText: livegame.FormatClock(cl[livegame.Black.Index()]),
	})
}

func (s *Server) postMove(c *fiber.Ctx) error {
	var in livegame.MoveIntent
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := engineOf(c).SubmitMove(in.From, in.To, in.Promotion); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true})
}

func (s *Server) postPremove(c *fiber.Ctx) error {
	var in livegame.MoveIntent
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := engineOf(c).SetPremove(in.From, in.To, in.Promotion); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true})
}

func (s *Server) deletePremove(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"cancelled": engineOf(c).CancelPremove()})
}

func (s *Server) postResign(c *fiber.Ctx) error {
	if err := engineOf(c).Resign(); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true})
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.logger.Warn("httpview_request_failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, livegame.ErrInvalidSquare):
		return fiber.StatusBadRequest
	case errors.Is(err, livegame.ErrSpectator), errors.Is(err, livegame.ErrNoCommander):
		return fiber.StatusForbidden
	case errors.Is(err, livegame.ErrNotYourTurn), errors.Is(err, livegame.ErrAwaitingOpponent), errors.Is(err, livegame.ErrGameOver):
		return fiber.StatusConflict
	case errors.Is(err, livegame.ErrClosed):
		return fiber.StatusGone
	default:
		return fiber.StatusInternalServerError
	}
}
