package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/park285/livechess/internal/archive"
	"github.com/park285/livechess/internal/command"
	"github.com/park285/livechess/internal/config"
	"github.com/park285/livechess/internal/httpview"
	"github.com/park285/livechess/internal/livegame"
	"github.com/park285/livechess/internal/mirror"
	"github.com/park285/livechess/internal/msgcat"
	"github.com/park285/livechess/internal/obslog"
	"github.com/park285/livechess/internal/overlay"
	"github.com/park285/livechess/internal/render"
	"github.com/park285/livechess/internal/speech"
	"github.com/park285/livechess/internal/stream"
)

type WatchOptions struct {
	*RootOptions
	Mode        string
	Speak       bool
	HTTPAddr    string
	OpenTimeout time.Duration
}

func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <gameId>",
		Short: "Follow a live game and play your moves",
		Long: `Watch opens the game stream for <gameId> and redraws the board on every
change. When LIVE_HTTP_ADDR (or --http) is set, moves can be sent through the
local HTTP view.

Examples:
  livechess watch abcd1234
  livechess watch abcd1234 --mode blindfold --speak
  livechess watch abcd1234 --http 127.0.0.1:8089`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "normal", "board mode (normal|blindfold|coordinates)")
	cmd.Flags().BoolVar(&opts.Speak, "speak", false, "announce new moves on stderr")
	cmd.Flags().StringVar(&opts.HTTPAddr, "http", "", "serve the local HTTP view on this address")
	cmd.Flags().DurationVar(&opts.OpenTimeout, "open-timeout", 15*time.Second, "time allowed for the first full state")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts *WatchOptions, gameID string) error {
	mode, ok := overlay.ParseMode(opts.Mode)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown mode %q", opts.Mode))
	}
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "config", err)
	}
	if opts.HTTPAddr != "" {
		cfg.HTTPAddr = opts.HTTPAddr
	}
	cat, err := msgcat.New(cfg.CatalogDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "load messages", err)
	}
	logger := obslog.L().With(zap.String("game_id", gameID))

	client := command.NewClient(cfg.BaseURL, command.WithHeaderProvider(cfg.AuthHeaders))
	user := cfg.UserID
	if user == "" && cfg.APIToken != "" {
		actx, cancel := context.WithTimeout(ctx, 5*time.Second)
		acc, err := client.Account(actx)
		cancel()
		if err != nil {
			logger.Warn("account_lookup_failed", zap.Error(err))
		} else {
			user = acc.ID
		}
	}

	var (
		tr stream.Transport
		fw command.FrameWriter
	)
	if isWebSocketURL(cfg.StreamURLFor(gameID)) {
		ws := stream.NewWebSocket(cfg.StreamURLFor,
			stream.WithHeaderProvider(cfg.AuthHeaders),
			stream.WithWSLogger(logger))
		ws.OnStateChange(func(s stream.ConnState) { logger.Info("stream_state", zap.String("state", string(s))) })
		tr, fw = ws, ws
	} else {
		tr = stream.NewHTTPStream(cfg.StreamURLFor,
			stream.WithStreamHeaders(cfg.AuthHeaders),
			stream.WithStreamLogger(logger))
	}
	commander := command.NewCommander(cfg.CommandMode, cfg.DryRun, client, fw, logger)

	ov := overlay.New(mode)
	screen := &screen{w: cmd.OutOrStdout(), term: render.NewTerminal(cat), ov: ov}
	pending := &detachers{}
	setup := []func(*livegame.Engine){
		func(e *livegame.Engine) { ov.Attach(e) },
		screen.attach,
		func(e *livegame.Engine) {
			e.Events().OnError(func(err error) { logger.Warn("live_protocol_error", zap.Error(err)) })
		},
	}
	if opts.Speak {
		ann := speech.NewAnnouncer(cat, speech.NewWriterSpeaker(cmd.ErrOrStderr()))
		setup = append(setup, func(e *livegame.Engine) { ann.Attach(e) })
	}
	if cfg.RedisURL != "" {
		m, err := mirror.Open(ctx, cfg.RedisURL, cfg.MirrorTTL)
		if err != nil {
			return WrapExitError(ExitCommandError, "redis", err)
		}
		defer m.Close()
		setup = append(setup, func(e *livegame.Engine) { pending.add(m.Attach(e)) })
	}
	if cfg.DatabaseURL != "" {
		repo, err := archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			return WrapExitError(ExitCommandError, "database", err)
		}
		defer repo.Close()
		if err := repo.EnsureSchema(ctx); err != nil {
			return WrapExitError(ExitCommandError, "database schema", err)
		}
		arch := archive.NewArchiver(repo)
		setup = append(setup, func(e *livegame.Engine) { pending.add(arch.Attach(e)) })
	}
	// runs after the handle closes and before the stores do
	defer pending.flush()

	mopts := []stream.ManagerOption{
		stream.WithManagerLogger(logger),
		stream.WithRedrawInterval(cfg.RedrawInterval),
		stream.WithEngineOptions(
			livegame.WithSessionUser(user),
			livegame.WithCommander(commander),
			livegame.WithLogger(logger),
			livegame.WithResyncPolicy(livegame.ResyncPolicy{
				RecomputePointOfView: cfg.ResyncRecomputePointOfView,
				ReseedWatermark:      cfg.ResyncReseedWatermark,
			}),
		),
	}
	for _, fn := range setup {
		mopts = append(mopts, stream.WithSetup(fn))
	}

	openCtx, cancel := context.WithTimeout(ctx, opts.OpenTimeout)
	h, err := stream.NewManager(func(string) stream.Transport { return tr }, mopts...).Open(openCtx, gameID)
	cancel()
	if err != nil {
		return WrapExitError(ExitFailure, "open game", err)
	}
	defer h.Close(context.Background())

	if cfg.HTTPAddr != "" {
		srv := httpview.New(h.Engine, httpview.WithLogger(logger))
		go func() {
			if err := srv.Listen(cfg.HTTPAddr); err != nil {
				logger.Error("httpview_stopped", zap.Error(err))
			}
		}()
		defer srv.Shutdown()
	}

	select {
	case <-ctx.Done():
	case <-h.Done():
	}
	return nil
}

func isWebSocketURL(u string) bool {
	u = strings.ToLower(u)
	return strings.HasPrefix(u, "ws://") || strings.HasPrefix(u, "wss://")
}

// detachers collects store attachments whose queued writes are flushed on exit.
type detachers struct {
	mu  sync.Mutex
	fns []func()
}

func (d *detachers) add(fn func()) {
	d.mu.Lock()
	d.fns = append(d.fns, fn)
	d.mu.Unlock()
}

func (d *detachers) flush() {
	d.mu.Lock()
	fns := d.fns
	d.fns = nil
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// screen repaints the terminal board on every redraw signal.
type screen struct {
	mu   sync.Mutex
	w    io.Writer
	term *render.Terminal
	ov   *overlay.Overlay
}

func (s *screen) attach(e *livegame.Engine) {
	e.Events().OnRedraw(func() { s.paint(e.Snapshot()) })
}

func (s *screen) paint(snap livegame.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.w, "\x1b[H\x1b[2J")
	_ = s.term.Render(s.w, snap, s.ov.State())
}
