package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/park285/livechess/internal/livegame"
	"github.com/park285/livechess/internal/msgcat"
	"github.com/park285/livechess/internal/obslog"
	"github.com/park285/livechess/internal/overlay"
	"github.com/park285/livechess/internal/render"
	"github.com/park285/livechess/internal/speech"
	"github.com/park285/livechess/internal/stream"
)

type ReplayOptions struct {
	*RootOptions
	As    string
	Pace  time.Duration
	Mode  string
	Speak bool
}

func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Play back a recorded game stream",
		Long: `Replay reads a recorded stream (one JSON message per line) through the same
engine used for live games and prints the final board.

Examples:
  livechess replay game.ndjson
  livechess replay game.ndjson --as bob --speak --pace 500ms
  livechess replay game.ndjson --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.As, "as", "", "account id whose side is shown at the bottom")
	cmd.Flags().DurationVar(&opts.Pace, "pace", 0, "delay between recorded messages")
	cmd.Flags().StringVar(&opts.Mode, "mode", "normal", "board mode (normal|blindfold|coordinates)")
	cmd.Flags().BoolVar(&opts.Speak, "speak", false, "print each new move as a spoken phrase")

	return cmd
}

func runReplay(cmd *cobra.Command, opts *ReplayOptions, path string) error {
	mode, ok := overlay.ParseMode(opts.Mode)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown mode %q", opts.Mode))
	}
	cat, err := msgcat.New("")
	if err != nil {
		return WrapExitError(ExitCommandError, "load messages", err)
	}
	out := cmd.OutOrStdout()
	ov := overlay.New(mode)
	setup := []func(*livegame.Engine){func(e *livegame.Engine) { ov.Attach(e) }}
	if opts.Speak && opts.Format == "text" {
		ann := speech.NewAnnouncer(cat, speech.NewWriterSpeaker(out))
		setup = append(setup, func(e *livegame.Engine) { ann.Attach(e) })
	}

	snap, err := playRecording(cmd.Context(), path, opts.As, opts.Pace, setup...)
	if err != nil {
		return err
	}
	if opts.Format == "json" {
		return writeJSON(out, summarize(snap))
	}
	if err := render.NewTerminal(cat).Render(out, snap, ov.State()); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, cat.RenderOr("cli.replay_done", map[string]any{
		"GameID": snap.GameID,
		"Count":  snap.MoveCount,
		"Status": snap.StatusName,
	}, snap.GameID))
	return err
}

// playRecording runs the recording at path to its end and returns the final snapshot.
func playRecording(ctx context.Context, path, user string, pace time.Duration, setup ...func(*livegame.Engine)) (livegame.Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(path) == "" {
		return livegame.Snapshot{}, NewExitError(ExitCommandError, "recording path is required")
	}
	logger := obslog.L()
	tr := stream.NewFileReader(path, stream.WithPace(pace), stream.WithReaderLogger(logger))
	mopts := []stream.ManagerOption{
		stream.WithRedrawInterval(0),
		stream.WithManagerLogger(logger),
		stream.WithEngineOptions(livegame.WithSessionUser(user), livegame.WithLogger(logger)),
	}
	for _, fn := range setup {
		mopts = append(mopts, stream.WithSetup(fn))
	}
	h, err := stream.NewManager(func(string) stream.Transport { return tr }, mopts...).
		Open(ctx, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err != nil {
		return livegame.Snapshot{}, WrapExitError(ExitCommandError, "open recording", err)
	}
	defer h.Close(context.Background())

	select {
	case <-h.Done():
	case <-ctx.Done():
		return livegame.Snapshot{}, ctx.Err()
	}
	if err := tr.Err(); err != nil {
		return livegame.Snapshot{}, WrapExitError(ExitFailure, "read recording", err)
	}
	return h.Engine().Snapshot(), nil
}
