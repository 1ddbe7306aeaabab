package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/park285/livechess/internal/livegame"
	"github.com/park285/livechess/internal/msgcat"
	"github.com/park285/livechess/internal/overlay"
	"github.com/park285/livechess/internal/render"
)

type SnapshotOptions struct {
	*RootOptions
	As   string
	PNG  string
	Mode string
}

func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot <file>",
		Short: "Render the final position of a recorded game",
		Long: `Snapshot replays a recording and renders its final position, either as a
text board or as a PNG image.

Examples:
  livechess snapshot game.ndjson
  livechess snapshot game.ndjson --png board.png --as bob --mode coordinates`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.As, "as", "", "account id whose side is shown at the bottom")
	cmd.Flags().StringVar(&opts.PNG, "png", "", "write a PNG image to this path")
	cmd.Flags().StringVar(&opts.Mode, "mode", "normal", "board mode (normal|blindfold|coordinates)")

	return cmd
}

func runSnapshot(cmd *cobra.Command, opts *SnapshotOptions, path string) error {
	mode, ok := overlay.ParseMode(opts.Mode)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown mode %q", opts.Mode))
	}
	cat, err := msgcat.New("")
	if err != nil {
		return WrapExitError(ExitCommandError, "load messages", err)
	}
	ov := overlay.New(mode)
	snap, err := playRecording(cmd.Context(), path, opts.As, 0, func(e *livegame.Engine) { ov.Attach(e) })
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if opts.PNG != "" {
		img, err := render.NewPNG().RenderPNG(cmd.Context(), snap, ov.State())
		if err != nil {
			return WrapExitError(ExitFailure, "render png", err)
		}
		if err := os.WriteFile(opts.PNG, img, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "write png", err)
		}
	}

	if opts.Format == "json" {
		sum := summarize(snap)
		sum.Output = opts.PNG
		return writeJSON(out, sum)
	}
	if opts.PNG != "" {
		_, err = fmt.Fprintln(out, cat.RenderOr("cli.snapshot_saved", map[string]any{"Path": opts.PNG}, opts.PNG))
		return err
	}
	return render.NewTerminal(cat).Render(out, snap, ov.State())
}
