// Package cli wires the livechess commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/park285/livechess/internal/config"
	"github.com/park285/livechess/internal/obslog"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json"
	EnvFile string
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "livechess",
		Short: "Follow and play live chess games from the terminal",
		Long: `livechess follows a live game stream, keeps the board, clocks and legal moves
in sync with the server, and sends your moves back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if err := config.LoadDotEnv(opts.EnvFile); err != nil {
				return WrapExitError(ExitCommandError, "load env file", err)
			}
			s := obslog.SettingsFromEnv()
			s.Verbose = s.Verbose || opts.Verbose
			s.ConsoleTo = cmd.ErrOrStderr()
			if err := obslog.Init(s); err != nil {
				return WrapExitError(ExitCommandError, "init logger", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file applied before reading configuration")

	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
