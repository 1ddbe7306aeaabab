package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/park285/livechess/internal/archive"
	"github.com/park285/livechess/internal/command"
	"github.com/park285/livechess/internal/config"
	"github.com/park285/livechess/internal/mirror"
	"github.com/park285/livechess/internal/msgcat"
)

type CheckOptions struct {
	*RootOptions
	Timeout time.Duration
}

type checkResult struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify configuration and backing services",
		Long: `Check loads the configuration and checks the board API account endpoint,
plus Redis and Postgres when they are configured.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts)
		},
	}
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "timeout for each check")
	return cmd
}

func runCheck(cmd *cobra.Command, opts *CheckOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	var results []checkResult
	add := func(name string, err error) {
		r := checkResult{Name: name, OK: err == nil}
		if err != nil {
			r.Error = err.Error()
		}
		results = append(results, r)
	}

	cfg, err := config.Load()
	add("config", err)
	if err == nil {
		add("account", withTimeout(ctx, opts.Timeout, func(ctx context.Context) error {
			c := command.NewClient(cfg.BaseURL, command.WithHeaderProvider(cfg.AuthHeaders), command.WithRetry(1))
			_, err := c.Account(ctx)
			return err
		}))
		if cfg.RedisURL != "" {
			add("redis", withTimeout(ctx, opts.Timeout, func(ctx context.Context) error {
				m, err := mirror.Open(ctx, cfg.RedisURL, cfg.MirrorTTL)
				if err != nil {
					return err
				}
				return m.Close()
			}))
		}
		if cfg.DatabaseURL != "" {
			add("postgres", withTimeout(ctx, opts.Timeout, func(context.Context) error {
				repo, err := archive.NewRepository(cfg.DatabaseURL)
				if err != nil {
					return err
				}
				return repo.Close()
			}))
		}
		_, err = msgcat.New(cfg.CatalogDir)
		add("messages", err)
	}

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		if err := writeJSON(out, results); err != nil {
			return err
		}
	} else {
		cat := msgcat.Default()
		for _, r := range results {
			if r.OK {
				fmt.Fprintln(out, cat.RenderOr("cli.check_ok", map[string]any{"Name": r.Name}, r.Name+": ok"))
				continue
			}
			fmt.Fprintln(out, cat.RenderOr("cli.check_fail", map[string]any{"Name": r.Name, "Err": r.Error}, r.Name+": "+r.Error))
		}
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d check(s) failed", failed))
	}
	return nil
}

func withTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(pctx)
}
