package main

import (
	"fmt"
	"os"

	"github.com/park285/livechess/internal/cli"
	"github.com/park285/livechess/internal/obslog"
)

func main() {
	err := cli.NewRootCommand().Execute()
	_ = obslog.L().Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "livechess:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
