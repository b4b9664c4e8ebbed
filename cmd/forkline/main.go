// Command forkline is the CLI entrypoint: forkline diff, runs, show,
// and record demo.
package main

import (
	"fmt"
	"os"

	"github.com/forkline/forkline/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
