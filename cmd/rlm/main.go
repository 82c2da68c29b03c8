// rlm CLI entry point.
package main

import (
	"os"

	"github.com/vmlinuzx/rlmcore/internal/cli"
	"github.com/vmlinuzx/rlmcore/pkg/sandbox"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == sandbox.WorkerArg {
		if err := sandbox.RunWorker(os.Stdin, os.Stdout); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}

	app := cli.New(os.Stdout, os.Stderr)
	os.Exit(app.Run(os.Args[1:]))
}
