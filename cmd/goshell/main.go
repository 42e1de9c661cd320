package main

import (
	"errors"
	"os"

	"github.com/tillgrove/goshell/internal/commands"
)

func main() {
	if code, handled := commands.ReexecBuiltinStage(); handled {
		os.Exit(code)
	}

	if err := run(); err != nil {
		if code, ok := exitCode(err); ok {
			os.Exit(code)
		}
		os.Exit(1)
	}
}

func run() error {
	root := commands.Root()

	cmd, err := root.ExecuteC()
	if _, ok := exitCode(err); ok {
		// we have a proper exit code from the job-control loop
		return err
	}

	if err != nil {
		root.Println(cmd.UsageString())
		root.PrintErrln(root.ErrPrefix(), err.Error())
	}

	return err
}

func exitCode(err error) (int, bool) {
	var eerr *commands.ExitError
	if errors.As(err, &eerr) {
		return eerr.Code, true
	}
	return 0, false
}
