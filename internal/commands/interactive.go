package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tillgrove/goshell/internal/introspect"
	"github.com/tillgrove/goshell/internal/logging"
	"github.com/tillgrove/goshell/internal/must"
	"github.com/tillgrove/goshell/internal/shell"
)

type interactive struct {
	debug      bool
	socketPath string
}

// Root builds the top-level goshell command: the interactive job-control
// loop from internal/shell, with a best-effort introspection endpoint
// (internal/introspect) running alongside it.
func Root() *cobra.Command {
	var i interactive

	cmd := &cobra.Command{
		Use:   "goshell",
		Short: "A POSIX-style job-control shell",

		SilenceUsage:  true,
		SilenceErrors: true,

		RunE: func(*cobra.Command, []string) error {
			return i.run()
		},
	}

	cmd.Flags().BoolVar(&i.debug, "debug", false, "enable debug logging")
	cmd.Flags().StringVar(&i.socketPath, "introspect-socket", defaultSocketPath(),
		"unix socket path for the health-only introspection endpoint")

	return cmd
}

func (i *interactive) run() error {
	logging.Setup(i.debug)

	// Every failure shell.New can return (stdin isn't a tty, the line
	// editor or own-executable lookup fails) is a tier-1 environmental
	// invariant per spec.md §7: there is no prompt to return to, so this
	// aborts immediately rather than threading the error back through cobra.
	sh, err := shell.New()
	must.Must(err, "initializing job control")

	intro := introspect.Listen(i.socketPath)
	introDone := make(chan struct{})
	go func() {
		defer close(introDone)
		if err := intro.Serve(); err != nil {
			slog.Warn("introspection endpoint stopped", "err", err)
		}
	}()
	defer func() {
		intro.GracefulStop()
		<-introDone
	}()

	sh.Start()
	code := sh.Run()
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

func defaultSocketPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("goshell-%d.sock", os.Getpid()))
}
