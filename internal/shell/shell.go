// Package shell implements the top-level evaluator and foreground monitor
// from spec.md §4.4/§4.7, and the startup/shutdown sequence from
// original_source/jobs.c's initjobs/shutdownjobs.
package shell

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/chzyer/readline"

	"github.com/tillgrove/goshell/internal/builtin"
	"github.com/tillgrove/goshell/internal/gate"
	"github.com/tillgrove/goshell/internal/jobtable"
	"github.com/tillgrove/goshell/internal/must"
	"github.com/tillgrove/goshell/internal/pipeline"
	"github.com/tillgrove/goshell/internal/reaper"
	"github.com/tillgrove/goshell/internal/redir"
	"github.com/tillgrove/goshell/internal/token"
)

const (
	sigCont = syscall.SIGCONT
	sigTerm = syscall.SIGTERM
)

// ttyController is the subset of *tty that Shell drives, factored out so
// tests can exercise the evaluator without a real controlling terminal.
type ttyController interface {
	setForeground(pgid int) error
	reclaim() error
	close() error
}

// Shell is one running instance of the interactive job-control loop.
type Shell struct {
	table   *jobtable.Table
	gate    *gate.Gate
	reaper  *reaper.Reaper
	spawner *pipeline.Spawner
	tty     ttyController
	sig     groupSignaler
	rl      *readline.Instance

	out io.Writer
}

// New constructs a Shell bound to the current controlling terminal. It
// fails with a tier-1 error (spec.md §7) if stdin is not a terminal.
func New() (*Shell, error) {
	t, err := openTTY()
	if err != nil {
		return nil, err
	}
	if err := t.reclaim(); err != nil {
		return nil, fmt.Errorf("taking foreground control of terminal: %w", err)
	}

	selfExe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolving own executable path: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{Prompt: "# "})
	if err != nil {
		return nil, fmt.Errorf("initializing line editor: %w", err)
	}

	g := gate.New()
	tab := jobtable.New(g)

	return &Shell{
		table:   tab,
		gate:    g,
		reaper:  reaper.New(tab),
		spawner: &pipeline.Spawner{SelfExe: selfExe},
		tty:     t,
		rl:      rl,
		out:     os.Stdout,
	}, nil
}

// Start begins reaping background children. Call once before Run.
func (s *Shell) Start() {
	s.reaper.Start()
}

// Run drives the read-eval-print loop until the user quits or stdin closes,
// and returns the process exit code.
func (s *Shell) Run() int {
	exitCode := 0
	for {
		line, err := s.rl.Readline()
		switch err {
		case readline.ErrInterrupt:
			// Ctrl-C at the prompt: abort the current line and redisplay it,
			// the Go-native substitute for sigint_handler's siglongjmp back
			// to the top of the read loop.
			continue
		case io.EOF:
			s.shutdown()
			return exitCode
		case nil:
		default:
			slog.Error("reading input", "err", err)
			s.shutdown()
			return 1
		}

		code, quit := s.Eval(line)
		exitCode = code
		if quit {
			s.shutdown()
			return exitCode
		}

		// Report and destroy background jobs that finished during this
		// command, the same watchjobs(FINISHED) call original_source/shell.c
		// makes after every eval.
		s.gate.Lock()
		s.table.WatchJobs(jobtable.Which(jobtable.JobStateFinished), func(line string) { fmt.Fprint(s.out, line) })
		s.gate.Unlock()
	}
}

// Eval evaluates one command line. It returns the line's exit code and
// whether the "quit" builtin was invoked.
func (s *Shell) Eval(line string) (code int, quit bool) {
	tokens := token.Tokenize(line)
	if err := token.ValidateBackground(tokens); err != nil {
		fmt.Fprintln(s.out, err)
		return 1, false
	}

	bg := false
	if n := len(tokens); n > 0 && tokens[n-1].Kind == token.Background {
		bg = true
		tokens = tokens[:n-1]
	}
	if len(tokens) == 0 {
		return 0, false
	}

	stages := token.Split(tokens)
	for _, stage := range stages {
		if len(stage) == 0 {
			fmt.Fprintln(s.out, "syntax error: empty pipeline stage")
			return 1, false
		}
	}

	if len(stages) == 1 {
		return s.evalSingle(stages[0], bg)
	}
	return s.evalExternal(stages, bg, true), false
}

func (s *Shell) evalSingle(stage []token.Token, bg bool) (code int, quit bool) {
	res, err := redir.Apply(stage)
	if err != nil {
		fmt.Fprintln(s.out, err)
		return 1, false
	}
	if len(res.Tokens) == 0 {
		res.Close()
		return 0, false
	}

	name := res.Tokens[0].Text
	if fn, ok := builtin.Lookup(name); ok {
		requestedQuit := false
		ctx := s.builtinContext(&requestedQuit)
		args := wordsOf(res.Tokens[1:])
		rc := fn(ctx, args)
		res.Close()
		if rc != builtin.NotHandled {
			return rc, requestedQuit
		}
		// builtin declined (e.g. "kill" without a "%n" argument): fall
		// through and resolve the original stage as an external command.
	} else {
		res.Close()
	}

	return s.evalExternal([][]token.Token{stage}, bg, false), false
}

func (s *Shell) builtinContext(quitRequested *bool) *builtin.Context {
	return &builtin.Context{
		Table:    s.table,
		Signaler: s.sig,
		Monitor:  func() { s.monitorForeground() },
		Stdout:   s.out,
		Quit:     func(int) { *quitRequested = true },
	}
}

// evalExternal spawns stages as real processes. pipelineMode is forwarded to
// Spawn: a genuine multi-stage pipeline re-checks each stage's command word
// against the built-in table in its re-exec'd child, while the single-command
// fallback after a declined built-in does not (do_job never re-checks).
func (s *Shell) evalExternal(stages [][]token.Token, bg bool, pipelineMode bool) int {
	job, err := s.spawner.Spawn(s.table, stages, bg, pipelineMode)
	if err != nil {
		// A broken environment (pipe/fork failure) is a tier-1 condition
		// per spec.md §7, distinct from an ordinary unresolved command
		// name: the latter returns to the prompt, the former can't.
		if errors.Is(err, pipeline.ErrEnvironment) {
			must.Must(err, "spawning job")
		}
		fmt.Fprintln(s.out, err)
		return 1
	}

	if bg {
		s.gate.Lock()
		cmd := s.table.Command(job)
		s.gate.Unlock()
		fmt.Fprintf(s.out, "[%d] running '%s'\n", job, cmd)
		return 0
	}

	return s.monitorForeground()
}

// monitorForeground implements spec.md §4.7/original_source/jobs.c's
// monitorjob: transfer the terminal to the foreground job's process group,
// wait for it to stop or finish, and reclaim the terminal before returning.
func (s *Shell) monitorForeground() int {
	s.gate.Lock()
	pgid := s.table.PGID(jobtable.FG)
	s.gate.Unlock()

	must.Must(s.tty.setForeground(pgid), "transferring terminal to foreground job")

	exitCode := 0
	s.gate.Lock()
	for done := false; !done; {
		switch s.table.State(jobtable.FG) {
		case jobtable.JobStateStopped:
			bg := s.table.ParkStopped()
			fmt.Fprintf(s.out, "[%d] stopped (%s)\n", bg, s.table.Command(bg))
			done = true
		case jobtable.JobStateFinished:
			exitCode = s.table.ExitCode(jobtable.FG)
			done = true
		default:
			s.gate.Wait()
		}
	}
	s.gate.Unlock()

	must.Must(s.tty.reclaim(), "reclaiming terminal from foreground job")
	return exitCode
}

// shutdown implements original_source/jobs.c's shutdownjobs, with the fix
// spec.md's own suggested resolution to the shutdown-drain race applies:
// instead of one blind Sigsuspend per job (which can miss a wakeup that
// arrives before the wait begins), each job is driven to FINISHED by
// checking its state under the gate and looping on gate.Wait until it is.
func (s *Shell) shutdown() {
	s.gate.Lock()
	for _, j := range s.table.OccupiedJobs() {
		if s.table.State(j) == jobtable.JobStateStopped {
			s.table.ResumeJob(j, true, s.sig, int(sigCont))
		}
		s.table.KillJob(j, s.sig, int(sigTerm))

		for s.table.State(j) != jobtable.JobStateFinished {
			s.gate.Wait()
		}
	}
	s.table.WatchJobs(jobtable.All, func(line string) { fmt.Fprint(s.out, line) })
	s.gate.Unlock()

	s.reaper.Stop()
	_ = s.rl.Close()
	if err := s.tty.close(); err != nil {
		slog.Error("closing terminal descriptor", "err", err)
	}
}

func wordsOf(tokens []token.Token) []string {
	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = t.Text
	}
	return words
}
