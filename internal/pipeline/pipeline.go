// Package pipeline implements the multiprocess job spawner from spec.md
// §4.6, grounded on original_source/shell.c's do_stage/do_pipeline: each
// stage of a pipeline is its own child process, all sharing one process
// group, wired stdin-to-stdout through an os.Pipe the way mkpipe/dup2 wire
// file descriptors in the original.
//
// The single-command path (spec.md §4.7, do_job) is a degenerate one-stage
// pipeline and is built on the same Spawn below; internal/shell only takes
// the do_job shortcut of trying a built-in in the shell's own process before
// ever reaching here.
//
// Go can't replicate do_stage's "fork a builtin into the child and exit"
// trick directly: forking the Go runtime without an immediate exec is
// unsafe once more than one OS thread exists. Stages whose command word is a
// builtin are instead run by re-executing the shell binary itself with
// ReexecEnv set, the same technique the teacher's pkg/worker.Config uses
// (ReexecCommand/ReexecEnv) to re-enter itself as a namespaced child.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/tillgrove/goshell/internal/builtin"
	"github.com/tillgrove/goshell/internal/jobtable"
	"github.com/tillgrove/goshell/internal/redir"
	"github.com/tillgrove/goshell/internal/resolve"
	"github.com/tillgrove/goshell/internal/token"
)

// ReexecEnv, when present in a spawned stage's environment, names the
// built-in the re-executed shell binary should run in place of its normal
// interactive loop, then exit with the built-in's status.
const ReexecEnv = "GOSHELL_BUILTIN_STAGE"

// ErrEnvironment wraps a failure of a tier-1 environmental invariant from
// spec.md §7 ("pipe fails", "fork fails") rather than an ordinary,
// recoverable command failure like an unresolved program name. Callers
// should treat an error satisfying errors.Is(err, ErrEnvironment) as fatal
// to the whole shell, not just the current command.
var ErrEnvironment = errors.New("broken environment")

// Spawner holds what Spawn needs to start stages and register them with the
// job table, independent of any particular shell instance.
type Spawner struct {
	SelfExe string // os.Executable() result, for re-exec'd builtin stages
}

// Spawn starts every stage of a pipeline (a single stage for an ordinary
// command), connecting consecutive stages with pipes, placing them all in
// one new process group, and recording them as one job. It returns the job
// number.
//
// pipelineMode selects whether each stage's command word is checked against
// the built-in table before falling back to an external program, per
// do_stage's in-child "if ((exitcode = builtin_command(token)) >= 0) exit
// (...); external_command(token);". A true single command (spec.md §4.7,
// do_job) never takes this path even for a built-in name it declined to
// handle itself: do_job forks straight into external_command, with no
// second built-in check in the child. Callers spawning a genuine multi-stage
// pipeline pass true; the single-command fallback after a declined built-in
// passes false.
func (s *Spawner) Spawn(tab *jobtable.Table, stages [][]token.Token, bg bool, pipelineMode bool) (int, error) {
	cmds := make([]*exec.Cmd, 0, len(stages))
	redirs := make([]*redir.Result, 0, len(stages))

	// prevRead is the read end of the previous stage's pipe, passed to this
	// stage as cmd.Stdin; once this stage's process has started (and so
	// holds its own copy via fd inheritance), the parent's copy is closed so
	// no pipe descriptor outlives the pipeline builder in the parent.
	var prevRead *os.File

	cleanup := func() {
		for _, r := range redirs {
			r.Close()
		}
		if prevRead != nil {
			_ = prevRead.Close()
		}
	}

	pgid := 0
	for i, stage := range stages {
		res, err := redir.Apply(stage)
		if err != nil {
			cleanup()
			return 0, err
		}
		redirs = append(redirs, res)

		if len(res.Tokens) == 0 {
			cleanup()
			return 0, fmt.Errorf("syntax error: empty pipeline stage")
		}

		cmd, err := s.buildStage(res.Tokens, pipelineMode)
		if err != nil {
			cleanup()
			return 0, err
		}

		cmd.Stdin = stageStdin(prevRead, res.Stdin)

		var thisRead *os.File
		isLast := i == len(stages)-1
		if !isLast {
			r, w, err := os.Pipe()
			if err != nil {
				cleanup()
				return 0, fmt.Errorf("%w: creating pipe: %w", ErrEnvironment, err)
			}
			cmd.Stdout = stageStdout(w, res.Stdout)
			thisRead = r
			defer w.Close()
		} else {
			cmd.Stdout = stageStdout(os.Stdout, res.Stdout)
		}
		cmd.Stderr = os.Stderr

		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pgid: pgid}

		if err := cmd.Start(); err != nil {
			if thisRead != nil {
				_ = thisRead.Close()
			}
			cleanup()
			return 0, fmt.Errorf("%w: %s: %w", ErrEnvironment, res.Tokens[0].Text, err)
		}
		if pgid == 0 {
			pgid = cmd.Process.Pid
		}
		cmds = append(cmds, cmd)

		// The child just started now holds its own copy of the previous
		// stage's pipe read end; the parent no longer needs it.
		if prevRead != nil {
			_ = prevRead.Close()
		}
		prevRead = thisRead
	}

	tab.Gate.Lock()
	job := tab.AddJob(pgid, bg)
	for i, cmd := range cmds {
		tab.AddProc(job, cmd.Process.Pid, tokenWords(redirs[i].Tokens))
	}
	tab.Gate.Unlock()

	// The parent no longer needs the redirection file descriptors or
	// intermediate pipe ends; the children hold their own copies.
	for _, r := range redirs {
		r.Close()
	}

	return job, nil
}

// buildStage resolves tokens[0] to either a re-exec'd builtin or an external
// program, returning an unstarted *exec.Cmd.
func (s *Spawner) buildStage(tokens []token.Token, pipelineMode bool) (*exec.Cmd, error) {
	words := tokenWords(tokens)

	if pipelineMode && isBuiltinWord(words[0]) {
		cmd := exec.Command(s.SelfExe, words[1:]...)
		cmd.Env = append(os.Environ(), ReexecEnv+"="+words[0])
		return cmd, nil
	}

	path, err := resolve.Lookup(words[0])
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(path, words[1:]...)
	return cmd, nil
}

func isBuiltinWord(word string) bool {
	_, ok := builtin.Lookup(word)
	return ok
}

func tokenWords(tokens []token.Token) []string {
	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = t.Text
	}
	return words
}

// stageStdin prefers an explicit redirection over the pipe fed from the
// previous stage, matching do_stage's do_redir call overriding whatever
// input/output it was handed.
func stageStdin(piped, redirected *os.File) *os.File {
	if redirected != nil {
		return redirected
	}
	if piped != nil {
		return piped
	}
	return os.Stdin
}

func stageStdout(piped, redirected *os.File) *os.File {
	if redirected != nil {
		return redirected
	}
	return piped
}
