// Package redir implements the redirection builder from spec.md §4.5: it
// consumes '<' and '>' tokens and their filename operands out of a token
// stream, opening the named files and leaving the remaining command tokens
// behind, exactly as original_source/shell.c's do_redir does.
package redir

import (
	"fmt"
	"os"

	"github.com/tillgrove/goshell/internal/token"
)

// permMode matches original_source/shell.c's literal
// S_IRUSR|S_IWUSR|S_IRGRP|S_IROTH (0644).
const permMode = 0o644

// Result holds the files opened for redirection and the token stream with
// the redirection operators and their filenames removed.
type Result struct {
	Tokens []token.Token
	Stdin  *os.File // nil if no '<' was present
	Stdout *os.File // nil if no '>' was present
}

// Close closes whichever of Stdin/Stdout were opened. It is used on the
// error and built-in paths, and after a spawned process has started, since
// the child then holds its own copies of the descriptors.
func (r *Result) Close() {
	if r.Stdin != nil {
		_ = r.Stdin.Close()
	}
	if r.Stdout != nil {
		_ = r.Stdout.Close()
	}
}

// Apply walks tokens once, opening a file for every '<' or '>' operator it
// finds and removing both the operator and its filename from the returned
// token stream. A later redirection of the same direction closes and
// replaces the earlier one, matching do_redir's "if (*fd != -1) close(*fd)".
func Apply(tokens []token.Token) (*Result, error) {
	res := &Result{}
	kept := make([]token.Token, 0, len(tokens))

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.Kind != token.Input && tok.Kind != token.Output {
			kept = append(kept, tok)
			continue
		}

		if i+1 >= len(tokens) || !tokens[i+1].StringP() {
			res.Close()
			return nil, fmt.Errorf("redir: %s requires a filename", tok)
		}
		filename := tokens[i+1].Text
		i++ // consume the filename token too

		f, err := openRedir(tok.Kind, filename)
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("redir: %s: %w", filename, err)
		}

		if tok.Kind == token.Input {
			if res.Stdin != nil {
				_ = res.Stdin.Close()
			}
			res.Stdin = f
		} else {
			if res.Stdout != nil {
				_ = res.Stdout.Close()
			}
			res.Stdout = f
		}
	}

	res.Tokens = kept
	return res, nil
}

func openRedir(kind token.Kind, filename string) (*os.File, error) {
	if kind == token.Input {
		return os.OpenFile(filename, os.O_RDONLY, 0)
	}
	return os.OpenFile(filename, os.O_WRONLY|os.O_CREATE, permMode)
}
