// Package resolve implements the external command resolver from spec.md
// §4.8, grounded on original_source/command.c's external_command: when argv0
// contains no '/', each ':'-separated component of $PATH is tried in turn,
// skipping empty components rather than treating them as the current
// directory (as a POSIX shell would). When argv0 does contain a '/', it is
// used exactly as given.
package resolve

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotFound is returned when argv0 could not be resolved to an executable
// file anywhere on $PATH.
var ErrNotFound = errors.New("command not found")

// Lookup resolves argv0 to the path that should be passed to exec, per
// spec.md §4.8's search order. A failed lookup's error is prefixed with
// argv0, matching original_source/command.c's external_command:
// msg("%s: %s\n", argv[0], strerror(errno)).
func Lookup(argv0 string) (string, error) {
	if strings.Contains(argv0, "/") {
		return argv0, nil
	}

	path := os.Getenv("PATH")
	for _, dir := range strings.Split(path, ":") {
		if dir == "" {
			continue
		}
		candidate := dir + "/" + argv0
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%s: %w", argv0, ErrNotFound)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}
