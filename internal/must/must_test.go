package must_test

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillgrove/goshell/internal/must"
)

func TestMustDoesNothingOnSuccess(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() { must.Must(nil, "unreachable") })
}

// TestMustExitsOnError re-execs this test binary in a subprocess so the
// os.Exit(1) path can be observed without killing the test runner itself,
// the same GO_TEST_MODE re-exec shape the teacher's pkg/worker_test.go uses.
func TestMustExitsOnError(t *testing.T) {
	if os.Getenv("GO_TEST_MODE") == "must_child" {
		must.Must(errors.New("boom"), "fatal in child")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestMustExitsOnError")
	cmd.Env = append(os.Environ(), "GO_TEST_MODE=must_child")
	out, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), fmt.Sprintf("output: %s", out))
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Contains(t, string(out), "fatal in child")
}
