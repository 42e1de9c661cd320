package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillgrove/goshell/internal/pipeline"
)

// These tests exercise the branches of ReexecBuiltinStage that return before
// reaching syscall.Exec: actually exec'ing would replace the test binary's
// own image, so the success path (a declined builtin resolving to a real
// external program) is not exercised by these tests.

func TestReexecBuiltinStageNotReexeced(t *testing.T) {
	_, handled := ReexecBuiltinStage()
	assert.False(t, handled, "absent env var must not be treated as a re-exec")
}

func TestReexecBuiltinStageUnknownBuiltin(t *testing.T) {
	t.Setenv(pipeline.ReexecEnv, "not-a-real-builtin")

	code, handled := ReexecBuiltinStage()
	assert.True(t, handled)
	assert.Equal(t, 1, code)
}

func TestReexecBuiltinStageRunsHandlingBuiltin(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { _ = os.Chdir(wd) }()

	t.Setenv(pipeline.ReexecEnv, "cd")
	os.Args = []string{"goshell", dir}

	code, handled := ReexecBuiltinStage()
	assert.True(t, handled)
	assert.Equal(t, 0, code)

	cur, err := os.Getwd()
	require.NoError(t, err)
	realDir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, realDir, cur)
}

func TestReexecBuiltinStageDeclinedBuiltinFailsResolution(t *testing.T) {
	t.Setenv(pipeline.ReexecEnv, "kill")
	t.Setenv("PATH", t.TempDir())
	os.Args = []string{"goshell", "99999"}

	code, handled := ReexecBuiltinStage()
	assert.True(t, handled)
	assert.Equal(t, 1, code)
}
