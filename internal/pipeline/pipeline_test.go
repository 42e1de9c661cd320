package pipeline_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillgrove/goshell/internal/gate"
	"github.com/tillgrove/goshell/internal/jobtable"
	"github.com/tillgrove/goshell/internal/pipeline"
	"github.com/tillgrove/goshell/internal/token"
)

func waitFinished(t *testing.T, g *gate.Gate, tab *jobtable.Table, j int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		g.Lock()
		state := tab.State(j)
		g.Unlock()
		if state == jobtable.JobStateFinished {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not finish in time")
}

func TestSpawnSingleStageRedirectsOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")

	g := gate.New()
	tab := jobtable.New(g)
	sp := &pipeline.Spawner{SelfExe: "/bin/true"}

	stages := token.Split(token.Tokenize("echo hello > " + out))
	j, err := sp.Spawn(tab, stages, false, false)
	require.NoError(t, err)

	waitScan(t, g, tab, j)
	waitFinished(t, g, tab, j)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestSpawnTwoStagePipeline(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(in, []byte("banana\napple\ncherry\n"), 0o644))
	out := filepath.Join(dir, "out.txt")

	g := gate.New()
	tab := jobtable.New(g)
	sp := &pipeline.Spawner{SelfExe: "/bin/true"}

	stages := token.Split(token.Tokenize("cat < " + in + " | sort > " + out))
	j, err := sp.Spawn(tab, stages, false, true)
	require.NoError(t, err)

	waitScan(t, g, tab, j)
	waitFinished(t, g, tab, j)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "apple\nbanana\ncherry\n", string(data))
}

// waitScan drives reaping manually, independent of the reaper package, so
// this stays a focused unit test of Spawn's process-group and pipe wiring.
func waitScan(t *testing.T, g *gate.Gate, tab *jobtable.Table, j int) {
	t.Helper()
	g.Lock()
	pids := tab.LivePIDs(j)
	g.Unlock()

	for _, pid := range pids {
		proc, err := os.FindProcess(pid)
		require.NoError(t, err)
		state, err := proc.Wait()
		if err != nil {
			continue
		}
		code := state.ExitCode()
		g.Lock()
		tab.Reap(j, pid, jobtable.ProcStateFinished, code)
		g.Unlock()
	}
}
