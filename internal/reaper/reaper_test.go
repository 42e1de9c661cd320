package reaper_test

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillgrove/goshell/internal/gate"
	"github.com/tillgrove/goshell/internal/jobtable"
	"github.com/tillgrove/goshell/internal/reaper"
)

// waitForState polls (with the gate released between polls) until f's jobs
// reach the expected state or the deadline passes. Real process reaping is
// asynchronous by nature, so the test observes it rather than assuming a
// fixed number of scan cycles.
func waitForState(t *testing.T, g *gate.Gate, tab *jobtable.Table, j int, want jobtable.JobState) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		g.Lock()
		got := tab.State(j)
		g.Unlock()
		if got == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %d did not reach state %s in time", j, want)
}

func startJob(t *testing.T, tab *jobtable.Table, g *gate.Gate, argv []string) (*exec.Cmd, int) {
	t.Helper()
	cmd := exec.Command(argv[0], argv[1:]...)
	require.NoError(t, cmd.Start())

	g.Lock()
	j := tab.AddJob(cmd.Process.Pid, true)
	tab.AddProc(j, cmd.Process.Pid, argv)
	g.Unlock()

	return cmd, j
}

func TestReaperReapsExitedChild(t *testing.T) {
	g := gate.New()
	tab := jobtable.New(g)
	r := reaper.New(tab)
	r.Start()
	defer r.Stop()

	cmd, j := startJob(t, tab, g, []string{"sh", "-c", "exit 7"})
	defer func() { _ = cmd.Wait() }()

	waitForState(t, g, tab, j, jobtable.JobStateFinished)

	g.Lock()
	code := tab.Command(j) // still readable before WatchJobs frees it
	g.Unlock()
	assert.Contains(t, code, "exit 7")
}

func TestReaperObservesStopAndContinue(t *testing.T) {
	g := gate.New()
	tab := jobtable.New(g)
	r := reaper.New(tab)
	r.Start()
	defer r.Stop()

	cmd := exec.Command("sh", "-c", "kill -STOP $$; sleep 5")
	require.NoError(t, cmd.Start())
	defer func() { _ = cmd.Process.Kill(); _ = cmd.Wait() }()

	g.Lock()
	j := tab.AddJob(cmd.Process.Pid, true)
	tab.AddProc(j, cmd.Process.Pid, []string{"sh"})
	g.Unlock()

	waitForState(t, g, tab, j, jobtable.JobStateStopped)

	require.NoError(t, cmd.Process.Signal(syscall.SIGCONT))
	waitForState(t, g, tab, j, jobtable.JobStateRunning)
}
