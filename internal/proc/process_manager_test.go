//go:build unix

package proc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stack-keeper/internal/models"
)

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "init.log")

	err := RunCommand("init", models.CommandSpecification{
		Command: "sh",
		Args:    []string{"-c", "echo seeded $SEED"},
		Env:     map[string]string{"SEED": "ok"},
	}, logPath)
	require.NoError(t, err)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "seeded ok\n", string(data))

	err = RunCommand("init", models.CommandSpecification{Command: "sh", Args: []string{"-c", "exit 3"}}, "")
	assert.Error(t, err)

	assert.Error(t, RunCommand("init", models.CommandSpecification{}, ""))
}

func TestProcessInstance_LaunchAliveTerminate(t *testing.T) {
	dir := t.TempDir()
	pi := NewProcessInstance("sleeper", models.CommandSpecification{
		Command: "sleep",
		Args:    []string{"30"},
	}, filepath.Join(dir, "sleeper.log"))

	assert.False(t, pi.Alive())
	require.NoError(t, pi.Launch())
	assert.Greater(t, pi.Pid(), 0)
	assert.True(t, pi.Alive())
	assert.Error(t, pi.Launch(), "a handle launches once")

	require.NoError(t, pi.Terminate())
	assert.Eventually(t, func() bool { return !pi.Alive() }, 5*time.Second, 50*time.Millisecond)
}

func TestProcessInstance_ExitIsObserved(t *testing.T) {
	pi := NewProcessInstance("short", models.CommandSpecification{Command: "true"}, "")
	require.NoError(t, pi.Launch())
	assert.Eventually(t, func() bool { return !pi.Alive() }, 5*time.Second, 20*time.Millisecond)
}

func TestEnvList(t *testing.T) {
	assert.Nil(t, EnvList(nil))
	assert.Equal(t, []string{"A=1", "B=2"}, EnvList(map[string]string{"B": "2", "A": "1"}))
}
