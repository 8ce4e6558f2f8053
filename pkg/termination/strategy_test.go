package termination

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
	"github.com/core-tools/hsu-scheduler/pkg/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exitedTarget is a process that already terminated
type exitedTarget struct {
	killed bool
}

func (e *exitedTarget) PID() int      { return 4242 }
func (e *exitedTarget) Running() bool { return false }
func (e *exitedTarget) Kill() error {
	e.killed = true
	return nil
}

func TestByName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  string
		shouldErr bool
	}{
		{name: "default", input: "", expected: StrategyConsoleSignal},
		{name: "console_signal", input: "console-signal", expected: StrategyConsoleSignal},
		{name: "window_close_mixed_case", input: " Window-Close ", expected: StrategyWindowClose},
		{name: "kill", input: "kill", expected: StrategyKill},
		{name: "unknown", input: "sigquit", shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategy, err := ByName(tt.input)
			if tt.shouldErr {
				assert.True(t, errors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, strategy.Name())
		})
	}
}

func TestCreateLaunchSpec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "start.bat")
	require.NoError(t, os.WriteFile(path, []byte("echo\n"), 0755))

	desc, err := process.NewDescriptor(process.DescriptorConfig{
		Name:        "valheim",
		Path:        path,
		Args:        []string{"-public", "1"},
		Environment: []string{"A=1"},
	})
	require.NoError(t, err)

	console := NewConsoleSignal().CreateLaunchSpec(desc)
	assert.Equal(t, path, console.Path)
	assert.Equal(t, []string{"-public", "1"}, console.Args)
	assert.Equal(t, dir, console.Dir)
	assert.Equal(t, []string{"A=1"}, console.Environment)
	assert.True(t, console.HideWindow)
	assert.False(t, console.NewConsole)
	assert.True(t, console.NewProcessGroup)

	window := NewWindowClose().CreateLaunchSpec(desc)
	assert.False(t, window.HideWindow)
	assert.True(t, window.NewConsole)
}

func TestStopOperations_ExitedTarget(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			strategy, err := ByName(name)
			require.NoError(t, err)

			target := &exitedTarget{}
			assert.NoError(t, strategy.RequestGracefulStop(target))
			assert.NoError(t, strategy.ForceKill(target))
			assert.False(t, target.killed)
		})
	}
}
