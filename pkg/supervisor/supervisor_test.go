//go:build !windows

package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
	"github.com/core-tools/hsu-scheduler/pkg/logging"
	"github.com/core-tools/hsu-scheduler/pkg/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== CONSTRUCTION =====

func TestNew_Validation(t *testing.T) {
	desc := newDescriptor(t, scriptSleep)

	_, err := New(Options{Finder: &fakeFinder{}}, nil)
	assert.True(t, errors.IsValidationError(err))

	_, err = New(Options{Descriptor: desc}, nil)
	assert.True(t, errors.IsValidationError(err))

	_, err = New(Options{Descriptor: desc, Finder: &fakeFinder{}, StartupGracePeriod: -time.Second}, nil)
	assert.True(t, errors.IsValidationError(err))

	s, err := New(Options{Descriptor: desc, Finder: &fakeFinder{}}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultShutdownGracePeriod, s.options.ShutdownGracePeriod)
	assert.Equal(t, StateIdle, s.State())
}

// ===== START =====

func TestStart_RunsAndRejectsSecondStart(t *testing.T) {
	setup := newTestSupervisor(t, scriptSleep, 5*time.Second)
	s := setup.supervisor
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsSpawnedRunning())
	assert.Equal(t, StateRunning, s.State())
	assert.Greater(t, s.SpawnedPID(), 0)

	err := s.Start(ctx)
	assert.True(t, errors.IsConflictError(err))
	assert.Equal(t, []string{"launch"}, setup.strategy.Calls())
}

func TestStart_LaunchFailure(t *testing.T) {
	// Exists and has the right extension, but is not executable
	path := filepath.Join(t.TempDir(), "server.bat")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0644))
	desc, err := process.NewDescriptor(process.DescriptorConfig{Name: "server", Path: path})
	require.NoError(t, err)

	s, err := New(Options{Descriptor: desc, Finder: &fakeFinder{}}, logging.NewNopLogger())
	require.NoError(t, err)

	err = s.Start(context.Background())
	assert.True(t, errors.IsLaunchError(err))
	assert.Equal(t, StateIdle, s.State())
	assert.False(t, s.IsSpawnedRunning())
}

func TestStart_CancelledDuringStartupGrace(t *testing.T) {
	setup := newTestSupervisor(t, scriptSleep, 5*time.Second)
	s := setup.supervisor
	s.options.StartupGracePeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := s.Start(ctx)
	assert.True(t, errors.IsCancelledError(err))
	assert.True(t, s.IsSpawnedRunning(), "cancelling the grace wait leaves the process running")
	assert.Equal(t, StateRunning, s.State())
}

func TestExitWatcher_ClearsHandle(t *testing.T) {
	setup := newTestSupervisor(t, scriptExitImmediately, 5*time.Second)
	s := setup.supervisor

	startShortLived(t, s)
	require.Eventually(t, func() bool { return s.SpawnedPID() == 0 }, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, StateIdle, s.State())
	assert.False(t, s.IsSpawnedRunning())

	// A fresh start is allowed once the previous instance is gone
	startShortLived(t, s)
	assert.Equal(t, []string{"launch", "launch"}, setup.strategy.Calls())
}

func TestStart_ExitDuringStartupGrace(t *testing.T) {
	setup := newTestSupervisor(t, scriptExitWithCode, 5*time.Second)
	s := setup.supervisor
	s.options.StartupGracePeriod = 5 * time.Second

	started := time.Now()
	err := s.Start(context.Background())
	assert.Less(t, time.Since(started), 5*time.Second, "an exit ends the grace period early")

	require.True(t, errors.IsProcessError(err), "%v", err)
	assert.False(t, errors.IsLaunchError(err))
	var domainErr *errors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, 3, domainErr.Context["exit_code"])

	require.Eventually(t, func() bool { return s.State() == StateIdle }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, s.IsSpawnedRunning())
	assert.Equal(t, []string{"launch"}, setup.strategy.Calls())
}

// ===== STOP SPAWNED =====

func TestStopSpawned_NothingSpawned(t *testing.T) {
	setup := newTestSupervisor(t, scriptSleep, 5*time.Second)

	assert.NoError(t, setup.supervisor.StopSpawned(context.Background()))
	assert.Empty(t, setup.strategy.Calls())
}

func TestStopSpawned_ExitedHandleIsNotForceKilled(t *testing.T) {
	setup := newTestSupervisor(t, scriptExitImmediately, 5*time.Second)
	s := setup.supervisor

	startShortLived(t, s)
	require.Eventually(t, func() bool { return !s.IsSpawnedRunning() }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.StopSpawned(context.Background()))
	assert.Equal(t, []string{"launch"}, setup.strategy.Calls())
	assert.Equal(t, StateIdle, s.State())
}

func TestStopSpawned_Graceful(t *testing.T) {
	setup := newTestSupervisor(t, scriptSleep, 10*time.Second)
	s := setup.supervisor

	require.NoError(t, s.Start(context.Background()))

	started := time.Now()
	require.NoError(t, s.StopSpawned(context.Background()))

	assert.Less(t, time.Since(started), 5*time.Second, "stop returns as soon as the process exits")
	assert.Equal(t, []string{"launch", "graceful"}, setup.strategy.Calls())
	assert.False(t, s.IsSpawnedRunning())
	assert.Equal(t, StateIdle, s.State())
}

func TestStopSpawned_ForceKillsAfterGracePeriod(t *testing.T) {
	setup := newTestSupervisor(t, scriptIgnoreInterrupt, 300*time.Millisecond)
	s := setup.supervisor

	require.NoError(t, s.Start(context.Background()))
	pid := s.SpawnedPID()

	require.NoError(t, s.StopSpawned(context.Background()))

	assert.Equal(t, []string{"launch", "graceful", "kill"}, setup.strategy.Calls())
	assert.False(t, s.IsSpawnedRunning())
	running, err := process.IsProcessRunning(pid)
	require.NoError(t, err)
	assert.False(t, running)
}

func TestStopSpawned_CancelledStillKills(t *testing.T) {
	setup := newTestSupervisor(t, scriptIgnoreInterrupt, time.Minute)
	s := setup.supervisor

	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := s.StopSpawned(ctx)
	assert.True(t, errors.IsCancelledError(err))
	assert.Equal(t, []string{"launch", "graceful", "kill"}, setup.strategy.Calls())
	assert.False(t, s.IsSpawnedRunning())
	assert.Equal(t, StateIdle, s.State())
}

// ===== RESTART =====

func TestRestart_StopsThenStarts(t *testing.T) {
	setup := newTestSupervisor(t, scriptSleep, 5*time.Second)
	s := setup.supervisor
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	firstPID := s.SpawnedPID()

	require.NoError(t, s.Restart(ctx))

	assert.Equal(t, []string{"launch", "graceful", "launch"}, setup.strategy.Calls())
	assert.True(t, s.IsSpawnedRunning())
	assert.NotEqual(t, firstPID, s.SpawnedPID())
}

func TestRestart_StopFailureAborts(t *testing.T) {
	setup := newTestSupervisor(t, scriptIgnoreInterrupt, 300*time.Millisecond)
	s := setup.supervisor
	setup.strategy.killErr = errors.NewProcessError("failed to force kill process", nil)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))

	err := s.Restart(ctx)
	assert.True(t, errors.IsProcessError(err), "%v", err)
	assert.False(t, errors.IsLaunchError(err))
	assert.Equal(t, []string{"launch", "graceful", "kill"}, setup.strategy.Calls())
	assert.False(t, s.IsSpawnedRunning())
}

func TestRestart_FromIdleStarts(t *testing.T) {
	setup := newTestSupervisor(t, scriptSleep, 5*time.Second)

	require.NoError(t, setup.supervisor.Restart(context.Background()))
	assert.Equal(t, []string{"launch"}, setup.strategy.Calls())
	assert.True(t, setup.supervisor.IsSpawnedRunning())
}

// ===== DISCOVERY =====

func TestIsExternalRunning(t *testing.T) {
	setup := newTestSupervisor(t, scriptSleep, 5*time.Second)
	s := setup.supervisor
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	own := pidTarget{pid: s.SpawnedPID()}

	setup.finder.instances = func() []process.Target { return []process.Target{own} }
	assert.False(t, s.IsExternalRunning(ctx), "own instance is not external")

	other := spawnIndependent(t, scriptSleep)
	setup.finder.instances = func() []process.Target { return []process.Target{own, other} }
	assert.True(t, s.IsExternalRunning(ctx))
}

func TestIsExternalRunning_DiscoveryFailure(t *testing.T) {
	setup := newTestSupervisor(t, scriptSleep, 5*time.Second)
	setup.finder.err = errors.NewDiscoveryError("access denied", nil)

	assert.False(t, setup.supervisor.IsExternalRunning(context.Background()))
}

// ===== STOP ALL =====

func TestStopAll_GracefulAndForced(t *testing.T) {
	setup := newTestSupervisor(t, scriptSleep, 500*time.Millisecond)
	s := setup.supervisor

	polite := spawnIndependent(t, scriptSleep)
	stubborn := spawnIndependent(t, scriptIgnoreInterrupt)
	setup.finder.instances = func() []process.Target { return []process.Target{polite, stubborn} }

	require.NoError(t, s.StopAll(context.Background()))

	for _, h := range []*process.Handle{polite, stubborn} {
		select {
		case <-h.Done():
		case <-time.After(5 * time.Second):
			t.Fatalf("PID %d survived StopAll", h.PID())
		}
	}
	assert.Equal(t, []string{"graceful", "graceful", "kill"}, setup.strategy.Calls())
}

func TestStopAll_NoInstances(t *testing.T) {
	setup := newTestSupervisor(t, scriptSleep, 5*time.Second)

	assert.NoError(t, setup.supervisor.StopAll(context.Background()))
	assert.Empty(t, setup.strategy.Calls())
}

func TestStopAll_DiscoveryFailureIsAbsorbed(t *testing.T) {
	setup := newTestSupervisor(t, scriptSleep, 5*time.Second)
	setup.finder.err = fmt.Errorf("enumeration failed")

	assert.NoError(t, setup.supervisor.StopAll(context.Background()))
}

func TestStopAll_CancelledStillKills(t *testing.T) {
	setup := newTestSupervisor(t, scriptSleep, time.Minute)
	stubborn := spawnIndependent(t, scriptIgnoreInterrupt)
	setup.finder.instances = func() []process.Target { return []process.Target{stubborn} }

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := setup.supervisor.StopAll(ctx)
	assert.True(t, errors.IsCancelledError(err))
	assert.Equal(t, []string{"graceful", "kill"}, setup.strategy.Calls())

	select {
	case <-stubborn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("instance survived cancelled StopAll")
	}
}
