package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
	"github.com/core-tools/hsu-scheduler/pkg/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCandidate struct {
	pid     int
	name    string
	exe     string
	exeErr  error
	running bool
}

func (f *fakeCandidate) PID() int      { return f.pid }
func (f *fakeCandidate) Running() bool { return f.running }
func (f *fakeCandidate) Kill() error {
	f.running = false
	return nil
}
func (f *fakeCandidate) Name(ctx context.Context) (string, error) { return f.name, nil }
func (f *fakeCandidate) Exe(ctx context.Context) (string, error)  { return f.exe, f.exeErr }

type fakeLister struct {
	candidates []Candidate
	err        error
}

func (f *fakeLister) List(ctx context.Context) ([]Candidate, error) {
	return f.candidates, f.err
}

func testDescriptor(t *testing.T) process.Descriptor {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "valheim_server.exe")
	require.NoError(t, os.WriteFile(path, []byte("MZ"), 0755))

	desc, err := process.NewDescriptor(process.DescriptorConfig{Name: "valheim_server", Path: path})
	require.NoError(t, err)
	return desc
}

func pids(targets []process.Target) []int {
	result := make([]int, 0, len(targets))
	for _, target := range targets {
		result = append(result, target.PID())
	}
	return result
}

func TestFinder_Find(t *testing.T) {
	desc := testDescriptor(t)

	lister := &fakeLister{candidates: []Candidate{
		&fakeCandidate{pid: 10, name: "valheim_server.exe", exe: desc.Path(), running: true},
		&fakeCandidate{pid: 11, name: "VALHEIM_SERVER", exe: strings.ToUpper(desc.Path()), running: true},
		&fakeCandidate{pid: 12, name: "valheim_server", exe: "/elsewhere/valheim_server.exe", running: true},
		&fakeCandidate{pid: 13, name: "notepad", exe: desc.Path(), running: true},
		&fakeCandidate{pid: 14, name: "valheim_server", exeErr: fmt.Errorf("access denied"), running: true},
	}}

	finder := NewFinder(lister, nil)
	matches, err := finder.Find(context.Background(), desc)
	require.NoError(t, err)

	assert.Equal(t, []int{10, 11}, pids(matches))
}

func TestFinder_ListError(t *testing.T) {
	finder := NewFinder(&fakeLister{err: fmt.Errorf("boom")}, nil)

	matches, err := finder.Find(context.Background(), testDescriptor(t))
	assert.Empty(t, matches)
	assert.True(t, errors.IsDiscoveryError(err))
}

func TestFinder_Cancelled(t *testing.T) {
	desc := testDescriptor(t)
	finder := NewFinder(&fakeLister{candidates: []Candidate{
		&fakeCandidate{pid: 10, name: "valheim_server", exe: desc.Path(), running: true},
	}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := finder.Find(ctx, desc)
	assert.True(t, errors.IsCancelledError(err))
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"valheim_server.exe", "valheim_server"},
		{"Valheim_Server.EXE", "valheim_server"},
		{" java ", "java"},
		{"start.bat", "start.bat"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeName(tt.input))
		})
	}
}

func TestSystemLister_SeesCurrentProcess(t *testing.T) {
	candidates, err := NewSystemLister().List(context.Background())
	require.NoError(t, err)

	found := false
	for _, candidate := range candidates {
		if candidate.PID() == os.Getpid() {
			found = true
			assert.True(t, candidate.Running())
		}
	}
	assert.True(t, found)
}
