package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Outcome
	}{
		{name: "nil", err: nil, expected: OutcomeOK},
		{name: "conflict", err: errors.NewConflictError("process already started", nil), expected: OutcomeRejected},
		{name: "cancelled", err: errors.NewCancelledError("grace period cancelled", context.Canceled), expected: OutcomeCancelled},
		{name: "bare_context", err: fmt.Errorf("wrapped: %w", context.DeadlineExceeded), expected: OutcomeCancelled},
		{name: "process", err: errors.NewProcessError("failed to start", nil), expected: OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, OutcomeOf(tt.err))
		})
	}
}

func TestSQLiteJournal_RecordAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	j, err := Open(path, nil)
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	at := time.Date(2024, time.June, 5, 16, 0, 3, 0, time.UTC)

	require.NoError(t, j.Record(ctx, Entry{
		At:        at,
		Process:   "valheim",
		Weekday:   time.Wednesday,
		TimeOfDay: 16 * time.Hour,
		Action:    "start",
		Outcome:   OutcomeOK,
		PID:       4242,
		LaunchID:  "launch-1",
		Took:      1500 * time.Millisecond,
	}))
	require.NoError(t, j.Record(ctx, Entry{
		At:        at.Add(time.Minute),
		Process:   "valheim",
		Weekday:   time.Wednesday,
		TimeOfDay: 16*time.Hour + time.Minute,
		Action:    "start",
		Outcome:   OutcomeRejected,
		Error:     "conflict: process already started",
	}))

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	newest := entries[0]
	assert.Equal(t, OutcomeRejected, newest.Outcome)
	assert.Equal(t, "conflict: process already started", newest.Error)
	assert.Equal(t, 0, newest.PID)
	assert.Empty(t, newest.LaunchID)

	oldest := entries[1]
	assert.True(t, at.Equal(oldest.At))
	assert.Equal(t, "valheim", oldest.Process)
	assert.Equal(t, time.Wednesday, oldest.Weekday)
	assert.Equal(t, 16*time.Hour, oldest.TimeOfDay)
	assert.Equal(t, "start", oldest.Action)
	assert.Equal(t, 4242, oldest.PID)
	assert.Equal(t, "launch-1", oldest.LaunchID)
	assert.Equal(t, 1500*time.Millisecond, oldest.Took)

	limited, err := j.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteJournal_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, j.Record(ctx, Entry{Process: "valheim", Action: "stop", Outcome: OutcomeOK}))
	require.NoError(t, j.Close())

	j, err = Open(path, nil)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].At.IsZero())
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(" ", nil)
	assert.True(t, errors.IsValidationError(err))
}

func TestNopJournal(t *testing.T) {
	j := NewNopJournal()
	assert.NoError(t, j.Record(context.Background(), Entry{}))
	entries, err := j.Recent(context.Background(), 5)
	assert.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, j.Close())
}
