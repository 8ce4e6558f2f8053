package journal

import (
	"context"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
)

// Outcome classifies how a scheduled action ended
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeFailed    Outcome = "failed"
	OutcomeRejected  Outcome = "rejected"  // not allowed in the current state, e.g. start while running
	OutcomeCancelled Outcome = "cancelled" // interrupted by shutdown
)

// OutcomeOf maps an action error to its outcome
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.IsCancelledError(err):
		return OutcomeCancelled
	case errors.IsConflictError(err):
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}

// Entry is one executed scheduled action
type Entry struct {
	ID        int64
	At        time.Time
	Process   string
	Weekday   time.Weekday
	TimeOfDay time.Duration
	Action    string
	Outcome   Outcome
	PID       int
	LaunchID  string
	Error     string
	Took      time.Duration
}

// Journal records executed actions for later inspection
type Journal interface {
	Record(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

type nopJournal struct{}

// NewNopJournal is used when journaling is disabled
func NewNopJournal() Journal { return nopJournal{} }

func (nopJournal) Record(ctx context.Context, entry Entry) error { return nil }

func (nopJournal) Recent(ctx context.Context, limit int) ([]Entry, error) { return nil, nil }

func (nopJournal) Close() error { return nil }
