package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
	"github.com/core-tools/hsu-scheduler/pkg/logging"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrations string

const busyTimeout = 5 * time.Second

type sqliteJournal struct {
	db     *sql.DB
	logger logging.Logger
}

// Open creates or opens the journal database at path
func Open(path string, logger logging.Logger) (Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.NewValidationError("journal path is required", nil)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.NewIOError("failed to create journal directory", err).WithContext("path", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewIOError("failed to open journal", err).WithContext("path", path)
	}
	// SQLite prefers a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Warnf("Journal pragma %q failed: %v", pragma, err)
		}
	}

	if _, err := db.Exec(migrations); err != nil {
		_ = db.Close()
		return nil, errors.NewIOError("failed to migrate journal", err).WithContext("path", path)
	}

	logger.Infof("Journal opened at %s", path)
	return &sqliteJournal{db: db, logger: logger}, nil
}

func (j *sqliteJournal) Record(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO actions(at, process, weekday, time_of_day, action, outcome, pid, launch_id, err, took_ms)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.Process, int(e.Weekday), e.TimeOfDay.Milliseconds(), e.Action,
		string(e.Outcome), nullInt(e.PID), nullStr(e.LaunchID), nullStr(e.Error), e.Took.Milliseconds(),
	)
	if err != nil {
		return errors.NewIOError("failed to record journal entry", err)
	}
	return nil
}

// Recent returns the newest entries first
func (j *sqliteJournal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, at, process, weekday, time_of_day, action, outcome, pid, launch_id, err, took_ms
		 FROM actions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.NewIOError("failed to query journal", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			at        string
			weekday   int
			timeOfDay int64
			outcome   string
			pid       sql.NullInt64
			launchID  sql.NullString
			errText   sql.NullString
			tookMS    int64
		)
		if err := rows.Scan(&e.ID, &at, &e.Process, &weekday, &timeOfDay, &e.Action, &outcome,
			&pid, &launchID, &errText, &tookMS); err != nil {
			return nil, errors.NewIOError("failed to read journal entry", err)
		}

		e.At, _ = time.Parse(time.RFC3339Nano, at)
		e.Weekday = time.Weekday(weekday)
		e.TimeOfDay = time.Duration(timeOfDay) * time.Millisecond
		e.Outcome = Outcome(outcome)
		e.PID = int(pid.Int64)
		e.LaunchID = launchID.String
		e.Error = errText.String
		e.Took = time.Duration(tookMS) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIOError("failed to read journal", err)
	}
	return entries, nil
}

func (j *sqliteJournal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
