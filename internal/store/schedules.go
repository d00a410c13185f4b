package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AddSchedule registers caseName to run at first and then every interval.
// A zero interval runs once.
func (s *Store) AddSchedule(ctx context.Context, caseName, chatID string, interval time.Duration, first time.Time) (*Schedule, error) {
	if interval < 0 {
		return nil, fmt.Errorf("interval must not be negative")
	}
	if interval > 0 && interval < time.Second {
		return nil, fmt.Errorf("interval %s is below the one second resolution", interval)
	}
	if interval%time.Second != 0 {
		return nil, fmt.Errorf("interval %s must be whole seconds", interval)
	}
	sch := &Schedule{
		ID:        uuid.NewString(),
		CaseName:  caseName,
		ChatID:    chatID,
		Interval:  interval,
		NextRunAt: first.UTC(),
		CreatedAt: s.now().UTC(),
	}
	_, err := s.DB.ExecContext(ctx, s.rebind(`INSERT INTO schedules (id, case_name, chat_id, interval_seconds, next_run_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		sch.ID, sch.CaseName, sch.ChatID, int64(interval/time.Second), formatTime(sch.NextRunAt), formatTime(sch.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("add schedule: %w", err)
	}
	return sch, nil
}

const scheduleColumns = `id, case_name, chat_id, interval_seconds, next_run_at, last_run_at, created_at`

func (s *Store) ListSchedules(ctx context.Context) ([]Schedule, error) {
	return s.querySchedules(ctx, `SELECT `+scheduleColumns+` FROM schedules ORDER BY next_run_at`)
}

// DueSchedules returns the schedules whose next run is at or before now.
func (s *Store) DueSchedules(ctx context.Context, now time.Time) ([]Schedule, error) {
	return s.querySchedules(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE next_run_at <= ? ORDER BY next_run_at`, formatTime(now))
}

// MarkScheduleRun records a run at and moves the schedule to its next slot.
func (s *Store) MarkScheduleRun(ctx context.Context, id string, at time.Time) error {
	var seconds int64
	err := s.DB.QueryRowContext(ctx, s.rebind(`SELECT interval_seconds FROM schedules WHERE id = ?`), id).Scan(&seconds)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", id, notFound(err))
	}
	next := at.Add(time.Duration(seconds) * time.Second)
	_, err = s.DB.ExecContext(ctx, s.rebind(`UPDATE schedules SET last_run_at = ?, next_run_at = ? WHERE id = ?`),
		formatTime(at), formatTime(next), id)
	return err
}

func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, s.rebind(`DELETE FROM schedules WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) querySchedules(ctx context.Context, query string, args ...any) ([]Schedule, error) {
	rows, err := s.DB.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		var sch Schedule
		var seconds int64
		var next, last, created string
		if err := rows.Scan(&sch.ID, &sch.CaseName, &sch.ChatID, &seconds, &next, &last, &created); err != nil {
			return nil, err
		}
		sch.Interval = time.Duration(seconds) * time.Second
		sch.NextRunAt = parseTime(next)
		if t := parseTime(last); !t.IsZero() {
			sch.LastRunAt = &t
		}
		sch.CreatedAt = parseTime(created)
		out = append(out, sch)
	}
	return out, rows.Err()
}
