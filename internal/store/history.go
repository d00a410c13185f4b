package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rahul/casepilot/internal/casefile"
	"github.com/rahul/casepilot/internal/runner"
)

// RecordExecution stores a finished run with its steps and variables.
func (s *Store) RecordExecution(ctx context.Context, tc *casefile.TestCase, sum *runner.Summary) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var failure string
	if f := sum.FailedStep(); f != nil {
		failure = fmt.Sprintf("step %d (%s): %s", f.StepIndex, f.StepName, f.Error)
	}

	_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO executions
		(id, test_case_name, success, total_steps, successful_steps, failed_steps, execution_time, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		sum.ExecutionID, sum.TestCaseName, boolInt(sum.Success), sum.TotalSteps, sum.SuccessfulSteps,
		sum.FailedSteps, sum.ExecutionTime, formatTime(sum.StartedAt), formatTime(sum.FinishedAt), failure)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}

	stepQuery := s.rebind(`INSERT INTO step_results
		(execution_id, step_index, step_name, action, success, confidence, return_value, variable_assigned, validation_warning, screenshot_path, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, r := range sum.Steps {
		var ret string
		if r.ReturnValue != nil {
			data, err := json.Marshal(r.ReturnValue)
			if err != nil {
				return fmt.Errorf("encode step %d value: %w", r.StepIndex, err)
			}
			ret = string(data)
		}
		var shot string
		if r.Screenshot != nil {
			shot = r.Screenshot.Path
		}
		_, err := tx.ExecContext(ctx, stepQuery,
			sum.ExecutionID, r.StepIndex, r.StepName, r.Action, boolInt(r.Success), r.Confidence,
			ret, r.VariableAssigned, r.ValidationWarning, shot, r.Error, r.DurationMS)
		if err != nil {
			return fmt.Errorf("insert step %d: %w", r.StepIndex, err)
		}
	}

	varQuery := s.rebind(`INSERT INTO execution_variables (execution_id, name, type_tag, value, created_at) VALUES (?, ?, ?, ?, ?)`)
	for name, rec := range sum.Variables.Variables {
		data, err := json.Marshal(rec.Value)
		if err != nil {
			return fmt.Errorf("encode variable %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, varQuery, sum.ExecutionID, name, string(rec.TypeTag), string(data), formatTime(rec.CreatedAt)); err != nil {
			return fmt.Errorf("insert variable %s: %w", name, err)
		}
	}

	return tx.Commit()
}

const executionColumns = `id, test_case_name, success, total_steps, successful_steps, failed_steps, execution_time, started_at, finished_at, error`

// ListExecutions returns the newest executions first, optionally for one
// case only. limit <= 0 means 20.
func (s *Store) ListExecutions(ctx context.Context, caseName string, limit int) ([]ExecutionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + executionColumns + ` FROM executions`
	args := []any{}
	if caseName != "" {
		query += ` WHERE test_case_name = ?`
		args = append(args, caseName)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetExecution loads one execution with its steps and variables.
func (s *Store) GetExecution(ctx context.Context, id string) (*ExecutionDetail, error) {
	row := s.DB.QueryRowContext(ctx, s.rebind(`SELECT `+executionColumns+` FROM executions WHERE id = ?`), id)
	rec, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	detail := &ExecutionDetail{ExecutionRecord: rec}

	rows, err := s.DB.QueryContext(ctx, s.rebind(`SELECT step_index, step_name, action, success, confidence, return_value,
		variable_assigned, validation_warning, screenshot_path, error, duration_ms
		FROM step_results WHERE execution_id = ? ORDER BY step_index`), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var st StepRecord
		var success int
		if err := rows.Scan(&st.StepIndex, &st.StepName, &st.Action, &success, &st.Confidence, &st.ReturnValue,
			&st.VariableAssigned, &st.ValidationWarning, &st.ScreenshotPath, &st.Error, &st.DurationMS); err != nil {
			return nil, err
		}
		st.Success = success != 0
		detail.Steps = append(detail.Steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	vrows, err := s.DB.QueryContext(ctx, s.rebind(`SELECT name, type_tag, value, created_at
		FROM execution_variables WHERE execution_id = ? ORDER BY name`), id)
	if err != nil {
		return nil, err
	}
	defer vrows.Close()
	for vrows.Next() {
		var v VariableRecord
		var created string
		if err := vrows.Scan(&v.Name, &v.TypeTag, &v.Value, &created); err != nil {
			return nil, err
		}
		v.CreatedAt = parseTime(created)
		detail.Variables = append(detail.Variables, v)
	}
	return detail, vrows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(row scanner) (ExecutionRecord, error) {
	var rec ExecutionRecord
	var success int
	var started, finished string
	err := row.Scan(&rec.ID, &rec.TestCaseName, &success, &rec.TotalSteps, &rec.SuccessfulSteps,
		&rec.FailedSteps, &rec.ExecutionTime, &started, &finished, &rec.Error)
	if err != nil {
		return rec, err
	}
	rec.Success = success != 0
	rec.StartedAt = parseTime(started)
	rec.FinishedAt = parseTime(finished)
	return rec, nil
}
