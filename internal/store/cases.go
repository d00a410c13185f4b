package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rahul/casepilot/internal/casefile"
)

// SaveTestCase inserts tc or replaces the case with the same name.
func (s *Store) SaveTestCase(ctx context.Context, tc *casefile.TestCase) error {
	def, err := casefile.Marshal(tc)
	if err != nil {
		return fmt.Errorf("encode test case: %w", err)
	}
	now := formatTime(s.now())
	_, err = s.DB.ExecContext(ctx, s.rebind(`INSERT INTO test_cases (name, description, step_count, definition, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			description = excluded.description,
			step_count = excluded.step_count,
			definition = excluded.definition,
			updated_at = excluded.updated_at`),
		tc.Name, tc.Description, len(tc.Steps), string(def), now, now)
	if err != nil {
		return fmt.Errorf("save test case %s: %w", tc.Name, err)
	}
	return nil
}

// GetTestCase loads and re-validates a stored case.
func (s *Store) GetTestCase(ctx context.Context, name string) (*casefile.TestCase, error) {
	var def string
	err := s.DB.QueryRowContext(ctx, s.rebind(`SELECT definition FROM test_cases WHERE name = ?`), name).Scan(&def)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("test case %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return casefile.Parse([]byte(def))
}

func (s *Store) ListTestCases(ctx context.Context) ([]CaseInfo, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT name, description, step_count, updated_at FROM test_cases ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CaseInfo
	for rows.Next() {
		var c CaseInfo
		var updated string
		if err := rows.Scan(&c.Name, &c.Description, &c.StepCount, &updated); err != nil {
			return nil, err
		}
		c.UpdatedAt = parseTime(updated)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTestCase(ctx context.Context, name string) error {
	res, err := s.DB.ExecContext(ctx, s.rebind(`DELETE FROM test_cases WHERE name = ?`), name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("test case %q: %w", name, ErrNotFound)
	}
	return nil
}
