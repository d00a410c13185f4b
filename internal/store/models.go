package store

import "time"

// CaseInfo is a stored test case without its steps.
type CaseInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	StepCount   int       `json:"step_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ExecutionRecord is one row of the executions table.
type ExecutionRecord struct {
	ID              string    `json:"execution_id"`
	TestCaseName    string    `json:"test_case_name"`
	Success         bool      `json:"success"`
	TotalSteps      int       `json:"total_steps"`
	SuccessfulSteps int       `json:"successful_steps"`
	FailedSteps     int       `json:"failed_steps"`
	ExecutionTime   float64   `json:"execution_time"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Error           string    `json:"error,omitempty"` // message of the failed step
}

// StepRecord is one stored step result.
type StepRecord struct {
	StepIndex         int     `json:"step_index"`
	StepName          string  `json:"step_name"`
	Action            string  `json:"action"`
	Success           bool    `json:"success"`
	Confidence        float64 `json:"confidence"`
	ReturnValue       string  `json:"return_value,omitempty"` // JSON
	VariableAssigned  string  `json:"variable_assigned,omitempty"`
	ValidationWarning string  `json:"validation_warning,omitempty"`
	ScreenshotPath    string  `json:"screenshot_path,omitempty"`
	Error             string  `json:"error,omitempty"`
	DurationMS        int64   `json:"duration_ms"`
}

// VariableRecord is a variable exported at the end of a run.
type VariableRecord struct {
	Name      string    `json:"name"`
	TypeTag   string    `json:"type"`
	Value     string    `json:"value"` // JSON
	CreatedAt time.Time `json:"created_at"`
}

// ExecutionDetail is an execution with its steps and final variables.
type ExecutionDetail struct {
	ExecutionRecord
	Steps     []StepRecord     `json:"steps"`
	Variables []VariableRecord `json:"variables"`
}

// Schedule runs a stored case every Interval, or once when Interval is zero.
type Schedule struct {
	ID        string        `json:"id"`
	CaseName  string        `json:"case_name"`
	ChatID    string        `json:"chat_id,omitempty"`
	Interval  time.Duration `json:"interval"`
	NextRunAt time.Time     `json:"next_run_at"`
	LastRunAt *time.Time    `json:"last_run_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
