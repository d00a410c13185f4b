package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeRunStart    EventType = "run_start"
	EventTypeRunComplete EventType = "run_complete"
	EventTypeStep        EventType = "step"
	EventTypeVariable    EventType = "variable"
	EventTypeScreenshot  EventType = "screenshot"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypeCost        EventType = "cost"
	EventTypeHeartbeat   EventType = "heartbeat"
	EventTypeLLM         EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type        EventType `json:"type"`
	ExecutionID string    `json:"execution_id,omitempty"`
	StepIndex   int       `json:"step_index,omitempty"`
	Data        any       `json:"data"`
	Timestamp   time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	mu         sync.Mutex
	out        io.Writer
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout, filepath.Join("logs", "llm.jsonl"))
}

// NewLoggerTo writes events to out and appends LLM events to llmLogPath.
// An empty llmLogPath disables the LLM file.
func NewLoggerTo(out io.Writer, llmLogPath string) *Logger {
	return &Logger{
		out:        out,
		llmLogPath: llmLogPath,
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event. A nil Logger discards events.
func (l *Logger) Log(evt Event) {
	if l == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		data = []byte(fmt.Sprintf("{\"error\": %q}", "failed to marshal event: "+err.Error()))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(data))

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogRunStart(executionID, testCase string, steps int) {
	l.Log(Event{
		Type:        EventTypeRunStart,
		ExecutionID: executionID,
		Data: map[string]any{
			"test_case": testCase,
			"steps":     steps,
		},
	})
}

func (l *Logger) LogRunComplete(executionID string, success bool, total, failed int, elapsed time.Duration) {
	l.Log(Event{
		Type:        EventTypeRunComplete,
		ExecutionID: executionID,
		Data: map[string]any{
			"success":      success,
			"total_steps":  total,
			"failed_steps": failed,
			"elapsed_ms":   elapsed.Milliseconds(),
		},
	})
}

func (l *Logger) LogStep(executionID string, stepIndex int, action string, success bool, errMsg string) {
	data := map[string]any{
		"action":  action,
		"success": success,
	}
	if errMsg != "" {
		data["error"] = errMsg
	}
	l.Log(Event{
		Type:        EventTypeStep,
		ExecutionID: executionID,
		StepIndex:   stepIndex,
		Data:        data,
	})
}

func (l *Logger) LogVariable(executionID string, stepIndex int, name, typeTag string) {
	l.Log(Event{
		Type:        EventTypeVariable,
		ExecutionID: executionID,
		StepIndex:   stepIndex,
		Data: map[string]string{
			"name": name,
			"type": typeTag,
		},
	})
}

func (l *Logger) LogScreenshot(executionID string, stepIndex int, path string) {
	l.Log(Event{
		Type:        EventTypeScreenshot,
		ExecutionID: executionID,
		StepIndex:   stepIndex,
		Data:        map[string]string{"path": path},
	})
}

func (l *Logger) LogPolicyCheck(executionID string, stepIndex int, action, effect, reason string) {
	l.Log(Event{
		Type:        EventTypePolicyCheck,
		ExecutionID: executionID,
		StepIndex:   stepIndex,
		Data: map[string]string{
			"action": action,
			"effect": effect,
			"reason": reason,
		},
	})
}

func (l *Logger) LogCost(operation string, promptTokens, completionTokens int, model string) {
	l.Log(Event{
		Type: EventTypeCost,
		Data: map[string]any{
			"operation":         operation,
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
			"model":             model,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(operation string, prompt any, response string) {
	l.Log(Event{
		Type: EventTypeLLM,
		Data: map[string]any{
			"operation": operation,
			"prompt":    prompt,
			"response":  response,
		},
	})
}
