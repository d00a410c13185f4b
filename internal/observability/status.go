package observability

import (
	"sync"
	"time"
)

type Role string

const (
	RoleIdle      Role = "IDLE"
	RoleRunning   Role = "RUNNING"
	RoleScheduler Role = "SCHEDULED"
)

// Status is a copy of what the live status line shows.
type Status struct {
	Role          Role
	Task          string // test case name
	Step          int
	Total         int
	Passed        int
	Failed        int
	LastHeartbeat time.Time
}

var (
	statusMu     sync.RWMutex
	globalStatus = Status{Role: RoleIdle, LastHeartbeat: time.Now()}
)

// SetStatus switches the role and clears the step progress.
func SetStatus(role Role, task string) {
	statusMu.Lock()
	defer statusMu.Unlock()
	globalStatus.Role = role
	globalStatus.Task = task
	globalStatus.Step, globalStatus.Total = 0, 0
}

// SetProgress records the step being executed.
func SetProgress(step, total int) {
	statusMu.Lock()
	defer statusMu.Unlock()
	globalStatus.Step = step
	globalStatus.Total = total
}

// RecordRun counts a finished run.
func RecordRun(success bool) {
	statusMu.Lock()
	defer statusMu.Unlock()
	if success {
		globalStatus.Passed++
	} else {
		globalStatus.Failed++
	}
}

func Snapshot() Status {
	statusMu.RLock()
	defer statusMu.RUnlock()
	return globalStatus
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	statusMu.Lock()
	defer statusMu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
