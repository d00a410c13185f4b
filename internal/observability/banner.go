package observability

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
)

var (
	spinnerFrames = []string{"◜", "◝", "◞", "◟"}
	spinnerIdx    int
)

// termMu guards every terminal write during serve.
var termMu sync.Mutex

// ------------------------------------------------------------
// Utility
// ------------------------------------------------------------

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ------------------------------------------------------------
// TermWriter
// ------------------------------------------------------------

// termWriter sends log output to stderr under termMu so it never lands in
// the middle of a status redraw.
type termWriter struct{}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns an io.Writer for log.SetOutput and event loggers.
func NewTermWriter() *termWriter {
	return &termWriter{}
}

// ------------------------------------------------------------
// Banner
// ------------------------------------------------------------

func PrintBanner() {
	fmt.Print("\033[2J\033[H")

	banner := `
   ______                 ____  _ __      __
  / ____/___ _________   / __ \(_) /___  / /_
 / /   / __ '/ ___/ _ \ / /_/ / / / __ \/ __/
/ /___/ /_/ (__  )  __// ____/ / / /_/ / /_
\____/\__,_/____/\___//_/   /_/_/\____/\__/

        >> AI DRIVEN BROWSER TESTS <<
`

	width := termWidth()
	lines := strings.Split(banner, "\n")

	for _, l := range lines {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Printf("%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan+l, colorReset)
	}
}

// InitializeTerminal keeps lines 1-11 for the banner and status line and
// scrolls log output from line 12 down.
func InitializeTerminal() {
	fmt.Print("\033[12;r")
	fmt.Print("\033[12;1H")
}

func CleanupTerminal() {
	fmt.Print("\033[r\033[2J\033[H")
}

// ------------------------------------------------------------
// Live Status
// ------------------------------------------------------------

// PrintLiveStatus redraws line 10 with the current run, its step progress
// and the pass/fail tally since start.
func PrintLiveStatus() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	memMB := float64(m.Alloc) / 1024 / 1024

	st := Snapshot()
	uptime := time.Since(startTime).Round(time.Second)

	pulseIcon, pulseColor := "🔴", colorNeonMag
	switch delta := time.Since(st.LastHeartbeat); {
	case delta < 40*time.Second:
		pulseIcon, pulseColor = "🟢", colorNeonCyan
	case delta < 90*time.Second:
		pulseIcon, pulseColor = "🟡", colorPurple
	}

	icon, roleColor := "💤", colorReset
	switch st.Role {
	case RoleRunning:
		icon, roleColor = "🧪", colorNeonCyan
	case RoleScheduler:
		icon, roleColor = "⏰", colorNeonMag
	}

	spinner := " "
	if st.Role != RoleIdle {
		spinner = spinnerFrames[spinnerIdx]
		spinnerIdx = (spinnerIdx + 1) % len(spinnerFrames)
	}

	task := st.Task
	if task == "" {
		task = "waiting for work"
	}
	if len(task) > 28 {
		task = task[:25] + "..."
	}

	statusStr := fmt.Sprintf(
		"\033[s\033[10;1H\033[K%s%s%s %s%s %-9s%s %s%s%s %-28s %s %s%d✔%s %s%d✘%s | up %v | %.1fMB\033[u",
		pulseColor, pulseIcon, colorReset,
		roleColor, icon, st.Role, colorReset,
		colorPurple, spinner, colorReset,
		task,
		progressBar(st.Step, st.Total, 20),
		colorNeonCyan, st.Passed, colorReset,
		colorNeonMag, st.Failed, colorReset,
		uptime,
		memMB,
	)

	// The whole escape sequence is written under the lock.
	termMu.Lock()
	fmt.Print(statusStr)
	termMu.Unlock()
}

// progressBar renders step/total as a fixed-width bar with a counter.
func progressBar(step, total, width int) string {
	if total <= 0 {
		return strings.Repeat("·", width) + "      "
	}
	filled := clamp(step*width/total, 0, width)
	return fmt.Sprintf("%s%s%s%s %2d/%-2d",
		colorNeonCyan, strings.Repeat("█", filled), strings.Repeat("▒", width-filled), colorReset, step, total)
}
