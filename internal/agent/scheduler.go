package agent

import (
	"context"
	"log"
	"time"

	"github.com/rahul/casepilot/internal/casefile"
	"github.com/rahul/casepilot/internal/observability"
	"github.com/rahul/casepilot/internal/runner"
	"github.com/rahul/casepilot/internal/store"
)

type Messenger interface {
	Send(chatID string, text string) error
}

// ScheduleStore is the part of the store the scheduler needs.
type ScheduleStore interface {
	DueSchedules(ctx context.Context, now time.Time) ([]store.Schedule, error)
	MarkScheduleRun(ctx context.Context, id string, at time.Time) error
	DeleteSchedule(ctx context.Context, id string) error
	GetTestCase(ctx context.Context, name string) (*casefile.TestCase, error)
}

// CaseRunner runs one test case.
type CaseRunner interface {
	Run(ctx context.Context, tc *casefile.TestCase, opts runner.Options) *runner.Summary
}

// Scheduler runs stored cases when their schedule comes due and posts the
// summary to the schedule's chat.
type Scheduler struct {
	Store    ScheduleStore
	Runner   CaseRunner
	Gateway  Messenger // optional
	Interval time.Duration

	now func() time.Time
}

func NewScheduler(st ScheduleStore, r CaseRunner, gateway Messenger) *Scheduler {
	return &Scheduler{
		Store:    st,
		Runner:   r,
		Gateway:  gateway,
		Interval: 30 * time.Second,
		now:      time.Now,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	log.Println("Case scheduler started...")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollAndExecute(ctx)
		}
	}
}

func (s *Scheduler) pollAndExecute(ctx context.Context) {
	now := s.now()
	due, err := s.Store.DueSchedules(ctx, now)
	if err != nil {
		log.Printf("Error polling schedules: %v", err)
		return
	}

	for _, sch := range due {
		if ctx.Err() != nil {
			return
		}
		log.Printf("[Scheduler] Running %s (schedule %s)", sch.CaseName, sch.ID)
		observability.SetStatus(observability.RoleScheduler, sch.CaseName)

		var report string
		tc, err := s.Store.GetTestCase(ctx, sch.CaseName)
		if err != nil {
			log.Printf("Error loading case %s for schedule %s: %v", sch.CaseName, sch.ID, err)
			report = "Scheduled run of " + sch.CaseName + " could not start: " + err.Error()
		} else {
			report = s.Runner.Run(ctx, tc, runner.Options{}).Report()
		}

		if sch.Interval == 0 {
			if err := s.Store.DeleteSchedule(ctx, sch.ID); err != nil {
				log.Printf("Error deleting one-time schedule %s: %v", sch.ID, err)
			}
		} else if err := s.Store.MarkScheduleRun(ctx, sch.ID, now); err != nil {
			log.Printf("Error updating last run for schedule %s: %v", sch.ID, err)
		}

		if s.Gateway != nil && sch.ChatID != "" {
			if err := s.Gateway.Send(sch.ChatID, "⏰ Scheduled run\n\n"+report); err != nil {
				log.Printf("Error sending schedule report to %s: %v", sch.ChatID, err)
			}
		}
	}
	observability.SetStatus(observability.RoleIdle, "")
}
