package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 8, 25, hour, minute, 0, 0, time.UTC)
}

func TestDueAt(t *testing.T) {
	hour := 3
	due := DueAt(func() int { return hour }, 0)

	if !due(at(3, 0)) {
		t.Error("should fire at 03:00")
	}
	if due(at(3, 1)) || due(at(4, 0)) {
		t.Error("should only fire at the exact minute")
	}

	// The hour getter is read per evaluation, so config changes apply live.
	hour = 5
	if due(at(3, 0)) {
		t.Error("old hour should no longer fire")
	}
	if !due(at(5, 0)) {
		t.Error("new hour should fire")
	}
}

func TestDueAtClock(t *testing.T) {
	due := DueAtClock(func() (int, int) { return 21, 30 })
	if !due(at(21, 30)) {
		t.Error("should fire at 21:30")
	}
	if due(at(21, 29)) || due(at(22, 30)) {
		t.Error("should not fire off-schedule")
	}
}

func TestDueMinutes(t *testing.T) {
	due := DueMinutes(0, 15, 30, 45)
	for _, m := range []int{0, 15, 30, 45} {
		if !due(at(10, m)) {
			t.Errorf("should fire at minute %d", m)
		}
	}
	if due(at(10, 7)) {
		t.Error("should not fire at minute 7")
	}
}

func TestDueEveryHours(t *testing.T) {
	due := DueEveryHours(4, 30)
	for _, h := range []int{0, 4, 8, 12, 16, 20} {
		if !due(at(h, 30)) {
			t.Errorf("should fire at %02d:30", h)
		}
	}
	if due(at(5, 30)) || due(at(4, 0)) {
		t.Error("should not fire off-schedule")
	}
}

func TestOncePerHour(t *testing.T) {
	due := OncePerHour(DueMinutes(10, 20))

	if !due(at(9, 10)) {
		t.Fatal("first hit in the hour should fire")
	}
	if due(at(9, 20)) {
		t.Error("second hit in the same hour should not fire")
	}
	if !due(at(10, 10)) {
		t.Error("next hour should fire again")
	}
}

func TestScheduler_TickRunsDueJobs(t *testing.T) {
	activity := &memActivity{}
	sched := NewScheduler(RealClock(), activity, &memErrors{}, nil, zap.NewNop())

	var ran []string
	sched.Add(Job{
		Name: "due",
		Due:  func(time.Time) bool { return true },
		Run: func(ctx context.Context) error {
			ran = append(ran, "due")
			return nil
		},
	})
	sched.Add(Job{
		Name: "not_due",
		Due:  func(time.Time) bool { return false },
		Run: func(ctx context.Context) error {
			ran = append(ran, "not_due")
			return nil
		},
	})

	sched.Tick(at(12, 0))
	if len(ran) != 1 || ran[0] != "due" {
		t.Errorf("ran = %v", ran)
	}
}

func TestScheduler_FailureIsReported(t *testing.T) {
	activity := &memActivity{}
	errlog := &memErrors{}
	var notified []*entity.ActivityEvent
	sched := NewScheduler(RealClock(), activity, errlog, func(e *entity.ActivityEvent) {
		notified = append(notified, e)
	}, zap.NewNop())

	sched.Add(Job{
		Name: "flaky",
		Due:  func(time.Time) bool { return true },
		Run:  func(ctx context.Context) error { return errors.New("boom") },
	})
	sched.Tick(at(12, 0))

	if len(activity.events) != 1 {
		t.Fatalf("expected one activity event, got %d", len(activity.events))
	}
	event := activity.events[0]
	if event.Type != entity.ActivitySystem || event.Label != "Scheduler: flaky" {
		t.Errorf("unexpected event: %+v", event)
	}
	if len(notified) != 1 {
		t.Errorf("notify callback should receive the event, got %d", len(notified))
	}
	if len(errlog.entries) != 1 {
		t.Fatalf("expected one error entry, got %d", len(errlog.entries))
	}
	if errlog.entries[0].Source != "scheduler/flaky" || errlog.entries[0].Level != entity.ErrorLevelError {
		t.Errorf("unexpected error entry: %+v", errlog.entries[0])
	}
}

func TestScheduler_PanicDoesNotKillTick(t *testing.T) {
	errlog := &memErrors{}
	sched := NewScheduler(RealClock(), &memActivity{}, errlog, nil, zap.NewNop())

	ran := false
	sched.Add(Job{
		Name: "panics",
		Due:  func(time.Time) bool { return true },
		Run:  func(ctx context.Context) error { panic("unexpected") },
	})
	sched.Add(Job{
		Name: "after",
		Due:  func(time.Time) bool { return true },
		Run: func(ctx context.Context) error {
			ran = true
			return nil
		},
	})

	sched.Tick(at(12, 0))
	if !ran {
		t.Error("a panicking job must not stop the remaining jobs")
	}
	if len(errlog.entries) != 1 || errlog.entries[0].Level != entity.ErrorLevelCritical {
		t.Errorf("panic should be recorded as critical, got %+v", errlog.entries)
	}
}
