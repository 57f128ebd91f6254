package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"go.uber.org/zap"
)

// Clock abstracts time for the scheduler loop.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// Job is one scheduled task. Due is evaluated once per wall-clock minute;
// Run executes serially with the other jobs.
type Job struct {
	Name string
	Due  func(now time.Time) bool
	Run  func(ctx context.Context) error
}

// DueAt fires when the hour matches the getter and the minute matches.
// The hour is read per evaluation so config changes apply live.
func DueAt(hour func() int, minute int) func(time.Time) bool {
	return func(now time.Time) bool {
		return now.Hour() == hour() && now.Minute() == minute
	}
}

// DueAtClock fires at a configured "HH:MM" read per evaluation.
func DueAtClock(hhmm func() (int, int)) func(time.Time) bool {
	return func(now time.Time) bool {
		h, m := hhmm()
		return now.Hour() == h && now.Minute() == m
	}
}

// DueMinutes fires whenever the minute is one of the given values.
func DueMinutes(minutes ...int) func(time.Time) bool {
	return func(now time.Time) bool {
		for _, m := range minutes {
			if now.Minute() == m {
				return true
			}
		}
		return false
	}
}

// DueEveryHours fires at the given minute of every nth hour.
func DueEveryHours(n, minute int) func(time.Time) bool {
	return func(now time.Time) bool {
		return now.Hour()%n == 0 && now.Minute() == minute
	}
}

// OncePerHour wraps a predicate so it fires at most once per calendar hour.
// Not safe for concurrent use; the scheduler evaluates jobs serially.
func OncePerHour(inner func(time.Time) bool) func(time.Time) bool {
	var last string
	return func(now time.Time) bool {
		if !inner(now) {
			return false
		}
		hour := now.Format("2006-01-02-15")
		if hour == last {
			return false
		}
		last = hour
		return true
	}
}

// Scheduler drives the background jobs. One loop, 30 second tick, jobs
// evaluated once per minute and run serially.
type Scheduler struct {
	jobs     []Job
	clock    Clock
	activity repository.ActivityRepository
	errlog   repository.ErrorLogRepository
	notify   func(event *entity.ActivityEvent) // nil when no live feed
	logger   *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	mu      sync.Mutex
}

func NewScheduler(clock Clock, activity repository.ActivityRepository, errlog repository.ErrorLogRepository, notify func(*entity.ActivityEvent), logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		clock:    clock,
		activity: activity,
		errlog:   errlog,
		notify:   notify,
		logger:   logger.With(zap.String("engine", "scheduler")),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Add registers a job. Call before Start.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start begins the scheduler loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true
	s.logger.Info("Starting scheduler", zap.Int("jobs", len(s.jobs)))

	go s.loop()
	return nil
}

// Stop halts the scheduler loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.cancel()
		s.running = false
		s.logger.Info("Scheduler stopped")
	}
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	var lastMinute string
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			now := s.clock.Now()
			minute := now.Format("2006-01-02 15:04")
			if minute == lastMinute {
				continue
			}
			lastMinute = minute
			s.Tick(now)
		}
	}
}

// Tick evaluates every job against now and runs the due ones serially.
// Exposed for manual triggering.
func (s *Scheduler) Tick(now time.Time) {
	for _, job := range s.jobs {
		if !job.Due(now) {
			continue
		}
		s.runJob(job)
	}
}

func (s *Scheduler) runJob(job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduled job panicked",
				zap.String("job", job.Name),
				zap.Any("panic", r),
			)
			s.recordError(job.Name, entity.ErrorLevelCritical, fmt.Sprintf("panic: %v", r))
		}
	}()

	start := time.Now()
	err := job.Run(s.ctx)
	elapsed := time.Since(start)

	if err != nil {
		s.logger.Warn("Scheduled job failed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		s.report(job.Name, fmt.Sprintf("failed: %v", err))
		s.recordError(job.Name, entity.ErrorLevelError, err.Error())
		return
	}

	s.logger.Debug("Scheduled job done",
		zap.String("job", job.Name),
		zap.Duration("elapsed", elapsed),
	)
}

func (s *Scheduler) report(name, detail string) {
	event := &entity.ActivityEvent{
		Timestamp: time.Now(),
		Type:      entity.ActivitySystem,
		Label:     "Scheduler: " + name,
		Detail:    detail,
	}
	if err := s.activity.Log(s.ctx, event); err != nil {
		s.logger.Warn("Failed to log scheduler activity", zap.Error(err))
		return
	}
	if s.notify != nil {
		s.notify(event)
	}
}

func (s *Scheduler) recordError(job, level, message string) {
	if s.errlog == nil {
		return
	}
	entry := &entity.ErrorEntry{
		Timestamp: time.Now(),
		Level:     level,
		Source:    "scheduler/" + job,
		Message:   message,
	}
	if err := s.errlog.Log(s.ctx, entry); err != nil {
		s.logger.Warn("Failed to persist error entry", zap.Error(err))
	}
}
