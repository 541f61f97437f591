package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"lumen/internal/config"
	"lumen/internal/logging"
	"lumen/internal/services"
)

// JobState is the lifecycle of a submitted job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobSkipped   JobState = "skipped"
)

// JobFunc is the work a job performs.
type JobFunc func(ctx context.Context) error

type job struct {
	name          string
	after         string
	fn            JobFunc
	state         JobState
	attempts      int
	notBefore     time.Time
	correlationID string
	lastErr       error
}

// JobStatus is a read-only snapshot of one job.
type JobStatus struct {
	Name     string
	State    JobState
	Attempts int
	Err      error
}

// Scheduler executes named jobs one at a time in submission order. Job names
// are unique while a job is pending or running; resubmitting such a name is
// a no-op that keeps the existing job. A job declared to run after another
// waits for that job to complete and is skipped if it fails. Failed jobs are
// retried with a linearly growing delay until the attempt budget runs out.
type Scheduler struct {
	cfg    *config.Config
	logger *slog.Logger
	wake   chan struct{}

	mu    sync.Mutex
	jobs  map[string]*job
	order []string
	done  bool
}

// New builds a scheduler. Run must be called before submitted jobs execute.
func New(cfg *config.Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "scheduler"),
		wake:   make(chan struct{}, 1),
		jobs:   make(map[string]*job),
	}
}

// notify nudges the worker out of its idle sleep. The buffered channel makes
// the signal level triggered: a notify that lands before the worker sleeps is
// consumed by the next sleep instead of being lost.
func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Submit queues a job. It reports false when a job with the same name is
// already pending or running; the existing job wins and fn is dropped.
func (s *Scheduler) Submit(name string, fn JobFunc) bool {
	return s.SubmitAfter(name, "", fn)
}

// SubmitAfter queues a job that only runs once the job named after has
// completed. Deduplication matches Submit.
func (s *Scheduler) SubmitAfter(name, after string, fn JobFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[name]; ok {
		if existing.state == JobPending || existing.state == JobRunning {
			s.logger.Debug("duplicate job ignored", logging.String(logging.FieldJob, name))
			return false
		}
	}

	s.jobs[name] = &job{
		name:          name,
		after:         after,
		fn:            fn,
		state:         JobPending,
		correlationID: uuid.NewString(),
	}
	s.order = append(s.order, name)
	s.notify()
	return true
}

// Status returns a snapshot of the named job, or nil if unknown.
func (s *Scheduler) Status(name string) *JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return nil
	}
	return &JobStatus{Name: j.name, State: j.state, Attempts: j.attempts, Err: j.lastErr}
}

// Run executes jobs until the context is cancelled. It is the scheduler's
// single worker; jobs never run concurrently with one another.
func (s *Scheduler) Run(ctx context.Context) {
	// Wake the idle sleep when the context ends.
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.done = true
		s.mu.Unlock()
		s.notify()
	})
	defer stop()

	for {
		next, wait := s.nextRunnable()
		if s.isDone() || ctx.Err() != nil {
			return
		}
		if next == nil {
			s.sleep(ctx, wait)
			continue
		}
		s.execute(ctx, next)
	}
}

// WaitIdle blocks until every submitted job has reached a terminal state or
// the context is cancelled.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		switch j.state {
		case JobPending, JobRunning:
			return false
		}
	}
	return true
}

func (s *Scheduler) isDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// nextRunnable picks the first pending job whose predecessor allows it to
// run and whose backoff delay has elapsed. The returned duration is how long
// to wait before checking again when nothing is runnable.
func (s *Scheduler) nextRunnable() (*job, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	wait := time.Second
	for _, name := range s.order {
		j := s.jobs[name]
		if j.state != JobPending {
			continue
		}
		if j.after != "" {
			pred, ok := s.jobs[j.after]
			if !ok || pred.state == JobPending || pred.state == JobRunning {
				continue
			}
			if pred.state == JobFailed || pred.state == JobSkipped {
				j.state = JobSkipped
				s.logger.Warn("job skipped, predecessor failed",
					logging.String(logging.FieldJob, j.name),
					logging.String("after", j.after))
				continue
			}
		}
		if j.notBefore.After(now) {
			if d := j.notBefore.Sub(now); d < wait {
				wait = d
			}
			continue
		}
		j.state = JobRunning
		return j, 0
	}
	return nil, wait
}

func (s *Scheduler) execute(ctx context.Context, j *job) {
	jobCtx := services.WithJob(ctx, j.name)
	jobCtx = services.WithRequestID(jobCtx, j.correlationID)
	logger := s.logger.With(
		logging.String(logging.FieldJob, j.name),
		logging.String(logging.FieldCorrelationID, j.correlationID))

	logger.Info("job started", logging.Int("attempt", j.attempts+1))
	err := j.fn(jobCtx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		j.state = JobCompleted
		j.lastErr = nil
		logger.Info("job completed")
		return
	}
	if ctx.Err() != nil {
		// Interrupted, not failed. Leave it pending for the next process.
		j.state = JobPending
		return
	}
	if !services.IsFatal(err) {
		// An unavailable precondition is success-with-no-op; a timed retry
		// will not bring the dependency back.
		j.state = JobCompleted
		j.lastErr = err
		logger.Info("job ended early, dependency unavailable", logging.Error(err))
		return
	}

	j.attempts++
	j.lastErr = err
	maxAttempts := s.cfg.Workflow.MaxStageAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if j.attempts >= maxAttempts {
		j.state = JobFailed
		logger.Error("job failed, attempts exhausted",
			logging.Int("attempts", j.attempts),
			logging.Error(err))
		return
	}

	delay := time.Duration(j.attempts*s.cfg.Workflow.ErrorRetryInterval) * time.Second
	j.state = JobPending
	j.notBefore = time.Now().Add(delay)
	logger.Warn("job failed, will retry",
		logging.Int("attempt", j.attempts),
		logging.Duration("delay", delay),
		logging.Error(err))
}

// sleep blocks until the wait duration elapses, a submission arrives, or the
// context ends.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = 10 * time.Millisecond
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-s.wake:
	}
}
