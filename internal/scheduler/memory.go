package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type memoryJob struct {
	kind  string
	id    int
	runAt time.Time
}

// Memory is a process-local scheduler. Pending jobs do not survive a restart;
// it backs the service when Redis is not configured and in tests.
type Memory struct {
	mu         sync.Mutex
	jobs       map[string]memoryJob
	handlers   map[string]HandlerFunc
	interval   time.Duration
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewMemory creates a Memory scheduler polling every interval.
func NewMemory(interval time.Duration, logger *slog.Logger) *Memory {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		jobs:       make(map[string]memoryJob),
		handlers:   make(map[string]HandlerFunc),
		interval:   interval,
		retryDelay: interval,
		logger:     logger.With("component", "scheduler", "backend", "memory"),
	}
}

func (s *Memory) Schedule(_ context.Context, kind string, id int, runAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[member(kind, id)] = memoryJob{kind: kind, id: id, runAt: runAt}
	return nil
}

func (s *Memory) Cancel(_ context.Context, kind string, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, member(kind, id))
	return nil
}

func (s *Memory) Handle(kind string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = fn
}

// Pending reports whether a job for (kind, id) is waiting to run.
func (s *Memory) Pending(kind string, id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[member(kind, id)]
	return ok
}

// RunDue executes every job due at now and returns how many ran.
func (s *Memory) RunDue(ctx context.Context, now time.Time) int {
	s.mu.Lock()
	due := make([]memoryJob, 0)
	for key, job := range s.jobs {
		if !job.runAt.After(now) {
			due = append(due, job)
			delete(s.jobs, key)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.mu.Lock()
		fn, ok := s.handlers[job.kind]
		s.mu.Unlock()
		if !ok {
			s.logger.Warn("no handler for job", "kind", job.kind, "id", job.id)
			continue
		}
		if err := fn(ctx, job.id); err != nil {
			s.logger.Error("job failed, retrying", "kind", job.kind, "id", job.id, "error", err)
			s.mu.Lock()
			key := member(job.kind, job.id)
			if _, exists := s.jobs[key]; !exists {
				s.jobs[key] = memoryJob{kind: job.kind, id: job.id, runAt: now.Add(s.retryDelay)}
			}
			s.mu.Unlock()
		}
	}
	return len(due)
}

// Run polls for due jobs until ctx is cancelled.
func (s *Memory) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.RunDue(ctx, now)
		}
	}
}
