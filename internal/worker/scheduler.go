package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// JobScheduler submits its jobs to a pool on a fixed interval.
type JobScheduler struct {
	Name     string
	Interval time.Duration
	Pool     *WorkingPool

	mu   sync.RWMutex
	jobs []Job
}

func NewJobScheduler(name string, interval time.Duration, pool *WorkingPool) *JobScheduler {
	return &JobScheduler{Name: name, Interval: interval, Pool: pool}
}

func (s *JobScheduler) AddJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

func (s *JobScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	slog.Info("Scheduler running", "scheduler", s.Name, "interval", s.Interval)
	for {
		select {
		case <-ticker.C:
			s.submitJobs()
		case <-ctx.Done():
			slog.Info("Scheduler shutting down", "scheduler", s.Name)
			return
		}
	}
}

func (s *JobScheduler) submitJobs() {
	s.mu.RLock()
	jobs := make([]Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.RUnlock()

	for _, job := range jobs {
		if err := s.Pool.TrySubmit(job); err != nil {
			slog.Warn("Failed to submit scheduled job", "scheduler", s.Name, "error", err)
		}
	}
}
