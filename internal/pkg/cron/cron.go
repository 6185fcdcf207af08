// Package cron runs named background jobs at fixed intervals.
package cron

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mx-space/mdx-core/internal/pkg/apperr"
)

// JobStatus represents the last known state of a job.
type JobStatus string

const (
	StatusIdle    JobStatus = "idle"
	StatusRunning JobStatus = "running"
	StatusFulfill JobStatus = "fulfill"
	StatusReject  JobStatus = "reject"
)

// Job defines a scheduled background task.
type Job struct {
	Name        string
	Description string
	Interval    time.Duration
	Fn          func(ctx context.Context) error
}

type jobState struct {
	Job
	mu        sync.Mutex
	status    JobStatus
	message   string
	lastRunAt *time.Time
	nextRunAt time.Time
}

// ListItem is the serializable representation of a job for the API.
type ListItem struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      JobStatus  `json:"status"`
	Message     string     `json:"message,omitempty"`
	NextDate    time.Time  `json:"next_date"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
}

// Scheduler manages a collection of named jobs.
type Scheduler struct {
	mu     sync.RWMutex
	jobs   map[string]*jobState
	logger *zap.Logger
	wg     sync.WaitGroup
}

func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		jobs:   make(map[string]*jobState),
		logger: logger.Named("CronService"),
	}
}

// Register adds a job. Must be called before Start.
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Name] = &jobState{
		Job:       job,
		status:    StatusIdle,
		nextRunAt: time.Now().Add(job.Interval),
	}
}

// Start runs every job on its interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, js := range s.jobs {
		if js.Interval <= 0 {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runLoop(ctx, js)
		}()
	}
}

// Wait blocks until every job loop and manual run has returned.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) runLoop(ctx context.Context, js *jobState) {
	ticker := time.NewTicker(js.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx, js)
			js.mu.Lock()
			js.nextRunAt = time.Now().Add(js.Interval)
			js.mu.Unlock()
		}
	}
}

// execute runs js unless a run is already in progress.
func (s *Scheduler) execute(ctx context.Context, js *jobState) {
	js.mu.Lock()
	if js.status == StatusRunning {
		js.mu.Unlock()
		return
	}
	js.status = StatusRunning
	js.mu.Unlock()

	start := time.Now()
	err := js.Fn(ctx)

	js.mu.Lock()
	js.lastRunAt = &start
	if err != nil {
		js.status = StatusReject
		js.message = err.Error()
	} else {
		js.status = StatusFulfill
		js.message = ""
	}
	js.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", zap.String("job", js.Name), zap.Error(err))
		return
	}
	s.logger.Debug("job done", zap.String("job", js.Name), zap.Duration("took", time.Since(start)))
}

// Run triggers a job now without waiting for it.
func (s *Scheduler) Run(ctx context.Context, name string) error {
	s.mu.RLock()
	js, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return apperr.NotFound("job %q not found", name)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(context.WithoutCancel(ctx), js)
	}()
	return nil
}

// List returns a summary of all registered jobs, sorted by name.
func (s *Scheduler) List() []ListItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]ListItem, 0, len(s.jobs))
	for _, js := range s.jobs {
		js.mu.Lock()
		items = append(items, ListItem{
			Name:        js.Name,
			Description: js.Description,
			Status:      js.status,
			Message:     js.message,
			NextDate:    js.nextRunAt,
			LastRunAt:   js.lastRunAt,
		})
		js.mu.Unlock()
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}
