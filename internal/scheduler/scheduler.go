// Package scheduler runs the recurring background jobs: watchlist sync,
// history cleanup and instance health checks.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

var (
	// ErrTaskNotFound is returned for unknown task IDs.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskRunning is returned when a manual trigger races an active run.
	ErrTaskRunning = errors.New("task is already running")
)

// TaskFunc is the function signature for scheduled tasks.
type TaskFunc func(ctx context.Context) error

// TaskConfig describes one recurring task.
type TaskConfig struct {
	ID          string
	Name        string
	Description string
	Cron        string // standard five-field cron expression
	Func        TaskFunc
	RunOnStart  bool
}

// TaskInfo is the API-facing view of a task's state.
type TaskInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Cron        string     `json:"cron"`
	LastRun     *time.Time `json:"lastRun,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	NextRun     *time.Time `json:"nextRun,omitempty"`
	Running     bool       `json:"running"`
}

// task pairs a config with its gocron job and run state.
type task struct {
	cfg       TaskConfig
	job       gocron.Job
	lastRun   *time.Time
	lastError error
	running   bool
}

// Scheduler owns the gocron instance and the task registry.
type Scheduler struct {
	cron   gocron.Scheduler
	logger zerolog.Logger

	mu    sync.RWMutex
	tasks map[string]*task
}

// New creates a stopped scheduler; call Start after registering tasks.
func New(logger zerolog.Logger) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{
		cron:   cron,
		logger: logger.With().Str("component", "scheduler").Logger(),
		tasks:  make(map[string]*task),
	}, nil
}

// RegisterTask adds a task to the schedule. IDs must be unique.
func (s *Scheduler) RegisterTask(cfg TaskConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.tasks[cfg.ID]; dup {
		return fmt.Errorf("task with ID %q already registered", cfg.ID)
	}

	job, err := s.cron.NewJob(
		gocron.CronJob(cfg.Cron, false),
		gocron.NewTask(func() { s.run(cfg.ID) }),
		gocron.WithName(cfg.Name),
		gocron.WithTags(cfg.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to create job for task %q: %w", cfg.ID, err)
	}

	s.tasks[cfg.ID] = &task{cfg: cfg, job: job}
	s.logger.Info().
		Str("id", cfg.ID).
		Str("cron", cfg.Cron).
		Bool("runOnStart", cfg.RunOnStart).
		Msg("Registered task")
	return nil
}

// Start begins cron dispatch and kicks off RunOnStart tasks.
func (s *Scheduler) Start() error {
	s.logger.Info().Msg("Starting scheduler")
	s.cron.Start()

	s.mu.RLock()
	var startup []string
	for id, t := range s.tasks {
		if t.cfg.RunOnStart {
			startup = append(startup, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range startup {
		go s.run(id)
	}
	return nil
}

// Stop shuts the scheduler down, waiting for in-flight jobs.
func (s *Scheduler) Stop() error {
	s.logger.Info().Msg("Stopping scheduler")
	return s.cron.Shutdown()
}

// RunNow triggers a task outside its schedule.
func (s *Scheduler) RunNow(id string) error {
	s.mu.RLock()
	t, ok := s.tasks[id]
	running := ok && t.running
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if running {
		return fmt.Errorf("%w: %s", ErrTaskRunning, id)
	}

	go s.run(id)
	return nil
}

// ListTasks returns every task's state, ordered by ID.
func (s *Scheduler) ListTasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		infos = append(infos, t.snapshot())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// GetTask returns one task's state.
func (s *Scheduler) GetTask(id string) (*TaskInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	info := t.snapshot()
	return &info, nil
}

// run executes one task and records its outcome.
func (s *Scheduler) run(id string) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok || t.running {
		s.mu.Unlock()
		return
	}
	t.running = true
	s.mu.Unlock()

	started := time.Now()
	s.logger.Info().Str("id", id).Msg("Starting task")
	err := t.cfg.Func(context.Background())
	elapsed := time.Since(started)

	s.mu.Lock()
	t.running = false
	t.lastRun = &started
	t.lastError = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Str("id", id).Dur("duration", elapsed).Msg("Task failed")
		return
	}
	s.logger.Info().Str("id", id).Dur("duration", elapsed).Msg("Task completed")
}

// snapshot copies the task state for API responses. Callers hold s.mu.
func (t *task) snapshot() TaskInfo {
	info := TaskInfo{
		ID:          t.cfg.ID,
		Name:        t.cfg.Name,
		Description: t.cfg.Description,
		Cron:        t.cfg.Cron,
		LastRun:     t.lastRun,
		Running:     t.running,
	}
	if t.lastError != nil {
		info.LastError = t.lastError.Error()
	}
	if next, err := t.job.NextRun(); err == nil {
		info.NextRun = &next
	}
	return info
}
