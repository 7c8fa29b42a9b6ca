package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
)

// Job is one unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs jobs on cron schedules. A job whose previous run is still going is
// skipped rather than stacked.
type Scheduler struct {
	mu        sync.Mutex
	cron      *cron.Cron
	entries   map[string]cron.EntryID
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
}

// NewScheduler creates a new scheduler
func NewScheduler(log *logger.Logger) *Scheduler {
	cl := cronLogger{log: log}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		entries: make(map[string]cron.EntryID),
		logger:  log,
		ctx:     context.Background(),
	}
}

// Add registers job under a standard cron expression or descriptor such as "@every 1m".
func (s *Scheduler) Add(spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[job.Name()]; exists {
		return fmt.Errorf("job %s is already scheduled", job.Name())
	}
	id, err := s.cron.AddFunc(spec, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, job.Name(), err)
	}
	s.entries[job.Name()] = id

	s.logger.WithFields(map[string]interface{}{
		"job":      job.Name(),
		"schedule": spec,
	}).Info("Job scheduled")
	return nil
}

// Start begins running scheduled jobs. Jobs receive a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.isRunning = true

	s.logger.WithFields(map[string]interface{}{
		"jobs": len(s.entries),
	}).Info("Scheduler started")
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RunNow executes a registered job synchronously.
func (s *Scheduler) RunNow(job Job) {
	s.run(job)
}

func (s *Scheduler) run(job Job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if err := job.Run(ctx); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"job": job.Name(),
		}).ErrorWithErr(err, "Scheduled job failed")
	}
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).ErrorWithErr(err, "cron: "+msg)
}

func kvFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
