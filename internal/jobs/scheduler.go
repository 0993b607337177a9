// Package jobs runs periodic background work with gocron.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"categorybot/internal/services"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// SnapshotJobName identifies the periodic export archive job
const SnapshotJobName = "category-snapshot"

// JobScheduler owns the gocron scheduler and the jobs registered on it
type JobScheduler struct {
	scheduler gocron.Scheduler
	snapshots services.SnapshotService
	logger    *zap.Logger
	jobs      map[string]gocron.Job
	mu        sync.RWMutex

	// ctx is handed to every task and cancelled by Stop
	ctx    context.Context
	cancel context.CancelFunc
}

// NewJobScheduler registers the snapshot job when interval is positive and
// the snapshot service has storage configured.
func NewJobScheduler(snapshots services.SnapshotService, interval time.Duration, logger *zap.Logger) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	js := &JobScheduler{
		scheduler: scheduler,
		snapshots: snapshots,
		logger:    logger,
		jobs:      make(map[string]gocron.Job),
		ctx:       ctx,
		cancel:    cancel,
	}

	if interval > 0 && snapshots != nil && snapshots.Enabled() {
		if err := js.AddJob(SnapshotJobName, interval, js.createSnapshot); err != nil {
			cancel()
			_ = scheduler.Shutdown()
			return nil, err
		}
	} else {
		logger.Info("snapshot job disabled", zap.Duration("interval", interval))
	}

	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	js.logger.Info("starting background job scheduler", zap.Strings("jobs", js.JobNames()))
	js.scheduler.Start()
}

// Stop cancels running tasks and waits for them to return
func (js *JobScheduler) Stop() error {
	js.logger.Info("stopping background job scheduler")
	js.cancel()
	return js.scheduler.Shutdown()
}

// Run starts the scheduler and stops it once ctx is done
func (js *JobScheduler) Run(ctx context.Context) error {
	js.Start()
	<-ctx.Done()
	return js.Stop()
}

// AddJob schedules task every interval. A run still in progress when the
// next one is due is rescheduled instead of overlapping.
func (js *JobScheduler) AddJob(name string, interval time.Duration, task func(ctx context.Context)) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if _, exists := js.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	job, err := js.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task, js.ctx),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", name, err)
	}

	js.jobs[name] = job
	js.logger.Info("registered background job", zap.String("job", name), zap.Duration("interval", interval))
	return nil
}

// JobNames returns the registered job names in order
func (js *JobScheduler) JobNames() []string {
	js.mu.RLock()
	defer js.mu.RUnlock()

	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (js *JobScheduler) createSnapshot(ctx context.Context) {
	start := time.Now()
	snapshot, err := js.snapshots.CreateSnapshot(ctx)
	if err != nil {
		js.logger.Error("scheduled snapshot failed", zap.Error(err))
		return
	}
	js.logger.Info("scheduled snapshot stored",
		zap.String("object", snapshot.ObjectName),
		zap.Duration("took", time.Since(start)))
}
