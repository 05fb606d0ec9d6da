// Package controller runs the periodic maintenance jobs of the webhook pipeline.
//
// Each controller reconciles one aspect of event state on a cron schedule:
//   - RetrySweepController republishes unsent events whose last attempt is old enough
//   - RetentionController deletes event rows past the retention window
//
// Controllers are idempotent and independent. A run that is still in progress when its
// next tick fires is skipped rather than overlapped.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/refundly/webhooks/internal/config"
	"github.com/refundly/webhooks/pkg/logger"
)

// Controller defines the interface for a scheduled reconciliation job.
type Controller interface {
	// Name returns the unique name of this controller.
	Name() string

	// Schedule returns the cron expression the controller runs on.
	Schedule() string

	// Reconcile performs one run and returns the number of items processed.
	Reconcile(ctx context.Context) (int, error)
}

// Metrics defines the interface for controller metrics collection.
type Metrics interface {
	RecordReconcile(controller string, itemsProcessed int, duration time.Duration, err error)
	SetControllerRunning(controller string, running bool)
	IncrementReconcileErrors(controller string)
	SetLastReconcileTime(controller string, t time.Time)
}

// DefaultReconcileTimeout bounds a single run.
const DefaultReconcileTimeout = 10 * time.Minute

// Manager schedules registered controllers with cron.
type Manager struct {
	controllers []Controller
	metrics     Metrics
	logger      *logger.Logger
	timeout     time.Duration
	runOnStart  bool

	cron    *cron.Cron
	jobs    map[string]cron.Job
	startup sync.WaitGroup
	cancel  context.CancelFunc
	running bool
	mu      sync.Mutex
}

// ManagerConfig configures the controller manager.
type ManagerConfig struct {
	// Metrics collector (optional)
	Metrics Metrics

	// Logger (required)
	Logger *logger.Logger

	// ReconcileTimeout bounds each run. Default: DefaultReconcileTimeout.
	ReconcileTimeout time.Duration

	// RunOnStart triggers every controller once when the manager starts.
	RunOnStart bool
}

// NewManager creates a new controller manager.
func NewManager(cfg *ManagerConfig) *Manager {
	timeout := cfg.ReconcileTimeout
	if timeout <= 0 {
		timeout = DefaultReconcileTimeout
	}
	log := cfg.Logger.With("component", "controller_manager")
	return &Manager{
		controllers: make([]Controller, 0),
		metrics:     cfg.Metrics,
		logger:      log,
		timeout:     timeout,
		runOnStart:  cfg.RunOnStart,
	}
}

// Register adds a controller to the manager.
// The schedule is validated here so a bad expression fails at startup.
func (m *Manager) Register(c Controller) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("cannot register controller %s while manager is running", c.Name())
	}
	if err := config.ValidateSchedule(c.Schedule()); err != nil {
		return fmt.Errorf("controller %s: %w", c.Name(), err)
	}

	m.controllers = append(m.controllers, c)
	m.logger.Info("controller registered",
		"name", c.Name(),
		"schedule", c.Schedule(),
	)
	return nil
}

// Start schedules all registered controllers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("controller manager already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	cronLog := cronLogger{log: m.logger}
	// Startup runs go through the same wrapped job as scheduled ticks, so a slow first run
	// makes the overlapping tick skip.
	chain := cron.NewChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))
	c := cron.New(cron.WithParser(config.ScheduleParser), cron.WithLogger(cronLog))

	jobs := make(map[string]cron.Job, len(m.controllers))
	for _, ctrl := range m.controllers {
		job := chain.Then(cron.FuncJob(func() { m.reconcileOnce(runCtx, ctrl) }))
		if _, err := c.AddJob(ctrl.Schedule(), job); err != nil {
			cancel()
			return fmt.Errorf("schedule controller %s: %w", ctrl.Name(), err)
		}
		jobs[ctrl.Name()] = job
		if m.metrics != nil {
			m.metrics.SetControllerRunning(ctrl.Name(), true)
		}
	}

	m.cron = c
	m.jobs = jobs
	m.cancel = cancel
	m.running = true

	m.logger.Info("starting controller manager", "controller_count", len(m.controllers))
	c.Start()

	if m.runOnStart {
		for _, ctrl := range m.controllers {
			m.startup.Add(1)
			go func() {
				defer m.startup.Done()
				jobs[ctrl.Name()].Run()
			}()
		}
	}

	return nil
}

// Stop stops scheduling and waits for in-flight runs to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	c, cancel := m.cron, m.cancel
	m.mu.Unlock()

	m.logger.Info("stopping controller manager")

	cancel()
	<-c.Stop().Done()
	m.startup.Wait()

	if m.metrics != nil {
		for _, ctrl := range m.controllers {
			m.metrics.SetControllerRunning(ctrl.Name(), false)
		}
	}

	m.logger.Info("controller manager stopped")
}

// reconcileOnce runs a single reconciliation for a controller.
func (m *Manager) reconcileOnce(ctx context.Context, c Controller) (int, error) {
	name := c.Name()
	start := time.Now()

	reconcileCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	count, err := c.Reconcile(reconcileCtx)
	duration := time.Since(start)

	if err != nil {
		m.logger.Error("controller reconcile failed",
			"name", name,
			"items_processed", count,
			"duration", duration,
			"error", err,
		)
		if m.metrics != nil {
			m.metrics.IncrementReconcileErrors(name)
		}
	} else if count > 0 {
		m.logger.Info("controller reconcile completed",
			"name", name,
			"items_processed", count,
			"duration", duration,
		)
	} else {
		m.logger.Debug("controller reconcile completed (no items)",
			"name", name,
			"duration", duration,
		)
	}

	if m.metrics != nil {
		m.metrics.RecordReconcile(name, count, duration, err)
		m.metrics.SetLastReconcileTime(name, time.Now())
	}

	return count, err
}

// IsRunning checks if the manager is running.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// ControllerNames returns the names of all registered controllers.
func (m *Manager) ControllerNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, len(m.controllers))
	for i, c := range m.controllers {
		names[i] = c.Name()
	}
	return names
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
