// Package refresh keeps the gone list and homepage job list warm on a cron
// schedule so crawler requests rarely wait on a load.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSpec reloads every five minutes, matching the gone list TTL.
const DefaultSpec = "@every 5m"

// Task is one named reload.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Warmer runs every Task on a schedule.
type Warmer struct {
	cron    *cron.Cron
	spec    string
	tasks   []Task
	logger  *zap.Logger
	timeout time.Duration
}

// New builds a Warmer. An empty spec uses DefaultSpec.
func New(spec string, logger *zap.Logger, tasks ...Task) *Warmer {
	if spec == "" {
		spec = DefaultSpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger.Sugar()}
	return &Warmer{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl))),
		spec:    spec,
		tasks:   tasks,
		logger:  logger,
		timeout: time.Minute,
	}
}

// Start registers the schedule, starts it, and runs one pass immediately in
// the background.
func (w *Warmer) Start(ctx context.Context) error {
	if _, err := w.cron.AddFunc(w.spec, func() { w.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule refresh %q: %w", w.spec, err)
	}
	w.cron.Start()
	w.logger.Info("refresh scheduler started", zap.String("spec", w.spec), zap.Int("tasks", len(w.tasks)))
	go w.RunOnce(ctx)
	return nil
}

// RunOnce runs every task in order. A failing task is logged and does not
// stop the rest.
func (w *Warmer) RunOnce(ctx context.Context) {
	for _, task := range w.tasks {
		if ctx.Err() != nil {
			return
		}
		taskCtx, cancel := context.WithTimeout(ctx, w.timeout)
		start := time.Now()
		err := task.Run(taskCtx)
		cancel()
		if err != nil {
			w.logger.Warn("refresh task failed", zap.String("task", task.Name), zap.Error(err))
			continue
		}
		w.logger.Debug("refresh task done", zap.String("task", task.Name), zap.Duration("took", time.Since(start)))
	}
}

// Stop halts the schedule and waits for a running pass, bounded by ctx.
func (w *Warmer) Stop(ctx context.Context) error {
	done := w.cron.Stop()
	select {
	case <-done.Done():
		w.logger.Info("refresh scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop refresh scheduler: %w", ctx.Err())
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
