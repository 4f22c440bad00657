package jobs

import (
	"context"

	"ubertool-reminder-dispatch/internal/config"
	"ubertool-reminder-dispatch/internal/domain"
	"ubertool-reminder-dispatch/internal/logger"
)

// Dispatcher runs one reminder dispatch
type Dispatcher interface {
	Run(ctx context.Context, scope domain.Scope) (*domain.RunResult, error)
}

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	dispatcher Dispatcher
	config     *config.Config
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(dispatcher Dispatcher, cfg *config.Config) *JobRunner {
	return &JobRunner{
		dispatcher: dispatcher,
		config:     cfg,
	}
}

// Config returns the configuration the runner was built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}
