package jobs

import (
	"context"

	"ubertool-reminder-dispatch/internal/domain"
	"ubertool-reminder-dispatch/internal/logger"
)

// SendReminders runs the dispatch with the scope configured for the scheduler
func (jr *JobRunner) SendReminders() {
	scope, err := domain.ParseScope(jr.config.Scheduler.Scope)
	if err != nil {
		logger.Error("Invalid scheduler scope", "scope", jr.config.Scheduler.Scope, "error", err)
		return
	}
	jr.RunReminders(scope)
}

// RunReminders runs one dispatch for scope and logs its counters. It returns the
// result, or nil when the run failed.
func (jr *JobRunner) RunReminders(scope domain.Scope) *domain.RunResult {
	var result *domain.RunResult
	jr.runWithRecovery("SendReminders", func() {
		res, err := jr.dispatcher.Run(context.Background(), scope)
		if err != nil {
			logger.Error("Reminder dispatch failed", "scope", scope, "error", err)
			return
		}
		result = res
		logger.Info("Reminder dispatch finished",
			"date", res.Date,
			"scope", res.Scope,
			"claimed", res.Claimed,
			"adopted", res.Adopted,
			"sent", res.Sent,
			"failed", res.Failed,
			"skipped", res.Skipped)
	})
	return result
}
