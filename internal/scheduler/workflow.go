package scheduler

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	TaskWorkflowName     = "DelayedHTTPTaskWorkflow"
	DispatchActivityName = "DispatchHTTPTask"
)

// DelayedHTTPTaskWorkflow sleeps until the task's schedule time and then dispatches its
// HTTP request. One execution per task; the workflow ID is the task name.
func DelayedHTTPTaskWorkflow(ctx workflow.Context, task Task) error {
	logger := workflow.GetLogger(ctx)

	if wait := task.ScheduleTime.Sub(workflow.Now(ctx)); wait > 0 {
		if err := workflow.Sleep(ctx, wait); err != nil {
			return err
		}
	}

	// Target down or answering 5xx: retry with backoff, the executor is idempotent.
	retrypolicy := &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Minute,
		MaximumAttempts:    100,
	}
	options := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         retrypolicy,
	}
	ctx = workflow.WithActivityOptions(ctx, options)

	if err := workflow.ExecuteActivity(ctx, DispatchActivityName, task.HTTPRequest).Get(ctx, nil); err != nil {
		logger.Error("Task dispatch failed", "task", task.Name, "url", task.HTTPRequest.URL, "error", err)
		return err
	}
	return nil
}
