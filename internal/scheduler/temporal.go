package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// workflowClient is the part of client.Client the scheduler uses.
type workflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	TerminateWorkflow(ctx context.Context, workflowID string, runID string, reason string, details ...interface{}) error
}

// TemporalScheduler stores every task as a workflow execution named after the task.
type TemporalScheduler struct {
	client    workflowClient
	taskQueue string
}

func NewTemporalScheduler(c workflowClient, taskQueue string) *TemporalScheduler {
	return &TemporalScheduler{client: c, taskQueue: taskQueue}
}

func (s *TemporalScheduler) CreateTask(ctx context.Context, task Task) (string, error) {
	prefix := task.Name
	if prefix == "" {
		prefix = "task"
	}
	task.Name = fmt.Sprintf("%s-%s", prefix, uuid.NewString())
	task.ScheduleTime = task.ScheduleTime.Truncate(time.Second)

	options := client.StartWorkflowOptions{
		ID:        task.Name,
		TaskQueue: s.taskQueue,
	}
	run, err := s.client.ExecuteWorkflow(ctx, options, TaskWorkflowName, task)
	if err != nil {
		return "", fmt.Errorf("failed to create task %s: %w", task.Name, err)
	}
	return run.GetID(), nil
}

func (s *TemporalScheduler) DeleteTask(ctx context.Context, name string) error {
	err := s.client.TerminateWorkflow(ctx, name, "", "task deleted")
	if err == nil {
		return nil
	}
	// Completed or unknown executions cannot be terminated.
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return ErrTaskNotFound
	}
	return fmt.Errorf("failed to delete task %s: %w", name, err)
}

// NewWorker registers the task workflow and the dispatch activity on the task queue.
func NewWorker(c client.Client, taskQueue string, dispatcher *Dispatcher) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(DelayedHTTPTaskWorkflow, workflow.RegisterOptions{Name: TaskWorkflowName})
	w.RegisterActivityWithOptions(dispatcher.Dispatch, activity.RegisterOptions{Name: DispatchActivityName})
	return w
}
