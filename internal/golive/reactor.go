package golive

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"shipshape-api-server/internal/events"
	"shipshape-api-server/internal/models"
	"shipshape-api-server/internal/notify"
	"shipshape-api-server/internal/scheduler"
)

// ReactorConfig describes the go-live executor endpoint and the identity allowed to call it.
type ReactorConfig struct {
	ExecutorURL  string
	InvokerEmail string
	Audience     string
}

// WriteReport is what one reactor invocation did, step by step.
type WriteReport struct {
	ShipmentID  string
	CancelStale StepResult
	Award       StepResult
	Schedule    StepResult
	Persist     StepResult
	TaskName    string
}

// ShipmentWriteReactor runs after every create or update of a shipment document.
type ShipmentWriteReactor struct {
	store     TaskBookkeeper
	scheduler scheduler.Scheduler
	notifier  Notifier
	events    events.Publisher
	cfg       ReactorConfig
	now       func() time.Time
}

func NewShipmentWriteReactor(store TaskBookkeeper, sched scheduler.Scheduler, notifier Notifier, pub events.Publisher, cfg ReactorConfig) *ShipmentWriteReactor {
	if pub == nil {
		pub = events.Noop{}
	}
	if cfg.Audience == "" {
		cfg.Audience = cfg.ExecutorURL
	}
	return &ShipmentWriteReactor{
		store:     store,
		scheduler: sched,
		notifier:  notifier,
		events:    pub,
		cfg:       cfg,
		now:       time.Now,
	}
}

// OnShipmentWritten receives the snapshots before and after the write; before is nil on
// creation. The steps run in order and a failing step never stops the next one.
func (r *ShipmentWriteReactor) OnShipmentWritten(ctx context.Context, before, after *models.Shipment) WriteReport {
	report := WriteReport{}
	switch {
	case after != nil:
		report.ShipmentID = after.ID
	case before != nil:
		report.ShipmentID = before.ID
	}

	report.CancelStale = r.cancelStaleTask(ctx, before)
	report.Award = r.notifyAward(ctx, before, after)
	report.Schedule, report.Persist, report.TaskName = r.scheduleGoLive(ctx, after)
	return report
}

func (r *ShipmentWriteReactor) cancelStaleTask(ctx context.Context, before *models.Shipment) StepResult {
	if before == nil || before.GoLiveTaskName == "" {
		return skipped("no outstanding task")
	}
	err := r.scheduler.DeleteTask(ctx, before.GoLiveTaskName)
	switch {
	case err == nil:
		log.Printf("[reactor] deleted stale go-live task %s for shipment %s", before.GoLiveTaskName, before.ID)
		return succeeded()
	case errors.Is(err, scheduler.ErrTaskNotFound):
		// Already fired or already deleted.
		return skipped("task already gone")
	default:
		log.Printf("[reactor] failed to delete go-live task %s for shipment %s: %v", before.GoLiveTaskName, before.ID, err)
		return failed("delete stale task", err)
	}
}

func (r *ShipmentWriteReactor) notifyAward(ctx context.Context, before, after *models.Shipment) StepResult {
	if after == nil || after.Status != models.ShipmentAwarded {
		return skipped("not awarded")
	}
	if before != nil && before.Status == models.ShipmentAwarded {
		return skipped("already awarded")
	}
	if after.WinningCarrierID == "" || after.ProductName == "" {
		return skipped("missing winning carrier or product name")
	}

	if err := r.notifier.Emit(ctx, after.WinningCarrierID, notify.AwardMessage(after.ProductName), notify.CarrierShipmentLink(after.ID)); err != nil {
		return failed("award notification", err)
	}
	r.publish(ctx, events.LifecycleEvent{
		Event:      events.ShipmentAwarded,
		ShipmentID: after.ID,
		Status:     string(after.Status),
		Source:     "reactor",
	})
	return succeeded()
}

// scheduleGoLive covers the scheduling guard, the past-time guard, task creation and
// persisting the task name.
func (r *ShipmentWriteReactor) scheduleGoLive(ctx context.Context, after *models.Shipment) (StepResult, StepResult, string) {
	notPersisted := skipped("no task created")

	if after == nil || after.Status != models.ShipmentScheduled || after.GoLiveAt == nil {
		return skipped("not scheduled"), notPersisted, ""
	}
	goLiveAt := *after.GoLiveAt
	if !goLiveAt.After(r.now()) {
		// Left to the sweeper.
		return skipped("go-live time already passed"), notPersisted, ""
	}

	body, err := json.Marshal(models.GoLiveTaskPayload{ShipmentID: after.ID, Revision: after.Revision})
	if err != nil {
		return failed("encode task payload", err), notPersisted, ""
	}
	task := scheduler.Task{
		Name:         "golive-" + after.ID,
		ScheduleTime: time.Unix(goLiveAt.Unix(), 0).UTC(),
		HTTPRequest: scheduler.HTTPRequest{
			HTTPMethod: "POST",
			URL:        r.cfg.ExecutorURL,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       body,
			OIDCToken: &scheduler.OIDCToken{
				ServiceAccountEmail: r.cfg.InvokerEmail,
				Audience:            r.cfg.Audience,
			},
		},
	}

	name, err := r.scheduler.CreateTask(ctx, task)
	if err != nil {
		log.Printf("[reactor] failed to create go-live task for shipment %s: %v", after.ID, err)
		return failed("create task", err), notPersisted, ""
	}
	log.Printf("[reactor] scheduled go-live task %s for shipment %s at %s", name, after.ID, task.ScheduleTime.Format(time.RFC3339))

	if err := r.store.SetGoLiveTask(ctx, after.ID, after.Revision, name); err != nil {
		if errors.Is(err, models.ErrRevisionConflict) {
			// A newer write owns the schedule now; this task would only be a stray.
			if delErr := r.scheduler.DeleteTask(ctx, name); delErr != nil && !errors.Is(delErr, scheduler.ErrTaskNotFound) {
				log.Printf("[reactor] failed to delete orphaned task %s for shipment %s: %v", name, after.ID, delErr)
			}
			return succeeded(), skipped("superseded by a newer write"), name
		}
		log.Printf("CRITICAL: [reactor] task %s created but not recorded on shipment %s: %v", name, after.ID, err)
		return succeeded(), failed("persist task name", err), name
	}

	r.publish(ctx, events.LifecycleEvent{
		Event:      events.ShipmentScheduled,
		ShipmentID: after.ID,
		Status:     string(after.Status),
		Source:     "reactor",
		TaskName:   name,
	})
	return succeeded(), succeeded(), name
}

func (r *ShipmentWriteReactor) publish(ctx context.Context, ev events.LifecycleEvent) {
	if err := r.events.Publish(ctx, ev); err != nil {
		log.Printf("[reactor] failed to publish %s for shipment %s: %v", ev.Event, ev.ShipmentID, err)
	}
}
