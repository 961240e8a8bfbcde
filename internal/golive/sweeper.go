package golive

import (
	"context"
	"errors"
	"log"
	"time"

	"shipshape-api-server/internal/events"
	"shipshape-api-server/internal/models"
	"shipshape-api-server/internal/scheduler"
)

const DefaultSweepBatchSize = 500

type SweepReport struct {
	Due           int
	Batches       int
	FailedBatches int
	Transitioned  int64
	TasksDeleted  int
}

// Sweeper force-transitions scheduled shipments whose go-live time has passed.
// It sends no registrant notifications; those only come from the executor.
type Sweeper struct {
	store     SweepStore
	scheduler scheduler.Scheduler
	events    events.Publisher
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewSweeper(store SweepStore, sched scheduler.Scheduler, pub events.Publisher, interval time.Duration, batchSize int) *Sweeper {
	if pub == nil {
		pub = events.Noop{}
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 || batchSize > DefaultSweepBatchSize {
		batchSize = DefaultSweepBatchSize
	}
	return &Sweeper{
		store:     store,
		scheduler: sched,
		events:    pub,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Start sweeps once immediately, then on every tick until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	log.Printf("[sweeper] started, interval %s", s.interval)
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("[sweeper] stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Sweeper) Sweep(ctx context.Context) SweepReport {
	var report SweepReport
	now := s.now()

	due, err := s.store.FindDueScheduled(ctx, now)
	if err != nil {
		log.Printf("[sweeper] query for due shipments failed: %v", err)
		return report
	}
	report.Due = len(due)
	if len(due) == 0 {
		return report
	}

	for start := 0; start < len(due); start += s.batchSize {
		end := start + s.batchSize
		if end > len(due) {
			end = len(due)
		}
		batch := due[start:end]
		report.Batches++

		ids := make([]string, 0, len(batch))
		for _, sh := range batch {
			ids = append(ids, sh.ID)
		}
		flipped, err := s.store.MarkLiveBatch(ctx, ids, now)
		if err != nil {
			// Next batch still runs.
			log.Printf("[sweeper] batch %d (%d shipments) failed: %v", report.Batches, len(ids), err)
			report.FailedBatches++
			continue
		}
		report.Transitioned += int64(len(flipped))
		report.TasksDeleted += s.cleanup(ctx, batch, flipped)
	}

	log.Printf("[sweeper] %d due, %d transitioned, %d failed batches", report.Due, report.Transitioned, report.FailedBatches)
	return report
}

// cleanup deletes tasks still named on the shipments this batch flipped and publishes
// their live events. Shipments another writer moved first are left to that writer.
func (s *Sweeper) cleanup(ctx context.Context, batch []models.Shipment, flipped []string) int {
	mine := make(map[string]bool, len(flipped))
	for _, id := range flipped {
		mine[id] = true
	}
	deleted := 0
	for _, sh := range batch {
		if !mine[sh.ID] {
			continue
		}
		if sh.GoLiveTaskName != "" {
			err := s.scheduler.DeleteTask(ctx, sh.GoLiveTaskName)
			switch {
			case err == nil:
				deleted++
			case errors.Is(err, scheduler.ErrTaskNotFound):
			default:
				log.Printf("[sweeper] could not delete task %s for shipment %s: %v", sh.GoLiveTaskName, sh.ID, err)
			}
		}
		ev := events.LifecycleEvent{
			Event:      events.ShipmentLive,
			ShipmentID: sh.ID,
			Status:     string(models.ShipmentLive),
			Source:     "sweeper",
		}
		if err := s.events.Publish(ctx, ev); err != nil {
			log.Printf("[sweeper] failed to publish %s for shipment %s: %v", ev.Event, sh.ID, err)
		}
	}
	return deleted
}
