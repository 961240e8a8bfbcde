package golive

import (
	"context"
	"errors"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"shipshape-api-server/internal/events"
	"shipshape-api-server/internal/models"
	"shipshape-api-server/internal/notify"
)

// GoLiveStatus is how the executor answered one invocation.
type GoLiveStatus int

const (
	Transitioned GoLiveStatus = iota
	NoAction
	NotFound
	Invalid
	Failed
)

func (s GoLiveStatus) String() string {
	switch s {
	case Transitioned:
		return "transitioned"
	case NoAction:
		return "no_action"
	case NotFound:
		return "not_found"
	case Invalid:
		return "invalid"
	case Failed:
		return "failed"
	}
	return "unknown"
}

type GoLiveResult struct {
	Status       GoLiveStatus
	Reason       string
	Err          error
	Notified     int
	NotifyFailed int
}

// maxFanOut caps concurrent notification writes for one shipment.
const maxFanOut = 16

// Executor is the callback target of go-live tasks.
type Executor struct {
	store    ExecutorStore
	notifier Notifier
	events   events.Publisher
}

func NewExecutor(store ExecutorStore, notifier Notifier, pub events.Publisher) *Executor {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Executor{store: store, notifier: notifier, events: pub}
}

// Execute flips a scheduled shipment to live and notifies every registered carrier.
// Redelivered or stale tasks answer NoAction.
func (e *Executor) Execute(ctx context.Context, payload models.GoLiveTaskPayload) GoLiveResult {
	if payload.ShipmentID == "" {
		return GoLiveResult{Status: Invalid, Reason: "missing shipmentId"}
	}

	shipment, err := e.store.GetShipment(ctx, payload.ShipmentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return GoLiveResult{Status: NotFound, Reason: "shipment not found"}
		}
		log.Printf("[executor] failed to load shipment %s: %v", payload.ShipmentID, err)
		return GoLiveResult{Status: Failed, Reason: "load shipment", Err: err}
	}

	if shipment.Status != models.ShipmentScheduled {
		return GoLiveResult{Status: NoAction, Reason: "shipment is " + string(shipment.Status)}
	}
	// Payloads without a revision come from older tasks and only rely on the status guard.
	revision := shipment.Revision
	if payload.Revision != 0 {
		if payload.Revision != shipment.Revision {
			return GoLiveResult{Status: NoAction, Reason: "task is for an older revision"}
		}
		revision = payload.Revision
	}

	ok, err := e.store.MarkLive(ctx, shipment.ID, revision)
	if err != nil {
		log.Printf("[executor] failed to mark shipment %s live: %v", shipment.ID, err)
		return GoLiveResult{Status: Failed, Reason: "mark live", Err: err}
	}
	if !ok {
		return GoLiveResult{Status: NoAction, Reason: "shipment changed concurrently"}
	}
	log.Printf("[executor] shipment %s is now live", shipment.ID)

	// The transition is committed; a cancelled caller must not cost registrants their
	// notifications, since the redelivery only reaches the status guard.
	ctx = context.WithoutCancel(ctx)

	e.publish(ctx, shipment.ID, "executor")

	regs, err := e.store.ListRegistrations(ctx, shipment.ID)
	if err != nil {
		log.Printf("[executor] shipment %s live but registrations could not be read: %v", shipment.ID, err)
		return GoLiveResult{Status: Failed, Reason: "list registrations", Err: err}
	}

	notified, notifyFailed := e.fanOut(ctx, shipment, regs)
	return GoLiveResult{Status: Transitioned, Notified: notified, NotifyFailed: notifyFailed}
}

// fanOut writes one notification per registration concurrently and waits for all of them.
func (e *Executor) fanOut(ctx context.Context, shipment *models.Shipment, regs []models.Registration) (int, int) {
	var (
		g       errgroup.Group
		ok, bad int64
	)
	g.SetLimit(maxFanOut)

	msg := notify.LiveMessage(shipment.ProductName)
	link := notify.CarrierShipmentLink(shipment.ID)
	for _, reg := range regs {
		carrierID := reg.CarrierID
		g.Go(func() error {
			if err := e.notifier.Emit(ctx, carrierID, msg, link); err != nil {
				atomic.AddInt64(&bad, 1)
				return nil
			}
			atomic.AddInt64(&ok, 1)
			return nil
		})
	}
	_ = g.Wait()

	if bad > 0 {
		log.Printf("[executor] %d of %d live notifications failed for shipment %s", bad, len(regs), shipment.ID)
	}
	return int(ok), int(bad)
}

func (e *Executor) publish(ctx context.Context, shipmentID, source string) {
	ev := events.LifecycleEvent{
		Event:      events.ShipmentLive,
		ShipmentID: shipmentID,
		Status:     string(models.ShipmentLive),
		Source:     source,
	}
	if err := e.events.Publish(ctx, ev); err != nil {
		log.Printf("[%s] failed to publish %s for shipment %s: %v", source, ev.Event, shipmentID, err)
	}
}
