// Package golive drives the shipment go-live lifecycle: scheduling the go-live task on
// every shipment write, executing it, and sweeping shipments the task path missed.
package golive

import (
	"context"
	"time"

	"shipshape-api-server/internal/models"
)

type ShipmentReader interface {
	GetShipment(ctx context.Context, id string) (*models.Shipment, error)
}

// TaskBookkeeper records the outstanding go-live task on a shipment. The write is
// conditioned on revision and returns models.ErrRevisionConflict when a newer write won.
type TaskBookkeeper interface {
	SetGoLiveTask(ctx context.Context, id string, revision int64, taskName string) error
}

type ExecutorStore interface {
	ShipmentReader
	// MarkLive flips scheduled to live if the stored revision still matches.
	// It reports false when the shipment changed underneath.
	MarkLive(ctx context.Context, id string, revision int64) (bool, error)
	ListRegistrations(ctx context.Context, shipmentID string) ([]models.Registration, error)
}

type SweepStore interface {
	FindDueScheduled(ctx context.Context, now time.Time) ([]models.Shipment, error)
	// MarkLiveBatch returns the ids it actually flipped.
	MarkLiveBatch(ctx context.Context, ids []string, now time.Time) ([]string, error)
}

// Notifier is satisfied by notify.Emitter.
type Notifier interface {
	Emit(ctx context.Context, recipientID, message, link string) error
}
