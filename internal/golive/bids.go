package golive

import (
	"context"
	"errors"
	"log"

	"shipshape-api-server/internal/models"
	"shipshape-api-server/internal/notify"
)

// BidReactor tells the exporter about every new bid on their shipment.
// It never fails the bid write: the result is only reported back.
type BidReactor struct {
	shipments ShipmentReader
	notifier  Notifier
}

func NewBidReactor(shipments ShipmentReader, notifier Notifier) *BidReactor {
	return &BidReactor{shipments: shipments, notifier: notifier}
}

func (r *BidReactor) OnBidCreated(ctx context.Context, bid *models.Bid) StepResult {
	if bid == nil || bid.ShipmentID == "" {
		return skipped("bid without shipment")
	}

	shipment, err := r.shipments.GetShipment(ctx, bid.ShipmentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return skipped("shipment not found")
		}
		log.Printf("[bids] failed to load shipment %s for bid %s: %v", bid.ShipmentID, bid.ID, err)
		return failed("load shipment", err)
	}
	if shipment.ExporterID == "" {
		return skipped("shipment has no exporter")
	}

	msg := notify.NewBidMessage(bid.BidAmount, shipment.ProductName)
	if err := r.notifier.Emit(ctx, shipment.ExporterID, msg, notify.ExporterShipmentLink(shipment.ID)); err != nil {
		return failed("bid notification", err)
	}
	return succeeded()
}
