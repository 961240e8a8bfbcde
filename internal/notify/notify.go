// Package notify writes in-app notifications and pushes them to connected clients.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"shipshape-api-server/internal/models"
)

// Store persists notification documents; the store assigns the creation time.
type Store interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
}

// Pusher delivers a message to a connected user, if any.
type Pusher interface {
	Send(userID string, message []byte) error
}

// Emitter inserts one notification per call. Failures are logged and reported through
// the returned error only; they must never block the transition that triggered them.
type Emitter struct {
	store   Store
	pusher  Pusher
	marshal func(v interface{}) ([]byte, error)
}

func NewEmitter(store Store, pusher Pusher) *Emitter {
	return &Emitter{store: store, pusher: pusher, marshal: json.Marshal}
}

func (e *Emitter) Emit(ctx context.Context, recipientID, message, link string) error {
	n := &models.Notification{
		RecipientID: recipientID,
		Message:     message,
		Link:        link,
		IsRead:      false,
	}
	if err := e.store.InsertNotification(ctx, n); err != nil {
		log.Printf("[notify] failed to write notification for %s: %v", recipientID, err)
		return fmt.Errorf("insert notification: %w", err)
	}

	if e.pusher == nil {
		return nil
	}
	// Bản ghi đã lưu; lỗi ở bước push chỉ được log.
	payload, err := e.marshal(map[string]interface{}{
		"event":        "notification",
		"notification": n,
	})
	if err != nil {
		log.Printf("[notify] could not encode push for %s: %v", recipientID, err)
		return nil
	}
	if err := e.pusher.Send(recipientID, payload); err != nil {
		log.Printf("[notify] websocket push to %s failed: %v", recipientID, err)
	}
	return nil
}

// --- Nội dung và đường dẫn của thông báo ---

func CarrierShipmentLink(shipmentID string) string {
	return "/dashboard/carrier/shipment/" + shipmentID
}

func ExporterShipmentLink(shipmentID string) string {
	return "/dashboard/exporter/shipment/" + shipmentID
}

func AwardMessage(productName string) string {
	return fmt.Sprintf("Congratulations! You have been awarded the shipment for %q.", productName)
}

func NewBidMessage(amount float64, productName string) string {
	return fmt.Sprintf("New bid of %.2f received on your shipment %q.", amount, productName)
}

func LiveMessage(productName string) string {
	return fmt.Sprintf("Shipment %q is now live for bidding.", productName)
}
