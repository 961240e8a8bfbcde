package models

import (
	"time"
)

// Bid is a carrier's offer on a live shipment. Lower amounts win the reverse auction.
type Bid struct {
	ID          string    `bson:"_id" json:"id"`
	ShipmentID  string    `bson:"shipmentId" json:"shipmentId"`
	CarrierID   string    `bson:"carrierId" json:"carrierId"`
	CarrierName string    `bson:"carrierName" json:"carrierName"`
	BidAmount   float64   `bson:"bidAmount" json:"bidAmount"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}

// Registration records a carrier's interest in a scheduled shipment.
type Registration struct {
	ID           string    `bson:"_id" json:"id"`
	ShipmentID   string    `bson:"shipmentId" json:"shipmentId"`
	CarrierID    string    `bson:"carrierId" json:"carrierId"`
	RegisteredAt time.Time `bson:"registeredAt" json:"registeredAt"`
}

func RegistrationID(shipmentID, carrierID string) string {
	return shipmentID + ":" + carrierID
}
