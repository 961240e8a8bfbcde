// server/internal/models/shipment.go
package models

import (
	"time"
)

type ShipmentStatus string

const (
	ShipmentDraft     ShipmentStatus = "draft"
	ShipmentScheduled ShipmentStatus = "scheduled"
	ShipmentLive      ShipmentStatus = "live"
	ShipmentAwarded   ShipmentStatus = "awarded"
)

// Valid reports whether s is one of the known lifecycle states.
func (s ShipmentStatus) Valid() bool {
	switch s {
	case ShipmentDraft, ShipmentScheduled, ShipmentLive, ShipmentAwarded:
		return true
	}
	return false
}

// Shipment là một yêu cầu vận chuyển do exporter đăng lên.
type Shipment struct {
	ID          string `bson:"_id" json:"id"`
	ExporterID  string `bson:"exporterId" json:"exporterId"`
	ProductName string `bson:"productName" json:"productName"`

	// Thông tin mô tả hàng hóa / tuyến đường
	Origin      string  `bson:"origin,omitempty" json:"origin"`
	Destination string  `bson:"destination,omitempty" json:"destination"`
	CargoType   string  `bson:"cargoType,omitempty" json:"cargoType"`
	WeightKg    float64 `bson:"weightKg,omitempty" json:"weightKg"`

	Status         ShipmentStatus `bson:"status" json:"status"`
	GoLiveAt       *time.Time     `bson:"goLiveAt,omitempty" json:"goLiveAt"`
	GoLiveTaskName string         `bson:"goLiveTaskName,omitempty" json:"goLiveTaskName,omitempty"`
	// Revision is bumped by every shipment write except go-live task bookkeeping.
	Revision int64 `bson:"revision" json:"revision"`

	WinningCarrierID   string  `bson:"winningCarrierId,omitempty" json:"winningCarrierId,omitempty"`
	WinningCarrierName string  `bson:"winningCarrierName,omitempty" json:"winningCarrierName,omitempty"`
	WinningBidID       string  `bson:"winningBidId,omitempty" json:"winningBidId,omitempty"`
	WinningBidAmount   float64 `bson:"winningBidAmount,omitempty" json:"winningBidAmount,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// GoLiveTaskPayload is the body the scheduler posts to the go-live executor.
type GoLiveTaskPayload struct {
	ShipmentID string `json:"shipmentId"`
	Revision   int64  `json:"revision,omitempty"`
}
