// internal/api/handlers/shipment_handler.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"shipshape-api-server/internal/marketplace"
	"shipshape-api-server/internal/models"
)

// Marketplace is satisfied by marketplace.Service.
type Marketplace interface {
	GetShipment(ctx context.Context, id string) (*models.Shipment, error)
	ListShipmentsByExporter(ctx context.Context, exporterID string) ([]models.Shipment, error)
	CreateShipment(ctx context.Context, in marketplace.ShipmentInput) (*models.Shipment, error)
	UpdateShipment(ctx context.Context, id string, in marketplace.ShipmentInput, revision int64) (*models.Shipment, error)
	RegisterInterest(ctx context.Context, shipmentID, carrierID string) (bool, error)
	PlaceBid(ctx context.Context, shipmentID, carrierID, carrierName string, amount float64) (*models.Bid, error)
	ListBids(ctx context.Context, shipmentID string) ([]models.Bid, error)
	Award(ctx context.Context, shipmentID, bidID string) (*models.Shipment, error)
}

type ShipmentHandler struct {
	Marketplace Marketplace
}

// --- Structs cho Request Body ---

type UpdateShipmentRequest struct {
	marketplace.ShipmentInput
	Revision int64 `json:"revision" binding:"required"`
}

type RegisterRequest struct {
	CarrierID string `json:"carrierId" binding:"required"`
}

type PlaceBidRequest struct {
	CarrierID   string  `json:"carrierId" binding:"required"`
	CarrierName string  `json:"carrierName"`
	BidAmount   float64 `json:"bidAmount" binding:"required"`
}

type AwardRequest struct {
	BidID string `json:"bidId" binding:"required"`
}

// respondError ánh xạ lỗi nghiệp vụ sang HTTP status.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
	case errors.Is(err, models.ErrRevisionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Shipment was modified by someone else, reload and retry"})
	case errors.Is(err, models.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
	}
}

// --- Handlers ---

func (h *ShipmentHandler) CreateShipment(c *gin.Context) {
	var req marketplace.ShipmentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sh, err := h.Marketplace.CreateShipment(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sh)
}

func (h *ShipmentHandler) UpdateShipment(c *gin.Context) {
	var req UpdateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sh, err := h.Marketplace.UpdateShipment(c.Request.Context(), c.Param("id"), req.ShipmentInput, req.Revision)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

func (h *ShipmentHandler) GetShipment(c *gin.Context) {
	sh, err := h.Marketplace.GetShipment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

func (h *ShipmentHandler) GetShipmentsByExporter(c *gin.Context) {
	list, err := h.Marketplace.ListShipmentsByExporter(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ShipmentHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := h.Marketplace.RegisterInterest(c.Request.Context(), c.Param("id"), req.CarrierID)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"shipmentId": c.Param("id"), "carrierId": req.CarrierID, "registered": true})
}

func (h *ShipmentHandler) PlaceBid(c *gin.Context) {
	var req PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bid, err := h.Marketplace.PlaceBid(c.Request.Context(), c.Param("id"), req.CarrierID, req.CarrierName, req.BidAmount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bid)
}

func (h *ShipmentHandler) ListBids(c *gin.Context) {
	bids, err := h.Marketplace.ListBids(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bids)
}

func (h *ShipmentHandler) Award(c *gin.Context) {
	var req AwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sh, err := h.Marketplace.Award(c.Request.Context(), c.Param("id"), req.BidID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sh)
}
