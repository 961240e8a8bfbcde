// server/internal/api/handlers/golive_handler.go
package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"shipshape-api-server/internal/golive"
	"shipshape-api-server/internal/models"
)

type GoLiveExecutor interface {
	Execute(ctx context.Context, payload models.GoLiveTaskPayload) golive.GoLiveResult
}

// GoLiveHandler là endpoint mà scheduler gọi đúng thời điểm go-live.
type GoLiveHandler struct {
	Executor GoLiveExecutor
}

// Execute trả về chuỗi thuần: scheduler chỉ quan tâm tới status code.
func (h *GoLiveHandler) Execute(c *gin.Context) {
	var payload models.GoLiveTaskPayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.ShipmentID == "" {
		c.String(http.StatusBadRequest, "Missing shipmentId.")
		return
	}

	res := h.Executor.Execute(c.Request.Context(), payload)
	switch res.Status {
	case golive.Transitioned:
		c.String(http.StatusOK, "OK")
	case golive.NoAction:
		c.String(http.StatusOK, "No action needed.")
	case golive.NotFound:
		c.String(http.StatusNotFound, "Shipment not found.")
	case golive.Invalid:
		c.String(http.StatusBadRequest, "Missing shipmentId.")
	default:
		log.Printf("[executor] go-live for %s failed (%s): %v", payload.ShipmentID, res.Reason, res.Err)
		c.String(http.StatusInternalServerError, "Internal error.")
	}
}
