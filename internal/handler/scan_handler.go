package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/trade-assistant/internal/middleware"
	"github.com/trade-assistant/internal/service"
	"github.com/trade-assistant/pkg/response"
)

// ScanHandler handles scanner API requests
type ScanHandler struct {
	scannerService *service.ScannerService
}

// NewScanHandler creates a new ScanHandler
func NewScanHandler(scannerService *service.ScannerService) *ScanHandler {
	return &ScanHandler{scannerService: scannerService}
}

// RegisterRoutes registers scan routes behind the auth middleware
func (h *ScanHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	scan := rg.Group("/scan", authMiddleware)
	{
		scan.POST("/setups", h.ScanSetups)
		scan.POST("/momentum", h.ScanMomentum)
	}
}

// ScanSetups runs the one-hour-setup scan
// POST /api/v1/scan/setups
func (h *ScanHandler) ScanSetups(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req service.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	results, err := h.scannerService.ScanSetups(c.Request.Context(), userID, req)
	if err != nil {
		var validationErr *service.ValidationError
		if errors.As(err, &validationErr) {
			response.BadRequest(c, validationErr.Message)
			return
		}
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"results": results, "count": len(results)})
}

// ScanMomentum runs the generic momentum scan
// POST /api/v1/scan/momentum
func (h *ScanHandler) ScanMomentum(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req service.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	results, err := h.scannerService.ScanMomentum(c.Request.Context(), userID, req)
	if err != nil {
		var validationErr *service.ValidationError
		if errors.As(err, &validationErr) {
			response.BadRequest(c, validationErr.Message)
			return
		}
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"results": results, "count": len(results)})
}
