package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/trade-assistant/internal/middleware"
	"github.com/trade-assistant/internal/models"
	"github.com/trade-assistant/internal/risk"
	"github.com/trade-assistant/internal/service"
	"github.com/trade-assistant/pkg/response"
)

// TradingHandler handles paper-trading API requests
type TradingHandler struct {
	tradingService *service.TradingService
	monitorService *service.MonitorService
}

// NewTradingHandler creates a new TradingHandler
func NewTradingHandler(tradingService *service.TradingService, monitorService *service.MonitorService) *TradingHandler {
	return &TradingHandler{
		tradingService: tradingService,
		monitorService: monitorService,
	}
}

// RegisterRoutes registers trading routes behind the auth middleware
func (h *TradingHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	rg.GET("/portfolio", authMiddleware, h.Portfolio)

	trading := rg.Group("/trading", authMiddleware)
	{
		trading.POST("/execute", h.Execute)
		trading.POST("/close", h.Close)
		trading.GET("/positions", h.Positions)
		trading.GET("/history", h.History)
		trading.GET("/symbol/:symbol", h.SymbolTrades)
		trading.POST("/monitor", h.Monitor)
	}
}

func (h *TradingHandler) handleTradingError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	var rejection *risk.Rejection
	switch {
	case errors.As(err, &validationErr):
		response.BadRequest(c, validationErr.Message)
	case errors.As(err, &rejection):
		response.UnprocessableEntity(c, rejection.Reason)
	case errors.Is(err, service.ErrPositionNotFound):
		response.NotFound(c, err.Error())
	default:
		response.InternalError(c, err.Error())
	}
}

// Execute submits a candidate paper trade
// POST /api/v1/trading/execute
func (h *TradingHandler) Execute(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req service.TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tradeID, err := h.tradingService.Execute(userID, &req)
	if err != nil {
		h.handleTradingError(c, err)
		return
	}

	response.Success(c, gin.H{"trade_id": tradeID})
}

// Close closes an active position
// POST /api/v1/trading/close
func (h *TradingHandler) Close(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req struct {
		PositionID string  `json:"position_id" binding:"required"`
		ExitPrice  float64 `json:"exit_price" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	pnl, err := h.tradingService.ClosePosition(userID, req.PositionID, req.ExitPrice, models.ExitReasonManual)
	if err != nil {
		h.handleTradingError(c, err)
		return
	}

	response.Success(c, gin.H{"pnl": pnl})
}

// Portfolio returns the portfolio with active positions and recent history
// GET /api/v1/portfolio
func (h *TradingHandler) Portfolio(c *gin.Context) {
	userID := middleware.GetUserID(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("history_limit", "50"))
	snapshot, err := h.tradingService.Snapshot(userID, limit)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, snapshot)
}

// Positions returns the user's open positions
// GET /api/v1/trading/positions
func (h *TradingHandler) Positions(c *gin.Context) {
	userID := middleware.GetUserID(c)

	positions, err := h.tradingService.ListActivePositions(userID)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"positions": positions, "count": len(positions)})
}

// History returns the user's closed trades
// GET /api/v1/trading/history?limit=50
func (h *TradingHandler) History(c *gin.Context) {
	userID := middleware.GetUserID(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	history, err := h.tradingService.ListHistory(userID, limit)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"history": history, "count": len(history)})
}

// SymbolTrades returns active and closed trades for one symbol
// GET /api/v1/trading/symbol/:symbol?strategy=
func (h *TradingHandler) SymbolTrades(c *gin.Context) {
	userID := middleware.GetUserID(c)

	symbol := c.Param("symbol")
	strategy := c.Query("strategy")

	active, closed, err := h.tradingService.SymbolTrades(userID, symbol, strategy)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"active": active, "history": closed})
}

// Monitor runs an on-demand monitor sweep over the user's positions
// POST /api/v1/trading/monitor
func (h *TradingHandler) Monitor(c *gin.Context) {
	userID := middleware.GetUserID(c)

	report, err := h.monitorService.Sweep(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, report)
}
