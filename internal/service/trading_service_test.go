package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trade-assistant/internal/models"
	"github.com/trade-assistant/internal/repository"
	"github.com/trade-assistant/internal/risk"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Portfolio{},
		&models.Position{},
		&models.TradeRecord{},
	))
	return db
}

func newTestTradingService(t *testing.T) (*TradingService, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	svc := NewTradingService(
		db,
		repository.NewPortfolioRepository(db),
		repository.NewPositionRepository(db),
		repository.NewHistoryRepository(db),
		risk.DefaultLimits(),
	)
	return svc, db
}

func validRequest() *TradeRequest {
	return &TradeRequest{
		Symbol:     "NSE:RELIANCE-EQ",
		Side:       models.TradeSideBuy,
		Quantity:   10,
		EntryPrice: 100,
		StopLoss:   95,
		Target:     110,
	}
}

func TestExecuteCreatesPositionAndPortfolio(t *testing.T) {
	svc, db := newTestTradingService(t)

	tradeID, err := svc.Execute(1, validRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, tradeID)

	var position models.Position
	require.NoError(t, db.First(&position, "id = ?", tradeID).Error)
	assert.Equal(t, uint(1), position.UserID)
	assert.Equal(t, models.TradeSideBuy, position.Side)
	assert.Equal(t, 100.0, position.CurrentPrice)
	assert.Equal(t, 50.0, position.RiskAmount)
	assert.Equal(t, "Manual", position.Strategy)

	var portfolio models.Portfolio
	require.NoError(t, db.First(&portfolio, "user_id = ?", 1).Error)
	assert.Equal(t, float64(models.DefaultInitialCapital), portfolio.InitialValue)
	assert.Equal(t, float64(models.DefaultInitialCapital), portfolio.CurrentValue)
	assert.Equal(t, 0.0, portfolio.TotalPnL)
}

func TestExecuteRejectsInvalidRequest(t *testing.T) {
	svc, _ := newTestTradingService(t)

	req := validRequest()
	req.Quantity = 0
	_, err := svc.Execute(1, req)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "quantity must be positive", validationErr.Message)
}

func TestExecuteRejectsSixthPosition(t *testing.T) {
	svc, _ := newTestTradingService(t)

	for i := 0; i < 5; i++ {
		req := validRequest()
		req.Symbol = fmt.Sprintf("NSE:STOCK%d-EQ", i)
		_, err := svc.Execute(1, req)
		require.NoError(t, err)
	}

	req := validRequest()
	req.Symbol = "NSE:STOCK6-EQ"
	_, err := svc.Execute(1, req)

	var rejection *risk.Rejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "maximum 5 active positions reached", rejection.Reason)
}

func TestExecuteRejectsExcessiveRisk(t *testing.T) {
	svc, _ := newTestTradingService(t)

	// 2% of 100000 = 2000 max risk; |500-400|*25 = 2500
	req := validRequest()
	req.EntryPrice = 500
	req.StopLoss = 400
	req.Target = 600
	req.Quantity = 25
	_, err := svc.Execute(1, req)

	var rejection *risk.Rejection
	require.ErrorAs(t, err, &rejection)
	assert.Contains(t, rejection.Reason, "risk amount 2500.00 exceeds 2.0%")
}

func TestClosePositionBuySide(t *testing.T) {
	svc, db := newTestTradingService(t)

	tradeID, err := svc.Execute(1, validRequest())
	require.NoError(t, err)

	pnl, err := svc.ClosePosition(1, tradeID, 110, models.ExitReasonTarget)
	require.NoError(t, err)
	assert.Equal(t, 100.0, pnl)

	// Position row is gone, history row carries the same id
	var count int64
	db.Model(&models.Position{}).Where("id = ?", tradeID).Count(&count)
	assert.Equal(t, int64(0), count)

	var record models.TradeRecord
	require.NoError(t, db.First(&record, "id = ?", tradeID).Error)
	assert.Equal(t, 110.0, record.ExitPrice)
	assert.Equal(t, models.ExitReasonTarget, record.ExitReason)
	assert.Equal(t, 100.0, record.PnL)

	var portfolio models.Portfolio
	require.NoError(t, db.First(&portfolio, "user_id = ?", 1).Error)
	assert.Equal(t, 100.0, portfolio.TotalPnL)
	assert.Equal(t, portfolio.InitialValue+portfolio.TotalPnL, portfolio.CurrentValue)
}

func TestClosePositionSellSide(t *testing.T) {
	svc, _ := newTestTradingService(t)

	req := validRequest()
	req.Side = models.TradeSideSell
	req.EntryPrice = 200
	req.StopLoss = 210
	req.Target = 180
	tradeID, err := svc.Execute(1, req)
	require.NoError(t, err)

	pnl, err := svc.ClosePosition(1, tradeID, 190, models.ExitReasonManual)
	require.NoError(t, err)
	assert.Equal(t, 100.0, pnl)
}

func TestClosePositionLossUpdatesPortfolio(t *testing.T) {
	svc, db := newTestTradingService(t)

	tradeID, err := svc.Execute(1, validRequest())
	require.NoError(t, err)

	pnl, err := svc.ClosePosition(1, tradeID, 95, models.ExitReasonStopLoss)
	require.NoError(t, err)
	assert.Equal(t, -50.0, pnl)

	var portfolio models.Portfolio
	require.NoError(t, db.First(&portfolio, "user_id = ?", 1).Error)
	assert.Equal(t, -50.0, portfolio.TotalPnL)
	assert.Equal(t, portfolio.InitialValue-50, portfolio.CurrentValue)
}

func TestClosePositionNotFound(t *testing.T) {
	svc, _ := newTestTradingService(t)

	_, err := svc.ClosePosition(1, "missing-id", 100, models.ExitReasonManual)
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestClosePositionWrongUser(t *testing.T) {
	svc, _ := newTestTradingService(t)

	tradeID, err := svc.Execute(1, validRequest())
	require.NoError(t, err)

	_, err = svc.ClosePosition(2, tradeID, 110, models.ExitReasonManual)
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestStopLossReentryBlockedSameDay(t *testing.T) {
	svc, _ := newTestTradingService(t)

	tradeID, err := svc.Execute(1, validRequest())
	require.NoError(t, err)

	_, err = svc.ClosePosition(1, tradeID, 95, models.ExitReasonStopLoss)
	require.NoError(t, err)

	_, err = svc.Execute(1, validRequest())
	var rejection *risk.Rejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "re-entry blocked: NSE:RELIANCE-EQ hit stop-loss today", rejection.Reason)
}

func TestManualExitDoesNotBlockReentry(t *testing.T) {
	svc, _ := newTestTradingService(t)

	tradeID, err := svc.Execute(1, validRequest())
	require.NoError(t, err)

	_, err = svc.ClosePosition(1, tradeID, 102, models.ExitReasonManual)
	require.NoError(t, err)

	_, err = svc.Execute(1, validRequest())
	assert.NoError(t, err)
}

func TestIndexConcentrationLimit(t *testing.T) {
	svc, _ := newTestTradingService(t)

	req := validRequest()
	req.Symbol = "NSE:NIFTY50-INDEX"
	req.Strategy = risk.StrategyOneHourSetup

	for i := 0; i < 2; i++ {
		_, err := svc.Execute(1, req)
		require.NoError(t, err)
	}

	_, err := svc.Execute(1, req)
	var rejection *risk.Rejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "maximum 2 active One Hour Setup positions already open for NSE:NIFTY50-INDEX", rejection.Reason)
}

func TestSnapshotRecomputesPnL(t *testing.T) {
	svc, db := newTestTradingService(t)

	tradeID, err := svc.Execute(1, validRequest())
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Position{}).
		Where("id = ?", tradeID).
		Update("current_price", 104).Error)

	snapshot, err := svc.Snapshot(1, 10)
	require.NoError(t, err)
	require.Len(t, snapshot.ActivePositions, 1)
	assert.Equal(t, 40.0, snapshot.ActivePositions[0].PnL)
	assert.Equal(t, float64(models.DefaultInitialCapital), snapshot.Portfolio.CurrentValue)
}

func TestUsersAreIsolated(t *testing.T) {
	svc, _ := newTestTradingService(t)

	for i := 0; i < 5; i++ {
		req := validRequest()
		req.Symbol = fmt.Sprintf("NSE:STOCK%d-EQ", i)
		_, err := svc.Execute(1, req)
		require.NoError(t, err)
	}

	// User 2 is unaffected by user 1's position count
	_, err := svc.Execute(2, validRequest())
	assert.NoError(t, err)
}
