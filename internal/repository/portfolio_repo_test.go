package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trade-assistant/internal/models"
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

func TestGetOrCreateIsIdempotent(t *testing.T) {
	repo := NewPortfolioRepository(newTestDB(t))

	first, err := repo.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, float64(models.DefaultInitialCapital), first.InitialValue)
	assert.Equal(t, float64(models.DefaultInitialCapital), first.CurrentValue)

	second, err := repo.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	repo.db.Model(&models.Portfolio{}).Where("user_id = ?", 1).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestApplyPnLMaintainsInvariant(t *testing.T) {
	repo := NewPortfolioRepository(newTestDB(t))

	_, err := repo.GetOrCreate(1)
	require.NoError(t, err)

	require.NoError(t, repo.ApplyPnL(1, 150))
	require.NoError(t, repo.ApplyPnL(1, -40))

	portfolio, err := repo.GetByUserID(1)
	require.NoError(t, err)
	assert.Equal(t, 110.0, portfolio.TotalPnL)
	assert.Equal(t, portfolio.InitialValue+110, portfolio.CurrentValue)
}

func TestApplyPnLMissingPortfolio(t *testing.T) {
	repo := NewPortfolioRepository(newTestDB(t))

	err := repo.ApplyPnL(42, 100)
	assert.ErrorIs(t, err, ErrPortfolioNotFound)
}

func TestStopLossSymbolsOnFiltersByDay(t *testing.T) {
	db := newTestDB(t)
	repo := NewHistoryRepository(db)

	now := time.Now()
	yesterday := now.AddDate(0, 0, -1)

	records := []models.TradeRecord{
		{ID: "a", UserID: 1, Symbol: "NSE:RELIANCE-EQ", Side: models.TradeSideBuy, Quantity: 1,
			EntryPrice: 100, ExitPrice: 95, ExitReason: models.ExitReasonStopLoss,
			EntryTime: now, ExitTime: now},
		{ID: "b", UserID: 1, Symbol: "NSE:TCS-EQ", Side: models.TradeSideBuy, Quantity: 1,
			EntryPrice: 100, ExitPrice: 110, ExitReason: models.ExitReasonTarget,
			EntryTime: now, ExitTime: now},
		{ID: "c", UserID: 1, Symbol: "NSE:INFY-EQ", Side: models.TradeSideBuy, Quantity: 1,
			EntryPrice: 100, ExitPrice: 95, ExitReason: models.ExitReasonStopLoss,
			EntryTime: yesterday, ExitTime: yesterday},
		{ID: "d", UserID: 2, Symbol: "NSE:WIPRO-EQ", Side: models.TradeSideBuy, Quantity: 1,
			EntryPrice: 100, ExitPrice: 95, ExitReason: models.ExitReasonStopLoss,
			EntryTime: now, ExitTime: now},
	}
	for i := range records {
		require.NoError(t, repo.Create(&records[i]))
	}

	symbols, err := repo.StopLossSymbolsOn(1, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"NSE:RELIANCE-EQ"}, symbols)
}
