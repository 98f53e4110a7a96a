package repository

import (
	"time"

	"github.com/trade-assistant/internal/models"
	"gorm.io/gorm"
)

// HistoryRepository handles closed trade data access
type HistoryRepository struct {
	db *gorm.DB
}

// NewHistoryRepository creates a new HistoryRepository
func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *HistoryRepository) WithTx(tx *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: tx}
}

// Create appends a closed trade record
func (r *HistoryRepository) Create(record *models.TradeRecord) error {
	return r.db.Create(record).Error
}

// ListByUser retrieves closed trades for a user, most recent exit first
func (r *HistoryRepository) ListByUser(userID uint, limit int) ([]models.TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []models.TradeRecord
	result := r.db.Where("user_id = ?", userID).
		Order("exit_time DESC").
		Limit(limit).
		Find(&records)
	return records, result.Error
}

// ListBySymbol retrieves closed trades for a user and symbol, optionally
// narrowed to a strategy
func (r *HistoryRepository) ListBySymbol(userID uint, symbol, strategy string) ([]models.TradeRecord, error) {
	query := r.db.Where("user_id = ? AND symbol = ?", userID, symbol)
	if strategy != "" {
		query = query.Where("strategy = ?", strategy)
	}
	var records []models.TradeRecord
	result := query.Order("exit_time DESC").Find(&records)
	return records, result.Error
}

// StopLossSymbolsOn returns the symbols that had a STOP_LOSS exit on the
// calendar day containing the given time. Day boundaries use the server's
// local timezone.
func (r *HistoryRepository) StopLossSymbolsOn(userID uint, day time.Time) ([]string, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var symbols []string
	err := r.db.Model(&models.TradeRecord{}).
		Where("user_id = ? AND exit_reason = ? AND exit_time >= ? AND exit_time < ?",
			userID, models.ExitReasonStopLoss, start, end).
		Distinct().
		Pluck("symbol", &symbols).Error
	return symbols, err
}
