package repository

import (
	"errors"
	"time"

	"github.com/trade-assistant/internal/models"
	"gorm.io/gorm"
)

var (
	ErrPositionNotFound = errors.New("position not found")
)

// PositionRepository handles active position data access
type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new PositionRepository
func NewPositionRepository(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *PositionRepository) WithTx(tx *gorm.DB) *PositionRepository {
	return &PositionRepository{db: tx}
}

// Create creates a new active position
func (r *PositionRepository) Create(position *models.Position) error {
	return r.db.Create(position).Error
}

// GetActiveByID retrieves an active position by id for a user
func (r *PositionRepository) GetActiveByID(userID uint, id string) (*models.Position, error) {
	var position models.Position
	result := r.db.Where("id = ? AND user_id = ? AND status = ?", id, userID, models.PositionStatusActive).First(&position)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrPositionNotFound
		}
		return nil, result.Error
	}
	return &position, nil
}

// ListActive retrieves all active positions for a user, newest first
func (r *PositionRepository) ListActive(userID uint) ([]models.Position, error) {
	var positions []models.Position
	result := r.db.Where("user_id = ? AND status = ?", userID, models.PositionStatusActive).
		Order("created_at DESC").
		Find(&positions)
	return positions, result.Error
}

// ListActiveBySymbol retrieves active positions for a user and symbol,
// optionally narrowed to a strategy
func (r *PositionRepository) ListActiveBySymbol(userID uint, symbol, strategy string) ([]models.Position, error) {
	query := r.db.Where("user_id = ? AND symbol = ? AND status = ?", userID, symbol, models.PositionStatusActive)
	if strategy != "" {
		query = query.Where("strategy = ?", strategy)
	}
	var positions []models.Position
	result := query.Find(&positions)
	return positions, result.Error
}

// CountActive counts active positions for a user across all symbols
func (r *PositionRepository) CountActive(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Position{}).
		Where("user_id = ? AND status = ?", userID, models.PositionStatusActive).
		Count(&count).Error
	return count, err
}

// UpdatePrice sets the live price for one position
func (r *PositionRepository) UpdatePrice(id string, price float64) error {
	return r.db.Model(&models.Position{}).
		Where("id = ? AND status = ?", id, models.PositionStatusActive).
		Updates(map[string]interface{}{
			"current_price": price,
			"updated_at":    time.Now(),
		}).Error
}

// UpdatePriceBySymbol sets the live price for all active positions a user
// holds in a symbol
func (r *PositionRepository) UpdatePriceBySymbol(userID uint, symbol string, price float64) error {
	return r.db.Model(&models.Position{}).
		Where("user_id = ? AND symbol = ? AND status = ?", userID, symbol, models.PositionStatusActive).
		Updates(map[string]interface{}{
			"current_price": price,
			"updated_at":    time.Now(),
		}).Error
}

// Delete removes a position from the active set. Rows are hard-deleted;
// the close path inserts the matching trade_history row in the same
// transaction.
func (r *PositionRepository) Delete(userID uint, id string) error {
	result := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Position{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPositionNotFound
	}
	return nil
}

// ActiveUserIDs returns the distinct users that currently hold active
// positions, for batch monitor sweeps
func (r *PositionRepository) ActiveUserIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Position{}).
		Where("status = ?", models.PositionStatusActive).
		Distinct().
		Pluck("user_id", &ids).Error
	return ids, err
}
