package repository

import (
	"errors"
	"time"

	"github.com/trade-assistant/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPortfolioNotFound = errors.New("portfolio not found")
)

// PortfolioRepository handles portfolio data access
type PortfolioRepository struct {
	db *gorm.DB
}

// NewPortfolioRepository creates a new PortfolioRepository
func NewPortfolioRepository(db *gorm.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *PortfolioRepository) WithTx(tx *gorm.DB) *PortfolioRepository {
	return &PortfolioRepository{db: tx}
}

// GetOrCreate returns the portfolio for a user, creating it with the default
// capital on first access. The insert is guarded by the unique index on
// user_id, so concurrent first-calls cannot create duplicates.
func (r *PortfolioRepository) GetOrCreate(userID uint) (*models.Portfolio, error) {
	portfolio := models.Portfolio{
		UserID:       userID,
		InitialValue: models.DefaultInitialCapital,
		CurrentValue: models.DefaultInitialCapital,
		TotalPnL:     0,
	}

	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&portfolio).Error
	if err != nil {
		return nil, err
	}

	var existing models.Portfolio
	if err := r.db.Where("user_id = ?", userID).First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPortfolioNotFound
		}
		return nil, err
	}
	return &existing, nil
}

// GetByUserID retrieves the portfolio for a user
func (r *PortfolioRepository) GetByUserID(userID uint) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	result := r.db.Where("user_id = ?", userID).First(&portfolio)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrPortfolioNotFound
		}
		return nil, result.Error
	}
	return &portfolio, nil
}

// ApplyPnL adds a realized PnL delta and rederives current_value from
// initial_value so the invariant holds regardless of the stored value.
func (r *PortfolioRepository) ApplyPnL(userID uint, delta float64) error {
	result := r.db.Model(&models.Portfolio{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"total_pnl":     gorm.Expr("total_pnl + ?", delta),
			"current_value": gorm.Expr("initial_value + total_pnl + ?", delta),
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPortfolioNotFound
	}
	return nil
}
