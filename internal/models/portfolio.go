package models

import (
	"time"
)

// DefaultInitialCapital is the paper-trading capital assigned to a new portfolio.
const DefaultInitialCapital = 100000

// Portfolio tracks a user's paper-trading capital. One row per user;
// current_value == initial_value + total_pnl after every committed close.
type Portfolio struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	InitialValue float64   `gorm:"type:decimal(20,2);not null" json:"initial_value"`
	CurrentValue float64   `gorm:"type:decimal(20,2);not null" json:"current_value"`
	TotalPnL     float64   `gorm:"column:total_pnl;type:decimal(20,2);not null" json:"total_pnl"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for Portfolio model
func (Portfolio) TableName() string {
	return "portfolio"
}
