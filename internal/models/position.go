package models

import (
	"math"
	"time"
)

// TradeSide represents the direction of a trade
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// PositionStatus represents the lifecycle state of a position.
// ACTIVE is the only non-terminal state; closed positions live in
// trade_history, there is no re-open.
type PositionStatus string

const (
	PositionStatusActive PositionStatus = "ACTIVE"
)

// Position represents an open paper trade
type Position struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	UserID       uint           `gorm:"index;not null" json:"user_id"`
	Symbol       string         `gorm:"size:50;not null;index" json:"symbol"`
	Side         TradeSide      `gorm:"size:10;not null" json:"side"`
	Quantity     int            `gorm:"not null" json:"quantity"`
	EntryPrice   float64        `gorm:"type:decimal(20,2);not null" json:"entry_price"`
	CurrentPrice float64        `gorm:"type:decimal(20,2);not null" json:"current_price"`
	StopLoss     float64        `gorm:"type:decimal(20,2);not null" json:"stop_loss"`
	Target       float64        `gorm:"type:decimal(20,2);not null" json:"target"`
	Strategy     string         `gorm:"size:50" json:"strategy"`
	Notes        string         `gorm:"size:500" json:"notes"`
	RiskAmount   float64        `gorm:"type:decimal(20,2);not null" json:"risk_amount"`
	PnL          float64        `gorm:"column:pnl;type:decimal(20,2);default:0" json:"pnl"`
	Status       PositionStatus `gorm:"size:20;not null;default:'ACTIVE'" json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName specifies the table name for Position model
func (Position) TableName() string {
	return "positions"
}

// UnrealizedPnL calculates the PnL at the given price
func (p *Position) UnrealizedPnL(price float64) float64 {
	if p.Side == TradeSideBuy {
		return (price - p.EntryPrice) * float64(p.Quantity)
	}
	return (p.EntryPrice - price) * float64(p.Quantity)
}

// RiskAmountFor returns the currency loss if the stop-loss is hit,
// fixed at entry: |entry - stop| * quantity.
func RiskAmountFor(entryPrice, stopLoss float64, quantity int) float64 {
	return math.Abs(entryPrice-stopLoss) * float64(quantity)
}
