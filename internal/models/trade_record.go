package models

import (
	"time"
)

// ExitReason explains why a position was closed
type ExitReason string

const (
	ExitReasonManual   ExitReason = "MANUAL"
	ExitReasonStopLoss ExitReason = "STOP_LOSS"
	ExitReasonTarget   ExitReason = "TARGET"
)

// TradeRecord represents a closed trade. Append-only; the id is the id of
// the position it was closed from, so external references stay linkable.
type TradeRecord struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	UserID     uint       `gorm:"index;not null" json:"user_id"`
	Symbol     string     `gorm:"size:50;not null;index" json:"symbol"`
	Side       TradeSide  `gorm:"size:10;not null" json:"side"`
	Quantity   int        `gorm:"not null" json:"quantity"`
	EntryPrice float64    `gorm:"type:decimal(20,2);not null" json:"entry_price"`
	ExitPrice  float64    `gorm:"type:decimal(20,2);not null" json:"exit_price"`
	StopLoss   float64    `gorm:"type:decimal(20,2);not null" json:"stop_loss"`
	Target     float64    `gorm:"type:decimal(20,2);not null" json:"target"`
	Strategy   string     `gorm:"size:50" json:"strategy"`
	Notes      string     `gorm:"size:500" json:"notes"`
	RiskAmount float64    `gorm:"type:decimal(20,2);not null" json:"risk_amount"`
	PnL        float64    `gorm:"column:pnl;type:decimal(20,2);not null" json:"pnl"`
	ExitReason ExitReason `gorm:"size:20;not null" json:"exit_reason"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   time.Time  `gorm:"index" json:"exit_time"`
}

// TableName specifies the table name for TradeRecord model
func (TradeRecord) TableName() string {
	return "trade_history"
}
