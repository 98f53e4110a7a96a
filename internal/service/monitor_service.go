package service

import (
	"context"
	"log"

	"github.com/trade-assistant/internal/broker"
	"github.com/trade-assistant/internal/models"
	"github.com/trade-assistant/internal/repository"
)

// PriceSource supplies a live quote per symbol
type PriceSource interface {
	Quote(ctx context.Context, symbol string) (*broker.Quote, error)
}

// ClosedTrade summarizes one auto-closed position in a sweep report
type ClosedTrade struct {
	PositionID string            `json:"position_id"`
	Symbol     string            `json:"symbol"`
	ExitPrice  float64           `json:"exit_price"`
	ExitReason models.ExitReason `json:"exit_reason"`
	PnL        float64           `json:"pnl"`
}

// SweepReport summarizes one monitor pass
type SweepReport struct {
	Checked        int           `json:"checked"`
	Updated        int           `json:"updated"`
	SkippedSymbols []string      `json:"skipped_symbols,omitempty"`
	Closed         []ClosedTrade `json:"closed,omitempty"`
}

// MonitorService refreshes live prices on open positions and auto-closes
// them when stop-loss or target levels are crossed. Closes go through the
// same TradingService path as manual exits.
type MonitorService struct {
	positionRepo *repository.PositionRepository
	trading      *TradingService
	quotes       PriceSource
}

// NewMonitorService creates a new MonitorService
func NewMonitorService(
	positionRepo *repository.PositionRepository,
	trading *TradingService,
	quotes PriceSource,
) *MonitorService {
	return &MonitorService{
		positionRepo: positionRepo,
		trading:      trading,
		quotes:       quotes,
	}
}

// Sweep reconciles all active positions for one user. A quote failure for
// one symbol skips that symbol and the sweep continues.
func (s *MonitorService) Sweep(ctx context.Context, userID uint) (*SweepReport, error) {
	positions, err := s.positionRepo.ListActive(userID)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Checked: len(positions)}
	if len(positions) == 0 {
		return report, nil
	}

	prices := make(map[string]float64)
	for _, pos := range positions {
		if _, seen := prices[pos.Symbol]; seen {
			continue
		}
		quote, err := s.quotes.Quote(ctx, pos.Symbol)
		if err != nil || quote.LastPrice <= 0 {
			report.SkippedSymbols = append(report.SkippedSymbols, pos.Symbol)
			prices[pos.Symbol] = 0
			continue
		}
		prices[pos.Symbol] = quote.LastPrice

		if err := s.positionRepo.UpdatePriceBySymbol(userID, pos.Symbol, quote.LastPrice); err != nil {
			log.Printf("[Monitor] price update failed for %s: %v", pos.Symbol, err)
		}
	}

	for _, pos := range positions {
		price := prices[pos.Symbol]
		if price <= 0 {
			continue
		}
		report.Updated++

		reason, triggered := exitReason(&pos, price)
		if !triggered {
			continue
		}

		pnl, err := s.trading.ClosePosition(userID, pos.ID, price, reason)
		if err != nil {
			log.Printf("[Monitor] auto-close failed for %s (%s): %v", pos.ID, pos.Symbol, err)
			continue
		}

		log.Printf("[Monitor] closed %s %s at %.2f (%s), pnl=%.2f", pos.Symbol, pos.Side, price, reason, pnl)
		report.Closed = append(report.Closed, ClosedTrade{
			PositionID: pos.ID,
			Symbol:     pos.Symbol,
			ExitPrice:  price,
			ExitReason: reason,
			PnL:        pnl,
		})
	}

	return report, nil
}

// SweepAll runs Sweep for every user with active positions and merges the
// reports
func (s *MonitorService) SweepAll(ctx context.Context) (*SweepReport, error) {
	userIDs, err := s.positionRepo.ActiveUserIDs()
	if err != nil {
		return nil, err
	}

	total := &SweepReport{}
	for _, userID := range userIDs {
		report, err := s.Sweep(ctx, userID)
		if err != nil {
			log.Printf("[Monitor] sweep failed for user %d: %v", userID, err)
			continue
		}
		total.Checked += report.Checked
		total.Updated += report.Updated
		total.SkippedSymbols = append(total.SkippedSymbols, report.SkippedSymbols...)
		total.Closed = append(total.Closed, report.Closed...)
	}
	return total, nil
}

// exitReason evaluates stop-loss before target so that a bar crossing both
// levels closes at the conservative outcome.
func exitReason(p *models.Position, price float64) (models.ExitReason, bool) {
	if p.Side == models.TradeSideBuy {
		if price <= p.StopLoss {
			return models.ExitReasonStopLoss, true
		}
		if price >= p.Target {
			return models.ExitReasonTarget, true
		}
		return "", false
	}

	if price >= p.StopLoss {
		return models.ExitReasonStopLoss, true
	}
	if price <= p.Target {
		return models.ExitReasonTarget, true
	}
	return "", false
}
