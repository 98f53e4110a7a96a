package service

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trade-assistant/internal/models"
	"github.com/trade-assistant/internal/repository"
	"github.com/trade-assistant/internal/risk"
	"gorm.io/gorm"
)

var (
	ErrPositionNotFound = errors.New("position not found")
)

// ValidationError reports a missing or malformed trade request field. The
// message is surfaced to the caller verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// TradeRequest represents a candidate paper trade
type TradeRequest struct {
	Symbol     string           `json:"symbol"`
	Side       models.TradeSide `json:"side"`
	Quantity   int              `json:"quantity"`
	EntryPrice float64          `json:"entry_price"`
	StopLoss   float64          `json:"stop_loss"`
	Target     float64          `json:"target"`
	Strategy   string           `json:"strategy"`
	Notes      string           `json:"notes"`
}

// PortfolioSnapshot bundles a user's portfolio with its open positions and
// recent trade history
type PortfolioSnapshot struct {
	Portfolio       *models.Portfolio    `json:"portfolio"`
	ActivePositions []models.Position    `json:"active_positions"`
	History         []models.TradeRecord `json:"history"`
}

// TradingService orchestrates trade execution and position closes. Accepts
// and closes are serialized per user so risk checks and the subsequent
// write see consistent state.
type TradingService struct {
	db            *gorm.DB
	portfolioRepo *repository.PortfolioRepository
	positionRepo  *repository.PositionRepository
	historyRepo   *repository.HistoryRepository
	limits        risk.Limits

	userLocks map[uint]*sync.Mutex
	locksMux  sync.Mutex
}

// NewTradingService creates a new TradingService
func NewTradingService(
	db *gorm.DB,
	portfolioRepo *repository.PortfolioRepository,
	positionRepo *repository.PositionRepository,
	historyRepo *repository.HistoryRepository,
	limits risk.Limits,
) *TradingService {
	return &TradingService{
		db:            db,
		portfolioRepo: portfolioRepo,
		positionRepo:  positionRepo,
		historyRepo:   historyRepo,
		limits:        limits,
		userLocks:     make(map[uint]*sync.Mutex),
	}
}

func (s *TradingService) lockUser(userID uint) func() {
	s.locksMux.Lock()
	mu, ok := s.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		s.userLocks[userID] = mu
	}
	s.locksMux.Unlock()

	mu.Lock()
	return mu.Unlock
}

func validateTradeRequest(req *TradeRequest) error {
	switch {
	case req.Symbol == "":
		return &ValidationError{Message: "symbol is required"}
	case req.Side != models.TradeSideBuy && req.Side != models.TradeSideSell:
		return &ValidationError{Message: "side must be BUY or SELL"}
	case req.Quantity <= 0:
		return &ValidationError{Message: "quantity must be positive"}
	case req.EntryPrice <= 0:
		return &ValidationError{Message: "entry_price must be positive"}
	case req.StopLoss <= 0:
		return &ValidationError{Message: "stop_loss must be positive"}
	case req.Target <= 0:
		return &ValidationError{Message: "target must be positive"}
	}
	return nil
}

// Execute validates a trade against the risk rules and, if accepted,
// records the new position. Returns the new position id.
func (s *TradingService) Execute(userID uint, req *TradeRequest) (string, error) {
	if err := validateTradeRequest(req); err != nil {
		return "", err
	}
	if req.Strategy == "" {
		req.Strategy = "Manual"
	}

	unlock := s.lockUser(userID)
	defer unlock()

	tradeID := uuid.New().String()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		portfolio, err := s.portfolioRepo.WithTx(tx).GetOrCreate(userID)
		if err != nil {
			return err
		}

		active, err := s.positionRepo.WithTx(tx).ListActive(userID)
		if err != nil {
			return err
		}

		stopped, err := s.historyRepo.WithTx(tx).StopLossSymbolsOn(userID, time.Now())
		if err != nil {
			return err
		}

		candidate := risk.Candidate{
			Symbol:     req.Symbol,
			Side:       req.Side,
			Quantity:   req.Quantity,
			EntryPrice: req.EntryPrice,
			StopLoss:   req.StopLoss,
			Strategy:   req.Strategy,
		}
		snapshot := risk.Snapshot{
			ActivePositions:      active,
			StopLossSymbolsToday: stopped,
			PortfolioValue:       portfolio.CurrentValue,
		}
		if err := risk.Validate(candidate, snapshot, s.limits); err != nil {
			return err
		}

		position := &models.Position{
			ID:           tradeID,
			UserID:       userID,
			Symbol:       req.Symbol,
			Side:         req.Side,
			Quantity:     req.Quantity,
			EntryPrice:   req.EntryPrice,
			CurrentPrice: req.EntryPrice,
			StopLoss:     req.StopLoss,
			Target:       req.Target,
			Strategy:     req.Strategy,
			Notes:        req.Notes,
			RiskAmount:   models.RiskAmountFor(req.EntryPrice, req.StopLoss, req.Quantity),
			Status:       models.PositionStatusActive,
		}
		return s.positionRepo.WithTx(tx).Create(position)
	})
	if err != nil {
		return "", err
	}

	return tradeID, nil
}

// ClosePosition closes an active position at the given exit price: the row
// moves to trade_history under the same id and the realized PnL is applied
// to the portfolio, all in one transaction.
func (s *TradingService) ClosePosition(userID uint, positionID string, exitPrice float64, reason models.ExitReason) (float64, error) {
	if exitPrice <= 0 {
		return 0, &ValidationError{Message: "exit_price must be positive"}
	}
	if reason == "" {
		reason = models.ExitReasonManual
	}

	unlock := s.lockUser(userID)
	defer unlock()

	var pnl float64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		positions := s.positionRepo.WithTx(tx)

		position, err := positions.GetActiveByID(userID, positionID)
		if err != nil {
			if errors.Is(err, repository.ErrPositionNotFound) {
				return ErrPositionNotFound
			}
			return err
		}

		pnl = position.UnrealizedPnL(exitPrice)

		record := &models.TradeRecord{
			ID:         position.ID,
			UserID:     position.UserID,
			Symbol:     position.Symbol,
			Side:       position.Side,
			Quantity:   position.Quantity,
			EntryPrice: position.EntryPrice,
			ExitPrice:  exitPrice,
			StopLoss:   position.StopLoss,
			Target:     position.Target,
			Strategy:   position.Strategy,
			Notes:      position.Notes,
			RiskAmount: position.RiskAmount,
			PnL:        pnl,
			ExitReason: reason,
			EntryTime:  position.CreatedAt,
			ExitTime:   time.Now(),
		}
		if err := s.historyRepo.WithTx(tx).Create(record); err != nil {
			return err
		}

		if err := positions.Delete(userID, position.ID); err != nil {
			return err
		}

		return s.portfolioRepo.WithTx(tx).ApplyPnL(userID, pnl)
	})
	if err != nil {
		return 0, err
	}

	return pnl, nil
}

// Snapshot returns the portfolio with active positions (PnL recomputed
// from the last stored price) and recent history
func (s *TradingService) Snapshot(userID uint, historyLimit int) (*PortfolioSnapshot, error) {
	portfolio, err := s.portfolioRepo.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}

	active, err := s.positionRepo.ListActive(userID)
	if err != nil {
		return nil, err
	}
	for i := range active {
		active[i].PnL = active[i].UnrealizedPnL(active[i].CurrentPrice)
	}

	history, err := s.historyRepo.ListByUser(userID, historyLimit)
	if err != nil {
		return nil, err
	}

	return &PortfolioSnapshot{
		Portfolio:       portfolio,
		ActivePositions: active,
		History:         history,
	}, nil
}

// ListActivePositions returns the user's open positions with PnL derived
// from the last stored price
func (s *TradingService) ListActivePositions(userID uint) ([]models.Position, error) {
	positions, err := s.positionRepo.ListActive(userID)
	if err != nil {
		return nil, err
	}
	for i := range positions {
		positions[i].PnL = positions[i].UnrealizedPnL(positions[i].CurrentPrice)
	}
	return positions, nil
}

// ListHistory returns the user's closed trades, most recent first
func (s *TradingService) ListHistory(userID uint, limit int) ([]models.TradeRecord, error) {
	return s.historyRepo.ListByUser(userID, limit)
}

// SymbolTrades returns active and closed trades for a symbol, optionally
// narrowed to a strategy
func (s *TradingService) SymbolTrades(userID uint, symbol, strategy string) ([]models.Position, []models.TradeRecord, error) {
	active, err := s.positionRepo.ListActiveBySymbol(userID, symbol, strategy)
	if err != nil {
		return nil, nil, err
	}
	closed, err := s.historyRepo.ListBySymbol(userID, symbol, strategy)
	if err != nil {
		return nil, nil, err
	}
	return active, closed, nil
}
