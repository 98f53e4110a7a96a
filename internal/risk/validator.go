package risk

import (
	"fmt"
	"strings"

	"github.com/trade-assistant/internal/models"
)

// StrategyOneHourSetup is the scanner strategy subject to the index
// concentration rule.
const StrategyOneHourSetup = "One Hour Setup"

// maxIndexPositions caps active same-symbol positions under the
// One Hour Setup strategy on index symbols.
const maxIndexPositions = 2

var indexNames = []string{"NIFTY", "BANKNIFTY", "FINNIFTY", "MIDCPNIFTY"}

// Limits holds the portfolio-level risk limits.
type Limits struct {
	MaxActivePositions int
	MaxRiskPct         float64
}

// DefaultLimits returns the standard limits: at most 5 active positions,
// at most 2% of portfolio value risked per trade.
func DefaultLimits() Limits {
	return Limits{
		MaxActivePositions: 5,
		MaxRiskPct:         0.02,
	}
}

// Candidate is a trade proposal under validation.
type Candidate struct {
	Symbol     string
	Side       models.TradeSide
	Quantity   int
	EntryPrice float64
	StopLoss   float64
	Strategy   string
}

// Snapshot is the ledger state the candidate is validated against. It is
// read once, under the caller's transaction, so the check and the insert
// see the same state.
type Snapshot struct {
	ActivePositions      []models.Position
	StopLossSymbolsToday []string
	PortfolioValue       float64
}

// Rejection is a failed risk check. The reason is surfaced to the caller
// verbatim.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string {
	return r.Reason
}

// IsIndexSymbol reports whether the symbol refers to one of the NSE index
// instruments, matched as a case-insensitive substring.
func IsIndexSymbol(symbol string) bool {
	upper := strings.ToUpper(symbol)
	for _, name := range indexNames {
		if strings.Contains(upper, name) {
			return true
		}
	}
	return false
}

// Validate runs the risk rules in a fixed order; the first failing rule
// determines the rejection reason.
//
//  1. index concentration for the One Hour Setup strategy
//  2. same-day stop-loss re-entry ban per symbol
//  3. per-trade risk cap relative to portfolio value
//  4. active position count cap
func Validate(c Candidate, snap Snapshot, limits Limits) error {
	if c.Strategy == StrategyOneHourSetup && IsIndexSymbol(c.Symbol) {
		same := 0
		for _, p := range snap.ActivePositions {
			if p.Symbol == c.Symbol && p.Strategy == c.Strategy {
				same++
			}
		}
		if same >= maxIndexPositions {
			return &Rejection{Reason: fmt.Sprintf(
				"maximum %d active %s positions already open for %s",
				maxIndexPositions, StrategyOneHourSetup, c.Symbol)}
		}
	}

	for _, symbol := range snap.StopLossSymbolsToday {
		if symbol == c.Symbol {
			return &Rejection{Reason: fmt.Sprintf(
				"re-entry blocked: %s hit stop-loss today", c.Symbol)}
		}
	}

	riskAmount := models.RiskAmountFor(c.EntryPrice, c.StopLoss, c.Quantity)
	maxRisk := limits.MaxRiskPct * snap.PortfolioValue
	if riskAmount > maxRisk {
		return &Rejection{Reason: fmt.Sprintf(
			"risk amount %.2f exceeds %.1f%% of portfolio value (max %.2f)",
			riskAmount, limits.MaxRiskPct*100, maxRisk)}
	}

	if len(snap.ActivePositions) >= limits.MaxActivePositions {
		return &Rejection{Reason: fmt.Sprintf(
			"maximum %d active positions reached", limits.MaxActivePositions)}
	}

	return nil
}
