package simulator

import (
	"sync"
	"time"

	"earnings-backtest/internal/models"
)

// PortfolioState owns the capital and the closed-trade ledger. All
// mutation funnels through Commit; the simulator is the single writer.
type PortfolioState struct {
	mu             sync.Mutex
	initialCapital float64
	capital        float64
	ledger         []models.TradeRecord
}

// NewPortfolioState creates a portfolio with the given starting capital.
func NewPortfolioState(initialCapital float64) *PortfolioState {
	return &PortfolioState{
		initialCapital: initialCapital,
		capital:        initialCapital,
	}
}

// InitialCapital returns the starting capital.
func (p *PortfolioState) InitialCapital() float64 {
	return p.initialCapital
}

// Capital returns the current realized capital.
func (p *PortfolioState) Capital() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capital
}

// Commit applies a closed trade: realize its P&L and append it to the
// ledger. This is the single commit point for capital mutation.
func (p *PortfolioState) Commit(trade models.TradeRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.capital += trade.PnL
	p.ledger = append(p.ledger, trade)
}

// Ledger returns a copy of the closed-trade ledger in commit order.
func (p *PortfolioState) Ledger() []models.TradeRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.TradeRecord, len(p.ledger))
	copy(out, p.ledger)
	return out
}

// OpenNotionalOn returns the entry-price notional of all traded shares
// still held on the given date. Because each candidate's lifecycle is
// resolved before the next entry is considered, the ledger fully
// describes which shares were open on any earlier-or-equal date.
func (p *PortfolioState) OpenNotionalOn(date time.Time) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var total float64
	for _, trade := range p.ledger {
		if trade.ActiveOn(date) {
			total += float64(trade.Shares) * trade.EntryPrice
		}
	}
	return total
}
