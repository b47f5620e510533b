// Package risk implements the rolling-window risk gate consulted before
// each new entry.
package risk

import (
	"time"

	"earnings-backtest/internal/models"
	"earnings-backtest/pkg/utils"
)

// windowDays is the trailing window over realized P&L, in calendar days.
const windowDays = 30

// Gate throttles new entries after a losing streak. It is a pure function
// of the trade ledger and the entry date; it never touches open positions.
type Gate struct {
	limitPercent float64
}

// NewGate creates a gate that denies entries once the trailing-window loss
// exceeds limitPercent of current capital.
func NewGate(limitPercent float64) *Gate {
	return &Gate{limitPercent: limitPercent}
}

// Decision is the outcome of a gate check. Evaluated is false when the
// window held no closed trades, in which case the entry is allowed
// unconditionally.
type Decision struct {
	Allowed   bool
	Evaluated bool
	WindowPnL float64
	Ratio     float64 // percent of current capital
}

// Check evaluates the gate for an entry on entryDate given current capital
// and the closed-trade ledger.
func (g *Gate) Check(entryDate time.Time, capital float64, ledger []models.TradeRecord) Decision {
	windowStart := utils.AddDays(entryDate, -windowDays)

	var windowPnL float64
	evaluated := false
	for _, trade := range ledger {
		if trade.ExitDate.Before(windowStart) || trade.ExitDate.After(entryDate) {
			continue
		}
		windowPnL += trade.PnL
		evaluated = true
	}

	if !evaluated {
		return Decision{Allowed: true}
	}
	if capital <= 0 {
		// Capital is gone; nothing to risk.
		return Decision{Allowed: false, Evaluated: true, WindowPnL: windowPnL}
	}

	ratio := windowPnL / capital * 100
	return Decision{
		Allowed:   ratio >= -g.limitPercent,
		Evaluated: true,
		WindowPnL: windowPnL,
		Ratio:     ratio,
	}
}
