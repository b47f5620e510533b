package models

import "time"

// ExitReason explains why a position (or part of it) was closed.
type ExitReason string

const (
	ExitStopLossIntraday ExitReason = "stop_loss_intraday"
	ExitPartialProfit    ExitReason = "partial_profit"
	ExitStopLoss         ExitReason = "stop_loss"
	ExitTrailingStop     ExitReason = "trailing_stop"
	ExitMaxHoldingDays   ExitReason = "max_holding_days"
	ExitEndOfData        ExitReason = "end_of_data"
)

// Position is the open leg of a trade. Shares may shrink exactly once, on
// a partial profit exit; everything else is fixed at entry.
type Position struct {
	Symbol          string
	EntryDate       time.Time
	EntryPrice      float64 // slippage-adjusted fill price
	Shares          int
	StopLossPrice   float64
	GapPercent      float64
	SurprisePercent float64
}

// Notional returns the position value at the entry fill price.
func (p Position) Notional() float64 {
	return float64(p.Shares) * p.EntryPrice
}

// TradeRecord is the closed leg of a trade. Append-only; never mutated
// after it is written to the ledger.
type TradeRecord struct {
	Symbol          string
	EntryDate       time.Time
	ExitDate        time.Time
	Shares          int
	EntryPrice      float64
	ExitPrice       float64
	PnL             float64
	PnLRate         float64 // percent
	HoldingPeriod   int     // calendar days
	ExitReason      ExitReason
	GapPercent      float64
	SurprisePercent float64
}

// ActiveOn reports whether the traded shares were held on the given date.
/// Entry and exit days both count: margin is released only after the exit
// day completes.
func (t TradeRecord) ActiveOn(date time.Time) bool {
	return !date.Before(t.EntryDate) && !date.After(t.ExitDate)
}
