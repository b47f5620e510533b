package simulator

import (
	"earnings-backtest/internal/models"
)

// DayDecision is the outcome of evaluating one trading day for an open
// position. RawPrice is the exit price before the slippage haircut.
type DayDecision struct {
	Exit     bool
	Reason   models.ExitReason
	RawPrice float64
}

// hold is the no-exit decision.
var hold = DayDecision{}

// EvaluateDay applies the daily exit checks in fixed priority order:
// holding-period limit, stop loss, trailing moving average. The first
// match wins and is terminal. ma is the trailing N-bar simple moving
// average of close; maOK is false while the window is not yet full, in
// which case the trailing check is skipped.
func EvaluateDay(pos models.Position, bar models.Bar, daysHeld, maxHoldingDays int, ma float64, maOK bool) DayDecision {
	if daysHeld >= maxHoldingDays {
		return DayDecision{Exit: true, Reason: models.ExitMaxHoldingDays, RawPrice: bar.Close}
	}
	if bar.Low <= pos.StopLossPrice {
		return DayDecision{Exit: true, Reason: models.ExitStopLoss, RawPrice: pos.StopLossPrice}
	}
	if maOK && bar.Close < ma {
		return DayDecision{Exit: true, Reason: models.ExitTrailingStop, RawPrice: ma}
	}
	return hold
}

// trailingMA computes the n-bar simple moving average of close ending at
// index i. The second return value is false when fewer than n bars are
// available.
func trailingMA(bars []models.Bar, i, n int) (float64, bool) {
	if n < 1 || i < n-1 {
		return 0, false
	}
	var sum float64
	for _, bar := range bars[i-n+1 : i+1] {
		sum += bar.Close
	}
	return sum / float64(n), true
}
