// Package metrics derives summary statistics from the closed-trade ledger.
package metrics

import (
	"math"
	"sort"
	"time"

	"earnings-backtest/internal/models"
)

// EquityPoint is the realized equity after one closed trade.
type EquityPoint struct {
	EntryDate time.Time
	Equity    float64
}

// YearlyReturn is the realized P&L of one calendar year, measured against
// the capital at the start of that year.
type YearlyReturn struct {
	Year         int
	PnL          float64
	ReturnPct    float64
	StartCapital float64
	EndCapital   float64
}

// Summary holds the performance statistics of a backtest run.
type Summary struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int

	WinRate          float64 // percent
	AvgPnLRate       float64 // percent
	AvgWinRate       float64 // percent, winners only
	AvgLossRate      float64 // percent, losers only
	AvgHoldingPeriod float64 // calendar days
	BestTrade        float64 // percent
	WorstTrade       float64 // percent

	ProfitFactor  float64 // +Inf when there are no losses
	MaxDrawdown   float64 // percent
	TotalReturn   float64 // percent
	CAGR          float64 // percent
	ExpectedValue float64 // percent
	CalmarRatio   float64 // +Inf when drawdown is zero
	ParetoRatio   float64 // percent
	SharpeRatio   float64

	InitialCapital float64
	FinalCapital   float64

	ExitReasons   map[models.ExitReason]int
	EquityCurve   []EquityPoint
	YearlyReturns []YearlyReturn
}

// Compute derives the summary statistics from the ledger. The ledger is
// expected ordered by entry date; equity is accumulated in that order.
// An empty ledger yields a zeroed summary with the capitals set.
func Compute(initialCapital float64, trades []models.TradeRecord) *Summary {
	s := &Summary{
		InitialCapital: initialCapital,
		FinalCapital:   initialCapital,
		ExitReasons:    make(map[models.ExitReason]int),
	}
	if len(trades) == 0 {
		return s
	}

	s.TotalTrades = len(trades)

	var (
		totalPnL    float64
		sumRate     float64
		sumWinRate  float64
		sumLossRate float64
		lossRateN   int
		sumHolding  float64
		totalProfit float64
		totalLoss   float64
		winningPnLs []float64
	)
	s.BestTrade = math.Inf(-1)
	s.WorstTrade = math.Inf(1)

	for _, t := range trades {
		totalPnL += t.PnL
		sumRate += t.PnLRate
		sumHolding += float64(t.HoldingPeriod)
		s.ExitReasons[t.ExitReason]++

		if t.PnLRate > 0 {
			s.WinningTrades++
			sumWinRate += t.PnLRate
		} else {
			s.LosingTrades++
		}
		if t.PnLRate < 0 {
			sumLossRate += t.PnLRate
			lossRateN++
		}
		if t.PnL > 0 {
			totalProfit += t.PnL
			winningPnLs = append(winningPnLs, t.PnL)
		} else {
			totalLoss += -t.PnL
		}
		if t.PnLRate > s.BestTrade {
			s.BestTrade = t.PnLRate
		}
		if t.PnLRate < s.WorstTrade {
			s.WorstTrade = t.PnLRate
		}
	}

	s.FinalCapital = initialCapital + totalPnL
	s.TotalReturn = totalPnL / initialCapital * 100
	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	s.AvgPnLRate = sumRate / float64(s.TotalTrades)
	s.AvgHoldingPeriod = sumHolding / float64(s.TotalTrades)
	if s.WinningTrades > 0 {
		s.AvgWinRate = sumWinRate / float64(s.WinningTrades)
	}
	if lossRateN > 0 {
		s.AvgLossRate = sumLossRate / float64(lossRateN)
	}

	if totalLoss == 0 {
		s.ProfitFactor = math.Inf(1)
	} else {
		s.ProfitFactor = totalProfit / totalLoss
	}

	s.EquityCurve, s.MaxDrawdown = equityAndDrawdown(initialCapital, trades)
	s.CAGR = cagr(initialCapital, s.FinalCapital, trades)
	s.YearlyReturns = yearlyReturns(initialCapital, trades)

	winRateDecimal := float64(s.WinningTrades) / float64(s.TotalTrades)
	s.ExpectedValue = winRateDecimal*s.AvgWinRate + (1-winRateDecimal)*s.AvgLossRate

	if s.MaxDrawdown == 0 {
		s.CalmarRatio = math.Inf(1)
	} else {
		s.CalmarRatio = math.Abs(s.CAGR / s.MaxDrawdown)
	}

	s.ParetoRatio = paretoRatio(winningPnLs)
	s.SharpeRatio = sharpeRatio(trades)

	return s
}

// equityAndDrawdown walks the ledger in order, accumulating realized
// equity and tracking the percentage retracement from the running peak.
func equityAndDrawdown(initialCapital float64, trades []models.TradeRecord) ([]EquityPoint, float64) {
	curve := make([]EquityPoint, 0, len(trades))
	equity := initialCapital
	runningMax := initialCapital
	var maxDrawdown float64

	for _, t := range trades {
		equity += t.PnL
		if equity > runningMax {
			runningMax = equity
		}
		if runningMax > 0 {
			drawdown := (runningMax - equity) / runningMax * 100
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
		curve = append(curve, EquityPoint{EntryDate: t.EntryDate, Equity: equity})
	}
	return curve, maxDrawdown
}

// cagr computes the compound annual growth rate over the span from the
// first entry to the last exit. Zero when the span or either capital is
// degenerate.
func cagr(initialCapital, finalCapital float64, trades []models.TradeRecord) float64 {
	first := trades[0].EntryDate
	last := trades[0].ExitDate
	for _, t := range trades {
		if t.EntryDate.Before(first) {
			first = t.EntryDate
		}
		if t.ExitDate.After(last) {
			last = t.ExitDate
		}
	}
	years := last.Sub(first).Hours() / 24 / 365.25
	if years <= 0 || initialCapital <= 0 || finalCapital <= 0 {
		return 0
	}
	return (math.Pow(finalCapital/initialCapital, 1/years) - 1) * 100
}

// yearlyReturns breaks realized P&L down per calendar year of entry,
// measuring each year's return against the capital at its start.
func yearlyReturns(initialCapital float64, trades []models.TradeRecord) []YearlyReturn {
	pnlByYear := make(map[int]float64)
	var years []int
	for _, t := range trades {
		year := t.EntryDate.Year()
		if _, seen := pnlByYear[year]; !seen {
			years = append(years, year)
		}
		pnlByYear[year] += t.PnL
	}
	sort.Ints(years)

	out := make([]YearlyReturn, 0, len(years))
	capital := initialCapital
	for _, year := range years {
		pnl := pnlByYear[year]
		ret := 0.0
		if capital != 0 {
			ret = pnl / capital * 100
		}
		out = append(out, YearlyReturn{
			Year:         year,
			PnL:          pnl,
			ReturnPct:    ret,
			StartCapital: capital,
			EndCapital:   capital + pnl,
		})
		capital += pnl
	}
	return out
}

// paretoRatio is the share of total winning P&L contributed by the top
// 20% of winning trades. Zero when there are no winners or the top-20%
// bucket rounds down to zero trades.
func paretoRatio(winningPnLs []float64) float64 {
	if len(winningPnLs) == 0 {
		return 0
	}
	sorted := make([]float64, len(winningPnLs))
	copy(sorted, winningPnLs)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	topN := len(sorted) * 20 / 100
	var topSum, total float64
	for i, pnl := range sorted {
		if i < topN {
			topSum += pnl
		}
		total += pnl
	}
	if total == 0 {
		return 0
	}
	return topSum / total * 100
}

// sharpeRatio is the simplified per-trade ratio: mean of pnl rates over
// their sample standard deviation. Zero when fewer than two trades or the
// deviation is zero.
func sharpeRatio(trades []models.TradeRecord) float64 {
	if len(trades) < 2 {
		return 0
	}
	var mean float64
	for _, t := range trades {
		mean += t.PnLRate
	}
	mean /= float64(len(trades))

	var variance float64
	for _, t := range trades {
		d := t.PnLRate - mean
		variance += d * d
	}
	variance /= float64(len(trades) - 1)

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std
}
