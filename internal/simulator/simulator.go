// Package simulator implements the per-position lifecycle state machine:
// entry, partial exit, stop-out, trailing exit, and end-of-period
// liquidation, all sharing one portfolio state.
package simulator

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"earnings-backtest/internal/errors"
	"earnings-backtest/internal/logging"
	"earnings-backtest/internal/market"
	"earnings-backtest/internal/models"
	"earnings-backtest/internal/risk"
	"earnings-backtest/pkg/utils"
)

const (
	// partialProfitThresholdPct is the entry-day unrealized return that
	// triggers the half-position profit take.
	partialProfitThresholdPct = 6.0

	// historyExtensionDays pads the simulation price window past the
	// maximum holding period.
	historyExtensionDays = 30
)

// Config holds the simulation parameters.
type Config struct {
	InitialCapital      float64
	PositionSizePercent float64
	StopLossPercent     float64
	TrailStopMA         int
	MaxHoldingDays      int
	SlippagePercent     float64
	PartialProfit       bool
	MarginRatio         float64
}

// Simulator consumes candidates in date order and emits closed trades.
type Simulator struct {
	provider market.Provider
	gate     *risk.Gate
	cfg      Config
	log      zerolog.Logger
}

// New creates a Simulator.
func New(provider market.Provider, gate *risk.Gate, cfg Config, logger zerolog.Logger) *Simulator {
	return &Simulator{
		provider: provider,
		gate:     gate,
		cfg:      cfg,
		log:      logging.WithComponent(logger, "simulator"),
	}
}

// Result is the outcome of a simulation run.
type Result struct {
	InitialCapital float64
	FinalCapital   float64
	// Trades is the closed-trade ledger, stably sorted by entry date
	// then symbol.
	Trades []models.TradeRecord
	// Skips counts candidates that were rejected at entry.
	Skips *models.ReasonHistogram
}

// Run simulates every candidate in chronological order against one shared
// portfolio. A single candidate failing (missing data, constraint
// violation, gate denial) is recorded and skipped; it never aborts the
// run. The returned ledger is reproducible for identical inputs.
func (s *Simulator) Run(ctx context.Context, candidates []models.Candidate) (*Result, error) {
	ordered := make([]models.Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TradeDate.Before(ordered[j].TradeDate)
	})

	pf := NewPortfolioState(s.cfg.InitialCapital)
	skips := models.NewReasonHistogram()

	for _, cand := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		trades, skip := s.simulateCandidate(ctx, cand, pf)
		if skip != nil {
			skips.Add(skip.Reason)
			logging.LogSkip(s.log, skip.Symbol, string(skip.Reason))
			continue
		}
		for _, trade := range trades {
			pf.Commit(trade)
			logging.LogExit(s.log, trade.Symbol, trade.ExitDate, string(trade.ExitReason),
				trade.Shares, trade.ExitPrice, trade.PnL)
		}
	}

	ledger := pf.Ledger()
	sort.SliceStable(ledger, func(i, j int) bool {
		if !ledger[i].EntryDate.Equal(ledger[j].EntryDate) {
			return ledger[i].EntryDate.Before(ledger[j].EntryDate)
		}
		return ledger[i].Symbol < ledger[j].Symbol
	})

	return &Result{
		InitialCapital: pf.InitialCapital(),
		FinalCapital:   pf.Capital(),
		Trades:         ledger,
		Skips:          skips,
	}, nil
}

// simulateCandidate resolves one candidate's full lifecycle synchronously.
// It returns the closed trades in chronological exit order, or a skip.
func (s *Simulator) simulateCandidate(ctx context.Context, cand models.Candidate, pf *PortfolioState) ([]models.TradeRecord, *errors.SkipError) {
	entryDate := cand.TradeDate
	capital := pf.Capital()

	decision := s.gate.Check(entryDate, capital, pf.Ledger())
	if decision.Evaluated {
		logging.LogRiskGate(s.log, entryDate, decision.WindowPnL, decision.Ratio, decision.Allowed)
	}
	if !decision.Allowed {
		return nil, errors.NewSkipError(cand.Symbol, models.SkipRiskGate, errors.ErrRiskGateDenied)
	}

	slip := s.cfg.SlippagePercent / 100
	adjEntry := cand.EntryPriceHint * (1 + slip)
	if adjEntry <= 0 {
		return nil, errors.NewSkipError(cand.Symbol, models.SkipZeroShares, errors.ErrDegenerateArithmetic)
	}

	positionValue := capital * s.cfg.PositionSizePercent / 100
	shares := int(positionValue / adjEntry)
	if shares <= 0 {
		return nil, errors.NewSkipError(cand.Symbol, models.SkipZeroShares, errors.ErrCapitalConstraint)
	}

	notional := float64(shares) * adjEntry
	if pf.OpenNotionalOn(entryDate)+notional > capital*s.cfg.MarginRatio {
		return nil, errors.NewSkipError(cand.Symbol, models.SkipMarginLimit, errors.ErrCapitalConstraint)
	}

	bars, err := s.provider.DailyBars(ctx, cand.Symbol, entryDate,
		utils.AddDays(entryDate, s.cfg.MaxHoldingDays+historyExtensionDays))
	if err != nil || len(bars) == 0 {
		return nil, errors.NewSkipError(cand.Symbol, models.SkipNoPriceData, errors.ErrDataUnavailable)
	}
	ei := entryIndex(bars, entryDate)
	if ei < 0 {
		return nil, errors.NewSkipError(cand.Symbol, models.SkipMissingTradeDay, errors.ErrDataUnavailable)
	}

	pos := models.Position{
		Symbol:          cand.Symbol,
		EntryDate:       entryDate,
		EntryPrice:      adjEntry,
		Shares:          shares,
		StopLossPrice:   adjEntry * (1 - s.cfg.StopLossPercent/100),
		GapPercent:      cand.GapPercent,
		SurprisePercent: cand.SurprisePercent,
	}
	logging.LogEntry(s.log, pos.Symbol, pos.EntryDate, pos.Shares, pos.EntryPrice)

	entryBar := bars[ei]
	var out []models.TradeRecord

	// Same-day stop: terminal, no further checks run.
	if entryBar.Low <= pos.StopLossPrice {
		exitPrice := pos.StopLossPrice * (1 - slip)
		out = append(out, buildTrade(pos, pos.Shares, entryDate, exitPrice, models.ExitStopLossIntraday))
		return out, nil
	}

	// Entry-day partial profit: close half, keep the rest with the same
	// entry price and stop.
	if s.cfg.PartialProfit {
		dayReturn := (entryBar.Close - pos.EntryPrice) / pos.EntryPrice * 100
		if dayReturn >= partialProfitThresholdPct {
			half := pos.Shares / 2
			if half > 0 {
				exitPrice := entryBar.Close * (1 - slip)
				out = append(out, buildTrade(pos, half, entryDate, exitPrice, models.ExitPartialProfit))
				pos.Shares -= half
			}
		}
	}

	// Daily scan over subsequent bars; first match wins.
	for i := ei + 1; i < len(bars); i++ {
		bar := bars[i]
		daysHeld := utils.DaysBetween(entryDate, bar.Date)
		ma, maOK := trailingMA(bars, i, s.cfg.TrailStopMA)

		decision := EvaluateDay(pos, bar, daysHeld, s.cfg.MaxHoldingDays, ma, maOK)
		if decision.Exit {
			exitPrice := decision.RawPrice * (1 - slip)
			out = append(out, buildTrade(pos, pos.Shares, bar.Date, exitPrice, decision.Reason))
			return out, nil
		}
	}

	// Ran out of price history: liquidate at the last available close.
	last := bars[len(bars)-1]
	exitPrice := last.Close * (1 - slip)
	out = append(out, buildTrade(pos, pos.Shares, last.Date, exitPrice, models.ExitEndOfData))
	return out, nil
}

// buildTrade closes shares of the position at exitPrice (already slippage
// adjusted) and produces the ledger record.
func buildTrade(pos models.Position, shares int, exitDate time.Time, exitPrice float64, reason models.ExitReason) models.TradeRecord {
	pnl := (exitPrice - pos.EntryPrice) * float64(shares)
	pnlRate := (exitPrice - pos.EntryPrice) / pos.EntryPrice * 100
	return models.TradeRecord{
		Symbol:          pos.Symbol,
		EntryDate:       pos.EntryDate,
		ExitDate:        exitDate,
		Shares:          shares,
		EntryPrice:      pos.EntryPrice,
		ExitPrice:       exitPrice,
		PnL:             pnl,
		PnLRate:         pnlRate,
		HoldingPeriod:   utils.DaysBetween(pos.EntryDate, exitDate),
		ExitReason:      reason,
		GapPercent:      pos.GapPercent,
		SurprisePercent: pos.SurprisePercent,
	}
}

// entryIndex returns the index of the bar dated exactly d, or -1.
func entryIndex(bars []models.Bar, d time.Time) int {
	for i, bar := range bars {
		if bar.Date.Equal(d) {
			return i
		}
	}
	return -1
}
