// Package selector implements the two-stage candidate selection filter
// that turns raw earnings events into ranked, per-day trade candidates.
package selector

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"earnings-backtest/internal/logging"
	"earnings-backtest/internal/market"
	"earnings-backtest/internal/models"
	"earnings-backtest/internal/workers"
	"earnings-backtest/pkg/utils"
)

// lookback/extension for the stage-2 price window, in calendar days.
const (
	historyLookbackDays  = 60
	historyExtensionDays = 30
	trailingBars         = 20
)

// Config holds the selection thresholds.
type Config struct {
	MinSurprisePercent       float64
	RequirePositiveEPS       bool
	TargetSymbols            map[string]struct{} // nil allows every symbol
	PreEarningsChangePercent float64
	MaxGapPercent            float64 // 0 disables the upper bound
	MinPrice                 float64
	MinAvgVolume             float64
	TopPerDay                int
	MaxHoldingDays           int
	MaxPSRatio               float64 // 0 disables
	MaxPERatio               float64 // 0 disables
	MinProfitMargin          float64 // 0 disables
}

// Selector filters earnings events into tradable candidates.
type Selector struct {
	provider market.Provider
	cfg      Config
	log      zerolog.Logger
	pool     *workers.Pool
}

// New creates a Selector. pool may be nil, in which case stage-2 price
// history is fetched sequentially.
func New(provider market.Provider, cfg Config, logger zerolog.Logger, pool *workers.Pool) *Selector {
	return &Selector{
		provider: provider,
		cfg:      cfg,
		log:      logging.WithComponent(logger, "selector"),
		pool:     pool,
	}
}

// ResolveTradeDate maps a report date and timing to the trade date.
// BeforeMarket trades the report day itself; AfterMarket trades the next
// calendar day. Unknown timing deliberately collapses to the AfterMarket
// rule, matching the documented default behavior.
func ResolveTradeDate(reportDate time.Time, timing models.Timing) time.Time {
	if timing == models.BeforeMarket {
		return reportDate
	}
	return utils.AddDays(reportDate, 1)
}

// survivor is a stage-1 output awaiting stage-2 evaluation.
type survivor struct {
	event     models.EarningsEvent
	symbol    string
	tradeDate time.Time
	surprise  float64
}

// Select runs both filter stages and the per-day ranking. The returned
// candidates are ordered by trade date ascending and, within a date, by
// surprise percent descending with stable input order on ties. The
// histogram records every rejection by reason.
func (s *Selector) Select(ctx context.Context, events []models.EarningsEvent) ([]models.Candidate, *models.ReasonHistogram) {
	hist := models.NewReasonHistogram()

	survivors := s.firstStage(events, hist)
	s.log.Info().
		Int("events", len(events)).
		Int("stage1_survivors", len(survivors)).
		Msg("Stage 1 filtering complete")

	candidates := s.secondStage(ctx, survivors, hist)
	s.log.Info().
		Int("stage2_survivors", len(candidates)).
		Msg("Stage 2 filtering complete")

	ranked := rankPerDay(candidates, s.cfg.TopPerDay)
	s.log.Info().
		Int("selected", len(ranked)).
		Msg("Per-day ranking complete")

	return ranked, hist
}

// firstStage applies the eligibility filters: domestic listing, symbol
// universe, surprise threshold, and positive actual EPS. Unparsable
// values reject, never crash.
func (s *Selector) firstStage(events []models.EarningsEvent, hist *models.ReasonHistogram) []survivor {
	var out []survivor
	for _, ev := range events {
		if !ev.Domestic() {
			hist.Add(models.SkipForeignListing)
			continue
		}
		symbol := ev.Symbol()
		if s.cfg.TargetSymbols != nil {
			if _, ok := s.cfg.TargetSymbols[symbol]; !ok {
				hist.Add(models.SkipOutsideUniverse)
				continue
			}
		}
		surprise, ok := ev.SurprisePercent()
		if !ok {
			hist.Add(models.SkipUnparsableSurprise)
			logging.LogSkip(s.log, symbol, string(models.SkipUnparsableSurprise))
			continue
		}
		if surprise < s.cfg.MinSurprisePercent {
			hist.Add(models.SkipBelowMinSurprise)
			continue
		}
		if s.cfg.RequirePositiveEPS && *ev.EPSActual <= 0 {
			hist.Add(models.SkipNonPositiveEPS)
			continue
		}
		out = append(out, survivor{
			event:     ev,
			symbol:    symbol,
			tradeDate: ResolveTradeDate(ev.ReportDate, ev.Timing),
			surprise:  surprise,
		})
	}
	return out
}

// barsResult holds a prefetched price series for one survivor.
type barsResult struct {
	bars []models.Bar
	err  error
}

// secondStage applies the price-action, liquidity, and fundamental
// screens. Price history may be prefetched concurrently; the evaluation
// itself runs in stable input order so output stays deterministic.
func (s *Selector) secondStage(ctx context.Context, survivors []survivor, hist *models.ReasonHistogram) []models.Candidate {
	results := s.fetchHistory(ctx, survivors)

	var out []models.Candidate
	for i, sv := range survivors {
		cand, reason := s.evaluate(ctx, sv, results[i])
		if reason != "" {
			hist.Add(reason)
			logging.LogSkip(s.log, sv.symbol, string(reason))
			continue
		}
		out = append(out, cand)
	}
	return out
}

// fetchHistory retrieves the stage-2 price window for every survivor.
// Each worker writes only its own slot, so no locking is needed.
func (s *Selector) fetchHistory(ctx context.Context, survivors []survivor) []barsResult {
	results := make([]barsResult, len(survivors))

	fetch := func(i int) {
		sv := survivors[i]
		start := utils.AddDays(sv.tradeDate, -historyLookbackDays)
		end := utils.AddDays(sv.tradeDate, s.cfg.MaxHoldingDays+historyExtensionDays)
		bars, err := s.provider.DailyBars(ctx, sv.symbol, start, end)
		results[i] = barsResult{bars: bars, err: err}
	}

	if s.pool == nil {
		for i := range survivors {
			fetch(i)
		}
		return results
	}

	var wg sync.WaitGroup
	for i := range survivors {
		i := i
		wg.Add(1)
		if !s.pool.Submit(func() {
			defer wg.Done()
			fetch(i)
		}) {
			fetch(i)
			wg.Done()
		}
	}
	wg.Wait()
	return results
}

// evaluate runs the stage-2 checks for one survivor. It returns either a
// candidate or a non-empty skip reason.
func (s *Selector) evaluate(ctx context.Context, sv survivor, res barsResult) (models.Candidate, models.SkipReason) {
	if res.err != nil || len(res.bars) == 0 {
		return models.Candidate{}, models.SkipNoPriceData
	}
	bars := res.bars

	ti := indexOfDate(bars, sv.tradeDate)
	if ti < 0 {
		return models.Candidate{}, models.SkipMissingTradeDay
	}
	if ti < trailingBars-1 {
		return models.Candidate{}, models.SkipInsufficientHistory
	}

	// 20-bar trailing price change ending at the trade date.
	base := bars[ti-(trailingBars-1)].Close
	if base == 0 {
		return models.Candidate{}, models.SkipInsufficientHistory
	}
	change := (bars[ti].Close - base) / base * 100
	if change < s.cfg.PreEarningsChangePercent {
		return models.Candidate{}, models.SkipWeakPreEarnings
	}

	prevClose := bars[ti-1].Close
	if prevClose == 0 {
		return models.Candidate{}, models.SkipNoPriceData
	}
	gap := (bars[ti].Open - prevClose) / prevClose * 100
	if gap < 0 {
		return models.Candidate{}, models.SkipNegativeGap
	}
	if s.cfg.MaxGapPercent > 0 && gap > s.cfg.MaxGapPercent {
		return models.Candidate{}, models.SkipGapTooLarge
	}

	if bars[ti].Open < s.cfg.MinPrice {
		return models.Candidate{}, models.SkipLowPrice
	}

	var volumeSum int64
	for _, bar := range bars[ti-(trailingBars-1) : ti+1] {
		volumeSum += bar.Volume
	}
	avgVolume := float64(volumeSum) / trailingBars
	if avgVolume < s.cfg.MinAvgVolume {
		return models.Candidate{}, models.SkipLowVolume
	}

	if !s.passesFundamentals(ctx, sv.symbol) {
		return models.Candidate{}, models.SkipFundamentalScreen
	}

	return models.Candidate{
		Symbol:          sv.symbol,
		ReportDate:      sv.event.ReportDate,
		TradeDate:       sv.tradeDate,
		EntryPriceHint:  bars[ti].Open,
		PrevClose:       prevClose,
		GapPercent:      gap,
		AvgVolume20D:    avgVolume,
		SurprisePercent: sv.surprise,
	}, ""
}

// passesFundamentals applies the optional valuation screens. A screen that
// is enabled rejects when its ratio is missing or fails the bound.
func (s *Selector) passesFundamentals(ctx context.Context, symbol string) bool {
	if s.cfg.MaxPSRatio == 0 && s.cfg.MaxPERatio == 0 && s.cfg.MinProfitMargin == 0 {
		return true
	}
	ratios, err := s.provider.FundamentalRatios(ctx, symbol)
	if err != nil {
		return false
	}
	if s.cfg.MaxPSRatio > 0 && (ratios.PS == nil || *ratios.PS > s.cfg.MaxPSRatio) {
		return false
	}
	if s.cfg.MaxPERatio > 0 && (ratios.PE == nil || *ratios.PE > s.cfg.MaxPERatio) {
		return false
	}
	if s.cfg.MinProfitMargin > 0 && (ratios.ProfitMargin == nil || *ratios.ProfitMargin < s.cfg.MinProfitMargin) {
		return false
	}
	return true
}

// rankPerDay groups candidates by trade date, sorts each group by surprise
// percent descending (stable on ties), and keeps the top N per day. Dates
// are emitted in ascending order.
func rankPerDay(candidates []models.Candidate, topPerDay int) []models.Candidate {
	byDate := make(map[time.Time][]models.Candidate)
	var dates []time.Time
	for _, c := range candidates {
		if _, seen := byDate[c.TradeDate]; !seen {
			dates = append(dates, c.TradeDate)
		}
		byDate[c.TradeDate] = append(byDate[c.TradeDate], c)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	var out []models.Candidate
	for _, date := range dates {
		group := byDate[date]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].SurprisePercent > group[j].SurprisePercent
		})
		if len(group) > topPerDay {
			group = group[:topPerDay]
		}
		out = append(out, group...)
	}
	return out
}

// indexOfDate returns the index of the bar dated exactly d, or -1.
func indexOfDate(bars []models.Bar, d time.Time) int {
	for i, bar := range bars {
		if bar.Date.Equal(d) {
			return i
		}
	}
	return -1
}
