package simulator

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earnings-backtest/internal/market"
	"earnings-backtest/internal/models"
	"earnings-backtest/internal/risk"
	"earnings-backtest/pkg/utils"
)

func testConfig() Config {
	return Config{
		InitialCapital:      10000,
		PositionSizePercent: 6,
		StopLossPercent:     6,
		TrailStopMA:         3,
		MaxHoldingDays:      90,
		SlippagePercent:     0,
		PartialProfit:       true,
		MarginRatio:         1.5,
	}
}

type dayPrice struct {
	low   float64
	close float64
}

// barsFrom builds one bar per consecutive calendar day starting at start.
func barsFrom(start string, days []dayPrice) []models.Bar {
	s, _ := utils.ParseDate(start)
	bars := make([]models.Bar, len(days))
	for i, d := range days {
		bars[i] = models.Bar{
			Date:   utils.AddDays(s, i),
			Open:   d.close,
			High:   d.close,
			Low:    d.low,
			Close:  d.close,
			Volume: 300000,
		}
	}
	return bars
}

func candidate(symbol, tradeDate string, hint float64) models.Candidate {
	d, _ := utils.ParseDate(tradeDate)
	return models.Candidate{
		Symbol:          symbol,
		TradeDate:       d,
		EntryPriceHint:  hint,
		SurprisePercent: 20,
	}
}

func run(t *testing.T, mem *market.Memory, cfg Config, candidates ...models.Candidate) *Result {
	t.Helper()
	sim := New(mem, risk.NewGate(6), cfg, zerolog.Nop())
	result, err := sim.Run(context.Background(), candidates)
	require.NoError(t, err)
	return result
}

func TestIntradayStopOnEntryDay(t *testing.T) {
	mem := market.NewMemory()
	mem.SetBars("AAPL", barsFrom("2024-03-14", []dayPrice{
		{low: 93, close: 95},
		{low: 95, close: 96},
	}))

	result := run(t, mem, testConfig(), candidate("AAPL", "2024-03-14", 100))

	require.Len(t, result.Trades, 1)
	tr := result.Trades[0]
	assert.Equal(t, models.ExitStopLossIntraday, tr.ExitReason)
	assert.Equal(t, 6, tr.Shares)
	assert.InDelta(t, 100, tr.EntryPrice, 1e-9)
	assert.InDelta(t, 94, tr.ExitPrice, 1e-9)
	assert.InDelta(t, -36, tr.PnL, 1e-9)
	assert.Equal(t, 0, tr.HoldingPeriod)
	assert.Equal(t, tr.EntryDate, tr.ExitDate)
	assert.InDelta(t, 9964, result.FinalCapital, 1e-9)
}

func TestSlippageAppliedBothWays(t *testing.T) {
	mem := market.NewMemory()
	mem.SetBars("AAPL", barsFrom("2024-03-14", []dayPrice{
		{low: 90, close: 95},
	}))

	cfg := testConfig()
	cfg.SlippagePercent = 0.3
	result := run(t, mem, cfg, candidate("AAPL", "2024-03-14", 100))

	require.Len(t, result.Trades, 1)
	tr := result.Trades[0]
	// Entry fill 100 * 1.003, stop at 6% below the fill, exit haircut 0.3%.
	assert.InDelta(t, 100.3, tr.EntryPrice, 1e-9)
	assert.Equal(t, 5, tr.Shares)
	assert.InDelta(t, 94.282, 100.3*0.94, 1e-9)
	assert.InDelta(t, 94.282*0.997, tr.ExitPrice, 1e-9)
}

func TestPartialProfitOnEntryDay(t *testing.T) {
	mem := market.NewMemory()
	mem.SetBars("AAPL", barsFrom("2024-03-14", []dayPrice{
		{low: 99, close: 107},
		{low: 90, close: 92},
	}))

	result := run(t, mem, testConfig(), candidate("AAPL", "2024-03-14", 100))

	require.Len(t, result.Trades, 2)

	partial := result.Trades[0]
	assert.Equal(t, models.ExitPartialProfit, partial.ExitReason)
	assert.Equal(t, 3, partial.Shares)
	assert.InDelta(t, 107, partial.ExitPrice, 1e-9)
	assert.InDelta(t, 21, partial.PnL, 1e-9)
	assert.Equal(t, partial.EntryDate, partial.ExitDate)

	// The remainder keeps the original entry price and stop.
	rest := result.Trades[1]
	assert.Equal(t, models.ExitStopLoss, rest.ExitReason)
	assert.Equal(t, 3, rest.Shares)
	assert.InDelta(t, 100, rest.EntryPrice, 1e-9)
	assert.InDelta(t, 94, rest.ExitPrice, 1e-9)
	assert.InDelta(t, -18, rest.PnL, 1e-9)

	assert.InDelta(t, 10003, result.FinalCapital, 1e-9)
}

func TestPartialProfitDisabled(t *testing.T) {
	mem := market.NewMemory()
	mem.SetBars("AAPL", barsFrom("2024-03-14", []dayPrice{
		{low: 99, close: 107},
		{low: 90, close: 92},
	}))

	cfg := testConfig()
	cfg.PartialProfit = false
	result := run(t, mem, cfg, candidate("AAPL", "2024-03-14", 100))

	require.Len(t, result.Trades, 1)
	tr := result.Trades[0]
	assert.Equal(t, models.ExitStopLoss, tr.ExitReason)
	assert.Equal(t, 6, tr.Shares)
	assert.InDelta(t, -36, tr.PnL, 1e-9)
}

func TestTrailingStopExit(t *testing.T) {
	mem := market.NewMemory()
	mem.SetBars("AAPL", barsFrom("2024-03-14", []dayPrice{
		{low: 100, close: 100},
		{low: 100, close: 100},
		{low: 95, close: 95},
	}))

	result := run(t, mem, testConfig(), candidate("AAPL", "2024-03-14", 100))

	require.Len(t, result.Trades, 1)
	tr := result.Trades[0]
	assert.Equal(t, models.ExitTrailingStop, tr.ExitReason)
	// Exit at the 3-day average of close, (100+100+95)/3.
	assert.InDelta(t, 295.0/3, tr.ExitPrice, 1e-9)
	assert.Equal(t, 2, tr.HoldingPeriod)
}

func TestMaxHoldingDaysExit(t *testing.T) {
	days := make([]dayPrice, 7)
	for i := range days {
		c := 100 + float64(i)
		days[i] = dayPrice{low: c - 1, close: c}
	}
	mem := market.NewMemory()
	mem.SetBars("AAPL", barsFrom("2024-03-14", days))

	cfg := testConfig()
	cfg.MaxHoldingDays = 5
	result := run(t, mem, cfg, candidate("AAPL", "2024-03-14", 100))

	require.Len(t, result.Trades, 1)
	tr := result.Trades[0]
	assert.Equal(t, models.ExitMaxHoldingDays, tr.ExitReason)
	assert.Equal(t, 5, tr.HoldingPeriod)
	assert.InDelta(t, 105, tr.ExitPrice, 1e-9)
}

func TestEndOfDataLiquidation(t *testing.T) {
	mem := market.NewMemory()
	mem.SetBars("AAPL", barsFrom("2024-03-14", []dayPrice{
		{low: 99, close: 100},
		{low: 100, close: 101},
		{low: 101, close: 102},
		{low: 102, close: 103},
	}))

	result := run(t, mem, testConfig(), candidate("AAPL", "2024-03-14", 100))

	require.Len(t, result.Trades, 1)
	tr := result.Trades[0]
	assert.Equal(t, models.ExitEndOfData, tr.ExitReason)
	assert.InDelta(t, 103, tr.ExitPrice, 1e-9)
	assert.Equal(t, 3, tr.HoldingPeriod)
}

func TestMarginLimitRejectsSecondEntry(t *testing.T) {
	mem := market.NewMemory()
	mem.SetBars("AAPL", barsFrom("2024-03-14", []dayPrice{{low: 93, close: 95}}))
	mem.SetBars("MSFT", barsFrom("2024-03-14", []dayPrice{{low: 99, close: 101}}))

	cfg := testConfig()
	cfg.MarginRatio = 0.1
	result := run(t, mem, cfg,
		candidate("AAPL", "2024-03-14", 100),
		candidate("MSFT", "2024-03-14", 100),
	)

	require.Len(t, result.Trades, 1)
	assert.Equal(t, "AAPL", result.Trades[0].Symbol)
	assert.Equal(t, 1, result.Skips.Count(models.SkipMarginLimit))
}

func TestRiskGateDeniesAfterWindowLoss(t *testing.T) {
	mem := market.NewMemory()
	mem.SetBars("AAPL", barsFrom("2024-03-14", []dayPrice{{low: 93, close: 95}}))
	mem.SetBars("MSFT", barsFrom("2024-03-19", []dayPrice{{low: 99, close: 101}}))

	cfg := testConfig()
	cfg.PositionSizePercent = 100
	result := run(t, mem, cfg,
		candidate("AAPL", "2024-03-14", 100),
		candidate("MSFT", "2024-03-19", 100),
	)

	// AAPL stops out for -600; the 30-day window loss is 6.38% of the
	// remaining 9400, past the 6% limit.
	require.Len(t, result.Trades, 1)
	assert.Equal(t, "AAPL", result.Trades[0].Symbol)
	assert.InDelta(t, -600, result.Trades[0].PnL, 1e-9)
	assert.Equal(t, 1, result.Skips.Count(models.SkipRiskGate))
}

func TestZeroShareEntrySkipped(t *testing.T) {
	mem := market.NewMemory()
	mem.SetBars("AAPL", barsFrom("2024-03-14", []dayPrice{{low: 99, close: 101}}))

	result := run(t, mem, testConfig(), candidate("AAPL", "2024-03-14", 1e6))

	assert.Empty(t, result.Trades)
	assert.Equal(t, 1, result.Skips.Count(models.SkipZeroShares))
}

func TestMissingPriceDataSkipped(t *testing.T) {
	mem := market.NewMemory()

	result := run(t, mem, testConfig(), candidate("AAPL", "2024-03-14", 100))

	assert.Empty(t, result.Trades)
	assert.Equal(t, 1, result.Skips.Count(models.SkipNoPriceData))
	assert.InDelta(t, 10000, result.FinalCapital, 1e-9)
}

func TestLedgerOrderedByEntryDateThenSymbol(t *testing.T) {
	mem := market.NewMemory()
	mem.SetBars("ZZZ", barsFrom("2024-03-14", []dayPrice{{low: 93, close: 95}}))
	mem.SetBars("AAA", barsFrom("2024-03-20", []dayPrice{{low: 93, close: 95}}))
	mem.SetBars("BBB", barsFrom("2024-03-14", []dayPrice{{low: 93, close: 95}}))

	// Candidates handed over out of order.
	result := run(t, mem, testConfig(),
		candidate("AAA", "2024-03-20", 100),
		candidate("ZZZ", "2024-03-14", 100),
		candidate("BBB", "2024-03-14", 100),
	)

	require.Len(t, result.Trades, 3)
	var got []string
	for _, tr := range result.Trades {
		got = append(got, tr.Symbol)
	}
	assert.Equal(t, []string{"BBB", "ZZZ", "AAA"}, got)
}

func TestCapitalEqualsInitialPlusPnL(t *testing.T) {
	mem := market.NewMemory()
	mem.SetBars("AAPL", barsFrom("2024-03-14", []dayPrice{
		{low: 99, close: 107},
		{low: 90, close: 92},
	}))
	mem.SetBars("MSFT", barsFrom("2024-04-20", []dayPrice{
		{low: 48, close: 50},
		{low: 49, close: 51},
		{low: 50, close: 52},
	}))

	result := run(t, mem, testConfig(),
		candidate("AAPL", "2024-03-14", 100),
		candidate("MSFT", "2024-04-20", 50),
	)

	var total float64
	for _, tr := range result.Trades {
		total += tr.PnL
	}
	assert.InDelta(t, result.InitialCapital+total, result.FinalCapital, 1e-9)
}
