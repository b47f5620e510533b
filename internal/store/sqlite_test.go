package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earnings-backtest/internal/models"
	"earnings-backtest/pkg/utils"
)

func f(v float64) *float64 { return &v }

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEarningsEventsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	events := []models.EarningsEvent{
		{
			Code:        "AAPL.US",
			ReportDate:  utils.Date(2024, 3, 14),
			Timing:      models.BeforeMarket,
			EPSActual:   f(1.2),
			EPSEstimate: f(1.0),
		},
		{
			Code:       "MSFT.US",
			ReportDate: utils.Date(2024, 3, 15),
			Timing:     models.AfterMarket,
		},
	}
	require.NoError(t, s.SaveEarningsEvents(ctx, events))

	got, err := s.EarningsEvents(ctx, utils.Date(2024, 3, 1), utils.Date(2024, 3, 31))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "AAPL.US", got[0].Code)
	assert.Equal(t, models.BeforeMarket, got[0].Timing)
	require.NotNil(t, got[0].EPSActual)
	assert.InDelta(t, 1.2, *got[0].EPSActual, 1e-9)

	assert.Equal(t, "MSFT.US", got[1].Code)
	assert.Nil(t, got[1].EPSActual, "missing EPS stays missing")
	assert.Nil(t, got[1].EPSEstimate)
}

func TestEarningsEventsUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ev := models.EarningsEvent{
		Code:       "AAPL.US",
		ReportDate: utils.Date(2024, 3, 14),
		Timing:     models.TimingUnknown,
	}
	require.NoError(t, s.SaveEarningsEvents(ctx, []models.EarningsEvent{ev}))

	ev.Timing = models.BeforeMarket
	ev.EPSActual = f(1.5)
	require.NoError(t, s.SaveEarningsEvents(ctx, []models.EarningsEvent{ev}))

	got, err := s.EarningsEvents(ctx, utils.Date(2024, 3, 1), utils.Date(2024, 3, 31))
	require.NoError(t, err)
	require.Len(t, got, 1, "same code and date updates in place")
	assert.Equal(t, models.BeforeMarket, got[0].Timing)
}

func TestDailyBarsOrderedAndDeduplicated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bars := []models.Bar{
		{Date: utils.Date(2024, 3, 15), Open: 101, High: 103, Low: 100, Close: 102, Volume: 1000},
		{Date: utils.Date(2024, 3, 14), Open: 100, High: 102, Low: 99, Close: 101, Volume: 900},
	}
	require.NoError(t, s.SaveDailyBars(ctx, "AAPL", bars))

	// Re-saving the same date overwrites the previous row.
	require.NoError(t, s.SaveDailyBars(ctx, "AAPL", []models.Bar{
		{Date: utils.Date(2024, 3, 15), Open: 105, High: 106, Low: 104, Close: 105, Volume: 1100},
	}))

	got, err := s.DailyBars(ctx, "AAPL", utils.Date(2024, 3, 1), utils.Date(2024, 3, 31))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Date.Before(got[1].Date), "ascending by date")
	assert.InDelta(t, 105, got[1].Close, 1e-9)
}

func TestDailyBarsRangeFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var bars []models.Bar
	for i := 0; i < 10; i++ {
		bars = append(bars, models.Bar{
			Date: utils.AddDays(utils.Date(2024, 3, 1), i), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1,
		})
	}
	require.NoError(t, s.SaveDailyBars(ctx, "AAPL", bars))

	got, err := s.DailyBars(ctx, "AAPL", utils.Date(2024, 3, 4), utils.Date(2024, 3, 6))
	require.NoError(t, err)
	assert.Len(t, got, 3, "range bounds are inclusive")

	got, err = s.DailyBars(ctx, "MSFT", utils.Date(2024, 3, 1), utils.Date(2024, 3, 31))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFundamentalRatiosRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFundamentalRatios(ctx, "AAPL", models.FundamentalRatios{
		PS: f(7.5),
		PE: f(28),
	}))

	got, err := s.FundamentalRatios(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, got.PS)
	assert.InDelta(t, 7.5, *got.PS, 1e-9)
	assert.Nil(t, got.ProfitMargin)

	// A symbol without a row yields the zero value, not an error.
	got, err = s.FundamentalRatios(ctx, "MSFT")
	require.NoError(t, err)
	assert.Nil(t, got.PS)
	assert.Nil(t, got.PE)
}
