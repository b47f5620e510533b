package market

import (
	"context"
	"sort"
	"time"

	"earnings-backtest/internal/models"
)

// Memory is an in-memory Provider backed by fixture data. It is used by
// tests and dry runs; bars are normalized to the ascending, de-duplicated
// order the Provider contract requires.
type Memory struct {
	events []models.EarningsEvent
	bars   map[string][]models.Bar
	ratios map[string]models.FundamentalRatios
}

// NewMemory creates an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{
		bars:   make(map[string][]models.Bar),
		ratios: make(map[string]models.FundamentalRatios),
	}
}

// AddEvents appends earnings events.
func (m *Memory) AddEvents(events ...models.EarningsEvent) {
	m.events = append(m.events, events...)
}

// SetBars replaces the bar series for a symbol. The series is sorted by
// date and de-duplicated, keeping the last bar for each date.
func (m *Memory) SetBars(symbol string, bars []models.Bar) {
	sorted := make([]models.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	deduped := sorted[:0]
	for _, bar := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(bar.Date) {
			deduped[n-1] = bar
			continue
		}
		deduped = append(deduped, bar)
	}
	m.bars[symbol] = deduped
}

// SetRatios sets fundamental ratios for a symbol.
func (m *Memory) SetRatios(symbol string, ratios models.FundamentalRatios) {
	m.ratios[symbol] = ratios
}

// EarningsEvents returns events whose report date falls in [start, end],
// ordered by report date then code.
func (m *Memory) EarningsEvents(_ context.Context, start, end time.Time) ([]models.EarningsEvent, error) {
	var out []models.EarningsEvent
	for _, ev := range m.events {
		if ev.ReportDate.Before(start) || ev.ReportDate.After(end) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ReportDate.Equal(out[j].ReportDate) {
			return out[i].ReportDate.Before(out[j].ReportDate)
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

// DailyBars returns the stored bars for the symbol within [start, end].
func (m *Memory) DailyBars(_ context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	var out []models.Bar
	for _, bar := range m.bars[symbol] {
		if bar.Date.Before(start) || bar.Date.After(end) {
			continue
		}
		out = append(out, bar)
	}
	return out, nil
}

// FundamentalRatios returns the stored ratios; a symbol without stored
// ratios yields the zero value, meaning every field is missing.
func (m *Memory) FundamentalRatios(_ context.Context, symbol string) (models.FundamentalRatios, error) {
	return m.ratios[symbol], nil
}
