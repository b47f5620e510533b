package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

func TestEarningsEventDomestic(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"AAPL.US", true},
		{"MSFT.US", true},
		{"VOD.LSE", false},
		{"AAPL", false},
		{"", false},
	}
	for _, tt := range tests {
		ev := EarningsEvent{Code: tt.code}
		if got := ev.Domestic(); got != tt.want {
			t.Errorf("Domestic(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestEarningsEventSymbol(t *testing.T) {
	ev := EarningsEvent{Code: "AAPL.US"}
	assert.Equal(t, "AAPL", ev.Symbol())

	ev = EarningsEvent{Code: "VOD.LSE"}
	assert.Equal(t, "VOD.LSE", ev.Symbol())
}

func TestSurprisePercent(t *testing.T) {
	tests := []struct {
		name     string
		actual   *float64
		estimate *float64
		want     float64
		ok       bool
	}{
		{"beat", f(1.2), f(1.0), 20, true},
		{"miss", f(0.8), f(1.0), -20, true},
		{"negative estimate beat", f(-0.5), f(-1.0), 50, true},
		{"nil actual", nil, f(1.0), 0, false},
		{"nil estimate", f(1.0), nil, 0, false},
		{"zero estimate", f(1.0), f(0), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := EarningsEvent{EPSActual: tt.actual, EPSEstimate: tt.estimate}
			got, ok := ev.SurprisePercent()
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestTradeRecordActiveOn(t *testing.T) {
	entry := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	exit := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	trade := TradeRecord{EntryDate: entry, ExitDate: exit}

	assert.True(t, trade.ActiveOn(entry), "entry day counts")
	assert.True(t, trade.ActiveOn(exit), "exit day counts")
	assert.True(t, trade.ActiveOn(entry.AddDate(0, 0, 5)))
	assert.False(t, trade.ActiveOn(entry.AddDate(0, 0, -1)))
	assert.False(t, trade.ActiveOn(exit.AddDate(0, 0, 1)))
}

func TestPositionNotional(t *testing.T) {
	pos := Position{Shares: 5, EntryPrice: 100.3}
	assert.InDelta(t, 501.5, pos.Notional(), 1e-9)
}

func TestReasonHistogram(t *testing.T) {
	h := NewReasonHistogram()
	h.Add(SkipLowVolume)
	h.Add(SkipLowVolume)
	h.Add(SkipNegativeGap)
	h.Add(SkipLowPrice)
	h.Add(SkipLowPrice)

	assert.Equal(t, 2, h.Count(SkipLowVolume))
	assert.Equal(t, 0, h.Count(SkipRiskGate))
	assert.Equal(t, 5, h.Total())

	entries := h.Entries()
	// Sorted by count descending, ties by reason name.
	assert.Equal(t, []Entry{
		{Reason: SkipLowPrice, Count: 2},
		{Reason: SkipLowVolume, Count: 2},
		{Reason: SkipNegativeGap, Count: 1},
	}, entries)
}

func TestReasonHistogramMerge(t *testing.T) {
	a := NewReasonHistogram()
	a.Add(SkipMarginLimit)

	b := NewReasonHistogram()
	b.Add(SkipMarginLimit)
	b.Add(SkipZeroShares)

	a.Merge(b)
	a.Merge(nil)

	assert.Equal(t, 2, a.Count(SkipMarginLimit))
	assert.Equal(t, 1, a.Count(SkipZeroShares))
}
