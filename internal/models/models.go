// Package models provides domain models for the earnings backtest engine.
package models

import (
	"strings"
	"time"
)

// Timing represents when an earnings report is released relative to the
// trading session.
type Timing string

const (
	BeforeMarket  Timing = "BEFORE_MARKET"
	AfterMarket   Timing = "AFTER_MARKET"
	TimingUnknown Timing = "UNKNOWN"
)

// domesticSuffix marks listings on the domestic market. Events without it
// are out of universe.
const domesticSuffix = ".US"

// EarningsEvent is a scheduled earnings report as delivered by the market
// data provider. EPS fields are nil when the provider had no value.
type EarningsEvent struct {
	Code        string // provider code including exchange suffix, e.g. "AAPL.US"
	ReportDate  time.Time
	Timing      Timing
	EPSActual   *float64
	EPSEstimate *float64
}

// Domestic reports whether the event belongs to a domestic-market listing.
func (e EarningsEvent) Domestic() bool {
	return strings.HasSuffix(e.Code, domesticSuffix)
}

// Symbol returns the ticker with the exchange suffix stripped.
func (e EarningsEvent) Symbol() string {
	return strings.TrimSuffix(e.Code, domesticSuffix)
}

// SurprisePercent computes (actual - estimate) / |estimate| * 100.
// The second return value is false when either EPS value is missing or the
// estimate is zero.
func (e EarningsEvent) SurprisePercent() (float64, bool) {
	if e.EPSActual == nil || e.EPSEstimate == nil {
		return 0, false
	}
	est := *e.EPSEstimate
	if est == 0 {
		return 0, false
	}
	abs := est
	if abs < 0 {
		abs = -abs
	}
	return (*e.EPSActual - est) / abs * 100, true
}

// Bar is one day of OHLCV data.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// FundamentalRatios holds optional valuation ratios for a symbol. A nil
// field means the ratio is not available.
type FundamentalRatios struct {
	PS           *float64
	PE           *float64
	ProfitMargin *float64
}

// Candidate is an earnings event that survived both selection stages.
// Immutable once created.
type Candidate struct {
	Symbol          string
	ReportDate      time.Time
	TradeDate       time.Time
	EntryPriceHint  float64 // trade-day open, before slippage
	PrevClose       float64
	GapPercent      float64
	AvgVolume20D    float64
	SurprisePercent float64
}
