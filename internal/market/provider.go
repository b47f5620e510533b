// Package market defines the market data provider consumed by the engine.
// Retrieval from any live backend (retry, pagination, rate limiting) lives
// behind this interface and outside the simulation core.
package market

import (
	"context"
	"time"

	"earnings-backtest/internal/models"
)

// Provider supplies earnings events, daily price bars, and fundamental
// ratios. Implementations must return bars ascending by date and
// de-duplicated per date.
type Provider interface {
	EarningsEvents(ctx context.Context, start, end time.Time) ([]models.EarningsEvent, error)
	DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error)
	FundamentalRatios(ctx context.Context, symbol string) (models.FundamentalRatios, error)
}
