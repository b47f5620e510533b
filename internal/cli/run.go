package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"earnings-backtest/internal/config"
	"earnings-backtest/internal/metrics"
	"earnings-backtest/internal/models"
	"earnings-backtest/internal/risk"
	"earnings-backtest/internal/selector"
	"earnings-backtest/internal/simulator"
	"earnings-backtest/internal/store"
	"earnings-backtest/internal/workers"
)

// newRunCmd creates the run command, which executes a full backtest:
// events -> selection -> simulation -> metrics.
func newRunCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a backtest over the configured period",
		Example: `  earnings-backtest run --start 2023-01-01 --end 2024-01-01
  earnings-backtest run --start 2023-01-01 --end 2024-01-01 --stop-loss 8 --no-partial-profit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(cmd, app)
		},
	}

	flags := cmd.Flags()
	bt := &app.Config.Backtest
	sc := &app.Config.Screen

	flags.StringVar(&bt.StartDate, "start", bt.StartDate, "backtest start date (YYYY-MM-DD)")
	flags.StringVar(&bt.EndDate, "end", bt.EndDate, "backtest end date (YYYY-MM-DD)")
	flags.Float64Var(&bt.InitialCapital, "capital", bt.InitialCapital, "initial capital")
	flags.Float64Var(&bt.PositionSizePercent, "position-size", bt.PositionSizePercent, "position size as percent of capital")
	flags.Float64Var(&bt.StopLossPercent, "stop-loss", bt.StopLossPercent, "stop loss percent")
	flags.IntVar(&bt.TrailStopMA, "trail-ma", bt.TrailStopMA, "trailing stop moving average window")
	flags.IntVar(&bt.MaxHoldingDays, "max-holding-days", bt.MaxHoldingDays, "maximum holding period in calendar days")
	flags.Float64Var(&bt.SlippagePercent, "slippage", bt.SlippagePercent, "slippage percent per fill")
	flags.Float64Var(&bt.RiskLimitPercent, "risk-limit", bt.RiskLimitPercent, "trailing-window loss limit percent")
	flags.Float64Var(&bt.MarginRatio, "margin-ratio", bt.MarginRatio, "maximum open notional as a multiple of capital")
	flags.Float64Var(&sc.MinSurprisePercent, "min-surprise", sc.MinSurprisePercent, "minimum EPS surprise percent")
	flags.Float64Var(&sc.PreEarningsChangePercent, "pre-earnings-change", sc.PreEarningsChangePercent, "minimum 20-bar price change percent before the trade date")
	flags.Float64Var(&sc.MaxGapPercent, "max-gap", sc.MaxGapPercent, "maximum overnight gap percent (0 disables)")
	flags.StringSliceVar(&sc.TargetSymbols, "symbols", sc.TargetSymbols, "restrict the universe to these symbols")
	flags.StringVar(&app.Config.Data.DBPath, "db", app.Config.Data.DBPath, "path to the market data database")

	noPartial := flags.Bool("no-partial-profit", false, "disable the entry-day partial profit take")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		if *noPartial {
			bt.PartialProfit = false
		}
	}

	return cmd
}

func runBacktest(cmd *cobra.Command, app *App) error {
	cfg := app.Config
	log := app.Logger

	// Invalid configuration is the only fatal condition.
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := cmd.Context()

	dataStore, err := store.NewSQLiteStore(cfg.Data.DBPath)
	if err != nil {
		return fmt.Errorf("opening market data store: %w", err)
	}
	defer dataStore.Close()

	log.Info().
		Str("start", cfg.Backtest.StartDate).
		Str("end", cfg.Backtest.EndDate).
		Float64("capital", cfg.Backtest.InitialCapital).
		Msg("Starting backtest")

	events, err := dataStore.EarningsEvents(ctx, cfg.Start, cfg.End)
	if err != nil {
		return fmt.Errorf("loading earnings events: %w", err)
	}
	log.Info().Int("events", len(events)).Msg("Earnings events loaded")

	pool := workers.NewPool(0)
	pool.Start()
	defer pool.Stop()

	sel := selector.New(dataStore, selector.Config{
		MinSurprisePercent:       cfg.Screen.MinSurprisePercent,
		RequirePositiveEPS:       cfg.Screen.RequirePositiveEPS,
		TargetSymbols:            cfg.TargetSymbolSet(),
		PreEarningsChangePercent: cfg.Screen.PreEarningsChangePercent,
		MaxGapPercent:            cfg.Screen.MaxGapPercent,
		MinPrice:                 cfg.Screen.MinPrice,
		MinAvgVolume:             cfg.Screen.MinAvgVolume,
		TopPerDay:                cfg.Screen.TopPerDay,
		MaxHoldingDays:           cfg.Backtest.MaxHoldingDays,
		MaxPSRatio:               cfg.Screen.MaxPSRatio,
		MaxPERatio:               cfg.Screen.MaxPERatio,
		MinProfitMargin:          cfg.Screen.MinProfitMargin,
	}, log, pool)

	candidates, selectionSkips := sel.Select(ctx, events)
	log.Info().Int("candidates", len(candidates)).Msg("Candidate selection complete")

	gate := risk.NewGate(cfg.Backtest.RiskLimitPercent)
	sim := simulator.New(dataStore, gate, simulator.Config{
		InitialCapital:      cfg.Backtest.InitialCapital,
		PositionSizePercent: cfg.Backtest.PositionSizePercent,
		StopLossPercent:     cfg.Backtest.StopLossPercent,
		TrailStopMA:         cfg.Backtest.TrailStopMA,
		MaxHoldingDays:      cfg.Backtest.MaxHoldingDays,
		SlippagePercent:     cfg.Backtest.SlippagePercent,
		PartialProfit:       cfg.Backtest.PartialProfit,
		MarginRatio:         cfg.Backtest.MarginRatio,
	}, log)

	result, err := sim.Run(ctx, candidates)
	if err != nil {
		return fmt.Errorf("running simulation: %w", err)
	}

	summary := metrics.Compute(result.InitialCapital, result.Trades)

	skips := models.NewReasonHistogram()
	skips.Merge(selectionSkips)
	skips.Merge(result.Skips)

	out := os.Stdout
	renderSummary(out, summary)
	renderTrades(out, result.Trades)
	renderSkips(out, skips)

	log.Info().
		Int("trades", summary.TotalTrades).
		Float64("final_capital", summary.FinalCapital).
		Msg("Backtest complete")
	return nil
}
