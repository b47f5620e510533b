package cli

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"earnings-backtest/internal/metrics"
	"earnings-backtest/internal/models"
	"earnings-backtest/pkg/utils"
)

// renderSummary prints the performance statistics.
func renderSummary(w io.Writer, s *metrics.Summary) {
	fmt.Fprintln(w, "\nBacktest Results")

	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")
	table.Append("Total trades", fmt.Sprintf("%d", s.TotalTrades))
	table.Append("Winning trades", fmt.Sprintf("%d", s.WinningTrades))
	table.Append("Losing trades", fmt.Sprintf("%d", s.LosingTrades))
	table.Append("Win rate", utils.FormatPercent(s.WinRate))
	table.Append("Avg trade return", utils.FormatPercent(s.AvgPnLRate))
	table.Append("Avg win", utils.FormatPercent(s.AvgWinRate))
	table.Append("Avg loss", utils.FormatPercent(s.AvgLossRate))
	table.Append("Avg holding period", fmt.Sprintf("%.1f days", s.AvgHoldingPeriod))
	table.Append("Best trade", utils.FormatPercent(s.BestTrade))
	table.Append("Worst trade", utils.FormatPercent(s.WorstTrade))
	table.Append("Profit factor", utils.FormatRatio(s.ProfitFactor))
	table.Append("Max drawdown", utils.FormatPercent(s.MaxDrawdown))
	table.Append("Initial capital", utils.FormatMoney(s.InitialCapital))
	table.Append("Final capital", utils.FormatMoney(s.FinalCapital))
	table.Append("Total return", utils.FormatPercent(s.TotalReturn))
	table.Append("CAGR", utils.FormatPercent(s.CAGR))
	table.Append("Expected value", utils.FormatPercent(s.ExpectedValue))
	table.Append("Calmar ratio", utils.FormatRatio(s.CalmarRatio))
	table.Append("Pareto ratio", utils.FormatPercent(s.ParetoRatio))
	table.Append("Sharpe ratio", utils.FormatRatio(s.SharpeRatio))
	table.Render()

	if len(s.YearlyReturns) > 0 {
		fmt.Fprintln(w, "\nYearly Returns")
		yearly := tablewriter.NewWriter(w)
		yearly.Header("Year", "PnL", "Return", "Start", "End")
		for _, yr := range s.YearlyReturns {
			yearly.Append(
				fmt.Sprintf("%d", yr.Year),
				utils.FormatMoney(yr.PnL),
				utils.FormatPercent(yr.ReturnPct),
				utils.FormatMoney(yr.StartCapital),
				utils.FormatMoney(yr.EndCapital),
			)
		}
		yearly.Render()
	}
}

// renderTrades prints the closed-trade ledger.
func renderTrades(w io.Writer, trades []models.TradeRecord) {
	if len(trades) == 0 {
		fmt.Fprintln(w, "\nNo trades executed")
		return
	}

	fmt.Fprintln(w, "\nTrade Details")
	table := tablewriter.NewWriter(w)
	table.Header("Entry", "Exit", "Symbol", "Shares", "Entry $", "Exit $", "PnL", "Return", "Days", "Reason")
	for _, t := range trades {
		table.Append(
			t.EntryDate.Format(utils.DateLayout),
			t.ExitDate.Format(utils.DateLayout),
			t.Symbol,
			fmt.Sprintf("%d", t.Shares),
			fmt.Sprintf("%.2f", t.EntryPrice),
			fmt.Sprintf("%.2f", t.ExitPrice),
			utils.FormatMoney(t.PnL),
			utils.FormatPercent(t.PnLRate),
			fmt.Sprintf("%d", t.HoldingPeriod),
			string(t.ExitReason),
		)
	}
	table.Render()
}

// renderSkips prints the rejection-reason histogram.
func renderSkips(w io.Writer, hist *models.ReasonHistogram) {
	entries := hist.Entries()
	if len(entries) == 0 {
		return
	}

	fmt.Fprintln(w, "\nSkipped Candidates")
	table := tablewriter.NewWriter(w)
	table.Header("Reason", "Count")
	for _, e := range entries {
		table.Append(string(e.Reason), fmt.Sprintf("%d", e.Count))
	}
	table.Render()
}
