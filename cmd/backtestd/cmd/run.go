package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"backtestd/internal/util"
	"backtestd/journal"
	"backtestd/market"
	"backtestd/sim"
	"backtestd/strategies"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest from the command line",
	Long: `Run executes one backtest synchronously against CSV price data
and prints the performance summary.

Supported strategies: ` + strings.Join(strategies.List(), ", ") + `

Example:
  backtestd run -d ./data -t AAPL,MSFT -s momentum,mean-revert \
    --start 2024-01-02 --end 2024-06-28`,
	RunE: runRun,
}

var (
	runDataDir   string
	runTickers   []string
	runStrats    []string
	runStart     string
	runEnd       string
	runCapital   float64
	runMargin    float64
	runLookback  int
	runDBPath    string
	runLogLevel  string
	runNoBar     bool
	runShowTrade bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runDataDir, "data", "d", "./data", "price data directory (TICKER.csv[.gz|.xz] files)")
	runCmd.Flags().StringSliceVarP(&runTickers, "tickers", "t", nil, "tickers to trade (required)")
	runCmd.Flags().StringSliceVarP(&runStrats, "strategies", "s", []string{"momentum"}, "strategies to combine")
	runCmd.Flags().StringVar(&runStart, "start", "", "first simulated date, 2006-01-02 (required)")
	runCmd.Flags().StringVar(&runEnd, "end", "", "last simulated date, 2006-01-02 (required)")
	runCmd.Flags().Float64VarP(&runCapital, "capital", "b", 100_000, "initial capital")
	runCmd.Flags().Float64VarP(&runMargin, "margin", "m", 0, "margin requirement ratio for shorts (0 = unbounded)")
	runCmd.Flags().IntVar(&runLookback, "lookback", 30, "calendar days of price context per decision")
	runCmd.Flags().StringVar(&runDBPath, "db", "", "journal trades and snapshots to this SQLite file")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runNoBar, "no-progress", false, "disable the progress bar")
	runCmd.Flags().BoolVar(&runShowTrade, "trades", false, "print every executed trade")

	runCmd.MarkFlagRequired("tickers")
	runCmd.MarkFlagRequired("start")
	runCmd.MarkFlagRequired("end")
}

func runRun(cmd *cobra.Command, args []string) error {
	start, err := time.ParseInLocation("2006-01-02", runStart, time.UTC)
	if err != nil {
		return fmt.Errorf("bad --start: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", runEnd, time.UTC)
	if err != nil {
		return fmt.Errorf("bad --end: %w", err)
	}

	provider, err := strategies.ForNames(runStrats, nil)
	if err != nil {
		return err
	}

	j := journal.Journal(journal.Nop{})
	if runDBPath != "" {
		sq, err := journal.NewSQLite(runDBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sq.Close()
		j = sq
	}

	rec := &cliRecorder{journal: j}
	if !runNoBar {
		rec.bar = progressbar.NewOptions(100,
			progressbar.OptionSetDescription("backtesting"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	engine := sim.NewEngine(sim.EngineConfig{
		SessionID:         "cli",
		Tickers:           normalizeTickers(runTickers),
		Start:             start,
		End:               end,
		InitialCapital:    runCapital,
		MarginRequirement: runMargin,
		Params:            sim.StrategyParams{Strategies: runStrats},
		LookbackDays:      runLookback,
	}, provider, market.NewCSVDir(runDataDir), rec, util.NewLogger(runLogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics, err := engine.Run(ctx)
	if rec.bar != nil {
		rec.bar.Finish()
	}
	if err != nil {
		return err
	}

	printSummary(metrics, engine, runCapital)
	return nil
}

func normalizeTickers(in []string) []string {
	out := make([]string, len(in))
	for i, t := range in {
		out[i] = strings.ToUpper(strings.TrimSpace(t))
	}
	return out
}

func printSummary(m sim.Metrics, engine *sim.Engine, capital float64) {
	fmt.Println()
	fmt.Println("=== Backtest Results ===")
	fmt.Printf("Initial capital:  %.2f\n", capital)
	fmt.Printf("Final value:      %.2f\n", engine.FinalValue())
	fmt.Printf("Total return:     %.2f%%\n", m.TotalReturn)
	fmt.Printf("Sharpe ratio:     %s\n", fmtPtr(m.SharpeRatio, "%.2f"))
	fmt.Printf("Sortino ratio:    %s\n", fmtPtr(m.SortinoRatio, "%.2f"))
	fmt.Printf("Max drawdown:     %s\n", fmtPtr(m.MaxDrawdown, "%.2f%%"))
	fmt.Printf("Win rate:         %s\n", fmtPtr(m.WinRate, "%.1f%%"))
	if m.TotalTrades != nil {
		fmt.Printf("Total trades:     %d\n", *m.TotalTrades)
	}

	view := engine.Portfolio()
	if len(view.Positions) > 0 {
		fmt.Println()
		fmt.Println("Final positions:")
		for ticker, pos := range view.Positions {
			if pos.Long > 0 {
				fmt.Printf("  %-6s long  %6d @ %.2f avg\n", ticker, pos.Long, pos.AvgLongCost)
			}
			if pos.Short > 0 {
				fmt.Printf("  %-6s short %6d @ %.2f avg\n", ticker, pos.Short, pos.AvgShortCost)
			}
		}
	}
}

func fmtPtr(p *float64, format string) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *p)
}

// cliRecorder drives the terminal progress bar and forwards trades and
// snapshots to an optional journal.
type cliRecorder struct {
	bar     *progressbar.ProgressBar
	journal journal.Journal
}

func (r *cliRecorder) Publish(sim.Event) {}

func (r *cliRecorder) SetProgress(progress float64, _ time.Time) {
	if r.bar != nil {
		_ = r.bar.Set(int(progress * 100))
	}
}

func (r *cliRecorder) RecordSnapshot(s sim.Snapshot) {
	var ret float64
	if s.DailyReturn != nil {
		ret = *s.DailyReturn
	}
	_ = r.journal.RecordSnapshot(journal.SnapshotRecord{
		SessionID:   "cli",
		Date:        s.Date,
		Cash:        s.Cash,
		TotalValue:  s.TotalValue,
		DailyReturn: ret,
	})
}

func (r *cliRecorder) RecordDecision(d sim.TradingDecision) {
	if runShowTrade && d.Executed > 0 {
		fmt.Printf("%s  %-5s %-6s %d @ %.2f\n",
			d.Date.Format("2006-01-02"), d.Action, d.Ticker, d.Executed, d.Price)
	}
	_ = r.journal.RecordTrade(journal.TradeRecord{
		SessionID: "cli",
		Ticker:    d.Ticker,
		Action:    string(d.Action),
		Requested: d.Requested,
		Executed:  d.Executed,
		Price:     d.Price,
		Date:      d.Date,
		Timestamp: d.Timestamp,
	})
}
