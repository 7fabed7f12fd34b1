package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"backtestd/api"
	"backtestd/config"
	"backtestd/internal/util"
	"backtestd/journal"
	"backtestd/market"
	"backtestd/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the backtest HTTP server",
	Long: `Serve starts the HTTP API: session creation, SSE and websocket
event streams, status queries, cancellation, and cleanup.

Example:
  backtestd serve --config ./backtestd.yaml`,
	RunE: runServe,
}

var (
	serveConfigPath string
	serveAddr       string
	serveDataDir    string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "path to config file (YAML or JSON)")
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (overrides config)")
	serveCmd.Flags().StringVarP(&serveDataDir, "data", "d", "", "price data directory (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if serveConfigPath != "" {
		loaded, err := config.LoadFromFile(serveConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveDataDir != "" {
		cfg.Data.Dir = serveDataDir
	}

	log := util.NewLogger(cfg.Server.LogLevel)

	prices := market.NewCSVDir(cfg.Data.Dir)
	if cfg.Data.Archive != "" {
		log.Info("extracting price data archive", "archive", cfg.Data.Archive, "dir", cfg.Data.Dir)
		if err := prices.ExtractArchive(cfg.Data.Archive); err != nil {
			return err
		}
	}

	j, err := openJournal(cfg)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	registry := session.NewRegistry(prices, j, log)
	registry.SetDefaults(cfg.Simulation.LookbackDays, cfg.Simulation.MetricsEvery)
	registry.SetDefaultWeights(cfg.Strategies.Weights)

	srv := api.NewServer(cfg.Server.Addr, registry, log)

	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
			return
		}
		errc <- nil
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case sig := <-sigc:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errc
}

func openJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "", "none":
		return journal.Nop{}, nil
	case "sqlite":
		return journal.NewSQLite(cfg.Journal.DBPath)
	case "csv":
		return journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.SnapshotsFile, cfg.Journal.RunsFile)
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Journal.Type)
	}
}
