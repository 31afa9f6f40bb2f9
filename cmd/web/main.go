package main

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/de-tools/market-pulse/pkg/models/domain"
	"github.com/de-tools/market-pulse/pkg/server"
	"github.com/de-tools/market-pulse/pkg/services/generator"
	"github.com/de-tools/market-pulse/pkg/services/market"
	"github.com/de-tools/market-pulse/pkg/services/model"
	"github.com/de-tools/market-pulse/pkg/services/run"
	"github.com/de-tools/market-pulse/pkg/services/schedule"
	configstore "github.com/de-tools/market-pulse/pkg/store/config"
	reportstore "github.com/de-tools/market-pulse/pkg/store/report"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	reportDir string
	configDir string
	debugRuns bool
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the Market Pulse report server",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVar(&reportDir, "reports", "data/reports",
		"Directory the generated report files are kept in")
	rootCmd.Flags().StringVar(&configDir, "config", "data/config",
		"Directory the schedule configuration is kept in")
	rootCmd.Flags().BoolVar(&debugRuns, "debug-runs", false,
		"Capture a per-date debug log of every generation run")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	reports, err := reportstore.NewFileStore(reportDir)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}
	cfg, err := configstore.NewStore(configDir, env)
	if err != nil {
		return fmt.Errorf("failed to open config store: %w", err)
	}

	marketURL := os.Getenv("MARKET_DATA_URL")
	modelURL := os.Getenv("MODEL_ENDPOINT")
	modelKey := os.Getenv("MODEL_API_KEY")
	modelName := os.Getenv("MODEL_NAME")
	if marketURL == "" || modelURL == "" || modelKey == "" || modelName == "" {
		logger.Error().Msg("MARKET_DATA_URL, MODEL_ENDPOINT, MODEL_API_KEY and MODEL_NAME must be set")
		os.Exit(1)
	}

	gen := generator.New(market.NewClient(marketURL), model.NewClient(modelURL, modelKey, modelName), reports)
	gen.DebugCapture = debugRuns

	coordinator := run.NewCoordinator(gen, logger)
	scheduler := schedule.NewScheduler(cfg, func(date string, mode domain.RunMode) {
		coordinator.Trigger(date, mode)
	}, logger)

	schedulerCtx, stopScheduler := context.WithCancel(cmd.Context())
	defer stopScheduler()
	go scheduler.Run(schedulerCtx)

	logger.Info().
		Str("env", env).
		Strs("schedule_times", cfg.Get().Times).
		Msg("scheduler started")

	host := os.Getenv("SERVER_HOST")
	port := os.Getenv("SERVER_PORT")

	if host == "" || port == "" {
		logger.Error().Msgf("Missing server configuration from .env file")
		os.Exit(1)
	}

	api := server.NewWebAPI(server.Config{
		Addr: net.JoinHostPort(host, port),
		Dependencies: server.Dependencies{
			Reports:     reports,
			Config:      cfg,
			Coordinator: coordinator,
			Scheduler:   scheduler,
			Logger:      logger,
		},
	})

	return api.Start()
}
