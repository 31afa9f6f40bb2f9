package main

import (
	"fmt"
	"os"
	"time"

	"github.com/de-tools/market-pulse/pkg/models/domain"
	"github.com/de-tools/market-pulse/pkg/services/generator"
	"github.com/de-tools/market-pulse/pkg/services/market"
	"github.com/de-tools/market-pulse/pkg/services/model"
	"github.com/de-tools/market-pulse/pkg/services/run"
	reportstore "github.com/de-tools/market-pulse/pkg/store/report"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	reportDir string
	date      string
	mode      string
	debugRun  bool
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "pulse",
		Short: "Market Pulse report tooling",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Generate one report and print its progress",
		RunE:  runOnce,
	}
	runCmd.Flags().StringVar(&reportDir, "reports", "data/reports",
		"Directory the generated report files are kept in")
	runCmd.Flags().StringVar(&date, "date", "",
		"Report date, YYYY-MM-DD (default today)")
	runCmd.Flags().StringVar(&mode, "mode", "",
		"Run mode: pre_market, midday, post_market or manual (default by time of day)")
	runCmd.Flags().BoolVar(&debugRun, "debug", false,
		"Capture a per-date debug log of the run")

	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runOnce(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if date == "" {
		date = time.Now().Format(domain.DateLayout)
	} else if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}

	runMode := domain.RunModeForTime(time.Now())
	if mode != "" {
		runMode = domain.RunMode(mode)
		if !runMode.Valid() {
			return fmt.Errorf("unknown run mode %q", mode)
		}
	}

	marketURL := os.Getenv("MARKET_DATA_URL")
	modelURL := os.Getenv("MODEL_ENDPOINT")
	modelKey := os.Getenv("MODEL_API_KEY")
	modelName := os.Getenv("MODEL_NAME")
	if marketURL == "" || modelURL == "" || modelKey == "" || modelName == "" {
		return fmt.Errorf("MARKET_DATA_URL, MODEL_ENDPOINT, MODEL_API_KEY and MODEL_NAME must be set")
	}

	reports, err := reportstore.NewFileStore(reportDir)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}

	gen := generator.New(market.NewClient(marketURL), model.NewClient(modelURL, modelKey, modelName), reports)
	gen.DebugCapture = debugRun

	coordinator := run.NewCoordinator(gen, logger)
	job := coordinator.Trigger(date, runMode)
	events, cancel := coordinator.Subscribe(date)
	defer cancel()

	for ev := range events {
		if ev.Detail != "" {
			fmt.Printf("[%3d%%] %s: %s\n", ev.Percent, ev.Title, ev.Detail)
		} else {
			fmt.Printf("[%3d%%] %s\n", ev.Percent, ev.Title)
		}
	}

	<-job.Done()
	doc, err := job.Result()
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	fmt.Printf("report for %s written (%d scenarios)\n", doc.Date, len(doc.Scenarios))
	return nil
}
