package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"MarketAdvisor/internal/app"
	"MarketAdvisor/internal/config"
	"MarketAdvisor/internal/logging"
	"MarketAdvisor/internal/usecase"
)

// bootstrap loads and validates the configuration, then wires the application.
func bootstrap(cmd *cobra.Command, cfgPath string) (*app.Application, *slog.Logger, error) {
	if cfgPath != "" {
		if err := os.Setenv(config.ConfigPathEnv, cfgPath); err != nil {
			return nil, nil, err
		}
	}
	cfg := config.Load()
	logger := logging.NewWithFormat(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return nil, logger, err
	}

	application, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		return nil, logger, err
	}
	return application, logger, nil
}

func runCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every stage once for today",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, logger, err := bootstrap(cmd, *cfgPath)
			if err != nil {
				return err
			}
			defer application.Close()

			report, err := application.Run(cmd.Context())
			if err != nil {
				logger.Error("application stopped", "error", err)
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}
}

func stageCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stage <name>",
		Short: "Run one stage against the artifacts already stored",
		Long: "Run one stage against the artifacts already stored.\nStages: " +
			strings.Join([]string{
				usecase.StageCrawl, usecase.StageFilter, usecase.StageSnapshot, usecase.StageSummarize,
				usecase.StageAnalyze, usecase.StageOpine, usecase.StageFinalize,
			}, ", "),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, logger, err := bootstrap(cmd, *cfgPath)
			if err != nil {
				return err
			}
			defer application.Close()

			sr, err := application.RunStage(cmd.Context(), args[0])
			if err != nil {
				logger.Error("stage failed", "stage", args[0], "error", err)
				return err
			}
			printStage(cmd, sr)
			return nil
		},
	}
}

func scheduleCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on the configured cron expression",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, logger, err := bootstrap(cmd, *cfgPath)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Schedule(cmd.Context()); err != nil {
				logger.Error("scheduler stopped", "error", err)
				return err
			}
			return nil
		},
	}
}

func printReport(cmd *cobra.Command, report usecase.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s\n", report.RunID)
	for _, sr := range report.Stages {
		printStage(cmd, sr)
	}
	rec := report.Recommendation
	if rec.Empty() {
		fmt.Fprintln(out, "no recommendation produced")
		return
	}
	fmt.Fprintf(out, "buy %.2f-%.2f  sell %.2f-%.2f  stop %.2f-%.2f\n",
		float64(rec.BuyZone.Min), float64(rec.BuyZone.Max),
		float64(rec.SellZone.Min), float64(rec.SellZone.Max),
		float64(rec.StopLoss.Min), float64(rec.StopLoss.Max))
}

func printStage(cmd *cobra.Command, sr usecase.StageReport) {
	status := "ok"
	if sr.Degraded {
		status = "degraded"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-18s items=%-4d failures=%-3d %-8s %s\n",
		sr.Stage, sr.Key, sr.Items, sr.Failures, status, sr.Duration.Round(time.Millisecond))
}
