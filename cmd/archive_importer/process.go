package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/archive-importer/internal/config"
	"github.com/jonathan/archive-importer/internal/db"
	"github.com/jonathan/archive-importer/internal/executor"
	"github.com/jonathan/archive-importer/internal/observability"
	"github.com/jonathan/archive-importer/internal/pipeline"
)

var (
	processImportID    string
	processCallerID    string
	processDatabaseURL string
	processVerbose     bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the import pipeline for one import",
	Long: `Drive a single import through every remaining pipeline stage without going
through the HTTP API. The caller ID must be the import's owner.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processImportID, "import-id", "i", "", "Import ID to process (required)")
	processCmd.Flags().StringVarP(&processCallerID, "caller-id", "u", "", "Caller ID, must own the import (required)")
	processCmd.Flags().StringVar(&processDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	processCmd.Flags().BoolVarP(&processVerbose, "verbose", "v", false, "Print the boxed outcome and per-stage stats")
	_ = processCmd.MarkFlagRequired("import-id")
	_ = processCmd.MarkFlagRequired("caller-id")
	rootCmd.AddCommand(processCmd)
}

func runProcess(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	importID, err := uuid.Parse(processImportID)
	if err != nil {
		return fmt.Errorf("invalid --import-id: %w", err)
	}
	callerID, err := uuid.Parse(processCallerID)
	if err != nil {
		return fmt.Errorf("invalid --caller-id: %w", err)
	}

	databaseURL := processDatabaseURL
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return fmt.Errorf("database URL is required (--db-url or DATABASE_URL)")
	}

	pipelineConfig, err := config.NewPipelineConfig()
	if err != nil {
		return err
	}
	exec, err := executor.New(executor.Options{
		BaseURL:      pipelineConfig.ExecutorBaseURL,
		ServiceToken: pipelineConfig.ServiceToken,
		Timeout:      pipelineConfig.StageTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create stage executor: %w", err)
	}

	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	coordinator := pipeline.New(database, database, database, exec)
	outcome, err := coordinator.Run(ctx, importID, callerID)
	if err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}

	if processVerbose {
		printer := observability.NewPrinter(os.Stdout)
		printer.PrintOutcome(importID, outcome)
		if rec, err := database.GetImport(ctx, importID); err == nil && rec != nil {
			printer.PrintStats(rec.Stats)
		}
		return nil
	}

	fmt.Printf("Import %s: %s", importID, outcome.Status)
	if outcome.Status != pipeline.OutcomeAlreadyCommitted {
		fmt.Printf(" (%d items pending review)", outcome.PendingReviewItems)
	}
	fmt.Println()
	return nil
}
