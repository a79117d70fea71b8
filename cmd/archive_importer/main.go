// Package main provides the entry point for the archive importer HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "archive_importer",
	Short: "Conversation archive import coordinator",
	Long:  "Archive Importer drives uploaded conversation archives through the extraction, parsing, redaction, embedding, and indexing stages, checkpointing progress in PostgreSQL.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
