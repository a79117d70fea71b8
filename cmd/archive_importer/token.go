package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/archive-importer/internal/config"
	"github.com/jonathan/archive-importer/internal/server"
)

var tokenCallerID string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a caller",
	Long:  `Generate a signed JWT for the given caller ID using JWT_SECRET. Intended for local development and smoke testing against the API.`,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenCallerID, "caller-id", "u", "", "Caller ID to embed in the token (required)")
	_ = tokenCmd.MarkFlagRequired("caller-id")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(_ *cobra.Command, _ []string) error {
	callerID, err := uuid.Parse(tokenCallerID)
	if err != nil {
		return fmt.Errorf("invalid --caller-id: %w", err)
	}

	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return err
	}

	token, err := server.NewJWTService(jwtConfig).GenerateToken(callerID)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
