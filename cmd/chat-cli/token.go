package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"go-directchat/internal/infrastructure/auth"
)

var (
	tokenSecret string
	tokenIssuer string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an HS256 identity token for --user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if userID == "" {
			return fmt.Errorf("--user is required")
		}
		if tokenSecret == "" {
			return fmt.Errorf("--secret is required")
		}
		signed, err := auth.IssueToken(tokenSecret, tokenIssuer, userID, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "AUTH_JWT_SECRET of the server")
	tokenCmd.Flags().StringVar(&tokenIssuer, "issuer", "", "AUTH_ISSUER of the server")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
