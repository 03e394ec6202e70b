package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/infra/auth/jwt"
	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin API bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Server.SecretKey == "" {
			return errors.New("server.secret_key is not configured")
		}
		token, err := jwt.NewJwtManager(cfg.Server.SecretKey).CreateToken(tokenSubject, tokenTTL)
		if err != nil {
			return fmt.Errorf("failed to create token: %w", err)
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "admin", "subject recorded as the operator")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
