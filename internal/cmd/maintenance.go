package cmd

import (
	"errors"
	"fmt"

	"github.com/NeuralTrust/ThreatGate/pkg/dependency_container"
	"github.com/spf13/cobra"
)

var errChainBroken = errors.New("ledger chain verification failed")

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired automatic blocks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(c *dependency_container.Container) error {
			report, err := c.Lifecycle.SweepExpired(cmd.Context())
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}
			return printJSON(report)
		})
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push blocks and signatures the ledger has not confirmed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(c *dependency_container.Container) error {
			blocks, err := c.Lifecycle.SyncPending(cmd.Context())
			if err != nil {
				return fmt.Errorf("block sync failed: %w", err)
			}
			signatures, err := c.Detector.SyncPending(cmd.Context())
			if err != nil {
				return fmt.Errorf("signature sync failed: %w", err)
			}
			return printJSON(map[string]interface{}{
				"blocks":     blocks,
				"signatures": signatures,
			})
		})
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run one coordinated-attack detection pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(c *dependency_container.Container) error {
			report, err := c.Detector.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("detection failed: %w", err)
			}
			return printJSON(report)
		})
	},
}

var verifyLedgerCmd = &cobra.Command{
	Use:   "verify-ledger",
	Short: "Walk the ledger chain and check every link",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(c *dependency_container.Container) error {
			report, err := c.Ledger.Verify(cmd.Context())
			if err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}
			if err := printJSON(report); err != nil {
				return err
			}
			if !report.Valid {
				return errChainBroken
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd, syncCmd, detectCmd, verifyLedgerCmd)
}
