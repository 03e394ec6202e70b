package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/dependency_container"
	"github.com/NeuralTrust/ThreatGate/pkg/domain"
	"github.com/NeuralTrust/ThreatGate/pkg/handlers/http/request"
	"github.com/spf13/cobra"
)

var (
	blockIP       string
	blockHash     string
	blockReason   string
	blockDuration time.Duration
	blockBy       string
)

var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "Manually block a source by IP or source hash",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := request.BlockSourceRequest{
			SourceHash: blockHash,
			IP:         blockIP,
			Reason:     blockReason,
		}
		if blockDuration > 0 {
			seconds := int64(blockDuration / time.Second)
			req.DurationSeconds = &seconds
		}
		if err := req.Validate(); err != nil {
			return err
		}
		return withContainer(func(c *dependency_container.Container) error {
			entry, err := c.Lifecycle.ManualBlock(cmd.Context(), req.Hash(), req.Reason, req.Duration(), blockBy)
			if err != nil && !errors.Is(err, domain.ErrLedgerUnavailable) {
				return fmt.Errorf("block failed: %w", err)
			}
			if err != nil {
				logger.WithError(err).Warn("blocked locally, ledger write pending")
			}
			return printJSON(entry)
		})
	},
}

var unblockCmd = &cobra.Command{
	Use:   "unblock <source_hash>",
	Short: "Remove a block from the ledger and locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !request.ValidSourceHash(args[0]) {
			return fmt.Errorf("invalid source hash: %s", args[0])
		}
		return withContainer(func(c *dependency_container.Container) error {
			if err := c.Lifecycle.Unblock(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("unblock failed: %w", err)
			}
			fmt.Println("unblocked", args[0])
			return nil
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <source_hash>",
	Short: "Show the local and ledger view of a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !request.ValidSourceHash(args[0]) {
			return fmt.Errorf("invalid source hash: %s", args[0])
		}
		return withContainer(func(c *dependency_container.Container) error {
			status, err := c.Lifecycle.Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(status)
		})
	},
}

func init() {
	blockCmd.Flags().StringVar(&blockIP, "ip", "", "IP address to block (hashed, never stored)")
	blockCmd.Flags().StringVar(&blockHash, "hash", "", "source hash to block")
	blockCmd.Flags().StringVar(&blockReason, "reason", "", "why the source is blocked")
	blockCmd.Flags().DurationVar(&blockDuration, "duration", 0, "block duration, permanent when omitted")
	blockCmd.Flags().StringVar(&blockBy, "by", "threatctl", "operator recorded on the entry")
	_ = blockCmd.MarkFlagRequired("reason")

	rootCmd.AddCommand(blockCmd, unblockCmd, checkCmd)
}
