package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fap-edu/fap-ledger-go/pkg/blockchain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the node connection and the configured contracts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, stop, err := openLedger(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer stop()

		report, err := ledger.Health(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, report)
	},
}

var verifySchemasCmd = &cobra.Command{
	Use:   "verify-schemas",
	Short: "Check that deployed bytecode exposes every embedded ABI entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, stop, err := openLedger(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer stop()

		if err := ledger.VerifySchemas(cmd.Context()); err != nil {
			return err
		}
		zap.L().Info("Contract schemas match deployed code")
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit <tx-hash>",
	Short: "Print a transaction receipt with its decoded events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := blockchain.HexToBytes32(args[0])
		if err != nil {
			return fmt.Errorf("invalid transaction hash %q: %w", args[0], err)
		}
		ledger, stop, err := openLedger(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer stop()

		report, err := ledger.AuditTransaction(cmd.Context(), common.Hash(raw))
		if err != nil {
			return err
		}
		return printJSON(cmd, report)
	},
}

func init() {
	rootCmd.AddCommand(healthCmd, verifySchemasCmd, auditCmd)
}
