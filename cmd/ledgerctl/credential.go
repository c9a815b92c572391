package main

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fap-edu/fap-ledger-go/pkg/blockchain"
	"github.com/fap-edu/fap-ledger-go/pkg/model"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type IssueConfig struct {
	Student   string
	Type      string
	Data      string
	Hash      string
	ExpiresAt string
}

var (
	issueConfig  IssueConfig
	revokeReason string
)

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Issue, revoke and read credentials",
}

var credentialIssueCmd = &cobra.Command{
	Use:   "issue [flags]",
	Short: "Issue a credential to a student",
	Long: `Issue a credential and print its id and transaction hash once the
transaction is confirmed. Without --hash the verification hash is the
Keccak-256 of --data.

Examples:
  # Issue a subject completion credential
  ledgerctl credential issue -s 0xabc... -t SubjectCompletion -D '{"subject":"PRN231","grade":"A"}'

  # Issue a credential that expires
  ledgerctl credential issue -s 0xabc... -t Certificate -D '{}' -e 2027-06-30`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := issueRequest(issueConfig)
		if err != nil {
			return err
		}
		ledger, stop, err := openLedger(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer stop()

		id, txHash, err := ledger.Credentials().IssueCredential(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]string{"id": id.String(), "txHash": txHash.Hex()})
	},
}

var credentialRevokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "Revoke a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ledger, stop, err := openLedger(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer stop()

		txHash, err := ledger.Credentials().RevokeCredential(cmd.Context(), id.ToBig(), revokeReason)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]string{"txHash": txHash.Hex()})
	},
}

var credentialGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a credential record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ledger, stop, err := openLedger(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer stop()

		rec, err := ledger.Credentials().GetCredential(cmd.Context(), id.ToBig())
		if err != nil {
			return err
		}
		return printJSON(cmd, rec)
	},
}

var credentialVerifyCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "Ask the contract whether a credential is valid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ledger, stop, err := openLedger(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer stop()

		valid, err := ledger.Credentials().VerifyCredential(cmd.Context(), id.ToBig())
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{"id": id.Dec(), "valid": valid})
	},
}

var credentialCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of issued credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, stop, err := openLedger(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer stop()

		n, err := ledger.Credentials().GetCredentialCount(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]string{"count": n.String()})
	},
}

func init() {
	rootCmd.AddCommand(credentialCmd)
	credentialCmd.AddCommand(credentialIssueCmd, credentialRevokeCmd, credentialGetCmd, credentialVerifyCmd, credentialCountCmd)

	credentialIssueCmd.Flags().StringVarP(&issueConfig.Student, "student", "s", "", "student wallet address")
	credentialIssueCmd.Flags().StringVarP(&issueConfig.Type, "type", "t", "", "credential type")
	credentialIssueCmd.Flags().StringVarP(&issueConfig.Data, "data", "D", "", "credential payload, usually JSON")
	credentialIssueCmd.Flags().StringVar(&issueConfig.Hash, "hash", "", "32-byte verification hash in hex")
	credentialIssueCmd.Flags().StringVarP(&issueConfig.ExpiresAt, "expires", "e", "", "expiry as YYYY-MM-DD or RFC 3339")
	_ = credentialIssueCmd.MarkFlagRequired("student")
	_ = credentialIssueCmd.MarkFlagRequired("type")

	credentialRevokeCmd.Flags().StringVarP(&revokeReason, "reason", "r", "", "revocation reason")
}

func issueRequest(c IssueConfig) (model.IssueCredentialRequest, error) {
	if !common.IsHexAddress(c.Student) {
		return model.IssueCredentialRequest{}, fmt.Errorf("invalid student address %q", c.Student)
	}
	req := model.IssueCredentialRequest{
		Student: common.HexToAddress(c.Student),
		Type:    c.Type,
		Data:    c.Data,
	}

	if c.Hash == "" {
		req.VerificationHash = crypto.Keccak256([]byte(c.Data))
		zap.L().Debug("Derived verification hash from data", zap.String("hash", common.BytesToHash(req.VerificationHash).Hex()))
	} else {
		h, err := blockchain.HexToBytes32(c.Hash)
		if err != nil {
			return model.IssueCredentialRequest{}, fmt.Errorf("invalid verification hash: %w", err)
		}
		req.VerificationHash = h[:]
	}

	if c.ExpiresAt != "" {
		t, err := parseTime(c.ExpiresAt)
		if err != nil {
			return model.IssueCredentialRequest{}, fmt.Errorf("invalid expiry: %w", err)
		}
		req.ExpiresAt = t
	}
	return req, req.Validate()
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}
