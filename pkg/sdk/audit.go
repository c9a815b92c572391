package sdk

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fap-edu/fap-ledger-go/pkg/events"
	"go.uber.org/zap"
)

// AuditReport summarizes a mined transaction and the contract events it
// emitted.
type AuditReport struct {
	TxHash      string              `json:"txHash"`
	BlockNumber uint64              `json:"blockNumber"`
	Status      uint64              `json:"status"`
	Success     bool                `json:"success"`
	GasUsed     uint64              `json:"gasUsed"`
	From        string              `json:"from"`
	To          string              `json:"to,omitempty"`
	Events      []events.AuditEvent `json:"events"`
}

// AuditTransaction reads the receipt of txHash and decodes the events of the
// known contracts. A transaction without a receipt is a NotFoundError.
func (c *Core) AuditTransaction(ctx context.Context, txHash common.Hash) (*AuditReport, error) {
	readCtx, cancel := withTimeout(ctx, c.Timeouts.ChainRead)
	defer cancel()

	receipt, err := c.evm.GetTransactionReceipt(readCtx, txHash)
	if err != nil {
		return nil, err
	}
	from, to, err := c.evm.TransactionParties(readCtx, txHash)
	if err != nil {
		return nil, err
	}
	decoded, err := c.decoder.DecodeReceipt(receipt)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{
		TxHash:  txHash.Hex(),
		Status:  receipt.Status,
		Success: receipt.Status == types.ReceiptStatusSuccessful,
		GasUsed: receipt.GasUsed,
		From:    strings.ToLower(from.Hex()),
		Events:  decoded,
	}
	if receipt.BlockNumber != nil {
		report.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if to != nil {
		report.To = strings.ToLower(to.Hex())
	}
	if report.Events == nil {
		report.Events = []events.AuditEvent{}
	}

	zap.L().Debug("transaction audited",
		zap.String("txHash", report.TxHash),
		zap.Int("events", len(report.Events)))
	return report, nil
}
