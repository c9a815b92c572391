package sdk

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fap-edu/fap-ledger-go/pkg/chainerr"
	"github.com/fap-edu/fap-ledger-go/pkg/contract"
	"github.com/fap-edu/fap-ledger-go/pkg/events"
	"go.uber.org/zap"
)

// findEvent returns the first event named name in receipt that match accepts.
func findEvent(d *events.Decoder, receipt *types.Receipt, name string, match func(events.AuditEvent) bool) (events.AuditEvent, bool) {
	decoded, err := d.DecodeReceipt(receipt)
	if err != nil {
		zap.L().Warn("failed to decode receipt logs",
			zap.String("txHash", receipt.TxHash.Hex()),
			zap.Error(err))
		return events.AuditEvent{}, false
	}
	return events.Find(decoded, name, match)
}

// idFromReceipt returns the idArg of the first event named name in receipt
// that match accepts.
func idFromReceipt(d *events.Decoder, receipt *types.Receipt, name, idArg string, match func(events.AuditEvent) bool) (*big.Int, bool) {
	ev, ok := findEvent(d, receipt, name, match)
	if !ok {
		return nil, false
	}
	return ev.Uint(idArg)
}

func count(ctx context.Context, b *contract.Binding, fn string) (*big.Int, error) {
	var out struct{ Count *big.Int }
	if err := b.CallInto(ctx, &out, fn); err != nil {
		return nil, err
	}
	return out.Count, nil
}

// counterFallback reads the contract counter after a confirmed write. Ids are
// 1-based, so the counter equals the latest id; a zero or unreadable counter
// leaves the id unknown.
func counterFallback(ctx context.Context, b *contract.Binding, fn, entity string, txHash common.Hash, timeout time.Duration) (*big.Int, error) {
	readCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	n, err := count(readCtx, b, fn)
	if err != nil {
		zap.L().Error("counter fallback failed", zap.String("function", fn), zap.Error(err))
		return nil, &chainerr.NotFoundError{Entity: entity + " id for transaction", ID: txHash.Hex()}
	}
	if n.Sign() <= 0 {
		return nil, &chainerr.NotFoundError{Entity: entity + " id for transaction", ID: txHash.Hex()}
	}
	return n, nil
}

func validID(field string, id *big.Int) error {
	if id == nil || id.Sign() <= 0 {
		return &chainerr.ValidationError{Field: field, Reason: "must be a positive integer"}
	}
	return nil
}
