package contract

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fap-edu/fap-ledger-go/pkg/blockchain"
	"github.com/fap-edu/fap-ledger-go/pkg/chainerr"
	"go.uber.org/zap"
)

// Caller executes read-only calls. *blockchain.EVMClient implements it.
type Caller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Sender broadcasts transactions. *blockchain.Submitter implements it.
type Sender interface {
	Submit(ctx context.Context, req blockchain.TransactionRequest) (common.Hash, error)
}

// Waiter waits for a receipt. *blockchain.Confirmer implements it.
type Waiter interface {
	WaitForReceipt(ctx context.Context, txHash common.Hash, timeoutSeconds int) (*types.Receipt, error)
}

// Binding ties a Registry to a deployed address and the transport used to
// reach it.
type Binding struct {
	Address  common.Address
	Registry *Registry
	Caller   Caller
	Sender   Sender
	Waiter   Waiter
	// TimeoutSeconds bounds the receipt wait of Send.
	TimeoutSeconds int
	// SubmitTimeout bounds nonce, estimate and broadcast, not the receipt
	// wait. Zero leaves the caller's context as the only bound.
	SubmitTimeout time.Duration
}

// checkAddress rejects a binding whose contract address was never configured.
func (b *Binding) checkAddress() error {
	if b.Address == (common.Address{}) {
		return &chainerr.ValidationError{Field: b.Registry.Contract() + " address", Reason: "not configured"}
	}
	return nil
}

// Call runs fn as eth_call and returns its decoded outputs.
func (b *Binding) Call(ctx context.Context, fn string, args ...any) ([]any, error) {
	raw, err := b.call(ctx, fn, args...)
	if err != nil {
		return nil, err
	}
	return b.Registry.Decode(fn, raw)
}

// CallInto runs fn as eth_call and copies its outputs into out.
// See Registry.DecodeInto for the shape of out.
func (b *Binding) CallInto(ctx context.Context, out any, fn string, args ...any) error {
	raw, err := b.call(ctx, fn, args...)
	if err != nil {
		return err
	}
	return b.Registry.DecodeInto(fn, raw, out)
}

func (b *Binding) call(ctx context.Context, fn string, args ...any) ([]byte, error) {
	if err := b.checkAddress(); err != nil {
		return nil, err
	}
	data, err := b.Registry.Encode(fn, args...)
	if err != nil {
		return nil, err
	}
	raw, err := b.Caller.Call(ctx, b.Address, data)
	if err != nil {
		zap.L().Debug("contract call failed",
			zap.String("contract", b.Registry.Contract()),
			zap.String("function", fn),
			zap.Error(err))
		return nil, err
	}
	return raw, nil
}

// Submit broadcasts fn without waiting for its receipt.
func (b *Binding) Submit(ctx context.Context, fn string, args ...any) (common.Hash, error) {
	if err := b.checkAddress(); err != nil {
		return common.Hash{}, err
	}
	data, err := b.Registry.Encode(fn, args...)
	if err != nil {
		return common.Hash{}, err
	}
	if b.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.SubmitTimeout)
		defer cancel()
	}
	return b.Sender.Submit(ctx, blockchain.TransactionRequest{
		To:       b.Address,
		Function: b.Registry.Contract() + "." + fn,
		Data:     data,
	})
}

// Send broadcasts fn and waits for a successful receipt. Once the transaction
// is broadcast its hash is returned even when the wait fails, so the caller
// can keep tracking it.
func (b *Binding) Send(ctx context.Context, fn string, args ...any) (common.Hash, *types.Receipt, error) {
	hash, err := b.Submit(ctx, fn, args...)
	if err != nil {
		return common.Hash{}, nil, err
	}
	receipt, err := b.Waiter.WaitForReceipt(ctx, hash, b.TimeoutSeconds)
	if err != nil {
		return hash, nil, err
	}
	return hash, receipt, nil
}
