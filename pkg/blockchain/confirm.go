package blockchain

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fap-edu/fap-ledger-go/pkg/chainerr"
	"go.uber.org/zap"
)

// DefaultPollInterval is the delay between receipt polls.
const DefaultPollInterval = time.Second

// DefaultConfirmationTimeout is used when a non-positive timeout is requested.
const DefaultConfirmationTimeout = 60

// ConfirmationState tracks a transaction from broadcast to a terminal outcome.
type ConfirmationState int

const (
	StateSubmitted ConfirmationState = iota
	StatePending
	StateConfirmedSuccess
	StateConfirmedFailed
	StateTimedOut
)

func (s ConfirmationState) String() string {
	switch s {
	case StateSubmitted:
		return "submitted"
	case StatePending:
		return "pending"
	case StateConfirmedSuccess:
		return "confirmed"
	case StateConfirmedFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s ConfirmationState) Terminal() bool {
	return s >= StateConfirmedSuccess
}

// Confirmer polls for receipts with a bounded number of attempts.
type Confirmer struct {
	evm      *EVMClient
	observer Observer

	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration
	// OnTransition, if set, is called on every state change.
	OnTransition func(txHash common.Hash, state ConfirmationState)
}

// NewConfirmer returns a Confirmer reading receipts through evm.
func NewConfirmer(evm *EVMClient) *Confirmer {
	return &Confirmer{evm: evm, PollInterval: DefaultPollInterval}
}

// WithObserver attaches o and returns c.
func (c *Confirmer) WithObserver(o Observer) *Confirmer {
	c.observer = o
	return c
}

// WaitForReceipt polls until a receipt for txHash appears, up to
// timeoutSeconds empty polls spaced by the poll interval. A receipt with
// status other than success yields TransactionFailedError; exhausting the
// attempts yields TimeoutError, as does a ctx deadline that expires first.
// Cancellation returns ctx.Err().
func (c *Confirmer) WaitForReceipt(ctx context.Context, txHash common.Hash, timeoutSeconds int) (*types.Receipt, error) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultConfirmationTimeout
	}
	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	started := time.Now()
	c.transition(txHash, StateSubmitted, started)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for attempts := 0; attempts < timeoutSeconds; attempts++ {
		receipt, err := c.evm.receipt(ctx, txHash)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, c.timedOut(txHash, timeoutSeconds, started, err)
		}
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				c.transition(txHash, StateConfirmedFailed, started)
				zap.L().Error("transaction failed",
					zap.String("txHash", txHash.Hex()),
					zap.Uint64("status", receipt.Status))
				return nil, &chainerr.TransactionFailedError{TxHash: txHash, Status: receipt.Status}
			}
			c.transition(txHash, StateConfirmedSuccess, started)
			zap.L().Debug("transaction confirmed",
				zap.String("txHash", txHash.Hex()),
				zap.Stringer("block", receipt.BlockNumber),
				zap.Int("attempts", attempts+1))
			return receipt, nil
		}
		if attempts == 0 {
			c.transition(txHash, StatePending, started)
		}

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, c.timedOut(txHash, timeoutSeconds, started, ctx.Err())
			}
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, c.timedOut(txHash, timeoutSeconds, started, nil)
}

// timedOut records the terminal state. cause is the expired deadline, if any.
func (c *Confirmer) timedOut(txHash common.Hash, timeoutSeconds int, started time.Time, cause error) error {
	c.transition(txHash, StateTimedOut, started)
	zap.L().Warn("transaction not confirmed in time",
		zap.String("txHash", txHash.Hex()),
		zap.Int("timeoutSeconds", timeoutSeconds),
		zap.Duration("waited", time.Since(started)))
	return &chainerr.TimeoutError{TxHash: txHash, Seconds: timeoutSeconds, Err: cause}
}

func (c *Confirmer) transition(txHash common.Hash, state ConfirmationState, started time.Time) {
	if c.OnTransition != nil {
		c.OnTransition(txHash, state)
	}
	if c.observer != nil && state.Terminal() {
		c.observer.ConfirmationFinished(state, time.Since(started).Seconds())
	}
}
