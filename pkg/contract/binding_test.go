package contract

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fap-edu/fap-ledger-go/pkg/blockchain"
	"github.com/fap-edu/fap-ledger-go/pkg/chainerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCaller struct{ calls int }

func (c *recordingCaller) Call(context.Context, common.Address, []byte) ([]byte, error) {
	c.calls++
	return nil, errors.New("unexpected call")
}

type recordingSender struct {
	deadline    time.Time
	hasDeadline bool
	requests    []blockchain.TransactionRequest
	err         error
}

func (s *recordingSender) Submit(ctx context.Context, req blockchain.TransactionRequest) (common.Hash, error) {
	s.deadline, s.hasDeadline = ctx.Deadline()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return common.Hash{}, s.err
	}
	return common.HexToHash("0xfeed"), nil
}

type recordingWaiter struct {
	deadline    time.Time
	hasDeadline bool
	err         error
}

func (w *recordingWaiter) WaitForReceipt(ctx context.Context, txHash common.Hash, _ int) (*types.Receipt, error) {
	w.deadline, w.hasDeadline = ctx.Deadline()
	if w.err != nil {
		return nil, w.err
	}
	return &types.Receipt{TxHash: txHash, Status: types.ReceiptStatusSuccessful}, nil
}

func TestBindingSubmitTimeoutBoundsOnlyTheBroadcast(t *testing.T) {
	tests := []struct {
		name          string
		submitTimeout time.Duration
		wantBound     time.Duration
	}{
		{"submit timeout applied", 2 * time.Second, 2 * time.Second},
		{"zero keeps caller deadline", 0, time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			waiter := &recordingWaiter{}
			b := &Binding{
				Address:        common.HexToAddress("0x00000000000000000000000000000000000c0de1"),
				Registry:       credentials(t),
				Sender:         sender,
				Waiter:         waiter,
				TimeoutSeconds: 5,
				SubmitTimeout:  tt.submitTimeout,
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
			defer cancel()
			callerDeadline, _ := ctx.Deadline()

			hash, receipt, err := b.Send(ctx, "revokeCredential", big.NewInt(3), "duplicate")
			require.NoError(t, err)
			assert.Equal(t, common.HexToHash("0xfeed"), hash)
			assert.Equal(t, hash, receipt.TxHash)

			require.True(t, sender.hasDeadline)
			assert.WithinDuration(t, time.Now().Add(tt.wantBound), sender.deadline, time.Second)
			require.True(t, waiter.hasDeadline)
			assert.Equal(t, callerDeadline, waiter.deadline)
		})
	}
}

func TestBindingSendKeepsHashWhenWaitFails(t *testing.T) {
	hash := common.HexToHash("0xfeed")
	timeout := &chainerr.TimeoutError{TxHash: hash, Seconds: 5}
	b := &Binding{
		Address:  common.HexToAddress("0x00000000000000000000000000000000000c0de1"),
		Registry: credentials(t),
		Sender:   &recordingSender{},
		Waiter:   &recordingWaiter{err: timeout},
	}

	got, receipt, err := b.Send(context.Background(), "revokeCredential", big.NewInt(3), "duplicate")
	assert.ErrorIs(t, err, timeout)
	assert.Nil(t, receipt)
	assert.Equal(t, hash, got)

	rejected := errors.New("nonce too low")
	b.Sender = &recordingSender{err: rejected}
	got, _, err = b.Send(context.Background(), "revokeCredential", big.NewInt(3), "duplicate")
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, common.Hash{}, got)
}

func TestBindingRejectsUnconfiguredAddress(t *testing.T) {
	caller := &recordingCaller{}
	sender := &recordingSender{}
	b := &Binding{
		Registry: credentials(t),
		Caller:   caller,
		Sender:   sender,
		Waiter:   &recordingWaiter{},
	}

	tests := []struct {
		name string
		run  func() error
	}{
		{"call", func() error {
			_, err := b.Call(context.Background(), "credentialCount")
			return err
		}},
		{"call into", func() error {
			var out struct{ Count *big.Int }
			return b.CallInto(context.Background(), &out, "credentialCount")
		}},
		{"submit", func() error {
			_, err := b.Submit(context.Background(), "revokeCredential", big.NewInt(3), "duplicate")
			return err
		}},
		{"send", func() error {
			_, _, err := b.Send(context.Background(), "revokeCredential", big.NewInt(3), "duplicate")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var vErr *chainerr.ValidationError
			require.ErrorAs(t, tt.run(), &vErr)
			assert.Equal(t, "CredentialManagement address", vErr.Field)
		})
	}
	assert.Zero(t, caller.calls)
	assert.Empty(t, sender.requests)
}
