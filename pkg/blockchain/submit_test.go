package blockchain

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fap-edu/fap-ledger-go/internal/testutil/fakechain"
	"github.com/fap-edu/fap-ledger-go/pkg/chainerr"
)

var testContract = common.HexToAddress("0x00000000000000000000000000000000c0ffee00")

type recordingObserver struct {
	mu        sync.Mutex
	submitted []FeeMode
	failed    []string
	finished  []ConfirmationState
}

func (o *recordingObserver) TransactionSubmitted(function string, mode FeeMode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.submitted = append(o.submitted, mode)
}

func (o *recordingObserver) SubmissionFailed(function string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, function)
}

func (o *recordingObserver) ConfirmationFinished(state ConfirmationState, seconds float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, state)
}

func newSigningClient(t *testing.T) (*fakechain.Chain, *EVMClient) {
	t.Helper()
	chain := fakechain.New()
	return chain, NewEVMClient(chain, testAccount(t))
}

func request() TransactionRequest {
	return TransactionRequest{To: testContract, Function: "issueCredential", Data: []byte{0xde, 0xad, 0xbe, 0xef}}
}

func TestSubmit_Legacy(t *testing.T) {
	chain, evm := newSigningClient(t)
	s := NewSubmitter(evm, FeeConfig{GasPrice: gwei(7)})

	hash, err := s.Submit(context.Background(), request())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	tx := chain.LastSent()
	if tx == nil || tx.Hash() != hash {
		t.Fatalf("sent tx %v does not match hash %s", tx, hash.Hex())
	}
	if tx.Type() != types.LegacyTxType {
		t.Fatalf("tx type = %d, want legacy", tx.Type())
	}
	if tx.GasPrice().Cmp(gwei(7)) != 0 {
		t.Fatalf("gas price = %s", tx.GasPrice())
	}
	if tx.Gas() != 120_000 {
		t.Fatalf("gas = %d, want estimate plus 20%%", tx.Gas())
	}
	if *tx.To() != testContract {
		t.Fatalf("to = %s", tx.To().Hex())
	}
	from, err := types.Sender(evm.Account.Signer(), tx)
	if err != nil || from != evm.Account.Address {
		t.Fatalf("sender = %s, %v", from.Hex(), err)
	}
}

func TestSubmit_Modern(t *testing.T) {
	chain, evm := newSigningClient(t)
	s := NewSubmitter(evm, FeeConfig{MaxFeePerGas: gwei(20), GasLimit: 300_000})

	if _, err := s.Submit(context.Background(), request()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	tx := chain.LastSent()
	if tx.Type() != types.DynamicFeeTxType {
		t.Fatalf("tx type = %d, want dynamic fee", tx.Type())
	}
	if tx.GasFeeCap().Cmp(gwei(20)) != 0 || tx.GasTipCap().Cmp(gwei(1)) != 0 {
		t.Fatalf("fee cap %s tip %s", tx.GasFeeCap(), tx.GasTipCap())
	}
	if tx.Gas() != 300_000 {
		t.Fatalf("gas = %d, want configured", tx.Gas())
	}
	if len(chain.Estimates) != 0 {
		t.Fatal("estimate should be skipped when gas limit is configured")
	}
}

func TestSubmit_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *fakechain.Chain)
		check func(t *testing.T, err error)
	}{
		{
			name:  "estimate reverts",
			setup: func(c *fakechain.Chain) { c.EstimateErr = fakechain.ErrReverted },
			check: func(t *testing.T, err error) {
				var subErr *chainerr.SubmissionError
				if !errors.As(err, &subErr) || subErr.Function != "issueCredential" {
					t.Fatalf("expected SubmissionError, got %v", err)
				}
			},
		},
		{
			name:  "estimate transport failure",
			setup: func(c *fakechain.Chain) { c.EstimateErr = errors.New("connection refused") },
			check: func(t *testing.T, err error) {
				var connErr *chainerr.ConnectivityError
				if !errors.As(err, &connErr) {
					t.Fatalf("expected ConnectivityError, got %v", err)
				}
			},
		},
		{
			name:  "broadcast rejected",
			setup: func(c *fakechain.Chain) { c.SendErr = errors.New("nonce too low") },
			check: func(t *testing.T, err error) {
				var subErr *chainerr.SubmissionError
				if !errors.As(err, &subErr) || subErr.Err.Error() != "nonce too low" {
					t.Fatalf("expected untouched SubmissionError, got %v", err)
				}
			},
		},
		{
			name:  "nonce unavailable",
			setup: func(c *fakechain.Chain) { c.NonceErr = errors.New("timeout") },
			check: func(t *testing.T, err error) {
				var connErr *chainerr.ConnectivityError
				if !errors.As(err, &connErr) {
					t.Fatalf("expected ConnectivityError, got %v", err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, evm := newSigningClient(t)
			tt.setup(chain)
			obs := &recordingObserver{}
			s := NewSubmitter(evm, FeeConfig{GasPrice: gwei(1)}).WithObserver(obs)

			_, err := s.Submit(context.Background(), request())
			tt.check(t, err)
			if len(chain.Sent) != 0 {
				t.Fatal("nothing should be broadcast on failure")
			}
			if len(obs.failed) != 1 {
				t.Fatalf("observer failures = %v", obs.failed)
			}
		})
	}
}

func TestSubmit_ReadOnly(t *testing.T) {
	s := NewSubmitter(NewEVMClient(fakechain.New(), nil), FeeConfig{})
	_, err := s.Submit(context.Background(), request())
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestSubmit_ConcurrentNoncesAreUnique(t *testing.T) {
	chain, evm := newSigningClient(t)
	obs := &recordingObserver{}
	s := NewSubmitter(evm, FeeConfig{GasPrice: gwei(1), GasLimit: 100_000}).WithObserver(obs)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Submit(context.Background(), request()); err != nil {
				t.Errorf("Submit: %v", err)
			}
		}()
	}
	wg.Wait()

	seen := map[uint64]bool{}
	for _, tx := range chain.Sent {
		if seen[tx.Nonce()] {
			t.Fatalf("nonce %d reused", tx.Nonce())
		}
		seen[tx.Nonce()] = true
	}
	if len(seen) != n || len(obs.submitted) != n {
		t.Fatalf("sent %d, observed %d", len(seen), len(obs.submitted))
	}
}
