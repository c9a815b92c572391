package blockchain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fap-edu/fap-ledger-go/internal/testutil/fakechain"
	"github.com/fap-edu/fap-ledger-go/pkg/chainerr"
)

func TestInitEvm_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	_, err := InitEvm(ctx, "http://127.0.0.1:1", big.NewInt(1337), "")
	if err == nil {
		t.Fatal("expected error dialing")
	}
	var connErr *chainerr.ConnectivityError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectivityError, got %T: %v", err, err)
	}
	if time.Since(start) > 6*time.Second {
		t.Fatalf("InitEvm took too long")
	}
}

func TestEVMClient_Queries(t *testing.T) {
	chain := fakechain.New()
	deployed := common.HexToAddress("0x1000000000000000000000000000000000000001")
	chain.Code[deployed] = []byte{0x60, 0x80}
	evm := NewEVMClient(chain, nil)
	ctx := context.Background()

	n, err := evm.GetBlockNumber(ctx)
	if err != nil || n != 100 {
		t.Fatalf("GetBlockNumber = %d, %v", n, err)
	}

	ok, err := evm.IsContractDeployed(ctx, deployed)
	if err != nil || !ok {
		t.Fatalf("IsContractDeployed(deployed) = %v, %v", ok, err)
	}
	ok, err = evm.IsContractDeployed(ctx, common.HexToAddress("0x02"))
	if err != nil || ok {
		t.Fatalf("IsContractDeployed(empty) = %v, %v", ok, err)
	}

	if got := evm.GetAccountAddress(); got != (common.Address{}) {
		t.Fatalf("read-only client address = %s", got.Hex())
	}
}

func TestEVMClient_ConnectivityErrors(t *testing.T) {
	chain := fakechain.New()
	chain.BlockErr = errors.New("connection refused")
	chain.CodeErr = errors.New("connection refused")
	evm := NewEVMClient(chain, nil)
	ctx := context.Background()

	var connErr *chainerr.ConnectivityError
	if _, err := evm.GetBlockNumber(ctx); !errors.As(err, &connErr) {
		t.Fatalf("GetBlockNumber error = %v", err)
	}
	if _, err := evm.IsContractDeployed(ctx, common.Address{}); !errors.As(err, &connErr) {
		t.Fatalf("IsContractDeployed error = %v", err)
	}
}

func TestGetTransactionReceipt_NotFound(t *testing.T) {
	evm := NewEVMClient(fakechain.New(), nil)
	_, err := evm.GetTransactionReceipt(context.Background(), common.HexToHash("0xabc"))
	var nf *chainerr.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestClose(t *testing.T) {
	chain := fakechain.New()
	NewEVMClient(chain, nil).Close()
	if !chain.Closed() {
		t.Fatal("backend not closed")
	}
}
