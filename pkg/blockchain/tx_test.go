package blockchain

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fap-edu/fap-ledger-go/pkg/chainerr"
)

func TestNewAccount(t *testing.T) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	hexKey := "0x" + hex.EncodeToString(crypto.FromECDSA(priv))

	acc, err := NewAccount(hexKey, big.NewInt(1337))
	if err != nil {
		t.Fatalf("NewAccount failed: %v", err)
	}
	if acc.Address != crypto.PubkeyToAddress(priv.PublicKey) {
		t.Fatalf("unexpected address: got %s, want %s",
			acc.Address.Hex(),
			crypto.PubkeyToAddress(priv.PublicKey).Hex())
	}
}

func TestNewAccount_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		key     string
		chainID *big.Int
	}{
		{"BadHex", "zz", big.NewInt(1)},
		{"NilChainID", hex.EncodeToString(crypto.FromECDSA(mustKey(t))), nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewAccount(tc.key, tc.chainID)
			var vErr *chainerr.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestAccount_SignTxRecoversSender(t *testing.T) {
	acc := testAccount(t)
	to := common.HexToAddress("0x01")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   acc.ChainID,
		Nonce:     3,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(0),
	})

	signed, err := acc.SignTx(tx)
	if err != nil {
		t.Fatalf("SignTx: %v", err)
	}
	from, err := types.Sender(acc.Signer(), signed)
	if err != nil {
		t.Fatalf("Sender: %v", err)
	}
	if from != acc.Address {
		t.Fatalf("recovered %s, want %s", from.Hex(), acc.Address.Hex())
	}
	if signed.ChainId().Cmp(acc.ChainID) != 0 {
		t.Fatalf("chain id = %s", signed.ChainId())
	}
}

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	k, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return k
}

func testAccount(t *testing.T) *Account {
	t.Helper()
	acc, err := NewAccount(hex.EncodeToString(crypto.FromECDSA(mustKey(t))), big.NewInt(1337))
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	return acc
}
