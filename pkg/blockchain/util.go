package blockchain

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var gweiExp = decimal.New(1, 9)

// ParsePrivateKeyECDSA parses a hex-encoded ECDSA private key and returns the
// corresponding address together with the key. A leading 0x is accepted.
func ParsePrivateKeyECDSA(privateKey string) (common.Address, *ecdsa.PrivateKey, error) {
	privateKeyECDSA, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKey), "0x"))
	if err != nil {
		return common.Address{}, nil, err
	}

	publicKeyECDSA, ok := privateKeyECDSA.Public().(*ecdsa.PublicKey)
	if !ok {
		return common.Address{}, nil, errors.New("failed to get public key")
	}

	return crypto.PubkeyToAddress(*publicKeyECDSA), privateKeyECDSA, nil
}

// HexToBytes32 decodes a 0x-prefixed hex string of exactly 32 bytes.
func HexToBytes32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hexutil.Decode(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("length must be 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// GweiToWei converts a decimal Gwei amount ("1.5", "30") into wei.
// Fractions below one wei are truncated.
func GweiToWei(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		zap.L().Error("Failed to convert string to decimal", zap.String("amount", amount), zap.Error(err))
		return nil, err
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", amount)
	}
	return d.Mul(gweiExp).BigInt(), nil
}

// WeiToGwei renders wei as a Gwei decimal, for logs and reports.
func WeiToGwei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -9)
}

// IsRevert reports whether err carries an EVM revert from the node rather
// than a transport failure.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}
