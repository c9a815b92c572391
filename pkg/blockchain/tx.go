package blockchain

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fap-edu/fap-ledger-go/pkg/chainerr"
	"go.uber.org/zap"
)

// Account is the process-wide signing identity, bound to one chain id.
type Account struct {
	Address common.Address
	ChainID *big.Int
	key     *ecdsa.PrivateKey
}

// NewAccount parses a hex private key (with or without 0x) for chainID.
func NewAccount(privateKey string, chainID *big.Int) (*Account, error) {
	address, key, err := ParsePrivateKeyECDSA(privateKey)
	if err != nil {
		zap.L().Error("failed to parse private key", zap.Error(err))
		return nil, &chainerr.ValidationError{Field: "private key", Reason: err.Error()}
	}
	if chainID == nil {
		return nil, &chainerr.ValidationError{Field: "chain id", Reason: "must be set"}
	}
	return &Account{Address: address, ChainID: new(big.Int).Set(chainID), key: key}, nil
}

// Signer returns the EIP-155 aware signer for the account's chain.
func (a *Account) Signer() types.Signer {
	return types.LatestSignerForChainID(a.ChainID)
}

// SignTx signs tx for the account's chain.
func (a *Account) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, a.Signer(), a.key)
	if err != nil {
		zap.L().Error("failed to sign transaction", zap.Error(err))
		return nil, err
	}
	return signed, nil
}
