package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/fap-edu/fap-ledger-go/pkg/chainerr"
	"go.uber.org/zap"
)

// Backend is the subset of the node RPC surface used by the ledger layer.
// *ethclient.Client satisfies it; tests substitute an in-memory fake.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// EVMClient holds the process-wide transport handle and signing account.
// It is created once at the composition root and shared by every component.
type EVMClient struct {
	Client  Backend
	Account *Account
}

// InitEvm dials endpoint, checks that the node serves chainID and binds the
// signing key. An empty privateKey yields a read-only client.
func InitEvm(ctx context.Context, endpoint string, chainID *big.Int, privateKey string) (*EVMClient, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		zap.L().Error("Failed to ethdial", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, chainerr.Connectivity("dial", err)
	}

	nodeChainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		zap.L().Error("Failed to get chain ID", zap.Error(err))
		return nil, chainerr.Connectivity("eth_chainId", err)
	}
	if chainID != nil && chainID.Sign() > 0 && nodeChainID.Cmp(chainID) != 0 {
		client.Close()
		return nil, fmt.Errorf("chain id mismatch: node serves %s, configured %s", nodeChainID, chainID)
	}

	var account *Account
	if privateKey != "" {
		account, err = NewAccount(privateKey, nodeChainID)
		if err != nil {
			client.Close()
			return nil, err
		}
	}

	evm := NewEVMClient(client, account)
	zap.L().Info("Blockchain initialized",
		zap.String("endpoint", endpoint),
		zap.String("chainId", nodeChainID.String()),
		zap.String("account", evm.GetAccountAddress().Hex()))
	return evm, nil
}

// NewEVMClient wraps an already connected backend.
func NewEVMClient(backend Backend, account *Account) *EVMClient {
	return &EVMClient{Client: backend, Account: account}
}

// GetAccountAddress returns the signing address, or the zero address for a
// read-only client.
func (evm *EVMClient) GetAccountAddress() common.Address {
	if evm.Account == nil {
		return common.Address{}
	}
	return evm.Account.Address
}

// GetChainID returns the chain id reported by the node.
func (evm *EVMClient) GetChainID(ctx context.Context) (*big.Int, error) {
	id, err := evm.Client.ChainID(ctx)
	if err != nil {
		return nil, chainerr.Connectivity("eth_chainId", err)
	}
	return id, nil
}

// GetBlockNumber returns the latest block height.
func (evm *EVMClient) GetBlockNumber(ctx context.Context) (uint64, error) {
	n, err := evm.Client.BlockNumber(ctx)
	if err != nil {
		zap.L().Error("failed to get last block number", zap.Error(err))
		return 0, chainerr.Connectivity("eth_blockNumber", err)
	}
	return n, nil
}

// IsContractDeployed reports whether the code at address is non-empty.
func (evm *EVMClient) IsContractDeployed(ctx context.Context, address common.Address) (bool, error) {
	code, err := evm.GetCode(ctx, address)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}

// GetCode returns the runtime bytecode at address on the latest block.
func (evm *EVMClient) GetCode(ctx context.Context, address common.Address) ([]byte, error) {
	code, err := evm.Client.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, chainerr.Connectivity("eth_getCode", err)
	}
	return code, nil
}

// SuggestGasPrice returns the node's flat gas price.
func (evm *EVMClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := evm.Client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, chainerr.Connectivity("eth_gasPrice", err)
	}
	return price, nil
}

// Call executes a read-only contract call against the latest block.
// Reverts keep their node error inside the ConnectivityError; use IsRevert to
// tell them apart from transport failures.
func (evm *EVMClient) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{From: evm.GetAccountAddress(), To: &to, Data: data}
	out, err := evm.Client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, chainerr.Connectivity("eth_call", err)
	}
	return out, nil
}

// GetTransactionReceipt returns the receipt for txHash, or a NotFoundError
// when the node has none yet.
func (evm *EVMClient) GetTransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := evm.receipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, &chainerr.NotFoundError{Entity: "receipt", ID: txHash.Hex()}
	}
	return receipt, nil
}

// receipt fetches a receipt; (nil, nil) is the internal "not mined yet" signal.
func (evm *EVMClient) receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := evm.Client.TransactionReceipt(ctx, txHash)
	switch {
	case err == nil:
		return receipt, nil
	case errors.Is(err, ethereum.NotFound):
		return nil, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	default:
		return nil, chainerr.Connectivity("eth_getTransactionReceipt", err)
	}
}

// TransactionParties returns the sender and recipient of a broadcast
// transaction. To is nil for contract creation.
func (evm *EVMClient) TransactionParties(ctx context.Context, txHash common.Hash) (common.Address, *common.Address, error) {
	tx, _, err := evm.Client.TransactionByHash(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return common.Address{}, nil, &chainerr.NotFoundError{Entity: "transaction", ID: txHash.Hex()}
	}
	if err != nil {
		return common.Address{}, nil, chainerr.Connectivity("eth_getTransactionByHash", err)
	}
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return common.Address{}, nil, chainerr.Decode("transaction sender", err)
	}
	return from, tx.To(), nil
}

// Close releases the underlying transport.
func (evm *EVMClient) Close() {
	if evm.Client != nil {
		evm.Client.Close()
	}
}
