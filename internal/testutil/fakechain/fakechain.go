// Package fakechain provides a scriptable in-memory node for unit tests.
// It satisfies blockchain.Backend without importing it.
package fakechain

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrReverted mimics the node message for a reverted call or estimate.
var ErrReverted = errors.New("execution reverted")

// CallHandler answers eth_call for one function selector.
type CallHandler func(data []byte) ([]byte, error)

// Chain is a fake node. Zero-value error fields mean success.
type Chain struct {
	mu sync.Mutex

	ChainIDValue *big.Int
	Block        uint64
	GasPrice     *big.Int
	BaseFee      *big.Int
	GasEstimate  uint64
	Code         map[common.Address][]byte

	// ReceiptDelay is the number of empty polls before a receipt appears.
	ReceiptDelay int
	// OnSend builds the receipt for a broadcast transaction; nil means a
	// successful receipt with no logs.
	OnSend func(tx *types.Transaction) *types.Receipt

	ChainIDErr  error
	BlockErr    error
	CodeErr     error
	GasPriceErr error
	HeaderErr   error
	EstimateErr error
	NonceErr    error
	SendErr     error
	ReceiptErr  error

	Sent      []*types.Transaction
	Estimates []ethereum.CallMsg

	nonce    uint64
	receipts map[common.Hash]*types.Receipt
	polls    map[common.Hash]int
	calls    map[[4]byte]CallHandler
	closed   bool
}

// New returns a chain with id 1337, a 10 Gwei gas price, a 5 Gwei base fee
// and a 100000 gas estimate.
func New() *Chain {
	return &Chain{
		ChainIDValue: big.NewInt(1337),
		Block:        100,
		GasPrice:     big.NewInt(10_000_000_000),
		BaseFee:      big.NewInt(5_000_000_000),
		GasEstimate:  100_000,
		Code:         map[common.Address][]byte{},
		receipts:     map[common.Hash]*types.Receipt{},
		polls:        map[common.Hash]int{},
		calls:        map[[4]byte]CallHandler{},
	}
}

// Handle registers h for calls whose data starts with selector.
func (c *Chain) Handle(selector []byte, h CallHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var key [4]byte
	copy(key[:], selector)
	c.calls[key] = h
}

// SetReceipt makes receipt visible for hash after ReceiptDelay polls.
func (c *Chain) SetReceipt(hash common.Hash, receipt *types.Receipt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receipts[hash] = receipt
}

// Polls returns how many receipt lookups were made for hash.
func (c *Chain) Polls(hash common.Hash) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polls[hash]
}

// LastSent returns the most recent broadcast transaction, or nil.
func (c *Chain) LastSent() *types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Sent) == 0 {
		return nil
	}
	return c.Sent[len(c.Sent)-1]
}

// Closed reports whether Close was called.
func (c *Chain) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Chain) ChainID(ctx context.Context) (*big.Int, error) {
	if c.ChainIDErr != nil {
		return nil, c.ChainIDErr
	}
	return new(big.Int).Set(c.ChainIDValue), nil
}

func (c *Chain) BlockNumber(ctx context.Context) (uint64, error) {
	if c.BlockErr != nil {
		return 0, c.BlockErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Block, nil
}

func (c *Chain) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if c.CodeErr != nil {
		return nil, c.CodeErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Code[account], nil
}

func (c *Chain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if c.GasPriceErr != nil {
		return nil, c.GasPriceErr
	}
	return new(big.Int).Set(c.GasPrice), nil
}

func (c *Chain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if c.HeaderErr != nil {
		return nil, c.HeaderErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	h := &types.Header{Number: new(big.Int).SetUint64(c.Block)}
	if c.BaseFee != nil {
		h.BaseFee = new(big.Int).Set(c.BaseFee)
	}
	return h, nil
}

func (c *Chain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	c.mu.Lock()
	c.Estimates = append(c.Estimates, msg)
	c.mu.Unlock()
	if c.EstimateErr != nil {
		return 0, c.EstimateErr
	}
	return c.GasEstimate, nil
}

func (c *Chain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if c.NonceErr != nil {
		return 0, c.NonceErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonce, nil
}

func (c *Chain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if c.SendErr != nil {
		return c.SendErr
	}
	c.mu.Lock()
	c.Sent = append(c.Sent, tx)
	c.nonce++
	c.Block++
	block := c.Block
	onSend := c.OnSend
	c.mu.Unlock()

	var receipt *types.Receipt
	if onSend != nil {
		receipt = onSend(tx)
	} else {
		receipt = &types.Receipt{Status: types.ReceiptStatusSuccessful}
	}
	if receipt == nil {
		return nil
	}
	receipt.TxHash = tx.Hash()
	if receipt.BlockNumber == nil {
		receipt.BlockNumber = new(big.Int).SetUint64(block)
	}
	if receipt.GasUsed == 0 {
		receipt.GasUsed = tx.Gas()
	}
	for i, l := range receipt.Logs {
		l.TxHash = tx.Hash()
		l.BlockNumber = block
		l.Index = uint(i)
	}
	c.SetReceipt(tx.Hash(), receipt)
	return nil
}

func (c *Chain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if c.ReceiptErr != nil {
		return nil, c.ReceiptErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.polls[txHash]++
	receipt, ok := c.receipts[txHash]
	if !ok || c.polls[txHash] <= c.ReceiptDelay {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (c *Chain) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tx := range c.Sent {
		if tx.Hash() == hash {
			return tx, false, nil
		}
	}
	return nil, false, ethereum.NotFound
}

func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if len(msg.Data) < 4 {
		return nil, ErrReverted
	}
	var key [4]byte
	copy(key[:], msg.Data[:4])
	c.mu.Lock()
	h, ok := c.calls[key]
	c.mu.Unlock()
	if !ok {
		return nil, ErrReverted
	}
	return h(msg.Data)
}

func (c *Chain) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
