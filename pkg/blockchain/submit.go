package blockchain

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fap-edu/fap-ledger-go/pkg/chainerr"
	"go.uber.org/zap"
)

// ErrReadOnly is returned when a write is attempted without a signing key.
var ErrReadOnly = errors.New("client has no signing key")

// TransactionRequest describes one contract write.
type TransactionRequest struct {
	To       common.Address
	Function string // for logs and errors only
	Data     []byte
	Value    *big.Int
}

// Observer receives submission and confirmation events. Metrics implement it.
type Observer interface {
	TransactionSubmitted(function string, mode FeeMode)
	SubmissionFailed(function string)
	ConfirmationFinished(state ConfirmationState, seconds float64)
}

// Submitter builds, signs and broadcasts transactions using a fixed FeeConfig.
// Nonce lookup and broadcast are serialized so concurrent writes from one
// account never reuse a nonce.
type Submitter struct {
	evm      *EVMClient
	fees     FeeConfig
	observer Observer
	mu       sync.Mutex
}

// NewSubmitter returns a Submitter writing through evm.
func NewSubmitter(evm *EVMClient, fees FeeConfig) *Submitter {
	return &Submitter{evm: evm, fees: fees}
}

// WithObserver attaches o and returns s.
func (s *Submitter) WithObserver(o Observer) *Submitter {
	s.observer = o
	return s
}

// Fees returns the configuration the submitter was built with.
func (s *Submitter) Fees() FeeConfig {
	return s.fees
}

// Submit broadcasts req exactly once and returns its transaction hash.
// It does not wait for a receipt.
func (s *Submitter) Submit(ctx context.Context, req TransactionRequest) (common.Hash, error) {
	hash, mode, err := s.submit(ctx, req)
	if s.observer != nil {
		if err != nil {
			s.observer.SubmissionFailed(req.Function)
		} else {
			s.observer.TransactionSubmitted(req.Function, mode)
		}
	}
	return hash, err
}

func (s *Submitter) submit(ctx context.Context, req TransactionRequest) (common.Hash, FeeMode, error) {
	account := s.evm.Account
	if account == nil {
		return common.Hash{}, 0, &chainerr.SubmissionError{Function: req.Function, Err: ErrReadOnly}
	}
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	gasLimit := s.fees.GasLimit
	if gasLimit == 0 {
		estimated, err := s.evm.Client.EstimateGas(ctx, ethereum.CallMsg{
			From:  account.Address,
			To:    &req.To,
			Value: value,
			Data:  req.Data,
		})
		if err != nil {
			zap.L().Error("gas estimation failed", zap.String("function", req.Function), zap.Error(err))
			if IsRevert(err) {
				return common.Hash{}, 0, &chainerr.SubmissionError{Function: req.Function, Err: err}
			}
			return common.Hash{}, 0, chainerr.Connectivity("eth_estimateGas", err)
		}
		gasLimit = ResolveGasLimit(0, estimated)
	}

	strategy, err := s.evm.ResolveFeeStrategy(ctx, s.fees)
	if err != nil {
		return common.Hash{}, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.evm.Client.PendingNonceAt(ctx, account.Address)
	if err != nil {
		return common.Hash{}, strategy.Mode, chainerr.Connectivity("eth_getTransactionCount", err)
	}

	tx := strategy.newTx(account.ChainID, nonce, gasLimit, req.To, value, req.Data)
	signed, err := account.SignTx(tx)
	if err != nil {
		return common.Hash{}, strategy.Mode, &chainerr.SubmissionError{Function: req.Function, Err: err}
	}

	if err := s.evm.Client.SendTransaction(ctx, signed); err != nil {
		zap.L().Error("transaction rejected", zap.String("function", req.Function), zap.Error(err))
		return common.Hash{}, strategy.Mode, &chainerr.SubmissionError{Function: req.Function, Err: err}
	}

	zap.L().Info("Transaction sent",
		zap.String("function", req.Function),
		zap.String("txHash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gasLimit", gasLimit),
		zap.Stringer("feeMode", strategy.Mode))
	return signed.Hash(), strategy.Mode, nil
}

func (f FeeStrategy) newTx(chainID *big.Int, nonce, gas uint64, to common.Address, value *big.Int, data []byte) *types.Transaction {
	if f.Mode == FeeModeModern {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: f.MaxPriorityFeePerGas,
			GasFeeCap: f.MaxFeePerGas,
			Gas:       gas,
			To:        &to,
			Value:     value,
			Data:      data,
		})
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: f.GasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     data,
	})
}
