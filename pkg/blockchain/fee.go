package blockchain

import (
	"context"
	"math/big"

	"go.uber.org/zap"
)

var (
	// DefaultPriorityFee is used when the node cannot suggest a gas price.
	DefaultPriorityFee = big.NewInt(1_000_000_000)
	// DefaultMaxFee is used when neither base fee nor gas price is available.
	DefaultMaxFee = big.NewInt(1_000_000_000)
)

// GasLimitMarginPercent is applied to node estimates when no gas limit is configured.
const GasLimitMarginPercent = 120

// FeeConfig is the static fee configuration for writes. Zero or nil fields
// mean "not configured".
type FeeConfig struct {
	GasLimit             uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// UsesModern reports whether any EIP-1559 field is configured. Modern wins
// when both legacy and modern fields are set.
func (c FeeConfig) UsesModern() bool {
	return positive(c.MaxFeePerGas) || positive(c.MaxPriorityFeePerGas)
}

// FeeMode selects the fee model of a transaction.
type FeeMode int

const (
	FeeModeLegacy FeeMode = iota
	FeeModeModern
)

func (m FeeMode) String() string {
	if m == FeeModeModern {
		return "eip1559"
	}
	return "legacy"
}

// FeeStrategy is the resolved fee choice for one transaction.
type FeeStrategy struct {
	Mode                 FeeMode
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// ResolveGasLimit returns configured when positive, else estimated plus a 20% margin.
func ResolveGasLimit(configured, estimated uint64) uint64 {
	if configured > 0 {
		return configured
	}
	limit := new(big.Int).SetUint64(estimated)
	limit.Mul(limit, big.NewInt(GasLimitMarginPercent))
	limit.Div(limit, big.NewInt(100))
	if !limit.IsUint64() {
		return ^uint64(0)
	}
	return limit.Uint64()
}

// ResolveFeeStrategy picks legacy or EIP-1559 pricing for cfg. Missing modern
// fields are estimated (never failing); a missing legacy gas price is read
// from the node.
func (evm *EVMClient) ResolveFeeStrategy(ctx context.Context, cfg FeeConfig) (FeeStrategy, error) {
	if cfg.UsesModern() {
		tip := cfg.MaxPriorityFeePerGas
		if !positive(tip) {
			tip = evm.EstimateMaxPriorityFeePerGas(ctx)
		}
		feeCap := cfg.MaxFeePerGas
		if !positive(feeCap) {
			feeCap = evm.EstimateMaxFeePerGas(ctx)
		}
		if tip.Cmp(feeCap) > 0 {
			zap.L().Debug("priority fee above max fee, capping",
				zap.String("tipGwei", WeiToGwei(tip).String()),
				zap.String("maxFeeGwei", WeiToGwei(feeCap).String()))
			tip = feeCap
		}
		return FeeStrategy{Mode: FeeModeModern, MaxFeePerGas: feeCap, MaxPriorityFeePerGas: tip}, nil
	}

	price := cfg.GasPrice
	if !positive(price) {
		var err error
		price, err = evm.SuggestGasPrice(ctx)
		if err != nil {
			return FeeStrategy{}, err
		}
	}
	return FeeStrategy{Mode: FeeModeLegacy, GasPrice: price}, nil
}

// EstimateMaxPriorityFeePerGas returns a tenth of the node gas price, or
// DefaultPriorityFee when the node cannot answer.
func (evm *EVMClient) EstimateMaxPriorityFeePerGas(ctx context.Context) *big.Int {
	price, err := evm.Client.SuggestGasPrice(ctx)
	if err != nil || price == nil {
		zap.L().Warn("gas price unavailable, using default priority fee", zap.Error(err))
		return new(big.Int).Set(DefaultPriorityFee)
	}
	return new(big.Int).Div(price, big.NewInt(10))
}

// EstimateMaxFeePerGas returns 2*baseFee + priority fee. Without a base fee it
// falls back to the node gas price, then to DefaultMaxFee.
func (evm *EVMClient) EstimateMaxFeePerGas(ctx context.Context) *big.Int {
	header, err := evm.Client.HeaderByNumber(ctx, nil)
	if err == nil && header != nil && header.BaseFee != nil {
		priority := evm.EstimateMaxPriorityFeePerGas(ctx)
		fee := new(big.Int).Mul(header.BaseFee, big.NewInt(2))
		return fee.Add(fee, priority)
	}

	zap.L().Warn("base fee unavailable, falling back to gas price", zap.Error(err))
	price, err := evm.Client.SuggestGasPrice(ctx)
	if err != nil || price == nil {
		zap.L().Warn("gas price unavailable, using default max fee", zap.Error(err))
		return new(big.Int).Set(DefaultMaxFee)
	}
	return price
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
