package sdk

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Confirmation describes a write that reached a successful receipt.
type Confirmation struct {
	Function string
	TxHash   common.Hash
	ID       *big.Int
}

// Hook is a side effect that follows a confirmed write, such as a
// notification. It never runs as part of the confirmation itself.
type Hook func(ctx context.Context, c Confirmation) error

type namedHook struct {
	name string
	fn   Hook
}

// Hooks is an ordered list of post-confirmation hooks. The caller decides
// when to run them.
type Hooks struct {
	hooks []namedHook
}

// Add appends fn under name.
func (h *Hooks) Add(name string, fn Hook) {
	h.hooks = append(h.hooks, namedHook{name: name, fn: fn})
}

// Len returns the number of registered hooks.
func (h *Hooks) Len() int {
	return len(h.hooks)
}

// Run calls every hook in order, even after a failure, and returns all
// failures joined.
func (h *Hooks) Run(ctx context.Context, c Confirmation) error {
	var errs []error
	for _, hook := range h.hooks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := hook.fn(ctx, c); err != nil {
			zap.L().Error("post-confirmation hook failed",
				zap.String("hook", hook.name),
				zap.String("txHash", c.TxHash.Hex()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("hook %s: %w", hook.name, err))
		}
	}
	return errors.Join(errs...)
}
