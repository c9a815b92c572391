package sdk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fap-edu/fap-ledger-go/pkg/blockchain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var _ LedgerSDK = (*Core)(nil)

// ContractHealth is the probe result of one configured contract.
type ContractHealth struct {
	Address    string `json:"address"`
	Configured bool   `json:"configured"`
	Deployed   bool   `json:"deployed"`
}

// HealthReport is a snapshot of the node and the contracts this SDK uses.
type HealthReport struct {
	ChainID      string                    `json:"chainId"`
	BlockNumber  uint64                    `json:"blockNumber"`
	Account      string                    `json:"account"`
	ReadOnly     bool                      `json:"readOnly"`
	GasPriceGwei string                    `json:"gasPriceGwei"`
	Contracts    map[string]ContractHealth `json:"contracts"`
}

// Health probes chain id, head block, gas price and contract code
// concurrently. Any transport failure fails the whole report.
func (c *Core) Health(ctx context.Context) (*HealthReport, error) {
	report := &HealthReport{
		Account:   strings.ToLower(c.evm.GetAccountAddress().Hex()),
		ReadOnly:  c.evm.Account == nil,
		Contracts: make(map[string]ContractHealth, len(c.contracts)),
	}
	var mu sync.Mutex

	readCtx, cancel := withTimeout(ctx, c.Timeouts.ChainRead)
	defer cancel()
	g, gctx := errgroup.WithContext(readCtx)

	g.Go(func() error {
		id, err := c.evm.GetChainID(gctx)
		if err != nil {
			return err
		}
		report.ChainID = id.String()
		return nil
	})
	g.Go(func() error {
		n, err := c.evm.GetBlockNumber(gctx)
		if err != nil {
			return err
		}
		report.BlockNumber = n
		return nil
	})
	g.Go(func() error {
		price, err := c.evm.SuggestGasPrice(gctx)
		if err != nil {
			return err
		}
		report.GasPriceGwei = blockchain.WeiToGwei(price).String()
		return nil
	})
	for _, d := range c.contracts {
		h := ContractHealth{Address: strings.ToLower(d.address.Hex()), Configured: d.address != (common.Address{})}
		name := d.registry.Contract()
		if !h.Configured {
			mu.Lock()
			report.Contracts[name] = h
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			deployed, err := c.evm.IsContractDeployed(gctx, d.address)
			if err != nil {
				return err
			}
			h.Deployed = deployed
			mu.Lock()
			report.Contracts[name] = h
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		zap.L().Error("health check failed", zap.Error(err))
		return nil, err
	}
	return report, nil
}

// VerifySchemas checks that the code deployed at every configured address
// carries all selectors and event topics of its schema. Unconfigured
// contracts are skipped; every mismatch is reported.
func (c *Core) VerifySchemas(ctx context.Context) error {
	readCtx, cancel := withTimeout(ctx, c.Timeouts.ChainRead)
	defer cancel()

	errs := make([]error, len(c.contracts))
	var g errgroup.Group
	for i, d := range c.contracts {
		if d.address == (common.Address{}) {
			zap.L().Debug("schema check skipped, no address configured", zap.String("contract", d.registry.Contract()))
			continue
		}
		g.Go(func() error {
			code, err := c.evm.GetCode(readCtx, d.address)
			if err == nil {
				err = d.registry.VerifyDeployed(code)
			}
			if err != nil {
				errs[i] = fmt.Errorf("%s v%s at %s: %w", d.registry.Contract(), d.registry.Version(), d.address.Hex(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		zap.L().Error("deployed contracts do not match their schemas", zap.Error(err))
		return err
	}
	zap.L().Info("contract schemas verified")
	return nil
}
