package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fap-edu/fap-ledger-go/pkg/blockchain"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "LEDGER"

// DefaultTransactionTimeout is the receipt wait bound in seconds.
const DefaultTransactionTimeout = 60

// Config holds all settings required to reach the ledger and its contracts.
// Use Validate to fill implicit defaults and to check for required fields.
type Config struct {
	// Network selects the target chain. An empty ChainID accepts whatever the
	// node reports.
	Network Network `yaml:"network"`
	// RPCAddr is the node RPC/WS endpoint URL (required).
	RPCAddr string `envconfig:"RPC_ADDR" yaml:"rpc_addr"`
	// PrivateKey is the hex-encoded signing key. Leave empty for read-only use.
	PrivateKey string `envconfig:"PRIVATE_KEY" yaml:"private_key"`
	// Debug enables verbose logging.
	Debug bool `envconfig:"DEBUG" yaml:"debug"`
	// Fees overrides fee selection. See Fees.
	Fees Fees `yaml:"fees"`
	// TransactionTimeout bounds the receipt wait, in seconds.
	TransactionTimeout int `envconfig:"TRANSACTION_TIMEOUT" yaml:"transaction_timeout"`
	// Contracts holds the deployed address of each logical contract.
	Contracts Contracts `yaml:"contracts"`
	// Timeouts configures per-operation deadlines. See Timeouts.WithDefaults.
	Timeouts Timeouts `yaml:"timeouts"`
}

// Network describes a chain (chain ID and name). ChainID is used for EIP-155
// signing; Name is informational.
type Network struct {
	ChainID string `envconfig:"CHAIN_ID" yaml:"chain_id"`
	Name    string `envconfig:"NAME" yaml:"name"`
}

// Sepolia is a predefined Network for Ethereum Sepolia testnet.
var Sepolia = Network{
	ChainID: "11155111",
	Name:    "sepolia",
}

// Main is a predefined Network for Ethereum mainnet.
var Main = Network{
	ChainID: "1",
	Name:    "main",
}

// Local is the default chain of Hardhat and Anvil dev nodes.
var Local = Network{
	ChainID: "31337",
	Name:    "local",
}

// Fees are optional overrides, in Gwei as decimal strings ("1.5").
// Setting either EIP-1559 field selects dynamic-fee transactions.
type Fees struct {
	GasLimit             uint64 `envconfig:"GAS_LIMIT" yaml:"gas_limit"`
	GasPrice             string `envconfig:"GAS_PRICE_GWEI" yaml:"gas_price_gwei"`
	MaxFeePerGas         string `envconfig:"MAX_FEE_GWEI" yaml:"max_fee_gwei"`
	MaxPriorityFeePerGas string `envconfig:"MAX_PRIORITY_FEE_GWEI" yaml:"max_priority_fee_gwei"`
}

// Contracts lists deployed contract addresses.
type Contracts struct {
	CredentialManagement string `envconfig:"CREDENTIAL_MANAGEMENT" yaml:"credential_management"`
	AttendanceManagement string `envconfig:"ATTENDANCE_MANAGEMENT" yaml:"attendance_management"`
}

// Timeouts controls operation deadlines.
// Zero values will be replaced by defaults in WithDefaults.
type Timeouts struct {
	Dial        time.Duration `envconfig:"DIAL" yaml:"dial"`                 // dial + chain id check
	ChainRead   time.Duration `envconfig:"CHAIN_READ" yaml:"chain_read"`     // eth_call, code, block number
	ChainSubmit time.Duration `envconfig:"CHAIN_SUBMIT" yaml:"chain_submit"` // nonce, estimate and broadcast; not the receipt wait
	ReceiptWait time.Duration `envconfig:"RECEIPT_WAIT" yaml:"receipt_wait"` // submit + confirm
}

// Load reads the configuration from LEDGER_* environment variables and
// validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML file, applies LEDGER_* environment overrides on top
// and validates the result.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate applies implicit defaults (transaction timeout, operation
// timeouts) and checks required fields and value formats.
func (c *Config) Validate() error {
	if c.RPCAddr == "" {
		return errors.New("RPC address is required")
	}

	if c.TransactionTimeout < 0 {
		return fmt.Errorf("transaction timeout must not be negative, got %d", c.TransactionTimeout)
	}
	if c.TransactionTimeout == 0 {
		c.TransactionTimeout = DefaultTransactionTimeout
	}

	if c.Network.ChainID != "" {
		if _, err := c.ChainID(); err != nil {
			return err
		}
	}

	if c.PrivateKey != "" {
		if _, _, err := blockchain.ParsePrivateKeyECDSA(c.PrivateKey); err != nil {
			return fmt.Errorf("invalid private key: %w", err)
		}
	}

	for name, addr := range map[string]string{
		"credential_management": c.Contracts.CredentialManagement,
		"attendance_management": c.Contracts.AttendanceManagement,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("contracts.%s: %q is not a hex address", name, addr)
		}
	}

	if _, err := c.FeeConfig(); err != nil {
		return err
	}

	c.Timeouts = c.Timeouts.WithDefaults(c.TransactionTimeout)
	return nil
}

// ChainID parses Network.ChainID. It returns nil when no chain is pinned.
func (c *Config) ChainID() (*big.Int, error) {
	if c.Network.ChainID == "" {
		return nil, nil
	}
	id, ok := new(big.Int).SetString(c.Network.ChainID, 10)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("invalid chain id %q", c.Network.ChainID)
	}
	return id, nil
}

// FeeConfig converts the Gwei overrides into a blockchain.FeeConfig in wei.
func (c *Config) FeeConfig() (blockchain.FeeConfig, error) {
	fc := blockchain.FeeConfig{GasLimit: c.Fees.GasLimit}
	for _, f := range []struct {
		name string
		in   string
		out  **big.Int
	}{
		{"gas_price_gwei", c.Fees.GasPrice, &fc.GasPrice},
		{"max_fee_gwei", c.Fees.MaxFeePerGas, &fc.MaxFeePerGas},
		{"max_priority_fee_gwei", c.Fees.MaxPriorityFeePerGas, &fc.MaxPriorityFeePerGas},
	} {
		if f.in == "" {
			continue
		}
		wei, err := blockchain.GweiToWei(f.in)
		if err != nil {
			return blockchain.FeeConfig{}, fmt.Errorf("fees.%s: %w", f.name, err)
		}
		*f.out = wei
	}
	return fc, nil
}

// GetPrivateKey returns the configured signing key.
func (c *Config) GetPrivateKey() string {
	return c.PrivateKey
}

// HasPrivateKey reports whether writes are possible.
func (c *Config) HasPrivateKey() bool {
	return c.PrivateKey != ""
}

// RequirePrivateKey returns the signing key or an error when none is set.
func (c *Config) RequirePrivateKey() (string, error) {
	if !c.HasPrivateKey() {
		return "", errors.New("private key is required for this operation")
	}
	return c.PrivateKey, nil
}

// CredentialAddress returns the credential contract address, or the zero
// address when unset.
func (c *Config) CredentialAddress() common.Address {
	return common.HexToAddress(c.Contracts.CredentialManagement)
}

// AttendanceAddress returns the attendance contract address, or the zero
// address when unset.
func (c *Config) AttendanceAddress() common.Address {
	return common.HexToAddress(c.Contracts.AttendanceManagement)
}

// WithDefaults returns a copy of t with zero values replaced by defaults:
//
//	Dial:        5s
//	ChainRead:   12s
//	ChainSubmit: 25s
//	ReceiptWait: transactionTimeout + 30s
func (t Timeouts) WithDefaults(transactionTimeout int) Timeouts {
	tt := t
	if tt.Dial == 0 {
		tt.Dial = 5 * time.Second
	}
	if tt.ChainRead == 0 {
		tt.ChainRead = 12 * time.Second
	}
	if tt.ChainSubmit == 0 {
		tt.ChainSubmit = 25 * time.Second
	}
	if tt.ReceiptWait == 0 {
		tt.ReceiptWait = time.Duration(transactionTimeout)*time.Second + 30*time.Second
	}
	return tt
}
