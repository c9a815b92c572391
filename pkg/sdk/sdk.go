package sdk

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fap-edu/fap-ledger-go/pkg/blockchain"
	"github.com/fap-edu/fap-ledger-go/pkg/config"
	"github.com/fap-edu/fap-ledger-go/pkg/contract"
	"github.com/fap-edu/fap-ledger-go/pkg/events"
	"github.com/fap-edu/fap-ledger-go/pkg/metrics"
	"go.uber.org/zap"
)

// LedgerSDK is the public surface of the ledger layer.
type LedgerSDK interface {
	// Credentials returns the credential service.
	Credentials() *Credentials

	// Attendance returns the attendance service.
	Attendance() *Attendance

	// AuditTransaction builds an audit report from a confirmed transaction.
	AuditTransaction(ctx context.Context, txHash common.Hash) (*AuditReport, error)

	// Health probes the node and the configured contracts.
	Health(ctx context.Context) (*HealthReport, error)

	// VerifySchemas checks the deployed bytecode against the embedded schemas.
	VerifySchemas(ctx context.Context) error

	// Close releases the node connection.
	Close()
}

var logLevel = zap.NewAtomicLevelAt(zap.InfoLevel)

// init configures a default global zap logger for the SDK. Applications may
// replace it with zap.ReplaceGlobals(...) if they need custom logging.
func init() {
	c := zap.Config{
		Level:            logLevel,
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := c.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

// Core is the concrete SDK implementation. It owns the single EVM client and
// signing account of the process and hands them to every service.
type Core struct {
	evm *blockchain.EVMClient
	*config.Config

	submitter   *blockchain.Submitter
	confirmer   *blockchain.Confirmer
	decoder     *events.Decoder
	recorder    *metrics.Recorder
	credentials *Credentials
	attendance  *Attendance
	contracts   []deployment
}

type deployment struct {
	registry *contract.Registry
	address  common.Address
}

// Option customizes a Core built by NewSDK or New.
type Option func(*Core)

// WithMetrics reports submissions and confirmations to r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Core) { c.recorder = r }
}

// WithPollInterval overrides the receipt poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Core) { c.confirmer.PollInterval = d }
}

// NewSDK validates cfg, dials the node and assembles every service.
func NewSDK(ctx context.Context, cfg *config.Config, opts ...Option) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		zap.L().Error("Invalid config", zap.Error(err))
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Debug {
		logLevel.SetLevel(zap.DebugLevel)
	}

	chainID, err := cfg.ChainID()
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := withTimeout(ctx, cfg.Timeouts.Dial)
	defer cancel()
	evm, err := blockchain.InitEvm(dialCtx, cfg.RPCAddr, chainID, cfg.GetPrivateKey())
	if err != nil {
		zap.L().Error("Init ethereum client failed", zap.Error(err))
		return nil, err
	}

	core, err := New(cfg, evm, opts...)
	if err != nil {
		evm.Close()
		return nil, err
	}
	return core, nil
}

// New assembles the services around an already connected client.
func New(cfg *config.Config, evm *blockchain.EVMClient, opts ...Option) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	fees, err := cfg.FeeConfig()
	if err != nil {
		return nil, err
	}

	credentialRegistry, err := contract.CredentialManagement()
	if err != nil {
		return nil, err
	}
	attendanceRegistry, err := contract.AttendanceManagement()
	if err != nil {
		return nil, err
	}
	decoder, err := events.NewDecoder(credentialRegistry, attendanceRegistry)
	if err != nil {
		return nil, err
	}

	c := &Core{
		evm:       evm,
		Config:    cfg,
		submitter: blockchain.NewSubmitter(evm, fees),
		confirmer: blockchain.NewConfirmer(evm),
		decoder:   decoder,
		contracts: []deployment{
			{registry: credentialRegistry, address: cfg.CredentialAddress()},
			{registry: attendanceRegistry, address: cfg.AttendanceAddress()},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.recorder != nil {
		c.submitter.WithObserver(c.recorder)
		c.confirmer.WithObserver(c.recorder)
	}

	c.credentials = &Credentials{
		binding:  c.binding(credentialRegistry, cfg.CredentialAddress()),
		decoder:  decoder,
		timeouts: cfg.Timeouts,
	}
	c.attendance = &Attendance{
		binding:  c.binding(attendanceRegistry, cfg.AttendanceAddress()),
		decoder:  decoder,
		timeouts: cfg.Timeouts,
	}

	if cfg.Debug {
		zap.L().Debug("signer address", zap.String("addr", evm.GetAccountAddress().Hex()))
	}
	return c, nil
}

func (c *Core) binding(r *contract.Registry, address common.Address) *contract.Binding {
	return &contract.Binding{
		Address:        address,
		Registry:       r,
		Caller:         c.evm,
		Sender:         c.submitter,
		Waiter:         c.confirmer,
		TimeoutSeconds: c.TransactionTimeout,
		SubmitTimeout:  c.Timeouts.ChainSubmit,
	}
}

// GetEvm returns the EVM client for advanced operations.
func (c *Core) GetEvm() *blockchain.EVMClient {
	return c.evm
}

// Confirmer returns the receipt waiter shared by all services.
func (c *Core) Confirmer() *blockchain.Confirmer {
	return c.confirmer
}

func (c *Core) Credentials() *Credentials {
	return c.credentials
}

func (c *Core) Attendance() *Attendance {
	return c.attendance
}

// Close shuts down the node connection.
func (c *Core) Close() {
	c.GetEvm().Close()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
