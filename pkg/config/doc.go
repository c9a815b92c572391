// Package config defines the runtime configuration of the ledger layer: node
// endpoint and chain, signing key, fee overrides, contract addresses and
// operation timeouts.
//
// Configuration comes from LEDGER_* environment variables (Load) or from a
// YAML file with environment overrides applied on top (LoadFile):
//
//	rpc_addr: http://localhost:8545
//	network:
//	  chain_id: "31337"
//	  name: local
//	private_key: 0x...
//	transaction_timeout: 60
//	fees:
//	  gas_limit: 0            # 0 = estimate + 20%
//	  max_fee_gwei: "30"      # any EIP-1559 field selects dynamic fees
//	contracts:
//	  credential_management: 0x...
//	  attendance_management: 0x...
//	timeouts:
//	  chain_read: 12s
//
// Equivalent variables: LEDGER_RPC_ADDR, LEDGER_NETWORK_CHAIN_ID,
// LEDGER_PRIVATE_KEY, LEDGER_TRANSACTION_TIMEOUT, LEDGER_FEES_GAS_LIMIT,
// LEDGER_FEES_MAX_FEE_GWEI, LEDGER_CONTRACTS_CREDENTIAL_MANAGEMENT,
// LEDGER_TIMEOUTS_CHAIN_READ and so on.
//
// Validate must run before use; Load and LoadFile call it.
package config
