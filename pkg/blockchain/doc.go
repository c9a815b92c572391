// Package blockchain owns the connection to an EVM node and the signing
// identity used for every write. It exposes low-level queries (block height,
// code-at-address, fee feeds), resolves fee strategies, builds/signs/broadcasts
// transactions and waits for their receipts with a bounded poll.
//
// # Clients
//
// EVMClient wraps a Backend (normally *ethclient.Client) and an optional
// signing Account. It is the only place that talks to the node directly:
//   - chain queries: GetChainID, GetBlockNumber, GetCode, IsContractDeployed
//   - fee feeds: SuggestGasPrice, EstimateMaxFeePerGas, EstimateMaxPriorityFeePerGas
//   - read-only calls: Call
//   - receipts and transaction lookup for audits
//
// # Writes
//
// A Submitter resolves a FeeStrategy from its FeeConfig for every write:
//
//	MaxFeePerGas or MaxPriorityFeePerGas set  -> EIP-1559 (DynamicFeeTx)
//	otherwise                                 -> legacy (LegacyTx), GasPrice or node price
//
// The gas limit is the configured value, or the node estimate plus 20%.
// Fee estimation never fails: it degrades to gas price and then to 1 Gwei.
//
// # Confirmation
//
// A Confirmer polls for the receipt once per PollInterval, at most
// timeoutSeconds times:
//
//	Submitted -> Pending -> ConfirmedSuccess
//	                     -> ConfirmedFailed   (TransactionFailedError)
//	                     -> TimedOut          (TimeoutError)
//
// There is no retry or resubmission; a timed out transaction may still be
// mined later.
package blockchain
