// Package contract holds the declarative ABI descriptor tables of the ledger
// contracts and the codec built from them.
//
// Schemas are embedded JSON documents under abis/, one per logical contract,
// each carrying a version. A Registry is built once per schema and is safe for
// concurrent use. A Binding adds an address and transport so callers can Call
// view functions or Send state-changing ones through blockchain.Submitter and
// blockchain.Confirmer.
package contract
