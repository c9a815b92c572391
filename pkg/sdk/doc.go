// Package sdk provides the high-level entry point for recording academic
// credentials and attendance on an EVM ledger.
//
// The SDK hides transaction building, fee selection, receipt polling and log
// decoding behind two services, Credentials and Attendance, that take and
// return domain records.
//
// # Quick Start
//
//	import (
//		"github.com/fap-edu/fap-ledger-go/pkg/config"
//		"github.com/fap-edu/fap-ledger-go/pkg/model"
//		"github.com/fap-edu/fap-ledger-go/pkg/sdk"
//	)
//
//	func main() {
//		cfg := &config.Config{
//			RPCAddr:    "http://localhost:8545",
//			PrivateKey: "YOUR_PRIVATE_KEY",
//			Network:    config.Local,
//			Contracts: config.Contracts{
//				CredentialManagement: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
//			},
//		}
//
//		ledger, err := sdk.NewSDK(context.Background(), cfg)
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer ledger.Close()
//
//		id, txHash, err := ledger.Credentials().IssueCredential(ctx, model.IssueCredentialRequest{
//			Student:          common.HexToAddress("0xabc..."),
//			Type:             "SubjectCompletion",
//			Data:             `{"subject":"PRN231","grade":"A"}`,
//			VerificationHash: hash[:],
//		})
//	}
//
// # Architecture
//
// A write flows through these layers:
//
//   - contract.Binding encodes the call against the embedded ABI schema
//   - blockchain.Submitter picks legacy or EIP-1559 fees, signs and broadcasts
//   - blockchain.Confirmer polls the receipt once per second up to
//     Config.TransactionTimeout
//   - events.Decoder turns receipt logs into AuditEvent values, from which the
//     new record id is read
//
// When the receipt carries no matching event the id is taken from the
// contract counter (credentialCount, attendanceCount) and a warning is
// logged. That fallback can return another writer's id when two writes
// confirm close together.
//
// # Concurrency
//
// One Core owns the process-wide node connection and signing account. Every
// service method is safe for concurrent use; IssueCredentialAsync,
// MarkAttendanceAsync and Go return a Task so callers can keep several writes
// in flight. Nonce lookup and broadcast are serialized inside the Submitter.
// Cancelling a context stops the local wait only; a broadcast transaction may
// still confirm.
//
// # Side Effects
//
// Notifications and other follow-ups belong in Hooks, run by the caller after
// a write returns. Hook failures are joined and returned.
//
// # Errors
//
// Failures are typed (see package chainerr): ValidationError before any
// network call, ConnectivityError, SubmissionError, TimeoutError,
// TransactionFailedError, DecodeError and NotFoundError. Match them with
// errors.As.
//
// # Logging
//
// The package installs a console zap logger as the global logger.
// Config.Debug raises it to debug level; applications may replace it with
// zap.ReplaceGlobals.
package sdk
