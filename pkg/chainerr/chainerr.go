// Package chainerr defines the typed error taxonomy surfaced by the ledger
// layer. Every failure path returns one of these types (possibly wrapped), so
// callers can branch with errors.As instead of matching strings.
package chainerr

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ConnectivityError reports an unreachable transport or a malformed node response.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("ledger connectivity: %s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// SubmissionError reports a transaction the node refused to accept
// (gas estimation revert, broadcast rejection, signing failure).
type SubmissionError struct {
	Function string
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s: %v", e.Function, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// TimeoutError reports that no receipt appeared within the confirmation
// bound. Err holds the context deadline when that expired first.
type TimeoutError struct {
	TxHash  common.Hash
	Seconds int
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transaction %s not confirmed: %v", e.TxHash.Hex(), e.Err)
	}
	return fmt.Sprintf("transaction %s not confirmed after %d seconds", e.TxHash.Hex(), e.Seconds)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// TransactionFailedError reports a mined transaction whose receipt status is not success.
type TransactionFailedError struct {
	TxHash common.Hash
	Status uint64
}

func (e *TransactionFailedError) Error() string {
	return fmt.Sprintf("transaction %s failed with status %d", e.TxHash.Hex(), e.Status)
}

// DecodeError reports a schema mismatch, an undeclared enum value or malformed hex.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NotFoundError reports an absent entity when no fallback could resolve it.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ValidationError reports caller input rejected before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Connectivity wraps err as a ConnectivityError for op. A nil err stays nil.
func Connectivity(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ConnectivityError{Op: op, Err: err}
}

// Decode wraps err as a DecodeError. A nil err stays nil.
func Decode(what string, err error) error {
	if err == nil {
		return nil
	}
	return &DecodeError{What: what, Err: err}
}
