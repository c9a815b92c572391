package sdk

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fap-edu/fap-ledger-go/pkg/model"
)

// Task is the handle of an operation running in its own goroutine.
type Task[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go runs fn with ctx in a new goroutine. Cancelling ctx is the only way to
// stop fn; a transaction it already broadcast may still confirm.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.value, t.err = fn(ctx)
	}()
	return t
}

// Done is closed once the operation has finished.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the operation finishes or ctx is done. A ctx error stops
// only this wait, not the operation.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// WriteResult is the outcome of a confirmed write that creates a record.
type WriteResult struct {
	ID     *big.Int
	TxHash common.Hash
}

// IssueCredentialAsync runs IssueCredential as a Task.
func (c *Credentials) IssueCredentialAsync(ctx context.Context, req model.IssueCredentialRequest) *Task[WriteResult] {
	return Go(ctx, func(ctx context.Context) (WriteResult, error) {
		id, hash, err := c.IssueCredential(ctx, req)
		return WriteResult{ID: id, TxHash: hash}, err
	})
}

// RevokeCredentialAsync runs RevokeCredential as a Task.
func (c *Credentials) RevokeCredentialAsync(ctx context.Context, id *big.Int, reason string) *Task[common.Hash] {
	return Go(ctx, func(ctx context.Context) (common.Hash, error) {
		return c.RevokeCredential(ctx, id, reason)
	})
}

// MarkAttendanceAsync runs MarkAttendance as a Task.
func (a *Attendance) MarkAttendanceAsync(ctx context.Context, req model.MarkAttendanceRequest) *Task[WriteResult] {
	return Go(ctx, func(ctx context.Context) (WriteResult, error) {
		id, hash, err := a.MarkAttendance(ctx, req)
		return WriteResult{ID: id, TxHash: hash}, err
	})
}
