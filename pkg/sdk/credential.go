package sdk

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fap-edu/fap-ledger-go/pkg/blockchain"
	"github.com/fap-edu/fap-ledger-go/pkg/chainerr"
	"github.com/fap-edu/fap-ledger-go/pkg/config"
	"github.com/fap-edu/fap-ledger-go/pkg/contract"
	"github.com/fap-edu/fap-ledger-go/pkg/events"
	"github.com/fap-edu/fap-ledger-go/pkg/model"
	"go.uber.org/zap"
)

// Credentials issues, revokes and reads credentials on the
// CredentialManagement contract.
type Credentials struct {
	binding  *contract.Binding
	decoder  *events.Decoder
	timeouts config.Timeouts
}

// credentialTuple mirrors the getCredential output tuple.
type credentialTuple struct {
	CredentialId     *big.Int
	StudentAddress   common.Address
	CredentialType   string
	CredentialData   string
	VerificationHash [32]byte
	Status           uint8
	IssuedBy         common.Address
	IssuedAt         *big.Int
	ExpiresAt        *big.Int
}

// IssueCredential submits an issuance, waits for its receipt and returns the
// identifier emitted by CredentialIssued. Without a matching event it falls
// back to credentialCount, which is not unique under concurrent issuance.
func (c *Credentials) IssueCredential(ctx context.Context, req model.IssueCredentialRequest) (*big.Int, common.Hash, error) {
	if err := req.Validate(); err != nil {
		return nil, common.Hash{}, err
	}

	zap.L().Info("Issuing credential",
		zap.String("student", req.Student.Hex()),
		zap.String("type", req.Type))

	sendCtx, cancel := withTimeout(ctx, c.timeouts.ReceiptWait)
	defer cancel()
	txHash, receipt, err := c.binding.Send(sendCtx, "issueCredential",
		req.Student, req.Type, req.Data, req.Hash(), model.UnixOrZero(req.ExpiresAt))
	if err != nil {
		zap.L().Error("Failed to issue credential",
			zap.String("student", req.Student.Hex()),
			zap.String("txHash", txHash.Hex()),
			zap.Error(err))
		return nil, txHash, err
	}

	student := strings.ToLower(req.Student.Hex())
	id, ok := idFromReceipt(c.decoder, receipt, "CredentialIssued", "credentialId", func(ev events.AuditEvent) bool {
		return ev.Indexed["studentAddress"] == student && ev.Data["credentialType"] == req.Type
	})
	if !ok {
		zap.L().Warn("CredentialIssued event not found in receipt, falling back to credentialCount",
			zap.String("txHash", receipt.TxHash.Hex()))
		id, err = counterFallback(ctx, c.binding, "credentialCount", "credential", receipt.TxHash, c.timeouts.ChainRead)
		if err != nil {
			return nil, receipt.TxHash, err
		}
	}

	zap.L().Info("Credential issued",
		zap.String("txHash", receipt.TxHash.Hex()),
		zap.Stringer("credentialId", id))
	return id, receipt.TxHash, nil
}

// RevokeCredential marks a credential revoked and returns the transaction hash.
func (c *Credentials) RevokeCredential(ctx context.Context, id *big.Int, reason string) (common.Hash, error) {
	if err := validID("credential id", id); err != nil {
		return common.Hash{}, err
	}

	sendCtx, cancel := withTimeout(ctx, c.timeouts.ReceiptWait)
	defer cancel()
	txHash, receipt, err := c.binding.Send(sendCtx, "revokeCredential", id, reason)
	if err != nil {
		zap.L().Error("Failed to revoke credential", zap.Stringer("credentialId", id), zap.Error(err))
		return txHash, err
	}
	zap.L().Info("Credential revoked",
		zap.String("txHash", receipt.TxHash.Hex()),
		zap.Stringer("credentialId", id),
		zap.String("reason", reason))
	return receipt.TxHash, nil
}

// VerifyCredential reports whether the contract considers the credential valid.
func (c *Credentials) VerifyCredential(ctx context.Context, id *big.Int) (bool, error) {
	if err := validID("credential id", id); err != nil {
		return false, err
	}
	readCtx, cancel := withTimeout(ctx, c.timeouts.ChainRead)
	defer cancel()

	var out struct{ IsValid bool }
	if err := c.binding.CallInto(readCtx, &out, "verifyCredential", id); err != nil {
		return false, err
	}
	return out.IsValid, nil
}

// GetCredential reads one credential. An unknown id is a NotFoundError; an
// undeclared status byte or an out-of-range timestamp is a DecodeError.
func (c *Credentials) GetCredential(ctx context.Context, id *big.Int) (*model.CredentialRecord, error) {
	if err := validID("credential id", id); err != nil {
		return nil, err
	}
	readCtx, cancel := withTimeout(ctx, c.timeouts.ChainRead)
	defer cancel()

	var out struct{ Credential credentialTuple }
	if err := c.binding.CallInto(readCtx, &out, "getCredential", id); err != nil {
		if blockchain.IsRevert(err) {
			return nil, &chainerr.NotFoundError{Entity: "credential", ID: id.String()}
		}
		return nil, err
	}
	t := out.Credential
	if t.StudentAddress == (common.Address{}) {
		return nil, &chainerr.NotFoundError{Entity: "credential", ID: id.String()}
	}

	status, err := contract.DecodeEnum("credential status", t.Status, model.CredentialStatuses)
	if err != nil {
		return nil, err
	}
	issuedAt, err := model.TimeFromUnix("credential issuedAt", t.IssuedAt)
	if err != nil {
		return nil, err
	}
	expiresAt, err := model.TimeFromUnix("credential expiresAt", t.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &model.CredentialRecord{
		ID:               t.CredentialId,
		Student:          t.StudentAddress,
		Type:             t.CredentialType,
		Data:             t.CredentialData,
		VerificationHash: t.VerificationHash,
		Status:           status,
		IssuedBy:         t.IssuedBy,
		IssuedAt:         issuedAt,
		ExpiresAt:        expiresAt,
	}, nil
}

// GetCredentialCount returns the number of credentials issued so far.
func (c *Credentials) GetCredentialCount(ctx context.Context) (*big.Int, error) {
	readCtx, cancel := withTimeout(ctx, c.timeouts.ChainRead)
	defer cancel()
	return count(readCtx, c.binding, "credentialCount")
}
