package model

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fap-edu/fap-ledger-go/pkg/chainerr"
)

// VerificationHashLength is the exact size of a credential verification hash.
const VerificationHashLength = 32

// CredentialStatus mirrors the CredentialStatus enum of the credential contract.
type CredentialStatus uint8

const (
	CredentialPending CredentialStatus = iota
	CredentialActive
	CredentialRevoked
	CredentialExpired
)

// CredentialStatuses lists every declared credential status in byte order.
var CredentialStatuses = []CredentialStatus{CredentialPending, CredentialActive, CredentialRevoked, CredentialExpired}

var credentialStatusNames = map[CredentialStatus]string{
	CredentialPending: "Pending",
	CredentialActive:  "Active",
	CredentialRevoked: "Revoked",
	CredentialExpired: "Expired",
}

func (s CredentialStatus) String() string {
	if name, ok := credentialStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CredentialStatus(%d)", uint8(s))
}

// MarshalText renders the status by name.
func (s CredentialStatus) MarshalText() ([]byte, error) {
	if _, ok := credentialStatusNames[s]; !ok {
		return nil, &chainerr.DecodeError{What: "credential status", Err: fmt.Errorf("undeclared value %d", uint8(s))}
	}
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name, case-insensitively.
func (s *CredentialStatus) UnmarshalText(text []byte) error {
	for v, name := range credentialStatusNames {
		if strings.EqualFold(name, string(text)) {
			*s = v
			return nil
		}
	}
	return &chainerr.DecodeError{What: "credential status", Err: fmt.Errorf("unknown name %q", text)}
}

// AttendanceStatus mirrors the AttendanceStatus enum of the attendance contract.
type AttendanceStatus uint8

const (
	AttendancePresent AttendanceStatus = iota
	AttendanceAbsent
	AttendanceLate
	AttendanceExcused
)

// AttendanceStatuses lists every declared attendance status in byte order.
var AttendanceStatuses = []AttendanceStatus{AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused}

var attendanceStatusNames = map[AttendanceStatus]string{
	AttendancePresent: "Present",
	AttendanceAbsent:  "Absent",
	AttendanceLate:    "Late",
	AttendanceExcused: "Excused",
}

func (s AttendanceStatus) String() string {
	if name, ok := attendanceStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("AttendanceStatus(%d)", uint8(s))
}

// Valid reports whether s is a declared status.
func (s AttendanceStatus) Valid() bool {
	_, ok := attendanceStatusNames[s]
	return ok
}

// MarshalText renders the status by name.
func (s AttendanceStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, &chainerr.DecodeError{What: "attendance status", Err: fmt.Errorf("undeclared value %d", uint8(s))}
	}
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name, case-insensitively.
func (s *AttendanceStatus) UnmarshalText(text []byte) error {
	for v, name := range attendanceStatusNames {
		if strings.EqualFold(name, string(text)) {
			*s = v
			return nil
		}
	}
	return &chainerr.DecodeError{What: "attendance status", Err: fmt.Errorf("unknown name %q", text)}
}

// CredentialRecord is the on-chain view of one credential. It is fetched on
// demand and never cached.
type CredentialRecord struct {
	ID               *big.Int         `json:"id"`
	Student          common.Address   `json:"studentAddress"`
	Type             string           `json:"credentialType"`
	Data             string           `json:"credentialData"`
	VerificationHash common.Hash      `json:"verificationHash"`
	Status           CredentialStatus `json:"status"`
	IssuedBy         common.Address   `json:"issuedBy"`
	IssuedAt         time.Time        `json:"issuedAt"`
	ExpiresAt        time.Time        `json:"expiresAt,omitzero"`
}

// Expired reports whether the record has an expiry that lies before now.
func (r *CredentialRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && r.ExpiresAt.Before(now)
}

// AttendanceRecord is the on-chain view of one attendance mark.
type AttendanceRecord struct {
	ID          *big.Int         `json:"id"`
	ClassID     *big.Int         `json:"classId"`
	Student     common.Address   `json:"studentAddress"`
	SessionDate time.Time        `json:"sessionDate"`
	Status      AttendanceStatus `json:"status"`
	Notes       string           `json:"notes,omitempty"`
	MarkedBy    common.Address   `json:"markedBy"`
	MarkedAt    time.Time        `json:"markedAt"`
}

// IssueCredentialRequest carries the inputs of a credential issuance.
// A zero ExpiresAt means the credential never expires.
type IssueCredentialRequest struct {
	Student          common.Address
	Type             string
	Data             string
	VerificationHash []byte
	ExpiresAt        time.Time
}

// Validate checks the request without touching the network.
func (r IssueCredentialRequest) Validate() error {
	if len(r.VerificationHash) != VerificationHashLength {
		return &chainerr.ValidationError{
			Field:  "verification hash",
			Reason: fmt.Sprintf("must be exactly %d bytes, got %d", VerificationHashLength, len(r.VerificationHash)),
		}
	}
	if r.Student == (common.Address{}) {
		return &chainerr.ValidationError{Field: "student address", Reason: "must not be the zero address"}
	}
	if strings.TrimSpace(r.Type) == "" {
		return &chainerr.ValidationError{Field: "credential type", Reason: "must not be empty"}
	}
	return nil
}

// Hash returns the verification hash as a fixed array. Call Validate first.
func (r IssueCredentialRequest) Hash() [32]byte {
	var h [32]byte
	copy(h[:], r.VerificationHash)
	return h
}

// MarkAttendanceRequest carries the inputs of an attendance mark.
type MarkAttendanceRequest struct {
	ClassID     *big.Int
	Student     common.Address
	SessionDate time.Time
	Status      AttendanceStatus
	Notes       string
}

// Validate checks the request without touching the network.
func (r MarkAttendanceRequest) Validate() error {
	if r.ClassID == nil || r.ClassID.Sign() < 0 {
		return &chainerr.ValidationError{Field: "class id", Reason: "must be a non-negative integer"}
	}
	if r.Student == (common.Address{}) {
		return &chainerr.ValidationError{Field: "student address", Reason: "must not be the zero address"}
	}
	if r.SessionDate.IsZero() {
		return &chainerr.ValidationError{Field: "session date", Reason: "must be set"}
	}
	if !r.Status.Valid() {
		return &chainerr.ValidationError{Field: "attendance status", Reason: fmt.Sprintf("undeclared value %d", uint8(r.Status))}
	}
	return nil
}

// UnixOrZero converts t to seconds since epoch as used by the contracts;
// the zero time maps to 0.
func UnixOrZero(t time.Time) *big.Int {
	if t.IsZero() {
		return new(big.Int)
	}
	return big.NewInt(t.Unix())
}

// TimeFromUnix is the inverse of UnixOrZero: 0 maps to the zero time. A
// negative value or one past int64 is a DecodeError naming what.
func TimeFromUnix(what string, secs *big.Int) (time.Time, error) {
	if secs == nil {
		return time.Time{}, chainerr.Decode(what, fmt.Errorf("missing timestamp"))
	}
	if secs.Sign() < 0 || !secs.IsInt64() {
		return time.Time{}, chainerr.Decode(what, fmt.Errorf("timestamp %s out of range", secs))
	}
	if secs.Sign() == 0 {
		return time.Time{}, nil
	}
	return time.Unix(secs.Int64(), 0).UTC(), nil
}
