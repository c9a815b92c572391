// Package model defines the on-chain views and request types handled by the
// credential and attendance ledger service.
//
// # Records
//
// CredentialRecord and AttendanceRecord are read-only projections of contract
// storage. They are fetched on demand through pkg/sdk and carry no local state.
//
// # Status enums
//
// Status values are single bytes on chain:
//
//	CredentialStatus  0 Pending  1 Active  2 Revoked  3 Expired
//	AttendanceStatus  0 Present  1 Absent  2 Late     3 Excused
//
// CredentialStatuses and AttendanceStatuses enumerate the declared domain.
// Raw bytes are mapped with contract.DecodeEnum, which rejects anything
// outside it. JSON and text encoding use the status names.
//
// # Requests
//
// IssueCredentialRequest and MarkAttendanceRequest validate their own fields
// before any network call; a verification hash must be exactly 32 bytes.
package model
