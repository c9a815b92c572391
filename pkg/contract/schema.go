package contract

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"
)

// Schema file names under abis/.
const (
	CredentialManagementSchema = "credential_management.json"
	AttendanceManagementSchema = "attendance_management.json"
)

//go:embed abis/*.json
var abiFS embed.FS

// Param is one ABI argument or tuple component.
type Param struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	InternalType string  `json:"internalType,omitempty"`
	Indexed      bool    `json:"indexed,omitempty"`
	Components   []Param `json:"components,omitempty"`
}

// Descriptor declares one contract function or event.
type Descriptor struct {
	Kind            string  `json:"type"` // "function" or "event"
	Name            string  `json:"name"`
	Inputs          []Param `json:"inputs"`
	Outputs         []Param `json:"outputs,omitempty"`
	StateMutability string  `json:"stateMutability,omitempty"`
	Anonymous       bool    `json:"anonymous,omitempty"`
}

// ReadOnly reports whether the function can be served by eth_call alone.
func (d Descriptor) ReadOnly() bool {
	return d.StateMutability == "view" || d.StateMutability == "pure"
}

// Schema is the versioned descriptor table of one logical contract.
type Schema struct {
	Contract string       `json:"contract"`
	Version  string       `json:"version"`
	Entries  []Descriptor `json:"entries"`
}

// ParseSchema decodes a schema document.
func ParseSchema(raw []byte) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return Schema{}, fmt.Errorf("failed to unmarshal schema JSON: %w", err)
	}
	if s.Contract == "" {
		return Schema{}, fmt.Errorf("schema has no contract name")
	}
	return s, nil
}

// LoadSchema reads an embedded schema by file name.
func LoadSchema(name string) (Schema, error) {
	raw, err := abiFS.ReadFile("abis/" + name)
	if err != nil {
		return Schema{}, err
	}
	return ParseSchema(raw)
}

var (
	credentialOnce     sync.Once
	credentialRegistry *Registry
	errCredential      error

	attendanceOnce     sync.Once
	attendanceRegistry *Registry
	errAttendance      error
)

// CredentialManagement returns the registry of the embedded credential
// contract schema. It is parsed once.
func CredentialManagement() (*Registry, error) {
	credentialOnce.Do(func() {
		credentialRegistry, errCredential = loadRegistry(CredentialManagementSchema)
	})
	return credentialRegistry, errCredential
}

// AttendanceManagement returns the registry of the embedded attendance
// contract schema. It is parsed once.
func AttendanceManagement() (*Registry, error) {
	attendanceOnce.Do(func() {
		attendanceRegistry, errAttendance = loadRegistry(AttendanceManagementSchema)
	})
	return attendanceRegistry, errAttendance
}

func loadRegistry(name string) (*Registry, error) {
	s, err := LoadSchema(name)
	if err != nil {
		return nil, err
	}
	return NewRegistry(s)
}
