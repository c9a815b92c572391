package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fap-edu/fap-ledger-go/pkg/chainerr"
)

// Registry indexes the functions and events of one schema and packs or
// unpacks their data. It is immutable after construction.
type Registry struct {
	schema      Schema
	abi         abi.ABI
	descriptors map[string]Descriptor
}

// NewRegistry validates s and builds its ABI.
func NewRegistry(s Schema) (*Registry, error) {
	descriptors := make(map[string]Descriptor, len(s.Entries))
	for _, d := range s.Entries {
		if d.Kind != "function" && d.Kind != "event" {
			return nil, fmt.Errorf("%s: entry %q has unsupported kind %q", s.Contract, d.Name, d.Kind)
		}
		if d.Name == "" {
			return nil, fmt.Errorf("%s: unnamed %s entry", s.Contract, d.Kind)
		}
		if _, dup := descriptors[d.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate entry %q", s.Contract, d.Name)
		}
		descriptors[d.Name] = d
	}

	raw, err := json.Marshal(s.Entries)
	if err != nil {
		return nil, err
	}
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse ABI: %w", s.Contract, err)
	}

	return &Registry{schema: s, abi: parsed, descriptors: descriptors}, nil
}

// Contract returns the logical contract name.
func (r *Registry) Contract() string { return r.schema.Contract }

// Version returns the schema version.
func (r *Registry) Version() string { return r.schema.Version }

// ABI returns the parsed go-ethereum ABI.
func (r *Registry) ABI() abi.ABI { return r.abi }

// Descriptor returns the declared entry for name.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	d, ok := r.descriptors[name]
	return d, ok
}

// Encode packs a call to fn. Identical inputs always yield identical bytes.
func (r *Registry) Encode(fn string, args ...any) ([]byte, error) {
	if _, ok := r.abi.Methods[fn]; !ok {
		return nil, &chainerr.ValidationError{Field: "function", Reason: fmt.Sprintf("%s has no function %q", r.schema.Contract, fn)}
	}
	data, err := r.abi.Pack(fn, args...)
	if err != nil {
		return nil, &chainerr.ValidationError{Field: fn + " arguments", Reason: err.Error()}
	}
	return data, nil
}

// Decode unpacks the return data of fn.
func (r *Registry) Decode(fn string, data []byte) ([]any, error) {
	method, ok := r.abi.Methods[fn]
	if !ok {
		return nil, chainerr.Decode(fn, fmt.Errorf("%s has no function %q", r.schema.Contract, fn))
	}
	out, err := method.Outputs.Unpack(data)
	if err != nil {
		return nil, chainerr.Decode(fn+" output", err)
	}
	return out, nil
}

// DecodeInto unpacks the return data of fn into v, which must be a pointer.
// For a function with one output v points to a struct whose first field
// receives it; a tuple output is then copied positionally into that field.
func (r *Registry) DecodeInto(fn string, data []byte, v any) error {
	if _, ok := r.abi.Methods[fn]; !ok {
		return chainerr.Decode(fn, fmt.Errorf("%s has no function %q", r.schema.Contract, fn))
	}
	if err := r.abi.UnpackIntoInterface(v, fn, data); err != nil {
		return chainerr.Decode(fn+" output", err)
	}
	return nil
}

// Selector returns the 4-byte selector of fn.
func (r *Registry) Selector(fn string) ([]byte, error) {
	method, ok := r.abi.Methods[fn]
	if !ok {
		return nil, &chainerr.ValidationError{Field: "function", Reason: fmt.Sprintf("%s has no function %q", r.schema.Contract, fn)}
	}
	return method.ID, nil
}

// Topic returns the topic0 signature hash of event.
func (r *Registry) Topic(event string) (common.Hash, error) {
	ev, ok := r.abi.Events[event]
	if !ok {
		return common.Hash{}, &chainerr.ValidationError{Field: "event", Reason: fmt.Sprintf("%s has no event %q", r.schema.Contract, event)}
	}
	return ev.ID, nil
}

// Events returns the registered events ordered by name.
func (r *Registry) Events() []abi.Event {
	events := make([]abi.Event, 0, len(r.abi.Events))
	for _, ev := range r.abi.Events {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Name < events[j].Name })
	return events
}

// VerifyDeployed checks that every function selector and non-anonymous event
// topic of the schema is embedded in the runtime bytecode. It catches a
// schema that drifted from the deployed contract.
func (r *Registry) VerifyDeployed(code []byte) error {
	if len(code) == 0 {
		return &chainerr.NotFoundError{Entity: r.schema.Contract + " bytecode"}
	}

	var missing []string
	for name, m := range r.abi.Methods {
		if !bytes.Contains(code, m.ID) {
			missing = append(missing, name)
		}
	}
	for name, ev := range r.abi.Events {
		if ev.Anonymous {
			continue
		}
		if !bytes.Contains(code, ev.ID.Bytes()) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return chainerr.Decode(r.schema.Contract+" bytecode",
			fmt.Errorf("schema %s entries not found in deployed code: %s", r.schema.Version, strings.Join(missing, ", ")))
	}
	return nil
}
