// Package events turns receipt logs into normalized audit records. Only logs
// whose topic0 matches a registered event are decoded; everything else is
// skipped.
package events

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fap-edu/fap-ledger-go/pkg/chainerr"
	"github.com/fap-edu/fap-ledger-go/pkg/contract"
	"github.com/holiman/uint256"
)

// AuditEvent is one decoded log. Addresses are lowercase 0x hex and integers
// are base-10 strings.
type AuditEvent struct {
	Name        string            `json:"eventName"`
	Contract    string            `json:"contract"`
	Address     string            `json:"contractAddress"`
	Indexed     map[string]string `json:"indexedArgs"`
	Data        map[string]string `json:"data,omitempty"`
	BlockNumber uint64            `json:"blockNumber"`
	TxHash      string            `json:"txHash"`
	LogIndex    uint              `json:"logIndex"`
}

// Value returns the named argument, looking at indexed arguments first.
func (e AuditEvent) Value(name string) (string, bool) {
	if v, ok := e.Indexed[name]; ok {
		return v, true
	}
	v, ok := e.Data[name]
	return v, ok
}

// Uint returns the named argument parsed as a base-10 integer.
func (e AuditEvent) Uint(name string) (*big.Int, bool) {
	v, ok := e.Value(name)
	if !ok {
		return nil, false
	}
	return new(big.Int).SetString(v, 10)
}

var trueTopic = common.BigToHash(big.NewInt(1))

type registered struct {
	contract string
	event    abi.Event
}

// Decoder matches logs against the events of a fixed set of registries. It
// holds no mutable state.
type Decoder struct {
	byTopic map[common.Hash]registered
}

// NewDecoder indexes every non-anonymous event of the given registries by
// topic0. Two registries declaring the same signature is an error.
func NewDecoder(registries ...*contract.Registry) (*Decoder, error) {
	d := &Decoder{byTopic: map[common.Hash]registered{}}
	for _, r := range registries {
		for _, ev := range r.Events() {
			if ev.Anonymous {
				continue
			}
			if prev, dup := d.byTopic[ev.ID]; dup {
				return nil, fmt.Errorf("event %s of %s collides with %s.%s", ev.Sig, r.Contract(), prev.contract, prev.event.Name)
			}
			d.byTopic[ev.ID] = registered{contract: r.Contract(), event: ev}
		}
	}
	return d, nil
}

// DecodeReceipt decodes the logs of a confirmed receipt.
func (d *Decoder) DecodeReceipt(receipt *types.Receipt) ([]AuditEvent, error) {
	if receipt == nil {
		return nil, nil
	}
	return d.Decode(receipt.Logs)
}

// Decode decodes logs in order. Logs without topics or with an unknown topic0
// are skipped; a matched log that cannot be decoded is a DecodeError.
func (d *Decoder) Decode(logs []*types.Log) ([]AuditEvent, error) {
	var out []AuditEvent
	for _, l := range logs {
		if l == nil || len(l.Topics) == 0 {
			continue
		}
		reg, ok := d.byTopic[l.Topics[0]]
		if !ok {
			continue
		}
		ev, err := decodeLog(reg, l)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func decodeLog(reg registered, l *types.Log) (AuditEvent, error) {
	ev := AuditEvent{
		Name:        reg.event.Name,
		Contract:    reg.contract,
		Address:     lowerHex(l.Address),
		Indexed:     map[string]string{},
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash.Hex(),
		LogIndex:    l.Index,
	}
	what := reg.contract + "." + reg.event.Name

	var indexed abi.Arguments
	for _, arg := range reg.event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(l.Topics) != len(indexed)+1 {
		return AuditEvent{}, chainerr.Decode(what, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(l.Topics)))
	}
	for i, arg := range indexed {
		v, err := renderTopic(arg.Type, l.Topics[i+1])
		if err != nil {
			return AuditEvent{}, chainerr.Decode(what+"."+arg.Name, err)
		}
		ev.Indexed[argName(arg, i)] = v
	}

	nonIndexed := reg.event.Inputs.NonIndexed()
	if len(nonIndexed) == 0 {
		return ev, nil
	}
	values, err := nonIndexed.Unpack(l.Data)
	if err != nil {
		return AuditEvent{}, chainerr.Decode(what+" data", err)
	}
	ev.Data = make(map[string]string, len(values))
	for i, v := range values {
		ev.Data[argName(nonIndexed[i], i)] = renderValue(v)
	}
	return ev, nil
}

func renderTopic(t abi.Type, topic common.Hash) (string, error) {
	switch t.T {
	case abi.AddressTy:
		for _, b := range topic[:12] {
			if b != 0 {
				return "", fmt.Errorf("address topic %s has non-zero padding", topic.Hex())
			}
		}
		return lowerHex(common.BytesToAddress(topic[12:])), nil
	case abi.UintTy, abi.IntTy:
		// indexed integers are read as unsigned 256-bit words
		return new(uint256.Int).SetBytes32(topic[:]).Dec(), nil
	case abi.BoolTy:
		switch topic {
		case common.Hash{}:
			return "false", nil
		case trueTopic:
			return "true", nil
		}
		return "", fmt.Errorf("invalid bool topic %s", topic.Hex())
	default:
		// fixed bytes, or the keccak of a dynamic value
		return topic.Hex(), nil
	}
}

func renderValue(v any) string {
	switch x := v.(type) {
	case common.Address:
		return lowerHex(x)
	case *big.Int:
		return x.String()
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case []byte:
		return hexutil.Encode(x)
	case uint8, uint16, uint32, uint64, int8, int16, int32, int64:
		return fmt.Sprint(x)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		b := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(b), rv)
		return hexutil.Encode(b)
	}
	return fmt.Sprint(v)
}

func argName(arg abi.Argument, i int) string {
	if arg.Name != "" {
		return arg.Name
	}
	return "arg" + strconv.Itoa(i)
}

func lowerHex(a common.Address) string {
	return strings.ToLower(a.Hex())
}

// Find returns the first event named name for which match returns true.
// A nil match accepts any event with that name.
func Find(events []AuditEvent, name string, match func(AuditEvent) bool) (AuditEvent, bool) {
	for _, ev := range events {
		if ev.Name != name {
			continue
		}
		if match == nil || match(ev) {
			return ev, true
		}
	}
	return AuditEvent{}, false
}
