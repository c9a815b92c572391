package events

import (
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fap-edu/fap-ledger-go/pkg/chainerr"
	"github.com/fap-edu/fap-ledger-go/pkg/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	credentialAddr = common.HexToAddress("0x00000000000000000000000000000000000C0DE1")
	student        = common.HexToAddress("0xABC0000000000000000000000000000000000123")
	issuer         = common.HexToAddress("0x00000000000000000000000000000000000000EF")
)

func registries(t *testing.T) (*contract.Registry, *contract.Registry) {
	t.Helper()
	c, err := contract.CredentialManagement()
	require.NoError(t, err)
	a, err := contract.AttendanceManagement()
	require.NoError(t, err)
	return c, a
}

func newDecoder(t *testing.T) *Decoder {
	t.Helper()
	c, a := registries(t)
	d, err := NewDecoder(c, a)
	require.NoError(t, err)
	return d
}

func issuedLog(t *testing.T, id int64) *types.Log {
	t.Helper()
	c, _ := registries(t)
	ev := c.ABI().Events["CredentialIssued"]
	data, err := ev.Inputs.NonIndexed().Pack("SubjectCompletion", issuer, big.NewInt(1700000000))
	require.NoError(t, err)
	return &types.Log{
		Address:     credentialAddr,
		Topics:      []common.Hash{ev.ID, common.BigToHash(big.NewInt(id)), common.BytesToHash(student.Bytes())},
		Data:        data,
		BlockNumber: 77,
		TxHash:      common.HexToHash("0xfeed"),
		Index:       3,
	}
}

func markedLog(t *testing.T) *types.Log {
	t.Helper()
	_, a := registries(t)
	ev := a.ABI().Events["AttendanceMarked"]
	data, err := ev.Inputs.NonIndexed().Pack(uint8(2))
	require.NoError(t, err)
	return &types.Log{
		Topics: []common.Hash{ev.ID, common.BigToHash(big.NewInt(5)), common.BigToHash(big.NewInt(9)), common.BytesToHash(student.Bytes())},
		Data:   data,
	}
}

func TestDecodeCredentialIssued(t *testing.T) {
	d := newDecoder(t)

	out, err := d.Decode([]*types.Log{issuedLog(t, 42)})
	require.NoError(t, err)
	require.Len(t, out, 1)

	ev := out[0]
	assert.Equal(t, "CredentialIssued", ev.Name)
	assert.Equal(t, "CredentialManagement", ev.Contract)
	assert.Equal(t, strings.ToLower(credentialAddr.Hex()), ev.Address)
	assert.Equal(t, "42", ev.Indexed["credentialId"])
	assert.Equal(t, "0xabc0000000000000000000000000000000000123", ev.Indexed["studentAddress"])
	assert.Equal(t, "SubjectCompletion", ev.Data["credentialType"])
	assert.Equal(t, strings.ToLower(issuer.Hex()), ev.Data["issuedBy"])
	assert.Equal(t, "1700000000", ev.Data["issuedAt"])
	assert.Equal(t, uint64(77), ev.BlockNumber)
	assert.Equal(t, uint(3), ev.LogIndex)
	assert.Equal(t, common.HexToHash("0xfeed").Hex(), ev.TxHash)

	id, ok := ev.Uint("credentialId")
	require.True(t, ok)
	assert.Equal(t, int64(42), id.Int64())
}

func TestDecodeSkipsUnknownAndKeepsOrder(t *testing.T) {
	d := newDecoder(t)
	logs := []*types.Log{
		{Topics: nil},
		markedLog(t),
		{Topics: []common.Hash{common.HexToHash("0xdead")}, Data: []byte{1, 2, 3}},
		nil,
		issuedLog(t, 7),
	}

	out, err := d.DecodeReceipt(&types.Receipt{Logs: logs})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "AttendanceMarked", out[0].Name)
	assert.Equal(t, "5", out[0].Indexed["recordId"])
	assert.Equal(t, "9", out[0].Indexed["classId"])
	assert.Equal(t, "2", out[0].Data["status"])
	assert.Equal(t, "CredentialIssued", out[1].Name)

	none, err := d.DecodeReceipt(nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDecodeMalformedMatchedLog(t *testing.T) {
	d := newDecoder(t)
	var dErr *chainerr.DecodeError

	short := issuedLog(t, 1)
	short.Topics = short.Topics[:2]
	_, err := d.Decode([]*types.Log{short})
	assert.ErrorAs(t, err, &dErr)

	badData := issuedLog(t, 1)
	badData.Data = []byte{0x01}
	_, err = d.Decode([]*types.Log{badData})
	assert.ErrorAs(t, err, &dErr)

	dirtyAddress := issuedLog(t, 1)
	dirtyAddress.Topics[2][0] = 0xff
	_, err = d.Decode([]*types.Log{dirtyAddress})
	assert.ErrorAs(t, err, &dErr)
}

func TestRenderTopic(t *testing.T) {
	mustType := func(s string) abi.Type {
		typ, err := abi.NewType(s, "", nil)
		require.NoError(t, err)
		return typ
	}
	maxUint := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	tests := []struct {
		name  string
		typ   string
		topic common.Hash
		want  string
	}{
		{"max uint256", "uint256", common.BigToHash(maxUint), maxUint.String()},
		{"int topic read unsigned", "int256", common.BigToHash(maxUint), maxUint.String()},
		{"positive int", "int64", common.BigToHash(big.NewInt(12)), "12"},
		{"bool true", "bool", common.BigToHash(big.NewInt(1)), "true"},
		{"bool false", "bool", common.Hash{}, "false"},
		{"bytes32", "bytes32", common.HexToHash("0xAB"), common.HexToHash("0xab").Hex()},
		{"hashed string", "string", common.HexToHash("0x01"), common.HexToHash("0x01").Hex()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderTopic(mustType(tt.typ), tt.topic)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := renderTopic(mustType("bool"), common.BigToHash(big.NewInt(2)))
	assert.Error(t, err)
}

func TestRenderValue(t *testing.T) {
	assert.Equal(t, "0x0102", renderValue([]byte{1, 2}))
	assert.Equal(t, "0x"+strings.Repeat("00", 31)+"01", renderValue([32]byte{31: 1}))
	assert.Equal(t, "true", renderValue(true))
	assert.Equal(t, "7", renderValue(uint8(7)))
	assert.Equal(t, "-3", renderValue(big.NewInt(-3)))
}

func TestFind(t *testing.T) {
	d := newDecoder(t)
	out, err := d.Decode([]*types.Log{issuedLog(t, 1), issuedLog(t, 2)})
	require.NoError(t, err)

	ev, ok := Find(out, "CredentialIssued", func(e AuditEvent) bool { return e.Indexed["credentialId"] == "2" })
	require.True(t, ok)
	assert.Equal(t, "2", ev.Indexed["credentialId"])

	_, ok = Find(out, "CredentialIssued", func(e AuditEvent) bool { return false })
	assert.False(t, ok)
	_, ok = Find(out, "AttendanceMarked", nil)
	assert.False(t, ok)
}

func TestNewDecoderRejectsCollisions(t *testing.T) {
	c, _ := registries(t)
	_, err := NewDecoder(c, c)
	assert.ErrorContains(t, err, "collides")
}

func TestDecodeConcurrent(t *testing.T) {
	d := newDecoder(t)
	logs := []*types.Log{issuedLog(t, 1), markedLog(t)}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := d.Decode(logs)
			if err != nil || len(out) != 2 {
				t.Errorf("Decode = %d events, %v", len(out), err)
			}
		}()
	}
	wg.Wait()
}
