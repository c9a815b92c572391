package sdk

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fap-edu/fap-ledger-go/pkg/chainerr"
	"github.com/fap-edu/fap-ledger-go/pkg/config"
	"github.com/fap-edu/fap-ledger-go/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

var session = time.Date(2026, 9, 14, 7, 30, 0, 0, time.UTC)

func validMark() model.MarkAttendanceRequest {
	return model.MarkAttendanceRequest{
		ClassID:     big.NewInt(9),
		Student:     student,
		SessionDate: session,
		Status:      model.AttendanceLate,
		Notes:       "arrived 10 minutes late",
	}
}

func TestMarkAttendanceReturnsEventID(t *testing.T) {
	h := newHarness(t)
	h.emit(h.markedLog(t, 5, 9, uint8(model.AttendanceLate)))

	id, txHash, err := h.core.Attendance().MarkAttendance(context.Background(), validMark())
	require.NoError(t, err)
	assert.Equal(t, int64(5), id.Int64())

	sent := h.chain.LastSent()
	assert.Equal(t, sent.Hash(), txHash)
	assert.Equal(t, attendanceAddr, *sent.To())

	args, err := h.attendance.ABI().Methods["markAttendance"].Inputs.Unpack(sent.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, int64(9), args[0].(*big.Int).Int64())
	assert.Equal(t, student, args[1])
	assert.Equal(t, session.Unix(), args[2].(*big.Int).Int64())
	assert.Equal(t, uint8(model.AttendanceLate), args[3])
	assert.Equal(t, "arrived 10 minutes late", args[4])
}

func TestMarkAttendanceFallsBackToCounter(t *testing.T) {
	h := newHarness(t)
	logs := observeLogs(t)
	// event for another class
	h.emit(h.markedLog(t, 5, 10, uint8(model.AttendanceLate)))
	h.handle(t, h.attendance, "attendanceCount", big.NewInt(6))

	id, _, err := h.core.Attendance().MarkAttendance(context.Background(), validMark())
	require.NoError(t, err)
	assert.Equal(t, int64(6), id.Int64())

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).FilterMessageSnippet("falling back to attendanceCount")
	assert.Equal(t, 1, warnings.Len())
}

func TestMarkAttendanceFallbackInconclusive(t *testing.T) {
	h := newHarness(t)
	_, txHash, err := h.core.Attendance().MarkAttendance(context.Background(), validMark())
	var nf *chainerr.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, h.chain.LastSent().Hash(), txHash)
}

func TestMarkAttendanceUndeclaredEventStatus(t *testing.T) {
	h := newHarness(t)
	h.emit(h.markedLog(t, 5, 9, 9))
	h.handle(t, h.attendance, "attendanceCount", big.NewInt(5))

	id, txHash, err := h.core.Attendance().MarkAttendance(context.Background(), validMark())
	var dErr *chainerr.DecodeError
	require.ErrorAs(t, err, &dErr)
	assert.Nil(t, id)
	assert.Equal(t, h.chain.LastSent().Hash(), txHash)
}

func TestMarkAttendanceReceiptWaitDeadline(t *testing.T) {
	h := newHarnessWithConfig(t, func(c *config.Config) {
		c.TransactionTimeout = 60
		c.Timeouts.ReceiptWait = 200 * time.Millisecond
	}, WithPollInterval(50*time.Millisecond))
	h.chain.OnSend = func(*types.Transaction) *types.Receipt { return nil }

	_, txHash, err := h.core.Attendance().MarkAttendance(context.Background(), validMark())
	var tErr *chainerr.TimeoutError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, h.chain.LastSent().Hash(), txHash)
	assert.Equal(t, txHash, tErr.TxHash)
}

func TestAttendanceRequiresConfiguredAddress(t *testing.T) {
	// credential address only, as in the package Quick Start
	h := newHarnessWithConfig(t, func(c *config.Config) { c.Contracts.AttendanceManagement = "" })
	h.emit(h.markedLog(t, 5, 9, uint8(model.AttendanceLate)))

	_, _, err := h.core.Attendance().MarkAttendance(context.Background(), validMark())
	var vErr *chainerr.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "AttendanceManagement address", vErr.Field)

	_, err = h.core.Attendance().GetAttendance(context.Background(), big.NewInt(5))
	require.ErrorAs(t, err, &vErr)

	_, err = h.core.Attendance().GetAttendanceCount(context.Background())
	require.ErrorAs(t, err, &vErr)
	assert.Empty(t, h.chain.Sent)
}

func TestMarkAttendanceValidatesBeforeIO(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.MarkAttendanceRequest)
	}{
		{"nil class", func(r *model.MarkAttendanceRequest) { r.ClassID = nil }},
		{"zero student", func(r *model.MarkAttendanceRequest) { r.Student = common.Address{} }},
		{"no session date", func(r *model.MarkAttendanceRequest) { r.SessionDate = time.Time{} }},
		{"undeclared status", func(r *model.MarkAttendanceRequest) { r.Status = model.AttendanceStatus(4) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			req := validMark()
			tt.mutate(&req)
			_, _, err := h.core.Attendance().MarkAttendance(context.Background(), req)
			var vErr *chainerr.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Empty(t, h.chain.Sent)
		})
	}
}

func storedAttendance(status uint8) attendanceTuple {
	return attendanceTuple{
		RecordId:       big.NewInt(5),
		ClassId:        big.NewInt(9),
		StudentAddress: student,
		SessionDate:    big.NewInt(session.Unix()),
		Status:         status,
		Notes:          "excused by the dean",
		MarkedBy:       issuer,
		MarkedAt:       big.NewInt(session.Unix() + 60),
	}
}

func TestGetAttendance(t *testing.T) {
	h := newHarness(t)
	h.handle(t, h.attendance, "getAttendanceRecord", storedAttendance(uint8(model.AttendanceExcused)))

	rec, err := h.core.Attendance().GetAttendance(context.Background(), big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.ID.Int64())
	assert.Equal(t, int64(9), rec.ClassID.Int64())
	assert.Equal(t, student, rec.Student)
	assert.True(t, rec.SessionDate.Equal(session))
	assert.Equal(t, model.AttendanceExcused, rec.Status)
	assert.Equal(t, "excused by the dean", rec.Notes)
	assert.Equal(t, issuer, rec.MarkedBy)
	assert.Equal(t, session.Unix()+60, rec.MarkedAt.Unix())
}

func TestGetAttendanceErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.core.Attendance().GetAttendance(context.Background(), big.NewInt(5))
	var nf *chainerr.NotFoundError
	require.ErrorAs(t, err, &nf)

	h.handle(t, h.attendance, "getAttendanceRecord", storedAttendance(200))
	rec, err := h.core.Attendance().GetAttendance(context.Background(), big.NewInt(5))
	var dErr *chainerr.DecodeError
	require.ErrorAs(t, err, &dErr)
	assert.Nil(t, rec)

	_, err = h.core.Attendance().GetAttendance(context.Background(), big.NewInt(-1))
	var vErr *chainerr.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestGetAttendanceTimestampOutOfRange(t *testing.T) {
	h := newHarness(t)
	stored := storedAttendance(uint8(model.AttendancePresent))
	stored.MarkedAt = new(big.Int).Lsh(big.NewInt(1), 63)
	h.handle(t, h.attendance, "getAttendanceRecord", stored)

	rec, err := h.core.Attendance().GetAttendance(context.Background(), big.NewInt(5))
	var dErr *chainerr.DecodeError
	require.ErrorAs(t, err, &dErr)
	assert.Contains(t, dErr.What, "markedAt")
	assert.Nil(t, rec)
}

func TestGetAttendanceCount(t *testing.T) {
	h := newHarness(t)
	h.handle(t, h.attendance, "attendanceCount", big.NewInt(31))

	n, err := h.core.Attendance().GetAttendanceCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(31), n.Int64())
}
