package sdk

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
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

// Attendance records and reads attendance marks on the AttendanceManagement
// contract.
type Attendance struct {
	binding  *contract.Binding
	decoder  *events.Decoder
	timeouts config.Timeouts
}

type attendanceTuple struct {
	RecordId       *big.Int
	ClassId        *big.Int
	StudentAddress common.Address
	SessionDate    *big.Int
	Status         uint8
	Notes          string
	MarkedBy       common.Address
	MarkedAt       *big.Int
}

// MarkAttendance records one mark and returns its identifier, taken from
// AttendanceMarked or, failing that, from attendanceCount.
func (a *Attendance) MarkAttendance(ctx context.Context, req model.MarkAttendanceRequest) (*big.Int, common.Hash, error) {
	if err := req.Validate(); err != nil {
		return nil, common.Hash{}, err
	}

	sendCtx, cancel := withTimeout(ctx, a.timeouts.ReceiptWait)
	defer cancel()
	txHash, receipt, err := a.binding.Send(sendCtx, "markAttendance",
		req.ClassID, req.Student, model.UnixOrZero(req.SessionDate), uint8(req.Status), req.Notes)
	if err != nil {
		zap.L().Error("Failed to mark attendance",
			zap.Stringer("classId", req.ClassID),
			zap.String("student", req.Student.Hex()),
			zap.String("txHash", txHash.Hex()),
			zap.Error(err))
		return nil, txHash, err
	}

	student := strings.ToLower(req.Student.Hex())
	classID := req.ClassID.String()
	ev, ok := findEvent(a.decoder, receipt, "AttendanceMarked", func(ev events.AuditEvent) bool {
		return ev.Indexed["studentAddress"] == student && ev.Indexed["classId"] == classID
	})
	var id *big.Int
	if ok {
		if err := checkMarkedStatus(ev); err != nil {
			return nil, receipt.TxHash, err
		}
		id, ok = ev.Uint("recordId")
	}
	if !ok {
		zap.L().Warn("AttendanceMarked event not found in receipt, falling back to attendanceCount",
			zap.String("txHash", receipt.TxHash.Hex()))
		id, err = counterFallback(ctx, a.binding, "attendanceCount", "attendance record", receipt.TxHash, a.timeouts.ChainRead)
		if err != nil {
			return nil, receipt.TxHash, err
		}
	}

	zap.L().Info("Attendance marked",
		zap.String("txHash", receipt.TxHash.Hex()),
		zap.Stringer("recordId", id),
		zap.Stringer("status", req.Status))
	return id, receipt.TxHash, nil
}

// GetAttendance reads one attendance record.
func (a *Attendance) GetAttendance(ctx context.Context, id *big.Int) (*model.AttendanceRecord, error) {
	if err := validID("attendance record id", id); err != nil {
		return nil, err
	}
	readCtx, cancel := withTimeout(ctx, a.timeouts.ChainRead)
	defer cancel()

	var out struct{ Record attendanceTuple }
	if err := a.binding.CallInto(readCtx, &out, "getAttendanceRecord", id); err != nil {
		if blockchain.IsRevert(err) {
			return nil, &chainerr.NotFoundError{Entity: "attendance record", ID: id.String()}
		}
		return nil, err
	}
	t := out.Record
	if t.StudentAddress == (common.Address{}) {
		return nil, &chainerr.NotFoundError{Entity: "attendance record", ID: id.String()}
	}

	status, err := contract.DecodeEnum("attendance status", t.Status, model.AttendanceStatuses)
	if err != nil {
		return nil, err
	}
	sessionDate, err := model.TimeFromUnix("attendance sessionDate", t.SessionDate)
	if err != nil {
		return nil, err
	}
	markedAt, err := model.TimeFromUnix("attendance markedAt", t.MarkedAt)
	if err != nil {
		return nil, err
	}
	return &model.AttendanceRecord{
		ID:          t.RecordId,
		ClassID:     t.ClassId,
		Student:     t.StudentAddress,
		SessionDate: sessionDate,
		Status:      status,
		Notes:       t.Notes,
		MarkedBy:    t.MarkedBy,
		MarkedAt:    markedAt,
	}, nil
}

// checkMarkedStatus rejects an AttendanceMarked event whose status is not a
// declared AttendanceStatus.
func checkMarkedStatus(ev events.AuditEvent) error {
	raw, ok := ev.Data["status"]
	if !ok {
		return chainerr.Decode("AttendanceMarked status", fmt.Errorf("missing from event data"))
	}
	n, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return chainerr.Decode("AttendanceMarked status", err)
	}
	_, err = contract.DecodeEnum("AttendanceMarked status", uint8(n), model.AttendanceStatuses)
	return err
}

// GetAttendanceCount returns the number of records written so far.
func (a *Attendance) GetAttendanceCount(ctx context.Context) (*big.Int, error) {
	readCtx, cancel := withTimeout(ctx, a.timeouts.ChainRead)
	defer cancel()
	return count(readCtx, a.binding, "attendanceCount")
}
