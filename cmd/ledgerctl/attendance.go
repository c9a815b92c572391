package main

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fap-edu/fap-ledger-go/pkg/model"
	"github.com/fap-edu/fap-ledger-go/pkg/sdk"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// MarkEntry is one attendance mark, as given on the command line or in a
// batch file.
type MarkEntry struct {
	ClassID     string `yaml:"class_id"`
	Student     string `yaml:"student"`
	SessionDate string `yaml:"session_date"`
	Status      string `yaml:"status"`
	Notes       string `yaml:"notes"`
}

var (
	markEntry MarkEntry
	batchFile string
	batchRate float64
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Mark and read attendance records",
}

var attendanceMarkCmd = &cobra.Command{
	Use:   "mark [flags]",
	Short: "Mark one student's attendance for a class session",
	Long: `Mark attendance and print the record id and transaction hash once the
transaction is confirmed. Status is one of present, absent, late, excused.

Examples:
  ledgerctl attendance mark --class 9 -s 0xabc... --date 2026-09-14 --status late -n "10 minutes"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := markEntry.request()
		if err != nil {
			return err
		}
		ledger, stop, err := openLedger(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer stop()

		id, txHash, err := ledger.Attendance().MarkAttendance(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]string{"id": id.String(), "txHash": txHash.Hex()})
	},
}

var attendanceBatchCmd = &cobra.Command{
	Use:   "mark-batch",
	Short: "Mark attendance for every entry in a YAML file",
	Long: `Submit every mark in the file concurrently and print one result per
entry, in file order. The file is a YAML list:

  - class_id: "9"
    student: "0xabc..."
    session_date: "2026-09-14"
    status: present
  - class_id: "9"
    student: "0xdef..."
    session_date: "2026-09-14"
    status: absent
    notes: "sick leave pending"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if batchRate <= 0 {
			return fmt.Errorf("--rate must be positive")
		}
		reqs, err := readBatch(batchFile)
		if err != nil {
			return err
		}
		ledger, stop, err := openLedger(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer stop()

		results, err := markAll(cmd, ledger.Attendance(), reqs, rate.NewLimiter(rate.Limit(batchRate), 1))
		if perr := printJSON(cmd, results); perr != nil {
			return perr
		}
		return err
	},
}

var attendanceGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print an attendance record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ledger, stop, err := openLedger(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer stop()

		rec, err := ledger.Attendance().GetAttendance(cmd.Context(), id.ToBig())
		if err != nil {
			return err
		}
		return printJSON(cmd, rec)
	},
}

var attendanceCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of attendance records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, stop, err := openLedger(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer stop()

		n, err := ledger.Attendance().GetAttendanceCount(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]string{"count": n.String()})
	},
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceMarkCmd, attendanceBatchCmd, attendanceGetCmd, attendanceCountCmd)

	attendanceMarkCmd.Flags().StringVar(&markEntry.ClassID, "class", "", "class id")
	attendanceMarkCmd.Flags().StringVarP(&markEntry.Student, "student", "s", "", "student wallet address")
	attendanceMarkCmd.Flags().StringVar(&markEntry.SessionDate, "date", "", "session date as YYYY-MM-DD or RFC 3339")
	attendanceMarkCmd.Flags().StringVar(&markEntry.Status, "status", "present", "present, absent, late or excused")
	attendanceMarkCmd.Flags().StringVarP(&markEntry.Notes, "notes", "n", "", "free-form notes")
	_ = attendanceMarkCmd.MarkFlagRequired("class")
	_ = attendanceMarkCmd.MarkFlagRequired("student")
	_ = attendanceMarkCmd.MarkFlagRequired("date")

	attendanceBatchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "YAML file of marks")
	attendanceBatchCmd.Flags().Float64Var(&batchRate, "rate", 5, "submissions per second")
	_ = attendanceBatchCmd.MarkFlagRequired("file")
}

func (e MarkEntry) request() (model.MarkAttendanceRequest, error) {
	classID, err := parseID(e.ClassID)
	if err != nil {
		return model.MarkAttendanceRequest{}, fmt.Errorf("class id: %w", err)
	}
	if !common.IsHexAddress(e.Student) {
		return model.MarkAttendanceRequest{}, fmt.Errorf("invalid student address %q", e.Student)
	}
	date, err := parseTime(e.SessionDate)
	if err != nil {
		return model.MarkAttendanceRequest{}, fmt.Errorf("invalid session date: %w", err)
	}
	var status model.AttendanceStatus
	if err := status.UnmarshalText([]byte(e.Status)); err != nil {
		return model.MarkAttendanceRequest{}, err
	}
	req := model.MarkAttendanceRequest{
		ClassID:     classID.ToBig(),
		Student:     common.HexToAddress(e.Student),
		SessionDate: date,
		Status:      status,
		Notes:       e.Notes,
	}
	return req, req.Validate()
}

func readBatch(path string) ([]model.MarkAttendanceRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []MarkEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s has no entries", path)
	}
	reqs := make([]model.MarkAttendanceRequest, len(entries))
	for i, e := range entries {
		if reqs[i], err = e.request(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return reqs, nil
}

type batchResult struct {
	ID     *big.Int `json:"id,omitempty"`
	TxHash string   `json:"txHash,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// markAll starts one task per request, paced by limiter, and waits for all
// of them. Results keep the order of reqs.
func markAll(cmd *cobra.Command, a *sdk.Attendance, reqs []model.MarkAttendanceRequest, limiter *rate.Limiter) ([]batchResult, error) {
	var (
		tasks   []*sdk.Task[sdk.WriteResult]
		waitErr error
	)
	for _, req := range reqs {
		if waitErr = limiter.Wait(cmd.Context()); waitErr != nil {
			break
		}
		tasks = append(tasks, a.MarkAttendanceAsync(cmd.Context(), req))
	}

	results := make([]batchResult, len(reqs))
	var errs []error
	for i := len(tasks); i < len(reqs); i++ {
		results[i].Error = "not submitted"
		errs = append(errs, fmt.Errorf("entry %d: %w", i, waitErr))
	}
	for i, task := range tasks {
		res, err := task.Wait(cmd.Context())
		if err != nil {
			zap.L().Error("Attendance mark failed", zap.Int("entry", i), zap.Error(err))
			results[i].Error = err.Error()
			if res.TxHash != (common.Hash{}) {
				results[i].TxHash = res.TxHash.Hex()
			}
			errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		results[i] = batchResult{ID: res.ID, TxHash: res.TxHash.Hex()}
	}
	return results, errors.Join(errs...)
}
