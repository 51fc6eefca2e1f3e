package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tableside/pos-api/internal/database"
)

// Errors returned by the shift service.
var (
	ErrNoActiveShift      = errors.New("no active shift, please contact staff")
	ErrShiftAlreadyOpen   = errors.New("staff member already has an open shift")
	ErrShiftNotFound      = errors.New("shift not found")
	ErrShiftAlreadyClosed = errors.New("shift already closed")
)

// ActiveShiftStore is the subset of queries the active-shift policy reads.
type ActiveShiftStore interface {
	GetShift(ctx context.Context, id uuid.UUID) (database.Shift, error)
	GetLatestOpenShift(ctx context.Context) (database.Shift, error)
}

// ResolveActiveShift picks the shift an operation is credited to.
// A session-bound shift that is still OPEN wins. Otherwise the most recently
// started OPEN shift in the whole system is used. With neither, it returns
// ErrNoActiveShift.
func ResolveActiveShift(ctx context.Context, store ActiveShiftStore, sessionShiftID uuid.UUID) (database.Shift, error) {
	if sessionShiftID != uuid.Nil {
		shift, err := store.GetShift(ctx, sessionShiftID)
		switch {
		case err == nil && shift.Status == database.ShiftStatusOPEN:
			return shift, nil
		case err != nil && !errors.Is(err, pgx.ErrNoRows):
			return database.Shift{}, fmt.Errorf("get session shift: %w", err)
		}
	}

	shift, err := store.GetLatestOpenShift(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Shift{}, ErrNoActiveShift
		}
		return database.Shift{}, fmt.Errorf("get latest open shift: %w", err)
	}
	return shift, nil
}

// ShiftStore defines the DB methods needed by the shift ledger.
// Satisfied by *database.Queries.
type ShiftStore interface {
	ActiveShiftStore
	GetOpenShiftByStaff(ctx context.Context, staffID uuid.UUID) (database.Shift, error)
	CreateShift(ctx context.Context, arg database.CreateShiftParams) (database.Shift, error)
	CloseShift(ctx context.Context, arg database.CloseShiftParams) (database.Shift, error)
	ListShifts(ctx context.Context, arg database.ListShiftsParams) ([]database.Shift, error)
	CountPaidOrdersByShift(ctx context.Context, shiftID uuid.UUID) (int64, error)
}

// NewShiftStore creates a ShiftStore from a DBTX (pool or tx).
type NewShiftStore func(db database.DBTX) ShiftStore

// ShiftSummary is the reporting view of a shift.
// Discrepancy is only set once the shift is closed.
type ShiftSummary struct {
	Shift        database.Shift
	ExpectedCash decimal.Decimal
	Discrepancy  *decimal.Decimal
	PaidOrders   int64
}

// ShiftService opens, closes and reports on cashier shifts.
type ShiftService struct {
	pool     TxBeginner
	newStore NewShiftStore
}

// NewShiftService creates a new ShiftService.
func NewShiftService(pool TxBeginner, newStore NewShiftStore) *ShiftService {
	return &ShiftService{pool: pool, newStore: newStore}
}

// OpenShift starts a shift for staffID with zero sales totals.
func (s *ShiftService) OpenShift(ctx context.Context, staffID uuid.UUID, openingBalance decimal.Decimal) (database.Shift, error) {
	if openingBalance.IsNegative() {
		return database.Shift{}, ErrInvalidAmount
	}

	var shift database.Shift
	err := runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		store := s.newStore(tx)

		_, err := store.GetOpenShiftByStaff(ctx, staffID)
		if err == nil {
			return ErrShiftAlreadyOpen
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("get open shift: %w", err)
		}

		shift, err = store.CreateShift(ctx, database.CreateShiftParams{
			StaffID:        staffID,
			OpeningBalance: decimalToNumeric(openingBalance),
		})
		if err != nil {
			return fmt.Errorf("create shift: %w", err)
		}
		return nil
	})
	if err != nil {
		return database.Shift{}, err
	}
	return shift, nil
}

// CloseShift marks an open shift CLOSED and records the counted cash.
// Totals are not reconciled here; see Summary.
func (s *ShiftService) CloseShift(ctx context.Context, shiftID uuid.UUID, actualCash decimal.Decimal) (database.Shift, error) {
	if actualCash.IsNegative() {
		return database.Shift{}, ErrInvalidAmount
	}

	var shift database.Shift
	err := runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		store := s.newStore(tx)

		current, err := store.GetShift(ctx, shiftID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrShiftNotFound
			}
			return fmt.Errorf("get shift: %w", err)
		}
		if current.Status == database.ShiftStatusCLOSED {
			return ErrShiftAlreadyClosed
		}

		shift, err = store.CloseShift(ctx, database.CloseShiftParams{
			ID:                shiftID,
			ActualCashAtClose: decimalToNumeric(actualCash),
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrShiftAlreadyClosed
			}
			return fmt.Errorf("close shift: %w", err)
		}
		return nil
	})
	if err != nil {
		return database.Shift{}, err
	}
	return shift, nil
}

// CurrentShift returns the shift the active-shift policy resolves for sess.
func (s *ShiftService) CurrentShift(ctx context.Context, sess Session) (database.Shift, error) {
	var shift database.Shift
	err := runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		shift, err = ResolveActiveShift(ctx, s.newStore(tx), sess.ShiftID)
		return err
	})
	if err != nil {
		return database.Shift{}, err
	}
	return shift, nil
}

// Summary reports expected cash and, for closed shifts, the discrepancy
// between counted and expected cash.
func (s *ShiftService) Summary(ctx context.Context, shiftID uuid.UUID) (*ShiftSummary, error) {
	var summary ShiftSummary
	err := runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		store := s.newStore(tx)

		shift, err := store.GetShift(ctx, shiftID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrShiftNotFound
			}
			return fmt.Errorf("get shift: %w", err)
		}

		paid, err := store.CountPaidOrdersByShift(ctx, shiftID)
		if err != nil {
			return fmt.Errorf("count paid orders: %w", err)
		}

		expected := numericToDecimal(shift.OpeningBalance).Add(numericToDecimal(shift.TotalCashSales))
		summary = ShiftSummary{
			Shift:        shift,
			ExpectedCash: expected,
			PaidOrders:   paid,
		}
		if shift.Status == database.ShiftStatusCLOSED && shift.ActualCashAtClose.Valid {
			d := numericToDecimal(shift.ActualCashAtClose).Sub(expected)
			summary.Discrepancy = &d
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// ListShifts returns shift history, newest first.
func (s *ShiftService) ListShifts(ctx context.Context, limit, offset int32) ([]database.Shift, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var shifts []database.Shift
	err := runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		shifts, err = s.newStore(tx).ListShifts(ctx, database.ListShiftsParams{Limit: limit, Offset: offset})
		if err != nil {
			return fmt.Errorf("list shifts: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shifts, nil
}
