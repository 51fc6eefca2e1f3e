package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const shiftColumns = `id, staff_id, start_time, end_time, opening_balance, total_cash_sales, total_card_sales, total_digital_sales, actual_cash_at_close, status`

func scanShift(row interface{ Scan(...interface{}) error }) (Shift, error) {
	var i Shift
	err := row.Scan(
		&i.ID,
		&i.StaffID,
		&i.StartTime,
		&i.EndTime,
		&i.OpeningBalance,
		&i.TotalCashSales,
		&i.TotalCardSales,
		&i.TotalDigitalSales,
		&i.ActualCashAtClose,
		&i.Status,
	)
	return i, err
}

const createShift = `-- name: CreateShift :one
INSERT INTO shifts (staff_id, opening_balance)
VALUES ($1, $2)
RETURNING ` + shiftColumns

type CreateShiftParams struct {
	StaffID        uuid.UUID      `json:"staff_id"`
	OpeningBalance pgtype.Numeric `json:"opening_balance"`
}

func (q *Queries) CreateShift(ctx context.Context, arg CreateShiftParams) (Shift, error) {
	return scanShift(q.db.QueryRow(ctx, createShift, arg.StaffID, arg.OpeningBalance))
}

const getShift = `-- name: GetShift :one
SELECT ` + shiftColumns + ` FROM shifts
WHERE id = $1
`

func (q *Queries) GetShift(ctx context.Context, id uuid.UUID) (Shift, error) {
	return scanShift(q.db.QueryRow(ctx, getShift, id))
}

const getOpenShiftByStaff = `-- name: GetOpenShiftByStaff :one
SELECT ` + shiftColumns + ` FROM shifts
WHERE staff_id = $1 AND status = 'OPEN'
`

func (q *Queries) GetOpenShiftByStaff(ctx context.Context, staffID uuid.UUID) (Shift, error) {
	return scanShift(q.db.QueryRow(ctx, getOpenShiftByStaff, staffID))
}

const getLatestOpenShift = `-- name: GetLatestOpenShift :one
SELECT ` + shiftColumns + ` FROM shifts
WHERE status = 'OPEN'
ORDER BY start_time DESC
LIMIT 1
`

func (q *Queries) GetLatestOpenShift(ctx context.Context) (Shift, error) {
	return scanShift(q.db.QueryRow(ctx, getLatestOpenShift))
}

const closeShift = `-- name: CloseShift :one
UPDATE shifts
SET status = 'CLOSED', end_time = now(), actual_cash_at_close = $2
WHERE id = $1 AND status = 'OPEN'
RETURNING ` + shiftColumns

type CloseShiftParams struct {
	ID                uuid.UUID      `json:"id"`
	ActualCashAtClose pgtype.Numeric `json:"actual_cash_at_close"`
}

// CloseShift returns pgx.ErrNoRows when the shift is missing or already closed.
func (q *Queries) CloseShift(ctx context.Context, arg CloseShiftParams) (Shift, error) {
	return scanShift(q.db.QueryRow(ctx, closeShift, arg.ID, arg.ActualCashAtClose))
}

const addShiftSales = `-- name: AddShiftSales :one
UPDATE shifts
SET total_cash_sales    = total_cash_sales + $2,
    total_card_sales    = total_card_sales + $3,
    total_digital_sales = total_digital_sales + $4
WHERE id = $1 AND status = 'OPEN'
RETURNING ` + shiftColumns

type AddShiftSalesParams struct {
	ID            uuid.UUID      `json:"id"`
	CashAmount    pgtype.Numeric `json:"cash_amount"`
	CardAmount    pgtype.Numeric `json:"card_amount"`
	DigitalAmount pgtype.Numeric `json:"digital_amount"`
}

// AddShiftSales increments the sales buckets in place. Returns pgx.ErrNoRows
// when the shift is not open.
func (q *Queries) AddShiftSales(ctx context.Context, arg AddShiftSalesParams) (Shift, error) {
	return scanShift(q.db.QueryRow(ctx, addShiftSales,
		arg.ID,
		arg.CashAmount,
		arg.CardAmount,
		arg.DigitalAmount,
	))
}

const listShifts = `-- name: ListShifts :many
SELECT ` + shiftColumns + ` FROM shifts
ORDER BY start_time DESC
LIMIT $1 OFFSET $2
`

type ListShiftsParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (q *Queries) ListShifts(ctx context.Context, arg ListShiftsParams) ([]Shift, error) {
	rows, err := q.db.Query(ctx, listShifts, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Shift{}
	for rows.Next() {
		i, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countPaidOrdersByShift = `-- name: CountPaidOrdersByShift :one
SELECT count(*) FROM orders
WHERE shift_id = $1 AND is_paid = true
`

func (q *Queries) CountPaidOrdersByShift(ctx context.Context, shiftID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countPaidOrdersByShift, shiftID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
