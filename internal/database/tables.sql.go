package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createTable = `-- name: CreateTable :one
INSERT INTO tables (number, capacity)
VALUES ($1, $2)
RETURNING id, number, capacity, status, reservation_id, created_at, updated_at
`

type CreateTableParams struct {
	Number   int32 `json:"number"`
	Capacity int32 `json:"capacity"`
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	row := q.db.QueryRow(ctx, createTable, arg.Number, arg.Capacity)
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Number,
		&i.Capacity,
		&i.Status,
		&i.ReservationID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getTable = `-- name: GetTable :one
SELECT id, number, capacity, status, reservation_id, created_at, updated_at FROM tables
WHERE id = $1
`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (Table, error) {
	row := q.db.QueryRow(ctx, getTable, id)
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Number,
		&i.Capacity,
		&i.Status,
		&i.ReservationID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getTableByNumber = `-- name: GetTableByNumber :one
SELECT id, number, capacity, status, reservation_id, created_at, updated_at FROM tables
WHERE number = $1
`

func (q *Queries) GetTableByNumber(ctx context.Context, number int32) (Table, error) {
	row := q.db.QueryRow(ctx, getTableByNumber, number)
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Number,
		&i.Capacity,
		&i.Status,
		&i.ReservationID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getTableForUpdate = `-- name: GetTableForUpdate :one
SELECT id, number, capacity, status, reservation_id, created_at, updated_at FROM tables
WHERE id = $1
FOR UPDATE
`

// GetTableForUpdate locks the table row for the rest of the transaction.
// Every workflow step that reads or changes a table's running order takes
// this lock first, which serializes concurrent operations on one table.
func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (Table, error) {
	row := q.db.QueryRow(ctx, getTableForUpdate, id)
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Number,
		&i.Capacity,
		&i.Status,
		&i.ReservationID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listTables = `-- name: ListTables :many
SELECT id, number, capacity, status, reservation_id, created_at, updated_at FROM tables
ORDER BY number
`

func (q *Queries) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Table{}
	for rows.Next() {
		var i Table
		if err := rows.Scan(
			&i.ID,
			&i.Number,
			&i.Capacity,
			&i.Status,
			&i.ReservationID,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const findAvailableTableForParty = `-- name: FindAvailableTableForParty :one
SELECT id, number, capacity, status, reservation_id, created_at, updated_at FROM tables
WHERE status = 'AVAILABLE' AND capacity >= $1
ORDER BY number
LIMIT 1
FOR UPDATE SKIP LOCKED
`

func (q *Queries) FindAvailableTableForParty(ctx context.Context, partySize int32) (Table, error) {
	row := q.db.QueryRow(ctx, findAvailableTableForParty, partySize)
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Number,
		&i.Capacity,
		&i.Status,
		&i.ReservationID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const waitAvailableTableForParty = `-- name: WaitAvailableTableForParty :one
SELECT id, number, capacity, status, reservation_id, created_at, updated_at FROM tables
WHERE status = 'AVAILABLE' AND capacity >= $1
ORDER BY number
LIMIT 1
FOR UPDATE
`

func (q *Queries) WaitAvailableTableForParty(ctx context.Context, partySize int32) (Table, error) {
	row := q.db.QueryRow(ctx, waitAvailableTableForParty, partySize)
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Number,
		&i.Capacity,
		&i.Status,
		&i.ReservationID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateTableStatus = `-- name: UpdateTableStatus :one
UPDATE tables
SET status = $2, reservation_id = $3, updated_at = now()
WHERE id = $1
RETURNING id, number, capacity, status, reservation_id, created_at, updated_at
`

type UpdateTableStatusParams struct {
	ID            uuid.UUID   `json:"id"`
	Status        TableStatus `json:"status"`
	ReservationID pgtype.UUID `json:"reservation_id"`
}

func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) (Table, error) {
	row := q.db.QueryRow(ctx, updateTableStatus, arg.ID, arg.Status, arg.ReservationID)
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Number,
		&i.Capacity,
		&i.Status,
		&i.ReservationID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
