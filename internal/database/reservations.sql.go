package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const reservationColumns = `id, customer_name, customer_phone, table_id, reservation_date, start_time, end_time, party_size, status, reserved_by, notes, created_at, updated_at`

func scanReservation(row interface{ Scan(...interface{}) error }) (Reservation, error) {
	var i Reservation
	err := row.Scan(
		&i.ID,
		&i.CustomerName,
		&i.CustomerPhone,
		&i.TableID,
		&i.ReservationDate,
		&i.StartTime,
		&i.EndTime,
		&i.PartySize,
		&i.Status,
		&i.ReservedBy,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createReservation = `-- name: CreateReservation :one
INSERT INTO reservations (customer_name, customer_phone, reservation_date, start_time, end_time, party_size, status, reserved_by, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + reservationColumns

type CreateReservationParams struct {
	CustomerName    string            `json:"customer_name"`
	CustomerPhone   string            `json:"customer_phone"`
	ReservationDate pgtype.Date       `json:"reservation_date"`
	StartTime       string            `json:"start_time"`
	EndTime         string            `json:"end_time"`
	PartySize       int32             `json:"party_size"`
	Status          ReservationStatus `json:"status"`
	ReservedBy      pgtype.UUID       `json:"reserved_by"`
	Notes           pgtype.Text       `json:"notes"`
}

func (q *Queries) CreateReservation(ctx context.Context, arg CreateReservationParams) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, createReservation,
		arg.CustomerName,
		arg.CustomerPhone,
		arg.ReservationDate,
		arg.StartTime,
		arg.EndTime,
		arg.PartySize,
		arg.Status,
		arg.ReservedBy,
		arg.Notes,
	))
}

const getReservation = `-- name: GetReservation :one
SELECT ` + reservationColumns + ` FROM reservations
WHERE id = $1
`

func (q *Queries) GetReservation(ctx context.Context, id uuid.UUID) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, getReservation, id))
}

const getReservationForUpdate = `-- name: GetReservationForUpdate :one
SELECT ` + reservationColumns + ` FROM reservations
WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetReservationForUpdate(ctx context.Context, id uuid.UUID) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, getReservationForUpdate, id))
}

const listReservations = `-- name: ListReservations :many
SELECT ` + reservationColumns + ` FROM reservations
WHERE ($1::date IS NULL OR reservation_date = $1)
  AND ($2::text IS NULL OR status = $2)
ORDER BY reservation_date, start_time, created_at
`

type ListReservationsParams struct {
	Date   pgtype.Date           `json:"date"`
	Status NullReservationStatus `json:"status"`
}

func (q *Queries) ListReservations(ctx context.Context, arg ListReservationsParams) ([]Reservation, error) {
	rows, err := q.db.Query(ctx, listReservations, arg.Date, arg.Status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Reservation{}
	for rows.Next() {
		i, err := scanReservation(rows)
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

const setReservationTable = `-- name: SetReservationTable :one
UPDATE reservations
SET table_id = $2, updated_at = now()
WHERE id = $1
RETURNING ` + reservationColumns

type SetReservationTableParams struct {
	ID      uuid.UUID   `json:"id"`
	TableID pgtype.UUID `json:"table_id"`
}

func (q *Queries) SetReservationTable(ctx context.Context, arg SetReservationTableParams) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, setReservationTable, arg.ID, arg.TableID))
}

const updateReservationStatus = `-- name: UpdateReservationStatus :one
UPDATE reservations
SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + reservationColumns

type UpdateReservationStatusParams struct {
	ID     uuid.UUID         `json:"id"`
	Status ReservationStatus `json:"status"`
}

func (q *Queries) UpdateReservationStatus(ctx context.Context, arg UpdateReservationStatusParams) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, updateReservationStatus, arg.ID, arg.Status))
}
