package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tableside/pos-api/internal/database"
)

// Errors returned by the reservation service.
var (
	ErrTableUnavailable        = errors.New("table is not available")
	ErrNoCapacity              = errors.New("no available table fits the party")
	ErrInsufficientCapacity    = errors.New("table capacity is smaller than the party")
	ErrReservationNotFound     = errors.New("reservation not found")
	ErrReservationClosed       = errors.New("reservation is cancelled or completed")
	ErrInvalidReservation      = errors.New("invalid reservation")
	ErrInvalidStatusTransition = errors.New("invalid reservation status transition")
)

const (
	reservationDateLayout = "2006-01-02"
	reservationTimeLayout = "15:04"
)

// ReservationStore defines the DB methods needed for reservations.
// Satisfied by *database.Queries.
type ReservationStore interface {
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error)
	FindAvailableTableForParty(ctx context.Context, partySize int32) (database.Table, error)
	WaitAvailableTableForParty(ctx context.Context, partySize int32) (database.Table, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)
	CreateReservation(ctx context.Context, arg database.CreateReservationParams) (database.Reservation, error)
	GetReservation(ctx context.Context, id uuid.UUID) (database.Reservation, error)
	GetReservationForUpdate(ctx context.Context, id uuid.UUID) (database.Reservation, error)
	ListReservations(ctx context.Context, arg database.ListReservationsParams) ([]database.Reservation, error)
	SetReservationTable(ctx context.Context, arg database.SetReservationTableParams) (database.Reservation, error)
	UpdateReservationStatus(ctx context.Context, arg database.UpdateReservationStatusParams) (database.Reservation, error)
}

// NewReservationStore creates a ReservationStore from a DBTX (pool or tx).
type NewReservationStore func(db database.DBTX) ReservationStore

// ReservationRequest is the input for creating a reservation.
// TableID and Status are only honored for staff-created reservations.
type ReservationRequest struct {
	CustomerName  string
	CustomerPhone string
	Date          string // YYYY-MM-DD
	StartTime     string // HH:MM
	EndTime       string // HH:MM
	PartySize     int32
	Notes         string
	TableID       uuid.UUID
	Status        string
}

// AssignResult is a reservation together with the table it holds.
// ReleasedTable is set when the reservation moved off a table it held.
type AssignResult struct {
	Reservation   database.Reservation
	Table         database.Table
	ReleasedTable *database.Table
}

// StatusResult is a status change plus the table it released, if any.
type StatusResult struct {
	Reservation   database.Reservation
	ReleasedTable *database.Table
}

// ReservationService books reservations and binds them to tables.
type ReservationService struct {
	pool     TxBeginner
	newStore NewReservationStore
}

// NewReservationService creates a new ReservationService.
func NewReservationService(pool TxBeginner, newStore NewReservationStore) *ReservationService {
	return &ReservationService{pool: pool, newStore: newStore}
}

// Assign holds tableID for the reservation. The table must be AVAILABLE and
// large enough. A table previously held by the reservation is released in
// the same transaction. The reservation's own status is left unchanged.
func (s *ReservationService) Assign(ctx context.Context, reservationID, tableID uuid.UUID) (*AssignResult, error) {
	var result *AssignResult
	err := runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		store := s.newStore(tx)

		res, err := store.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrReservationNotFound
			}
			return fmt.Errorf("get reservation: %w", err)
		}
		if isClosedReservation(res.Status) {
			return ErrReservationClosed
		}

		table, err := lockTable(ctx, store, tableID)
		if err != nil {
			return err
		}
		if res.TableID.Valid && uuid.UUID(res.TableID.Bytes) == tableID {
			result = &AssignResult{Reservation: res, Table: table}
			return nil
		}

		result, err = assignTable(ctx, store, res, table)
		if err != nil {
			return err
		}
		if res.TableID.Valid {
			result.ReleasedTable, err = releaseHeldTable(ctx, store, res.ID, uuid.UUID(res.TableID.Bytes))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AutoAssign returns the lowest-numbered AVAILABLE table seating partySize.
// It does not hold the table.
func (s *ReservationService) AutoAssign(ctx context.Context, partySize int32) (database.Table, error) {
	if partySize < 1 {
		return database.Table{}, ErrInvalidReservation
	}

	var table database.Table
	err := runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		table, err = findTableForParty(ctx, s.newStore(tx), partySize)
		return err
	})
	if err != nil {
		return database.Table{}, err
	}
	return table, nil
}

// CreateCustomerReservation records a self-service request as PENDING with
// no table.
func (s *ReservationService) CreateCustomerReservation(ctx context.Context, req ReservationRequest) (database.Reservation, error) {
	params, err := reservationParams(req)
	if err != nil {
		return database.Reservation{}, err
	}
	params.Status = database.ReservationStatusPENDING

	var res database.Reservation
	err = runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		res, err = s.newStore(tx).CreateReservation(ctx, params)
		if err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return database.Reservation{}, err
	}
	return res, nil
}

// CreateStaffReservation books a reservation and holds a table for it in one
// transaction. Without req.TableID the table is auto-assigned. Status
// defaults to CONFIRMED.
func (s *ReservationService) CreateStaffReservation(ctx context.Context, sess Session, req ReservationRequest) (*AssignResult, error) {
	params, err := reservationParams(req)
	if err != nil {
		return nil, err
	}
	params.Status = database.ReservationStatusCONFIRMED
	switch database.ReservationStatus(req.Status) {
	case "":
	case database.ReservationStatusPENDING, database.ReservationStatusCONFIRMED:
		params.Status = database.ReservationStatus(req.Status)
	default:
		return nil, fmt.Errorf("%w: status must be PENDING or CONFIRMED", ErrInvalidReservation)
	}
	if sess.StaffID != uuid.Nil {
		params.ReservedBy = pgtype.UUID{Bytes: sess.StaffID, Valid: true}
	}

	var result *AssignResult
	err = runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		store := s.newStore(tx)

		var (
			table database.Table
			err   error
		)
		if req.TableID == uuid.Nil {
			table, err = findTableForParty(ctx, store, params.PartySize)
		} else {
			table, err = lockTable(ctx, store, req.TableID)
		}
		if err != nil {
			return err
		}

		res, err := store.CreateReservation(ctx, params)
		if err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}

		result, err = assignTable(ctx, store, res, table)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatus moves a reservation along PENDING -> CONFIRMED -> COMPLETED,
// or to CANCELLED from either open state. Cancelling or completing releases
// the table still held for it.
func (s *ReservationService) UpdateStatus(ctx context.Context, reservationID uuid.UUID, status string) (*StatusResult, error) {
	next := database.ReservationStatus(status)

	var result StatusResult
	err := runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		store := s.newStore(tx)
		result = StatusResult{}

		res, err := store.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrReservationNotFound
			}
			return fmt.Errorf("get reservation: %w", err)
		}
		if !canTransition(res.Status, next) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, res.Status, status)
		}

		res, err = store.UpdateReservationStatus(ctx, database.UpdateReservationStatusParams{
			ID:     reservationID,
			Status: next,
		})
		if err != nil {
			return fmt.Errorf("update reservation status: %w", err)
		}
		result.Reservation = res

		if !isClosedReservation(next) || !res.TableID.Valid {
			return nil
		}
		result.ReleasedTable, err = releaseHeldTable(ctx, store, res.ID, uuid.UUID(res.TableID.Bytes))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// List returns reservations, optionally filtered by date and status.
func (s *ReservationService) List(ctx context.Context, date, status string) ([]database.Reservation, error) {
	var params database.ListReservationsParams
	if date != "" {
		d, err := time.Parse(reservationDateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidReservation)
		}
		params.Date = pgtype.Date{Time: d, Valid: true}
	}
	if status != "" {
		params.Status = database.NullReservationStatus{ReservationStatus: database.ReservationStatus(status), Valid: true}
	}

	var list []database.Reservation
	err := runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		list, err = s.newStore(tx).ListReservations(ctx, params)
		if err != nil {
			return fmt.Errorf("list reservations: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// --- Helpers ---

func assignTable(ctx context.Context, store ReservationStore, res database.Reservation, table database.Table) (*AssignResult, error) {
	if table.Status != database.TableStatusAVAILABLE {
		return nil, ErrTableUnavailable
	}
	if table.Capacity < res.PartySize {
		return nil, ErrInsufficientCapacity
	}

	table, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
		ID:            table.ID,
		Status:        database.TableStatusRESERVED,
		ReservationID: pgtype.UUID{Bytes: res.ID, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("reserve table: %w", err)
	}

	res, err = store.SetReservationTable(ctx, database.SetReservationTableParams{
		ID:      res.ID,
		TableID: pgtype.UUID{Bytes: table.ID, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("set reservation table: %w", err)
	}
	return &AssignResult{Reservation: res, Table: table}, nil
}

// releaseHeldTable frees tableID if it is still RESERVED for reservationID.
// A nil table means nothing was released.
func releaseHeldTable(ctx context.Context, store ReservationStore, reservationID, tableID uuid.UUID) (*database.Table, error) {
	table, err := store.GetTableForUpdate(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock table: %w", err)
	}
	if table.Status != database.TableStatusRESERVED || !table.ReservationID.Valid || uuid.UUID(table.ReservationID.Bytes) != reservationID {
		return nil, nil
	}
	table, err = store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
		ID:     table.ID,
		Status: database.TableStatusAVAILABLE,
	})
	if err != nil {
		return nil, fmt.Errorf("release table: %w", err)
	}
	return &table, nil
}

// findTableForParty skips tables other transactions hold. Only when every
// fitting table is locked does it wait for one to come free.
func findTableForParty(ctx context.Context, store ReservationStore, partySize int32) (database.Table, error) {
	table, err := store.FindAvailableTableForParty(ctx, partySize)
	if errors.Is(err, pgx.ErrNoRows) {
		table, err = store.WaitAvailableTableForParty(ctx, partySize)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Table{}, ErrNoCapacity
		}
		return database.Table{}, fmt.Errorf("find table: %w", err)
	}
	return table, nil
}

func reservationParams(req ReservationRequest) (database.CreateReservationParams, error) {
	name := strings.TrimSpace(req.CustomerName)
	phone := strings.TrimSpace(req.CustomerPhone)
	if name == "" || phone == "" {
		return database.CreateReservationParams{}, fmt.Errorf("%w: customer name and phone are required", ErrInvalidReservation)
	}
	if req.PartySize < 1 {
		return database.CreateReservationParams{}, fmt.Errorf("%w: party size must be at least 1", ErrInvalidReservation)
	}
	d, err := time.Parse(reservationDateLayout, req.Date)
	if err != nil {
		return database.CreateReservationParams{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidReservation)
	}
	start, err := time.Parse(reservationTimeLayout, req.StartTime)
	if err != nil {
		return database.CreateReservationParams{}, fmt.Errorf("%w: start time must be HH:MM", ErrInvalidReservation)
	}
	end, err := time.Parse(reservationTimeLayout, req.EndTime)
	if err != nil {
		return database.CreateReservationParams{}, fmt.Errorf("%w: end time must be HH:MM", ErrInvalidReservation)
	}
	if !start.Before(end) {
		return database.CreateReservationParams{}, fmt.Errorf("%w: start time must be before end time", ErrInvalidReservation)
	}

	return database.CreateReservationParams{
		CustomerName:    name,
		CustomerPhone:   phone,
		ReservationDate: pgtype.Date{Time: d, Valid: true},
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		PartySize:       req.PartySize,
		Notes:           textOrNull(strings.TrimSpace(req.Notes)),
	}, nil
}

func isClosedReservation(s database.ReservationStatus) bool {
	return s == database.ReservationStatusCANCELLED || s == database.ReservationStatusCOMPLETED
}

func canTransition(from, to database.ReservationStatus) bool {
	switch from {
	case database.ReservationStatusPENDING:
		return to == database.ReservationStatusCONFIRMED || to == database.ReservationStatusCANCELLED
	case database.ReservationStatusCONFIRMED:
		return to == database.ReservationStatusCANCELLED || to == database.ReservationStatusCOMPLETED
	}
	return false
}
