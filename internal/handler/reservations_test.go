package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tableside/pos-api/internal/database"
	"github.com/tableside/pos-api/internal/handler"
	"github.com/tableside/pos-api/internal/notify"
	"github.com/tableside/pos-api/internal/service"
)

func newReservationRouter(svc *mockReservationService, rec *recorder) http.Handler {
	h := handler.NewReservationHandler(svc, rec)
	r := chi.NewRouter()
	h.RegisterPublicRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(withAuth)
		r.Route("/reservations", h.RegisterRoutes)
	})
	return r
}

func sampleReservation(status database.ReservationStatus) database.Reservation {
	return database.Reservation{
		ID:              uuid.New(),
		CustomerName:    "Mona",
		CustomerPhone:   "0100000000",
		ReservationDate: pgtype.Date{Time: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), Valid: true},
		StartTime:       "19:00",
		EndTime:         "21:00",
		PartySize:       4,
		Status:          status,
	}
}

func TestReservationHandler_Request_Public(t *testing.T) {
	var got service.ReservationRequest
	svc := &mockReservationService{
		createCust: func(_ context.Context, req service.ReservationRequest) (database.Reservation, error) {
			got = req
			return sampleReservation(database.ReservationStatusPENDING), nil
		},
	}
	rec := &recorder{}
	router := newReservationRouter(svc, rec)

	body := map[string]interface{}{
		"customer_name":  "Mona",
		"customer_phone": "0100000000",
		"date":           "2026-03-14",
		"start_time":     "19:00",
		"end_time":       "21:00",
		"party_size":     4,
		"status":         "CONFIRMED",
	}
	rr := doJSON(t, router, "POST", "/reservations/request", "", body)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if got.Status != "" {
		t.Errorf("customer cannot choose status, got %q", got.Status)
	}
	if got.PartySize != 4 || got.Date != "2026-03-14" {
		t.Errorf("request: got %+v", got)
	}
	data := dataOf(t, decodeResponse(t, rr))
	if data["status"] != "PENDING" || data["date"] != "2026-03-14" || data["table_id"] != nil {
		t.Errorf("reservation: got %v", data)
	}
	if types := rec.types(); len(types) != 1 || types[0] != notify.ReservationCreated {
		t.Errorf("events: got %v", types)
	}
}

func TestReservationHandler_Request_Invalid(t *testing.T) {
	svc := &mockReservationService{
		createCust: func(context.Context, service.ReservationRequest) (database.Reservation, error) {
			return database.Reservation{}, service.ErrInvalidReservation
		},
	}
	router := newReservationRouter(svc, &recorder{})

	rr := doJSON(t, router, "POST", "/reservations/request", "", map[string]interface{}{"party_size": 0})
	expectError(t, rr, http.StatusBadRequest, service.ErrInvalidReservation.Error())
}

func TestReservationHandler_Create_Staff(t *testing.T) {
	staffID := uuid.New()
	tableID := uuid.New()
	var gotSess service.Session
	var got service.ReservationRequest
	svc := &mockReservationService{
		createStaff: func(_ context.Context, sess service.Session, req service.ReservationRequest) (*service.AssignResult, error) {
			gotSess, got = sess, req
			res := sampleReservation(database.ReservationStatusCONFIRMED)
			res.TableID = pgtype.UUID{Bytes: tableID, Valid: true}
			return &service.AssignResult{
				Reservation: res,
				Table:       database.Table{ID: tableID, Number: 5, Capacity: 4, Status: database.TableStatusRESERVED, ReservationID: pgtype.UUID{Bytes: res.ID, Valid: true}},
			}, nil
		},
	}
	rec := &recorder{}
	router := newReservationRouter(svc, rec)

	body := map[string]interface{}{
		"customer_name":  "Mona",
		"customer_phone": "0100000000",
		"date":           "2026-03-14",
		"start_time":     "19:00",
		"end_time":       "21:00",
		"party_size":     4,
		"table_id":       tableID.String(),
	}
	rr := doJSON(t, router, "POST", "/reservations", staffToken(t, staffID, uuid.Nil, "CASHIER"), body)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if gotSess.StaffID != staffID || got.TableID != tableID {
		t.Errorf("args: sess=%+v req=%+v", gotSess, got)
	}
	data := dataOf(t, decodeResponse(t, rr))
	if data["table"].(map[string]interface{})["status"] != "RESERVED" {
		t.Errorf("table: got %v", data["table"])
	}
	types := rec.types()
	if len(types) != 2 || types[0] != notify.ReservationCreated || types[1] != notify.ReservationAssigned {
		t.Errorf("events: got %v", types)
	}
}

func TestReservationHandler_Create_RequiresAuth(t *testing.T) {
	router := newReservationRouter(&mockReservationService{}, &recorder{})
	rr := doJSON(t, router, "POST", "/reservations", "", map[string]interface{}{})
	expectError(t, rr, http.StatusUnauthorized, "")
}

func TestReservationHandler_Assign(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"ok", nil, http.StatusOK},
		{"table unavailable", service.ErrTableUnavailable, http.StatusConflict},
		{"too small", service.ErrInsufficientCapacity, http.StatusConflict},
		{"closed", service.ErrReservationClosed, http.StatusConflict},
		{"missing", service.ErrReservationNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resID := uuid.New()
			tableID := uuid.New()
			svc := &mockReservationService{
				assign: func(_ context.Context, rid, tid uuid.UUID) (*service.AssignResult, error) {
					if rid != resID || tid != tableID {
						t.Errorf("ids: got %v %v", rid, tid)
					}
					if tt.err != nil {
						return nil, tt.err
					}
					return &service.AssignResult{
						Reservation: sampleReservation(database.ReservationStatusPENDING),
						Table:       database.Table{ID: tableID, Status: database.TableStatusRESERVED},
					}, nil
				},
			}
			rec := &recorder{}
			router := newReservationRouter(svc, rec)

			rr := doJSON(t, router, "POST", "/reservations/"+resID.String()+"/assign",
				staffToken(t, uuid.New(), uuid.Nil, "CASHIER"), map[string]string{"table_id": tableID.String()})

			if rr.Code != tt.status {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.status)
			}
			wantEvents := 0
			if tt.err == nil {
				wantEvents = 1
			}
			if len(rec.types()) != wantEvents {
				t.Errorf("events: got %v", rec.types())
			}
		})
	}
}

func TestReservationHandler_Assign_ReleasesPreviousTable(t *testing.T) {
	oldTable := uuid.New()
	newTable := uuid.New()
	svc := &mockReservationService{
		assign: func(_ context.Context, _, tid uuid.UUID) (*service.AssignResult, error) {
			return &service.AssignResult{
				Reservation:   sampleReservation(database.ReservationStatusPENDING),
				Table:         database.Table{ID: tid, Status: database.TableStatusRESERVED},
				ReleasedTable: &database.Table{ID: oldTable, Status: database.TableStatusAVAILABLE},
			}, nil
		},
	}
	rec := &recorder{}
	router := newReservationRouter(svc, rec)

	rr := doJSON(t, router, "POST", "/reservations/"+uuid.NewString()+"/assign",
		staffToken(t, uuid.New(), uuid.Nil, "CASHIER"), map[string]string{"table_id": newTable.String()})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	data := dataOf(t, decodeResponse(t, rr))
	released, ok := data["released_table"].(map[string]interface{})
	if !ok || released["id"] != oldTable.String() || released["status"] != "AVAILABLE" {
		t.Errorf("released_table: got %v", data["released_table"])
	}
	types := rec.types()
	if len(types) != 2 || types[0] != notify.ReservationAssigned || types[1] != notify.TableStatusChanged {
		t.Fatalf("events: got %v", types)
	}
	if rec.events[1].TableID != oldTable {
		t.Errorf("release event table: got %v, want %v", rec.events[1].TableID, oldTable)
	}
}

func TestReservationHandler_AutoAssign(t *testing.T) {
	svc := &mockReservationService{
		autoAssign: func(_ context.Context, size int32) (database.Table, error) {
			if size > 8 {
				return database.Table{}, service.ErrNoCapacity
			}
			return database.Table{ID: uuid.New(), Number: 2, Capacity: 8, Status: database.TableStatusAVAILABLE}, nil
		},
	}
	router := newReservationRouter(svc, &recorder{})
	token := staffToken(t, uuid.New(), uuid.Nil, "CASHIER")

	rr := doJSON(t, router, "POST", "/reservations/auto-assign", token, map[string]int{"party_size": 6})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if data := dataOf(t, decodeResponse(t, rr)); data["capacity"] != float64(8) {
		t.Errorf("table: got %v", data)
	}

	rr = doJSON(t, router, "POST", "/reservations/auto-assign", token, map[string]int{"party_size": 12})
	expectError(t, rr, http.StatusConflict, service.ErrNoCapacity.Error())

	rr = doJSON(t, router, "POST", "/reservations/auto-assign", token, map[string]int{"party_size": 0})
	expectError(t, rr, http.StatusBadRequest, "party_size must be > 0")
}

func TestReservationHandler_UpdateStatus(t *testing.T) {
	tableID := uuid.New()
	svc := &mockReservationService{
		updateStatus: func(_ context.Context, _ uuid.UUID, status string) (*service.StatusResult, error) {
			if status == "COMPLETED" {
				return nil, service.ErrInvalidStatusTransition
			}
			released := database.Table{ID: tableID, Status: database.TableStatusAVAILABLE}
			return &service.StatusResult{
				Reservation:   sampleReservation(database.ReservationStatusCANCELLED),
				ReleasedTable: &released,
			}, nil
		},
	}
	rec := &recorder{}
	router := newReservationRouter(svc, rec)
	token := staffToken(t, uuid.New(), uuid.Nil, "CASHIER")
	path := "/reservations/" + uuid.NewString() + "/status"

	rr := doJSON(t, router, "PATCH", path, token, map[string]string{"status": "CANCELLED"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	data := dataOf(t, decodeResponse(t, rr))
	if data["released_table"].(map[string]interface{})["status"] != "AVAILABLE" {
		t.Errorf("released_table: got %v", data["released_table"])
	}
	if len(rec.events) != 1 || rec.events[0].TableID != tableID {
		t.Errorf("event: got %+v", rec.events)
	}

	rr = doJSON(t, router, "PATCH", path, token, map[string]string{"status": "COMPLETED"})
	expectError(t, rr, http.StatusConflict, service.ErrInvalidStatusTransition.Error())

	rr = doJSON(t, router, "PATCH", path, token, map[string]string{})
	expectError(t, rr, http.StatusBadRequest, "status is required")
}

func TestReservationHandler_List(t *testing.T) {
	var gotDate, gotStatus string
	svc := &mockReservationService{
		list: func(_ context.Context, date, status string) ([]database.Reservation, error) {
			gotDate, gotStatus = date, status
			return []database.Reservation{sampleReservation(database.ReservationStatusCONFIRMED)}, nil
		},
	}
	router := newReservationRouter(svc, &recorder{})

	rr := doJSON(t, router, "GET", "/reservations?date=2026-03-14&status=CONFIRMED", staffToken(t, uuid.New(), uuid.Nil, "CASHIER"), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if gotDate != "2026-03-14" || gotStatus != "CONFIRMED" {
		t.Errorf("filters: got %q %q", gotDate, gotStatus)
	}
	if n := len(decodeResponse(t, rr)["data"].([]interface{})); n != 1 {
		t.Errorf("reservations: got %d", n)
	}
}
