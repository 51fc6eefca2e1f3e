package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tableside/pos-api/internal/database"
	"github.com/tableside/pos-api/internal/notify"
	"github.com/tableside/pos-api/internal/service"
)

// ReservationServicer defines the methods needed by reservation handlers.
// Satisfied by *service.ReservationService.
type ReservationServicer interface {
	Assign(ctx context.Context, reservationID, tableID uuid.UUID) (*service.AssignResult, error)
	AutoAssign(ctx context.Context, partySize int32) (database.Table, error)
	CreateCustomerReservation(ctx context.Context, req service.ReservationRequest) (database.Reservation, error)
	CreateStaffReservation(ctx context.Context, sess service.Session, req service.ReservationRequest) (*service.AssignResult, error)
	UpdateStatus(ctx context.Context, reservationID uuid.UUID, status string) (*service.StatusResult, error)
	List(ctx context.Context, date, status string) ([]database.Reservation, error)
}

// ReservationHandler handles reservation endpoints.
type ReservationHandler struct {
	svc      ReservationServicer
	notifier notify.Notifier
}

// NewReservationHandler creates a new ReservationHandler.
func NewReservationHandler(svc ReservationServicer, notifier notify.Notifier) *ReservationHandler {
	return &ReservationHandler{svc: svc, notifier: notifier}
}

// RegisterRoutes registers staff reservation endpoints. Mounted at /reservations.
func (h *ReservationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/auto-assign", h.AutoAssign)
	r.Post("/{id}/assign", h.Assign)
	r.Patch("/{id}/status", h.UpdateStatus)
}

// RegisterPublicRoutes registers the customer self-service endpoint.
func (h *ReservationHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/reservations/request", h.Request)
}

// --- Request / Response types ---

type reservationRequest struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	PartySize     int32  `json:"party_size"`
	Notes         string `json:"notes"`
	TableID       string `json:"table_id"`
	Status        string `json:"status"`
}

func (req reservationRequest) toService() service.ReservationRequest {
	return service.ReservationRequest{
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Date:          req.Date,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		PartySize:     req.PartySize,
		Notes:         req.Notes,
		Status:        req.Status,
	}
}

type assignRequest struct {
	TableID string `json:"table_id"`
}

type autoAssignRequest struct {
	PartySize int32 `json:"party_size"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type assignResultResponse struct {
	Reservation   reservationResponse `json:"reservation"`
	Table         tableResponse       `json:"table"`
	ReleasedTable *tableResponse      `json:"released_table,omitempty"`
}

type statusResultResponse struct {
	Reservation   reservationResponse `json:"reservation"`
	ReleasedTable *tableResponse      `json:"released_table"`
}

// --- Handlers ---

// List filters reservations by optional ?date=YYYY-MM-DD and ?status=.
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.svc.List(r.Context(), q.Get("date"), q.Get("status"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]reservationResponse, len(list))
	for i, res := range list {
		out[i] = toReservationResponse(res)
	}
	writeOK(w, http.StatusOK, out)
}

// Create books a reservation on behalf of a customer and holds a table for it.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req reservationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in := req.toService()
	if req.TableID != "" {
		id, err := uuid.Parse(req.TableID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid table_id")
			return
		}
		in.TableID = id
	}

	res, err := h.svc.CreateStaffReservation(r.Context(), sess, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	body := toAssignResultResponse(res)
	publish(r, h.notifier, notify.Event{Type: notify.ReservationCreated, Payload: body.Reservation})
	publish(r, h.notifier, notify.Event{Type: notify.ReservationAssigned, TableID: res.Table.ID, Payload: body})
	writeOK(w, http.StatusCreated, body)
}

// Request is the customer self-service booking. The reservation starts
// PENDING without a table.
func (h *ReservationHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in := req.toService()
	in.Status = ""

	res, err := h.svc.CreateCustomerReservation(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	body := toReservationResponse(res)
	publish(r, h.notifier, notify.Event{Type: notify.ReservationCreated, Payload: body})
	writeOK(w, http.StatusCreated, body)
}

// Assign holds a specific table for the reservation.
func (h *ReservationHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	var req assignRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid table_id")
		return
	}

	res, err := h.svc.Assign(r.Context(), id, tableID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	body := toAssignResultResponse(res)
	publish(r, h.notifier, notify.Event{Type: notify.ReservationAssigned, TableID: tableID, Payload: body})
	if body.ReleasedTable != nil {
		publish(r, h.notifier, notify.Event{Type: notify.TableStatusChanged, TableID: body.ReleasedTable.ID, Payload: body.ReleasedTable})
	}
	writeOK(w, http.StatusOK, body)
}

// AutoAssign previews the table auto-assignment would pick for a party.
func (h *ReservationHandler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	var req autoAssignRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PartySize < 1 {
		writeError(w, http.StatusBadRequest, "party_size must be > 0")
		return
	}

	table, err := h.svc.AutoAssign(r.Context(), req.PartySize)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, toTableResponse(table))
}

// UpdateStatus moves a reservation through its lifecycle.
func (h *ReservationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	var req statusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	res, err := h.svc.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	body := statusResultResponse{Reservation: toReservationResponse(res.Reservation)}
	ev := notify.Event{Type: notify.ReservationStatusChanged, Payload: &body}
	if res.ReleasedTable != nil {
		t := toTableResponse(*res.ReleasedTable)
		body.ReleasedTable = &t
		ev.TableID = t.ID
	}
	publish(r, h.notifier, ev)
	writeOK(w, http.StatusOK, body)
}

func toAssignResultResponse(res *service.AssignResult) assignResultResponse {
	body := assignResultResponse{
		Reservation: toReservationResponse(res.Reservation),
		Table:       toTableResponse(res.Table),
	}
	if res.ReleasedTable != nil {
		t := toTableResponse(*res.ReleasedTable)
		body.ReleasedTable = &t
	}
	return body
}
