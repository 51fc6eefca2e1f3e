package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tableside/pos-api/internal/auth"
	"github.com/tableside/pos-api/internal/database"
	"github.com/tableside/pos-api/internal/enum"
	"github.com/tableside/pos-api/internal/middleware"
	"github.com/tableside/pos-api/internal/notify"
	"github.com/tableside/pos-api/internal/service"
)

// ShiftServicer defines the methods needed by shift handlers.
// Satisfied by *service.ShiftService.
type ShiftServicer interface {
	OpenShift(ctx context.Context, staffID uuid.UUID, openingBalance decimal.Decimal) (database.Shift, error)
	CloseShift(ctx context.Context, shiftID uuid.UUID, actualCash decimal.Decimal) (database.Shift, error)
	CurrentShift(ctx context.Context, sess service.Session) (database.Shift, error)
	Summary(ctx context.Context, shiftID uuid.UUID) (*service.ShiftSummary, error)
	ListShifts(ctx context.Context, limit, offset int32) ([]database.Shift, error)
}

// ShiftHandler handles cashier shift endpoints.
type ShiftHandler struct {
	svc       ShiftServicer
	jwtSecret string
	notifier  notify.Notifier
}

// NewShiftHandler creates a new ShiftHandler.
func NewShiftHandler(svc ShiftServicer, jwtSecret string, notifier notify.Notifier) *ShiftHandler {
	return &ShiftHandler{svc: svc, jwtSecret: jwtSecret, notifier: notifier}
}

// RegisterRoutes registers shift endpoints. Mounted at /shifts.
func (h *ShiftHandler) RegisterRoutes(r chi.Router) {
	r.Post("/open", h.Open)
	r.Get("/current", h.Current)
	r.Post("/{id}/close", h.Close)
	r.Get("/{id}/summary", h.Summary)
	r.With(middleware.RequireRole(enum.UserRoleAdmin)).Get("/", h.List)
}

type openShiftRequest struct {
	OpeningBalance string `json:"opening_balance"`
}

type closeShiftRequest struct {
	ActualCash string `json:"actual_cash"`
}

type openShiftResponse struct {
	Shift       shiftResponse `json:"shift"`
	AccessToken string        `json:"access_token"`
}

type shiftSummaryResponse struct {
	Shift        shiftResponse `json:"shift"`
	ExpectedCash string        `json:"expected_cash"`
	Discrepancy  *string       `json:"discrepancy"`
	PaidOrders   int64         `json:"paid_orders"`
}

// Open starts a shift for the caller and returns a token bound to it.
func (h *ShiftHandler) Open(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req openShiftRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	balance, err := parseMoney(req.OpeningBalance)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid opening_balance")
		return
	}

	shift, err := h.svc.OpenShift(r.Context(), claims.UserID, balance)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	token, err := auth.GenerateToken(h.jwtSecret, claims.UserID, shift.ID, claims.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	body := toShiftResponse(shift)
	publish(r, h.notifier, notify.Event{Type: notify.ShiftOpened, Payload: body})
	writeOK(w, http.StatusCreated, openShiftResponse{Shift: body, AccessToken: token})
}

// Current returns the shift the caller's operations are credited to.
func (h *ShiftHandler) Current(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	shift, err := h.svc.CurrentShift(r.Context(), sess)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, toShiftResponse(shift))
}

// Close ends a shift, recording the counted cash.
func (h *ShiftHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid shift id")
		return
	}

	var req closeShiftRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ActualCash == "" {
		writeError(w, http.StatusBadRequest, "actual_cash is required")
		return
	}
	cash, err := decimal.NewFromString(req.ActualCash)
	if err != nil || cash.IsNegative() {
		writeError(w, http.StatusBadRequest, "invalid actual_cash")
		return
	}

	shift, err := h.svc.CloseShift(r.Context(), id, cash)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	body := toShiftResponse(shift)
	publish(r, h.notifier, notify.Event{Type: notify.ShiftClosed, Payload: body})
	writeOK(w, http.StatusOK, body)
}

// Summary reports expected cash and the recorded discrepancy.
func (h *ShiftHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid shift id")
		return
	}
	sum, err := h.svc.Summary(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := shiftSummaryResponse{
		Shift:        toShiftResponse(sum.Shift),
		ExpectedCash: sum.ExpectedCash.StringFixed(2),
		PaidOrders:   sum.PaidOrders,
	}
	if sum.Discrepancy != nil {
		d := sum.Discrepancy.StringFixed(2)
		resp.Discrepancy = &d
	}
	writeOK(w, http.StatusOK, resp)
}

// List returns shift history, newest first.
func (h *ShiftHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	shifts, err := h.svc.ListShifts(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]shiftResponse, len(shifts))
	for i, s := range shifts {
		out[i] = toShiftResponse(s)
	}
	writeOK(w, http.StatusOK, out)
}

// pagination reads limit/offset; bad or missing values become zero and the
// service applies its defaults.
func pagination(r *http.Request) (int32, int32) {
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 32)
	offset, _ := strconv.ParseInt(r.URL.Query().Get("offset"), 10, 32)
	if offset < 0 {
		offset = 0
	}
	return int32(limit), int32(offset)
}
