package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tableside/pos-api/internal/database"
	"github.com/tableside/pos-api/internal/middleware"
	"github.com/tableside/pos-api/internal/notify"
	"github.com/tableside/pos-api/internal/service"
)

const internalErrorMessage = "internal server error"

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// writeOK wraps data in the {"success": true, "data": ...} envelope.
func writeOK(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, map[string]interface{}{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}

// writeServiceError maps a service error onto an HTTP status. Expected
// errors are returned verbatim; anything else is logged and hidden.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, status, internalErrorMessage)
		return
	}
	writeError(w, status, err.Error())
}

var notFoundErrors = []error{
	service.ErrTableNotFound,
	service.ErrNoRunningOrder,
	service.ErrOrderNotFound,
	service.ErrShiftNotFound,
	service.ErrReservationNotFound,
	service.ErrMenuItemNotFound,
}

var conflictErrors = []error{
	service.ErrNoActiveShift,
	service.ErrShiftAlreadyOpen,
	service.ErrShiftAlreadyClosed,
	service.ErrTableUnavailable,
	service.ErrNoCapacity,
	service.ErrInsufficientCapacity,
	service.ErrReservationClosed,
	service.ErrInvalidStatusTransition,
	service.ErrOrderAlreadyPaid,
	service.ErrOrderTableMismatch,
	service.ErrMenuItemUnavailable,
}

var validationErrors = []error{
	service.ErrEmptyItems,
	service.ErrInvalidQuantity,
	service.ErrInvalidAmount,
	service.ErrPaymentMethodRequired,
	service.ErrInvalidPaymentMethod,
	service.ErrInvalidReservation,
}

func statusFor(err error) int {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return http.StatusNotFound
		}
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return http.StatusConflict
		}
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// sessionFrom builds the workflow session from the authenticated claims.
func sessionFrom(r *http.Request) (service.Session, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return service.Session{}, false
	}
	return service.Session{StaffID: claims.UserID, ShiftID: claims.ShiftID, Role: claims.Role}, true
}

func uuidParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// parseMoney parses an optional decimal string; "" is zero.
func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// --- Response types ---

func money(n pgtype.Numeric) string {
	return service.NumericToDecimal(n).StringFixed(2)
}

func optionalMoney(n pgtype.Numeric) *string {
	if !n.Valid {
		return nil
	}
	s := money(n)
	return &s
}

func optionalText(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func optionalUUID(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}

func optionalTime(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

type tableResponse struct {
	ID            uuid.UUID  `json:"id"`
	Number        int32      `json:"number"`
	Capacity      int32      `json:"capacity"`
	Status        string     `json:"status"`
	ReservationID *uuid.UUID `json:"reservation_id"`
}

func toTableResponse(t database.Table) tableResponse {
	return tableResponse{
		ID:            t.ID,
		Number:        t.Number,
		Capacity:      t.Capacity,
		Status:        string(t.Status),
		ReservationID: optionalUUID(t.ReservationID),
	}
}

func toTableResponses(tables []database.Table) []tableResponse {
	out := make([]tableResponse, len(tables))
	for i, t := range tables {
		out[i] = toTableResponse(t)
	}
	return out
}

type orderResponse struct {
	ID            uuid.UUID  `json:"id"`
	ShiftID       uuid.UUID  `json:"shift_id"`
	StaffID       uuid.UUID  `json:"staff_id"`
	TableID       *uuid.UUID `json:"table_id"`
	TotalAmount   string     `json:"total_amount"`
	Discount      string     `json:"discount"`
	PaymentMethod *string    `json:"payment_method"`
	Status        string     `json:"status"`
	IsPaid        bool       `json:"is_paid"`
	Notes         *string    `json:"notes"`
	PaidAt        *time.Time `json:"paid_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		ShiftID:     o.ShiftID,
		StaffID:     o.StaffID,
		TableID:     optionalUUID(o.TableID),
		TotalAmount: money(o.TotalAmount),
		Discount:    money(o.Discount),
		Status:      string(o.Status),
		IsPaid:      o.IsPaid,
		Notes:       optionalText(o.Notes),
		PaidAt:      optionalTime(o.PaidAt),
		CreatedAt:   o.CreatedAt,
	}
	if o.PaymentMethod.Valid {
		pm := string(o.PaymentMethod.PaymentMethod)
		resp.PaymentMethod = &pm
	}
	return resp
}

type orderItemResponse struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       *string   `json:"name"`
	Quantity   int32     `json:"quantity"`
	Price      *string   `json:"price"`
	TotalPrice string    `json:"total_price"`
}

func toOrderItemResponses(items []database.OrderItem) []orderItemResponse {
	out := make([]orderItemResponse, len(items))
	for i, it := range items {
		out[i] = orderItemResponse{
			ID:         it.ID,
			MenuItemID: it.MenuItemID,
			Name:       optionalText(it.Name),
			Quantity:   it.Quantity,
			Price:      optionalMoney(it.Price),
			TotalPrice: money(it.TotalPrice),
		}
	}
	return out
}

type orderResultResponse struct {
	Order   orderResponse       `json:"order"`
	Items   []orderItemResponse `json:"items"`
	Table   tableResponse       `json:"table"`
	Created bool                `json:"created"`
}

func toOrderResultResponse(res *service.OrderResult) orderResultResponse {
	return orderResultResponse{
		Order:   toOrderResponse(res.Order),
		Items:   toOrderItemResponses(res.Items),
		Table:   toTableResponse(res.Table),
		Created: res.Created,
	}
}

type resolvedLineResponse struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	Price      string    `json:"price"`
	Quantity   int32     `json:"quantity"`
	TotalPrice string    `json:"total_price"`
	Source     string    `json:"source"`
}

type runningOrderResponse struct {
	Table tableResponse          `json:"table"`
	Order orderResponse          `json:"order"`
	Lines []resolvedLineResponse `json:"lines"`
}

func toRunningOrderResponse(ro *service.RunningOrder) runningOrderResponse {
	lines := make([]resolvedLineResponse, len(ro.Lines))
	for i, l := range ro.Lines {
		lines[i] = resolvedLineResponse{
			ID:         l.ID,
			MenuItemID: l.MenuItemID,
			Name:       l.Name,
			Price:      l.Price.StringFixed(2),
			Quantity:   l.Quantity,
			TotalPrice: l.TotalPrice.StringFixed(2),
			Source:     string(l.Source),
		}
	}
	return runningOrderResponse{
		Table: toTableResponse(ro.Table),
		Order: toOrderResponse(ro.Order),
		Lines: lines,
	}
}

// customerOrderResponse is the order as shown on a customer device.
// Staff and shift identities are left out.
type customerOrderResponse struct {
	ID          uuid.UUID `json:"id"`
	Status      string    `json:"status"`
	TotalAmount string    `json:"total_amount"`
	Discount    string    `json:"discount"`
	Notes       *string   `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

func toCustomerOrderResponse(o database.Order) customerOrderResponse {
	return customerOrderResponse{
		ID:          o.ID,
		Status:      string(o.Status),
		TotalAmount: money(o.TotalAmount),
		Discount:    money(o.Discount),
		Notes:       optionalText(o.Notes),
		CreatedAt:   o.CreatedAt,
	}
}

type customerRunningOrderResponse struct {
	Table tableResponse          `json:"table"`
	Order customerOrderResponse  `json:"order"`
	Lines []resolvedLineResponse `json:"lines"`
}

func toCustomerRunningOrderResponse(ro *service.RunningOrder) customerRunningOrderResponse {
	full := toRunningOrderResponse(ro)
	return customerRunningOrderResponse{
		Table: full.Table,
		Order: toCustomerOrderResponse(ro.Order),
		Lines: full.Lines,
	}
}

type customerOrderResultResponse struct {
	Order   customerOrderResponse `json:"order"`
	Items   []orderItemResponse   `json:"items"`
	Table   tableResponse         `json:"table"`
	Created bool                  `json:"created"`
}

func toCustomerOrderResultResponse(res *service.OrderResult) customerOrderResultResponse {
	return customerOrderResultResponse{
		Order:   toCustomerOrderResponse(res.Order),
		Items:   toOrderItemResponses(res.Items),
		Table:   toTableResponse(res.Table),
		Created: res.Created,
	}
}

type menuItemResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Price       string    `json:"price"`
}

type menuSectionResponse struct {
	CategoryID uuid.UUID          `json:"category_id"`
	Category   string             `json:"category"`
	Items      []menuItemResponse `json:"items"`
}

func toMenuResponse(sections []service.MenuSection) []menuSectionResponse {
	out := make([]menuSectionResponse, len(sections))
	for i, s := range sections {
		items := make([]menuItemResponse, len(s.Items))
		for j, it := range s.Items {
			items[j] = menuItemResponse{
				ID:          it.ID,
				Name:        it.Name,
				Description: optionalText(it.Description),
				Price:       money(it.Price),
			}
		}
		out[i] = menuSectionResponse{CategoryID: s.Category.ID, Category: s.Category.Name, Items: items}
	}
	return out
}

type shiftResponse struct {
	ID                uuid.UUID  `json:"id"`
	StaffID           uuid.UUID  `json:"staff_id"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           *time.Time `json:"end_time"`
	OpeningBalance    string     `json:"opening_balance"`
	TotalCashSales    string     `json:"total_cash_sales"`
	TotalCardSales    string     `json:"total_card_sales"`
	TotalDigitalSales string     `json:"total_digital_sales"`
	ActualCashAtClose *string    `json:"actual_cash_at_close"`
	Status            string     `json:"status"`
}

func toShiftResponse(s database.Shift) shiftResponse {
	return shiftResponse{
		ID:                s.ID,
		StaffID:           s.StaffID,
		StartTime:         s.StartTime,
		EndTime:           optionalTime(s.EndTime),
		OpeningBalance:    money(s.OpeningBalance),
		TotalCashSales:    money(s.TotalCashSales),
		TotalCardSales:    money(s.TotalCardSales),
		TotalDigitalSales: money(s.TotalDigitalSales),
		ActualCashAtClose: optionalMoney(s.ActualCashAtClose),
		Status:            string(s.Status),
	}
}

type reservationResponse struct {
	ID            uuid.UUID  `json:"id"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone"`
	TableID       *uuid.UUID `json:"table_id"`
	Date          string     `json:"date"`
	StartTime     string     `json:"start_time"`
	EndTime       string     `json:"end_time"`
	PartySize     int32      `json:"party_size"`
	Status        string     `json:"status"`
	ReservedBy    *uuid.UUID `json:"reserved_by"`
	Notes         *string    `json:"notes"`
}

func toReservationResponse(r database.Reservation) reservationResponse {
	resp := reservationResponse{
		ID:            r.ID,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		TableID:       optionalUUID(r.TableID),
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		PartySize:     r.PartySize,
		Status:        string(r.Status),
		ReservedBy:    optionalUUID(r.ReservedBy),
		Notes:         optionalText(r.Notes),
	}
	if r.ReservationDate.Valid {
		resp.Date = r.ReservationDate.Time.Format("2006-01-02")
	}
	return resp
}

// publish delivers ev after a committed change. Delivery failures are
// logged and never fail the request.
func publish(r *http.Request, n notify.Notifier, ev notify.Event) {
	if n == nil {
		return
	}
	if err := n.Publish(r.Context(), ev); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("event", ev.Type).Msg("failed to publish event")
	}
}
