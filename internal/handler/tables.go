package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tableside/pos-api/internal/notify"
	"github.com/tableside/pos-api/internal/service"
)

// TableServicer defines the read-side methods needed by table handlers.
// Satisfied by *service.TableService.
type TableServicer interface {
	GetRunningTables(ctx context.Context) (*service.RunningTables, error)
	GetRunningOrder(ctx context.Context, tableID uuid.UUID) (*service.RunningOrder, error)
	GetTableMenu(ctx context.Context, tableID uuid.UUID) (*service.TableMenu, error)
	GetMenu(ctx context.Context) ([]service.MenuSection, error)
}

// OrderServicer defines the workflow methods needed by order handlers.
// Satisfied by *service.OrderService.
type OrderServicer interface {
	CreateOrUpdateTableOrder(ctx context.Context, sess service.Session, req service.TableOrderRequest) (*service.OrderResult, error)
	SubmitCustomerOrder(ctx context.Context, req service.CustomerOrderRequest) (*service.OrderResult, error)
	CloseTable(ctx context.Context, sess service.Session, req service.CloseTableRequest) (*service.CloseResult, error)
}

// TableHandler serves the staff floor: tables, their orders and settlement.
type TableHandler struct {
	tables   TableServicer
	orders   OrderServicer
	notifier notify.Notifier
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(tables TableServicer, orders OrderServicer, notifier notify.Notifier) *TableHandler {
	return &TableHandler{tables: tables, orders: orders, notifier: notifier}
}

// RegisterRoutes registers staff table endpoints. Mounted at /tables.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{tid}/order", h.GetOrder)
	r.Put("/{tid}/order", h.PutOrder)
	r.Post("/{tid}/close", h.Close)
}

// RegisterMenuRoutes registers the staff menu endpoint. Mounted at /menu.
func (h *TableHandler) RegisterMenuRoutes(r chi.Router) {
	r.Get("/", h.Menu)
}

// --- Request types ---

type lineRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
	Price      string `json:"price"`
}

type tableOrderRequest struct {
	Items         []lineRequest `json:"items"`
	Discount      string        `json:"discount"`
	PaymentMethod string        `json:"payment_method"`
	Notes         string        `json:"notes"`
}

type closeTableRequest struct {
	OrderID       string `json:"order_id"`
	PaymentMethod string `json:"payment_method"`
	Discount      string `json:"discount"`
	TotalAmount   string `json:"total_amount"`
}

type runningTablesResponse struct {
	Tables   []tableResponse `json:"tables"`
	Occupied []tableResponse `json:"occupied"`
}

type closeResultResponse struct {
	Order orderResponse `json:"order"`
	Shift shiftResponse `json:"shift"`
	Table tableResponse `json:"table"`
}

// --- Handlers ---

// List returns all tables and the occupied subset.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	res, err := h.tables.GetRunningTables(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, runningTablesResponse{
		Tables:   toTableResponses(res.Tables),
		Occupied: toTableResponses(res.Occupied),
	})
}

// GetOrder returns the table's running order with resolved lines.
func (h *TableHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	tableID, ok := uuidParam(r, "tid")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid table id")
		return
	}
	res, err := h.tables.GetRunningOrder(r.Context(), tableID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, toRunningOrderResponse(res))
}

// PutOrder replaces the table's cart, opening an order if none is running.
func (h *TableHandler) PutOrder(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	tableID, ok := uuidParam(r, "tid")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid table id")
		return
	}

	var req tableOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	lines, err := parseLines(req.Items, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	discount, err := parseMoney(req.Discount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid discount")
		return
	}

	res, err := h.orders.CreateOrUpdateTableOrder(r.Context(), sess, service.TableOrderRequest{
		TableID:       tableID,
		Items:         lines,
		Discount:      discount,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	body := toOrderResultResponse(res)
	publish(r, h.notifier, notify.Event{
		Type:         notify.OrderUpdated,
		TableID:      tableID,
		Payload:      body,
		TablePayload: toCustomerOrderResultResponse(res),
	})
	if res.Created {
		publish(r, h.notifier, notify.Event{Type: notify.TableStatusChanged, TableID: tableID, Payload: body.Table})
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeOK(w, status, body)
}

// Close settles the running order and frees the table.
func (h *TableHandler) Close(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	tableID, ok := uuidParam(r, "tid")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid table id")
		return
	}

	var req closeTableRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order_id")
		return
	}
	discount, err := parseMoney(req.Discount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid discount")
		return
	}
	total, err := parseMoney(req.TotalAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid total_amount")
		return
	}

	res, err := h.orders.CloseTable(r.Context(), sess, service.CloseTableRequest{
		OrderID:       orderID,
		TableID:       tableID,
		PaymentMethod: req.PaymentMethod,
		Discount:      discount,
		TotalAmount:   total,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	body := closeResultResponse{
		Order: toOrderResponse(res.Order),
		Shift: toShiftResponse(res.Shift),
		Table: toTableResponse(res.Table),
	}
	publish(r, h.notifier, notify.Event{Type: notify.TableClosed, TableID: tableID, Payload: body, TablePayload: body.Table})
	writeOK(w, http.StatusOK, body)
}

// Menu returns available menu items grouped by category.
func (h *TableHandler) Menu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.tables.GetMenu(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, toMenuResponse(menu))
}

// parseLines converts request lines. Prices are only read when allowPrice is set.
func parseLines(items []lineRequest, allowPrice bool) ([]service.LineInput, error) {
	lines := make([]service.LineInput, 0, len(items))
	for _, it := range items {
		id, err := uuid.Parse(it.MenuItemID)
		if err != nil {
			return nil, errInvalidMenuItemID
		}
		line := service.LineInput{MenuItemID: id, Quantity: it.Quantity}
		if allowPrice {
			price, err := parseMoney(it.Price)
			if err != nil {
				return nil, errInvalidPrice
			}
			line.Price = price
		}
		lines = append(lines, line)
	}
	return lines, nil
}

var (
	errInvalidMenuItemID = errors.New("invalid menu_item_id")
	errInvalidPrice      = errors.New("invalid price")
)
