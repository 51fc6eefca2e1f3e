package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tableside/pos-api/internal/notify"
	"github.com/tableside/pos-api/internal/service"
)

// CustomerHandler serves the table-scoped entry point a customer reaches by
// scanning the table's QR code. No authentication; the table id is the scope.
type CustomerHandler struct {
	tables   TableServicer
	orders   OrderServicer
	notifier notify.Notifier
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(tables TableServicer, orders OrderServicer, notifier notify.Notifier) *CustomerHandler {
	return &CustomerHandler{tables: tables, orders: orders, notifier: notifier}
}

// RegisterRoutes registers customer endpoints. Mounted at /t/{tid}.
func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/menu", h.Menu)
	r.Get("/order", h.Order)
	r.Post("/order/items", h.SubmitItems)
}

type customerOrderRequest struct {
	Items []lineRequest `json:"items"`
	Notes string        `json:"notes"`
}

type tableMenuResponse struct {
	Table tableResponse         `json:"table"`
	Menu  []menuSectionResponse `json:"menu"`
}

// Menu returns the table and the available menu.
func (h *CustomerHandler) Menu(w http.ResponseWriter, r *http.Request) {
	tableID, ok := uuidParam(r, "tid")
	if !ok {
		writeError(w, http.StatusNotFound, service.ErrTableNotFound.Error())
		return
	}
	res, err := h.tables.GetTableMenu(r.Context(), tableID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, tableMenuResponse{Table: toTableResponse(res.Table), Menu: toMenuResponse(res.Menu)})
}

// Order returns the table's running order.
func (h *CustomerHandler) Order(w http.ResponseWriter, r *http.Request) {
	tableID, ok := uuidParam(r, "tid")
	if !ok {
		writeError(w, http.StatusNotFound, service.ErrTableNotFound.Error())
		return
	}
	res, err := h.tables.GetRunningOrder(r.Context(), tableID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, toCustomerRunningOrderResponse(res))
}

// SubmitItems appends items to the table's running order. Prices in the
// request are ignored; the catalog price is always charged.
func (h *CustomerHandler) SubmitItems(w http.ResponseWriter, r *http.Request) {
	tableID, ok := uuidParam(r, "tid")
	if !ok {
		writeError(w, http.StatusNotFound, service.ErrTableNotFound.Error())
		return
	}

	var req customerOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	lines, err := parseLines(req.Items, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.orders.SubmitCustomerOrder(r.Context(), service.CustomerOrderRequest{
		TableID: tableID,
		Items:   lines,
		Notes:   req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	body := toCustomerOrderResultResponse(res)
	publish(r, h.notifier, notify.Event{
		Type:         notify.OrderUpdated,
		TableID:      tableID,
		Payload:      toOrderResultResponse(res),
		TablePayload: body,
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
