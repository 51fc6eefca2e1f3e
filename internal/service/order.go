package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tableside/pos-api/internal/database"
)

// Errors returned by the order service.
var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderAlreadyPaid      = errors.New("order already paid")
	ErrOrderTableMismatch    = errors.New("order does not belong to table")
	ErrEmptyItems            = errors.New("items are required")
	ErrInvalidQuantity       = errors.New("quantity must be > 0")
	ErrInvalidAmount         = errors.New("amounts must not be negative")
	ErrMenuItemNotFound      = errors.New("menu item not found")
	ErrMenuItemUnavailable   = errors.New("menu item is not available")
	ErrPaymentMethodRequired = errors.New("payment method is required")
	ErrInvalidPaymentMethod  = errors.New("invalid payment method")
)

// OrderStore defines the DB methods needed by the order workflows.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	ActiveShiftStore
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetRunningOrderByTable(ctx context.Context, tableID uuid.UUID) (database.Order, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	UpdateOrderDetails(ctx context.Context, arg database.UpdateOrderDetailsParams) (database.Order, error)
	SettleOrder(ctx context.Context, arg database.SettleOrderParams) (database.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	MergeOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	AddShiftSales(ctx context.Context, arg database.AddShiftSalesParams) (database.Shift, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// LineInput is one cart line. A zero Price means "use the catalog price";
// customer submissions always use the catalog price.
type LineInput struct {
	MenuItemID uuid.UUID
	Quantity   int32
	Price      decimal.Decimal
}

// TableOrderRequest is the complete cart for a table as edited by staff.
type TableOrderRequest struct {
	TableID       uuid.UUID
	Items         []LineInput
	Discount      decimal.Decimal
	PaymentMethod string
	Notes         string
}

// CustomerOrderRequest is a batch of lines submitted from a table.
type CustomerOrderRequest struct {
	TableID uuid.UUID
	Items   []LineInput
	Notes   string
}

// CloseTableRequest settles a table's running order.
type CloseTableRequest struct {
	OrderID       uuid.UUID
	TableID       uuid.UUID
	PaymentMethod string
	Discount      decimal.Decimal
	TotalAmount   decimal.Decimal
}

// OrderResult is the order as left by a workflow call.
type OrderResult struct {
	Order   database.Order
	Items   []database.OrderItem
	Table   database.Table
	Created bool
}

// CloseResult is the outcome of settling a table.
type CloseResult struct {
	Order database.Order
	Shift database.Shift
	Table database.Table
}

// OrderService runs the table order workflows. Each call is one transaction
// serialized per table by a row lock on the table.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// pricedLine is a validated cart line with its snapshot data.
type pricedLine struct {
	menuItemID uuid.UUID
	name       string
	quantity   int32
	price      decimal.Decimal
}

func (l pricedLine) total() decimal.Decimal {
	return l.price.Mul(decimal.NewFromInt32(l.quantity))
}

func (l pricedLine) params(orderID uuid.UUID) database.CreateOrderItemParams {
	return database.CreateOrderItemParams{
		OrderID:    orderID,
		MenuItemID: l.menuItemID,
		Name:       pgtype.Text{String: l.name, Valid: true},
		Quantity:   l.quantity,
		Price:      decimalToNumeric(l.price),
		TotalPrice: decimalToNumeric(l.total()),
	}
}

// CreateOrUpdateTableOrder replaces the table's running order with the given
// cart, or opens a new order on the active shift if the table has none.
// Lines, discount, payment method and notes are all overwritten. Use
// SubmitCustomerOrder to add to an order instead.
func (s *OrderService) CreateOrUpdateTableOrder(ctx context.Context, sess Session, req TableOrderRequest) (*OrderResult, error) {
	lines, err := collapseLines(req.Items)
	if err != nil {
		return nil, err
	}
	if req.Discount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	method := database.NullPaymentMethod{}
	if req.PaymentMethod != "" {
		pm, err := parsePaymentMethod(req.PaymentMethod)
		if err != nil {
			return nil, err
		}
		method = database.NullPaymentMethod{PaymentMethod: pm, Valid: true}
	}

	var result OrderResult
	err = runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		store := s.newStore(tx)
		result = OrderResult{}

		table, err := lockTable(ctx, store, req.TableID)
		if err != nil {
			return err
		}

		priced, err := priceLines(ctx, store, lines, false)
		if err != nil {
			return err
		}
		total := ComputeTotal(lineTotals(priced), req.Discount)

		order, err := store.GetRunningOrderByTable(ctx, req.TableID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			shift, err := ResolveActiveShift(ctx, store, sess.ShiftID)
			if err != nil {
				return err
			}
			order, err = store.CreateOrder(ctx, database.CreateOrderParams{
				ShiftID:       shift.ID,
				StaffID:       sess.StaffID,
				TableID:       pgtype.UUID{Bytes: req.TableID, Valid: true},
				TotalAmount:   decimalToNumeric(total),
				Discount:      decimalToNumeric(req.Discount),
				PaymentMethod: method,
				Notes:         textOrNull(req.Notes),
			})
			if err != nil {
				return fmt.Errorf("create order: %w", err)
			}
			result.Created = true
		case err != nil:
			return fmt.Errorf("get running order: %w", err)
		default:
			if err := store.DeleteOrderItems(ctx, order.ID); err != nil {
				return fmt.Errorf("delete order items: %w", err)
			}
			order, err = store.UpdateOrderDetails(ctx, database.UpdateOrderDetailsParams{
				ID:            order.ID,
				TotalAmount:   decimalToNumeric(total),
				Discount:      decimalToNumeric(req.Discount),
				PaymentMethod: method,
				Notes:         textOrNull(req.Notes),
			})
			if err != nil {
				return fmt.Errorf("update order: %w", err)
			}
		}

		for _, l := range priced {
			item, err := store.CreateOrderItem(ctx, l.params(order.ID))
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
			result.Items = append(result.Items, item)
		}

		if table.Status != database.TableStatusOCCUPIED {
			table, err = store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
				ID:            table.ID,
				Status:        database.TableStatusOCCUPIED,
				ReservationID: table.ReservationID,
			})
			if err != nil {
				return fmt.Errorf("occupy table: %w", err)
			}
		}

		result.Order = order
		result.Table = table
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitCustomerOrder adds lines to the table's running order, summing into
// existing lines for the same menu item, or opens a new order if the table
// has none. Prices always come from the catalog.
func (s *OrderService) SubmitCustomerOrder(ctx context.Context, req CustomerOrderRequest) (*OrderResult, error) {
	lines, err := collapseLines(req.Items)
	if err != nil {
		return nil, err
	}

	var result OrderResult
	err = runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		store := s.newStore(tx)
		result = OrderResult{}

		shift, err := ResolveActiveShift(ctx, store, uuid.Nil)
		if err != nil {
			return err
		}

		table, err := lockTable(ctx, store, req.TableID)
		if err != nil {
			return err
		}

		priced, err := priceLines(ctx, store, lines, true)
		if err != nil {
			return err
		}

		order, err := store.GetRunningOrderByTable(ctx, req.TableID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			order, err = store.CreateOrder(ctx, database.CreateOrderParams{
				ShiftID:     shift.ID,
				StaffID:     shift.StaffID,
				TableID:     pgtype.UUID{Bytes: req.TableID, Valid: true},
				TotalAmount: decimalToNumeric(ComputeTotal(lineTotals(priced), decimal.Zero)),
				Discount:    decimalToNumeric(decimal.Zero),
				Notes:       textOrNull(req.Notes),
			})
			if err != nil {
				return fmt.Errorf("create order: %w", err)
			}
			for _, l := range priced {
				item, err := store.CreateOrderItem(ctx, l.params(order.ID))
				if err != nil {
					return fmt.Errorf("create order item: %w", err)
				}
				result.Items = append(result.Items, item)
			}
			result.Created = true
		case err != nil:
			return fmt.Errorf("get running order: %w", err)
		default:
			for _, l := range priced {
				if _, err := store.MergeOrderItem(ctx, l.params(order.ID)); err != nil {
					return fmt.Errorf("merge order item: %w", err)
				}
			}
			items, err := store.ListOrderItems(ctx, order.ID)
			if err != nil {
				return fmt.Errorf("list order items: %w", err)
			}
			totals := make([]decimal.Decimal, 0, len(items))
			for _, it := range items {
				totals = append(totals, numericToDecimal(it.TotalPrice))
			}
			order, err = store.UpdateOrderDetails(ctx, database.UpdateOrderDetailsParams{
				ID:            order.ID,
				TotalAmount:   decimalToNumeric(ComputeTotal(totals, numericToDecimal(order.Discount))),
				Discount:      order.Discount,
				PaymentMethod: order.PaymentMethod,
				Notes:         joinNotes(order.Notes, req.Notes),
			})
			if err != nil {
				return fmt.Errorf("update order: %w", err)
			}
			result.Items = items
		}

		if table.Status != database.TableStatusOCCUPIED {
			table, err = store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
				ID:            table.ID,
				Status:        database.TableStatusOCCUPIED,
				ReservationID: table.ReservationID,
			})
			if err != nil {
				return fmt.Errorf("occupy table: %w", err)
			}
		}

		result.Order = order
		result.Table = table
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CloseTable settles the order, credits the active shift's bucket for the
// payment method and frees the table. It is the only path that marks an
// order paid. A second call for the same order returns ErrOrderAlreadyPaid.
func (s *OrderService) CloseTable(ctx context.Context, sess Session, req CloseTableRequest) (*CloseResult, error) {
	if req.PaymentMethod == "" {
		return nil, ErrPaymentMethodRequired
	}
	method, err := parsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if req.Discount.IsNegative() || req.TotalAmount.IsNegative() {
		return nil, ErrInvalidAmount
	}

	var result CloseResult
	err = runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		store := s.newStore(tx)

		if _, err := lockTable(ctx, store, req.TableID); err != nil {
			return err
		}

		order, err := store.GetOrder(ctx, req.OrderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("get order: %w", err)
		}
		if order.IsPaid {
			return ErrOrderAlreadyPaid
		}
		if !order.TableID.Valid || uuid.UUID(order.TableID.Bytes) != req.TableID {
			return ErrOrderTableMismatch
		}

		shift, err := ResolveActiveShift(ctx, store, sess.ShiftID)
		if err != nil {
			return err
		}

		order, err = store.SettleOrder(ctx, database.SettleOrderParams{
			ID:            order.ID,
			ShiftID:       shift.ID,
			StaffID:       sess.StaffID,
			PaymentMethod: database.NullPaymentMethod{PaymentMethod: method, Valid: true},
			Discount:      decimalToNumeric(req.Discount),
			TotalAmount:   decimalToNumeric(req.TotalAmount),
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderAlreadyPaid
			}
			return fmt.Errorf("settle order: %w", err)
		}

		cash, card, digital := decimal.Zero, decimal.Zero, decimal.Zero
		switch method {
		case database.PaymentMethodCASH:
			cash = req.TotalAmount
		case database.PaymentMethodCARD:
			card = req.TotalAmount
		default:
			digital = req.TotalAmount
		}
		shift, err = store.AddShiftSales(ctx, database.AddShiftSalesParams{
			ID:            shift.ID,
			CashAmount:    decimalToNumeric(cash),
			CardAmount:    decimalToNumeric(card),
			DigitalAmount: decimalToNumeric(digital),
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNoActiveShift
			}
			return fmt.Errorf("add shift sales: %w", err)
		}

		table, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
			ID:     req.TableID,
			Status: database.TableStatusAVAILABLE,
		})
		if err != nil {
			return fmt.Errorf("free table: %w", err)
		}

		result = CloseResult{Order: order, Shift: shift, Table: table}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// --- Helpers ---

type tableLocker interface {
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error)
}

func lockTable(ctx context.Context, store tableLocker, tableID uuid.UUID) (database.Table, error) {
	table, err := store.GetTableForUpdate(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Table{}, ErrTableNotFound
		}
		return database.Table{}, fmt.Errorf("lock table: %w", err)
	}
	return table, nil
}

// collapseLines validates the cart and sums quantities of repeated menu
// items, keeping first-seen order and the first line's price.
func collapseLines(items []LineInput) ([]LineInput, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	out := make([]LineInput, 0, len(items))
	index := make(map[uuid.UUID]int, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		if item.Price.IsNegative() {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidAmount)
		}
		if j, ok := index[item.MenuItemID]; ok {
			out[j].Quantity += item.Quantity
			continue
		}
		index[item.MenuItemID] = len(out)
		out = append(out, item)
	}
	return out, nil
}

// priceLines snapshots name and price from the catalog. With catalogOnly
// set, any supplied price is ignored.
func priceLines(ctx context.Context, store OrderStore, lines []LineInput, catalogOnly bool) ([]pricedLine, error) {
	priced := make([]pricedLine, 0, len(lines))
	for i, l := range lines {
		mi, err := store.GetMenuItem(ctx, l.MenuItemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get menu item: %w", i, err)
		}
		if !mi.IsAvailable {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrMenuItemUnavailable)
		}

		price := l.Price
		if catalogOnly || price.IsZero() {
			price = numericToDecimal(mi.Price)
		}
		priced = append(priced, pricedLine{
			menuItemID: mi.ID,
			name:       mi.Name,
			quantity:   l.Quantity,
			price:      price,
		})
	}
	return priced, nil
}

func lineTotals(lines []pricedLine) []decimal.Decimal {
	totals := make([]decimal.Decimal, 0, len(lines))
	for _, l := range lines {
		totals = append(totals, l.total())
	}
	return totals
}

func parsePaymentMethod(s string) (database.PaymentMethod, error) {
	switch pm := database.PaymentMethod(s); pm {
	case database.PaymentMethodCASH, database.PaymentMethodCARD,
		database.PaymentMethodINSTAPAY, database.PaymentMethodEWALLET:
		return pm, nil
	}
	return "", ErrInvalidPaymentMethod
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func joinNotes(existing pgtype.Text, added string) pgtype.Text {
	switch {
	case added == "":
		return existing
	case !existing.Valid || existing.String == "":
		return textOrNull(added)
	}
	return pgtype.Text{String: existing.String + " | " + added, Valid: true}
}
