package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, shift_id, staff_id, table_id, total_amount, discount, payment_method, status, is_paid, notes, paid_at, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.ShiftID,
		&i.StaffID,
		&i.TableID,
		&i.TotalAmount,
		&i.Discount,
		&i.PaymentMethod,
		&i.Status,
		&i.IsPaid,
		&i.Notes,
		&i.PaidAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (shift_id, staff_id, table_id, total_amount, discount, payment_method, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	ShiftID       uuid.UUID         `json:"shift_id"`
	StaffID       uuid.UUID         `json:"staff_id"`
	TableID       pgtype.UUID       `json:"table_id"`
	TotalAmount   pgtype.Numeric    `json:"total_amount"`
	Discount      pgtype.Numeric    `json:"discount"`
	PaymentMethod NullPaymentMethod `json:"payment_method"`
	Notes         pgtype.Text       `json:"notes"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.ShiftID,
		arg.StaffID,
		arg.TableID,
		arg.TotalAmount,
		arg.Discount,
		arg.PaymentMethod,
		arg.Notes,
	))
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getRunningOrderByTable = `-- name: GetRunningOrderByTable :one
SELECT ` + orderColumns + ` FROM orders
WHERE table_id = $1 AND is_paid = false AND status = 'PENDING'
`

func (q *Queries) GetRunningOrderByTable(ctx context.Context, tableID uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getRunningOrderByTable, tableID))
}

const updateOrderDetails = `-- name: UpdateOrderDetails :one
UPDATE orders
SET total_amount = $2, discount = $3, payment_method = $4, notes = $5, updated_at = now()
WHERE id = $1 AND is_paid = false
RETURNING ` + orderColumns

type UpdateOrderDetailsParams struct {
	ID            uuid.UUID         `json:"id"`
	TotalAmount   pgtype.Numeric    `json:"total_amount"`
	Discount      pgtype.Numeric    `json:"discount"`
	PaymentMethod NullPaymentMethod `json:"payment_method"`
	Notes         pgtype.Text       `json:"notes"`
}

func (q *Queries) UpdateOrderDetails(ctx context.Context, arg UpdateOrderDetailsParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderDetails,
		arg.ID,
		arg.TotalAmount,
		arg.Discount,
		arg.PaymentMethod,
		arg.Notes,
	))
}

const settleOrder = `-- name: SettleOrder :one
UPDATE orders
SET shift_id = $2,
    staff_id = $3,
    payment_method = $4,
    discount = $5,
    total_amount = $6,
    is_paid = true,
    status = 'COMPLETED',
    paid_at = now(),
    updated_at = now()
WHERE id = $1 AND is_paid = false AND status = 'PENDING'
RETURNING ` + orderColumns

type SettleOrderParams struct {
	ID            uuid.UUID         `json:"id"`
	ShiftID       uuid.UUID         `json:"shift_id"`
	StaffID       uuid.UUID         `json:"staff_id"`
	PaymentMethod NullPaymentMethod `json:"payment_method"`
	Discount      pgtype.Numeric    `json:"discount"`
	TotalAmount   pgtype.Numeric    `json:"total_amount"`
}

// SettleOrder marks a running order paid. Returns pgx.ErrNoRows when the
// order is missing or already settled, so a repeated call credits nothing.
func (q *Queries) SettleOrder(ctx context.Context, arg SettleOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, settleOrder,
		arg.ID,
		arg.ShiftID,
		arg.StaffID,
		arg.PaymentMethod,
		arg.Discount,
		arg.TotalAmount,
	))
}

const listOrdersByShift = `-- name: ListOrdersByShift :many
SELECT ` + orderColumns + ` FROM orders
WHERE shift_id = $1
ORDER BY created_at
`

func (q *Queries) ListOrdersByShift(ctx context.Context, shiftID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByShift, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
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

const orderItemColumns = `id, order_id, menu_item_id, name, quantity, price, total_price, created_at`

func scanOrderItem(row interface{ Scan(...interface{}) error }) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.MenuItemID,
		&i.Name,
		&i.Quantity,
		&i.Price,
		&i.TotalPrice,
		&i.CreatedAt,
	)
	return i, err
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, menu_item_id, name, quantity, price, total_price)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID    uuid.UUID      `json:"order_id"`
	MenuItemID uuid.UUID      `json:"menu_item_id"`
	Name       pgtype.Text    `json:"name"`
	Quantity   int32          `json:"quantity"`
	Price      pgtype.Numeric `json:"price"`
	TotalPrice pgtype.Numeric `json:"total_price"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.MenuItemID,
		arg.Name,
		arg.Quantity,
		arg.Price,
		arg.TotalPrice,
	))
}

const mergeOrderItem = `-- name: MergeOrderItem :one
INSERT INTO order_items (order_id, menu_item_id, name, quantity, price, total_price)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (order_id, menu_item_id) DO UPDATE
SET quantity    = order_items.quantity + EXCLUDED.quantity,
    total_price = order_items.total_price + EXCLUDED.total_price
RETURNING ` + orderItemColumns

// MergeOrderItem appends a line, or adds quantity and total price to the
// existing line for the same menu item. The existing snapshot is kept.
func (q *Queries) MergeOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, mergeOrderItem,
		arg.OrderID,
		arg.MenuItemID,
		arg.Name,
		arg.Quantity,
		arg.Price,
		arg.TotalPrice,
	))
}

const deleteOrderItems = `-- name: DeleteOrderItems :exec
DELETE FROM order_items
WHERE order_id = $1
`

func (q *Queries) DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrderItems, orderID)
	return err
}

const listOrderItems = `-- name: ListOrderItems :many
SELECT ` + orderItemColumns + ` FROM order_items
WHERE order_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		i, err := scanOrderItem(rows)
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
