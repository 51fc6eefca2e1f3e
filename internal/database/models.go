package database

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type TableStatus string

const (
	TableStatusAVAILABLE TableStatus = "AVAILABLE"
	TableStatusOCCUPIED  TableStatus = "OCCUPIED"
	TableStatusRESERVED  TableStatus = "RESERVED"
)

func (e *TableStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = TableStatus(s)
	case string:
		*e = TableStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for TableStatus: %T", src)
	}
	return nil
}

type ShiftStatus string

const (
	ShiftStatusOPEN   ShiftStatus = "OPEN"
	ShiftStatusCLOSED ShiftStatus = "CLOSED"
)

func (e *ShiftStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = ShiftStatus(s)
	case string:
		*e = ShiftStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for ShiftStatus: %T", src)
	}
	return nil
}

type OrderStatus string

const (
	OrderStatusPENDING   OrderStatus = "PENDING"
	OrderStatusCOMPLETED OrderStatus = "COMPLETED"
	OrderStatusCANCELLED OrderStatus = "CANCELLED"
)

func (e *OrderStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = OrderStatus(s)
	case string:
		*e = OrderStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for OrderStatus: %T", src)
	}
	return nil
}

type PaymentMethod string

const (
	PaymentMethodCASH     PaymentMethod = "CASH"
	PaymentMethodCARD     PaymentMethod = "CARD"
	PaymentMethodINSTAPAY PaymentMethod = "INSTAPAY"
	PaymentMethodEWALLET  PaymentMethod = "E_WALLET"
)

func (e *PaymentMethod) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = PaymentMethod(s)
	case string:
		*e = PaymentMethod(s)
	default:
		return fmt.Errorf("unsupported scan type for PaymentMethod: %T", src)
	}
	return nil
}

type NullPaymentMethod struct {
	PaymentMethod PaymentMethod
	Valid         bool // Valid is true if PaymentMethod is not NULL
}

// Scan implements the Scanner interface.
func (ns *NullPaymentMethod) Scan(value interface{}) error {
	if value == nil {
		ns.PaymentMethod, ns.Valid = "", false
		return nil
	}
	ns.Valid = true
	return ns.PaymentMethod.Scan(value)
}

// Value implements the driver Valuer interface.
func (ns NullPaymentMethod) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return string(ns.PaymentMethod), nil
}

type ReservationStatus string

const (
	ReservationStatusPENDING   ReservationStatus = "PENDING"
	ReservationStatusCONFIRMED ReservationStatus = "CONFIRMED"
	ReservationStatusCANCELLED ReservationStatus = "CANCELLED"
	ReservationStatusCOMPLETED ReservationStatus = "COMPLETED"
)

func (e *ReservationStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = ReservationStatus(s)
	case string:
		*e = ReservationStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for ReservationStatus: %T", src)
	}
	return nil
}

type NullReservationStatus struct {
	ReservationStatus ReservationStatus
	Valid             bool // Valid is true if ReservationStatus is not NULL
}

// Scan implements the Scanner interface.
func (ns *NullReservationStatus) Scan(value interface{}) error {
	if value == nil {
		ns.ReservationStatus, ns.Valid = "", false
		return nil
	}
	ns.Valid = true
	return ns.ReservationStatus.Scan(value)
}

// Value implements the driver Valuer interface.
func (ns NullReservationStatus) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return string(ns.ReservationStatus), nil
}

type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type MenuCategory struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	SortOrder int32     `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

type MenuItem struct {
	ID          uuid.UUID      `json:"id"`
	CategoryID  uuid.UUID      `json:"category_id"`
	Name        string         `json:"name"`
	Description pgtype.Text    `json:"description"`
	Price       pgtype.Numeric `json:"price"`
	IsAvailable bool           `json:"is_available"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type Table struct {
	ID            uuid.UUID   `json:"id"`
	Number        int32       `json:"number"`
	Capacity      int32       `json:"capacity"`
	Status        TableStatus `json:"status"`
	ReservationID pgtype.UUID `json:"reservation_id"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

type Shift struct {
	ID                uuid.UUID          `json:"id"`
	StaffID           uuid.UUID          `json:"staff_id"`
	StartTime         time.Time          `json:"start_time"`
	EndTime           pgtype.Timestamptz `json:"end_time"`
	OpeningBalance    pgtype.Numeric     `json:"opening_balance"`
	TotalCashSales    pgtype.Numeric     `json:"total_cash_sales"`
	TotalCardSales    pgtype.Numeric     `json:"total_card_sales"`
	TotalDigitalSales pgtype.Numeric     `json:"total_digital_sales"`
	ActualCashAtClose pgtype.Numeric     `json:"actual_cash_at_close"`
	Status            ShiftStatus        `json:"status"`
}

type Order struct {
	ID            uuid.UUID          `json:"id"`
	ShiftID       uuid.UUID          `json:"shift_id"`
	StaffID       uuid.UUID          `json:"staff_id"`
	TableID       pgtype.UUID        `json:"table_id"`
	TotalAmount   pgtype.Numeric     `json:"total_amount"`
	Discount      pgtype.Numeric     `json:"discount"`
	PaymentMethod NullPaymentMethod  `json:"payment_method"`
	Status        OrderStatus        `json:"status"`
	IsPaid        bool               `json:"is_paid"`
	Notes         pgtype.Text        `json:"notes"`
	PaidAt        pgtype.Timestamptz `json:"paid_at"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type OrderItem struct {
	ID         uuid.UUID      `json:"id"`
	OrderID    uuid.UUID      `json:"order_id"`
	MenuItemID uuid.UUID      `json:"menu_item_id"`
	Name       pgtype.Text    `json:"name"`
	Quantity   int32          `json:"quantity"`
	Price      pgtype.Numeric `json:"price"`
	TotalPrice pgtype.Numeric `json:"total_price"`
	CreatedAt  time.Time      `json:"created_at"`
}

type Reservation struct {
	ID              uuid.UUID         `json:"id"`
	CustomerName    string            `json:"customer_name"`
	CustomerPhone   string            `json:"customer_phone"`
	TableID         pgtype.UUID       `json:"table_id"`
	ReservationDate pgtype.Date       `json:"reservation_date"`
	StartTime       string            `json:"start_time"`
	EndTime         string            `json:"end_time"`
	PartySize       int32             `json:"party_size"`
	Status          ReservationStatus `json:"status"`
	ReservedBy      pgtype.UUID       `json:"reserved_by"`
	Notes           pgtype.Text       `json:"notes"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
