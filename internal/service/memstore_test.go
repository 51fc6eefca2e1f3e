package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tableside/pos-api/internal/database"
)

// memDB is an in-memory stand-in for Postgres. A transaction holds mu from
// Begin until Commit or Rollback, so transactions are fully serialized, and
// works on a private copy of the state that only Commit publishes.
type memDB struct {
	mu    sync.Mutex
	state *memState

	// commitErrs are returned, in order, by the next commits instead of
	// publishing the transaction's writes.
	commitErrs []error
	// fail makes the named store method return the error.
	fail   map[string]error
	begins int
	// locked tables are passed over by FindAvailableTableForParty, as
	// rows held by another transaction are under SKIP LOCKED.
	locked map[uuid.UUID]bool
	waits  int
}

type memState struct {
	tables       map[uuid.UUID]database.Table
	categories   []database.MenuCategory
	menu         map[uuid.UUID]database.MenuItem
	shifts       map[uuid.UUID]database.Shift
	orders       map[uuid.UUID]database.Order
	items        map[uuid.UUID][]database.OrderItem
	reservations map[uuid.UUID]database.Reservation
	clock        time.Time
}

func newMemDB() *memDB {
	return &memDB{state: &memState{
		tables:       map[uuid.UUID]database.Table{},
		menu:         map[uuid.UUID]database.MenuItem{},
		shifts:       map[uuid.UUID]database.Shift{},
		orders:       map[uuid.UUID]database.Order{},
		items:        map[uuid.UUID][]database.OrderItem{},
		reservations: map[uuid.UUID]database.Reservation{},
		clock:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		tables:       make(map[uuid.UUID]database.Table, len(s.tables)),
		categories:   append([]database.MenuCategory(nil), s.categories...),
		menu:         make(map[uuid.UUID]database.MenuItem, len(s.menu)),
		shifts:       make(map[uuid.UUID]database.Shift, len(s.shifts)),
		orders:       make(map[uuid.UUID]database.Order, len(s.orders)),
		items:        make(map[uuid.UUID][]database.OrderItem, len(s.items)),
		reservations: make(map[uuid.UUID]database.Reservation, len(s.reservations)),
		clock:        s.clock,
	}
	for k, v := range s.tables {
		c.tables[k] = v
	}
	for k, v := range s.menu {
		c.menu[k] = v
	}
	for k, v := range s.shifts {
		c.shifts[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]database.OrderItem(nil), v...)
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	return c
}

func (s *memState) now() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (db *memDB) Begin(ctx context.Context) (pgx.Tx, error) {
	db.mu.Lock()
	db.begins++
	return &memTx{db: db, state: db.state.clone()}, nil
}

// snapshot returns a copy of the committed state for assertions.
func (db *memDB) snapshot() *memState {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.clone()
}

// --- fixtures (written straight to committed state) ---

func (db *memDB) addTable(number, capacity int32) database.Table {
	db.mu.Lock()
	defer db.mu.Unlock()
	t := database.Table{
		ID:       uuid.New(),
		Number:   number,
		Capacity: capacity,
		Status:   database.TableStatusAVAILABLE,
	}
	db.state.tables[t.ID] = t
	return t
}

func (db *memDB) addMenuItem(name string, price string, available bool) database.MenuItem {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.state.categories) == 0 {
		db.state.categories = append(db.state.categories, database.MenuCategory{ID: uuid.New(), Name: "Mains"})
	}
	mi := database.MenuItem{
		ID:          uuid.New(),
		CategoryID:  db.state.categories[0].ID,
		Name:        name,
		Price:       decimalToNumeric(decimal.RequireFromString(price)),
		IsAvailable: available,
	}
	db.state.menu[mi.ID] = mi
	return mi
}

func (db *memDB) addOpenShift(staffID uuid.UUID, opening string) database.Shift {
	db.mu.Lock()
	defer db.mu.Unlock()
	sh := newShift(db.state, staffID, decimalToNumeric(decimal.RequireFromString(opening)))
	db.state.shifts[sh.ID] = sh
	return sh
}

func newShift(s *memState, staffID uuid.UUID, opening pgtype.Numeric) database.Shift {
	zero := decimalToNumeric(decimal.Zero)
	return database.Shift{
		ID:                uuid.New(),
		StaffID:           staffID,
		StartTime:         s.now(),
		OpeningBalance:    opening,
		TotalCashSales:    zero,
		TotalCardSales:    zero,
		TotalDigitalSales: zero,
		Status:            database.ShiftStatusOPEN,
	}
}

// --- memTx: pgx.Tx ---

type memTx struct {
	db    *memDB
	state *memState
	done  bool
}

func (tx *memTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }

func (tx *memTx) Commit(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	defer tx.db.mu.Unlock()
	if len(tx.db.commitErrs) > 0 {
		err := tx.db.commitErrs[0]
		tx.db.commitErrs = tx.db.commitErrs[1:]
		return err
	}
	tx.db.state = tx.state
	return nil
}

func (tx *memTx) Rollback(ctx context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.db.mu.Unlock()
	return nil
}

func (tx *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (tx *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (tx *memTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (tx *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (tx *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (tx *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (tx *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (tx *memTx) Conn() *pgx.Conn { panic("not implemented") }

// store factories for the services under test
func memOrderStore(db database.DBTX) OrderStore             { return db.(*memTx) }
func memShiftStore(db database.DBTX) ShiftStore             { return db.(*memTx) }
func memTableStore(db database.DBTX) TableStore             { return db.(*memTx) }
func memReservationStore(db database.DBTX) ReservationStore { return db.(*memTx) }

// --- store methods ---

func (tx *memTx) GetTable(ctx context.Context, id uuid.UUID) (database.Table, error) {
	t, ok := tx.state.tables[id]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	return t, nil
}

func (tx *memTx) GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error) {
	return tx.GetTable(ctx, id)
}

func (tx *memTx) ListTables(ctx context.Context) ([]database.Table, error) {
	out := make([]database.Table, 0, len(tx.state.tables))
	for _, t := range tx.state.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (tx *memTx) FindAvailableTableForParty(ctx context.Context, partySize int32) (database.Table, error) {
	tables, _ := tx.ListTables(ctx)
	for _, t := range tables {
		if tx.db.locked[t.ID] {
			continue
		}
		if t.Status == database.TableStatusAVAILABLE && t.Capacity >= partySize {
			return t, nil
		}
	}
	return database.Table{}, pgx.ErrNoRows
}

func (tx *memTx) WaitAvailableTableForParty(ctx context.Context, partySize int32) (database.Table, error) {
	tx.db.waits++
	tables, _ := tx.ListTables(ctx)
	for _, t := range tables {
		if t.Status == database.TableStatusAVAILABLE && t.Capacity >= partySize {
			return t, nil
		}
	}
	return database.Table{}, pgx.ErrNoRows
}

func (tx *memTx) UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error) {
	if err := tx.db.fail["UpdateTableStatus"]; err != nil {
		return database.Table{}, err
	}
	t, ok := tx.state.tables[arg.ID]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	t.Status = arg.Status
	t.ReservationID = arg.ReservationID
	t.UpdatedAt = tx.state.now()
	tx.state.tables[t.ID] = t
	return t, nil
}

func (tx *memTx) GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error) {
	mi, ok := tx.state.menu[id]
	if !ok {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	return mi, nil
}

func (tx *memTx) ListMenuCategories(ctx context.Context) ([]database.MenuCategory, error) {
	return append([]database.MenuCategory(nil), tx.state.categories...), nil
}

func (tx *memTx) ListAvailableMenuItems(ctx context.Context) ([]database.MenuItem, error) {
	var out []database.MenuItem
	for _, mi := range tx.state.menu {
		if mi.IsAvailable {
			out = append(out, mi)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (tx *memTx) GetShift(ctx context.Context, id uuid.UUID) (database.Shift, error) {
	sh, ok := tx.state.shifts[id]
	if !ok {
		return database.Shift{}, pgx.ErrNoRows
	}
	return sh, nil
}

func (tx *memTx) GetOpenShiftByStaff(ctx context.Context, staffID uuid.UUID) (database.Shift, error) {
	for _, sh := range tx.state.shifts {
		if sh.StaffID == staffID && sh.Status == database.ShiftStatusOPEN {
			return sh, nil
		}
	}
	return database.Shift{}, pgx.ErrNoRows
}

func (tx *memTx) GetLatestOpenShift(ctx context.Context) (database.Shift, error) {
	var latest *database.Shift
	for _, sh := range tx.state.shifts {
		if sh.Status != database.ShiftStatusOPEN {
			continue
		}
		if latest == nil || sh.StartTime.After(latest.StartTime) {
			sh := sh
			latest = &sh
		}
	}
	if latest == nil {
		return database.Shift{}, pgx.ErrNoRows
	}
	return *latest, nil
}

func (tx *memTx) CreateShift(ctx context.Context, arg database.CreateShiftParams) (database.Shift, error) {
	if _, err := tx.GetOpenShiftByStaff(ctx, arg.StaffID); err == nil {
		return database.Shift{}, &pgconn.PgError{Code: "23505", ConstraintName: "shifts_one_open_per_staff"}
	}
	sh := newShift(tx.state, arg.StaffID, arg.OpeningBalance)
	tx.state.shifts[sh.ID] = sh
	return sh, nil
}

func (tx *memTx) CloseShift(ctx context.Context, arg database.CloseShiftParams) (database.Shift, error) {
	sh, ok := tx.state.shifts[arg.ID]
	if !ok || sh.Status != database.ShiftStatusOPEN {
		return database.Shift{}, pgx.ErrNoRows
	}
	sh.Status = database.ShiftStatusCLOSED
	sh.EndTime = pgtype.Timestamptz{Time: tx.state.now(), Valid: true}
	sh.ActualCashAtClose = arg.ActualCashAtClose
	tx.state.shifts[sh.ID] = sh
	return sh, nil
}

func (tx *memTx) AddShiftSales(ctx context.Context, arg database.AddShiftSalesParams) (database.Shift, error) {
	if err := tx.db.fail["AddShiftSales"]; err != nil {
		return database.Shift{}, err
	}
	sh, ok := tx.state.shifts[arg.ID]
	if !ok || sh.Status != database.ShiftStatusOPEN {
		return database.Shift{}, pgx.ErrNoRows
	}
	sh.TotalCashSales = addNumeric(sh.TotalCashSales, arg.CashAmount)
	sh.TotalCardSales = addNumeric(sh.TotalCardSales, arg.CardAmount)
	sh.TotalDigitalSales = addNumeric(sh.TotalDigitalSales, arg.DigitalAmount)
	tx.state.shifts[sh.ID] = sh
	return sh, nil
}

func (tx *memTx) ListShifts(ctx context.Context, arg database.ListShiftsParams) ([]database.Shift, error) {
	out := make([]database.Shift, 0, len(tx.state.shifts))
	for _, sh := range tx.state.shifts {
		out = append(out, sh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if int(arg.Offset) >= len(out) {
		return []database.Shift{}, nil
	}
	out = out[arg.Offset:]
	if int(arg.Limit) < len(out) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (tx *memTx) CountPaidOrdersByShift(ctx context.Context, shiftID uuid.UUID) (int64, error) {
	var n int64
	for _, o := range tx.state.orders {
		if o.ShiftID == shiftID && o.IsPaid {
			n++
		}
	}
	return n, nil
}

func (tx *memTx) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	o, ok := tx.state.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (tx *memTx) GetRunningOrderByTable(ctx context.Context, tableID uuid.UUID) (database.Order, error) {
	for _, o := range tx.state.orders {
		if o.TableID.Valid && uuid.UUID(o.TableID.Bytes) == tableID && !o.IsPaid && o.Status == database.OrderStatusPENDING {
			return o, nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (tx *memTx) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	if arg.TableID.Valid {
		if _, err := tx.GetRunningOrderByTable(ctx, arg.TableID.Bytes); err == nil {
			return database.Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "orders_one_running_per_table"}
		}
	}
	now := tx.state.now()
	o := database.Order{
		ID:            uuid.New(),
		ShiftID:       arg.ShiftID,
		StaffID:       arg.StaffID,
		TableID:       arg.TableID,
		TotalAmount:   arg.TotalAmount,
		Discount:      arg.Discount,
		PaymentMethod: arg.PaymentMethod,
		Status:        database.OrderStatusPENDING,
		Notes:         arg.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	tx.state.orders[o.ID] = o
	return o, nil
}

func (tx *memTx) UpdateOrderDetails(ctx context.Context, arg database.UpdateOrderDetailsParams) (database.Order, error) {
	o, ok := tx.state.orders[arg.ID]
	if !ok || o.IsPaid {
		return database.Order{}, pgx.ErrNoRows
	}
	o.TotalAmount = arg.TotalAmount
	o.Discount = arg.Discount
	o.PaymentMethod = arg.PaymentMethod
	o.Notes = arg.Notes
	o.UpdatedAt = tx.state.now()
	tx.state.orders[o.ID] = o
	return o, nil
}

func (tx *memTx) SettleOrder(ctx context.Context, arg database.SettleOrderParams) (database.Order, error) {
	o, ok := tx.state.orders[arg.ID]
	if !ok || o.IsPaid || o.Status != database.OrderStatusPENDING {
		return database.Order{}, pgx.ErrNoRows
	}
	now := tx.state.now()
	o.ShiftID = arg.ShiftID
	o.StaffID = arg.StaffID
	o.PaymentMethod = arg.PaymentMethod
	o.Discount = arg.Discount
	o.TotalAmount = arg.TotalAmount
	o.IsPaid = true
	o.Status = database.OrderStatusCOMPLETED
	o.PaidAt = pgtype.Timestamptz{Time: now, Valid: true}
	o.UpdatedAt = now
	tx.state.orders[o.ID] = o
	return o, nil
}

func (tx *memTx) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return append([]database.OrderItem{}, tx.state.items[orderID]...), nil
}

func (tx *memTx) DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error {
	delete(tx.state.items, orderID)
	return nil
}

func (tx *memTx) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	for _, it := range tx.state.items[arg.OrderID] {
		if it.MenuItemID == arg.MenuItemID {
			return database.OrderItem{}, &pgconn.PgError{Code: "23505", ConstraintName: "order_items_order_id_menu_item_id_key"}
		}
	}
	it := database.OrderItem{
		ID:         uuid.New(),
		OrderID:    arg.OrderID,
		MenuItemID: arg.MenuItemID,
		Name:       arg.Name,
		Quantity:   arg.Quantity,
		Price:      arg.Price,
		TotalPrice: arg.TotalPrice,
		CreatedAt:  tx.state.now(),
	}
	tx.state.items[arg.OrderID] = append(tx.state.items[arg.OrderID], it)
	return it, nil
}

func (tx *memTx) MergeOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	if err := tx.db.fail["MergeOrderItem"]; err != nil {
		return database.OrderItem{}, err
	}
	items := tx.state.items[arg.OrderID]
	for i, it := range items {
		if it.MenuItemID == arg.MenuItemID {
			it.Quantity += arg.Quantity
			it.TotalPrice = addNumeric(it.TotalPrice, arg.TotalPrice)
			items[i] = it
			return it, nil
		}
	}
	return tx.CreateOrderItem(ctx, arg)
}

func (tx *memTx) CreateReservation(ctx context.Context, arg database.CreateReservationParams) (database.Reservation, error) {
	now := tx.state.now()
	r := database.Reservation{
		ID:              uuid.New(),
		CustomerName:    arg.CustomerName,
		CustomerPhone:   arg.CustomerPhone,
		ReservationDate: arg.ReservationDate,
		StartTime:       arg.StartTime,
		EndTime:         arg.EndTime,
		PartySize:       arg.PartySize,
		Status:          arg.Status,
		ReservedBy:      arg.ReservedBy,
		Notes:           arg.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	tx.state.reservations[r.ID] = r
	return r, nil
}

func (tx *memTx) GetReservation(ctx context.Context, id uuid.UUID) (database.Reservation, error) {
	r, ok := tx.state.reservations[id]
	if !ok {
		return database.Reservation{}, pgx.ErrNoRows
	}
	return r, nil
}

func (tx *memTx) GetReservationForUpdate(ctx context.Context, id uuid.UUID) (database.Reservation, error) {
	return tx.GetReservation(ctx, id)
}

func (tx *memTx) ListReservations(ctx context.Context, arg database.ListReservationsParams) ([]database.Reservation, error) {
	out := []database.Reservation{}
	for _, r := range tx.state.reservations {
		if arg.Date.Valid && !r.ReservationDate.Time.Equal(arg.Date.Time) {
			continue
		}
		if arg.Status.Valid && r.Status != arg.Status.ReservationStatus {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (tx *memTx) SetReservationTable(ctx context.Context, arg database.SetReservationTableParams) (database.Reservation, error) {
	r, ok := tx.state.reservations[arg.ID]
	if !ok {
		return database.Reservation{}, pgx.ErrNoRows
	}
	r.TableID = arg.TableID
	tx.state.reservations[r.ID] = r
	return r, nil
}

func (tx *memTx) UpdateReservationStatus(ctx context.Context, arg database.UpdateReservationStatusParams) (database.Reservation, error) {
	r, ok := tx.state.reservations[arg.ID]
	if !ok {
		return database.Reservation{}, pgx.ErrNoRows
	}
	r.Status = arg.Status
	tx.state.reservations[r.ID] = r
	return r, nil
}

func addNumeric(a, b pgtype.Numeric) pgtype.Numeric {
	return decimalToNumeric(numericToDecimal(a).Add(numericToDecimal(b)))
}

// runningOrders counts unpaid PENDING orders per table in committed state.
func (s *memState) runningOrders() map[uuid.UUID]int {
	out := map[uuid.UUID]int{}
	for _, o := range s.orders {
		if o.TableID.Valid && !o.IsPaid && o.Status == database.OrderStatusPENDING {
			out[uuid.UUID(o.TableID.Bytes)]++
		}
	}
	return out
}

var errBoom = errors.New("boom")
