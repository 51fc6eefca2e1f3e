package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tableside/pos-api/internal/database"
)

// Errors returned by the table service.
var (
	ErrTableNotFound  = errors.New("table not found")
	ErrNoRunningOrder = errors.New("table has no running order")
)

// UnknownItemLabel is shown for order lines whose menu item no longer exists.
const UnknownItemLabel = "Unknown item"

// UnknownMenuItem stands in for a catalog record that cannot be found.
var UnknownMenuItem = database.MenuItem{Name: UnknownItemLabel}

// LineSource records which tier of ResolveLine produced the display data.
type LineSource string

const (
	LineSourceSnapshot LineSource = "snapshot"
	LineSourceCatalog  LineSource = "catalog"
	LineSourceUnknown  LineSource = "unknown"
)

// ResolvedLine is an order line ready for display.
type ResolvedLine struct {
	ID         uuid.UUID       `json:"id"`
	MenuItemID uuid.UUID       `json:"menu_item_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int32           `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Source     LineSource      `json:"source"`
}

// ResolveLine turns a stored line into display data. A complete snapshot
// always wins. Otherwise the live catalog record fills the missing fields,
// and when catalog is nil the UnknownMenuItem placeholder is used.
func ResolveLine(item database.OrderItem, catalog *database.MenuItem) ResolvedLine {
	line := ResolvedLine{
		ID:         item.ID,
		MenuItemID: item.MenuItemID,
		Quantity:   item.Quantity,
		TotalPrice: numericToDecimal(item.TotalPrice),
		Source:     LineSourceSnapshot,
	}
	if item.Name.Valid && item.Price.Valid {
		line.Name = item.Name.String
		line.Price = numericToDecimal(item.Price)
		return line
	}

	ref := catalog
	line.Source = LineSourceCatalog
	if ref == nil {
		ref = &UnknownMenuItem
		line.Source = LineSourceUnknown
	}

	line.Name = ref.Name
	if item.Name.Valid {
		line.Name = item.Name.String
	}
	line.Price = numericToDecimal(ref.Price)
	if item.Price.Valid {
		line.Price = numericToDecimal(item.Price)
	}
	return line
}

// TableStore defines the DB methods needed for table and menu reads.
// Satisfied by *database.Queries.
type TableStore interface {
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	ListTables(ctx context.Context) ([]database.Table, error)
	GetRunningOrderByTable(ctx context.Context, tableID uuid.UUID) (database.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	ListMenuCategories(ctx context.Context) ([]database.MenuCategory, error)
	ListAvailableMenuItems(ctx context.Context) ([]database.MenuItem, error)
}

// NewTableStore creates a TableStore from a DBTX (pool or tx).
type NewTableStore func(db database.DBTX) TableStore

// RunningTables is the floor view: every table plus the occupied subset.
type RunningTables struct {
	Tables   []database.Table `json:"tables"`
	Occupied []database.Table `json:"occupied"`
}

// RunningOrder is a table's unpaid order with display-ready lines.
type RunningOrder struct {
	Table database.Table `json:"table"`
	Order database.Order `json:"order"`
	Lines []ResolvedLine `json:"lines"`
}

// MenuSection groups available menu items under their category.
type MenuSection struct {
	Category database.MenuCategory `json:"category"`
	Items    []database.MenuItem   `json:"items"`
}

// TableMenu is what a customer sees at a table-scoped entry point.
type TableMenu struct {
	Table database.Table `json:"table"`
	Menu  []MenuSection  `json:"menu"`
}

// TableService serves read-side views of tables, orders and the menu.
type TableService struct {
	pool     TxBeginner
	newStore NewTableStore
}

// NewTableService creates a new TableService.
func NewTableService(pool TxBeginner, newStore NewTableStore) *TableService {
	return &TableService{pool: pool, newStore: newStore}
}

func (s *TableService) GetRunningTables(ctx context.Context) (*RunningTables, error) {
	var result RunningTables
	err := runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		tables, err := s.newStore(tx).ListTables(ctx)
		if err != nil {
			return fmt.Errorf("list tables: %w", err)
		}
		result = RunningTables{Tables: tables, Occupied: []database.Table{}}
		for _, t := range tables {
			if t.Status == database.TableStatusOCCUPIED {
				result.Occupied = append(result.Occupied, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *TableService) GetRunningOrder(ctx context.Context, tableID uuid.UUID) (*RunningOrder, error) {
	var result RunningOrder
	err := runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		store := s.newStore(tx)

		table, err := store.GetTable(ctx, tableID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTableNotFound
			}
			return fmt.Errorf("get table: %w", err)
		}

		order, err := store.GetRunningOrderByTable(ctx, tableID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNoRunningOrder
			}
			return fmt.Errorf("get running order: %w", err)
		}

		items, err := store.ListOrderItems(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}

		lines := make([]ResolvedLine, 0, len(items))
		for _, item := range items {
			var catalog *database.MenuItem
			if !item.Name.Valid || !item.Price.Valid {
				mi, err := store.GetMenuItem(ctx, item.MenuItemID)
				switch {
				case err == nil:
					catalog = &mi
				case !errors.Is(err, pgx.ErrNoRows):
					return fmt.Errorf("get menu item: %w", err)
				}
			}
			lines = append(lines, ResolveLine(item, catalog))
		}

		result = RunningOrder{Table: table, Order: order, Lines: lines}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTableMenu resolves a customer's table and returns it with the menu.
func (s *TableService) GetTableMenu(ctx context.Context, tableID uuid.UUID) (*TableMenu, error) {
	var result TableMenu
	err := runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		store := s.newStore(tx)

		table, err := store.GetTable(ctx, tableID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTableNotFound
			}
			return fmt.Errorf("get table: %w", err)
		}

		menu, err := loadMenu(ctx, store)
		if err != nil {
			return err
		}
		result = TableMenu{Table: table, Menu: menu}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetMenu returns the available menu grouped by category.
func (s *TableService) GetMenu(ctx context.Context) ([]MenuSection, error) {
	var menu []MenuSection
	err := runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		menu, err = loadMenu(ctx, s.newStore(tx))
		return err
	})
	if err != nil {
		return nil, err
	}
	return menu, nil
}

func loadMenu(ctx context.Context, store TableStore) ([]MenuSection, error) {
	categories, err := store.ListMenuCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	items, err := store.ListAvailableMenuItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}

	byCategory := make(map[uuid.UUID][]database.MenuItem, len(categories))
	for _, item := range items {
		byCategory[item.CategoryID] = append(byCategory[item.CategoryID], item)
	}

	sections := make([]MenuSection, 0, len(categories))
	for _, c := range categories {
		if len(byCategory[c.ID]) == 0 {
			continue
		}
		sections = append(sections, MenuSection{Category: c, Items: byCategory[c.ID]})
	}
	return sections, nil
}
