package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tableside/pos-api/internal/config"
	"github.com/tableside/pos-api/internal/database"
	"github.com/tableside/pos-api/internal/enum"
	"github.com/tableside/pos-api/internal/logger"
	"github.com/tableside/pos-api/internal/service"
	"golang.org/x/crypto/bcrypt"
)

type seedUser struct {
	email, password, name, role string
}

type seedItem struct {
	name, description, price string
}

type seedCategory struct {
	name  string
	items []seedItem
}

// tableLayout is number -> capacity.
var tableLayout = []struct{ number, capacity int32 }{
	{1, 2}, {2, 2}, {3, 4}, {4, 4}, {5, 4}, {6, 6}, {7, 6}, {8, 8},
}

var starterMenu = []seedCategory{
	{"Drinks", []seedItem{
		{"Espresso", "Double shot", "35.00"},
		{"Mint Tea", "Fresh mint leaves", "25.00"},
		{"Orange Juice", "Freshly squeezed", "40.00"},
	}},
	{"Mains", []seedItem{
		{"Koshary", "Rice, lentils, pasta and tomato sauce", "65.00"},
		{"Grilled Chicken", "Half chicken with rice", "150.00"},
		{"Falafel Plate", "With tahini and salad", "55.00"},
	}},
	{"Desserts", []seedItem{
		{"Om Ali", "Warm bread pudding", "60.00"},
		{"Basbousa", "Semolina cake", "45.00"},
	}},
}

func main() {
	// CLI flags
	adminEmail := flag.String("admin-email", "", "Admin email address")
	adminPassword := flag.String("admin-password", "", "Admin password")
	cashierEmail := flag.String("cashier-email", "", "Cashier email address")
	cashierPassword := flag.String("cashier-password", "", "Cashier password")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, true)

	users := []seedUser{
		{
			email:    firstNonEmpty(*adminEmail, os.Getenv("SEED_ADMIN_EMAIL"), "admin@tableside.local"),
			password: firstNonEmpty(*adminPassword, os.Getenv("SEED_ADMIN_PASSWORD"), ""),
			name:     "Admin",
			role:     enum.UserRoleAdmin,
		},
		{
			email:    firstNonEmpty(*cashierEmail, os.Getenv("SEED_CASHIER_EMAIL"), "cashier@tableside.local"),
			password: firstNonEmpty(*cashierPassword, os.Getenv("SEED_CASHIER_PASSWORD"), ""),
			name:     "Cashier",
			role:     enum.UserRoleCashier,
		},
	}
	for i := range users {
		if users[i].password == "" {
			users[i].password = "password123"
			log.Warn().Str("email", users[i].email).Msg("using default password 'password123', change immediately in production")
		}
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("unable to ping database")
	}

	if err := seed(ctx, pool, users); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
	log.Info().Msg("seed completed successfully")
}

// seed writes everything in one transaction; existing rows are left alone.
func seed(ctx context.Context, pool *pgxpool.Pool, users []seedUser) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	q := database.New(tx)

	for _, u := range users {
		if err := seedStaff(ctx, q, u); err != nil {
			return err
		}
	}
	for _, t := range tableLayout {
		if err := seedTable(ctx, q, t.number, t.capacity); err != nil {
			return err
		}
	}
	for i, c := range starterMenu {
		if err := seedCategoryItems(ctx, q, c, int32(i)); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func seedStaff(ctx context.Context, q *database.Queries, u seedUser) error {
	existing, err := q.GetUserByEmail(ctx, u.email)
	if err == nil {
		log.Info().Str("email", u.email).Str("id", existing.ID.String()).Msg("user already exists, skipping")
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user, err := q.CreateUser(ctx, database.CreateUserParams{
		Email:          u.email,
		HashedPassword: string(hashed),
		FullName:       u.name,
		Role:           u.role,
	})
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	log.Info().Str("email", u.email).Str("role", u.role).Str("id", user.ID.String()).Msg("created user")
	return nil
}

func seedTable(ctx context.Context, q *database.Queries, number, capacity int32) error {
	_, err := q.GetTableByNumber(ctx, number)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check table %d: %w", number, err)
	}

	table, err := q.CreateTable(ctx, database.CreateTableParams{Number: number, Capacity: capacity})
	if err != nil {
		return fmt.Errorf("insert table %d: %w", number, err)
	}
	log.Info().Int32("number", number).Str("id", table.ID.String()).Msg("created table")
	return nil
}

func seedCategoryItems(ctx context.Context, q *database.Queries, c seedCategory, sortOrder int32) error {
	cat, err := q.GetMenuCategoryByName(ctx, c.name)
	if errors.Is(err, pgx.ErrNoRows) {
		cat, err = q.CreateMenuCategory(ctx, database.CreateMenuCategoryParams{Name: c.name, SortOrder: sortOrder})
	}
	if err != nil {
		return fmt.Errorf("category %q: %w", c.name, err)
	}

	// CreateMenuItem upserts on (category_id, name).
	for _, it := range c.items {
		_, err := q.CreateMenuItem(ctx, database.CreateMenuItemParams{
			CategoryID:  cat.ID,
			Name:        it.name,
			Description: pgtype.Text{String: it.description, Valid: it.description != ""},
			Price:       service.DecimalToNumeric(decimal.RequireFromString(it.price)),
			IsAvailable: true,
		})
		if err != nil {
			return fmt.Errorf("menu item %q: %w", it.name, err)
		}
	}
	log.Info().Str("category", c.name).Int("items", len(c.items)).Msg("seeded menu category")
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
