package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/tableside/pos-api/internal/config"
	"github.com/tableside/pos-api/internal/database"
	"github.com/tableside/pos-api/internal/handler"
	"github.com/tableside/pos-api/internal/logger"
	mw "github.com/tableside/pos-api/internal/middleware"
	"github.com/tableside/pos-api/internal/notify"
	"github.com/tableside/pos-api/internal/service"
	"github.com/tableside/pos-api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Customer routes are scoped by table id; staff routes require a JWT.
func New(cfg *config.Config, pool *pgxpool.Pool, hub *ws.Hub, notifier notify.Notifier) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	queries := database.New(pool)

	tableService := service.NewTableService(pool, func(db database.DBTX) service.TableStore {
		return database.New(db)
	})
	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})
	shiftService := service.NewShiftService(pool, func(db database.DBTX) service.ShiftStore {
		return database.New(db)
	})
	reservationService := service.NewReservationService(pool, func(db database.DBTX) service.ReservationStore {
		return database.New(db)
	})

	tableHandler := handler.NewTableHandler(tableService, orderService, notifier)
	customerHandler := handler.NewCustomerHandler(tableService, orderService, notifier)
	shiftHandler := handler.NewShiftHandler(shiftService, cfg.JWTSecret, notifier)
	reservationHandler := handler.NewReservationHandler(reservationService, notifier)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	})

	// WebSocket routes stay outside the request timeout; they are long-lived.
	r.Get("/ws/staff", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeStaffWS(hub, cfg.JWTSecret, w, r)
	})
	r.Get("/ws/tables/{tid}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeTableWS(hub, queries, w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))

		authHandler.RegisterRoutes(r)
		reservationHandler.RegisterPublicRoutes(r)

		// Customer table-scoped entry point
		r.Route("/t/{tid}", customerHandler.RegisterRoutes)

		// Staff routes
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))

			r.Route("/tables", tableHandler.RegisterRoutes)
			r.Route("/menu", tableHandler.RegisterMenuRoutes)
			r.Route("/shifts", shiftHandler.RegisterRoutes)
			r.Route("/reservations", reservationHandler.RegisterRoutes)
		})
	})

	log.Info().Msg("router initialized")
	return r
}
