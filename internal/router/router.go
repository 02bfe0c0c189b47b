package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smtech/caterer-api/internal/config"
	"github.com/smtech/caterer-api/internal/database"
	"github.com/smtech/caterer-api/internal/handler"
	mw "github.com/smtech/caterer-api/internal/middleware"
	"github.com/smtech/caterer-api/internal/service"
	"github.com/smtech/caterer-api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, tenant scoping, and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // dev frontend
			"https://app.caterer.example.com",
			"https://stg-app.caterer.example.com",
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/tenants/{tid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Tenant administration is restricted to platform admins.
		tenantHandler := handler.NewTenantHandler(queries)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole("ADMIN"))
			r.Route("/tenants", func(r chi.Router) {
				r.Get("/", tenantHandler.List)
				r.Post("/", tenantHandler.Create)
			})
		})

		// Tenant-scoped routes
		r.Route("/tenants/{tid}", func(r chi.Router) {
			r.Use(mw.RequireTenant)

			tenantHandler.RegisterTenantRoutes(r)

			// Customers
			customerHandler := handler.NewCustomerHandler(queries)
			r.Route("/customers", customerHandler.RegisterRoutes)

			// Catalog
			eventTypeHandler := handler.NewEventTypeHandler(queries)
			r.Route("/event-types", eventTypeHandler.RegisterRoutes)

			menuHandler := handler.NewMenuHandler(queries)
			r.Route("/menus", menuHandler.RegisterRoutes)

			utilityHandler := handler.NewUtilityHandler(queries)
			r.Route("/utilities", utilityHandler.RegisterRoutes)

			// Orders
			orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
				return database.New(db)
			})
			orderHandler := handler.NewOrderHandler(orderService, queries, hub)

			paymentService := service.NewPaymentService(pool, func(db database.DBTX) service.PaymentStore {
				return database.New(db)
			})
			paymentHandler := handler.NewPaymentHandler(paymentService, queries, hub)

			r.Route("/orders", func(r chi.Router) {
				orderHandler.RegisterRoutes(r)

				// Payments (nested under orders)
				r.Route("/{id}/payments", paymentHandler.RegisterOrderRoutes)
			})

			// Tenant-wide payment listing
			r.Route("/payments", paymentHandler.RegisterTenantRoutes)

			// Reports
			reportHandler := handler.NewReportHandler(queries)
			r.Route("/reports", reportHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
