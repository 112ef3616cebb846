package api

import (
	"net/http"
	"time"

	"github.com/athebyme/admanager-platform/integration-service/internal/api/handlers"
	"github.com/athebyme/admanager-platform/integration-service/internal/api/middleware"
	"github.com/athebyme/admanager-platform/integration-service/internal/security"
	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

// SetupRouter настраивает маршрутизатор
func SetupRouter(
	syncHandler *handlers.SyncHandler,
	integrationHandler *handlers.IntegrationHandler,
	logger interfaces.LoggerPort,
	corsAllowedOrigins []string,
	jwtManager *security.JWTManager,
) *chi.Mux {
	r := chi.NewRouter()

	// Глобальные middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.CORS(corsAllowedOrigins))
	r.Use(middleware.Tracing)

	r.Method(http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	r.Method(http.MethodHead, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.JWTAuth(jwtManager, logger))

		// Делегированная аутентификация и состояние платформы не привязаны
		// к конкретному мерчанту
		r.Post("/auth/delegate", integrationHandler.DelegateAuth)
		r.Get("/core-platform/status", integrationHandler.PlatformStatus)

		// Маршруты в пределах мерчанта
		r.Group(func(r chi.Router) {
			r.Use(middleware.Merchant)

			r.Route("/products", func(r chi.Router) {
				// Прогон синхронизации каталога
				r.Post("/sync", syncHandler.Synchronize)

				// Разрешение помеченного конфликта по товару
				r.Post("/{id}/conflicts/resolve", syncHandler.ResolveConflict)
			})

			r.Post("/customers/{id}/eligibility", integrationHandler.CheckEligibility)
			r.Get("/orders", integrationHandler.ListOrders)
			r.Get("/direct-order-link", integrationHandler.DirectOrderLink)
		})
	})

	return r
}
