package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/athebyme/admanager-platform/integration-service/config"
	"github.com/athebyme/admanager-platform/integration-service/internal/adapters/cache"
	"github.com/athebyme/admanager-platform/integration-service/internal/adapters/logger"
	"github.com/athebyme/admanager-platform/integration-service/internal/adapters/messaging"
	postgres "github.com/athebyme/admanager-platform/integration-service/internal/adapters/storage"
	"github.com/athebyme/admanager-platform/integration-service/internal/api"
	"github.com/athebyme/admanager-platform/integration-service/internal/api/handlers"
	"github.com/athebyme/admanager-platform/integration-service/internal/api/middleware"
	"github.com/athebyme/admanager-platform/integration-service/internal/coreclient"
	"github.com/athebyme/admanager-platform/integration-service/internal/domain/services"
	"github.com/athebyme/admanager-platform/integration-service/internal/integration"
	"github.com/athebyme/admanager-platform/integration-service/internal/security"
	"github.com/athebyme/admanager-platform/integration-service/internal/utils"
	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// метрики для Prometheus
var (
	httpDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_durations_seconds",
		Help:    "Длительность HTTP запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "status"})

	requestsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Общее количество HTTP запросов",
	}, []string{"path", "method", "status"})

	activeRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_active_requests",
		Help: "Количество активных HTTP запросов",
	})
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.ENV == "production")
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	log.Info("Инициализация сервиса",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	postgresCon, err := utils.GenerateConnectionString(
		cfg.Postgres.Host,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
		cfg.Postgres.Port,
		cfg.Postgres.PoolSize,
		cfg.Postgres.Timeout,
	)
	if err != nil {
		log.Fatal("Ошибка сборки строки подключения к PostgreSQL",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}

	db, err := postgres.NewPostgresStorage(ctx, postgresCon, log)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer db.Close()

	testCtx, testCancel := context.WithTimeout(ctx, 5*time.Second)
	defer testCancel()
	if err := db.Ping(testCtx); err != nil {
		log.Fatal("Ошибка подключения к PostgreSQL",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	log.Info("Хранилище инициализировано")

	cacheClient, err := cache.NewRedisCache(
		ctx,
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err != nil {
		log.Fatal("Ошибка инициализации кэша", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer cacheClient.Close()
	log.Info("Кэш инициализирован")

	messagingClient, err := messaging.NewKafkaMessaging(
		cfg.Kafka.Brokers,
		cfg.Kafka.GroupID,
		log,
	)
	if err != nil {
		log.Fatal("Ошибка инициализации системы обмена сообщениями", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer messagingClient.Close()
	log.Info("Система обмена сообщениями инициализирована")

	coreClient, err := newCorePlatformClient(ctx, cfg, log)
	if err != nil {
		log.Fatal("Ошибка инициализации клиента ядровой платформы",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	log.Info("Клиент ядровой платформы инициализирован",
		interfaces.LogField{Key: "base_url", Value: cfg.CorePlatform.BaseURL})

	productIntegration := integration.NewProductIntegration(coreClient, log)
	authIntegration := integration.NewAuthIntegration(coreClient, log)
	customerIntegration := integration.NewCustomerIntegration(coreClient, log)
	orderIntegration := integration.NewOrderIntegration(coreClient, log)
	directOrderIntegration := integration.NewDirectOrderIntegration(
		cfg.Storefront.BaseURL, cfg.Storefront.CheckoutPath)
	statusIntegration := integration.NewStatusIntegration(coreClient, log)

	syncService := services.NewSyncService(productIntegration, db, cacheClient, messagingClient, log)
	log.Info("Движок синхронизации инициализирован")

	jwtManager, err := newJWTManager(cfg)
	if err != nil {
		log.Fatal("Ошибка инициализации JWT",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}

	syncHandler := handlers.NewSyncHandler(syncService, log)
	integrationHandler := handlers.NewIntegrationHandler(
		authIntegration, customerIntegration, orderIntegration,
		directOrderIntegration, statusIntegration, log)

	router := api.SetupRouter(syncHandler, integrationHandler, log, cfg.Security.CORSAllowOrigins, jwtManager)
	log.Info("Маршрутизатор настроен")

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Port, log)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      instrument(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Сервер запущен", interfaces.LogField{Key: "address", Value: server.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Ошибка запуска сервера", interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}()

	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Ошибка при graceful shutdown", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		log.Info("HTTP сервер остановлен")

		log.Info("Закрытие соединений с зависимостями...")

		if err := messagingClient.Close(); err != nil {
			log.Error("Ошибка при закрытии Kafka",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}

		if err := cacheClient.Close(); err != nil {
			log.Error("Ошибка при закрытии Redis",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}

		if err := db.Close(); err != nil {
			log.Error("Ошибка при закрытии БД",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}

		close(done)
	}()

	<-done
	log.Info("Сервер корректно завершил работу")
}

// newCorePlatformClient собирает клиент ядровой платформы из конфигурации.
// При включенном OAuth2 исходящие запросы подписываются сервисным токеном
// по схеме client credentials
func newCorePlatformClient(ctx context.Context, cfg *config.Config, log interfaces.LoggerPort) (*coreclient.Client, error) {
	profile, err := coreclient.NewConnectionProfile(
		cfg.CorePlatform.BaseURL,
		cfg.CorePlatform.Timeout,
		cfg.CorePlatform.MaxRetryAttempts,
		cfg.CorePlatform.RetryBaseDelay,
		coreclient.Endpoints{
			Products:  cfg.CorePlatform.Endpoints.Products,
			Auth:      cfg.CorePlatform.Endpoints.Auth,
			Customers: cfg.CorePlatform.Endpoints.Customers,
			Orders:    cfg.CorePlatform.Endpoints.Orders,
			Status:    cfg.CorePlatform.Endpoints.Status,
		},
	)
	if err != nil {
		return nil, err
	}

	var tokenSource oauth2.TokenSource
	if cfg.CorePlatform.OAuth2.Enabled {
		ccConfig := &clientcredentials.Config{
			TokenURL:     cfg.CorePlatform.OAuth2.TokenURL,
			ClientID:     cfg.CorePlatform.OAuth2.ClientID,
			ClientSecret: cfg.CorePlatform.OAuth2.ClientSecret,
			Scopes:       cfg.CorePlatform.OAuth2.Scopes,
		}
		tokenSource = ccConfig.TokenSource(ctx)
	}

	return coreclient.NewClient(profile, tokenSource, log), nil
}

// newJWTManager читает ключевую пару и собирает менеджер токенов API
func newJWTManager(cfg *config.Config) (*security.JWTManager, error) {
	privateKey, err := os.ReadFile(cfg.Security.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения приватного ключа: %w", err)
	}

	publicKey, err := os.ReadFile(cfg.Security.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения публичного ключа: %w", err)
	}

	return security.NewJWTManager(privateKey, publicKey, cfg.Security.JWTExpiration, cfg.Security.JWTIssuer)
}

// serveMetrics поднимает отдельный HTTP сервер с метриками Prometheus
func serveMetrics(port int, log interfaces.LoggerPort) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	log.Info("Запуск HTTP сервера для метрик",
		interfaces.LogField{Key: "addr", Value: addr})

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("Ошибка запуска HTTP сервера для метрик",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}

// instrument снимает метрики запросов поверх маршрутизатора
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		activeRequests.Inc()
		defer activeRequests.Dec()

		ww := middleware.NewResponseWriter(w)
		next.ServeHTTP(ww, r)

		status := strconv.Itoa(ww.Status())
		httpDurations.WithLabelValues(r.URL.Path, r.Method, status).Observe(time.Since(start).Seconds())
		requestsCounter.WithLabelValues(r.URL.Path, r.Method, status).Inc()
	})
}
