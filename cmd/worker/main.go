package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/athebyme/admanager-platform/integration-service/config"
	"github.com/athebyme/admanager-platform/integration-service/internal/adapters/cache"
	"github.com/athebyme/admanager-platform/integration-service/internal/adapters/logger"
	"github.com/athebyme/admanager-platform/integration-service/internal/adapters/messaging"
	postgres "github.com/athebyme/admanager-platform/integration-service/internal/adapters/storage"
	"github.com/athebyme/admanager-platform/integration-service/internal/coreclient"
	"github.com/athebyme/admanager-platform/integration-service/internal/domain/models"
	"github.com/athebyme/admanager-platform/integration-service/internal/domain/services"
	"github.com/athebyme/admanager-platform/integration-service/internal/integration"
	"github.com/athebyme/admanager-platform/integration-service/internal/utils"
	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Метрики для Prometheus
var (
	syncRunsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_sync_runs_total",
		Help: "Общее количество обработанных запросов синхронизации",
	}, []string{"status"})

	syncRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worker_sync_run_duration_seconds",
		Help:    "Длительность прогонов синхронизации",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "worker_active_goroutines",
		Help: "Количество активных горутин-обработчиков",
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
	log.Info("Инициализация воркера",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName + "-worker"},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	// Запускаем HTTP сервер для метрик если они включены
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("OK"))
			})

			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			log.Info("Запуск HTTP сервера для метрик",
				interfaces.LogField{Key: "addr", Value: addr})

			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error("Ошибка запуска HTTP сервера для метрик",
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}()
	}

	connectionStr, err := utils.GenerateConnectionString(
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

	repo, err := postgres.NewPostgresStorage(ctx, connectionStr, log)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer repo.Close()
	log.Info("Хранилище инициализировано")

	cacheClient, err := cache.NewRedisCache(
		ctx,
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err != nil {
		log.Fatal("Ошибка инициализации кэша",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer cacheClient.Close()
	log.Info("Кэш инициализирован")

	messagingClient, err := messaging.NewKafkaMessaging(
		cfg.Kafka.Brokers,
		cfg.Kafka.GroupID,
		log,
	)
	if err != nil {
		log.Fatal("Ошибка инициализации системы обмена сообщениями",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer messagingClient.Close()
	log.Info("Система обмена сообщениями инициализирована")

	coreClient, err := newCorePlatformClient(ctx, cfg, log)
	if err != nil {
		log.Fatal("Ошибка инициализации клиента ядровой платформы",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}

	productIntegration := integration.NewProductIntegration(coreClient, log)
	syncService := services.NewSyncService(productIntegration, repo, cacheClient, messagingClient, log)
	log.Info("Движок синхронизации инициализирован")

	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	subscribeToSyncRequests(ctx, cfg.Kafka.SyncRequestTopic, messagingClient, syncService, log, &wg)

	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")
		cancel()
		wg.Wait()
		close(done)
	}()

	log.Info("Воркер запущен и готов к обработке сообщений")
	<-done
	log.Info("Воркер корректно завершил работу")
}

// subscribeToSyncRequests подписывается на запросы синхронизации каталога.
// Каждый запрос запускает прогон для указанного мерчанта
func subscribeToSyncRequests(ctx context.Context, topic string, messagingClient interfaces.MessagingPort,
	syncService *services.SyncService,
	logger interfaces.LoggerPort, wg *sync.WaitGroup) {

	handler := func(ctx context.Context, msg *interfaces.Message) error {
		startTime := time.Now()
		activeWorkers.Inc()
		defer activeWorkers.Dec()

		logger.InfoWithContext(ctx, "Получен запрос синхронизации",
			interfaces.LogField{Key: "message_id", Value: msg.ID},
			interfaces.LogField{Key: "topic", Value: msg.Topic},
		)

		var request models.SyncRequestedEvent
		if err := json.Unmarshal(msg.Value, &request); err != nil {
			logger.ErrorWithContext(ctx, "Ошибка декодирования запроса синхронизации",
				interfaces.LogField{Key: "error", Value: err.Error()})
			syncRunsProcessed.WithLabelValues("error").Inc()
			// битое сообщение нельзя вылечить повтором
			return nil
		}

		runCtx := context.WithValue(ctx, "merchant_id", request.MerchantID)

		summary, err := syncService.Synchronize(runCtx, request.MerchantID, request.ForceFullSync)
		if err != nil {
			if errors.Is(err, utils.ErrSyncInProgress) {
				// прогон этого мерчанта уже идет, запрос можно отбросить
				logger.WarnWithContext(runCtx, "Прогон уже выполняется, запрос пропущен",
					interfaces.LogField{Key: "merchant_id", Value: request.MerchantID})
				syncRunsProcessed.WithLabelValues("skipped").Inc()
				return nil
			}
			logger.ErrorWithContext(runCtx, "Ошибка прогона синхронизации",
				interfaces.LogField{Key: "merchant_id", Value: request.MerchantID},
				interfaces.LogField{Key: "error", Value: err.Error()})
			syncRunsProcessed.WithLabelValues("error").Inc()
			return err
		}

		duration := time.Since(startTime).Seconds()
		syncRunDuration.WithLabelValues(string(summary.Status)).Observe(duration)
		syncRunsProcessed.WithLabelValues(string(summary.Status)).Inc()

		logger.InfoWithContext(runCtx, "Запрос синхронизации обработан",
			interfaces.LogField{Key: "merchant_id", Value: request.MerchantID},
			interfaces.LogField{Key: "status", Value: string(summary.Status)},
			interfaces.LogField{Key: "products_synced", Value: summary.ProductsSynced},
			interfaces.LogField{Key: "duration", Value: duration},
		)

		return nil
	}

	wg.Add(1)

	go func() {
		defer wg.Done()

		unsubscribe, err := messagingClient.Subscribe(ctx, topic, handler)
		if err != nil {
			logger.Error("Ошибка подписки на запросы синхронизации",
				interfaces.LogField{Key: "error", Value: err.Error()})
			return
		}
		defer unsubscribe()

		logger.Info("Подписка на запросы синхронизации установлена",
			interfaces.LogField{Key: "topic", Value: topic})

		<-ctx.Done()
		logger.Info("Отмена подписки на запросы синхронизации")
	}()
}

// newCorePlatformClient собирает клиент ядровой платформы из конфигурации
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
