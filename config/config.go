package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config содержит все настройки сервиса
type Config struct {
	AppName  string
	Version  string
	LogLevel string
	ENV      string

	Server struct {
		Host            string
		Port            int
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	Postgres struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
		SSLMode  string
		Timeout  time.Duration
		PoolSize int // размер пула соединений
	}

	Redis struct {
		Host         string
		Port         int
		Password     string
		DB           int
		PoolSize     int           // размер пула соединений
		MinIdleConns int           // минимальное количество неактивных соединений
		MaxRetries   int           // максимальное количество повторных попыток
		ReadTimeout  time.Duration // таймаут чтения
		WriteTimeout time.Duration // таймаут записи
	}

	Kafka struct {
		Brokers          []string `mapstructure:"brokers"`
		GroupID          string   `mapstructure:"group_id"`
		SyncRequestTopic string   `mapstructure:"sync_request_topic"`
	}

	// CorePlatform описывает подключение к внешней коммерческой платформе
	CorePlatform struct {
		BaseURL          string
		Timeout          time.Duration // дедлайн на одну попытку запроса
		MaxRetryAttempts int           // число повторов сверх первой попытки
		RetryBaseDelay   time.Duration // базовая задержка линейного backoff

		Endpoints struct {
			Products  string
			Auth      string
			Customers string // шаблон с %s для ID покупателя
			Orders    string
			Status    string
		}

		// OAuth2 - сервисная авторизация исходящих запросов (client credentials)
		OAuth2 struct {
			Enabled      bool
			TokenURL     string
			ClientID     string
			ClientSecret string
			Scopes       []string
		}
	}

	// Storefront - витрина платформы для ссылок прямого заказа
	Storefront struct {
		BaseURL      string
		CheckoutPath string
	}

	Metrics struct {
		Enabled  bool
		Endpoint string
		Port     int `mapstructure:"port"`
	}

	Security struct {
		JWTPrivateKeyPath string
		JWTPublicKeyPath  string
		JWTExpiration     time.Duration
		JWTIssuer         string
		CORSAllowOrigins  []string
	}
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	configFile := "config"
	if configPath != "" {
		configFile = configPath
	}

	var cfg Config

	viper.SetConfigName(configFile)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("../config")
	viper.AddConfigPath("../../config")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
		// Продолжаем, если файл не найден, будем использовать только переменные окружения
	}

	setDefaults()
	bindEnvVariables()

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка десериализации конфигурации: %w", err)
	}

	cfg.ENV = viper.GetString("env")
	if cfg.ENV == "" {
		cfg.ENV = "development"
		if envVar := os.Getenv("APP_ENV"); envVar != "" {
			cfg.ENV = envVar
		}
	}

	return &cfg, nil
}

// setDefaults устанавливает значения по умолчанию
func setDefaults() {
	// Основные настройки
	viper.SetDefault("appName", "integration-service")
	viper.SetDefault("version", "1.0.0")
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("env", "development")

	// Настройки сервера
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", "10s")
	viper.SetDefault("server.writeTimeout", "10s")
	viper.SetDefault("server.shutdownTimeout", "5s")

	// Настройки Postgres
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.user", "postgres")
	viper.SetDefault("postgres.password", "postgres")
	viper.SetDefault("postgres.dbname", "integration")
	viper.SetDefault("postgres.sslmode", "disable")
	viper.SetDefault("postgres.timeout", "5s")
	viper.SetDefault("postgres.poolSize", 10)

	// Настройки Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.poolSize", 10)
	viper.SetDefault("redis.minIdleConns", 2)
	viper.SetDefault("redis.maxRetries", 3)
	viper.SetDefault("redis.readTimeout", "2s")
	viper.SetDefault("redis.writeTimeout", "2s")

	// Настройки Kafka
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.groupID", "integration-service")
	viper.SetDefault("kafka.syncRequestTopic", "product_sync_requests")

	// Настройки ядровой платформы
	viper.SetDefault("corePlatform.baseURL", "http://localhost:9000")
	viper.SetDefault("corePlatform.timeout", "5s")
	viper.SetDefault("corePlatform.maxRetryAttempts", 3)
	viper.SetDefault("corePlatform.retryBaseDelay", "500ms")
	viper.SetDefault("corePlatform.endpoints.products", "/api/products")
	viper.SetDefault("corePlatform.endpoints.auth", "/api/auth/verify")
	viper.SetDefault("corePlatform.endpoints.customers", "/api/customers/%s")
	viper.SetDefault("corePlatform.endpoints.orders", "/api/orders/attributed")
	viper.SetDefault("corePlatform.endpoints.status", "/api/status")
	viper.SetDefault("corePlatform.oauth2.enabled", false)
	viper.SetDefault("corePlatform.oauth2.tokenURL", "")
	viper.SetDefault("corePlatform.oauth2.clientID", "")
	viper.SetDefault("corePlatform.oauth2.clientSecret", "")
	viper.SetDefault("corePlatform.oauth2.scopes", []string{})

	// Настройки витрины
	viper.SetDefault("storefront.baseURL", "http://localhost:9000")
	viper.SetDefault("storefront.checkoutPath", "/checkout/direct")

	// Настройки метрик
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.endpoint", "/metrics")
	viper.SetDefault("metrics.port", 9090)

	// Настройки безопасности
	viper.SetDefault("security.jwtPrivateKeyPath", "keys/jwt_private.pem")
	viper.SetDefault("security.jwtPublicKeyPath", "keys/jwt_public.pem")
	viper.SetDefault("security.jwtExpiration", "60m")
	viper.SetDefault("security.jwtIssuer", "integration-service")
	viper.SetDefault("security.corsAllowOrigins", []string{"*"})
}

// bindEnvVariables привязывает переменные окружения к конфигурации
func bindEnvVariables() {
	// Основные настройки
	viper.BindEnv("appName", "APP_NAME")
	viper.BindEnv("version", "APP_VERSION")
	viper.BindEnv("logLevel", "LOG_LEVEL")
	viper.BindEnv("env", "APP_ENV")

	// Настройки сервера
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.readTimeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.writeTimeout", "SERVER_WRITE_TIMEOUT")
	viper.BindEnv("server.shutdownTimeout", "SERVER_SHUTDOWN_TIMEOUT")

	// Настройки Postgres
	viper.BindEnv("postgres.host", "POSTGRES_HOST")
	viper.BindEnv("postgres.port", "POSTGRES_PORT")
	viper.BindEnv("postgres.user", "POSTGRES_USER")
	viper.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	viper.BindEnv("postgres.dbname", "POSTGRES_DBNAME")
	viper.BindEnv("postgres.sslmode", "POSTGRES_SSLMODE")
	viper.BindEnv("postgres.timeout", "POSTGRES_TIMEOUT")
	viper.BindEnv("postgres.poolSize", "POSTGRES_POOL_SIZE")

	// Настройки Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("redis.poolSize", "REDIS_POOL_SIZE")
	viper.BindEnv("redis.minIdleConns", "REDIS_MIN_IDLE_CONNS")
	viper.BindEnv("redis.maxRetries", "REDIS_MAX_RETRIES")
	viper.BindEnv("redis.readTimeout", "REDIS_READ_TIMEOUT")
	viper.BindEnv("redis.writeTimeout", "REDIS_WRITE_TIMEOUT")

	// Настройки Kafka
	viper.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	viper.BindEnv("kafka.groupID", "KAFKA_GROUP_ID")
	viper.BindEnv("kafka.syncRequestTopic", "KAFKA_SYNC_REQUEST_TOPIC")

	// Настройки ядровой платформы
	viper.BindEnv("corePlatform.baseURL", "CORE_PLATFORM_BASE_URL")
	viper.BindEnv("corePlatform.timeout", "CORE_PLATFORM_TIMEOUT")
	viper.BindEnv("corePlatform.maxRetryAttempts", "CORE_PLATFORM_MAX_RETRY_ATTEMPTS")
	viper.BindEnv("corePlatform.retryBaseDelay", "CORE_PLATFORM_RETRY_BASE_DELAY")
	viper.BindEnv("corePlatform.endpoints.products", "CORE_PLATFORM_PRODUCTS_ENDPOINT")
	viper.BindEnv("corePlatform.endpoints.auth", "CORE_PLATFORM_AUTH_ENDPOINT")
	viper.BindEnv("corePlatform.endpoints.customers", "CORE_PLATFORM_CUSTOMERS_ENDPOINT")
	viper.BindEnv("corePlatform.endpoints.orders", "CORE_PLATFORM_ORDERS_ENDPOINT")
	viper.BindEnv("corePlatform.endpoints.status", "CORE_PLATFORM_STATUS_ENDPOINT")
	viper.BindEnv("corePlatform.oauth2.enabled", "CORE_PLATFORM_OAUTH2_ENABLED")
	viper.BindEnv("corePlatform.oauth2.tokenURL", "CORE_PLATFORM_OAUTH2_TOKEN_URL")
	viper.BindEnv("corePlatform.oauth2.clientID", "CORE_PLATFORM_OAUTH2_CLIENT_ID")
	viper.BindEnv("corePlatform.oauth2.clientSecret", "CORE_PLATFORM_OAUTH2_CLIENT_SECRET")
	viper.BindEnv("corePlatform.oauth2.scopes", "CORE_PLATFORM_OAUTH2_SCOPES")

	// Настройки витрины
	viper.BindEnv("storefront.baseURL", "STOREFRONT_BASE_URL")
	viper.BindEnv("storefront.checkoutPath", "STOREFRONT_CHECKOUT_PATH")

	// Настройки метрик
	viper.BindEnv("metrics.enabled", "METRICS_ENABLED")
	viper.BindEnv("metrics.endpoint", "METRICS_ENDPOINT")
	viper.BindEnv("metrics.port", "METRICS_PORT")

	// Настройки безопасности
	viper.BindEnv("security.jwtPrivateKeyPath", "JWT_PRIVATE_KEY_PATH")
	viper.BindEnv("security.jwtPublicKeyPath", "JWT_PUBLIC_KEY_PATH")
	viper.BindEnv("security.jwtExpiration", "JWT_EXPIRATION")
	viper.BindEnv("security.jwtIssuer", "JWT_ISSUER")
	viper.BindEnv("security.corsAllowOrigins", "CORS_ALLOW_ORIGINS")
}
