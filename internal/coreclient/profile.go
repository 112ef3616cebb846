package coreclient

import (
	"strings"
	"time"
)

// Endpoints содержит шаблоны путей ресурсов ядровой платформы.
// Шаблоны с %s подставляют идентификатор ресурса через fmt.Sprintf.
type Endpoints struct {
	Products  string // список товаров, поддерживает фильтр updated_since
	Auth      string // делегирование проверки учетных данных
	Customers string // атрибуты покупателя, шаблон с %s для ID
	Orders    string // атрибуцированные заказы
	Status    string // проба доступности платформы
}

// ConnectionProfile описывает параметры подключения к ядровой платформе.
// Профиль собирается один раз при старте процесса и далее не изменяется,
// поэтому его можно безопасно разделять между горутинами без блокировок.
type ConnectionProfile struct {
	BaseURL          string
	Timeout          time.Duration // жесткий дедлайн на одну попытку
	MaxRetryAttempts int           // число повторов сверх первой попытки
	RetryBaseDelay   time.Duration // базовая задержка линейного backoff
	Endpoints        Endpoints
}

// NewConnectionProfile создает профиль подключения и валидирует параметры
func NewConnectionProfile(baseURL string, timeout time.Duration, maxRetryAttempts int, retryBaseDelay time.Duration, endpoints Endpoints) (*ConnectionProfile, error) {
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}
	if timeout <= 0 {
		return nil, ErrInvalidTimeout
	}
	if maxRetryAttempts < 0 {
		return nil, ErrInvalidRetryAttempts
	}
	if retryBaseDelay <= 0 {
		return nil, ErrInvalidRetryDelay
	}

	return &ConnectionProfile{
		BaseURL:          strings.TrimRight(baseURL, "/"),
		Timeout:          timeout,
		MaxRetryAttempts: maxRetryAttempts,
		RetryBaseDelay:   retryBaseDelay,
		Endpoints:        endpoints,
	}, nil
}
