package coreclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Ошибки валидации профиля подключения
var (
	ErrEmptyBaseURL         = errors.New("base URL is empty")
	ErrInvalidTimeout       = errors.New("timeout must be positive")
	ErrInvalidRetryAttempts = errors.New("max retry attempts must not be negative")
	ErrInvalidRetryDelay    = errors.New("retry base delay must be positive")
)

// ErrorKind определяет категорию ошибки внешнего API.
// Таксономия закрытая: каждая неудача исходящего вызова классифицируется
// ровно в одну из категорий, и только здесь решается, допустим ли повтор.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindUnavailable
)

// String возвращает строковое представление категории
func (k ErrorKind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// ExternalAPIError представляет классифицированную ошибку вызова ядровой платформы.
// Создается классификатором один раз на границе клиента и далее проходит
// через доменные сервисы без переклассификации
type ExternalAPIError struct {
	Kind       ErrorKind
	StatusCode int    // HTTP-статус, 0 для транспортных ошибок
	Message    string // человекочитаемое описание
	Body       []byte // сырое тело ответа, если было
	Err        error  // исходная транспортная ошибка, если была
}

// Error реализует интерфейс error
func (e *ExternalAPIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("core platform: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("core platform: %s: %s", e.Kind, e.Message)
}

// Unwrap возвращает исходную ошибку для errors.Is/As
func (e *ExternalAPIError) Unwrap() error {
	return e.Err
}

// Retryable сообщает, имеет ли смысл повторять запрос.
// Единственный источник истины для политики повторов: клиентские ошибки
// (400, 401, 403, 404, 409) повтором не исправить, недоступность можно
func (e *ExternalAPIError) Retryable() bool {
	return e.Kind == KindUnavailable
}

// ClassifyTransportError классифицирует транспортную ошибку (до получения ответа).
// Таймаут и отказ соединения означают недоступность платформы
func ClassifyTransportError(err error) *ExternalAPIError {
	msg := "request failed"

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "request timed out"
	case errors.As(err, &netErr) && netErr.Timeout():
		msg = "request timed out"
	default:
		msg = "connection failed"
	}

	return &ExternalAPIError{
		Kind:    KindUnavailable,
		Message: msg,
		Err:     err,
	}
}

// ClassifyStatus классифицирует HTTP-статус ответа ядровой платформы
func ClassifyStatus(statusCode int, body []byte) *ExternalAPIError {
	apiErr := &ExternalAPIError{
		StatusCode: statusCode,
		Message:    http.StatusText(statusCode),
		Body:       body,
	}

	switch statusCode {
	case http.StatusBadRequest:
		apiErr.Kind = KindBadRequest
	case http.StatusUnauthorized:
		apiErr.Kind = KindUnauthorized
	case http.StatusForbidden:
		apiErr.Kind = KindForbidden
	case http.StatusNotFound:
		apiErr.Kind = KindNotFound
	case http.StatusConflict:
		apiErr.Kind = KindConflict
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		apiErr.Kind = KindUnavailable
	default:
		apiErr.Kind = KindUnknown
	}

	return apiErr
}

// AsExternalAPIError извлекает классифицированную ошибку из цепочки
func AsExternalAPIError(err error) (*ExternalAPIError, bool) {
	var apiErr *ExternalAPIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
