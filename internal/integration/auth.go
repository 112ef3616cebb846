package integration

import (
	"context"
	"errors"

	"github.com/athebyme/admanager-platform/integration-service/internal/coreclient"
	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
)

// Credentials - учетные данные покупателя для делегированной проверки.
// Либо пара логин-пароль, либо готовый токен сессии
type Credentials struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Empty сообщает, что проверять нечего
func (c Credentials) Empty() bool {
	return c.Username == "" && c.Password == "" && c.Token == ""
}

// AuthResult - итог делегированной проверки учетных данных
type AuthResult struct {
	IsAuthenticated bool   `json:"is_authenticated"`
	UserID          string `json:"user_id,omitempty"`
	SessionToken    string `json:"session_token,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

// AuthIntegration делегирует проверку учетных данных покупателей
// ядровой платформе. Собственного хранилища пользователей у этого слоя нет
type AuthIntegration struct {
	client *coreclient.Client
	logger interfaces.LoggerPort
}

// NewAuthIntegration создает новый сервис делегированной аутентификации
func NewAuthIntegration(client *coreclient.Client, logger interfaces.LoggerPort) *AuthIntegration {
	return &AuthIntegration{client: client, logger: logger}
}

// Delegate проверяет учетные данные через ядровую платформу.
// Пустые учетные данные отклоняются локально без сетевого вызова.
// Отказ платформы в аутентификации (401) - это штатный отрицательный
// результат, а не ошибка вызова
func (s *AuthIntegration) Delegate(ctx context.Context, creds Credentials) (*AuthResult, error) {
	if creds.Empty() {
		return &AuthResult{
			IsAuthenticated: false,
			ErrorMessage:    "credentials are required",
		}, nil
	}

	// пароль в логи не попадает ни при каком исходе
	s.logger.DebugWithContext(ctx, "Делегирование проверки учетных данных",
		interfaces.LogField{Key: "username", Value: creds.Username},
		interfaces.LogField{Key: "by_token", Value: creds.Token != ""},
	)

	var result AuthResult
	err := s.client.Post(ctx, s.client.Profile().Endpoints.Auth, creds, &result)
	if err != nil {
		var apiErr *coreclient.ExternalAPIError
		if errors.As(err, &apiErr) && apiErr.Kind == coreclient.KindUnauthorized {
			return &AuthResult{
				IsAuthenticated: false,
				ErrorMessage:    "invalid credentials",
			}, nil
		}
		return nil, err
	}

	return &result, nil
}
