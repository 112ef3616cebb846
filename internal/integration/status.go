package integration

import (
	"context"
	"errors"
	"time"

	"github.com/athebyme/admanager-platform/integration-service/internal/coreclient"
	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
)

// statusResponse - формат ответа пробы доступности ядровой платформы
type statusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// PlatformStatus - текущее состояние связи с ядровой платформой
type PlatformStatus struct {
	IsAvailable bool      `json:"is_available"`
	Message     string    `json:"message,omitempty"`
	Version     string    `json:"version,omitempty"`
	CheckedAt   time.Time `json:"checked_at"`
}

// StatusIntegration опрашивает доступность ядровой платформы.
// Недоступность платформы - это штатный отрицательный результат опроса,
// а не ошибка вызова
type StatusIntegration struct {
	client *coreclient.Client
	logger interfaces.LoggerPort
}

// NewStatusIntegration создает новый сервис опроса состояния
func NewStatusIntegration(client *coreclient.Client, logger interfaces.LoggerPort) *StatusIntegration {
	return &StatusIntegration{client: client, logger: logger}
}

// GetStatus выполняет пробу доступности
func (s *StatusIntegration) GetStatus(ctx context.Context) (*PlatformStatus, error) {
	var resp statusResponse
	err := s.client.Get(ctx, s.client.Profile().Endpoints.Status, nil, &resp)
	if err != nil {
		var apiErr *coreclient.ExternalAPIError
		if errors.As(err, &apiErr) {
			s.logger.WarnWithContext(ctx, "Ядровая платформа недоступна",
				interfaces.LogField{Key: "kind", Value: apiErr.Kind.String()},
				interfaces.LogField{Key: "error", Value: apiErr.Message},
			)
			return &PlatformStatus{
				IsAvailable: false,
				Message:     apiErr.Message,
				CheckedAt:   time.Now().UTC(),
			}, nil
		}
		return nil, err
	}

	return &PlatformStatus{
		IsAvailable: true,
		Message:     resp.Status,
		Version:     resp.Version,
		CheckedAt:   time.Now().UTC(),
	}, nil
}
