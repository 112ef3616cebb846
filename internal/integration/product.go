package integration

import (
	"context"
	"net/url"
	"time"

	"github.com/athebyme/admanager-platform/integration-service/internal/coreclient"
	"github.com/athebyme/admanager-platform/integration-service/internal/domain/models"
	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
)

// productListResponse - формат ответа каталога ядровой платформы
type productListResponse struct {
	Products []models.CoreProduct `json:"products"`
}

// ProductIntegration загружает данные товаров из ядровой платформы.
// Сервис не хранит состояние и не содержит собственной логики повторов,
// повторы и классификация ошибок выполняются клиентом
type ProductIntegration struct {
	client *coreclient.Client
	logger interfaces.LoggerPort
}

// NewProductIntegration создает новый сервис интеграции товаров
func NewProductIntegration(client *coreclient.Client, logger interfaces.LoggerPort) *ProductIntegration {
	return &ProductIntegration{client: client, logger: logger}
}

// FetchProducts возвращает товары ядровой платформы.
// updatedSince == nil означает полную выборку каталога,
// иначе возвращаются только товары, измененные после указанного момента
func (s *ProductIntegration) FetchProducts(ctx context.Context, updatedSince *time.Time) ([]models.CoreProduct, error) {
	query := url.Values{}
	if updatedSince != nil {
		query.Set("updated_since", updatedSince.UTC().Format(time.RFC3339))
	}

	var resp productListResponse
	if err := s.client.Get(ctx, s.client.Profile().Endpoints.Products, query, &resp); err != nil {
		return nil, err
	}

	s.logger.DebugWithContext(ctx, "Загружены товары ядровой платформы",
		interfaces.LogField{Key: "count", Value: len(resp.Products)},
		interfaces.LogField{Key: "incremental", Value: updatedSince != nil},
	)

	return resp.Products, nil
}
