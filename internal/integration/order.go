package integration

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/athebyme/admanager-platform/integration-service/internal/coreclient"
	"github.com/athebyme/admanager-platform/integration-service/internal/domain/models"
	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
)

// orderListResponse - формат ответа ядровой платформы по заказам
type orderListResponse struct {
	Orders []models.CoreOrder `json:"orders"`
}

// OrderFilter задает границы выборки атрибуцированных заказов
type OrderFilter struct {
	CampaignIDs []string
	DateFrom    time.Time
	DateTo      time.Time
}

// OrderIntegration загружает атрибуцированные заказы для отчетов
// об эффективности кампаний. Заказы читаются на лету и не сохраняются
type OrderIntegration struct {
	client *coreclient.Client
	logger interfaces.LoggerPort
}

// NewOrderIntegration создает новый сервис загрузки заказов
func NewOrderIntegration(client *coreclient.Client, logger interfaces.LoggerPort) *OrderIntegration {
	return &OrderIntegration{client: client, logger: logger}
}

// FetchOrders возвращает заказы, атрибуцированные кампаниям Ad Manager.
// Нулевые границы дат опускаются из запроса
func (s *OrderIntegration) FetchOrders(ctx context.Context, filter OrderFilter) ([]models.CoreOrder, error) {
	query := url.Values{}
	if len(filter.CampaignIDs) > 0 {
		query.Set("campaign_ids", strings.Join(filter.CampaignIDs, ","))
	}
	if !filter.DateFrom.IsZero() {
		query.Set("date_from", filter.DateFrom.UTC().Format(time.RFC3339))
	}
	if !filter.DateTo.IsZero() {
		query.Set("date_to", filter.DateTo.UTC().Format(time.RFC3339))
	}

	var resp orderListResponse
	if err := s.client.Get(ctx, s.client.Profile().Endpoints.Orders, query, &resp); err != nil {
		return nil, err
	}

	s.logger.DebugWithContext(ctx, "Загружены атрибуцированные заказы",
		interfaces.LogField{Key: "count", Value: len(resp.Orders)},
	)

	return resp.Orders, nil
}
