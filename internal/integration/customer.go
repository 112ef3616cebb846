package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/athebyme/admanager-platform/integration-service/internal/coreclient"
	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
)

// customerResponse - формат ответа ядровой платформы по покупателю.
// Значения атрибутов произвольных JSON-типов: строки, числа, булевы
type customerResponse struct {
	ID         string                 `json:"id"`
	Attributes map[string]interface{} `json:"attributes"`
}

// EligibilityResult - итог проверки пригодности покупателя для акции
type EligibilityResult struct {
	CustomerID  string `json:"customer_id"`
	PromotionID string `json:"promotion_id,omitempty"`
	Eligible    bool   `json:"eligible"`
	Reason      string `json:"reason,omitempty"`
}

// CustomerIntegration проверяет атрибуты покупателей по данным
// ядровой платформы для таргетирования кампаний
type CustomerIntegration struct {
	client *coreclient.Client
	logger interfaces.LoggerPort
}

// NewCustomerIntegration создает новый сервис проверки покупателей
func NewCustomerIntegration(client *coreclient.Client, logger interfaces.LoggerPort) *CustomerIntegration {
	return &CustomerIntegration{client: client, logger: logger}
}

// CheckEligibility сравнивает атрибуты покупателя с критериями акции.
// Покупатель пригоден, только если каждый критерий строго совпадает
// с его атрибутом. Пустые критерии дают отрицательный результат
// без обращения к платформе
func (s *CustomerIntegration) CheckEligibility(ctx context.Context, customerID, promotionID string, criteria map[string]interface{}) (*EligibilityResult, error) {
	if len(criteria) == 0 {
		return &EligibilityResult{
			CustomerID:  customerID,
			PromotionID: promotionID,
			Eligible:    false,
			Reason:      "no criteria specified",
		}, nil
	}

	// запрашиваем только поля, участвующие в критериях;
	// сортировка дает детерминированный URL
	fields := make([]string, 0, len(criteria))
	for field := range criteria {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	query := url.Values{}
	query.Set("fields", strings.Join(fields, ","))
	if promotionID != "" {
		query.Set("promotion_id", promotionID)
	}

	path := fmt.Sprintf(s.client.Profile().Endpoints.Customers, customerID)

	var resp customerResponse
	if err := s.client.Get(ctx, path, query, &resp); err != nil {
		return nil, err
	}

	for field, expected := range criteria {
		actual, ok := resp.Attributes[field]
		if !ok {
			return &EligibilityResult{
				CustomerID:  customerID,
				PromotionID: promotionID,
				Eligible:    false,
				Reason:      fmt.Sprintf("attribute %q is missing", field),
			}, nil
		}
		if !valuesEqual(actual, expected) {
			return &EligibilityResult{
				CustomerID:  customerID,
				PromotionID: promotionID,
				Eligible:    false,
				Reason:      fmt.Sprintf("attribute %q does not match", field),
			}, nil
		}
	}

	return &EligibilityResult{CustomerID: customerID, PromotionID: promotionID, Eligible: true}, nil
}

// valuesEqual сравнивает атрибут и критерий через их JSON-представление.
// Так уравниваются числовые типы разных источников: int критерия
// и float64 из декодированного ответа дают одинаковый JSON
func valuesEqual(a, b interface{}) bool {
	aRaw, errA := json.Marshal(a)
	bRaw, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(aRaw, bRaw)
}
