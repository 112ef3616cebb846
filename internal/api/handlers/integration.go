package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/athebyme/admanager-platform/integration-service/internal/api/middleware"
	"github.com/athebyme/admanager-platform/integration-service/internal/integration"
	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// IntegrationHandler обработчик запросов к интеграционным сервисам:
// делегированная аутентификация, проверка пригодности покупателей,
// атрибуцированные заказы, ссылки прямого заказа и состояние платформы
type IntegrationHandler struct {
	authService        *integration.AuthIntegration
	customerService    *integration.CustomerIntegration
	orderService       *integration.OrderIntegration
	directOrderService *integration.DirectOrderIntegration
	statusService      *integration.StatusIntegration
	logger             interfaces.LoggerPort
}

// NewIntegrationHandler создает новый обработчик интеграционных запросов
func NewIntegrationHandler(
	authService *integration.AuthIntegration,
	customerService *integration.CustomerIntegration,
	orderService *integration.OrderIntegration,
	directOrderService *integration.DirectOrderIntegration,
	statusService *integration.StatusIntegration,
	logger interfaces.LoggerPort,
) *IntegrationHandler {
	return &IntegrationHandler{
		authService:        authService,
		customerService:    customerService,
		orderService:       orderService,
		directOrderService: directOrderService,
		statusService:      statusService,
		logger:             logger,
	}
}

// eligibilityRequest - тело запроса на проверку пригодности покупателя.
// Значения критериев произвольных JSON-типов, как и атрибуты платформы
type eligibilityRequest struct {
	PromotionID string                 `json:"promotion_id"`
	Criteria    map[string]interface{} `json:"criteria"`
}

// DelegateAuth обрабатывает делегированную проверку учетных данных
func (h *IntegrationHandler) DelegateAuth(w http.ResponseWriter, r *http.Request) {
	var creds integration.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		renderBadRequest(w, r, "Некорректный формат данных")
		return
	}

	result, err := h.authService.Delegate(r.Context(), creds)
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка делегированной аутентификации",
			interfaces.LogField{Key: "error", Value: err.Error()})
		renderError(w, r, err, "Ошибка делегированной аутентификации")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    result,
	})
}

// CheckEligibility обрабатывает проверку пригодности покупателя для кампании
func (h *IntegrationHandler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")
	if customerID == "" {
		renderBadRequest(w, r, "ID покупателя не указан")
		return
	}

	var req eligibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderBadRequest(w, r, "Некорректный формат данных")
		return
	}

	result, err := h.customerService.CheckEligibility(r.Context(), customerID, req.PromotionID, req.Criteria)
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка проверки пригодности покупателя",
			interfaces.LogField{Key: "customer_id", Value: customerID},
			interfaces.LogField{Key: "error", Value: err.Error()})
		renderError(w, r, err, "Ошибка проверки пригодности покупателя")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    result,
	})
}

// ListOrders обрабатывает запрос атрибуцированных заказов
func (h *IntegrationHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter := integration.OrderFilter{}

	if campaignIDs := r.URL.Query().Get("campaign_ids"); campaignIDs != "" {
		filter.CampaignIDs = strings.Split(campaignIDs, ",")
	}
	if dateFrom := r.URL.Query().Get("date_from"); dateFrom != "" {
		parsed, err := time.Parse(time.RFC3339, dateFrom)
		if err != nil {
			renderBadRequest(w, r, "Некорректный формат date_from")
			return
		}
		filter.DateFrom = parsed
	}
	if dateTo := r.URL.Query().Get("date_to"); dateTo != "" {
		parsed, err := time.Parse(time.RFC3339, dateTo)
		if err != nil {
			renderBadRequest(w, r, "Некорректный формат date_to")
			return
		}
		filter.DateTo = parsed
	}

	orders, err := h.orderService.FetchOrders(r.Context(), filter)
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка загрузки заказов",
			interfaces.LogField{Key: "error", Value: err.Error()})
		renderError(w, r, err, "Ошибка загрузки заказов")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    orders,
		Meta: map[string]interface{}{
			"count": len(orders),
		},
	})
}

// DirectOrderLink обрабатывает построение ссылки прямого заказа
func (h *IntegrationHandler) DirectOrderLink(w http.ResponseWriter, r *http.Request) {
	merchantID := middleware.MerchantFromContext(r.Context())
	if merchantID == "" {
		renderBadRequest(w, r, "ID мерчанта не указан")
		return
	}

	productID := r.URL.Query().Get("product_id")

	// единица подставляется только при отсутствии параметра;
	// явный ноль отклоняется сервисом
	quantity := 1
	if quantityStr := r.URL.Query().Get("quantity"); quantityStr != "" {
		parsed, err := strconv.Atoi(quantityStr)
		if err != nil {
			renderBadRequest(w, r, "Некорректный формат quantity")
			return
		}
		quantity = parsed
	}

	link, err := h.directOrderService.GenerateLink(merchantID, productID, quantity)
	if err != nil {
		renderError(w, r, err, "Ошибка построения ссылки прямого заказа")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data: map[string]interface{}{
			"url": link,
		},
	})
}

// PlatformStatus обрабатывает опрос состояния ядровой платформы
func (h *IntegrationHandler) PlatformStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.statusService.GetStatus(r.Context())
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка опроса состояния платформы",
			interfaces.LogField{Key: "error", Value: err.Error()})
		renderError(w, r, err, "Ошибка опроса состояния платформы")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    status,
	})
}
