package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/athebyme/admanager-platform/integration-service/internal/api/middleware"
	"github.com/athebyme/admanager-platform/integration-service/internal/domain/models"
	"github.com/athebyme/admanager-platform/integration-service/internal/domain/services"
	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// SyncHandler обработчик запросов синхронизации каталога
type SyncHandler struct {
	syncService *services.SyncService
	logger      interfaces.LoggerPort
}

// NewSyncHandler создает новый обработчик синхронизации
func NewSyncHandler(syncService *services.SyncService, logger interfaces.LoggerPort) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		logger:      logger,
	}
}

// syncRequest - тело запроса на прогон синхронизации
type syncRequest struct {
	ForceFullSync bool `json:"force_full_sync"`
}

// resolveConflictRequest - тело запроса на разрешение конфликта
type resolveConflictRequest struct {
	Field     string                     `json:"field"`
	Directive models.ResolutionDirective `json:"directive"`
}

// Synchronize обрабатывает запрос на прогон синхронизации каталога мерчанта
func (h *SyncHandler) Synchronize(w http.ResponseWriter, r *http.Request) {
	merchantID := middleware.MerchantFromContext(r.Context())
	if merchantID == "" {
		renderBadRequest(w, r, "ID мерчанта не указан")
		return
	}

	// тело опционально: пустое тело означает обычный инкрементальный прогон
	var req syncRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			renderBadRequest(w, r, "Некорректный формат данных")
			return
		}
	}

	summary, err := h.syncService.Synchronize(r.Context(), merchantID, req.ForceFullSync)
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка прогона синхронизации",
			interfaces.LogField{Key: "merchant_id", Value: merchantID},
			interfaces.LogField{Key: "error", Value: err.Error()})
		renderError(w, r, err, "Ошибка прогона синхронизации")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    summary,
	})
}

// ResolveConflict обрабатывает явное разрешение помеченного конфликта
func (h *SyncHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	merchantID := middleware.MerchantFromContext(r.Context())
	if merchantID == "" {
		renderBadRequest(w, r, "ID мерчанта не указан")
		return
	}

	productID := chi.URLParam(r, "id")
	if productID == "" {
		renderBadRequest(w, r, "ID товара не указан")
		return
	}

	var req resolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderBadRequest(w, r, "Некорректный формат данных")
		return
	}
	if req.Field == "" {
		renderBadRequest(w, r, "Поле конфликта не указано")
		return
	}

	conflict, err := h.syncService.ResolveConflict(r.Context(), merchantID, productID, req.Field, req.Directive)
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка разрешения конфликта",
			interfaces.LogField{Key: "merchant_id", Value: merchantID},
			interfaces.LogField{Key: "product_id", Value: productID},
			interfaces.LogField{Key: "error", Value: err.Error()})
		renderError(w, r, err, "Ошибка разрешения конфликта")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    conflict,
	})
}
