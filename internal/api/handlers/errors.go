package handlers

import (
	"errors"
	"net/http"

	"github.com/athebyme/admanager-platform/integration-service/internal/coreclient"
	"github.com/athebyme/admanager-platform/integration-service/internal/utils"
	"github.com/go-chi/render"
)

// errorResponse представляет структуру ответа с ошибкой
type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// response представляет структуру успешного ответа
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

// translateError переводит доменную ошибку в HTTP-статус и код ответа.
// Категории ошибок ядровой платформы отображаются на статусы один к одному,
// недоступность платформы отдается как 503, чтобы клиент отличал
// ее от ошибок самого сервиса
func translateError(err error) (int, string) {
	switch {
	case errors.Is(err, utils.ErrSyncInProgress):
		return http.StatusConflict, "sync_in_progress"
	case errors.Is(err, utils.ErrConflictNotFound):
		return http.StatusNotFound, "conflict_not_found"
	case errors.Is(err, utils.ErrUnknownDirective),
		errors.Is(err, utils.ErrUnknownStrategy),
		errors.Is(err, utils.ErrInvalidMerchantID),
		errors.Is(err, utils.ErrInvalidProductID),
		errors.Is(err, utils.ErrInvalidQuantity):
		return http.StatusBadRequest, "validation_error"
	}

	if apiErr, ok := coreclient.AsExternalAPIError(err); ok {
		switch apiErr.Kind {
		case coreclient.KindBadRequest:
			return http.StatusBadRequest, "core_platform_rejected_request"
		case coreclient.KindUnauthorized:
			return http.StatusUnauthorized, "core_platform_unauthorized"
		case coreclient.KindForbidden:
			return http.StatusForbidden, "core_platform_forbidden"
		case coreclient.KindNotFound:
			return http.StatusNotFound, "core_platform_not_found"
		case coreclient.KindConflict:
			return http.StatusConflict, "core_platform_conflict"
		case coreclient.KindUnavailable:
			return http.StatusServiceUnavailable, "core_platform_unavailable"
		}
	}

	return http.StatusInternalServerError, "internal_error"
}

// renderError отправляет ответ с ошибкой по итогам перевода
func renderError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status, code := translateError(err)
	render.Status(r, status)
	render.JSON(w, r, errorResponse{
		Error:   code,
		Code:    status,
		Message: message,
	})
}

// renderBadRequest отправляет 400 с указанным сообщением
func renderBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, errorResponse{
		Error:   "bad_request",
		Code:    http.StatusBadRequest,
		Message: message,
	})
}
