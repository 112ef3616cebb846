package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/athebyme/admanager-platform/integration-service/internal/coreclient"
	"github.com/athebyme/admanager-platform/integration-service/internal/integration"
	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEligibilityHandler(t *testing.T, coreHandler http.HandlerFunc) *IntegrationHandler {
	t.Helper()

	server := httptest.NewServer(coreHandler)
	t.Cleanup(server.Close)

	profile, err := coreclient.NewConnectionProfile(server.URL, time.Second, 0, 10*time.Millisecond, coreclient.Endpoints{
		Customers: "/api/customers/%s",
	})
	require.NoError(t, err)

	client := coreclient.NewClient(profile, nil, interfaces.NopLogger{})
	customerService := integration.NewCustomerIntegration(client, interfaces.NopLogger{})

	return NewIntegrationHandler(nil, customerService, nil, nil, nil, interfaces.NopLogger{})
}

func TestCheckEligibility_NonStringCriteria(t *testing.T) {
	h := newEligibilityHandler(t, func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]interface{}{
			"id": "cust-1",
			"attributes": map[string]interface{}{
				"subscribed": true,
				"tier":       "gold",
			},
		})
	})

	router := chi.NewRouter()
	router.Post("/customers/{id}/eligibility", h.CheckEligibility)

	// булев критерий в теле запроса не отклоняется на декодировании
	body := `{"promotion_id":"promo-1","criteria":{"subscribed":true,"tier":"gold"}}`
	req := httptest.NewRequest(http.MethodPost, "/customers/cust-1/eligibility", strings.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			CustomerID  string `json:"customer_id"`
			PromotionID string `json:"promotion_id"`
			Eligible    bool   `json:"eligible"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Data.Eligible)
	assert.Equal(t, "cust-1", resp.Data.CustomerID)
	assert.Equal(t, "promo-1", resp.Data.PromotionID)
}

func newDirectOrderHandler() *IntegrationHandler {
	directOrderService := integration.NewDirectOrderIntegration("https://shop.example.com", "/checkout/direct")
	return NewIntegrationHandler(nil, nil, nil, directOrderService, nil, interfaces.NopLogger{})
}

func merchantRequest(method, target, merchantID string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(context.WithValue(req.Context(), "merchant_id", merchantID))
}

func TestDirectOrderLink_DefaultQuantity(t *testing.T) {
	h := newDirectOrderHandler()

	// отсутствующее количество означает единицу
	req := merchantRequest(http.MethodGet, "/direct-order-link?product_id=prod-1", "m-1")
	rec := httptest.NewRecorder()

	h.DirectOrderLink(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Data.URL, "quantity=1")
	assert.Contains(t, resp.Data.URL, "merchant_id=m-1")
}

func TestDirectOrderLink_ExplicitZeroRejected(t *testing.T) {
	h := newDirectOrderHandler()

	req := merchantRequest(http.MethodGet, "/direct-order-link?product_id=prod-1&quantity=0", "m-1")
	rec := httptest.NewRecorder()

	h.DirectOrderLink(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDirectOrderLink_MissingMerchant(t *testing.T) {
	h := newDirectOrderHandler()

	req := httptest.NewRequest(http.MethodGet, "/direct-order-link?product_id=prod-1", nil)
	rec := httptest.NewRecorder()

	h.DirectOrderLink(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
