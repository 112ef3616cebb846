package integration

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/athebyme/admanager-platform/integration-service/internal/coreclient"
	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckEligibility_EmptyCriteria(t *testing.T) {
	var calls int32
	_, client := newCoreServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))

	svc := NewCustomerIntegration(client, interfaces.NopLogger{})

	result, err := svc.CheckEligibility(context.Background(), "cust-1", "promo-1", nil)
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, "promo-1", result.PromotionID)

	// пустые критерии решаются локально без сетевого вызова
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestCheckEligibility_AllCriteriaMatch(t *testing.T) {
	_, client := newCoreServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/customers/cust-1", r.URL.Path)
		// ключи критериев запрашиваются отсортированными, акция передается платформе
		assert.Equal(t, "region,tier", r.URL.Query().Get("fields"))
		assert.Equal(t, "promo-7", r.URL.Query().Get("promotion_id"))

		render.JSON(w, r, map[string]interface{}{
			"id": "cust-1",
			"attributes": map[string]interface{}{
				"tier":   "gold",
				"region": "eu",
			},
		})
	}))

	svc := NewCustomerIntegration(client, interfaces.NopLogger{})

	result, err := svc.CheckEligibility(context.Background(), "cust-1", "promo-7", map[string]interface{}{
		"tier":   "gold",
		"region": "eu",
	})
	require.NoError(t, err)
	assert.True(t, result.Eligible)
	assert.Equal(t, "cust-1", result.CustomerID)
	assert.Equal(t, "promo-7", result.PromotionID)
	assert.Empty(t, result.Reason)
}

func TestCheckEligibility_MixedAttributeTypes(t *testing.T) {
	_, client := newCoreServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]interface{}{
			"id": "cust-1",
			"attributes": map[string]interface{}{
				"subscribed": true,
				"tier":       "gold",
				"age":        30,
			},
		})
	}))

	svc := NewCustomerIntegration(client, interfaces.NopLogger{})

	// булевы и числовые атрибуты сравниваются наравне со строковыми
	result, err := svc.CheckEligibility(context.Background(), "cust-1", "promo-1", map[string]interface{}{
		"subscribed": true,
		"tier":       "gold",
		"age":        30,
	})
	require.NoError(t, err)
	assert.True(t, result.Eligible)
}

func TestCheckEligibility_BooleanMismatch(t *testing.T) {
	_, client := newCoreServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]interface{}{
			"id": "cust-1",
			"attributes": map[string]interface{}{
				"subscribed": true,
			},
		})
	}))

	svc := NewCustomerIntegration(client, interfaces.NopLogger{})

	result, err := svc.CheckEligibility(context.Background(), "cust-1", "promo-1", map[string]interface{}{
		"subscribed": false,
	})
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Contains(t, result.Reason, "subscribed")
}

func TestCheckEligibility_AttributeMismatch(t *testing.T) {
	_, client := newCoreServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]interface{}{
			"id": "cust-1",
			"attributes": map[string]interface{}{
				"tier": "silver",
			},
		})
	}))

	svc := NewCustomerIntegration(client, interfaces.NopLogger{})

	result, err := svc.CheckEligibility(context.Background(), "cust-1", "promo-1", map[string]interface{}{"tier": "gold"})
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Contains(t, result.Reason, "tier")
}

func TestCheckEligibility_MissingAttribute(t *testing.T) {
	_, client := newCoreServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]interface{}{
			"id":         "cust-1",
			"attributes": map[string]interface{}{},
		})
	}))

	svc := NewCustomerIntegration(client, interfaces.NopLogger{})

	result, err := svc.CheckEligibility(context.Background(), "cust-1", "promo-1", map[string]interface{}{"tier": "gold"})
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Contains(t, result.Reason, "missing")
}

func TestCheckEligibility_CustomerNotFound(t *testing.T) {
	_, client := newCoreServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	svc := NewCustomerIntegration(client, interfaces.NopLogger{})

	_, err := svc.CheckEligibility(context.Background(), "ghost", "promo-1", map[string]interface{}{"tier": "gold"})
	require.Error(t, err)

	apiErr, ok := coreclient.AsExternalAPIError(err)
	require.True(t, ok)
	assert.Equal(t, coreclient.KindNotFound, apiErr.Kind)
}
