package coreclient

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_NonRetryableError(t *testing.T) {
	policy := NewRetryPolicy(3, 100*time.Millisecond)

	for _, status := range []int{
		http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusConflict,
	} {
		decision := policy.Decide(1, ClassifyStatus(status, nil))
		assert.False(t, decision.ShouldRetry, "status %d must not be retried", status)
	}
}

func TestRetryPolicy_NilError(t *testing.T) {
	policy := NewRetryPolicy(3, 100*time.Millisecond)

	decision := policy.Decide(1, nil)
	assert.False(t, decision.ShouldRetry)
}

func TestRetryPolicy_LinearBackoff(t *testing.T) {
	policy := NewRetryPolicy(3, 100*time.Millisecond)
	apiErr := ClassifyStatus(http.StatusServiceUnavailable, nil)

	// задержка растет линейно с номером попытки
	for attempt := 1; attempt <= 3; attempt++ {
		decision := policy.Decide(attempt, apiErr)
		assert.True(t, decision.ShouldRetry)
		assert.Equal(t, time.Duration(attempt)*100*time.Millisecond, decision.Delay)
	}
}

func TestRetryPolicy_AttemptsExhausted(t *testing.T) {
	policy := NewRetryPolicy(2, 100*time.Millisecond)
	apiErr := ClassifyStatus(http.StatusServiceUnavailable, nil)

	assert.True(t, policy.Decide(2, apiErr).ShouldRetry)
	assert.False(t, policy.Decide(3, apiErr).ShouldRetry)
}

func TestRetryPolicy_ZeroRetries(t *testing.T) {
	policy := NewRetryPolicy(0, 100*time.Millisecond)
	apiErr := ClassifyStatus(http.StatusServiceUnavailable, nil)

	assert.False(t, policy.Decide(1, apiErr).ShouldRetry)
}
