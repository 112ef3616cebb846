package coreclient

import "time"

// RetryDecision представляет решение политики повторов для одной попытки
type RetryDecision struct {
	ShouldRetry bool
	Delay       time.Duration
}

// RetryPolicy решает, повторять ли запрос после ошибки и с какой задержкой.
// Политика не дублирует таблицу классификации: допустимость повтора
// берется из ExternalAPIError.Retryable()
type RetryPolicy struct {
	maxAttempts int           // число повторов сверх первой попытки
	baseDelay   time.Duration // базовая задержка линейного backoff
}

// NewRetryPolicy создает политику повторов
func NewRetryPolicy(maxAttempts int, baseDelay time.Duration) *RetryPolicy {
	return &RetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

// Decide возвращает решение для попытки с номером attempt (начиная с 1).
// Задержка растет линейно: delay = attempt * baseDelay, что дает
// детерминированную верхнюю границу суммарного времени повторов
func (p *RetryPolicy) Decide(attempt int, apiErr *ExternalAPIError) RetryDecision {
	if apiErr == nil || !apiErr.Retryable() {
		return RetryDecision{}
	}

	if attempt > p.maxAttempts {
		return RetryDecision{}
	}

	return RetryDecision{
		ShouldRetry: true,
		Delay:       time.Duration(attempt) * p.baseDelay,
	}
}
