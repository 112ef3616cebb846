package coreclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
	"golang.org/x/oauth2"
)

// максимальный размер тела ответа, сохраняемого в ошибке
const maxErrorBodySize = 4096

// Client выполняет GET/POST запросы к ядровой платформе с таймаутом,
// политикой повторов и классификацией ошибок. Доменные сервисы держат
// экземпляр клиента по композиции и не содержат собственной логики повторов
type Client struct {
	profile     *ConnectionProfile
	httpClient  *http.Client
	retryPolicy *RetryPolicy
	tokenSource oauth2.TokenSource
	logger      interfaces.LoggerPort
}

// NewClient создает новый клиент ядровой платформы.
// tokenSource опционален: если задан, к каждому запросу добавляется
// bearer-токен сервисной авторизации
func NewClient(profile *ConnectionProfile, tokenSource oauth2.TokenSource, logger interfaces.LoggerPort) *Client {
	return &Client{
		profile: profile,
		// таймаут на попытку обеспечивается контекстом в doWithRetry,
		// поэтому сам http.Client без общего таймаута
		httpClient:  &http.Client{},
		retryPolicy: NewRetryPolicy(profile.MaxRetryAttempts, profile.RetryBaseDelay),
		tokenSource: tokenSource,
		logger:      logger,
	}
}

// Profile возвращает профиль подключения
func (c *Client) Profile() *ConnectionProfile {
	return c.profile
}

// Get выполняет GET запрос и декодирует JSON-ответ в out
func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.doWithRetry(ctx, http.MethodGet, path, query, nil, out)
}

// Post выполняет POST запрос с JSON-телом и декодирует JSON-ответ в out
func (c *Client) Post(ctx context.Context, path string, body interface{}, out interface{}) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}
	return c.doWithRetry(ctx, http.MethodPost, path, nil, bodyBytes, out)
}

// doWithRetry выполняет запрос с повторами по политике.
// Исходная реактивная реализация на retryWhen заменена явным циклом:
// попытка, классификация, решение политики, задержка, повтор
func (c *Client) doWithRetry(ctx context.Context, method, path string, query url.Values, body []byte, out interface{}) error {
	target := c.buildURL(path, query)

	var apiErr *ExternalAPIError
	for attempt := 1; ; attempt++ {
		apiErr = c.doAttempt(ctx, method, target, body, out)
		if apiErr == nil {
			c.logger.DebugWithContext(ctx, "Запрос к ядровой платформе выполнен",
				interfaces.LogField{Key: "target", Value: target},
				interfaces.LogField{Key: "attempt", Value: attempt},
			)
			return nil
		}

		decision := c.retryPolicy.Decide(attempt, apiErr)
		if !decision.ShouldRetry {
			c.logger.WarnWithContext(ctx, "Запрос к ядровой платформе завершился ошибкой",
				interfaces.LogField{Key: "target", Value: target},
				interfaces.LogField{Key: "attempt", Value: attempt},
				interfaces.LogField{Key: "kind", Value: apiErr.Kind.String()},
				interfaces.LogField{Key: "error", Value: apiErr.Message},
			)
			return apiErr
		}

		c.logger.WarnWithContext(ctx, "Попытка запроса не удалась, будет повтор",
			interfaces.LogField{Key: "target", Value: target},
			interfaces.LogField{Key: "attempt", Value: attempt},
			interfaces.LogField{Key: "kind", Value: apiErr.Kind.String()},
			interfaces.LogField{Key: "backoff", Value: decision.Delay.String()},
		)

		// задержка не блокирует другие горутины и прерывается отменой контекста
		timer := time.NewTimer(decision.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ClassifyTransportError(ctx.Err())
		case <-timer.C:
		}
	}
}

// doAttempt выполняет ровно одну попытку запроса
func (c *Client) doAttempt(ctx context.Context, method, target string, body []byte, out interface{}) *ExternalAPIError {
	// жесткий дедлайн на попытку
	attemptCtx, cancel := context.WithTimeout(ctx, c.profile.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, target, reader)
	if err != nil {
		return &ExternalAPIError{Kind: KindUnknown, Message: "failed to build request", Err: err}
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.tokenSource != nil {
		token, err := c.tokenSource.Token()
		if err != nil {
			return &ExternalAPIError{Kind: KindUnauthorized, Message: "failed to obtain service token", Err: err}
		}
		token.SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return ClassifyStatus(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			// некорректное тело успешного ответа не лечится повтором
			return &ExternalAPIError{
				Kind:       KindUnknown,
				StatusCode: resp.StatusCode,
				Message:    "failed to decode response body",
				Err:        err,
			}
		}
	}

	return nil
}

// buildURL собирает полный URL запроса из профиля, пути и параметров
func (c *Client) buildURL(path string, query url.Values) string {
	target := c.profile.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}
