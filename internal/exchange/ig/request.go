package ig

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

func (c *Client) doRequest(ctx context.Context, method, path, version string, params url.Values, body any, out any) error {
	if !c.session.EnsureAuthenticated(ctx) {
		return fmt.Errorf("Не удалось авторизоваться в IG: %w", errNotAuthenticated)
	}

	err := c.send(ctx, method, path, version, params, body, out)
	if !isTokenError(err) {
		return err
	}

	c.logEntry().WithError(err).Warn("Токен IG недействителен, выполняем повторный вход.")
	c.session.Invalidate()
	if !c.session.EnsureAuthenticated(ctx) {
		return fmt.Errorf("Не удалось авторизоваться в IG: %w", errNotAuthenticated)
	}
	return c.send(ctx, method, path, version, params, body, out)
}

func (c *Client) send(ctx context.Context, method, path, version string, params url.Values, body any, out any) error {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("Не удалось подготовить тело запроса: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	urlStr := c.baseURL + path
	if len(params) > 0 {
		urlStr += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, bodyReader)
	if err != nil {
		return fmt.Errorf("Не удалось создать запрос: %w", err)
	}

	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("Accept", "application/json; charset=UTF-8")
	req.Header.Set("X-IG-API-KEY", c.apiKey)
	req.Header.Set("Version", version)
	c.session.apply(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Ошибка запроса: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("Не удалось прочитать ответ: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil {
			apiErr.Code = eb.ErrorCode
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("Не удалось разобрать ответ: %w", err)
	}
	return nil
}

// withRetry повторяет только чтения: заявки на IG не идемпотентны.
func withRetry[T any](ctx context.Context, c *Client, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	backoff := c.retryBackoff
	attempts := c.retries
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		val, err := fn()
		if err == nil {
			return val, nil
		}
		lastErr = err
		if !isRetryable(err) || i == attempts-1 {
			break
		}
		wait := time.Duration(math.Min(float64(backoff), float64(c.retryBackoff*30)))
		if isRateLimitError(err) {
			wait = time.Duration(math.Min(float64(backoff*4), float64(c.retryBackoff*30)))
		}
		c.logEntry().WithError(lastErr).Warn("Ошибка, повторяем запрос.")
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
	return zero, lastErr
}

func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, errNotAuthenticated) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || isRateLimitError(err)
	}
	return true
}

func isRateLimitError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusTooManyRequests ||
		strings.Contains(apiErr.Code, "exceeded-api-key-allowance") ||
		strings.Contains(apiErr.Code, "exceeded-account-allowance") ||
		strings.Contains(apiErr.Code, "exceeded-account-trading-allowance")
}

func isTokenError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized ||
		strings.Contains(apiErr.Code, "client-token-invalid") ||
		strings.Contains(apiErr.Code, "oauth-token-invalid")
}

func isNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusNotFound || strings.Contains(apiErr.Code, "not-found")
}

func (c *Client) logEntry() *logrus.Entry {
	return c.log.WithComponent("ig")
}
