// Package rates предоставляет клиент внешнего сервиса курсов валют.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront-pricing/internal/model"
)

// Client инкапсулирует HTTP-взаимодействие с сервисом курсов.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type rateResponse struct {
	Currency      string          `json:"currency"`
	Rate          decimal.Decimal `json:"rate"`
	EffectiveDate string          `json:"effective_date"`
}

// NewClient создаёт HTTP-клиент для сервиса курсов по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetRate запрашивает дневной курс указанной валюты к базовой.
// Возвращаемый курс всегда положителен; ответ с нулевым или
// отрицательным курсом считается ошибкой провайдера.
func (c *Client) GetRate(ctx context.Context, currency string) (*model.ExchangeRate, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("rates client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	url := fmt.Sprintf("%s/api/rates/%s", base, currency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if !result.Rate.IsPositive() {
		return nil, fmt.Errorf("provider returned non-positive rate %s for %s", result.Rate, result.Currency)
	}

	effective, err := time.Parse("2006-01-02", result.EffectiveDate)
	if err != nil {
		return nil, fmt.Errorf("parse effective date: %w", err)
	}

	return &model.ExchangeRate{
		Currency:      result.Currency,
		Rate:          result.Rate,
		EffectiveDate: effective,
	}, nil
}
