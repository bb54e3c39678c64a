package price_oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// SpotPriceClient reads a spot quote shaped {"data":{"amount":"<fiat per BTC>"}}.
type SpotPriceClient struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewSpotPriceClient(logger *slog.Logger, url string, timeout time.Duration) *SpotPriceClient {
	return &SpotPriceClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "spot_price_client"),
	}
}

type spotResponse struct {
	Data struct {
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	} `json:"data"`
}

func (c *SpotPriceClient) FetchSpot(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, fmt.Errorf("price source returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload spotResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode price response: %w", err)
	}
	if !payload.Data.Amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("price source returned non-positive amount %s", payload.Data.Amount)
	}

	c.logger.Debug("Fetched spot price", "amount", payload.Data.Amount.String(), "currency", payload.Data.Currency)
	return payload.Data.Amount, nil
}
