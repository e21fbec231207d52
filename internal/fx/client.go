// Package fx fetches exchange rates from exchangerate-api.com.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"dailybudget/internal/core"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://v6.exchangerate-api.com/v6"

// Provider returns, for a base currency, how many units of each currency one
// base unit buys.
type Provider interface {
	Latest(ctx context.Context, base string) (map[string]decimal.Decimal, error)
}

type latestResponse struct {
	Result          string                     `json:"result"`
	ErrorType       string                     `json:"error-type"`
	BaseCode        string                     `json:"base_code"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cache   *cache.Cache
	limiter *rate.Limiter
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout bounds every provider request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithCacheTTL sets how long a base currency's rates are reused. Zero
// disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = cache.New(ttl, 2*ttl)
	}
}

// WithRateLimit caps outbound requests.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		cache:   cache.New(time.Hour, 2*time.Hour),
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func external(kind core.ExternalKind, err error, format string, args ...any) error {
	return &core.ExternalServiceError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Latest returns the provider's conversion rates for base.
func (c *Client) Latest(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	if c.apiKey == "" {
		return nil, external(core.ExternalMissingKey, nil,
			"Exchange rate API key not configured. Set EXCHANGE_RATE_API_KEY.")
	}
	if c.cache != nil {
		if v, ok := c.cache.Get(base); ok {
			return v.(map[string]decimal.Decimal), nil
		}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, external(core.ExternalUnreachable, err,
			"Failed to connect to exchange rate service. Please try again later.")
	}

	url := fmt.Sprintf("%s/%s/latest/%s", c.baseURL, c.apiKey, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "Exchange rate request failed", "base", base, "error", err)
		return nil, external(core.ExternalUnreachable, err,
			"Failed to connect to exchange rate service. Please try again later.")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, external(core.ExternalHTTPStatus, nil,
			"Exchange rate API error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var data latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, external(core.ExternalProviderError, err, "Exchange rate API returned an invalid response")
	}

	if data.Result != "success" {
		switch data.ErrorType {
		case "invalid-key":
			return nil, external(core.ExternalInvalidKey, nil,
				"Invalid exchange rate API key. Please check your configuration.")
		case "unsupported-code":
			return nil, external(core.ExternalUnsupportedCode, nil,
				"Currency code %s is not supported by the exchange rate API.", base)
		case "":
			return nil, external(core.ExternalProviderError, nil, "Exchange rate API error: unknown error")
		default:
			return nil, external(core.ExternalProviderError, nil, "Exchange rate API error: %s", data.ErrorType)
		}
	}
	if len(data.ConversionRates) == 0 {
		return nil, external(core.ExternalNoData, nil, "Exchange rate API returned no conversion rates")
	}

	if c.cache != nil {
		c.cache.Set(base, data.ConversionRates, cache.DefaultExpiration)
	}
	return data.ConversionRates, nil
}
