package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"watchtower-backend/application/ports"
)

const defaultEndpoint = "https://app.scrapingbee.com/api/v1/"

// maxBodyBytes caps how much of a page is read. Product data sits in the
// head and the first scripts; multi-megabyte pages past this are noise.
const maxBodyBytes = 4 << 20

// ScrapingBeeClient implements the Fetcher interface through the
// ScrapingBee rendering proxy. A circuit breaker sits in front of the
// upstream so a proxy outage fails fast instead of eating worker slots.
type ScrapingBeeClient struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string
	renderJS   bool
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// ScrapingBeeOption customizes the client.
type ScrapingBeeOption func(*ScrapingBeeClient)

// WithEndpoint overrides the upstream endpoint, used by tests.
func WithEndpoint(endpoint string) ScrapingBeeOption {
	return func(c *ScrapingBeeClient) { c.endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) ScrapingBeeOption {
	return func(c *ScrapingBeeClient) { c.httpClient = client }
}

// WithRenderJS toggles upstream JavaScript rendering.
func WithRenderJS(render bool) ScrapingBeeOption {
	return func(c *ScrapingBeeClient) { c.renderJS = render }
}

// NewScrapingBeeClient creates a fetcher backed by ScrapingBee.
func NewScrapingBeeClient(apiKey string, logger *zap.Logger, opts ...ScrapingBeeOption) *ScrapingBeeClient {
	c := &ScrapingBeeClient{
		httpClient: &http.Client{Timeout: 35 * time.Second},
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		renderJS:   true,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "scrapingbee",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A dead product page is the page's fault, not the upstream's.
		IsSuccessful: func(err error) bool {
			return err == nil || ports.IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("fetch breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

// Fetch downloads the page through the proxy and parses it into a snapshot.
func (c *ScrapingBeeClient) Fetch(ctx context.Context, pageURL string) (*ports.FetchResult, error) {
	body, err := c.download(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	snap, ok := ParseProductPage(body)
	if !ok {
		// The page came back fine but carries no product data; retrying
		// yields the same markup.
		return nil, ports.NewPermanentError("page has no recognizable product data")
	}
	return &ports.FetchResult{Snapshot: snap}, nil
}

func (c *ScrapingBeeClient) download(ctx context.Context, pageURL string) (string, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, pageURL)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return "", fmt.Errorf("fetch upstream unavailable: %w", err)
		}
		return "", err
	}
	return result.(string), nil
}

func (c *ScrapingBeeClient) doRequest(ctx context.Context, pageURL string) (string, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("url", pageURL)
	if c.renderJS {
		params.Set("render_js", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build fetch request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read page body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return string(body), nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// The proxy passes the target status through; the product page no
		// longer exists.
		return "", ports.NewPermanentError(fmt.Sprintf("page returned status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ports.NewPermanentError(fmt.Sprintf("fetch rejected with status %d", resp.StatusCode))
	default:
		// 429 and 5xx are worth retrying.
		return "", fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}
}
