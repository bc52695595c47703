// Package owm talks to the OpenWeatherMap daily-forecast API and decodes its
// response documents into forecast days.
package owm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

const (
	httpTimeout = 10 * time.Second

	defaultBaseURL = "https://api.openweathermap.org/data/2.5/forecast/daily"
)

// Client fetches daily forecast documents. A circuit breaker fronts the
// remote call so repeated upstream failures fail fast instead of holding a
// worker for the full timeout; there is no retry, the next scheduled sync is
// the retry.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient constructs a Client with the given API key using the production
// endpoint.
func NewClient(apiKey string) *Client {
	return newClient(defaultBaseURL, apiKey)
}

// NewClientWithURL constructs a Client pointing at a custom base URL (for tests).
func NewClientWithURL(baseURL, apiKey string) *Client {
	return newClient(baseURL, apiKey)
}

func newClient(baseURL, apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: httpTimeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "openweathermap",
			Timeout: time.Minute,
		}),
	}
}

// Fetch performs one GET for up to days upcoming days at the given location
// and returns the raw JSON document. The location is either a "city,country"
// query string or a "lat,lon" pair; the API accepts both forms via q.
func (c *Client) Fetch(ctx context.Context, location string, days int) ([]byte, error) {
	endpoint := fmt.Sprintf("%s?q=%s&mode=json&units=metric&cnt=%d&appid=%s",
		c.baseURL, url.QueryEscape(location), days, c.apiKey)

	body, err := c.breaker.Execute(func() (any, error) {
		return c.get(ctx, endpoint)
	})
	if err != nil {
		return nil, fmt.Errorf("openweathermap fetch for %s: %w", location, err)
	}
	return body.([]byte), nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned status %d", c.baseURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}
