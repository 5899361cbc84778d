package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/niklasbrandt/openzero/internal/models"
)

// HTTPError represents a non-success response from the dashboard backend.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d (%s) for %s", e.StatusCode, e.Status, e.URL)
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, status, url string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Status:     status,
		URL:        url,
	}
}

// Config holds API client configuration.
type Config struct {
	BaseURL string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns a default API client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "http://localhost:8000",
		Timeout: 30 * time.Second,
	}
}

// Client talks to the dashboard backend's calendar endpoints. It performs no
// automatic retries: a failed call is surfaced to the caller, and the next
// user action is the only retry trigger.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new API client with the given configuration.
func NewClient(config *Config, logger *slog.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// ListMonth fetches the event snapshot for the given calendar month.
func (c *Client) ListMonth(ctx context.Context, year int, month time.Month) ([]models.CalendarEvent, error) {
	endpoint, err := url.Parse(c.baseURL + "/api/dashboard/calendar")
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}

	q := endpoint.Query()
	q.Set("year", strconv.Itoa(year))
	q.Set("month", strconv.Itoa(int(month)))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Fetching calendar events", "year", year, "month", int(month))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewHTTPError(resp.StatusCode, resp.Status, endpoint.String())
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var events []models.CalendarEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("malformed calendar response: %w", err)
	}

	c.logger.Debug("Fetched calendar events",
		"year", year,
		"month", int(month),
		"event_count", len(events))

	return events, nil
}

// CreateLocalEvent creates a new local event in the backend store.
func (c *Client) CreateLocalEvent(ctx context.Context, input models.LocalEventInput) error {
	return c.send(ctx, http.MethodPost, "/api/dashboard/calendar/local", input)
}

// UpdateLocalSummary updates the summary of an existing local event. The
// backend accepts title-only updates; no other field is mutable in place.
func (c *Client) UpdateLocalSummary(ctx context.Context, id, summary string) error {
	path := "/api/dashboard/calendar/local/" + url.PathEscape(id)
	return c.send(ctx, http.MethodPut, path, models.SummaryUpdate{Summary: summary})
}

// DeleteLocalEvent deletes a local event.
func (c *Client) DeleteLocalEvent(ctx context.Context, id string) error {
	path := "/api/dashboard/calendar/local/" + url.PathEscape(id)
	return c.send(ctx, http.MethodDelete, path, nil)
}

// send issues a mutating request with an optional JSON body.
func (c *Client) send(ctx context.Context, method, path string, payload any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return NewHTTPError(resp.StatusCode, resp.Status, endpoint)
	}

	c.logger.Debug("Mutation applied", "method", method, "path", path)
	return nil
}

// IsHealthy checks that the backend answers the calendar endpoint at all.
func (c *Client) IsHealthy(ctx context.Context) error {
	now := time.Now()
	if _, err := c.ListMonth(ctx, now.Year(), now.Month()); err != nil {
		return fmt.Errorf("backend health check failed: %w", err)
	}
	return nil
}
