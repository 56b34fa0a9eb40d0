// Package eonet fetches natural events from NASA's EONET v3 API.
package eonet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
)

// Config configures a Client.
type Config struct {
	BaseURL        string  // e.g. https://eonet.gsfc.nasa.gov/api/v3
	Status         string  // open, closed or all
	Days           int     // 0 means no limit
	RequestsPerSec float64 // upstream politeness
	Timeout        time.Duration
	UserAgent      string
}

// Client implements ports.EventSource.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a rate-limited EONET client.
func NewClient(cfg Config) *Client {
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Status == "" {
		cfg.Status = "open"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "wildfire-tracker/1.0"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
	}
}

type eventsResponse struct {
	Title  string         `json:"title"`
	Events []domain.Event `json:"events"`
}

// FetchEvents returns the events of one category.
func (c *Client) FetchEvents(ctx context.Context, categoryID string) ([]domain.Event, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{"status": {c.cfg.Status}}
	if categoryID != "" {
		params.Set("category", categoryID)
	}
	if c.cfg.Days > 0 {
		params.Set("days", strconv.Itoa(c.cfg.Days))
	}
	u := fmt.Sprintf("%s/events?%s", c.cfg.BaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("eonet: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out eventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("eonet: decode: %w", err)
	}
	return out.Events, nil
}
