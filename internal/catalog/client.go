package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vinobench/internal/metacache"
)

const defaultHTTPTimeout = 5 * time.Second

// ErrNotFound indicates the catalog has no record for the requested id.
var ErrNotFound = errors.New("catalog: not found")

// Client wraps the wine catalog metadata API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes the catalog client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a catalog API client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// LookupVintage fetches the metadata record for a vintage id.
func (c *Client) LookupVintage(ctx context.Context, id string) (metacache.Record, error) {
	var payload vintagePayload
	if err := c.getJSON(ctx, "/vintages/"+url.PathEscape(id), &payload); err != nil {
		return metacache.Record{}, err
	}
	record := payload.Wine.record()
	record.Year = payload.Year.String()
	record.ImageLocation = strings.TrimLeft(payload.Image.Location, "/")
	return record, nil
}

// LookupWine fetches the metadata record for a wine id. The returned record
// carries no vintage year.
func (c *Client) LookupWine(ctx context.Context, id string) (metacache.Record, error) {
	var payload winePayload
	if err := c.getJSON(ctx, "/wines/"+url.PathEscape(id), &payload); err != nil {
		return metacache.Record{}, err
	}
	return payload.record(), nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if c.baseURL == "" {
		return errors.New("catalog: base URL required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("catalog: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("catalog: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("catalog: decode response: %w", err)
	}
	return nil
}

type vintagePayload struct {
	Year  flexString  `json:"year"`
	Wine  winePayload `json:"wine"`
	Image struct {
		Location string `json:"location"`
	} `json:"image"`
}

type winePayload struct {
	ID     flexString `json:"id"`
	Name   string     `json:"name"`
	Winery struct {
		ID   flexString `json:"id"`
		Name string     `json:"name"`
	} `json:"winery"`
	Region struct {
		Name string `json:"name"`
	} `json:"region"`
}

func (w winePayload) record() metacache.Record {
	return metacache.Record{
		WineID:     w.ID.String(),
		WineName:   w.Name,
		WineryID:   w.Winery.ID.String(),
		WineryName: w.Winery.Name,
		Region:     w.Region.Name,
	}
}

// flexString decodes JSON values that appear as either strings or numbers.
// The catalog serves numeric ids and years, but non-vintage wines carry
// year values like "N.V.".
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string { return string(f) }
