// Package hotelsapi queries the hotels4 search API and selects hotels for a session.
package hotelsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/hotelbot/core/logger"
	"github.com/m3rciful/hotelbot/internal/metrics"
)

var (
	// ErrNotFound is returned when a location query has no match.
	ErrNotFound = errors.New("hotelsapi: location not found")
	// ErrMissingField marks a response lacking the expected structure.
	ErrMissingField = errors.New("hotelsapi: missing field in response")
)

// UpstreamError reports a failed API call: a non-success status or an undecodable body.
type UpstreamError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("hotelsapi: %s returned status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("hotelsapi: %s: %v", e.Endpoint, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Code satisfies the router's error code derivation.
func (e *UpstreamError) Code() string { return "upstream" }

// Endpoint paths of the hotels4 API.
const (
	EndpointLocations  = "/locations/v2/search/"
	EndpointProperties = "/properties/list/"
	EndpointPhotos     = "/properties/get-hotel-photos/"
	EndpointDetails    = "/properties/get-details/"
)

// Config describes how to reach the API.
type Config struct {
	BaseURL  string
	Key      string
	Host     string
	Locale   string
	Currency string
}

// Client performs GET requests against the API and decodes JSON documents.
type Client struct {
	cfg     Config
	http    *http.Client
	metrics *metrics.Metrics
	cache   LocationCache
}

// NewClient builds a Client. httpClient defaults to a client with a 30s timeout.
func NewClient(cfg Config, httpClient *http.Client, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Locale == "" {
		cfg.Locale = "en_US"
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpClient, metrics: m}
}

// WithCache enables location caching.
func (c *Client) WithCache(cache LocationCache) *Client {
	c.cache = cache
	return c
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	u, err := url.Parse(c.cfg.BaseURL + endpoint)
	if err != nil {
		return fmt.Errorf("hotelsapi: invalid base URL: %w", err)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("hotelsapi: build request: %w", err)
	}
	if c.cfg.Key != "" {
		req.Header.Set("X-RapidAPI-Key", c.cfg.Key)
	}
	if c.cfg.Host != "" {
		req.Header.Set("X-RapidAPI-Host", c.cfg.Host)
	}

	start := time.Now()
	name := endpointName(endpoint)
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(ctx, name, "error", 0, start, err)
		return &UpstreamError{Endpoint: name, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.observe(ctx, name, statusClass(resp.StatusCode), resp.StatusCode, start, nil)
		return &UpstreamError{Endpoint: name, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.observe(ctx, name, "bad_body", resp.StatusCode, start, err)
		return &UpstreamError{Endpoint: name, Err: fmt.Errorf("decode: %w", err)}
	}
	c.observe(ctx, name, "ok", resp.StatusCode, start, nil)
	return nil
}

func (c *Client) observe(ctx context.Context, endpoint, status string, code int, start time.Time, err error) {
	took := time.Since(start)
	c.metrics.ObserveAPI(endpoint, status, took)
	attrs := []slog.Attr{
		slog.String("endpoint", endpoint),
		slog.String("status", status),
		slog.Duration("duration", took),
	}
	if code != 0 {
		attrs = append(attrs, slog.Int("http_code", code))
	}
	level := slog.LevelDebug
	if err != nil || status != "ok" {
		level = slog.LevelWarn
		if err != nil {
			attrs = append(attrs, slog.String("err", err.Error()))
		}
	}
	logger.API.LogAttrs(ctx, level, "api.request", attrs...)
}

func endpointName(endpoint string) string {
	switch endpoint {
	case EndpointLocations:
		return "locations"
	case EndpointProperties:
		return "properties"
	case EndpointPhotos:
		return "photos"
	case EndpointDetails:
		return "details"
	}
	return strings.Trim(endpoint, "/")
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "http_5xx"
	case code >= 400:
		return "http_4xx"
	}
	return "http_" + strconv.Itoa(code)
}

// Locations resolves a free-text city name to a destination id.
func (c *Client) Locations(ctx context.Context, city string) (string, error) {
	if c.cache != nil {
		id, ok, err := c.cache.Get(ctx, city)
		switch {
		case err != nil:
			c.metrics.ObserveCache("error")
			logger.Cache.LogAttrs(ctx, slog.LevelWarn, "cache.get_failed",
				slog.String("city", city),
				slog.String("err", err.Error()),
			)
		case ok:
			c.metrics.ObserveCache("hit")
			logger.Cache.LogAttrs(ctx, slog.LevelDebug, "cache.lookup",
				slog.String("cache", "hit"),
				slog.String("city", city),
				slog.String("destination_id", id),
			)
			return id, nil
		default:
			c.metrics.ObserveCache("miss")
			logger.Cache.LogAttrs(ctx, slog.LevelDebug, "cache.lookup",
				slog.String("cache", "miss"),
				slog.String("city", city),
			)
		}
	}

	q := url.Values{}
	q.Set("query", city)
	q.Set("locale", c.cfg.Locale)
	q.Set("currency", c.cfg.Currency)

	var resp locationResponse
	if err := c.get(ctx, EndpointLocations, q, &resp); err != nil {
		return "", err
	}
	if len(resp.Suggestions) == 0 {
		return "", fmt.Errorf("%w: suggestions", ErrMissingField)
	}
	entities := resp.Suggestions[0].Entities
	if len(entities) == 0 || entities[0].DestinationID == "" {
		return "", ErrNotFound
	}
	id := entities[0].DestinationID

	if c.cache != nil {
		if err := c.cache.Set(ctx, city, id); err != nil {
			logger.Cache.LogAttrs(ctx, slog.LevelWarn, "cache.set_failed",
				slog.String("city", city),
				slog.String("err", err.Error()),
			)
		}
	}
	return id, nil
}

// PropertyQuery selects a page of properties.
type PropertyQuery struct {
	DestinationID string
	CheckIn       string
	CheckOut      string
	SortOrder     string
	PageSize      int
}

// Properties lists hotels for a destination in the API's sort order.
func (c *Client) Properties(ctx context.Context, pq PropertyQuery) (*PropertyList, error) {
	q := url.Values{}
	q.Set("destinationId", pq.DestinationID)
	q.Set("pageNumber", "1")
	q.Set("pageSize", strconv.Itoa(pq.PageSize))
	q.Set("checkIn", pq.CheckIn)
	q.Set("checkOut", pq.CheckOut)
	q.Set("adults1", "1")
	q.Set("sortOrder", pq.SortOrder)
	q.Set("locale", c.cfg.Locale)
	q.Set("currency", c.cfg.Currency)

	var resp propertiesResponse
	if err := c.get(ctx, EndpointProperties, q, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil || resp.Data.Body == nil {
		return nil, fmt.Errorf("%w: data.body", ErrMissingField)
	}
	return &PropertyList{
		Header:     resp.Data.Body.Header,
		Properties: resp.Data.Body.SearchResults.Results,
	}, nil
}

// Photos lists hotel and room photos.
func (c *Client) Photos(ctx context.Context, hotelID int64) (*Photos, error) {
	q := url.Values{}
	q.Set("id", strconv.FormatInt(hotelID, 10))

	var resp Photos
	if err := c.get(ctx, EndpointPhotos, q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Details fetches the full address of a hotel for the given stay.
func (c *Client) Details(ctx context.Context, hotelID int64, checkIn, checkOut string) (string, error) {
	q := url.Values{}
	q.Set("id", strconv.FormatInt(hotelID, 10))
	q.Set("checkIn", checkIn)
	q.Set("checkOut", checkOut)
	q.Set("adults1", "1")
	q.Set("currency", c.cfg.Currency)
	q.Set("locale", c.cfg.Locale)

	var resp detailsResponse
	if err := c.get(ctx, EndpointDetails, q, &resp); err != nil {
		return "", err
	}
	if resp.Data == nil || resp.Data.Body == nil || resp.Data.Body.PropertyDescription == nil ||
		resp.Data.Body.PropertyDescription.Address == nil ||
		resp.Data.Body.PropertyDescription.Address.FullAddress == "" {
		return "", fmt.Errorf("%w: propertyDescription.address.fullAddress", ErrMissingField)
	}
	return resp.Data.Body.PropertyDescription.Address.FullAddress, nil
}
