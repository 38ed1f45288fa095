package openaq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"
)

// Outcome taxonomy for upstream calls. The client never retries; recovery
// policy belongs to the caller.
var (
	// ErrThrottled is returned when the provider answers with its
	// rate-limit status (429).
	ErrThrottled = errors.New("openaq: throttled")
	// ErrUnavailable covers transport failures and non-2xx, non-429 answers.
	ErrUnavailable = errors.New("openaq: unavailable")
	// ErrMalformed covers bodies that do not decode as the expected shape.
	ErrMalformed = errors.New("openaq: malformed response")
)

// Location is one station candidate from a bounding-box discovery call.
type Location struct {
	ID          int         `json:"id"`
	Name        string      `json:"name"`
	Coordinates Coordinates `json:"coordinates"`
}

// Coordinates in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Sensor is one instrument attached to a location.
type Sensor struct {
	ID        int             `json:"id"`
	Parameter SensorParameter `json:"parameter"`
}

// SensorParameter identifies what a sensor measures.
type SensorParameter struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Measurement is one provider-native reading from a measurements page.
type Measurement struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Period Period  `json:"period"`
}

// Period carries the reading's time bounds.
type Period struct {
	DatetimeFrom UTCStamp `json:"datetimeFrom"`
}

// UTCStamp wraps the provider's UTC timestamp string (RFC3339).
type UTCStamp struct {
	UTC string `json:"utc"`
}

type resultsEnvelope[T any] struct {
	Results []T `json:"results"`
}

// Window bounds one harvest time window, both ends inclusive, RFC3339.
type Window struct {
	From string
	To   string
}

// Client talks to an OpenAQ-style v3 API. Every call waits on the etiquette
// limiter, carries the configured per-call timeout, and maps failures onto
// the outcome sentinels above.
type Client struct {
	base    string
	apiKey  string
	bbox    string
	pageLim int
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a client. ratePerSec bounds sustained request rate across
// all callers sharing this client; pageLimit is the page size requested from
// the provider.
func NewClient(baseURL, apiKey, bbox string, pageLimit int, httpClient *http.Client, ratePerSec float64) *Client {
	if pageLimit <= 0 {
		pageLimit = 1000
	}
	limiter := rate.NewLimiter(rate.Limit(ratePerSec), 1)
	if ratePerSec <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Client{
		base:    baseURL,
		apiKey:  apiKey,
		bbox:    bbox,
		pageLim: pageLimit,
		http:    httpClient,
		limiter: limiter,
	}
}

// Locations discovers station candidates in the configured bounding box that
// report the given pollutant.
func (c *Client) Locations(ctx context.Context, pollutantID int) ([]Location, error) {
	params := url.Values{}
	params.Set("bbox", c.bbox)
	params.Set("parameters_id", strconv.Itoa(pollutantID))
	params.Set("limit", strconv.Itoa(c.pageLim))
	return fetch[Location](ctx, c, "/locations", params)
}

// Sensors lists the instruments attached to one location.
func (c *Client) Sensors(ctx context.Context, locationID int) ([]Sensor, error) {
	return fetch[Sensor](ctx, c, fmt.Sprintf("/locations/%d/sensors", locationID), url.Values{})
}

// Measurements fetches one page of readings for a sensor inside a window.
// Pages are 1-based; an empty slice with a nil error signals exhaustion.
func (c *Client) Measurements(ctx context.Context, sensorID int, w Window, page int) ([]Measurement, error) {
	params := url.Values{}
	params.Set("datetime_from", w.From)
	params.Set("datetime_to", w.To)
	params.Set("limit", strconv.Itoa(c.pageLim))
	params.Set("page", strconv.Itoa(page))
	return fetch[Measurement](ctx, c, fmt.Sprintf("/sensors/%d/measurements", sensorID), params)
}

func fetch[T any](ctx context.Context, c *Client, path string, params url.Values) ([]T, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	endpoint := c.base + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrThrottled
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: unexpected status %s", ErrUnavailable, resp.Status)
	}

	var envelope resultsEnvelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return envelope.Results, nil
}
