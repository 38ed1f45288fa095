package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aishadeltio13/DataProject1/measurement"
)

// Outcome classifies the gateway's answer to one submission.
type Outcome int

const (
	// Accepted means a new row was stored.
	Accepted Outcome = iota
	// Duplicate means the record's key already exists. Expected on replays.
	Duplicate
	// Invalid means the gateway rejected a field. The record is discarded.
	Invalid
	// Unauthorized means the sink credential was refused.
	Unauthorized
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case Invalid:
		return "invalid"
	case Unauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Client submits canonical records to the ingestion gateway, one per call,
// authenticating with the sink credential header. Submission is
// at-least-once: the caller may replay freely because the store is
// idempotent.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

// NewClient builds a sink client for the gateway ingest endpoint.
func NewClient(ingestURL, apiKey string, httpClient *http.Client) *Client {
	return &Client{url: ingestURL, apiKey: apiKey, http: httpClient}
}

// Submit posts one record. A non-nil error means the gateway was
// unreachable or answered outside its contract; the outcome is meaningless
// in that case.
func (c *Client) Submit(ctx context.Context, rec measurement.Record) (Outcome, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encode record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sink unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		return Accepted, nil
	case http.StatusConflict:
		return Duplicate, nil
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return Invalid, nil
	case http.StatusUnauthorized:
		return Unauthorized, nil
	default:
		return 0, fmt.Errorf("sink answered unexpected status %s", resp.Status)
	}
}
