package openaq

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(srv.URL, "test-key", "-0.51,51.28,0.33,51.69", 100, srv.Client(), 0)
}

func TestMeasurementsDecodesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-Key"); got != "test-key" {
			t.Errorf("missing api key header, got %q", got)
		}
		if got := r.URL.Query().Get("page"); got != "2" {
			t.Errorf("expected page=2, got %q", got)
		}
		w.Write([]byte(`{"results":[{"value":12.5,"unit":"µg/m³","period":{"datetimeFrom":{"utc":"2025-03-01T10:00:00Z"}}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	w := Window{From: "2025-01-01T00:00:00Z", To: "2025-12-31T23:59:59Z"}
	recs, err := c.Measurements(context.Background(), 42, w, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 || recs[0].Value != 12.5 {
		t.Fatalf("unexpected records: %+v", recs)
	}
	if recs[0].Period.DatetimeFrom.UTC != "2025-03-01T10:00:00Z" {
		t.Fatalf("unexpected period: %+v", recs[0].Period)
	}
}

func TestRateLimitStatusIsThrottled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.Sensors(context.Background(), 1)
	if !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
}

func TestServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.Locations(context.Background(), 2)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestConnectionFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := NewClient(srv.URL, "k", "bbox", 100, &http.Client{Timeout: time.Second}, 0)
	_, err := c.Locations(context.Background(), 2)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestUndecodableBodyIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	w := Window{From: "2025-01-01T00:00:00Z", To: "2025-12-31T23:59:59Z"}
	_, err := c.Measurements(context.Background(), 42, w, 1)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
