package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aishadeltio13/DataProject1/measurement"
	"github.com/aishadeltio13/DataProject1/services/api/config"
	"github.com/aishadeltio13/DataProject1/services/api/db"
)

// memStore mirrors the real store's contract: keyed uniqueness for
// measurements, create-only credentials.
type memStore struct {
	mu    sync.Mutex
	rows  map[measurement.Key]measurement.Record
	users map[string]string // username -> api key
}

func newMemStore() *memStore {
	return &memStore{
		rows:  make(map[measurement.Key]measurement.Record),
		users: make(map[string]string),
	}
}

func (m *memStore) LookupUser(ctx context.Context, apiKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for user, key := range m.users {
		if key == apiKey {
			return user, nil
		}
	}
	return "", db.ErrUnknownKey
}

func (m *memStore) CreateUser(ctx context.Context, username string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; ok {
		return "", db.ErrUserExists
	}
	key := fmt.Sprintf("key-%s", username)
	m.users[username] = key
	return key, nil
}

func (m *memStore) InsertMeasurement(ctx context.Context, rec measurement.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[rec.Key()]; ok {
		return db.ErrDuplicate
	}
	m.rows[rec.Key()] = rec
	return nil
}

func (m *memStore) LatestByStation(ctx context.Context) ([]db.LatestRow, error) {
	return []db.LatestRow{}, nil
}

func (m *memStore) Averages(ctx context.Context, hours int) ([]db.ParameterStats, error) {
	return []db.ParameterStats{}, nil
}

func (m *memStore) TopStations(ctx context.Context, parameter string, hours, limit int) ([]db.StationAverage, error) {
	return []db.StationAverage{}, nil
}

func (m *memStore) Stations(ctx context.Context) ([]db.StationInfo, error) {
	return []db.StationInfo{}, nil
}

func testServer(store Store) *Server {
	return New(config.Config{Port: 0, DefaultHours: 24, DefaultLimit: 10}, store)
}

func seedUser(t *testing.T, store *memStore) string {
	t.Helper()
	key, err := store.CreateUser(context.Background(), "harvester")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return key
}

func validBody() measurement.Record {
	return measurement.Record{
		Source:      "realtime",
		StationUID:  5724,
		StationName: "London Westminster",
		Lat:         51.50,
		Lon:         -0.12,
		SensorDate:  "2025-06-01 14:00:00",
		ScrapedAt:   "2025-06-01 14:05:12",
		Parameter:   "pm25",
		Value:       18.4,
		Unit:        "µg/m³",
	}
}

func postIngest(srv *Server, apiKey string, rec measurement.Record) *httptest.ResponseRecorder {
	body, _ := json.Marshal(rec)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func TestIngestIsIdempotent(t *testing.T) {
	store := newMemStore()
	srv := testServer(store)
	key := seedUser(t, store)

	if w := postIngest(srv, key, validBody()); w.Code != http.StatusCreated {
		t.Fatalf("first submission: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	if w := postIngest(srv, key, validBody()); w.Code != http.StatusConflict {
		t.Fatalf("replay: expected 409, got %d (%s)", w.Code, w.Body.String())
	}
	if len(store.rows) != 1 {
		t.Fatalf("store must hold exactly one row, has %d", len(store.rows))
	}
}

func TestIngestRejectsUnknownCredential(t *testing.T) {
	store := newMemStore()
	srv := testServer(store)

	if w := postIngest(srv, "", validBody()); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: expected 401, got %d", w.Code)
	}
	if w := postIngest(srv, "not-a-key", validBody()); w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown key: expected 401, got %d", w.Code)
	}
	if len(store.rows) != 0 {
		t.Fatalf("refused writes must have no effect, store has %d rows", len(store.rows))
	}
}

func TestIngestRejectsInvalidFieldsAndNamesThem(t *testing.T) {
	store := newMemStore()
	srv := testServer(store)
	key := seedUser(t, store)

	cases := []struct {
		name  string
		build func(measurement.Record) measurement.Record
		field string
	}{
		{"lat outside envelope", func(r measurement.Record) measurement.Record { r.Lat = 52.0; return r }, "lat"},
		{"unit not allowed", func(r measurement.Record) measurement.Record { r.Unit = "ppm"; return r }, "unit"},
		{"bad sensor_date", func(r measurement.Record) measurement.Record { r.SensorDate = "June 1"; return r }, "sensor_date"},
	}

	for _, tc := range cases {
		w := postIngest(srv, key, tc.build(validBody()))
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d", tc.name, w.Code)
		}
		var resp struct {
			Field string `json:"field"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Field != tc.field {
			t.Fatalf("%s: expected field %q to be named, got %s", tc.name, tc.field, w.Body.String())
		}
	}
	if len(store.rows) != 0 {
		t.Fatalf("rejected records must not be stored")
	}
}

func TestRegisterIsCreateOnly(t *testing.T) {
	srv := testServer(newMemStore())

	register := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/register", bytes.NewReader([]byte(`{"username":"dashboard"}`)))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		srv.Engine().ServeHTTP(w, req)
		return w
	}

	w := register()
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	var resp struct {
		APIKey string `json:"api_key"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.APIKey == "" {
		t.Fatalf("expected generated api key in response, got %s", w.Body.String())
	}

	if w := register(); w.Code != http.StatusConflict {
		t.Fatalf("re-registration: expected 409, got %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := testServer(newMemStore())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
