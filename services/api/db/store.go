package db

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aishadeltio13/DataProject1/measurement"
)

// Typed outcomes the HTTP layer maps onto statuses.
var (
	// ErrDuplicate marks an insert refused by the uniqueness constraint.
	// Expected on replays; not a fault.
	ErrDuplicate = errors.New("db: duplicate measurement")
	// ErrUserExists marks a registration for an already-taken principal.
	ErrUserExists = errors.New("db: user already exists")
	// ErrUnknownKey marks an api key with no matching user.
	ErrUnknownKey = errors.New("db: unknown api key")
)

const uniqueViolation = "23505"

// Store wraps database access for the ingestion gateway.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool and ensures the schema exists.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ensureSchema creates the measurement and credential tables. The unique
// triple constraint on measurements is the write-side concurrency
// mechanism: check-and-insert is atomic at the storage layer.
func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS air_measurements (
    id BIGSERIAL PRIMARY KEY,
    source TEXT NOT NULL,
    station_uid INTEGER NOT NULL,
    station_name TEXT NOT NULL,
    lat DOUBLE PRECISION NOT NULL,
    lon DOUBLE PRECISION NOT NULL,
    sensor_date TEXT NOT NULL,
    scraped_at TEXT NOT NULL,
    parameter TEXT NOT NULL,
    value DOUBLE PRECISION NOT NULL,
    unit TEXT NOT NULL,
    ingested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT air_measurements_unique UNIQUE (station_uid, sensor_date, parameter)
);
CREATE TABLE IF NOT EXISTS users (
    username TEXT PRIMARY KEY,
    api_key TEXT NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`)
	return err
}

const insertMeasurementSQL = `
INSERT INTO air_measurements (source, station_uid, station_name, lat, lon, sensor_date, scraped_at, parameter, value, unit)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

// InsertMeasurement stores one canonical record. Insert-once-or-reject:
// a pre-existing (station_uid, sensor_date, parameter) triple yields
// ErrDuplicate, never an overwrite.
func (s *Store) InsertMeasurement(ctx context.Context, rec measurement.Record) error {
	_, err := s.pool.Exec(ctx, insertMeasurementSQL,
		rec.Source, rec.StationUID, rec.StationName, rec.Lat, rec.Lon,
		rec.SensorDate, rec.ScrapedAt, rec.Parameter, rec.Value, rec.Unit)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// CreateUser registers a principal and returns its freshly generated
// opaque api key. Credentials are only ever created, never updated.
func (s *Store) CreateUser(ctx context.Context, username string) (string, error) {
	key, err := generateKey()
	if err != nil {
		return "", err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO users (username, api_key) VALUES ($1, $2)`, username, key)
	if isUniqueViolation(err) {
		return "", ErrUserExists
	}
	if err != nil {
		return "", err
	}
	return key, nil
}

// LookupUser resolves an api key to its principal name.
func (s *Store) LookupUser(ctx context.Context, apiKey string) (string, error) {
	var username string
	err := s.pool.QueryRow(ctx, `SELECT username FROM users WHERE api_key = $1`, apiKey).Scan(&username)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUnknownKey
	}
	if err != nil {
		return "", err
	}
	return username, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// generateKey builds a 32-byte url-safe opaque secret.
func generateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
