package measurement

import (
	"fmt"
	"time"
)

// TimeLayout is the only accepted textual timestamp format for canonical
// records, both for the event time and the ingestion time.
const TimeLayout = "2006-01-02 15:04:05"

// Units accepted by the store. Anything else is rejected, not coerced.
const (
	UnitAQI  = "aqi"
	UnitUGM3 = "µg/m³"
)

// Record is the canonical, storage-ready measurement shape. All providers
// are normalized into this schema before ingestion. Records are immutable
// once built; the gateway either persists or rejects them.
type Record struct {
	Source      string  `json:"source"`
	StationUID  int     `json:"station_uid"`
	StationName string  `json:"station_name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	SensorDate  string  `json:"sensor_date"`
	ScrapedAt   string  `json:"scraped_at"`
	Parameter   string  `json:"parameter"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
}

// Envelope is the operational geographic envelope. Records outside it are
// rejected rather than clamped.
type Envelope struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
}

// London is the envelope the platform operates in.
var London = Envelope{LatMin: 51.28, LatMax: 51.69, LonMin: -0.51, LonMax: 0.33}

// FieldError reports the first canonical invariant a record violates.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

// Validate checks the canonical invariants in a fixed order: geographic
// envelope, unit vocabulary, then timestamp formats. The first failing
// check wins; a nil return means the record may be offered to the store.
func (r Record) Validate(env Envelope) *FieldError {
	if r.Lat < env.LatMin || r.Lat > env.LatMax {
		return &FieldError{Field: "lat", Reason: fmt.Sprintf("%v outside [%v, %v]", r.Lat, env.LatMin, env.LatMax)}
	}
	if r.Lon < env.LonMin || r.Lon > env.LonMax {
		return &FieldError{Field: "lon", Reason: fmt.Sprintf("%v outside [%v, %v]", r.Lon, env.LonMin, env.LonMax)}
	}
	if r.Unit != UnitAQI && r.Unit != UnitUGM3 {
		return &FieldError{Field: "unit", Reason: fmt.Sprintf("%q not in allowed vocabulary", r.Unit)}
	}
	if _, err := time.Parse(TimeLayout, r.SensorDate); err != nil {
		return &FieldError{Field: "sensor_date", Reason: "must match YYYY-MM-DD HH:MM:SS"}
	}
	if _, err := time.Parse(TimeLayout, r.ScrapedAt); err != nil {
		return &FieldError{Field: "scraped_at", Reason: "must match YYYY-MM-DD HH:MM:SS"}
	}
	return nil
}

// Key identifies a record for uniqueness purposes: the store keeps at most
// one row per key and rejects replays.
type Key struct {
	StationUID int
	SensorDate string
	Parameter  string
}

// Key returns the record's natural uniqueness key.
func (r Record) Key() Key {
	return Key{StationUID: r.StationUID, SensorDate: r.SensorDate, Parameter: r.Parameter}
}
