package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/aishadeltio13/DataProject1/measurement"
	"github.com/aishadeltio13/DataProject1/services/harvester/internal/openaq"
)

// Station carries the per-WorkUnit context a raw reading lacks.
type Station struct {
	UID  int
	Name string
	Lat  float64
	Lon  float64
}

// Record converts one provider-native reading into the canonical shape.
// The returned error describes why the reading cannot be represented
// canonically; such readings are dropped by the caller, never submitted.
func Record(raw openaq.Measurement, st Station, pollutant, source string, scrapedAt time.Time) (measurement.Record, error) {
	eventTime, err := parseEventTime(raw.Period.DatetimeFrom.UTC)
	if err != nil {
		return measurement.Record{}, err
	}

	unit, err := coerceUnit(raw.Unit)
	if err != nil {
		return measurement.Record{}, err
	}

	return measurement.Record{
		Source:      source,
		StationUID:  st.UID,
		StationName: st.Name,
		Lat:         st.Lat,
		Lon:         st.Lon,
		SensorDate:  eventTime.Format(measurement.TimeLayout),
		ScrapedAt:   scrapedAt.UTC().Format(measurement.TimeLayout),
		Parameter:   pollutant,
		Value:       raw.Value,
		Unit:        unit,
	}, nil
}

func parseEventTime(utc string) (time.Time, error) {
	if utc == "" {
		return time.Time{}, fmt.Errorf("missing event timestamp")
	}
	t, err := time.Parse(time.RFC3339, utc)
	if err != nil {
		return time.Time{}, fmt.Errorf("event timestamp %q: %w", utc, err)
	}
	return t.UTC(), nil
}

// coerceUnit folds the ASCII spellings providers use onto the canonical
// micrograms token. Unknown tokens are errors here so the drop is counted
// at the harvester rather than bounced by the gateway.
func coerceUnit(unit string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "aqi":
		return measurement.UnitAQI, nil
	case "µg/m³", "ug/m3", "ug/m³", "µg/m3":
		return measurement.UnitUGM3, nil
	default:
		return "", fmt.Errorf("unit %q has no canonical form", unit)
	}
}
