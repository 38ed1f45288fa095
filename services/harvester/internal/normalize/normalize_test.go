package normalize

import (
	"testing"
	"time"

	"github.com/aishadeltio13/DataProject1/measurement"
	"github.com/aishadeltio13/DataProject1/services/harvester/internal/openaq"
)

var camden = Station{UID: 221, Name: "Camden Roadside", Lat: 51.54, Lon: -0.14}

func raw(value float64, unit, utc string) openaq.Measurement {
	return openaq.Measurement{
		Value: value,
		Unit:  unit,
		Period: openaq.Period{
			DatetimeFrom: openaq.UTCStamp{UTC: utc},
		},
	}
}

func TestRecordBuildsCanonicalShape(t *testing.T) {
	scraped := time.Date(2025, 6, 1, 14, 5, 12, 0, time.UTC)
	rec, err := Record(raw(18.4, "ug/m3", "2025-06-01T14:00:00Z"), camden, "pm25", "historical", scraped)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.SensorDate != "2025-06-01 14:00:00" {
		t.Fatalf("sensor_date not in canonical layout: %q", rec.SensorDate)
	}
	if rec.ScrapedAt != "2025-06-01 14:05:12" {
		t.Fatalf("scraped_at not in canonical layout: %q", rec.ScrapedAt)
	}
	if rec.Unit != measurement.UnitUGM3 {
		t.Fatalf("unit not coerced: %q", rec.Unit)
	}
	if rec.StationUID != 221 || rec.Parameter != "pm25" || rec.Source != "historical" {
		t.Fatalf("context fields not carried: %+v", rec)
	}
	if err := rec.Validate(measurement.London); err != nil {
		t.Fatalf("normalized record should pass gateway validation: %v", err)
	}
}

func TestRecordNormalizesOffsetTimestampsToUTC(t *testing.T) {
	rec, err := Record(raw(1, "aqi", "2025-06-01T15:00:00+01:00"), camden, "pm10", "realtime", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.SensorDate != "2025-06-01 14:00:00" {
		t.Fatalf("expected UTC event time, got %q", rec.SensorDate)
	}
}

func TestRecordDropsUnknownUnit(t *testing.T) {
	if _, err := Record(raw(1, "ppm", "2025-06-01T14:00:00Z"), camden, "o3", "historical", time.Now()); err == nil {
		t.Fatalf("expected ppm to be dropped")
	}
}

func TestRecordDropsMissingOrBadTimestamp(t *testing.T) {
	if _, err := Record(raw(1, "aqi", ""), camden, "o3", "historical", time.Now()); err == nil {
		t.Fatalf("expected missing timestamp to be dropped")
	}
	if _, err := Record(raw(1, "aqi", "01/06/2025"), camden, "o3", "historical", time.Now()); err == nil {
		t.Fatalf("expected unparseable timestamp to be dropped")
	}
}
