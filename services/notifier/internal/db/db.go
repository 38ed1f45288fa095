package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WHOLimits are the exceedance thresholds in µg/m³ per pollutant.
var WHOLimits = map[string]float64{
	"pm25": 25,
	"pm10": 50,
	"no2":  200,
	"o3":   120,
}

// AQIThreshold flags aqi-unit rows considered unhealthy.
const AQIThreshold = 150

// Exceedance is one measurement above its pollutant's limit.
type Exceedance struct {
	StationName string
	Parameter   string
	Value       float64
	Unit        string
	SensorDate  string
}

const exceedancesSQL = `
SELECT station_name, parameter, value, unit, sensor_date
FROM air_measurements
WHERE sensor_date >= $1
  AND (
       (unit = 'µg/m³' AND (
            (parameter = 'pm25' AND value > $2)
         OR (parameter = 'pm10' AND value > $3)
         OR (parameter = 'no2'  AND value > $4)
         OR (parameter = 'o3'   AND value > $5)))
    OR (unit = 'aqi' AND value > $6)
  )
ORDER BY sensor_date DESC, value DESC
LIMIT 100`

// RecentExceedances returns measurements from the trailing lookback window
// that exceed the pollutant limits.
func RecentExceedances(ctx context.Context, pool *pgxpool.Pool, lookback time.Duration) ([]Exceedance, error) {
	cutoff := time.Now().UTC().Add(-lookback).Format("2006-01-02 15:04:05")

	rows, err := pool.Query(ctx, exceedancesSQL, cutoff,
		WHOLimits["pm25"], WHOLimits["pm10"], WHOLimits["no2"], WHOLimits["o3"], AQIThreshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Exceedance, 0)
	for rows.Next() {
		var e Exceedance
		if err := rows.Scan(&e.StationName, &e.Parameter, &e.Value, &e.Unit, &e.SensorDate); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
