package db

import (
	"context"
	"time"
)

// LatestRow is the most recent stored record for one station.
type LatestRow struct {
	StationUID  int     `json:"station_uid"`
	StationName string  `json:"station_name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	SensorDate  string  `json:"sensor_date"`
	Parameter   string  `json:"parameter"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	Source      string  `json:"source"`
}

const latestByStationSQL = `
SELECT DISTINCT ON (station_uid)
       station_uid, station_name, lat, lon, sensor_date, parameter, value, unit, source
FROM air_measurements
ORDER BY station_uid, sensor_date DESC`

// LatestByStation returns the newest record per station.
func (s *Store) LatestByStation(ctx context.Context) ([]LatestRow, error) {
	rows, err := s.pool.Query(ctx, latestByStationSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]LatestRow, 0)
	for rows.Next() {
		var r LatestRow
		if err := rows.Scan(&r.StationUID, &r.StationName, &r.Lat, &r.Lon, &r.SensorDate, &r.Parameter, &r.Value, &r.Unit, &r.Source); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ParameterStats aggregates one pollutant over a trailing window.
type ParameterStats struct {
	Parameter string  `json:"parameter"`
	Avg       float64 `json:"avg"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Count     int     `json:"count"`
}

const averagesSQL = `
SELECT parameter, AVG(value), MIN(value), MAX(value), COUNT(*)
FROM air_measurements
WHERE sensor_date >= $1
GROUP BY parameter
ORDER BY parameter`

// Averages computes per-pollutant statistics over the last `hours` hours
// of event time.
func (s *Store) Averages(ctx context.Context, hours int) ([]ParameterStats, error) {
	cutoff := cutoffStamp(hours)
	rows, err := s.pool.Query(ctx, averagesSQL, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ParameterStats, 0)
	for rows.Next() {
		var p ParameterStats
		if err := rows.Scan(&p.Parameter, &p.Avg, &p.Min, &p.Max, &p.Count); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// StationAverage ranks one station by its average value for a pollutant.
type StationAverage struct {
	StationUID  int     `json:"station_uid"`
	StationName string  `json:"station_name"`
	Avg         float64 `json:"avg"`
	Count       int     `json:"count"`
}

const topStationsSQL = `
SELECT station_uid, station_name, AVG(value) AS avg_value, COUNT(*)
FROM air_measurements
WHERE parameter = $1 AND sensor_date >= $2
GROUP BY station_uid, station_name
ORDER BY avg_value DESC
LIMIT $3`

// TopStations returns the stations with the highest average value for a
// pollutant over the last `hours` hours.
func (s *Store) TopStations(ctx context.Context, parameter string, hours, limit int) ([]StationAverage, error) {
	cutoff := cutoffStamp(hours)
	rows, err := s.pool.Query(ctx, topStationsSQL, parameter, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]StationAverage, 0)
	for rows.Next() {
		var a StationAverage
		if err := rows.Scan(&a.StationUID, &a.StationName, &a.Avg, &a.Count); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// StationInfo is a station position averaged over its stored rows, for
// map rendering. Stations with too few rows are excluded as noise.
type StationInfo struct {
	StationUID  int     `json:"station_uid"`
	StationName string  `json:"station_name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Rows        int     `json:"rows"`
}

const stationsSQL = `
SELECT station_uid, station_name, AVG(lat), AVG(lon), COUNT(*)
FROM air_measurements
GROUP BY station_uid, station_name
HAVING COUNT(*) > 5
ORDER BY station_uid`

// Stations lists known stations with their averaged coordinates.
func (s *Store) Stations(ctx context.Context) ([]StationInfo, error) {
	rows, err := s.pool.Query(ctx, stationsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]StationInfo, 0)
	for rows.Next() {
		var st StationInfo
		if err := rows.Scan(&st.StationUID, &st.StationName, &st.Lat, &st.Lon, &st.Rows); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// cutoffStamp renders a trailing-window lower bound in the canonical
// textual timestamp layout sensor_date is stored in; lexical comparison
// matches chronological order for this layout.
func cutoffStamp(hours int) string {
	return time.Now().UTC().Add(-time.Duration(hours) * time.Hour).Format("2006-01-02 15:04:05")
}
