package harvest

import (
	"context"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aishadeltio13/DataProject1/measurement"
	"github.com/aishadeltio13/DataProject1/services/harvester/internal/normalize"
	"github.com/aishadeltio13/DataProject1/services/harvester/internal/openaq"
	"github.com/aishadeltio13/DataProject1/services/harvester/internal/permit"
	"github.com/aishadeltio13/DataProject1/services/harvester/internal/sink"
)

// Provider is the upstream surface a harvest run needs: discovery plus
// paginated reads. Implemented by *openaq.Client.
type Provider interface {
	Locations(ctx context.Context, pollutantID int) ([]openaq.Location, error)
	Sensors(ctx context.Context, locationID int) ([]openaq.Sensor, error)
	PageFetcher
}

// Submitter hands one canonical record to the ingestion gateway.
// Implemented by *sink.Client.
type Submitter interface {
	Submit(ctx context.Context, rec measurement.Record) (sink.Outcome, error)
}

// Summary reports one completed harvest run. Every record and every unit
// ends up in exactly one of these buckets; nothing is silently swallowed.
type Summary struct {
	Units       int
	Pages       int
	Accepted    int64
	Duplicates  int64
	Rejected    int64
	Dropped     int64
	Unreachable int64
	Abandoned   []string
}

// Orchestrator enumerates WorkUnits (pollutant × location × sensor ×
// window) and fans them out through the shared permit pool. The pool is
// the only serialization point; WorkUnits otherwise run independently and
// the store's uniqueness constraint makes their submissions commutative.
type Orchestrator struct {
	Provider     Provider
	Sink         Submitter
	Permits      *permit.Pool
	Pollutants   map[string]int
	Window       openaq.Window
	Source       string
	PageDelay    time.Duration
	Cooldown     time.Duration
	MaxCooldowns int

	// Now is the ingestion clock; overridable in tests.
	Now func() time.Time
}

// Run performs one harvest run to completion. Per-unit failures abandon
// only their unit; the run itself fails only on cancellation.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	now := o.Now
	if now == nil {
		now = time.Now
	}

	var accepted, duplicates, rejected, dropped, unreachable, pages atomic.Int64
	var mu sync.Mutex
	var abandoned []string
	units := 0

	abandon := func(label string, err error) {
		log.Printf("harvest: abandoning %s: %v", label, err)
		mu.Lock()
		abandoned = append(abandoned, label)
		mu.Unlock()
	}

	walker := &Walker{
		Fetcher:      o.Provider,
		Permits:      o.Permits,
		PageDelay:    o.PageDelay,
		Cooldown:     o.Cooldown,
		MaxCooldowns: o.MaxCooldowns,
	}

	submitPage := func(unit WorkUnit) PageFunc {
		return func(ctx context.Context, page int, recs []openaq.Measurement) error {
			pages.Add(1)
			for _, raw := range recs {
				rec, err := normalize.Record(raw, unit.Station, unit.Pollutant, o.Source, now())
				if err != nil {
					dropped.Add(1)
					continue
				}
				out, err := o.Sink.Submit(ctx, rec)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					unreachable.Add(1)
					continue
				}
				switch out {
				case sink.Accepted:
					accepted.Add(1)
				case sink.Duplicate:
					duplicates.Add(1)
				default:
					rejected.Add(1)
				}
			}
			return nil
		}
	}

	for _, pollutant := range sortedKeys(o.Pollutants) {
		pollutantID := o.Pollutants[pollutant]

		locations, err := o.discoverLocations(ctx, pollutantID)
		if err != nil {
			if ctx.Err() != nil {
				return o.summary(units, &pages, &accepted, &duplicates, &rejected, &dropped, &unreachable, abandoned), ctx.Err()
			}
			log.Printf("harvest: location discovery for %s failed: %v", pollutant, err)
			continue
		}
		log.Printf("harvest: %s: %d candidate locations", pollutant, len(locations))

		g, gctx := errgroup.WithContext(ctx)
		for _, loc := range locations {
			loc := loc
			g.Go(func() error {
				label := pollutant + "/" + loc.Name
				sensorID, found, err := o.resolveSensor(gctx, loc.ID, pollutantID)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					abandon(label, err)
					return nil
				}
				if !found {
					// Location has no sensor for this pollutant. Not an error.
					return nil
				}

				unit := WorkUnit{
					Pollutant:   pollutant,
					PollutantID: pollutantID,
					LocationID:  loc.ID,
					Station: normalize.Station{
						UID:  sensorID,
						Name: loc.Name,
						Lat:  loc.Coordinates.Latitude,
						Lon:  loc.Coordinates.Longitude,
					},
					SensorID: sensorID,
					Window:   o.Window,
				}

				mu.Lock()
				units++
				mu.Unlock()

				emitted, err := walker.Run(gctx, unit, submitPage(unit))
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					abandon(unit.Label(), err)
					return nil
				}
				log.Printf("harvest: %s done (%d pages)", unit.Label(), emitted)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return o.summary(units, &pages, &accepted, &duplicates, &rejected, &dropped, &unreachable, abandoned), err
		}
	}

	return o.summary(units, &pages, &accepted, &duplicates, &rejected, &dropped, &unreachable, abandoned), nil
}

// discoverLocations performs the permit-gated bounding-box query.
func (o *Orchestrator) discoverLocations(ctx context.Context, pollutantID int) ([]openaq.Location, error) {
	release, ok := o.Permits.Acquire(ctx)
	if !ok {
		return nil, ctx.Err()
	}
	defer release()
	return o.Provider.Locations(ctx, pollutantID)
}

// resolveSensor finds the location's sensor for the target pollutant.
// found is false when the location does not measure it.
func (o *Orchestrator) resolveSensor(ctx context.Context, locationID, pollutantID int) (sensorID int, found bool, err error) {
	release, ok := o.Permits.Acquire(ctx)
	if !ok {
		return 0, false, ctx.Err()
	}
	defer release()

	sensors, err := o.Provider.Sensors(ctx, locationID)
	if err != nil {
		return 0, false, err
	}
	for _, s := range sensors {
		if s.Parameter.ID == pollutantID {
			return s.ID, true, nil
		}
	}
	return 0, false, nil
}

func (o *Orchestrator) summary(units int, pages, accepted, duplicates, rejected, dropped, unreachable *atomic.Int64, abandoned []string) Summary {
	return Summary{
		Units:       units,
		Pages:       int(pages.Load()),
		Accepted:    accepted.Load(),
		Duplicates:  duplicates.Load(),
		Rejected:    rejected.Load(),
		Dropped:     dropped.Load(),
		Unreachable: unreachable.Load(),
		Abandoned:   abandoned,
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
