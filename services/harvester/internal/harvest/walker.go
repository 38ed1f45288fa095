package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aishadeltio13/DataProject1/services/harvester/internal/normalize"
	"github.com/aishadeltio13/DataProject1/services/harvester/internal/openaq"
	"github.com/aishadeltio13/DataProject1/services/harvester/internal/permit"
)

// WorkUnit is one harvest task: a pollutant at one location, read through
// one resolved upstream sensor over one time window. Consumed by exactly
// one Walker run.
type WorkUnit struct {
	Pollutant   string
	PollutantID int
	LocationID  int
	Station     normalize.Station
	SensorID    int
	Window      openaq.Window
}

// Label identifies the unit in logs and abandonment reports.
func (u WorkUnit) Label() string {
	return fmt.Sprintf("%s/%s(#%d)", u.Pollutant, u.Station.Name, u.LocationID)
}

// walker states. Pages advance strictly in increasing order; a throttle
// retries the same page, so the exhaustion signal (first empty page) stays
// reliable.
type walkerState int

const (
	stateFetching walkerState = iota
	stateRetrying
	stateAdvancing
	stateDone
	stateFailed
)

// PageFetcher fetches one page of readings for a sensor. Implemented by
// *openaq.Client.
type PageFetcher interface {
	Measurements(ctx context.Context, sensorID int, w openaq.Window, page int) ([]openaq.Measurement, error)
}

// PageFunc receives each non-empty page in order. Returning an error stops
// the walk immediately.
type PageFunc func(ctx context.Context, page int, recs []openaq.Measurement) error

// Walker drives the page sequence for a single WorkUnit. It owns the
// per-unit retry state: a throttle signal triggers a cooldown and a retry
// of the same page, up to MaxCooldowns consecutive cooldowns per page
// before the unit is abandoned. Permits are held only for the duration of
// a call, never across a cooldown or pacing sleep.
type Walker struct {
	Fetcher      PageFetcher
	Permits      *permit.Pool
	PageDelay    time.Duration
	Cooldown     time.Duration
	MaxCooldowns int
}

// Run walks the unit's pages until exhaustion (first empty page), failure,
// or cancellation. It returns the number of pages emitted; a non-nil error
// means the unit was abandoned or the run was cancelled.
func (w *Walker) Run(ctx context.Context, unit WorkUnit, emit PageFunc) (int, error) {
	page := 1
	pages := 0
	cooldowns := 0
	var failure error

	st := stateFetching
	for {
		switch st {
		case stateFetching:
			recs, err := w.fetchPage(ctx, unit, page)
			switch {
			case err != nil && ctx.Err() != nil:
				return pages, ctx.Err()
			case errors.Is(err, openaq.ErrThrottled):
				cooldowns++
				if cooldowns > w.MaxCooldowns {
					failure = fmt.Errorf("page %d: still throttled after %d cooldowns", page, w.MaxCooldowns)
					st = stateFailed
					break
				}
				st = stateRetrying
			case err != nil:
				failure = fmt.Errorf("page %d: %w", page, err)
				st = stateFailed
			case len(recs) == 0:
				st = stateDone
			default:
				if err := emit(ctx, page, recs); err != nil {
					return pages, err
				}
				pages++
				st = stateAdvancing
			}

		case stateRetrying:
			// Same page again after the cooldown; no page is skipped or
			// double-counted.
			if err := sleepCtx(ctx, w.Cooldown); err != nil {
				return pages, err
			}
			st = stateFetching

		case stateAdvancing:
			page++
			cooldowns = 0
			if err := sleepCtx(ctx, w.PageDelay); err != nil {
				return pages, err
			}
			st = stateFetching

		case stateDone:
			return pages, nil

		case stateFailed:
			return pages, failure
		}
	}
}

// fetchPage performs one permit-gated upstream call.
func (w *Walker) fetchPage(ctx context.Context, unit WorkUnit, page int) ([]openaq.Measurement, error) {
	release, ok := w.Permits.Acquire(ctx)
	if !ok {
		return nil, ctx.Err()
	}
	defer release()
	return w.Fetcher.Measurements(ctx, unit.SensorID, unit.Window, page)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
