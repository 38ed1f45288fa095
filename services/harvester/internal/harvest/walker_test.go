package harvest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aishadeltio13/DataProject1/services/harvester/internal/normalize"
	"github.com/aishadeltio13/DataProject1/services/harvester/internal/openaq"
	"github.com/aishadeltio13/DataProject1/services/harvester/internal/permit"
)

// stubFetcher answers each (page, attempt) from a script.
type stubFetcher struct {
	calls    []int // page numbers in call order
	pages    map[int][]openaq.Measurement
	throttle map[int]int // page -> remaining throttled attempts
	failPage int
}

func (f *stubFetcher) Measurements(ctx context.Context, sensorID int, w openaq.Window, page int) ([]openaq.Measurement, error) {
	f.calls = append(f.calls, page)
	if f.failPage != 0 && page == f.failPage {
		return nil, openaq.ErrUnavailable
	}
	if n := f.throttle[page]; n > 0 {
		f.throttle[page] = n - 1
		return nil, openaq.ErrThrottled
	}
	return f.pages[page], nil
}

func reading(v float64) openaq.Measurement {
	return openaq.Measurement{
		Value: v,
		Unit:  "µg/m³",
		Period: openaq.Period{DatetimeFrom: openaq.UTCStamp{UTC: "2025-03-01T10:00:00Z"}},
	}
}

func testUnit() WorkUnit {
	return WorkUnit{
		Pollutant: "pm25",
		SensorID:  42,
		Station:   normalize.Station{UID: 42, Name: "Test Station", Lat: 51.5, Lon: -0.1},
		Window:    openaq.Window{From: "2025-01-01T00:00:00Z", To: "2025-12-31T23:59:59Z"},
	}
}

func newWalker(f PageFetcher) *Walker {
	return &Walker{
		Fetcher:      f,
		Permits:      permit.NewPool(2),
		PageDelay:    0,
		Cooldown:     time.Millisecond,
		MaxCooldowns: 3,
	}
}

func TestWalkerStopsOnFirstEmptyPage(t *testing.T) {
	f := &stubFetcher{pages: map[int][]openaq.Measurement{
		1: {reading(1)},
		2: {reading(2)},
		3: {reading(3)},
		// page 4 is empty: exhaustion
	}}

	var emitted []int
	pages, err := newWalker(f).Run(context.Background(), testUnit(), func(ctx context.Context, page int, recs []openaq.Measurement) error {
		emitted = append(emitted, page)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pages != 3 {
		t.Fatalf("expected 3 pages, got %d", pages)
	}
	if fmt.Sprint(emitted) != "[1 2 3]" {
		t.Fatalf("unexpected emit order: %v", emitted)
	}
	// 3 non-empty fetches plus the single empty fetch that signals Done.
	if fmt.Sprint(f.calls) != "[1 2 3 4]" {
		t.Fatalf("unexpected fetch sequence: %v", f.calls)
	}
}

func TestWalkerRetriesSamePageOnThrottle(t *testing.T) {
	f := &stubFetcher{
		pages: map[int][]openaq.Measurement{
			1: {reading(1)},
			2: {reading(2)},
			3: {reading(3)},
		},
		throttle: map[int]int{2: 2},
	}

	var emitted []int
	pages, err := newWalker(f).Run(context.Background(), testUnit(), func(ctx context.Context, page int, recs []openaq.Measurement) error {
		emitted = append(emitted, page)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pages != 3 {
		t.Fatalf("expected 3 pages, got %d", pages)
	}
	if fmt.Sprint(emitted) != "[1 2 3]" {
		t.Fatalf("pages emitted out of order or with gaps: %v", emitted)
	}
	// Page 2 is attempted three times (two throttles + success), page 3
	// once, then the empty page 4.
	if fmt.Sprint(f.calls) != "[1 2 2 2 3 4]" {
		t.Fatalf("unexpected fetch sequence: %v", f.calls)
	}
}

func TestWalkerAbandonsAfterCooldownCeiling(t *testing.T) {
	f := &stubFetcher{
		pages:    map[int][]openaq.Measurement{1: {reading(1)}},
		throttle: map[int]int{2: 100},
	}

	w := newWalker(f)
	w.MaxCooldowns = 2
	pages, err := w.Run(context.Background(), testUnit(), func(ctx context.Context, page int, recs []openaq.Measurement) error {
		return nil
	})
	if err == nil {
		t.Fatalf("expected abandonment after cooldown ceiling")
	}
	if pages != 1 {
		t.Fatalf("expected 1 page before abandonment, got %d", pages)
	}
	// Initial attempt plus MaxCooldowns retries of page 2.
	if fmt.Sprint(f.calls) != "[1 2 2 2]" {
		t.Fatalf("unexpected fetch sequence: %v", f.calls)
	}
}

func TestWalkerFailsOnUnavailable(t *testing.T) {
	f := &stubFetcher{
		pages:    map[int][]openaq.Measurement{1: {reading(1)}},
		failPage: 2,
	}

	pages, err := newWalker(f).Run(context.Background(), testUnit(), func(ctx context.Context, page int, recs []openaq.Measurement) error {
		return nil
	})
	if err == nil {
		t.Fatalf("expected failure on unavailable provider")
	}
	if pages != 1 {
		t.Fatalf("expected 1 emitted page, got %d", pages)
	}
}

func TestWalkerObservesCancellationDuringCooldown(t *testing.T) {
	f := &stubFetcher{throttle: map[int]int{1: 100}}

	w := newWalker(f)
	w.Cooldown = time.Hour
	w.MaxCooldowns = 100

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	var err error
	go func() {
		_, err = w.Run(ctx, testUnit(), func(ctx context.Context, page int, recs []openaq.Measurement) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("walker did not observe cancellation during cooldown")
	}
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
}
