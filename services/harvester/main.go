package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/aishadeltio13/DataProject1/services/harvester/internal/config"
	"github.com/aishadeltio13/DataProject1/services/harvester/internal/harvest"
	"github.com/aishadeltio13/DataProject1/services/harvester/internal/openaq"
	"github.com/aishadeltio13/DataProject1/services/harvester/internal/permit"
	"github.com/aishadeltio13/DataProject1/services/harvester/internal/sink"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("harvester failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	provider := openaq.NewClient(cfg.BaseURL, cfg.APIKey, cfg.BBox, cfg.PageLimit, httpClient, cfg.RatePerSec)
	gateway := sink.NewClient(cfg.SinkURL, cfg.SinkAPIKey, httpClient)

	orch := &harvest.Orchestrator{
		Provider:   provider,
		Sink:       gateway,
		Permits:    permit.NewPool(cfg.MaxConcurrent),
		Pollutants: cfg.Pollutants,
		Window: openaq.Window{
			From: fmt.Sprintf("%d-01-01T00:00:00Z", cfg.Year),
			To:   fmt.Sprintf("%d-12-31T23:59:59Z", cfg.Year),
		},
		Source:       cfg.SourceTag,
		PageDelay:    cfg.PageDelay,
		Cooldown:     cfg.Cooldown,
		MaxCooldowns: cfg.MaxCooldowns,
	}

	harvestOnce := func() {
		summary, err := orch.Run(ctx)
		if err != nil {
			log.Printf("harvest run stopped: %v", err)
		}
		log.Printf("harvest run: units=%d pages=%d accepted=%d duplicates=%d rejected=%d dropped=%d unreachable=%d abandoned=%d",
			summary.Units, summary.Pages, summary.Accepted, summary.Duplicates,
			summary.Rejected, summary.Dropped, summary.Unreachable, len(summary.Abandoned))
		for _, label := range summary.Abandoned {
			log.Printf("harvest run: abandoned unit %s (safe to retry next run)", label)
		}
	}

	log.Printf("starting harvest (pollutants=%d, concurrency=%d, window=%d)", len(cfg.Pollutants), cfg.MaxConcurrent, cfg.Year)
	harvestOnce()

	if cfg.Schedule == "" || ctx.Err() != nil {
		return ctx.Err()
	}

	// Recurring mode: re-run on the cron spec, skipping a tick while the
	// previous run is still in flight.
	var running sync.Mutex
	c := cron.New()
	if _, err := c.AddFunc(cfg.Schedule, func() {
		if !running.TryLock() {
			log.Printf("harvest still running, skipping scheduled tick")
			return
		}
		defer running.Unlock()
		harvestOnce()
	}); err != nil {
		return fmt.Errorf("invalid HARVEST_SCHEDULE: %w", err)
	}

	c.Start()
	log.Printf("scheduled recurring harvests: %q", cfg.Schedule)
	<-ctx.Done()

	stop := c.Stop()
	<-stop.Done()
	return nil
}
