package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"github.com/aishadeltio13/DataProject1/services/notifier/internal/config"
	"github.com/aishadeltio13/DataProject1/services/notifier/internal/db"
	"github.com/aishadeltio13/DataProject1/services/notifier/internal/dedup"
	"github.com/aishadeltio13/DataProject1/services/notifier/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("notifier failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	sender := telegram.NewClient(cfg.TelegramToken, cfg.TelegramChatID, &http.Client{Timeout: 10 * time.Second})
	if !sender.Configured() {
		log.Printf("telegram credentials not configured, alerts will be logged only")
	}

	window := dedup.NewWindow(cfg.Retention)

	check := func() {
		checkCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		exceedances, err := db.RecentExceedances(checkCtx, pool, cfg.Lookback)
		if err != nil {
			log.Printf("alert query failed: %v", err)
			return
		}

		fresh := make([]db.Exceedance, 0, len(exceedances))
		for _, e := range exceedances {
			key := dedup.Key{Station: e.StationName, Parameter: e.Parameter, SensorDate: e.SensorDate}
			if window.ShouldNotify(key) {
				fresh = append(fresh, e)
			}
		}

		if len(fresh) == 0 {
			log.Printf("no new alerts (%d active, all notified recently)", len(exceedances))
			return
		}

		msg := formatMessage(fresh)
		if !sender.Configured() {
			log.Printf("alert (not sent):\n%s", msg)
			return
		}
		if err := sender.Send(checkCtx, msg); err != nil {
			log.Printf("alert delivery failed: %v", err)
			return
		}
		log.Printf("sent alert covering %d exceedances", len(fresh))
	}

	log.Printf("alert notifier running (interval=%s, retention=%s)", cfg.CheckInterval, cfg.Retention)
	check()

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", cfg.CheckInterval), check); err != nil {
		return fmt.Errorf("schedule alert checks: %w", err)
	}
	c.Start()

	<-ctx.Done()
	stop := c.Stop()
	<-stop.Done()
	return nil
}

func formatMessage(exceedances []db.Exceedance) string {
	var b strings.Builder
	b.WriteString("AIR QUALITY ALERT - LONDON\n")
	fmt.Fprintf(&b, "%s\n\n", time.Now().UTC().Format("2006-01-02 15:04:05"))

	shown := exceedances
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for _, e := range shown {
		limit := db.WHOLimits[e.Parameter]
		if e.Unit == "aqi" {
			fmt.Fprintf(&b, "%s: AQI %.0f at %s (%s)\n", strings.ToUpper(e.Parameter), e.Value, e.StationName, e.SensorDate)
			continue
		}
		fmt.Fprintf(&b, "%s: %.1f %s at %s (limit %.0f, %s)\n",
			strings.ToUpper(e.Parameter), e.Value, e.Unit, e.StationName, limit, e.SensorDate)
	}
	if len(exceedances) > len(shown) {
		fmt.Fprintf(&b, "...and %d more\n", len(exceedances)-len(shown))
	}
	return b.String()
}
