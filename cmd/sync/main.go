// cmd/sync/main.go
//
// depot – dataset sync entry point.
//
// Runs exactly one sync: fetch the upstream stations CSV, stream it through
// the ingest pipeline, and atomically replace the stations table.  Designed
// for cron; a non-zero exit means the prior dataset is still live.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/yanizio/depot/internal/config"
	"github.com/yanizio/depot/internal/database"
	"github.com/yanizio/depot/internal/ingest"
	"github.com/yanizio/depot/internal/logger"
	"github.com/yanizio/depot/internal/station"
)

func main() {
	var (
		urlFlag     = flag.String("url", "", "override the configured dataset URL")
		timeoutFlag = flag.Duration("timeout", 0, "override the configured fetch timeout")
	)
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logOut, err := logger.New(cfg.Paths.Root, true)
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}

	sourceURL := cfg.Dataset.URL
	if *urlFlag != "" {
		sourceURL = *urlFlag
	}

	timeout := cfg.Dataset.FetchTimeout
	if *timeoutFlag > 0 {
		timeout = *timeoutFlag
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	db, err := database.OpenWithOptions(cfg.Database.DSN, cfg.Database.MaxOpen, cfg.Database.MaxIdle)
	if err != nil {
		logOut.Fatalf("connect stations store: %v", err)
	}
	defer db.Close()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pipeline := ingest.New(station.NewRepository(db), nil)
	stats, err := pipeline.Run(runCtx, sourceURL)
	if err != nil {
		logOut.Fatalw("sync failed", "source", sourceURL, "err", err)
	}

	logOut.Infow("sync finished",
		"source", sourceURL,
		"inserted", stats.Inserted,
		"skipped", stats.Skipped,
	)
}
