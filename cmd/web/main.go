// cmd/web/main.go
//
// depot – HTTP entry point.
//
// Boot order
// ----------
//
//  1. Load merged configuration (.env → conf/global.yaml → DEPOT_ env
//     overrides), resolving any Vault password reference.
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Open the stations store and log the addressable-station count as an
//     early sanity check.
//
//  4. Build the core: repository → search engine → by-id cache → ingest
//     pipeline (serves the /admin/sync route).
//
//  5. Optionally open the GeoLite2 database for the client-position search
//     fallback.
//
//  6. Expose Prometheus /metrics and mount the place routes.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"log"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yanizio/depot/internal/config"
	"github.com/yanizio/depot/internal/database"
	"github.com/yanizio/depot/internal/ingest"
	"github.com/yanizio/depot/internal/logger"
	"github.com/yanizio/depot/internal/middleware"
	"github.com/yanizio/depot/internal/placecache"
	"github.com/yanizio/depot/internal/search"
	"github.com/yanizio/depot/internal/server"
	"github.com/yanizio/depot/internal/station"
	"github.com/yanizio/depot/internal/web"
)

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logOut, err := logger.New(cfg.Paths.Root, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}

	//
	// ── 1.  Stations store ──────────────────────────────────────────────
	//
	db, err := database.OpenWithOptions(cfg.Database.DSN, cfg.Database.MaxOpen, cfg.Database.MaxIdle)
	if err != nil {
		logOut.Fatalf("connect stations store: %v", err)
	}
	defer db.Close()

	// Log addressable-station count as an early sanity check.
	var addressable int
	_ = db.Get(&addressable, `SELECT COUNT(*) FROM stations WHERE uic <> ''`)
	logOut.Infow("stations store online", "addressable", addressable)

	//
	// ── 2.  Core wiring ─────────────────────────────────────────────────
	//
	repo := station.NewRepository(db)
	engine := search.New(repo)
	cache := placecache.New(engine.ByID, placecache.DefaultCapacity)
	pipeline := ingest.New(repo, nil)

	var geoRes *web.GeoResolver
	if cfg.GeoIP.Database != "" {
		geoRes, err = web.NewGeoResolver(cfg.GeoIP.Database)
		if err != nil {
			logOut.Fatalf("open GeoLite2 database: %v", err)
		}
		defer geoRes.Close()
		logOut.Infow("geoip fallback enabled", "database", cfg.GeoIP.Database)
	}

	handler := web.NewHandler(engine, cache, geoRes, pipeline, cfg.Dataset.URL, cfg.Dataset.FetchTimeout)

	//
	// ── 3.  Router: metrics endpoint plus place routes ──────────────────
	//
	root := chi.NewRouter()
	root.Use(middleware.RequestLog, middleware.Security)
	root.Handle("/metrics", promhttp.Handler())
	root.Mount("/", handler.Routes())

	srv := server.New(cfg.HTTP.ListenAddr, root)
	logOut.Infow("listening", "addr", cfg.HTTP.ListenAddr)
	if err := srv.ListenAndServe(); err != nil {
		logOut.Fatalf("serve: %v", err)
	}
}
