// Package app wires the ingest pipeline's components into one process:
// logger, config, Postgres, the namespace/packagetype/stage registries,
// and the worker pool. Grounded on the teacher's internal/app.App (logger
// -> config -> db -> repos -> services -> Start/Run/Close lifecycle),
// collapsed to this domain's single long-running worker pool instead of
// an HTTP router.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/hathitrust/feed/internal/config"
	"github.com/hathitrust/feed/internal/data/db"
	"github.com/hathitrust/feed/internal/data/repos"
	"github.com/hathitrust/feed/internal/job"
	"github.com/hathitrust/feed/internal/metrics"
	"github.com/hathitrust/feed/internal/namespace"
	_ "github.com/hathitrust/feed/internal/namespaces"
	"github.com/hathitrust/feed/internal/pkgtype"
	_ "github.com/hathitrust/feed/internal/packagetypes"
	"github.com/hathitrust/feed/internal/platform/envutil"
	"github.com/hathitrust/feed/internal/platform/gcp"
	"github.com/hathitrust/feed/internal/platform/logger"
	"github.com/hathitrust/feed/internal/premis"
	"github.com/hathitrust/feed/internal/stage"
	"github.com/hathitrust/feed/internal/stages"
	"github.com/hathitrust/feed/internal/worker"
)

// App holds every long-lived dependency the worker pool needs.
type App struct {
	Log      *logger.Logger
	Cfg      *config.GlobalConfig
	Resolver *config.Resolver
	Catalog  *premis.Catalog

	pg     *db.PostgresService
	Worker *worker.Worker

	cancel     context.CancelFunc
	metricsSrv *http.Server
}

// New loads configuration, connects to Postgres, migrates, and wires the
// worker pool. It does not start the worker pool; call Start for that.
func New() (*App, error) {
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	configPath := envutil.String("HTFEED_CONFIG", "")
	var cfg *config.GlobalConfig
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("load config: %w", err)
		}
	} else {
		log.Warn("HTFEED_CONFIG not set, running with an empty global config")
		cfg = &config.GlobalConfig{Values: map[string]any{}}
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	releaseStates := cfg.ReleaseStates()
	if err := pg.AutoMigrateAll(releaseStates); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	gdb := pg.DB()

	resolver := config.NewResolver(cfg)
	catalogRaw, _ := cfg.Values["premis"].(map[string]any)
	catalog := premis.CatalogFromConfig(catalogRaw)
	stages.MetsCatalog = catalog
	stages.MetsXercesPath = cfg.Xerces

	if err := validateRegisteredPackageTypes(catalog); err != nil {
		log.Sync()
		return nil, err
	}

	metrics.LoadedNamespaces.Set(float64(namespace.Registry.Len()))
	metrics.LoadedPackageTypes.Set(float64(pkgtype.Registry.Len()))

	release := job.ReleaseStates{}
	for _, s := range releaseStates {
		release[s] = true
	}

	var fetcher gcp.Fetcher
	if envutil.Bool("FEED_GCS_FETCH_ENABLED", false) {
		fetcher, err = gcp.NewFetcher(context.Background(), log)
		if err != nil {
			log.Warn("gcs fetcher unavailable, package types with download_to_disk=false will fail at unpack", "error", err)
			fetcher = nil
		}
	}

	w := &worker.Worker{
		Log:          log,
		Queue:        repos.NewFeedQueueRepo(gdb, log),
		Events:       repos.NewPremisEventRepo(gdb, log),
		Errors:       repos.NewErrorRepo(gdb, log),
		Resolver:     resolver,
		Catalog:      catalog,
		Namespaces:   namespace.Registry,
		PackageTypes: pkgtype.Registry,
		Release:      release,
		Threads:      cfg.Dataset.Threads,
		WorkerName:   workerName(),
		Fetcher:      fetcher,
	}

	return &App{
		Log:      log,
		Cfg:      cfg,
		Resolver: resolver,
		Catalog:  catalog,
		pg:       pg,
		Worker:   w,
	}, nil
}

func workerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "feed-worker"
	}
	return host
}

func knownStageIDs() map[string]bool {
	out := map[string]bool{}
	for _, id := range stage.Registry.Enumerate() {
		out[id] = true
	}
	return out
}

// validateRegisteredPackageTypes runs pkgtype.Descriptor.Validate against
// every registered package type, the way app startup checks cross-field
// invariants before accepting traffic.
func validateRegisteredPackageTypes(catalog *premis.Catalog) error {
	knownStages := knownStageIDs()
	knownEvents := map[string]bool{}
	for _, code := range catalog.Codes() {
		knownEvents[code] = true
	}

	for _, id := range pkgtype.Registry.Enumerate() {
		pt, err := pkgtype.Registry.Lookup(id)
		if err != nil {
			return err
		}
		for _, e := range pt.Validate(knownStages, knownEvents) {
			return fmt.Errorf("packagetype %q: %w", id, e)
		}
	}
	return nil
}

// Start launches the worker pool, and (when FEED_METRICS_ADDR is set) the
// Prometheus metrics endpoint, in the background. ctx cancellation (by the
// caller, typically on SIGTERM) stops the worker pool. Close should still
// be called afterward to flush the logger.
func (a *App) Start(ctx context.Context) <-chan error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if addr := envutil.String("FEED_METRICS_ADDR", ""); addr != "" {
		a.startMetricsServer(addr)
	}

	done := make(chan error, 1)
	go func() {
		done <- a.Worker.Run(runCtx)
	}()
	return done
}

func (a *App) startMetricsServer(addr string) {
	srv := &http.Server{Addr: addr, Handler: metrics.Handler()}
	a.metricsSrv = srv
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Log.Warn("metrics server stopped", "error", err)
		}
	}()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.metricsSrv != nil {
		_ = a.metricsSrv.Close()
		a.metricsSrv = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
