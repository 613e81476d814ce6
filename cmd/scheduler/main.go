// discovery-core scheduler
//
// Periodically enqueues a SCRAPE_SOURCE item for every active Source and
// runs the stuck-lease recovery sweep (§5); scrape cycles are driven off a
// robfig/cron timer. Also exposes GET /health.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/jobmate/discovery-core/internal/config"
	"github.com/jobmate/discovery-core/internal/db"
	"github.com/jobmate/discovery-core/internal/logging"
	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/store"
)

func main() {
	log := logging.Component(logging.New(), "scheduler")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("postgres connection failed")
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.WithError(err).Fatal("redis connection failed")
	}
	defer rdb.Close()

	queue := store.NewQueueStore(pool, rdb, log)
	sources := store.NewSourceStore(pool)

	sched := newScheduler(queue, sources, cfg, log)
	if err := sched.Start(ctx); err != nil {
		log.WithError(err).Fatal("scheduler start failed")
	}
	defer sched.Stop()

	srv := startHealthServer(cfg.HealthPort, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http shutdown error")
		}
	}
}

// scheduler wraps robfig/cron and drives two independent loops: the scrape
// sweep (enqueue SCRAPE_SOURCE per active source) and the lease-recovery
// sweep (§5's "recovery sweep reclaims items stuck in PROCESSING").
type scheduler struct {
	cron        *cron.Cron
	queue       *store.QueueStore
	sources     *store.SourceStore
	scrapeSpec  string
	reclaimSpec string
	log         *logrus.Entry
}

func newScheduler(queue *store.QueueStore, sources *store.SourceStore, cfg *config.Config, log *logrus.Entry) *scheduler {
	reclaimEvery := cfg.LeaseTimeoutSeconds / 2
	if reclaimEvery < 30 {
		reclaimEvery = 30
	}
	return &scheduler{
		cron:        cron.New(cron.WithLogger(cron.DefaultLogger)),
		queue:       queue,
		sources:     sources,
		scrapeSpec:  fmt.Sprintf("@every %dh", cfg.ScrapeIntervalHours),
		reclaimSpec: fmt.Sprintf("@every %ds", reclaimEvery),
		log:         log,
	}
}

// Start registers both cron jobs and fires one scrape sweep and one
// recovery sweep immediately, so a freshly-started cluster doesn't sit idle
// waiting for the first tick.
func (s *scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.scrapeSpec, func() { s.runScrapeSweep(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc scrape: %w", err)
	}
	if _, err := s.cron.AddFunc(s.reclaimSpec, func() { s.runReclaimSweep(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc reclaim: %w", err)
	}

	s.cron.Start()
	s.log.WithFields(logrus.Fields{"scrape_spec": s.scrapeSpec, "reclaim_spec": s.reclaimSpec}).Info("cron started")

	go s.runScrapeSweep(ctx)
	go s.runReclaimSweep(ctx)

	return nil
}

func (s *scheduler) Stop() {
	s.cron.Stop()
	s.log.Info("cron stopped")
}

// runScrapeSweep implements the enqueue half of §5's scheduled scrape
// cycle: one SCRAPE_SOURCE item per currently-active Source.
func (s *scheduler) runScrapeSweep(ctx context.Context) {
	s.log.Info("scrape sweep started")

	active, err := s.sources.GetActiveSources(ctx, "", nil)
	if err != nil {
		s.log.WithError(err).Error("get_active_sources failed")
		return
	}
	if len(active) == 0 {
		s.log.Info("no active sources — nothing to scrape")
		return
	}

	enqueued := 0
	for _, src := range active {
		item := &model.QueueItem{
			Type:          model.ItemScrapeSource,
			URL:           src.Name,
			PipelineStage: "scrape",
			ScrapedData:   map[string]any{"source_id": src.ID},
		}
		if src.CompanyID != nil {
			item.CompanyID = src.CompanyID
		}
		if _, err := s.queue.AddItem(ctx, item); err != nil {
			s.log.WithFields(logrus.Fields{"source": src.Name}).WithError(err).Warn("enqueue scrape_source failed")
			continue
		}
		enqueued++
	}

	s.log.WithFields(logrus.Fields{"sources": len(active), "enqueued": enqueued}).Info("scrape sweep complete")
}

// runReclaimSweep implements §5's recovery sweep.
func (s *scheduler) runReclaimSweep(ctx context.Context) {
	n, err := s.queue.ReclaimStuckLeases(ctx)
	if err != nil {
		s.log.WithError(err).Error("reclaim_stuck_leases failed")
		return
	}
	if n > 0 {
		s.log.WithFields(logrus.Fields{"reclaimed": n}).Warn("reclaimed stuck leases")
	}
}

func startHealthServer(port int, log *logrus.Entry) *http.Server {
	if port <= 0 {
		return nil
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.WithFields(logrus.Fields{"port": port}).Info("health server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("health server error")
		}
	}()
	return srv
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", Service: "discovery-core-scheduler"})
}
