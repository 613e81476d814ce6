// discovery-core worker
//
// Leases queue items and runs them through the Dispatcher one at a time per
// goroutine, up to WorkerConcurrency in parallel. Also exposes GET /health
// for container orchestration.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jobmate/discovery-core/internal/companyinfo"
	"github.com/jobmate/discovery-core/internal/config"
	"github.com/jobmate/discovery-core/internal/db"
	"github.com/jobmate/discovery-core/internal/intake"
	"github.com/jobmate/discovery-core/internal/llmagent"
	"github.com/jobmate/discovery-core/internal/logging"
	"github.com/jobmate/discovery-core/internal/processors"
	"github.com/jobmate/discovery-core/internal/render"
	"github.com/jobmate/discovery-core/internal/store"
)

func main() {
	log := logging.Component(logging.New(), "worker")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config error")
	}

	policies, err := config.LoadPolicyBundle(cfg.PolicyDir)
	if err != nil {
		log.WithError(err).Fatal("policy error")
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
	companies := store.NewCompanyStore(pool)
	matches := store.NewMatchStore(pool)

	agent := newAgent(cfg, log)

	deps := processors.Dependencies{
		Queue:     queue,
		Sources:   sources,
		Companies: companies,
		Matches:   matches,
		Company:   companyinfo.New(agent, nil, sources, log),
		Agent:     agent,
		Intake:    intake.New(queue, policies.Prefilter, log),
		Renderer:  newRenderer(cfg, log),
		Policies: processors.Policies{
			Prefilter:     policies.Prefilter,
			Strike:        policies.Strike,
			Scoring:       policies.Scoring,
			MinMatchScore: policies.Scoring.MinScore,
		},
		Log: log,
	}
	dispatcher := processors.NewDispatcher(deps)

	leaseDuration := time.Duration(cfg.LeaseTimeoutSeconds) * time.Second

	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerConcurrency; i++ {
		wg.Add(1)
		go runLeaseLoop(ctx, &wg, queue, dispatcher, leaseDuration, log)
	}
	wg.Add(1)
	go runReviewLeaseLoop(ctx, &wg, queue, dispatcher, leaseDuration, log)

	srv := startHealthServer(cfg.HealthPort, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()
	wg.Wait()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http shutdown error")
		}
	}
}

// runLeaseLoop repeatedly leases the oldest pending item and dispatches it,
// backing off briefly when the queue is empty rather than busy-polling.
func runLeaseLoop(ctx context.Context, wg *sync.WaitGroup, queue *store.QueueStore, d *processors.Dispatcher, leaseDuration time.Duration, log *logrus.Entry) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, err := queue.LeaseNext(ctx, leaseDuration)
		if err != nil {
			log.WithError(err).Error("lease_next failed")
			sleepOrDone(ctx, time.Second)
			continue
		}
		if item == nil {
			sleepOrDone(ctx, time.Second)
			continue
		}

		if err := d.Process(ctx, item); err != nil {
			log.WithFields(logrus.Fields{"item_id": item.ID, "type": item.Type}).WithError(err).Warn("item processing failed")
		}
	}
}

// runReviewLeaseLoop drains NEEDS_REVIEW items (§4.9.3) on the same
// backoff-when-empty cadence as runLeaseLoop, but through the dedicated
// review lease/dispatch path.
func runReviewLeaseLoop(ctx context.Context, wg *sync.WaitGroup, queue *store.QueueStore, d *processors.Dispatcher, leaseDuration time.Duration, log *logrus.Entry) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, err := queue.LeaseNextForReview(ctx, leaseDuration)
		if err != nil {
			log.WithError(err).Error("lease_next_for_review failed")
			sleepOrDone(ctx, time.Second)
			continue
		}
		if item == nil {
			sleepOrDone(ctx, 5*time.Second)
			continue
		}

		if err := d.ProcessReview(ctx, item); err != nil {
			log.WithFields(logrus.Fields{"item_id": item.ID, "type": item.Type}).WithError(err).Warn("review processing failed")
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func newAgent(cfg *config.Config, log *logrus.Entry) llmagent.Agent {
	if cfg.AnthropicAPIKey == "" {
		return llmagent.NewFallbackAgent()
	}
	agent, err := llmagent.NewClaudeAgent(cfg.AnthropicAPIKey, log)
	if err != nil {
		log.WithError(err).Warn("claude agent init failed, using deterministic fallback")
		return llmagent.NewFallbackAgent()
	}
	return agent
}

func newRenderer(cfg *config.Config, log *logrus.Entry) render.Renderer {
	switch cfg.RendererBackend {
	case "chromedp":
		return render.NewChromedpRenderer()
	case "rod":
		r, err := render.NewRodRenderer(cfg.RodControlURL)
		if err != nil {
			log.WithError(err).Warn("rod renderer init failed, requires_js sources will fail closed")
			return render.NoopRenderer{}
		}
		return r
	default:
		return render.NoopRenderer{}
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
	_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", Service: "discovery-core-worker"})
}
