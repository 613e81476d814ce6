// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, construction returns an
// *model.ErrInitialization and the process is expected to exit.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jobmate/discovery-core/internal/model"
)

// Config holds runtime configuration shared by cmd/worker and cmd/scheduler.
type Config struct {
	DatabaseURL string
	RedisURL    string

	// PolicyDir points at the directory holding prefilter-policy.yaml,
	// match-policy.yaml and scraping-settings.yaml (§6, §10).
	PolicyDir string

	// AnthropicAPIKey authenticates llmagent's anthropic-sdk-go client. May
	// be empty — llmagent degrades to its deterministic stub (§6).
	AnthropicAPIKey string

	// WorkerConcurrency bounds how many queue items cmd/worker leases
	// concurrently (§5).
	WorkerConcurrency int

	// LeaseTimeoutSeconds is how long a leased item may sit PROCESSING
	// before the scheduler's recovery sweep reclaims it (§5).
	LeaseTimeoutSeconds int

	// ScrapeIntervalHours is how often cmd/scheduler's cron fires its
	// SCRAPE_SOURCE sweep (§5).
	ScrapeIntervalHours int

	// HealthPort serves the liveness/readiness endpoint for both cmd entry
	// points; 0 disables it.
	HealthPort int

	// RendererBackend selects the headless renderer (§6) the scraper falls
	// back to for requires_js sources: "chromedp", "rod", or "" (NoopRenderer,
	// requires_js sources fail closed).
	RendererBackend string

	// RodControlURL is the remote debugging address RodRenderer connects to
	// when RendererBackend is "rod"; empty launches a local browser.
	RodControlURL string
}

// Load reads environment variables and returns a validated Config, the way
// other services in this codebase load config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, &model.ErrInitialization{Msg: "DATABASE_URL is required"}
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, &model.ErrInitialization{Msg: "REDIS_URL is required"}
	}

	policyDir := os.Getenv("POLICY_DIR")
	if policyDir == "" {
		policyDir = "policies"
	}

	concurrency, err := positiveIntEnv("WORKER_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}

	leaseTimeout, err := positiveIntEnv("LEASE_TIMEOUT_SECONDS", 300)
	if err != nil {
		return nil, err
	}

	interval, err := positiveIntEnv("SCRAPE_INTERVAL_HOURS", 6)
	if err != nil {
		return nil, err
	}

	healthPort := 8080
	if s := os.Getenv("HEALTH_PORT"); s != "" {
		v, convErr := strconv.Atoi(s)
		if convErr != nil || v < 0 {
			return nil, &model.ErrInitialization{Msg: fmt.Sprintf("HEALTH_PORT must be a non-negative integer, got %q", s)}
		}
		healthPort = v
	}

	return &Config{
		DatabaseURL:         dbURL,
		RedisURL:            redisURL,
		PolicyDir:           policyDir,
		AnthropicAPIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		WorkerConcurrency:   concurrency,
		LeaseTimeoutSeconds: leaseTimeout,
		ScrapeIntervalHours: interval,
		HealthPort:          healthPort,
		RendererBackend:     os.Getenv("RENDERER_BACKEND"),
		RodControlURL:       os.Getenv("ROD_CONTROL_URL"),
	}, nil
}

func positiveIntEnv(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, &model.ErrInitialization{Msg: fmt.Sprintf("%s must be a positive integer, got %q", name, s)}
	}
	return v, nil
}
