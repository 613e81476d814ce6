// Package scraper implements C2: the generic pull-scraper that drives a
// Source-config against one endpoint (api/rss/html transport), handling
// pagination, anti-bot detection, detail-page enrichment and client-side
// company filtering.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/render"
	"github.com/jobmate/discovery-core/internal/sourceconfig"
)

const (
	listFetchTimeout   = 30 * time.Second
	detailFetchTimeout = 15 * time.Second
	maxPaginationPages = 50
)

// Scraper executes one Source-config against one endpoint and returns
// normalized postings (C2).
type Scraper struct {
	Config sourceconfig.Config

	client   *http.Client
	renderer render.Renderer
	log      *logrus.Entry

	effectiveURL     string
	effectiveURLOnce bool

	// FetchDelay is applied after every detail-enrichment request, even on
	// failure (§4.2.5, finally-style).
	FetchDelay time.Duration

	// limiter throttles Scrape calls on this Scraper, mirroring hire.ai's
	// ScraperCore.rateLimiter gating scrapeBoards: one Scrape per tick rather
	// than a fixed per-request sleep. The pages of one paginated fetch are
	// not throttled by it.
	limiter *rate.Limiter
}

// New constructs a Scraper for one Source-config.
func New(cfg sourceconfig.Config, renderer render.Renderer, log *logrus.Entry) *Scraper {
	if renderer == nil {
		renderer = render.NoopRenderer{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scraper{
		Config:     cfg,
		client:     &http.Client{Timeout: listFetchTimeout},
		renderer:   renderer,
		log:        log.WithField("component", "scraper"),
		FetchDelay: 1 * time.Second,
		limiter:    rate.NewLimiter(rate.Every(1*time.Second), 1),
	}
}

// SetRateLimit overrides the default one-Scrape-per-second throttle, for
// sources configured with a slower or faster cadence.
func (s *Scraper) SetRateLimit(interval time.Duration) {
	s.limiter = rate.NewLimiter(rate.Every(interval), 1)
}

// Scrape executes the configured transport and returns normalized postings.
// It fails with *model.ErrScrapeBlocked (caller must disable the source) or
// a generic error (caller records a failure counter) per §4.2.
func (s *Scraper) Scrape(ctx context.Context) ([]model.Posting, error) {
	if err := s.Config.Validate(); err != nil {
		return nil, err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var raw []map[string]any
	var err error

	switch s.Config.Type {
	case model.SourceAPI:
		raw, err = s.scrapeAPI(ctx)
	case model.SourceRSS:
		raw, err = s.scrapeRSS(ctx)
	case model.SourceHTML:
		raw, err = s.scrapeHTML(ctx)
	default:
		return nil, &model.ErrInvalidConfig{Msg: "unknown source type"}
	}
	if err != nil {
		return nil, err
	}

	postings := make([]model.Posting, 0, len(raw))
	for _, item := range raw {
		p := s.extractPosting(item)
		if s.needsEnrichment(p) {
			s.enrich(ctx, &p)
		}
		postings = append(postings, p)
	}

	postings = s.applyCompanyFilter(postings)
	return postings, nil
}

// EffectiveURL returns the scrape URL with any company_filter merged into
// the query string (§4.2.1), memoized per Scraper instance.
func (s *Scraper) EffectiveURL() string {
	if s.effectiveURLOnce {
		return s.effectiveURL
	}
	s.effectiveURLOnce = true
	s.effectiveURL = s.Config.URL

	if s.Config.CompanyFilter == "" || s.Config.CompanyFilterParam == "" {
		return s.effectiveURL
	}

	u, err := url.Parse(s.Config.URL)
	if err != nil {
		return s.effectiveURL
	}
	q := u.Query()
	q.Set(s.Config.CompanyFilterParam, s.Config.CompanyFilter)
	u.RawQuery = q.Encode()
	s.effectiveURL = u.String()
	return s.effectiveURL
}

// applyAuth attaches the configured authentication to a request, reapplied
// on every page of a paginated fetch (§4.2.3).
func (s *Scraper) applyAuth(req *http.Request) {
	switch s.Config.AuthType {
	case sourceconfig.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+s.Config.APIKey)
	case sourceconfig.AuthHeader:
		if s.Config.AuthParam != "" {
			req.Header.Set(s.Config.AuthParam, s.Config.APIKey)
		}
	case sourceconfig.AuthQuery:
		q := req.URL.Query()
		if s.Config.AuthParam != "" {
			q.Set(s.Config.AuthParam, s.Config.APIKey)
			req.URL.RawQuery = q.Encode()
		}
	}
	for k, v := range s.Config.Headers {
		req.Header.Set(k, v)
	}
}
