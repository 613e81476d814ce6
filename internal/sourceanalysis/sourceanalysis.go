// Package sourceanalysis implements C6: classifying an arbitrary URL into a
// source category and, where possible, synthesizing a validated
// Source-config for it without an AI call.
package sourceanalysis

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/sourceconfig"
)

// Classification is the category C6 assigns a URL (§4.6).
type Classification string

const (
	JobAggregator    Classification = "JOB_AGGREGATOR"
	CompanySpecific  Classification = "COMPANY_SPECIFIC"
	SingleJobListing Classification = "SINGLE_JOB_LISTING"
	ATSProviderSite  Classification = "ATS_PROVIDER_SITE"
	Invalid          Classification = "INVALID"
)

// Prober verifies a synthesized config with one live request, the way the
// JobAPIProvider interface in the pack's hire.ai package lets callers swap
// the transport without sourceanalysis depending on net/http directly.
type Prober interface {
	Probe(ctx context.Context, cfg sourceconfig.Config) (ok bool, err error)
}

// ClassifierAgent is the narrow LLM fallback C6 calls when its deterministic
// cascade can't resolve a URL (§4.6: "if unresolved, optionally ask an
// LLM"). Defined locally, mirroring Prober, so sourceanalysis never imports
// internal/llmagent directly; *llmagent.ClaudeAgent and *llmagent.FallbackAgent
// already satisfy this structurally.
type ClassifierAgent interface {
	ClassifyURL(ctx context.Context, rawURL, companyName, sample string) (classification string, reasoning string, err error)
}

// Result is C6's full contract output (§4.6).
type Result struct {
	Classification   Classification
	AggregatorDomain string
	CompanyName      string
	ShouldDisable    bool
	DisableReason    string
	DisableNotes     []string
	SourceConfig     *sourceconfig.Config
	Confidence       float64
	Reasoning        string
}

// knownAggregatorPatterns are URL shapes that identify a single scraped job
// listing on a known aggregator, rather than a reusable feed endpoint
// (§4.6).
var knownAggregatorPatterns = []struct {
	domain string
	re     *regexp.Regexp
}{
	{"remoteok.com", regexp.MustCompile(`remoteok\.com/remote-jobs/.*-\d+$`)},
	{"weworkremotely.com", regexp.MustCompile(`weworkremotely\.com/remote-jobs/[^/]+$`)},
	{"jobicy.com", regexp.MustCompile(`jobicy\.com/jobs/\d+`)},
	{"remotive.com", regexp.MustCompile(`remotive\.com/remote-jobs/[^/]+/[^/]+-\d+`)},
}

// atsProviderBareHosts are ATS marketing/careers-index hosts with no
// customer sub-path, rather than a specific company's board (§4.6).
var atsProviderBareHosts = map[string]*regexp.Regexp{
	"greenhouse.com": regexp.MustCompile(`^/(careers|jobs)/?$`),
	"lever.co":       regexp.MustCompile(`^/?$`),
	"workable.com":   regexp.MustCompile(`^/(careers)?/?$`),
}

// platformPattern is one entry in the deterministic platform registry
// (§4.6): a host/path shape matched to a Source-config builder.
type platformPattern struct {
	name    string
	hostRe  *regexp.Regexp
	pathRe  *regexp.Regexp
	builder func(host, path string, m []string) sourceconfig.Config
}

var platformPatterns = []platformPattern{
	{
		name:   "greenhouse",
		hostRe: regexp.MustCompile(`^boards\.greenhouse\.io$`),
		pathRe: regexp.MustCompile(`^/([a-z0-9\-]+)`),
		builder: func(host, path string, m []string) sourceconfig.Config {
			slug := m[1]
			return sourceconfig.Config{
				Type: model.SourceAPI,
				URL:  fmt.Sprintf("https://boards-api.greenhouse.io/v1/boards/%s/jobs?content=true", slug),
				Fields: sourceconfig.FieldMap{
					Title: "title", URL: "absolute_url", Location: "location.name",
					Description: "content", PostedDate: "updated_at",
				},
			}
		},
	},
	{
		name:   "lever",
		hostRe: regexp.MustCompile(`^jobs\.lever\.co$`),
		pathRe: regexp.MustCompile(`^/([a-z0-9\-]+)`),
		builder: func(host, path string, m []string) sourceconfig.Config {
			slug := m[1]
			return sourceconfig.Config{
				Type: model.SourceAPI,
				URL:  fmt.Sprintf("https://api.lever.co/v0/postings/%s?mode=json", slug),
				Fields: sourceconfig.FieldMap{
					Title: "text", URL: "hostedUrl", Location: "categories.location",
					Description: "descriptionPlain", PostedDate: "createdAt",
				},
			}
		},
	},
	{
		name:   "ashby",
		hostRe: regexp.MustCompile(`^jobs\.ashbyhq\.com$`),
		pathRe: regexp.MustCompile(`^/([a-z0-9\-]+)`),
		builder: func(host, path string, m []string) sourceconfig.Config {
			slug := m[1]
			return sourceconfig.Config{
				Type: model.SourceAPI,
				URL:  fmt.Sprintf("https://api.ashbyhq.com/posting-api/job-board/%s", slug),
				Fields: sourceconfig.FieldMap{
					Title: "title", URL: "jobUrl", Location: "location",
					Description: "descriptionPlain", PostedDate: "publishedAt",
				},
			}
		},
	},
	{
		name:   "smartrecruiters",
		hostRe: regexp.MustCompile(`^jobs\.smartrecruiters\.com$`),
		pathRe: regexp.MustCompile(`^/([A-Za-z0-9]+)`),
		builder: func(host, path string, m []string) sourceconfig.Config {
			company := m[1]
			return sourceconfig.Config{
				Type: model.SourceAPI,
				URL:  fmt.Sprintf("https://api.smartrecruiters.com/v1/companies/%s/postings", company),
				Fields: sourceconfig.FieldMap{
					Title: "name", URL: "applyUrl", Location: "location.city", PostedDate: "releasedDate",
				},
			}
		},
	},
	{
		name:   "workable",
		hostRe: regexp.MustCompile(`^apply\.workable\.com$`),
		pathRe: regexp.MustCompile(`^/([a-z0-9\-]+)`),
		builder: func(host, path string, m []string) sourceconfig.Config {
			slug := m[1]
			return sourceconfig.Config{
				Type: model.SourceAPI,
				URL:  fmt.Sprintf("https://apply.workable.com/api/v1/widget/accounts/%s", slug),
				Fields: sourceconfig.FieldMap{
					Title: "title", URL: "url", Location: "location.city", PostedDate: "published_on",
				},
			}
		},
	},
	{
		name:   "breezy",
		hostRe: regexp.MustCompile(`^([a-z0-9\-]+)\.breezy\.hr$`),
		pathRe: regexp.MustCompile(`^/?`),
		builder: func(host, path string, m []string) sourceconfig.Config {
			return sourceconfig.Config{
				Type: model.SourceAPI,
				URL:  fmt.Sprintf("https://%s/json", host),
				Fields: sourceconfig.FieldMap{
					Title: "name", URL: "url", Location: "location.name", PostedDate: "published_date",
				},
			}
		},
	},
	{
		name:   "recruitee",
		hostRe: regexp.MustCompile(`^([a-z0-9\-]+)\.recruitee\.com$`),
		pathRe: regexp.MustCompile(`^/?`),
		builder: func(host, path string, m []string) sourceconfig.Config {
			return sourceconfig.Config{
				Type: model.SourceAPI,
				URL:  fmt.Sprintf("https://%s/api/offers/", host),
				Fields: sourceconfig.FieldMap{
					Title: "title", URL: "careers_url", Location: "location", PostedDate: "published_at",
				},
			}
		},
	},
	{
		name:   "workday",
		hostRe: regexp.MustCompile(`^([a-z0-9\-]+)\.(?:wd\d+\.)?myworkdayjobs\.com$`),
		pathRe: regexp.MustCompile(`^/(?:[a-z]{2}-[A-Z]{2}/)?([A-Za-z0-9_]+)`),
		builder: func(host, path string, m []string) sourceconfig.Config {
			tenant := strings.Split(host, ".")[0]
			site := m[1]
			return sourceconfig.Config{
				Type: model.SourceAPI,
				URL:  fmt.Sprintf("https://%s.myworkdayjobs.com/wday/cxs/%s/%s/jobs", tenant, tenant, site),
				Fields: sourceconfig.FieldMap{
					Title: "title", URL: "externalPath", Location: "locationsText", PostedDate: "postedOn",
				},
			}
		},
	},
}

// jobsOrCareersSlugRe matches jobs.<slug>.<tld> / careers.<slug>.<tld>
// heuristic hosts (§4.6).
var jobsOrCareersSlugRe = regexp.MustCompile(`^(?:jobs|careers)\.([a-z0-9\-]+)\.[a-z.]+$`)

// leverSinglePostingRe matches the bare jobs.lever.co host (§4.6); it checks
// no path, so on its own it does not tell a single posting from a board.
var leverSinglePostingRe = regexp.MustCompile(`^jobs\.lever\.co$`)

// Classify runs C6's rule cascade (§4.6). prober may be nil, in which case
// heuristic-probe and live-validation steps are skipped and the
// corresponding config is returned unvalidated at reduced confidence. agent
// may also be nil, in which case the cascade's final AI fallback is skipped
// and the low-confidence COMPANY_SPECIFIC default is returned as-is; sample
// is whatever fetched HTML/text context the caller already has on hand for
// this URL (may be empty).
func Classify(ctx context.Context, rawURL, companyName string, prober Prober, agent ClassifierAgent, sample string) (Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return Result{Classification: Invalid, Reasoning: "unparseable URL"}, nil
	}
	host := strings.ToLower(u.Host)
	path := u.Path

	for _, p := range knownAggregatorPatterns {
		if strings.Contains(host, p.domain) && p.re.MatchString(rawURL) {
			return Result{
				Classification: SingleJobListing,
				ShouldDisable:  true,
				DisableReason:  "known aggregator single-listing URL pattern",
				Confidence:     0.95,
				Reasoning:      "matched known aggregator pattern for " + p.domain,
			}, nil
		}
	}

	for atsHost, bareRe := range atsProviderBareHosts {
		if strings.Contains(host, atsHost) && bareRe.MatchString(path) {
			return Result{
				Classification: ATSProviderSite,
				ShouldDisable:  true,
				DisableReason:  "ATS provider marketing page, no customer sub-path",
				Confidence:     0.9,
				Reasoning:      "host matched known ATS provider with no customer slug",
			}, nil
		}
	}

	for _, pattern := range platformPatterns {
		hostMatch := pattern.hostRe.FindStringSubmatch(host)
		if hostMatch == nil {
			continue
		}
		pathMatch := pattern.pathRe.FindStringSubmatch(path)
		m := hostMatch
		if len(pattern.pathRe.String()) > 0 && pathMatch != nil {
			m = pathMatch
		}
		if m == nil {
			m = hostMatch
		}
		cfg := pattern.builder(host, path, m)
		return validateAndBuild(ctx, cfg, companyName, prober, "matched platform pattern: "+pattern.name)
	}

	if m := jobsOrCareersSlugRe.FindStringSubmatch(host); m != nil && prober != nil {
		slug := m[1]
		cfg := sourceconfig.Config{
			Type: model.SourceAPI,
			URL:  fmt.Sprintf("https://boards-api.greenhouse.io/v1/boards/%s/jobs?content=true", slug),
			Fields: sourceconfig.FieldMap{
				Title: "title", URL: "absolute_url", Location: "location.name",
				Description: "content", PostedDate: "updated_at",
			},
		}
		return validateAndBuild(ctx, cfg, companyName, prober, "heuristic probe: jobs/careers subdomain as Greenhouse slug")
	}

	if agent != nil {
		if result, ok := classifyWithAgent(ctx, rawURL, companyName, sample, agent); ok {
			return result, nil
		}
	}

	return Result{
		Classification: CompanySpecific,
		CompanyName:    companyName,
		Confidence:     0.3,
		Reasoning:      "no known platform pattern matched; requires manual or AI-assisted config",
	}, nil
}

// classifyWithAgent is the cascade's last resort: an AI call over whatever
// sample context the caller fetched. A failed or malformed agent response
// (e.g. the deterministic FallbackAgent, which always declines) is not an
// error — the caller falls through to the low-confidence heuristic default.
func classifyWithAgent(ctx context.Context, rawURL, companyName, sample string, agent ClassifierAgent) (Result, bool) {
	classification, reasoning, err := agent.ClassifyURL(ctx, rawURL, companyName, sample)
	if err != nil || classification == "" {
		return Result{}, false
	}

	c := Classification(classification)
	switch c {
	case JobAggregator, CompanySpecific, SingleJobListing, ATSProviderSite, Invalid:
	default:
		return Result{}, false
	}

	result := Result{
		Classification: c,
		CompanyName:    companyName,
		Confidence:     0.5,
		Reasoning:      "AI fallback classification: " + reasoning,
	}
	if c == SingleJobListing || c == ATSProviderSite || c == Invalid {
		result.ShouldDisable = true
		result.DisableReason = "AI fallback classified as " + string(c)
	}
	return result, true
}

func validateAndBuild(ctx context.Context, cfg sourceconfig.Config, companyName string, prober Prober, reasoning string) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{Classification: Invalid, Reasoning: "synthesized config failed validation: " + err.Error()}, nil
	}

	confidence := 0.6
	if prober != nil {
		ok, err := prober.Probe(ctx, cfg)
		if err != nil || !ok {
			return Result{
				Classification: Invalid,
				ShouldDisable:  true,
				DisableReason:  "live validation of synthesized config failed",
				Confidence:     0.2,
				Reasoning:      reasoning + "; live probe failed",
			}, nil
		}
		confidence = 0.9
	}

	return Result{
		Classification: CompanySpecific,
		CompanyName:    companyName,
		SourceConfig:   &cfg,
		Confidence:     confidence,
		Reasoning:      reasoning,
	}, nil
}
