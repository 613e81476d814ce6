// Package companyinfo implements C11: a search-first company info fetcher
// used as a read-through collaborator by the JOB and COMPANY processors.
// Strategy: search by company name first (primary data source) and let an
// LLM agent extract structured fields from the search results. The
// company's own website is not scraped: fields the search pass leaves empty
// stay at their defaults.
package companyinfo

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jobmate/discovery-core/internal/llmagent"
	"github.com/jobmate/discovery-core/internal/model"
)

// workdayCompanyMap resolves a Workday tenant subdomain (often a stock
// ticker or abbreviation) to the company's real name (§4.11, Open Question
// 2 — treated as core data, not configuration).
var workdayCompanyMap = map[string]string{
	"mdlz":   "Mondelez International",
	"nvidia": "NVIDIA",
	"msft":   "Microsoft",
	"goog":   "Google",
	"amzn":   "Amazon",
	"meta":   "Meta",
	"aapl":   "Apple",
	"ibm":    "IBM",
	"intc":   "Intel",
	"csco":   "Cisco",
	"orcl":   "Oracle",
	"sap":    "SAP",
	"crm":    "Salesforce",
	"adbe":   "Adobe",
	"vmw":    "VMware",
	"dell":   "Dell",
	"hpe":    "Hewlett Packard Enterprise",
	"jnj":    "Johnson & Johnson",
	"pfe":    "Pfizer",
	"mrk":    "Merck",
	"unh":    "UnitedHealth",
	"wmt":    "Walmart",
	"tgt":    "Target",
	"cost":   "Costco",
	"hd":     "Home Depot",
	"low":    "Lowe's",
}

// disambiguationHints nudges the AI extraction prompt toward the intended
// company for names that collide with unrelated businesses. The search
// queries do not use them.
var disambiguationHints = map[string]string{
	"close":   "This is likely Close.com, a CRM/sales software company.",
	"nova":    "Focus on the tech/software company named Nova, not other businesses.",
	"signal":  "This is likely Signal, the encrypted messaging app company.",
	"notion":  "This is likely Notion, the productivity/notes software company.",
	"linear":  "This is likely Linear, the project management software company.",
	"stripe":  "This is likely Stripe, the payments infrastructure company.",
	"square":  "This is likely Square (Block, Inc.), the payments company.",
}

var searchEngineHostFragments = []string{
	"google.com/search", "google.com/url", "bing.com/search", "duckduckgo.com/",
	"yahoo.com/search", "baidu.com/s", "yandex.com/search", "ecosia.org/search",
	"startpage.com/", "ask.com/web",
}

// JobBoardChecker reports whether a URL belongs to a known aggregator
// domain, so it's never mistaken for a company's own website. The Source
// Registry (C7) satisfies this.
type JobBoardChecker interface {
	IsJobBoardURL(ctx context.Context, url string) (bool, error)
}

// SourceContext carries the scrape-time hints (§4.11's source_context)
// used to disambiguate a company name and build better search queries.
type SourceContext struct {
	AggregatorDomain string
	BaseURL          string
	JobTitle         string
}

// Fetcher implements fetch_company_info (§4.11). Agent and Search may both
// be nil, in which case extraction falls back to whatever heuristic
// defaults FetchCompanyInfo can still fill in from the company name alone.
type Fetcher struct {
	Agent  llmagent.Agent
	Search llmagent.SearchClient
	Boards JobBoardChecker
	log    *logrus.Entry
}

// New builds a Fetcher. log may be nil, in which case a discard logger is
// used.
func New(agent llmagent.Agent, search llmagent.SearchClient, boards JobBoardChecker, log *logrus.Entry) *Fetcher {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Fetcher{Agent: agent, Search: search, Boards: boards, log: log.WithField("component", "companyinfo")}
}

// FetchCompanyInfo implements §4.11: never accepts a job-board or
// search-engine URL as website, and normalizes the result to a fixed Company
// shape with typed defaults.
func (f *Fetcher) FetchCompanyInfo(ctx context.Context, companyName, urlHint string, src SourceContext) (model.Company, error) {
	company := model.Company{Name: companyName}

	searchName := companyName
	if better := companyFromWorkdayURL(src.BaseURL); better != "" && !strings.EqualFold(better, companyName) {
		f.log.WithFields(logrus.Fields{"workday_name": better, "original_name": companyName}).Info("workday URL suggests a different company name")
		searchName = better
	}

	if extracted, err := f.searchAndExtract(ctx, searchName, src); err != nil {
		f.log.WithError(err).Warn("search-and-extract failed, continuing with defaults")
	} else if extracted != nil {
		if extracted.Website != "" {
			if jobBoard, err := f.isJobBoardURL(ctx, extracted.Website); err != nil || jobBoard {
				extracted.Website = ""
			}
		}
		mergeInto(&company, *extracted)
	}

	if company.Website == "" && urlHint != "" {
		jobBoard, err := f.isJobBoardURL(ctx, urlHint)
		if err != nil {
			f.log.WithError(err).Warn("job board URL check failed, treating url_hint as untrusted")
		}
		if err == nil && !jobBoard && !isSearchEngineURL(urlHint) {
			company.Website = urlHint
		}
	}

	return company, nil
}

// searchAndExtract runs the search-first strategy: build and try queries
// until one returns plausibly relevant results, then hand the formatted
// results to the configured Agent for structured extraction. Returns nil,
// nil (not an error) when no search client or agent is configured — the
// caller proceeds with bare defaults rather than failing the pipeline.
func (f *Fetcher) searchAndExtract(ctx context.Context, companyName string, src SourceContext) (*model.Company, error) {
	if f.Search == nil || f.Agent == nil {
		return nil, nil
	}

	queries := buildSearchQueries(companyName, src)
	var context string
	for _, q := range queries {
		results, err := f.Search.Search(ctx, q)
		if err != nil {
			f.log.WithError(err).WithField("query", q).Debug("search query failed")
			continue
		}
		if hasQualityResults(results, companyName) {
			context = formatSearchResults(results)
			break
		}
	}
	if context == "" {
		return nil, nil
	}

	hint := disambiguationHint(companyName, src)
	record, err := f.Agent.ExtractCompany(ctx, companyName, hint+context)
	if err != nil {
		return nil, fmt.Errorf("companyinfo: extraction failed: %w", err)
	}
	c := recordToCompany(record)
	return &c, nil
}

func (f *Fetcher) isJobBoardURL(ctx context.Context, rawURL string) (bool, error) {
	if f.Boards == nil {
		return false, nil
	}
	return f.Boards.IsJobBoardURL(ctx, rawURL)
}

func recordToCompany(r llmagent.CompanyRecord) model.Company {
	return model.Company{
		Name:          r.Name,
		Website:       r.Website,
		About:         r.About,
		Culture:       r.Culture,
		Mission:       r.Mission,
		Headquarters:  r.Headquarters,
		EmployeeCount: r.EmployeeCount,
		TechStack:     r.TechStack,
		IsRemoteFirst: r.IsRemoteFirst,
		Industry:      r.Industry,
	}
}

// mergeInto fills each empty field of dst from extracted, keeping any value
// dst already has. Website is adopted only when dst has none and extracted's
// is not a search-engine URL; the job-board check on extracted's website
// happens in FetchCompanyInfo before the merge.
func mergeInto(dst *model.Company, extracted model.Company) {
	if dst.Website == "" && extracted.Website != "" && !isSearchEngineURL(extracted.Website) {
		dst.Website = extracted.Website
	}
	if dst.About == "" {
		dst.About = extracted.About
	}
	if dst.Culture == "" {
		dst.Culture = extracted.Culture
	}
	if dst.Mission == "" {
		dst.Mission = extracted.Mission
	}
	if dst.Headquarters == "" {
		dst.Headquarters = extracted.Headquarters
	}
	if dst.EmployeeCount == nil {
		dst.EmployeeCount = extracted.EmployeeCount
	}
	if len(dst.TechStack) == 0 {
		dst.TechStack = extracted.TechStack
	}
	if !dst.IsRemoteFirst {
		dst.IsRemoteFirst = extracted.IsRemoteFirst
	}
	if dst.Industry == "" {
		dst.Industry = extracted.Industry
	}
}

func buildSearchQueries(companyName string, src SourceContext) []string {
	var queries []string

	if strings.Contains(src.BaseURL, "myworkdayjobs.com") {
		if subdomain := workdaySubdomain(src.BaseURL); subdomain != "" && !strings.EqualFold(subdomain, companyName) {
			queries = append(queries, subdomain+" company official website about")
		}
	}

	queries = append(queries,
		fmt.Sprintf("%q company official website", companyName),
		fmt.Sprintf("%s company about headquarters employees", companyName),
	)

	switch src.AggregatorDomain {
	case "greenhouse.io", "lever.co", "ashbyhq.com":
		queries = append(queries, companyName+" tech startup company")
	}

	queries = append(queries, companyName+" company careers about us")
	return queries
}

func hasQualityResults(results []llmagent.SearchResult, companyName string) bool {
	if len(results) == 0 {
		return false
	}
	nameLower := strings.ToLower(companyName)
	relevant := 0
	terms := []string{"company", "about", "careers", "jobs", "headquarters"}

	limit := len(results)
	if limit > 5 {
		limit = 5
	}
	for _, r := range results[:limit] {
		title := strings.ToLower(r.Title)
		snippet := strings.ToLower(r.Snippet)
		if strings.Contains(title, nameLower) || strings.Contains(snippet, nameLower) {
			relevant++
		}
		for _, term := range terms {
			if strings.Contains(title, term) || strings.Contains(snippet, term) {
				relevant++
				break
			}
		}
	}
	return relevant >= 2
}

func formatSearchResults(results []llmagent.SearchResult) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		fmt.Fprintf(&sb, "Source: %s\nTitle: %s\n%s\n", r.URL, r.Title, r.Snippet)
	}
	return sb.String()
}

func disambiguationHint(companyName string, src SourceContext) string {
	var hints []string

	switch {
	case src.AggregatorDomain == "greenhouse.io":
		hints = append(hints, "This is a tech company that uses Greenhouse for hiring.")
	case src.AggregatorDomain == "lever.co":
		hints = append(hints, "This is a tech company that uses Lever for hiring.")
	case src.AggregatorDomain == "ashbyhq.com":
		hints = append(hints, "This is a tech company that uses Ashby for hiring.")
	case strings.Contains(src.BaseURL, "myworkdayjobs.com"):
		hints = append(hints, fmt.Sprintf("This company uses Workday for hiring (careers URL: %s).", src.BaseURL))
	case src.AggregatorDomain == "weworkremotely.com" || src.AggregatorDomain == "remoteok.com":
		hints = append(hints, "This is a remote-friendly tech company.")
	}

	if hint, ok := disambiguationHints[strings.ToLower(companyName)]; ok {
		hints = append(hints, hint)
	}

	if len(hints) == 0 {
		return ""
	}
	return "Context:\n- " + strings.Join(hints, "\n- ") + "\n\n"
}

func isSearchEngineURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	lower := strings.ToLower(rawURL)
	for _, frag := range searchEngineHostFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// companyFromWorkdayURL extracts the real company name from a Workday
// tenant subdomain when it's a known ticker/abbreviation, or title-cases an
// unrecognized alphabetic subdomain long enough to plausibly be a name.
func companyFromWorkdayURL(baseURL string) string {
	subdomain := workdaySubdomain(baseURL)
	if subdomain == "" {
		return ""
	}
	if name, ok := workdayCompanyMap[strings.ToLower(subdomain)]; ok {
		return name
	}
	if len(subdomain) > 4 && isAlpha(subdomain) {
		return strings.ToUpper(subdomain[:1]) + strings.ToLower(subdomain[1:])
	}
	return ""
}

// workdaySubdomain pulls the tenant label out of a
// {tenant}.wd{N}.myworkdayjobs.com URL.
func workdaySubdomain(baseURL string) string {
	if baseURL == "" || !strings.Contains(baseURL, "myworkdayjobs.com") {
		return ""
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.ToLower(u.Hostname()), ".")
	if len(parts) < 3 {
		return ""
	}
	return parts[0]
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return len(s) > 0
}
