package processors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/sourceconfig"
)

// detailFetchTimeout bounds a single job-detail GET, matching the generic
// scraper's own detail-page enrichment budget (§5).
const detailFetchTimeout = 15 * time.Second

var greenhouseCompanyRe = regexp.MustCompile(`boards\.greenhouse\.io/([^/]+)`)

// fetchJobDetail implements the JOB processor's SCRAPE stage fallback
// (§4.9.1): when no registered Source matches the URL, dispatch on the
// board the URL belongs to, else fall back to a generic single-page
// extraction. Once the page is fetched, every path fills a missing title,
// company or location with "Unknown" (or "Remote" for the remote-only
// boards) rather than failing the stage, matching the per-board scrapers
// this is grounded on; a missing description is left empty, and a failed
// fetch fails the stage.
func fetchJobDetail(ctx context.Context, rawURL string) (model.Posting, error) {
	doc, err := fetchDoc(ctx, rawURL)
	if err != nil {
		return model.Posting{}, err
	}

	switch {
	case strings.Contains(rawURL, "greenhouse"):
		return scrapeGreenhouseDetail(doc, rawURL), nil
	case strings.Contains(rawURL, "weworkremotely.com"):
		return scrapeWeWorkRemotelyDetail(doc, rawURL), nil
	case strings.Contains(rawURL, "remotive.com"), strings.Contains(rawURL, "remotive.io"):
		return scrapeRemotiveDetail(doc, rawURL), nil
	default:
		return scrapeGenericDetail(doc, rawURL), nil
	}
}

// fetchDetailWithConfig scrapes a single job-detail page using a registered
// Source's field map (§4.9.1: "if a registered source matches the URL, use
// its Source-config"). Only the HTML field grammar applies here — a single
// posting page has no job_selector to iterate, so each field is resolved
// directly against the document root.
func fetchDetailWithConfig(ctx context.Context, rawURL string, cfg sourceconfig.Config) (model.Posting, error) {
	doc, err := fetchDoc(ctx, rawURL)
	if err != nil {
		return model.Posting{}, err
	}
	p := model.Posting{URL: rawURL}
	p.Title = selectField(doc, cfg.Fields.Title)
	p.Company = selectField(doc, cfg.Fields.Company)
	p.Location = selectField(doc, cfg.Fields.Location)
	p.Description = selectField(doc, cfg.Fields.Description)
	p.PostedDate = selectField(doc, cfg.Fields.PostedDate)
	p.Salary = selectField(doc, cfg.Fields.Salary)
	if p.Title == "" {
		p.Title = selectField(doc, "h1")
	}
	if p.Company == "" {
		p.Company = cfg.CompanyName
	}
	p.CompanyWebsite = extractCompanyDomain(rawURL)
	return p, nil
}

func fetchDoc(ctx context.Context, rawURL string) (*goquery.Document, error) {
	dctx, cancel := context.WithTimeout(ctx, detailFetchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(dctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch job detail: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, model.NewScrapeBlocked(fmt.Sprintf("job detail fetch returned %d", resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read job detail body: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse job detail html: %w", err)
	}
	return doc, nil
}

func selectField(doc *goquery.Document, fieldPath string) string {
	if fieldPath == "" {
		return ""
	}
	csel := sourceconfig.ParseCSSSelector(fieldPath)
	target := doc.Selection
	if csel.Selector != "" {
		target = doc.Find(csel.Selector).First()
	}
	if target.Length() == 0 {
		return ""
	}
	if csel.Attribute != "" {
		v, _ := target.Attr(csel.Attribute)
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(target.Text())
}

func textOrUnknown(doc *goquery.Document, selector string) string {
	t := strings.TrimSpace(doc.Find(selector).First().Text())
	if t == "" {
		return "Unknown"
	}
	return t
}

func scrapeGreenhouseDetail(doc *goquery.Document, rawURL string) model.Posting {
	company := "Unknown"
	if m := greenhouseCompanyRe.FindStringSubmatch(rawURL); m != nil {
		company = titleCase(strings.ReplaceAll(m[1], "-", " "))
	}
	return model.Posting{
		URL:            rawURL,
		Title:          textOrUnknown(doc, "h1.section-header"),
		Company:        company,
		Location:       textOrUnknown(doc, "div.job__location"),
		Description:    strings.TrimSpace(doc.Find("div.job__description").Text()),
		CompanyWebsite: extractCompanyDomain(rawURL),
	}
}

func scrapeWeWorkRemotelyDetail(doc *goquery.Document, rawURL string) model.Posting {
	return model.Posting{
		URL:            rawURL,
		Title:          textOrUnknown(doc, "h1"),
		Company:        textOrUnknown(doc, "h2"),
		Location:       "Remote",
		Description:    strings.TrimSpace(doc.Find("div.listing-container").Text()),
		CompanyWebsite: extractCompanyDomain(rawURL),
		IsRemoteSource: true,
	}
}

func scrapeRemotiveDetail(doc *goquery.Document, rawURL string) model.Posting {
	return model.Posting{
		URL:            rawURL,
		Title:          textOrUnknown(doc, "h1"),
		Company:        textOrUnknown(doc, "a.company-name"),
		Location:       "Remote",
		Description:    strings.TrimSpace(doc.Find("div.job-description").Text()),
		CompanyWebsite: extractCompanyDomain(rawURL),
		IsRemoteSource: true,
	}
}

func scrapeGenericDetail(doc *goquery.Document, rawURL string) model.Posting {
	return model.Posting{
		URL:            rawURL,
		Title:          textOrUnknown(doc, "h1"),
		Company:        "Unknown",
		Location:       "Unknown",
		Description:    strings.TrimSpace(doc.Find("body").Text()),
		CompanyWebsite: extractCompanyDomain(rawURL),
	}
}

// titleCase upper-cases the first rune of each whitespace-separated word,
// replacing the deprecated strings.Title the Python original's .title() was
// transliterated from.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// extractCompanyDomain derives a best-effort company website from a job
// board URL's own host, used only as a last resort before the Company Info
// Fetcher (C11) runs its own search-first resolution.
func extractCompanyDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	for _, board := range []string{"greenhouse.io", "lever.co", "weworkremotely.com", "remotive.com", "remotive.io", "ashbyhq.com"} {
		if strings.Contains(u.Host, board) {
			return ""
		}
	}
	return u.Scheme + "://" + u.Host
}
