package scraper

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/sourceconfig"
)

// enrich fills missing description/posted_date fields by fetching the
// posting's detail page, dispatching on platform (§4.2.5). The configured
// fetch delay is always applied afterward, even on error.
func (s *Scraper) enrich(ctx context.Context, p *model.Posting) {
	defer time.Sleep(s.FetchDelay)

	if p.URL == "" {
		return
	}

	switch {
	case strings.Contains(p.URL, "smartrecruiters.com"):
		s.enrichSmartRecruiters(ctx, p)
	case strings.Contains(p.URL, "myworkdayjobs.com"):
		s.enrichWorkday(ctx, p)
	default:
		s.enrichGeneric(ctx, p)
	}
}

func (s *Scraper) fetchDetail(ctx context.Context, url string) ([]byte, error) {
	dctx, cancel := context.WithTimeout(ctx, detailFetchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(dctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	s.applyAuth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *Scraper) enrichSmartRecruiters(ctx context.Context, p *model.Posting) {
	body, err := s.fetchDetail(ctx, p.URL)
	if err != nil {
		s.log.WithError(err).Debug("smartrecruiters detail fetch failed")
		return
	}
	var decoded map[string]any
	if json.Unmarshal(body, &decoded) != nil {
		return
	}

	if p.Description == "" {
		if v, ok := sourceconfig.Navigate(decoded, "jobAd.sections.jobDescription.text"); ok {
			p.Description = collapseWhitespace(toText(v))
		} else if v, ok := sourceconfig.Navigate(decoded, "jobAd.sections.qualifications.text"); ok {
			p.Description = collapseWhitespace(toText(v))
		}
	}
	if p.Title == "" {
		if v, ok := sourceconfig.Navigate(decoded, "name"); ok {
			p.Title = collapseWhitespace(toText(v))
		}
	}
	if p.Location == "" {
		if v, ok := sourceconfig.Navigate(decoded, "location.city"); ok {
			p.Location = toText(v)
		}
	}
	if p.PostedDate == "" {
		if v, ok := sourceconfig.Navigate(decoded, "releasedDate"); ok {
			p.PostedDate = normalizePostedDate(toText(v))
		}
	}
}

func (s *Scraper) enrichWorkday(ctx context.Context, p *model.Posting) {
	detailURL := p.URL
	if s.Config.BaseURL != "" {
		if v, ok := extractWorkdayExternalPath(p); ok {
			detailURL = joinURL(s.Config.BaseURL, v)
		}
	}

	body, err := s.fetchDetail(ctx, detailURL)
	if err != nil {
		s.log.WithError(err).Debug("workday detail fetch failed")
		return
	}
	var decoded map[string]any
	if json.Unmarshal(body, &decoded) != nil {
		return
	}

	if p.Description == "" {
		if v, ok := sourceconfig.Navigate(decoded, "jobPostingInfo.jobDescription"); ok {
			p.Description = collapseWhitespace(toText(v))
		} else if v, ok := sourceconfig.Navigate(decoded, "jobPostingInfo.qualifications"); ok {
			p.Description = collapseWhitespace(toText(v))
		}
	}
	if !strings.HasPrefix(p.URL, "http") {
		p.URL = detailURL
	}
}

func extractWorkdayExternalPath(p *model.Posting) (string, bool) {
	if p.Metadata == nil {
		return "", false
	}
	v, ok := p.Metadata["externalPath"]
	return v, ok && v != ""
}

func toText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

var jsonLDJobPostingRe = regexp.MustCompile(`(?is)<script[^>]+type=["']application/ld\+json["'][^>]*>(.*?)</script>`)
var metaDateRe = regexp.MustCompile(`(?i)<meta[^>]+(?:property|name)=["'](?:article:published_time|date|datePublished)["'][^>]+content=["']([^"']+)["']`)
var postedAgoRe = regexp.MustCompile(`(?i)posted\s+(\d+)\s+(day|days|hour|hours|week|weeks)\s+ago`)

var datePostedAncestorClasses = []string{"post", "publish", "date", "created", "listed", "added"}

// enrichGeneric implements the generic-platform enrichment cascade of
// §4.2.5: JSON-LD JobPosting, then meta date tags, then <time datetime>
// preferring date-ish ancestors, then common CSS selectors, then a
// "posted N days ago" regex.
func (s *Scraper) enrichGeneric(ctx context.Context, p *model.Posting) {
	body, err := s.fetchDetail(ctx, p.URL)
	if err != nil {
		s.log.WithError(err).Debug("generic detail fetch failed")
		return
	}
	html := string(body)

	if p.Description == "" {
		if desc, ok := jsonLDDescription(html); ok {
			p.Description = collapseWhitespace(desc)
		}
	}

	if p.PostedDate == "" {
		if m := metaDateRe.FindStringSubmatch(html); m != nil {
			p.PostedDate = normalizePostedDate(m[1])
		}
	}
	if p.PostedDate == "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
			p.PostedDate = findTimeElementDate(doc)
		}
	}
	if p.PostedDate == "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
			for _, sel := range []string{"[class*='posted-date']", "[class*='post-date']", "[class*='date-posted']"} {
				if t := doc.Find(sel).First().Text(); t != "" {
					p.PostedDate = normalizePostedDate(strings.TrimSpace(t))
					break
				}
			}
		}
	}
	if p.PostedDate == "" {
		if m := postedAgoRe.FindStringSubmatch(html); m != nil {
			p.PostedDate = m[0]
		}
	}
}

// jsonLDDescription extracts a JobPosting's description from an embedded
// JSON-LD block, including @graph-wrapped documents.
func jsonLDDescription(html string) (string, bool) {
	matches := jsonLDJobPostingRe.FindAllStringSubmatch(html, -1)
	for _, m := range matches {
		var decoded any
		if json.Unmarshal([]byte(m[1]), &decoded) != nil {
			continue
		}
		if desc, ok := jobPostingDescriptionFrom(decoded); ok {
			return desc, true
		}
	}
	return "", false
}

func jobPostingDescriptionFrom(decoded any) (string, bool) {
	switch v := decoded.(type) {
	case map[string]any:
		if t, _ := v["@type"].(string); t == "JobPosting" {
			if d, ok := v["description"].(string); ok {
				return d, true
			}
		}
		if graph, ok := v["@graph"].([]any); ok {
			for _, el := range graph {
				if desc, ok := jobPostingDescriptionFrom(el); ok {
					return desc, true
				}
			}
		}
	case []any:
		for _, el := range v {
			if desc, ok := jobPostingDescriptionFrom(el); ok {
				return desc, true
			}
		}
	}
	return "", false
}

// findTimeElementDate prefers a <time datetime> whose ancestor's class
// matches a date-ish keyword (§4.2.5).
func findTimeElementDate(doc *goquery.Document) string {
	var best, fallback string
	doc.Find("time[datetime]").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		dt, _ := sel.Attr("datetime")
		if dt == "" {
			return true
		}
		if hasDateAncestor(sel) {
			best = normalizePostedDate(dt)
			return false
		}
		if fallback == "" {
			fallback = normalizePostedDate(dt)
		}
		return true
	})
	if best != "" {
		return best
	}
	return fallback
}

func hasDateAncestor(sel *goquery.Selection) bool {
	found := false
	sel.ParentsFiltered("*").Each(func(i int, p *goquery.Selection) {
		if found {
			return
		}
		class, _ := p.Attr("class")
		classLower := strings.ToLower(class)
		for _, kw := range datePostedAncestorClasses {
			if strings.Contains(classLower, kw) {
				found = true
				return
			}
		}
	})
	return found
}
