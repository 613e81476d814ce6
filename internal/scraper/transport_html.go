package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/sourceconfig"
)

// scrapeHTML dispatches the "html" transport (§4.2): a collector-driven GET
// through colly, or a delegated headless render when requires_js=true, then
// CSS-selects job elements by job_selector.
func (s *Scraper) scrapeHTML(ctx context.Context) ([]map[string]any, error) {
	var body string
	var status int

	if s.Config.RequiresJS {
		timeout := time.Duration(s.Config.RenderTimeoutMs) * time.Millisecond
		if timeout < time.Second {
			timeout = time.Second
		}
		res, err := s.renderer.Render(ctx, s.EffectiveURL(), s.Config.RenderWaitFor, timeout)
		if err != nil {
			return nil, fmt.Errorf("headless render: %w", err)
		}
		body = res.HTML
		status = res.Status

		if err := checkBlockedStatus(status, http.StatusText(status)); err != nil {
			return nil, err
		}
		return s.extractHTMLItems(body)
	}

	var items []map[string]any
	var fetchErr error

	c := colly.NewCollector(colly.Async(false))
	c.SetClient(s.client)

	c.OnRequest(func(r *colly.Request) {
		authReq, err := http.NewRequest(http.MethodGet, r.URL.String(), nil)
		if err != nil {
			return
		}
		s.applyAuth(authReq)
		for k, vs := range authReq.Header {
			for _, v := range vs {
				r.Headers.Set(k, v)
			}
		}
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = string(r.Body)
	})
	c.OnHTML(s.Config.JobSelector, func(e *colly.HTMLElement) {
		items = append(items, htmlElementToItem(e.DOM))
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	if err := c.Visit(s.EffectiveURL()); err != nil {
		return nil, fmt.Errorf("colly visit: %w", err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fmt.Errorf("http GET: %w", fetchErr)
	}

	if err := checkBlockedStatus(status, http.StatusText(status)); err != nil {
		return nil, err
	}

	if len(items) == 0 {
		if blocked, marker := looksBlocked(body); blocked {
			return nil, model.NewScrapeBlocked(blockedReasonFor(marker), model.TagAntiBot)
		}
	}
	return items, nil
}

// extractHTMLItems CSS-selects job elements out of an already-fetched HTML
// body (the headless-render path, which colly never sees).
func (s *Scraper) extractHTMLItems(body string) ([]map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse rendered html: %w", err)
	}

	var items []map[string]any
	doc.Find(s.Config.JobSelector).Each(func(i int, sel *goquery.Selection) {
		items = append(items, htmlElementToItem(sel))
	})

	if len(items) == 0 {
		if blocked, marker := looksBlocked(body); blocked {
			return nil, model.NewScrapeBlocked(blockedReasonFor(marker), model.TagAntiBot)
		}
	}
	return items, nil
}

// htmlElementToItem converts a matched job-selector element into a raw item
// map holding only the element's inner HTML under "__html"; the field map's
// CSS-with-attribute grammar (§4.1) is applied later by extractPosting via
// extractHTMLField.
func htmlElementToItem(sel *goquery.Selection) map[string]any {
	html, _ := sel.Html()
	return map[string]any{"__html": html}
}

// extractHTMLField resolves a CSS-with-attribute field path (§4.1) against
// one matched job element: a bare selector returns collapsed text, an
// "@attr" suffix returns the attribute value.
func extractHTMLField(itemHTML string, fieldPath string) string {
	if fieldPath == "" || itemHTML == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(itemHTML))
	if err != nil {
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
		return v
	}
	return collapseWhitespace(target.Text())
}
