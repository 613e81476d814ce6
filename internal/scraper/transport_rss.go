package scraper

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"

	"github.com/jobmate/discovery-core/internal/model"
)

// rssFeed / atomFeed mirror codenamed22-hire.ai's pkg/rss client shapes;
// discovery-core's generic scraper needs the raw item maps (for field-path
// navigation), not hire.ai's already-typed models.Job, so entries are
// converted to map[string]any instead of a fixed struct.
type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
	Category    string `xml:"category"`
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Link    struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Published string `xml:"published"`
	ID        string `xml:"id"`
}

// scrapeRSS dispatches the "rss" transport (§4.2): GET, detect anti-bot,
// else feed-parse entries into raw item maps for extraction.
func (s *Scraper) scrapeRSS(ctx context.Context) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.EffectiveURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	s.applyAuth(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	if err := checkBlockedStatus(resp.StatusCode, http.StatusText(resp.StatusCode)); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	items := parseRSSOrAtom(body)
	if len(items) == 0 {
		if blocked, marker := looksBlocked(string(body)); blocked {
			return nil, model.NewScrapeBlocked(blockedReasonFor(marker), model.TagAntiBot)
		}
	}
	return items, nil
}

func parseRSSOrAtom(body []byte) []map[string]any {
	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err == nil && len(feed.Channel.Items) > 0 {
		out := make([]map[string]any, 0, len(feed.Channel.Items))
		for _, it := range feed.Channel.Items {
			out = append(out, map[string]any{
				"title":       it.Title,
				"link":        it.Link,
				"description": it.Description,
				"pubDate":     it.PubDate,
				"guid":        it.GUID,
				"category":    it.Category,
			})
		}
		return out
	}

	var atom atomFeed
	if err := xml.Unmarshal(body, &atom); err == nil && len(atom.Entries) > 0 {
		out := make([]map[string]any, 0, len(atom.Entries))
		for _, e := range atom.Entries {
			out = append(out, map[string]any{
				"title":       e.Title,
				"link":        e.Link.Href,
				"description": e.Summary,
				"pubDate":     e.Published,
				"guid":        e.ID,
			})
		}
		return out
	}

	return nil
}
