package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/sourceconfig"
)

var sanitizePolicy = bluemonday.StrictPolicy()

// collapseWhitespace strips HTML (via bluemonday) and collapses runs of
// whitespace, the sanitize step applied to title/company/description
// (§4.2.2).
func collapseWhitespace(s string) string {
	s = sanitizePolicy.Sanitize(s)
	return strings.Join(strings.Fields(s), " ")
}

var headquartersRe = regexp.MustCompile(`(?i)Headquarters:\s*([^\n<]+)`)
var aggregatorURLRe = regexp.MustCompile(`(?i)URL:</strong>\s*<a href="([^"]+)"`)
var vendorRoleRe = regexp.MustCompile(`^\s*([^:]+?)\s*:\s*(.+)$`)

// extractPosting applies the field map to one raw item and runs all
// post-processing (§4.2.2).
func (s *Scraper) extractPosting(item map[string]any) model.Posting {
	get := func(path string) string {
		if path == "" {
			return ""
		}
		if html, ok := item["__html"].(string); ok {
			return extractHTMLField(html, path)
		}
		v, ok := sourceconfig.Navigate(item, path)
		if !ok {
			return ""
		}
		if str, ok := v.(string); ok {
			return str
		}
		return fmt.Sprintf("%v", v)
	}

	f := s.Config.Fields
	p := model.Posting{
		Title:       collapseWhitespace(get(orDefault(f.Title, "title"))),
		URL:         get(orDefault(f.URL, "link")),
		Company:     collapseWhitespace(get(orDefault(f.Company, "company"))),
		Location:    get(orDefault(f.Location, "location")),
		Description: collapseWhitespace(get(orDefault(f.Description, "description"))),
		PostedDate:  get(orDefault(f.PostedDate, "pubDate")),
		Salary:      get(orDefault(f.Salary, "salary")),
		Metadata:    map[string]string{},
	}

	p.PostedDate = normalizePostedDate(p.PostedDate)

	if raw, ok := sourceconfig.Navigate(item, "departments"); ok {
		p.Departments = namesFromObjectList(raw)
	}
	if raw, ok := sourceconfig.Navigate(item, "offices"); ok {
		p.Offices = namesFromObjectList(raw)
	}
	if raw, ok := sourceconfig.Navigate(item, orDefault(f.Metadata, "metadata")); ok {
		p.Metadata = metadataFromList(raw)
	}
	if raw, ok := sourceconfig.Navigate(item, orDefault(f.Tags, "tags")); ok {
		p.Tags = tagsFromAny(raw)
	}

	if p.Salary == "" && s.Config.SalaryMinField != "" && s.Config.SalaryMaxField != "" {
		p.Salary = formatSalaryRange(item, s.Config.SalaryMinField, s.Config.SalaryMaxField)
	}

	if s.Config.CompanyName != "" {
		p.Company = s.Config.CompanyName
	}

	if s.Config.BaseURL != "" && p.URL != "" && !strings.HasPrefix(p.URL, "http") {
		p.URL = joinURL(s.Config.BaseURL, p.URL)
	}

	if s.Config.CompanyExtraction == sourceconfig.ExtractFromTitle && p.Company == "" {
		if m := vendorRoleRe.FindStringSubmatch(p.Title); m != nil {
			p.Company = strings.TrimSpace(m[1])
			p.Title = strings.TrimSpace(m[2])
		}
	}
	if s.Config.CompanyExtraction == sourceconfig.ExtractFromTitle || s.Config.CompanyExtraction == sourceconfig.ExtractFromDescription {
		if m := aggregatorURLRe.FindStringSubmatch(p.Description); m != nil {
			p.CompanyWebsite = m[1]
		}
		if m := headquartersRe.FindStringSubmatch(p.Description); m != nil {
			p.Location = strings.TrimSpace(m[1])
		}
	}

	return p
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func namesFromObjectList(raw any) []string {
	arr, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, el := range arr {
		if obj, ok := el.(map[string]any); ok {
			if name, ok := obj["name"].(string); ok {
				out = append(out, name)
			}
		} else if s, ok := el.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func metadataFromList(raw any) map[string]string {
	out := map[string]string{}
	arr, ok := raw.([]any)
	if !ok {
		return out
	}
	for _, el := range arr {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		name, _ := obj["name"].(string)
		value, _ := obj["value"].(string)
		if name != "" {
			out[name] = value
		}
	}
	return out
}

func tagsFromAny(raw any) []string {
	arr, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, el := range arr {
		switch v := el.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			for _, key := range []string{"name", "tag", "label", "value"} {
				if s, ok := v[key].(string); ok && s != "" {
					out = append(out, s)
					break
				}
			}
		}
	}
	return out
}

func formatSalaryRange(item map[string]any, minField, maxField string) string {
	minV, okMin := sourceconfig.Navigate(item, minField)
	maxV, okMax := sourceconfig.Navigate(item, maxField)
	if !okMin || !okMax {
		return ""
	}
	minN, okMinN := toFloat(minV)
	maxN, okMaxN := toFloat(maxV)
	if !okMinN || !okMaxN {
		return ""
	}
	return fmt.Sprintf("$%s - $%s", formatThousands(minN), formatThousands(maxN))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func formatThousands(n float64) string {
	s := strconv.FormatFloat(n, 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var out []byte
	for i, d := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, d)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

func joinURL(base, rel string) string {
	b := strings.TrimSuffix(base, "/")
	r := strings.TrimPrefix(rel, "/")
	return b + "/" + r
}

// normalizePostedDate converts unix-seconds/millis or a best-effort parse
// into ISO-8601; unparseable input is returned verbatim (§4.2.2, §8 inv 13).
func normalizePostedDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if isAllDigits(raw) {
		switch {
		case len(raw) <= 10:
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return time.Unix(n, 0).UTC().Format(time.RFC3339)
			}
		case len(raw) >= 11:
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return time.UnixMilli(n).UTC().Format(time.RFC3339)
			}
		}
	}

	layouts := []string{
		time.RFC3339,
		time.RFC1123Z,
		time.RFC1123,
		"2006-01-02T15:04:05Z",
		"2006-01-02",
		"Mon, 02 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 -0700",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return raw
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// needsEnrichment reports whether a posting should be passed through
// detail-page enrichment (§4.2.5).
func (s *Scraper) needsEnrichment(p model.Posting) bool {
	return s.Config.FollowDetail || p.Description == "" || p.PostedDate == ""
}
