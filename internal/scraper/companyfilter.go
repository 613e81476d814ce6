package scraper

import (
	"regexp"
	"strings"

	"github.com/jobmate/discovery-core/internal/model"
)

var legalSuffixes = []string{
	"pty ltd", "holdings", "limited", "group",
	"inc", "llc", "ltd", "co", "corp", "gmbh", "ag", "pty",
}

var domainSuffixRe = regexp.MustCompile(`\.(io|com|ai|app|dev|co|net|org)$`)
var nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9\s]`)

// normalizeCompanyName implements §4.2.6 step 1 / §8 invariant 10: lowercase,
// strip trailing legal + domain suffixes, remove non-alphanumerics, collapse
// whitespace.
func normalizeCompanyName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))

	for {
		trimmed := strings.TrimRight(n, ".,;: ")
		trimmed = strings.TrimSpace(trimmed)
		stripped := false
		for _, suffix := range legalSuffixes {
			if strings.HasSuffix(trimmed, " "+suffix) {
				trimmed = strings.TrimSuffix(trimmed, suffix)
				trimmed = strings.TrimSpace(trimmed)
				stripped = true
				break
			}
			if trimmed == suffix {
				trimmed = ""
				stripped = true
				break
			}
		}
		if trimmed == n {
			n = trimmed
			break
		}
		n = trimmed
		if !stripped {
			break
		}
	}

	n = domainSuffixRe.ReplaceAllString(n, "")
	n = nonAlphanumericRe.ReplaceAllString(n, " ")
	return strings.Join(strings.Fields(n), " ")
}

// NormalizeCompanyName is the exported form used by callers outside this
// package (e.g. the Source Registry's fuzzy company resolution, §4.7).
func NormalizeCompanyName(name string) string {
	return normalizeCompanyName(name)
}

// fuzzyCompanyMatch implements §4.2.6 steps 2-3: exact match after
// normalization, else word-boundary containment in either direction, only
// when the shorter side is >= 3 characters.
func fuzzyCompanyMatch(filter, company string) bool {
	nf := normalizeCompanyName(filter)
	nc := normalizeCompanyName(company)
	if nf == "" || nc == "" {
		return false
	}
	if nf == nc {
		return true
	}

	shorter, longer := nf, nc
	if len(longer) < len(shorter) {
		shorter, longer = longer, shorter
	}
	if len(shorter) < 3 {
		return false
	}
	return wordBoundaryContains(longer, shorter)
}

func wordBoundaryContains(haystack, needle string) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(needle) + `\b`)
	return re.MatchString(haystack)
}

// applyCompanyFilter implements §4.2.6: when company_filter is set, keep
// only postings whose company fuzzy-matches it.
func (s *Scraper) applyCompanyFilter(postings []model.Posting) []model.Posting {
	if s.Config.CompanyFilter == "" {
		return postings
	}
	out := make([]model.Posting, 0, len(postings))
	for _, p := range postings {
		if fuzzyCompanyMatch(s.Config.CompanyFilter, p.Company) {
			out = append(out, p)
		}
	}
	return out
}
