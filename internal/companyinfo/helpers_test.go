package companyinfo

import (
	"testing"

	"github.com/jobmate/discovery-core/internal/llmagent"
)

func TestCompanyFromWorkdayURL_KnownTicker(t *testing.T) {
	got := companyFromWorkdayURL("https://mdlz.wd3.myworkdayjobs.com/careers")
	if got != "Mondelez International" {
		t.Errorf("companyFromWorkdayURL = %q, want %q", got, "Mondelez International")
	}
}

func TestCompanyFromWorkdayURL_UnknownLongSubdomainTitleCased(t *testing.T) {
	got := companyFromWorkdayURL("https://stripeworks.wd1.myworkdayjobs.com/careers")
	if got != "Stripeworks" {
		t.Errorf("companyFromWorkdayURL = %q, want %q", got, "Stripeworks")
	}
}

func TestCompanyFromWorkdayURL_ShortUnknownSubdomainIsIgnored(t *testing.T) {
	got := companyFromWorkdayURL("https://abcd.wd1.myworkdayjobs.com/careers")
	if got != "" {
		t.Errorf("companyFromWorkdayURL = %q, want empty for an unrecognized short ticker", got)
	}
}

func TestCompanyFromWorkdayURL_NonWorkdayURL(t *testing.T) {
	if got := companyFromWorkdayURL("https://acme.example/careers"); got != "" {
		t.Errorf("companyFromWorkdayURL = %q, want empty for a non-Workday URL", got)
	}
}

func TestIsSearchEngineURL(t *testing.T) {
	cases := map[string]bool{
		"https://www.google.com/search?q=acme": true,
		"https://acme.example":                 false,
		"":                                     false,
	}
	for url, want := range cases {
		if got := isSearchEngineURL(url); got != want {
			t.Errorf("isSearchEngineURL(%q) = %v, want %v", url, got, want)
		}
	}
}

func TestBuildSearchQueries_IncludesWorkdaySubdomainFirst(t *testing.T) {
	queries := buildSearchQueries("Acme", SourceContext{BaseURL: "https://mdlz.wd3.myworkdayjobs.com"})
	if len(queries) == 0 {
		t.Fatal("expected at least one query")
	}
	if queries[0] != "mdlz company official website about" {
		t.Errorf("first query = %q, want the workday subdomain query", queries[0])
	}
}

func TestHasQualityResults_RequiresTwoSignals(t *testing.T) {
	results := []llmagent.SearchResult{
		{Title: "Acme company careers", URL: "https://acme.example", Snippet: "Acme is headquartered in Austin."},
	}
	if !hasQualityResults(results, "Acme") {
		t.Error("expected a title/snippet match plus a company-term match to count as quality")
	}
}

func TestHasQualityResults_NoResultsIsLowQuality(t *testing.T) {
	if hasQualityResults(nil, "Acme") {
		t.Error("expected no results to be low quality")
	}
}

func TestHasQualityResults_UnrelatedResultsAreLowQuality(t *testing.T) {
	results := []llmagent.SearchResult{
		{Title: "Completely unrelated page", URL: "https://example.org", Snippet: "Nothing to do with it."},
	}
	if hasQualityResults(results, "Acme") {
		t.Error("expected unrelated results to be low quality")
	}
}
