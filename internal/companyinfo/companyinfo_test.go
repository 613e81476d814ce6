package companyinfo_test

import (
	"context"
	"testing"

	"github.com/jobmate/discovery-core/internal/companyinfo"
	"github.com/jobmate/discovery-core/internal/llmagent"
)

type fakeSearch struct {
	results []llmagent.SearchResult
	err     error
}

func (f fakeSearch) Search(ctx context.Context, query string) ([]llmagent.SearchResult, error) {
	return f.results, f.err
}

type fakeAgent struct {
	record llmagent.CompanyRecord
}

func (f fakeAgent) ExtractCompany(ctx context.Context, companyName, searchContext string) (llmagent.CompanyRecord, error) {
	return f.record, nil
}

func (f fakeAgent) ScoreJob(ctx context.Context, jobDescription, companyContext string) (int, string, error) {
	return 0, "", nil
}

func (f fakeAgent) ClassifyURL(ctx context.Context, rawURL, companyName, sample string) (string, string, error) {
	return "", "", nil
}

type fakeBoards struct {
	jobBoard bool
}

func (f fakeBoards) IsJobBoardURL(ctx context.Context, url string) (bool, error) {
	return f.jobBoard, nil
}

func TestFetchCompanyInfo_NoCollaboratorsReturnsBareName(t *testing.T) {
	f := companyinfo.New(nil, nil, nil, nil)
	c, err := f.FetchCompanyInfo(context.Background(), "Acme", "", companyinfo.SourceContext{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != "Acme" {
		t.Errorf("Name = %q, want %q", c.Name, "Acme")
	}
	if c.Website != "" {
		t.Errorf("Website = %q, want empty with no collaborators", c.Website)
	}
}

func TestFetchCompanyInfo_SearchAndExtractPopulatesFields(t *testing.T) {
	search := fakeSearch{results: []llmagent.SearchResult{
		{Title: "Acme Corp - company careers", URL: "https://acme.example", Snippet: "Acme is a software company headquartered in Austin."},
		{Title: "About Acme", URL: "https://acme.example/about", Snippet: "Acme employees love working here."},
	}}
	agent := fakeAgent{record: llmagent.CompanyRecord{
		Name:         "Acme Corp",
		Website:      "https://acme.example",
		About:        "Acme builds widgets.",
		Headquarters: "Austin, TX",
	}}
	f := companyinfo.New(agent, search, nil, nil)

	c, err := f.FetchCompanyInfo(context.Background(), "Acme", "", companyinfo.SourceContext{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Website != "https://acme.example" {
		t.Errorf("Website = %q, want %q", c.Website, "https://acme.example")
	}
	if c.About != "Acme builds widgets." {
		t.Errorf("About = %q, want extracted value", c.About)
	}
}

func TestFetchCompanyInfo_RejectsJobBoardURLHint(t *testing.T) {
	f := companyinfo.New(nil, nil, fakeBoards{jobBoard: true}, nil)
	c, err := f.FetchCompanyInfo(context.Background(), "Acme", "https://boards.greenhouse.io/acme", companyinfo.SourceContext{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Website != "" {
		t.Errorf("Website = %q, want empty for a rejected job-board url_hint", c.Website)
	}
}

func TestFetchCompanyInfo_AcceptsNonJobBoardURLHint(t *testing.T) {
	f := companyinfo.New(nil, nil, fakeBoards{jobBoard: false}, nil)
	c, err := f.FetchCompanyInfo(context.Background(), "Acme", "https://acme.example", companyinfo.SourceContext{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Website != "https://acme.example" {
		t.Errorf("Website = %q, want the accepted url_hint", c.Website)
	}
}

func TestFetchCompanyInfo_RejectsSearchEngineURLHint(t *testing.T) {
	f := companyinfo.New(nil, nil, nil, nil)
	c, err := f.FetchCompanyInfo(context.Background(), "Acme", "https://www.google.com/search?q=acme", companyinfo.SourceContext{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Website != "" {
		t.Errorf("Website = %q, want empty for a search engine url_hint", c.Website)
	}
}
