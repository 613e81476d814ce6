package store

import (
	"context"
	"testing"

	"github.com/jobmate/discovery-core/internal/model"
)

func TestSourceStore_AddSourceThenGetByIDRoundTrips(t *testing.T) {
	pool := newFakePool()
	ss := NewSourceStore(pool)

	domain := "boards.acme-careers.example"
	id, err := ss.AddSource(context.Background(), &model.Source{
		Name: "Acme Careers", SourceType: model.SourceAPI, Tags: []string{"remote"},
		Config: map[string]any{"url": "https://acme.example/api"}, AggregatorDomain: &domain,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := ss.GetSourceByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Acme Careers" || got.Status != model.SourceActive {
		t.Errorf("GetSourceByID = %+v, want active source named Acme Careers", got)
	}
}

func TestSourceStore_AddSourceStripsAggregatorDomainWhenCompanyIDSet(t *testing.T) {
	pool := newFakePool()
	ss := NewSourceStore(pool)

	companyID := "company-1"
	domain := "boards.greenhouse.io"
	id, err := ss.AddSource(context.Background(), &model.Source{
		Name: "Acme Greenhouse", SourceType: model.SourceAPI,
		CompanyID: &companyID, AggregatorDomain: &domain,
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := ss.GetSourceByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if got.AggregatorDomain != nil {
		t.Errorf("AggregatorDomain = %v, want nil once company_id is set", *got.AggregatorDomain)
	}
}

func TestSourceStore_GetActiveSourcesFiltersByTypeAndTags(t *testing.T) {
	pool := newFakePool()
	ss := NewSourceStore(pool)

	domainA := "jobs.a.example"
	domainB := "jobs.b.example"
	_, _ = ss.AddSource(context.Background(), &model.Source{Name: "A", SourceType: model.SourceAPI, Tags: []string{"remote"}, AggregatorDomain: &domainA})
	_, _ = ss.AddSource(context.Background(), &model.Source{Name: "B", SourceType: model.SourceHTML, Tags: []string{"onsite"}, AggregatorDomain: &domainB})

	got, err := ss.GetActiveSources(context.Background(), model.SourceAPI, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "A" {
		t.Fatalf("GetActiveSources(API) = %+v, want only source A", got)
	}

	gotTagged, err := ss.GetActiveSources(context.Background(), "", []string{"remote"})
	if err != nil {
		t.Fatal(err)
	}
	if len(gotTagged) != 1 || gotTagged[0].Name != "A" {
		t.Fatalf("GetActiveSources(tags=remote) = %+v, want only source A", gotTagged)
	}
}

func TestSourceStore_DisableSourceWithTagsMergesTagsAndIsIdempotent(t *testing.T) {
	pool := newFakePool()
	ss := NewSourceStore(pool)

	domain := "jobs.acme.example"
	id, _ := ss.AddSource(context.Background(), &model.Source{
		Name: "Acme", SourceType: model.SourceAPI, Tags: []string{"remote"}, AggregatorDomain: &domain,
	})

	if err := ss.DisableSourceWithTags(context.Background(), id, "404 not found", []string{"dead_link"}); err != nil {
		t.Fatal(err)
	}
	got, err := ss.GetSourceByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.SourceDisabled {
		t.Errorf("Status = %v, want DISABLED", got.Status)
	}
	if len(got.Tags) != 2 {
		t.Errorf("Tags = %v, want remote+dead_link merged", got.Tags)
	}

	// disabling again should not error and should not duplicate the tag
	if err := ss.DisableSourceWithTags(context.Background(), id, "still dead", []string{"dead_link"}); err != nil {
		t.Fatal(err)
	}
	got2, err := ss.GetSourceByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got2.Tags) != 2 {
		t.Errorf("Tags after re-disable = %v, want still 2 (deduped)", got2.Tags)
	}
}

func TestSourceStore_UpdateCompanyLinkOnlyFillsNilCompanyID(t *testing.T) {
	pool := newFakePool()
	ss := NewSourceStore(pool)

	domain := "boards.greenhouse.io"
	id, _ := ss.AddSource(context.Background(), &model.Source{
		Name: "Acme", SourceType: model.SourceAPI, AggregatorDomain: &domain,
	})

	if err := ss.UpdateCompanyLink(context.Background(), id, "company-1"); err != nil {
		t.Fatal(err)
	}
	got, _ := ss.GetSourceByID(context.Background(), id)
	if got.CompanyID == nil || *got.CompanyID != "company-1" {
		t.Fatalf("CompanyID = %v, want company-1", got.CompanyID)
	}

	if err := ss.UpdateCompanyLink(context.Background(), id, "company-2"); err != nil {
		t.Fatal(err)
	}
	got2, _ := ss.GetSourceByID(context.Background(), id)
	if *got2.CompanyID != "company-1" {
		t.Errorf("CompanyID = %v, want unchanged company-1 (self-heal must not overwrite)", *got2.CompanyID)
	}
}

func TestSourceStore_ResolveCompanyFromSourceDirectLookup(t *testing.T) {
	pool := newFakePool()
	ss := NewSourceStore(pool)

	companyID := "company-1"
	id, _ := ss.AddSource(context.Background(), &model.Source{Name: "Acme", SourceType: model.SourceAPI, CompanyID: &companyID})

	got, err := ss.ResolveCompanyFromSource(context.Background(), id, "")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != companyID {
		t.Fatalf("ResolveCompanyFromSource = %v, want %q", got, companyID)
	}
}

func TestSourceStore_ResolveCompanyFromSourceFuzzyMatchByName(t *testing.T) {
	pool := newFakePool()
	ss := NewSourceStore(pool)

	companyID := "company-1"
	_, _ = ss.AddSource(context.Background(), &model.Source{Name: "Acme Corporation", SourceType: model.SourceAPI, CompanyID: &companyID})

	got, err := ss.ResolveCompanyFromSource(context.Background(), "", "Acme Corporation")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != companyID {
		t.Fatalf("ResolveCompanyFromSource fuzzy match = %v, want %q", got, companyID)
	}
}

func TestSourceStore_IsJobBoardURLMatchesAggregatorDomain(t *testing.T) {
	pool := newFakePool()
	ss := NewSourceStore(pool)

	domain := "boards.greenhouse.io"
	_, _ = ss.AddSource(context.Background(), &model.Source{Name: "Greenhouse Board", SourceType: model.SourceHTML, AggregatorDomain: &domain})

	isBoard, err := ss.IsJobBoardURL(context.Background(), "https://boards.greenhouse.io/acme/jobs/123")
	if err != nil {
		t.Fatal(err)
	}
	if !isBoard {
		t.Error("expected a URL on a known aggregator domain to be recognized as a job board")
	}

	isBoard, err = ss.IsJobBoardURL(context.Background(), "https://acme.example/careers")
	if err != nil {
		t.Fatal(err)
	}
	if isBoard {
		t.Error("expected a company's own careers page to not be a job board")
	}
}
