package processors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/jobmate/discovery-core/internal/intake"
	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/prefilter"
	"github.com/jobmate/discovery-core/internal/sourceconfig"
)

func cfgDict(cfg sourceconfig.Config) map[string]any {
	return cfg.ToDict()
}

func newScrapeSourceDeps() (Dependencies, *fakeQueue, *fakeSources) {
	queue := newFakeQueue()
	sources := newFakeSources()
	deps := Dependencies{
		Queue:   queue,
		Sources: sources,
		Log:     logrus.NewEntry(logrus.StandardLogger()),
	}
	return deps, queue, sources
}

func TestScrapeSourceSubmitsJobsAndRecordsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"title":"Staff Engineer","url":"https://acme.com/jobs/1","location":"Remote","description":"Build things.","posted_date":"2026-07-01T00:00:00Z"}]`))
	}))
	defer srv.Close()

	deps, queue, sources := newScrapeSourceDeps()
	deps.Intake = intake.New(queue, prefilter.Policy{}, nil)

	src := &model.Source{
		Name: "Acme Jobs", SourceType: model.SourceAPI, Status: model.SourceActive,
		Config: cfgDict(sourceconfig.Config{
			Type: model.SourceAPI, URL: srv.URL,
			Fields: sourceconfig.FieldMap{
				Title: "title", URL: "url", Location: "location",
				Description: "description", PostedDate: "posted_date",
			},
		}),
	}
	sources.add(src)

	p := &ScrapeSourceProcessor{deps: deps}
	item := &model.QueueItem{
		Type: model.ItemScrapeSource, Status: model.StatusProcessing,
		ScrapedData: map[string]any{"source_id": src.ID},
	}
	item.ID = queue.put(item)

	if err := p.Process(context.Background(), item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := queue.GetByID(context.Background(), item.ID)
	if got.Status != model.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s (%s)", got.Status, got.ErrorDetails)
	}
	if found, _ := got.ScrapedData["jobs_found"].(int); found != 1 {
		t.Errorf("expected jobs_found=1, got %v", got.ScrapedData["jobs_found"])
	}
	if sources.byID[src.ID].Status != model.SourceActive {
		t.Errorf("expected source to remain active after a clean scrape, got %s", sources.byID[src.ID].Status)
	}
}

func TestScrapeSourceZeroJobsIsStillSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	deps, queue, sources := newScrapeSourceDeps()

	src := &model.Source{
		Name: "Acme Jobs", SourceType: model.SourceAPI, Status: model.SourceActive,
		Config: cfgDict(sourceconfig.Config{
			Type: model.SourceAPI, URL: srv.URL,
			Fields: sourceconfig.FieldMap{Title: "title", URL: "url"},
		}),
	}
	sources.add(src)

	p := &ScrapeSourceProcessor{deps: deps}
	item := &model.QueueItem{
		Type: model.ItemScrapeSource, Status: model.StatusProcessing,
		ScrapedData: map[string]any{"source_id": src.ID},
	}
	item.ID = queue.put(item)

	if err := p.Process(context.Background(), item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := queue.GetByID(context.Background(), item.ID)
	if got.Status != model.StatusSuccess {
		t.Fatalf("expected zero jobs found to still be SUCCESS, got %s", got.Status)
	}
}

func TestScrapeSourceShortCircuitsWhenDisabled(t *testing.T) {
	deps, queue, sources := newScrapeSourceDeps()
	src := &model.Source{Name: "Acme Jobs", SourceType: model.SourceAPI, Status: model.SourceDisabled}
	sources.add(src)

	p := &ScrapeSourceProcessor{deps: deps}
	item := &model.QueueItem{
		Type: model.ItemScrapeSource, Status: model.StatusProcessing,
		ScrapedData: map[string]any{"source_id": src.ID},
	}
	item.ID = queue.put(item)

	if err := p.Process(context.Background(), item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := queue.GetByID(context.Background(), item.ID)
	if got.Status != model.StatusFailed {
		t.Fatalf("expected disabled source to short-circuit to FAILED, got %s", got.Status)
	}
}

func TestScrapeSourceFailsWhenSourceNotFound(t *testing.T) {
	deps, queue, _ := newScrapeSourceDeps()
	p := &ScrapeSourceProcessor{deps: deps}
	item := &model.QueueItem{
		Type: model.ItemScrapeSource, Status: model.StatusProcessing,
		ScrapedData: map[string]any{"source_id": "does-not-exist"},
	}
	item.ID = queue.put(item)

	if err := p.Process(context.Background(), item); err == nil {
		t.Fatal("expected error for missing source")
	}
	got, _ := queue.GetByID(context.Background(), item.ID)
	if got.Status != model.StatusFailed {
		t.Errorf("expected FAILED, got %s", got.Status)
	}
}

func TestScrapeSourceHealsCompanyLinkFromItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	deps, queue, sources := newScrapeSourceDeps()
	src := &model.Source{
		Name: "Acme Jobs", SourceType: model.SourceAPI, Status: model.SourceActive,
		Config: cfgDict(sourceconfig.Config{
			Type: model.SourceAPI, URL: srv.URL,
			Fields: sourceconfig.FieldMap{Title: "title", URL: "url"},
		}),
	}
	sources.add(src)

	companyID := "company-9"
	p := &ScrapeSourceProcessor{deps: deps}
	item := &model.QueueItem{
		Type: model.ItemScrapeSource, Status: model.StatusProcessing, CompanyID: &companyID,
		ScrapedData: map[string]any{"source_id": src.ID},
	}
	item.ID = queue.put(item)

	if err := p.Process(context.Background(), item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sources.byID[src.ID].CompanyID == nil || *sources.byID[src.ID].CompanyID != companyID {
		t.Fatal("expected the source's company link to be self-healed from the item's company_id")
	}
}
