package processors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/prefilter"
	"github.com/jobmate/discovery-core/internal/scoring"
	"github.com/jobmate/discovery-core/internal/strike"
)

func baseJobDeps() (Dependencies, *fakeQueue, *fakeCompanies, *fakeMatches) {
	queue := newFakeQueue()
	companies := newFakeCompanies()
	matches := &fakeMatches{}
	deps := Dependencies{
		Queue:     queue,
		Sources:   newFakeSources(),
		Companies: companies,
		Matches:   matches,
		Policies: Policies{
			Prefilter:     prefilter.Policy{},
			Strike:        strike.Policy{},
			Scoring:       scoring.Policy{},
			MinMatchScore: 0,
		},
	}
	return deps, queue, companies, matches
}

func TestJobProcessorDispatchesOnPipelineStateKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Staff Engineer</h1><p>Build things.</p></body></html>`))
	}))
	defer srv.Close()

	deps, queue, _, _ := baseJobDeps()
	p := &JobProcessor{deps: deps}

	item := &model.QueueItem{
		Type: model.ItemJob, Status: model.StatusProcessing, URL: srv.URL + "/jobs/1",
	}
	queue.put(item)

	// No job_data yet -> scrape stage runs and requeues to filter.
	if err := p.Process(context.Background(), item); err != nil {
		t.Fatalf("scrape stage: unexpected error: %v", err)
	}
	stored, _ := queue.GetByID(context.Background(), item.ID)
	if stored.Status != model.StatusPending || stored.PipelineStage != model.StageFilter {
		t.Fatalf("expected requeue to filter stage, got status=%s stage=%s", stored.Status, stored.PipelineStage)
	}
	if _, ok := stored.PipelineState["job_data"]; !ok {
		t.Fatal("expected job_data to be populated after scrape stage")
	}
}

func TestJobProcessorFilterRejectsStalePosting(t *testing.T) {
	deps, queue, _, _ := baseJobDeps()
	deps.Policies.Prefilter = prefilter.Policy{MaxAgeDays: 1}
	p := &JobProcessor{deps: deps}

	item := &model.QueueItem{
		Type: model.ItemJob, Status: model.StatusProcessing, URL: "https://example.com/jobs/1",
		PipelineState: map[string]any{
			"job_data": map[string]any{
				"title": "Engineer", "url": "https://example.com/jobs/1",
				"description": "A long enough description to pass basic checks.",
				"posted_date": "2000-01-01T00:00:00Z",
			},
		},
	}
	queue.put(item)

	if err := p.Process(context.Background(), item); err != nil {
		t.Fatalf("filter stage: unexpected error: %v", err)
	}
	stored, _ := queue.GetByID(context.Background(), item.ID)
	if stored.Status != model.StatusFiltered {
		t.Fatalf("expected FILTERED for stale posting, got %s", stored.Status)
	}
}

func TestJobProcessorFullPipelineReachesSave(t *testing.T) {
	deps, queue, companies, matches := baseJobDeps()
	p := &JobProcessor{deps: deps}

	item := &model.QueueItem{
		Type: model.ItemJob, Status: model.StatusProcessing, URL: "https://example.com/jobs/1",
		PipelineState: map[string]any{
			"job_data": map[string]any{
				"title":       "Staff Engineer",
				"url":         "https://example.com/jobs/1",
				"company":     "Acme",
				"description": "Backend role building distributed systems.",
			},
			"filter_result": map[string]any{"prefilter_passed": true, "strike_passed": true},
		},
	}
	queue.put(item)

	// analyze stage
	if err := p.Process(context.Background(), item); err != nil {
		t.Fatalf("analyze stage: unexpected error: %v", err)
	}
	stored, _ := queue.GetByID(context.Background(), item.ID)
	if stored.Status != model.StatusPending || stored.PipelineStage != model.StageSave {
		t.Fatalf("expected requeue to save stage, got status=%s stage=%s", stored.Status, stored.PipelineStage)
	}
	if _, ok := companies.byName["Acme"]; !ok {
		t.Fatal("expected analyze stage to resolve/persist the company record")
	}

	// save stage — must re-lease (simulate worker re-lease to PROCESSING).
	stored.Status = model.StatusProcessing
	queue.items[item.ID] = stored
	if err := p.Process(context.Background(), stored); err != nil {
		t.Fatalf("save stage: unexpected error: %v", err)
	}
	final, _ := queue.GetByID(context.Background(), item.ID)
	if final.Status != model.StatusSuccess {
		t.Fatalf("expected SUCCESS after save stage, got %s", final.Status)
	}
	if len(matches.saved) != 1 {
		t.Fatalf("expected one match saved, got %d", len(matches.saved))
	}
	if matches.saved[0].Title != "Staff Engineer" {
		t.Errorf("unexpected match title: %q", matches.saved[0].Title)
	}
}
