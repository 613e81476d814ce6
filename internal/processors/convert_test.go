package processors

import (
	"testing"

	"github.com/jobmate/discovery-core/internal/model"
)

func TestPostingToMapRoundTrip(t *testing.T) {
	remote := true
	p := model.Posting{
		Title: "Engineer", URL: "https://x.test/1", Company: "Acme",
		Location: "Remote", Description: "desc", PostedDate: "2026-01-01T00:00:00Z",
		Tags: []string{"go", "backend"}, Departments: []string{"eng"},
		Metadata: map[string]string{"k": "v"}, IsRemote: &remote, IsRemoteSource: true,
	}
	m := postingToMap(p)
	got := mapToPosting(m)

	if got.Title != p.Title || got.Company != p.Company || got.Description != p.Description {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" {
		t.Errorf("tags round trip failed: %v", got.Tags)
	}
	if got.IsRemote == nil || !*got.IsRemote {
		t.Errorf("is_remote round trip failed: %v", got.IsRemote)
	}
}

func TestMapToPostingToleratesJSONRoundTripShapes(t *testing.T) {
	// Simulate the exact shapes a real jsonb round trip produces: slices
	// decode as []any, not []string.
	m := map[string]any{
		"title": "Engineer",
		"tags":  []any{"go", "backend"},
		"metadata": map[string]any{
			"source": "greenhouse",
		},
	}
	got := mapToPosting(m)
	if len(got.Tags) != 2 || got.Tags[1] != "backend" {
		t.Fatalf("expected tags decoded from []any, got %v", got.Tags)
	}
	if got.Metadata["source"] != "greenhouse" {
		t.Fatalf("expected metadata decoded from map[string]any, got %v", got.Metadata)
	}
}

func TestIntValTolerantOfFloat64AfterJSONRoundTrip(t *testing.T) {
	if got := intVal(float64(87)); got != 87 {
		t.Errorf("intVal(float64(87)) = %d, want 87", got)
	}
	if got := intVal(42); got != 42 {
		t.Errorf("intVal(42) = %d, want 42", got)
	}
	if got := intVal(nil); got != 0 {
		t.Errorf("intVal(nil) = %d, want 0", got)
	}
}
