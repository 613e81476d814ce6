package processors

import (
	"context"
	"testing"

	"github.com/jobmate/discovery-core/internal/model"
)

func TestExpandSourceConfigFillsPlatformDefaultsFromClassify(t *testing.T) {
	src := model.Source{
		Name:       "Acme Jobs",
		SourceType: model.SourceAPI,
		Config: map[string]any{
			"url": "https://boards-api.greenhouse.io/v1/boards/acme/jobs",
		},
	}
	cfg := expandSourceConfig(context.Background(), src)
	if cfg.Fields.Title == "" {
		t.Fatalf("expected Classify to fill in greenhouse field defaults, got empty Fields: %+v", cfg.Fields)
	}
}

func TestExpandSourceConfigPreservesExplicitFields(t *testing.T) {
	src := model.Source{
		Name:       "Custom Board",
		SourceType: model.SourceHTML,
		Config: map[string]any{
			"url":    "https://example.com/jobs",
			"fields": map[string]any{"title": "h2.title"},
		},
	}
	cfg := expandSourceConfig(context.Background(), src)
	if cfg.Fields.Title != "h2.title" {
		t.Fatalf("expected explicit field map to survive expansion unchanged, got %q", cfg.Fields.Title)
	}
}
