package processors

import (
	"context"

	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/sourceanalysis"
	"github.com/jobmate/discovery-core/internal/sourceconfig"
)

// expandSourceConfig turns a Source's stored config into a full
// sourceconfig.Config, filling platform-specific field defaults when the
// registered config was saved with an empty field map — SCRAPE_SOURCE's
// step 3 ("expand a minimalist registered config into a full Source-config,
// platform-specific defaults for fields / response_path", §4.9.4). It
// re-runs Source Analysis (C6)'s deterministic platform registry against
// the config's own URL rather than duplicating that registry here.
func expandSourceConfig(ctx context.Context, src model.Source) sourceconfig.Config {
	cfg := sourceconfig.FromDict(src.Config)
	if cfg.Type == "" {
		cfg.Type = src.SourceType
	}
	if cfg.Fields.Title != "" || cfg.Fields.URL != "" || cfg.Fields.Description != "" {
		return cfg
	}

	result, err := sourceanalysis.Classify(ctx, cfg.URL, src.Name, nil, nil, "")
	if err != nil || result.SourceConfig == nil {
		return cfg
	}
	cfg.Fields = result.SourceConfig.Fields
	if cfg.ResponsePath == "" {
		cfg.ResponsePath = result.SourceConfig.ResponsePath
	}
	if cfg.JobSelector == "" {
		cfg.JobSelector = result.SourceConfig.JobSelector
	}
	return cfg
}
