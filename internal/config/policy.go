package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/prefilter"
	"github.com/jobmate/discovery-core/internal/scoring"
	"github.com/jobmate/discovery-core/internal/strike"
)

// PolicyBundle holds the three strongly-typed Policy structs each engine
// (C3/C4/C5) consumes, parsed from two YAML documents: prefilter-policy.yaml
// and match-policy.yaml. scraping-settings.yaml is not read.
// match-policy.yaml is read twice: strike.Policy and scoring.Policy overlap
// on several fields (arrangement/remote/timezone inputs) by design, each
// engine just keeps the subset it needs.
type PolicyBundle struct {
	Prefilter prefilter.Policy
	Strike    strike.Policy
	Scoring   scoring.Policy
}

// LoadPolicyBundle reads prefilter-policy.yaml and match-policy.yaml from
// dir and unmarshals them into a PolicyBundle. A missing file is a fail-fast
// initialization error, not a zero-value default — the pipeline should never
// run silently unconfigured (§10).
func LoadPolicyBundle(dir string) (*PolicyBundle, error) {
	var b PolicyBundle

	if err := loadYAML(filepath.Join(dir, "prefilter-policy.yaml"), &b.Prefilter); err != nil {
		return nil, err
	}
	if err := loadYAML(filepath.Join(dir, "match-policy.yaml"), &b.Strike); err != nil {
		return nil, err
	}
	if err := loadYAML(filepath.Join(dir, "match-policy.yaml"), &b.Scoring); err != nil {
		return nil, err
	}

	return &b, nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &model.ErrInitialization{Msg: fmt.Sprintf("reading policy file %s: %v", path, err)}
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return &model.ErrInitialization{Msg: fmt.Sprintf("parsing policy file %s: %v", path, err)}
	}
	return nil
}
