package llmagent

import (
	"context"
	"fmt"
	"strings"
)

// FallbackAgent is a deterministic, network-free stand-in for Agent, chosen
// at startup when no Anthropic API key is configured or a ClaudeAgent cannot
// be constructed; a ClaudeAgent call that fails later is not switched over
// to it. It never rejects a job outright — Agent Review is
// a refinement pass on top of the deterministic Scoring Engine (C5), not a
// gate, so a disabled or failing agent should degrade to "no opinion"
// rather than block the pipeline.
type FallbackAgent struct{}

// NewFallbackAgent returns a FallbackAgent.
func NewFallbackAgent() *FallbackAgent {
	return &FallbackAgent{}
}

func (FallbackAgent) ExtractCompany(ctx context.Context, companyName, searchContext string) (CompanyRecord, error) {
	return CompanyRecord{
		Name:    companyName,
		Website: firstURLIn(searchContext),
	}, nil
}

// ScoreJob returns the neutral midpoint score with a reasoning string that
// names this as an unscored fallback, so a caller recording Agent Review
// output can distinguish "reviewed, neutral" from "not reviewed".
func (FallbackAgent) ScoreJob(ctx context.Context, jobDescription, companyContext string) (int, string, error) {
	return 50, "agent review unavailable; deterministic scoring only", nil
}

// ClassifyURL has no heuristic it can safely apply without a model, so it
// declines rather than guessing a classification that would feed straight
// into should_disable decisions.
func (FallbackAgent) ClassifyURL(ctx context.Context, rawURL, companyName, sample string) (string, string, error) {
	return "", "", fmt.Errorf("llmagent: no model configured for URL classification")
}

// firstURLIn does a best-effort scrape of a plausible http(s) URL out of
// unstructured search context, since the fallback agent has no model to ask.
func firstURLIn(text string) string {
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ".,;()[]\"'")
		if strings.HasPrefix(word, "http://") || strings.HasPrefix(word, "https://") {
			return word
		}
	}
	return ""
}

// ErrNoAPIKey is returned by NewClaudeAgent when no Anthropic key is given,
// so callers can choose to log and fall back rather than fail startup.
var ErrNoAPIKey = fmt.Errorf("llmagent: no ANTHROPIC_API_KEY configured")
