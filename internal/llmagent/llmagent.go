// Package llmagent defines the narrow AI-assisted collaborator interfaces
// the JOB and COMPANY processors use (§4.9.1, §4.9.2), plus a Claude-backed
// implementation and a deterministic fallback stub.
package llmagent

import "context"

// CompanyRecord is the structured extraction produced for a company (§4.9.2).
type CompanyRecord struct {
	Name          string
	Website       string
	About         string
	Culture       string
	Mission       string
	Headquarters  string
	EmployeeCount *int
	TechStack     []string
	IsRemoteFirst bool
	Industry      string
}

// SearchResult is one ranked hit from a SearchClient query (§4.9.2).
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// Agent is the narrow LLM-assisted extraction interface; both the JOB
// processor's scoring extraction and the COMPANY processor's record
// extraction are modeled as structured completions against a prompt.
type Agent interface {
	// ExtractCompany asks the model to turn search/fetch context into a
	// CompanyRecord.
	ExtractCompany(ctx context.Context, companyName string, context string) (CompanyRecord, error)

	// ScoreJob asks the model to evaluate a job posting's fit, returning a
	// 0-100 match score and reasoning, used by the JOB processor's ANALYZE
	// stage as an alternative to (or refinement of) the deterministic
	// Scoring Engine (C5).
	ScoreJob(ctx context.Context, jobDescription string, companyContext string) (score int, reasoning string, err error)

	// ClassifyURL asks the model to classify a URL Source Analysis (C6)
	// couldn't resolve through its deterministic pattern cascade, given a
	// short HTML/text sample fetched from it. Used only as the cascade's
	// last resort (§4.6's "if unresolved, optionally ask an LLM").
	ClassifyURL(ctx context.Context, rawURL, companyName, sample string) (classification string, reasoning string, err error)
}

// SearchClient is the narrow external-search collaborator used to gather
// company signals before an LLM extraction pass (§4.9.2 step 2).
type SearchClient interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}
