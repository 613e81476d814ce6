package model

// Posting is a normalized job posting emitted by the generic scraper (C2)
// with the canonical keys of §4.2.2.
type Posting struct {
	Title          string
	URL            string
	Company        string
	Location       string
	Description    string
	PostedDate     string // ISO-8601 on success, or best-effort verbatim
	Salary         string
	Tags           []string
	Metadata       map[string]string
	Departments    []string
	Offices        []string
	CompanyWebsite string

	// IsRemoteSource is true when the posting came from a source whose
	// config marks it wholly remote (e.g. a remote-only aggregator),
	// consumed by the pre-filter's work-arrangement check (§4.3.3).
	IsRemoteSource bool
	IsRemote       *bool
}
