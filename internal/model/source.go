package model

import (
	"fmt"
	"time"
)

// SourceType is the transport a Source uses.
type SourceType string

const (
	SourceAPI  SourceType = "api"
	SourceRSS  SourceType = "rss"
	SourceHTML SourceType = "html"
)

// SourceStatus is the lifecycle state of a Source (C7).
type SourceStatus string

const (
	SourceActive   SourceStatus = "ACTIVE"
	SourceDisabled SourceStatus = "DISABLED"
	SourceFailed   SourceStatus = "FAILED"
	SourceDeleted  SourceStatus = "DELETED"
)

// sourceTransitions lists every allowed (from -> to) pair for Source.Status (§3).
var sourceTransitions = map[SourceStatus][]SourceStatus{
	SourceActive:   {SourceDisabled, SourceFailed},
	SourceDisabled: {SourceActive},
	SourceFailed:   {SourceActive},
}

// ErrInvalidStateTransition is returned when a Source or QueueItem status
// change is not in the allowed transition set (§7).
type ErrInvalidStateTransition struct {
	Entity string
	From   string
	To     string
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid %s state transition: %s -> %s", e.Entity, e.From, e.To)
}

// IsSourceTransitionAllowed reports whether moving from -> to is permitted.
func IsSourceTransitionAllowed(from, to SourceStatus) bool {
	allowed, ok := sourceTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Canonical non-recoverable disable tags (§4.7 get_disabled_sources).
const (
	TagAntiBot       = "anti_bot"
	TagAuthRequired  = "auth_required"
	TagProtectedAPI  = "protected_api"
	TagDNSError      = "dns_error"
)

// Source is a declarative endpoint to scrape (C7). Config is stored as a
// raw dict rather than a concrete sourceconfig.Config to avoid an import
// cycle (sourceconfig already imports model for SourceType/ErrInvalidConfig);
// the store package converts at the persistence boundary via
// sourceconfig.FromDict/ToDict.
type Source struct {
	ID               string
	Name             string
	SourceType       SourceType
	Status           SourceStatus
	Config           map[string]any
	Tags             []string
	CompanyID        *string
	AggregatorDomain *string
	LastScrapedAt    *time.Time
	LastError        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate enforces the company-OR-aggregator invariant (§3).
func (s *Source) Validate() error {
	hasCompany := s.CompanyID != nil && *s.CompanyID != ""
	hasAggregator := s.AggregatorDomain != nil && *s.AggregatorDomain != ""
	if hasCompany == hasAggregator {
		return fmt.Errorf("source %q must set exactly one of company_id or aggregator_domain", s.Name)
	}
	return nil
}

// Company is an enriched record keyed by name (§3).
type Company struct {
	ID             string
	Name           string
	Website        string
	About          string
	Culture        string
	Mission        string
	Headquarters   string
	EmployeeCount  *int
	TechStack      []string
	IsRemoteFirst  bool
	Industry       string
	Tier           string // S,A,B,C,D or empty
	PriorityScore  *float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DataQuality buckets a Company record by enrichment completeness (§4.9.2).
type DataQuality string

const (
	DataComplete DataQuality = "complete"
	DataPartial  DataQuality = "partial"
	DataMinimal  DataQuality = "minimal"
)

// Quality classifies this company's enrichment level using the same
// length-based heuristic the COMPANY processor applies before persist.
func (c *Company) Quality() DataQuality {
	switch {
	case len(c.About) >= 100 && len(c.Culture) >= 50:
		return DataComplete
	case len(c.About) >= 50 || len(c.Culture) >= 25:
		return DataPartial
	default:
		return DataMinimal
	}
}

// Match is a persisted scored JOB outcome (§8 S1).
type Match struct {
	ID          string
	QueueItemID string
	CompanyID   *string
	URL         string
	Title       string
	MatchScore  int
	Breakdown   map[string]any
	CreatedAt   time.Time
}
