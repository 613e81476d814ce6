// Package model defines the shared data structures for the discovery
// pipeline: queue items, sources, companies and the status vocabularies
// that drive their state machines.
package model

import "time"

// ItemType is the task kind a QueueItem carries.
type ItemType string

const (
	ItemJob              ItemType = "JOB"
	ItemCompany          ItemType = "COMPANY"
	ItemSourceDiscovery  ItemType = "SOURCE_DISCOVERY"
	ItemScrapeSource     ItemType = "SCRAPE_SOURCE"
)

// ItemStatus is the lifecycle state of a QueueItem.
type ItemStatus string

const (
	StatusPending     ItemStatus = "PENDING"
	StatusProcessing  ItemStatus = "PROCESSING"
	StatusSuccess     ItemStatus = "SUCCESS"
	StatusFailed      ItemStatus = "FAILED"
	StatusSkipped     ItemStatus = "SKIPPED"
	StatusFiltered    ItemStatus = "FILTERED"
	StatusNeedsReview ItemStatus = "NEEDS_REVIEW"
)

// terminal reports whether a status has no outgoing transitions.
func (s ItemStatus) terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusSkipped, StatusFiltered:
		return true
	}
	return false
}

// queueTransitions lists every allowed (from -> to) pair for QueueItem.Status,
// mirroring a Kanban-style valid-transitions graph.
var queueTransitions = map[ItemStatus][]ItemStatus{
	StatusPending: {StatusProcessing},
	StatusProcessing: {
		StatusSuccess, StatusFailed, StatusSkipped, StatusFiltered,
		StatusNeedsReview, StatusPending, // PENDING only valid when requeuing with a new stage
	},
	StatusNeedsReview: {StatusProcessing, StatusFailed, StatusSuccess},
}

// IsQueueTransitionAllowed reports whether moving from -> to is permitted.
// Note: the PROCESSING -> PENDING transition additionally requires a
// pipeline_stage to be set; callers enforce that separately (see store.QueueStore.UpdateStatus).
func IsQueueTransitionAllowed(from, to ItemStatus) bool {
	allowed, ok := queueTransitions[from]
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

// StatusHistoryEntry is one audit record appended on every status change,
// the same shape a Kanban board's MoveCard history_log append uses for
// history_log.
type StatusHistoryEntry struct {
	From    ItemStatus `json:"from"`
	To      ItemStatus `json:"to"`
	At      time.Time  `json:"at"`
	Message string     `json:"message,omitempty"`
}

// QueueItem is a single unit of work in the durable queue (C8).
type QueueItem struct {
	ID             string
	Type           ItemType
	Status         ItemStatus
	URL            string
	CompanyName    string
	CompanyID      *string
	SourceID       *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ResultMessage  string
	ErrorDetails   string
	PipelineStage  string
	PipelineState  map[string]any
	ScrapedData    map[string]any
	TrackingID     string
	AncestryChain  []string
	SpawnDepth     int
	MaxSpawnDepth  int
	ParentItemID   *string
	StatusHistory  []StatusHistoryEntry
	AttemptCount   int
	LeaseExpiresAt *time.Time
}

// DefaultMaxSpawnDepth is used when a queue item does not specify one.
const DefaultMaxSpawnDepth = 10

// WorkKey identifies equivalent work for the spawn-safety dedup check (§3.d):
// two items with the same (Type, URL, CompanyID) are considered equivalent.
type WorkKey struct {
	Type      ItemType
	URL       string
	CompanyID string // empty string when CompanyID is nil
}

// Key returns the WorkKey this item represents.
func (q *QueueItem) Key() WorkKey {
	companyID := ""
	if q.CompanyID != nil {
		companyID = *q.CompanyID
	}
	return WorkKey{Type: q.Type, URL: q.URL, CompanyID: companyID}
}

// PipelineStage values for the JOB decision-tree (§4.9.1). Stored verbatim
// in QueueItem.PipelineStage; the JOB processor reads PipelineState to
// decide which of these to run next rather than trusting the stored value
// alone (state-driven, not tag-driven).
const (
	StageScrape  = "scrape"
	StageFilter  = "filter"
	StageAnalyze = "analyze"
	StageSave    = "save"
)
