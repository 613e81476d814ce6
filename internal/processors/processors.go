// Package processors implements C9: the four task processors (JOB, COMPANY,
// SOURCE_DISCOVERY, SCRAPE_SOURCE) and the dispatcher that routes a leased
// QueueItem to the one that owns its type.
package processors

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jobmate/discovery-core/internal/companyinfo"
	"github.com/jobmate/discovery-core/internal/intake"
	"github.com/jobmate/discovery-core/internal/llmagent"
	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/prefilter"
	"github.com/jobmate/discovery-core/internal/render"
	"github.com/jobmate/discovery-core/internal/scoring"
	"github.com/jobmate/discovery-core/internal/sourceanalysis"
	"github.com/jobmate/discovery-core/internal/store"
	"github.com/jobmate/discovery-core/internal/strike"
	"github.com/jobmate/discovery-core/internal/telemetry"
)

// QueueStore is the narrow slice of the Queue Manager (C8) a processor uses
// to move its own item along; every processor depends on it.
type QueueStore interface {
	GetByID(ctx context.Context, id string) (*model.QueueItem, error)
	UpdateStatus(ctx context.Context, id string, newStatus model.ItemStatus, params store.UpdateStatusParams) error
	RequeueWithState(ctx context.Context, id string, newState map[string]any, nextStage string) error
	SpawnItemSafely(ctx context.Context, parent, child *model.QueueItem) (string, error)
	URLExistsInQueue(ctx context.Context, url string) (bool, error)
	AddItem(ctx context.Context, item *model.QueueItem) (string, error)
}

// SourceRegistry is the slice of the Source Registry (C7) the processors
// depend on. *store.SourceStore satisfies this without modification.
type SourceRegistry interface {
	GetSourceForURL(ctx context.Context, url string) (*model.Source, error)
	GetSourceByID(ctx context.Context, id string) (*model.Source, error)
	GetSourceByCompanyAndAggregator(ctx context.Context, companyID, aggregatorDomain string) (*model.Source, error)
	AddSource(ctx context.Context, src *model.Source) (string, error)
	IsJobBoardURL(ctx context.Context, url string) (bool, error)
	UpdateScrapeStatus(ctx context.Context, id string, newStatus model.SourceStatus, scrapeErr string) error
	UpdateCompanyLink(ctx context.Context, id, companyID string) error
	DisableSourceWithTags(ctx context.Context, id, reason string, tags []string) error
}

// CompanyRegistry is the slice of the Company Store the processors depend
// on. *store.CompanyStore satisfies this without modification.
type CompanyRegistry interface {
	GetCompanyByName(ctx context.Context, name string) (*model.Company, error)
	GetCompanyByID(ctx context.Context, id string) (*model.Company, error)
	UpsertCompany(ctx context.Context, c *model.Company) (string, error)
}

// MatchSaver is the slice of the Match Store the JOB processor's save stage
// depends on. *store.MatchStore satisfies this without modification.
type MatchSaver interface {
	SaveMatch(ctx context.Context, m *model.Match) (string, error)
}

// Policies bundles the three YAML-driven policies the pipeline evaluates a
// posting against, parsed from §6's two documents (prefilter-policy /
// match-policy).
type Policies struct {
	Prefilter prefilter.Policy
	Strike    strike.Policy
	Scoring   scoring.Policy
	MinMatchScore int
}

// Dependencies wires every C1-C11 collaborator a processor needs. Fields
// left nil degrade gracefully wherever the collaborator is optional
// (companyinfo.Fetcher and llmagent.Agent already tolerate nil internals).
type Dependencies struct {
	Queue     QueueStore
	Sources   SourceRegistry
	Companies CompanyRegistry
	Matches   MatchSaver
	Company   *companyinfo.Fetcher
	Agent     llmagent.Agent
	Intake    *intake.Intake
	Renderer  render.Renderer
	Prober    sourceanalysis.Prober
	Policies  Policies
	Log       *logrus.Entry
}

// Dispatcher routes a leased QueueItem to the processor that owns its type
// (§4.9: "one dispatcher routes by type; each processor owns exactly one
// task kind").
type Dispatcher struct {
	deps Dependencies
	job  *JobProcessor
	comp *CompanyProcessor
	disc *SourceDiscoveryProcessor
	scr  *ScrapeSourceProcessor
	rev  *ReviewProcessor
}

// NewDispatcher builds a Dispatcher and its processors from a shared
// Dependencies set.
func NewDispatcher(deps Dependencies) *Dispatcher {
	if deps.Log == nil {
		deps.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{
		deps: deps,
		job:  &JobProcessor{deps: deps},
		comp: &CompanyProcessor{deps: deps},
		disc: &SourceDiscoveryProcessor{deps: deps},
		scr:  &ScrapeSourceProcessor{deps: deps},
		rev:  &ReviewProcessor{deps: deps},
	}
}

// Process runs exactly one pipeline step for item, per §5's "each worker
// runs one item to completion (one pipeline stage for JOB) before taking
// another".
func (d *Dispatcher) Process(ctx context.Context, item *model.QueueItem) error {
	log := stageLog(d.deps.Log, item, "dispatch")

	return telemetry.Record(log, item.ID, "dispatch", func() error {
		switch item.Type {
		case model.ItemJob:
			return d.job.Process(ctx, item)
		case model.ItemCompany:
			return d.comp.Process(ctx, item)
		case model.ItemSourceDiscovery:
			return d.disc.Process(ctx, item)
		case model.ItemScrapeSource:
			return d.scr.Process(ctx, item)
		default:
			return fmt.Errorf("processors: unknown item type %q", item.Type)
		}
	})
}

// ProcessReview runs the ReviewProcessor's single revisit pass for an item
// leased via QueueStore.LeaseNextForReview (§4.9.3). Kept separate from
// Process because only a dedicated review lease loop ever produces a
// NEEDS_REVIEW-origin item; ordinary PENDING leases never reach it.
func (d *Dispatcher) ProcessReview(ctx context.Context, item *model.QueueItem) error {
	log := stageLog(d.deps.Log, item, "dispatch-review")
	return telemetry.Record(log, item.ID, "dispatch-review", func() error {
		return d.rev.Process(ctx, item)
	})
}

// stageLog builds the structured per-stage log entry §4.9.1 requires:
// {doc_id, stage, status, duration_ms}. Callers add "status"/"duration_ms"
// once the stage concludes.
func stageLog(base *logrus.Entry, item *model.QueueItem, stage string) *logrus.Entry {
	return base.WithFields(logrus.Fields{"doc_id": item.ID, "type": item.Type, "stage": stage})
}

// fail moves item to terminal FAILED, recording err in error_details (§7:
// "processors convert transport/logic errors to a FAILED item status").
func fail(ctx context.Context, q QueueStore, item *model.QueueItem, err error) error {
	_ = q.UpdateStatus(ctx, item.ID, model.StatusFailed, store.UpdateStatusParams{ErrorDetails: err.Error()})
	return err
}
