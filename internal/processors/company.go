package processors

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jobmate/discovery-core/internal/companyinfo"
	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/store"
)

// CompanyProcessor implements §4.9.2: a single-pass search → extract → save
// enrichment, spawning a SOURCE_DISCOVERY child when the provided URL turns
// out to be a job board rather than the company's own site.
type CompanyProcessor struct {
	deps Dependencies
}

// Process runs the full single-pass pipeline for one COMPANY item. Unlike
// JOB, a COMPANY item never requeues itself — it always terminates in one
// pass (success on any saved record; failure when the item has no company
// name, or when fetch_company_info or upsert_company returns an error).
func (p *CompanyProcessor) Process(ctx context.Context, item *model.QueueItem) error {
	log := stageLog(p.deps.Log, item, "company")

	companyName := item.CompanyName
	if companyName == "" {
		return fail(ctx, p.deps.Queue, item, fmt.Errorf("company processor: item has no company_name"))
	}

	var extracted model.Company
	if p.deps.Company != nil {
		fetched, err := p.deps.Company.FetchCompanyInfo(ctx, companyName, item.URL, companyinfo.SourceContext{})
		if err != nil {
			return fail(ctx, p.deps.Queue, item, fmt.Errorf("fetch_company_info: %w", err))
		}
		extracted = fetched
	} else {
		extracted = model.Company{Name: companyName}
	}
	extracted.Name = companyName
	if item.CompanyID != nil {
		extracted.ID = *item.CompanyID
	}

	quality := dataQuality(extracted)

	companyID, err := p.deps.Companies.UpsertCompany(ctx, &extracted)
	if err != nil {
		return fail(ctx, p.deps.Queue, item, fmt.Errorf("upsert_company: %w", err))
	}
	log.WithFields(logrus.Fields{"company_id": companyID, "data_quality": quality}).Info("company saved")

	jobBoardURL, spawned := p.maybeSpawnSourceDiscovery(ctx, item, companyID, companyName)

	resultMsg := fmt.Sprintf("Company saved (%s data); about=%d chars, culture=%d chars", quality, len(extracted.About), len(extracted.Culture))
	if jobBoardURL != "" {
		if spawned {
			resultMsg += "; job_board_spawned"
		} else {
			resultMsg += "; job_board_exists"
		}
	}

	return p.deps.Queue.UpdateStatus(ctx, item.ID, model.StatusSuccess, store.UpdateStatusParams{Message: resultMsg})
}

// maybeSpawnSourceDiscovery implements step 7 of §4.9.2: if the incoming URL
// is a job-board URL (never the company's own site, per C11's guarantee),
// spawn a SOURCE_DISCOVERY child for it unless a Source already exists.
func (p *CompanyProcessor) maybeSpawnSourceDiscovery(ctx context.Context, item *model.QueueItem, companyID, companyName string) (jobBoardURL string, spawned bool) {
	if item.URL == "" || p.deps.Sources == nil {
		return "", false
	}
	isJobBoard, err := p.deps.Sources.IsJobBoardURL(ctx, item.URL)
	if err != nil || !isJobBoard {
		return "", false
	}
	jobBoardURL = item.URL

	if existing, err := p.deps.Sources.GetSourceForURL(ctx, jobBoardURL); err == nil && existing != nil {
		return jobBoardURL, false
	}

	child := &model.QueueItem{
		Type:        model.ItemSourceDiscovery,
		URL:         jobBoardURL,
		CompanyName: companyName,
		CompanyID:   &companyID,
	}
	if _, err := p.deps.Queue.SpawnItemSafely(ctx, item, child); err != nil {
		p.deps.Log.WithError(err).Debug("source_discovery spawn refused")
		return jobBoardURL, false
	}
	return jobBoardURL, true
}

// dataQuality buckets an extracted Company record per §4.9.2 step 6's
// about/culture length thresholds, delegating to model.Company.Quality so
// the same bucketing is shared with any other caller that classifies an
// enriched record.
func dataQuality(c model.Company) string {
	return string(c.Quality())
}
