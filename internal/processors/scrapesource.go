package processors

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/scraper"
	"github.com/jobmate/discovery-core/internal/store"
)

// ScrapeSourceProcessor implements §4.9.4: load a registered Source, run the
// generic list scraper (C2) against its expanded config, and hand the
// results to Scraper Intake (C10). Unlike JOB, this always terminates in one
// pass — scraping zero jobs for an otherwise-healthy source is success, not
// failure.
type ScrapeSourceProcessor struct {
	deps Dependencies
}

// Process runs the full scrape-and-intake flow for one SCRAPE_SOURCE item.
func (p *ScrapeSourceProcessor) Process(ctx context.Context, item *model.QueueItem) error {
	log := stageLog(p.deps.Log, item, "scrape_source")

	sourceID, _ := item.ScrapedData["source_id"].(string)
	src, err := p.loadSource(ctx, sourceID, item.URL)
	if err != nil {
		return fail(ctx, p.deps.Queue, item, fmt.Errorf("load source: %w", err))
	}
	if src == nil {
		return fail(ctx, p.deps.Queue, item, fmt.Errorf("source not found (source_id=%s, url=%s)", sourceID, item.URL))
	}

	if src.Status == model.SourceDisabled {
		return p.deps.Queue.UpdateStatus(ctx, item.ID, model.StatusFailed, store.UpdateStatusParams{
			Message: fmt.Sprintf("Source is disabled: %s. Enable before scraping.", src.Name),
		})
	}

	p.healCompanyLink(ctx, item, src)

	companyName := ""
	if src.AggregatorDomain == nil && src.CompanyID != nil && p.deps.Companies != nil {
		if company, err := p.deps.Companies.GetCompanyByID(ctx, *src.CompanyID); err == nil && company != nil {
			companyName = company.Name
		}
	}
	log.WithFields(logrus.Fields{"source": src.Name, "type": src.SourceType}).Info("scraping source")

	cfg := expandSourceConfig(ctx, *src)
	if companyName != "" {
		cfg.CompanyName = companyName
	}

	sc := scraper.New(cfg, p.deps.Renderer, log)
	jobs, scrapeErr := sc.Scrape(ctx)
	if scrapeErr != nil {
		return p.handleScrapeError(ctx, item, src, scrapeErr)
	}

	jobsFound := len(jobs)
	jobsSubmitted := 0
	if jobsFound > 0 && p.deps.Intake != nil {
		result, err := p.deps.Intake.SubmitJobs(ctx, jobs, src, src.CompanyID)
		if err != nil {
			return fail(ctx, p.deps.Queue, item, fmt.Errorf("submit jobs: %w", err))
		}
		jobsSubmitted = result.Inserted
	}

	if p.deps.Sources != nil {
		_ = p.deps.Sources.UpdateScrapeStatus(ctx, src.ID, model.SourceActive, "")
	}

	resultMsg := fmt.Sprintf("Scrape completed, no jobs currently listed for %s", src.Name)
	if jobsFound > 0 {
		resultMsg = fmt.Sprintf("Scraped %d jobs, submitted %d to queue", jobsFound, jobsSubmitted)
	}

	log.WithFields(logrus.Fields{"jobs_found": jobsFound, "jobs_submitted": jobsSubmitted}).Info("scrape_source complete")
	return p.deps.Queue.UpdateStatus(ctx, item.ID, model.StatusSuccess, store.UpdateStatusParams{
		Message: resultMsg,
		ScrapedData: map[string]any{
			"jobs_found":     jobsFound,
			"jobs_submitted": jobsSubmitted,
			"source_name":    src.Name,
		},
	})
}

func (p *ScrapeSourceProcessor) loadSource(ctx context.Context, sourceID, sourceURL string) (*model.Source, error) {
	if sourceID != "" {
		return p.deps.Sources.GetSourceByID(ctx, sourceID)
	}
	if sourceURL != "" {
		return p.deps.Sources.GetSourceForURL(ctx, sourceURL)
	}
	return nil, fmt.Errorf("item has neither source_id nor url")
}

// healCompanyLink repairs a NULL company_id on the Source record when the
// queue item itself carries one, the same self-healing §4.9.4 names.
func (p *ScrapeSourceProcessor) healCompanyLink(ctx context.Context, item *model.QueueItem, src *model.Source) {
	if src.CompanyID != nil || item.CompanyID == nil || *item.CompanyID == "" {
		return
	}
	if err := p.deps.Sources.UpdateCompanyLink(ctx, src.ID, *item.CompanyID); err != nil {
		p.deps.Log.WithError(err).Debug("company link self-heal failed")
		return
	}
	id := *item.CompanyID
	src.CompanyID = &id
}

func (p *ScrapeSourceProcessor) handleScrapeError(ctx context.Context, item *model.QueueItem, src *model.Source, scrapeErr error) error {
	if blocked, ok := scrapeErr.(*model.ErrScrapeBlocked); ok {
		p.deps.Log.WithField("source", src.Name).Warnf("source blocked: %s", blocked.Reason)
		if p.deps.Sources != nil {
			_ = p.deps.Sources.DisableSourceWithTags(ctx, src.ID, "Blocked during scrape: "+blocked.Reason, blocked.Tags)
		}
		return p.deps.Queue.UpdateStatus(ctx, item.ID, model.StatusFailed, store.UpdateStatusParams{
			Message:      fmt.Sprintf("Source blocked: %s", blocked.Reason),
			ErrorDetails: blocked.Error(),
		})
	}

	if p.deps.Sources != nil {
		_ = p.deps.Sources.UpdateScrapeStatus(ctx, src.ID, model.SourceActive, scrapeErr.Error())
	}
	return p.deps.Queue.UpdateStatus(ctx, item.ID, model.StatusFailed, store.UpdateStatusParams{
		Message:      fmt.Sprintf("Scraping failed: %s", scrapeErr.Error()),
		ErrorDetails: scrapeErr.Error(),
	})
}
