package processors

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/sourceanalysis"
	"github.com/jobmate/discovery-core/internal/sourceconfig"
	"github.com/jobmate/discovery-core/internal/store"
)

// SourceDiscoveryProcessor implements §4.9.3: classify an unregistered URL
// with Source Analysis (C6), resolve or create the Company it belongs to,
// and register a Source — disabled up front for anything C6 flags as
// unsuitable for repeat scraping.
type SourceDiscoveryProcessor struct {
	deps Dependencies
}

// Process runs the full discovery flow for one SOURCE_DISCOVERY item.
func (p *SourceDiscoveryProcessor) Process(ctx context.Context, item *model.QueueItem) error {
	log := stageLog(p.deps.Log, item, "source_discovery")

	rawURL := item.URL
	if rawURL == "" {
		return fail(ctx, p.deps.Queue, item, fmt.Errorf("source_discovery: item has no url"))
	}

	sample, _ := item.ScrapedData["sample_html"].(string)
	result, err := sourceanalysis.Classify(ctx, rawURL, item.CompanyName, p.deps.Prober, p.deps.Agent, sample)
	if err != nil {
		return fail(ctx, p.deps.Queue, item, fmt.Errorf("classify: %w", err))
	}
	log.WithFields(logrus.Fields{
		"classification": result.Classification, "aggregator_domain": result.AggregatorDomain,
		"should_disable": result.ShouldDisable, "confidence": result.Confidence,
	}).Info("source analysis complete")

	companyName := item.CompanyName
	if companyName == "" {
		companyName = result.CompanyName
	}
	companyID := ""
	if item.CompanyID != nil {
		companyID = *item.CompanyID
	}
	companyCreated := false

	if companyName != "" && companyID == "" && p.deps.Companies != nil {
		existing, err := p.deps.Companies.GetCompanyByName(ctx, companyName)
		if err != nil {
			return fail(ctx, p.deps.Queue, item, fmt.Errorf("lookup company: %w", err))
		}
		if existing != nil {
			companyID = existing.ID
		} else {
			id, err := p.deps.Companies.UpsertCompany(ctx, &model.Company{Name: companyName})
			if err != nil {
				return fail(ctx, p.deps.Queue, item, fmt.Errorf("create company stub: %w", err))
			}
			companyID = id
			companyCreated = true
		}
	}

	// Avoid registering the same (company, aggregator) pair twice.
	if companyID != "" && result.AggregatorDomain != "" && p.deps.Sources != nil {
		if existing, err := p.deps.Sources.GetSourceByCompanyAndAggregator(ctx, companyID, result.AggregatorDomain); err == nil && existing != nil {
			return p.handleExisting(ctx, item, existing, "duplicate")
		}
	}

	sourceName := buildSourceName(companyName, result.AggregatorDomain, rawURL)

	shouldDisable := result.ShouldDisable
	disableReason := result.DisableReason
	switch result.Classification {
	case sourceanalysis.SingleJobListing, sourceanalysis.ATSProviderSite, sourceanalysis.Invalid:
		shouldDisable = true
		if disableReason == "" {
			disableReason = "invalid source type: " + string(result.Classification)
		}
	}

	cfg := sourceconfig.Config{Type: model.SourceHTML, URL: rawURL}
	if result.SourceConfig != nil {
		cfg = *result.SourceConfig
	}
	cfgDict := cfg.ToDict()
	if shouldDisable {
		cfgDict["disabled_notes"] = disableReason
	}

	status := model.SourceActive
	if shouldDisable {
		status = model.SourceDisabled
	}

	src := &model.Source{
		Name:       sourceName,
		SourceType: cfg.Type,
		Status:     status,
		Config:     cfgDict,
	}
	// AddSource enforces exactly one of company_id/aggregator_domain
	// (stripping aggregator_domain whenever company_id is set), so prefer the
	// resolved company and fall back to the aggregator domain — or, lacking
	// both, the URL's own host — only when no company was resolved.
	if companyID != "" {
		id := companyID
		src.CompanyID = &id
	} else {
		domain := result.AggregatorDomain
		if domain == "" {
			domain = hostOf(rawURL)
		}
		src.AggregatorDomain = &domain
	}

	sourceID, err := p.deps.Sources.AddSource(ctx, src)
	if err != nil {
		if companyID != "" && result.AggregatorDomain != "" {
			if existing, lookupErr := p.deps.Sources.GetSourceByCompanyAndAggregator(ctx, companyID, result.AggregatorDomain); lookupErr == nil && existing != nil {
				return p.handleExisting(ctx, item, existing, "race")
			}
		}
		return fail(ctx, p.deps.Queue, item, fmt.Errorf("add_source: %w", err))
	}

	p.finalize(ctx, item, sourceID, string(cfg.Type), companyID, companyName, companyCreated, disableReason, status, rawURL, log)
	return nil
}

func (p *SourceDiscoveryProcessor) handleExisting(ctx context.Context, item *model.QueueItem, existing *model.Source, reuseContext string) error {
	p.deps.Log.WithField("source_id", existing.ID).Infof("discovery reuse (%s): source already exists", reuseContext)
	return p.deps.Queue.UpdateStatus(ctx, item.ID, model.StatusSuccess, store.UpdateStatusParams{
		Message: fmt.Sprintf("Source already exists: %s", existing.Name),
		ScrapedData: map[string]any{
			"source_id":   existing.ID,
			"source_type": string(existing.SourceType),
		},
	})
}

// finalize implements §4.9.3's follow-up spawns: SCRAPE_SOURCE for an
// immediately active source, COMPANY for a company stub created fresh this
// pass, then the item's own terminal success.
func (p *SourceDiscoveryProcessor) finalize(ctx context.Context, item *model.QueueItem, sourceID, sourceType, companyID, companyName string, companyCreated bool, disableReason string, status model.SourceStatus, rawURL string, log *logrus.Entry) {
	if status == model.SourceActive {
		child := &model.QueueItem{
			Type:        model.ItemScrapeSource,
			CompanyName: companyName,
			ScrapedData: map[string]any{"source_id": sourceID},
		}
		if companyID != "" {
			child.CompanyID = &companyID
		}
		if _, err := p.deps.Queue.SpawnItemSafely(ctx, item, child); err != nil {
			log.WithError(err).Debug("scrape_source spawn refused")
		} else {
			log.WithField("source_id", sourceID).Info("spawned scrape_source for newly discovered source")
		}
	} else {
		log.WithFields(logrus.Fields{"source_id": sourceID, "disabled_notes": disableReason}).Info("created source disabled, skipping immediate scrape")
	}

	if companyCreated && companyID != "" {
		child := &model.QueueItem{
			Type:        model.ItemCompany,
			URL:         baseURL(rawURL),
			CompanyName: companyName,
			CompanyID:   &companyID,
		}
		if _, err := p.deps.Queue.SpawnItemSafely(ctx, item, child); err != nil {
			log.WithError(err).Debug("company spawn refused")
		} else {
			log.WithField("company_id", companyID).Info("spawned company item to enrich stub")
		}
	}

	_ = p.deps.Queue.UpdateStatus(ctx, item.ID, model.StatusSuccess, store.UpdateStatusParams{
		Message: sourceID,
		ScrapedData: map[string]any{
			"source_id":      sourceID,
			"source_type":    sourceType,
			"disabled_notes": disableReason,
		},
	})
	log.WithField("source_id", sourceID).Info("source_discovery complete")
}

func buildSourceName(companyName, aggregatorDomain, rawURL string) string {
	switch {
	case companyName != "" && aggregatorDomain != "":
		return fmt.Sprintf("%s Jobs (%s)", companyName, aggregatorDomain)
	case companyName != "":
		return companyName + " Jobs"
	case aggregatorDomain != "":
		return titleCase(strings.SplitN(aggregatorDomain, ".", 2)[0]) + " Jobs"
	default:
		u, err := url.Parse(rawURL)
		if err != nil {
			return rawURL + " Jobs"
		}
		return u.Host + " Jobs"
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func baseURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}
