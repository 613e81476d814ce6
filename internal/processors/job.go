package processors

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jobmate/discovery-core/internal/companyinfo"
	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/prefilter"
	"github.com/jobmate/discovery-core/internal/scoring"
	"github.com/jobmate/discovery-core/internal/store"
	"github.com/jobmate/discovery-core/internal/strike"
)

// JobProcessor implements §4.9.1's decision-tree pipeline: a single JOB
// queue item is re-leased once per stage, reading pipeline_state to decide
// which of SCRAPE/FILTER/ANALYZE/SAVE to run next rather than trusting any
// stored stage tag.
type JobProcessor struct {
	deps Dependencies
}

// Process runs exactly one stage for item, per the decision tree.
func (p *JobProcessor) Process(ctx context.Context, item *model.QueueItem) error {
	state := item.PipelineState
	if state == nil {
		state = map[string]any{}
	}

	_, hasJobData := state["job_data"]
	_, hasFilterResult := state["filter_result"]
	_, hasMatchResult := state["match_result"]

	switch {
	case !hasJobData:
		return p.scrape(ctx, item, state)
	case !hasFilterResult:
		return p.filter(ctx, item, state)
	case !hasMatchResult:
		return p.analyze(ctx, item, state)
	default:
		return p.save(ctx, item, state)
	}
}

func (p *JobProcessor) scrape(ctx context.Context, item *model.QueueItem, state map[string]any) error {
	log := stageLog(p.deps.Log, item, model.StageScrape)

	var posting model.Posting
	scrapeMethod := "generic"

	if p.deps.Sources != nil {
		if src, err := p.deps.Sources.GetSourceForURL(ctx, item.URL); err == nil && src != nil {
			cfg := expandSourceConfig(ctx, *src)
			got, err := fetchDetailWithConfig(ctx, item.URL, cfg)
			if err != nil {
				log.WithError(err).Warn("source-config detail scrape failed, falling back to generic")
			} else {
				posting = got
				scrapeMethod = src.Name
			}
		}
	}

	if posting.Title == "" && posting.Description == "" {
		got, err := fetchJobDetail(ctx, item.URL)
		if err != nil {
			return fail(ctx, p.deps.Queue, item, fmt.Errorf("job scrape: %w", err))
		}
		posting = got
	}
	posting.URL = item.URL

	newState := mergeState(state, "job_data", postingToMap(posting))
	newState["scrape_method"] = scrapeMethod

	if err := p.deps.Queue.RequeueWithState(ctx, item.ID, newState, model.StageFilter); err != nil {
		return fail(ctx, p.deps.Queue, item, fmt.Errorf("requeue after scrape: %w", err))
	}
	log.WithField("title", posting.Title).Info("scrape stage complete")
	return nil
}

func (p *JobProcessor) filter(ctx context.Context, item *model.QueueItem, state map[string]any) error {
	log := stageLog(p.deps.Log, item, model.StageFilter)

	jobData, _ := state["job_data"].(map[string]any)
	posting := mapToPosting(jobData)
	isRemoteSource := posting.IsRemoteSource

	prefilterDecision := prefilter.Run(posting, isRemoteSource, p.deps.Policies.Prefilter)
	ageDays, _ := prefilter.PostingAgeDays(posting)
	strikeResult := strike.Run(posting, isRemoteSource, ageDays, p.deps.Policies.Strike)

	passed := prefilterDecision.Passed && strikeResult.Passed
	filterResult := map[string]any{
		"prefilter_passed": prefilterDecision.Passed,
		"prefilter_reason": prefilterDecision.Reason,
		"strike_passed":    strikeResult.Passed,
		"strike_total":     strikeResult.Total,
		"hard_reject_reason": strikeResult.HardRejectReason,
	}

	if !passed {
		reason := prefilterDecision.Reason
		if reason == "" {
			reason = strikeResult.HardRejectReason
		}
		err := p.deps.Queue.UpdateStatus(ctx, item.ID, model.StatusFiltered, store.UpdateStatusParams{
			Message:       "Rejected by filters: " + reason,
			ScrapedData:   map[string]any{"job_data": jobData, "filter_result": filterResult},
			PipelineStage: model.StageFilter,
		})
		log.WithField("reason", reason).Info("filter stage rejected")
		return err
	}

	newState := mergeState(state, "filter_result", filterResult)
	if err := p.deps.Queue.RequeueWithState(ctx, item.ID, newState, model.StageAnalyze); err != nil {
		return fail(ctx, p.deps.Queue, item, fmt.Errorf("requeue after filter: %w", err))
	}
	log.WithField("strikes", strikeResult.Total).Info("filter stage passed")
	return nil
}

func (p *JobProcessor) analyze(ctx context.Context, item *model.QueueItem, state map[string]any) error {
	return p.runAnalyze(ctx, item, state, false)
}

// runAnalyze executes the ANALYZE stage. reviewing is true only when the
// ReviewProcessor (§4.9.3) is re-running it after a prior NEEDS_REVIEW
// hand-off: the one review attempt is spent, so a second hard failure goes
// straight to FAILED instead of looping back to NEEDS_REVIEW.
func (p *JobProcessor) runAnalyze(ctx context.Context, item *model.QueueItem, state map[string]any, reviewing bool) error {
	log := stageLog(p.deps.Log, item, model.StageAnalyze)

	jobData, _ := state["job_data"].(map[string]any)
	posting := mapToPosting(jobData)

	company, companyID, err := p.resolveCompany(ctx, posting)
	if err != nil {
		analyzeErr := fmt.Errorf("analyze: resolve company: %w", err)
		if !reviewing {
			log.WithError(analyzeErr).Warn("analyze stage failed, deferring to review")
			return p.deps.Queue.UpdateStatus(ctx, item.ID, model.StatusNeedsReview, store.UpdateStatusParams{
				Message:       analyzeErr.Error(),
				ErrorDetails:  analyzeErr.Error(),
				PipelineStage: model.StageAnalyze,
			})
		}
		return fail(ctx, p.deps.Queue, item, analyzeErr)
	}
	if companyID != "" {
		jobData["company_id"] = companyID
	}

	breakdown := scoring.Score(posting, company, posting.IsRemoteSource, p.deps.Policies.Scoring)

	// An AI-assisted extractor may supplement the deterministic breakdown
	// with reasoning/cross-check when configured, but never overrides the
	// deterministic pass/fail (§4.5 is authoritative; §6's LLM agent is
	// "called only ... when the deterministic path is insufficient").
	var aiReasoning string
	if p.deps.Agent != nil {
		context := buildCompanyContext(company)
		if score, reasoning, err := p.deps.Agent.ScoreJob(ctx, posting.Description, context); err != nil {
			log.WithError(err).Debug("AI-assisted scoring failed, using deterministic score only")
		} else {
			aiReasoning = reasoning
			log.WithFields(logrus.Fields{"ai_score": score, "deterministic_score": breakdown.FinalScore}).Debug("AI-assisted score recorded alongside deterministic breakdown")
		}
	}

	if !breakdown.Passed {
		err := p.deps.Queue.UpdateStatus(ctx, item.ID, model.StatusSkipped, store.UpdateStatusParams{
			Message:       fmt.Sprintf("Job score below threshold (%d < %d)", breakdown.FinalScore, p.deps.Policies.MinMatchScore),
			PipelineStage: model.StageAnalyze,
		})
		log.WithField("score", breakdown.FinalScore).Info("analyze stage skipped: below threshold")
		return err
	}

	matchResult := map[string]any{
		"score":        breakdown.FinalScore,
		"base_score":   breakdown.BaseScore,
		"adjustments":  adjustmentsToMaps(breakdown.Adjustments),
		"company_id":   companyID,
		"ai_reasoning": aiReasoning,
	}

	newState := mergeState(state, "match_result", matchResult)
	newState["job_data"] = jobData
	if err := p.deps.Queue.RequeueWithState(ctx, item.ID, newState, model.StageSave); err != nil {
		return fail(ctx, p.deps.Queue, item, fmt.Errorf("requeue after analyze: %w", err))
	}
	log.WithField("score", breakdown.FinalScore).Info("analyze stage passed")
	return nil
}

func (p *JobProcessor) save(ctx context.Context, item *model.QueueItem, state map[string]any) error {
	log := stageLog(p.deps.Log, item, model.StageSave)

	jobData, _ := state["job_data"].(map[string]any)
	matchResult, _ := state["match_result"].(map[string]any)
	if jobData == nil || matchResult == nil {
		return fail(ctx, p.deps.Queue, item, fmt.Errorf("save stage: missing job_data or match_result"))
	}

	var companyID *string
	if id, _ := matchResult["company_id"].(string); id != "" {
		companyID = &id
	}
	score := intVal(matchResult["score"])

	match := &model.Match{
		QueueItemID: item.ID,
		CompanyID:   companyID,
		URL:         item.URL,
		Title:       str(jobData["title"]),
		MatchScore:  score,
		Breakdown:   matchResult,
	}

	matchID, err := p.deps.Matches.SaveMatch(ctx, match)
	if err != nil {
		return fail(ctx, p.deps.Queue, item, fmt.Errorf("save match: %w", err))
	}

	err = p.deps.Queue.UpdateStatus(ctx, item.ID, model.StatusSuccess, store.UpdateStatusParams{
		Message:       fmt.Sprintf("Job saved successfully (id: %s, score: %d)", matchID, score),
		PipelineStage: model.StageSave,
	})
	log.WithFields(logrus.Fields{"match_id": matchID, "score": score}).Info("save stage complete")
	return err
}

// resolveCompany implements the ANALYZE stage's "ensure a company record
// exists" step (§4.9.1, §4.9.2): look up an existing record by name, else
// run the Company Info Fetcher (C11) and persist a new one.
func (p *JobProcessor) resolveCompany(ctx context.Context, posting model.Posting) (*model.Company, string, error) {
	name := posting.Company
	if name == "" || p.deps.Companies == nil {
		return nil, "", nil
	}

	existing, err := p.deps.Companies.GetCompanyByName(ctx, name)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return existing, existing.ID, nil
	}

	company := model.Company{Name: name}
	if p.deps.Company != nil {
		fetched, err := p.deps.Company.FetchCompanyInfo(ctx, name, posting.CompanyWebsite, companyinfo.SourceContext{
			BaseURL: posting.CompanyWebsite,
		})
		if err != nil {
			p.deps.Log.WithError(err).Warn("fetch_company_info failed, persisting bare record")
		} else {
			company = fetched
		}
	}

	id, err := p.deps.Companies.UpsertCompany(ctx, &company)
	if err != nil {
		return nil, "", err
	}
	company.ID = id
	return &company, id, nil
}

func buildCompanyContext(company *model.Company) string {
	if company == nil {
		return ""
	}
	return fmt.Sprintf("Company: %s\nAbout: %s\nCulture: %s\nIndustry: %s", company.Name, company.About, company.Culture, company.Industry)
}

func adjustmentsToMaps(adjustments []scoring.Adjustment) []map[string]any {
	out := make([]map[string]any, len(adjustments))
	for i, a := range adjustments {
		out[i] = map[string]any{"category": a.Category, "reason": a.Reason, "points": a.Points}
	}
	return out
}

// mergeState returns a shallow copy of state with key set to value, never
// mutating the caller's map (pipeline_state values are read back from the
// store on the next lease and must not alias a stale in-memory copy).
func mergeState(state map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(state)+1)
	for k, v := range state {
		out[k] = v
	}
	out[key] = value
	return out
}
