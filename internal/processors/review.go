package processors

import (
	"context"
	"fmt"

	"github.com/jobmate/discovery-core/internal/model"
)

// ReviewProcessor implements §4.9.3's Open Question 3 resolution: a JOB
// item that hard-failed ANALYZE once is left NEEDS_REVIEW rather than
// FAILED, and this processor gives it exactly one more ANALYZE attempt
// before it gives up to FAILED.
type ReviewProcessor struct {
	deps Dependencies
}

// Process re-runs the ANALYZE stage for a leased NEEDS_REVIEW item.
func (p *ReviewProcessor) Process(ctx context.Context, item *model.QueueItem) error {
	log := stageLog(p.deps.Log, item, "review")

	if item.Type != model.ItemJob {
		return fail(ctx, p.deps.Queue, item, fmt.Errorf("review: unsupported item type %q", item.Type))
	}

	state := item.PipelineState
	if state == nil {
		state = map[string]any{}
	}
	if _, ok := state["job_data"]; !ok {
		return fail(ctx, p.deps.Queue, item, fmt.Errorf("review: missing job_data in pipeline_state"))
	}

	log.Info("review: re-running analyze stage")
	jp := &JobProcessor{deps: p.deps}
	return jp.runAnalyze(ctx, item, state, true)
}
