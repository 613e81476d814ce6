// Package intake implements C10, Scraper Intake: the single entry point a
// scrape result passes through before it becomes durable queue work.
package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/prefilter"
)

// QueueWriter is the narrow slice of the Queue Manager (C8) intake needs.
type QueueWriter interface {
	URLExistsInQueue(ctx context.Context, url string) (bool, error)
	AddItem(ctx context.Context, item *model.QueueItem) (string, error)
}

// remoteSourceTags are Source.Tags values that mark a source as remote-only,
// used to derive is_remote_source for the Pre-filter's arrangement check
// (§4.10).
var remoteSourceTags = map[string]bool{
	"remote":            true,
	"remote_only":       true,
	"remote_first":      true,
	"remote_aggregator": true,
}

// Intake runs submit_jobs against a Queue Manager and Pre-filter policy.
type Intake struct {
	Queue  QueueWriter
	Policy prefilter.Policy
	log    *logrus.Entry
}

// New builds an Intake. log may be nil.
func New(queue QueueWriter, policy prefilter.Policy, log *logrus.Entry) *Intake {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Intake{Queue: queue, Policy: policy, log: log.WithField("component", "intake")}
}

// Result tallies what happened to a batch of postings (useful for the
// scrape-status message recorded by the SCRAPE_SOURCE processor, §4.9.4).
type Result struct {
	Inserted int
	Skipped  int
	Filtered int
}

// SubmitJobs implements §4.10: skips postings whose URL is already in the
// queue (the raw URL is checked, not URLFingerprint), applies a cheap
// title-only filter, then the full Pre-filter (C3), and enqueues one JOB
// item per survivor with pipeline_state.job_data pre-populated so the JOB
// pipeline enters directly at the filter stage.
func (in *Intake) SubmitJobs(ctx context.Context, jobs []model.Posting, src *model.Source, companyID *string) (Result, error) {
	var res Result
	isRemoteSource := SourceIndicatesRemote(src)

	for _, job := range jobs {
		exists, err := in.Queue.URLExistsInQueue(ctx, job.URL)
		if err != nil {
			return res, fmt.Errorf("intake: url_exists_in_queue failed: %w", err)
		}
		if exists {
			res.Skipped++
			continue
		}

		titleDecision := prefilter.TitleOnly(job, in.Policy)
		if !titleDecision.Passed {
			res.Filtered++
			continue
		}

		decision := prefilter.Run(job, isRemoteSource, in.Policy)
		if !decision.Passed {
			res.Filtered++
			continue
		}

		item := &model.QueueItem{
			Type:          model.ItemJob,
			Status:        model.StatusPending,
			URL:           job.URL,
			CompanyName:   job.Company,
			CompanyID:     companyID,
			PipelineStage: model.StageFilter,
			PipelineState: map[string]any{
				"job_data": postingToDict(job),
			},
		}
		if src != nil && src.ID != "" {
			item.SourceID = &src.ID
		}

		if _, err := in.Queue.AddItem(ctx, item); err != nil {
			return res, fmt.Errorf("intake: add_item failed for %s: %w", job.URL, err)
		}
		res.Inserted++
	}

	in.log.WithFields(logrus.Fields{
		"inserted": res.Inserted, "skipped": res.Skipped, "filtered": res.Filtered,
	}).Info("submit_jobs complete")

	return res, nil
}

// SourceIndicatesRemote reports whether a Source's tags mark all postings it
// yields as remote, independent of each posting's own location fields
// (§4.10's source_tag_indicates_remote).
func SourceIndicatesRemote(src *model.Source) bool {
	if src == nil {
		return false
	}
	for _, tag := range src.Tags {
		if remoteSourceTags[strings.ToLower(tag)] {
			return true
		}
	}
	return false
}

// URLFingerprint returns a stable fingerprint for a posting URL, used when a
// caller needs to dedup before reaching the queue (the queue's own
// URLExistsInQueue already dedups on the raw URL; this is exposed for
// callers that persist fingerprints separately).
func URLFingerprint(rawURL string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(rawURL)))
	return hex.EncodeToString(sum[:])
}

func postingToDict(p model.Posting) map[string]any {
	return map[string]any{
		"title":             p.Title,
		"url":               p.URL,
		"company":           p.Company,
		"location":          p.Location,
		"description":       p.Description,
		"posted_date":       p.PostedDate,
		"salary":            p.Salary,
		"tags":              p.Tags,
		"metadata":          p.Metadata,
		"departments":       p.Departments,
		"offices":           p.Offices,
		"company_website":   p.CompanyWebsite,
		"is_remote_source":  p.IsRemoteSource,
		"is_remote":         p.IsRemote,
	}
}
