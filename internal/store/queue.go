package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jackc/pgx/v5"

	"github.com/jobmate/discovery-core/internal/model"
)

// QueueStore is the Queue Manager (C8): durable, lease-based dispatch of
// work items ordered by creation timestamp.
type QueueStore struct {
	pool pgxIface
	rdb  *redis.Client
	log  *logrus.Entry
}

// NewQueueStore constructs a QueueStore. rdb may be nil, in which case
// queue-state pub/sub notifications are skipped (§11 supplement).
func NewQueueStore(pool pgxIface, rdb *redis.Client, log *logrus.Entry) *QueueStore {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &QueueStore{pool: pool, rdb: rdb, log: log.WithField("component", "queue_store")}
}

// AddItem implements §4.8's enqueue contract: assigns tracking_id if absent,
// initializes spawn_depth=0 and an empty ancestry_chain.
func (s *QueueStore) AddItem(ctx context.Context, item *model.QueueItem) (string, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.TrackingID == "" {
		item.TrackingID = uuid.NewString()
	}
	if item.MaxSpawnDepth == 0 {
		item.MaxSpawnDepth = model.DefaultMaxSpawnDepth
	}
	if item.Status == "" {
		item.Status = model.StatusPending
	}
	if item.AncestryChain == nil {
		item.AncestryChain = []string{}
	}

	ancestry, err := json.Marshal(item.AncestryChain)
	if err != nil {
		return "", fmt.Errorf("marshal ancestry_chain: %w", err)
	}
	pipelineState, err := json.Marshal(item.PipelineState)
	if err != nil {
		return "", fmt.Errorf("marshal pipeline_state: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO queue_items (
			id, type, status, url, company_name, company_id, source_id,
			tracking_id, ancestry_chain, spawn_depth, max_spawn_depth,
			parent_item_id, pipeline_stage, pipeline_state, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW(),NOW())`,
		item.ID, item.Type, item.Status, item.URL, item.CompanyName, item.CompanyID, item.SourceID,
		item.TrackingID, ancestry, item.SpawnDepth, item.MaxSpawnDepth,
		item.ParentItemID, item.PipelineStage, pipelineState,
	)
	if err != nil {
		return "", fmt.Errorf("add_item: %w", err)
	}
	s.notify(ctx, "EVENT_QUEUE_ITEM_ADDED", item.ID, "", string(item.Status))
	return item.ID, nil
}

// LeaseNext transitions the oldest PENDING item to PROCESSING via a
// compare-and-swap on (id, status=PENDING), mirroring the strict
// single-leaseholder model of §4.8's concurrency notes.
func (s *QueueStore) LeaseNext(ctx context.Context, leaseDuration time.Duration) (*model.QueueItem, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM queue_items
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, model.StatusPending).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lease_next select: %w", err)
	}

	leaseExpiresAt := time.Now().Add(leaseDuration)
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_items
		SET status = $1, lease_expires_at = $2, attempt_count = attempt_count + 1, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		model.StatusProcessing, leaseExpiresAt, id, model.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("lease_next cas: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// lost the race to another worker
		return nil, nil
	}

	return s.GetByID(ctx, id)
}

// LeaseNextForReview leases the oldest NEEDS_REVIEW item for the
// ReviewProcessor's single revisit pass (§4.9.3): NEEDS_REVIEW is not
// terminal, so a separate worker loop drains it the same way LeaseNext
// drains PENDING.
func (s *QueueStore) LeaseNextForReview(ctx context.Context, leaseDuration time.Duration) (*model.QueueItem, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM queue_items
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, model.StatusNeedsReview).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lease_next_for_review select: %w", err)
	}

	leaseExpiresAt := time.Now().Add(leaseDuration)
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_items
		SET status = $1, lease_expires_at = $2, attempt_count = attempt_count + 1, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		model.StatusProcessing, leaseExpiresAt, id, model.StatusNeedsReview)
	if err != nil {
		return nil, fmt.Errorf("lease_next_for_review cas: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}

	return s.GetByID(ctx, id)
}

// ReclaimStuckLeases implements §5's recovery sweep: a worker that crashes
// mid-lease leaves its item PROCESSING forever unless something reverts it.
// This reverts every item whose lease_expires_at has passed back to PENDING,
// bumping attempt_count the same way LeaseNext does, so a future LeaseNext
// can pick it up again. Returns the number of items reclaimed.
func (s *QueueStore) ReclaimStuckLeases(ctx context.Context) (int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM queue_items
		WHERE status = $1 AND lease_expires_at IS NOT NULL AND lease_expires_at < NOW()`,
		model.StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("reclaim_stuck_leases select: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			rows.Close()
			return 0, fmt.Errorf("reclaim_stuck_leases scan: %w", scanErr)
		}
		ids = append(ids, id)
	}
	rows.Close()

	reclaimed := 0
	for _, id := range ids {
		entry := model.StatusHistoryEntry{From: model.StatusProcessing, To: model.StatusPending, At: time.Now().UTC(), Message: "reclaimed: lease expired"}
		entryJSON, _ := json.Marshal(entry)

		tag, err := s.pool.Exec(ctx, `
			UPDATE queue_items
			SET status = $1, attempt_count = attempt_count + 1, lease_expires_at = NULL,
			    status_history = status_history || $2::jsonb, updated_at = NOW()
			WHERE id = $3 AND status = $4`,
			model.StatusPending, fmt.Sprintf("[%s]", entryJSON), id, model.StatusProcessing)
		if err != nil {
			return reclaimed, fmt.Errorf("reclaim_stuck_leases update: %w", err)
		}
		if tag.RowsAffected() == 0 {
			continue
		}
		reclaimed++
		s.notify(ctx, "EVENT_QUEUE_ITEM_RECLAIMED", id, string(model.StatusProcessing), string(model.StatusPending))
	}
	return reclaimed, nil
}

// GetByID loads a single queue item by id.
func (s *QueueStore) GetByID(ctx context.Context, id string) (*model.QueueItem, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, type, status, url, company_name, company_id, source_id,
		       result_message, error_details, pipeline_stage, pipeline_state,
		       scraped_data, tracking_id, ancestry_chain, spawn_depth, max_spawn_depth,
		       parent_item_id, attempt_count, lease_expires_at, created_at, updated_at
		FROM queue_items WHERE id = $1`, id)

	var item model.QueueItem
	var ancestryRaw, pipelineStateRaw, scrapedDataRaw []byte
	if err := row.Scan(
		&item.ID, &item.Type, &item.Status, &item.URL, &item.CompanyName, &item.CompanyID, &item.SourceID,
		&item.ResultMessage, &item.ErrorDetails, &item.PipelineStage, &pipelineStateRaw,
		&scrapedDataRaw, &item.TrackingID, &ancestryRaw, &item.SpawnDepth, &item.MaxSpawnDepth,
		&item.ParentItemID, &item.AttemptCount, &item.LeaseExpiresAt, &item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("get_by_id: %w", err)
	}
	_ = json.Unmarshal(ancestryRaw, &item.AncestryChain)
	_ = json.Unmarshal(pipelineStateRaw, &item.PipelineState)
	_ = json.Unmarshal(scrapedDataRaw, &item.ScrapedData)
	return &item, nil
}

// UpdateStatusParams carries the optional fields update_status may set (§4.8).
type UpdateStatusParams struct {
	Message       string
	ScrapedData   map[string]any
	ErrorDetails  string
	PipelineStage string
}

// UpdateStatus implements §4.8's update_status contract: validates the
// transition (PROCESSING→PENDING additionally requires PipelineStage to be
// set, i.e. a requeue) and appends a status_history audit entry.
func (s *QueueStore) UpdateStatus(ctx context.Context, id string, newStatus model.ItemStatus, params UpdateStatusParams) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !model.IsQueueTransitionAllowed(current.Status, newStatus) {
		return &model.ErrInvalidStateTransition{Entity: "queue_item", From: string(current.Status), To: string(newStatus)}
	}
	if current.Status == model.StatusProcessing && newStatus == model.StatusPending && params.PipelineStage == "" {
		return &model.ErrInvalidStateTransition{Entity: "queue_item", From: string(current.Status), To: string(newStatus)}
	}

	entry := model.StatusHistoryEntry{From: current.Status, To: newStatus, At: time.Now().UTC(), Message: params.Message}
	entryJSON, _ := json.Marshal(entry)

	var scrapedJSON []byte
	if params.ScrapedData != nil {
		scrapedJSON, err = json.Marshal(params.ScrapedData)
		if err != nil {
			return fmt.Errorf("marshal scraped_data: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE queue_items
		SET status = $1, result_message = $2, error_details = $3, pipeline_stage = $4,
		    scraped_data = COALESCE($5, scraped_data),
		    status_history = status_history || $6::jsonb,
		    updated_at = NOW()
		WHERE id = $7`,
		newStatus, params.Message, params.ErrorDetails, params.PipelineStage,
		scrapedJSON, fmt.Sprintf("[%s]", entryJSON), id)
	if err != nil {
		return fmt.Errorf("update_status: %w", err)
	}

	s.notify(ctx, "EVENT_QUEUE_ITEM_STATUS_CHANGED", id, string(current.Status), string(newStatus))
	return nil
}

// RequeueWithState implements §4.8's requeue_with_state: an atomic
// PROCESSING→PENDING with a replaced pipeline_state and new pipeline_stage.
// Forbidden from terminal states.
func (s *QueueStore) RequeueWithState(ctx context.Context, id string, newState map[string]any, nextStage string) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != model.StatusProcessing {
		return &model.ErrInvalidStateTransition{Entity: "queue_item", From: string(current.Status), To: string(model.StatusPending)}
	}

	stateJSON, err := json.Marshal(newState)
	if err != nil {
		return fmt.Errorf("marshal pipeline_state: %w", err)
	}
	entry := model.StatusHistoryEntry{From: current.Status, To: model.StatusPending, At: time.Now().UTC(), Message: "requeued: " + nextStage}
	entryJSON, _ := json.Marshal(entry)

	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_items
		SET status = $1, pipeline_stage = $2, pipeline_state = $3,
		    status_history = status_history || $4::jsonb, updated_at = NOW()
		WHERE id = $5 AND status = $6`,
		model.StatusPending, nextStage, stateJSON, fmt.Sprintf("[%s]", entryJSON), id, model.StatusProcessing)
	if err != nil {
		return fmt.Errorf("requeue_with_state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &model.ErrInvalidStateTransition{Entity: "queue_item", From: string(current.Status), To: string(model.StatusPending)}
	}

	s.notifyMoved(ctx, id, current.PipelineStage, nextStage)
	if nextStage == model.StageAnalyze {
		s.publishCommand(ctx, "CMD_SCORE_JOB", id)
	}
	return nil
}

// notifyMoved publishes a pipeline-stage transition, mirroring
// kanban.Service.MoveCard's EVENT_CARD_MOVED publish but keyed on
// pipeline_stage rather than Kanban status.
func (s *QueueStore) notifyMoved(ctx context.Context, itemID, fromStage, toStage string) {
	if s.rdb == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"type": "EVENT_QUEUE_ITEM_MOVED", "itemId": itemID, "from": fromStage, "to": toStage})
	if err := s.rdb.Publish(ctx, "EVENT_QUEUE_ITEM_MOVED", payload).Err(); err != nil {
		s.log.WithError(err).Warn("publish EVENT_QUEUE_ITEM_MOVED failed")
	}
}

// publishCommand publishes a fire-and-forget command for a downstream
// consumer, mirroring kanban.Service.CreateApplication's CMD_ANALYZE_JOB
// publish.
func (s *QueueStore) publishCommand(ctx context.Context, cmdType, itemID string) {
	if s.rdb == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"type": cmdType, "itemId": itemID})
	if err := s.rdb.Publish(ctx, cmdType, payload).Err(); err != nil {
		s.log.WithError(err).Warn("publish command failed")
	}
}

// SpawnItemSafely implements §4.8's spawn_item_safely / §3.d's three guards:
// depth cap, live-work dedup, and cycle detection via ancestry_chain.
func (s *QueueStore) SpawnItemSafely(ctx context.Context, parent *model.QueueItem, child *model.QueueItem) (string, error) {
	maxDepth := parent.MaxSpawnDepth
	if maxDepth == 0 {
		maxDepth = model.DefaultMaxSpawnDepth
	}
	if parent.SpawnDepth+1 > maxDepth {
		return "", &model.ErrSpawnRefused{Reason: "max_spawn_depth exceeded"}
	}

	target := spawnTargetKey(child)
	for _, ancestor := range parent.AncestryChain {
		if ancestor == target {
			return "", &model.ErrSpawnRefused{Reason: "spawn would create a cycle"}
		}
	}

	live, err := s.isWorkLive(ctx, child.Key())
	if err != nil {
		return "", err
	}
	if live {
		return "", &model.ErrSpawnRefused{Reason: "equivalent work already live"}
	}

	child.TrackingID = parent.TrackingID
	child.ParentItemID = &parent.ID
	child.SpawnDepth = parent.SpawnDepth + 1
	child.AncestryChain = append(append([]string{}, parent.AncestryChain...), target)
	if child.MaxSpawnDepth == 0 {
		child.MaxSpawnDepth = maxDepth
	}

	return s.AddItem(ctx, child)
}

// spawnTargetKey is the ancestry_chain entry recorded for cycle detection
// (§3.d, §4.8): a new item's type+target already appearing in the parent's
// chain means spawning would create a cycle.
func spawnTargetKey(item *model.QueueItem) string {
	return string(item.Type) + ":" + item.URL
}

func (s *QueueStore) isWorkLive(ctx context.Context, key model.WorkKey) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM queue_items
		WHERE type = $1 AND url = $2 AND COALESCE(company_id, '') = $3
		  AND status IN ($4, $5)`,
		key.Type, key.URL, key.CompanyID, model.StatusPending, model.StatusProcessing).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("is_work_live: %w", err)
	}
	return count > 0, nil
}

// URLExistsInQueue is the fast existence check intake uses (§4.8).
func (s *QueueStore) URLExistsInQueue(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM queue_items WHERE url = $1)`, url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("url_exists_in_queue: %w", err)
	}
	return exists, nil
}

// notify publishes a queue-state change event, mirroring
// kanban.Service.MoveCard's EVENT_CARD_MOVED publish: best-effort, logged
// but never fatal to the caller.
func (s *QueueStore) notify(ctx context.Context, eventType, itemID, from, to string) {
	if s.rdb == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"type": eventType, "itemId": itemID, "from": from, "to": to})
	if err := s.rdb.Publish(ctx, eventType, payload).Err(); err != nil {
		s.log.WithError(err).Warn("publish queue event failed")
	}
}
