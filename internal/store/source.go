package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jobmate/discovery-core/internal/model"
)

// SourceStore is the Source Registry (C7): the declarative endpoint catalog,
// its lifecycle, and fuzzy company resolution.
type SourceStore struct {
	pool pgxIface

	aggregatorDomainsMu sync.RWMutex
	aggregatorDomains   []string
	aggregatorCached    bool
}

// NewSourceStore constructs a SourceStore.
func NewSourceStore(pool pgxIface) *SourceStore {
	return &SourceStore{pool: pool}
}

// AddSource implements §4.7's add_source: rejects a name that is already
// registered, strips aggregator_domain when company_id is set
// (company-OR-aggregator invariant), and invalidates the aggregator-domain
// cache on write. (company_id, aggregator_domain) pairs are not checked for
// duplicates.
func (s *SourceStore) AddSource(ctx context.Context, src *model.Source) (string, error) {
	if src.CompanyID != nil && *src.CompanyID != "" {
		src.AggregatorDomain = nil
	}
	if err := src.Validate(); err != nil {
		return "", err
	}
	if existing, err := s.GetSourceByName(ctx, src.Name); err == nil && existing != nil {
		return "", fmt.Errorf("add_source: source name %q already exists", src.Name)
	}
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if src.Status == "" {
		src.Status = model.SourceActive
	}

	configJSON, err := json.Marshal(src.Config)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	tagsJSON, _ := json.Marshal(src.Tags)

	_, err = s.pool.Exec(ctx, `
		INSERT INTO sources (id, name, source_type, status, config, tags, company_id, aggregator_domain, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW())`,
		src.ID, src.Name, src.SourceType, src.Status, configJSON, tagsJSON, src.CompanyID, src.AggregatorDomain)
	if err != nil {
		return "", fmt.Errorf("add_source: %w", err)
	}

	s.invalidateAggregatorCache()
	return src.ID, nil
}

func (s *SourceStore) scanSource(row pgx.Row) (*model.Source, error) {
	var src model.Source
	var configRaw, tagsRaw []byte
	if err := row.Scan(
		&src.ID, &src.Name, &src.SourceType, &src.Status, &configRaw, &tagsRaw,
		&src.CompanyID, &src.AggregatorDomain, &src.LastScrapedAt, &src.LastError,
		&src.CreatedAt, &src.UpdatedAt,
	); err != nil {
		return nil, err
	}
	_ = json.Unmarshal(configRaw, &src.Config)
	_ = json.Unmarshal(tagsRaw, &src.Tags)
	return &src, nil
}

const sourceColumns = `id, name, source_type, status, config, tags, company_id, aggregator_domain,
	last_scraped_at, last_error, created_at, updated_at`

// GetSourceByID implements §4.7's get_source_by_id.
func (s *SourceStore) GetSourceByID(ctx context.Context, id string) (*model.Source, error) {
	src, err := s.scanSource(s.pool.QueryRow(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get_source_by_id: %w", err)
	}
	return src, nil
}

// GetSourceByName implements §4.7's get_source_by_name.
func (s *SourceStore) GetSourceByName(ctx context.Context, name string) (*model.Source, error) {
	src, err := s.scanSource(s.pool.QueryRow(ctx, `SELECT `+sourceColumns+` FROM sources WHERE name = $1`, name))
	if err != nil {
		return nil, fmt.Errorf("get_source_by_name: %w", err)
	}
	return src, nil
}

// GetSourceByCompanyAndAggregator implements §4.7's
// get_source_by_company_and_aggregator.
func (s *SourceStore) GetSourceByCompanyAndAggregator(ctx context.Context, companyID, aggregatorDomain string) (*model.Source, error) {
	src, err := s.scanSource(s.pool.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE company_id = $1 AND aggregator_domain = $2`,
		companyID, aggregatorDomain))
	if err != nil {
		return nil, fmt.Errorf("get_source_by_company_and_aggregator: %w", err)
	}
	return src, nil
}

// GetSourceForURL implements §4.7's get_source_for_url: the first active
// source whose config URL or API token appears in the given URL.
func (s *SourceStore) GetSourceForURL(ctx context.Context, url string) (*model.Source, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+sourceColumns+` FROM sources WHERE status = $1`, model.SourceActive)
	if err != nil {
		return nil, fmt.Errorf("get_source_for_url query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		src, err := s.scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("get_source_for_url scan: %w", err)
		}
		if cfgURL, ok := src.Config["url"].(string); ok && cfgURL != "" && strings.Contains(url, cfgURL) {
			return src, nil
		}
		if token, ok := src.Config["api_key"].(string); ok && token != "" && strings.Contains(url, token) {
			return src, nil
		}
	}
	return nil, nil
}

// GetActiveSources implements §4.7's get_active_sources(type?, tags?).
func (s *SourceStore) GetActiveSources(ctx context.Context, sourceType model.SourceType, tags []string) ([]*model.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE status = $1`
	args := []any{model.SourceActive}
	if sourceType != "" {
		query += fmt.Sprintf(" AND source_type = $%d", len(args)+1)
		args = append(args, sourceType)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get_active_sources: %w", err)
	}
	defer rows.Close()

	var out []*model.Source
	for rows.Next() {
		src, err := s.scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("get_active_sources scan: %w", err)
		}
		if len(tags) > 0 && !hasAnyTag(src.Tags, tags) {
			continue
		}
		out = append(out, src)
	}
	return out, nil
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

// DisabledSourceCandidate pairs a source with how long it has been disabled.
type DisabledSourceCandidate struct {
	Source        *model.Source
	DisabledHours float64
}

// GetDisabledSources implements §4.7's get_disabled_sources: recovery
// candidates sorted oldest-disabled-first, skipping any source carrying a
// tag in excludeTags.
func (s *SourceStore) GetDisabledSources(ctx context.Context, excludeTags []string, minDisabledHours float64, limit int) ([]DisabledSourceCandidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sourceColumns+`, disabled_at FROM sources
		WHERE status = $1
		ORDER BY disabled_at ASC
		LIMIT $2`, model.SourceDisabled, limit*4) // overselect; filter excludeTags client-side
	if err != nil {
		return nil, fmt.Errorf("get_disabled_sources: %w", err)
	}
	defer rows.Close()

	var out []DisabledSourceCandidate
	for rows.Next() {
		var src model.Source
		var configRaw, tagsRaw []byte
		var disabledAt *time.Time
		if err := rows.Scan(
			&src.ID, &src.Name, &src.SourceType, &src.Status, &configRaw, &tagsRaw,
			&src.CompanyID, &src.AggregatorDomain, &src.LastScrapedAt, &src.LastError,
			&src.CreatedAt, &src.UpdatedAt, &disabledAt,
		); err != nil {
			return nil, fmt.Errorf("get_disabled_sources scan: %w", err)
		}
		_ = json.Unmarshal(configRaw, &src.Config)
		_ = json.Unmarshal(tagsRaw, &src.Tags)

		if hasAnyTag(src.Tags, excludeTags) {
			continue
		}
		if disabledAt == nil {
			continue
		}
		hours := time.Since(*disabledAt).Hours()
		if hours < minDisabledHours {
			continue
		}
		out = append(out, DisabledSourceCandidate{Source: &src, DisabledHours: hours})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// UpdateScrapeStatus implements §4.7's update_scrape_status: validates the
// transition and writes last_scraped_at/last_error.
func (s *SourceStore) UpdateScrapeStatus(ctx context.Context, id string, newStatus model.SourceStatus, scrapeErr string) error {
	current, err := s.GetSourceByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != newStatus && !model.IsSourceTransitionAllowed(current.Status, newStatus) {
		return &model.ErrInvalidStateTransition{Entity: "source", From: string(current.Status), To: string(newStatus)}
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE sources SET status = $1, last_scraped_at = NOW(), last_error = $2, updated_at = NOW()
		WHERE id = $3`, newStatus, scrapeErr, id)
	if err != nil {
		return fmt.Errorf("update_scrape_status: %w", err)
	}
	return nil
}

// DisableSourceWithTags implements §4.7's disable_source_with_tags:
// appends a timestamped note, merges tags additively and deduplicated, sets
// disabled_at, and transitions to DISABLED. Idempotent: disabling an
// already-disabled source only merges tags/notes.
func (s *SourceStore) DisableSourceWithTags(ctx context.Context, id, reason string, tags []string) error {
	current, err := s.GetSourceByID(ctx, id)
	if err != nil {
		return err
	}

	mergedTags := mergeTags(current.Tags, tags)
	tagsJSON, _ := json.Marshal(mergedTags)

	note := fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), reason)
	if current.Config == nil {
		current.Config = map[string]any{}
	}
	notes, _ := current.Config["disabled_notes"].([]any)
	notes = append(notes, note)
	current.Config["disabled_notes"] = notes
	configJSON, err := json.Marshal(current.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if current.Status != model.SourceDisabled && !model.IsSourceTransitionAllowed(current.Status, model.SourceDisabled) {
		return &model.ErrInvalidStateTransition{Entity: "source", From: string(current.Status), To: string(model.SourceDisabled)}
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE sources
		SET status = $1, tags = $2, config = $3,
		    disabled_at = COALESCE(disabled_at, NOW()), updated_at = NOW()
		WHERE id = $4`, model.SourceDisabled, tagsJSON, configJSON, id)
	if err != nil {
		return fmt.Errorf("disable_source_with_tags: %w", err)
	}
	return nil
}

func mergeTags(existing, additional []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range append(append([]string{}, existing...), additional...) {
		lower := strings.ToLower(t)
		if t != "" && !seen[lower] {
			seen[lower] = true
			out = append(out, t)
		}
	}
	return out
}

// UpdateConfig implements §4.7's update_config.
func (s *SourceStore) UpdateConfig(ctx context.Context, id string, config map[string]any) error {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = s.pool.Exec(ctx, `UPDATE sources SET config = $1, updated_at = NOW() WHERE id = $2`, configJSON, id)
	if err != nil {
		return fmt.Errorf("update_config: %w", err)
	}
	return nil
}

// UpdateCompanyLink implements §4.7's update_company_link: self-healing FK
// repair that only fills a NULL company_id, never overwrites an existing one.
func (s *SourceStore) UpdateCompanyLink(ctx context.Context, id, companyID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sources SET company_id = $1, updated_at = NOW()
		WHERE id = $2 AND company_id IS NULL`, companyID, id)
	if err != nil {
		return fmt.Errorf("update_company_link: %w", err)
	}
	return nil
}

// refreshAggregatorDomains reloads the distinct aggregator_domain cache.
func (s *SourceStore) refreshAggregatorDomains(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT aggregator_domain FROM sources WHERE aggregator_domain IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("refresh aggregator domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return err
		}
		domains = append(domains, d)
	}

	s.aggregatorDomainsMu.Lock()
	s.aggregatorDomains = domains
	s.aggregatorCached = true
	s.aggregatorDomainsMu.Unlock()
	return nil
}

func (s *SourceStore) invalidateAggregatorCache() {
	s.aggregatorDomainsMu.Lock()
	s.aggregatorCached = false
	s.aggregatorDomainsMu.Unlock()
}

// IsJobBoardURL implements §4.7's is_job_board_url: a sub-domain suffix
// match against the cached aggregator domains.
func (s *SourceStore) IsJobBoardURL(ctx context.Context, url string) (bool, error) {
	domain, err := s.GetAggregatorDomainForURL(ctx, url)
	if err != nil {
		return false, err
	}
	return domain != "", nil
}

// GetAggregatorDomainForURL implements §4.7's get_aggregator_domain_for_url.
func (s *SourceStore) GetAggregatorDomainForURL(ctx context.Context, url string) (string, error) {
	s.aggregatorDomainsMu.RLock()
	cached := s.aggregatorCached
	s.aggregatorDomainsMu.RUnlock()
	if !cached {
		if err := s.refreshAggregatorDomains(ctx); err != nil {
			return "", err
		}
	}

	s.aggregatorDomainsMu.RLock()
	defer s.aggregatorDomainsMu.RUnlock()
	host := strings.ToLower(url)
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	for _, d := range s.aggregatorDomains {
		ld := strings.ToLower(d)
		if ld != "" && (host == ld || strings.HasSuffix(host, "."+ld)) {
			return d, nil
		}
	}
	return "", nil
}

// ResolveCompanyFromSource implements §4.7's resolve_company_from_source:
// Tier 1 direct source_id lookup, Tier 2 fuzzy match against all source
// names requiring >= 60% overlap and >= 4 characters to claim a match.
func (s *SourceStore) ResolveCompanyFromSource(ctx context.Context, sourceID, companyNameRaw string) (*string, error) {
	if sourceID != "" {
		src, err := s.GetSourceByID(ctx, sourceID)
		if err == nil && src != nil && src.CompanyID != nil {
			return src.CompanyID, nil
		}
	}
	if companyNameRaw == "" {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `SELECT name, company_id FROM sources WHERE company_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("resolve_company_from_source query: %w", err)
	}
	defer rows.Close()

	needle := strings.ToLower(companyNameRaw)
	var best *string
	var bestScore float64
	for rows.Next() {
		var name string
		var companyID string
		if err := rows.Scan(&name, &companyID); err != nil {
			return nil, fmt.Errorf("resolve_company_from_source scan: %w", err)
		}
		score := nameOverlapScore(needle, strings.ToLower(name))
		if score > bestScore {
			bestScore = score
			id := companyID
			best = &id
		}
	}
	if best != nil && bestScore >= 0.6 && len(needle) >= 4 {
		return best, nil
	}
	return nil, nil
}

// nameOverlapScore is a normalized, length-aware partial-overlap score: the
// fraction of the shorter string's runes that also occur (in order, as a
// substring walk) within the longer string.
func nameOverlapScore(a, b string) float64 {
	shorter, longer := a, b
	if len(longer) < len(shorter) {
		shorter, longer = longer, shorter
	}
	if shorter == "" {
		return 0
	}
	if strings.Contains(longer, shorter) {
		return 1.0
	}
	matched := 0
	li := 0
	for _, r := range shorter {
		idx := strings.IndexRune(longer[li:], r)
		if idx == -1 {
			continue
		}
		matched++
		li += idx + 1
	}
	return float64(matched) / float64(len([]rune(shorter)))
}
