package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jobmate/discovery-core/internal/model"
)

// CompanyStore persists enriched Company records (§3), independent of any
// Source that references them.
type CompanyStore struct {
	pool pgxIface
}

// NewCompanyStore constructs a CompanyStore.
func NewCompanyStore(pool pgxIface) *CompanyStore {
	return &CompanyStore{pool: pool}
}

const companyColumns = `id, name, website, about, culture, mission, headquarters,
	employee_count, tech_stack, is_remote_first, industry, tier, priority_score,
	created_at, updated_at`

func (s *CompanyStore) scanCompany(row pgx.Row) (*model.Company, error) {
	var c model.Company
	var techStackRaw []byte
	if err := row.Scan(
		&c.ID, &c.Name, &c.Website, &c.About, &c.Culture, &c.Mission, &c.Headquarters,
		&c.EmployeeCount, &techStackRaw, &c.IsRemoteFirst, &c.Industry, &c.Tier, &c.PriorityScore,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	_ = json.Unmarshal(techStackRaw, &c.TechStack)
	return &c, nil
}

// GetCompanyByName is a case-insensitive exact lookup, the primary key the
// COMPANY processor and the JOB processor's ANALYZE stage resolve against
// (§4.9.2, §4.11).
func (s *CompanyStore) GetCompanyByName(ctx context.Context, name string) (*model.Company, error) {
	c, err := s.scanCompany(s.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE lower(name) = lower($1)`, name))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get_company_by_name: %w", err)
	}
	return c, nil
}

// GetCompanyByID loads a single company by id.
func (s *CompanyStore) GetCompanyByID(ctx context.Context, id string) (*model.Company, error) {
	c, err := s.scanCompany(s.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get_company_by_id: %w", err)
	}
	return c, nil
}

// UpsertCompany implements the COMPANY processor's persist step (§4.9.2.6):
// insert a new record, or update the existing one by name, overwriting every
// stored field with the caller's values (empty ones included); no merge with
// the stored record happens here.
func (s *CompanyStore) UpsertCompany(ctx context.Context, c *model.Company) (string, error) {
	if c.Name == "" {
		return "", &model.ErrInvalidConfig{Msg: "company name is required to persist a company record"}
	}

	existing, err := s.GetCompanyByName(ctx, c.Name)
	if err != nil {
		return "", err
	}

	techStackJSON, err := json.Marshal(c.TechStack)
	if err != nil {
		return "", fmt.Errorf("marshal tech_stack: %w", err)
	}

	if existing == nil {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		_, err = s.pool.Exec(ctx, `
			INSERT INTO companies (
				id, name, website, about, culture, mission, headquarters,
				employee_count, tech_stack, is_remote_first, industry, tier, priority_score,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW(),NOW())`,
			c.ID, c.Name, c.Website, c.About, c.Culture, c.Mission, c.Headquarters,
			c.EmployeeCount, techStackJSON, c.IsRemoteFirst, c.Industry, c.Tier, c.PriorityScore,
		)
		if err != nil {
			return "", fmt.Errorf("upsert_company insert: %w", err)
		}
		return c.ID, nil
	}

	c.ID = existing.ID
	_, err = s.pool.Exec(ctx, `
		UPDATE companies SET
			website = $1, about = $2, culture = $3, mission = $4, headquarters = $5,
			employee_count = $6, tech_stack = $7, is_remote_first = $8, industry = $9,
			tier = $10, priority_score = $11, updated_at = NOW()
		WHERE id = $12`,
		c.Website, c.About, c.Culture, c.Mission, c.Headquarters,
		c.EmployeeCount, techStackJSON, c.IsRemoteFirst, c.Industry,
		c.Tier, c.PriorityScore, c.ID,
	)
	if err != nil {
		return "", fmt.Errorf("upsert_company update: %w", err)
	}
	return c.ID, nil
}

// MatchStore persists scored JOB outcomes (§8 invariant S1).
type MatchStore struct {
	pool pgxIface
}

// NewMatchStore constructs a MatchStore.
func NewMatchStore(pool pgxIface) *MatchStore {
	return &MatchStore{pool: pool}
}

// SaveMatch implements the JOB processor's SAVE stage persist (§4.9.1).
func (s *MatchStore) SaveMatch(ctx context.Context, m *model.Match) (string, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	breakdownJSON, err := json.Marshal(m.Breakdown)
	if err != nil {
		return "", fmt.Errorf("marshal breakdown: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO matches (id, queue_item_id, company_id, url, title, match_score, breakdown, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`,
		m.ID, m.QueueItemID, m.CompanyID, m.URL, m.Title, m.MatchScore, breakdownJSON)
	if err != nil {
		return "", fmt.Errorf("save_match: %w", err)
	}
	return m.ID, nil
}
