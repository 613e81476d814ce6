package processors

import (
	"context"
	"fmt"
	"strings"

	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/store"
)

// fakeQueue is an in-memory stand-in for the Queue Manager (C8), just
// enough of its state machine to exercise the processors without a
// database: items keyed by ID, one status_history-less record per item.
type fakeQueue struct {
	items   map[string]*model.QueueItem
	nextID  int
	spawned []*model.QueueItem
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{items: map[string]*model.QueueItem{}}
}

func (q *fakeQueue) put(item *model.QueueItem) string {
	q.nextID++
	if item.ID == "" {
		item.ID = fmt.Sprintf("item-%d", q.nextID)
	}
	cp := *item
	q.items[cp.ID] = &cp
	return cp.ID
}

func (q *fakeQueue) GetByID(ctx context.Context, id string) (*model.QueueItem, error) {
	item, ok := q.items[id]
	if !ok {
		return nil, fmt.Errorf("no such item %s", id)
	}
	cp := *item
	return &cp, nil
}

func (q *fakeQueue) UpdateStatus(ctx context.Context, id string, newStatus model.ItemStatus, params store.UpdateStatusParams) error {
	item, ok := q.items[id]
	if !ok {
		return fmt.Errorf("no such item %s", id)
	}
	item.Status = newStatus
	item.ResultMessage = params.Message
	item.ErrorDetails = params.ErrorDetails
	if params.PipelineStage != "" {
		item.PipelineStage = params.PipelineStage
	}
	if params.ScrapedData != nil {
		item.ScrapedData = params.ScrapedData
	}
	return nil
}

func (q *fakeQueue) RequeueWithState(ctx context.Context, id string, newState map[string]any, nextStage string) error {
	item, ok := q.items[id]
	if !ok {
		return fmt.Errorf("no such item %s", id)
	}
	if item.Status != model.StatusProcessing {
		return fmt.Errorf("cannot requeue from %s", item.Status)
	}
	item.Status = model.StatusPending
	item.PipelineState = newState
	item.PipelineStage = nextStage
	return nil
}

func (q *fakeQueue) SpawnItemSafely(ctx context.Context, parent, child *model.QueueItem) (string, error) {
	q.spawned = append(q.spawned, child)
	id := q.put(child)
	return id, nil
}

func (q *fakeQueue) URLExistsInQueue(ctx context.Context, url string) (bool, error) {
	for _, item := range q.items {
		if item.URL == url {
			return true, nil
		}
	}
	return false, nil
}

func (q *fakeQueue) AddItem(ctx context.Context, item *model.QueueItem) (string, error) {
	return q.put(item), nil
}

// fakeSources is an in-memory stand-in for the Source Registry (C7).
type fakeSources struct {
	byID          map[string]*model.Source
	jobBoardURLs  map[string]bool
	disabledNotes map[string]string
}

func newFakeSources() *fakeSources {
	return &fakeSources{byID: map[string]*model.Source{}, jobBoardURLs: map[string]bool{}}
}

func (s *fakeSources) add(src *model.Source) {
	if src.ID == "" {
		src.ID = fmt.Sprintf("source-%d", len(s.byID)+1)
	}
	s.byID[src.ID] = src
}

func (s *fakeSources) GetSourceForURL(ctx context.Context, url string) (*model.Source, error) {
	for _, src := range s.byID {
		if cfgURL, ok := src.Config["url"].(string); ok && cfgURL != "" && strings.Contains(url, cfgURL) {
			return src, nil
		}
	}
	return nil, nil
}

func (s *fakeSources) GetSourceByID(ctx context.Context, id string) (*model.Source, error) {
	src, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return src, nil
}

func (s *fakeSources) GetSourceByCompanyAndAggregator(ctx context.Context, companyID, aggregatorDomain string) (*model.Source, error) {
	for _, src := range s.byID {
		if src.CompanyID != nil && *src.CompanyID == companyID && src.AggregatorDomain != nil && *src.AggregatorDomain == aggregatorDomain {
			return src, nil
		}
	}
	return nil, nil
}

func (s *fakeSources) AddSource(ctx context.Context, src *model.Source) (string, error) {
	if err := src.Validate(); err != nil {
		return "", err
	}
	s.add(src)
	return src.ID, nil
}

func (s *fakeSources) IsJobBoardURL(ctx context.Context, url string) (bool, error) {
	return s.jobBoardURLs[url], nil
}

func (s *fakeSources) UpdateScrapeStatus(ctx context.Context, id string, newStatus model.SourceStatus, scrapeErr string) error {
	if src, ok := s.byID[id]; ok {
		src.Status = newStatus
		src.LastError = scrapeErr
	}
	return nil
}

func (s *fakeSources) UpdateCompanyLink(ctx context.Context, id, companyID string) error {
	if src, ok := s.byID[id]; ok && src.CompanyID == nil {
		src.CompanyID = &companyID
	}
	return nil
}

func (s *fakeSources) DisableSourceWithTags(ctx context.Context, id, reason string, tags []string) error {
	if s.disabledNotes == nil {
		s.disabledNotes = map[string]string{}
	}
	s.disabledNotes[id] = reason
	if src, ok := s.byID[id]; ok {
		src.Status = model.SourceDisabled
	}
	return nil
}

// fakeCompanies is an in-memory stand-in for the Company Store.
type fakeCompanies struct {
	byName map[string]*model.Company
}

func newFakeCompanies() *fakeCompanies {
	return &fakeCompanies{byName: map[string]*model.Company{}}
}

func (c *fakeCompanies) GetCompanyByName(ctx context.Context, name string) (*model.Company, error) {
	if existing, ok := c.byName[name]; ok {
		return existing, nil
	}
	return nil, nil
}

func (c *fakeCompanies) GetCompanyByID(ctx context.Context, id string) (*model.Company, error) {
	for _, company := range c.byName {
		if company.ID == id {
			return company, nil
		}
	}
	return nil, nil
}

func (c *fakeCompanies) UpsertCompany(ctx context.Context, company *model.Company) (string, error) {
	if company.Name == "" {
		return "", fmt.Errorf("company name required")
	}
	if existing, ok := c.byName[company.Name]; ok {
		company.ID = existing.ID
	} else if company.ID == "" {
		company.ID = fmt.Sprintf("company-%d", len(c.byName)+1)
	}
	cp := *company
	c.byName[company.Name] = &cp
	return cp.ID, nil
}

// fakeMatches is an in-memory stand-in for the Match Store.
type fakeMatches struct {
	saved []*model.Match
}

func (m *fakeMatches) SaveMatch(ctx context.Context, match *model.Match) (string, error) {
	id := fmt.Sprintf("match-%d", len(m.saved)+1)
	cp := *match
	cp.ID = id
	m.saved = append(m.saved, &cp)
	return id, nil
}
