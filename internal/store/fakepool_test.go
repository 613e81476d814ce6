package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jobmate/discovery-core/internal/model"
)

// fakeQueueRow is the in-memory representation of one queue_items row,
// matching store.QueueStore's column set.
type fakeQueueRow struct {
	id, itemType, status, url, companyName        string
	companyID, sourceID                            *string
	resultMessage, errorDetails, pipelineStage     string
	pipelineState, scrapedData                     []byte
	trackingID                                     string
	ancestryChain                                  []byte
	spawnDepth, maxSpawnDepth, attemptCount         int
	parentItemID                                   *string
	leaseExpiresAt                                  *time.Time
	statusHistory                                  []byte
	createdAt, updatedAt                           time.Time
}

type fakeSourceRow struct {
	id, name, sourceType, status string
	config, tags                 []byte
	companyID, aggregatorDomain  *string
	lastScrapedAt                *time.Time
	lastError                    string
	disabledAt                   *time.Time
	createdAt, updatedAt         time.Time
}

type fakeCompanyRow struct {
	id, name, website, about, culture, mission, headquarters string
	employeeCount                                            *int
	techStack                                                []byte
	isRemoteFirst                                            bool
	industry, tier                                           string
	priorityScore                                            *float64
	createdAt, updatedAt                                      time.Time
}

// fakePool is a hand-rolled, in-memory stand-in for *pgxpool.Pool scoped to
// exactly the statements store's business logic issues. It matches on
// distinguishing SQL substrings rather than parsing SQL, which is brittle
// against query changes but keeps the business logic (CAS transitions,
// spawn safety, upsert merge) independently testable without a real
// database, per the narrow pgxIface boundary this package exposes.
type fakePool struct {
	queue     map[string]*fakeQueueRow
	sources   map[string]*fakeSourceRow
	companies map[string]*fakeCompanyRow
	seq       int
}

func newFakePool() *fakePool {
	return &fakePool{queue: map[string]*fakeQueueRow{}, sources: map[string]*fakeSourceRow{}, companies: map[string]*fakeCompanyRow{}}
}

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

func errRow(err error) fakeRow {
	return fakeRow{scan: func(dest ...any) error { return err }}
}

type fakeRows struct {
	items []func(dest ...any) error
	idx   int
}

func (r *fakeRows) Next() bool                        { return r.idx < len(r.items) }
func (r *fakeRows) Scan(dest ...any) error             { err := r.items[r.idx](dest...); r.idx++; return err }
func (r *fakeRows) Close()                             {}
func (r *fakeRows) Err() error                         { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag      { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)             { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                { return nil }
func (r *fakeRows) Conn() *pgx.Conn                    { return nil }

func assignStr(dst any, v string) {
	if p, ok := dst.(*string); ok {
		*p = v
	}
}

func (p *fakePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	switch {
	case strings.Contains(sql, "SELECT id FROM queue_items"):
		wantStatus, _ := args[0].(model.ItemStatus)
		var best *fakeQueueRow
		for _, q := range p.queue {
			if q.status != string(wantStatus) {
				continue
			}
			if best == nil || q.createdAt.Before(best.createdAt) {
				best = q
			}
		}
		if best == nil {
			return errRow(pgx.ErrNoRows)
		}
		id := best.id
		return fakeRow{scan: func(dest ...any) error {
			assignStr(dest[0], id)
			return nil
		}}

	case strings.Contains(sql, "FROM queue_items WHERE id ="):
		id, _ := args[0].(string)
		q, ok := p.queue[id]
		if !ok {
			return errRow(pgx.ErrNoRows)
		}
		return fakeRow{scan: func(dest ...any) error { return scanQueueRow(q, dest...) }}

	case strings.Contains(sql, "SELECT EXISTS(SELECT 1 FROM queue_items WHERE url ="):
		url, _ := args[0].(string)
		found := false
		for _, q := range p.queue {
			if q.url == url {
				found = true
				break
			}
		}
		return fakeRow{scan: func(dest ...any) error {
			if b, ok := dest[0].(*bool); ok {
				*b = found
			}
			return nil
		}}

	case strings.Contains(sql, "SELECT COUNT(*) FROM queue_items"):
		itemType, _ := args[0].(model.ItemType)
		url, _ := args[1].(string)
		companyID, _ := args[2].(string)
		count := 0
		for _, q := range p.queue {
			if q.itemType == string(itemType) && q.url == url &&
				derefOr(q.companyID, "") == companyID &&
				(q.status == string(model.StatusPending) || q.status == string(model.StatusProcessing)) {
				count++
			}
		}
		return fakeRow{scan: func(dest ...any) error {
			if i, ok := dest[0].(*int); ok {
				*i = count
			}
			return nil
		}}

	case strings.Contains(sql, "FROM sources WHERE id ="):
		id, _ := args[0].(string)
		s, ok := p.sources[id]
		if !ok {
			return errRow(pgx.ErrNoRows)
		}
		return fakeRow{scan: func(dest ...any) error { return scanSourceRow(s, dest...) }}

	case strings.Contains(sql, "FROM sources WHERE name ="):
		name, _ := args[0].(string)
		for _, s := range p.sources {
			if s.name == name {
				return fakeRow{scan: func(dest ...any) error { return scanSourceRow(s, dest...) }}
			}
		}
		return errRow(pgx.ErrNoRows)

	case strings.Contains(sql, "FROM companies WHERE lower(name)"):
		name, _ := args[0].(string)
		for _, c := range p.companies {
			if strings.EqualFold(c.name, name) {
				return fakeRow{scan: func(dest ...any) error { return scanCompanyRow(c, dest...) }}
			}
		}
		return errRow(pgx.ErrNoRows)

	case strings.Contains(sql, "FROM companies WHERE id ="):
		id, _ := args[0].(string)
		c, ok := p.companies[id]
		if !ok {
			return errRow(pgx.ErrNoRows)
		}
		return fakeRow{scan: func(dest ...any) error { return scanCompanyRow(c, dest...) }}
	}
	return errRow(pgx.ErrNoRows)
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

func scanQueueRow(q *fakeQueueRow, dest ...any) error {
	*(dest[0].(*string)) = q.id
	*(dest[1].(*model.ItemType)) = model.ItemType(q.itemType)
	*(dest[2].(*model.ItemStatus)) = model.ItemStatus(q.status)
	*(dest[3].(*string)) = q.url
	*(dest[4].(*string)) = q.companyName
	*(dest[5].(**string)) = q.companyID
	*(dest[6].(**string)) = q.sourceID
	*(dest[7].(*string)) = q.resultMessage
	*(dest[8].(*string)) = q.errorDetails
	*(dest[9].(*string)) = q.pipelineStage
	*(dest[10].(*[]byte)) = q.pipelineState
	*(dest[11].(*[]byte)) = q.scrapedData
	*(dest[12].(*string)) = q.trackingID
	*(dest[13].(*[]byte)) = q.ancestryChain
	*(dest[14].(*int)) = q.spawnDepth
	*(dest[15].(*int)) = q.maxSpawnDepth
	*(dest[16].(**string)) = q.parentItemID
	*(dest[17].(*int)) = q.attemptCount
	*(dest[18].(**time.Time)) = q.leaseExpiresAt
	*(dest[19].(*time.Time)) = q.createdAt
	*(dest[20].(*time.Time)) = q.updatedAt
	return nil
}

func scanSourceRow(s *fakeSourceRow, dest ...any) error {
	*(dest[0].(*string)) = s.id
	*(dest[1].(*string)) = s.name
	*(dest[2].(*model.SourceType)) = model.SourceType(s.sourceType)
	*(dest[3].(*model.SourceStatus)) = model.SourceStatus(s.status)
	*(dest[4].(*[]byte)) = s.config
	*(dest[5].(*[]byte)) = s.tags
	*(dest[6].(**string)) = s.companyID
	*(dest[7].(**string)) = s.aggregatorDomain
	*(dest[8].(**time.Time)) = s.lastScrapedAt
	*(dest[9].(*string)) = s.lastError
	*(dest[10].(*time.Time)) = s.createdAt
	*(dest[11].(*time.Time)) = s.updatedAt
	return nil
}

func scanCompanyRow(c *fakeCompanyRow, dest ...any) error {
	*(dest[0].(*string)) = c.id
	*(dest[1].(*string)) = c.name
	*(dest[2].(*string)) = c.website
	*(dest[3].(*string)) = c.about
	*(dest[4].(*string)) = c.culture
	*(dest[5].(*string)) = c.mission
	*(dest[6].(*string)) = c.headquarters
	*(dest[7].(**int)) = c.employeeCount
	*(dest[8].(*[]byte)) = c.techStack
	*(dest[9].(*bool)) = c.isRemoteFirst
	*(dest[10].(*string)) = c.industry
	*(dest[11].(*string)) = c.tier
	*(dest[12].(**float64)) = c.priorityScore
	*(dest[13].(*time.Time)) = c.createdAt
	*(dest[14].(*time.Time)) = c.updatedAt
	return nil
}

func (p *fakePool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	switch {
	case strings.Contains(sql, "lease_expires_at < NOW()"):
		wantStatus, _ := args[0].(model.ItemStatus)
		var ids []string
		for id, q := range p.queue {
			if q.status != string(wantStatus) || q.leaseExpiresAt == nil {
				continue
			}
			if q.leaseExpiresAt.Before(time.Now()) {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		var fns []func(dest ...any) error
		for _, id := range ids {
			id := id
			fns = append(fns, func(dest ...any) error {
				assignStr(dest[0], id)
				return nil
			})
		}
		return &fakeRows{items: fns}, nil

	case strings.Contains(sql, "FROM sources WHERE status ="):
		status, _ := args[0].(model.SourceStatus)
		var wantType model.SourceType
		if len(args) > 1 {
			wantType, _ = args[1].(model.SourceType)
		}
		var ids []string
		for id, s := range p.sources {
			if s.status != string(status) {
				continue
			}
			if wantType != "" && s.sourceType != string(wantType) {
				continue
			}
			ids = append(ids, id)
		}
		sort.Strings(ids)
		var fns []func(dest ...any) error
		for _, id := range ids {
			s := p.sources[id]
			fns = append(fns, func(dest ...any) error { return scanSourceRow(s, dest...) })
		}
		return &fakeRows{items: fns}, nil

	case strings.Contains(sql, "SELECT DISTINCT aggregator_domain FROM sources"):
		seen := map[string]bool{}
		var domains []string
		for _, s := range p.sources {
			if s.aggregatorDomain != nil && *s.aggregatorDomain != "" && !seen[*s.aggregatorDomain] {
				seen[*s.aggregatorDomain] = true
				domains = append(domains, *s.aggregatorDomain)
			}
		}
		sort.Strings(domains)
		var fns []func(dest ...any) error
		for _, d := range domains {
			d := d
			fns = append(fns, func(dest ...any) error {
				*(dest[0].(*string)) = d
				return nil
			})
		}
		return &fakeRows{items: fns}, nil

	case strings.Contains(sql, "SELECT name, company_id FROM sources"):
		var fns []func(dest ...any) error
		for _, s := range p.sources {
			if s.companyID == nil {
				continue
			}
			s := s
			fns = append(fns, func(dest ...any) error {
				*(dest[0].(*string)) = s.name
				*(dest[1].(*string)) = *s.companyID
				return nil
			})
		}
		return &fakeRows{items: fns}, nil
	}
	return &fakeRows{}, nil
}

func (p *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "INSERT INTO queue_items"):
		p.insertQueueItem(args)
		return pgconn.CommandTag{}, nil

	case strings.Contains(sql, "UPDATE queue_items") && strings.Contains(sql, "lease_expires_at = NULL"):
		status, _ := args[0].(model.ItemStatus)
		id, _ := args[2].(string)
		wantStatus, _ := args[3].(model.ItemStatus)
		q, ok := p.queue[id]
		if !ok || q.status != string(wantStatus) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		q.status = string(status)
		q.leaseExpiresAt = nil
		q.attemptCount++
		q.updatedAt = time.Now()
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "UPDATE queue_items") && strings.Contains(sql, "attempt_count = attempt_count + 1"):
		status, _ := args[0].(model.ItemStatus)
		leaseAt, _ := args[1].(time.Time)
		id, _ := args[2].(string)
		wantStatus, _ := args[3].(model.ItemStatus)
		q, ok := p.queue[id]
		if !ok || q.status != string(wantStatus) {
			return pgconn.CommandTag{}, nil
		}
		q.status = string(status)
		q.leaseExpiresAt = &leaseAt
		q.attemptCount++
		q.updatedAt = time.Now()
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "UPDATE queue_items") && strings.Contains(sql, "result_message = $2"):
		status, _ := args[0].(model.ItemStatus)
		message, _ := args[1].(string)
		errDetails, _ := args[2].(string)
		stage, _ := args[3].(string)
		var scrapedJSON []byte
		if args[4] != nil {
			scrapedJSON, _ = args[4].([]byte)
		}
		id, _ := args[6].(string)
		q, ok := p.queue[id]
		if !ok {
			return pgconn.CommandTag{}, nil
		}
		q.status = string(status)
		q.resultMessage = message
		q.errorDetails = errDetails
		q.pipelineStage = stage
		if scrapedJSON != nil {
			q.scrapedData = scrapedJSON
		}
		q.updatedAt = time.Now()
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "UPDATE queue_items") && strings.Contains(sql, "pipeline_state = $3"):
		stage, _ := args[1].(string)
		stateJSON, _ := args[2].([]byte)
		id, _ := args[4].(string)
		wantStatus, _ := args[5].(model.ItemStatus)
		q, ok := p.queue[id]
		if !ok || q.status != string(wantStatus) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		q.status = string(model.StatusPending)
		q.pipelineStage = stage
		q.pipelineState = stateJSON
		q.updatedAt = time.Now()
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "INSERT INTO sources"):
		p.insertSource(args)
		return pgconn.CommandTag{}, nil

	case strings.Contains(sql, "UPDATE sources SET status = $1, last_scraped_at"):
		status, _ := args[0].(model.SourceStatus)
		lastErr, _ := args[1].(string)
		id, _ := args[2].(string)
		if s, ok := p.sources[id]; ok {
			s.status = string(status)
			s.lastError = lastErr
		}
		return pgconn.CommandTag{}, nil

	case strings.Contains(sql, "UPDATE sources") && strings.Contains(sql, "disabled_at = COALESCE"):
		tagsJSON, _ := args[1].([]byte)
		configJSON, _ := args[2].([]byte)
		id, _ := args[3].(string)
		if s, ok := p.sources[id]; ok {
			s.status = string(model.SourceDisabled)
			s.tags = tagsJSON
			s.config = configJSON
			if s.disabledAt == nil {
				now := time.Now()
				s.disabledAt = &now
			}
		}
		return pgconn.CommandTag{}, nil

	case strings.Contains(sql, "UPDATE sources SET config"):
		configJSON, _ := args[0].([]byte)
		id, _ := args[1].(string)
		if s, ok := p.sources[id]; ok {
			s.config = configJSON
		}
		return pgconn.CommandTag{}, nil

	case strings.Contains(sql, "UPDATE sources SET company_id"):
		companyID, _ := args[0].(string)
		id, _ := args[1].(string)
		if s, ok := p.sources[id]; ok && s.companyID == nil {
			s.companyID = &companyID
		}
		return pgconn.CommandTag{}, nil

	case strings.Contains(sql, "INSERT INTO companies"):
		p.insertCompany(args)
		return pgconn.CommandTag{}, nil

	case strings.Contains(sql, "UPDATE companies SET"):
		website, _ := args[0].(string)
		about, _ := args[1].(string)
		culture, _ := args[2].(string)
		mission, _ := args[3].(string)
		hq, _ := args[4].(string)
		employeeCount, _ := args[5].(*int)
		techStackJSON, _ := args[6].([]byte)
		remoteFirst, _ := args[7].(bool)
		industry, _ := args[8].(string)
		tier, _ := args[9].(string)
		priorityScore, _ := args[10].(*float64)
		id, _ := args[11].(string)
		if c, ok := p.companies[id]; ok {
			c.website, c.about, c.culture, c.mission, c.headquarters = website, about, culture, mission, hq
			c.employeeCount = employeeCount
			c.techStack = techStackJSON
			c.isRemoteFirst = remoteFirst
			c.industry = industry
			c.tier = tier
			c.priorityScore = priorityScore
		}
		return pgconn.CommandTag{}, nil

	case strings.Contains(sql, "INSERT INTO matches"):
		return pgconn.CommandTag{}, nil
	}
	return pgconn.CommandTag{}, nil
}

func (p *fakePool) insertQueueItem(args []any) {
	q := &fakeQueueRow{
		id:           args[0].(string),
		itemType:     string(args[1].(model.ItemType)),
		status:       string(args[2].(model.ItemStatus)),
		url:          args[3].(string),
		companyName:  args[4].(string),
		trackingID:   args[7].(string),
		spawnDepth:   args[9].(int),
		maxSpawnDepth: args[10].(int),
		pipelineStage: args[12].(string),
		createdAt:    time.Now().Add(time.Duration(p.seq) * time.Millisecond),
		updatedAt:    time.Now(),
	}
	p.seq++
	if cid, ok := args[5].(*string); ok {
		q.companyID = cid
	}
	if sid, ok := args[6].(*string); ok {
		q.sourceID = sid
	}
	if ancestry, ok := args[8].([]byte); ok {
		q.ancestryChain = ancestry
	}
	if pid, ok := args[11].(*string); ok {
		q.parentItemID = pid
	}
	if ps, ok := args[13].([]byte); ok {
		q.pipelineState = ps
	}
	p.queue[q.id] = q
}

func (p *fakePool) insertSource(args []any) {
	s := &fakeSourceRow{
		id:         args[0].(string),
		name:       args[1].(string),
		sourceType: string(args[2].(model.SourceType)),
		status:     string(args[3].(model.SourceStatus)),
		config:     args[4].([]byte),
		tags:       args[5].([]byte),
		createdAt:  time.Now(),
		updatedAt:  time.Now(),
	}
	if cid, ok := args[6].(*string); ok {
		s.companyID = cid
	}
	if ad, ok := args[7].(*string); ok {
		s.aggregatorDomain = ad
	}
	p.sources[s.id] = s
}

func (p *fakePool) insertCompany(args []any) {
	c := &fakeCompanyRow{
		id:        args[0].(string),
		name:      args[1].(string),
		website:   args[2].(string),
		about:     args[3].(string),
		culture:   args[4].(string),
		mission:   args[5].(string),
		headquarters: args[6].(string),
		techStack: args[8].([]byte),
		isRemoteFirst: args[9].(bool),
		industry:  args[10].(string),
		tier:      args[11].(string),
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	if ec, ok := args[7].(*int); ok {
		c.employeeCount = ec
	}
	if ps, ok := args[12].(*float64); ok {
		c.priorityScore = ps
	}
	p.companies[c.id] = c
}

func (p *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, nil
}
