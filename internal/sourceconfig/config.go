// Package sourceconfig implements C1: the declarative Source-config model
// that drives the generic scraper (internal/scraper), its field-path
// grammar, and its round-trip (to-dict/from-dict) serialization.
package sourceconfig

import (
	"fmt"
	"strings"

	"github.com/jobmate/discovery-core/internal/model"
)

// AuthType is how a Source authenticates against its API endpoint.
type AuthType string

const (
	AuthBearer AuthType = "bearer"
	AuthHeader AuthType = "header"
	AuthQuery  AuthType = "query"
)

// CompanyExtraction controls how the company name is derived when absent
// from the transport's native fields (§4.2.2).
type CompanyExtraction string

const (
	ExtractFromTitle       CompanyExtraction = "from_title"
	ExtractFromDescription CompanyExtraction = "from_description"
	ExtractNone            CompanyExtraction = "none"
)

// FieldMap is the set of canonical output keys a Source-config maps to
// transport-specific field paths (§4.1, §4.2.2).
type FieldMap struct {
	Title       string
	URL         string
	Company     string
	Location    string
	Description string
	PostedDate  string
	Salary      string
	Tags        string
	Metadata    string
}

// Config is the complete contract to run one scrape (C1).
type Config struct {
	Type       model.SourceType
	URL        string
	Method     string
	PostBody   map[string]any
	Headers    map[string]string
	ResponsePath string
	Fields     FieldMap
	JobSelector string
	BaseURL    string

	PaginationType string
	PageSize       int
	MaxPages       int

	SalaryMinField string
	SalaryMaxField string

	CompanyName         string
	CompanyFilter       string
	CompanyFilterParam  string
	CompanyExtraction   CompanyExtraction

	AuthType AuthType
	AuthParam string
	APIKey    string

	RequiresJS      bool
	RenderWaitFor   string
	RenderTimeoutMs int

	FollowDetail bool

	// Health fields, carried inside config per §3.
	DisabledNotes string
	DisabledTags  []string
	DisabledAt    string
}

// Validate fails per C1's rules (§4.1).
func (c *Config) Validate() error {
	switch c.Type {
	case model.SourceAPI, model.SourceRSS, model.SourceHTML:
	default:
		return &model.ErrInvalidConfig{Msg: fmt.Sprintf("unknown source type %q", c.Type)}
	}
	if strings.TrimSpace(c.URL) == "" {
		return &model.ErrInvalidConfig{Msg: "url is required"}
	}
	if c.Fields.Title == "" && c.Fields.URL == "" {
		return &model.ErrInvalidConfig{Msg: "fields must include at least title or url"}
	}
	if c.Type == model.SourceHTML && c.JobSelector == "" {
		return &model.ErrInvalidConfig{Msg: "html sources require job_selector"}
	}
	if c.RequiresJS && c.Type != model.SourceHTML {
		return &model.ErrInvalidConfig{Msg: "requires_js is only valid on html sources"}
	}
	if c.RequiresJS && c.RenderTimeoutMs != 0 && c.RenderTimeoutMs < 1000 {
		return &model.ErrInvalidConfig{Msg: "render_timeout_ms must be >= 1000"}
	}
	return nil
}

// legacyFieldAliases maps legacy/alternate keys accepted by FromDict onto
// their canonical Config field, the same tolerance internal/config gives
// multiple env var spellings.
var legacyFieldAliases = map[string]string{
	"base_url":     "base_url",
	"api_endpoint": "url",
	"title_field":  "title",
	"link_field":   "url",
}

// FromDict builds a Config from a loosely-typed map, accepting a superset
// of legacy field names and normalizing them (§4.1).
func FromDict(m map[string]any) Config {
	c := Config{}

	getStr := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := m[k]; ok {
				if s, ok := v.(string); ok && s != "" {
					return s
				}
			}
		}
		return ""
	}
	getBool := func(k string) bool {
		if v, ok := m[k]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getInt := func(k string) int {
		if v, ok := m[k]; ok {
			switch n := v.(type) {
			case int:
				return n
			case float64:
				return int(n)
			}
		}
		return 0
	}

	c.Type = model.SourceType(getStr("type", "source_type"))
	c.URL = getStr("url", "api_endpoint")
	c.Method = getStr("method")
	c.ResponsePath = getStr("response_path")
	c.JobSelector = getStr("job_selector")
	c.BaseURL = getStr("base_url")
	c.PaginationType = getStr("pagination_type")
	c.PageSize = getInt("page_size")
	c.MaxPages = getInt("max_pages")
	c.SalaryMinField = getStr("salary_min_field")
	c.SalaryMaxField = getStr("salary_max_field")
	c.CompanyName = getStr("company_name")
	c.CompanyFilter = getStr("company_filter")
	c.CompanyFilterParam = getStr("company_filter_param")
	c.CompanyExtraction = CompanyExtraction(getStr("company_extraction"))
	c.AuthType = AuthType(getStr("auth_type"))
	c.AuthParam = getStr("auth_param")
	c.APIKey = getStr("api_key")
	c.RequiresJS = getBool("requires_js")
	c.RenderWaitFor = getStr("render_wait_for")
	c.RenderTimeoutMs = getInt("render_timeout_ms")
	c.FollowDetail = getBool("follow_detail")
	c.DisabledNotes = getStr("disabled_notes")
	c.DisabledAt = getStr("disabled_at")
	switch tags := m["disabled_tags"].(type) {
	case []string:
		c.DisabledTags = append([]string(nil), tags...)
	case []any:
		for _, t := range tags {
			if s, ok := t.(string); ok {
				c.DisabledTags = append(c.DisabledTags, s)
			}
		}
	}

	fields := FieldMap{
		Title:       getStr("title_field"),
		URL:         getStr("link_field"),
	}
	if fm, ok := m["fields"].(map[string]any); ok {
		if v, ok := fm["title"].(string); ok && v != "" {
			fields.Title = v
		}
		if v, ok := fm["url"].(string); ok && v != "" {
			fields.URL = v
		}
		if v, ok := fm["company"].(string); ok {
			fields.Company = v
		}
		if v, ok := fm["location"].(string); ok {
			fields.Location = v
		}
		if v, ok := fm["description"].(string); ok {
			fields.Description = v
		}
		if v, ok := fm["posted_date"].(string); ok {
			fields.PostedDate = v
		}
		if v, ok := fm["salary"].(string); ok {
			fields.Salary = v
		}
		if v, ok := fm["tags"].(string); ok {
			fields.Tags = v
		}
		if v, ok := fm["metadata"].(string); ok {
			fields.Metadata = v
		}
	}
	c.Fields = fields

	if pb, ok := m["post_body"].(map[string]any); ok {
		c.PostBody = pb
	}
	if h, ok := m["headers"].(map[string]any); ok {
		hs := make(map[string]string, len(h))
		for k, v := range h {
			if s, ok := v.(string); ok {
				hs[k] = s
			}
		}
		c.Headers = hs
	}

	return c
}

// ToDict serializes Config back to a loosely-typed map, omitting empty
// optional fields (§4.1, §8 invariant 7).
func (c *Config) ToDict() map[string]any {
	d := map[string]any{
		"type": string(c.Type),
		"url":  c.URL,
	}
	set := func(k, v string) {
		if v != "" {
			d[k] = v
		}
	}
	setInt := func(k string, v int) {
		if v != 0 {
			d[k] = v
		}
	}
	set("method", c.Method)
	set("response_path", c.ResponsePath)
	set("job_selector", c.JobSelector)
	set("base_url", c.BaseURL)
	set("pagination_type", c.PaginationType)
	setInt("page_size", c.PageSize)
	setInt("max_pages", c.MaxPages)
	set("salary_min_field", c.SalaryMinField)
	set("salary_max_field", c.SalaryMaxField)
	set("company_name", c.CompanyName)
	set("company_filter", c.CompanyFilter)
	set("company_filter_param", c.CompanyFilterParam)
	set("company_extraction", string(c.CompanyExtraction))
	set("auth_type", string(c.AuthType))
	set("auth_param", c.AuthParam)
	set("api_key", c.APIKey)
	set("render_wait_for", c.RenderWaitFor)
	setInt("render_timeout_ms", c.RenderTimeoutMs)
	if c.RequiresJS {
		d["requires_js"] = true
	}
	if c.FollowDetail {
		d["follow_detail"] = true
	}
	set("disabled_notes", c.DisabledNotes)
	set("disabled_at", c.DisabledAt)
	if len(c.DisabledTags) > 0 {
		d["disabled_tags"] = append([]string(nil), c.DisabledTags...)
	}

	fields := map[string]any{}
	addField := func(k, v string) {
		if v != "" {
			fields[k] = v
		}
	}
	addField("title", c.Fields.Title)
	addField("url", c.Fields.URL)
	addField("company", c.Fields.Company)
	addField("location", c.Fields.Location)
	addField("description", c.Fields.Description)
	addField("posted_date", c.Fields.PostedDate)
	addField("salary", c.Fields.Salary)
	addField("tags", c.Fields.Tags)
	addField("metadata", c.Fields.Metadata)
	if len(fields) > 0 {
		d["fields"] = fields
	}

	if len(c.PostBody) > 0 {
		d["post_body"] = c.PostBody
	}
	if len(c.Headers) > 0 {
		hs := make(map[string]any, len(c.Headers))
		for k, v := range c.Headers {
			hs[k] = v
		}
		d["headers"] = hs
	}

	return d
}
