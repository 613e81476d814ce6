package processors

import "github.com/jobmate/discovery-core/internal/model"

// postingToMap serializes a Posting into the loosely-typed shape
// pipeline_state.job_data is stored as, mirroring intake's postingToDict so
// a job enqueued by Scraper Intake (C10) and one scraped directly by the
// JOB processor's own SCRAPE stage produce the same shape.
func postingToMap(p model.Posting) map[string]any {
	m := map[string]any{
		"title":            p.Title,
		"url":              p.URL,
		"company":          p.Company,
		"location":         p.Location,
		"description":      p.Description,
		"posted_date":      p.PostedDate,
		"salary":           p.Salary,
		"tags":             p.Tags,
		"company_website":  p.CompanyWebsite,
		"is_remote_source": p.IsRemoteSource,
	}
	if len(p.Metadata) > 0 {
		m["metadata"] = p.Metadata
	}
	if len(p.Departments) > 0 {
		m["departments"] = p.Departments
	}
	if len(p.Offices) > 0 {
		m["offices"] = p.Offices
	}
	if p.IsRemote != nil {
		m["is_remote"] = *p.IsRemote
	}
	return m
}

// mapToPosting is postingToMap's inverse. Values arriving from the queue
// store have already made one JSON round trip, so slices surface as
// []any and nested maps as map[string]any rather than their Go-native
// shapes; every lookup below tolerates that.
func mapToPosting(m map[string]any) model.Posting {
	p := model.Posting{
		Title:          str(m["title"]),
		URL:            str(m["url"]),
		Company:        str(m["company"]),
		Location:       str(m["location"]),
		Description:    str(m["description"]),
		PostedDate:     str(m["posted_date"]),
		Salary:         str(m["salary"]),
		CompanyWebsite: str(m["company_website"]),
		IsRemoteSource: boolVal(m["is_remote_source"]),
		Tags:           strSlice(m["tags"]),
		Departments:    strSlice(m["departments"]),
		Offices:        strSlice(m["offices"]),
		Metadata:       strMap(m["metadata"]),
	}
	if v, ok := m["is_remote"]; ok {
		b := boolVal(v)
		p.IsRemote = &b
	}
	return p
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func boolVal(v any) bool {
	b, _ := v.(bool)
	return b
}

// intVal tolerates both a native int (same-process hand-off between
// pipeline stages) and a float64 (after a round trip through the queue
// store's jsonb pipeline_state column, where every JSON number decodes as
// float64).
func intVal(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func strSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func strMap(v any) map[string]string {
	switch vv := v.(type) {
	case map[string]string:
		return vv
	case map[string]any:
		out := make(map[string]string, len(vv))
		for k, e := range vv {
			if s, ok := e.(string); ok {
				out[k] = s
			}
		}
		return out
	default:
		return nil
	}
}
