// Package prefilter implements C3: a cheap structured reject using only the
// fields a scrape already produced, applied before the strike engine.
package prefilter

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jobmate/discovery-core/internal/model"
)

// Policy is the subset of prefilter-policy.yaml (§6, §10) this package
// consumes.
type Policy struct {
	ExcludedKeywords       []string          `yaml:"excluded_keywords"`
	RequiredKeywords       []string          `yaml:"required_keywords"`
	MaxAgeDays             int               `yaml:"max_age_days"`
	AllowedArrangements    []string          `yaml:"allowed_arrangements"`
	RemoteKeywords         []string          `yaml:"remote_keywords"`
	RelocationAllowed      bool              `yaml:"relocation_allowed"`
	UserLocation           string            `yaml:"user_location"`
	MaxTimezoneDiffHours   float64           `yaml:"max_timezone_diff_hours"`
	TreatUnknownAsOnsite   bool              `yaml:"treat_unknown_as_onsite"`
	AllowedEmploymentTypes []string          `yaml:"allowed_employment_types"`
	MinimumSalary          float64           `yaml:"minimum_salary"`
	RejectedTech           []string          `yaml:"rejected_tech"`
	CityTimezones          map[string]string `yaml:"city_timezones"`
}

// Arrangement is the inferred work arrangement of §4.3.3.
type Arrangement string

const (
	ArrangementRemote  Arrangement = "remote"
	ArrangementHybrid  Arrangement = "hybrid"
	ArrangementOnsite  Arrangement = "onsite"
	ArrangementUnknown Arrangement = "unknown"
)

// Decision is the pre-filter's contract output (§4.3).
type Decision struct {
	Passed         bool
	Reason         string
	ChecksPerformed []string
	ChecksSkipped   []string
}

func (d *Decision) reject(check, reason string) {
	d.Passed = false
	d.Reason = reason
	d.ChecksPerformed = append(d.ChecksPerformed, check)
}

func (d *Decision) perform(check string) {
	d.ChecksPerformed = append(d.ChecksPerformed, check)
}

func (d *Decision) skip(check string) {
	d.ChecksSkipped = append(d.ChecksSkipped, check)
}

var liRemoteRe = regexp.MustCompile(`(?i)#LI-(remote|hybrid|onsite)\b`)
var salaryPatternRe = regexp.MustCompile(`(?i)\$?\s*([0-9]{1,3}(?:,[0-9]{3})*|[0-9]+(?:\.[0-9]+)?)\s*(k)?`)
var mixedInvalidSalaryRe = regexp.MustCompile(`(?i)[0-9]+,[0-9]{3}k`)

// Run applies the ordered checks of §4.3, honoring the "missing data = pass"
// rule: any check whose input is absent is recorded as skipped, never
// rejected.
func Run(p model.Posting, isRemoteSource bool, policy Policy) Decision {
	d := Decision{Passed: true}

	checkTitle(p, policy, &d)
	checkFreshness(p, policy, &d)
	checkArrangement(p, isRemoteSource, policy, &d)
	checkEmploymentType(p, policy, &d)
	checkSalary(p, policy, &d)
	checkTechnology(p, policy, &d)

	return d
}

// TitleOnly runs just the title check in isolation, for use as a cheap
// first-pass filter (Scraper Intake, §4.10) before the full Run pass.
func TitleOnly(p model.Posting, policy Policy) Decision {
	d := Decision{Passed: true}
	checkTitle(p, policy, &d)
	return d
}

func checkTitle(p model.Posting, policy Policy, d *Decision) {
	if p.Title == "" {
		d.skip("title")
		return
	}
	d.perform("title")
	title := strings.ToLower(p.Title)
	for _, kw := range policy.ExcludedKeywords {
		if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
			d.reject("title", "excluded keyword in title: "+kw)
			return
		}
	}
	if len(policy.RequiredKeywords) > 0 {
		found := false
		for _, kw := range policy.RequiredKeywords {
			if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if !found {
			d.reject("title", "no required keyword present in title")
		}
	}
}

func checkFreshness(p model.Posting, policy Policy, d *Decision) {
	ageDays, ok := PostingAgeDays(p)
	if policy.MaxAgeDays <= 0 || !ok {
		d.skip("freshness")
		return
	}
	d.perform("freshness")
	if ageDays > policy.MaxAgeDays {
		d.reject("freshness", "posting older than max_age_days")
	}
}

// PostingAgeDays parses p.PostedDate and returns its age in whole days. ok
// is false when PostedDate is empty or not RFC3339, the same "missing data"
// case checkFreshness treats as skip rather than reject — exported so the
// Strike Engine (C4), which also takes ageDays as an input, can share this
// computation instead of re-parsing the date itself.
func PostingAgeDays(p model.Posting) (days int, ok bool) {
	if p.PostedDate == "" {
		return 0, false
	}
	posted, err := time.Parse(time.RFC3339, p.PostedDate)
	if err != nil {
		return 0, false
	}
	return int(time.Since(posted).Hours() / 24), true
}

// InferArrangement implements §4.3.3's detection cascade.
func InferArrangement(p model.Posting, isRemoteSource bool, remoteKeywords []string) Arrangement {
	if isRemoteSource {
		return ArrangementRemote
	}
	if p.IsRemote != nil && *p.IsRemote {
		return ArrangementRemote
	}

	haystacks := []string{strings.ToLower(p.Metadata["Location Type"]), strings.ToLower(p.Location)}
	for _, o := range p.Offices {
		haystacks = append(haystacks, strings.ToLower(o))
	}

	for _, h := range haystacks {
		if h == "" {
			continue
		}
		for _, kw := range remoteKeywords {
			if kw != "" && strings.Contains(h, strings.ToLower(kw)) {
				return ArrangementRemote
			}
		}
		if strings.Contains(h, "hybrid") {
			return ArrangementHybrid
		}
		if strings.Contains(h, "on-site") || strings.Contains(h, "onsite") || strings.Contains(h, "office") {
			return ArrangementOnsite
		}
	}

	if m := liRemoteRe.FindStringSubmatch(p.Description); m != nil {
		switch strings.ToLower(m[1]) {
		case "remote":
			return ArrangementRemote
		case "hybrid":
			return ArrangementHybrid
		case "onsite":
			return ArrangementOnsite
		}
	}

	return ArrangementUnknown
}

func checkArrangement(p model.Posting, isRemoteSource bool, policy Policy, d *Decision) {
	if len(policy.AllowedArrangements) == 0 {
		d.skip("work_arrangement")
		return
	}
	d.perform("work_arrangement")

	arrangement := InferArrangement(p, isRemoteSource, policy.RemoteKeywords)
	effective := arrangement
	if arrangement == ArrangementUnknown && policy.TreatUnknownAsOnsite {
		effective = ArrangementOnsite
	}

	if !arrangementAllowed(effective, policy.AllowedArrangements) {
		d.reject("work_arrangement", "disallowed work arrangement: "+string(arrangement))
		return
	}

	if (effective == ArrangementHybrid || effective == ArrangementOnsite) && !policy.RelocationAllowed && policy.UserLocation != "" {
		if p.Location != "" && citiesClearlyDiffer(p.Location, policy.UserLocation) {
			d.reject("work_arrangement", "location differs and relocation not allowed")
			return
		}
	}

	if (effective == ArrangementRemote || effective == ArrangementHybrid) && policy.MaxTimezoneDiffHours > 0 && policy.UserLocation != "" && p.Location != "" {
		if diff, ok := timezoneDiffHours(p.Location, policy.UserLocation, policy.CityTimezones); ok && diff > policy.MaxTimezoneDiffHours {
			d.reject("work_arrangement", "timezone difference exceeds max_timezone_diff_hours")
		}
	}
}

func arrangementAllowed(a Arrangement, allowed []string) bool {
	for _, v := range allowed {
		if strings.EqualFold(v, string(a)) {
			return true
		}
	}
	return false
}

// citiesClearlyDiffer applies loose city+state matching with optional
// state-code normalization (§4.3.3); equal or one-contains-the-other is
// treated as the same location.
func citiesClearlyDiffer(a, b string) bool {
	na := normalizeLocation(a)
	nb := normalizeLocation(b)
	if na == nb {
		return false
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return false
	}
	cityA, _ := splitCityState(na)
	cityB, _ := splitCityState(nb)
	return cityA != cityB
}

func normalizeLocation(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ".", "")
	return s
}

func splitCityState(s string) (city, state string) {
	parts := strings.SplitN(s, ",", 2)
	city = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		state = strings.TrimSpace(parts[1])
	}
	return city, state
}

// timezoneDiffHours looks up each location's city in the configured table;
// unknown cities skip the check (returns ok=false).
func timezoneDiffHours(jobLocation, userLocation string, cityTZ map[string]string) (float64, bool) {
	jobCity, _ := splitCityState(normalizeLocation(jobLocation))
	userCity, _ := splitCityState(normalizeLocation(userLocation))
	jobOffset, ok1 := offsetForCity(jobCity, cityTZ)
	userOffset, ok2 := offsetForCity(userCity, cityTZ)
	if !ok1 || !ok2 {
		return 0, false
	}
	diff := jobOffset - userOffset
	if diff < 0 {
		diff = -diff
	}
	return diff, true
}

func offsetForCity(city string, cityTZ map[string]string) (float64, bool) {
	raw, ok := cityTZ[city]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func checkEmploymentType(p model.Posting, policy Policy, d *Decision) {
	raw := p.Metadata["Employment Type"]
	if raw == "" {
		raw = p.Metadata["employment_type"]
	}
	if raw == "" || len(policy.AllowedEmploymentTypes) == 0 {
		d.skip("employment_type")
		return
	}
	d.perform("employment_type")
	normalized := normalizeEmploymentType(raw)
	for _, allowed := range policy.AllowedEmploymentTypes {
		if strings.EqualFold(normalized, allowed) {
			return
		}
	}
	d.reject("employment_type", "disallowed employment type: "+normalized)
}

func normalizeEmploymentType(raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "full"):
		return "full-time"
	case strings.Contains(lower, "part"):
		return "part-time"
	case strings.Contains(lower, "contract") || strings.Contains(lower, "freelance"):
		return "contract"
	default:
		return lower
	}
}

func checkSalary(p model.Posting, policy Policy, d *Decision) {
	if policy.MinimumSalary <= 0 {
		d.skip("salary")
		return
	}
	amount, ok := ParseSalaryFloor(p.Salary)
	if !ok {
		d.skip("salary")
		return
	}
	d.perform("salary")
	if amount < policy.MinimumSalary {
		d.reject("salary", "salary below configured minimum")
	}
}

// ParseSalaryFloor extracts the lowest numeric figure from a free-text
// salary string, recognizing "$100k", "100,000", "150k" forms; a malformed
// mixed form like "120,000k" is treated as unparseable (§4.3.5).
func ParseSalaryFloor(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	if mixedInvalidSalaryRe.MatchString(raw) {
		return 0, false
	}
	matches := salaryPatternRe.FindAllStringSubmatch(raw, -1)
	var lowest float64
	found := false
	for _, m := range matches {
		numStr := strings.ReplaceAll(m[1], ",", "")
		n, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			continue
		}
		if strings.EqualFold(m[2], "k") {
			n *= 1000
		}
		if !found || n < lowest {
			lowest = n
			found = true
		}
	}
	return lowest, found
}

func checkTechnology(p model.Posting, policy Policy, d *Decision) {
	if len(policy.RejectedTech) == 0 || len(p.Tags) == 0 {
		d.skip("technology")
		return
	}
	d.perform("technology")
	for _, tag := range p.Tags {
		for _, rejected := range policy.RejectedTech {
			if strings.EqualFold(tag, rejected) {
				d.reject("technology", "rejected technology present: "+tag)
				return
			}
		}
	}
}
