// Package strike implements C4: a two-tier weighted-rejection filter —
// tier-1 hard-rejects and tier-2 accumulating strikes — applied after the
// pre-filter passes a posting.
package strike

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/prefilter"
)

// Policy is the subset of match-policy.yaml (§6, §10) this package consumes.
type Policy struct {
	RequiredTitleKeywords    []string       `yaml:"required_title_keywords"`
	ExcludedSeniorityTokens  []string       `yaml:"excluded_seniority_tokens"`
	StopListCompanies        []string       `yaml:"stop_list_companies"`
	StopListKeywords         []string       `yaml:"stop_list_keywords"`
	StopListDomains          []string       `yaml:"stop_list_domains"`
	MLMIndicators            []string       `yaml:"mlm_indicators"`
	RejectDays               int            `yaml:"reject_days"`
	StrikeDays               int            `yaml:"strike_days"`
	StrikeThreshold          int            `yaml:"strike_threshold"`
	SalaryPreferredThreshold float64        `yaml:"salary_preferred_threshold"`
	SeniorityWeights         map[string]int `yaml:"seniority_weights"`
	TechStrikeTags           map[string]int `yaml:"tech_strike_tags"`
	TechFailTags             []string       `yaml:"tech_fail_tags"`
	MinDescriptionLength     int            `yaml:"min_description_length"`
	Buzzwords                []string       `yaml:"buzzwords"`
	StopListStrikePoints     int            `yaml:"stop_list_strike_points"`

	// Arrangement inputs shared with the pre-filter (§4.3).
	AllowedArrangements  []string          `yaml:"allowed_arrangements"`
	RemoteKeywords       []string          `yaml:"remote_keywords"`
	RelocationAllowed    bool              `yaml:"relocation_allowed"`
	UserLocation         string            `yaml:"user_location"`
	MaxTimezoneDiffHours float64           `yaml:"max_timezone_diff_hours"`
	TreatUnknownAsOnsite bool              `yaml:"treat_unknown_as_onsite"`
	CityTimezones        map[string]string `yaml:"city_timezones"`
}

// Strike is one accrued penalty, recorded for later auditing (§4.4).
type Strike struct {
	Category string
	Name     string
	Reason   string
	Detail   string
	Points   int
}

// Result is the strike engine's decision.
type Result struct {
	Passed           bool
	HardRejectReason string
	Strikes          []Strike
	Total            int
}

func (r *Result) hardReject(reason string) {
	r.Passed = false
	r.HardRejectReason = reason
}

func (r *Result) add(s Strike) {
	r.Strikes = append(r.Strikes, s)
	r.Total += s.Points
}

var ageRejectDefault = 7
var ageStrikeDefault = 1

var commissionOnlyRe = regexp.MustCompile(`(?i)\b(100%|straight)\s+commission\b`)

// Run evaluates tier-1 hard-rejects then tier-2 strike accumulation (§4.4).
// isRemoteSource/ageDays come from the caller (already computed by the
// pre-filter pass for the same posting) to avoid re-deriving freshness here.
func Run(p model.Posting, isRemoteSource bool, ageDays int, policy Policy) Result {
	r := Result{Passed: true}

	if len(policy.RequiredTitleKeywords) > 0 {
		if !containsAnyFold(p.Title, policy.RequiredTitleKeywords) {
			r.hardReject("missing required title keyword")
			return r
		}
	}

	for _, token := range policy.ExcludedSeniorityTokens {
		if wordBoundaryMatch(p.Title, token) {
			r.hardReject("excluded seniority token in title: " + token)
			return r
		}
	}

	stopPoints := policy.StopListStrikePoints
	if stopPoints <= 0 {
		stopPoints = 25
	}
	if name, ok := matchesAnyFold(p.Company, policy.StopListCompanies); ok {
		r.add(Strike{Category: "stop_list", Name: name, Reason: "stop-list company", Points: stopPoints})
	}
	if name, ok := containsAnyFoldName(p.Description, policy.StopListKeywords); ok {
		r.add(Strike{Category: "stop_list", Name: name, Reason: "stop-list keyword in description", Points: stopPoints})
	}
	for _, domain := range policy.StopListDomains {
		if domain != "" && strings.Contains(strings.ToLower(p.CompanyWebsite+p.URL), strings.ToLower(domain)) {
			r.add(Strike{Category: "stop_list", Name: domain, Reason: "stop-list domain", Points: stopPoints})
		}
	}

	for _, indicator := range policy.MLMIndicators {
		if indicator != "" && wordBoundaryMatch(p.Description, indicator) {
			r.hardReject("MLM/commission-only indicator: " + indicator)
			return r
		}
	}
	if commissionOnlyRe.MatchString(p.Description) {
		r.hardReject("commission-only compensation detected")
		return r
	}

	applyLocationRules(p, isRemoteSource, policy, &r)
	if !r.Passed {
		return r
	}

	rejectDays := policy.RejectDays
	if rejectDays <= 0 {
		rejectDays = ageRejectDefault
	}
	if ageDays > rejectDays {
		r.hardReject(fmt.Sprintf("posting age %d days exceeds reject_days %d", ageDays, rejectDays))
		return r
	}

	applySalaryStrike(p, policy, &r)
	applySeniorityStrikes(p, policy, &r)
	if hardReject := applyTechnologyStrikes(p, policy, &r); hardReject != "" {
		r.hardReject(hardReject)
		return r
	}
	applyQualityStrikes(p, policy, &r)

	strikeDays := policy.StrikeDays
	if strikeDays <= 0 {
		strikeDays = ageStrikeDefault
	}
	if ageDays > strikeDays {
		r.add(Strike{Category: "age", Name: "stale", Reason: "posting older than strike_days", Points: 10})
	}

	threshold := policy.StrikeThreshold
	if threshold <= 0 {
		threshold = 50
	}
	if r.Total >= threshold {
		r.Passed = false
		r.HardRejectReason = "strike total reached threshold"
	}
	return r
}

func applyLocationRules(p model.Posting, isRemoteSource bool, policy Policy, r *Result) {
	if len(policy.AllowedArrangements) == 0 {
		return
	}
	arrangement := prefilter.InferArrangement(p, isRemoteSource, policy.RemoteKeywords)
	effective := arrangement
	if arrangement == prefilter.ArrangementUnknown && policy.TreatUnknownAsOnsite {
		effective = prefilter.ArrangementOnsite
	}

	allowed := false
	for _, a := range policy.AllowedArrangements {
		if strings.EqualFold(a, string(effective)) {
			allowed = true
			break
		}
	}
	if !allowed {
		r.hardReject("disallowed work arrangement: " + string(arrangement))
		return
	}

	if (effective == prefilter.ArrangementHybrid || effective == prefilter.ArrangementOnsite) &&
		!policy.RelocationAllowed && policy.UserLocation != "" && p.Location != "" {
		r.add(Strike{Category: "location", Name: "relocation", Reason: "location differs from user location", Points: 15})
	}
}

func applySalaryStrike(p model.Posting, policy Policy, r *Result) {
	if policy.SalaryPreferredThreshold <= 0 {
		return
	}
	amount, ok := prefilter.ParseSalaryFloor(p.Salary)
	if !ok {
		return
	}
	if amount < policy.SalaryPreferredThreshold {
		r.add(Strike{Category: "salary", Name: "below_preferred", Reason: "salary below preferred threshold", Points: 10})
	}
}

func applySeniorityStrikes(p model.Posting, policy Policy, r *Result) {
	if len(policy.SeniorityWeights) == 0 {
		return
	}
	title := strings.ToLower(p.Title)
	for token, weight := range policy.SeniorityWeights {
		if token != "" && wordBoundaryMatch(title, token) {
			r.add(Strike{Category: "seniority", Name: token, Reason: "seniority token present", Points: weight})
		}
	}
}

// applyTechnologyStrikes returns a non-empty hard-reject reason when a
// "fail"-ranked tech tag is present; otherwise it records ordinary strikes.
func applyTechnologyStrikes(p model.Posting, policy Policy, r *Result) string {
	haystack := strings.ToLower(p.Title + " " + p.Description)
	for _, tag := range policy.TechFailTags {
		if tag != "" && techWordMatch(haystack, tag) {
			return "fail-ranked technology present: " + tag
		}
	}
	for tag, points := range policy.TechStrikeTags {
		if tag != "" && techWordMatch(haystack, tag) {
			r.add(Strike{Category: "technology", Name: tag, Reason: "strike-ranked technology present", Points: points})
		}
	}
	return ""
}

// techWordMatch is a word-boundary match with the §4.4 special case: the
// token "go" must not match inside "go to market".
func techWordMatch(haystack, tag string) bool {
	lower := strings.ToLower(tag)
	if lower == "go" {
		stripped := strings.ReplaceAll(haystack, "go to market", "")
		return wordBoundaryMatch(stripped, "go")
	}
	return wordBoundaryMatch(haystack, tag)
}

func applyQualityStrikes(p model.Posting, policy Policy, r *Result) {
	if policy.MinDescriptionLength > 0 && len(p.Description) < policy.MinDescriptionLength {
		r.add(Strike{Category: "quality", Name: "short_description", Reason: "description shorter than min_description_length", Points: 10})
	}
	for _, buzz := range policy.Buzzwords {
		if buzz != "" && wordBoundaryMatch(p.Description, buzz) {
			r.add(Strike{Category: "quality", Name: buzz, Reason: "buzzword present", Points: 3})
		}
	}
}

func wordBoundaryMatch(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(needle) + `\b`)
	return re.MatchString(haystack)
}

func containsAnyFold(haystack string, needles []string) bool {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if n != "" && strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func matchesAnyFold(value string, candidates []string) (string, bool) {
	for _, c := range candidates {
		if c != "" && strings.EqualFold(value, c) {
			return c, true
		}
	}
	return "", false
}

func containsAnyFoldName(haystack string, needles []string) (string, bool) {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if n != "" && strings.Contains(lower, strings.ToLower(n)) {
			return n, true
		}
	}
	return "", false
}
