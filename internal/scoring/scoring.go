// Package scoring implements C5: a deterministic 0-100 match score with
// category adjustments that can also hard-reject a posting outright.
package scoring

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/prefilter"
)

const baseScore = 50

// Policy is the subset of match-policy.yaml (§6, §10) the scoring engine
// consumes.
type Policy struct {
	MinScore int `yaml:"min_score"`

	SeniorityPreferred  []string `yaml:"seniority_preferred"`
	SeniorityAcceptable []string `yaml:"seniority_acceptable"`
	SeniorityRejected   []string `yaml:"seniority_rejected"`

	AllowedArrangements  []string          `yaml:"allowed_arrangements"`
	RemoteKeywords       []string          `yaml:"remote_keywords"`
	RelocationPenalty    int               `yaml:"relocation_penalty"`
	UserTimezoneOffset   float64           `yaml:"user_timezone_offset"`
	MaxTimezoneDiffHours float64           `yaml:"max_timezone_diff_hours"`
	UserCity             string            `yaml:"user_city"`
	CityTimezones        map[string]string `yaml:"city_timezones"`
	TimezonePenaltyPerHr int               `yaml:"timezone_penalty_per_hour"`
	HybridInCityBonus    int               `yaml:"hybrid_in_city_bonus"`

	RequiredTech []string `yaml:"required_tech"`
	PreferredTech []string `yaml:"preferred_tech"`
	DislikedTech []string `yaml:"disliked_tech"`
	RejectedTech []string `yaml:"rejected_tech"`

	SalaryMinimum       float64 `yaml:"salary_minimum"`
	SalaryTarget        float64 `yaml:"salary_target"`
	SalaryMeetsBonus    int     `yaml:"salary_meets_target_bonus"`
	EquityBonus         int     `yaml:"equity_bonus"`
	ContractPenalty     int     `yaml:"contract_penalty"`

	UserYearsExperience   int `yaml:"user_years_experience"`
	MaxRequiredExperience int `yaml:"max_required_experience"`
	OverqualifiedPerYear  int `yaml:"overqualified_penalty_per_year"`
	OverqualifiedCap      int `yaml:"overqualified_penalty_cap"`

	UserSkills       []string `yaml:"user_skills"`
	SkillMatchPoints int      `yaml:"skill_match_points_per_hit"`
	SkillMatchCap    int      `yaml:"skill_match_cap"`

	FreshDays     int `yaml:"fresh_days"`
	FreshBonus    int `yaml:"fresh_bonus"`
	StaleDays     int `yaml:"stale_days"`
	StalePenalty  int `yaml:"stale_penalty"`
	VeryStaleDays int `yaml:"very_stale_days"`
	VeryStalePenalty int `yaml:"very_stale_penalty"`
	RepostPenalty int `yaml:"repost_penalty"`

	BackendKeywords    []string `yaml:"backend_keywords"`
	MLAIKeywords       []string `yaml:"ml_ai_keywords"`
	DevOpsSREKeywords  []string `yaml:"devops_sre_keywords"`
	DataKeywords       []string `yaml:"data_keywords"`
	SecurityKeywords   []string `yaml:"security_keywords"`
	LeadKeywords       []string `yaml:"lead_keywords"`
	FrontendOnlyKeywords []string `yaml:"frontend_only_keywords"`
	ConsultingKeywords []string `yaml:"consulting_keywords"`
	ManagementKeywords []string `yaml:"management_keywords"`
	ClearanceKeywords  []string `yaml:"clearance_keywords"`
	RoleFitBonus       int      `yaml:"role_fit_bonus"`
	RoleFitPenalty     int      `yaml:"role_fit_penalty"`

	PreferredCities   []string       `yaml:"preferred_cities"`
	RemoteFirstBonus  int            `yaml:"remote_first_bonus"`
	AIMLFocusBonus    int            `yaml:"ai_ml_focus_bonus"`
	SizeTierBonus     map[string]int `yaml:"size_tier_bonus"`
	OfficeCityBonus   int            `yaml:"office_city_bonus"`
}

// Adjustment is one category's contribution to the final score.
type Adjustment struct {
	Category string
	Reason   string
	Points   int
}

// Breakdown is C5's full audit output (§4.5).
type Breakdown struct {
	BaseScore       int
	FinalScore      int
	Adjustments     []Adjustment
	Passed          bool
	RejectionReason string
}

type accumulator struct {
	total       int
	adjustments []Adjustment
	rejected    bool
	reason      string
}

func (a *accumulator) add(category, reason string, points int) {
	a.adjustments = append(a.adjustments, Adjustment{Category: category, Reason: reason, Points: points})
	a.total += points
}

func (a *accumulator) reject(reason string) {
	a.rejected = true
	a.reason = reason
}

// Score evaluates a posting (optionally joined with company signals) against
// the policy and returns a full breakdown (§4.5).
func Score(p model.Posting, company *model.Company, isRemoteSource bool, policy Policy) Breakdown {
	a := &accumulator{}

	scoreSeniority(p, policy, a)
	if !a.rejected {
		scoreLocation(p, isRemoteSource, policy, a)
	}
	if !a.rejected {
		scoreTechnology(p, policy, a)
	}
	if !a.rejected {
		scoreSalary(p, policy, a)
	}
	if !a.rejected {
		scoreExperience(p, policy, a)
	}
	if !a.rejected {
		scoreSkillMatch(p, policy, a)
	}
	if !a.rejected {
		scoreFreshness(p, policy, a)
	}
	if !a.rejected {
		scoreRoleFit(p, policy, a)
	}
	if !a.rejected && company != nil {
		scoreCompanySignals(p, company, policy, a)
	}

	final := baseScore + a.total
	if final < 0 {
		final = 0
	}
	if final > 100 {
		final = 100
	}
	if a.rejected {
		final = 0
	}

	passed := !a.rejected && final >= policy.MinScore
	return Breakdown{
		BaseScore:       baseScore,
		FinalScore:      final,
		Adjustments:     a.adjustments,
		Passed:          passed,
		RejectionReason: a.reason,
	}
}

func scoreSeniority(p model.Posting, policy Policy, a *accumulator) {
	title := strings.ToLower(p.Title)
	for _, tok := range policy.SeniorityRejected {
		if wordMatch(title, tok) {
			a.reject("rejected seniority level: " + tok)
			return
		}
	}
	for _, tok := range policy.SeniorityPreferred {
		if wordMatch(title, tok) {
			a.add("seniority", "preferred seniority level: "+tok, 10)
			return
		}
	}
	for _, tok := range policy.SeniorityAcceptable {
		if wordMatch(title, tok) {
			a.add("seniority", "acceptable seniority level: "+tok, 0)
			return
		}
	}
}

func scoreLocation(p model.Posting, isRemoteSource bool, policy Policy, a *accumulator) {
	if len(policy.AllowedArrangements) == 0 {
		return
	}
	arrangement := prefilter.InferArrangement(p, isRemoteSource, policy.RemoteKeywords)
	allowed := false
	for _, v := range policy.AllowedArrangements {
		if strings.EqualFold(v, string(arrangement)) {
			allowed = true
			break
		}
	}
	if !allowed {
		penalty := policy.RelocationPenalty
		if penalty == 0 {
			penalty = -40
		}
		if penalty <= -100 {
			a.reject("relocation required, arrangement disallowed")
			return
		}
		a.add("location", "relocation required", penalty)
		return
	}

	if arrangement == prefilter.ArrangementHybrid || arrangement == prefilter.ArrangementOnsite {
		if diff, ok := cityTimezoneDiff(p.Location, policy); ok {
			if policy.MaxTimezoneDiffHours > 0 && diff > policy.MaxTimezoneDiffHours {
				a.reject("timezone difference exceeds maxTimezoneDiffHours")
				return
			}
			perHour := policy.TimezonePenaltyPerHr
			if perHour == 0 {
				perHour = 2
			}
			if diff > 0 {
				a.add("location", "timezone offset penalty", -int(diff)*perHour)
			}
		}
		if arrangement == prefilter.ArrangementHybrid && policy.UserCity != "" && p.Location != "" &&
			strings.Contains(strings.ToLower(p.Location), strings.ToLower(policy.UserCity)) {
			bonus := policy.HybridInCityBonus
			if bonus == 0 {
				bonus = 5
			}
			a.add("location", "hybrid role in user's city", bonus)
		}
	}
}

func cityTimezoneDiff(location string, policy Policy) (float64, bool) {
	if location == "" || len(policy.CityTimezones) == 0 {
		return 0, false
	}
	city := strings.ToLower(strings.TrimSpace(strings.SplitN(location, ",", 2)[0]))
	raw, ok := policy.CityTimezones[city]
	if !ok {
		return 0, false
	}
	offset, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	diff := offset - policy.UserTimezoneOffset
	if diff < 0 {
		diff = -diff
	}
	return diff, true
}

func scoreTechnology(p model.Posting, policy Policy, a *accumulator) {
	haystack := strings.ToLower(p.Title + " " + p.Description + " " + strings.Join(p.Tags, " "))

	for _, tech := range policy.RejectedTech {
		if tech != "" && wordMatch(haystack, tech) {
			a.reject("rejected technology present: " + tech)
			return
		}
	}

	requiredHit := 0
	for _, tech := range policy.RequiredTech {
		if tech != "" && wordMatch(haystack, tech) {
			a.add("technology", "required technology present: "+tech, 8)
			requiredHit++
		}
	}
	if len(policy.RequiredTech) > 0 && requiredHit == 0 {
		a.add("technology", "missing all required technologies", -5)
	}
	for _, tech := range policy.PreferredTech {
		if tech != "" && wordMatch(haystack, tech) {
			a.add("technology", "preferred technology present: "+tech, 4)
		}
	}
	for _, tech := range policy.DislikedTech {
		if tech != "" && wordMatch(haystack, tech) {
			a.add("technology", "disliked technology present: "+tech, -6)
		}
	}
}

func scoreSalary(p model.Posting, policy Policy, a *accumulator) {
	amount, ok := prefilter.ParseSalaryFloor(p.Salary)
	if !ok {
		return
	}
	if policy.SalaryMinimum > 0 && amount < policy.SalaryMinimum {
		a.reject("salary below minimum")
		return
	}
	if policy.SalaryTarget > 0 {
		if amount < policy.SalaryTarget {
			ratio := amount / policy.SalaryTarget
			penalty := int((1 - ratio) * 30)
			if penalty > 30 {
				penalty = 30
			}
			a.add("salary", "below target salary", -penalty)
		} else {
			bonus := policy.SalaryMeetsBonus
			if bonus == 0 {
				bonus = 5
			}
			a.add("salary", "meets or exceeds target salary", bonus)
		}
	}
	if strings.Contains(strings.ToLower(p.Description), "equity") {
		bonus := policy.EquityBonus
		if bonus == 0 {
			bonus = 3
		}
		a.add("salary", "equity offered", bonus)
	}
	if strings.Contains(strings.ToLower(p.Metadata["Employment Type"]), "contract") {
		penalty := policy.ContractPenalty
		if penalty == 0 {
			penalty = -5
		}
		a.add("salary", "contract position", penalty)
	}
}

var experienceYearsRe = regexp.MustCompile(`(?i)(\d+)\+?\s*years?`)

func scoreExperience(p model.Posting, policy Policy, a *accumulator) {
	jobMin, ok := experienceFromDescription(p.Description)
	if !ok || policy.UserYearsExperience == 0 {
		return
	}
	switch {
	case jobMin > policy.UserYearsExperience+3:
		a.add("experience", "required experience far exceeds user's", -30)
	case jobMin > policy.UserYearsExperience:
		over := jobMin - policy.UserYearsExperience
		penalty := over * 8
		if penalty > 25 {
			penalty = 25
		}
		a.add("experience", "required experience exceeds user's", -penalty)
	case policy.MaxRequiredExperience > 0 && jobMin > policy.MaxRequiredExperience:
		a.add("experience", "required experience exceeds configured max", -5)
	default:
		under := policy.UserYearsExperience - jobMin
		if under > 0 {
			perYear := policy.OverqualifiedPerYear
			if perYear == 0 {
				perYear = 2
			}
			penaltyCap := policy.OverqualifiedCap
			if penaltyCap == 0 {
				penaltyCap = 15
			}
			penalty := under * perYear
			if penalty > penaltyCap {
				penalty = penaltyCap
			}
			if penalty > 0 {
				a.add("experience", "overqualified relative to requirement", -penalty)
			}
		}
	}
}

func experienceFromDescription(desc string) (int, bool) {
	m := experienceYearsRe.FindStringSubmatch(desc)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func scoreSkillMatch(p model.Posting, policy Policy, a *accumulator) {
	if len(policy.UserSkills) == 0 {
		return
	}
	hits := 0
	for _, skill := range policy.UserSkills {
		if skill != "" && wordMatch(p.Description, skill) {
			hits++
		}
	}
	if hits == 0 {
		return
	}
	perHit := policy.SkillMatchPoints
	if perHit == 0 {
		perHit = 2
	}
	points := hits * perHit
	pointsCap := policy.SkillMatchCap
	if pointsCap == 0 {
		pointsCap = 20
	}
	if points > pointsCap {
		points = pointsCap
	}
	a.add("skill_match", "user skills found in description", points)
}

func scoreFreshness(p model.Posting, policy Policy, a *accumulator) {
	if p.PostedDate == "" {
		return
	}
	posted, err := time.Parse(time.RFC3339, p.PostedDate)
	if err != nil {
		return
	}
	ageDays := int(time.Since(posted).Hours() / 24)

	fresh := policy.FreshDays
	if fresh == 0 {
		fresh = 3
	}
	stale := policy.StaleDays
	if stale == 0 {
		stale = 14
	}
	veryStale := policy.VeryStaleDays
	if veryStale == 0 {
		veryStale = 30
	}

	switch {
	case ageDays <= fresh:
		bonus := policy.FreshBonus
		if bonus == 0 {
			bonus = 5
		}
		a.add("freshness", "recently posted", bonus)
	case ageDays >= veryStale:
		penalty := policy.VeryStalePenalty
		if penalty == 0 {
			penalty = -10
		}
		a.add("freshness", "very stale posting", penalty)
	case ageDays >= stale:
		penalty := policy.StalePenalty
		if penalty == 0 {
			penalty = -5
		}
		a.add("freshness", "stale posting", penalty)
	}

	if strings.Contains(strings.ToLower(p.Title), "repost") || strings.Contains(strings.ToLower(p.Description), "repost") {
		penalty := policy.RepostPenalty
		if penalty == 0 {
			penalty = -5
		}
		a.add("freshness", "reposted listing", penalty)
	}
}

func scoreRoleFit(p model.Posting, policy Policy, a *accumulator) {
	haystack := strings.ToLower(p.Title + " " + p.Description)
	bonus := policy.RoleFitBonus
	if bonus == 0 {
		bonus = 6
	}
	penalty := policy.RoleFitPenalty
	if penalty == 0 {
		penalty = -10
	}

	type group struct {
		name string
		kws  []string
	}
	for _, g := range []group{
		{"backend", policy.BackendKeywords},
		{"ml_ai", policy.MLAIKeywords},
		{"devops_sre", policy.DevOpsSREKeywords},
		{"data", policy.DataKeywords},
		{"security", policy.SecurityKeywords},
		{"lead", policy.LeadKeywords},
	} {
		if anyWordMatch(haystack, g.kws) {
			a.add("role_fit", g.name+" role fit", bonus)
		}
	}
	for _, g := range []group{
		{"frontend_only", policy.FrontendOnlyKeywords},
		{"consulting", policy.ConsultingKeywords},
		{"management", policy.ManagementKeywords},
	} {
		if anyWordMatch(haystack, g.kws) {
			a.add("role_fit", g.name+" role mismatch", penalty)
		}
	}
	if anyWordMatch(haystack, policy.ClearanceKeywords) {
		a.reject("security clearance required")
	}
}

func scoreCompanySignals(p model.Posting, company *model.Company, policy Policy, a *accumulator) {
	for _, city := range policy.PreferredCities {
		if city != "" && strings.Contains(strings.ToLower(company.Headquarters), strings.ToLower(city)) {
			bonus := policy.OfficeCityBonus
			if bonus == 0 {
				bonus = 4
			}
			a.add("company", "office in preferred city", bonus)
			break
		}
	}
	if company.IsRemoteFirst {
		bonus := policy.RemoteFirstBonus
		if bonus == 0 {
			bonus = 5
		}
		a.add("company", "remote-first company", bonus)
	}
	if strings.Contains(strings.ToLower(company.Industry), "ai") || strings.Contains(strings.ToLower(company.About), "machine learning") {
		bonus := policy.AIMLFocusBonus
		if bonus == 0 {
			bonus = 4
		}
		a.add("company", "AI/ML focused company", bonus)
	}
	if company.Tier != "" {
		if bonus, ok := policy.SizeTierBonus[company.Tier]; ok {
			a.add("company", "company size tier "+company.Tier, bonus)
		}
	}
}

func wordMatch(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(needle) + `\b`)
	return re.MatchString(haystack)
}

func anyWordMatch(haystack string, needles []string) bool {
	for _, n := range needles {
		if wordMatch(haystack, n) {
			return true
		}
	}
	return false
}
