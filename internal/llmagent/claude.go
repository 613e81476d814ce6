package llmagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
	defaultTimeout   = 30 * time.Second
)

// ClaudeAgent implements Agent against the Anthropic Messages API.
type ClaudeAgent struct {
	client    *anthropic.Client
	log       *logrus.Entry
	model     string
	maxTokens int64
	timeout   time.Duration
}

// NewClaudeAgent builds a ClaudeAgent. apiKey must be non-empty; callers
// resolve it from ANTHROPIC_API_KEY before constructing this, mirroring the
// fail-fast config convention used elsewhere in this service.
func NewClaudeAgent(apiKey string, log *logrus.Entry) (*ClaudeAgent, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ClaudeAgent{
		client:    &client,
		log:       log.WithField("component", "llmagent"),
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		timeout:   defaultTimeout,
	}, nil
}

func (a *ClaudeAgent) complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llmagent: completion request failed: %w", err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

const companyExtractionSystemPrompt = `You extract structured company information from search and page-fetch
context. Respond with a single JSON object with exactly these keys: name,
website, about, culture, mission, headquarters, employee_count (integer or
null), tech_stack (array of strings), is_remote_first (boolean), industry.
Use null or an empty string/array for anything not supported by the
context. Do not guess facts not present in the context.`

func (a *ClaudeAgent) ExtractCompany(ctx context.Context, companyName, searchContext string) (CompanyRecord, error) {
	prompt := fmt.Sprintf("Company name: %s\n\nContext:\n%s", companyName, searchContext)
	raw, err := a.complete(ctx, companyExtractionSystemPrompt, prompt)
	if err != nil {
		return CompanyRecord{}, err
	}

	var parsed struct {
		Name          string   `json:"name"`
		Website       string   `json:"website"`
		About         string   `json:"about"`
		Culture       string   `json:"culture"`
		Mission       string   `json:"mission"`
		Headquarters  string   `json:"headquarters"`
		EmployeeCount *int     `json:"employee_count"`
		TechStack     []string `json:"tech_stack"`
		IsRemoteFirst bool     `json:"is_remote_first"`
		Industry      string   `json:"industry"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return CompanyRecord{}, fmt.Errorf("llmagent: could not parse company extraction response: %w", err)
	}

	return CompanyRecord{
		Name:          parsed.Name,
		Website:       parsed.Website,
		About:         parsed.About,
		Culture:       parsed.Culture,
		Mission:       parsed.Mission,
		Headquarters:  parsed.Headquarters,
		EmployeeCount: parsed.EmployeeCount,
		TechStack:     parsed.TechStack,
		IsRemoteFirst: parsed.IsRemoteFirst,
		Industry:      parsed.Industry,
	}, nil
}

const jobScoringSystemPrompt = `You evaluate how well a job posting fits a backend/platform Go engineer
who prefers remote-first, well-scoped roles. Respond with a single JSON
object with exactly two keys: score (integer 0-100) and reasoning (one or
two sentences).`

func (a *ClaudeAgent) ScoreJob(ctx context.Context, jobDescription, companyContext string) (int, string, error) {
	prompt := fmt.Sprintf("Job description:\n%s\n\nCompany context:\n%s", jobDescription, companyContext)
	raw, err := a.complete(ctx, jobScoringSystemPrompt, prompt)
	if err != nil {
		return 0, "", err
	}

	var parsed struct {
		Score     int    `json:"score"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return 0, "", fmt.Errorf("llmagent: could not parse job scoring response: %w", err)
	}
	if parsed.Score < 0 {
		parsed.Score = 0
	}
	if parsed.Score > 100 {
		parsed.Score = 100
	}
	return parsed.Score, parsed.Reasoning, nil
}

const urlClassificationSystemPrompt = `You classify a job-board URL Source Analysis could not resolve through
pattern matching. Respond with a single JSON object with exactly two keys:
classification (one of JOB_AGGREGATOR, COMPANY_SPECIFIC, SINGLE_JOB_LISTING,
ATS_PROVIDER_SITE, INVALID) and reasoning (one sentence).`

func (a *ClaudeAgent) ClassifyURL(ctx context.Context, rawURL, companyName, sample string) (string, string, error) {
	prompt := fmt.Sprintf("URL: %s\nCompany: %s\n\nFetched sample:\n%s", rawURL, companyName, sample)
	raw, err := a.complete(ctx, urlClassificationSystemPrompt, prompt)
	if err != nil {
		return "", "", err
	}

	var parsed struct {
		Classification string `json:"classification"`
		Reasoning      string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return "", "", fmt.Errorf("llmagent: could not parse url classification response: %w", err)
	}
	return parsed.Classification, parsed.Reasoning, nil
}

// extractJSONObject trims any prose the model wraps around the JSON object,
// since responses occasionally arrive inside a markdown code fence.
func extractJSONObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}
