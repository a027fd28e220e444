package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/pratik-mahalle/infrasec/internal/config"
	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
)

// minClusterSize is how often the same finding must recur in one batch before
// the cluster is worth drafting a rule from.
const minClusterSize = 3

const systemPrompt = `You are a cloud security engineer drafting infrastructure scanning rules.
Rules match parsed Terraform resources with one of these pattern forms:
  resource_type:<terraform resource type>   matches every resource of that type
  config:<key>                              matches resources whose configuration contains the key
  config:<key>=<value>                      matches resources where the key has that value
  <regular expression>                      matched against the resource type and flattened configuration
Respond with a single JSON object with string keys: name, description, severity, pattern, remediation.
Severity is one of LOW, MEDIUM, HIGH, CRITICAL. Description and remediation must each be at least ten characters.`

// chatClient is the slice of the OpenAI client the generator uses.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator drafts candidate rules from recurring findings through an LLM.
// Without an API key it is disabled and Draft is a no-op, so callers never
// need to special-case the unconfigured deployment.
type Generator struct {
	client chatClient
	model  string
	rules  rule.Service
	logger *logger.Logger
}

// New creates a generator. An empty API key leaves it disabled.
func New(svc rule.Service, cfg config.GeneratorConfig, log *logger.Logger) *Generator {
	g := &Generator{
		model:  cfg.Model,
		rules:  svc,
		logger: log.WithComponent("generator"),
	}
	if g.model == "" {
		g.model = openai.GPT4oMini
	}
	if cfg.APIKey != "" {
		g.client = openai.NewClient(cfg.APIKey)
	}
	return g
}

// Enabled reports whether an API key was configured.
func (g *Generator) Enabled() bool {
	return g.client != nil
}

// Draft clusters the findings and asks the model for one candidate rule per
// recurring cluster. Every draft goes through the normal Add gate, so invalid
// drafts are dropped and conflicting drafts land as CANDIDATE like any other
// rule. Failures on one cluster never abort the others.
func (g *Generator) Draft(ctx context.Context, findings []rule.Finding) ([]*rule.SecurityRule, error) {
	if !g.Enabled() {
		return nil, nil
	}

	clusters := clusterFindings(findings)
	if len(clusters) == 0 {
		return nil, nil
	}

	var created []*rule.SecurityRule
	for _, c := range clusters {
		r, err := g.draftRule(ctx, c)
		if err != nil {
			g.logger.WithFields(map[string]interface{}{
				"cluster": c.description,
				"error":   err.Error(),
			}).Warn("Skipping cluster, draft failed")
			continue
		}

		conflicts, err := g.rules.Add(ctx, r, "drafted from recurring findings")
		if err != nil {
			g.logger.ErrorWithErr(err, "Failed to store drafted rule")
			continue
		}
		if len(conflicts) > 0 {
			g.logger.WithFields(map[string]interface{}{
				"rule_id":   r.ID,
				"conflicts": len(conflicts),
			}).Warn("Drafted rule conflicts with stored rules")
		}
		created = append(created, r)
	}

	g.logger.WithFields(map[string]interface{}{
		"clusters": len(clusters),
		"drafted":  len(created),
	}).Info("Candidate generation completed")
	return created, nil
}

func (g *Generator) draftRule(ctx context.Context, c cluster) (*rule.SecurityRule, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.2,
		MaxTokens:   400,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: clusterPrompt(c)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}

	d, err := parseDraft(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	severity := rule.Severity(strings.ToUpper(d.Severity))
	if !severity.Valid() {
		severity = c.severity
	}

	return &rule.SecurityRule{
		ID:          "ml-" + uuid.New().String(),
		Name:        d.Name,
		Description: d.Description,
		Severity:    severity,
		Pattern:     d.Pattern,
		Remediation: d.Remediation,
		Origin:      rule.OriginMLGenerated,
		Status:      rule.StatusCandidate,
	}, nil
}

// draft is the JSON shape the model is asked to produce.
type draft struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Pattern     string `json:"pattern"`
	Remediation string `json:"remediation"`
}

// parseDraft extracts the JSON object from the model output, tolerating
// markdown code fences and prose around it.
func parseDraft(content string) (*draft, error) {
	s := strings.TrimSpace(content)
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			s = s[i : j+1]
		}
	}

	var d draft
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil, fmt.Errorf("model returned unparseable draft: %w", err)
	}
	if d.Name == "" || d.Pattern == "" {
		return nil, fmt.Errorf("model draft missing name or pattern")
	}
	return &d, nil
}

// cluster is a group of findings reporting the same issue.
type cluster struct {
	description string
	severity    rule.Severity
	count       int
	files       []string
}

// clusterFindings groups findings by description and keeps the groups large
// enough to count as recurring. The cluster severity is the highest observed.
func clusterFindings(findings []rule.Finding) []cluster {
	byDescription := make(map[string]*cluster)
	for _, f := range findings {
		c, ok := byDescription[f.Description]
		if !ok {
			c = &cluster{description: f.Description, severity: f.Severity}
			byDescription[f.Description] = c
		}
		c.count++
		if f.Severity.Rank() > c.severity.Rank() {
			c.severity = f.Severity
		}
		if f.FilePath != "" && len(c.files) < 5 && !containsString(c.files, f.FilePath) {
			c.files = append(c.files, f.FilePath)
		}
	}

	var clusters []cluster
	for _, c := range byDescription {
		if c.count >= minClusterSize {
			clusters = append(clusters, *c)
		}
	}
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].description < clusters[j].description
	})
	return clusters
}

func clusterPrompt(c cluster) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A scan produced %d findings of the same issue:\n", c.count)
	fmt.Fprintf(&b, "  issue: %s\n", c.description)
	fmt.Fprintf(&b, "  observed severity: %s\n", c.severity)
	if len(c.files) > 0 {
		fmt.Fprintf(&b, "  affected files: %s\n", strings.Join(c.files, ", "))
	}
	b.WriteString("Draft one reusable detection rule that would catch this class of issue.")
	return b.String()
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
