package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// RuleService handles rule-related API calls
type RuleService struct {
	client *Client
}

// CreateRuleRequest represents a request to create or update a rule. Posting
// an existing id updates that rule and snapshots the previous content as a
// new version.
type CreateRuleRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Severity     string `json:"severity"` // LOW, MEDIUM, HIGH, CRITICAL
	Pattern      string `json:"pattern"`
	Remediation  string `json:"remediation"`
	Origin       string `json:"origin,omitempty"` // STATIC, ML_GENERATED
	Status       string `json:"status,omitempty"` // CANDIDATE, ACTIVE, REJECTED
	ChangeReason string `json:"change_reason,omitempty"`
}

// CreateRuleResponse contains the stored rule plus any conflicts detected
// while adding it
type CreateRuleResponse struct {
	Rule      Rule       `json:"rule"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

// FeedbackRequest records triage feedback for a rule
type FeedbackRequest struct {
	Triggered      bool  `json:"triggered"`
	IsTruePositive *bool `json:"is_true_positive,omitempty"`
}

// ResolveConflictRequest resolves the conflict between two rules
type ResolveConflictRequest struct {
	RuleID            string `json:"rule_id"`
	ConflictingRuleID string `json:"conflicting_rule_id"`
	Resolution        string `json:"resolution"` // keep_first, keep_second, merge
}

// RuleListOptions contains options for listing rules
type RuleListOptions struct {
	ListOptions
	Status string `json:"status,omitempty"`
}

// List retrieves a page of rules
func (s *RuleService) List(ctx context.Context, opts *RuleListOptions) (*RuleList, error) {
	query := url.Values{}

	if opts != nil {
		if opts.Page > 0 {
			query.Set("page", strconv.Itoa(opts.Page))
		}
		if opts.PageSize > 0 {
			query.Set("page_size", strconv.Itoa(opts.PageSize))
		}
		if opts.Status != "" {
			query.Set("status", opts.Status)
		}
	}

	path := "/api/v1/rules"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var list RuleList
	if err := s.client.doRequest(ctx, "GET", path, nil, &list); err != nil {
		return nil, err
	}

	return &list, nil
}

// Get retrieves a single rule by ID
func (s *RuleService) Get(ctx context.Context, id string) (*Rule, error) {
	path := fmt.Sprintf("/api/v1/rules/%s", id)

	var rule Rule
	if err := s.client.doRequest(ctx, "GET", path, nil, &rule); err != nil {
		return nil, err
	}

	return &rule, nil
}

// Create creates a new rule, or updates the rule when the id already exists
func (s *RuleService) Create(ctx context.Context, req CreateRuleRequest) (*CreateRuleResponse, error) {
	var resp CreateRuleResponse
	if err := s.client.doRequest(ctx, "POST", "/api/v1/rules", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Delete deletes a rule and its versions, metrics, and conflict records
func (s *RuleService) Delete(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/v1/rules/%s", id)
	return s.client.doRequest(ctx, "DELETE", path, nil, nil)
}

// Approve transitions a CANDIDATE rule to ACTIVE
func (s *RuleService) Approve(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/v1/rules/%s/approve", id)
	return s.client.doRequest(ctx, "POST", path, nil, nil)
}

// Reject transitions a CANDIDATE rule to REJECTED
func (s *RuleService) Reject(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/v1/rules/%s/reject", id)
	return s.client.doRequest(ctx, "POST", path, nil, nil)
}

// Versions retrieves a rule's version history
func (s *RuleService) Versions(ctx context.Context, id string) ([]Version, error) {
	path := fmt.Sprintf("/api/v1/rules/%s/versions", id)

	var versions []Version
	if err := s.client.doRequest(ctx, "GET", path, nil, &versions); err != nil {
		return nil, err
	}

	return versions, nil
}

// Metrics retrieves a rule's effectiveness metrics
func (s *RuleService) Metrics(ctx context.Context, id string) (*Metrics, error) {
	path := fmt.Sprintf("/api/v1/rules/%s/metrics", id)

	var metrics Metrics
	if err := s.client.doRequest(ctx, "GET", path, nil, &metrics); err != nil {
		return nil, err
	}

	return &metrics, nil
}

// Feedback records triage feedback against a rule's metrics
func (s *RuleService) Feedback(ctx context.Context, id string, req FeedbackRequest) error {
	path := fmt.Sprintf("/api/v1/rules/%s/feedback", id)
	return s.client.doRequest(ctx, "POST", path, req, nil)
}

// Conflicts retrieves all open conflicts
func (s *RuleService) Conflicts(ctx context.Context) ([]Conflict, error) {
	var conflicts []Conflict
	if err := s.client.doRequest(ctx, "GET", "/api/v1/rules/conflicts", nil, &conflicts); err != nil {
		return nil, err
	}

	return conflicts, nil
}

// ConflictsForRule retrieves open conflicts involving one rule
func (s *RuleService) ConflictsForRule(ctx context.Context, id string) ([]Conflict, error) {
	path := fmt.Sprintf("/api/v1/rules/%s/conflicts", id)

	var conflicts []Conflict
	if err := s.client.doRequest(ctx, "GET", path, nil, &conflicts); err != nil {
		return nil, err
	}

	return conflicts, nil
}

// ResolveConflict resolves a conflict pair
func (s *RuleService) ResolveConflict(ctx context.Context, req ResolveConflictRequest) error {
	return s.client.doRequest(ctx, "POST", "/api/v1/rules/conflicts/resolve", req, nil)
}

// Stats retrieves a summary of the stored rule set
func (s *RuleService) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := s.client.doRequest(ctx, "GET", "/api/v1/rules/stats", nil, &stats); err != nil {
		return nil, err
	}

	return &stats, nil
}
