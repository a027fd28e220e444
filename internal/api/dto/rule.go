package dto

import "time"

// RuleDTO is the API representation of a security rule
type RuleDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	Pattern     string    `json:"pattern"`
	Remediation string    `json:"remediation"`
	Origin      string    `json:"origin"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateRuleRequest creates or updates a rule. The id is the stable rule
// identity: posting an existing id updates that rule and snapshots the
// previous content as a new version.
type CreateRuleRequest struct {
	ID           string `json:"id" validate:"required,min=3,max=50"`
	Name         string `json:"name" validate:"required,min=3"`
	Description  string `json:"description" validate:"required,min=10"`
	Severity     string `json:"severity" validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
	Pattern      string `json:"pattern" validate:"required"`
	Remediation  string `json:"remediation" validate:"required,min=10"`
	Origin       string `json:"origin,omitempty" validate:"omitempty,oneof=STATIC ML_GENERATED"`
	Status       string `json:"status,omitempty" validate:"omitempty,oneof=CANDIDATE ACTIVE REJECTED"`
	ChangeReason string `json:"change_reason,omitempty"`
}

// AddRuleResponse reports the stored rule plus any conflicts detected while
// adding it.
type AddRuleResponse struct {
	Rule      RuleDTO       `json:"rule"`
	Conflicts []ConflictDTO `json:"conflicts,omitempty"`
}

// VersionDTO is one snapshot in a rule's version history
type VersionDTO struct {
	RuleID       string    `json:"rule_id"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	ChangeReason string    `json:"change_reason,omitempty"`
	Snapshot     RuleDTO   `json:"snapshot"`
}

// MetricsDTO is the effectiveness record of one rule
type MetricsDTO struct {
	RuleID             string     `json:"rule_id"`
	TimesTriggered     int64      `json:"times_triggered"`
	TruePositives      int64      `json:"true_positives"`
	FalsePositives     int64      `json:"false_positives"`
	LastTriggered      *time.Time `json:"last_triggered,omitempty"`
	EffectivenessScore float64    `json:"effectiveness_score"`
}

// MetricsFeedbackRequest records triage feedback for a rule. Triggered is
// required; is_true_positive is optional and distinguishes confirmed findings
// from noise.
type MetricsFeedbackRequest struct {
	Triggered      bool  `json:"triggered"`
	IsTruePositive *bool `json:"is_true_positive,omitempty"`
}

// ConflictDTO is one advisory conflict record
type ConflictDTO struct {
	RuleID            string `json:"rule_id"`
	ConflictingRuleID string `json:"conflicting_rule_id"`
	Type              string `json:"type"`
	Description       string `json:"description"`
	Severity          string `json:"severity"`
}

// ResolveConflictRequest resolves the conflict between two rules
type ResolveConflictRequest struct {
	RuleID            string `json:"rule_id" validate:"required"`
	ConflictingRuleID string `json:"conflicting_rule_id" validate:"required"`
	Resolution        string `json:"resolution" validate:"required,oneof=keep_first keep_second merge"`
}
