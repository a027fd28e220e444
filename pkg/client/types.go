package client

import "time"

// Rule represents a stored security rule
type Rule struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"` // LOW, MEDIUM, HIGH, CRITICAL
	Pattern     string    `json:"pattern"`
	Remediation string    `json:"remediation"`
	Origin      string    `json:"origin"` // STATIC, ML_GENERATED
	Status      string    `json:"status"` // CANDIDATE, ACTIVE, REJECTED
	CreatedAt   time.Time `json:"created_at"`
}

// Version represents one snapshot in a rule's version history
type Version struct {
	RuleID       string    `json:"rule_id"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	ChangeReason string    `json:"change_reason,omitempty"`
	Snapshot     Rule      `json:"snapshot"`
}

// Metrics represents a rule's effectiveness record
type Metrics struct {
	RuleID             string     `json:"rule_id"`
	TimesTriggered     int64      `json:"times_triggered"`
	TruePositives      int64      `json:"true_positives"`
	FalsePositives     int64      `json:"false_positives"`
	LastTriggered      *time.Time `json:"last_triggered,omitempty"`
	EffectivenessScore float64    `json:"effectiveness_score"`
}

// Conflict represents an advisory conflict between two rules
type Conflict struct {
	RuleID            string `json:"rule_id"`
	ConflictingRuleID string `json:"conflicting_rule_id"`
	Type              string `json:"type"` // pattern_severity_mismatch, duplicate_name
	Description       string `json:"description"`
	Severity          string `json:"severity"`
}

// Finding represents one policy violation produced by a scan
type Finding struct {
	RuleID      string `json:"rule_id"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	FilePath    string `json:"file_path"`
	LineNumber  int    `json:"line_number"`
	Remediation string `json:"remediation"`
}

// ScanResult summarizes one scan run
type ScanResult struct {
	Findings      []Finding `json:"findings"`
	ResourceCount int       `json:"resource_count"`
	RuleCount     int       `json:"rule_count"`
	DurationMS    int64     `json:"duration_ms"`
	ScannedAt     time.Time `json:"scanned_at"`
}

// Stats summarizes the stored rule set
type Stats struct {
	RulesByStatus map[string]int `json:"rules_by_status"`
	OpenConflicts int            `json:"open_conflicts"`
}

// HealthResponse represents the API health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ListOptions contains common pagination options
type ListOptions struct {
	Page     int `json:"page,omitempty"`
	PageSize int `json:"page_size,omitempty"`
}

// RuleList is a paginated page of rules
type RuleList struct {
	Data       []Rule `json:"data"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalItems int    `json:"total_items"`
	TotalPages int    `json:"total_pages"`
}
