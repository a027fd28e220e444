package rule

import "time"

// SecurityRule is the central entity of the rule engine. Rules are only
// mutated through the lifecycle service, never directly.
type SecurityRule struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	Pattern     string    `json:"pattern"`
	Remediation string    `json:"remediation"`
	Origin      Origin    `json:"origin"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Severity is an ordered enum: LOW < MEDIUM < HIGH < CRITICAL
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank returns the ordering position of the severity, 0 for unknown values
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Valid reports whether s is a known severity
func (s Severity) Valid() bool { return s.Rank() > 0 }

// Status forms the rule state machine: CANDIDATE -> ACTIVE | REJECTED.
// REJECTED is terminal but not deleted; rejected rules are kept for audit.
type Status string

const (
	StatusCandidate Status = "CANDIDATE"
	StatusActive    Status = "ACTIVE"
	StatusRejected  Status = "REJECTED"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	return s == StatusCandidate || s == StatusActive || s == StatusRejected
}

// Origin records where a rule came from
type Origin string

const (
	OriginStatic      Origin = "STATIC"
	OriginMLGenerated Origin = "ML_GENERATED"
)

// Valid reports whether o is a known origin
func (o Origin) Valid() bool {
	return o == OriginStatic || o == OriginMLGenerated
}

// Version is an immutable snapshot of a rule, written whenever an existing
// rule's content changes. Version numbers are strictly increasing per rule,
// starting at 1. Versions are append-only.
type Version struct {
	RuleID       string       `json:"rule_id"`
	Version      int          `json:"version"`
	CreatedAt    time.Time    `json:"created_at"`
	ChangeReason string       `json:"change_reason,omitempty"`
	Snapshot     SecurityRule `json:"snapshot"`
}

// Metrics tracks how effective a rule is in practice. One record per rule,
// created zero-valued at insertion.
type Metrics struct {
	RuleID             string     `json:"rule_id"`
	TimesTriggered     int64      `json:"times_triggered"`
	TruePositives      int64      `json:"true_positives"`
	FalsePositives     int64      `json:"false_positives"`
	LastTriggered      *time.Time `json:"last_triggered,omitempty"`
	EffectivenessScore float64    `json:"effectiveness_score"`
}

// Recompute updates the effectiveness score: true positives over total
// triaged triggers, 0 when nothing has been triaged yet.
func (m *Metrics) Recompute() {
	total := m.TruePositives + m.FalsePositives
	if total == 0 {
		m.EffectivenessScore = 0
		return
	}
	m.EffectivenessScore = float64(m.TruePositives) / float64(total)
}

// ConflictType classifies a detected tension between two rules
type ConflictType string

const (
	// ConflictPatternSeverityMismatch: identical evaluation patterns with
	// differing severities.
	ConflictPatternSeverityMismatch ConflictType = "pattern_severity_mismatch"
	// ConflictDuplicateName: case-insensitively identical display names.
	ConflictDuplicateName ConflictType = "duplicate_name"
)

// Conflict is an advisory record flagging tension between two rules. It is
// stored for human review and does not itself change rule status, except that
// adding a new rule with conflicts forces the new rule to CANDIDATE.
type Conflict struct {
	RuleID            string       `json:"rule_id"`
	ConflictingRuleID string       `json:"conflicting_rule_id"`
	Type              ConflictType `json:"type"`
	Description       string       `json:"description"`
	Severity          Severity     `json:"severity"`
}

// Resolution picks the surviving side of a conflict
type Resolution string

const (
	// ResolutionKeepFirst rejects the second rule of the pair.
	ResolutionKeepFirst Resolution = "keep_first"
	// ResolutionKeepSecond rejects the first rule of the pair.
	ResolutionKeepSecond Resolution = "keep_second"
	// ResolutionMerge clears the conflict record without touching either
	// rule; an actual field merge is a manual follow-up.
	ResolutionMerge Resolution = "merge"
)

// Valid reports whether r is a known resolution
func (r Resolution) Valid() bool {
	return r == ResolutionKeepFirst || r == ResolutionKeepSecond || r == ResolutionMerge
}

// Finding is one concrete policy violation produced by evaluating a rule
// against a resource. Findings are transient; the engine does not persist
// them.
type Finding struct {
	RuleID      string   `json:"rule_id"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	FilePath    string   `json:"file_path"`
	LineNumber  int      `json:"line_number"`
	Remediation string   `json:"remediation"`
}

// FindingKey is the deduplication identity of a finding
type FindingKey struct {
	RuleID      string
	FilePath    string
	LineNumber  int
	Description string
}

// Key returns the deduplication identity of the finding
func (f Finding) Key() FindingKey {
	return FindingKey{
		RuleID:      f.RuleID,
		FilePath:    f.FilePath,
		LineNumber:  f.LineNumber,
		Description: f.Description,
	}
}

// Filter contains rule listing options
type Filter struct {
	Status   Status
	Origin   Origin
	Severity Severity
}

// Stats summarizes the stored rule set
type Stats struct {
	RulesByStatus map[Status]int `json:"rules_by_status"`
	OpenConflicts int            `json:"open_conflicts"`
}
