package rule

import "context"

// Store defines the persistence contract for rules, their version history,
// per-rule metrics, and open conflicts.
//
// Every stored rule record carries a content checksum. Reads recompute and
// compare it: bulk reads silently exclude corrupt records (with a logged
// warning), single-record fetches surface an integrity error. Updates of an
// existing rule are atomic with the paired version snapshot, and deletion of
// a rule removes all dependent records.
type Store interface {
	// CreateRule inserts a new rule together with its zero-valued metrics
	// record.
	CreateRule(ctx context.Context, r *SecurityRule) error

	// UpdateRuleWithVersion overwrites an existing rule's content and appends
	// a snapshot of the previous content in the same transaction. Either both
	// writes are durable or neither is.
	UpdateRuleWithVersion(ctx context.Context, updated *SecurityRule, snapshot Version) error

	// UpdateRuleStatus changes only the status of a rule. Status transitions
	// alone do not produce version snapshots.
	UpdateRuleStatus(ctx context.Context, id string, status Status) error

	// GetRule retrieves a single rule, verifying its checksum
	GetRule(ctx context.Context, id string) (*SecurityRule, error)

	// ListRules retrieves rules matching the filter, skipping records that
	// fail checksum verification.
	ListRules(ctx context.Context, filter Filter) ([]*SecurityRule, error)

	// DeleteRule removes a rule and cascades to its versions, metrics, and
	// conflicts on either side.
	DeleteRule(ctx context.Context, id string) error

	// ListVersions returns a rule's version history ordered by version number
	ListVersions(ctx context.Context, ruleID string) ([]*Version, error)

	// NextVersion returns the next unused version number for a rule,
	// starting at 1.
	NextVersion(ctx context.Context, ruleID string) (int, error)

	// GetMetrics retrieves the metrics record for a rule
	GetMetrics(ctx context.Context, ruleID string) (*Metrics, error)

	// UpdateMetrics overwrites the metrics record for a rule
	UpdateMetrics(ctx context.Context, m *Metrics) error

	// SaveConflict records a detected conflict; saving the same pair and type
	// again is a no-op.
	SaveConflict(ctx context.Context, c *Conflict) error

	// ListConflicts returns all open conflicts
	ListConflicts(ctx context.Context) ([]*Conflict, error)

	// ListConflictsForRule returns open conflicts with the rule on either side
	ListConflictsForRule(ctx context.Context, ruleID string) ([]*Conflict, error)

	// DeleteConflictPair removes conflict records between two rules,
	// regardless of direction.
	DeleteConflictPair(ctx context.Context, ruleID, otherID string) error

	// CountByStatus returns the number of stored rules per status
	CountByStatus(ctx context.Context) (map[Status]int, error)

	// CountConflicts returns the number of open conflict records
	CountConflicts(ctx context.Context) (int, error)

	// Close releases the underlying storage handle
	Close() error
}
