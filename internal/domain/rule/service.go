package rule

import "context"

// Service defines the rule lifecycle state machine. All mutating operations
// run their read-modify-write critical section under a single lock over the
// whole rule set; rule mutation is a low-frequency administrative path.
type Service interface {
	// Add validates the rule, runs conflict detection against the stored
	// set, and persists it. If conflicts are found the rule is stored with
	// status forced to CANDIDATE and each conflict is recorded. If the id
	// already exists this is an update: the previous content is snapshotted
	// as a new version and metrics/conflicts are preserved. Returns the
	// detected conflicts.
	Add(ctx context.Context, r *SecurityRule, changeReason string) ([]Conflict, error)

	// Remove deletes a rule and cascades to its versions, metrics, and
	// conflicts.
	Remove(ctx context.Context, id string) error

	// GetByID retrieves a single rule
	GetByID(ctx context.Context, id string) (*SecurityRule, error)

	// GetByStatus retrieves all rules with the given status
	GetByStatus(ctx context.Context, status Status) ([]*SecurityRule, error)

	// GetAll retrieves all stored rules
	GetAll(ctx context.Context) ([]*SecurityRule, error)

	// Approve transitions a CANDIDATE rule to ACTIVE. Any ACTIVE rule found
	// to conflict with it is demoted back to CANDIDATE for re-review.
	Approve(ctx context.Context, id string) error

	// Reject transitions a CANDIDATE rule to REJECTED
	Reject(ctx context.Context, id string) error

	// UpdateMetrics records an evaluation outcome. No-op when triggered is
	// false; isTruePositive is optional triage feedback.
	UpdateMetrics(ctx context.Context, id string, triggered bool, isTruePositive *bool) error

	// ResolveConflict applies a resolution to a conflict pair and removes
	// the conflict record.
	ResolveConflict(ctx context.Context, ruleID, otherID string, resolution Resolution) error

	// GetVersions returns a rule's version history
	GetVersions(ctx context.Context, id string) ([]*Version, error)

	// GetMetrics returns a rule's effectiveness metrics
	GetMetrics(ctx context.Context, id string) (*Metrics, error)

	// GetConflicts returns all open conflicts
	GetConflicts(ctx context.Context) ([]*Conflict, error)

	// GetConflictsForRule returns open conflicts involving a rule
	GetConflictsForRule(ctx context.Context, id string) ([]*Conflict, error)

	// Stats summarizes the stored rule set
	Stats(ctx context.Context) (*Stats, error)
}
