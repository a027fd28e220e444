package events

import (
	"context"
	"time"

	"github.com/pratik-mahalle/infrasec/internal/config"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
)

// Event types emitted by the rule engine
const (
	TypeRuleAdded        = "rule.added"
	TypeRuleUpdated      = "rule.updated"
	TypeRuleRemoved      = "rule.removed"
	TypeRuleApproved     = "rule.approved"
	TypeRuleRejected     = "rule.rejected"
	TypeRuleDemoted      = "rule.demoted"
	TypeConflictDetected = "rule.conflict_detected"
	TypeConflictResolved = "rule.conflict_resolved"
	TypeScanCompleted    = "scan.completed"
)

// Event is a lifecycle notification for downstream consumers
type Event struct {
	Type      string      `json:"type"`
	RuleID    string      `json:"rule_id,omitempty"`
	Detail    interface{} `json:"detail,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher emits events. Publishing is best-effort: failures are logged by
// implementations, never returned, so event delivery can not block or fail
// a lifecycle operation.
type Publisher interface {
	Publish(ctx context.Context, e Event)
	Close()
}

// New returns the publisher for the given configuration: a NATS publisher
// when a URL is configured, otherwise a no-op.
func New(cfg config.EventsConfig, log *logger.Logger) (Publisher, error) {
	if cfg.URL == "" {
		return NoopPublisher{}, nil
	}
	return NewNATSPublisher(cfg.URL, cfg.SubjectPrefix, log)
}

// NoopPublisher discards all events
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) {}
func (NoopPublisher) Close()                         {}
