package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pratik-mahalle/infrasec/internal/detector"
	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
	"github.com/pratik-mahalle/infrasec/internal/events"
	"github.com/pratik-mahalle/infrasec/internal/pkg/errors"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
)

// ruleService implements the rule lifecycle state machine on top of a
// rule.Store. Mutating operations serialize on a single mutex so that
// conflict detection always runs against a settled rule set.
type ruleService struct {
	store  rule.Store
	events events.Publisher
	logger *logger.Logger
	mu     sync.Mutex
}

// NewRuleService creates a new rule lifecycle service
func NewRuleService(store rule.Store, pub events.Publisher, log *logger.Logger) rule.Service {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return &ruleService{
		store:  store,
		events: pub,
		logger: log.WithComponent("rules"),
	}
}

// Add validates, conflict-checks, and persists a rule. A rule whose ID is
// already stored is updated in place with a version snapshot of the previous
// content; metrics and conflict records survive the update.
func (s *ruleService) Add(ctx context.Context, r *rule.SecurityRule, changeReason string) ([]rule.Conflict, error) {
	if r.Status == "" {
		r.Status = rule.StatusCandidate
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	if violations := r.Validate(); len(violations) > 0 {
		return nil, errors.ValidationError("Rule validation failed", violations)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.ListRules(ctx, rule.Filter{})
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to list rules for conflict detection")
		return nil, err
	}

	conflicts := detector.DetectConflicts(r, existing)
	if len(conflicts) > 0 {
		// Conflicted rules always land as candidates, whatever the
		// caller asked for.
		r.Status = rule.StatusCandidate
	}

	previous, err := s.store.GetRule(ctx, r.ID)
	switch {
	case err == nil:
		next, err := s.store.NextVersion(ctx, r.ID)
		if err != nil {
			s.logger.ErrorWithErr(err, "Failed to determine next rule version")
			return nil, err
		}
		snapshot := rule.Version{
			RuleID:       r.ID,
			Version:      next,
			CreatedAt:    time.Now().UTC(),
			ChangeReason: changeReason,
			Snapshot:     *previous,
		}
		if err := s.store.UpdateRuleWithVersion(ctx, r, snapshot); err != nil {
			s.logger.ErrorWithErr(err, "Failed to update rule")
			return nil, err
		}
		s.events.Publish(ctx, events.Event{
			Type:   events.TypeRuleUpdated,
			RuleID: r.ID,
			Detail: map[string]interface{}{"version": next, "status": r.Status},
		})
	case errors.IsNotFound(err):
		if err := s.store.CreateRule(ctx, r); err != nil {
			s.logger.ErrorWithErr(err, "Failed to create rule")
			return nil, err
		}
		s.events.Publish(ctx, events.Event{
			Type:   events.TypeRuleAdded,
			RuleID: r.ID,
			Detail: map[string]interface{}{"status": r.Status},
		})
	default:
		s.logger.ErrorWithErr(err, "Failed to look up rule")
		return nil, err
	}

	for i := range conflicts {
		if err := s.store.SaveConflict(ctx, &conflicts[i]); err != nil {
			s.logger.ErrorWithErr(err, "Failed to save conflict")
			return nil, err
		}
		s.events.Publish(ctx, events.Event{
			Type:   events.TypeConflictDetected,
			RuleID: r.ID,
			Detail: conflicts[i],
		})
	}

	s.logger.WithFields(map[string]interface{}{
		"rule_id":   r.ID,
		"status":    r.Status,
		"conflicts": len(conflicts),
	}).Info("Rule stored")

	return conflicts, nil
}

// Remove deletes a rule and everything hanging off it
func (s *ruleService) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteRule(ctx, id); err != nil {
		s.logger.ErrorWithErr(err, "Failed to delete rule")
		return err
	}

	s.events.Publish(ctx, events.Event{Type: events.TypeRuleRemoved, RuleID: id})
	s.logger.With("rule_id", id).Info("Rule removed")
	return nil
}

// GetByID retrieves a single rule
func (s *ruleService) GetByID(ctx context.Context, id string) (*rule.SecurityRule, error) {
	r, err := s.store.GetRule(ctx, id)
	if err != nil {
		if !errors.IsNotFound(err) {
			s.logger.ErrorWithErr(err, "Failed to get rule")
		}
		return nil, err
	}
	return r, nil
}

// GetByStatus retrieves all rules with the given status
func (s *ruleService) GetByStatus(ctx context.Context, status rule.Status) ([]*rule.SecurityRule, error) {
	rules, err := s.store.ListRules(ctx, rule.Filter{Status: status})
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to list rules")
		return nil, err
	}
	return rules, nil
}

// GetAll retrieves all stored rules
func (s *ruleService) GetAll(ctx context.Context) ([]*rule.SecurityRule, error) {
	rules, err := s.store.ListRules(ctx, rule.Filter{})
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to list rules")
		return nil, err
	}
	return rules, nil
}

// Approve transitions a CANDIDATE rule to ACTIVE. Active rules that conflict
// with the newly approved one are demoted back to CANDIDATE for re-review.
func (s *ruleService) Approve(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.store.GetRule(ctx, id)
	if err != nil {
		return err
	}
	if r.Status != rule.StatusCandidate {
		return errors.InvalidState(fmt.Sprintf("Rule %s is not a candidate (status: %s)", id, r.Status))
	}

	actives, err := s.store.ListRules(ctx, rule.Filter{Status: rule.StatusActive})
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to list active rules")
		return err
	}

	demoted := make(map[string]bool)
	for _, c := range detector.DetectConflicts(r, actives) {
		otherID := c.ConflictingRuleID
		if demoted[otherID] {
			continue
		}
		if err := s.store.UpdateRuleStatus(ctx, otherID, rule.StatusCandidate); err != nil {
			s.logger.ErrorWithErr(err, "Failed to demote conflicting rule")
			return err
		}
		demoted[otherID] = true
		s.events.Publish(ctx, events.Event{
			Type:   events.TypeRuleDemoted,
			RuleID: otherID,
			Detail: c,
		})
		s.logger.WithFields(map[string]interface{}{
			"rule_id":     otherID,
			"conflict":    string(c.Type),
			"approved_id": id,
		}).Warn("Demoted conflicting active rule to candidate")
	}

	if err := s.store.UpdateRuleStatus(ctx, id, rule.StatusActive); err != nil {
		s.logger.ErrorWithErr(err, "Failed to approve rule")
		return err
	}

	s.events.Publish(ctx, events.Event{Type: events.TypeRuleApproved, RuleID: id})
	s.logger.WithFields(map[string]interface{}{
		"rule_id": id,
		"demoted": len(demoted),
	}).Info("Rule approved")
	return nil
}

// Reject transitions a CANDIDATE rule to REJECTED
func (s *ruleService) Reject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.store.GetRule(ctx, id)
	if err != nil {
		return err
	}
	if r.Status != rule.StatusCandidate {
		return errors.InvalidState(fmt.Sprintf("Rule %s is not a candidate (status: %s)", id, r.Status))
	}

	if err := s.store.UpdateRuleStatus(ctx, id, rule.StatusRejected); err != nil {
		s.logger.ErrorWithErr(err, "Failed to reject rule")
		return err
	}

	s.events.Publish(ctx, events.Event{Type: events.TypeRuleRejected, RuleID: id})
	s.logger.With("rule_id", id).Info("Rule rejected")
	return nil
}

// UpdateMetrics records an evaluation outcome for a rule. Nothing is written
// when the rule did not trigger. isTruePositive is optional triage feedback;
// when absent only the trigger counters move.
func (s *ruleService) UpdateMetrics(ctx context.Context, id string, triggered bool, isTruePositive *bool) error {
	if !triggered {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.store.GetMetrics(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	m.TimesTriggered++
	m.LastTriggered = &now
	if isTruePositive != nil {
		if *isTruePositive {
			m.TruePositives++
		} else {
			m.FalsePositives++
		}
	}
	m.Recompute()

	if err := s.store.UpdateMetrics(ctx, m); err != nil {
		s.logger.ErrorWithErr(err, "Failed to update rule metrics")
		return err
	}
	return nil
}

// ResolveConflict applies a resolution to a conflict pair. keep_first rejects
// the second rule, keep_second rejects the first, merge touches neither. The
// pair's conflict record is removed in every case. A side that no longer
// exists is skipped rather than treated as an error.
func (s *ruleService) ResolveConflict(ctx context.Context, ruleID, otherID string, resolution rule.Resolution) error {
	if !resolution.Valid() {
		return errors.BadRequest(fmt.Sprintf("Invalid resolution: %s", resolution))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch resolution {
	case rule.ResolutionKeepFirst:
		if err := s.rejectIfExists(ctx, otherID); err != nil {
			return err
		}
	case rule.ResolutionKeepSecond:
		if err := s.rejectIfExists(ctx, ruleID); err != nil {
			return err
		}
	case rule.ResolutionMerge:
		// Merging the rule contents is a manual follow-up; resolving
		// only clears the conflict.
	}

	if err := s.store.DeleteConflictPair(ctx, ruleID, otherID); err != nil {
		s.logger.ErrorWithErr(err, "Failed to delete conflict record")
		return err
	}

	s.events.Publish(ctx, events.Event{
		Type:   events.TypeConflictResolved,
		RuleID: ruleID,
		Detail: map[string]interface{}{"other_id": otherID, "resolution": resolution},
	})
	s.logger.WithFields(map[string]interface{}{
		"rule_id":    ruleID,
		"other_id":   otherID,
		"resolution": string(resolution),
	}).Info("Conflict resolved")
	return nil
}

func (s *ruleService) rejectIfExists(ctx context.Context, id string) error {
	err := s.store.UpdateRuleStatus(ctx, id, rule.StatusRejected)
	if err != nil && !errors.IsNotFound(err) {
		s.logger.ErrorWithErr(err, "Failed to reject rule during conflict resolution")
		return err
	}
	return nil
}

// GetVersions returns a rule's version history
func (s *ruleService) GetVersions(ctx context.Context, id string) ([]*rule.Version, error) {
	versions, err := s.store.ListVersions(ctx, id)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to list rule versions")
		return nil, err
	}
	return versions, nil
}

// GetMetrics returns a rule's effectiveness metrics
func (s *ruleService) GetMetrics(ctx context.Context, id string) (*rule.Metrics, error) {
	m, err := s.store.GetMetrics(ctx, id)
	if err != nil {
		if !errors.IsNotFound(err) {
			s.logger.ErrorWithErr(err, "Failed to get rule metrics")
		}
		return nil, err
	}
	return m, nil
}

// GetConflicts returns all open conflicts
func (s *ruleService) GetConflicts(ctx context.Context) ([]*rule.Conflict, error) {
	conflicts, err := s.store.ListConflicts(ctx)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to list conflicts")
		return nil, err
	}
	return conflicts, nil
}

// GetConflictsForRule returns open conflicts involving a rule
func (s *ruleService) GetConflictsForRule(ctx context.Context, id string) ([]*rule.Conflict, error) {
	conflicts, err := s.store.ListConflictsForRule(ctx, id)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to list conflicts for rule")
		return nil, err
	}
	return conflicts, nil
}

// Stats summarizes the stored rule set
func (s *ruleService) Stats(ctx context.Context) (*rule.Stats, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to count rules")
		return nil, err
	}
	for _, status := range []rule.Status{rule.StatusCandidate, rule.StatusActive, rule.StatusRejected} {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}

	open, err := s.store.CountConflicts(ctx)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to count conflicts")
		return nil, err
	}

	return &rule.Stats{
		RulesByStatus: counts,
		OpenConflicts: open,
	}, nil
}
