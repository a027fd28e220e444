package testutil

import (
	"context"
	"sort"

	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
	"github.com/pratik-mahalle/infrasec/internal/pkg/errors"
)

// MockRuleStore is an in-memory implementation of rule.Store
type MockRuleStore struct {
	Rules     map[string]*rule.SecurityRule
	Versions  map[string][]*rule.Version
	Metrics   map[string]*rule.Metrics
	Conflicts []*rule.Conflict

	CreateError   error
	UpdateError   error
	GetError      error
	ListError     error
	DeleteError   error
	MetricsError  error
	ConflictError error
}

func NewMockRuleStore() *MockRuleStore {
	return &MockRuleStore{
		Rules:    make(map[string]*rule.SecurityRule),
		Versions: make(map[string][]*rule.Version),
		Metrics:  make(map[string]*rule.Metrics),
	}
}

func (m *MockRuleStore) CreateRule(ctx context.Context, r *rule.SecurityRule) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	stored := *r
	m.Rules[r.ID] = &stored
	m.Metrics[r.ID] = &rule.Metrics{RuleID: r.ID}
	return nil
}

func (m *MockRuleStore) UpdateRuleWithVersion(ctx context.Context, updated *rule.SecurityRule, snapshot rule.Version) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	if _, ok := m.Rules[updated.ID]; !ok {
		return errors.NotFound("Rule")
	}
	m.Versions[snapshot.RuleID] = append(m.Versions[snapshot.RuleID], &snapshot)
	stored := *updated
	m.Rules[updated.ID] = &stored
	return nil
}

func (m *MockRuleStore) UpdateRuleStatus(ctx context.Context, id string, status rule.Status) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	r, ok := m.Rules[id]
	if !ok {
		return errors.NotFound("Rule")
	}
	r.Status = status
	return nil
}

func (m *MockRuleStore) GetRule(ctx context.Context, id string) (*rule.SecurityRule, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	r, ok := m.Rules[id]
	if !ok {
		return nil, errors.NotFound("Rule")
	}
	found := *r
	return &found, nil
}

func (m *MockRuleStore) ListRules(ctx context.Context, filter rule.Filter) ([]*rule.SecurityRule, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	var result []*rule.SecurityRule
	for _, r := range m.Rules {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Origin != "" && r.Origin != filter.Origin {
			continue
		}
		if filter.Severity != "" && r.Severity != filter.Severity {
			continue
		}
		found := *r
		result = append(result, &found)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MockRuleStore) DeleteRule(ctx context.Context, id string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	if _, ok := m.Rules[id]; !ok {
		return errors.NotFound("Rule")
	}
	delete(m.Rules, id)
	delete(m.Versions, id)
	delete(m.Metrics, id)
	var kept []*rule.Conflict
	for _, c := range m.Conflicts {
		if c.RuleID == id || c.ConflictingRuleID == id {
			continue
		}
		kept = append(kept, c)
	}
	m.Conflicts = kept
	return nil
}

func (m *MockRuleStore) ListVersions(ctx context.Context, ruleID string) ([]*rule.Version, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	return m.Versions[ruleID], nil
}

func (m *MockRuleStore) NextVersion(ctx context.Context, ruleID string) (int, error) {
	return len(m.Versions[ruleID]) + 1, nil
}

func (m *MockRuleStore) GetMetrics(ctx context.Context, ruleID string) (*rule.Metrics, error) {
	if m.MetricsError != nil {
		return nil, m.MetricsError
	}
	mt, ok := m.Metrics[ruleID]
	if !ok {
		return nil, errors.NotFound("Rule metrics")
	}
	found := *mt
	return &found, nil
}

func (m *MockRuleStore) UpdateMetrics(ctx context.Context, mt *rule.Metrics) error {
	if m.MetricsError != nil {
		return m.MetricsError
	}
	if _, ok := m.Metrics[mt.RuleID]; !ok {
		return errors.NotFound("Rule metrics")
	}
	stored := *mt
	m.Metrics[mt.RuleID] = &stored
	return nil
}

func (m *MockRuleStore) SaveConflict(ctx context.Context, c *rule.Conflict) error {
	if m.ConflictError != nil {
		return m.ConflictError
	}
	for _, existing := range m.Conflicts {
		if existing.RuleID == c.RuleID &&
			existing.ConflictingRuleID == c.ConflictingRuleID &&
			existing.Type == c.Type {
			return nil
		}
	}
	stored := *c
	m.Conflicts = append(m.Conflicts, &stored)
	return nil
}

func (m *MockRuleStore) ListConflicts(ctx context.Context) ([]*rule.Conflict, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	return m.Conflicts, nil
}

func (m *MockRuleStore) ListConflictsForRule(ctx context.Context, ruleID string) ([]*rule.Conflict, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	var result []*rule.Conflict
	for _, c := range m.Conflicts {
		if c.RuleID == ruleID || c.ConflictingRuleID == ruleID {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *MockRuleStore) DeleteConflictPair(ctx context.Context, ruleID, otherID string) error {
	if m.ConflictError != nil {
		return m.ConflictError
	}
	var kept []*rule.Conflict
	for _, c := range m.Conflicts {
		if (c.RuleID == ruleID && c.ConflictingRuleID == otherID) ||
			(c.RuleID == otherID && c.ConflictingRuleID == ruleID) {
			continue
		}
		kept = append(kept, c)
	}
	m.Conflicts = kept
	return nil
}

func (m *MockRuleStore) CountByStatus(ctx context.Context) (map[rule.Status]int, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	counts := make(map[rule.Status]int)
	for _, r := range m.Rules {
		counts[r.Status]++
	}
	return counts, nil
}

func (m *MockRuleStore) CountConflicts(ctx context.Context) (int, error) {
	if m.ListError != nil {
		return 0, m.ListError
	}
	return len(m.Conflicts), nil
}

func (m *MockRuleStore) Close() error {
	return nil
}
