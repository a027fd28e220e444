package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
	"github.com/pratik-mahalle/infrasec/internal/pkg/errors"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
	"github.com/pratik-mahalle/infrasec/internal/testutil"
)

func testRule(id string) *rule.SecurityRule {
	return &rule.SecurityRule{
		ID:          id,
		Name:        "Rule " + id,
		Description: "Flags a risky infrastructure configuration",
		Severity:    rule.SeverityHigh,
		Pattern:     "resource_type:aws_s3_bucket",
		Remediation: "Tighten the offending configuration",
		Origin:      rule.OriginStatic,
		Status:      rule.StatusCandidate,
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestRuleService() (rule.Service, *testutil.MockRuleStore) {
	store := testutil.NewMockRuleStore()
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	return NewRuleService(store, nil, log), store
}

func TestRuleService_Add(t *testing.T) {
	tests := []struct {
		name       string
		rule       *rule.SecurityRule
		wantErr    bool
		wantStatus rule.Status
	}{
		{
			name:       "valid candidate rule",
			rule:       testRule("add-1"),
			wantErr:    false,
			wantStatus: rule.StatusCandidate,
		},
		{
			name: "empty status defaults to candidate",
			rule: func() *rule.SecurityRule {
				r := testRule("add-2")
				r.Status = ""
				return r
			}(),
			wantErr:    false,
			wantStatus: rule.StatusCandidate,
		},
		{
			name: "active status honored without conflicts",
			rule: func() *rule.SecurityRule {
				r := testRule("add-3")
				r.Status = rule.StatusActive
				return r
			}(),
			wantErr:    false,
			wantStatus: rule.StatusActive,
		},
		{
			name: "invalid rule rejected",
			rule: func() *rule.SecurityRule {
				r := testRule("add-4")
				r.Description = "short"
				return r
			}(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, store := newTestRuleService()

			_, err := service.Add(context.Background(), tt.rule, "")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Add() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.IsValidation(err) {
					t.Errorf("Add() error = %v, want validation error", err)
				}
				return
			}

			stored, ok := store.Rules[tt.rule.ID]
			if !ok {
				t.Fatalf("Add() did not store rule %s", tt.rule.ID)
			}
			if stored.Status != tt.wantStatus {
				t.Errorf("stored status = %s, want %s", stored.Status, tt.wantStatus)
			}
			if _, ok := store.Metrics[tt.rule.ID]; !ok {
				t.Errorf("Add() did not create a metrics record")
			}
		})
	}
}

func TestRuleService_Add_CollectsAllViolations(t *testing.T) {
	service, _ := newTestRuleService()

	bad := &rule.SecurityRule{
		ID:          "x",
		Name:        "ab",
		Description: "short",
		Remediation: "short",
		Severity:    "BOGUS",
		Pattern:     "",
	}

	_, err := service.Add(context.Background(), bad, "")
	if !errors.IsValidation(err) {
		t.Fatalf("Add() error = %v, want validation error", err)
	}

	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("Add() error type = %T, want *errors.AppError", err)
	}
	violations, ok := appErr.Details.([]string)
	if !ok {
		t.Fatalf("Details type = %T, want []string", appErr.Details)
	}
	// id, name, description, remediation, severity, origin, pattern
	if len(violations) != 7 {
		t.Errorf("violations = %d (%v), want 7", len(violations), violations)
	}
}

func TestRuleService_Add_ConflictForcesCandidate(t *testing.T) {
	service, store := newTestRuleService()
	ctx := context.Background()

	first := testRule("conf-1")
	first.Status = rule.StatusActive
	if _, err := service.Add(ctx, first, ""); err != nil {
		t.Fatalf("Add() first rule error = %v", err)
	}

	// Same pattern, different severity: requested ACTIVE must be overridden.
	second := testRule("conf-2")
	second.Severity = rule.SeverityLow
	second.Status = rule.StatusActive

	conflicts, err := service.Add(ctx, second, "")
	if err != nil {
		t.Fatalf("Add() second rule error = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("Add() conflicts = %d, want 1", len(conflicts))
	}
	if conflicts[0].Type != rule.ConflictPatternSeverityMismatch {
		t.Errorf("conflict type = %s, want %s", conflicts[0].Type, rule.ConflictPatternSeverityMismatch)
	}
	if got := store.Rules["conf-2"].Status; got != rule.StatusCandidate {
		t.Errorf("stored status = %s, want %s", got, rule.StatusCandidate)
	}
	if len(store.Conflicts) != 1 {
		t.Errorf("stored conflicts = %d, want 1", len(store.Conflicts))
	}
	// The existing rule is untouched by add-time conflicts.
	if got := store.Rules["conf-1"].Status; got != rule.StatusActive {
		t.Errorf("existing rule status = %s, want %s", got, rule.StatusActive)
	}
}

func TestRuleService_Add_UpdateCreatesVersion(t *testing.T) {
	service, store := newTestRuleService()
	ctx := context.Background()

	original := testRule("upd-1")
	if _, err := service.Add(ctx, original, ""); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// Simulate accumulated metrics before the update.
	store.Metrics["upd-1"].TimesTriggered = 5

	updated := testRule("upd-1")
	updated.Description = "Flags a risky configuration, now with more detail"
	if _, err := service.Add(ctx, updated, "clarify description"); err != nil {
		t.Fatalf("Add() update error = %v", err)
	}

	versions := store.Versions["upd-1"]
	if len(versions) != 1 {
		t.Fatalf("versions = %d, want 1", len(versions))
	}
	v := versions[0]
	if v.Version != 1 {
		t.Errorf("version number = %d, want 1", v.Version)
	}
	if v.ChangeReason != "clarify description" {
		t.Errorf("change reason = %q, want %q", v.ChangeReason, "clarify description")
	}
	if v.Snapshot.Description != original.Description {
		t.Errorf("snapshot description = %q, want previous %q", v.Snapshot.Description, original.Description)
	}
	if got := store.Rules["upd-1"].Description; got != updated.Description {
		t.Errorf("stored description = %q, want %q", got, updated.Description)
	}
	if got := store.Metrics["upd-1"].TimesTriggered; got != 5 {
		t.Errorf("metrics after update = %d, want preserved 5", got)
	}
}

func TestRuleService_Approve(t *testing.T) {
	tests := []struct {
		name      string
		status    rule.Status
		missing   bool
		wantErr   bool
		errCheck  func(error) bool
		errLabel  string
	}{
		{name: "candidate approved", status: rule.StatusCandidate},
		{name: "active rule", status: rule.StatusActive, wantErr: true, errCheck: errors.IsInvalidState, errLabel: "invalid state"},
		{name: "rejected rule", status: rule.StatusRejected, wantErr: true, errCheck: errors.IsInvalidState, errLabel: "invalid state"},
		{name: "missing rule", missing: true, wantErr: true, errCheck: errors.IsNotFound, errLabel: "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, store := newTestRuleService()

			if !tt.missing {
				r := testRule("appr-1")
				r.Status = tt.status
				store.Rules[r.ID] = r
			}

			err := service.Approve(context.Background(), "appr-1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Approve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !tt.errCheck(err) {
					t.Errorf("Approve() error = %v, want %s", err, tt.errLabel)
				}
				return
			}
			if got := store.Rules["appr-1"].Status; got != rule.StatusActive {
				t.Errorf("status after approve = %s, want %s", got, rule.StatusActive)
			}
		})
	}
}

func TestRuleService_Approve_DemotesConflictingActive(t *testing.T) {
	service, store := newTestRuleService()
	ctx := context.Background()

	active := testRule("dem-active")
	active.Status = rule.StatusActive
	store.Rules[active.ID] = active

	// Shares the active rule's pattern with a different severity.
	candidate := testRule("dem-cand")
	candidate.Severity = rule.SeverityLow
	store.Rules[candidate.ID] = candidate

	if err := service.Approve(ctx, "dem-cand"); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	if got := store.Rules["dem-cand"].Status; got != rule.StatusActive {
		t.Errorf("approved rule status = %s, want %s", got, rule.StatusActive)
	}
	if got := store.Rules["dem-active"].Status; got != rule.StatusCandidate {
		t.Errorf("conflicting rule status = %s, want demoted to %s", got, rule.StatusCandidate)
	}
}

func TestRuleService_Reject(t *testing.T) {
	tests := []struct {
		name    string
		status  rule.Status
		missing bool
		wantErr bool
	}{
		{name: "candidate rejected", status: rule.StatusCandidate},
		{name: "active rule", status: rule.StatusActive, wantErr: true},
		{name: "missing rule", missing: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, store := newTestRuleService()

			if !tt.missing {
				r := testRule("rej-1")
				r.Status = tt.status
				store.Rules[r.ID] = r
			}

			err := service.Reject(context.Background(), "rej-1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Reject() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				if got := store.Rules["rej-1"].Status; got != rule.StatusRejected {
					t.Errorf("status after reject = %s, want %s", got, rule.StatusRejected)
				}
			}
		})
	}
}

func TestRuleService_UpdateMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("not triggered is a no-op", func(t *testing.T) {
		service, store := newTestRuleService()
		store.Rules["m-1"] = testRule("m-1")
		store.Metrics["m-1"] = &rule.Metrics{RuleID: "m-1"}

		if err := service.UpdateMetrics(ctx, "m-1", false, nil); err != nil {
			t.Fatalf("UpdateMetrics() error = %v", err)
		}
		if got := store.Metrics["m-1"].TimesTriggered; got != 0 {
			t.Errorf("times triggered = %d, want 0", got)
		}
		// Even a missing rule is fine when nothing triggered.
		if err := service.UpdateMetrics(ctx, "m-unknown", false, nil); err != nil {
			t.Errorf("UpdateMetrics() missing rule error = %v, want nil", err)
		}
	})

	t.Run("triggered without triage", func(t *testing.T) {
		service, store := newTestRuleService()
		store.Rules["m-2"] = testRule("m-2")
		store.Metrics["m-2"] = &rule.Metrics{RuleID: "m-2"}

		if err := service.UpdateMetrics(ctx, "m-2", true, nil); err != nil {
			t.Fatalf("UpdateMetrics() error = %v", err)
		}
		m := store.Metrics["m-2"]
		if m.TimesTriggered != 1 {
			t.Errorf("times triggered = %d, want 1", m.TimesTriggered)
		}
		if m.LastTriggered == nil {
			t.Error("last triggered not set")
		}
		if m.TruePositives != 0 || m.FalsePositives != 0 {
			t.Errorf("triage counters = %d/%d, want 0/0", m.TruePositives, m.FalsePositives)
		}
		if m.EffectivenessScore != 0 {
			t.Errorf("effectiveness = %v, want 0 with no triage", m.EffectivenessScore)
		}
	})

	t.Run("effectiveness from triage", func(t *testing.T) {
		service, store := newTestRuleService()
		store.Rules["m-3"] = testRule("m-3")
		store.Metrics["m-3"] = &rule.Metrics{RuleID: "m-3"}

		truePositive := true
		falsePositive := false
		for _, tp := range []*bool{&truePositive, &truePositive, &falsePositive} {
			if err := service.UpdateMetrics(ctx, "m-3", true, tp); err != nil {
				t.Fatalf("UpdateMetrics() error = %v", err)
			}
		}

		m := store.Metrics["m-3"]
		if m.TimesTriggered != 3 {
			t.Errorf("times triggered = %d, want 3", m.TimesTriggered)
		}
		if m.TruePositives != 2 || m.FalsePositives != 1 {
			t.Errorf("triage counters = %d/%d, want 2/1", m.TruePositives, m.FalsePositives)
		}
		if want := 2.0 / 3.0; math.Abs(m.EffectivenessScore-want) > 1e-9 {
			t.Errorf("effectiveness = %v, want %v", m.EffectivenessScore, want)
		}
	})

	t.Run("triggered on missing rule", func(t *testing.T) {
		service, _ := newTestRuleService()
		err := service.UpdateMetrics(ctx, "m-unknown", true, nil)
		if !errors.IsNotFound(err) {
			t.Errorf("UpdateMetrics() error = %v, want not found", err)
		}
	})
}

func TestRuleService_ResolveConflict(t *testing.T) {
	seed := func(store *testutil.MockRuleStore) {
		a := testRule("res-a")
		a.Status = rule.StatusActive
		b := testRule("res-b")
		b.Severity = rule.SeverityLow
		store.Rules[a.ID] = a
		store.Rules[b.ID] = b
		store.Conflicts = append(store.Conflicts, &rule.Conflict{
			RuleID:            "res-a",
			ConflictingRuleID: "res-b",
			Type:              rule.ConflictPatternSeverityMismatch,
			Description:       "Rules have identical patterns but different severities: HIGH vs LOW",
			Severity:          rule.SeverityMedium,
		})
	}

	tests := []struct {
		name        string
		resolution  rule.Resolution
		wantErr     bool
		wantStatusA rule.Status
		wantStatusB rule.Status
	}{
		{
			name:        "keep first rejects the second",
			resolution:  rule.ResolutionKeepFirst,
			wantStatusA: rule.StatusActive,
			wantStatusB: rule.StatusRejected,
		},
		{
			name:        "keep second rejects the first",
			resolution:  rule.ResolutionKeepSecond,
			wantStatusA: rule.StatusRejected,
			wantStatusB: rule.StatusCandidate,
		},
		{
			name:        "merge touches neither",
			resolution:  rule.ResolutionMerge,
			wantStatusA: rule.StatusActive,
			wantStatusB: rule.StatusCandidate,
		},
		{
			name:       "invalid resolution",
			resolution: "discard_both",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, store := newTestRuleService()
			seed(store)

			err := service.ResolveConflict(context.Background(), "res-a", "res-b", tt.resolution)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveConflict() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if len(store.Conflicts) != 1 {
					t.Errorf("conflicts after failed resolve = %d, want untouched 1", len(store.Conflicts))
				}
				return
			}

			if got := store.Rules["res-a"].Status; got != tt.wantStatusA {
				t.Errorf("rule res-a status = %s, want %s", got, tt.wantStatusA)
			}
			if got := store.Rules["res-b"].Status; got != tt.wantStatusB {
				t.Errorf("rule res-b status = %s, want %s", got, tt.wantStatusB)
			}
			if len(store.Conflicts) != 0 {
				t.Errorf("conflicts after resolve = %d, want 0", len(store.Conflicts))
			}
		})
	}
}

func TestRuleService_ResolveConflict_MissingSide(t *testing.T) {
	service, store := newTestRuleService()

	a := testRule("gone-a")
	store.Rules[a.ID] = a
	store.Conflicts = append(store.Conflicts, &rule.Conflict{
		RuleID:            "gone-a",
		ConflictingRuleID: "gone-b",
		Type:              rule.ConflictDuplicateName,
		Description:       "Rules have identical names: Rule gone-a",
		Severity:          rule.SeverityLow,
	})

	// The second rule no longer exists; resolution still clears the record.
	if err := service.ResolveConflict(context.Background(), "gone-a", "gone-b", rule.ResolutionKeepFirst); err != nil {
		t.Fatalf("ResolveConflict() error = %v", err)
	}
	if len(store.Conflicts) != 0 {
		t.Errorf("conflicts = %d, want 0", len(store.Conflicts))
	}
}

func TestRuleService_Remove(t *testing.T) {
	service, store := newTestRuleService()
	ctx := context.Background()

	if _, err := service.Add(ctx, testRule("rm-1"), ""); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := service.Remove(ctx, "rm-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok := store.Rules["rm-1"]; ok {
		t.Error("rule still present after Remove()")
	}
	if _, ok := store.Metrics["rm-1"]; ok {
		t.Error("metrics still present after Remove()")
	}

	if err := service.Remove(ctx, "rm-unknown"); !errors.IsNotFound(err) {
		t.Errorf("Remove() missing rule error = %v, want not found", err)
	}
}

func TestRuleService_GetByStatus(t *testing.T) {
	service, store := newTestRuleService()

	active := testRule("st-active")
	active.Status = rule.StatusActive
	store.Rules[active.ID] = active
	store.Rules["st-cand"] = testRule("st-cand")

	rules, err := service.GetByStatus(context.Background(), rule.StatusActive)
	if err != nil {
		t.Fatalf("GetByStatus() error = %v", err)
	}
	if len(rules) != 1 || rules[0].ID != "st-active" {
		t.Errorf("GetByStatus(ACTIVE) = %v, want [st-active]", ruleIDs(rules))
	}
}

func TestRuleService_Stats(t *testing.T) {
	service, store := newTestRuleService()

	stats, err := service.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	for _, status := range []rule.Status{rule.StatusCandidate, rule.StatusActive, rule.StatusRejected} {
		if got, ok := stats.RulesByStatus[status]; !ok || got != 0 {
			t.Errorf("empty store %s count = %d (present %v), want 0 entry", status, got, ok)
		}
	}

	active := testRule("stats-active")
	active.Status = rule.StatusActive
	store.Rules[active.ID] = active
	store.Rules["stats-cand"] = testRule("stats-cand")
	store.Conflicts = append(store.Conflicts, &rule.Conflict{
		RuleID:            "stats-active",
		ConflictingRuleID: "stats-cand",
		Type:              rule.ConflictDuplicateName,
	})

	stats, err = service.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.RulesByStatus[rule.StatusActive] != 1 || stats.RulesByStatus[rule.StatusCandidate] != 1 {
		t.Errorf("counts = %v, want 1 active, 1 candidate", stats.RulesByStatus)
	}
	if stats.OpenConflicts != 1 {
		t.Errorf("open conflicts = %d, want 1", stats.OpenConflicts)
	}
}

func ruleIDs(rules []*rule.SecurityRule) []string {
	ids := make([]string, 0, len(rules))
	for _, r := range rules {
		ids = append(ids, r.ID)
	}
	return ids
}
