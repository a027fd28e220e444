package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pratik-mahalle/infrasec/internal/config"
	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
	"github.com/pratik-mahalle/infrasec/internal/services"
	"github.com/pratik-mahalle/infrasec/internal/testutil"
)

func TestDefaults(t *testing.T) {
	rules, err := Defaults()
	if err != nil {
		t.Fatalf("Defaults() error = %v", err)
	}
	if len(rules) != 6 {
		t.Fatalf("Defaults() = %d rules, want 6", len(rules))
	}

	wantIDs := map[string]rule.Severity{
		"s3-public-read":                 rule.SeverityHigh,
		"sg-unrestricted-ingress":        rule.SeverityCritical,
		"iam-wildcard-actions":           rule.SeverityHigh,
		"s3-encryption-disabled":         rule.SeverityMedium,
		"rds-public-access":              rule.SeverityHigh,
		"cloudtrail-encryption-disabled": rule.SeverityMedium,
	}

	for _, r := range rules {
		severity, ok := wantIDs[r.ID]
		if !ok {
			t.Errorf("unexpected default rule %s", r.ID)
			continue
		}
		delete(wantIDs, r.ID)

		if r.Severity != severity {
			t.Errorf("rule %s severity = %s, want %s", r.ID, r.Severity, severity)
		}
		if r.Origin != rule.OriginStatic {
			t.Errorf("rule %s origin = %s, want %s", r.ID, r.Origin, rule.OriginStatic)
		}
		if r.Status != rule.StatusActive {
			t.Errorf("rule %s status = %s, want %s", r.ID, r.Status, rule.StatusActive)
		}
		if violations := r.Validate(); len(violations) > 0 {
			t.Errorf("rule %s fails validation: %v", r.ID, violations)
		}
	}
	for id := range wantIDs {
		t.Errorf("missing default rule %s", id)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("rules: [not a mapping")); err == nil {
		t.Error("Parse() expected error for malformed YAML")
	}
}

func newTestCatalog(t *testing.T, cfg config.CatalogConfig) (*Catalog, *testutil.MockRuleStore) {
	t.Helper()
	store := testutil.NewMockRuleStore()
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	service := services.NewRuleService(store, nil, log)
	return New(service, cfg, log), store
}

func TestCatalog_Seed(t *testing.T) {
	c, store := newTestCatalog(t, config.CatalogConfig{})
	ctx := context.Background()

	if err := c.Seed(ctx); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if len(store.Rules) != 6 {
		t.Fatalf("seeded rules = %d, want 6", len(store.Rules))
	}
	if got := store.Rules["s3-public-read"].Status; got != rule.StatusActive {
		t.Errorf("s3-public-read status = %s, want %s", got, rule.StatusActive)
	}

	// Reseeding identical content must not create version snapshots.
	if err := c.Seed(ctx); err != nil {
		t.Fatalf("Seed() second run error = %v", err)
	}
	for id, versions := range store.Versions {
		if len(versions) != 0 {
			t.Errorf("rule %s has %d versions after reseed, want 0", id, len(versions))
		}
	}

	// A changed stored description is overwritten with a snapshot.
	store.Rules["s3-public-read"].Description = "Outdated description of the rule"
	if err := c.Seed(ctx); err != nil {
		t.Fatalf("Seed() third run error = %v", err)
	}
	if got := len(store.Versions["s3-public-read"]); got != 1 {
		t.Errorf("versions after content drift = %d, want 1", got)
	}

	// Operator status decisions survive reseeding of unchanged content.
	store.Rules["rds-public-access"].Status = rule.StatusRejected
	if err := c.Seed(ctx); err != nil {
		t.Fatalf("Seed() fourth run error = %v", err)
	}
	if got := store.Rules["rds-public-access"].Status; got != rule.StatusRejected {
		t.Errorf("rds-public-access status = %s, want preserved %s", got, rule.StatusRejected)
	}
}

func TestCatalog_SeedExternalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	doc := `rules:
  - id: org-custom-tagging
    name: Mandatory Cost Tags
    description: Resources must carry the cost-center tag
    severity: LOW
    pattern: "config:tags.cost_center"
    remediation: Add a cost_center tag to the resource
  - id: bad
    name: x
    description: too short
    severity: NOPE
    pattern: ""
    remediation: short
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	c, store := newTestCatalog(t, config.CatalogConfig{RulesFile: path})
	if err := c.Seed(context.Background()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	if _, ok := store.Rules["org-custom-tagging"]; !ok {
		t.Error("external rule org-custom-tagging not loaded")
	}
	if _, ok := store.Rules["bad"]; ok {
		t.Error("invalid external rule was stored")
	}
	// 6 defaults + 1 valid external entry.
	if len(store.Rules) != 7 {
		t.Errorf("stored rules = %d, want 7", len(store.Rules))
	}
}

func TestCatalog_SeedMissingExternalFile(t *testing.T) {
	c, _ := newTestCatalog(t, config.CatalogConfig{RulesFile: filepath.Join(t.TempDir(), "absent.yaml")})
	if err := c.Seed(context.Background()); err == nil {
		t.Error("Seed() expected error for missing rules file")
	}
}
