package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pratik-mahalle/infrasec/internal/domain/resource"
	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
	"github.com/pratik-mahalle/infrasec/internal/pkg/errors"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
	"github.com/pratik-mahalle/infrasec/internal/testutil"
)

type stubParser struct {
	resources []*resource.Resource
	err       error
}

func (p *stubParser) ParseFile(string) ([]*resource.Resource, error) {
	return p.resources, p.err
}

func (p *stubParser) ParseContent(string, []byte) ([]*resource.Resource, error) {
	return p.resources, p.err
}

func (p *stubParser) ParseDirectory(string) ([]*resource.Resource, error) {
	return p.resources, p.err
}

func newTestScanService(parser ConfigParser) (*ScanService, *testutil.MockRuleStore) {
	store := testutil.NewMockRuleStore()
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	rules := NewRuleService(store, nil, log)
	return NewScanService(rules, parser, nil, log, 2), store
}

func TestScanService_ScanResources(t *testing.T) {
	service, store := newTestScanService(&stubParser{})
	ctx := context.Background()

	active := testRule("scan-active")
	active.Status = rule.StatusActive
	if _, err := service.rules.Add(ctx, active, ""); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	// The active rule's requested status survives because nothing conflicts.
	if got := store.Rules["scan-active"].Status; got != rule.StatusActive {
		t.Fatalf("seed rule status = %s, want ACTIVE", got)
	}

	candidate := testRule("scan-cand")
	candidate.Name = "Unreviewed rule"
	candidate.Pattern = "resource_type:aws_instance"
	if _, err := service.rules.Add(ctx, candidate, ""); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	resources := []*resource.Resource{
		{Type: "aws_s3_bucket", Name: "logs", Config: map[string]interface{}{}, FilePath: "main.tf", LineNumber: 3},
		{Type: "aws_instance", Name: "web", Config: map[string]interface{}{}, FilePath: "main.tf", LineNumber: 20},
	}

	result, err := service.ScanResources(ctx, resources)
	if err != nil {
		t.Fatalf("ScanResources() error = %v", err)
	}

	if result.RuleCount != 1 {
		t.Errorf("rule count = %d, want 1 (candidates are not evaluated)", result.RuleCount)
	}
	if result.ResourceCount != 2 {
		t.Errorf("resource count = %d, want 2", result.ResourceCount)
	}
	if len(result.Findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(result.Findings))
	}
	if result.Findings[0].RuleID != "scan-active" {
		t.Errorf("finding rule = %s, want scan-active", result.Findings[0].RuleID)
	}

	if got := store.Metrics["scan-active"].TimesTriggered; got != 1 {
		t.Errorf("times triggered = %d, want 1", got)
	}
	if store.Metrics["scan-active"].LastTriggered == nil {
		t.Error("last triggered not set after scan")
	}
}

func TestScanService_MetricsFailureDoesNotFailScan(t *testing.T) {
	service, store := newTestScanService(&stubParser{})
	ctx := context.Background()

	active := testRule("scan-m")
	active.Status = rule.StatusActive
	if _, err := service.rules.Add(ctx, active, ""); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	store.MetricsError = errors.StorageError("metrics table unavailable", nil)

	result, err := service.ScanResources(ctx, []*resource.Resource{
		{Type: "aws_s3_bucket", Name: "logs", Config: map[string]interface{}{}, FilePath: "main.tf", LineNumber: 1},
	})
	if err != nil {
		t.Fatalf("ScanResources() error = %v, want scan to survive metrics failure", err)
	}
	if len(result.Findings) != 1 {
		t.Errorf("findings = %d, want 1", len(result.Findings))
	}
}

func TestScanService_ScanPath(t *testing.T) {
	parsed := []*resource.Resource{
		{Type: "aws_s3_bucket", Name: "logs", Config: map[string]interface{}{}, FilePath: "main.tf", LineNumber: 1},
	}

	t.Run("directory", func(t *testing.T) {
		service, _ := newTestScanService(&stubParser{resources: parsed})
		ctx := context.Background()

		active := testRule("scan-dir")
		active.Status = rule.StatusActive
		if _, err := service.rules.Add(ctx, active, ""); err != nil {
			t.Fatalf("Add() error = %v", err)
		}

		result, err := service.ScanPath(ctx, t.TempDir())
		if err != nil {
			t.Fatalf("ScanPath() error = %v", err)
		}
		if result.ResourceCount != 1 {
			t.Errorf("resource count = %d, want 1", result.ResourceCount)
		}
	})

	t.Run("single file", func(t *testing.T) {
		service, _ := newTestScanService(&stubParser{resources: parsed})

		dir := t.TempDir()
		path := filepath.Join(dir, "main.tf")
		if err := os.WriteFile(path, []byte(`resource "aws_s3_bucket" "logs" {}`), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		result, err := service.ScanPath(context.Background(), path)
		if err != nil {
			t.Fatalf("ScanPath() error = %v", err)
		}
		if result.ResourceCount != 1 {
			t.Errorf("resource count = %d, want 1", result.ResourceCount)
		}
	})

	t.Run("missing path", func(t *testing.T) {
		service, _ := newTestScanService(&stubParser{resources: parsed})

		_, err := service.ScanPath(context.Background(), filepath.Join(t.TempDir(), "absent"))
		if err == nil {
			t.Fatal("ScanPath() expected error for missing path")
		}
	})
}

func TestScanService_ParserError(t *testing.T) {
	service, _ := newTestScanService(&stubParser{err: errors.BadRequest("unparseable configuration")})

	_, err := service.ScanContent(context.Background(), "main.tf", []byte("not hcl at all"))
	if err == nil {
		t.Fatal("ScanContent() expected parser error")
	}
}
