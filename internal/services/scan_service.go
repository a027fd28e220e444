package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pratik-mahalle/infrasec/internal/detector"
	"github.com/pratik-mahalle/infrasec/internal/domain/resource"
	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
	"github.com/pratik-mahalle/infrasec/internal/events"
	"github.com/pratik-mahalle/infrasec/internal/pkg/errors"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
	"github.com/pratik-mahalle/infrasec/internal/pkg/metrics"
)

// ConfigParser turns infrastructure configuration into resources
type ConfigParser interface {
	// ParseFile parses a single configuration file
	ParseFile(path string) ([]*resource.Resource, error)

	// ParseContent parses in-memory configuration; filename is used for
	// finding locations and format detection.
	ParseContent(filename string, src []byte) ([]*resource.Resource, error)

	// ParseDirectory parses all configuration files under a directory
	ParseDirectory(dir string) ([]*resource.Resource, error)
}

// ScanResult summarizes one evaluation run
type ScanResult struct {
	Findings      []rule.Finding `json:"findings"`
	ResourceCount int            `json:"resource_count"`
	RuleCount     int            `json:"rule_count"`
	DurationMS    int64          `json:"duration_ms"`
	ScannedAt     time.Time      `json:"scanned_at"`
}

// RuleDrafter proposes candidate rules from scan findings
type RuleDrafter interface {
	Enabled() bool
	Draft(ctx context.Context, findings []rule.Finding) ([]*rule.SecurityRule, error)
}

// ScanService parses infrastructure configuration and evaluates the active
// rule set against it. Each finding feeds back into the triggering rule's
// metrics.
type ScanService struct {
	rules     rule.Service
	parser    ConfigParser
	evaluator *detector.Evaluator
	events    events.Publisher
	drafter   RuleDrafter
	logger    *logger.Logger
	workers   int
}

// NewScanService creates a new scan service
func NewScanService(rules rule.Service, parser ConfigParser, pub events.Publisher, log *logger.Logger, workers int) *ScanService {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	if workers < 1 {
		workers = 1
	}
	return &ScanService{
		rules:     rules,
		parser:    parser,
		evaluator: detector.NewEvaluator(log),
		events:    pub,
		logger:    log.WithComponent("scan"),
		workers:   workers,
	}
}

// SetDrafter installs a candidate-rule drafter that runs after each scan
func (s *ScanService) SetDrafter(d RuleDrafter) {
	s.drafter = d
}

// ScanPath parses a file or directory of configuration and evaluates the
// active rules against it.
func (s *ScanService) ScanPath(ctx context.Context, path string) (*ScanResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.BadRequest(fmt.Sprintf("Cannot access path: %s", path))
	}

	var resources []*resource.Resource
	if info.IsDir() {
		resources, err = s.parser.ParseDirectory(path)
	} else {
		resources, err = s.parser.ParseFile(path)
	}
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to parse configuration")
		return nil, err
	}
	return s.scan(ctx, path, resources)
}

// ScanContent evaluates the active rules against in-memory configuration
func (s *ScanService) ScanContent(ctx context.Context, filename string, src []byte) (*ScanResult, error) {
	resources, err := s.parser.ParseContent(filename, src)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to parse configuration")
		return nil, err
	}
	return s.scan(ctx, filename, resources)
}

// ScanResources evaluates the active rules against already-parsed resources
func (s *ScanService) ScanResources(ctx context.Context, resources []*resource.Resource) (*ScanResult, error) {
	return s.scan(ctx, "", resources)
}

func (s *ScanService) scan(ctx context.Context, source string, resources []*resource.Resource) (*ScanResult, error) {
	start := time.Now()

	active, err := s.rules.GetByStatus(ctx, rule.StatusActive)
	if err != nil {
		return nil, err
	}

	findings, err := s.evaluator.Scan(ctx, active, resources, s.workers)
	if err != nil {
		return nil, err
	}

	for _, f := range findings {
		// Triage feedback arrives later through the metrics endpoint;
		// a scan only records that the rule fired.
		if err := s.rules.UpdateMetrics(ctx, f.RuleID, true, nil); err != nil {
			s.logger.WithFields(map[string]interface{}{
				"rule_id": f.RuleID,
				"error":   err.Error(),
			}).Warn("Failed to update rule metrics for finding")
		}
		metrics.RecordFinding(string(f.Severity))
	}

	elapsed := time.Since(start)
	metrics.RecordScan(elapsed, len(active)*len(resources))

	result := &ScanResult{
		Findings:      findings,
		ResourceCount: len(resources),
		RuleCount:     len(active),
		DurationMS:    elapsed.Milliseconds(),
		ScannedAt:     start.UTC(),
	}

	s.events.Publish(ctx, events.Event{
		Type: events.TypeScanCompleted,
		Detail: map[string]interface{}{
			"source":    source,
			"resources": result.ResourceCount,
			"rules":     result.RuleCount,
			"findings":  len(result.Findings),
		},
	})

	if s.drafter != nil && s.drafter.Enabled() && len(findings) > 0 {
		// Drafting calls out to a model and must not delay the scan response.
		go func(findings []rule.Finding) {
			dctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if _, err := s.drafter.Draft(dctx, findings); err != nil {
				s.logger.ErrorWithErr(err, "Candidate rule drafting failed")
			}
		}(findings)
	}

	s.logger.WithFields(map[string]interface{}{
		"source":    source,
		"resources": result.ResourceCount,
		"rules":     result.RuleCount,
		"findings":  len(result.Findings),
		"duration":  elapsed.String(),
	}).Info("Scan completed")

	return result, nil
}
