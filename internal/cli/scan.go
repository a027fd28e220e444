package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/infrasec/internal/catalog"
	"github.com/pratik-mahalle/infrasec/internal/detector"
	"github.com/pratik-mahalle/infrasec/internal/domain/resource"
	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
	"github.com/pratik-mahalle/infrasec/internal/iac/terraform"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
	"github.com/pratik-mahalle/infrasec/pkg/client"
)

func newScanCmd() *cobra.Command {
	var remote bool
	var rulesFile string
	var workers int

	cmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "Scan Terraform configuration for policy violations",
		Long: `Scan parses the Terraform configuration at the given path and evaluates
security rules against it. By default the scan runs locally against the
built-in rule set (or a rules file given with --rules); with --remote the
path is submitted to the server and evaluated against its active rules.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if remote {
				return runRemoteScan(args[0])
			}
			return runLocalScan(args[0], rulesFile, workers)
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "scan via the server instead of locally")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "YAML rules file for local scans (default: built-in rules)")
	cmd.Flags().IntVar(&workers, "workers", 4, "evaluation workers for local scans")

	return cmd
}

func runRemoteScan(path string) error {
	ctx := context.Background()

	result, err := apiClient.Scans().Path(ctx, path)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	return printScanResult(result.Findings, result.ResourceCount, result.RuleCount, result.DurationMS)
}

func runLocalScan(path, rulesFile string, workers int) error {
	log := logger.New(logger.Config{Level: "error", Format: "console"})

	var (
		rules []*rule.SecurityRule
		err   error
	)
	if rulesFile != "" {
		data, readErr := os.ReadFile(rulesFile)
		if readErr != nil {
			return fmt.Errorf("failed to read rules file: %w", readErr)
		}
		rules, err = catalog.Parse(data)
	} else {
		rules, err = catalog.Defaults()
	}
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	// Local scans evaluate every loaded rule regardless of status
	parser := terraform.NewParser(log)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access path: %w", err)
	}

	start := time.Now()

	var resources []*resource.Resource
	if info.IsDir() {
		resources, err = parser.ParseDirectory(path)
	} else {
		resources, err = parser.ParseFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	found, err := detector.NewEvaluator(log).Scan(context.Background(), rules, resources, workers)
	if err != nil {
		return err
	}

	return printScanResult(toClientFindings(found), len(resources), len(rules), time.Since(start).Milliseconds())
}

func toClientFindings(findings []rule.Finding) []client.Finding {
	out := make([]client.Finding, len(findings))
	for i, f := range findings {
		out[i] = client.Finding{
			RuleID:      f.RuleID,
			Severity:    string(f.Severity),
			Description: f.Description,
			FilePath:    f.FilePath,
			LineNumber:  f.LineNumber,
			Remediation: f.Remediation,
		}
	}
	return out
}

func printScanResult(findings []client.Finding, resourceCount, ruleCount int, durationMS int64) error {
	format := getOutputFormat()
	if format != "table" {
		return printOutput(map[string]interface{}{
			"findings":       findings,
			"resource_count": resourceCount,
			"rule_count":     ruleCount,
			"duration_ms":    durationMS,
		})
	}

	fmt.Printf("Scanned %d resources with %d rules in %dms\n\n", resourceCount, ruleCount, durationMS)

	if len(findings) == 0 {
		fmt.Println("No policy violations found")
		return nil
	}

	t := NewTable("RULE", "SEVERITY", "LOCATION", "DESCRIPTION")
	for _, f := range findings {
		location := f.FilePath
		if f.LineNumber > 0 {
			location = fmt.Sprintf("%s:%d", f.FilePath, f.LineNumber)
		}
		t.AddRow(
			f.RuleID,
			formatSeverity(f.Severity),
			truncate(location, 40),
			truncate(f.Description, 60),
		)
	}
	t.Render()

	fmt.Printf("\n%d violations found\n", len(findings))
	return nil
}
