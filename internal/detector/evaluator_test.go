package detector

import (
	"testing"

	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
)

func TestResolveFamily(t *testing.T) {
	tests := []struct {
		ruleID     string
		wantFamily CheckFamily
		wantOK     bool
	}{
		{"s3-001", FamilyS3, true},
		{"s3-007", FamilyS3, true},
		{"sg-004", FamilySecurityGroup, true},
		{"ec2-003", FamilyEC2, true},
		{"rds-002", FamilyRDS, true},
		{"iam-006", FamilyIAM, true},
		{"s3-security", FamilyS3, true},
		{"sg-security", FamilySecurityGroup, true},
		{"ec2-security", FamilyEC2, true},
		{"rds-security", FamilyRDS, true},
		{"iam-security", FamilyIAM, true},
		{"s3-public-read", 0, false},
		{"sg-unrestricted-ingress", 0, false},
		{"s3-01", 0, false},
		{"s3-0001", 0, false},
		{"vpc-001", 0, false},
		{"custom-rule", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.ruleID, func(t *testing.T) {
			family, ok := ResolveFamily(tt.ruleID)
			if ok != tt.wantOK {
				t.Fatalf("ResolveFamily(%q) ok = %v, want %v", tt.ruleID, ok, tt.wantOK)
			}
			if ok && family != tt.wantFamily {
				t.Errorf("ResolveFamily(%q) = %v, want %v", tt.ruleID, family, tt.wantFamily)
			}
		})
	}
}

func TestEvaluate_FamilyDispatch(t *testing.T) {
	e := newTestEvaluator()

	res := testResource("aws_security_group", map[string]interface{}{
		"ingress": []interface{}{
			map[string]interface{}{
				"from_port":   22,
				"to_port":     22,
				"cidr_blocks": []interface{}{"0.0.0.0/0"},
			},
		},
	})

	// A family rule runs the whole family's checks regardless of its own
	// pattern or severity.
	r := &rule.SecurityRule{
		ID:       "sg-security",
		Name:     "Security Group Checks",
		Severity: rule.SeverityLow,
		Pattern:  "resource_type:aws_instance",
	}

	findings := e.Evaluate(r, res)
	if len(findings) != 1 {
		t.Fatalf("Evaluate() returned %d findings, want 1", len(findings))
	}
	if findings[0].RuleID != "sg-001" {
		t.Errorf("Evaluate() finding id = %q, want %q", findings[0].RuleID, "sg-001")
	}
	if findings[0].Severity != rule.SeverityCritical {
		t.Errorf("Evaluate() finding severity = %v, want %v", findings[0].Severity, rule.SeverityCritical)
	}
}

func TestEvaluate_PatternRule(t *testing.T) {
	e := newTestEvaluator()

	res := testResource("aws_instance", map[string]interface{}{"ami": "ami-123"})

	r := &rule.SecurityRule{
		ID:          "custom-compute-check",
		Name:        "Custom Compute Check",
		Description: "Compute instance matched a custom pattern",
		Severity:    rule.SeverityMedium,
		Pattern:     "resource_type:aws_instance",
		Remediation: "Review the instance configuration",
	}

	findings := e.Evaluate(r, res)
	if len(findings) != 1 {
		t.Fatalf("Evaluate() returned %d findings, want 1", len(findings))
	}

	f := findings[0]
	if f.RuleID != r.ID {
		t.Errorf("finding rule id = %q, want %q", f.RuleID, r.ID)
	}
	if f.Severity != r.Severity {
		t.Errorf("finding severity = %v, want %v", f.Severity, r.Severity)
	}
	if f.Description != r.Description {
		t.Errorf("finding description = %q, want %q", f.Description, r.Description)
	}
	if f.Remediation != r.Remediation {
		t.Errorf("finding remediation = %q, want %q", f.Remediation, r.Remediation)
	}
	if f.FilePath != res.FilePath || f.LineNumber != res.LineNumber {
		t.Errorf("finding location = %s:%d, want %s:%d", f.FilePath, f.LineNumber, res.FilePath, res.LineNumber)
	}
}

func TestEvaluate_PatternRuleNoMatch(t *testing.T) {
	e := newTestEvaluator()

	res := testResource("aws_instance", nil)
	r := &rule.SecurityRule{
		ID:      "custom-bucket-check",
		Pattern: "resource_type:aws_s3_bucket",
	}

	if findings := e.Evaluate(r, res); len(findings) != 0 {
		t.Errorf("Evaluate() returned %d findings, want 0", len(findings))
	}
}
