package detector

import (
	"fmt"
	"strings"

	"github.com/pratik-mahalle/infrasec/internal/domain/resource"
	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
)

// dangerousPorts lists well-known service ports that must never be exposed
// to 0.0.0.0/0. Order determines finding order.
var dangerousPorts = []struct {
	Port    int
	Service string
	RuleID  string
}{
	{22, "SSH", "sg-001"},
	{3389, "RDP", "sg-002"},
	{3306, "MySQL", "sg-003"},
	{5432, "PostgreSQL", "sg-003"},
	{1433, "MSSQL", "sg-003"},
	{27017, "MongoDB", "sg-003"},
}

// checkS3 inspects bucket ACLs and public access block settings.
func checkS3(res *resource.Resource) []rule.Finding {
	var findings []rule.Finding

	if res.Type == "aws_s3_bucket" || res.Type == "aws_s3_bucket_acl" {
		if acl, ok := asString(res.Config["acl"]); ok {
			if acl == "public-read" || acl == "public-read-write" {
				ruleID := "s3-001"
				severity := rule.SeverityHigh
				if strings.Contains(acl, "write") {
					ruleID = "s3-002"
					severity = rule.SeverityCritical
				}
				findings = append(findings, newFinding(ruleID, severity,
					fmt.Sprintf("S3 bucket has %s ACL which allows public access", acl),
					"Remove public ACL and use bucket policies for controlled access", res))
			}
		}
	}

	if res.Type == "aws_s3_bucket_public_access_block" {
		settings := []string{"block_public_acls", "block_public_policy", "ignore_public_acls", "restrict_public_buckets"}
		for _, setting := range settings {
			if v, ok := asBool(res.Config[setting]); ok && !v {
				findings = append(findings, newFinding("s3-007", rule.SeverityHigh,
					fmt.Sprintf("S3 bucket public access block has %s disabled", setting),
					"Enable all public access block settings", res))
			}
		}
	}

	return findings
}

// checkSecurityGroup inspects ingress rules for exposure to the open internet.
func checkSecurityGroup(res *resource.Resource) []rule.Finding {
	if res.Type != "aws_security_group" {
		return nil
	}

	var findings []rule.Finding
	for _, item := range asList(res.Config["ingress"]) {
		ingress, ok := asMap(item)
		if !ok {
			continue
		}
		if !containsOpenCIDR(ingress["cidr_blocks"]) {
			continue
		}

		fromPort, fromOK := asNumber(ingress["from_port"])
		toPort, toOK := asNumber(ingress["to_port"])

		for _, dp := range dangerousPorts {
			port := float64(dp.Port)
			inRange := fromOK && toOK && fromPort <= port && port <= toPort
			exact := (fromOK && fromPort == port) || (toOK && toPort == port)
			if inRange || exact {
				findings = append(findings, newFinding(dp.RuleID, rule.SeverityCritical,
					fmt.Sprintf("Security group allows %s (port %d) from 0.0.0.0/0", dp.Service, dp.Port),
					fmt.Sprintf("Restrict %s access to specific IP ranges", dp.Service), res))
			}
		}

		if fromOK && toOK && fromPort == 0 && toPort == 65535 {
			findings = append(findings, newFinding("sg-004", rule.SeverityCritical,
				"Security group allows all traffic from 0.0.0.0/0",
				"Define specific port ranges and protocols", res))
		}
	}

	return findings
}

// checkEC2 inspects compute instances for public exposure, unencrypted
// volumes and weak instance metadata settings.
func checkEC2(res *resource.Resource) []rule.Finding {
	if res.Type != "aws_instance" {
		return nil
	}

	var findings []rule.Finding

	if v, ok := asBool(res.Config["associate_public_ip_address"]); ok && v {
		findings = append(findings, newFinding("ec2-001", rule.SeverityMedium,
			"EC2 instance has public IP assigned",
			"Use private subnets and NAT gateway for outbound access", res))
	}

	if root, ok := asMap(res.Config["root_block_device"]); ok {
		if v, ok := asBool(root["encrypted"]); ok && !v {
			findings = append(findings, newFinding("ec2-002", rule.SeverityMedium,
				"EC2 instance has unencrypted root EBS volume",
				"Enable EBS encryption for data at rest protection", res))
		}
	}

	if meta, ok := asMap(res.Config["metadata_options"]); ok {
		if tokens, ok := asString(meta["http_tokens"]); ok && tokens == "optional" {
			findings = append(findings, newFinding("ec2-003", rule.SeverityMedium,
				"EC2 instance allows IMDSv1 which is vulnerable to SSRF",
				"Set http_tokens to 'required' to enforce IMDSv2", res))
		}
	}

	return findings
}

// checkRDS inspects database instances and clusters.
func checkRDS(res *resource.Resource) []rule.Finding {
	if res.Type != "aws_db_instance" && res.Type != "aws_rds_cluster" {
		return nil
	}

	var findings []rule.Finding

	if v, ok := asBool(res.Config["publicly_accessible"]); ok && v {
		findings = append(findings, newFinding("rds-001", rule.SeverityHigh,
			"RDS instance is publicly accessible",
			"Set publicly_accessible to false", res))
	}

	if v, ok := asBool(res.Config["storage_encrypted"]); ok && !v {
		findings = append(findings, newFinding("rds-002", rule.SeverityHigh,
			"RDS instance does not have encryption at rest enabled",
			"Enable storage encryption using KMS", res))
	}

	if backupsDisabled(res.Config["backup_retention_period"]) {
		findings = append(findings, newFinding("rds-003", rule.SeverityMedium,
			"RDS instance has automated backups disabled",
			"Set backup retention period to at least 7 days", res))
	}

	return findings
}

// checkIAM inspects policies for wildcard grants and roles for unconditioned
// cross-account trust.
func checkIAM(res *resource.Resource) []rule.Finding {
	var findings []rule.Finding

	if res.Type == "aws_iam_policy" || res.Type == "aws_iam_role_policy" {
		if policyHasWildcards(res.Config["policy"]) {
			findings = append(findings, newFinding("iam-001", rule.SeverityHigh,
				"IAM policy contains wildcard actions or resources",
				"Use specific actions and resources following least privilege", res))
		}
	}

	if res.Type == "aws_iam_role" {
		if trustsCrossAccount(res.Config["assume_role_policy"]) {
			findings = append(findings, newFinding("iam-006", rule.SeverityHigh,
				"IAM role allows cross-account access without conditions",
				"Add conditions to cross-account trust relationships", res))
		}
	}

	return findings
}

func newFinding(ruleID string, severity rule.Severity, description, remediation string, res *resource.Resource) rule.Finding {
	return rule.Finding{
		RuleID:      ruleID,
		Severity:    severity,
		Description: description,
		FilePath:    res.FilePath,
		LineNumber:  res.LineNumber,
		Remediation: remediation,
	}
}

// Policy inspection helpers

// policyHasWildcards reports whether an IAM policy grants "*" actions or
// resources. The policy arrives either as a raw JSON string or as a decoded
// document.
func policyHasWildcards(policy interface{}) bool {
	switch p := policy.(type) {
	case string:
		return strings.Contains(p, "*") &&
			(strings.Contains(p, "Action") || strings.Contains(p, "Resource"))
	case map[string]interface{}:
		for _, item := range asList(p["Statement"]) {
			stmt, ok := asMap(item)
			if !ok {
				continue
			}
			for _, action := range asStringList(stmt["Action"]) {
				if action == "*" || strings.HasSuffix(action, ":*") {
					return true
				}
			}
			for _, r := range asStringList(stmt["Resource"]) {
				if r == "*" {
					return true
				}
			}
		}
	}
	return false
}

// trustsCrossAccount reports whether a trust policy grants another AWS
// account access without any condition attached.
func trustsCrossAccount(policy interface{}) bool {
	switch p := policy.(type) {
	case string:
		return strings.Contains(p, "arn:aws:iam::") && !strings.Contains(p, "Condition")
	case map[string]interface{}:
		for _, item := range asList(p["Statement"]) {
			stmt, ok := asMap(item)
			if !ok {
				continue
			}
			principal, ok := asMap(stmt["Principal"])
			if !ok {
				continue
			}
			for _, aws := range asStringList(principal["AWS"]) {
				if strings.Contains(aws, "arn:aws:iam::") && stmt["Condition"] == nil {
					return true
				}
			}
		}
	}
	return false
}

// backupsDisabled treats a missing retention period as disabled, matching
// the provider default of zero.
func backupsDisabled(v interface{}) bool {
	if v == nil {
		return true
	}
	n, ok := asNumber(v)
	return ok && n == 0
}

func containsOpenCIDR(v interface{}) bool {
	for _, cidr := range asStringList(v) {
		if cidr == "0.0.0.0/0" {
			return true
		}
	}
	return false
}

// Value coercion helpers. Parsed configuration mixes native Go values with
// values decoded from HCL and JSON, so numeric types vary.

func asBool(v interface{}) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

// asList normalizes a value to a slice, wrapping single values so callers
// can treat block attributes uniformly.
func asList(v interface{}) []interface{} {
	switch l := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return l
	default:
		return []interface{}{v}
	}
}

func asStringList(v interface{}) []string {
	var out []string
	for _, item := range asList(v) {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
