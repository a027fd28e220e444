package detector

import (
	"testing"

	"github.com/pratik-mahalle/infrasec/internal/domain/resource"
	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
)

func testResource(typ string, config map[string]interface{}) *resource.Resource {
	return &resource.Resource{
		Type:       typ,
		Name:       "test",
		Config:     config,
		FilePath:   "main.tf",
		LineNumber: 10,
	}
}

func findingIDs(findings []rule.Finding) []string {
	ids := make([]string, 0, len(findings))
	for _, f := range findings {
		ids = append(ids, f.RuleID)
	}
	return ids
}

func TestCheckS3(t *testing.T) {
	tests := []struct {
		name         string
		resourceType string
		config       map[string]interface{}
		wantIDs      []string
		wantSeverity rule.Severity
	}{
		{
			name:         "public read acl",
			resourceType: "aws_s3_bucket",
			config:       map[string]interface{}{"acl": "public-read"},
			wantIDs:      []string{"s3-001"},
			wantSeverity: rule.SeverityHigh,
		},
		{
			name:         "public read write acl",
			resourceType: "aws_s3_bucket",
			config:       map[string]interface{}{"acl": "public-read-write"},
			wantIDs:      []string{"s3-002"},
			wantSeverity: rule.SeverityCritical,
		},
		{
			name:         "acl resource type",
			resourceType: "aws_s3_bucket_acl",
			config:       map[string]interface{}{"acl": "public-read"},
			wantIDs:      []string{"s3-001"},
			wantSeverity: rule.SeverityHigh,
		},
		{
			name:         "private acl",
			resourceType: "aws_s3_bucket",
			config:       map[string]interface{}{"acl": "private"},
			wantIDs:      nil,
		},
		{
			name:         "no acl",
			resourceType: "aws_s3_bucket",
			config:       map[string]interface{}{"bucket": "data"},
			wantIDs:      nil,
		},
		{
			name:         "public access block disabled settings",
			resourceType: "aws_s3_bucket_public_access_block",
			config: map[string]interface{}{
				"block_public_acls":       false,
				"block_public_policy":     true,
				"ignore_public_acls":      false,
				"restrict_public_buckets": true,
			},
			wantIDs:      []string{"s3-007", "s3-007"},
			wantSeverity: rule.SeverityHigh,
		},
		{
			name:         "public access block fully enabled",
			resourceType: "aws_s3_bucket_public_access_block",
			config: map[string]interface{}{
				"block_public_acls":       true,
				"block_public_policy":     true,
				"ignore_public_acls":      true,
				"restrict_public_buckets": true,
			},
			wantIDs: nil,
		},
		{
			name:         "unrelated resource type",
			resourceType: "aws_instance",
			config:       map[string]interface{}{"acl": "public-read"},
			wantIDs:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := checkS3(testResource(tt.resourceType, tt.config))

			gotIDs := findingIDs(findings)
			if len(gotIDs) != len(tt.wantIDs) {
				t.Fatalf("checkS3() ids = %v, want %v", gotIDs, tt.wantIDs)
			}
			for i := range tt.wantIDs {
				if gotIDs[i] != tt.wantIDs[i] {
					t.Errorf("checkS3() ids = %v, want %v", gotIDs, tt.wantIDs)
				}
			}
			if len(findings) > 0 && findings[0].Severity != tt.wantSeverity {
				t.Errorf("checkS3() severity = %v, want %v", findings[0].Severity, tt.wantSeverity)
			}
		})
	}
}

func TestCheckS3_PublicAccessBlockDescriptions(t *testing.T) {
	findings := checkS3(testResource("aws_s3_bucket_public_access_block", map[string]interface{}{
		"block_public_acls": false,
	}))

	if len(findings) != 1 {
		t.Fatalf("checkS3() returned %d findings, want 1", len(findings))
	}
	want := "S3 bucket public access block has block_public_acls disabled"
	if findings[0].Description != want {
		t.Errorf("checkS3() description = %q, want %q", findings[0].Description, want)
	}
}

func TestCheckSecurityGroup(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]interface{}
		wantIDs []string
	}{
		{
			name: "ssh open to world",
			config: map[string]interface{}{
				"ingress": []interface{}{
					map[string]interface{}{
						"from_port":   22,
						"to_port":     22,
						"cidr_blocks": []interface{}{"0.0.0.0/0"},
					},
				},
			},
			wantIDs: []string{"sg-001"},
		},
		{
			name: "rdp open to world",
			config: map[string]interface{}{
				"ingress": []interface{}{
					map[string]interface{}{
						"from_port":   3389,
						"to_port":     3389,
						"cidr_blocks": []interface{}{"0.0.0.0/0"},
					},
				},
			},
			wantIDs: []string{"sg-002"},
		},
		{
			name: "database port range open to world",
			config: map[string]interface{}{
				"ingress": []interface{}{
					map[string]interface{}{
						"from_port":   3306,
						"to_port":     5432,
						"cidr_blocks": []interface{}{"0.0.0.0/0"},
					},
				},
			},
			wantIDs: []string{"sg-002", "sg-003", "sg-003"},
		},
		{
			name: "all traffic open to world",
			config: map[string]interface{}{
				"ingress": []interface{}{
					map[string]interface{}{
						"from_port":   0,
						"to_port":     65535,
						"cidr_blocks": []interface{}{"0.0.0.0/0"},
					},
				},
			},
			wantIDs: []string{"sg-001", "sg-002", "sg-003", "sg-003", "sg-003", "sg-003", "sg-004"},
		},
		{
			name: "restricted cidr",
			config: map[string]interface{}{
				"ingress": []interface{}{
					map[string]interface{}{
						"from_port":   22,
						"to_port":     22,
						"cidr_blocks": []interface{}{"10.0.0.0/8"},
					},
				},
			},
			wantIDs: nil,
		},
		{
			name: "single ingress block not wrapped in list",
			config: map[string]interface{}{
				"ingress": map[string]interface{}{
					"from_port":   22,
					"to_port":     22,
					"cidr_blocks": []interface{}{"0.0.0.0/0"},
				},
			},
			wantIDs: []string{"sg-001"},
		},
		{
			name: "port match on one bound only",
			config: map[string]interface{}{
				"ingress": []interface{}{
					map[string]interface{}{
						"to_port":     22,
						"cidr_blocks": []interface{}{"0.0.0.0/0"},
					},
				},
			},
			wantIDs: []string{"sg-001"},
		},
		{
			name:    "no ingress",
			config:  map[string]interface{}{"name": "empty"},
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := checkSecurityGroup(testResource("aws_security_group", tt.config))

			gotIDs := findingIDs(findings)
			if len(gotIDs) != len(tt.wantIDs) {
				t.Fatalf("checkSecurityGroup() ids = %v, want %v", gotIDs, tt.wantIDs)
			}
			for i := range tt.wantIDs {
				if gotIDs[i] != tt.wantIDs[i] {
					t.Errorf("checkSecurityGroup() ids = %v, want %v", gotIDs, tt.wantIDs)
				}
			}
			for _, f := range findings {
				if f.Severity != rule.SeverityCritical {
					t.Errorf("checkSecurityGroup() severity = %v, want %v", f.Severity, rule.SeverityCritical)
				}
			}
		})
	}
}

func TestCheckSecurityGroup_FindingText(t *testing.T) {
	findings := checkSecurityGroup(testResource("aws_security_group", map[string]interface{}{
		"ingress": []interface{}{
			map[string]interface{}{
				"from_port":   22,
				"to_port":     22,
				"cidr_blocks": []interface{}{"0.0.0.0/0"},
			},
		},
	}))

	if len(findings) != 1 {
		t.Fatalf("checkSecurityGroup() returned %d findings, want 1", len(findings))
	}
	if want := "Security group allows SSH (port 22) from 0.0.0.0/0"; findings[0].Description != want {
		t.Errorf("description = %q, want %q", findings[0].Description, want)
	}
	if want := "Restrict SSH access to specific IP ranges"; findings[0].Remediation != want {
		t.Errorf("remediation = %q, want %q", findings[0].Remediation, want)
	}
}

func TestCheckEC2(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]interface{}
		wantIDs []string
	}{
		{
			name:    "public ip assigned",
			config:  map[string]interface{}{"associate_public_ip_address": true},
			wantIDs: []string{"ec2-001"},
		},
		{
			name: "unencrypted root volume",
			config: map[string]interface{}{
				"root_block_device": map[string]interface{}{"encrypted": false},
			},
			wantIDs: []string{"ec2-002"},
		},
		{
			name: "imdsv1 allowed",
			config: map[string]interface{}{
				"metadata_options": map[string]interface{}{"http_tokens": "optional"},
			},
			wantIDs: []string{"ec2-003"},
		},
		{
			name: "everything hardened",
			config: map[string]interface{}{
				"associate_public_ip_address": false,
				"root_block_device":           map[string]interface{}{"encrypted": true},
				"metadata_options":            map[string]interface{}{"http_tokens": "required"},
			},
			wantIDs: nil,
		},
		{
			name: "all three violations",
			config: map[string]interface{}{
				"associate_public_ip_address": true,
				"root_block_device":           map[string]interface{}{"encrypted": false},
				"metadata_options":            map[string]interface{}{"http_tokens": "optional"},
			},
			wantIDs: []string{"ec2-001", "ec2-002", "ec2-003"},
		},
		{
			name:    "string public ip is ignored",
			config:  map[string]interface{}{"associate_public_ip_address": "true"},
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := checkEC2(testResource("aws_instance", tt.config))

			gotIDs := findingIDs(findings)
			if len(gotIDs) != len(tt.wantIDs) {
				t.Fatalf("checkEC2() ids = %v, want %v", gotIDs, tt.wantIDs)
			}
			for i := range tt.wantIDs {
				if gotIDs[i] != tt.wantIDs[i] {
					t.Errorf("checkEC2() ids = %v, want %v", gotIDs, tt.wantIDs)
				}
			}
			for _, f := range findings {
				if f.Severity != rule.SeverityMedium {
					t.Errorf("checkEC2() severity = %v, want %v", f.Severity, rule.SeverityMedium)
				}
			}
		})
	}
}

func TestCheckRDS(t *testing.T) {
	tests := []struct {
		name         string
		resourceType string
		config       map[string]interface{}
		wantIDs      []string
	}{
		{
			name:         "publicly accessible",
			resourceType: "aws_db_instance",
			config: map[string]interface{}{
				"publicly_accessible":     true,
				"backup_retention_period": 7,
			},
			wantIDs: []string{"rds-001"},
		},
		{
			name:         "storage not encrypted",
			resourceType: "aws_db_instance",
			config: map[string]interface{}{
				"storage_encrypted":       false,
				"backup_retention_period": 7,
			},
			wantIDs: []string{"rds-002"},
		},
		{
			name:         "backup retention explicitly zero",
			resourceType: "aws_db_instance",
			config:       map[string]interface{}{"backup_retention_period": 0},
			wantIDs:      []string{"rds-003"},
		},
		{
			name:         "backup retention missing defaults to disabled",
			resourceType: "aws_db_instance",
			config:       map[string]interface{}{"engine": "postgres"},
			wantIDs:      []string{"rds-003"},
		},
		{
			name:         "cluster checked too",
			resourceType: "aws_rds_cluster",
			config: map[string]interface{}{
				"publicly_accessible":     true,
				"backup_retention_period": 14,
			},
			wantIDs: []string{"rds-001"},
		},
		{
			name:         "fully hardened",
			resourceType: "aws_db_instance",
			config: map[string]interface{}{
				"publicly_accessible":     false,
				"storage_encrypted":       true,
				"backup_retention_period": 7,
			},
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := checkRDS(testResource(tt.resourceType, tt.config))

			gotIDs := findingIDs(findings)
			if len(gotIDs) != len(tt.wantIDs) {
				t.Fatalf("checkRDS() ids = %v, want %v", gotIDs, tt.wantIDs)
			}
			for i := range tt.wantIDs {
				if gotIDs[i] != tt.wantIDs[i] {
					t.Errorf("checkRDS() ids = %v, want %v", gotIDs, tt.wantIDs)
				}
			}
		})
	}
}

func TestCheckIAM(t *testing.T) {
	tests := []struct {
		name         string
		resourceType string
		config       map[string]interface{}
		wantIDs      []string
	}{
		{
			name:         "wildcard in policy string",
			resourceType: "aws_iam_policy",
			config:       map[string]interface{}{"policy": `{"Statement":[{"Action":"*","Resource":"*"}]}`},
			wantIDs:      []string{"iam-001"},
		},
		{
			name:         "wildcard action in decoded policy",
			resourceType: "aws_iam_policy",
			config: map[string]interface{}{
				"policy": map[string]interface{}{
					"Statement": []interface{}{
						map[string]interface{}{"Action": "*", "Resource": "arn:aws:s3:::data"},
					},
				},
			},
			wantIDs: []string{"iam-001"},
		},
		{
			name:         "service wildcard action",
			resourceType: "aws_iam_role_policy",
			config: map[string]interface{}{
				"policy": map[string]interface{}{
					"Statement": map[string]interface{}{
						"Action": []interface{}{"s3:*"}, "Resource": "arn:aws:s3:::data",
					},
				},
			},
			wantIDs: []string{"iam-001"},
		},
		{
			name:         "wildcard resource in decoded policy",
			resourceType: "aws_iam_policy",
			config: map[string]interface{}{
				"policy": map[string]interface{}{
					"Statement": []interface{}{
						map[string]interface{}{"Action": "s3:GetObject", "Resource": "*"},
					},
				},
			},
			wantIDs: []string{"iam-001"},
		},
		{
			name:         "scoped policy is fine",
			resourceType: "aws_iam_policy",
			config: map[string]interface{}{
				"policy": map[string]interface{}{
					"Statement": []interface{}{
						map[string]interface{}{"Action": "s3:GetObject", "Resource": "arn:aws:s3:::data/*"},
					},
				},
			},
			wantIDs: nil,
		},
		{
			name:         "cross account trust without condition",
			resourceType: "aws_iam_role",
			config: map[string]interface{}{
				"assume_role_policy": map[string]interface{}{
					"Statement": []interface{}{
						map[string]interface{}{
							"Principal": map[string]interface{}{"AWS": "arn:aws:iam::123456789012:root"},
						},
					},
				},
			},
			wantIDs: []string{"iam-006"},
		},
		{
			name:         "cross account trust with condition",
			resourceType: "aws_iam_role",
			config: map[string]interface{}{
				"assume_role_policy": map[string]interface{}{
					"Statement": []interface{}{
						map[string]interface{}{
							"Principal": map[string]interface{}{"AWS": "arn:aws:iam::123456789012:root"},
							"Condition": map[string]interface{}{"StringEquals": map[string]interface{}{"sts:ExternalId": "x"}},
						},
					},
				},
			},
			wantIDs: nil,
		},
		{
			name:         "cross account trust in policy string",
			resourceType: "aws_iam_role",
			config: map[string]interface{}{
				"assume_role_policy": `{"Statement":[{"Principal":{"AWS":"arn:aws:iam::123456789012:root"}}]}`,
			},
			wantIDs: []string{"iam-006"},
		},
		{
			name:         "service principal trust is fine",
			resourceType: "aws_iam_role",
			config: map[string]interface{}{
				"assume_role_policy": map[string]interface{}{
					"Statement": []interface{}{
						map[string]interface{}{
							"Principal": map[string]interface{}{"Service": "ec2.amazonaws.com"},
						},
					},
				},
			},
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := checkIAM(testResource(tt.resourceType, tt.config))

			gotIDs := findingIDs(findings)
			if len(gotIDs) != len(tt.wantIDs) {
				t.Fatalf("checkIAM() ids = %v, want %v", gotIDs, tt.wantIDs)
			}
			for i := range tt.wantIDs {
				if gotIDs[i] != tt.wantIDs[i] {
					t.Errorf("checkIAM() ids = %v, want %v", gotIDs, tt.wantIDs)
				}
			}
		})
	}
}
