package detector

import (
	"testing"

	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
)

func newTestEvaluator() *Evaluator {
	return NewEvaluator(logger.New(logger.Config{Level: "error", Format: "json"}))
}

func TestEvaluatorMatchesPattern(t *testing.T) {
	e := newTestEvaluator()

	config := map[string]interface{}{
		"acl":                 "private",
		"publicly_accessible": true,
		"versioning": map[string]interface{}{
			"enabled": false,
		},
		"tags": nil,
	}

	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{
			name:    "resource type match",
			pattern: "resource_type:aws_s3_bucket",
			want:    true,
		},
		{
			name:    "resource type mismatch",
			pattern: "resource_type:aws_instance",
			want:    false,
		},
		{
			name:    "resource type with surrounding space",
			pattern: "resource_type: aws_s3_bucket ",
			want:    true,
		},
		{
			name:    "config key exists",
			pattern: "config:acl",
			want:    true,
		},
		{
			name:    "config key missing",
			pattern: "config:encryption",
			want:    false,
		},
		{
			name:    "config nested path exists",
			pattern: "config:versioning.enabled",
			want:    true,
		},
		{
			name:    "config nested path missing",
			pattern: "config:versioning.mfa_delete",
			want:    false,
		},
		{
			name:    "config key with nil value still exists",
			pattern: "config:tags",
			want:    true,
		},
		{
			name:    "config value equality",
			pattern: "config:acl=private",
			want:    true,
		},
		{
			name:    "config value inequality",
			pattern: "config:acl=public-read",
			want:    false,
		},
		{
			name:    "config bool value",
			pattern: "config:publicly_accessible=true",
			want:    true,
		},
		{
			name:    "config quoted value",
			pattern: `config:acl="private"`,
			want:    true,
		},
		{
			name:    "config nested value",
			pattern: "config:versioning.enabled=false",
			want:    true,
		},
		{
			name:    "config value on missing key",
			pattern: "config:engine=postgres",
			want:    false,
		},
		{
			name:    "regex against type",
			pattern: "aws_.*_bucket",
			want:    true,
		},
		{
			name:    "regex substring search",
			pattern: "s3",
			want:    true,
		},
		{
			name:    "regex no match",
			pattern: "^gcp_",
			want:    false,
		},
		{
			name:    "invalid regex treated as no match",
			pattern: "aws_[",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := testResource("aws_s3_bucket", config)
			if got := e.matchesPattern(tt.pattern, res); got != tt.want {
				t.Errorf("matchesPattern(%q) = %v, want %v", tt.pattern, got, tt.want)
			}
		})
	}
}
