package rule

import (
	"fmt"
	"regexp"
	"strings"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)

// Reserved pattern prefixes understood by the evaluator's dispatch grammar.
// Patterns using one of these are not required to compile as regular
// expressions.
const (
	PatternPrefixResourceType = "resource_type:"
	PatternPrefixConfig       = "config:"
)

// Validate checks all field constraints and returns every violation, not
// just the first. An empty slice means the rule is valid.
func (r *SecurityRule) Validate() []string {
	var violations []string

	if !idPattern.MatchString(r.ID) {
		violations = append(violations, fmt.Sprintf("id %q must be 3-50 characters of [a-zA-Z0-9_-]", r.ID))
	}
	if len(r.Name) < 3 {
		violations = append(violations, "name must be at least 3 characters")
	}
	if len(r.Description) < 10 {
		violations = append(violations, "description must be at least 10 characters")
	}
	if len(r.Remediation) < 10 {
		violations = append(violations, "remediation must be at least 10 characters")
	}
	if !r.Severity.Valid() {
		violations = append(violations, fmt.Sprintf("severity %q is not one of LOW, MEDIUM, HIGH, CRITICAL", r.Severity))
	}
	if !r.Origin.Valid() {
		violations = append(violations, fmt.Sprintf("origin %q is not one of STATIC, ML_GENERATED", r.Origin))
	}
	if !r.Status.Valid() {
		violations = append(violations, fmt.Sprintf("status %q is not one of CANDIDATE, ACTIVE, REJECTED", r.Status))
	}
	if err := ValidatePattern(r.Pattern); err != nil {
		violations = append(violations, err.Error())
	}

	return violations
}

// ValidatePattern accepts patterns using a reserved prefix as-is; anything
// else must compile as a regular expression.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("pattern must not be empty")
	}
	if strings.HasPrefix(pattern, PatternPrefixResourceType) || strings.HasPrefix(pattern, PatternPrefixConfig) {
		return nil
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("pattern %q is not a valid regular expression: %v", pattern, err)
	}
	return nil
}
