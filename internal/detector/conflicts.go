package detector

import (
	"fmt"
	"strings"

	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
)

// DetectConflicts compares a candidate rule against a set of existing rules
// and returns every conflict found. The candidate itself is skipped when it
// appears in the set. Both checks run independently, so one pair of rules can
// yield two conflicts.
func DetectConflicts(candidate *rule.SecurityRule, existing []*rule.SecurityRule) []rule.Conflict {
	var conflicts []rule.Conflict

	for _, other := range existing {
		if other.ID == candidate.ID {
			continue
		}

		if other.Pattern == candidate.Pattern && other.Severity != candidate.Severity {
			conflicts = append(conflicts, rule.Conflict{
				RuleID:            candidate.ID,
				ConflictingRuleID: other.ID,
				Type:              rule.ConflictPatternSeverityMismatch,
				Description: fmt.Sprintf("Rules have identical patterns but different severities: %s vs %s",
					candidate.Severity, other.Severity),
				Severity: rule.SeverityMedium,
			})
		}

		if strings.EqualFold(other.Name, candidate.Name) {
			conflicts = append(conflicts, rule.Conflict{
				RuleID:            candidate.ID,
				ConflictingRuleID: other.ID,
				Type:              rule.ConflictDuplicateName,
				Description:       fmt.Sprintf("Rules have identical names: %s", candidate.Name),
				Severity:          rule.SeverityLow,
			})
		}
	}

	return conflicts
}
