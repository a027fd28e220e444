package detector

import (
	"fmt"
	"strings"

	"github.com/pratik-mahalle/infrasec/internal/domain/resource"
	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
)

// matchesPattern interprets a rule pattern against a resource:
//
//	resource_type:<T>        exact resource-type match
//	config:<path>            dot-separated path exists in the config tree
//	config:<path>=<value>    path resolves to a value whose string form
//	                         equals <value> (quotes stripped)
//	anything else            regular expression searched against the type
//
// Interpretation errors are no-match, never hard failures of the pass.
func (e *Evaluator) matchesPattern(pattern string, res *resource.Resource) bool {
	if strings.HasPrefix(pattern, rule.PatternPrefixResourceType) {
		want := strings.TrimSpace(pattern[len(rule.PatternPrefixResourceType):])
		return res.Type == want
	}

	if strings.HasPrefix(pattern, rule.PatternPrefixConfig) {
		expr := strings.TrimSpace(pattern[len(rule.PatternPrefixConfig):])
		return matchesConfig(expr, res)
	}

	re, err := e.compileRegex(pattern)
	if err != nil {
		e.logger.WithFields(map[string]interface{}{
			"pattern": pattern,
			"error":   err.Error(),
		}).Debug("Pattern does not compile, treating as no match")
		return false
	}
	return re.MatchString(res.Type)
}

func matchesConfig(expr string, res *resource.Resource) bool {
	if key, want, found := strings.Cut(expr, "="); found {
		key = strings.TrimSpace(key)
		want = strings.Trim(strings.TrimSpace(want), `"'`)
		got, ok := res.Lookup(key)
		if !ok {
			return false
		}
		return fmt.Sprintf("%v", got) == want
	}

	_, ok := res.Lookup(strings.TrimSpace(expr))
	return ok
}
