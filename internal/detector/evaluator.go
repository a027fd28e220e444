package detector

import (
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pratik-mahalle/infrasec/internal/domain/resource"
	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
)

// CheckFamily identifies one of the built-in domain check strategies. Rules
// whose ids belong to a family route to that family's check function; all
// other rules are evaluated through the pattern grammar.
type CheckFamily int

const (
	FamilyS3 CheckFamily = iota
	FamilySecurityGroup
	FamilyEC2
	FamilyRDS
	FamilyIAM
)

// String returns the family's id prefix
func (f CheckFamily) String() string {
	switch f {
	case FamilyS3:
		return "s3"
	case FamilySecurityGroup:
		return "sg"
	case FamilyEC2:
		return "ec2"
	case FamilyRDS:
		return "rds"
	case FamilyIAM:
		return "iam"
	}
	return "unknown"
}

// familyIDPattern matches the discrete check ids each family declares
// (s3-001, sg-004, ...). Ids outside this shape, even with a family prefix,
// are ordinary rules and evaluate through the pattern grammar.
var familyIDPattern = regexp.MustCompile(`^(s3|sg|ec2|rds|iam)-\d{3}$`)

// ResolveFamily maps a rule id to its registered check family. Family ids
// come in two shapes: the umbrella id "<prefix>-security" and the discrete
// numbered ids the family's checks emit.
func ResolveFamily(ruleID string) (CheckFamily, bool) {
	prefix := ""
	switch ruleID {
	case "s3-security", "sg-security", "ec2-security", "rds-security", "iam-security":
		prefix = ruleID[:len(ruleID)-len("-security")]
	default:
		m := familyIDPattern.FindStringSubmatch(ruleID)
		if m == nil {
			return 0, false
		}
		prefix = m[1]
	}

	switch prefix {
	case "s3":
		return FamilyS3, true
	case "sg":
		return FamilySecurityGroup, true
	case "ec2":
		return FamilyEC2, true
	case "rds":
		return FamilyRDS, true
	case "iam":
		return FamilyIAM, true
	}
	return 0, false
}

const regexCacheSize = 256

// Evaluator applies one rule to one resource. It is stateless per call and
// safe for concurrent use; the only shared state is the registered-check
// dispatch, which is build-time constant, and a thread-safe cache of
// compiled pattern regexps.
type Evaluator struct {
	regexCache *lru.Cache[string, *regexp.Regexp]
	logger     *logger.Logger
}

// NewEvaluator creates an evaluator
func NewEvaluator(log *logger.Logger) *Evaluator {
	cache, _ := lru.New[string, *regexp.Regexp](regexCacheSize)
	return &Evaluator{
		regexCache: cache,
		logger:     log.WithComponent("evaluator"),
	}
}

// Evaluate applies a rule to a resource and returns zero or more findings.
// Rules in a registered check family run that family's checks; everything
// else goes through the pattern grammar. Evaluation never fails: pattern
// interpretation errors are treated as no match.
func (e *Evaluator) Evaluate(r *rule.SecurityRule, res *resource.Resource) []rule.Finding {
	if family, ok := ResolveFamily(r.ID); ok {
		return runFamilyCheck(family, res)
	}
	return e.evaluatePattern(r, res)
}

func runFamilyCheck(family CheckFamily, res *resource.Resource) []rule.Finding {
	switch family {
	case FamilyS3:
		return checkS3(res)
	case FamilySecurityGroup:
		return checkSecurityGroup(res)
	case FamilyEC2:
		return checkEC2(res)
	case FamilyRDS:
		return checkRDS(res)
	case FamilyIAM:
		return checkIAM(res)
	}
	return nil
}

func (e *Evaluator) evaluatePattern(r *rule.SecurityRule, res *resource.Resource) []rule.Finding {
	if !e.matchesPattern(r.Pattern, res) {
		return nil
	}
	return []rule.Finding{{
		RuleID:      r.ID,
		Severity:    r.Severity,
		Description: r.Description,
		FilePath:    res.FilePath,
		LineNumber:  res.LineNumber,
		Remediation: r.Remediation,
	}}
}

// compileRegex compiles a pattern, serving repeated patterns from the cache
func (e *Evaluator) compileRegex(pattern string) (*regexp.Regexp, error) {
	if re, ok := e.regexCache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	e.regexCache.Add(pattern, re)
	return re, nil
}
