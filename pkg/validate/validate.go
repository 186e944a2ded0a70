// Package validate implements the rule catalog: pure evaluators that
// map a permission or trust policy document to an ordered list of
// violations. Evaluation order is deterministic: document-level rules
// first, then per-statement rules in statement order.
package validate

import (
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"

	"github.com/zpratt/lousy-iam/pkg/policy"
)

// DocumentIndex marks a violation that applies to the document as a
// whole rather than to any single statement.
const DocumentIndex = -1

// Context carries the deployment-specific inputs permission
// validation needs beyond the document itself.
type Context struct {
	// RoleName is the name of the deploying role, used by the
	// self-modification privilege escalation checks.
	RoleName string

	// UnscopedActions are actions permitted to carry Resource "*".
	// Entries are exact actions ("sts:GetCallerIdentity") or service
	// wildcards ("ce:*").
	UnscopedActions map[string]struct{}
}

// IsUnscoped reports whether action may legitimately carry a wildcard
// resource under this context.
func (c Context) IsUnscoped(action string) bool {
	if _, ok := c.UnscopedActions[action]; ok {
		return true
	}
	_, ok := c.UnscopedActions[actionService(action)+":*"]
	return ok
}

// actionService returns the service prefix of an IAM action, lowered.
func actionService(action string) string {
	service, _, found := strings.Cut(action, ":")
	if !found {
		return ""
	}
	return strings.ToLower(service)
}

// actionName returns the operation part of an IAM action.
func actionName(action string) string {
	_, name, found := strings.Cut(action, ":")
	if !found {
		return action
	}
	return name
}

var accountIDRE = regexp.MustCompile(`^\d{12}$`)

// hardcodesAccountID reports whether resource is an ARN carrying a
// literal 12-digit account ID where a template placeholder belongs.
func hardcodesAccountID(resource string) bool {
	parsed, err := arn.Parse(resource)
	if err != nil {
		return false
	}
	return accountIDRE.MatchString(parsed.AccountID)
}

// bareWildcardResourceType reports whether resource is an ARN whose
// trailing resource segment is a bare "*" (e.g. "arn:...:role/*").
func bareWildcardResourceType(resource string) bool {
	if !strings.HasPrefix(resource, "arn:") {
		return false
	}
	rest := resource
	if parsed, err := arn.Parse(resource); err == nil {
		rest = parsed.Resource
	} else {
		parts := strings.SplitN(resource, ":", 6)
		if len(parts) < 6 {
			return false
		}
		rest = parts[5]
	}
	if rest == "*" {
		return true
	}
	if i := strings.LastIndexAny(rest, "/:"); i >= 0 {
		return rest[i+1:] == "*"
	}
	return false
}

// ComputeStats aggregates the final per-policy counters from the
// post-fix document and its final violation set.
func ComputeStats(doc *policy.Document, violations []policy.Violation) policy.Stats {
	stats := policy.Stats{}
	if doc != nil {
		stats.TotalStatements = len(doc.Statement)
		for _, s := range doc.Statement {
			stats.TotalActions += len(s.Action)
		}
	}
	stats.CountViolations(violations)
	return stats
}

// ComputeTrustStats aggregates the counters for a trust policy.
func ComputeTrustStats(doc *policy.TrustDocument, violations []policy.Violation) policy.Stats {
	stats := policy.Stats{}
	if doc != nil {
		stats.TotalStatements = len(doc.Statement)
		// One action per trust statement.
		for _, s := range doc.Statement {
			if s.Action != "" {
				stats.TotalActions++
			}
		}
	}
	stats.CountViolations(violations)
	return stats
}
