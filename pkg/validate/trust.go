package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zpratt/lousy-iam/pkg/policy"
)

// Trust validates an assume-role trust policy against the federated
// identity rule set. roleType selects the subject claim rule: plan
// roles must bind to pull request events, apply roles to the default
// branch ref or a named environment.
func Trust(doc *policy.TrustDocument, roleType policy.RoleType) []policy.Violation {
	violations := make([]policy.Violation, 0)
	for i, stmt := range doc.Statement {
		violations = append(violations, trustStatementRules(stmt, i, roleType)...)
	}
	return violations
}

func trustStatementRules(stmt *policy.TrustStatement, index int, roleType policy.RoleType) []policy.Violation {
	var violations []policy.Violation
	add := func(v policy.Violation) {
		v.StatementSid = stmt.Sid
		v.StatementIndex = index
		violations = append(violations, v)
	}

	if stmt.Action != policy.FederatedAssumeAction {
		add(policy.Violation{
			RuleID:       policy.RuleTrustWrongAction,
			Severity:     policy.SeverityError,
			Message:      fmt.Sprintf("trust statement action must be %q", policy.FederatedAssumeAction),
			Field:        "Action",
			CurrentValue: stmt.Action,
			AutoFixable:  false,
			FixHint:      fmt.Sprintf("set Action to %q", policy.FederatedAssumeAction),
		})
	}

	if !hasAudienceCheck(stmt) {
		add(policy.Violation{
			RuleID:       policy.RuleTrustMissingAudience,
			Severity:     policy.SeverityError,
			Message:      fmt.Sprintf("trust condition must check the aud claim equals %q", policy.ExpectedAudience),
			Field:        "Condition",
			CurrentValue: audienceValues(stmt),
			AutoFixable:  true,
			FixHint:      fmt.Sprintf("add StringEquals %s = %s", policy.AudienceConditionKey, policy.ExpectedAudience),
		})
	}

	subjects := subjectValues(stmt)
	if len(subjects) == 0 {
		add(policy.Violation{
			RuleID:       policy.RuleTrustMissingSubject,
			Severity:     policy.SeverityError,
			Message:      "trust condition has no sub claim check; any identity from the provider could assume the role",
			Field:        "Condition",
			CurrentValue: nil,
			AutoFixable:  false,
			FixHint:      fmt.Sprintf("add a %s condition binding the repository and event", policy.SubjectConditionKey),
		})
	}

	for _, sub := range subjects {
		if policy.IsWildcardSubject(sub) {
			add(policy.Violation{
				RuleID:       policy.RuleTrustWildcardSubject,
				Severity:     policy.SeverityError,
				Message:      fmt.Sprintf("subject %q is an org-wide wildcard grant", sub),
				Field:        "Condition",
				CurrentValue: sub,
				AutoFixable:  false,
				FixHint:      "bind the subject to a specific repository and event",
			})
			continue
		}
		switch roleType {
		case policy.RolePlan:
			if !policy.IsPullRequestSubject(sub) {
				add(policy.Violation{
					RuleID:       policy.RuleTrustPlanSubject,
					Severity:     policy.SeverityError,
					Message:      fmt.Sprintf("plan role subject %q must denote a pull request event", sub),
					Field:        "Condition",
					CurrentValue: sub,
					AutoFixable:  false,
					FixHint:      "bind plan roles to repo:<org>/<repo>:pull_request",
				})
			}
		case policy.RoleApply:
			if !policy.IsBranchRefSubject(sub) && !policy.IsEnvironmentSubject(sub) {
				add(policy.Violation{
					RuleID:       policy.RuleTrustApplySubject,
					Severity:     policy.SeverityError,
					Message:      fmt.Sprintf("apply role subject %q must denote the default branch ref or a deployment environment", sub),
					Field:        "Condition",
					CurrentValue: sub,
					AutoFixable:  false,
					FixHint:      "bind apply roles to refs/heads/<default> or environment:<name>",
				})
			}
		}
	}

	for _, key := range literalStringLikeKeys(stmt) {
		add(policy.Violation{
			RuleID:       policy.RuleTrustLiteralLike,
			Severity:     policy.SeverityWarning,
			Message:      fmt.Sprintf("StringLike entry %q contains no wildcard; StringEquals states the intent exactly", key),
			Field:        "Condition",
			CurrentValue: key,
			AutoFixable:  true,
			FixHint:      "move the entry from StringLike to StringEquals",
			FixData:      map[string]any{"condition_key": key},
		})
	}

	return violations
}

// hasAudienceCheck reports whether the statement pins the aud claim to
// the expected audience under an equality or like operator.
func hasAudienceCheck(stmt *policy.TrustStatement) bool {
	for _, op := range []string{"StringEquals", "StringLike"} {
		if values, ok := stmt.Condition[op][policy.AudienceConditionKey]; ok {
			if values.Contains(policy.ExpectedAudience) {
				return true
			}
		}
	}
	return false
}

func audienceValues(stmt *policy.TrustStatement) []string {
	var out []string
	for _, entries := range stmt.Condition {
		out = append(out, entries[policy.AudienceConditionKey]...)
	}
	return out
}

func subjectValues(stmt *policy.TrustStatement) []string {
	var out []string
	for _, op := range []string{"StringEquals", "StringLike"} {
		out = append(out, stmt.Condition[op][policy.SubjectConditionKey]...)
	}
	return out
}

// literalStringLikeKeys returns StringLike keys, in sorted order, whose
// values contain no wildcard character at all.
func literalStringLikeKeys(stmt *policy.TrustStatement) []string {
	entries, ok := stmt.Condition["StringLike"]
	if !ok {
		return nil
	}
	var keys []string
	for key, values := range entries {
		literal := len(values) > 0
		for _, v := range values {
			if strings.ContainsAny(v, "*?") {
				literal = false
				break
			}
		}
		if literal {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
