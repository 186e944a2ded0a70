package validate

import (
	"fmt"
	"strings"

	"github.com/zpratt/lousy-iam/pkg/canonicalize"
	"github.com/zpratt/lousy-iam/pkg/policy"
)

// Maximum statement and action counts before the structural warnings
// fire. Both mirror practical AWS policy ergonomics, not hard API
// limits.
const (
	maxActionsPerStatement = 20
	maxStatements          = 10
)

// Permission validates a permission policy document against the full
// least-privilege rule catalog. The function is pure: it never mutates
// doc and returns violations in document order.
func Permission(doc *policy.Document, ctx Context) []policy.Violation {
	violations := make([]policy.Violation, 0)
	violations = append(violations, documentRules(doc)...)
	for i, stmt := range doc.Statement {
		violations = append(violations, statementRules(doc, stmt, i, ctx)...)
	}
	return violations
}

// documentRules covers LP-001, LP-002, LP-046 and LP-043: checks that
// need the whole document in view before any statement is visited.
func documentRules(doc *policy.Document) []policy.Violation {
	var violations []policy.Violation

	if doc.Version != policy.CanonicalVersion {
		violations = append(violations, policy.Violation{
			RuleID:         policy.RuleVersionMissing,
			Severity:       policy.SeverityError,
			Message:        fmt.Sprintf("policy Version must be %q", policy.CanonicalVersion),
			StatementIndex: DocumentIndex,
			Field:          "Version",
			CurrentValue:   doc.Version,
			AutoFixable:    true,
			FixHint:        fmt.Sprintf("set Version to %q", policy.CanonicalVersion),
		})
	}

	if size, err := canonicalize.Size(doc); err == nil && size > policy.MaxPolicySizeBytes {
		violations = append(violations, policy.Violation{
			RuleID:         policy.RulePolicyTooLarge,
			Severity:       policy.SeverityError,
			Message:        fmt.Sprintf("policy is %d bytes serialized, over the %d byte ceiling; split it into multiple policies", size, policy.MaxPolicySizeBytes),
			StatementIndex: DocumentIndex,
			Field:          "document",
			CurrentValue:   size,
			AutoFixable:    false,
			FixHint:        "split the policy into multiple smaller policies",
		})
	}

	violations = append(violations, crossStatementDuplicates(doc)...)

	if len(doc.Statement) > maxStatements {
		violations = append(violations, policy.Violation{
			RuleID:         policy.RuleTooManyStatements,
			Severity:       policy.SeverityWarning,
			Message:        fmt.Sprintf("policy has %d statements, more than %d; consider consolidating", len(doc.Statement), maxStatements),
			StatementIndex: 0,
			Field:          "Statement",
			CurrentValue:   len(doc.Statement),
			AutoFixable:    false,
			FixHint:        "consolidate related statements",
		})
	}

	return violations
}

// crossStatementDuplicates scans the entire document once so the
// reported statement_indices list is complete and stable regardless of
// how individual statements are visited.
func crossStatementDuplicates(doc *policy.Document) []policy.Violation {
	indicesByAction := make(map[string][]int)
	var order []string
	for i, stmt := range doc.Statement {
		seen := make(map[string]bool, len(stmt.Action))
		for _, action := range stmt.Action {
			if seen[action] {
				continue
			}
			seen[action] = true
			if _, known := indicesByAction[action]; !known {
				order = append(order, action)
			}
			indicesByAction[action] = append(indicesByAction[action], i)
		}
	}

	var violations []policy.Violation
	for _, action := range order {
		indices := indicesByAction[action]
		if len(indices) < 2 {
			continue
		}
		violations = append(violations, policy.Violation{
			RuleID:         policy.RuleCrossStatementDupe,
			Severity:       policy.SeverityWarning,
			Message:        fmt.Sprintf("action %q is granted by %d statements", action, len(indices)),
			StatementIndex: indices[0],
			Field:          "Action",
			CurrentValue:   action,
			AutoFixable:    true,
			FixHint:        "keep the action on the statement with the most specific resource",
			FixData:        map[string]any{"statement_indices": indices},
		})
	}
	return violations
}

func statementRules(doc *policy.Document, stmt *policy.Statement, index int, ctx Context) []policy.Violation {
	var violations []policy.Violation
	add := func(v policy.Violation) {
		v.StatementSid = stmt.Sid
		v.StatementIndex = index
		violations = append(violations, v)
	}

	// Structure.
	if stmt.Sid == "" {
		add(policy.Violation{
			RuleID:       policy.RuleEmptySid,
			Severity:     policy.SeverityError,
			Message:      "statement has no Sid",
			Field:        "Sid",
			CurrentValue: "",
			AutoFixable:  true,
			FixHint:      "generate a Sid from the first action's service prefix",
		})
	}
	if len(stmt.Action) > maxActionsPerStatement {
		add(policy.Violation{
			RuleID:       policy.RuleTooManyActions,
			Severity:     policy.SeverityWarning,
			Message:      fmt.Sprintf("statement grants %d actions, more than %d", len(stmt.Action), maxActionsPerStatement),
			Field:        "Action",
			CurrentValue: len(stmt.Action),
			AutoFixable:  false,
			FixHint:      "split the statement by service or operation class",
		})
	}
	if dupes := duplicateActions(stmt.Action); len(dupes) > 0 {
		add(policy.Violation{
			RuleID:       policy.RuleDuplicateActions,
			Severity:     policy.SeverityError,
			Message:      fmt.Sprintf("statement lists duplicate actions: %s", strings.Join(dupes, ", ")),
			Field:        "Action",
			CurrentValue: dupes,
			AutoFixable:  true,
			FixHint:      "remove duplicates, keeping first occurrence order",
		})
	}
	if len(stmt.NotAction) > 0 {
		add(policy.Violation{
			RuleID:       policy.RuleNotActionPresent,
			Severity:     policy.SeverityWarning,
			Message:      "NotAction implicitly allows every action not listed; enumerate actions explicitly",
			Field:        "NotAction",
			CurrentValue: stmt.NotAction,
			AutoFixable:  false,
			FixHint:      "replace NotAction with an explicit Action list",
		})
	}

	violations = appendActionScoping(violations, stmt, index)
	violations = appendResourceScoping(violations, stmt, index, ctx)
	violations = appendConditionRules(violations, stmt, index)
	violations = appendEscalationRules(violations, stmt, index, ctx)
	return violations
}

func duplicateActions(actions []string) []string {
	seen := make(map[string]int, len(actions))
	var dupes []string
	for _, a := range actions {
		seen[a]++
		if seen[a] == 2 {
			dupes = append(dupes, a)
		}
	}
	return dupes
}

func appendActionScoping(violations []policy.Violation, stmt *policy.Statement, index int) []policy.Violation {
	wildcardResource := stmt.Resource.Contains("*")
	for _, action := range stmt.Action {
		base := policy.Violation{
			StatementSid:   stmt.Sid,
			StatementIndex: index,
			Field:          "Action",
			CurrentValue:   action,
		}
		switch {
		case action == "*":
			v := base
			v.RuleID = policy.RuleBareWildcardAction
			v.Severity = policy.SeverityError
			v.Message = "statement grants every action on every service"
			v.FixHint = "enumerate the specific actions the plan requires"
			violations = append(violations, v)
			continue
		case strings.HasSuffix(action, ":*"):
			v := base
			v.RuleID = policy.RuleServiceWildcard
			v.Severity = policy.SeverityError
			v.Message = fmt.Sprintf("statement grants every %s action", actionService(action))
			v.FixHint = "enumerate the specific actions the plan requires"
			violations = append(violations, v)
			if _, highRisk := policy.HighRiskServices[actionService(action)]; highRisk {
				w := base
				w.RuleID = policy.RuleHighRiskWildcard
				w.Severity = policy.SeverityWarning
				w.Message = fmt.Sprintf("%s is a high-risk service; a service wildcard here is overly broad", actionService(action))
				w.FixHint = "scope high-risk services to exact actions"
				violations = append(violations, w)
			}
			continue
		}
		if _, denied := policy.DeniedActions[action]; denied {
			v := base
			v.RuleID = policy.RuleDeniedAction
			v.Severity = policy.SeverityError
			v.Message = fmt.Sprintf("action %q is on the deny-list and may never be granted", action)
			v.FixHint = "remove the action; it cannot be granted by generated roles"
			violations = append(violations, v)
		}
		if action == "sts:AssumeRole" && wildcardResource {
			v := base
			v.RuleID = policy.RuleUnscopedAssumeRole
			v.Severity = policy.SeverityError
			v.Message = "sts:AssumeRole with Resource \"*\" lets the role assume any role in the account"
			v.Field = "Resource"
			v.CurrentValue = "*"
			v.FixHint = "scope sts:AssumeRole to explicit role ARNs"
			violations = append(violations, v)
		}
	}
	return violations
}

func appendResourceScoping(violations []policy.Violation, stmt *policy.Statement, index int, ctx Context) []policy.Violation {
	if stmt.Resource.Contains("*") {
		var scoped, unscoped []string
		for _, action := range stmt.Action {
			if ctx.IsUnscoped(action) {
				unscoped = append(unscoped, action)
			} else {
				scoped = append(scoped, action)
			}
		}
		if len(scoped) > 0 {
			violations = append(violations, policy.Violation{
				RuleID:         policy.RuleWildcardResource,
				Severity:       policy.SeverityError,
				Message:        fmt.Sprintf("Resource \"*\" on actions that support resource-level permissions: %s", strings.Join(scoped, ", ")),
				StatementSid:   stmt.Sid,
				StatementIndex: index,
				Field:          "Resource",
				CurrentValue:   scoped,
				AutoFixable:    false,
				FixHint:        "scope each action to the ARNs the plan touches",
			})
		}
		if len(unscoped) > 0 {
			violations = append(violations, policy.Violation{
				RuleID:         policy.RuleAcceptedWildcardResource,
				Severity:       policy.SeverityWarning,
				Message:        fmt.Sprintf("Resource \"*\" on configured unscoped actions: %s", strings.Join(unscoped, ", ")),
				StatementSid:   stmt.Sid,
				StatementIndex: index,
				Field:          "Resource",
				CurrentValue:   unscoped,
				AutoFixable:    false,
				FixHint:        "acceptable for unscoped actions; review the unscoped action configuration",
			})
		}
	}

	for _, resource := range stmt.Resource {
		if hardcodesAccountID(resource) {
			violations = append(violations, policy.Violation{
				RuleID:         policy.RuleHardcodedAccountID,
				Severity:       policy.SeverityError,
				Message:        fmt.Sprintf("resource %q hardcodes an account ID; use the ${account_id} placeholder", resource),
				StatementSid:   stmt.Sid,
				StatementIndex: index,
				Field:          "Resource",
				CurrentValue:   resource,
				AutoFixable:    false,
				FixHint:        "replace the literal account ID with ${account_id}",
			})
		}
		if bareWildcardResourceType(resource) && stmt.Condition == nil {
			violations = append(violations, policy.Violation{
				RuleID:         policy.RuleWildcardResourceType,
				Severity:       policy.SeverityWarning,
				Message:        fmt.Sprintf("resource %q ends in a bare wildcard with no Condition narrowing it", resource),
				StatementSid:   stmt.Sid,
				StatementIndex: index,
				Field:          "Resource",
				CurrentValue:   resource,
				AutoFixable:    false,
				FixHint:        "add a Condition block or name the resources explicitly",
			})
		}
	}
	return violations
}

func appendConditionRules(violations []policy.Violation, stmt *policy.Statement, index int) []policy.Violation {
	wildcardResource := stmt.Resource.Contains("*")
	hasAction := func(want string) bool {
		for _, a := range stmt.Action {
			if a == want {
				return true
			}
		}
		return false
	}

	if hasAction("iam:PassRole") {
		if wildcardResource {
			violations = append(violations, policy.Violation{
				RuleID:         policy.RulePassRoleWildcard,
				Severity:       policy.SeverityError,
				Message:        "iam:PassRole with Resource \"*\" lets the role hand any role to any service",
				StatementSid:   stmt.Sid,
				StatementIndex: index,
				Field:          "Resource",
				CurrentValue:   "*",
				AutoFixable:    false,
				FixHint:        "scope iam:PassRole to the role ARNs being passed",
			})
		}
		if !stmt.HasConditionKey("iam:PassedToService") {
			violations = append(violations, policy.Violation{
				RuleID:         policy.RulePassRoleNoService,
				Severity:       policy.SeverityError,
				Message:        "iam:PassRole must be constrained with an iam:PassedToService condition",
				StatementSid:   stmt.Sid,
				StatementIndex: index,
				Field:          "Condition",
				CurrentValue:   nil,
				AutoFixable:    true,
				FixHint:        "add Condition StringEquals iam:PassedToService",
			})
		}
	}

	if hasAction("iam:CreateRole") && !stmt.HasConditionKey("iam:PermissionsBoundary") {
		violations = append(violations, policy.Violation{
			RuleID:         policy.RuleCreateRoleNoBoundary,
			Severity:       policy.SeverityError,
			Message:        "iam:CreateRole must require a permissions boundary via iam:PermissionsBoundary",
			StatementSid:   stmt.Sid,
			StatementIndex: index,
			Field:          "Condition",
			CurrentValue:   nil,
			AutoFixable:    false,
			FixHint:        "add Condition StringEquals iam:PermissionsBoundary with the boundary ARN",
		})
	}

	if hasAction("iam:CreateServiceLinkedRole") && !stmt.HasConditionKey("iam:AWSServiceName") {
		violations = append(violations, policy.Violation{
			RuleID:         policy.RuleServiceLinkedRoleNoName,
			Severity:       policy.SeverityError,
			Message:        "iam:CreateServiceLinkedRole must name its service via iam:AWSServiceName",
			StatementSid:   stmt.Sid,
			StatementIndex: index,
			Field:          "Condition",
			CurrentValue:   nil,
			AutoFixable:    true,
			FixHint:        "add Condition StringEquals iam:AWSServiceName",
		})
	}

	if wildcardResource && !stmt.HasConditionKey("aws:RequestedRegion") {
		var regionScoped []string
		for _, action := range stmt.Action {
			if _, ok := policy.RegionScopedServices[actionService(action)]; ok {
				regionScoped = append(regionScoped, action)
			}
		}
		if len(regionScoped) > 0 {
			violations = append(violations, policy.Violation{
				RuleID:         policy.RuleMissingRequestedRegion,
				Severity:       policy.SeverityWarning,
				Message:        fmt.Sprintf("wildcard resource on region-scoped actions without aws:RequestedRegion: %s", strings.Join(regionScoped, ", ")),
				StatementSid:   stmt.Sid,
				StatementIndex: index,
				Field:          "Condition",
				CurrentValue:   regionScoped,
				AutoFixable:    true,
				FixHint:        "add Condition StringEquals aws:RequestedRegion",
			})
		}
	}

	if !stmt.HasConditionKeyPrefix("aws:RequestTag") {
		var mutating []string
		for _, action := range stmt.Action {
			name := strings.ToLower(actionName(action))
			if strings.Contains(name, "create") || strings.Contains(name, "put") || strings.Contains(name, "register") {
				mutating = append(mutating, action)
			}
		}
		if len(mutating) > 0 {
			violations = append(violations, policy.Violation{
				RuleID:         policy.RuleMissingRequestTag,
				Severity:       policy.SeverityWarning,
				Message:        fmt.Sprintf("resource-creating actions without an aws:RequestTag condition: %s", strings.Join(mutating, ", ")),
				StatementSid:   stmt.Sid,
				StatementIndex: index,
				Field:          "Condition",
				CurrentValue:   mutating,
				AutoFixable:    true,
				FixHint:        "add Condition StringEquals aws:RequestTag/Project",
			})
		}
	}

	return violations
}

// selfMatching reports whether resource can designate the deploying
// role itself.
func selfMatching(resource, roleName string) bool {
	if resource == "*" || strings.Contains(resource, "${role_name}") {
		return true
	}
	return roleName != "" && strings.Contains(resource, roleName)
}

func appendEscalationRules(violations []policy.Violation, stmt *policy.Statement, index int, ctx Context) []policy.Violation {
	wildcardResource := stmt.Resource.Contains("*")
	hasAction := func(want string) bool {
		for _, a := range stmt.Action {
			if a == want {
				return true
			}
		}
		return false
	}
	anySelfMatch := func() (string, bool) {
		for _, r := range stmt.Resource {
			if selfMatching(r, ctx.RoleName) {
				return r, true
			}
		}
		return "", false
	}

	for _, action := range []string{"iam:PutRolePolicy", "iam:AttachRolePolicy"} {
		if !hasAction(action) {
			continue
		}
		if resource, ok := anySelfMatch(); ok {
			violations = append(violations, policy.Violation{
				RuleID:         policy.RuleSelfPolicyModification,
				Severity:       policy.SeverityError,
				Message:        fmt.Sprintf("%s can modify the deploying role's own policies (resource %q)", action, resource),
				StatementSid:   stmt.Sid,
				StatementIndex: index,
				Field:          "Resource",
				CurrentValue:   resource,
				AutoFixable:    false,
				FixHint:        "exclude the deploying role from the resource scope",
			})
		}
	}

	if hasAction("iam:CreatePolicyVersion") {
		if resource, ok := anySelfMatch(); ok {
			violations = append(violations, policy.Violation{
				RuleID:         policy.RuleSelfPolicyVersion,
				Severity:       policy.SeverityError,
				Message:        fmt.Sprintf("iam:CreatePolicyVersion can rewrite policies attached to the deploying role (resource %q)", resource),
				StatementSid:   stmt.Sid,
				StatementIndex: index,
				Field:          "Resource",
				CurrentValue:   resource,
				AutoFixable:    false,
				FixHint:        "exclude the deploying role's policies from the resource scope",
			})
		}
	}

	if hasAction("iam:CreateRole") && hasAction("iam:PassRole") && wildcardResource {
		violations = append(violations, policy.Violation{
			RuleID:         policy.RuleCreateAndPassRole,
			Severity:       policy.SeverityError,
			Message:        "iam:CreateRole together with iam:PassRole under Resource \"*\" lets the role mint arbitrary roles and pass them anywhere",
			StatementSid:   stmt.Sid,
			StatementIndex: index,
			Field:          "Action",
			CurrentValue:   []string{"iam:CreateRole", "iam:PassRole"},
			AutoFixable:    false,
			FixHint:        "split the actions and scope each to explicit role ARNs",
		})
	}

	if wildcardResource {
		for _, action := range stmt.Action {
			name := actionName(action)
			if (strings.HasPrefix(name, "Put") || strings.HasPrefix(name, "Attach")) && strings.HasSuffix(name, "Policy") {
				violations = append(violations, policy.Violation{
					RuleID:         policy.RuleBroadPolicyWrite,
					Severity:       policy.SeverityWarning,
					Message:        fmt.Sprintf("%s under Resource \"*\" can rewrite policy on any resource", action),
					StatementSid:   stmt.Sid,
					StatementIndex: index,
					Field:          "Resource",
					CurrentValue:   action,
					AutoFixable:    false,
					FixHint:        "scope policy-writing actions to explicit ARNs",
				})
			}
		}
	}

	return violations
}
