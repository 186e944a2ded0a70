// Package fix applies deterministic remediations for the auto-fixable
// subset of the rule catalog.
//
// Both entry points are pure and idempotent. When no violation in the
// input is both auto-fixable and recognized, they return the identical
// document pointer: callers rely on reference identity to short-circuit
// re-validation, so the no-op path must not clone.
package fix

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/zpratt/lousy-iam/pkg/policy"
)

// Placeholder values inserted by the condition fixes. The template
// placeholders resolve during template resolution; the REPLACE_WITH
// literals demand a human decision and keep the policy visibly
// incomplete until one is made.
const (
	PassedToServicePlaceholder = "REPLACE_WITH_SERVICE"
	ServiceNamePlaceholder     = "REPLACE_WITH_SERVICE_NAME"
	RequestedRegionPlaceholder = "${region}"
	RequestTagKey              = "aws:RequestTag/Project"
	RequestTagPlaceholder      = "${project_tag}"
)

// permissionRules is the fixer's known rule set for permission
// policies. Fixable violations outside this set are ignored so newer
// validators can ship rules ahead of the fixer.
var permissionRules = map[policy.RuleID]struct{}{
	policy.RuleVersionMissing:          {},
	policy.RulePassRoleNoService:       {},
	policy.RuleServiceLinkedRoleNoName: {},
	policy.RuleMissingRequestedRegion:  {},
	policy.RuleMissingRequestTag:       {},
	policy.RuleEmptySid:                {},
	policy.RuleDuplicateActions:        {},
	policy.RuleCrossStatementDupe:      {},
}

var trustRules = map[policy.RuleID]struct{}{
	policy.RuleTrustMissingAudience: {},
	policy.RuleTrustLiteralLike:     {},
}

func actionable(violations []policy.Violation, known map[policy.RuleID]struct{}) []policy.Violation {
	var out []policy.Violation
	for _, v := range violations {
		if !v.AutoFixable {
			continue
		}
		if _, ok := known[v.RuleID]; ok {
			out = append(out, v)
		}
	}
	return out
}

// PermissionPolicy returns a new document with every recognized
// auto-fixable violation remediated. Unknown and non-fixable
// violations are never acted on.
func PermissionPolicy(doc *policy.Document, violations []policy.Violation) *policy.Document {
	fixable := actionable(violations, permissionRules)
	if len(fixable) == 0 {
		return doc
	}

	out := doc.Clone()
	emptied := make(map[int]bool)

	for _, v := range fixable {
		switch v.RuleID {
		case policy.RuleVersionMissing:
			out.Version = policy.CanonicalVersion
		case policy.RuleEmptySid:
			if stmt := statementAt(out, v.StatementIndex); stmt != nil && stmt.Sid == "" {
				stmt.Sid = generateSid(stmt, v.StatementIndex)
			}
		case policy.RuleDuplicateActions:
			if stmt := statementAt(out, v.StatementIndex); stmt != nil {
				stmt.Action = dedupe(stmt.Action)
			}
		case policy.RulePassRoleNoService:
			insertCondition(statementAt(out, v.StatementIndex), "iam:PassedToService", PassedToServicePlaceholder)
		case policy.RuleServiceLinkedRoleNoName:
			insertCondition(statementAt(out, v.StatementIndex), "iam:AWSServiceName", ServiceNamePlaceholder)
		case policy.RuleMissingRequestedRegion:
			insertCondition(statementAt(out, v.StatementIndex), "aws:RequestedRegion", RequestedRegionPlaceholder)
		case policy.RuleMissingRequestTag:
			insertCondition(statementAt(out, v.StatementIndex), RequestTagKey, RequestTagPlaceholder)
		case policy.RuleCrossStatementDupe:
			fixCrossStatementDupe(out, v, emptied)
		default:
			// Recognized set and switch are kept in lockstep; nothing
			// else reaches here.
		}
	}

	if len(emptied) > 0 {
		kept := out.Statement[:0]
		for i, stmt := range out.Statement {
			if emptied[i] && len(stmt.Action) == 0 && len(stmt.NotAction) == 0 {
				continue
			}
			kept = append(kept, stmt)
		}
		out.Statement = kept
	}
	return out
}

// TrustPolicy returns a new trust document with every recognized
// auto-fixable violation remediated.
func TrustPolicy(doc *policy.TrustDocument, violations []policy.Violation) *policy.TrustDocument {
	fixable := actionable(violations, trustRules)
	if len(fixable) == 0 {
		return doc
	}

	out := doc.Clone()
	for _, v := range fixable {
		if v.StatementIndex < 0 || v.StatementIndex >= len(out.Statement) {
			continue
		}
		stmt := out.Statement[v.StatementIndex]
		switch v.RuleID {
		case policy.RuleTrustMissingAudience:
			if stmt.Condition == nil {
				stmt.Condition = policy.Condition{}
			}
			if stmt.Condition["StringEquals"] == nil {
				stmt.Condition["StringEquals"] = map[string]policy.StringList{}
			}
			stmt.Condition["StringEquals"][policy.AudienceConditionKey] = policy.StringList{policy.ExpectedAudience}
		case policy.RuleTrustLiteralLike:
			key, _ := v.FixData["condition_key"].(string)
			migrateStringLike(stmt, key)
		}
	}
	return out
}

func statementAt(doc *policy.Document, index int) *policy.Statement {
	if index < 0 || index >= len(doc.Statement) {
		return nil
	}
	return doc.Statement[index]
}

// generateSid derives a Sid from the first action's service prefix,
// title-cased, suffixed with the statement index: "s3:GetObject" in
// statement 0 becomes "S3Statement0".
func generateSid(stmt *policy.Statement, index int) string {
	service := ""
	if len(stmt.Action) > 0 {
		service, _, _ = strings.Cut(stmt.Action[0], ":")
	}
	var b strings.Builder
	for i, r := range service {
		if i == 0 {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
	}
	b.WriteString("Statement")
	b.WriteString(strconv.Itoa(index))
	return b.String()
}

func dedupe(actions []string) []string {
	seen := make(map[string]bool, len(actions))
	out := actions[:0:0]
	for _, a := range actions {
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

// insertCondition appends a single StringEquals entry without
// disturbing unrelated condition keys. Existing entries for the key
// are left alone so repeated application is a no-op.
func insertCondition(stmt *policy.Statement, key, value string) {
	if stmt == nil {
		return
	}
	if stmt.HasConditionKey(key) {
		return
	}
	if stmt.Condition == nil {
		stmt.Condition = policy.Condition{}
	}
	if stmt.Condition["StringEquals"] == nil {
		stmt.Condition["StringEquals"] = map[string]policy.StringList{}
	}
	stmt.Condition["StringEquals"][key] = policy.StringList{value}
}

// migrateStringLike moves exactly one key from StringLike to
// StringEquals, removing the emptied StringLike block.
func migrateStringLike(stmt *policy.TrustStatement, key string) {
	like, ok := stmt.Condition["StringLike"]
	if !ok {
		return
	}
	values, ok := like[key]
	if !ok {
		return
	}
	if stmt.Condition["StringEquals"] == nil {
		stmt.Condition["StringEquals"] = map[string]policy.StringList{}
	}
	if _, exists := stmt.Condition["StringEquals"][key]; !exists {
		stmt.Condition["StringEquals"][key] = values
	}
	delete(like, key)
	if len(like) == 0 {
		delete(stmt.Condition, "StringLike")
	}
}

// fixCrossStatementDupe keeps the duplicated action on the statement
// with the most specific resource and strips it from the others. The
// original specificity heuristic is preserved deliberately: a
// wildcard-free resource beats any wildcard one, and within a class a
// longer string wins; ties go to the lower statement index.
func fixCrossStatementDupe(doc *policy.Document, v policy.Violation, emptied map[int]bool) {
	action, _ := v.CurrentValue.(string)
	indices := intSlice(v.FixData["statement_indices"])
	if action == "" || len(indices) < 2 {
		return
	}

	keeper := -1
	var keeperFree bool
	var keeperLen int
	for _, i := range indices {
		stmt := statementAt(doc, i)
		if stmt == nil || !containsAction(stmt.Action, action) {
			continue
		}
		free, length := resourceSpecificity(stmt.Resource)
		if keeper == -1 || (free && !keeperFree) || (free == keeperFree && length > keeperLen) {
			keeper, keeperFree, keeperLen = i, free, length
		}
	}
	if keeper == -1 {
		return
	}

	for _, i := range indices {
		if i == keeper {
			continue
		}
		stmt := statementAt(doc, i)
		if stmt == nil {
			continue
		}
		stmt.Action = removeAction(stmt.Action, action)
		if len(stmt.Action) == 0 {
			emptied[i] = true
		}
	}
}

// resourceSpecificity scores a statement's resources: whether any
// resource is wildcard-free, and the length of the best candidate.
func resourceSpecificity(resources policy.StringList) (wildcardFree bool, length int) {
	for _, r := range resources {
		free := !strings.Contains(r, "*")
		if free && !wildcardFree {
			wildcardFree, length = true, len(r)
			continue
		}
		if free == wildcardFree && len(r) > length {
			length = len(r)
		}
	}
	return wildcardFree, length
}

func containsAction(actions []string, want string) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}

func removeAction(actions []string, drop string) []string {
	out := actions[:0:0]
	for _, a := range actions {
		if a != drop {
			out = append(out, a)
		}
	}
	return out
}

// intSlice tolerates both []int (in-process violations) and []any of
// json numbers (violations that round-tripped through JSON).
func intSlice(v any) []int {
	switch value := v.(type) {
	case []int:
		return value
	case []any:
		out := make([]int, 0, len(value))
		for _, e := range value {
			switch n := e.(type) {
			case int:
				out = append(out, n)
			case float64:
				out = append(out, int(n))
			}
		}
		return out
	default:
		return nil
	}
}
