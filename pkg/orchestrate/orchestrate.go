// Package orchestrate drives the validators and fixer to a fixed point
// per policy document and aggregates the outcome per role.
//
// The convergence loop is bounded: at most MaxIterations fix passes per
// document, with a cycle breaker based on a structural fingerprint of
// the outstanding violations. Fingerprints, not document equality: two
// different documents can fingerprint identically when the fixer is
// looping between two rule states, and that, not the bytes, is what
// marks lost progress.
package orchestrate

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/zpratt/lousy-iam/pkg/fix"
	"github.com/zpratt/lousy-iam/pkg/policy"
	"github.com/zpratt/lousy-iam/pkg/validate"
)

// MaxIterations bounds the validate/fix loop per document. It doubles
// as the system's only timeout: every other core operation is a single
// pure pass.
const MaxIterations = 5

// Recorder receives per-policy convergence outcomes. Implemented by
// observability.Provider; a nil Recorder disables recording.
type Recorder interface {
	RecordPolicy(policyType string, errors, warnings, iterations int)
}

// Orchestrator runs the validate-and-fix loop over every policy of
// every role in a formulation.
type Orchestrator struct {
	vctx     validate.Context
	logger   *slog.Logger
	recorder Recorder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// New creates an orchestrator. vctx carries the deployment inputs the
// permission validator needs (deploying role name, unscoped actions).
func New(vctx validate.Context, opts ...Option) *Orchestrator {
	o := &Orchestrator{vctx: vctx, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run validates and fixes every policy of every role. It returns the
// validation report and the fixed formulation from the same pass. The
// input formulation is never mutated; the fixed tree is built on a
// clone.
func (o *Orchestrator) Run(input *policy.Formulation) (*Result, *policy.Formulation) {
	fixed := input.Clone()
	result := &Result{
		RunID:       uuid.NewString(),
		Valid:       true,
		RoleResults: make([]*RoleResult, 0, len(fixed.Roles)),
	}

	for _, role := range fixed.Roles {
		roleResult := &RoleResult{
			RoleName:      role.RoleName,
			Valid:         true,
			PolicyResults: make([]*PolicyResult, 0, len(role.PermissionPolicies)+1),
		}

		for _, pp := range role.PermissionPolicies {
			doc, violations, iterations, oscillated := converge(
				pp.PolicyDocument,
				func(d *policy.Document) []policy.Violation { return validate.Permission(d, o.vctx) },
				fix.PermissionPolicy,
			)
			pp.PolicyDocument = doc
			pr := &PolicyResult{
				PolicyName: pp.PolicyName,
				PolicyType: PolicyTypePermission,
				Valid:      !hasErrors(violations),
				Oscillated: oscillated,
				Violations: violations,
				Stats:      validate.ComputeStats(doc, violations),
			}
			o.record(pr, iterations)
			roleResult.PolicyResults = append(roleResult.PolicyResults, pr)
			result.FixIterations = max(result.FixIterations, iterations)
		}

		if role.TrustPolicy != nil {
			roleType := policy.RoleTypeOf(role.RoleName)
			doc, violations, iterations, oscillated := converge(
				role.TrustPolicy,
				func(d *policy.TrustDocument) []policy.Violation { return validate.Trust(d, roleType) },
				fix.TrustPolicy,
			)
			role.TrustPolicy = doc
			pr := &PolicyResult{
				PolicyName: TrustPolicyName,
				PolicyType: PolicyTypeTrust,
				Valid:      !hasErrors(violations),
				Oscillated: oscillated,
				Violations: violations,
				Stats:      validate.ComputeTrustStats(doc, violations),
			}
			o.record(pr, iterations)
			roleResult.PolicyResults = append(roleResult.PolicyResults, pr)
			result.FixIterations = max(result.FixIterations, iterations)
		}

		for _, pr := range roleResult.PolicyResults {
			if !pr.Valid {
				roleResult.Valid = false
			}
		}
		if !roleResult.Valid {
			result.Valid = false
		}
		o.logger.Info("role validated",
			"role", role.RoleName,
			"valid", roleResult.Valid,
			"policies", len(roleResult.PolicyResults))
		result.RoleResults = append(result.RoleResults, roleResult)
	}

	return result, fixed
}

func (o *Orchestrator) record(pr *PolicyResult, iterations int) {
	if o.recorder == nil {
		return
	}
	o.recorder.RecordPolicy(pr.PolicyType, pr.Stats.Errors, pr.Stats.Warnings, iterations)
}

// converge runs one document's validate/fix loop to a terminal state:
// converged (no auto-fixable violations remain), oscillating (the
// fixer made no forward progress), or the iteration ceiling. It
// returns the final document, the last computed violations, and the
// number of fix passes applied.
func converge[D any](
	doc D,
	validateFn func(D) []policy.Violation,
	fixFn func(D, []policy.Violation) D,
) (D, []policy.Violation, int, bool) {
	state := doc
	var violations []policy.Violation
	var previous string
	iterations := 0

	for i := 0; i < MaxIterations; i++ {
		violations = validateFn(state)
		if !anyFixable(violations) {
			return state, violations, iterations, false
		}
		fp := fingerprint(violations)
		if fp == previous {
			return state, violations, iterations, true
		}
		previous = fp
		state = fixFn(state, violations)
		iterations++
	}
	return state, violations, iterations, false
}

func anyFixable(violations []policy.Violation) bool {
	for _, v := range violations {
		if v.AutoFixable {
			return true
		}
	}
	return false
}

// fingerprint reduces a violation set to a stable structural key:
// sorted rule/statement/field tuples. Values are deliberately
// excluded so two passes that leave the same rules outstanding at the
// same positions compare equal.
func fingerprint(violations []policy.Violation) string {
	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = fmt.Sprintf("%s|%d|%s", v.RuleID, v.StatementIndex, v.Field)
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}
