package orchestrate

import "github.com/zpratt/lousy-iam/pkg/policy"

// Policy types reported per policy result.
const (
	PolicyTypePermission = "permission"
	PolicyTypeTrust      = "trust"
)

// TrustPolicyName is the synthetic policy name trust policies are
// reported under; roles carry exactly one and it has no name of its
// own.
const TrustPolicyName = "trust_policy"

// Result is the validation report for one orchestrator run. It and the
// fixed formulation are derived from the same convergence pass, so
// they can never disagree about what was fixed.
type Result struct {
	RunID         string        `json:"run_id"`
	Valid         bool          `json:"valid"`
	RoleResults   []*RoleResult `json:"role_results"`
	FixIterations int           `json:"fix_iterations"`
}

// RoleResult aggregates one role's policy results. A role is valid iff
// every policy result carries zero error-severity violations after the
// final validation pass.
type RoleResult struct {
	RoleName      string          `json:"role_name"`
	Valid         bool            `json:"valid"`
	PolicyResults []*PolicyResult `json:"policy_results"`
}

// PolicyResult is the terminal state of one document's convergence
// loop.
type PolicyResult struct {
	PolicyName string             `json:"policy_name"`
	PolicyType string             `json:"policy_type"`
	Valid      bool               `json:"valid"`
	Oscillated bool               `json:"oscillated,omitempty"`
	Violations []policy.Violation `json:"violations"`
	Stats      policy.Stats       `json:"stats"`
}

func hasErrors(violations []policy.Violation) bool {
	for _, v := range violations {
		if v.Severity == policy.SeverityError {
			return true
		}
	}
	return false
}
