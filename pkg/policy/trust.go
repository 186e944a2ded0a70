package policy

import (
	"regexp"
	"strings"
)

// Trust policy constants for GitHub OIDC federated role assumption.
const (
	// FederatedAssumeAction is the only action a trust statement may
	// grant.
	FederatedAssumeAction = "sts:AssumeRoleWithWebIdentity"

	// ExpectedAudience is the required value of the aud claim check.
	ExpectedAudience = "sts.amazonaws.com"

	// AudienceConditionKey and SubjectConditionKey are the OIDC token
	// claim keys checked in trust statement conditions.
	AudienceConditionKey = "token.actions.githubusercontent.com:aud"
	SubjectConditionKey  = "token.actions.githubusercontent.com:sub"
)

// Principal identifies the federated identity provider a trust
// statement binds to.
type Principal struct {
	Federated string `json:"Federated"`
}

// TrustStatement is one clause of an assume-role trust policy.
// Action is a single string here, not a list: a federated trust
// statement grants exactly one assumption action.
type TrustStatement struct {
	Sid       string    `json:"Sid,omitempty"`
	Effect    string    `json:"Effect"`
	Principal Principal `json:"Principal"`
	Action    string    `json:"Action"`
	Condition Condition `json:"Condition"`
}

// TrustDocument is an assume-role trust policy document.
type TrustDocument struct {
	Version   string            `json:"Version,omitempty"`
	Statement []*TrustStatement `json:"Statement"`
}

// Clone returns a deep copy of the trust statement.
func (s *TrustStatement) Clone() *TrustStatement {
	return &TrustStatement{
		Sid:       s.Sid,
		Effect:    s.Effect,
		Principal: s.Principal,
		Action:    s.Action,
		Condition: s.Condition.Clone(),
	}
}

// Clone returns a deep copy of the trust document.
func (d *TrustDocument) Clone() *TrustDocument {
	out := &TrustDocument{Version: d.Version}
	if d.Statement != nil {
		out.Statement = make([]*TrustStatement, len(d.Statement))
		for i, s := range d.Statement {
			out.Statement[i] = s.Clone()
		}
	}
	return out
}

// RoleType selects which trust policy rules apply to a role.
type RoleType string

const (
	// RolePlan is a read-only role assumed on pull requests.
	RolePlan RoleType = "plan"
	// RoleApply is a deployment role assumed on the default branch or
	// a named environment.
	RoleApply RoleType = "apply"
)

// RoleTypeOf derives the role type from the role name. This is the
// documented heuristic: a name containing "plan" is a plan role,
// anything else is an apply role.
func RoleTypeOf(roleName string) RoleType {
	if strings.Contains(strings.ToLower(roleName), "plan") {
		return RolePlan
	}
	return RoleApply
}

// The three recognized specific subject claim forms. Anything else
// containing ":*" is an org-wide wildcard grant.
var (
	subPullRequestRE = regexp.MustCompile(`^repo:[^:*]+/[^:*]+:pull_request$`)
	subBranchRefRE   = regexp.MustCompile(`^repo:[^:*]+/[^:*]+:ref:refs/heads/[^:*]+$`)
	subEnvironmentRE = regexp.MustCompile(`^repo:[^:*]+/[^:*]+:environment:[^:*]+$`)
)

// IsPullRequestSubject reports whether sub binds to pull request events.
func IsPullRequestSubject(sub string) bool {
	return subPullRequestRE.MatchString(sub)
}

// IsBranchRefSubject reports whether sub binds to a branch ref.
func IsBranchRefSubject(sub string) bool {
	return subBranchRefRE.MatchString(sub)
}

// IsEnvironmentSubject reports whether sub binds to a named deployment
// environment.
func IsEnvironmentSubject(sub string) bool {
	return subEnvironmentRE.MatchString(sub)
}

// IsRecognizedSubject reports whether sub is one of the three specific
// claim forms.
func IsRecognizedSubject(sub string) bool {
	return IsPullRequestSubject(sub) || IsBranchRefSubject(sub) || IsEnvironmentSubject(sub)
}

// IsWildcardSubject reports whether sub is an org-wide wildcard: it
// contains ":*" and is not a recognized specific form.
func IsWildcardSubject(sub string) bool {
	return strings.Contains(sub, ":*") && !IsRecognizedSubject(sub)
}
